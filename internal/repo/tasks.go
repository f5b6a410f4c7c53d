package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"growline/internal/domain"
)

const taskColumns = `id,harvest_cycle_id,plant_harvest_cycle_id,plant_schedule_id,type,title,notes,target_date_start,target_date_end,completed_at,is_system_generated,created_at,updated_at`

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.PlantTask) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO plant_tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.HarvestCycleID, t.PlantHarvestCycleID, nullable(t.PlantScheduleID), string(t.Type), t.Title, nullable(t.Notes),
		formatDate(t.TargetDateStart), formatDate(t.TargetDateEnd), completedAt(t.CompletedDateTime), t.IsSystemGenerated,
		formatTimestamp(t.CreatedAt), formatTimestamp(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// UpdateTaskTx rewrites the mutable columns of a task.
func (r Repo) UpdateTaskTx(ctx context.Context, tx *sql.Tx, t domain.PlantTask) error {
	res, err := tx.ExecContext(ctx, `UPDATE plant_tasks SET plant_schedule_id=?,title=?,notes=?,target_date_start=?,target_date_end=?,completed_at=?,updated_at=? WHERE id=?`,
		nullable(t.PlantScheduleID), t.Title, nullable(t.Notes), formatDate(t.TargetDateStart), formatDate(t.TargetDateEnd),
		completedAt(t.CompletedDateTime), formatTimestamp(t.UpdatedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTaskTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM plant_tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.PlantTask, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM plant_tasks WHERE id=?`, id))
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.PlantTask, error) {
	return scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM plant_tasks WHERE id=?`, id))
}

// FindOpenSystemTaskTx returns the oldest open system generated task of a plant
// that has no schedule and carries the given type and title.
func (r Repo) FindOpenSystemTaskTx(ctx context.Context, tx *sql.Tx, plantHarvestCycleID string, typ domain.Reason, title string) (domain.PlantTask, error) {
	return scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM plant_tasks
WHERE plant_harvest_cycle_id=? AND type=? AND title=? AND is_system_generated=1 AND completed_at IS NULL AND plant_schedule_id IS NULL
ORDER BY created_at, id LIMIT 1`, plantHarvestCycleID, string(typ), title))
}

func (r Repo) ListTasks(ctx context.Context, s domain.PlantTaskSearch) ([]domain.PlantTask, error) {
	return listTasks(ctx, r.DB, s)
}

func (r Repo) ListTasksTx(ctx context.Context, tx *sql.Tx, s domain.PlantTaskSearch) ([]domain.PlantTask, error) {
	return listTasks(ctx, tx, s)
}

func listTasks(ctx context.Context, q querier, s domain.PlantTaskSearch) ([]domain.PlantTask, error) {
	var clauses []string
	var args []any
	if s.HarvestCycleID != "" {
		clauses = append(clauses, "harvest_cycle_id=?")
		args = append(args, s.HarvestCycleID)
	}
	if s.PlantHarvestCycleID != "" {
		clauses = append(clauses, "plant_harvest_cycle_id=?")
		args = append(args, s.PlantHarvestCycleID)
	}
	if s.PlantScheduleID != "" {
		clauses = append(clauses, "plant_schedule_id=?")
		args = append(args, s.PlantScheduleID)
	}
	if s.Reason != "" {
		clauses = append(clauses, "type=?")
		args = append(args, string(s.Reason))
	}
	if !s.IncludeResolvedTasks {
		clauses = append(clauses, "completed_at IS NULL")
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM plant_tasks ` + where + ` ORDER BY target_date_start, created_at, id`
	if s.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, s.Limit)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PlantTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func scanTask(row scanner) (domain.PlantTask, error) {
	var (
		t                             domain.PlantTask
		typ, start, end, created, upd string
		schedule, notes, completed    sql.NullString
	)
	err := row.Scan(&t.ID, &t.HarvestCycleID, &t.PlantHarvestCycleID, &schedule, &typ, &t.Title, &notes,
		&start, &end, &completed, &t.IsSystemGenerated, &created, &upd)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Type = domain.Reason(typ)
	t.PlantScheduleID, t.Notes = schedule.String, notes.String
	if t.TargetDateStart, err = parseDate(start); err != nil {
		return t, err
	}
	if t.TargetDateEnd, err = parseDate(end); err != nil {
		return t, err
	}
	if completed.Valid {
		at, err := parseTimestamp(completed.String)
		if err != nil {
			return t, err
		}
		t.CompletedDateTime = &at
	}
	if t.CreatedAt, err = parseTimestamp(created); err != nil {
		return t, err
	}
	if t.UpdatedAt, err = parseTimestamp(upd); err != nil {
		return t, err
	}
	return t, nil
}

func completedAt(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTimestamp(*t)
}
