package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"growline/internal/domain"
)

func (r Repo) InsertWorkLogTx(ctx context.Context, tx *sql.Tx, w domain.WorkLog) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO work_logs(id,reason,event_at,log,created_at) VALUES (?,?,?,?,?)`,
		w.ID, string(w.Reason), formatTimestamp(w.EventDateTime), w.Log, formatTimestamp(w.CreatedAt)); err != nil {
		return fmt.Errorf("insert work log: %w", err)
	}
	for i, e := range w.RelatedEntities {
		if _, err := tx.ExecContext(ctx, `INSERT INTO work_log_entities(work_log_id,position,entity_type,entity_id,entity_name) VALUES (?,?,?,?,?)`,
			w.ID, i, string(e.EntityType), e.EntityID, nullable(e.EntityName)); err != nil {
			return fmt.Errorf("insert work log entity: %w", err)
		}
	}
	return nil
}

func (r Repo) GetWorkLog(ctx context.Context, id string) (domain.WorkLog, error) {
	w, err := scanWorkLog(r.DB.QueryRowContext(ctx, `SELECT id,reason,event_at,log,created_at FROM work_logs WHERE id=?`, id))
	if err != nil {
		return w, err
	}
	logs := []domain.WorkLog{w}
	if err := r.loadEntities(ctx, logs); err != nil {
		return w, err
	}
	return logs[0], nil
}

// ListWorkLogs returns logs newest first.
func (r Repo) ListWorkLogs(ctx context.Context, s domain.WorkLogSearch) ([]domain.WorkLog, error) {
	var clauses []string
	var args []any
	if s.EntityID != "" {
		sub := "id IN (SELECT work_log_id FROM work_log_entities WHERE entity_id=?"
		args = append(args, s.EntityID)
		if s.EntityType != "" {
			sub += " AND entity_type=?"
			args = append(args, string(s.EntityType))
		}
		clauses = append(clauses, sub+")")
	} else if s.EntityType != "" {
		clauses = append(clauses, "id IN (SELECT work_log_id FROM work_log_entities WHERE entity_type=?)")
		args = append(args, string(s.EntityType))
	}
	if s.Reason != "" {
		clauses = append(clauses, "reason=?")
		args = append(args, string(s.Reason))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,reason,event_at,log,created_at FROM work_logs ` + where + ` ORDER BY event_at DESC, created_at DESC, id`
	if s.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, s.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var res []domain.WorkLog
	for rows.Next() {
		w, err := scanWorkLog(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, w)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := r.loadEntities(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r Repo) loadEntities(ctx context.Context, logs []domain.WorkLog) error {
	if len(logs) == 0 {
		return nil
	}
	idx := make(map[string]int, len(logs))
	args := make([]any, 0, len(logs))
	for i, w := range logs {
		idx[w.ID] = i
		args = append(args, w.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(logs)), ",")
	rows, err := r.DB.QueryContext(ctx, `SELECT work_log_id,entity_type,entity_id,entity_name FROM work_log_entities WHERE work_log_id IN (`+placeholders+`) ORDER BY work_log_id, position`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			logID, kind, id string
			name            sql.NullString
		)
		if err := rows.Scan(&logID, &kind, &id, &name); err != nil {
			return err
		}
		i := idx[logID]
		logs[i].RelatedEntities = append(logs[i].RelatedEntities, domain.RelatedEntity{
			EntityType: domain.EntityType(kind),
			EntityID:   id,
			EntityName: name.String,
		})
	}
	return rows.Err()
}

func scanWorkLog(row scanner) (domain.WorkLog, error) {
	var (
		w                      domain.WorkLog
		reason, event, created string
	)
	err := row.Scan(&w.ID, &reason, &event, &w.Log, &created)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	w.Reason = domain.Reason(reason)
	if w.EventDateTime, err = parseTimestamp(event); err != nil {
		return w, err
	}
	if w.CreatedAt, err = parseTimestamp(created); err != nil {
		return w, err
	}
	return w, nil
}
