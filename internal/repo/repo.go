package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"growline/internal/domain"
	"growline/internal/lifecycle"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("harvest cycle was modified concurrently")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const cycleColumns = `id,name,start_date,end_date,notes,owner_id,garden_id,version`

const plantColumns = `id,harvest_cycle_id,plant_id,plant_name,plant_variety_id,plant_variety_name,grow_instruction_id,grow_instruction_name,
seed_vendor_id,seed_vendor_name,planting_method,seeding_date,number_of_seeds,germination_date,germination_rate,transplant_date,
number_of_transplants,first_harvest_date,last_harvest_date,total_weight_in_pounds,total_items,spacing_in_inches,notes`

// SaveHarvestCycleTx writes the aggregate and all of its children. A cycle with
// version 0 is inserted; otherwise the stored version must still match.
func (r Repo) SaveHarvestCycleTx(ctx context.Context, tx *sql.Tx, c *lifecycle.HarvestCycle, now time.Time) error {
	ts := now.UTC().Format(time.RFC3339)
	if c.Version == 0 {
		if _, err := tx.ExecContext(ctx, `INSERT INTO harvest_cycles(id,name,start_date,end_date,notes,owner_id,garden_id,version,created_at,updated_at) VALUES (?,?,?,?,?,?,?,1,?,?)`,
			c.ID, c.Name, formatDate(c.StartDate), formatDatePtr(c.EndDate), nullable(c.Notes), nullable(c.OwnerID), nullable(c.GardenID), ts, ts); err != nil {
			return fmt.Errorf("insert harvest cycle: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, `UPDATE harvest_cycles SET name=?,start_date=?,end_date=?,notes=?,garden_id=?,version=version+1,updated_at=? WHERE id=? AND version=?`,
			c.Name, formatDate(c.StartDate), formatDatePtr(c.EndDate), nullable(c.Notes), nullable(c.GardenID), ts, c.ID, c.Version)
		if err != nil {
			return fmt.Errorf("update harvest cycle: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return r.missingOrConflict(ctx, tx, c.ID)
		}
		for _, table := range []string{"bed_placements", "plant_schedules", "plant_harvest_cycles"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE harvest_cycle_id=?`, c.ID); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
	}
	for i, p := range c.Plants {
		if err := insertPlant(ctx, tx, c.ID, i, p); err != nil {
			return err
		}
	}
	c.Version++
	return nil
}

func insertPlant(ctx context.Context, tx *sql.Tx, cycleID string, pos int, p *lifecycle.PlantHarvestCycle) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO plant_harvest_cycles(position,`+plantColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		pos, p.ID, cycleID, p.PlantID, nullable(p.PlantName), nullable(p.PlantVarietyID), nullable(p.PlantVarietyName),
		nullable(p.GrowInstructionID), nullable(p.GrowInstructionName), nullable(p.SeedVendorID), nullable(p.SeedVendorName),
		string(p.PlantingMethod), formatDatePtr(p.SeedingDate), p.NumberOfSeeds, formatDatePtr(p.GerminationDate), p.GerminationRate,
		formatDatePtr(p.TransplantDate), p.NumberOfTransplants, formatDatePtr(p.FirstHarvestDate), formatDatePtr(p.LastHarvestDate),
		p.TotalWeightInPounds, p.TotalItems, p.SpacingInInches, nullable(p.Notes))
	if err != nil {
		return fmt.Errorf("insert plant %s: %w", p.ID, err)
	}
	for i, s := range p.Schedules {
		if _, err := tx.ExecContext(ctx, `INSERT INTO plant_schedules(id,plant_harvest_cycle_id,harvest_cycle_id,position,task_type,start_date,end_date,notes,is_system_generated) VALUES (?,?,?,?,?,?,?,?,?)`,
			s.ID, p.ID, cycleID, i, string(s.TaskType), formatDate(s.StartDate), formatDate(s.EndDate), nullable(s.Notes), s.IsSystemGenerated); err != nil {
			return fmt.Errorf("insert schedule %s: %w", s.ID, err)
		}
	}
	for i, b := range p.Placements {
		if _, err := tx.ExecContext(ctx, `INSERT INTO bed_placements(id,plant_harvest_cycle_id,harvest_cycle_id,position,garden_id,garden_bed_id,number_of_plants,start_date,end_date,notes) VALUES (?,?,?,?,?,?,?,?,?,?)`,
			b.ID, p.ID, cycleID, i, nullable(b.GardenID), b.GardenBedID, b.NumberOfPlants, formatDate(b.StartDate), formatDatePtr(b.EndDate), nullable(b.Notes)); err != nil {
			return fmt.Errorf("insert placement %s: %w", b.ID, err)
		}
	}
	return nil
}

func (r Repo) missingOrConflict(ctx context.Context, q querier, id string) error {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM harvest_cycles WHERE id=?`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// DeleteHarvestCycleTx removes the cycle and its children if version still matches.
func (r Repo) DeleteHarvestCycleTx(ctx context.Context, tx *sql.Tx, id string, version int) error {
	for _, table := range []string{"bed_placements", "plant_schedules", "plant_harvest_cycles"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE harvest_cycle_id=?`, id); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM harvest_cycles WHERE id=? AND version=?`, id, version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.missingOrConflict(ctx, tx, id)
	}
	return nil
}

func (r Repo) GetHarvestCycle(ctx context.Context, id string) (*lifecycle.HarvestCycle, error) {
	return getHarvestCycle(ctx, r.DB, id)
}

func (r Repo) GetHarvestCycleTx(ctx context.Context, tx *sql.Tx, id string) (*lifecycle.HarvestCycle, error) {
	return getHarvestCycle(ctx, tx, id)
}

func getHarvestCycle(ctx context.Context, q querier, id string) (*lifecycle.HarvestCycle, error) {
	c, err := scanCycle(q.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM harvest_cycles WHERE id=?`, id))
	if err != nil {
		return nil, err
	}
	if err := loadChildren(ctx, q, c); err != nil {
		return nil, err
	}
	return c, nil
}

// FindCycleIDByPlant returns the harvest cycle owning a plant harvest cycle.
func (r Repo) FindCycleIDByPlant(ctx context.Context, plantHarvestCycleID string) (string, error) {
	var id string
	err := r.DB.QueryRowContext(ctx, `SELECT harvest_cycle_id FROM plant_harvest_cycles WHERE id=?`, plantHarvestCycleID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return id, err
}

type HarvestCycleFilters struct {
	GardenID string
	Active   bool
	Limit    int
}

func (r Repo) ListHarvestCycles(ctx context.Context, f HarvestCycleFilters) ([]*lifecycle.HarvestCycle, error) {
	var clauses []string
	var args []any
	if f.GardenID != "" {
		clauses = append(clauses, "garden_id=?")
		args = append(args, f.GardenID)
	}
	if f.Active {
		clauses = append(clauses, "end_date IS NULL")
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + cycleColumns + ` FROM harvest_cycles ` + where + ` ORDER BY start_date DESC, id`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var res []*lifecycle.HarvestCycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for _, c := range res {
		if err := loadChildren(ctx, r.DB, c); err != nil {
			return nil, err
		}
	}
	return res, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCycle(row scanner) (*lifecycle.HarvestCycle, error) {
	var (
		c                       lifecycle.HarvestCycle
		start                   string
		end, notes, owner, gard sql.NullString
	)
	err := row.Scan(&c.ID, &c.Name, &start, &end, &notes, &owner, &gard, &c.Version)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if c.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if c.EndDate, err = parseNullDate(end); err != nil {
		return nil, err
	}
	c.Notes, c.OwnerID, c.GardenID = notes.String, owner.String, gard.String
	return &c, nil
}

func loadChildren(ctx context.Context, q querier, c *lifecycle.HarvestCycle) error {
	plants, err := loadPlants(ctx, q, c.ID)
	if err != nil {
		return err
	}
	byID := make(map[string]*lifecycle.PlantHarvestCycle, len(plants))
	for _, p := range plants {
		byID[p.ID] = p
	}
	if err := loadSchedules(ctx, q, c.ID, byID); err != nil {
		return err
	}
	if err := loadPlacements(ctx, q, c.ID, byID); err != nil {
		return err
	}
	c.Plants = plants
	return nil
}

func loadPlants(ctx context.Context, q querier, cycleID string) ([]*lifecycle.PlantHarvestCycle, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+plantColumns+` FROM plant_harvest_cycles WHERE harvest_cycle_id=? ORDER BY position`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []*lifecycle.PlantHarvestCycle
	for rows.Next() {
		var (
			p                                                         lifecycle.PlantHarvestCycle
			method                                                    string
			name, varID, varName, giID, giName, vendID, vendName, nts sql.NullString
			seeded, germinated, transplanted, firstHarvest, lastHarv  sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.HarvestCycleID, &p.PlantID, &name, &varID, &varName, &giID, &giName, &vendID, &vendName,
			&method, &seeded, &p.NumberOfSeeds, &germinated, &p.GerminationRate, &transplanted, &p.NumberOfTransplants,
			&firstHarvest, &lastHarv, &p.TotalWeightInPounds, &p.TotalItems, &p.SpacingInInches, &nts); err != nil {
			return nil, err
		}
		p.PlantName, p.PlantVarietyID, p.PlantVarietyName = name.String, varID.String, varName.String
		p.GrowInstructionID, p.GrowInstructionName = giID.String, giName.String
		p.SeedVendorID, p.SeedVendorName, p.Notes = vendID.String, vendName.String, nts.String
		p.PlantingMethod = domain.PlantingMethod(method)
		for _, d := range []struct {
			dst **time.Time
			src sql.NullString
		}{
			{&p.SeedingDate, seeded},
			{&p.GerminationDate, germinated},
			{&p.TransplantDate, transplanted},
			{&p.FirstHarvestDate, firstHarvest},
			{&p.LastHarvestDate, lastHarv},
		} {
			if *d.dst, err = parseNullDate(d.src); err != nil {
				return nil, err
			}
		}
		res = append(res, &p)
	}
	return res, rows.Err()
}

func loadSchedules(ctx context.Context, q querier, cycleID string, plants map[string]*lifecycle.PlantHarvestCycle) error {
	rows, err := q.QueryContext(ctx, `SELECT id,plant_harvest_cycle_id,task_type,start_date,end_date,notes,is_system_generated FROM plant_schedules WHERE harvest_cycle_id=? ORDER BY position`, cycleID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			s          lifecycle.PlantSchedule
			taskType   string
			start, end string
			notes      sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.PlantHarvestCycleID, &taskType, &start, &end, &notes, &s.IsSystemGenerated); err != nil {
			return err
		}
		s.TaskType = domain.Reason(taskType)
		s.Notes = notes.String
		if s.StartDate, err = parseDate(start); err != nil {
			return err
		}
		if s.EndDate, err = parseDate(end); err != nil {
			return err
		}
		if p, ok := plants[s.PlantHarvestCycleID]; ok {
			p.Schedules = append(p.Schedules, &s)
		}
	}
	return rows.Err()
}

func loadPlacements(ctx context.Context, q querier, cycleID string, plants map[string]*lifecycle.PlantHarvestCycle) error {
	rows, err := q.QueryContext(ctx, `SELECT id,plant_harvest_cycle_id,garden_id,garden_bed_id,number_of_plants,start_date,end_date,notes FROM bed_placements WHERE harvest_cycle_id=? ORDER BY position`, cycleID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			b                lifecycle.GardenBedPlantHarvestCycle
			start            string
			garden, nts, end sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.PlantHarvestCycleID, &garden, &b.GardenBedID, &b.NumberOfPlants, &start, &end, &nts); err != nil {
			return err
		}
		b.GardenID, b.Notes = garden.String, nts.String
		if b.StartDate, err = parseDate(start); err != nil {
			return err
		}
		if b.EndDate, err = parseNullDate(end); err != nil {
			return err
		}
		if p, ok := plants[b.PlantHarvestCycleID]; ok {
			p.Placements = append(p.Placements, &b)
		}
	}
	return rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func formatDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func formatDatePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatDate(*t)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func parseNullDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
