// Package generators turns lifecycle and work log events into plant tasks and
// history entries. Each generator owns one task type and keeps it in step with
// the plant. It replaces only tasks it recognises as its own, but milestones
// complete and plant deletion removes every task of its type.
package generators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"growline/internal/config"
	"growline/internal/domain"
	"growline/internal/events"
	"growline/internal/growth"
	"growline/internal/lifecycle"
	"growline/internal/repo"
)

// ErrMissingRelatedEntity is returned when a work log lacks the harvest cycle
// or plant reference a generator needs.
var ErrMissingRelatedEntity = errors.New("work log is missing a related harvest cycle or plant")

type TaskStore interface {
	CreatePlantTask(ctx context.Context, cmd domain.CreatePlantTaskCommand) (domain.PlantTask, error)
	CompletePlantTask(ctx context.Context, cmd domain.CompletePlantTaskCommand) (domain.PlantTask, error)
	DeletePlantTask(ctx context.Context, id string) error
	SearchPlantTasks(ctx context.Context, s domain.PlantTaskSearch) ([]domain.PlantTask, error)
}

type WorkLogStore interface {
	CreateWorkLog(ctx context.Context, cmd domain.CreateWorkLogCommand) (domain.WorkLog, error)
}

type CycleReader interface {
	GetHarvestCycle(ctx context.Context, id string) (*lifecycle.HarvestCycle, error)
}

// Deps are shared by every generator.
type Deps struct {
	Tasks    TaskStore
	WorkLogs WorkLogStore
	Cycles   CycleReader
	Growth   growth.Source
	Defaults config.Defaults
	Logger   *slog.Logger
	Now      func() time.Time
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// All returns every generator in registration order.
func All(d Deps) []events.Subscriber {
	return []events.Subscriber{
		newSow(d, "sow-indoors", domain.ReasonSowIndoors, "Sow seeds indoors", domain.SeedIndoors),
		newSow(d, "sow-outside", domain.ReasonSowOutside, "Sow seeds outside", domain.DirectSeed),
		hardenOff{base: newBase(d, "harden-off", domain.ReasonHardenOff, "Harden off seedlings")},
		transplant{base: newBase(d, "transplant-outside", domain.ReasonTransplantOutside, "Transplant outside")},
		germinate{base: newBase(d, "germinate-reminder", domain.ReasonInformation, "Record germination date")},
		fertilizeIndoors{base: newBase(d, "fertilize-indoors", domain.ReasonFertilizeIndoors, "Fertilize seedlings")},
		fertilizeOutside{base: newBase(d, "fertilize-outside", domain.ReasonFertilizeOutside, "Fertilize")},
		harvest{base: newBase(d, "harvest", domain.ReasonHarvest, "Harvest")},
		manualSchedule{Deps: d},
		workLogWriter{Deps: d},
	}
}

// Register subscribes every generator to d.
func Register(d *events.Dispatcher, deps Deps) {
	for _, s := range All(deps) {
		d.Register(s)
	}
}

func topics(triggers ...lifecycle.Trigger) []string {
	out := make([]string, 0, len(triggers))
	for _, t := range triggers {
		out = append(out, string(t))
	}
	return out
}

// base carries the task type and title that mark a task as owned by one generator.
type base struct {
	Deps
	name  string
	typ   domain.Reason
	title string
}

func newBase(d Deps, name string, typ domain.Reason, title string) base {
	return base{Deps: d, name: name, typ: typ, title: title}
}

func (b base) Name() string { return b.name }

func (b base) owns(t domain.PlantTask) bool {
	return t.IsSystemGenerated && t.Type == b.typ && t.Title == b.title
}

// claims reports whether milestone completion reaches t. Information tasks
// are shared with manual-schedule, so only owned ones are claimed. Every
// other task of the type is claimed, user tasks included.
func (b base) claims(t domain.PlantTask) bool {
	if b.typ == domain.ReasonInformation {
		return b.owns(t)
	}
	return t.Type == b.typ
}

// tasks lists the plant's tasks of the generator's type accepted by keep.
func (b base) tasks(ctx context.Context, plantID string, includeResolved bool, keep func(domain.PlantTask) bool) ([]domain.PlantTask, error) {
	found, err := b.Tasks.SearchPlantTasks(ctx, domain.PlantTaskSearch{
		PlantHarvestCycleID:  plantID,
		Reason:               b.typ,
		IncludeResolvedTasks: includeResolved,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: search tasks: %w", b.name, err)
	}
	var out []domain.PlantTask
	for _, t := range found {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// deleteOpen removes the open owned tasks of the plant accepted by match. A
// nil match removes all of them.
func (b base) deleteOpen(ctx context.Context, plantID string, match func(domain.PlantTask) bool) error {
	open, err := b.tasks(ctx, plantID, false, b.owns)
	if err != nil {
		return err
	}
	return b.delete(ctx, open, match)
}

// deleteAll removes every task of the type from a deleted plant, completed
// and user entered ones included.
func (b base) deleteAll(ctx context.Context, plantID string) error {
	all, err := b.tasks(ctx, plantID, true, func(t domain.PlantTask) bool { return t.Type == b.typ })
	if err != nil {
		return err
	}
	return b.delete(ctx, all, nil)
}

func (b base) delete(ctx context.Context, tasks []domain.PlantTask, match func(domain.PlantTask) bool) error {
	for _, t := range tasks {
		if match != nil && !match(t) {
			continue
		}
		if err := b.Tasks.DeletePlantTask(ctx, t.ID); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%s: delete task %s: %w", b.name, t.ID, err)
		}
	}
	return nil
}

// complete closes the open claimed tasks of the plant at the given time.
func (b base) complete(ctx context.Context, plantID string, at time.Time) error {
	open, err := b.tasks(ctx, plantID, false, b.claims)
	if err != nil {
		return err
	}
	if at.IsZero() {
		at = b.now()
	}
	for _, t := range open {
		if _, err := b.Tasks.CompletePlantTask(ctx, domain.CompletePlantTaskCommand{ID: t.ID, CompletedDateTime: at}); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%s: complete task %s: %w", b.name, t.ID, err)
		}
	}
	return nil
}

// create replaces the open owned tasks it supersedes with a new one. A task
// supersedes the open tasks linked to the same schedule, or the unlinked ones
// when scheduleID is empty.
func (b base) create(ctx context.Context, p *lifecycle.PlantHarvestCycle, scheduleID string, start, end time.Time, notes string) error {
	if err := b.deleteOpen(ctx, p.ID, sameSchedule(scheduleID)); err != nil {
		return err
	}
	_, err := b.Tasks.CreatePlantTask(ctx, domain.CreatePlantTaskCommand{
		HarvestCycleID:      p.HarvestCycleID,
		PlantHarvestCycleID: p.ID,
		PlantScheduleID:     scheduleID,
		Type:                b.typ,
		Title:               b.title,
		Notes:               notes,
		TargetDateStart:     domain.Day(start),
		TargetDateEnd:       domain.Day(end),
		IsSystemGenerated:   true,
	})
	if err != nil {
		return fmt.Errorf("%s: create task: %w", b.name, err)
	}
	b.logger().Debug("task created", "generator", b.name, "plant_harvest_cycle_id", p.ID, "start", domain.Day(start).Format(time.DateOnly))
	return nil
}

func (b base) skip(p *lifecycle.PlantHarvestCycle, reason string) error {
	b.logger().Debug("task not created", "generator", b.name, "plant_harvest_cycle_id", p.ID, "reason", reason)
	return nil
}

func sameSchedule(scheduleID string) func(domain.PlantTask) bool {
	return func(t domain.PlantTask) bool { return t.PlantScheduleID == scheduleID }
}

// plantFromLog loads the plant a work log refers to. A nil plant with a nil
// error means the references were dangling and the log is ignored.
func (b base) plantFromLog(ctx context.Context, w domain.WorkLog) (*lifecycle.PlantHarvestCycle, error) {
	cycleID, okCycle := w.Related(domain.EntityHarvestCycle)
	plantID, okPlant := w.Related(domain.EntityPlantHarvestCycle)
	if !okCycle || !okPlant {
		return nil, fmt.Errorf("%w: work log %s", ErrMissingRelatedEntity, w.ID)
	}
	c, err := b.Cycles.GetHarvestCycle(ctx, cycleID)
	if errors.Is(err, repo.ErrNotFound) {
		b.logger().Warn("work log refers to a missing harvest cycle", "generator", b.name, "work_log_id", w.ID, "harvest_cycle_id", cycleID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: load harvest cycle: %w", b.name, err)
	}
	p, ok := c.Plant(plantID)
	if !ok {
		b.logger().Warn("work log refers to a missing plant", "generator", b.name, "work_log_id", w.ID, "plant_harvest_cycle_id", plantID)
		return nil, nil
	}
	return p, nil
}

// instruction looks up the plant's grow instruction. ok is false when the
// plant has none or the lookup failed.
func (b base) instruction(ctx context.Context, p *lifecycle.PlantHarvestCycle) (growth.GrowInstruction, bool) {
	if p.GrowInstructionID == "" || b.Growth == nil {
		return growth.GrowInstruction{}, false
	}
	gi, err := b.Growth.GetGrowInstruction(ctx, p.PlantID, p.GrowInstructionID)
	if err != nil {
		b.lookupFailed(ctx, p, "grow instruction", err)
		return growth.GrowInstruction{}, false
	}
	return gi, true
}

func (b base) lookupFailed(ctx context.Context, p *lifecycle.PlantHarvestCycle, kind string, err error) {
	level := slog.LevelWarn
	if errors.Is(err, growth.ErrNotFound) {
		level = slog.LevelDebug
	}
	b.logger().Log(ctx, level, "growth lookup failed", "generator", b.name, "kind", kind, "plant_id", p.PlantID, "error", err)
}

// beforeSchedule reports whether day falls strictly before the earliest
// schedule of kind. Without such a schedule there is no bound.
func beforeSchedule(p *lifecycle.PlantHarvestCycle, kind domain.Reason, day time.Time) bool {
	start, ok := p.EarliestSchedule(kind)
	return !ok || domain.Day(day).Before(start)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func day(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return domain.Day(*t)
}
