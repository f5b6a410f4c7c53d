package generators

import (
	"context"
	"errors"
	"fmt"

	"growline/internal/domain"
	"growline/internal/events"
	"growline/internal/lifecycle"
	"growline/internal/repo"
)

var manualTitles = map[domain.Reason]string{
	domain.ReasonInformation: "Check on plant",
	domain.ReasonWater:       "Water",
	domain.ReasonWeed:        "Weed",
	domain.ReasonPrune:       "Prune",
	domain.ReasonThin:        "Thin seedlings",
	domain.ReasonMaintenance: "Maintenance",
}

func manualTitle(r domain.Reason) string {
	if t, ok := manualTitles[r]; ok {
		return t
	}
	return string(r)
}

// manualSchedule mirrors every schedule of a type no other generator owns
// into one task, and closes those tasks when matching work is logged.
type manualSchedule struct {
	Deps
}

func (manualSchedule) Name() string { return "manual-schedule" }

func (manualSchedule) Topics() []string {
	return append(topics(
		lifecycle.PlantScheduleCreated, lifecycle.PlantScheduleUpdated, lifecycle.PlantScheduleDeleted,
		lifecycle.PlantHarvestCycleDeleted,
	), domain.TopicWorkLogRecorded)
}

func owned(t domain.PlantTask) bool {
	return t.IsSystemGenerated && t.PlantScheduleID != "" && !t.Type.Lifecycle()
}

func (g manualSchedule) Handle(ctx context.Context, e events.Event) error {
	switch ev := e.(type) {
	case domain.WorkLogRecorded:
		return g.onWorkLog(ctx, ev.WorkLog)
	case lifecycle.Event:
		if ev.Plant == nil {
			return nil
		}
		p := ev.Plant
		switch ev.Trigger {
		case lifecycle.PlantScheduleCreated, lifecycle.PlantScheduleUpdated:
			s := ev.Schedule
			if s == nil || s.TaskType.Lifecycle() {
				return nil
			}
			if err := g.deleteOpen(ctx, p.ID, s.ID); err != nil {
				return err
			}
			_, err := g.Tasks.CreatePlantTask(ctx, domain.CreatePlantTaskCommand{
				HarvestCycleID:      p.HarvestCycleID,
				PlantHarvestCycleID: p.ID,
				PlantScheduleID:     s.ID,
				Type:                s.TaskType,
				Title:               manualTitle(s.TaskType),
				Notes:               s.Notes,
				TargetDateStart:     s.StartDate,
				TargetDateEnd:       s.EndDate,
				IsSystemGenerated:   true,
			})
			if err != nil {
				return fmt.Errorf("manual-schedule: create task: %w", err)
			}
			return nil
		case lifecycle.PlantScheduleDeleted:
			if ev.Schedule == nil || ev.Schedule.TaskType.Lifecycle() {
				return nil
			}
			return g.deleteOpen(ctx, p.ID, ev.Schedule.ID)
		case lifecycle.PlantHarvestCycleDeleted:
			all, err := g.Tasks.SearchPlantTasks(ctx, domain.PlantTaskSearch{PlantHarvestCycleID: p.ID, IncludeResolvedTasks: true})
			if err != nil {
				return fmt.Errorf("manual-schedule: search tasks: %w", err)
			}
			return g.delete(ctx, all, nil)
		}
	}
	return nil
}

func (g manualSchedule) deleteOpen(ctx context.Context, plantID, scheduleID string) error {
	open, err := g.Tasks.SearchPlantTasks(ctx, domain.PlantTaskSearch{PlantHarvestCycleID: plantID, PlantScheduleID: scheduleID})
	if err != nil {
		return fmt.Errorf("manual-schedule: search tasks: %w", err)
	}
	return g.delete(ctx, open, owned)
}

// delete removes the tasks accepted by keep. A nil keep removes all of them.
func (g manualSchedule) delete(ctx context.Context, tasks []domain.PlantTask, keep func(domain.PlantTask) bool) error {
	for _, t := range tasks {
		if keep != nil && !keep(t) {
			continue
		}
		if err := g.Tasks.DeletePlantTask(ctx, t.ID); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("manual-schedule: delete task %s: %w", t.ID, err)
		}
	}
	return nil
}

// onWorkLog completes open tasks of the logged kind. Information logs are
// written by the system itself and complete nothing.
func (g manualSchedule) onWorkLog(ctx context.Context, w domain.WorkLog) error {
	if !w.Reason.IsTaskType() || w.Reason.Lifecycle() || w.Reason == domain.ReasonInformation {
		return nil
	}
	plantID, ok := w.Related(domain.EntityPlantHarvestCycle)
	if !ok {
		return fmt.Errorf("%w: work log %s", ErrMissingRelatedEntity, w.ID)
	}
	open, err := g.Tasks.SearchPlantTasks(ctx, domain.PlantTaskSearch{PlantHarvestCycleID: plantID, Reason: w.Reason})
	if err != nil {
		return fmt.Errorf("manual-schedule: search tasks: %w", err)
	}
	for _, t := range open {
		if _, err := g.Tasks.CompletePlantTask(ctx, domain.CompletePlantTaskCommand{ID: t.ID, CompletedDateTime: w.EventDateTime}); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("manual-schedule: complete task %s: %w", t.ID, err)
		}
	}
	return nil
}
