package generators

import (
	"context"

	"growline/internal/domain"
	"growline/internal/events"
	"growline/internal/lifecycle"
)

// transplant follows TransplantOutside schedules of plants started indoors or bought as transplants.
type transplant struct {
	base
}

func (g transplant) Topics() []string {
	return topics(
		lifecycle.PlantScheduleCreated, lifecycle.PlantScheduleUpdated, lifecycle.PlantScheduleDeleted,
		lifecycle.PlantingMethodChanged, lifecycle.PlantHarvestCycleTransplanted,
		lifecycle.PlantHarvestCycleCompleted, lifecycle.PlantHarvestCycleDeleted,
	)
}

func (g transplant) Handle(ctx context.Context, e events.Event) error {
	ev, ok := e.(lifecycle.Event)
	if !ok || ev.Plant == nil {
		return nil
	}
	p := ev.Plant
	switch ev.Trigger {
	case lifecycle.PlantScheduleCreated, lifecycle.PlantScheduleUpdated:
		s := ev.Schedule
		if s == nil || s.TaskType != domain.ReasonTransplantOutside {
			return nil
		}
		if err := g.deleteOpen(ctx, p.ID, sameSchedule(s.ID)); err != nil {
			return err
		}
		switch {
		case p.PlantingMethod == domain.DirectSeed:
			return g.skip(p, "planting method")
		case p.TransplantDate != nil:
			return g.skip(p, "already transplanted")
		case p.LastHarvestDate != nil:
			return g.skip(p, "plant completed")
		}
		return g.create(ctx, p, s.ID, s.StartDate, s.EndDate, s.Notes)
	case lifecycle.PlantScheduleDeleted:
		if ev.Schedule == nil || ev.Schedule.TaskType != domain.ReasonTransplantOutside {
			return nil
		}
		return g.deleteOpen(ctx, p.ID, sameSchedule(ev.Schedule.ID))
	case lifecycle.PlantingMethodChanged:
		if p.PlantingMethod != domain.DirectSeed {
			return nil
		}
		return g.deleteOpen(ctx, p.ID, nil)
	case lifecycle.PlantHarvestCycleTransplanted:
		return g.complete(ctx, p.ID, day(p.TransplantDate))
	case lifecycle.PlantHarvestCycleCompleted:
		return g.deleteOpen(ctx, p.ID, nil)
	case lifecycle.PlantHarvestCycleDeleted:
		return g.deleteAll(ctx, p.ID)
	}
	return nil
}
