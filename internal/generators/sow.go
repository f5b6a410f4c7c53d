package generators

import (
	"context"

	"growline/internal/domain"
	"growline/internal/events"
	"growline/internal/lifecycle"
)

// sow keeps a sowing task per sowing schedule until the plant is seeded.
type sow struct {
	base
	method domain.PlantingMethod
}

func newSow(d Deps, name string, typ domain.Reason, title string, method domain.PlantingMethod) sow {
	return sow{base: newBase(d, name, typ, title), method: method}
}

func (g sow) Topics() []string {
	return topics(
		lifecycle.PlantScheduleCreated, lifecycle.PlantScheduleUpdated, lifecycle.PlantScheduleDeleted,
		lifecycle.PlantingMethodChanged, lifecycle.PlantHarvestCycleSeeded,
		lifecycle.PlantHarvestCycleCompleted, lifecycle.PlantHarvestCycleDeleted,
	)
}

func (g sow) Handle(ctx context.Context, e events.Event) error {
	ev, ok := e.(lifecycle.Event)
	if !ok || ev.Plant == nil {
		return nil
	}
	p := ev.Plant
	switch ev.Trigger {
	case lifecycle.PlantScheduleCreated, lifecycle.PlantScheduleUpdated:
		s := ev.Schedule
		if s == nil || s.TaskType != g.typ {
			return nil
		}
		if err := g.deleteOpen(ctx, p.ID, sameSchedule(s.ID)); err != nil {
			return err
		}
		switch {
		case p.PlantingMethod != g.method:
			return g.skip(p, "planting method")
		case p.SeedingDate != nil:
			return g.skip(p, "already seeded")
		case p.LastHarvestDate != nil:
			return g.skip(p, "plant completed")
		}
		return g.create(ctx, p, s.ID, s.StartDate, s.EndDate, s.Notes)
	case lifecycle.PlantScheduleDeleted:
		if ev.Schedule == nil || ev.Schedule.TaskType != g.typ {
			return nil
		}
		return g.deleteOpen(ctx, p.ID, sameSchedule(ev.Schedule.ID))
	case lifecycle.PlantingMethodChanged:
		if p.PlantingMethod == g.method {
			return nil
		}
		return g.deleteOpen(ctx, p.ID, nil)
	case lifecycle.PlantHarvestCycleSeeded:
		return g.complete(ctx, p.ID, day(p.SeedingDate))
	case lifecycle.PlantHarvestCycleCompleted:
		return g.deleteOpen(ctx, p.ID, nil)
	case lifecycle.PlantHarvestCycleDeleted:
		return g.deleteAll(ctx, p.ID)
	}
	return nil
}
