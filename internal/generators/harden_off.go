package generators

import (
	"context"
	"time"

	"growline/internal/domain"
	"growline/internal/events"
	"growline/internal/lifecycle"
)

// hardenOff schedules hardening off ahead of the transplant window and after
// each logged hardening session.
type hardenOff struct {
	base
}

func (g hardenOff) Topics() []string {
	return append(topics(
		lifecycle.PlantScheduleCreated, lifecycle.PlantScheduleUpdated, lifecycle.PlantScheduleDeleted,
		lifecycle.PlantingMethodChanged, lifecycle.PlantHarvestCycleTransplanted,
		lifecycle.PlantHarvestCycleCompleted, lifecycle.PlantHarvestCycleDeleted,
	), domain.TopicWorkLogRecorded)
}

func (g hardenOff) Handle(ctx context.Context, e events.Event) error {
	switch ev := e.(type) {
	case domain.WorkLogRecorded:
		return g.onWorkLog(ctx, ev.WorkLog)
	case lifecycle.Event:
		if ev.Plant == nil {
			return nil
		}
		return g.onLifecycle(ctx, ev)
	}
	return nil
}

func (g hardenOff) onLifecycle(ctx context.Context, ev lifecycle.Event) error {
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
		if reason := g.blocked(p); reason != "" {
			return g.skip(p, reason)
		}
		date := domain.AddDays(s.StartDate, -orDefault(g.Defaults.HardenOffLeadDays, 14))
		if !beforeSchedule(p, domain.ReasonTransplantOutside, date) {
			return g.skip(p, "not before transplant schedule")
		}
		return g.create(ctx, p, s.ID, date, date, "")
	case lifecycle.PlantScheduleDeleted:
		if ev.Schedule == nil || ev.Schedule.TaskType != domain.ReasonTransplantOutside {
			return nil
		}
		return g.deleteOpen(ctx, p.ID, sameSchedule(ev.Schedule.ID))
	case lifecycle.PlantingMethodChanged:
		if p.PlantingMethod == domain.SeedIndoors {
			return nil
		}
		return g.deleteOpen(ctx, p.ID, nil)
	case lifecycle.PlantHarvestCycleTransplanted, lifecycle.PlantHarvestCycleCompleted:
		return g.deleteOpen(ctx, p.ID, nil)
	case lifecycle.PlantHarvestCycleDeleted:
		return g.deleteAll(ctx, p.ID)
	}
	return nil
}

func (g hardenOff) onWorkLog(ctx context.Context, w domain.WorkLog) error {
	if w.Reason != domain.ReasonHardenOff {
		return nil
	}
	p, err := g.plantFromLog(ctx, w)
	if err != nil || p == nil {
		return err
	}
	if err := g.complete(ctx, p.ID, w.EventDateTime); err != nil {
		return err
	}
	if reason := g.blocked(p); reason != "" {
		return g.skip(p, reason)
	}
	next := domain.AddDays(w.EventDateTime, 1)
	if !beforeSchedule(p, domain.ReasonTransplantOutside, next) {
		return g.skip(p, "not before transplant schedule")
	}
	return g.create(ctx, p, "", next, next, "Last session logged on "+w.EventDateTime.Format(time.DateOnly))
}

func (g hardenOff) blocked(p *lifecycle.PlantHarvestCycle) string {
	switch {
	case p.PlantingMethod != domain.SeedIndoors:
		return "planting method"
	case p.TransplantDate != nil:
		return "already transplanted"
	case p.LastHarvestDate != nil:
		return "plant completed"
	}
	return ""
}
