package generators

import (
	"context"
	"time"

	"growline/internal/domain"
	"growline/internal/events"
	"growline/internal/lifecycle"
)

// fertilizeIndoors feeds seedlings between germination and transplanting.
type fertilizeIndoors struct {
	base
}

func (g fertilizeIndoors) Topics() []string {
	return append(topics(
		lifecycle.PlantHarvestCycleGerminated, lifecycle.PlantHarvestCycleTransplanted,
		lifecycle.PlantHarvestCycleCompleted, lifecycle.PlantHarvestCycleDeleted,
	), domain.TopicWorkLogRecorded)
}

func (g fertilizeIndoors) Handle(ctx context.Context, e events.Event) error {
	switch ev := e.(type) {
	case domain.WorkLogRecorded:
		if ev.WorkLog.Reason != domain.ReasonFertilizeIndoors {
			return nil
		}
		p, err := g.plantFromLog(ctx, ev.WorkLog)
		if err != nil || p == nil {
			return err
		}
		if err := g.complete(ctx, p.ID, ev.WorkLog.EventDateTime); err != nil {
			return err
		}
		return g.schedule(ctx, p, ev.WorkLog.EventDateTime)
	case lifecycle.Event:
		if ev.Plant == nil {
			return nil
		}
		p := ev.Plant
		switch ev.Trigger {
		case lifecycle.PlantHarvestCycleGerminated:
			return g.schedule(ctx, p, day(p.GerminationDate))
		case lifecycle.PlantHarvestCycleTransplanted, lifecycle.PlantHarvestCycleCompleted:
			return g.deleteOpen(ctx, p.ID, nil)
		case lifecycle.PlantHarvestCycleDeleted:
			return g.deleteAll(ctx, p.ID)
		}
	}
	return nil
}

func (g fertilizeIndoors) schedule(ctx context.Context, p *lifecycle.PlantHarvestCycle, from time.Time) error {
	switch {
	case p.PlantingMethod != domain.SeedIndoors:
		return g.skip(p, "planting method")
	case p.TransplantDate != nil:
		return g.skip(p, "already transplanted")
	case p.LastHarvestDate != nil:
		return g.skip(p, "plant completed")
	}
	weeks := orDefault(g.Defaults.SeedlingFertilizeFrequencyWeeks, 5)
	var notes string
	if p.GrowInstructionID != "" {
		gi, ok := g.instruction(ctx, p)
		if !ok {
			return g.skip(p, "grow instruction unavailable")
		}
		weeks = orDefault(gi.FertilizerForSeedlingsFrequencyInWeeks, weeks)
		notes = fertilizerNote(gi.FertilizerForSeedlings)
	}
	date := domain.AddDays(from, 7*weeks)
	if !beforeSchedule(p, domain.ReasonTransplantOutside, date) {
		return g.skip(p, "not before transplant schedule")
	}
	return g.create(ctx, p, "", date, date, notes)
}

// fertilizeOutside feeds plants in the ground until harvest starts.
type fertilizeOutside struct {
	base
}

func (g fertilizeOutside) Topics() []string {
	return append(topics(
		lifecycle.PlantHarvestCycleGerminated, lifecycle.PlantHarvestCycleTransplanted,
		lifecycle.PlantHarvestCycleCompleted, lifecycle.PlantHarvestCycleDeleted,
	), domain.TopicWorkLogRecorded)
}

func (g fertilizeOutside) Handle(ctx context.Context, e events.Event) error {
	switch ev := e.(type) {
	case domain.WorkLogRecorded:
		if ev.WorkLog.Reason != domain.ReasonFertilizeOutside {
			return nil
		}
		p, err := g.plantFromLog(ctx, ev.WorkLog)
		if err != nil || p == nil {
			return err
		}
		if err := g.complete(ctx, p.ID, ev.WorkLog.EventDateTime); err != nil {
			return err
		}
		return g.schedule(ctx, p, ev.WorkLog.EventDateTime)
	case lifecycle.Event:
		if ev.Plant == nil {
			return nil
		}
		p := ev.Plant
		switch ev.Trigger {
		case lifecycle.PlantHarvestCycleTransplanted:
			if p.PlantingMethod == domain.DirectSeed {
				return nil
			}
			return g.schedule(ctx, p, day(p.TransplantDate))
		case lifecycle.PlantHarvestCycleGerminated:
			if p.PlantingMethod != domain.DirectSeed {
				return nil
			}
			return g.schedule(ctx, p, day(p.GerminationDate))
		case lifecycle.PlantHarvestCycleCompleted:
			return g.deleteOpen(ctx, p.ID, nil)
		case lifecycle.PlantHarvestCycleDeleted:
			return g.deleteAll(ctx, p.ID)
		}
	}
	return nil
}

func (g fertilizeOutside) schedule(ctx context.Context, p *lifecycle.PlantHarvestCycle, from time.Time) error {
	if p.LastHarvestDate != nil {
		return g.skip(p, "plant completed")
	}
	weeks := orDefault(g.Defaults.FertilizeFrequencyWeeks, 3)
	var notes string
	if p.GrowInstructionID != "" {
		gi, ok := g.instruction(ctx, p)
		if !ok {
			return g.skip(p, "grow instruction unavailable")
		}
		weeks = orDefault(gi.FertilizeFrequencyInWeeks, weeks)
		notes = fertilizerNote(gi.Fertilizer)
	}
	date := domain.AddDays(from, 7*weeks)
	if !beforeSchedule(p, domain.ReasonHarvest, date) {
		return g.skip(p, "not before harvest schedule")
	}
	return g.create(ctx, p, "", date, date, notes)
}

func fertilizerNote(fertilizer string) string {
	if fertilizer == "" {
		return ""
	}
	return "Use " + fertilizer
}
