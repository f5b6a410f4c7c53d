package generators

import (
	"context"
	"errors"
	"time"

	"growline/internal/domain"
	"growline/internal/events"
	"growline/internal/growth"
	"growline/internal/lifecycle"
)

// harvest opens a harvest window once the plant is in the ground: from
// T+min to T+min+max days, where T is the transplant date, or the germination
// date for direct seeded plants.
type harvest struct {
	base
}

func (g harvest) Topics() []string {
	return topics(
		lifecycle.PlantHarvestCycleTransplanted, lifecycle.PlantHarvestCycleGerminated,
		lifecycle.PlantHarvestCycleHarvested, lifecycle.PlantHarvestCycleCompleted,
		lifecycle.PlantHarvestCycleDeleted,
	)
}

func (g harvest) Handle(ctx context.Context, e events.Event) error {
	ev, ok := e.(lifecycle.Event)
	if !ok || ev.Plant == nil {
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
	case lifecycle.PlantHarvestCycleHarvested:
		return g.complete(ctx, p.ID, day(p.FirstHarvestDate))
	case lifecycle.PlantHarvestCycleCompleted:
		return g.deleteOpen(ctx, p.ID, nil)
	case lifecycle.PlantHarvestCycleDeleted:
		return g.deleteAll(ctx, p.ID)
	}
	return nil
}

func (g harvest) schedule(ctx context.Context, p *lifecycle.PlantHarvestCycle, from time.Time) error {
	switch {
	case p.FirstHarvestDate != nil:
		return g.skip(p, "already harvested")
	case p.LastHarvestDate != nil:
		return g.skip(p, "plant completed")
	}
	lo, hi, ok := g.maturity(ctx, p)
	if !ok {
		return g.skip(p, "no days to maturity")
	}
	start := domain.AddDays(from, lo)
	return g.create(ctx, p, "", start, domain.AddDays(start, hi), "")
}

// maturity prefers the variety's days to maturity and falls back to the plant's.
func (g harvest) maturity(ctx context.Context, p *lifecycle.PlantHarvestCycle) (lo, hi int, ok bool) {
	if g.Growth == nil {
		return 0, 0, false
	}
	if p.PlantVarietyID != "" {
		v, err := g.Growth.GetPlantVariety(ctx, p.PlantID, p.PlantVarietyID)
		switch {
		case err == nil && (v.DaysToMaturityMin > 0 || v.DaysToMaturityMax > 0):
			return max(v.DaysToMaturityMin, 0), max(v.DaysToMaturityMax, 0), true
		case err != nil && !errors.Is(err, growth.ErrNotFound):
			g.lookupFailed(ctx, p, "variety", err)
			return 0, 0, false
		}
	}
	plant, err := g.Growth.GetPlant(ctx, p.PlantID)
	if err != nil {
		g.lookupFailed(ctx, p, "plant", err)
		return 0, 0, false
	}
	if plant.DaysToMaturityMin <= 0 && plant.DaysToMaturityMax <= 0 {
		return 0, 0, false
	}
	return max(plant.DaysToMaturityMin, 0), max(plant.DaysToMaturityMax, 0), true
}
