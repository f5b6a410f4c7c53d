package generators

import (
	"context"

	"growline/internal/domain"
	"growline/internal/events"
	"growline/internal/lifecycle"
)

// germinate reminds the gardener to record germination within the sprouting window.
type germinate struct {
	base
}

func (g germinate) Topics() []string {
	return topics(
		lifecycle.PlantHarvestCycleSeeded, lifecycle.PlantHarvestCycleGerminated,
		lifecycle.PlantHarvestCycleCompleted, lifecycle.PlantHarvestCycleDeleted,
	)
}

func (g germinate) Handle(ctx context.Context, e events.Event) error {
	ev, ok := e.(lifecycle.Event)
	if !ok || ev.Plant == nil {
		return nil
	}
	p := ev.Plant
	switch ev.Trigger {
	case lifecycle.PlantHarvestCycleSeeded:
		switch {
		case p.GerminationDate != nil:
			return g.skip(p, "already germinated")
		case p.LastHarvestDate != nil:
			return g.skip(p, "plant completed")
		}
		gi, ok := g.instruction(ctx, p)
		if !ok {
			return g.skip(p, "no grow instruction")
		}
		lo := orDefault(gi.DaysToSproutMin, orDefault(g.Defaults.DaysToSproutMin, 7))
		hi := orDefault(gi.DaysToSproutMax, orDefault(g.Defaults.DaysToSproutMax, 14))
		if hi < lo {
			hi = lo
		}
		seeded := day(p.SeedingDate)
		return g.create(ctx, p, "", domain.AddDays(seeded, lo), domain.AddDays(seeded, hi), "")
	case lifecycle.PlantHarvestCycleGerminated:
		return g.complete(ctx, p.ID, day(p.GerminationDate))
	case lifecycle.PlantHarvestCycleCompleted:
		return g.deleteOpen(ctx, p.ID, nil)
	case lifecycle.PlantHarvestCycleDeleted:
		return g.deleteAll(ctx, p.ID)
	}
	return nil
}
