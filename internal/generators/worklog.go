package generators

import (
	"context"
	"fmt"
	"strings"
	"time"

	"growline/internal/domain"
	"growline/internal/events"
	"growline/internal/lifecycle"
)

// workLogWriter records lifecycle milestones in the plant's history.
type workLogWriter struct {
	Deps
}

func (workLogWriter) Name() string { return "work-log" }

func (workLogWriter) Topics() []string {
	return topics(
		lifecycle.PlantHarvestCycleSeeded, lifecycle.PlantHarvestCycleGerminated,
		lifecycle.PlantHarvestCycleTransplanted, lifecycle.PlantHarvestCycleHarvested,
		lifecycle.PlantHarvestCycleCompleted,
	)
}

func (g workLogWriter) Handle(ctx context.Context, e events.Event) error {
	ev, ok := e.(lifecycle.Event)
	if !ok || ev.Plant == nil {
		return nil
	}
	reason, at, text, ok := narrate(ev.Trigger, ev.Plant)
	if !ok {
		return nil
	}
	related := []domain.RelatedEntity{}
	if ev.Cycle != nil {
		related = append(related, domain.RelatedEntity{EntityType: domain.EntityHarvestCycle, EntityID: ev.Cycle.ID, EntityName: ev.Cycle.Name})
	}
	related = append(related,
		domain.RelatedEntity{EntityType: domain.EntityPlantHarvestCycle, EntityID: ev.Plant.ID, EntityName: ev.Plant.DisplayName()},
		domain.RelatedEntity{EntityType: domain.EntityPlant, EntityID: ev.Plant.PlantID, EntityName: ev.Plant.PlantName},
	)
	if _, err := g.WorkLogs.CreateWorkLog(ctx, domain.CreateWorkLogCommand{
		Reason:          reason,
		EventDateTime:   at,
		Log:             text,
		RelatedEntities: related,
	}); err != nil {
		return fmt.Errorf("work-log: %w", err)
	}
	return nil
}

// narrate builds the history entry for a milestone. ok is false when the
// milestone needs no entry.
func narrate(tr lifecycle.Trigger, p *lifecycle.PlantHarvestCycle) (reason domain.Reason, at time.Time, text string, ok bool) {
	name := p.DisplayName()
	var b strings.Builder
	switch tr {
	case lifecycle.PlantHarvestCycleSeeded:
		if p.SeedingDate == nil {
			return "", at, "", false
		}
		at = *p.SeedingDate
		// Transplanting plants carry no sowing location.
		where := ""
		switch p.PlantingMethod {
		case domain.SeedIndoors:
			reason, where = domain.ReasonSowIndoors, " indoors"
		case domain.DirectSeed:
			reason, where = domain.ReasonSowOutside, " outside"
		default:
			reason = domain.ReasonInformation
		}
		if p.NumberOfSeeds > 0 {
			fmt.Fprintf(&b, "Sowed %d %s seeds%s on %s", p.NumberOfSeeds, name, where, dateText(at))
		} else {
			fmt.Fprintf(&b, "Sowed %s seeds%s on %s", name, where, dateText(at))
		}
		if p.SeedVendorName != "" {
			fmt.Fprintf(&b, " (seeds from %s)", p.SeedVendorName)
		}
	case lifecycle.PlantHarvestCycleGerminated:
		if p.GerminationDate == nil {
			return "", at, "", false
		}
		at, reason = *p.GerminationDate, domain.ReasonInformation
		fmt.Fprintf(&b, "%s germinated on %s", name, dateText(at))
		if p.GerminationRate > 0 {
			fmt.Fprintf(&b, " with a %.0f%% germination rate", p.GerminationRate)
		}
	case lifecycle.PlantHarvestCycleTransplanted:
		if p.TransplantDate == nil {
			return "", at, "", false
		}
		at, reason = *p.TransplantDate, domain.ReasonTransplantOutside
		if p.NumberOfTransplants > 0 {
			fmt.Fprintf(&b, "Transplanted %d %s plants outside on %s", p.NumberOfTransplants, name, dateText(at))
		} else {
			fmt.Fprintf(&b, "Transplanted %s outside on %s", name, dateText(at))
		}
	case lifecycle.PlantHarvestCycleHarvested:
		if p.FirstHarvestDate == nil {
			return "", at, "", false
		}
		at, reason = *p.FirstHarvestDate, domain.ReasonHarvest
		fmt.Fprintf(&b, "First harvest of %s on %s", name, dateText(at))
	case lifecycle.PlantHarvestCycleCompleted:
		if p.LastHarvestDate == nil {
			return "", at, "", false
		}
		if p.FirstHarvestDate != nil && domain.SameDay(*p.FirstHarvestDate, *p.LastHarvestDate) {
			return "", at, "", false
		}
		at, reason = *p.LastHarvestDate, domain.ReasonHarvest
		fmt.Fprintf(&b, "Finished harvesting %s on %s", name, dateText(at))
		var totals []string
		if p.TotalWeightInPounds > 0 {
			totals = append(totals, fmt.Sprintf("%.2f lb", p.TotalWeightInPounds))
		}
		if p.TotalItems > 0 {
			totals = append(totals, fmt.Sprintf("%d items", p.TotalItems))
		}
		if len(totals) > 0 {
			fmt.Fprintf(&b, ", %s in total", strings.Join(totals, " and "))
		}
	default:
		return "", at, "", false
	}
	b.WriteString(".")
	return reason, at, b.String(), true
}

func dateText(t time.Time) string {
	return t.Format("Jan 2, 2006")
}
