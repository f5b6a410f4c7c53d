package lifecycle

import (
	"time"

	"growline/internal/domain"
)

// CycleField identifies a mutable HarvestCycle field.
type CycleField int

const (
	CycleName CycleField = iota + 1
	CycleStartDate
	CycleEndDate
	CycleNotes
	CycleGardenID
)

// PlantField identifies a mutable PlantHarvestCycle field.
type PlantField int

const (
	PlantPlantingMethod PlantField = iota + 1
	PlantSeedingDate
	PlantNumberOfSeeds
	PlantGerminationDate
	PlantGerminationRate
	PlantTransplantDate
	PlantNumberOfTransplants
	PlantFirstHarvestDate
	PlantLastHarvestDate
	PlantTotalWeight
	PlantTotalItems
	PlantSpacing
	PlantGrowInstruction
	PlantSeedVendor
	PlantNotes
)

func cycleTrigger(c *HarvestCycle, f CycleField) Trigger {
	switch f {
	case CycleEndDate:
		if c.EndDate != nil {
			return HarvestCycleCompleted
		}
	case CycleName, CycleStartDate, CycleNotes, CycleGardenID:
	}
	return HarvestCycleUpdated
}

// plantTrigger maps a changed field to its transition. Milestones cleared back
// to empty are ordinary updates.
func plantTrigger(p *PlantHarvestCycle, f PlantField) Trigger {
	switch f {
	case PlantPlantingMethod:
		return PlantingMethodChanged
	case PlantSeedingDate:
		if p.SeedingDate != nil {
			return PlantHarvestCycleSeeded
		}
	case PlantGerminationDate:
		if p.GerminationDate != nil {
			return PlantHarvestCycleGerminated
		}
	case PlantTransplantDate:
		if p.TransplantDate != nil {
			return PlantHarvestCycleTransplanted
		}
	case PlantFirstHarvestDate:
		if p.FirstHarvestDate != nil {
			return PlantHarvestCycleHarvested
		}
	case PlantLastHarvestDate:
		if p.LastHarvestDate != nil {
			return PlantHarvestCycleCompleted
		}
	}
	return PlantHarvestCycleUpdated
}

func set[T comparable](dst *T, v T) bool {
	if *dst == v {
		return false
	}
	*dst = v
	return true
}

func setDay(dst *time.Time, v time.Time) bool {
	v = domain.Day(v)
	if dst.Equal(v) {
		return false
	}
	*dst = v
	return true
}

func setDate(dst **time.Time, v *time.Time) bool {
	if v != nil {
		d := domain.Day(*v)
		v = &d
	}
	switch {
	case *dst == nil && v == nil:
		return false
	case *dst != nil && v != nil && (*dst).Equal(*v):
		return false
	}
	*dst = v
	return true
}
