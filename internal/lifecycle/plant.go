package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"growline/internal/domain"
)

// PlantHarvestCycle is one plant (and optional variety) grown in a cycle.
type PlantHarvestCycle struct {
	ID                  string                        `json:"id"`
	HarvestCycleID      string                        `json:"harvest_cycle_id"`
	PlantID             string                        `json:"plant_id"`
	PlantName           string                        `json:"plant_name"`
	PlantVarietyID      string                        `json:"plant_variety_id,omitempty"`
	PlantVarietyName    string                        `json:"plant_variety_name,omitempty"`
	GrowInstructionID   string                        `json:"grow_instruction_id,omitempty"`
	GrowInstructionName string                        `json:"grow_instruction_name,omitempty"`
	SeedVendorID        string                        `json:"seed_vendor_id,omitempty"`
	SeedVendorName      string                        `json:"seed_vendor_name,omitempty"`
	PlantingMethod      domain.PlantingMethod         `json:"planting_method"`
	SeedingDate         *time.Time                    `json:"seeding_date,omitempty" format:"date"`
	NumberOfSeeds       int                           `json:"number_of_seeds,omitempty"`
	GerminationDate     *time.Time                    `json:"germination_date,omitempty" format:"date"`
	GerminationRate     float64                       `json:"germination_rate,omitempty"`
	TransplantDate      *time.Time                    `json:"transplant_date,omitempty" format:"date"`
	NumberOfTransplants int                           `json:"number_of_transplants,omitempty"`
	FirstHarvestDate    *time.Time                    `json:"first_harvest_date,omitempty" format:"date"`
	LastHarvestDate     *time.Time                    `json:"last_harvest_date,omitempty" format:"date"`
	TotalWeightInPounds float64                       `json:"total_weight_in_pounds,omitempty"`
	TotalItems          int                           `json:"total_items,omitempty"`
	SpacingInInches     int                           `json:"spacing_in_inches,omitempty"`
	Notes               string                        `json:"notes,omitempty"`
	Schedules           []*PlantSchedule              `json:"schedules"`
	Placements          []*GardenBedPlantHarvestCycle `json:"placements"`
}

type NewPlant struct {
	ID                  string
	PlantID             string
	PlantName           string
	PlantVarietyID      string
	PlantVarietyName    string
	GrowInstructionID   string
	GrowInstructionName string
	SeedVendorID        string
	SeedVendorName      string
	PlantingMethod      domain.PlantingMethod
	SpacingInInches     int
	Notes               string
}

// PlantUpdate carries the full set of mutable plant fields.
type PlantUpdate struct {
	PlantingMethod      domain.PlantingMethod
	SeedingDate         *time.Time
	NumberOfSeeds       int
	GerminationDate     *time.Time
	GerminationRate     float64
	TransplantDate      *time.Time
	NumberOfTransplants int
	FirstHarvestDate    *time.Time
	LastHarvestDate     *time.Time
	TotalWeightInPounds float64
	TotalItems          int
	SpacingInInches     int
	GrowInstructionID   string
	GrowInstructionName string
	SeedVendorID        string
	SeedVendorName      string
	Notes               string
}

// DisplayName is the variety and plant name, e.g. "Cherokee Purple Tomato".
func (p *PlantHarvestCycle) DisplayName() string {
	if p.PlantVarietyName == "" {
		return p.PlantName
	}
	return p.PlantVarietyName + " " + p.PlantName
}

// Values returns the current mutable fields.
func (p *PlantHarvestCycle) Values() PlantUpdate {
	return PlantUpdate{
		PlantingMethod:      p.PlantingMethod,
		SeedingDate:         p.SeedingDate,
		NumberOfSeeds:       p.NumberOfSeeds,
		GerminationDate:     p.GerminationDate,
		GerminationRate:     p.GerminationRate,
		TransplantDate:      p.TransplantDate,
		NumberOfTransplants: p.NumberOfTransplants,
		FirstHarvestDate:    p.FirstHarvestDate,
		LastHarvestDate:     p.LastHarvestDate,
		TotalWeightInPounds: p.TotalWeightInPounds,
		TotalItems:          p.TotalItems,
		SpacingInInches:     p.SpacingInInches,
		GrowInstructionID:   p.GrowInstructionID,
		GrowInstructionName: p.GrowInstructionName,
		SeedVendorID:        p.SeedVendorID,
		SeedVendorName:      p.SeedVendorName,
		Notes:               p.Notes,
	}
}

// Schedule looks up a schedule by id.
func (p *PlantHarvestCycle) Schedule(id string) (*PlantSchedule, bool) {
	for _, s := range p.Schedules {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// EarliestSchedule returns the soonest start among schedules of the given type.
func (p *PlantHarvestCycle) EarliestSchedule(t domain.Reason) (time.Time, bool) {
	var (
		start time.Time
		found bool
	)
	for _, s := range p.Schedules {
		if s.TaskType != t {
			continue
		}
		if !found || s.StartDate.Before(start) {
			start = s.StartDate
			found = true
		}
	}
	return start, found
}

// AddPlant adds a plant to the cycle. A plant and variety pair may appear once.
func (c *HarvestCycle) AddPlant(n NewPlant) (*PlantHarvestCycle, error) {
	if strings.TrimSpace(n.PlantID) == "" {
		return nil, fmt.Errorf("%w: plant id is required", ErrInvalid)
	}
	if !n.PlantingMethod.Valid() {
		return nil, fmt.Errorf("%w: planting method %q", ErrInvalid, n.PlantingMethod)
	}
	for _, p := range c.Plants {
		if p.PlantID == n.PlantID && p.PlantVarietyID == n.PlantVarietyID {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlant, n.PlantID)
		}
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	p := &PlantHarvestCycle{
		ID:                  n.ID,
		HarvestCycleID:      c.ID,
		PlantID:             n.PlantID,
		PlantName:           n.PlantName,
		PlantVarietyID:      n.PlantVarietyID,
		PlantVarietyName:    n.PlantVarietyName,
		GrowInstructionID:   n.GrowInstructionID,
		GrowInstructionName: n.GrowInstructionName,
		SeedVendorID:        n.SeedVendorID,
		SeedVendorName:      n.SeedVendorName,
		PlantingMethod:      n.PlantingMethod,
		SpacingInInches:     n.SpacingInInches,
		Notes:               n.Notes,
	}
	c.Plants = append(c.Plants, p)
	c.outbox.record(Event{Trigger: PlantAddedToHarvestCycle, Cycle: c, Plant: p})
	return p, nil
}

// UpdatePlant applies u field by field, recording one transition per changed milestone.
func (c *HarvestCycle) UpdatePlant(id string, u PlantUpdate) error {
	p, err := c.plant(id)
	if err != nil {
		return err
	}
	if !u.PlantingMethod.Valid() {
		return fmt.Errorf("%w: planting method %q", ErrInvalid, u.PlantingMethod)
	}
	if u.GerminationRate < 0 || u.GerminationRate > 100 {
		return fmt.Errorf("%w: germination rate must be between 0 and 100", ErrInvalid)
	}
	c.plantChanged(p, PlantPlantingMethod, set(&p.PlantingMethod, u.PlantingMethod))
	c.plantChanged(p, PlantSeedingDate, setDate(&p.SeedingDate, u.SeedingDate))
	c.plantChanged(p, PlantNumberOfSeeds, set(&p.NumberOfSeeds, u.NumberOfSeeds))
	c.plantChanged(p, PlantGerminationDate, setDate(&p.GerminationDate, u.GerminationDate))
	c.plantChanged(p, PlantGerminationRate, set(&p.GerminationRate, u.GerminationRate))
	c.plantChanged(p, PlantTransplantDate, setDate(&p.TransplantDate, u.TransplantDate))
	c.plantChanged(p, PlantNumberOfTransplants, set(&p.NumberOfTransplants, u.NumberOfTransplants))
	c.plantChanged(p, PlantFirstHarvestDate, setDate(&p.FirstHarvestDate, u.FirstHarvestDate))
	c.plantChanged(p, PlantLastHarvestDate, setDate(&p.LastHarvestDate, u.LastHarvestDate))
	c.plantChanged(p, PlantTotalWeight, set(&p.TotalWeightInPounds, u.TotalWeightInPounds))
	c.plantChanged(p, PlantTotalItems, set(&p.TotalItems, u.TotalItems))
	c.plantChanged(p, PlantSpacing, set(&p.SpacingInInches, u.SpacingInInches))
	instrID := set(&p.GrowInstructionID, u.GrowInstructionID)
	instrName := set(&p.GrowInstructionName, u.GrowInstructionName)
	c.plantChanged(p, PlantGrowInstruction, instrID || instrName)
	vendorID := set(&p.SeedVendorID, u.SeedVendorID)
	vendorName := set(&p.SeedVendorName, u.SeedVendorName)
	c.plantChanged(p, PlantSeedVendor, vendorID || vendorName)
	c.plantChanged(p, PlantNotes, set(&p.Notes, u.Notes))
	return nil
}

// MarkSeeded records the seeding date and, when positive, the seed count.
func (c *HarvestCycle) MarkSeeded(id string, date time.Time, seeds int) error {
	return c.mark(id, func(u *PlantUpdate) {
		u.SeedingDate = &date
		if seeds > 0 {
			u.NumberOfSeeds = seeds
		}
	})
}

// MarkGerminated records the germination date and, when positive, the rate in percent.
func (c *HarvestCycle) MarkGerminated(id string, date time.Time, rate float64) error {
	return c.mark(id, func(u *PlantUpdate) {
		u.GerminationDate = &date
		if rate > 0 {
			u.GerminationRate = rate
		}
	})
}

// MarkTransplanted records the transplant date and, when positive, the transplant count.
func (c *HarvestCycle) MarkTransplanted(id string, date time.Time, count int) error {
	return c.mark(id, func(u *PlantUpdate) {
		u.TransplantDate = &date
		if count > 0 {
			u.NumberOfTransplants = count
		}
	})
}

// MarkHarvested records the first harvest date.
func (c *HarvestCycle) MarkHarvested(id string, date time.Time) error {
	return c.mark(id, func(u *PlantUpdate) {
		u.FirstHarvestDate = &date
	})
}

// MarkCompleted records the last harvest date and the harvest totals.
func (c *HarvestCycle) MarkCompleted(id string, date time.Time, weight float64, items int) error {
	return c.mark(id, func(u *PlantUpdate) {
		u.LastHarvestDate = &date
		if weight > 0 {
			u.TotalWeightInPounds = weight
		}
		if items > 0 {
			u.TotalItems = items
		}
	})
}

func (c *HarvestCycle) mark(id string, edit func(*PlantUpdate)) error {
	p, err := c.plant(id)
	if err != nil {
		return err
	}
	u := p.Values()
	edit(&u)
	return c.UpdatePlant(id, u)
}

// DeletePlant removes a plant with its schedules and placements.
func (c *HarvestCycle) DeletePlant(id string) error {
	for i, p := range c.Plants {
		if p.ID != id {
			continue
		}
		c.Plants = append(c.Plants[:i:i], c.Plants[i+1:]...)
		detached := *p
		c.outbox.record(Event{Trigger: PlantHarvestCycleDeleted, Cycle: c, Plant: &detached})
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPlantNotFound, id)
}
