package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"growline/internal/domain"
)

// PlantSchedule is a planned window for one kind of work on a plant.
type PlantSchedule struct {
	ID                  string        `json:"id"`
	PlantHarvestCycleID string        `json:"plant_harvest_cycle_id"`
	TaskType            domain.Reason `json:"task_type"`
	StartDate           time.Time     `json:"start_date" format:"date"`
	EndDate             time.Time     `json:"end_date" format:"date"`
	Notes               string        `json:"notes,omitempty"`
	IsSystemGenerated   bool          `json:"is_system_generated"`
}

// GardenBedPlantHarvestCycle places some of a plant's stock in a garden bed.
type GardenBedPlantHarvestCycle struct {
	ID                  string     `json:"id"`
	PlantHarvestCycleID string     `json:"plant_harvest_cycle_id"`
	GardenID            string     `json:"garden_id"`
	GardenBedID         string     `json:"garden_bed_id"`
	NumberOfPlants      int        `json:"number_of_plants"`
	StartDate           time.Time  `json:"start_date" format:"date"`
	EndDate             *time.Time `json:"end_date,omitempty" format:"date"`
	Notes               string     `json:"notes,omitempty"`
}

type NewSchedule struct {
	ID                string
	TaskType          domain.Reason
	StartDate         time.Time
	EndDate           time.Time
	Notes             string
	IsSystemGenerated bool
}

type ScheduleUpdate struct {
	StartDate time.Time
	EndDate   time.Time
	Notes     string
}

type NewPlacement struct {
	ID             string
	GardenID       string
	GardenBedID    string
	NumberOfPlants int
	StartDate      time.Time
	EndDate        *time.Time
	Notes          string
}

func validWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: schedule window requires start and end", ErrInvalid)
	}
	if domain.Day(end).Before(domain.Day(start)) {
		return fmt.Errorf("%w: schedule ends before it starts", ErrInvalid)
	}
	return nil
}

// AddSchedule attaches a schedule to a plant.
func (c *HarvestCycle) AddSchedule(plantID string, n NewSchedule) (*PlantSchedule, error) {
	p, err := c.plant(plantID)
	if err != nil {
		return nil, err
	}
	if !n.TaskType.IsTaskType() {
		return nil, fmt.Errorf("%w: task type %q", ErrInvalid, n.TaskType)
	}
	if err := validWindow(n.StartDate, n.EndDate); err != nil {
		return nil, err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	s := &PlantSchedule{
		ID:                  n.ID,
		PlantHarvestCycleID: p.ID,
		TaskType:            n.TaskType,
		StartDate:           domain.Day(n.StartDate),
		EndDate:             domain.Day(n.EndDate),
		Notes:               n.Notes,
		IsSystemGenerated:   n.IsSystemGenerated,
	}
	p.Schedules = append(p.Schedules, s)
	c.outbox.record(Event{Trigger: PlantScheduleCreated, Cycle: c, Plant: p, Schedule: s})
	return s, nil
}

// UpdateSchedule moves a schedule window or edits its notes.
func (c *HarvestCycle) UpdateSchedule(plantID, scheduleID string, u ScheduleUpdate) error {
	p, err := c.plant(plantID)
	if err != nil {
		return err
	}
	s, ok := p.Schedule(scheduleID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, scheduleID)
	}
	if err := validWindow(u.StartDate, u.EndDate); err != nil {
		return err
	}
	start := setDay(&s.StartDate, u.StartDate)
	end := setDay(&s.EndDate, u.EndDate)
	notes := set(&s.Notes, u.Notes)
	if start || end || notes {
		c.outbox.record(Event{Trigger: PlantScheduleUpdated, Cycle: c, Plant: p, Schedule: s})
	}
	return nil
}

// DeleteSchedule removes a schedule from a plant.
func (c *HarvestCycle) DeleteSchedule(plantID, scheduleID string) error {
	p, err := c.plant(plantID)
	if err != nil {
		return err
	}
	for i, s := range p.Schedules {
		if s.ID != scheduleID {
			continue
		}
		p.Schedules = append(p.Schedules[:i:i], p.Schedules[i+1:]...)
		detached := *s
		c.outbox.record(Event{Trigger: PlantScheduleDeleted, Cycle: c, Plant: p, Schedule: &detached})
		return nil
	}
	return fmt.Errorf("%w: %s", ErrScheduleNotFound, scheduleID)
}

// ReplaceSystemSchedules drops every system generated schedule of the plant and
// adds the given ones. Deletions are recorded before creations.
func (c *HarvestCycle) ReplaceSystemSchedules(plantID string, schedules []NewSchedule) error {
	p, err := c.plant(plantID)
	if err != nil {
		return err
	}
	for _, n := range schedules {
		if !n.TaskType.IsTaskType() {
			return fmt.Errorf("%w: task type %q", ErrInvalid, n.TaskType)
		}
		if err := validWindow(n.StartDate, n.EndDate); err != nil {
			return err
		}
	}
	var system []string
	for _, s := range p.Schedules {
		if s.IsSystemGenerated {
			system = append(system, s.ID)
		}
	}
	for _, id := range system {
		if err := c.DeleteSchedule(plantID, id); err != nil {
			return err
		}
	}
	for _, n := range schedules {
		n.IsSystemGenerated = true
		if _, err := c.AddSchedule(plantID, n); err != nil {
			return err
		}
	}
	return nil
}

// ChangePlantingMethod switches the method and rebuilds the system schedules in one step.
func (c *HarvestCycle) ChangePlantingMethod(plantID string, method domain.PlantingMethod, schedules []NewSchedule) error {
	p, err := c.plant(plantID)
	if err != nil {
		return err
	}
	u := p.Values()
	u.PlantingMethod = method
	if err := c.UpdatePlant(plantID, u); err != nil {
		return err
	}
	return c.ReplaceSystemSchedules(plantID, schedules)
}

// AddPlacement puts part of a plant in a garden bed.
func (c *HarvestCycle) AddPlacement(plantID string, n NewPlacement) (*GardenBedPlantHarvestCycle, error) {
	p, err := c.plant(plantID)
	if err != nil {
		return nil, err
	}
	if n.GardenBedID == "" {
		return nil, fmt.Errorf("%w: garden bed id is required", ErrInvalid)
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	b := &GardenBedPlantHarvestCycle{
		ID:                  n.ID,
		PlantHarvestCycleID: p.ID,
		GardenID:            n.GardenID,
		GardenBedID:         n.GardenBedID,
		NumberOfPlants:      n.NumberOfPlants,
		StartDate:           domain.Day(n.StartDate),
		Notes:               n.Notes,
	}
	setDate(&b.EndDate, n.EndDate)
	p.Placements = append(p.Placements, b)
	c.outbox.record(Event{Trigger: GardenBedPlantHarvestCycleCreated, Cycle: c, Plant: p, Placement: b})
	return b, nil
}

// UpdatePlacement replaces the mutable placement fields.
func (c *HarvestCycle) UpdatePlacement(plantID, placementID string, n NewPlacement) error {
	p, err := c.plant(plantID)
	if err != nil {
		return err
	}
	for _, b := range p.Placements {
		if b.ID != placementID {
			continue
		}
		changed := set(&b.GardenID, n.GardenID)
		changed = set(&b.GardenBedID, n.GardenBedID) || changed
		changed = set(&b.NumberOfPlants, n.NumberOfPlants) || changed
		changed = setDay(&b.StartDate, n.StartDate) || changed
		changed = setDate(&b.EndDate, n.EndDate) || changed
		changed = set(&b.Notes, n.Notes) || changed
		if changed {
			c.outbox.record(Event{Trigger: GardenBedPlantHarvestCycleUpdated, Cycle: c, Plant: p, Placement: b})
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPlacementNotFound, placementID)
}

// DeletePlacement removes a placement.
func (c *HarvestCycle) DeletePlacement(plantID, placementID string) error {
	p, err := c.plant(plantID)
	if err != nil {
		return err
	}
	for i, b := range p.Placements {
		if b.ID != placementID {
			continue
		}
		p.Placements = append(p.Placements[:i:i], p.Placements[i+1:]...)
		detached := *b
		c.outbox.record(Event{Trigger: GardenBedPlantHarvestCycleDeleted, Cycle: c, Plant: p, Placement: &detached})
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPlacementNotFound, placementID)
}
