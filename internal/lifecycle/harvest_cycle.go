package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"growline/internal/domain"
)

var (
	ErrInvalid           = errors.New("invalid harvest cycle command")
	ErrPlantNotFound     = errors.New("plant harvest cycle not found")
	ErrScheduleNotFound  = errors.New("plant schedule not found")
	ErrPlacementNotFound = errors.New("garden bed placement not found")
	ErrDuplicatePlant    = errors.New("plant already part of harvest cycle")
)

// HarvestCycle is one growing season. Every mutation goes through its methods
// so that changes are detected and recorded as events.
type HarvestCycle struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	StartDate time.Time            `json:"start_date" format:"date"`
	EndDate   *time.Time           `json:"end_date,omitempty" format:"date"`
	Notes     string               `json:"notes,omitempty"`
	OwnerID   string               `json:"owner_id,omitempty"`
	GardenID  string               `json:"garden_id,omitempty"`
	Version   int                  `json:"version"`
	Plants    []*PlantHarvestCycle `json:"plants"`

	outbox outbox
}

type NewHarvestCycle struct {
	ID        string
	Name      string
	StartDate time.Time
	Notes     string
	OwnerID   string
	GardenID  string
}

// CycleUpdate carries the full set of mutable cycle fields.
type CycleUpdate struct {
	Name      string
	StartDate time.Time
	EndDate   *time.Time
	Notes     string
	GardenID  string
}

// New creates a harvest cycle and records HarvestCycleCreated.
func New(n NewHarvestCycle) (*HarvestCycle, error) {
	if strings.TrimSpace(n.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if n.StartDate.IsZero() {
		return nil, fmt.Errorf("%w: start date is required", ErrInvalid)
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	c := &HarvestCycle{
		ID:        n.ID,
		Name:      strings.TrimSpace(n.Name),
		StartDate: domain.Day(n.StartDate),
		Notes:     n.Notes,
		OwnerID:   n.OwnerID,
		GardenID:  n.GardenID,
	}
	c.outbox.record(Event{Trigger: HarvestCycleCreated, Cycle: c})
	return c, nil
}

// Completed reports whether the cycle has an end date.
func (c *HarvestCycle) Completed() bool { return c.EndDate != nil }

// Values returns the current mutable fields, ready to be edited and passed to Update.
func (c *HarvestCycle) Values() CycleUpdate {
	return CycleUpdate{
		Name:      c.Name,
		StartDate: c.StartDate,
		EndDate:   c.EndDate,
		Notes:     c.Notes,
		GardenID:  c.GardenID,
	}
}

// Update applies u field by field. Setting an end date completes every plant
// that has no last harvest date yet.
func (c *HarvestCycle) Update(u CycleUpdate) error {
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if u.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalid)
	}
	if u.EndDate != nil && domain.Day(*u.EndDate).Before(domain.Day(u.StartDate)) {
		return fmt.Errorf("%w: end date before start date", ErrInvalid)
	}
	c.cycleChanged(CycleName, set(&c.Name, strings.TrimSpace(u.Name)))
	c.cycleChanged(CycleStartDate, setDay(&c.StartDate, u.StartDate))
	c.cycleChanged(CycleNotes, set(&c.Notes, u.Notes))
	c.cycleChanged(CycleGardenID, set(&c.GardenID, u.GardenID))
	if setDate(&c.EndDate, u.EndDate) {
		c.cycleChanged(CycleEndDate, true)
		if c.EndDate != nil {
			for _, p := range c.Plants {
				if p.LastHarvestDate == nil {
					end := *c.EndDate
					c.plantChanged(p, PlantLastHarvestDate, setDate(&p.LastHarvestDate, &end))
				}
			}
		}
	}
	return nil
}

// End sets the cycle end date.
func (c *HarvestCycle) End(date time.Time) error {
	u := c.Values()
	u.EndDate = &date
	return c.Update(u)
}

// Delete records deletion of every plant followed by the cycle itself.
func (c *HarvestCycle) Delete() {
	for _, p := range c.Plants {
		detached := *p
		c.outbox.record(Event{Trigger: PlantHarvestCycleDeleted, Cycle: c, Plant: &detached})
	}
	c.outbox.record(Event{Trigger: HarvestCycleDeleted, Cycle: c})
}

// Pending returns the events recorded since the last drain.
func (c *HarvestCycle) Pending() []Event {
	return append([]Event(nil), c.outbox.events...)
}

// DrainEvents hands over the recorded events stamped with at and empties the outbox.
func (c *HarvestCycle) DrainEvents(at time.Time) []Event {
	return c.outbox.drain(at)
}

// Plant looks up a plant by id.
func (c *HarvestCycle) Plant(id string) (*PlantHarvestCycle, bool) {
	for _, p := range c.Plants {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

func (c *HarvestCycle) plant(id string) (*PlantHarvestCycle, error) {
	p, ok := c.Plant(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlantNotFound, id)
	}
	return p, nil
}

func (c *HarvestCycle) cycleChanged(f CycleField, changed bool) {
	if !changed {
		return
	}
	c.outbox.record(Event{Trigger: cycleTrigger(c, f), Cycle: c})
}

func (c *HarvestCycle) plantChanged(p *PlantHarvestCycle, f PlantField, changed bool) {
	if !changed {
		return
	}
	c.outbox.record(Event{Trigger: plantTrigger(p, f), Cycle: c, Plant: p})
}
