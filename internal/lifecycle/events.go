package lifecycle

import "time"

// Trigger names a lifecycle transition. It doubles as the dispatch topic.
type Trigger string

const (
	HarvestCycleCreated   Trigger = "HarvestCycleCreated"
	HarvestCycleUpdated   Trigger = "HarvestCycleUpdated"
	HarvestCycleCompleted Trigger = "HarvestCycleCompleted"
	HarvestCycleDeleted   Trigger = "HarvestCycleDeleted"

	PlantAddedToHarvestCycle      Trigger = "PlantAddedToHarvestCycle"
	PlantingMethodChanged         Trigger = "PlantingMethodChanged"
	PlantHarvestCycleSeeded       Trigger = "PlantHarvestCycleSeeded"
	PlantHarvestCycleGerminated   Trigger = "PlantHarvestCycleGerminated"
	PlantHarvestCycleTransplanted Trigger = "PlantHarvestCycleTransplanted"
	PlantHarvestCycleHarvested    Trigger = "PlantHarvestCycleHarvested"
	PlantHarvestCycleCompleted    Trigger = "PlantHarvestCycleCompleted"
	PlantHarvestCycleUpdated      Trigger = "PlantHarvestCycleUpdated"
	PlantHarvestCycleDeleted      Trigger = "PlantHarvestCycleDeleted"

	PlantScheduleCreated Trigger = "PlantScheduleCreated"
	PlantScheduleUpdated Trigger = "PlantScheduleUpdated"
	PlantScheduleDeleted Trigger = "PlantScheduleDeleted"

	GardenBedPlantHarvestCycleCreated Trigger = "GardenBedPlantHarvestCycleCreated"
	GardenBedPlantHarvestCycleUpdated Trigger = "GardenBedPlantHarvestCycleUpdated"
	GardenBedPlantHarvestCycleDeleted Trigger = "GardenBedPlantHarvestCycleDeleted"
)

// Triggers lists every trigger the aggregate can record.
var Triggers = []Trigger{
	HarvestCycleCreated, HarvestCycleUpdated, HarvestCycleCompleted, HarvestCycleDeleted,
	PlantAddedToHarvestCycle, PlantingMethodChanged,
	PlantHarvestCycleSeeded, PlantHarvestCycleGerminated, PlantHarvestCycleTransplanted,
	PlantHarvestCycleHarvested, PlantHarvestCycleCompleted, PlantHarvestCycleUpdated, PlantHarvestCycleDeleted,
	PlantScheduleCreated, PlantScheduleUpdated, PlantScheduleDeleted,
	GardenBedPlantHarvestCycleCreated, GardenBedPlantHarvestCycleUpdated, GardenBedPlantHarvestCycleDeleted,
}

// Event is a recorded transition plus the entity it affected. Cycle is the
// aggregate as committed. For deletions the entity is a detached copy.
type Event struct {
	Trigger    Trigger
	Cycle      *HarvestCycle
	Plant      *PlantHarvestCycle
	Schedule   *PlantSchedule
	Placement  *GardenBedPlantHarvestCycle
	OccurredAt time.Time
}

func (e Event) Topic() string { return string(e.Trigger) }

// EntityID returns the id of the most specific affected entity.
func (e Event) EntityID() string {
	switch {
	case e.Placement != nil:
		return e.Placement.ID
	case e.Schedule != nil:
		return e.Schedule.ID
	case e.Plant != nil:
		return e.Plant.ID
	case e.Cycle != nil:
		return e.Cycle.ID
	}
	return ""
}

// outbox holds the events recorded by one command. A trigger is kept once per entity.
type outbox struct {
	events []Event
	seen   map[string]struct{}
}

func (o *outbox) record(ev Event) {
	key := string(ev.Trigger) + "/" + ev.EntityID()
	if _, dup := o.seen[key]; dup {
		return
	}
	if o.seen == nil {
		o.seen = map[string]struct{}{}
	}
	o.seen[key] = struct{}{}
	o.events = append(o.events, ev)
}

func (o *outbox) drain(at time.Time) []Event {
	evs := o.events
	for i := range evs {
		evs[i].OccurredAt = at
	}
	o.events = nil
	o.seen = nil
	return evs
}
