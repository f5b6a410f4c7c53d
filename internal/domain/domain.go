package domain

import (
	"fmt"
	"time"
)

// PlantingMethod is how a plant gets into the ground.
type PlantingMethod string

const (
	DirectSeed    PlantingMethod = "DirectSeed"
	SeedIndoors   PlantingMethod = "SeedIndoors"
	Transplanting PlantingMethod = "Transplanting"
)

func (m PlantingMethod) Valid() bool {
	switch m {
	case DirectSeed, SeedIndoors, Transplanting:
		return true
	}
	return false
}

// Reason tags both work logs and tasks. Task types are the subset reported by IsTaskType.
type Reason string

const (
	ReasonSowIndoors        Reason = "SowIndoors"
	ReasonSowOutside        Reason = "SowOutside"
	ReasonHardenOff         Reason = "HardenOff"
	ReasonTransplantOutside Reason = "TransplantOutside"
	ReasonFertilizeIndoors  Reason = "FertilizeIndoors"
	ReasonFertilizeOutside  Reason = "FertilizeOutside"
	ReasonHarvest           Reason = "Harvest"
	ReasonInformation       Reason = "Information"
	ReasonWater             Reason = "Water"
	ReasonWeed              Reason = "Weed"
	ReasonPrune             Reason = "Prune"
	ReasonThin              Reason = "Thin"
	ReasonMaintenance       Reason = "Maintenance"
	ReasonIssueResolution   Reason = "IssueResolution"
	ReasonObservation       Reason = "Observation"
)

var taskTypes = map[Reason]bool{
	ReasonSowIndoors:        true,
	ReasonSowOutside:        true,
	ReasonHardenOff:         true,
	ReasonTransplantOutside: true,
	ReasonFertilizeIndoors:  true,
	ReasonFertilizeOutside:  true,
	ReasonHarvest:           true,
	ReasonInformation:       true,
	ReasonWater:             true,
	ReasonWeed:              true,
	ReasonPrune:             true,
	ReasonThin:              true,
	ReasonMaintenance:       true,
}

// IsTaskType reports whether tasks may carry this reason.
func (r Reason) IsTaskType() bool { return taskTypes[r] }

// Valid reports whether r is a known work log reason.
func (r Reason) Valid() bool {
	return taskTypes[r] || r == ReasonIssueResolution || r == ReasonObservation
}

// Lifecycle reports whether a dedicated generator owns tasks of this type.
// Schedules of any other type are turned into tasks one-to-one.
func (r Reason) Lifecycle() bool {
	switch r {
	case ReasonSowIndoors, ReasonSowOutside, ReasonHardenOff, ReasonTransplantOutside,
		ReasonFertilizeIndoors, ReasonFertilizeOutside, ReasonHarvest:
		return true
	}
	return false
}

// ParseReason validates a user supplied reason.
func ParseReason(s string) (Reason, error) {
	r := Reason(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown reason %q", s)
	}
	return r, nil
}

type PlantTask struct {
	ID                  string     `json:"id"`
	HarvestCycleID      string     `json:"harvest_cycle_id"`
	PlantHarvestCycleID string     `json:"plant_harvest_cycle_id"`
	PlantScheduleID     string     `json:"plant_schedule_id,omitempty"`
	Type                Reason     `json:"type"`
	Title               string     `json:"title"`
	Notes               string     `json:"notes,omitempty"`
	TargetDateStart     time.Time  `json:"target_date_start" format:"date-time"`
	TargetDateEnd       time.Time  `json:"target_date_end" format:"date-time"`
	CompletedDateTime   *time.Time `json:"completed_date_time,omitempty" format:"date-time"`
	IsSystemGenerated   bool       `json:"is_system_generated"`
	CreatedAt           time.Time  `json:"created_at" format:"date-time"`
	UpdatedAt           time.Time  `json:"updated_at" format:"date-time"`
}

// Open reports whether the task has not been completed yet.
func (t PlantTask) Open() bool { return t.CompletedDateTime == nil }

type EntityType string

const (
	EntityHarvestCycle      EntityType = "HarvestCycle"
	EntityPlantHarvestCycle EntityType = "PlantHarvestCycle"
	EntityPlant             EntityType = "Plant"
	EntityGardenBed         EntityType = "GardenBed"
)

type RelatedEntity struct {
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	EntityName string     `json:"entity_name,omitempty"`
}

type WorkLog struct {
	ID              string          `json:"id"`
	Reason          Reason          `json:"reason"`
	EventDateTime   time.Time       `json:"event_date_time" format:"date-time"`
	Log             string          `json:"log"`
	RelatedEntities []RelatedEntity `json:"related_entities"`
	CreatedAt       time.Time       `json:"created_at" format:"date-time"`
}

// Related returns the id of the first related entity of the given type.
func (w WorkLog) Related(kind EntityType) (string, bool) {
	for _, e := range w.RelatedEntities {
		if e.EntityType == kind && e.EntityID != "" {
			return e.EntityID, true
		}
	}
	return "", false
}

type CreatePlantTaskCommand struct {
	HarvestCycleID      string
	PlantHarvestCycleID string
	PlantScheduleID     string
	Type                Reason
	Title               string
	Notes               string
	TargetDateStart     time.Time
	TargetDateEnd       time.Time
	IsSystemGenerated   bool
}

type CompletePlantTaskCommand struct {
	ID                string
	CompletedDateTime time.Time
}

// PlantTaskSearch filters tasks. Resolved tasks are skipped unless IncludeResolvedTasks is set.
type PlantTaskSearch struct {
	HarvestCycleID       string
	PlantHarvestCycleID  string
	PlantScheduleID      string
	Reason               Reason
	IncludeResolvedTasks bool
	Limit                int
}

type CreateWorkLogCommand struct {
	Reason          Reason
	EventDateTime   time.Time
	Log             string
	RelatedEntities []RelatedEntity
}

type WorkLogSearch struct {
	EntityType EntityType
	EntityID   string
	Reason     Reason
	Limit      int
}

// TopicWorkLogRecorded is published after a work log is committed.
const TopicWorkLogRecorded = "WorkLogRecorded"

// WorkLogRecorded announces a stored work log.
type WorkLogRecorded struct {
	WorkLog WorkLog
}

func (WorkLogRecorded) Topic() string { return TopicWorkLogRecorded }

// Day truncates t to midnight UTC. Milestones and task windows are calendar dates.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the calendar date n days after t.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}
