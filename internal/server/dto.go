package server

import (
	"fmt"
	"time"

	"growline/internal/domain"
	"growline/internal/lifecycle"
)

// Request payloads. Dates are calendar dates in YYYY-MM-DD form.

type CreateCycleRequest struct {
	Name      string `json:"name" minLength:"1"`
	StartDate string `json:"start_date" format:"date"`
	Notes     string `json:"notes,omitempty"`
	OwnerID   string `json:"owner_id,omitempty"`
	GardenID  string `json:"garden_id,omitempty"`
}

type UpdateCycleRequest struct {
	Name      *string `json:"name,omitempty"`
	StartDate *string `json:"start_date,omitempty" doc:"YYYY-MM-DD"`
	EndDate   *string `json:"end_date,omitempty" doc:"YYYY-MM-DD, empty clears"`
	Notes     *string `json:"notes,omitempty"`
	GardenID  *string `json:"garden_id,omitempty"`
}

type AddPlantRequest struct {
	PlantID             string `json:"plant_id" minLength:"1"`
	PlantName           string `json:"plant_name" minLength:"1"`
	PlantVarietyID      string `json:"plant_variety_id,omitempty"`
	PlantVarietyName    string `json:"plant_variety_name,omitempty"`
	GrowInstructionID   string `json:"grow_instruction_id,omitempty"`
	GrowInstructionName string `json:"grow_instruction_name,omitempty"`
	SeedVendorID        string `json:"seed_vendor_id,omitempty"`
	SeedVendorName      string `json:"seed_vendor_name,omitempty"`
	PlantingMethod      string `json:"planting_method" enum:"DirectSeed,SeedIndoors,Transplanting"`
	SpacingInInches     int    `json:"spacing_in_inches,omitempty" minimum:"0"`
	Notes               string `json:"notes,omitempty"`
}

// UpdatePlantRequest changes only the fields that are present.
type UpdatePlantRequest struct {
	SeedingDate         *string  `json:"seeding_date,omitempty" doc:"YYYY-MM-DD, empty clears"`
	NumberOfSeeds       *int     `json:"number_of_seeds,omitempty" minimum:"0"`
	GerminationDate     *string  `json:"germination_date,omitempty" doc:"YYYY-MM-DD, empty clears"`
	GerminationRate     *float64 `json:"germination_rate,omitempty" minimum:"0" maximum:"100"`
	TransplantDate      *string  `json:"transplant_date,omitempty" doc:"YYYY-MM-DD, empty clears"`
	NumberOfTransplants *int     `json:"number_of_transplants,omitempty" minimum:"0"`
	FirstHarvestDate    *string  `json:"first_harvest_date,omitempty" doc:"YYYY-MM-DD, empty clears"`
	LastHarvestDate     *string  `json:"last_harvest_date,omitempty" doc:"YYYY-MM-DD, empty clears"`
	TotalWeightInPounds *float64 `json:"total_weight_in_pounds,omitempty" minimum:"0"`
	TotalItems          *int     `json:"total_items,omitempty" minimum:"0"`
	SpacingInInches     *int     `json:"spacing_in_inches,omitempty" minimum:"0"`
	GrowInstructionID   *string  `json:"grow_instruction_id,omitempty"`
	GrowInstructionName *string  `json:"grow_instruction_name,omitempty"`
	SeedVendorID        *string  `json:"seed_vendor_id,omitempty"`
	SeedVendorName      *string  `json:"seed_vendor_name,omitempty"`
	Notes               *string  `json:"notes,omitempty"`
}

type MilestoneRequest struct {
	Milestone string  `json:"milestone" enum:"seeded,germinated,transplanted,harvested,completed"`
	Date      string  `json:"date" format:"date"`
	Count     int     `json:"count,omitempty" minimum:"0" doc:"Seeds sown or plants transplanted"`
	Rate      float64 `json:"rate,omitempty" minimum:"0" maximum:"100" doc:"Germination rate in percent"`
	Weight    float64 `json:"weight,omitempty" minimum:"0" doc:"Total harvest weight in pounds"`
	Items     int     `json:"items,omitempty" minimum:"0" doc:"Total harvested items"`
}

type ScheduleRequest struct {
	TaskType          string `json:"task_type"`
	StartDate         string `json:"start_date" format:"date"`
	EndDate           string `json:"end_date,omitempty" format:"date"`
	Notes             string `json:"notes,omitempty"`
	IsSystemGenerated bool   `json:"is_system_generated,omitempty"`
}

type UpdateScheduleRequest struct {
	StartDate string `json:"start_date" format:"date"`
	EndDate   string `json:"end_date,omitempty" format:"date"`
	Notes     string `json:"notes,omitempty"`
}

type PlantingMethodRequest struct {
	PlantingMethod string            `json:"planting_method" enum:"DirectSeed,SeedIndoors,Transplanting"`
	Schedules      []ScheduleRequest `json:"schedules,omitempty"`
}

type SystemSchedulesRequest struct {
	Schedules []ScheduleRequest `json:"schedules"`
}

type PlacementRequest struct {
	GardenID       string  `json:"garden_id" minLength:"1"`
	GardenBedID    string  `json:"garden_bed_id" minLength:"1"`
	NumberOfPlants int     `json:"number_of_plants" minimum:"0"`
	StartDate      string  `json:"start_date" format:"date"`
	EndDate        *string `json:"end_date,omitempty" doc:"YYYY-MM-DD, empty clears"`
	Notes          string  `json:"notes,omitempty"`
}

type CreateTaskRequest struct {
	HarvestCycleID      string `json:"harvest_cycle_id"`
	PlantHarvestCycleID string `json:"plant_harvest_cycle_id"`
	PlantScheduleID     string `json:"plant_schedule_id,omitempty"`
	Type                string `json:"type"`
	Title               string `json:"title"`
	Notes               string `json:"notes,omitempty"`
	TargetDateStart     string `json:"target_date_start" format:"date"`
	TargetDateEnd       string `json:"target_date_end,omitempty" format:"date"`
}

type CreateWorkLogRequest struct {
	Reason          string                 `json:"reason"`
	EventDateTime   *time.Time             `json:"event_date_time,omitempty"`
	Log             string                 `json:"log"`
	RelatedEntities []domain.RelatedEntity `json:"related_entities,omitempty"`
}

// Response payloads

type cycleOutput struct {
	Body *lifecycle.HarvestCycle `json:"body"`
}

type cyclesOutput struct {
	Body []*lifecycle.HarvestCycle `json:"body"`
}

type plantOutput struct {
	Body *lifecycle.PlantHarvestCycle `json:"body"`
}

type scheduleOutput struct {
	Body *lifecycle.PlantSchedule `json:"body"`
}

type placementOutput struct {
	Body *lifecycle.GardenBedPlantHarvestCycle `json:"body"`
}

type taskOutput struct {
	Body domain.PlantTask `json:"body"`
}

type tasksOutput struct {
	Body []domain.PlantTask `json:"body"`
}

type workLogOutput struct {
	Body domain.WorkLog `json:"body"`
}

type workLogsOutput struct {
	Body []domain.WorkLog `json:"body"`
}

// Conversions

type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, badRequest{fmt.Sprintf("%s must be a date (YYYY-MM-DD)", field)}
	}
	return t, nil
}

func parseOptionalDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return parseDate(field, s)
}

func parseDatePtr(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := parseDate(field, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseReason(field, s string) (domain.Reason, error) {
	r, err := domain.ParseReason(s)
	if err != nil {
		return "", badRequest{fmt.Sprintf("%s: %v", field, err)}
	}
	return r, nil
}

func (r ScheduleRequest) toNew() (lifecycle.NewSchedule, error) {
	typ, err := parseReason("task_type", r.TaskType)
	if err != nil {
		return lifecycle.NewSchedule{}, err
	}
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return lifecycle.NewSchedule{}, err
	}
	end, err := parseOptionalDate("end_date", r.EndDate)
	if err != nil {
		return lifecycle.NewSchedule{}, err
	}
	if end.IsZero() {
		end = start
	}
	return lifecycle.NewSchedule{
		TaskType:          typ,
		StartDate:         start,
		EndDate:           end,
		Notes:             r.Notes,
		IsSystemGenerated: r.IsSystemGenerated,
	}, nil
}

func toNewSchedules(in []ScheduleRequest) ([]lifecycle.NewSchedule, error) {
	out := make([]lifecycle.NewSchedule, 0, len(in))
	for _, r := range in {
		s, err := r.toNew()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r PlacementRequest) toNew() (lifecycle.NewPlacement, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return lifecycle.NewPlacement{}, err
	}
	end, err := parseDatePtr("end_date", r.EndDate)
	if err != nil {
		return lifecycle.NewPlacement{}, err
	}
	return lifecycle.NewPlacement{
		GardenID:       r.GardenID,
		GardenBedID:    r.GardenBedID,
		NumberOfPlants: r.NumberOfPlants,
		StartDate:      start,
		EndDate:        end,
		Notes:          r.Notes,
	}, nil
}

// apply merges the present fields onto u.
func (r UpdatePlantRequest) apply(u *lifecycle.PlantUpdate) error {
	dates := []struct {
		field string
		in    *string
		out   **time.Time
	}{
		{"seeding_date", r.SeedingDate, &u.SeedingDate},
		{"germination_date", r.GerminationDate, &u.GerminationDate},
		{"transplant_date", r.TransplantDate, &u.TransplantDate},
		{"first_harvest_date", r.FirstHarvestDate, &u.FirstHarvestDate},
		{"last_harvest_date", r.LastHarvestDate, &u.LastHarvestDate},
	}
	for _, d := range dates {
		if d.in == nil {
			continue
		}
		t, err := parseDatePtr(d.field, d.in)
		if err != nil {
			return err
		}
		*d.out = t
	}
	setInt(&u.NumberOfSeeds, r.NumberOfSeeds)
	setInt(&u.NumberOfTransplants, r.NumberOfTransplants)
	setInt(&u.TotalItems, r.TotalItems)
	setInt(&u.SpacingInInches, r.SpacingInInches)
	if r.GerminationRate != nil {
		u.GerminationRate = *r.GerminationRate
	}
	if r.TotalWeightInPounds != nil {
		u.TotalWeightInPounds = *r.TotalWeightInPounds
	}
	setString(&u.GrowInstructionID, r.GrowInstructionID)
	setString(&u.GrowInstructionName, r.GrowInstructionName)
	setString(&u.SeedVendorID, r.SeedVendorID)
	setString(&u.SeedVendorName, r.SeedVendorName)
	setString(&u.Notes, r.Notes)
	return nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
