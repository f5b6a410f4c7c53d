package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"growline/internal/domain"
	"growline/internal/engine"
	"growline/internal/lifecycle"
	"growline/internal/repo"
)

type cyclePath struct {
	CycleID string `path:"cycle_id"`
}

type plantPath struct {
	CycleID string `path:"cycle_id"`
	PlantID string `path:"plant_id"`
}

func registerCycles(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-harvest-cycle",
		Method:        http.MethodPost,
		Path:          "/harvest-cycles",
		Summary:       "Create harvest cycle",
		DefaultStatus: http.StatusCreated,
		Errors:        errorStatuses,
	}, func(ctx context.Context, input *struct {
		Body CreateCycleRequest `json:"body"`
	}) (*cycleOutput, error) {
		start, err := parseDate("start_date", input.Body.StartDate)
		if err != nil {
			return nil, handleError(err)
		}
		c, err := e.CreateHarvestCycle(ctx, lifecycle.NewHarvestCycle{
			Name:      input.Body.Name,
			StartDate: start,
			Notes:     input.Body.Notes,
			OwnerID:   input.Body.OwnerID,
			GardenID:  input.Body.GardenID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &cycleOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-harvest-cycles",
		Method:      http.MethodGet,
		Path:        "/harvest-cycles",
		Summary:     "List harvest cycles",
		Errors:      errorStatuses,
	}, func(ctx context.Context, input *struct {
		GardenID string `query:"garden_id"`
		Active   bool   `query:"active" doc:"Only cycles without an end date"`
		Limit    int    `query:"limit" default:"50"`
	}) (*cyclesOutput, error) {
		items, err := e.ListHarvestCycles(ctx, repo.HarvestCycleFilters{
			GardenID: input.GardenID,
			Active:   input.Active,
			Limit:    normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &cyclesOutput{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-harvest-cycle",
		Method:      http.MethodGet,
		Path:        "/harvest-cycles/{cycle_id}",
		Summary:     "Get harvest cycle",
		Errors:      errorStatuses,
	}, func(ctx context.Context, input *cyclePath) (*cycleOutput, error) {
		c, err := e.GetHarvestCycle(ctx, input.CycleID)
		if err != nil {
			return nil, handleError(err)
		}
		return &cycleOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-harvest-cycle",
		Method:      http.MethodPatch,
		Path:        "/harvest-cycles/{cycle_id}",
		Summary:     "Update harvest cycle",
		Errors:      errorStatuses,
	}, func(ctx context.Context, input *struct {
		CycleID string             `path:"cycle_id"`
		Body    UpdateCycleRequest `json:"body"`
	}) (*cycleOutput, error) {
		current, err := e.GetHarvestCycle(ctx, input.CycleID)
		if err != nil {
			return nil, handleError(err)
		}
		u := current.Values()
		setString(&u.Name, input.Body.Name)
		setString(&u.Notes, input.Body.Notes)
		setString(&u.GardenID, input.Body.GardenID)
		if input.Body.StartDate != nil {
			if u.StartDate, err = parseDate("start_date", *input.Body.StartDate); err != nil {
				return nil, handleError(err)
			}
		}
		if input.Body.EndDate != nil {
			if u.EndDate, err = parseDatePtr("end_date", input.Body.EndDate); err != nil {
				return nil, handleError(err)
			}
		}
		c, err := e.UpdateHarvestCycle(ctx, input.CycleID, u)
		if err != nil {
			return nil, handleError(err)
		}
		return &cycleOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "end-harvest-cycle",
		Method:      http.MethodPost,
		Path:        "/harvest-cycles/{cycle_id}/end",
		Summary:     "End harvest cycle",
		Description: "Sets the end date and completes every plant that has no last harvest date.",
		Errors:      errorStatuses,
	}, func(ctx context.Context, input *struct {
		CycleID string `path:"cycle_id"`
		Date    string `query:"date" format:"date" doc:"Defaults to today"`
	}) (*cycleOutput, error) {
		date, err := parseOptionalDate("date", input.Date)
		if err != nil {
			return nil, handleError(err)
		}
		c, err := e.EndHarvestCycle(ctx, input.CycleID, date)
		if err != nil {
			return nil, handleError(err)
		}
		return &cycleOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-harvest-cycle",
		Method:        http.MethodDelete,
		Path:          "/harvest-cycles/{cycle_id}",
		Summary:       "Delete harvest cycle",
		DefaultStatus: http.StatusNoContent,
		Errors:        errorStatuses,
	}, func(ctx context.Context, input *cyclePath) (*noContent, error) {
		return deleted(e.DeleteHarvestCycle(ctx, input.CycleID))
	})
}

func registerPlants(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-plant",
		Method:        http.MethodPost,
		Path:          "/harvest-cycles/{cycle_id}/plants",
		Summary:       "Add plant to harvest cycle",
		DefaultStatus: http.StatusCreated,
		Errors:        errorStatuses,
	}, func(ctx context.Context, input *struct {
		CycleID string          `path:"cycle_id"`
		Body    AddPlantRequest `json:"body"`
	}) (*plantOutput, error) {
		b := input.Body
		p, err := e.AddPlant(ctx, input.CycleID, lifecycle.NewPlant{
			PlantID:             b.PlantID,
			PlantName:           b.PlantName,
			PlantVarietyID:      b.PlantVarietyID,
			PlantVarietyName:    b.PlantVarietyName,
			GrowInstructionID:   b.GrowInstructionID,
			GrowInstructionName: b.GrowInstructionName,
			SeedVendorID:        b.SeedVendorID,
			SeedVendorName:      b.SeedVendorName,
			PlantingMethod:      domain.PlantingMethod(b.PlantingMethod),
			SpacingInInches:     b.SpacingInInches,
			Notes:               b.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &plantOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-plant",
		Method:      http.MethodPatch,
		Path:        "/harvest-cycles/{cycle_id}/plants/{plant_id}",
		Summary:     "Update plant",
		Description: "Changes only the fields present in the body. An empty date clears it.",
		Errors:      errorStatuses,
	}, func(ctx context.Context, input *struct {
		CycleID string             `path:"cycle_id"`
		PlantID string             `path:"plant_id"`
		Body    UpdatePlantRequest `json:"body"`
	}) (*plantOutput, error) {
		c, err := e.GetHarvestCycle(ctx, input.CycleID)
		if err != nil {
			return nil, handleError(err)
		}
		current, ok := c.Plant(input.PlantID)
		if !ok {
			return nil, handleError(lifecycle.ErrPlantNotFound)
		}
		u := current.Values()
		if err := input.Body.apply(&u); err != nil {
			return nil, handleError(err)
		}
		p, err := e.UpdatePlant(ctx, input.CycleID, input.PlantID, u)
		if err != nil {
			return nil, handleError(err)
		}
		return &plantOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-milestone",
		Method:      http.MethodPost,
		Path:        "/harvest-cycles/{cycle_id}/plants/{plant_id}/milestones",
		Summary:     "Record plant milestone",
		Errors:      errorStatuses,
	}, func(ctx context.Context, input *struct {
		CycleID string           `path:"cycle_id"`
		PlantID string           `path:"plant_id"`
		Body    MilestoneRequest `json:"body"`
	}) (*plantOutput, error) {
		date, err := parseDate("date", input.Body.Date)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := recordMilestone(ctx, e, input.CycleID, input.PlantID, date, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &plantOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-planting-method",
		Method:      http.MethodPut,
		Path:        "/harvest-cycles/{cycle_id}/plants/{plant_id}/planting-method",
		Summary:     "Change planting method",
		Description: "Switches the method and replaces the system generated schedules.",
		Errors:      errorStatuses,
	}, func(ctx context.Context, input *struct {
		CycleID string                `path:"cycle_id"`
		PlantID string                `path:"plant_id"`
		Body    PlantingMethodRequest `json:"body"`
	}) (*plantOutput, error) {
		schedules, err := toNewSchedules(input.Body.Schedules)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := e.ChangePlantingMethod(ctx, input.CycleID, input.PlantID, domain.PlantingMethod(input.Body.PlantingMethod), schedules)
		if err != nil {
			return nil, handleError(err)
		}
		return &plantOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-plant",
		Method:        http.MethodDelete,
		Path:          "/harvest-cycles/{cycle_id}/plants/{plant_id}",
		Summary:       "Remove plant from harvest cycle",
		DefaultStatus: http.StatusNoContent,
		Errors:        errorStatuses,
	}, func(ctx context.Context, input *plantPath) (*noContent, error) {
		return deleted(e.DeletePlant(ctx, input.CycleID, input.PlantID))
	})
}

func recordMilestone(ctx context.Context, e engine.Engine, cycleID, plantID string, date time.Time, m MilestoneRequest) (*lifecycle.PlantHarvestCycle, error) {
	switch m.Milestone {
	case "seeded":
		return e.MarkSeeded(ctx, cycleID, plantID, date, m.Count)
	case "germinated":
		return e.MarkGerminated(ctx, cycleID, plantID, date, m.Rate)
	case "transplanted":
		return e.MarkTransplanted(ctx, cycleID, plantID, date, m.Count)
	case "harvested":
		return e.MarkHarvested(ctx, cycleID, plantID, date)
	case "completed":
		return e.MarkCompleted(ctx, cycleID, plantID, date, m.Weight, m.Items)
	}
	return nil, badRequest{"unknown milestone " + m.Milestone}
}

func registerSchedules(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-schedule",
		Method:        http.MethodPost,
		Path:          "/harvest-cycles/{cycle_id}/plants/{plant_id}/schedules",
		Summary:       "Add plant schedule",
		DefaultStatus: http.StatusCreated,
		Errors:        errorStatuses,
	}, func(ctx context.Context, input *struct {
		CycleID string          `path:"cycle_id"`
		PlantID string          `path:"plant_id"`
		Body    ScheduleRequest `json:"body"`
	}) (*scheduleOutput, error) {
		n, err := input.Body.toNew()
		if err != nil {
			return nil, handleError(err)
		}
		s, err := e.AddSchedule(ctx, input.CycleID, input.PlantID, n)
		if err != nil {
			return nil, handleError(err)
		}
		return &scheduleOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-schedule",
		Method:      http.MethodPut,
		Path:        "/harvest-cycles/{cycle_id}/plants/{plant_id}/schedules/{schedule_id}",
		Summary:     "Update plant schedule",
		Errors:      errorStatuses,
	}, func(ctx context.Context, input *struct {
		CycleID    string                `path:"cycle_id"`
		PlantID    string                `path:"plant_id"`
		ScheduleID string                `path:"schedule_id"`
		Body       UpdateScheduleRequest `json:"body"`
	}) (*scheduleOutput, error) {
		start, err := parseDate("start_date", input.Body.StartDate)
		if err != nil {
			return nil, handleError(err)
		}
		end, err := parseOptionalDate("end_date", input.Body.EndDate)
		if err != nil {
			return nil, handleError(err)
		}
		if end.IsZero() {
			end = start
		}
		s, err := e.UpdateSchedule(ctx, input.CycleID, input.PlantID, input.ScheduleID, lifecycle.ScheduleUpdate{
			StartDate: start,
			EndDate:   end,
			Notes:     input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &scheduleOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-schedule",
		Method:        http.MethodDelete,
		Path:          "/harvest-cycles/{cycle_id}/plants/{plant_id}/schedules/{schedule_id}",
		Summary:       "Delete plant schedule",
		DefaultStatus: http.StatusNoContent,
		Errors:        errorStatuses,
	}, func(ctx context.Context, input *struct {
		CycleID    string `path:"cycle_id"`
		PlantID    string `path:"plant_id"`
		ScheduleID string `path:"schedule_id"`
	}) (*noContent, error) {
		return deleted(e.DeleteSchedule(ctx, input.CycleID, input.PlantID, input.ScheduleID))
	})

	huma.Register(api, huma.Operation{
		OperationID: "replace-system-schedules",
		Method:      http.MethodPut,
		Path:        "/harvest-cycles/{cycle_id}/plants/{plant_id}/system-schedules",
		Summary:     "Replace system generated schedules",
		Errors:      errorStatuses,
	}, func(ctx context.Context, input *struct {
		CycleID string                 `path:"cycle_id"`
		PlantID string                 `path:"plant_id"`
		Body    SystemSchedulesRequest `json:"body"`
	}) (*plantOutput, error) {
		schedules, err := toNewSchedules(input.Body.Schedules)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := e.ReplaceSystemSchedules(ctx, input.CycleID, input.PlantID, schedules)
		if err != nil {
			return nil, handleError(err)
		}
		return &plantOutput{Body: p}, nil
	})
}

func registerPlacements(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-placement",
		Method:        http.MethodPost,
		Path:          "/harvest-cycles/{cycle_id}/plants/{plant_id}/placements",
		Summary:       "Place plant in garden bed",
		DefaultStatus: http.StatusCreated,
		Errors:        errorStatuses,
	}, func(ctx context.Context, input *struct {
		CycleID string           `path:"cycle_id"`
		PlantID string           `path:"plant_id"`
		Body    PlacementRequest `json:"body"`
	}) (*placementOutput, error) {
		n, err := input.Body.toNew()
		if err != nil {
			return nil, handleError(err)
		}
		b, err := e.AddPlacement(ctx, input.CycleID, input.PlantID, n)
		if err != nil {
			return nil, handleError(err)
		}
		return &placementOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-placement",
		Method:      http.MethodPut,
		Path:        "/harvest-cycles/{cycle_id}/plants/{plant_id}/placements/{placement_id}",
		Summary:     "Update garden bed placement",
		Errors:      errorStatuses,
	}, func(ctx context.Context, input *struct {
		CycleID     string           `path:"cycle_id"`
		PlantID     string           `path:"plant_id"`
		PlacementID string           `path:"placement_id"`
		Body        PlacementRequest `json:"body"`
	}) (*plantOutput, error) {
		n, err := input.Body.toNew()
		if err != nil {
			return nil, handleError(err)
		}
		p, err := e.UpdatePlacement(ctx, input.CycleID, input.PlantID, input.PlacementID, n)
		if err != nil {
			return nil, handleError(err)
		}
		return &plantOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-placement",
		Method:        http.MethodDelete,
		Path:          "/harvest-cycles/{cycle_id}/plants/{plant_id}/placements/{placement_id}",
		Summary:       "Delete garden bed placement",
		DefaultStatus: http.StatusNoContent,
		Errors:        errorStatuses,
	}, func(ctx context.Context, input *struct {
		CycleID     string `path:"cycle_id"`
		PlantID     string `path:"plant_id"`
		PlacementID string `path:"placement_id"`
	}) (*noContent, error) {
		return deleted(e.DeletePlacement(ctx, input.CycleID, input.PlantID, input.PlacementID))
	})
}
