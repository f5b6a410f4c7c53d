package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"growline/internal/domain"
	"growline/internal/engine"
)

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "search-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "Search plant tasks",
		Errors:      errorStatuses,
	}, func(ctx context.Context, input *struct {
		HarvestCycleID      string `query:"harvest_cycle_id"`
		PlantHarvestCycleID string `query:"plant_harvest_cycle_id"`
		PlantScheduleID     string `query:"plant_schedule_id"`
		Type                string `query:"type"`
		IncludeResolved     bool   `query:"include_resolved"`
		Limit               int    `query:"limit" default:"50"`
	}) (*tasksOutput, error) {
		s := domain.PlantTaskSearch{
			HarvestCycleID:       input.HarvestCycleID,
			PlantHarvestCycleID:  input.PlantHarvestCycleID,
			PlantScheduleID:      input.PlantScheduleID,
			IncludeResolvedTasks: input.IncludeResolved,
			Limit:                normalizeLimit(input.Limit),
		}
		if input.Type != "" {
			r, err := parseReason("type", input.Type)
			if err != nil {
				return nil, handleError(err)
			}
			s.Reason = r
		}
		items, err := e.SearchPlantTasks(ctx, s)
		if err != nil {
			return nil, handleError(err)
		}
		return &tasksOutput{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create plant task",
		DefaultStatus: http.StatusCreated,
		Errors:        errorStatuses,
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*taskOutput, error) {
		b := input.Body
		typ, err := parseReason("type", b.Type)
		if err != nil {
			return nil, handleError(err)
		}
		start, err := parseDate("target_date_start", b.TargetDateStart)
		if err != nil {
			return nil, handleError(err)
		}
		end, err := parseOptionalDate("target_date_end", b.TargetDateEnd)
		if err != nil {
			return nil, handleError(err)
		}
		t, err := e.CreatePlantTask(ctx, domain.CreatePlantTaskCommand{
			HarvestCycleID:      b.HarvestCycleID,
			PlantHarvestCycleID: b.PlantHarvestCycleID,
			PlantScheduleID:     b.PlantScheduleID,
			Type:                typ,
			Title:               b.Title,
			Notes:               b.Notes,
			TargetDateStart:     start,
			TargetDateEnd:       end,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get plant task",
		Errors:      errorStatuses,
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*taskOutput, error) {
		t, err := e.GetPlantTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/complete",
		Summary:     "Complete plant task",
		Description: "Completing an already completed task keeps the first completion time.",
		Errors:      errorStatuses,
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		At     string `query:"at" doc:"RFC 3339 completion time, defaults to now"`
	}) (*taskOutput, error) {
		var at time.Time
		if input.At != "" {
			parsed, err := time.Parse(time.RFC3339, input.At)
			if err != nil {
				return nil, handleError(badRequest{"at must be an RFC 3339 time"})
			}
			at = parsed
		}
		t, err := e.CompletePlantTask(ctx, domain.CompletePlantTaskCommand{ID: input.TaskID, CompletedDateTime: at})
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{task_id}",
		Summary:       "Delete plant task",
		DefaultStatus: http.StatusNoContent,
		Errors:        errorStatuses,
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*noContent, error) {
		return deleted(e.DeletePlantTask(ctx, input.TaskID))
	})
}

func registerWorkLogs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-work-log",
		Method:        http.MethodPost,
		Path:          "/work-logs",
		Summary:       "Record work log",
		DefaultStatus: http.StatusCreated,
		Errors:        errorStatuses,
	}, func(ctx context.Context, input *struct {
		Body CreateWorkLogRequest `json:"body"`
	}) (*workLogOutput, error) {
		reason, err := parseReason("reason", input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		cmd := domain.CreateWorkLogCommand{
			Reason:          reason,
			Log:             input.Body.Log,
			RelatedEntities: input.Body.RelatedEntities,
		}
		if input.Body.EventDateTime != nil {
			cmd.EventDateTime = *input.Body.EventDateTime
		}
		w, err := e.CreateWorkLog(ctx, cmd)
		if err != nil {
			return nil, handleError(err)
		}
		return &workLogOutput{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "search-work-logs",
		Method:      http.MethodGet,
		Path:        "/work-logs",
		Summary:     "Search work logs",
		Errors:      errorStatuses,
	}, func(ctx context.Context, input *struct {
		EntityType string `query:"entity_type"`
		EntityID   string `query:"entity_id"`
		Reason     string `query:"reason"`
		Limit      int    `query:"limit" default:"50"`
	}) (*workLogsOutput, error) {
		s := domain.WorkLogSearch{
			EntityType: domain.EntityType(input.EntityType),
			EntityID:   input.EntityID,
			Limit:      normalizeLimit(input.Limit),
		}
		if input.Reason != "" {
			r, err := parseReason("reason", input.Reason)
			if err != nil {
				return nil, handleError(err)
			}
			s.Reason = r
		}
		items, err := e.SearchWorkLogs(ctx, s)
		if err != nil {
			return nil, handleError(err)
		}
		return &workLogsOutput{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-work-log",
		Method:      http.MethodGet,
		Path:        "/work-logs/{work_log_id}",
		Summary:     "Get work log",
		Errors:      errorStatuses,
	}, func(ctx context.Context, input *struct {
		WorkLogID string `path:"work_log_id"`
	}) (*workLogOutput, error) {
		w, err := e.GetWorkLog(ctx, input.WorkLogID)
		if err != nil {
			return nil, handleError(err)
		}
		return &workLogOutput{Body: w}, nil
	})
}
