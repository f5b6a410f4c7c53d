package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"growline/internal/domain"
	"growline/internal/repo"
)

func validateTask(cmd domain.CreatePlantTaskCommand) (domain.CreatePlantTaskCommand, error) {
	cmd.Title = strings.TrimSpace(cmd.Title)
	switch {
	case cmd.HarvestCycleID == "" || cmd.PlantHarvestCycleID == "":
		return cmd, fmt.Errorf("%w: task needs a harvest cycle and a plant harvest cycle", ErrInvalid)
	case !cmd.Type.IsTaskType():
		return cmd, fmt.Errorf("%w: task type %q", ErrInvalid, cmd.Type)
	case cmd.Title == "":
		return cmd, fmt.Errorf("%w: title is required", ErrInvalid)
	case cmd.TargetDateStart.IsZero():
		return cmd, fmt.Errorf("%w: target start date is required", ErrInvalid)
	}
	cmd.TargetDateStart = domain.Day(cmd.TargetDateStart)
	if cmd.TargetDateEnd.IsZero() {
		cmd.TargetDateEnd = cmd.TargetDateStart
	}
	cmd.TargetDateEnd = domain.Day(cmd.TargetDateEnd)
	if cmd.TargetDateEnd.Before(cmd.TargetDateStart) {
		return cmd, fmt.Errorf("%w: target window ends before it starts", ErrInvalid)
	}
	return cmd, nil
}

// CreatePlantTask stores a task. With upserts enabled, a system generated task
// without a schedule replaces the window of a matching open system task
// instead of adding a duplicate.
func (e Engine) CreatePlantTask(ctx context.Context, cmd domain.CreatePlantTaskCommand) (domain.PlantTask, error) {
	cmd, err := validateTask(cmd)
	if err != nil {
		return domain.PlantTask{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PlantTask{}, err
	}
	defer tx.Rollback()

	now := e.now().UTC()
	if e.Config != nil && e.Config.Tasks.UpsertOpenSystemTasks && cmd.IsSystemGenerated && cmd.PlantScheduleID == "" {
		existing, err := e.Repo.FindOpenSystemTaskTx(ctx, tx, cmd.PlantHarvestCycleID, cmd.Type, cmd.Title)
		switch {
		case err == nil:
			existing.Notes = cmd.Notes
			existing.TargetDateStart = cmd.TargetDateStart
			existing.TargetDateEnd = cmd.TargetDateEnd
			existing.UpdatedAt = now
			if err := e.Repo.UpdateTaskTx(ctx, tx, existing); err != nil {
				return domain.PlantTask{}, err
			}
			if err := tx.Commit(); err != nil {
				return domain.PlantTask{}, err
			}
			e.Metrics.TaskMutated(string(existing.Type), "upserted")
			return existing, nil
		case !errors.Is(err, repo.ErrNotFound):
			return domain.PlantTask{}, err
		}
	}

	t := domain.PlantTask{
		ID:                  uuid.NewString(),
		HarvestCycleID:      cmd.HarvestCycleID,
		PlantHarvestCycleID: cmd.PlantHarvestCycleID,
		PlantScheduleID:     cmd.PlantScheduleID,
		Type:                cmd.Type,
		Title:               cmd.Title,
		Notes:               cmd.Notes,
		TargetDateStart:     cmd.TargetDateStart,
		TargetDateEnd:       cmd.TargetDateEnd,
		IsSystemGenerated:   cmd.IsSystemGenerated,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
		return domain.PlantTask{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PlantTask{}, err
	}
	e.Metrics.TaskMutated(string(t.Type), "created")
	return t, nil
}

// CompletePlantTask marks a task done. Completing a completed task keeps the first completion.
func (e Engine) CompletePlantTask(ctx context.Context, cmd domain.CompletePlantTaskCommand) (domain.PlantTask, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PlantTask{}, err
	}
	defer tx.Rollback()
	t, err := e.Repo.GetTaskTx(ctx, tx, cmd.ID)
	if err != nil {
		return domain.PlantTask{}, err
	}
	if !t.Open() {
		return t, nil
	}
	now := e.now().UTC()
	at := cmd.CompletedDateTime
	if at.IsZero() {
		at = now
	}
	at = at.UTC()
	t.CompletedDateTime = &at
	t.UpdatedAt = now
	if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
		return domain.PlantTask{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PlantTask{}, err
	}
	e.Metrics.TaskMutated(string(t.Type), "completed")
	return t, nil
}

func (e Engine) DeletePlantTask(ctx context.Context, id string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteTaskTx(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.Metrics.TaskMutated(string(t.Type), "deleted")
	return nil
}

func (e Engine) GetPlantTask(ctx context.Context, id string) (domain.PlantTask, error) {
	return e.Repo.GetTask(ctx, id)
}

func (e Engine) SearchPlantTasks(ctx context.Context, s domain.PlantTaskSearch) ([]domain.PlantTask, error) {
	return e.Repo.ListTasks(ctx, s)
}
