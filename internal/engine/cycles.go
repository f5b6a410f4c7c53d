package engine

import (
	"context"
	"time"

	"growline/internal/domain"
	"growline/internal/lifecycle"
	"growline/internal/repo"
)

func (e Engine) CreateHarvestCycle(ctx context.Context, n lifecycle.NewHarvestCycle) (*lifecycle.HarvestCycle, error) {
	c, err := lifecycle.New(n)
	if err != nil {
		return nil, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.SaveHarvestCycleTx(ctx, tx, c, e.now()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.publishCycle(ctx, c)
	return c, nil
}

func (e Engine) GetHarvestCycle(ctx context.Context, id string) (*lifecycle.HarvestCycle, error) {
	return e.Repo.GetHarvestCycle(ctx, id)
}

func (e Engine) ListHarvestCycles(ctx context.Context, f repo.HarvestCycleFilters) ([]*lifecycle.HarvestCycle, error) {
	return e.Repo.ListHarvestCycles(ctx, f)
}

func (e Engine) UpdateHarvestCycle(ctx context.Context, id string, u lifecycle.CycleUpdate) (*lifecycle.HarvestCycle, error) {
	return e.mutate(ctx, id, func(c *lifecycle.HarvestCycle) error { return c.Update(u) })
}

// EndHarvestCycle sets the end date; open plants are completed on the same date.
func (e Engine) EndHarvestCycle(ctx context.Context, id string, date time.Time) (*lifecycle.HarvestCycle, error) {
	if date.IsZero() {
		date = e.now()
	}
	return e.mutate(ctx, id, func(c *lifecycle.HarvestCycle) error { return c.End(date) })
}

func (e Engine) DeleteHarvestCycle(ctx context.Context, id string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	c, err := e.Repo.GetHarvestCycleTx(ctx, tx, id)
	if err != nil {
		return err
	}
	c.Delete()
	if err := e.Repo.DeleteHarvestCycleTx(ctx, tx, c.ID, c.Version); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.publishCycle(ctx, c)
	return nil
}

// CycleOf resolves the harvest cycle owning a plant harvest cycle.
func (e Engine) CycleOf(ctx context.Context, plantHarvestCycleID string) (string, error) {
	return e.Repo.FindCycleIDByPlant(ctx, plantHarvestCycleID)
}

func (e Engine) AddPlant(ctx context.Context, cycleID string, n lifecycle.NewPlant) (*lifecycle.PlantHarvestCycle, error) {
	var p *lifecycle.PlantHarvestCycle
	_, err := e.mutate(ctx, cycleID, func(c *lifecycle.HarvestCycle) error {
		var err error
		p, err = c.AddPlant(n)
		return err
	})
	return p, err
}

func (e Engine) UpdatePlant(ctx context.Context, cycleID, plantID string, u lifecycle.PlantUpdate) (*lifecycle.PlantHarvestCycle, error) {
	return e.plantCommand(ctx, cycleID, plantID, func(c *lifecycle.HarvestCycle) error { return c.UpdatePlant(plantID, u) })
}

func (e Engine) MarkSeeded(ctx context.Context, cycleID, plantID string, date time.Time, seeds int) (*lifecycle.PlantHarvestCycle, error) {
	return e.plantCommand(ctx, cycleID, plantID, func(c *lifecycle.HarvestCycle) error { return c.MarkSeeded(plantID, date, seeds) })
}

func (e Engine) MarkGerminated(ctx context.Context, cycleID, plantID string, date time.Time, rate float64) (*lifecycle.PlantHarvestCycle, error) {
	return e.plantCommand(ctx, cycleID, plantID, func(c *lifecycle.HarvestCycle) error { return c.MarkGerminated(plantID, date, rate) })
}

func (e Engine) MarkTransplanted(ctx context.Context, cycleID, plantID string, date time.Time, count int) (*lifecycle.PlantHarvestCycle, error) {
	return e.plantCommand(ctx, cycleID, plantID, func(c *lifecycle.HarvestCycle) error { return c.MarkTransplanted(plantID, date, count) })
}

func (e Engine) MarkHarvested(ctx context.Context, cycleID, plantID string, date time.Time) (*lifecycle.PlantHarvestCycle, error) {
	return e.plantCommand(ctx, cycleID, plantID, func(c *lifecycle.HarvestCycle) error { return c.MarkHarvested(plantID, date) })
}

func (e Engine) MarkCompleted(ctx context.Context, cycleID, plantID string, date time.Time, weight float64, items int) (*lifecycle.PlantHarvestCycle, error) {
	return e.plantCommand(ctx, cycleID, plantID, func(c *lifecycle.HarvestCycle) error {
		return c.MarkCompleted(plantID, date, weight, items)
	})
}

func (e Engine) ChangePlantingMethod(ctx context.Context, cycleID, plantID string, method domain.PlantingMethod, schedules []lifecycle.NewSchedule) (*lifecycle.PlantHarvestCycle, error) {
	return e.plantCommand(ctx, cycleID, plantID, func(c *lifecycle.HarvestCycle) error {
		return c.ChangePlantingMethod(plantID, method, schedules)
	})
}

func (e Engine) DeletePlant(ctx context.Context, cycleID, plantID string) error {
	_, err := e.mutate(ctx, cycleID, func(c *lifecycle.HarvestCycle) error { return c.DeletePlant(plantID) })
	return err
}

func (e Engine) plantCommand(ctx context.Context, cycleID, plantID string, fn func(c *lifecycle.HarvestCycle) error) (*lifecycle.PlantHarvestCycle, error) {
	c, err := e.mutate(ctx, cycleID, fn)
	if err != nil {
		return nil, err
	}
	p, _ := c.Plant(plantID)
	return p, nil
}

func (e Engine) AddSchedule(ctx context.Context, cycleID, plantID string, n lifecycle.NewSchedule) (*lifecycle.PlantSchedule, error) {
	var s *lifecycle.PlantSchedule
	_, err := e.mutate(ctx, cycleID, func(c *lifecycle.HarvestCycle) error {
		var err error
		s, err = c.AddSchedule(plantID, n)
		return err
	})
	return s, err
}

func (e Engine) UpdateSchedule(ctx context.Context, cycleID, plantID, scheduleID string, u lifecycle.ScheduleUpdate) (*lifecycle.PlantSchedule, error) {
	c, err := e.mutate(ctx, cycleID, func(c *lifecycle.HarvestCycle) error { return c.UpdateSchedule(plantID, scheduleID, u) })
	if err != nil {
		return nil, err
	}
	p, _ := c.Plant(plantID)
	s, _ := p.Schedule(scheduleID)
	return s, nil
}

func (e Engine) DeleteSchedule(ctx context.Context, cycleID, plantID, scheduleID string) error {
	_, err := e.mutate(ctx, cycleID, func(c *lifecycle.HarvestCycle) error { return c.DeleteSchedule(plantID, scheduleID) })
	return err
}

func (e Engine) ReplaceSystemSchedules(ctx context.Context, cycleID, plantID string, schedules []lifecycle.NewSchedule) (*lifecycle.PlantHarvestCycle, error) {
	return e.plantCommand(ctx, cycleID, plantID, func(c *lifecycle.HarvestCycle) error {
		return c.ReplaceSystemSchedules(plantID, schedules)
	})
}

func (e Engine) AddPlacement(ctx context.Context, cycleID, plantID string, n lifecycle.NewPlacement) (*lifecycle.GardenBedPlantHarvestCycle, error) {
	var b *lifecycle.GardenBedPlantHarvestCycle
	_, err := e.mutate(ctx, cycleID, func(c *lifecycle.HarvestCycle) error {
		var err error
		b, err = c.AddPlacement(plantID, n)
		return err
	})
	return b, err
}

func (e Engine) UpdatePlacement(ctx context.Context, cycleID, plantID, placementID string, n lifecycle.NewPlacement) (*lifecycle.PlantHarvestCycle, error) {
	return e.plantCommand(ctx, cycleID, plantID, func(c *lifecycle.HarvestCycle) error {
		return c.UpdatePlacement(plantID, placementID, n)
	})
}

func (e Engine) DeletePlacement(ctx context.Context, cycleID, plantID, placementID string) error {
	_, err := e.mutate(ctx, cycleID, func(c *lifecycle.HarvestCycle) error { return c.DeletePlacement(plantID, placementID) })
	return err
}
