package engine

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"growline/internal/config"
	"growline/internal/events"
	"growline/internal/growth"
	"growline/internal/lifecycle"
	"growline/internal/metrics"
	"growline/internal/repo"
)

// ErrInvalid reports a malformed task or work log command.
var ErrInvalid = errors.New("invalid command")

type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	Dispatcher *events.Dispatcher
	Config     *config.Config
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

func New(db *sql.DB, cfg *config.Config, d *events.Dispatcher) Engine {
	return Engine{
		DB:         db,
		Repo:       repo.Repo{DB: db},
		Dispatcher: d,
		Config:     cfg,
		Logger:     slog.Default(),
		Now:        time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// publish hands committed events to the dispatcher. Handler failures are
// logged; the command that produced the events has already succeeded.
func (e Engine) publish(ctx context.Context, evs ...events.Event) {
	if e.Dispatcher == nil || len(evs) == 0 {
		return
	}
	if err := e.Dispatcher.Publish(growth.WithScope(ctx), evs...); err != nil {
		e.logger().WarnContext(ctx, "event handlers failed", "events", len(evs), "error", err)
	}
}

func (e Engine) publishCycle(ctx context.Context, c *lifecycle.HarvestCycle) {
	drained := c.DrainEvents(e.now().UTC())
	evs := make([]events.Event, 0, len(drained))
	for _, ev := range drained {
		evs = append(evs, ev)
	}
	e.publish(ctx, evs...)
}

// mutate runs fn against the stored aggregate inside one transaction and
// dispatches the recorded events after commit. Nothing is written when fn
// records no change.
func (e Engine) mutate(ctx context.Context, cycleID string, fn func(c *lifecycle.HarvestCycle) error) (*lifecycle.HarvestCycle, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetHarvestCycleTx(ctx, tx, cycleID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if len(c.Pending()) == 0 {
		return c, nil
	}
	if err := e.Repo.SaveHarvestCycleTx(ctx, tx, c, e.now()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.publishCycle(ctx, c)
	return c, nil
}
