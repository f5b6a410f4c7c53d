package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"growline/internal/metrics"
)

// Event is anything that can be routed by topic.
type Event interface {
	Topic() string
}

// Handler reacts to events of the topics it was subscribed to.
type Handler interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

// Subscriber is a handler that knows its own topics.
type Subscriber interface {
	Handler
	Topics() []string
}

// Option customizes Dispatcher construction.
type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithConcurrency bounds how many handlers of one event run at once. 1 runs them in order.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// Dispatcher delivers events in process to the handlers subscribed to their topic.
type Dispatcher struct {
	mu          sync.RWMutex
	routes      map[string][]Handler
	logger      *slog.Logger
	metrics     *metrics.Metrics
	concurrency int
}

func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		routes:      map[string][]Handler{},
		logger:      slog.Default(),
		concurrency: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Subscribe routes topic to h.
func (d *Dispatcher) Subscribe(topic string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[topic] = append(d.routes[topic], h)
}

// Register subscribes s to all of its topics.
func (d *Dispatcher) Register(s Subscriber) {
	for _, topic := range s.Topics() {
		d.Subscribe(topic, s)
	}
}

// Handlers returns the handlers currently subscribed to topic.
func (d *Dispatcher) Handlers(topic string) []Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Handler(nil), d.routes[topic]...)
}

// Publish delivers events in order. All handlers of an event finish before the
// next event is delivered. A failing handler does not stop the others; failures
// come back together as a *DispatchError.
func (d *Dispatcher) Publish(ctx context.Context, evs ...Event) error {
	var failures []HandlerError
	for _, ev := range evs {
		topic := ev.Topic()
		d.metrics.EventPublished(topic)
		handlers := d.Handlers(topic)
		if len(handlers) == 0 {
			continue
		}
		failures = append(failures, d.deliver(ctx, ev, handlers)...)
	}
	if len(failures) == 0 {
		return nil
	}
	return &DispatchError{Failures: failures}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event, handlers []Handler) []HandlerError {
	errs := make([]error, len(handlers))
	if d.concurrency <= 1 || len(handlers) == 1 {
		for i, h := range handlers {
			errs[i] = d.invoke(ctx, h, ev)
		}
	} else {
		p := pool.New().WithMaxGoroutines(d.concurrency)
		for i, h := range handlers {
			p.Go(func() {
				errs[i] = d.invoke(ctx, h, ev)
			})
		}
		p.Wait()
	}
	var failures []HandlerError
	for i, err := range errs {
		if err != nil {
			failures = append(failures, HandlerError{Handler: handlers[i].Name(), Topic: ev.Topic(), Err: err})
		}
	}
	return failures
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, ev Event) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
			d.logger.ErrorContext(ctx, "event handler failed", "handler", h.Name(), "topic", ev.Topic(), "error", err)
		}
		d.metrics.HandlerRun(h.Name(), outcome, time.Since(start))
	}()
	return h.Handle(ctx, ev)
}

// HandlerError is one failed handler invocation.
type HandlerError struct {
	Handler string
	Topic   string
	Err     error
}

func (e HandlerError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Handler, e.Topic, e.Err)
}

func (e HandlerError) Unwrap() error { return e.Err }

// DispatchError collects the handler failures of one Publish call.
type DispatchError struct {
	Failures []HandlerError
}

func (e *DispatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("%d handler(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *DispatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}
