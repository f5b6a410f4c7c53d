package growth

import (
	"context"
	"sync"
)

type scopeKey struct{}

type scope struct {
	mu    sync.Mutex
	calls map[string]*call
}

type call struct {
	once sync.Once
	val  any
	err  error
}

// WithScope starts a lookup scope. Within it Scoped answers each distinct
// lookup once, errors included. Nested scopes reuse the outer one.
func WithScope(ctx context.Context) context.Context {
	if _, ok := ctx.Value(scopeKey{}).(*scope); ok {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, &scope{calls: map[string]*call{}})
}

// Scoped memoizes Source lookups for the lifetime of the scope carried by ctx.
// Without a scope it passes straight through.
type Scoped struct {
	Source Source
}

func (s Scoped) GetPlant(ctx context.Context, plantID string) (Plant, error) {
	return memo(ctx, key("plant", plantID), func() (Plant, error) {
		return s.Source.GetPlant(ctx, plantID)
	})
}

func (s Scoped) GetPlantVariety(ctx context.Context, plantID, varietyID string) (PlantVariety, error) {
	return memo(ctx, key("variety", plantID, varietyID), func() (PlantVariety, error) {
		return s.Source.GetPlantVariety(ctx, plantID, varietyID)
	})
}

func (s Scoped) GetGrowInstruction(ctx context.Context, plantID, growInstructionID string) (GrowInstruction, error) {
	return memo(ctx, key("instruction", plantID, growInstructionID), func() (GrowInstruction, error) {
		return s.Source.GetGrowInstruction(ctx, plantID, growInstructionID)
	})
}

func memo[T any](ctx context.Context, k string, load func() (T, error)) (T, error) {
	sc, _ := ctx.Value(scopeKey{}).(*scope)
	if sc == nil {
		return load()
	}
	sc.mu.Lock()
	cl := sc.calls[k]
	if cl == nil {
		cl = &call{}
		sc.calls[k] = cl
	}
	sc.mu.Unlock()
	cl.once.Do(func() {
		cl.val, cl.err = load()
	})
	if cl.err != nil {
		var zero T
		return zero, cl.err
	}
	return cl.val.(T), nil
}
