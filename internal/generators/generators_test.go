package generators_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growline/internal/config"
	"growline/internal/domain"
	"growline/internal/events"
	"growline/internal/generators"
	"growline/internal/growth"
	"growline/internal/lifecycle"
	"growline/internal/repo"
)

var day0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return day0.AddDate(0, 0, n) }

const catalogYAML = `
plants:
  - id: tomato
    name: Tomato
    days_to_maturity_min: 60
    days_to_maturity_max: 85
    varieties:
      - id: cherokee-purple
        name: Cherokee Purple
        days_to_maturity_min: 72
        days_to_maturity_max: 8
    grow_instructions:
      - id: indoors
        name: Start indoors
        days_to_sprout_min: 5
        days_to_sprout_max: 10
        fertilizer_for_seedlings: fish emulsion
  - id: bean
    name: Bean
    days_to_maturity_min: 50
    days_to_maturity_max: 10
`

// store is an in-memory TaskStore, WorkLogStore and CycleReader.
type store struct {
	mu      sync.Mutex
	seq     int
	tasks   []domain.PlantTask
	logs    []domain.WorkLog
	deletes map[domain.Reason]int
	cycles  map[string]*lifecycle.HarvestCycle
}

func newStore() *store {
	return &store{deletes: map[domain.Reason]int{}, cycles: map[string]*lifecycle.HarvestCycle{}}
}

func (s *store) CreatePlantTask(_ context.Context, cmd domain.CreatePlantTaskCommand) (domain.PlantTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := domain.PlantTask{
		ID:                  fmt.Sprintf("task-%d", s.seq),
		HarvestCycleID:      cmd.HarvestCycleID,
		PlantHarvestCycleID: cmd.PlantHarvestCycleID,
		PlantScheduleID:     cmd.PlantScheduleID,
		Type:                cmd.Type,
		Title:               cmd.Title,
		Notes:               cmd.Notes,
		TargetDateStart:     cmd.TargetDateStart,
		TargetDateEnd:       cmd.TargetDateEnd,
		IsSystemGenerated:   cmd.IsSystemGenerated,
	}
	s.tasks = append(s.tasks, t)
	return t, nil
}

func (s *store) CompletePlantTask(_ context.Context, cmd domain.CompletePlantTaskCommand) (domain.PlantTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == cmd.ID {
			at := cmd.CompletedDateTime
			s.tasks[i].CompletedDateTime = &at
			return s.tasks[i], nil
		}
	}
	return domain.PlantTask{}, repo.ErrNotFound
}

func (s *store) DeletePlantTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
			s.deletes[t.Type]++
			return nil
		}
	}
	return repo.ErrNotFound
}

func (s *store) SearchPlantTasks(_ context.Context, q domain.PlantTaskSearch) ([]domain.PlantTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PlantTask
	for _, t := range s.tasks {
		switch {
		case q.PlantHarvestCycleID != "" && t.PlantHarvestCycleID != q.PlantHarvestCycleID,
			q.PlantScheduleID != "" && t.PlantScheduleID != q.PlantScheduleID,
			q.Reason != "" && t.Type != q.Reason,
			!q.IncludeResolvedTasks && !t.Open():
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *store) CreateWorkLog(_ context.Context, cmd domain.CreateWorkLogCommand) (domain.WorkLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := domain.WorkLog{
		ID:              fmt.Sprintf("log-%d", len(s.logs)+1),
		Reason:          cmd.Reason,
		EventDateTime:   cmd.EventDateTime,
		Log:             cmd.Log,
		RelatedEntities: cmd.RelatedEntities,
	}
	s.logs = append(s.logs, w)
	return w, nil
}

func (s *store) GetHarvestCycle(_ context.Context, id string) (*lifecycle.HarvestCycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cycles[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return c, nil
}

func (s *store) find(plantID string, typ domain.Reason, open bool) []domain.PlantTask {
	found, _ := s.SearchPlantTasks(context.Background(), domain.PlantTaskSearch{PlantHarvestCycleID: plantID, Reason: typ, IncludeResolvedTasks: !open})
	return found
}

func (s *store) logsWith(reason domain.Reason) []domain.WorkLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.WorkLog
	for _, w := range s.logs {
		if w.Reason == reason {
			out = append(out, w)
		}
	}
	return out
}

type harness struct {
	t     *testing.T
	store *store
	d     *events.Dispatcher
	cycle *lifecycle.HarvestCycle
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cat, err := growth.ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)
	st := newStore()
	d := events.NewDispatcher(events.WithConcurrency(4))
	generators.Register(d, generators.Deps{
		Tasks:    st,
		WorkLogs: st,
		Cycles:   st,
		Growth:   cat,
		Defaults: config.Default().Defaults,
		Now:      func() time.Time { return day0 },
	})
	c, err := lifecycle.New(lifecycle.NewHarvestCycle{Name: "Spring", StartDate: day0})
	require.NoError(t, err)
	st.cycles[c.ID] = c
	return &harness{t: t, store: st, d: d, cycle: c}
}

// apply runs one command against the cycle and dispatches what it recorded.
func (h *harness) apply(fn func(c *lifecycle.HarvestCycle) error) error {
	h.t.Helper()
	require.NoError(h.t, fn(h.cycle))
	drained := h.cycle.DrainEvents(day0)
	evs := make([]events.Event, 0, len(drained))
	for _, ev := range drained {
		evs = append(evs, ev)
	}
	return h.d.Publish(context.Background(), evs...)
}

func (h *harness) must(fn func(c *lifecycle.HarvestCycle) error) {
	h.t.Helper()
	require.NoError(h.t, h.apply(fn))
}

func (h *harness) addPlant(n lifecycle.NewPlant) *lifecycle.PlantHarvestCycle {
	h.t.Helper()
	var p *lifecycle.PlantHarvestCycle
	h.must(func(c *lifecycle.HarvestCycle) error {
		var err error
		p, err = c.AddPlant(n)
		return err
	})
	return p
}

func (h *harness) addSchedule(p *lifecycle.PlantHarvestCycle, typ domain.Reason, start, end int) *lifecycle.PlantSchedule {
	h.t.Helper()
	var s *lifecycle.PlantSchedule
	h.must(func(c *lifecycle.HarvestCycle) error {
		var err error
		s, err = c.AddSchedule(p.ID, lifecycle.NewSchedule{TaskType: typ, StartDate: day(start), EndDate: day(end)})
		return err
	})
	return s
}

func (h *harness) logWork(reason domain.Reason, at time.Time, related ...domain.RelatedEntity) error {
	return h.d.Publish(context.Background(), domain.WorkLogRecorded{WorkLog: domain.WorkLog{
		ID: "manual-log", Reason: reason, EventDateTime: at, Log: "logged", RelatedEntities: related,
	}})
}

func (h *harness) refs(p *lifecycle.PlantHarvestCycle) []domain.RelatedEntity {
	return []domain.RelatedEntity{
		{EntityType: domain.EntityHarvestCycle, EntityID: h.cycle.ID},
		{EntityType: domain.EntityPlantHarvestCycle, EntityID: p.ID},
	}
}

func tomato(method domain.PlantingMethod) lifecycle.NewPlant {
	return lifecycle.NewPlant{
		PlantID:           "tomato",
		PlantName:         "Tomato",
		PlantVarietyID:    "cherokee-purple",
		PlantVarietyName:  "Cherokee Purple",
		GrowInstructionID: "indoors",
		PlantingMethod:    method,
	}
}

func TestGerminationReminderAndSeedlingFertilizer(t *testing.T) {
	h := newHarness(t)
	p := h.addPlant(tomato(domain.SeedIndoors))

	h.must(func(c *lifecycle.HarvestCycle) error { return c.MarkSeeded(p.ID, day(0), 24) })
	reminders := h.store.find(p.ID, domain.ReasonInformation, true)
	require.Len(t, reminders, 1)
	assert.Equal(t, "Record germination date", reminders[0].Title)
	assert.Equal(t, day(5), reminders[0].TargetDateStart)
	assert.Equal(t, day(10), reminders[0].TargetDateEnd)

	sown := h.store.logsWith(domain.ReasonSowIndoors)
	require.Len(t, sown, 1)
	assert.Equal(t, "Sowed 24 Cherokee Purple Tomato seeds indoors on Mar 1, 2025.", sown[0].Log)
	cycleID, _ := sown[0].Related(domain.EntityHarvestCycle)
	assert.Equal(t, h.cycle.ID, cycleID)

	h.must(func(c *lifecycle.HarvestCycle) error { return c.MarkGerminated(p.ID, day(8), 90) })
	assert.Empty(t, h.store.find(p.ID, domain.ReasonInformation, true))
	all := h.store.find(p.ID, domain.ReasonInformation, false)
	require.Len(t, all, 1)
	assert.Equal(t, day(8), *all[0].CompletedDateTime)

	feed := h.store.find(p.ID, domain.ReasonFertilizeIndoors, true)
	require.Len(t, feed, 1)
	assert.Equal(t, day(8+35), feed[0].TargetDateStart)
	assert.Equal(t, "Use fish emulsion", feed[0].Notes)
	assert.Len(t, h.store.logsWith(domain.ReasonInformation), 1)
	assert.Empty(t, h.store.find(p.ID, domain.ReasonFertilizeOutside, false))
	assert.Empty(t, h.store.find(p.ID, domain.ReasonHarvest, false))
}

func TestSeedingLogFollowsPlantingMethod(t *testing.T) {
	cases := []struct {
		method domain.PlantingMethod
		reason domain.Reason
		text   string
	}{
		{domain.SeedIndoors, domain.ReasonSowIndoors, "Sowed 6 Cherokee Purple Tomato seeds indoors on Mar 1, 2025."},
		{domain.DirectSeed, domain.ReasonSowOutside, "Sowed 6 Cherokee Purple Tomato seeds outside on Mar 1, 2025."},
		{domain.Transplanting, domain.ReasonInformation, "Sowed 6 Cherokee Purple Tomato seeds on Mar 1, 2025."},
	}
	for _, tc := range cases {
		t.Run(string(tc.method), func(t *testing.T) {
			h := newHarness(t)
			p := h.addPlant(tomato(tc.method))
			h.must(func(c *lifecycle.HarvestCycle) error { return c.MarkSeeded(p.ID, day(0), 6) })
			logs := h.store.logsWith(tc.reason)
			require.Len(t, logs, 1)
			assert.Equal(t, tc.text, logs[0].Log)
		})
	}
}

func TestMilestoneCompletesUserTasksOfItsType(t *testing.T) {
	h := newHarness(t)
	p := h.addPlant(tomato(domain.SeedIndoors))
	_, err := h.store.CreatePlantTask(context.Background(), domain.CreatePlantTaskCommand{
		HarvestCycleID:      h.cycle.ID,
		PlantHarvestCycleID: p.ID,
		Type:                domain.ReasonSowIndoors,
		Title:               "Sow tomatoes in cells",
		TargetDateStart:     day(0),
		TargetDateEnd:       day(0),
	})
	require.NoError(t, err)

	h.must(func(c *lifecycle.HarvestCycle) error { return c.MarkSeeded(p.ID, day(1), 0) })
	assert.Empty(t, h.store.find(p.ID, domain.ReasonSowIndoors, true))

	h.must(func(c *lifecycle.HarvestCycle) error { return c.DeletePlant(p.ID) })
	assert.Empty(t, h.store.find(p.ID, "", false))
}

func TestHarvestWindow(t *testing.T) {
	cases := []struct {
		name       string
		plant      lifecycle.NewPlant
		start, end int
	}{
		{"variety", tomato(domain.Transplanting), 72, 80},
		{"plant fallback", lifecycle.NewPlant{PlantID: "tomato", PlantVarietyID: "unknown", PlantingMethod: domain.Transplanting}, 60, 145},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			p := h.addPlant(tc.plant)
			h.must(func(c *lifecycle.HarvestCycle) error { return c.MarkTransplanted(p.ID, day(0), 6) })
			tasks := h.store.find(p.ID, domain.ReasonHarvest, true)
			require.Len(t, tasks, 1)
			assert.Equal(t, day(tc.start), tasks[0].TargetDateStart)
			assert.Equal(t, day(tc.end), tasks[0].TargetDateEnd)

			h.must(func(c *lifecycle.HarvestCycle) error { return c.MarkHarvested(p.ID, day(tc.start+2)) })
			assert.Empty(t, h.store.find(p.ID, domain.ReasonHarvest, true))
		})
	}
}

func TestHarvestSkippedWithoutMaturity(t *testing.T) {
	h := newHarness(t)
	p := h.addPlant(lifecycle.NewPlant{PlantID: "okra", PlantingMethod: domain.DirectSeed})
	h.must(func(c *lifecycle.HarvestCycle) error { return c.MarkGerminated(p.ID, day(0), 0) })
	assert.Empty(t, h.store.find(p.ID, domain.ReasonHarvest, false))
	fert := h.store.find(p.ID, domain.ReasonFertilizeOutside, true)
	require.Len(t, fert, 1, "fertilizing does not depend on the catalog")
	assert.Equal(t, day(21), fert[0].TargetDateStart)
}

func TestHardenOffGuardedByTransplantSchedule(t *testing.T) {
	h := newHarness(t)
	p := h.addPlant(tomato(domain.SeedIndoors))
	h.addSchedule(p, domain.ReasonTransplantOutside, 30, 37)

	open := h.store.find(p.ID, domain.ReasonHardenOff, true)
	require.Len(t, open, 1)
	assert.Equal(t, day(16), open[0].TargetDateStart)

	require.NoError(t, h.logWork(domain.ReasonHardenOff, day(28), h.refs(p)...))
	open = h.store.find(p.ID, domain.ReasonHardenOff, true)
	require.Len(t, open, 1)
	assert.Equal(t, day(29), open[0].TargetDateStart)
	assert.Empty(t, open[0].PlantScheduleID)

	require.NoError(t, h.logWork(domain.ReasonHardenOff, day(29), h.refs(p)...))
	assert.Empty(t, h.store.find(p.ID, domain.ReasonHardenOff, true), "day 30 is not before the transplant window")
	assert.Len(t, h.store.find(p.ID, domain.ReasonHardenOff, false), 2)
}

func TestWorkLogWithoutReferences(t *testing.T) {
	h := newHarness(t)
	p := h.addPlant(tomato(domain.SeedIndoors))

	err := h.logWork(domain.ReasonHardenOff, day(3))
	require.ErrorIs(t, err, generators.ErrMissingRelatedEntity)
	err = h.logWork(domain.ReasonWater, day(3))
	require.ErrorIs(t, err, generators.ErrMissingRelatedEntity)

	err = h.logWork(domain.ReasonFertilizeIndoors, day(3),
		domain.RelatedEntity{EntityType: domain.EntityHarvestCycle, EntityID: "gone"},
		domain.RelatedEntity{EntityType: domain.EntityPlantHarvestCycle, EntityID: p.ID})
	require.NoError(t, err, "a dangling cycle is skipped")
	assert.Empty(t, h.store.find(p.ID, domain.ReasonFertilizeIndoors, false))

	require.NoError(t, h.logWork(domain.ReasonFertilizeIndoors, day(3), h.refs(p)...))
	feed := h.store.find(p.ID, domain.ReasonFertilizeIndoors, true)
	require.Len(t, feed, 1)
	assert.Equal(t, day(3+35), feed[0].TargetDateStart)
}

func TestFertilizeOutsideGuardedByHarvestSchedule(t *testing.T) {
	h := newHarness(t)
	bean := h.addPlant(lifecycle.NewPlant{PlantID: "bean", PlantName: "Bean", PlantingMethod: domain.DirectSeed})
	h.addSchedule(bean, domain.ReasonHarvest, 20, 30)
	h.must(func(c *lifecycle.HarvestCycle) error { return c.MarkGerminated(bean.ID, day(0), 0) })
	assert.Empty(t, h.store.find(bean.ID, domain.ReasonFertilizeOutside, false))

	harvest := h.store.find(bean.ID, domain.ReasonHarvest, true)
	require.Len(t, harvest, 1)
	assert.Equal(t, day(50), harvest[0].TargetDateStart)
	assert.Equal(t, day(60), harvest[0].TargetDateEnd)
}

func TestPlantDeletionDeletesOncePerType(t *testing.T) {
	h := newHarness(t)
	p := h.addPlant(tomato(domain.SeedIndoors))
	h.addSchedule(p, domain.ReasonSowIndoors, 0, 7)
	h.addSchedule(p, domain.ReasonTransplantOutside, 40, 47)
	h.addSchedule(p, domain.ReasonWater, 10, 10)
	h.must(func(c *lifecycle.HarvestCycle) error { return c.MarkSeeded(p.ID, day(1), 0) })

	h.must(func(c *lifecycle.HarvestCycle) error { return c.DeletePlant(p.ID) })
	assert.Equal(t, map[domain.Reason]int{
		domain.ReasonSowIndoors:        1,
		domain.ReasonHardenOff:         1,
		domain.ReasonTransplantOutside: 1,
		domain.ReasonInformation:       1,
		domain.ReasonWater:             1,
	}, h.store.deletes)
	assert.Empty(t, h.store.find(p.ID, "", false))
}

func TestEndingCycleCleansUpOpenTasks(t *testing.T) {
	h := newHarness(t)
	p := h.addPlant(tomato(domain.SeedIndoors))
	h.addSchedule(p, domain.ReasonTransplantOutside, 60, 67)
	h.must(func(c *lifecycle.HarvestCycle) error { return c.MarkGerminated(p.ID, day(5), 0) })
	require.Len(t, h.store.find(p.ID, domain.ReasonFertilizeIndoors, true), 1)

	h.must(func(c *lifecycle.HarvestCycle) error { return c.End(day(90)) })
	require.NotNil(t, p.LastHarvestDate)
	for _, typ := range []domain.Reason{domain.ReasonFertilizeIndoors, domain.ReasonTransplantOutside, domain.ReasonHardenOff} {
		assert.Empty(t, h.store.find(p.ID, typ, true), typ)
	}
	done := h.store.logsWith(domain.ReasonHarvest)
	require.Len(t, done, 1)
	assert.Equal(t, "Finished harvesting Cherokee Purple Tomato on May 30, 2025.", done[0].Log)
}

func TestHarvestLogs(t *testing.T) {
	t.Run("same day", func(t *testing.T) {
		h := newHarness(t)
		p := h.addPlant(tomato(domain.Transplanting))
		h.must(func(c *lifecycle.HarvestCycle) error { return c.MarkHarvested(p.ID, day(70)) })
		h.must(func(c *lifecycle.HarvestCycle) error { return c.MarkCompleted(p.ID, day(70), 4.5, 12) })
		assert.Len(t, h.store.logsWith(domain.ReasonHarvest), 1)
	})
	t.Run("different days", func(t *testing.T) {
		h := newHarness(t)
		p := h.addPlant(tomato(domain.Transplanting))
		h.must(func(c *lifecycle.HarvestCycle) error { return c.MarkHarvested(p.ID, day(70)) })
		h.must(func(c *lifecycle.HarvestCycle) error { return c.MarkCompleted(p.ID, day(95), 4.5, 12) })
		logs := h.store.logsWith(domain.ReasonHarvest)
		require.Len(t, logs, 2)
		assert.Equal(t, "Finished harvesting Cherokee Purple Tomato on Jun 4, 2025, 4.50 lb and 12 items in total.", logs[1].Log)
	})
}

func TestPlantingMethodChangeSwapsSowingTasks(t *testing.T) {
	h := newHarness(t)
	p := h.addPlant(tomato(domain.SeedIndoors))
	s := h.addSchedule(p, domain.ReasonSowIndoors, 0, 7)
	indoor := h.store.find(p.ID, domain.ReasonSowIndoors, true)
	require.Len(t, indoor, 1)
	assert.Equal(t, s.ID, indoor[0].PlantScheduleID)

	h.must(func(c *lifecycle.HarvestCycle) error {
		return c.ChangePlantingMethod(p.ID, domain.DirectSeed, []lifecycle.NewSchedule{
			{TaskType: domain.ReasonSowOutside, StartDate: day(30), EndDate: day(40)},
		})
	})
	assert.Empty(t, h.store.find(p.ID, domain.ReasonSowIndoors, false))
	outdoor := h.store.find(p.ID, domain.ReasonSowOutside, true)
	require.Len(t, outdoor, 1)
	assert.Equal(t, day(30), outdoor[0].TargetDateStart)
	assert.Equal(t, "Sow seeds outside", outdoor[0].Title)
}

func TestManualScheduleTasks(t *testing.T) {
	h := newHarness(t)
	p := h.addPlant(tomato(domain.Transplanting))
	s := h.addSchedule(p, domain.ReasonWater, 10, 12)
	water := h.store.find(p.ID, domain.ReasonWater, true)
	require.Len(t, water, 1)
	assert.Equal(t, "Water", water[0].Title)

	h.must(func(c *lifecycle.HarvestCycle) error {
		return c.UpdateSchedule(p.ID, s.ID, lifecycle.ScheduleUpdate{StartDate: day(11), EndDate: day(12)})
	})
	water = h.store.find(p.ID, domain.ReasonWater, true)
	require.Len(t, water, 1)
	assert.Equal(t, day(11), water[0].TargetDateStart)

	require.NoError(t, h.logWork(domain.ReasonWater, day(11), h.refs(p)...))
	assert.Empty(t, h.store.find(p.ID, domain.ReasonWater, true))

	h.addSchedule(p, domain.ReasonPrune, 20, 20)
	pruneID := h.store.find(p.ID, domain.ReasonPrune, true)[0].PlantScheduleID
	h.must(func(c *lifecycle.HarvestCycle) error { return c.DeleteSchedule(p.ID, pruneID) })
	assert.Empty(t, h.store.find(p.ID, domain.ReasonPrune, false))
}
