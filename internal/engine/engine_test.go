package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"growline/internal/config"
	"growline/internal/db"
	"growline/internal/domain"
	"growline/internal/engine"
	"growline/internal/events"
	"growline/internal/generators"
	"growline/internal/growth"
	"growline/internal/lifecycle"
	"growline/internal/migrate"
	"growline/internal/repo"
)

const catalogYAML = `
plants:
  - id: tomato
    name: Tomato
    days_to_maturity_min: 60
    days_to_maturity_max: 85
    grow_instructions:
      - id: indoors
        name: Start indoors
        days_to_sprout_min: 5
        days_to_sprout_max: 10
        fertilizer_for_seedlings: fish emulsion
`

var seedDay = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	Engine     engine.Engine
	Dispatcher *events.Dispatcher
	Ctx        context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	catalog, err := growth.ParseCatalog([]byte(catalogYAML))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	cfg := config.Default()
	d := events.NewDispatcher(events.WithConcurrency(1))
	eng := engine.New(conn, cfg, d)
	eng.Now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	generators.Register(d, generators.Deps{
		Tasks:    eng,
		WorkLogs: eng,
		Cycles:   eng,
		Growth:   growth.Scoped{Source: catalog},
		Defaults: cfg.Defaults,
		Now:      eng.Now,
	})
	return testEnv{Engine: eng, Dispatcher: d, Ctx: ctx}
}

func (env testEnv) seedPlant(t *testing.T, method domain.PlantingMethod) (*lifecycle.HarvestCycle, *lifecycle.PlantHarvestCycle) {
	t.Helper()
	c, err := env.Engine.CreateHarvestCycle(env.Ctx, lifecycle.NewHarvestCycle{Name: "Spring 2025", StartDate: seedDay})
	if err != nil {
		t.Fatalf("create cycle: %v", err)
	}
	p, err := env.Engine.AddPlant(env.Ctx, c.ID, lifecycle.NewPlant{
		PlantID:           "tomato",
		PlantName:         "Tomato",
		GrowInstructionID: "indoors",
		PlantingMethod:    method,
	})
	if err != nil {
		t.Fatalf("add plant: %v", err)
	}
	return c, p
}

func (env testEnv) tasks(t *testing.T, plantID string, typ domain.Reason, includeResolved bool) []domain.PlantTask {
	t.Helper()
	out, err := env.Engine.SearchPlantTasks(env.Ctx, domain.PlantTaskSearch{
		PlantHarvestCycleID:  plantID,
		Reason:               typ,
		IncludeResolvedTasks: includeResolved,
	})
	if err != nil {
		t.Fatalf("search tasks: %v", err)
	}
	return out
}

func TestGerminationFlowPersistsTasksAndHistory(t *testing.T) {
	env := newTestEnv(t)
	c, p := env.seedPlant(t, domain.SeedIndoors)

	if _, err := env.Engine.MarkSeeded(env.Ctx, c.ID, p.ID, seedDay, 24); err != nil {
		t.Fatalf("seed: %v", err)
	}
	reminders := env.tasks(t, p.ID, domain.ReasonInformation, false)
	if len(reminders) != 1 {
		t.Fatalf("expected one germination reminder, got %d", len(reminders))
	}
	if got := reminders[0]; !got.TargetDateStart.Equal(seedDay.AddDate(0, 0, 5)) || !got.TargetDateEnd.Equal(seedDay.AddDate(0, 0, 10)) {
		t.Fatalf("unexpected reminder window %s..%s", got.TargetDateStart, got.TargetDateEnd)
	}

	germinated := seedDay.AddDate(0, 0, 6)
	if _, err := env.Engine.MarkGerminated(env.Ctx, c.ID, p.ID, germinated, 80); err != nil {
		t.Fatalf("germinate: %v", err)
	}
	if open := env.tasks(t, p.ID, domain.ReasonInformation, false); len(open) != 0 {
		t.Fatalf("reminder still open: %+v", open)
	}
	feed := env.tasks(t, p.ID, domain.ReasonFertilizeIndoors, false)
	if len(feed) != 1 {
		t.Fatalf("expected one seedling feed, got %d", len(feed))
	}
	if !feed[0].TargetDateStart.Equal(germinated.AddDate(0, 0, 35)) || feed[0].Notes != "Use fish emulsion" {
		t.Fatalf("unexpected seedling feed %+v", feed[0])
	}

	logs, err := env.Engine.SearchWorkLogs(env.Ctx, domain.WorkLogSearch{EntityType: domain.EntityPlantHarvestCycle, EntityID: p.ID})
	if err != nil {
		t.Fatalf("search logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected two history entries, got %d", len(logs))
	}
	if logs[0].Log != "Tomato germinated on Mar 7, 2025 with a 80% germination rate." {
		t.Fatalf("unexpected newest log %q", logs[0].Log)
	}
	if logs[1].Log != "Sowed 24 Tomato seeds indoors on Mar 1, 2025." {
		t.Fatalf("unexpected oldest log %q", logs[1].Log)
	}
}

func TestUnchangedCommandWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	c, p := env.seedPlant(t, domain.SeedIndoors)
	if _, err := env.Engine.MarkSeeded(env.Ctx, c.ID, p.ID, seedDay, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before, err := env.Engine.GetHarvestCycle(env.Ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := env.Engine.MarkSeeded(env.Ctx, c.ID, p.ID, seedDay, 0); err != nil {
		t.Fatalf("seed again: %v", err)
	}
	after, err := env.Engine.GetHarvestCycle(env.Ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.Version != before.Version {
		t.Fatalf("version moved from %d to %d", before.Version, after.Version)
	}
	if n := len(env.tasks(t, p.ID, domain.ReasonInformation, true)); n != 1 {
		t.Fatalf("expected one reminder, got %d", n)
	}
}

func TestOpenSystemTaskUpsert(t *testing.T) {
	env := newTestEnv(t)
	c, p := env.seedPlant(t, domain.SeedIndoors)
	cmd := domain.CreatePlantTaskCommand{
		HarvestCycleID:      c.ID,
		PlantHarvestCycleID: p.ID,
		Type:                domain.ReasonWater,
		Title:               "Water",
		TargetDateStart:     seedDay,
		IsSystemGenerated:   true,
	}
	first, err := env.Engine.CreatePlantTask(env.Ctx, cmd)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	cmd.TargetDateStart = seedDay.AddDate(0, 0, 3)
	cmd.Notes = "Deep soak"
	second, err := env.Engine.CreatePlantTask(env.Ctx, cmd)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected upsert into %s, got %s", first.ID, second.ID)
	}
	stored, err := env.Engine.GetPlantTask(env.Ctx, first.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if !stored.TargetDateEnd.Equal(seedDay.AddDate(0, 0, 3)) || stored.Notes != "Deep soak" {
		t.Fatalf("window not replaced: %+v", stored)
	}

	cmd.IsSystemGenerated = false
	if _, err := env.Engine.CreatePlantTask(env.Ctx, cmd); err != nil {
		t.Fatalf("create user task: %v", err)
	}
	if n := len(env.tasks(t, p.ID, domain.ReasonWater, false)); n != 2 {
		t.Fatalf("expected user task next to system task, got %d", n)
	}

	env.Engine.Config.Tasks.UpsertOpenSystemTasks = false
	cmd.IsSystemGenerated = true
	if _, err := env.Engine.CreatePlantTask(env.Ctx, cmd); err != nil {
		t.Fatalf("create without upsert: %v", err)
	}
	if n := len(env.tasks(t, p.ID, domain.ReasonWater, false)); n != 3 {
		t.Fatalf("expected duplicate with upsert off, got %d", n)
	}
}

func TestCompletePlantTaskKeepsFirstCompletion(t *testing.T) {
	env := newTestEnv(t)
	c, p := env.seedPlant(t, domain.SeedIndoors)
	task, err := env.Engine.CreatePlantTask(env.Ctx, domain.CreatePlantTaskCommand{
		HarvestCycleID:      c.ID,
		PlantHarvestCycleID: p.ID,
		Type:                domain.ReasonWeed,
		Title:               "Weed bed 2",
		TargetDateStart:     seedDay,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	first := seedDay.Add(10 * time.Hour)
	if _, err := env.Engine.CompletePlantTask(env.Ctx, domain.CompletePlantTaskCommand{ID: task.ID, CompletedDateTime: first}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	again, err := env.Engine.CompletePlantTask(env.Ctx, domain.CompletePlantTaskCommand{ID: task.ID, CompletedDateTime: first.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("complete again: %v", err)
	}
	if again.CompletedDateTime == nil || !again.CompletedDateTime.Equal(first) {
		t.Fatalf("completion moved: %v", again.CompletedDateTime)
	}
	if err := env.Engine.DeletePlantTask(env.Ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.Engine.DeletePlantTask(env.Ctx, task.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type failingHandler struct{}

func (failingHandler) Name() string { return "failing" }

func (failingHandler) Handle(context.Context, events.Event) error {
	return errors.New("boom")
}

func TestHandlerFailureDoesNotFailCommand(t *testing.T) {
	env := newTestEnv(t)
	env.Dispatcher.Subscribe(string(lifecycle.HarvestCycleCreated), failingHandler{})
	c, err := env.Engine.CreateHarvestCycle(env.Ctx, lifecycle.NewHarvestCycle{Name: "Fall", StartDate: seedDay})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.Engine.GetHarvestCycle(env.Ctx, c.ID); err != nil {
		t.Fatalf("cycle not stored: %v", err)
	}
}

func TestHardenOffLogSchedulesNextSession(t *testing.T) {
	env := newTestEnv(t)
	c, p := env.seedPlant(t, domain.SeedIndoors)
	logged := seedDay.AddDate(0, 0, 40)
	_, err := env.Engine.CreateWorkLog(env.Ctx, domain.CreateWorkLogCommand{
		Reason:        domain.ReasonHardenOff,
		EventDateTime: logged,
		Log:           "Two hours on the porch",
		RelatedEntities: []domain.RelatedEntity{
			{EntityType: domain.EntityHarvestCycle, EntityID: c.ID},
			{EntityType: domain.EntityPlantHarvestCycle, EntityID: p.ID},
			{EntityType: domain.EntityPlantHarvestCycle, EntityID: p.ID},
		},
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	next := env.tasks(t, p.ID, domain.ReasonHardenOff, false)
	if len(next) != 1 {
		t.Fatalf("expected one harden off task, got %d", len(next))
	}
	if !next[0].TargetDateStart.Equal(logged.AddDate(0, 0, 1)) || next[0].Notes != "Last session logged on 2025-04-10" {
		t.Fatalf("unexpected task %+v", next[0])
	}
	logs, err := env.Engine.SearchWorkLogs(env.Ctx, domain.WorkLogSearch{Reason: domain.ReasonHardenOff})
	if err != nil {
		t.Fatalf("search logs: %v", err)
	}
	if len(logs) != 1 || len(logs[0].RelatedEntities) != 2 {
		t.Fatalf("expected deduplicated references, got %+v", logs)
	}
}

func TestDeleteHarvestCycleRemovesTasks(t *testing.T) {
	env := newTestEnv(t)
	c, p := env.seedPlant(t, domain.SeedIndoors)
	if _, err := env.Engine.MarkSeeded(env.Ctx, c.ID, p.ID, seedDay, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := env.Engine.AddSchedule(env.Ctx, c.ID, p.ID, lifecycle.NewSchedule{
		TaskType:  domain.ReasonWater,
		StartDate: seedDay.AddDate(0, 0, 2),
		EndDate:   seedDay.AddDate(0, 0, 4),
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if n := len(env.tasks(t, p.ID, "", true)); n != 2 {
		t.Fatalf("expected reminder and watering task, got %d", n)
	}
	if err := env.Engine.DeleteHarvestCycle(env.Ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := len(env.tasks(t, p.ID, "", true)); n != 0 {
		t.Fatalf("expected tasks removed, got %d", n)
	}
	if _, err := env.Engine.GetHarvestCycle(env.Ctx, c.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEndHarvestCycleCompletesPlants(t *testing.T) {
	env := newTestEnv(t)
	c, p := env.seedPlant(t, domain.DirectSeed)
	end := seedDay.AddDate(0, 3, 0)
	ended, err := env.Engine.EndHarvestCycle(env.Ctx, c.ID, end)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !ended.Completed() {
		t.Fatalf("cycle not completed")
	}
	got, ok := ended.Plant(p.ID)
	if !ok || got.LastHarvestDate == nil || !got.LastHarvestDate.Equal(end) {
		t.Fatalf("plant not completed: %+v", got)
	}
	active, err := env.Engine.ListHarvestCycles(env.Ctx, repo.HarvestCycleFilters{Active: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active cycles, got %d", len(active))
	}
}

func TestCommandErrors(t *testing.T) {
	env := newTestEnv(t)
	c, p := env.seedPlant(t, domain.SeedIndoors)

	if _, err := env.Engine.CreateHarvestCycle(env.Ctx, lifecycle.NewHarvestCycle{StartDate: seedDay}); !errors.Is(err, lifecycle.ErrInvalid) {
		t.Fatalf("expected invalid cycle, got %v", err)
	}
	if _, err := env.Engine.MarkSeeded(env.Ctx, c.ID, "missing", seedDay, 0); !errors.Is(err, lifecycle.ErrPlantNotFound) {
		t.Fatalf("expected plant not found, got %v", err)
	}
	if _, err := env.Engine.UpdateHarvestCycle(env.Ctx, "missing", lifecycle.CycleUpdate{Name: "x", StartDate: seedDay}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected cycle not found, got %v", err)
	}
	if _, err := env.Engine.CreatePlantTask(env.Ctx, domain.CreatePlantTaskCommand{
		HarvestCycleID: c.ID, PlantHarvestCycleID: p.ID, Type: domain.ReasonWater, TargetDateStart: seedDay,
	}); !errors.Is(err, engine.ErrInvalid) {
		t.Fatalf("expected missing title rejected, got %v", err)
	}
	if _, err := env.Engine.CreatePlantTask(env.Ctx, domain.CreatePlantTaskCommand{
		HarvestCycleID: c.ID, PlantHarvestCycleID: p.ID, Type: domain.ReasonObservation, Title: "Look", TargetDateStart: seedDay,
	}); !errors.Is(err, engine.ErrInvalid) {
		t.Fatalf("expected non task type rejected, got %v", err)
	}
	if _, err := env.Engine.CreateWorkLog(env.Ctx, domain.CreateWorkLogCommand{
		Reason: domain.ReasonObservation, Log: "aphids",
		RelatedEntities: []domain.RelatedEntity{{EntityType: domain.EntityPlant}},
	}); !errors.Is(err, engine.ErrInvalid) {
		t.Fatalf("expected dangling reference rejected, got %v", err)
	}
	if _, err := env.Engine.CreateWorkLog(env.Ctx, domain.CreateWorkLogCommand{Reason: domain.ReasonObservation, Log: "  "}); !errors.Is(err, engine.ErrInvalid) {
		t.Fatalf("expected empty log rejected, got %v", err)
	}
}

func TestHardenOffLogWithoutPlantReferenceIsReported(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateWorkLog(env.Ctx, domain.CreateWorkLogCommand{
		Reason: domain.ReasonHardenOff,
		Log:    "Hardening everything",
	})
	if err != nil {
		t.Fatalf("a handler failure must not fail the log: %v", err)
	}
	err = env.Dispatcher.Publish(env.Ctx, domain.WorkLogRecorded{WorkLog: domain.WorkLog{ID: "w1", Reason: domain.ReasonHardenOff}})
	if !errors.Is(err, generators.ErrMissingRelatedEntity) {
		t.Fatalf("expected missing related entity, got %v", err)
	}
}

func TestMilestonesAndDeletionReachUserTasks(t *testing.T) {
	env := newTestEnv(t)
	c, p := env.seedPlant(t, domain.SeedIndoors)
	userTask := func(typ domain.Reason, title string) domain.PlantTask {
		t.Helper()
		task, err := env.Engine.CreatePlantTask(env.Ctx, domain.CreatePlantTaskCommand{
			HarvestCycleID:      c.ID,
			PlantHarvestCycleID: p.ID,
			Type:                typ,
			Title:               title,
			TargetDateStart:     seedDay,
		})
		if err != nil {
			t.Fatalf("create %s task: %v", typ, err)
		}
		return task
	}
	sow := userTask(domain.ReasonSowIndoors, "Sow tomatoes in cells")
	note := userTask(domain.ReasonInformation, "Check the seed packet")
	water := userTask(domain.ReasonWater, "Mist the cells")

	if _, err := env.Engine.MarkSeeded(env.Ctx, c.ID, p.ID, seedDay, 12); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := env.Engine.GetPlantTask(env.Ctx, sow.ID)
	if err != nil {
		t.Fatalf("get sow task: %v", err)
	}
	if got.CompletedDateTime == nil || !got.CompletedDateTime.Equal(seedDay) {
		t.Fatalf("expected user sowing task completed on %s, got %+v", seedDay, got.CompletedDateTime)
	}

	germinated := seedDay.AddDate(0, 0, 6)
	if _, err := env.Engine.MarkGerminated(env.Ctx, c.ID, p.ID, germinated, 90); err != nil {
		t.Fatalf("germinate: %v", err)
	}
	if got, err := env.Engine.GetPlantTask(env.Ctx, note.ID); err != nil || got.CompletedDateTime != nil {
		t.Fatalf("germination must leave user information tasks open: %+v %v", got, err)
	}

	if _, err := env.Engine.CreateWorkLog(env.Ctx, domain.CreateWorkLogCommand{
		Reason:        domain.ReasonWater,
		EventDateTime: seedDay.AddDate(0, 0, 2),
		Log:           "Misted",
		RelatedEntities: []domain.RelatedEntity{
			{EntityType: domain.EntityHarvestCycle, EntityID: c.ID},
			{EntityType: domain.EntityPlantHarvestCycle, EntityID: p.ID},
		},
	}); err != nil {
		t.Fatalf("log watering: %v", err)
	}
	if got, err := env.Engine.GetPlantTask(env.Ctx, water.ID); err != nil || got.CompletedDateTime == nil {
		t.Fatalf("expected user watering task completed by the log: %+v %v", got, err)
	}

	if err := env.Engine.DeletePlant(env.Ctx, c.ID, p.ID); err != nil {
		t.Fatalf("delete plant: %v", err)
	}
	if left := env.tasks(t, p.ID, "", true); len(left) != 0 {
		t.Fatalf("tasks left for deleted plant: %+v", left)
	}
}

func TestWaterLogWithoutPlantReferenceIsReported(t *testing.T) {
	env := newTestEnv(t)
	err := env.Dispatcher.Publish(env.Ctx, domain.WorkLogRecorded{WorkLog: domain.WorkLog{ID: "w2", Reason: domain.ReasonWater}})
	if !errors.Is(err, generators.ErrMissingRelatedEntity) {
		t.Fatalf("expected missing related entity, got %v", err)
	}
}
