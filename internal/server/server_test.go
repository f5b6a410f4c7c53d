package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growline/internal/config"
	"growline/internal/db"
	"growline/internal/domain"
	"growline/internal/engine"
	"growline/internal/events"
	"growline/internal/generators"
	"growline/internal/growth"
	"growline/internal/lifecycle"
	"growline/internal/metrics"
	"growline/internal/migrate"
)

const testCatalog = `
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
`

type testServer struct {
	*httptest.Server
	Engine     engine.Engine
	Dispatcher *events.Dispatcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(context.Background(), conn))
	catalog, err := growth.ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)

	cfg := config.Default()
	reg, m := metrics.NewRegistry()
	d := events.NewDispatcher(events.WithMetrics(m), events.WithConcurrency(1))
	e := engine.New(conn, cfg, d)
	e.Metrics = m
	generators.Register(d, generators.Deps{
		Tasks:    e,
		WorkLogs: e,
		Cycles:   e,
		Growth:   growth.Scoped{Source: catalog},
		Defaults: cfg.Defaults,
	})
	handler, err := New(Config{Engine: e, BasePath: "/v1", Gatherer: reg})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, Engine: e, Dispatcher: d}
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func TestPlantLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/v1"

	res, data := doJSON(t, http.MethodPost, base+"/harvest-cycles", map[string]any{
		"name":       "Spring 2025",
		"start_date": "2025-03-01",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	cycle := decode[lifecycle.HarvestCycle](t, data)

	res, data = doJSON(t, http.MethodPost, base+"/harvest-cycles/"+cycle.ID+"/plants", map[string]any{
		"plant_id":            "tomato",
		"plant_name":          "Tomato",
		"grow_instruction_id": "indoors",
		"planting_method":     "SeedIndoors",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	plant := decode[lifecycle.PlantHarvestCycle](t, data)
	plantURL := base + "/harvest-cycles/" + cycle.ID + "/plants/" + plant.ID

	res, data = doJSON(t, http.MethodPost, plantURL+"/schedules", map[string]any{
		"task_type":  "Water",
		"start_date": "2025-03-03",
		"end_date":   "2025-03-04",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, data = doJSON(t, http.MethodPost, plantURL+"/milestones", map[string]any{
		"milestone": "seeded",
		"date":      "2025-03-01",
		"count":     12,
	})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	seeded := decode[lifecycle.PlantHarvestCycle](t, data)
	require.NotNil(t, seeded.SeedingDate)
	assert.Equal(t, 12, seeded.NumberOfSeeds)

	res, data = doJSON(t, http.MethodGet, base+"/tasks?plant_harvest_cycle_id="+plant.ID, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	tasks := decode[[]domain.PlantTask](t, data)
	require.Len(t, tasks, 2)
	titles := []string{tasks[0].Title, tasks[1].Title}
	assert.ElementsMatch(t, []string{"Water", "Record germination date"}, titles)

	res, data = doJSON(t, http.MethodPost, base+"/tasks/"+tasks[0].ID+"/complete?at=2025-03-03T08:00:00Z", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	done := decode[domain.PlantTask](t, data)
	require.NotNil(t, done.CompletedDateTime)
	assert.True(t, done.CompletedDateTime.Equal(time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)))

	res, data = doJSON(t, http.MethodGet, base+"/work-logs?entity_type=PlantHarvestCycle&entity_id="+plant.ID, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	logs := decode[[]domain.WorkLog](t, data)
	require.Len(t, logs, 1)
	assert.Equal(t, "Sowed 12 Tomato seeds indoors on Mar 1, 2025.", logs[0].Log)

	res, _ = doJSON(t, http.MethodDelete, plantURL, nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)
	res, data = doJSON(t, http.MethodGet, base+"/tasks?include_resolved=true&plant_harvest_cycle_id="+plant.ID, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Empty(t, decode[[]domain.PlantTask](t, data))
}

func TestPartialPlantUpdate(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	c, err := srv.Engine.CreateHarvestCycle(ctx, lifecycle.NewHarvestCycle{Name: "Fall", StartDate: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	p, err := srv.Engine.AddPlant(ctx, c.ID, lifecycle.NewPlant{PlantID: "tomato", PlantName: "Tomato", PlantingMethod: domain.DirectSeed, Notes: "south fence"})
	require.NoError(t, err)

	res, data := doJSON(t, http.MethodPatch, srv.URL+"/v1/harvest-cycles/"+c.ID+"/plants/"+p.ID, map[string]any{
		"spacing_in_inches": 18,
	})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	got := decode[lifecycle.PlantHarvestCycle](t, data)
	assert.Equal(t, 18, got.SpacingInInches)
	assert.Equal(t, "south fence", got.Notes)
}

func TestErrorEnvelope(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/v1"

	res, data := doJSON(t, http.MethodGet, base+"/harvest-cycles/missing", nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "not_found", env.Error.Code)

	res, data = doJSON(t, http.MethodPost, base+"/harvest-cycles", map[string]any{"name": "x", "start_date": "March"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))

	res, data = doJSON(t, http.MethodPost, base+"/harvest-cycles", map[string]any{"name": "Spring", "start_date": "2025-03-01"})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	cycle := decode[lifecycle.HarvestCycle](t, data)
	plant := map[string]any{"plant_id": "tomato", "plant_name": "Tomato", "planting_method": "DirectSeed"}
	res, _ = doJSON(t, http.MethodPost, base+"/harvest-cycles/"+cycle.ID+"/plants", plant)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	res, data = doJSON(t, http.MethodPost, base+"/harvest-cycles/"+cycle.ID+"/plants", plant)
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "duplicate_plant", env.Error.Code)

	res, data = doJSON(t, http.MethodPost, base+"/harvest-cycles/"+cycle.ID+"/plants/missing/milestones", map[string]any{
		"milestone": "seeded", "date": "2025-03-02",
	})
	assert.Equal(t, http.StatusNotFound, res.StatusCode, string(data))

	res, data = doJSON(t, http.MethodPost, base+"/work-logs", map[string]any{"reason": "Gossip", "log": "hello"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
}

func TestHealthMetricsAndOpenAPI(t *testing.T) {
	srv := newTestServer(t)

	res, data := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(data))

	res, data = doJSON(t, http.MethodGet, srv.URL+"/v1/openapi.json", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "/v1/harvest-cycles/{cycle_id}/plants/{plant_id}/milestones")

	_, err := srv.Engine.CreateHarvestCycle(context.Background(), lifecycle.NewHarvestCycle{Name: "Metrics", StartDate: time.Now()})
	require.NoError(t, err)
	res, data = doJSON(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), `growline_events_published_total{topic="HarvestCycleCreated"} 1`)
}

func TestWebhookDelivery(t *testing.T) {
	type delivery struct {
		header http.Header
		body   []byte
	}
	got := make(chan delivery, 8)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- delivery{header: r.Header.Clone(), body: body}
	}))
	defer receiver.Close()

	srv := newTestServer(t)
	n := RegisterWebhooks(srv.Dispatcher, []config.Webhook{
		{URL: receiver.URL, Events: []string{"HarvestCycleCreated"}, Secret: "s3cret"},
		{URL: receiver.URL, Enabled: new(bool)},
	}, nil)
	require.Equal(t, 1, n)

	c, err := srv.Engine.CreateHarvestCycle(context.Background(), lifecycle.NewHarvestCycle{Name: "Hooked", StartDate: time.Now()})
	require.NoError(t, err)

	var d delivery
	select {
	case d = <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
	}
	assert.Equal(t, "HarvestCycleCreated", d.header.Get("X-Growline-Event"))
	sig := strings.TrimPrefix(d.header.Get("X-Growline-Signature"), "sha256=")
	assert.True(t, hmac.Equal([]byte(sign("s3cret", d.body)), []byte(sig)))
	var body struct {
		Type     string `json:"type"`
		EntityID string `json:"entity_id"`
	}
	require.NoError(t, json.Unmarshal(d.body, &body))
	assert.Equal(t, "HarvestCycleCreated", body.Type)
	assert.Equal(t, c.ID, body.EntityID)

	_, err = srv.Engine.UpdateHarvestCycle(context.Background(), c.ID, lifecycle.CycleUpdate{Name: "Renamed", StartDate: c.StartDate})
	require.NoError(t, err)
	select {
	case extra := <-got:
		t.Fatalf("unexpected delivery %s", extra.body)
	default:
	}
}

func TestEventFilter(t *testing.T) {
	assert.True(t, newEventFilter(nil).match("anything"))
	assert.True(t, newEventFilter([]string{" ", ""}).match("anything"))
	f := newEventFilter([]string{"PlantHarvestCycleSeeded"})
	assert.True(t, f.match("PlantHarvestCycleSeeded"))
	assert.False(t, f.match("PlantHarvestCycleDeleted"))
}
