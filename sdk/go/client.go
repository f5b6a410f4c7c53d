package growlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Growline HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath:   "/v1",
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Timeout:    10 * time.Second,
	}
}

// HarvestCycle represents the API harvest cycle model (partial).
type HarvestCycle struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date,omitempty"`
	Version   int     `json:"version"`
	Plants    []Plant `json:"plants"`
}

// Plant represents a plant within a harvest cycle (partial).
type Plant struct {
	ID              string `json:"id"`
	HarvestCycleID  string `json:"harvest_cycle_id"`
	PlantID         string `json:"plant_id"`
	PlantName       string `json:"plant_name"`
	PlantingMethod  string `json:"planting_method"`
	SeedingDate     string `json:"seeding_date,omitempty"`
	GerminationDate string `json:"germination_date,omitempty"`
	TransplantDate  string `json:"transplant_date,omitempty"`
}

// Schedule is a planned work window for a plant.
type Schedule struct {
	ID        string `json:"id"`
	TaskType  string `json:"task_type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Notes     string `json:"notes,omitempty"`
}

// Task is a to-do item.
type Task struct {
	ID                  string `json:"id"`
	HarvestCycleID      string `json:"harvest_cycle_id"`
	PlantHarvestCycleID string `json:"plant_harvest_cycle_id"`
	Type                string `json:"type"`
	Title               string `json:"title"`
	TargetDateStart     string `json:"target_date_start"`
	TargetDateEnd       string `json:"target_date_end"`
	CompletedDateTime   string `json:"completed_date_time,omitempty"`
	IsSystemGenerated   bool   `json:"is_system_generated"`
}

// RelatedEntity ties a work log to a cycle, plant or bed.
type RelatedEntity struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name,omitempty"`
}

// WorkLog is a garden diary entry.
type WorkLog struct {
	ID              string          `json:"id"`
	Reason          string          `json:"reason"`
	EventDateTime   string          `json:"event_date_time"`
	Log             string          `json:"log"`
	RelatedEntities []RelatedEntity `json:"related_entities"`
}

// APIError wraps non-2xx responses. Code and Message come from the error envelope when present.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateHarvestCycle starts a cycle on the given YYYY-MM-DD date.
func (c *Client) CreateHarvestCycle(ctx context.Context, name, startDate string) (HarvestCycle, error) {
	body := map[string]any{
		"name":       name,
		"start_date": startDate,
	}
	var resp HarvestCycle
	err := c.do(ctx, http.MethodPost, "harvest-cycles", body, &resp)
	return resp, err
}

// HarvestCycle fetches a cycle with its plants.
func (c *Client) HarvestCycle(ctx context.Context, id string) (HarvestCycle, error) {
	var resp HarvestCycle
	err := c.do(ctx, http.MethodGet, "harvest-cycles/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// AddPlant adds a plant to a cycle.
func (c *Client) AddPlant(ctx context.Context, cycleID, plantID, plantName, method string) (Plant, error) {
	body := map[string]any{
		"plant_id":        plantID,
		"plant_name":      plantName,
		"planting_method": method,
	}
	var resp Plant
	err := c.do(ctx, http.MethodPost, c.plantPath(cycleID, ""), body, &resp)
	return resp, err
}

// Milestone is one of seeded, germinated, transplanted, harvested or completed.
type Milestone struct {
	Milestone string  `json:"milestone"`
	Date      string  `json:"date"`
	Count     int     `json:"count,omitempty"`
	Rate      float64 `json:"rate,omitempty"`
	Weight    float64 `json:"weight,omitempty"`
	Items     int     `json:"items,omitempty"`
}

// RecordMilestone records a plant milestone.
func (c *Client) RecordMilestone(ctx context.Context, cycleID, plantID string, m Milestone) (Plant, error) {
	var resp Plant
	err := c.do(ctx, http.MethodPost, c.plantPath(cycleID, plantID)+"/milestones", m, &resp)
	return resp, err
}

// AddSchedule plans a work window for a plant. An empty endDate means a single day.
func (c *Client) AddSchedule(ctx context.Context, cycleID, plantID, taskType, startDate, endDate string) (Schedule, error) {
	body := map[string]any{
		"task_type":  taskType,
		"start_date": startDate,
	}
	if endDate != "" {
		body["end_date"] = endDate
	}
	var resp Schedule
	err := c.do(ctx, http.MethodPost, c.plantPath(cycleID, plantID)+"/schedules", body, &resp)
	return resp, err
}

// OpenTasks lists open tasks of a plant.
func (c *Client) OpenTasks(ctx context.Context, plantHarvestCycleID string) ([]Task, error) {
	q := url.Values{}
	q.Set("plant_harvest_cycle_id", plantHarvestCycleID)
	var resp []Task
	err := c.do(ctx, http.MethodGet, "tasks?"+q.Encode(), nil, &resp)
	return resp, err
}

// CompleteTask marks a task done now.
func (c *Client) CompleteTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(id)+"/complete", nil, &resp)
	return resp, err
}

// CreateWorkLog records work against the related entities.
func (c *Client) CreateWorkLog(ctx context.Context, reason, log string, related ...RelatedEntity) (WorkLog, error) {
	body := map[string]any{
		"reason":           reason,
		"log":              log,
		"related_entities": related,
	}
	var resp WorkLog
	err := c.do(ctx, http.MethodPost, "work-logs", body, &resp)
	return resp, err
}

// WorkLogs returns the diary entries of one entity, newest first.
func (c *Client) WorkLogs(ctx context.Context, entityType, entityID string, limit int) ([]WorkLog, error) {
	q := url.Values{}
	q.Set("entity_type", entityType)
	q.Set("entity_id", entityID)
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var resp []WorkLog
	err := c.do(ctx, http.MethodGet, "work-logs?"+q.Encode(), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) plantPath(cycleID, plantID string) string {
	p := fmt.Sprintf("harvest-cycles/%s/plants", url.PathEscape(cycleID))
	if plantID != "" {
		p += "/" + url.PathEscape(plantID)
	}
	return p
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
