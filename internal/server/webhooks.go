package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"growline/internal/config"
	"growline/internal/domain"
	"growline/internal/events"
	"growline/internal/lifecycle"
)

const defaultWebhookTimeout = 5 * time.Second

// webhookTopics are the topics a webhook without an event filter receives.
func webhookTopics() []string {
	out := make([]string, 0, len(lifecycle.Triggers)+1)
	for _, t := range lifecycle.Triggers {
		out = append(out, string(t))
	}
	return append(out, domain.TopicWorkLogRecorded)
}

// RegisterWebhooks subscribes one notifier per active webhook and returns how many were registered.
func RegisterWebhooks(d *events.Dispatcher, hooks []config.Webhook, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	n := 0
	for _, hook := range hooks {
		if !hook.Active() || strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.Register(newWebhookNotifier(hook, logger))
		n++
	}
	return n
}

// webhookNotifier posts every event it receives to one endpoint.
type webhookNotifier struct {
	hook   config.Webhook
	client *http.Client
	logger *slog.Logger
}

func newWebhookNotifier(hook config.Webhook, logger *slog.Logger) webhookNotifier {
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	return webhookNotifier{hook: hook, client: &http.Client{Timeout: timeout}, logger: logger}
}

func (w webhookNotifier) Name() string { return "webhook " + w.hook.URL }

func (w webhookNotifier) Topics() []string {
	filter := newEventFilter(w.hook.Events)
	var out []string
	for _, topic := range webhookTopics() {
		if filter.match(topic) {
			out = append(out, topic)
		}
	}
	return out
}

type webhookEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	EntityID   string    `json:"entity_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type lifecyclePayload struct {
	HarvestCycleID   string                                `json:"harvest_cycle_id,omitempty"`
	HarvestCycleName string                                `json:"harvest_cycle_name,omitempty"`
	Plant            *lifecycle.PlantHarvestCycle          `json:"plant,omitempty"`
	Schedule         *lifecycle.PlantSchedule              `json:"schedule,omitempty"`
	Placement        *lifecycle.GardenBedPlantHarvestCycle `json:"placement,omitempty"`
}

func webhookBody(ev events.Event) webhookEvent {
	body := webhookEvent{ID: uuid.NewString(), Type: ev.Topic()}
	switch e := ev.(type) {
	case lifecycle.Event:
		p := lifecyclePayload{Plant: e.Plant, Schedule: e.Schedule, Placement: e.Placement}
		if e.Cycle != nil {
			p.HarvestCycleID, p.HarvestCycleName = e.Cycle.ID, e.Cycle.Name
		}
		body.EntityID = e.EntityID()
		body.OccurredAt = e.OccurredAt
		body.Payload = p
	case domain.WorkLogRecorded:
		body.EntityID = e.WorkLog.ID
		body.OccurredAt = e.WorkLog.CreatedAt
		body.Payload = e.WorkLog
	default:
		body.OccurredAt = time.Now().UTC()
		body.Payload = ev
	}
	return body
}

func (w webhookNotifier) Handle(ctx context.Context, ev events.Event) error {
	body := webhookBody(ev)
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Growline-Event", body.Type)
	req.Header.Set("X-Growline-Delivery", body.ID)
	if secret := strings.TrimSpace(w.hook.Secret); secret != "" {
		req.Header.Set("X-Growline-Signature", "sha256="+sign(secret, data))
	}
	res, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver to %s: %w", w.hook.URL, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("deliver to %s: status %d: %s", w.hook.URL, res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	w.logger.DebugContext(ctx, "webhook delivered", "url", w.hook.URL, "event", body.Type, "delivery", body.ID)
	return nil
}

// sign returns the hex HMAC-SHA256 of data keyed by secret.
func sign(secret string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	if len(events) == 0 {
		return eventFilter{all: true}
	}
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
