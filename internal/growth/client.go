package growth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a Source backed by a plant catalog HTTP service. It is safe for
// concurrent use and must not be modified after the first lookup.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient creates a client with sane defaults.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{BaseURL: baseURL, HTTPClient: &http.Client{Timeout: timeout}, Timeout: timeout}
}

// APIError wraps non-2xx responses other than 404.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("growth api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) GetPlant(ctx context.Context, plantID string) (Plant, error) {
	var resp Plant
	err := c.get(ctx, "plants/"+url.PathEscape(plantID), &resp)
	return resp, err
}

func (c *Client) GetPlantVariety(ctx context.Context, plantID, varietyID string) (PlantVariety, error) {
	var resp PlantVariety
	err := c.get(ctx, fmt.Sprintf("plants/%s/varieties/%s", url.PathEscape(plantID), url.PathEscape(varietyID)), &resp)
	return resp, err
}

func (c *Client) GetGrowInstruction(ctx context.Context, plantID, growInstructionID string) (GrowInstruction, error) {
	var resp GrowInstruction
	err := c.get(ctx, fmt.Sprintf("plants/%s/grow-instructions/%s", url.PathEscape(plantID), url.PathEscape(growInstructionID)), &resp)
	return resp, err
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	u := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", endpoint, ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
