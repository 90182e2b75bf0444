// Package enrich attaches synthetic memory context to a ticket before
// prompt generation. Enrichment is best effort: the orchestrator proceeds
// without it when the memory service is unavailable.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ArnoldoM23/jrdev-gateway/model"
)

// Enricher produces enrichment context for a ticket snapshot.
type Enricher interface {
	Enrich(ctx context.Context, snap *model.TicketSnapshot) (*model.Enrichment, error)
}

// Client enriches tickets via the memory service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a memory service client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type enrichRequest struct {
	TicketID    string   `json:"ticket_id"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
}

// Enrich queries the memory service for related context.
func (c *Client) Enrich(ctx context.Context, snap *model.TicketSnapshot) (*model.Enrichment, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("memory service not configured")
	}

	body, err := json.Marshal(enrichRequest{
		TicketID:    snap.ID,
		Summary:     snap.Summary,
		Description: snap.Description,
		Labels:      snap.Labels,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/enrich", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enriching %s: %w", snap.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("memory service returned %d", resp.StatusCode)
	}

	var out model.Enrichment
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding enrichment: %w", err)
	}
	out.ContextEnriched = true
	return &out, nil
}

// Ping checks the memory service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if c.baseURL == "" {
		return fmt.Errorf("memory service not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("memory service health returned %d", resp.StatusCode)
	}
	return nil
}
