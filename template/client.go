package template

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

// Client selects templates via the template service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a template service client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type selectRequest struct {
	TicketID  string   `json:"ticket_id"`
	Summary   string   `json:"summary"`
	IssueType string   `json:"issue_type"`
	Labels    []string `json:"labels"`
}

type selectResponse struct {
	TemplateName string `json:"template_name"`
}

// Select asks the template service for the best template.
func (c *Client) Select(ctx context.Context, snap *model.TicketSnapshot) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("template service not configured")
	}

	body, err := json.Marshal(selectRequest{
		TicketID:  snap.ID,
		Summary:   snap.Summary,
		IssueType: snap.IssueType,
		Labels:    snap.Labels,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/select", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("selecting template for %s: %w", snap.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("template service returned %d", resp.StatusCode)
	}

	var out selectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding template response: %w", err)
	}
	if out.TemplateName == "" {
		return "", fmt.Errorf("template service returned an empty name")
	}
	return out.TemplateName, nil
}

// Ping checks the template service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if c.baseURL == "" {
		return fmt.Errorf("template service not configured")
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
		return fmt.Errorf("template service health returned %d", resp.StatusCode)
	}
	return nil
}
