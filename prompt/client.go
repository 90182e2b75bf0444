package prompt

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

// Client generates prompts via the prompt builder service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a prompt builder client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	TemplateName string                `json:"template_name"`
	Ticket       *model.TicketSnapshot `json:"ticket"`
	Enrichment   *model.Enrichment     `json:"enrichment,omitempty"`
}

type generateResponse struct {
	PromptText string `json:"prompt_text"`
}

// Generate asks the prompt builder service to render the prompt.
func (c *Client) Generate(ctx context.Context, templateName string, snap *model.TicketSnapshot, enr *model.Enrichment) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("prompt builder not configured")
	}

	body, err := json.Marshal(generateRequest{
		TemplateName: templateName,
		Ticket:       snap,
		Enrichment:   enr,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generating prompt for %s: %w", snap.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("prompt builder returned %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding prompt response: %w", err)
	}
	if out.PromptText == "" {
		return "", fmt.Errorf("prompt builder returned an empty prompt")
	}
	return out.PromptText, nil
}

// Ping checks the prompt builder health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if c.baseURL == "" {
		return fmt.Errorf("prompt builder not configured")
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
		return fmt.Errorf("prompt builder health returned %d", resp.StatusCode)
	}
	return nil
}
