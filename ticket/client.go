package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ArnoldoM23/jrdev-gateway/model"
)

// Client fetches tickets from a Jira bridge service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a ticket client for the given bridge base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ticketPayload is the subset of the bridge response we use.
type ticketPayload struct {
	Key    string `json:"key"`
	Fields struct {
		Summary            string   `json:"summary"`
		Description        string   `json:"description"`
		AcceptanceCriteria []string `json:"acceptance_criteria"`
		Labels             []string `json:"labels"`
		Files              []string `json:"files"`
		Priority           struct {
			Name string `json:"name"`
		} `json:"priority"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Assignee struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Components []struct {
			Name string `json:"name"`
		} `json:"components"`
	} `json:"fields"`
}

// Fetch retrieves a ticket snapshot from the bridge.
func (c *Client) Fetch(ctx context.Context, ticketID string) (*model.TicketSnapshot, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("ticket bridge not configured")
	}

	url := fmt.Sprintf("%s/rest/api/2/issue/%s", c.baseURL, ticketID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building ticket request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching ticket %s: %w", ticketID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ticket bridge returned %d for %s", resp.StatusCode, ticketID)
	}

	var payload ticketPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding ticket %s: %w", ticketID, err)
	}

	snap := &model.TicketSnapshot{
		ID:                 payload.Key,
		Summary:            payload.Fields.Summary,
		Description:        payload.Fields.Description,
		AcceptanceCriteria: payload.Fields.AcceptanceCriteria,
		Labels:             payload.Fields.Labels,
		Files:              payload.Fields.Files,
		Priority:           payload.Fields.Priority.Name,
		IssueType:          payload.Fields.IssueType.Name,
		Assignee:           payload.Fields.Assignee.DisplayName,
	}
	for _, c := range payload.Fields.Components {
		snap.Components = append(snap.Components, c.Name)
	}
	if snap.ID == "" {
		snap.ID = ticketID
	}
	snap.Normalize()
	return snap, nil
}

// Ping checks the bridge health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if c.baseURL == "" {
		return fmt.Errorf("ticket bridge not configured")
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
		return fmt.Errorf("ticket bridge health returned %d", resp.StatusCode)
	}
	return nil
}
