// Package model defines the core domain types shared across all jrdev packages.
// It has zero dependencies on other jrdev packages.
package model

import "time"

// Status represents the current state of a session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether a session in this status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Rank orders statuses along the lifecycle. Transitions never decrease rank.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusActive:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return -1
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Session tracks one unit of agent work from preparation to finalization.
//
// Invariants maintained by the store: ErrorMessage is set exactly when the
// status is failed; CompletedAt and ArtifactURL are set only when the status
// is completed; UpdatedAt never moves backwards.
type Session struct {
	ID           string            `json:"id"`
	TicketID     string            `json:"ticket_id"`
	Status       Status            `json:"status"`
	Prompt       string            `json:"prompt,omitempty"`
	PromptHash   string            `json:"prompt_hash,omitempty"`
	TemplateUsed string            `json:"template_used,omitempty"`
	ArtifactURL  string            `json:"artifact_url,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// TicketSnapshot is a normalized view of a ticket at preparation time.
type TicketSnapshot struct {
	ID                 string   `json:"id"`
	Summary            string   `json:"summary"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	Labels             []string `json:"labels"`
	Components         []string `json:"components"`
	Files              []string `json:"files"`
	Priority           string   `json:"priority"`
	IssueType          string   `json:"issue_type"`
	Assignee           string   `json:"assignee"`
}

// Normalize fills zero values with conventional defaults so downstream
// consumers never have to nil-check.
func (t *TicketSnapshot) Normalize() {
	if t.AcceptanceCriteria == nil {
		t.AcceptanceCriteria = []string{}
	}
	if t.Labels == nil {
		t.Labels = []string{}
	}
	if t.Components == nil {
		t.Components = []string{}
	}
	if t.Files == nil {
		t.Files = []string{}
	}
	if t.IssueType == "" {
		t.IssueType = "Task"
	}
	if t.Priority == "" {
		t.Priority = "Medium"
	}
	if t.Assignee == "" {
		t.Assignee = "unassigned"
	}
}

// Enrichment holds synthetic context attached to a ticket before prompting.
type Enrichment struct {
	ContextEnriched bool     `json:"context_enriched"`
	ComplexityScore float64  `json:"complexity_score"`
	RelatedFiles    []string `json:"related_files,omitempty"`
	RelatedTickets  []string `json:"related_tickets,omitempty"`
}

// ScoreResult is the outcome of scoring a finalized session.
type ScoreResult struct {
	Score            int            `json:"score"`
	ClarityRating    string         `json:"clarity_rating"`
	AlgorithmVersion string         `json:"algorithm_version"`
	Breakdown        map[string]int `json:"breakdown,omitempty"`
}

// Truncate shortens a string to maxLen runes, adding "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 3 {
		r := []rune(s)
		if len(r) <= maxLen {
			return s
		}
		return string(r[:maxLen])
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
