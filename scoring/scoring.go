// Package scoring rates finalized sessions on prompt effectiveness.
//
// The MVP scorer runs in process and is the default; Client delegates to
// the external scoring service. Scoring failures never fail finalization:
// the orchestrator degrades to a nil score.
package scoring

import (
	"context"
	"encoding/json"

	"github.com/ArnoldoM23/jrdev-gateway/model"
)

// AlgorithmVersion identifies the in-process scoring algorithm.
const AlgorithmVersion = "mvp_1.0"

// Input is the telemetry a finalized session is scored on.
type Input struct {
	SessionID      string   `json:"session_id"`
	TicketID       string   `json:"ticket_id"`
	RetryCount     int      `json:"retry_count"`
	ManualEdits    int      `json:"manual_edits"`
	DurationMS     int64    `json:"duration_ms"`
	FilesModified  []string `json:"files_modified"`
	PRCreated      bool     `json:"pr_created"`
	Feedback       string   `json:"feedback,omitempty"`
	ChangeRequired string   `json:"change_required,omitempty"`
	ChangesMade    string   `json:"changes_made,omitempty"`

	// AgentTelemetry is an opaque blob forwarded to the scoring service;
	// the in-process scorer ignores it.
	AgentTelemetry json.RawMessage `json:"agent_telemetry,omitempty"`
}

// Scorer rates a finalized session.
type Scorer interface {
	Score(ctx context.Context, in Input) (*model.ScoreResult, error)
}

// MVP is the baseline in-process scorer.
type MVP struct{}

// NewMVP creates the baseline scorer.
func NewMVP() *MVP { return &MVP{} }

// Score computes the baseline effectiveness score.
//
// Base 85. Retries cost 5 each (capped at 20), manual edits cost 2 each
// (capped at 15). Fast runs (<5min) earn 5, slow runs (>30min) lose 10.
// Modified files earn 2 each (capped at 10) and a created PR earns 5.
// The result is clamped to 0..100.
func (m *MVP) Score(ctx context.Context, in Input) (*model.ScoreResult, error) {
	breakdown := map[string]int{"base": 85}
	score := 85

	if p := min(in.RetryCount*5, 20); p > 0 {
		breakdown["retry_penalty"] = -p
		score -= p
	}
	if p := min(in.ManualEdits*2, 15); p > 0 {
		breakdown["manual_edit_penalty"] = -p
		score -= p
	}

	switch {
	case in.DurationMS > 0 && in.DurationMS < 5*60*1000:
		breakdown["duration_bonus"] = 5
		score += 5
	case in.DurationMS > 30*60*1000:
		breakdown["duration_penalty"] = -10
		score -= 10
	}

	if b := min(len(in.FilesModified)*2, 10); b > 0 {
		breakdown["files_bonus"] = b
		score += b
	}
	if in.PRCreated {
		breakdown["pr_bonus"] = 5
		score += 5
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return &model.ScoreResult{
		Score:            score,
		ClarityRating:    clarity(score),
		AlgorithmVersion: AlgorithmVersion,
		Breakdown:        breakdown,
	}, nil
}

func clarity(score int) string {
	switch {
	case score >= 85:
		return "High"
	case score >= 70:
		return "Medium"
	case score >= 50:
		return "Low"
	}
	return "Very Low"
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
