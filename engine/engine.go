// Package engine orchestrates the session lifecycle: ticket fetch, template
// selection, enrichment, prompt generation, and finalization with scoring.
// It depends only on interfaces (store, ticket, template, enrich, prompt,
// scoring).
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ArnoldoM23/jrdev-gateway/enrich"
	"github.com/ArnoldoM23/jrdev-gateway/model"
	"github.com/ArnoldoM23/jrdev-gateway/prompt"
	"github.com/ArnoldoM23/jrdev-gateway/scoring"
	"github.com/ArnoldoM23/jrdev-gateway/store"
	"github.com/ArnoldoM23/jrdev-gateway/template"
	"github.com/ArnoldoM23/jrdev-gateway/ticket"
)

// Fatal orchestration errors. Everything else degrades with a fallback.
var (
	// ErrPromptGeneration means no prompt could be produced for the ticket.
	ErrPromptGeneration = errors.New("prompt generation failed")

	// ErrSessionPersistence means the session store rejected a write during
	// preparation.
	ErrSessionPersistence = errors.New("session persistence failed")

	// ErrSessionNotFound means finalization referenced an unknown session.
	ErrSessionNotFound = errors.New("session not found")
)

// TemplateUpdateThreshold is the score below which a template update is
// recommended at finalization.
const TemplateUpdateThreshold = 80

// Notifier receives finalized sessions. Errors are logged and swallowed.
type Notifier interface {
	SessionFinalized(ctx context.Context, sess *model.Session, score *model.ScoreResult) error
}

// Pinger is implemented by collaborator clients that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds engine configuration and collaborators.
type Config struct {
	Store     store.SessionStore
	Tickets   ticket.Source // optional; nil means every ticket resolves from Fallback
	Fallback  ticket.Source // used when Tickets fails or is unset; defaults to the bundled sample
	Templates template.Selector
	Enricher  enrich.Enricher
	Prompts   prompt.Generator
	Scorer    scoring.Scorer
	Notifier  Notifier // optional

	// Retention is how long a non-terminal session may sit idle before the
	// reaper expires it (default 60m).
	Retention time.Duration

	// CallTimeout bounds each collaborator call during preparation (default 10s).
	CallTimeout time.Duration

	Logger *log.Logger
}

// Engine orchestrates session preparation and finalization.
type Engine struct {
	config Config
	log    *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Engine. Store, Templates, Prompts, and Scorer must be set;
// the rest are optional.
func New(cfg Config) *Engine {
	if cfg.Retention == 0 {
		cfg.Retention = 60 * time.Minute
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.Fallback == nil {
		cfg.Fallback = ticket.Fallback()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{config: cfg, log: logger}
}

// Store returns the session store.
func (e *Engine) Store() store.SessionStore { return e.config.Store }

// Retention returns the configured session retention window.
func (e *Engine) Retention() time.Duration { return e.config.Retention }

// Start starts background goroutines (stale session reaper). Call Stop to
// shut down.
func (e *Engine) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.reapStaleSessions(e.ctx)
	}()
}

// Stop cancels all background work and waits for goroutines to finish.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) reapStaleSessions(ctx context.Context) {
	interval := e.config.Retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := e.config.Store.ExpireStale(ctx, e.config.Retention)
			if err != nil {
				e.log.Printf("reaper: expire stale sessions failed: %v", err)
				continue
			}
			if n > 0 {
				e.log.Printf("reaper: expired %d stale session(s)", n)
			}
		}
	}
}

// --- Preparation ---

// PrepareRequest describes a prepare_agent_task invocation.
type PrepareRequest struct {
	TicketID    string
	Repo        string
	Branch      string
	ProjectRoot string
}

// PrepareResult is the outcome of a successful preparation.
type PrepareResult struct {
	SessionID         string   `json:"session_id"`
	TicketID          string   `json:"ticket_id"`
	Prompt            string   `json:"prompt_text"`
	PromptHash        string   `json:"prompt_hash"`
	TemplateUsed      string   `json:"template_used"`
	Files             []string `json:"files_to_modify"`
	Commands          []string `json:"commands"`
	Source            string   `json:"source"` // "live" or "fallback"
	TemplateFallback  bool     `json:"template_fallback"`
	EnrichmentSkipped bool     `json:"enrichment_skipped"`
	ProcessingTimeMS  int64    `json:"processing_time_ms"`
}

// PrepareTask runs the preparation pipeline for a ticket and persists a
// session tracking it.
//
// Ticket fetch, template selection, and enrichment degrade on failure.
// Prompt generation and session persistence are fatal.
func (e *Engine) PrepareTask(ctx context.Context, req PrepareRequest) (*PrepareResult, error) {
	started := time.Now()

	snap, source := e.resolveTicket(ctx, req.TicketID)

	templateName, templateFallback := e.selectTemplate(ctx, snap)

	enrichment := e.enrichTicket(ctx, snap)

	promptText, err := e.config.Prompts.Generate(ctx, templateName, snap, enrichment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPromptGeneration, err)
	}

	metadata := map[string]string{"source": source}
	if req.Repo != "" {
		metadata["repo"] = req.Repo
	}
	if req.Branch != "" {
		metadata["branch"] = req.Branch
	}
	if req.ProjectRoot != "" {
		metadata["project_root"] = req.ProjectRoot
	}

	sess, err := e.config.Store.Create(ctx, req.TicketID, metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionPersistence, err)
	}

	active := model.StatusActive
	hash := prompt.Hash(promptText)
	sess, err = e.config.Store.Update(ctx, sess.ID, store.Update{
		Status:       &active,
		Prompt:       &promptText,
		PromptHash:   &hash,
		TemplateUsed: &templateName,
	})
	if err != nil || sess == nil {
		return nil, fmt.Errorf("%w: activating session: %v", ErrSessionPersistence, err)
	}

	return &PrepareResult{
		SessionID:         sess.ID,
		TicketID:          req.TicketID,
		Prompt:            promptText,
		PromptHash:        hash,
		TemplateUsed:      templateName,
		Files:             prompt.ExtractFiles(promptText),
		Commands:          prompt.ExtractCommands(promptText),
		Source:            source,
		TemplateFallback:  templateFallback,
		EnrichmentSkipped: enrichment == nil,
		ProcessingTimeMS:  time.Since(started).Milliseconds(),
	}, nil
}

// resolveTicket fetches the live ticket, falling back to the bundled sample.
// With no live source configured, the result is always flagged "fallback" so
// callers can tell sample data from real data.
func (e *Engine) resolveTicket(ctx context.Context, ticketID string) (*model.TicketSnapshot, string) {
	if e.config.Tickets != nil {
		callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
		defer cancel()

		snap, err := e.config.Tickets.Fetch(callCtx, ticketID)
		if err == nil && snap != nil {
			snap.Normalize()
			return snap, "live"
		}
		if err != nil {
			e.log.Printf("Ticket fetch failed for %s (falling back to sample): %v", ticketID, err)
		}
	}

	snap, _ := e.config.Fallback.Fetch(ctx, ticketID)
	snap.Normalize()
	return snap, "fallback"
}

// selectTemplate picks a template, defaulting on failure.
func (e *Engine) selectTemplate(ctx context.Context, snap *model.TicketSnapshot) (string, bool) {
	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	name, err := e.config.Templates.Select(callCtx, snap)
	if err != nil || name == "" {
		e.log.Printf("Template selection failed for %s (using %q): %v", snap.ID, template.Default, err)
		return template.Default, true
	}
	return name, false
}

// enrichTicket attaches memory context, proceeding without on failure.
func (e *Engine) enrichTicket(ctx context.Context, snap *model.TicketSnapshot) *model.Enrichment {
	if e.config.Enricher == nil {
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	enrichment, err := e.config.Enricher.Enrich(callCtx, snap)
	if err != nil {
		e.log.Printf("Enrichment failed for %s (proceeding without): %v", snap.ID, err)
		return nil
	}
	return enrichment
}

// --- Finalization ---

// FinalizeRequest describes a finalize_session invocation. Success defaults
// to true when unset.
type FinalizeRequest struct {
	SessionID      string
	TicketID       string
	Success        *bool
	PRURL          string
	FilesModified  []string
	RetryCount     int
	ManualEdits    int
	DurationMS     int64
	Feedback       string
	ChangeRequired string
	ChangesMade    string
	ErrorMessage   string

	// AgentTelemetry is an opaque blob from the agent, forwarded to scoring.
	AgentTelemetry json.RawMessage
}

// Analytics summarizes a finalized session.
type Analytics struct {
	TicketID      string     `json:"ticket_id"`
	DurationMS    int64      `json:"duration_ms"`
	RetryCount    int        `json:"retry_count"`
	ManualEdits   int        `json:"manual_edits"`
	FilesModified int        `json:"files_modified"`
	TemplateUsed  string     `json:"template_used,omitempty"`
	PromptHash    string     `json:"prompt_hash,omitempty"`
	PRCreated     bool       `json:"pr_created"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// TemplateUpdate is the recommendation emitted for low-scoring sessions.
type TemplateUpdate struct {
	TemplateName string `json:"template_name"`
	Reason       string `json:"reason"`
}

// FinalizeResult is the outcome of finalizing a session.
type FinalizeResult struct {
	Session        *model.Session     `json:"session"`
	Analytics      Analytics          `json:"analytics"`
	Score          *model.ScoreResult `json:"pess_score,omitempty"`
	ScoreDegraded  bool               `json:"score_degraded,omitempty"`
	TemplateUpdate *TemplateUpdate    `json:"template_update,omitempty"`
}

// FinalizeTask closes out a session with its outcome, scores it, and builds
// analytics. A missing session or a finalize against a terminal session is
// fatal; scoring failures degrade to a nil score.
func (e *Engine) FinalizeTask(ctx context.Context, req FinalizeRequest) (*FinalizeResult, error) {
	sess, err := e.config.Store.Get(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("looking up session %s: %w", req.SessionID, err)
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, req.SessionID)
	}

	success := req.Success == nil || *req.Success
	if success {
		sess, err = e.config.Store.Complete(ctx, req.SessionID, req.PRURL)
	} else {
		msg := req.ErrorMessage
		if msg == "" {
			msg = "agent reported failure"
		}
		sess, err = e.config.Store.Fail(ctx, req.SessionID, msg)
	}
	if err != nil {
		return nil, fmt.Errorf("finalizing session %s: %w", req.SessionID, err)
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, req.SessionID)
	}

	ticketID := req.TicketID
	if ticketID == "" {
		ticketID = sess.TicketID
	}

	score, degraded := e.scoreSession(ctx, sess, req, ticketID)

	result := &FinalizeResult{
		Session: sess,
		Analytics: Analytics{
			TicketID:      ticketID,
			DurationMS:    req.DurationMS,
			RetryCount:    req.RetryCount,
			ManualEdits:   req.ManualEdits,
			FilesModified: len(req.FilesModified),
			TemplateUsed:  sess.TemplateUsed,
			PromptHash:    sess.PromptHash,
			PRCreated:     req.PRURL != "",
			CompletedAt:   sess.CompletedAt,
		},
		Score:         score,
		ScoreDegraded: degraded,
	}

	if score != nil && score.Score < TemplateUpdateThreshold {
		result.TemplateUpdate = &TemplateUpdate{
			TemplateName: sess.TemplateUsed,
			Reason: fmt.Sprintf("session %s scored %d (below %d)",
				sess.ID, score.Score, TemplateUpdateThreshold),
		}
	}

	if e.config.Notifier != nil {
		if err := e.config.Notifier.SessionFinalized(ctx, sess, score); err != nil {
			e.log.Printf("Notifier failed for session %s: %v", sess.ID, err)
		}
	}

	return result, nil
}

func (e *Engine) scoreSession(ctx context.Context, sess *model.Session, req FinalizeRequest, ticketID string) (*model.ScoreResult, bool) {
	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	score, err := e.config.Scorer.Score(callCtx, scoring.Input{
		SessionID:      sess.ID,
		TicketID:       ticketID,
		RetryCount:     req.RetryCount,
		ManualEdits:    req.ManualEdits,
		DurationMS:     req.DurationMS,
		FilesModified:  req.FilesModified,
		PRCreated:      req.PRURL != "",
		Feedback:       req.Feedback,
		ChangeRequired: req.ChangeRequired,
		ChangesMade:    req.ChangesMade,
		AgentTelemetry: req.AgentTelemetry,
	})
	if err != nil {
		e.log.Printf("Scoring failed for session %s (proceeding without score): %v", sess.ID, err)
		return nil, true
	}
	return score, false
}

// --- Health ---

// HealthResult reports gateway and collaborator status.
type HealthResult struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Health pings every collaborator that supports it.
func (e *Engine) Health(ctx context.Context) *HealthResult {
	result := &HealthResult{Status: "healthy", Services: map[string]string{}}

	checks := []struct {
		name string
		dep  any
	}{
		{"ticket_source", e.config.Tickets},
		{"template_selector", e.config.Templates},
		{"enrichment", e.config.Enricher},
		{"prompt_generator", e.config.Prompts},
		{"scoring", e.config.Scorer},
		{"session_store", e.config.Store},
	}

	for _, c := range checks {
		p, ok := c.dep.(Pinger)
		if !ok {
			if c.dep != nil {
				result.Services[c.name] = "local"
			}
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := p.Ping(callCtx); err != nil {
			result.Services[c.name] = "unavailable"
			result.Status = "degraded"
		} else {
			result.Services[c.name] = "ok"
		}
		cancel()
	}

	return result
}
