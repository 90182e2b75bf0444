package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/ArnoldoM23/jrdev-gateway/model"
	"github.com/ArnoldoM23/jrdev-gateway/prompt"
	"github.com/ArnoldoM23/jrdev-gateway/scoring"
	"github.com/ArnoldoM23/jrdev-gateway/store"
	"github.com/ArnoldoM23/jrdev-gateway/store/memory"
	"github.com/ArnoldoM23/jrdev-gateway/template"
)

// --- Fakes ---

type fakeTickets struct {
	snap *model.TicketSnapshot
	err  error
}

func (f *fakeTickets) Fetch(ctx context.Context, ticketID string) (*model.TicketSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	snap := *f.snap
	snap.ID = ticketID
	return &snap, nil
}

type fakeSelector struct {
	name string
	err  error
}

func (f *fakeSelector) Select(ctx context.Context, snap *model.TicketSnapshot) (string, error) {
	return f.name, f.err
}

type fakeEnricher struct {
	enr *model.Enrichment
	err error
}

func (f *fakeEnricher) Enrich(ctx context.Context, snap *model.TicketSnapshot) (*model.Enrichment, error) {
	return f.enr, f.err
}

type fakeGenerator struct {
	text string
	err  error
}

func (f *fakeGenerator) Generate(ctx context.Context, templateName string, snap *model.TicketSnapshot, enr *model.Enrichment) (string, error) {
	return f.text, f.err
}

type fakeScorer struct {
	res  *model.ScoreResult
	err  error
	last scoring.Input
}

func (f *fakeScorer) Score(ctx context.Context, in scoring.Input) (*model.ScoreResult, error) {
	f.last = in
	return f.res, f.err
}

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) SessionFinalized(ctx context.Context, sess *model.Session, score *model.ScoreResult) error {
	f.calls++
	return f.err
}

func testConfig() Config {
	return Config{
		Store: memory.New(),
		Tickets: &fakeTickets{snap: &model.TicketSnapshot{
			Summary:     "Add field",
			Description: "Add a field to the schema",
			Files:       []string{"schema/a.graphql"},
		}},
		Templates: &fakeSelector{name: "feature_schema_change"},
		Enricher:  &fakeEnricher{enr: &model.Enrichment{ContextEnriched: true, ComplexityScore: 4}},
		Prompts:   prompt.NewLocalGenerator(prompt.Defaults{}),
		Scorer:    scoring.NewMVP(),
		Logger:    log.New(io.Discard, "", 0),
	}
}

// --- Preparation ---

func TestPrepareTaskLiveSource(t *testing.T) {
	e := New(testConfig())
	ctx := context.Background()

	res, err := e.PrepareTask(ctx, PrepareRequest{TicketID: "CEPG-1", Repo: "acme/api", Branch: "main"})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if res.Source != "live" {
		t.Fatalf("expected live source, got %q", res.Source)
	}
	if res.TemplateUsed != "feature_schema_change" || res.TemplateFallback {
		t.Fatalf("unexpected template result: %+v", res)
	}
	if res.EnrichmentSkipped {
		t.Fatal("enrichment should not be skipped")
	}
	if res.Prompt == "" || len(res.PromptHash) != 16 {
		t.Fatalf("prompt fields incomplete: hash=%q", res.PromptHash)
	}

	sess, err := e.Store().Get(ctx, res.SessionID)
	if err != nil || sess == nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if sess.Status != model.StatusActive {
		t.Fatalf("expected active session, got %q", sess.Status)
	}
	if sess.PromptHash != res.PromptHash || sess.TemplateUsed != res.TemplateUsed {
		t.Fatalf("session fields diverge from result: %+v", sess)
	}
	if sess.Metadata["source"] != "live" || sess.Metadata["repo"] != "acme/api" {
		t.Fatalf("metadata incomplete: %v", sess.Metadata)
	}
}

func TestPrepareTaskTicketFallback(t *testing.T) {
	cfg := testConfig()
	cfg.Tickets = &fakeTickets{err: errors.New("bridge down")}
	e := New(cfg)

	res, err := e.PrepareTask(context.Background(), PrepareRequest{TicketID: "CEPG-2"})
	if err != nil {
		t.Fatalf("prepare must survive ticket failure: %v", err)
	}
	if res.Source != "fallback" {
		t.Fatalf("expected fallback source, got %q", res.Source)
	}
	if res.TicketID != "CEPG-2" {
		t.Fatalf("result must keep requested ticket ID, got %q", res.TicketID)
	}
}

func TestPrepareTaskNoTicketSourceFlagsFallback(t *testing.T) {
	cfg := testConfig()
	cfg.Tickets = nil
	e := New(cfg)

	res, err := e.PrepareTask(context.Background(), PrepareRequest{TicketID: "CEPG-9"})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if res.Source != "fallback" {
		t.Fatalf("sample data must be flagged fallback, got %q", res.Source)
	}

	sess, err := e.Store().Get(context.Background(), res.SessionID)
	if err != nil || sess == nil {
		t.Fatalf("session lookup: %v, %v", sess, err)
	}
	if sess.Metadata["source"] != "fallback" {
		t.Fatalf("session metadata source = %q, want fallback", sess.Metadata["source"])
	}
}

func TestPrepareTaskTemplateFallback(t *testing.T) {
	cfg := testConfig()
	cfg.Templates = &fakeSelector{err: errors.New("selector down")}
	e := New(cfg)

	res, err := e.PrepareTask(context.Background(), PrepareRequest{TicketID: "CEPG-3"})
	if err != nil {
		t.Fatalf("prepare must survive selector failure: %v", err)
	}
	if !res.TemplateFallback || res.TemplateUsed != template.Default {
		t.Fatalf("expected default template fallback, got %+v", res)
	}
}

func TestPrepareTaskEnrichmentSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.Enricher = &fakeEnricher{err: errors.New("memory service down")}
	e := New(cfg)

	res, err := e.PrepareTask(context.Background(), PrepareRequest{TicketID: "CEPG-4"})
	if err != nil {
		t.Fatalf("prepare must survive enrichment failure: %v", err)
	}
	if !res.EnrichmentSkipped {
		t.Fatal("expected enrichment_skipped flag")
	}
}

func TestPrepareTaskPromptGenerationFatal(t *testing.T) {
	cfg := testConfig()
	cfg.Prompts = &fakeGenerator{err: errors.New("renderer exploded")}
	e := New(cfg)
	ctx := context.Background()

	_, err := e.PrepareTask(ctx, PrepareRequest{TicketID: "CEPG-5"})
	if !errors.Is(err, ErrPromptGeneration) {
		t.Fatalf("expected ErrPromptGeneration, got %v", err)
	}

	// A fatally failed preparation leaves nothing behind.
	sessions, _ := e.Store().ListByTicket(ctx, "CEPG-5")
	if len(sessions) != 0 {
		t.Fatalf("no session expected, got %d", len(sessions))
	}
}

// --- Finalization ---

func prepare(t *testing.T, e *Engine, ticketID string) *PrepareResult {
	t.Helper()
	res, err := e.PrepareTask(context.Background(), PrepareRequest{TicketID: ticketID})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	return res
}

func TestFinalizeTaskSuccess(t *testing.T) {
	cfg := testConfig()
	notifier := &fakeNotifier{}
	cfg.Notifier = notifier
	e := New(cfg)
	ctx := context.Background()

	prep := prepare(t, e, "CEPG-10")
	res, err := e.FinalizeTask(ctx, FinalizeRequest{
		SessionID:     prep.SessionID,
		PRURL:         "https://github.com/acme/api/pull/7",
		FilesModified: []string{"a.graphql"},
		DurationMS:    3 * 60 * 1000,
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res.Session.Status != model.StatusCompleted {
		t.Fatalf("expected completed, got %q", res.Session.Status)
	}
	if res.Session.ArtifactURL == "" || res.Session.CompletedAt == nil {
		t.Fatalf("completion fields missing: %+v", res.Session)
	}
	if res.Score == nil || res.ScoreDegraded {
		t.Fatalf("expected a score, got %+v", res)
	}
	if res.Analytics.FilesModified != 1 || !res.Analytics.PRCreated {
		t.Fatalf("unexpected analytics: %+v", res.Analytics)
	}
	if res.Analytics.TicketID != "CEPG-10" {
		t.Fatalf("analytics ticket mismatch: %q", res.Analytics.TicketID)
	}
	if notifier.calls != 1 {
		t.Fatalf("notifier must be called once, got %d", notifier.calls)
	}
}

func TestFinalizeTaskForwardsTelemetryToScorer(t *testing.T) {
	cfg := testConfig()
	scorer := &fakeScorer{res: &model.ScoreResult{Score: 90, ClarityRating: "High"}}
	cfg.Scorer = scorer
	e := New(cfg)

	prep := prepare(t, e, "CEPG-14")
	telemetry := json.RawMessage(`{"model":"gpt-x","tokens":12345}`)
	_, err := e.FinalizeTask(context.Background(), FinalizeRequest{
		SessionID:      prep.SessionID,
		Feedback:       "prompt was clear",
		ChangesMade:    "added resolver",
		AgentTelemetry: telemetry,
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if string(scorer.last.AgentTelemetry) != string(telemetry) {
		t.Fatalf("scorer telemetry = %s, want %s", scorer.last.AgentTelemetry, telemetry)
	}
	if scorer.last.Feedback != "prompt was clear" || scorer.last.ChangesMade != "added resolver" {
		t.Fatalf("scorer input incomplete: %+v", scorer.last)
	}
}

func TestFinalizeTaskFailure(t *testing.T) {
	e := New(testConfig())
	ctx := context.Background()

	prep := prepare(t, e, "CEPG-11")
	success := false
	res, err := e.FinalizeTask(ctx, FinalizeRequest{
		SessionID:    prep.SessionID,
		Success:      &success,
		ErrorMessage: "tests never passed",
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res.Session.Status != model.StatusFailed {
		t.Fatalf("expected failed, got %q", res.Session.Status)
	}
	if res.Session.ErrorMessage != "tests never passed" {
		t.Fatalf("error message lost: %q", res.Session.ErrorMessage)
	}
	if res.Session.CompletedAt != nil || res.Session.ArtifactURL != "" {
		t.Fatalf("failed session must not carry completion fields: %+v", res.Session)
	}
}

func TestFinalizeTaskUnknownSession(t *testing.T) {
	e := New(testConfig())
	_, err := e.FinalizeTask(context.Background(), FinalizeRequest{SessionID: "jrdev_NOPE_00000000"})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestFinalizeTaskDoubleFinalize(t *testing.T) {
	e := New(testConfig())
	ctx := context.Background()

	prep := prepare(t, e, "CEPG-12")
	if _, err := e.FinalizeTask(ctx, FinalizeRequest{SessionID: prep.SessionID}); err != nil {
		t.Fatalf("first finalize: %v", err)
	}
	_, err := e.FinalizeTask(ctx, FinalizeRequest{SessionID: prep.SessionID})
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("second finalize must lose with ErrInvalidTransition, got %v", err)
	}
}

func TestFinalizeTaskScoreDegrades(t *testing.T) {
	cfg := testConfig()
	cfg.Scorer = &fakeScorer{err: errors.New("pess down")}
	e := New(cfg)

	prep := prepare(t, e, "CEPG-13")
	res, err := e.FinalizeTask(context.Background(), FinalizeRequest{SessionID: prep.SessionID})
	if err != nil {
		t.Fatalf("finalize must survive scoring failure: %v", err)
	}
	if res.Score != nil || !res.ScoreDegraded {
		t.Fatalf("expected degraded nil score, got %+v", res)
	}
	if res.Session.Status != model.StatusCompleted {
		t.Fatalf("session must still complete, got %q", res.Session.Status)
	}
}

func TestFinalizeTaskTemplateUpdateRecommendation(t *testing.T) {
	cfg := testConfig()
	cfg.Scorer = &fakeScorer{res: &model.ScoreResult{Score: 55, ClarityRating: "Low", AlgorithmVersion: "mvp_1.0"}}
	e := New(cfg)

	prep := prepare(t, e, "CEPG-14")
	res, err := e.FinalizeTask(context.Background(), FinalizeRequest{SessionID: prep.SessionID})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if res.TemplateUpdate == nil {
		t.Fatal("expected a template update recommendation for a low score")
	}
	if res.TemplateUpdate.TemplateName != "feature_schema_change" {
		t.Fatalf("recommendation names wrong template: %+v", res.TemplateUpdate)
	}
}

func TestFinalizeTaskNotifierErrorIsSwallowed(t *testing.T) {
	cfg := testConfig()
	cfg.Notifier = &fakeNotifier{err: errors.New("slack down")}
	e := New(cfg)

	prep := prepare(t, e, "CEPG-15")
	if _, err := e.FinalizeTask(context.Background(), FinalizeRequest{SessionID: prep.SessionID}); err != nil {
		t.Fatalf("notifier failure must not fail finalize: %v", err)
	}
}

// --- Health ---

func TestHealthLocalCollaborators(t *testing.T) {
	e := New(testConfig())
	res := e.Health(context.Background())
	if res.Status != "healthy" {
		t.Fatalf("expected healthy, got %q", res.Status)
	}
	if res.Services["prompt_generator"] != "local" {
		t.Fatalf("local generator must report local, got %v", res.Services)
	}
}
