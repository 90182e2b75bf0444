package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ArnoldoM23/jrdev-gateway/model"
	"github.com/ArnoldoM23/jrdev-gateway/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := New(dbPath)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestSessionLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sess, err := st.Create(ctx, "CEPG-100", map[string]string{"source": "mcp_gateway", "repo": "acme/api"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.Status != model.StatusPending {
		t.Fatalf("expected pending, got %q", sess.Status)
	}

	active := model.StatusActive
	prompt := "# Task: CEPG-100"
	hash := "0123456789abcdef"
	tmpl := "feature"
	got, err := st.Update(ctx, sess.ID, store.Update{
		Status: &active, Prompt: &prompt, PromptHash: &hash, TemplateUsed: &tmpl,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != model.StatusActive || got.Prompt != prompt || got.PromptHash != hash {
		t.Fatalf("update not applied: %+v", got)
	}
	if got.Metadata["repo"] != "acme/api" {
		t.Fatalf("metadata lost across update: %v", got.Metadata)
	}
	if got.UpdatedAt.Before(sess.UpdatedAt) {
		t.Fatalf("updated_at went backwards: %v -> %v", sess.UpdatedAt, got.UpdatedAt)
	}

	done, err := st.Complete(ctx, sess.ID, "https://github.com/acme/api/pull/42")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != model.StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("completion fields missing: %+v", done)
	}
	if done.ArtifactURL != "https://github.com/acme/api/pull/42" {
		t.Fatalf("artifact not recorded: %q", done.ArtifactURL)
	}
}

func TestGetMissingIsNilNil(t *testing.T) {
	st := newTestStore(t)
	got, err := st.Get(context.Background(), "jrdev_NOPE_00000000")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got (%+v, %v)", got, err)
	}
}

func TestTerminalImmutable(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sess, _ := st.Create(ctx, "CEPG-101", nil)
	if _, err := st.Fail(ctx, sess.ID, "agent crashed"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	if _, err := st.Complete(ctx, sess.ID, "https://example.com/pr/1"); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("complete after fail must be rejected, got %v", err)
	}
	active := model.StatusActive
	if _, err := st.Update(ctx, sess.ID, store.Update{Status: &active}); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("update after fail must be rejected, got %v", err)
	}

	got, _ := st.Get(ctx, sess.ID)
	if got.Status != model.StatusFailed || got.ErrorMessage != "agent crashed" {
		t.Fatalf("terminal state mutated: %+v", got)
	}
}

func TestStatusNeverMovesBackwards(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sess, _ := st.Create(ctx, "CEPG-102", nil)
	active := model.StatusActive
	if _, err := st.Update(ctx, sess.ID, store.Update{Status: &active}); err != nil {
		t.Fatalf("pending -> active: %v", err)
	}
	pending := model.StatusPending
	if _, err := st.Update(ctx, sess.ID, store.Update{Status: &pending}); !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("active -> pending must be rejected, got %v", err)
	}
}

func TestConcurrentFinalizeSingleWinner(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	sess, _ := st.Create(ctx, "CEPG-103", nil)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = st.Complete(ctx, sess.ID, "https://example.com/pr/9")
			} else {
				_, errs[i] = st.Fail(ctx, sess.ID, "lost the race")
			}
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !errors.Is(err, store.ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestExpireStale(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	stale, _ := st.Create(ctx, "CEPG-104", nil)
	st.Create(ctx, "CEPG-105", nil)
	done, _ := st.Create(ctx, "CEPG-106", nil)
	st.Complete(ctx, done.ID, "https://example.com/pr/5")

	// Backdate the stale session past the retention window.
	old := time.Now().UTC().Add(-2 * time.Hour)
	if _, err := st.db.Exec(`UPDATE sessions SET updated_at = ? WHERE id = ?`, old, stale.ID); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	n, err := st.ExpireStale(ctx, time.Hour)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}

	got, _ := st.Get(ctx, stale.ID)
	if got.Status != model.StatusFailed || got.ErrorMessage != store.ExpiredMessage {
		t.Fatalf("stale session not expired: %+v", got)
	}
	got, _ = st.Get(ctx, done.ID)
	if got.Status != model.StatusCompleted {
		t.Fatalf("terminal session must never expire: %+v", got)
	}
}

func TestFinalizeNeverMovesUpdatedAtBackwards(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// A future updated_at stands in for a clock that jumped backwards
	// between the last write and the finalize.
	future := time.Now().UTC().Add(time.Hour)

	completed, _ := st.Create(ctx, "CEPG-110", nil)
	if _, err := st.db.Exec(`UPDATE sessions SET updated_at = ? WHERE id = ?`, future, completed.ID); err != nil {
		t.Fatalf("setting updated_at: %v", err)
	}
	got, err := st.Complete(ctx, completed.ID, "https://example.com/pr/9")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.UpdatedAt.Before(future) {
		t.Fatalf("complete moved updated_at backwards: %v < %v", got.UpdatedAt, future)
	}
	if got.CompletedAt == nil || got.CompletedAt.Before(future) {
		t.Fatalf("completed_at not monotonic: %v", got.CompletedAt)
	}

	failed, _ := st.Create(ctx, "CEPG-111", nil)
	if _, err := st.db.Exec(`UPDATE sessions SET updated_at = ? WHERE id = ?`, future, failed.ID); err != nil {
		t.Fatalf("setting updated_at: %v", err)
	}
	got, err = st.Fail(ctx, failed.ID, "agent gave up")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if got.UpdatedAt.Before(future) {
		t.Fatalf("fail moved updated_at backwards: %v < %v", got.UpdatedAt, future)
	}
}

func TestListAndStats(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	st.Create(ctx, "CEPG-107", nil)
	st.Create(ctx, "CEPG-107", nil)
	b, _ := st.Create(ctx, "CEPG-108", nil)
	st.Fail(ctx, b.ID, "boom")

	byTicket, err := st.ListByTicket(ctx, "CEPG-107")
	if err != nil {
		t.Fatalf("list by ticket: %v", err)
	}
	if len(byTicket) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(byTicket))
	}

	active, err := st.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active, got %d", len(active))
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 2 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
