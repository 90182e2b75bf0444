// Package memory implements store.SessionStore in process memory.
// It is the default for the stdio bridge and for tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ArnoldoM23/jrdev-gateway/model"
	"github.com/ArnoldoM23/jrdev-gateway/store"
)

// Store keeps all sessions in a map guarded by a global lock for membership
// plus a per-session lock for mutations, so writes to one session serialize
// without blocking the rest.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	sess *model.Session
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{sessions: make(map[string]*entry)}
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// Create allocates a new pending session.
func (s *Store) Create(ctx context.Context, ticketID string, metadata map[string]string) (*model.Session, error) {
	now := time.Now().UTC()
	sess := &model.Session{
		ID:        store.NewSessionID(ticketID, uuid.New().String()[:8]),
		TicketID:  ticketID,
		Status:    model.StatusPending,
		Metadata:  copyMeta(metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = &entry{sess: sess}
	s.mu.Unlock()

	return clone(sess), nil
}

// Get returns the session or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return clone(e.sess), nil
}

// Update applies a partial mutation under the session lock.
func (s *Store) Update(ctx context.Context, id string, upd store.Update) (*model.Session, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Status.Terminal() {
		return nil, store.ErrInvalidTransition
	}
	if upd.Status != nil {
		if !upd.Status.Valid() || upd.Status.Rank() < e.sess.Status.Rank() {
			return nil, store.ErrInvalidTransition
		}
		e.sess.Status = *upd.Status
	}
	if upd.Prompt != nil {
		e.sess.Prompt = *upd.Prompt
	}
	if upd.PromptHash != nil {
		e.sess.PromptHash = *upd.PromptHash
	}
	if upd.TemplateUsed != nil {
		e.sess.TemplateUsed = *upd.TemplateUsed
	}
	if len(upd.Metadata) > 0 {
		if e.sess.Metadata == nil {
			e.sess.Metadata = make(map[string]string, len(upd.Metadata))
		}
		for k, v := range upd.Metadata {
			e.sess.Metadata[k] = v
		}
	}
	touch(e.sess)

	return clone(e.sess), nil
}

// Complete moves the session to completed.
func (s *Store) Complete(ctx context.Context, id, artifactURL string) (*model.Session, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Status.Terminal() {
		return nil, store.ErrInvalidTransition
	}
	e.sess.Status = model.StatusCompleted
	e.sess.ArtifactURL = artifactURL
	e.sess.ErrorMessage = ""
	touch(e.sess)
	done := e.sess.UpdatedAt
	e.sess.CompletedAt = &done

	return clone(e.sess), nil
}

// Fail moves the session to failed.
func (s *Store) Fail(ctx context.Context, id, errMsg string) (*model.Session, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Status.Terminal() {
		return nil, store.ErrInvalidTransition
	}
	e.sess.Status = model.StatusFailed
	e.sess.ErrorMessage = errMsg
	e.sess.ArtifactURL = ""
	e.sess.CompletedAt = nil
	touch(e.sess)

	return clone(e.sess), nil
}

// ListByTicket returns sessions for a ticket, newest first.
func (s *Store) ListByTicket(ctx context.Context, ticketID string) ([]*model.Session, error) {
	return s.list(func(sess *model.Session) bool {
		return sess.TicketID == ticketID
	})
}

// ListActive returns non-terminal sessions, newest first.
func (s *Store) ListActive(ctx context.Context) ([]*model.Session, error) {
	return s.list(func(sess *model.Session) bool {
		return !sess.Status.Terminal()
	})
}

// Stats returns session counts by status.
func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	all, err := s.list(func(*model.Session) bool { return true })
	if err != nil {
		return nil, err
	}

	st := &store.Stats{Total: len(all)}
	for _, sess := range all {
		switch sess.Status {
		case model.StatusPending:
			st.Pending++
		case model.StatusActive:
			st.Active++
		case model.StatusCompleted:
			st.Completed++
		case model.StatusFailed:
			st.Failed++
		}
	}
	return st, nil
}

// ExpireStale fails non-terminal sessions idle longer than retention.
func (s *Store) ExpireStale(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)

	s.mu.RLock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	expired := 0
	for _, e := range entries {
		e.mu.Lock()
		if !e.sess.Status.Terminal() && e.sess.UpdatedAt.Before(cutoff) {
			e.sess.Status = model.StatusFailed
			e.sess.ErrorMessage = store.ExpiredMessage
			touch(e.sess)
			expired++
		}
		e.mu.Unlock()
	}
	return expired, nil
}

func (s *Store) list(keep func(*model.Session) bool) ([]*model.Session, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var out []*model.Session
	for _, e := range entries {
		e.mu.Lock()
		if keep(e.sess) {
			out = append(out, clone(e.sess))
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// touch bumps UpdatedAt without ever moving it backwards, even when the
// wall clock does.
func touch(sess *model.Session) {
	now := time.Now().UTC()
	if !now.After(sess.UpdatedAt) {
		now = sess.UpdatedAt.Add(time.Nanosecond)
	}
	sess.UpdatedAt = now
}

func clone(sess *model.Session) *model.Session {
	out := *sess
	out.Metadata = copyMeta(sess.Metadata)
	if sess.CompletedAt != nil {
		done := *sess.CompletedAt
		out.CompletedAt = &done
	}
	return &out
}

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
