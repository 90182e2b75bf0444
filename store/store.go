// Package store defines the session persistence contract.
//
// Implementations live in store/memory and store/sqlite. All of them enforce
// the lifecycle rules: terminal sessions are immutable, status transitions
// never move backwards, and concurrent mutations of one session serialize so
// exactly one of two racing finalizations wins.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ArnoldoM23/jrdev-gateway/model"
)

// ErrInvalidTransition is returned for any write against a terminal session
// or any status change that would move the lifecycle backwards.
var ErrInvalidTransition = errors.New("invalid session state transition")

// Update describes a partial session mutation. Nil fields are left unchanged.
// Metadata entries are merged into the existing map, not replaced.
type Update struct {
	Status       *model.Status
	Prompt       *string
	PromptHash   *string
	TemplateUsed *string
	Metadata     map[string]string
}

// Stats summarizes the store contents by status.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// SessionStore persists sessions and enforces lifecycle invariants.
//
// Lookup methods signal "not found" with a nil session and a nil error;
// errors are reserved for storage faults.
type SessionStore interface {
	// Create allocates a new session in status pending and returns it.
	Create(ctx context.Context, ticketID string, metadata map[string]string) (*model.Session, error)

	// Get returns the session with the given ID, or (nil, nil) if absent.
	Get(ctx context.Context, id string) (*model.Session, error)

	// Update applies a partial mutation. Returns (nil, nil) if the session
	// does not exist and ErrInvalidTransition if the write is illegal.
	Update(ctx context.Context, id string, upd Update) (*model.Session, error)

	// Complete moves the session to completed, recording the artifact URL
	// and completion time.
	Complete(ctx context.Context, id, artifactURL string) (*model.Session, error)

	// Fail moves the session to failed, recording the error message.
	Fail(ctx context.Context, id, errMsg string) (*model.Session, error)

	// ListByTicket returns all sessions for a ticket, newest first.
	ListByTicket(ctx context.Context, ticketID string) ([]*model.Session, error)

	// ListActive returns all non-terminal sessions, newest first.
	ListActive(ctx context.Context) ([]*model.Session, error)

	// Stats returns session counts by status.
	Stats(ctx context.Context) (*Stats, error)

	// ExpireStale fails every non-terminal session whose UpdatedAt is older
	// than retention and returns how many were expired.
	ExpireStale(ctx context.Context, retention time.Duration) (int, error)

	Close() error
}

// ExpiredMessage is the error message recorded on sessions failed by
// ExpireStale.
const ExpiredMessage = "Session expired"

// NewSessionID builds the canonical session identifier for a ticket.
func NewSessionID(ticketID, suffix string) string {
	return "jrdev_" + ticketID + "_" + suffix
}
