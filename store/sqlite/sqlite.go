// Package sqlite implements store.SessionStore using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ArnoldoM23/jrdev-gateway/model"
	"github.com/ArnoldoM23/jrdev-gateway/store"
)

// Store manages session persistence in SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// A single writer connection keeps session mutations serialized.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id            TEXT PRIMARY KEY,
			ticket_id     TEXT NOT NULL,
			status        TEXT NOT NULL DEFAULT 'pending',
			prompt        TEXT NOT NULL DEFAULT '',
			prompt_hash   TEXT NOT NULL DEFAULT '',
			template_used TEXT NOT NULL DEFAULT '',
			artifact_url  TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			metadata      TEXT NOT NULL DEFAULT '{}',
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL,
			completed_at  DATETIME
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_ticket_id
			ON sessions(ticket_id);

		CREATE INDEX IF NOT EXISTS idx_sessions_status
			ON sessions(status);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new pending session.
func (s *Store) Create(ctx context.Context, ticketID string, metadata map[string]string) (*model.Session, error) {
	now := time.Now().UTC()
	sess := &model.Session{
		ID:        store.NewSessionID(ticketID, uuid.New().String()[:8]),
		TicketID:  ticketID,
		Status:    model.StatusPending,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	meta, err := marshalMeta(metadata)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, ticket_id, status, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.TicketID, sess.Status, meta, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Get retrieves a session by ID, returning (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, id string) (*model.Session, error) {
	return s.getTx(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getTx(ctx context.Context, q querier, id string) (*model.Session, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, ticket_id, status, prompt, prompt_hash, template_used,
		        artifact_url, error_message, metadata, created_at, updated_at, completed_at
		 FROM sessions WHERE id = ?`, id,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

// Update applies a partial mutation inside a transaction so racing writers
// observe a consistent status.
func (s *Store) Update(ctx context.Context, id string, upd store.Update) (*model.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sess, err := s.getTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Status.Terminal() {
		return nil, store.ErrInvalidTransition
	}
	if upd.Status != nil {
		if !upd.Status.Valid() || upd.Status.Rank() < sess.Status.Rank() {
			return nil, store.ErrInvalidTransition
		}
		sess.Status = *upd.Status
	}
	if upd.Prompt != nil {
		sess.Prompt = *upd.Prompt
	}
	if upd.PromptHash != nil {
		sess.PromptHash = *upd.PromptHash
	}
	if upd.TemplateUsed != nil {
		sess.TemplateUsed = *upd.TemplateUsed
	}
	if len(upd.Metadata) > 0 {
		if sess.Metadata == nil {
			sess.Metadata = make(map[string]string, len(upd.Metadata))
		}
		for k, v := range upd.Metadata {
			sess.Metadata[k] = v
		}
	}
	sess.UpdatedAt = bump(sess.UpdatedAt)

	meta, err := marshalMeta(sess.Metadata)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET status = ?, prompt = ?, prompt_hash = ?,
		        template_used = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		sess.Status, sess.Prompt, sess.PromptHash, sess.TemplateUsed,
		meta, sess.UpdatedAt, sess.ID,
	)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Complete moves the session to completed. The transactional status check
// makes exactly one of two racing finalizations win.
func (s *Store) Complete(ctx context.Context, id, artifactURL string) (*model.Session, error) {
	return s.finalize(ctx, id, func(sess *model.Session) {
		sess.Status = model.StatusCompleted
		sess.ArtifactURL = artifactURL
		sess.ErrorMessage = ""
		done := sess.UpdatedAt
		sess.CompletedAt = &done
	})
}

// Fail moves the session to failed.
func (s *Store) Fail(ctx context.Context, id, errMsg string) (*model.Session, error) {
	return s.finalize(ctx, id, func(sess *model.Session) {
		sess.Status = model.StatusFailed
		sess.ErrorMessage = errMsg
		sess.ArtifactURL = ""
		sess.CompletedAt = nil
	})
}

// finalize applies a terminal mutation inside a transaction, bumping
// updated_at through the same monotonic guard Update uses.
func (s *Store) finalize(ctx context.Context, id string, mutate func(*model.Session)) (*model.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sess, err := s.getTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Status.Terminal() {
		return nil, store.ErrInvalidTransition
	}

	sess.UpdatedAt = bump(sess.UpdatedAt)
	mutate(sess)

	var completedAt any
	if sess.CompletedAt != nil {
		completedAt = *sess.CompletedAt
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET status = ?, artifact_url = ?, error_message = ?,
		        completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		sess.Status, sess.ArtifactURL, sess.ErrorMessage,
		completedAt, sess.UpdatedAt, sess.ID,
	)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sess, nil
}

// ListByTicket returns all sessions for a ticket, newest first.
func (s *Store) ListByTicket(ctx context.Context, ticketID string) ([]*model.Session, error) {
	return s.listWhere(ctx,
		`WHERE ticket_id = ?`, ticketID)
}

// ListActive returns all non-terminal sessions, newest first.
func (s *Store) ListActive(ctx context.Context) ([]*model.Session, error) {
	return s.listWhere(ctx,
		`WHERE status NOT IN (?, ?)`, model.StatusCompleted, model.StatusFailed)
}

func (s *Store) listWhere(ctx context.Context, where string, args ...any) ([]*model.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ticket_id, status, prompt, prompt_hash, template_used,
		        artifact_url, error_message, metadata, created_at, updated_at, completed_at
		 FROM sessions `+where+` ORDER BY created_at DESC`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Stats returns session counts by status.
func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM sessions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	st := &store.Stats{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		st.Total += n
		switch model.Status(status) {
		case model.StatusPending:
			st.Pending += n
		case model.StatusActive:
			st.Active += n
		case model.StatusCompleted:
			st.Completed += n
		case model.StatusFailed:
			st.Failed += n
		}
	}
	return st, rows.Err()
}

// ExpireStale fails non-terminal sessions idle longer than retention. Each
// expired session gets its updated_at bumped monotonically, not rewritten
// with the wall clock.
func (s *Store) ExpireStale(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, updated_at FROM sessions
		 WHERE status NOT IN (?, ?) AND updated_at < ?`,
		model.StatusCompleted, model.StatusFailed, cutoff,
	)
	if err != nil {
		return 0, err
	}
	type stale struct {
		id        string
		updatedAt time.Time
	}
	var expired []stale
	for rows.Next() {
		var st stale
		if err := rows.Scan(&st.id, &st.updatedAt); err != nil {
			rows.Close()
			return 0, err
		}
		expired = append(expired, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, st := range expired {
		_, err := tx.ExecContext(ctx,
			`UPDATE sessions SET status = ?, error_message = ?, updated_at = ?
			 WHERE id = ?`,
			model.StatusFailed, store.ExpiredMessage, bump(st.updatedAt), st.id,
		)
		if err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(expired), nil
}

// --- Helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanSession(row scannable) (*model.Session, error) {
	sess := &model.Session{}
	var meta string
	var completedAt sql.NullTime
	err := row.Scan(
		&sess.ID, &sess.TicketID, &sess.Status, &sess.Prompt, &sess.PromptHash,
		&sess.TemplateUsed, &sess.ArtifactURL, &sess.ErrorMessage, &meta,
		&sess.CreatedAt, &sess.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		done := completedAt.Time.UTC()
		sess.CompletedAt = &done
	}
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &sess.Metadata); err != nil {
			return nil, fmt.Errorf("decoding session metadata: %w", err)
		}
	}
	return sess, nil
}

func marshalMeta(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding session metadata: %w", err)
	}
	return string(b), nil
}

// bump advances an updated_at timestamp without ever moving it backwards.
func bump(prev time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
