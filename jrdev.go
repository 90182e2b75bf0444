// Package jrdev is the top-level entry point for the jrdev gateway.
//
// Use the Builder to compose a gateway application:
//
//	app, err := jrdev.NewBuilder().Build()
//	app.Start(ctx)
//
// Or customize every component:
//
//	app, err := jrdev.NewBuilder().
//	    WithStore(myStore).
//	    WithTicketSource(mySource).
//	    WithScorer(myScorer).
//	    Build()
package jrdev

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ArnoldoM23/jrdev-gateway/engine"
	"github.com/ArnoldoM23/jrdev-gateway/enrich"
	"github.com/ArnoldoM23/jrdev-gateway/gateway"
	"github.com/ArnoldoM23/jrdev-gateway/prompt"
	"github.com/ArnoldoM23/jrdev-gateway/scoring"
	"github.com/ArnoldoM23/jrdev-gateway/store"
	"github.com/ArnoldoM23/jrdev-gateway/template"
	"github.com/ArnoldoM23/jrdev-gateway/ticket"
)

// Config holds top-level configuration for a gateway application.
type Config struct {
	// ServerAddr is the address the HTTP server listens on (default ":8089").
	ServerAddr string

	// DatabasePath is the full path to the SQLite database file. Empty means
	// sessions live in memory.
	DatabasePath string

	// Collaborator service base URLs. Empty URLs fall back to local
	// implementations (or the bundled sample, for tickets).
	JiraMCPURL  string
	TemplateURL string
	MemoryURL   string
	PromptURL   string
	PESSURL     string

	// CallTimeout bounds each collaborator call (default 10s).
	CallTimeout time.Duration

	// Retention is how long a non-terminal session may sit idle before the
	// reaper expires it (default 60m).
	Retention time.Duration

	// GitHubToken and GitHubRepo enable the GitHub issues ticket source.
	GitHubToken string
	GitHubRepo  string

	// SlackBotToken and SlackChannel enable finalization notices.
	SlackBotToken string
	SlackChannel  string
}

// Builder constructs a gateway App.
type Builder struct {
	config    Config
	store     store.SessionStore
	tickets   ticket.Source
	templates template.Selector
	enricher  enrich.Enricher
	prompts   prompt.Generator
	scorer    scoring.Scorer
	notifier  engine.Notifier
}

// NewBuilder creates a new Builder with sensible defaults.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithConfig sets the application configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the session store implementation.
func (b *Builder) WithStore(s store.SessionStore) *Builder {
	b.store = s
	return b
}

// WithTicketSource sets the ticket source implementation.
func (b *Builder) WithTicketSource(s ticket.Source) *Builder {
	b.tickets = s
	return b
}

// WithTemplateSelector sets the template selector implementation.
func (b *Builder) WithTemplateSelector(s template.Selector) *Builder {
	b.templates = s
	return b
}

// WithEnricher sets the enrichment client implementation.
func (b *Builder) WithEnricher(e enrich.Enricher) *Builder {
	b.enricher = e
	return b
}

// WithGenerator sets the prompt generator implementation.
func (b *Builder) WithGenerator(g prompt.Generator) *Builder {
	b.prompts = g
	return b
}

// WithScorer sets the effectiveness scorer implementation.
func (b *Builder) WithScorer(s scoring.Scorer) *Builder {
	b.scorer = s
	return b
}

// WithNotifier sets the finalization notifier.
func (b *Builder) WithNotifier(n engine.Notifier) *Builder {
	b.notifier = n
	return b
}

// Build creates the App. Missing components are filled with defaults.
func (b *Builder) Build() (*App, error) {
	if err := applyDefaults(b); err != nil {
		return nil, err
	}

	eng := engine.New(engine.Config{
		Store:       b.store,
		Tickets:     b.tickets,
		Templates:   b.templates,
		Enricher:    b.enricher,
		Prompts:     b.prompts,
		Scorer:      b.scorer,
		Notifier:    b.notifier,
		Retention:   b.config.Retention,
		CallTimeout: b.config.CallTimeout,
	})

	handler := gateway.New(eng)

	return &App{
		config:  b.config,
		engine:  eng,
		handler: handler,
	}, nil
}

// App is a running gateway application.
type App struct {
	config  Config
	engine  *engine.Engine
	handler *gateway.Handler
}

// Engine returns the underlying engine for direct access.
func (a *App) Engine() *engine.Engine { return a.engine }

// Handler returns the gateway handler for direct access.
func (a *App) Handler() *gateway.Handler { return a.handler }

// Start starts the HTTP server. Blocks until ctx is done.
func (a *App) Start(ctx context.Context) error {
	a.engine.Start(ctx)

	srv := &http.Server{
		Addr:    a.config.ServerAddr,
		Handler: a.handler.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("jrdev gateway listening on %s", a.config.ServerAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	a.engine.Stop()
	return a.engine.Store().Close()
}

// RunStdio serves JSON-RPC over stdin/stdout. Blocks until EOF or ctx is
// done. Logs go to stderr so stdout stays protocol-clean.
func (a *App) RunStdio(ctx context.Context) error {
	a.engine.Start(ctx)
	defer a.engine.Stop()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	bridge := gateway.NewStdio(a.handler, os.Stdin, os.Stdout, logger)
	if err := bridge.Run(ctx); err != nil {
		return err
	}
	return a.engine.Store().Close()
}
