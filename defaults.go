package jrdev

import (
	"fmt"
	"time"

	"github.com/ArnoldoM23/jrdev-gateway/enrich"
	"github.com/ArnoldoM23/jrdev-gateway/notify"
	"github.com/ArnoldoM23/jrdev-gateway/prompt"
	"github.com/ArnoldoM23/jrdev-gateway/scoring"
	"github.com/ArnoldoM23/jrdev-gateway/store/memory"
	sqliteStore "github.com/ArnoldoM23/jrdev-gateway/store/sqlite"
	"github.com/ArnoldoM23/jrdev-gateway/template"
	"github.com/ArnoldoM23/jrdev-gateway/ticket"
	ghTicket "github.com/ArnoldoM23/jrdev-gateway/ticket/github"
)

// applyDefaults fills in missing fields on the builder with sensible defaults.
func applyDefaults(b *Builder) error {
	// Config defaults.
	if b.config.ServerAddr == "" {
		b.config.ServerAddr = ":8089"
	}
	if b.config.CallTimeout == 0 {
		b.config.CallTimeout = 10 * time.Second
	}
	if b.config.Retention == 0 {
		b.config.Retention = 60 * time.Minute
	}

	// Store. SQLite when a database path is configured, memory otherwise.
	if b.store == nil {
		if b.config.DatabasePath != "" {
			st, err := sqliteStore.New(b.config.DatabasePath)
			if err != nil {
				return fmt.Errorf("initializing store: %w", err)
			}
			b.store = st
		} else {
			b.store = memory.New()
		}
	}

	// Ticket source. GitHub issues when configured, then the Jira MCP
	// bridge. With neither configured it stays nil so the engine resolves
	// every ticket from the bundled sample and flags it as fallback data.
	if b.tickets == nil {
		switch {
		case b.config.GitHubToken != "" && b.config.GitHubRepo != "":
			b.tickets = ghTicket.New(b.config.GitHubToken, b.config.GitHubRepo)
		case b.config.JiraMCPURL != "":
			b.tickets = ticket.NewClient(b.config.JiraMCPURL, b.config.CallTimeout)
		}
	}

	// Template selector.
	if b.templates == nil {
		if b.config.TemplateURL != "" {
			b.templates = template.NewClient(b.config.TemplateURL, b.config.CallTimeout)
		} else {
			b.templates = template.NewRuleSelector()
		}
	}

	// Enrichment is optional; without a memory service the pipeline simply
	// skips it.
	if b.enricher == nil && b.config.MemoryURL != "" {
		b.enricher = enrich.NewClient(b.config.MemoryURL, b.config.CallTimeout)
	}

	// Prompt generator.
	if b.prompts == nil {
		if b.config.PromptURL != "" {
			b.prompts = prompt.NewClient(b.config.PromptURL, b.config.CallTimeout)
		} else {
			b.prompts = prompt.NewLocalGenerator(prompt.Defaults{})
		}
	}

	// Scorer.
	if b.scorer == nil {
		if b.config.PESSURL != "" {
			b.scorer = scoring.NewClient(b.config.PESSURL, b.config.CallTimeout)
		} else {
			b.scorer = scoring.NewMVP()
		}
	}

	// Notifier.
	if b.notifier == nil && b.config.SlackBotToken != "" && b.config.SlackChannel != "" {
		b.notifier = notify.NewSlack(b.config.SlackBotToken, b.config.SlackChannel)
	}

	return nil
}
