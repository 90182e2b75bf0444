// Package config provides configuration management for the jrdev gateway.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all configuration for the jrdev gateway server.
type Config struct {
	// ServerAddr is the address the HTTP server listens on (e.g., ":8089").
	ServerAddr string

	// DataDir is the directory for persistent data (SQLite DB, etc.).
	DataDir string

	// DatabasePath is the full path to the SQLite database file. Empty means
	// an in-memory session store.
	DatabasePath string

	// Collaborator service base URLs. Any of these may be empty, in which
	// case the gateway degrades to its local fallback for that concern.
	JiraMCPURL  string
	TemplateURL string
	MemoryURL   string
	PromptURL   string
	PESSURL     string

	// HTTPTimeoutSeconds bounds each collaborator call. Default: 10.
	HTTPTimeoutSeconds int

	// RetentionMinutes is how long a non-terminal session may sit idle
	// before it is expired. Default: 60.
	RetentionMinutes int

	// GitHubToken enables the GitHub issues ticket source when set together
	// with GitHubRepo.
	GitHubToken string
	// GitHubRepo is the default "owner/repo" for GitHub ticket lookups.
	GitHubRepo string

	// Slack integration (optional).
	// SlackBotToken is the Bot User OAuth Token (xoxb-...).
	SlackBotToken string
	// SlackChannel is the channel finalization notices are posted to.
	SlackChannel string
}

// Load creates a Config from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr:         envOr("JRDEV_ADDR", ":8089"),
		DataDir:            envOr("JRDEV_DATA_DIR", defaultDataDir()),
		DatabasePath:       os.Getenv("JRDEV_DB"),
		JiraMCPURL:         os.Getenv("JIRA_MCP_URL"),
		TemplateURL:        os.Getenv("TEMPLATE_SVC_URL"),
		MemoryURL:          os.Getenv("MEMORY_SVC_URL"),
		PromptURL:          os.Getenv("PROMPT_SVC_URL"),
		PESSURL:            os.Getenv("PESS_SVC_URL"),
		HTTPTimeoutSeconds: envOrInt("JRDEV_HTTP_TIMEOUT_SECONDS", 10),
		RetentionMinutes:   envOrInt("JRDEV_RETENTION_MINUTES", 60),
		GitHubToken:        os.Getenv("GITHUB_TOKEN"),
		GitHubRepo:         os.Getenv("JRDEV_GITHUB_REPO"),
		SlackBotToken:      os.Getenv("SLACK_BOT_TOKEN"),
		SlackChannel:       os.Getenv("SLACK_CHANNEL"),
	}

	if cfg.DatabasePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent.
func (c *Config) Validate() error {
	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("JRDEV_HTTP_TIMEOUT_SECONDS must be positive")
	}
	if c.RetentionMinutes <= 0 {
		return fmt.Errorf("JRDEV_RETENTION_MINUTES must be positive")
	}
	if (c.GitHubRepo == "") != (c.GitHubToken == "") {
		return fmt.Errorf("GITHUB_TOKEN and JRDEV_GITHUB_REPO must be set together")
	}
	if (c.SlackBotToken == "") != (c.SlackChannel == "") {
		return fmt.Errorf("SLACK_BOT_TOKEN and SLACK_CHANNEL must be set together")
	}
	return nil
}

// SlackEnabled returns true if Slack notifications are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackChannel != ""
}

// GitHubEnabled returns true if the GitHub ticket source is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubToken != "" && c.GitHubRepo != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".jrdev"
	}
	return filepath.Join(home, ".jrdev")
}
