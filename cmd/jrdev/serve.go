package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	jrdev "github.com/ArnoldoM23/jrdev-gateway"
	"github.com/ArnoldoM23/jrdev-gateway/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the jrdev gateway server",
	Long:  "Start the HTTP gateway that serves MCP tool calls and session APIs.",
	RunE:  runServe,
}

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve JSON-RPC over stdin/stdout",
	Long:  "Serve the same MCP surface as the HTTP gateway on stdin/stdout, for editor and agent integrations.",
	RunE:  runStdio,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stdioCmd)
}

func buildApp() (*jrdev.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return jrdev.NewBuilder().WithConfig(jrdev.Config{
		ServerAddr:    cfg.ServerAddr,
		DatabasePath:  cfg.DatabasePath,
		JiraMCPURL:    cfg.JiraMCPURL,
		TemplateURL:   cfg.TemplateURL,
		MemoryURL:     cfg.MemoryURL,
		PromptURL:     cfg.PromptURL,
		PESSURL:       cfg.PESSURL,
		CallTimeout:   time.Duration(cfg.HTTPTimeoutSeconds) * time.Second,
		Retention:     time.Duration(cfg.RetentionMinutes) * time.Minute,
		GitHubToken:   cfg.GitHubToken,
		GitHubRepo:    cfg.GitHubRepo,
		SlackBotToken: cfg.SlackBotToken,
		SlackChannel:  cfg.SlackChannel,
	}).Build()
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	return app.Start(ctx)
}

func runStdio(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return app.RunStdio(ctx)
}
