package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [ticket-id]",
	Short: "Show session stats, or the sessions of a ticket",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return printStats()
	}
	return printTicketSessions(args[0])
}

func printStats() error {
	resp, err := http.Get(serverURL + "/api/sessions/stats")
	if err != nil {
		return fmt.Errorf("connecting to server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))
	}

	var stats struct {
		Total     int `json:"total"`
		Pending   int `json:"pending"`
		Active    int `json:"active"`
		Completed int `json:"completed"`
		Failed    int `json:"failed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	fmt.Printf("Total:     %d\n", stats.Total)
	fmt.Printf("Pending:   %d\n", stats.Pending)
	fmt.Printf("Active:    %d\n", stats.Active)
	fmt.Printf("Completed: %d\n", stats.Completed)
	fmt.Printf("Failed:    %d\n", stats.Failed)
	return nil
}

func printTicketSessions(ticketID string) error {
	resp, err := http.Get(serverURL + "/api/sessions?ticket_id=" + url.QueryEscape(ticketID))
	if err != nil {
		return fmt.Errorf("connecting to server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))
	}

	var sessions []struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		TemplateUsed string `json:"template_used"`
		ArtifactURL  string `json:"artifact_url"`
		ErrorMessage string `json:"error_message"`
		UpdatedAt    string `json:"updated_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Printf("No sessions for %s\n", ticketID)
		return nil
	}
	for _, sess := range sessions {
		fmt.Printf("%s  %-10s  %s", sess.ID, sess.Status, sess.UpdatedAt)
		if sess.TemplateUsed != "" {
			fmt.Printf("  template=%s", sess.TemplateUsed)
		}
		if sess.ArtifactURL != "" {
			fmt.Printf("  pr=%s", sess.ArtifactURL)
		}
		if sess.ErrorMessage != "" {
			fmt.Printf("  error=%q", sess.ErrorMessage)
		}
		fmt.Println()
	}
	return nil
}
