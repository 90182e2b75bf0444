package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	finalizeFailed   bool
	finalizePRURL    string
	finalizeFiles    []string
	finalizeRetries  int
	finalizeEdits    int
	finalizeDuration int64
	finalizeError    string
)

var finalizeCmd = &cobra.Command{
	Use:   "finalize [session-id] [ticket-id]",
	Short: "Finalize a session with its outcome",
	Args:  cobra.ExactArgs(2),
	RunE:  runFinalize,
}

func init() {
	finalizeCmd.Flags().BoolVar(&finalizeFailed, "failed", false, "Mark the session as failed")
	finalizeCmd.Flags().StringVar(&finalizePRURL, "pr-url", "", "URL of the created pull request")
	finalizeCmd.Flags().StringSliceVar(&finalizeFiles, "files", nil, "Files modified during the session")
	finalizeCmd.Flags().IntVar(&finalizeRetries, "retries", 0, "Number of agent retries")
	finalizeCmd.Flags().IntVar(&finalizeEdits, "manual-edits", 0, "Number of manual edits")
	finalizeCmd.Flags().Int64Var(&finalizeDuration, "duration-ms", 0, "Session duration in milliseconds")
	finalizeCmd.Flags().StringVar(&finalizeError, "error", "", "Error message when the session failed")
	rootCmd.AddCommand(finalizeCmd)
}

func runFinalize(cmd *cobra.Command, args []string) error {
	arguments := map[string]any{
		"session_id": args[0],
		"ticket_id":  args[1],
		"success":    !finalizeFailed,
	}
	if finalizePRURL != "" {
		arguments["pr_url"] = finalizePRURL
	}
	if len(finalizeFiles) > 0 {
		arguments["files_modified"] = finalizeFiles
	}
	if finalizeRetries > 0 {
		arguments["retry_count"] = finalizeRetries
	}
	if finalizeEdits > 0 {
		arguments["manual_edits"] = finalizeEdits
	}
	if finalizeDuration > 0 {
		arguments["duration_ms"] = finalizeDuration
	}
	if finalizeError != "" {
		arguments["error_message"] = finalizeError
	}

	meta, err := callTool("finalize_session", arguments)
	if err != nil {
		return err
	}

	var sess struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		ArtifactURL string `json:"artifact_url"`
	}
	if err := json.Unmarshal(meta["session"], &sess); err != nil {
		return fmt.Errorf("parsing session: %w", err)
	}

	fmt.Printf("Session:  %s\n", sess.ID)
	fmt.Printf("Status:   %s\n", sess.Status)
	if sess.ArtifactURL != "" {
		fmt.Printf("PR:       %s\n", sess.ArtifactURL)
	}

	if raw, ok := meta["pess_score"]; ok {
		var score struct {
			Score         int    `json:"score"`
			ClarityRating string `json:"clarity_rating"`
		}
		if err := json.Unmarshal(raw, &score); err == nil {
			fmt.Printf("Score:    %d (%s)\n", score.Score, score.ClarityRating)
		}
	}
	if raw, ok := meta["template_update"]; ok {
		var update struct {
			TemplateName string `json:"template_name"`
			Reason       string `json:"reason"`
		}
		if err := json.Unmarshal(raw, &update); err == nil {
			fmt.Printf("Template %s flagged for review: %s\n", update.TemplateName, update.Reason)
		}
	}
	return nil
}
