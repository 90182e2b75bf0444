package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	prepareRepo   string
	prepareBranch string
)

var prepareCmd = &cobra.Command{
	Use:   "prepare [ticket-id]",
	Short: "Prepare an agent task prompt for a ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrepare,
}

func init() {
	prepareCmd.Flags().StringVar(&prepareRepo, "repo", "", "Target repository (owner/repo)")
	prepareCmd.Flags().StringVar(&prepareBranch, "branch", "", "Base branch for the change")
	rootCmd.AddCommand(prepareCmd)
}

func runPrepare(cmd *cobra.Command, args []string) error {
	arguments := map[string]any{"ticket_id": args[0]}
	if prepareRepo != "" {
		arguments["repo"] = prepareRepo
	}
	if prepareBranch != "" {
		arguments["branch"] = prepareBranch
	}

	meta, err := callTool("prepare_agent_task", arguments)
	if err != nil {
		return err
	}

	var md struct {
		SessionID        string   `json:"session_id"`
		TemplateUsed     string   `json:"template_used"`
		Source           string   `json:"source"`
		FilesToModify    []string `json:"files_to_modify"`
		ProcessingTimeMS int64    `json:"processing_time_ms"`
	}
	if err := json.Unmarshal(meta["metadata"], &md); err != nil {
		return fmt.Errorf("parsing metadata: %w", err)
	}
	var promptText string
	if err := json.Unmarshal(meta["prompt_text"], &promptText); err != nil {
		return fmt.Errorf("parsing prompt text: %w", err)
	}

	fmt.Printf("Session:   %s\n", md.SessionID)
	fmt.Printf("Template:  %s\n", md.TemplateUsed)
	fmt.Printf("Source:    %s\n", md.Source)
	if len(md.FilesToModify) > 0 {
		fmt.Printf("Files:     %v\n", md.FilesToModify)
	}
	fmt.Printf("Prepared in %dms\n\n", md.ProcessingTimeMS)
	fmt.Println(promptText)
	return nil
}
