// jrdev - ticket-to-prompt orchestration gateway
//
// An MCP gateway that turns tickets into agent-ready prompts and tracks the
// resulting work sessions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "jrdev",
	Short: "jrdev - ticket-to-prompt orchestration gateway",
	Long: `jrdev turns tickets into agent-ready prompts over MCP and tracks the
resulting work sessions.

  jrdev serve                         Start the HTTP gateway
  jrdev stdio                         Serve JSON-RPC on stdin/stdout
  jrdev prepare CEPG-67890            Prepare a task prompt for a ticket
  jrdev finalize <session> <ticket>   Finalize a session
  jrdev status [ticket-id]            Show session stats or a ticket's sessions`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("JRDEV_SERVER", "http://localhost:8089"), "jrdev server URL")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
