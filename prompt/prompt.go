// Package prompt generates agent prompts from ticket snapshots.
//
// Generation is the one orchestration step with no fallback: if no generator
// can produce a prompt the whole preparation fails.
package prompt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/ArnoldoM23/jrdev-gateway/model"
)

// Generator renders a prompt for a ticket under a named template.
type Generator interface {
	Generate(ctx context.Context, templateName string, snap *model.TicketSnapshot, enr *model.Enrichment) (string, error)
}

// Hash returns the canonical short hash of a prompt: sha256, hex, first 16.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

var (
	// filePattern matches backtick-quoted paths with a file extension,
	// e.g. `schema/product.graphql`.
	filePattern = regexp.MustCompile("`([\\w./-]+\\.[A-Za-z0-9]+)`")

	// commandPattern matches "$ ..." lines inside the prompt.
	commandPattern = regexp.MustCompile(`(?m)^\s*\$\s+(.+)$`)
)

// ExtractFiles pulls file paths referenced in a generated prompt,
// de-duplicated in first-seen order.
func ExtractFiles(text string) []string {
	seen := make(map[string]bool)
	var files []string
	for _, m := range filePattern.FindAllStringSubmatch(text, -1) {
		f := m[1]
		if !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	return files
}

// ExtractCommands pulls shell commands referenced in a generated prompt.
func ExtractCommands(text string) []string {
	seen := make(map[string]bool)
	var cmds []string
	for _, m := range commandPattern.FindAllStringSubmatch(text, -1) {
		c := strings.TrimSpace(m[1])
		if c != "" && !seen[c] {
			seen[c] = true
			cmds = append(cmds, c)
		}
	}
	return cmds
}
