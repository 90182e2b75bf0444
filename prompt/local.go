package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/ArnoldoM23/jrdev-gateway/model"
	"github.com/ArnoldoM23/jrdev-gateway/template"
)

// Defaults holds the fill-in values the renderer uses for missing ticket
// fields. They are resolved once at construction rather than scattered
// through the rendering code.
type Defaults struct {
	Branch      string
	TestCommand string
	Priority    string
}

// LocalGenerator renders prompts in process from built-in templates.
type LocalGenerator struct {
	defaults Defaults
}

// NewLocalGenerator creates a renderer with the given defaults. Zero fields
// fall back to conventional values.
func NewLocalGenerator(d Defaults) *LocalGenerator {
	if d.Branch == "" {
		d.Branch = "main"
	}
	if d.TestCommand == "" {
		d.TestCommand = "make test"
	}
	if d.Priority == "" {
		d.Priority = "Medium"
	}
	return &LocalGenerator{defaults: d}
}

// Generate renders the markdown prompt for a ticket.
func (g *LocalGenerator) Generate(ctx context.Context, templateName string, snap *model.TicketSnapshot, enr *model.Enrichment) (string, error) {
	if snap == nil {
		return "", fmt.Errorf("no ticket snapshot")
	}
	if snap.Summary == "" && snap.Description == "" {
		return "", fmt.Errorf("ticket %s has no content to prompt from", snap.ID)
	}

	priority := snap.Priority
	if priority == "" {
		priority = g.defaults.Priority
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Task: %s\n\n", snap.Summary)
	fmt.Fprintf(&b, "**Ticket:** %s  \n", snap.ID)
	fmt.Fprintf(&b, "**Type:** %s  \n", snap.IssueType)
	fmt.Fprintf(&b, "**Priority:** %s  \n", priority)
	if snap.Assignee != "" && snap.Assignee != "unassigned" {
		fmt.Fprintf(&b, "**Assignee:** %s  \n", snap.Assignee)
	}
	fmt.Fprintf(&b, "**Template:** %s\n\n", templateName)

	if snap.Description != "" {
		b.WriteString("## Description\n\n")
		b.WriteString(snap.Description)
		b.WriteString("\n\n")
	}

	if len(snap.AcceptanceCriteria) > 0 {
		b.WriteString("## Acceptance Criteria\n\n")
		for _, ac := range snap.AcceptanceCriteria {
			fmt.Fprintf(&b, "- %s\n", ac)
		}
		b.WriteString("\n")
	}

	if len(snap.Files) > 0 {
		b.WriteString("## Files to Modify\n\n")
		for _, f := range snap.Files {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
		b.WriteString("\n")
	}

	if len(snap.Labels) > 0 {
		fmt.Fprintf(&b, "**Labels:** %s\n\n", strings.Join(snap.Labels, ", "))
	}

	if enr != nil && enr.ContextEnriched {
		b.WriteString("## Related Context\n\n")
		fmt.Fprintf(&b, "Estimated complexity: %.1f\n", enr.ComplexityScore)
		for _, f := range enr.RelatedFiles {
			fmt.Fprintf(&b, "- Related file: `%s`\n", f)
		}
		for _, tk := range enr.RelatedTickets {
			fmt.Fprintf(&b, "- Related ticket: %s\n", tk)
		}
		b.WriteString("\n")
	}

	b.WriteString(instructions(templateName))
	fmt.Fprintf(&b, "\nWhen done, run:\n\n    $ %s\n\nand open a pull request against `%s`.\n",
		g.defaults.TestCommand, g.defaults.Branch)

	return b.String(), nil
}

// instructions returns the template-specific working instructions block.
func instructions(templateName string) string {
	switch templateName {
	case template.Bugfix:
		return `## Instructions

- Reproduce the bug first and capture the failing behavior in a test
- Make the minimal change that fixes the root cause
- Do not refactor surrounding code in the same change
`
	case template.SchemaChange, template.FeatureSchemaChange:
		return `## Instructions

- Update the schema definition and regenerate any derived types
- Keep the change backward compatible: existing queries must not break
- Update resolvers and add a contract test for the new field
`
	case template.Refactor:
		return `## Instructions

- Preserve observable behavior exactly; tests must pass before and after
- Make the refactor in small, reviewable commits
`
	case template.VersionUpgrade:
		return `## Instructions

- Upgrade the dependency, then fix compile and test breakage
- Read the upstream changelog for breaking changes before starting
`
	case template.ConfigUpdate:
		return `## Instructions

- Change configuration only; no code changes
- Document the new value and its rollback
`
	case template.TestGeneration:
		return `## Instructions

- Add tests for the described behavior without changing production code
- Cover the happy path and at least one failure mode per function
`
	}
	return `## Instructions

- Implement the feature described above
- Follow the existing patterns in the files listed
- Add tests covering the acceptance criteria
`
}
