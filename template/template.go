// Package template selects the prompt template for a ticket.
package template

import (
	"context"
	"strings"

	"github.com/ArnoldoM23/jrdev-gateway/model"
)

// Default is used whenever selection fails.
const Default = "feature"

// Known template names, in selection priority order for label matching.
const (
	FeatureSchemaChange = "feature_schema_change"
	SchemaChange        = "schema_change"
	VersionUpgrade      = "version_upgrade"
	ConfigUpdate        = "config_update"
	TestGeneration      = "test_generation"
	Bugfix              = "bugfix"
	Refactor            = "refactor"
	Feature             = "feature"
)

// Selector picks a template name for a ticket snapshot.
type Selector interface {
	Select(ctx context.Context, snap *model.TicketSnapshot) (string, error)
}

// RuleSelector selects templates from issue type and labels. It is the
// default selector and never errors.
type RuleSelector struct{}

// NewRuleSelector creates the local rule-based selector.
func NewRuleSelector() *RuleSelector { return &RuleSelector{} }

// Select maps labels and issue type to a template name.
func (r *RuleSelector) Select(ctx context.Context, snap *model.TicketSnapshot) (string, error) {
	labels := make(map[string]bool, len(snap.Labels))
	for _, l := range snap.Labels {
		labels[strings.ToLower(l)] = true
	}

	schemaChange := labels["schema-change"] || labels["schema_change"] || labels["graphql"]
	switch {
	case schemaChange && strings.EqualFold(snap.IssueType, "Story"):
		return FeatureSchemaChange, nil
	case schemaChange:
		return SchemaChange, nil
	case labels["version-upgrade"] || labels["upgrade"]:
		return VersionUpgrade, nil
	case labels["config"] || labels["config-update"]:
		return ConfigUpdate, nil
	case labels["test"] || labels["testing"]:
		return TestGeneration, nil
	case strings.EqualFold(snap.IssueType, "Bug") || labels["bug"]:
		return Bugfix, nil
	case labels["refactor"] || labels["tech-debt"]:
		return Refactor, nil
	}
	return Feature, nil
}
