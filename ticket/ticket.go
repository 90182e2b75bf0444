// Package ticket provides ticket sources for the orchestrator.
//
// A Source turns a ticket reference like "CEPG-67890" into a normalized
// snapshot. The HTTP client talks to a Jira bridge service; Fallback serves a
// bundled sample snapshot so the pipeline keeps working when the bridge is
// down or unconfigured.
package ticket

import (
	"context"
	"regexp"

	"github.com/ArnoldoM23/jrdev-gateway/model"
)

// Source resolves a ticket reference to a snapshot.
type Source interface {
	Fetch(ctx context.Context, ticketID string) (*model.TicketSnapshot, error)
}

// idPattern is the canonical ticket key shape, e.g. "CEPG-67890".
var idPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*-\d+$`)

// ValidID reports whether id looks like a ticket key.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
