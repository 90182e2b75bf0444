// Package github provides a ticket source backed by GitHub Issues.
//
// Ticket references take either the form "owner/repo#123" or a plain key
// like "GH-123" resolved against the configured default repository.
package github

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gogh "github.com/google/go-github/v68/github"

	"github.com/ArnoldoM23/jrdev-gateway/model"
)

// Source fetches tickets from GitHub Issues.
type Source struct {
	client      *gogh.Client
	defaultRepo string // "owner/repo", used for plain ticket keys
}

// New creates a GitHub issue source with the given token.
func New(token, defaultRepo string) *Source {
	client := gogh.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &Source{client: client, defaultRepo: defaultRepo}
}

// Fetch resolves a ticket reference to an issue snapshot.
func (s *Source) Fetch(ctx context.Context, ticketID string) (*model.TicketSnapshot, error) {
	owner, repo, number, err := s.resolve(ticketID)
	if err != nil {
		return nil, err
	}

	issue, _, err := s.client.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetching issue %s/%s#%d: %w", owner, repo, number, err)
	}

	snap := &model.TicketSnapshot{
		ID:          ticketID,
		Summary:     issue.GetTitle(),
		Description: issue.GetBody(),
		IssueType:   "Task",
	}
	for _, l := range issue.Labels {
		snap.Labels = append(snap.Labels, l.GetName())
	}
	if a := issue.GetAssignee(); a != nil {
		snap.Assignee = a.GetLogin()
	}
	snap.Normalize()
	return snap, nil
}

// resolve parses "owner/repo#123" directly, or pulls the issue number off
// the tail of a plain key ("GH-123") and uses the default repository.
func (s *Source) resolve(ticketID string) (owner, repo string, number int, err error) {
	full := s.defaultRepo
	ref := ticketID

	if idx := strings.IndexByte(ticketID, '#'); idx >= 0 {
		full = ticketID[:idx]
		ref = ticketID[idx+1:]
	} else if idx := strings.LastIndexByte(ticketID, '-'); idx >= 0 {
		ref = ticketID[idx+1:]
	}

	number, err = strconv.Atoi(ref)
	if err != nil {
		return "", "", 0, fmt.Errorf("ticket %q has no issue number", ticketID)
	}

	parts := strings.Split(full, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", 0, fmt.Errorf("no repository configured for ticket %q", ticketID)
	}
	return parts[0], parts[1], number, nil
}
