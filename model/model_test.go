package model

import "testing"

func TestTruncateShortString(t *testing.T) {
	got := Truncate("hello", 10)
	if got != "hello" {
		t.Fatalf("expected 'hello', got %q", got)
	}
}

func TestTruncateLongString(t *testing.T) {
	got := Truncate("hello world", 8)
	if got != "hello..." {
		t.Fatalf("expected 'hello...', got %q", got)
	}
}

func TestTruncateVerySmallMaxLen(t *testing.T) {
	got := Truncate("hello", 2)
	if got != "he" {
		t.Fatalf("expected 'he', got %q", got)
	}
}

func TestStatusConstants(t *testing.T) {
	statuses := []Status{StatusPending, StatusActive, StatusCompleted, StatusFailed}
	expected := []string{"pending", "active", "completed", "failed"}
	for i, s := range statuses {
		if string(s) != expected[i] {
			t.Fatalf("expected %q, got %q", expected[i], s)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() || StatusActive.Terminal() {
		t.Fatal("pending and active must not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Fatal("completed and failed must be terminal")
	}
}

func TestStatusRankOrdering(t *testing.T) {
	if !(StatusPending.Rank() < StatusActive.Rank()) {
		t.Fatal("pending must rank below active")
	}
	if !(StatusActive.Rank() < StatusCompleted.Rank()) {
		t.Fatal("active must rank below completed")
	}
	if StatusCompleted.Rank() != StatusFailed.Rank() {
		t.Fatal("both terminal statuses must share a rank")
	}
	if Status("bogus").Rank() != -1 {
		t.Fatal("unknown status must rank -1")
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusActive, StatusCompleted, StatusFailed} {
		if !s.Valid() {
			t.Fatalf("%q should be valid", s)
		}
	}
	if Status("running").Valid() {
		t.Fatal("'running' is not a known status")
	}
}

func TestTicketSnapshotNormalize(t *testing.T) {
	snap := &TicketSnapshot{ID: "CEPG-1", Summary: "do a thing"}
	snap.Normalize()

	if snap.AcceptanceCriteria == nil || snap.Labels == nil || snap.Files == nil {
		t.Fatal("slices must be non-nil after normalize")
	}
	if snap.IssueType != "Task" {
		t.Fatalf("expected issue type 'Task', got %q", snap.IssueType)
	}
	if snap.Priority != "Medium" {
		t.Fatalf("expected priority 'Medium', got %q", snap.Priority)
	}
	if snap.Assignee != "unassigned" {
		t.Fatalf("expected assignee 'unassigned', got %q", snap.Assignee)
	}
}

func TestTicketSnapshotNormalizeKeepsValues(t *testing.T) {
	snap := &TicketSnapshot{
		ID:        "CEPG-2",
		IssueType: "Bug",
		Priority:  "High",
		Labels:    []string{"backend"},
	}
	snap.Normalize()

	if snap.IssueType != "Bug" || snap.Priority != "High" {
		t.Fatalf("normalize overwrote set fields: %q %q", snap.IssueType, snap.Priority)
	}
	if len(snap.Labels) != 1 || snap.Labels[0] != "backend" {
		t.Fatalf("normalize changed labels: %v", snap.Labels)
	}
}
