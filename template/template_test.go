package template

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ArnoldoM23/jrdev-gateway/model"
)

func TestRuleSelector(t *testing.T) {
	tests := []struct {
		name string
		snap model.TicketSnapshot
		want string
	}{
		{
			name: "graphql story picks feature schema change",
			snap: model.TicketSnapshot{IssueType: "Story", Labels: []string{"graphql", "checkout"}},
			want: FeatureSchemaChange,
		},
		{
			name: "schema change task",
			snap: model.TicketSnapshot{IssueType: "Task", Labels: []string{"schema-change"}},
			want: SchemaChange,
		},
		{
			name: "bug issue type",
			snap: model.TicketSnapshot{IssueType: "Bug"},
			want: Bugfix,
		},
		{
			name: "upgrade label",
			snap: model.TicketSnapshot{IssueType: "Task", Labels: []string{"upgrade"}},
			want: VersionUpgrade,
		},
		{
			name: "refactor label",
			snap: model.TicketSnapshot{IssueType: "Task", Labels: []string{"tech-debt"}},
			want: Refactor,
		},
		{
			name: "plain task falls through to feature",
			snap: model.TicketSnapshot{IssueType: "Task"},
			want: Feature,
		},
	}

	sel := NewRuleSelector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sel.Select(context.Background(), &tt.snap)
			if err != nil {
				t.Fatalf("select: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientSelect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"template_name": "bugfix"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	got, err := c.Select(context.Background(), &model.TicketSnapshot{ID: "CEPG-1"})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got != "bugfix" {
		t.Fatalf("got %q, want bugfix", got)
	}
}

func TestClientSelectEmptyName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	if _, err := c.Select(context.Background(), &model.TicketSnapshot{ID: "CEPG-2"}); err == nil {
		t.Fatal("empty template name must error")
	}
}
