package gateway

import "encoding/json"

// Tool names exposed over tools/call.
const (
	ToolPrepareAgentTask = "prepare_agent_task"
	ToolFinalizeSession  = "finalize_session"
	ToolHealth           = "health"
)

// toolCatalog is the static tools/list response body.
var toolCatalog = []ToolInfo{
	{
		Name:        ToolPrepareAgentTask,
		Description: "Fetch a ticket, select a template, and generate an agent-ready prompt with a tracking session.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"ticket_id":    {"type": "string", "pattern": "^[A-Z]+-\\d+$", "description": "Ticket key, e.g. CEPG-67890"},
				"repo":         {"type": "string", "description": "Target repository (owner/repo)"},
				"branch":       {"type": "string", "description": "Base branch for the change"},
				"project_root": {"type": "string", "description": "Path to the project root in the workspace"}
			},
			"required": ["ticket_id"]
		}`),
	},
	{
		Name:        ToolFinalizeSession,
		Description: "Close out a session with its outcome and collect analytics and an effectiveness score.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"session_id":     {"type": "string"},
				"ticket_id":      {"type": "string"},
				"success":        {"type": "boolean", "description": "Whether the agent completed the task (default true)"},
				"pr_url":         {"type": "string"},
				"files_modified": {"type": "array", "items": {"type": "string"}},
				"retry_count":    {"type": "integer", "minimum": 0},
				"manual_edits":   {"type": "integer", "minimum": 0},
				"duration_ms":    {"type": "integer", "minimum": 0},
				"feedback":        {"type": "string"},
				"change_required": {"type": "string"},
				"changes_made":    {"type": "string"},
				"error_message":   {"type": "string"},
				"agent_telemetry": {"type": "object"}
			},
			"required": ["session_id", "ticket_id"]
		}`),
	},
	{
		Name:        ToolHealth,
		Description: "Report gateway and collaborator service health.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	},
}

// prepareArgs are the tools/call arguments for prepare_agent_task.
type prepareArgs struct {
	TicketID    string `json:"ticket_id"`
	Repo        string `json:"repo,omitempty"`
	Branch      string `json:"branch,omitempty"`
	ProjectRoot string `json:"project_root,omitempty"`
}

// finalizeArgs are the tools/call arguments for finalize_session.
type finalizeArgs struct {
	SessionID      string          `json:"session_id"`
	TicketID       string          `json:"ticket_id"`
	Success        *bool           `json:"success,omitempty"`
	PRURL          string          `json:"pr_url,omitempty"`
	FilesModified  []string        `json:"files_modified,omitempty"`
	RetryCount     int             `json:"retry_count,omitempty"`
	ManualEdits    int             `json:"manual_edits,omitempty"`
	DurationMS     int64           `json:"duration_ms,omitempty"`
	Feedback       string          `json:"feedback,omitempty"`
	ChangeRequired string          `json:"change_required,omitempty"`
	ChangesMade    string          `json:"changes_made,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	AgentTelemetry json.RawMessage `json:"agent_telemetry,omitempty"`
}
