// Package gateway exposes the orchestration engine over JSON-RPC 2.0 / MCP.
//
// The same dispatch core serves the HTTP transport (chi router) and the
// stdio bridge. All business logic lives in the engine; this package only
// translates protocol envelopes.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ArnoldoM23/jrdev-gateway/engine"
	"github.com/ArnoldoM23/jrdev-gateway/model"
	"github.com/ArnoldoM23/jrdev-gateway/ticket"
)

// maxRequestBody caps JSON-RPC request bodies at 1MB.
const maxRequestBody = 1 << 20

// promptName is the single prompt exposed over prompts/list.
const promptName = "jr_dev_task"

// Handler serves the MCP gateway.
type Handler struct {
	engine *engine.Engine
	router chi.Router
}

// New creates a gateway handler around an engine.
func New(eng *engine.Engine) *Handler {
	h := &Handler{engine: eng}
	h.router = h.buildRouter()
	return h
}

// Router returns the HTTP router.
func (h *Handler) Router() chi.Router {
	return h.router
}

func (h *Handler) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/", h.handleRPC)
	r.Post("/mcp", h.handleRPC)

	r.Get("/health", h.handleHealth)
	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", h.handleListSessions)
		r.Get("/active", h.handleActiveSessions)
		r.Get("/stats", h.handleStats)
		r.Post("/cleanup", h.handleCleanup)
	})

	return r
}

// --- JSON-RPC transport ---

func (h *Handler) handleRPC(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeRPC(w, errorResponse(nil, CodeParseError, "unable to read request body"))
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPC(w, errorResponse(nil, CodeParseError, "invalid JSON"))
		return
	}

	resp := h.Dispatch(r.Context(), &req)
	if resp == nil {
		// Notifications get no response body.
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeRPC(w, resp)
}

func writeRPC(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("writeRPC encode error: %v", err)
	}
}

// Dispatch routes a JSON-RPC request to its method handler. It returns nil
// for notifications, which must produce no output on any transport. A panic
// inside a handler is converted into an internal error response so neither
// transport's read loop dies.
func (h *Handler) Dispatch(ctx context.Context, req *Request) (resp *Response) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		log.Printf("panic handling %q: %v", req.Method, r)
		if !req.Notification() {
			resp = errorResponse(req.ID, CodeInternalError, "internal error")
		}
	}()

	if req.Notification() {
		h.dispatchNotification(ctx, req)
		return nil
	}

	switch req.Method {
	case "initialize":
		return h.handleInitialize(req)
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	case "tools/list":
		return resultResponse(req.ID, map[string]any{"tools": toolCatalog})
	case "tools/call":
		return h.handleToolsCall(ctx, req)
	case "prompts/list":
		return h.handlePromptsList(req)
	case "prompts/get":
		return h.handlePromptsGet(ctx, req)
	}
	return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
}

// dispatchNotification handles the few notifications we care about. Unknown
// notifications are dropped silently per JSON-RPC 2.0.
func (h *Handler) dispatchNotification(ctx context.Context, req *Request) {
	switch req.Method {
	case "notifications/initialized", "notifications/cancelled":
		// Nothing to do.
	default:
		log.Printf("Ignoring notification %q", req.Method)
	}
}

func (h *Handler) handleInitialize(req *Request) *Response {
	return resultResponse(req.ID, map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools":   map[string]any{},
			"prompts": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    "jrdev-gateway",
			"version": "1.0.0",
		},
	})
}

// --- tools/call ---

func (h *Handler) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid tools/call params")
	}

	switch params.Name {
	case ToolPrepareAgentTask:
		return h.callPrepare(ctx, req.ID, params.Arguments)
	case ToolFinalizeSession:
		return h.callFinalize(ctx, req.ID, params.Arguments)
	case ToolHealth:
		return h.callHealth(ctx, req.ID)
	}
	return errorResponse(req.ID, CodeInvalidParams, fmt.Sprintf("unknown tool %q", params.Name))
}

func (h *Handler) callPrepare(ctx context.Context, id json.RawMessage, raw json.RawMessage) *Response {
	var args prepareArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorResponse(id, CodeInvalidParams, "invalid prepare_agent_task arguments")
	}
	if !ticket.ValidID(args.TicketID) {
		return errorResponse(id, CodeInvalidParams,
			fmt.Sprintf("ticket_id %q does not match PROJECT-NUMBER format", args.TicketID))
	}

	res, err := h.engine.PrepareTask(ctx, engine.PrepareRequest{
		TicketID:    args.TicketID,
		Repo:        args.Repo,
		Branch:      args.Branch,
		ProjectRoot: args.ProjectRoot,
	})
	if err != nil {
		return errorResponse(id, CodeInternalError, err.Error())
	}

	summary := fmt.Sprintf("Prepared session %s for %s using template %s (%d files, source: %s)",
		res.SessionID, res.TicketID, res.TemplateUsed, len(res.Files), res.Source)

	return resultResponse(id, CallToolResult{
		Content: []Content{{Type: "text", Text: summary}},
		Meta: map[string]any{
			"prompt_text": res.Prompt,
			"metadata": map[string]any{
				"ticket_id":          res.TicketID,
				"session_id":         res.SessionID,
				"template_used":      res.TemplateUsed,
				"prompt_hash":        res.PromptHash,
				"files_to_modify":    res.Files,
				"commands":           res.Commands,
				"repo":               args.Repo,
				"branch":             args.Branch,
				"source":             res.Source,
				"template_fallback":  res.TemplateFallback,
				"enrichment_skipped": res.EnrichmentSkipped,
				"processing_time_ms": res.ProcessingTimeMS,
			},
			"chat_injection": map[string]any{
				"enabled":      true,
				"message":      res.Prompt,
				"format":       "markdown",
				"instructions": "Paste the message into the agent chat to begin work on " + res.TicketID + ".",
			},
		},
	})
}

func (h *Handler) callFinalize(ctx context.Context, id json.RawMessage, raw json.RawMessage) *Response {
	var args finalizeArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorResponse(id, CodeInvalidParams, "invalid finalize_session arguments")
	}
	if args.SessionID == "" || args.TicketID == "" {
		return errorResponse(id, CodeInvalidParams, "session_id and ticket_id are required")
	}

	res, err := h.engine.FinalizeTask(ctx, engine.FinalizeRequest{
		SessionID:      args.SessionID,
		TicketID:       args.TicketID,
		Success:        args.Success,
		PRURL:          args.PRURL,
		FilesModified:  args.FilesModified,
		RetryCount:     args.RetryCount,
		ManualEdits:    args.ManualEdits,
		DurationMS:     args.DurationMS,
		Feedback:       args.Feedback,
		ChangeRequired: args.ChangeRequired,
		ChangesMade:    args.ChangesMade,
		ErrorMessage:   args.ErrorMessage,
		AgentTelemetry: args.AgentTelemetry,
	})
	if err != nil {
		return errorResponse(id, classify(err), err.Error())
	}

	summary := fmt.Sprintf("Session %s finalized as %s", res.Session.ID, res.Session.Status)
	if res.Score != nil {
		summary += fmt.Sprintf(" (score %d, %s)", res.Score.Score, res.Score.ClarityRating)
	}

	meta := map[string]any{
		"session":   res.Session,
		"analytics": res.Analytics,
	}
	if res.Score != nil {
		meta["pess_score"] = res.Score
	}
	if res.ScoreDegraded {
		meta["score_degraded"] = true
	}
	if res.TemplateUpdate != nil {
		meta["template_update"] = res.TemplateUpdate
	}

	return resultResponse(id, CallToolResult{
		Content: []Content{{Type: "text", Text: summary}},
		Meta:    meta,
	})
}

func (h *Handler) callHealth(ctx context.Context, id json.RawMessage) *Response {
	health := h.engine.Health(ctx)
	text, _ := json.Marshal(health)
	return resultResponse(id, CallToolResult{
		Content: []Content{{Type: "text", Text: string(text)}},
		Meta: map[string]any{
			"status":              health.Status,
			"services":            health.Services,
			"mcp_tools_available": len(toolCatalog),
		},
	})
}

// --- prompts ---

func (h *Handler) handlePromptsList(req *Request) *Response {
	return resultResponse(req.ID, map[string]any{
		"prompts": []PromptInfo{{
			Name:        promptName,
			Description: "Agent-ready task prompt generated from a ticket",
			Arguments: []PromptArgument{
				{Name: "ticket_id", Description: "Ticket key, e.g. CEPG-67890", Required: true},
				{Name: "repo", Description: "Target repository (owner/repo)"},
				{Name: "branch", Description: "Base branch for the change"},
			},
		}},
	})
}

type promptsGetParams struct {
	Name      string       `json:"name"`
	Arguments *prepareArgs `json:"arguments,omitempty"`
}

func (h *Handler) handlePromptsGet(ctx context.Context, req *Request) *Response {
	var params promptsGetParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid prompts/get params")
	}
	if params.Name != promptName {
		return errorResponse(req.ID, CodeInvalidParams, fmt.Sprintf("unknown prompt %q", params.Name))
	}
	if params.Arguments == nil || !ticket.ValidID(params.Arguments.TicketID) {
		return errorResponse(req.ID, CodeInvalidParams, "ticket_id argument is required")
	}

	res, err := h.engine.PrepareTask(ctx, engine.PrepareRequest{
		TicketID: params.Arguments.TicketID,
		Repo:     params.Arguments.Repo,
		Branch:   params.Arguments.Branch,
	})
	if err != nil {
		return errorResponse(req.ID, CodeInternalError, err.Error())
	}

	return resultResponse(req.ID, map[string]any{
		"description": fmt.Sprintf("Task prompt for %s (session %s)", res.TicketID, res.SessionID),
		"messages": []PromptMessage{{
			Role:    "user",
			Content: Content{Type: "text", Text: res.Prompt},
		}},
	})
}

// --- Operational REST endpoints ---

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Health(r.Context()))
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ticketID := r.URL.Query().Get("ticket_id")
	if ticketID == "" {
		writeError(w, http.StatusBadRequest, "ticket_id query parameter is required")
		return
	}
	sessions, err := h.engine.Store().ListByTicket(r.Context(), ticketID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		log.Printf("Error listing sessions for %s: %v", ticketID, err)
		return
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleActiveSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.engine.Store().ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list active sessions")
		log.Printf("Error listing active sessions: %v", err)
		return
	}
	if sessions == nil {
		sessions = []*model.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Store().Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		log.Printf("Error computing stats: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.Store().ExpireStale(r.Context(), h.engine.Retention())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to expire sessions")
		log.Printf("Error expiring sessions: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": n})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON encode error: %v", err)
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResponse{Error: msg})
}

// classify keeps engine sentinel checks in one place for callers that need
// to distinguish fatal categories.
func classify(err error) int {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		return CodeInvalidParams
	case err != nil:
		return CodeInternalError
	}
	return 0
}
