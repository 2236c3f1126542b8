package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"plugin-exec-engine/internal/engine"
	"plugin-exec-engine/internal/registry"
	"plugin-exec-engine/internal/storage"
)

// Lister is the registry surface the API exposes read-only.
type Lister interface {
	List() []*registry.PluginMetadata
}

type Handlers struct {
	eng     *engine.Engine
	plugins Lister
	db      *storage.DB
}

func NewHandlers(eng *engine.Engine, plugins Lister, db *storage.DB) *Handlers {
	return &Handlers{
		eng:     eng,
		plugins: plugins,
		db:      db,
	}
}

// HandleExecute runs one plugin invocation to completion. The engine settles
// every request, so this always answers 200 with a result whose status says
// what happened; only a malformed envelope is an HTTP error.
func (h *Handlers) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid JSON: "+err.Error(), "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}
	if req.Plugin == "" {
		writeError(w, "plugin is required", "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	res := h.eng.Execute(r.Context(), engine.ExecutionRequest{
		RequestID:      RequestIDFromContext(r.Context()),
		PluginName:     req.Plugin,
		Params:         req.Params,
		Mode:           engine.ExecutionMode(req.Mode),
		TimeoutSeconds: req.TimeoutSeconds,
		LimitsOverride: req.Limits,
		PolicyOverride: req.Policy,
		UserID:         req.UserID,
		SessionID:      req.SessionID,
	})

	writeJSON(w, http.StatusOK, toExecuteResponse(res))
}

// HandleCancel cancels an in-flight execution.
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, "request ID required", "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	cancelled := h.eng.Cancel(id)
	if !cancelled {
		if _, ok := h.eng.Get(id); !ok {
			writeError(w, "execution not found", "NOT_FOUND", http.StatusNotFound, r)
			return
		}
	}

	log.Info().Str("request_id", id).Bool("cancelled", cancelled).Msg("cancel requested")
	writeJSON(w, http.StatusOK, CancelResponse{RequestID: id, Cancelled: cancelled})
}

// HandleActiveExecutions lists in-flight executions.
func (h *Handlers) HandleActiveExecutions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.ActiveExecutions())
}

// HandleHistory lists settled executions, most recent first. Without
// filters it serves the in-memory ring; plugin/status/since/until filters
// query the audit database instead.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 100
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, "limit must be a positive integer", "INVALID_REQUEST", http.StatusBadRequest, r)
			return
		}
		limit = n
	}

	if q.Get("plugin") != "" || q.Get("status") != "" || q.Get("since") != "" || q.Get("until") != "" {
		h.handleHistoryArchive(w, r, limit)
		return
	}

	results := h.eng.History(limit)
	out := make([]ExecuteResponse, 0, len(results))
	for _, res := range results {
		out = append(out, toExecuteResponse(res))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleHistoryArchive serves filtered history from the audit database.
func (h *Handlers) handleHistoryArchive(w http.ResponseWriter, r *http.Request, limit int) {
	q := r.URL.Query()
	filter := storage.ExecutionFilter{
		PluginName: q.Get("plugin"),
		Status:     q.Get("status"),
		Limit:      limit,
	}

	for name, dst := range map[string]**time.Time{"since": &filter.Since, "until": &filter.Until} {
		if s := q.Get(name); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				writeError(w, name+" must be an RFC 3339 timestamp", "INVALID_REQUEST", http.StatusBadRequest, r)
				return
			}
			*dst = &t
		}
	}

	if h.db == nil {
		writeError(w, "history filters require the audit database", "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	execs, err := h.db.ListExecutions(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("audit history query failed")
		writeError(w, "history query failed", "INTERNAL", http.StatusInternalServerError, r)
		return
	}
	writeJSON(w, http.StatusOK, execs)
}

// HandleGetExecution returns one execution: in flight, from the history
// ring, or from the audit database when configured.
func (h *Handlers) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, "request ID required", "INVALID_REQUEST", http.StatusBadRequest, r)
		return
	}

	if res, ok := h.eng.Get(id); ok {
		writeJSON(w, http.StatusOK, toExecuteResponse(res))
		return
	}

	if h.db != nil {
		exec, err := h.db.GetExecution(r.Context(), id)
		if err == nil {
			writeJSON(w, http.StatusOK, exec)
			return
		}
		// A missing row and a DB outage both end in 404; keep the cause
		// visible to operators.
		log.Debug().Err(err).Str("request_id", id).Msg("audit lookup failed")
	}

	writeError(w, "execution not found", "NOT_FOUND", http.StatusNotFound, r)
}

// HandleListPlugins lists registered plugins and their statuses.
func (h *Handlers) HandleListPlugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.plugins.List())
}

// HandleStats reports engine-lifetime counters.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, msg, code string, status int, r *http.Request) {
	resp := ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: RequestIDFromContext(r.Context()),
	}
	writeJSON(w, status, resp)
}
