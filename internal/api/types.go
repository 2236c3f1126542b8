package api

import (
	"plugin-exec-engine/internal/engine"
	"plugin-exec-engine/internal/policy"
)

// ExecuteRequest is the API-level request to run a plugin.
type ExecuteRequest struct {
	Plugin         string         `json:"plugin"`
	Params         map[string]any `json:"params,omitempty"`
	Mode           string         `json:"mode,omitempty"` // direct, thread, process, sandboxed
	TimeoutSeconds int            `json:"timeout_seconds,omitempty"`

	Limits *policy.ResourceLimits `json:"limits,omitempty"`
	Policy *policy.SecurityPolicy `json:"policy,omitempty"`

	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// ExecuteResponse is the settled result returned for an execution.
type ExecuteResponse struct {
	RequestID string         `json:"request_id"`
	Plugin    string         `json:"plugin"`
	Mode      string         `json:"mode"`
	Status    string         `json:"status"`
	Result    any            `json:"result,omitempty"`
	Output    string         `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	Duration  string         `json:"duration"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func toExecuteResponse(res *engine.ExecutionResult) ExecuteResponse {
	return ExecuteResponse{
		RequestID: res.RequestID,
		Plugin:    res.PluginName,
		Mode:      string(res.Mode),
		Status:    string(res.Status),
		Result:    res.Result,
		Output:    res.Output,
		Error:     res.Error,
		Duration:  res.Duration.String(),
		Metadata:  res.Metadata,
	}
}

// CancelResponse reports the outcome of a cancellation request.
type CancelResponse struct {
	RequestID string `json:"request_id"`
	Cancelled bool   `json:"cancelled"`
}

// ErrorResponse is returned for API errors.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Database bool   `json:"database"`
	Plugins  int    `json:"plugins"`
	Uptime   string `json:"uptime"`
}
