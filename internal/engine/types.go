package engine

import (
	"fmt"
	"time"

	"plugin-exec-engine/internal/policy"
)

// ExecutionMode selects the dispatch backend for an invocation.
type ExecutionMode string

const (
	// ModeDirect runs the entry point in the engine process with no
	// queueing. Fastest, least isolated; for trusted plugins only.
	ModeDirect ExecutionMode = "direct"
	// ModeThread runs the entry point on the engine's bounded goroutine
	// pool, in process.
	ModeThread ExecutionMode = "thread"
	// ModeProcess runs the entry point in a dedicated worker process with
	// OS resource limits applied.
	ModeProcess ExecutionMode = "process"
	// ModeSandboxed is the default: a worker process with resource limits
	// plus the full capability and import policy enforced.
	ModeSandboxed ExecutionMode = "sandboxed"
)

// ParseMode converts a string into an ExecutionMode.
func ParseMode(s string) (ExecutionMode, error) {
	switch ExecutionMode(s) {
	case ModeDirect, ModeThread, ModeProcess, ModeSandboxed:
		return ExecutionMode(s), nil
	case "":
		return ModeSandboxed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// isolated reports whether the mode dispatches to a worker process.
func (m ExecutionMode) isolated() bool {
	return m == ModeProcess || m == ModeSandboxed
}

// ExecutionStatus is the lifecycle state of one invocation.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusTimeout   ExecutionStatus = "timeout"
	StatusCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status is final. A terminal execution cannot
// be cancelled and never transitions again.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout, StatusCancelled:
		return true
	}
	return false
}

// ExecutionRequest asks the engine to run one plugin invocation.
type ExecutionRequest struct {
	// RequestID is assigned by the engine when empty.
	RequestID  string         `json:"request_id,omitempty"`
	PluginName string         `json:"plugin_name"`
	Params     map[string]any `json:"params,omitempty"`
	Mode       ExecutionMode  `json:"mode,omitempty"`
	// TimeoutSeconds bounds wall-clock time; 0 means the engine default.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// Per-request overrides, merged onto the engine's base limits and
	// policy. Overrides can tighten or grant, but never unblock a module
	// the base policy blocks.
	LimitsOverride *policy.ResourceLimits `json:"limits_override,omitempty"`
	PolicyOverride *policy.SecurityPolicy `json:"policy_override,omitempty"`

	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// ExecutionResult is the settled outcome of one invocation. Execute always
// returns one; failures are reported in Status and Error, never as a Go
// error from Execute itself.
type ExecutionResult struct {
	RequestID  string          `json:"request_id"`
	PluginName string          `json:"plugin_name"`
	Mode       ExecutionMode   `json:"mode"`
	Status     ExecutionStatus `json:"status"`
	Result     any             `json:"result,omitempty"`
	Output     string          `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	Duration   time.Duration   `json:"duration"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

// Stats is a snapshot of engine-lifetime counters.
type Stats struct {
	TotalExecutions   uint64  `json:"total_executions"`
	Succeeded         uint64  `json:"succeeded"`
	Failed            uint64  `json:"failed"`
	Timeouts          uint64  `json:"timeouts"`
	Cancelled         uint64  `json:"cancelled"`
	ActiveCount       int     `json:"active_count"`
	TotalDurationMS   int64   `json:"total_duration_ms"`
	AverageDurationMS float64 `json:"average_duration_ms"`
}
