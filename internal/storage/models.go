package storage

import "time"

// Execution is one plugin invocation as persisted to the audit log.
type Execution struct {
	RequestID   string     `json:"request_id" db:"request_id"`
	PluginName  string     `json:"plugin_name" db:"plugin_name"`
	Mode        string     `json:"mode" db:"mode"`
	Status      string     `json:"status" db:"status"` // completed, failed, timeout, cancelled
	Error       string     `json:"error,omitempty" db:"error"`
	Output      string     `json:"output,omitempty" db:"output"`
	DurationMS  int64      `json:"duration_ms" db:"duration_ms"`
	UserID      string     `json:"user_id,omitempty" db:"user_id"`
	SessionID   string     `json:"session_id,omitempty" db:"session_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// ViolationRecord stores a policy denial for audit: a blocked import, a
// capability the plugin was refused, or a suspicious parameter flagged by
// the threat scanner.
type ViolationRecord struct {
	ID         string    `json:"id" db:"id"`
	RequestID  string    `json:"request_id" db:"request_id"`
	PluginName string    `json:"plugin_name" db:"plugin_name"`
	Type       string    `json:"type" db:"type"` // blocked_import, permission_denied, suspicious_input, suspicious_output
	Detail     string    `json:"detail" db:"detail"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ExecutionFilter provides criteria for querying the audit log.
type ExecutionFilter struct {
	PluginName string
	Status     string
	Since      *time.Time
	Until      *time.Time
	Limit      int
	Offset     int
}
