package api

import (
	"testing"
	"time"

	"plugin-exec-engine/internal/engine"
)

func TestToExecuteResponse(t *testing.T) {
	res := &engine.ExecutionResult{
		RequestID:  "req-1",
		PluginName: "echo",
		Mode:       engine.ModeThread,
		Status:     engine.StatusCompleted,
		Result:     map[string]any{"ok": true},
		Output:     "printed",
		Duration:   1500 * time.Millisecond,
	}

	resp := toExecuteResponse(res)

	if resp.RequestID != "req-1" || resp.Plugin != "echo" {
		t.Errorf("identity fields = %q/%q, want req-1/echo", resp.RequestID, resp.Plugin)
	}
	if resp.Mode != "thread" || resp.Status != "completed" {
		t.Errorf("mode/status = %q/%q, want thread/completed", resp.Mode, resp.Status)
	}
	if resp.Duration != "1.5s" {
		t.Errorf("Duration = %q, want 1.5s", resp.Duration)
	}
	if resp.Output != "printed" {
		t.Errorf("Output = %q, want printed", resp.Output)
	}
}
