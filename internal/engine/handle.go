package engine

import (
	"sync"
	"time"
)

// outcome carries a dispatched invocation's raw result back to Execute.
type outcome struct {
	result any
	output string
	err    error
	// stack is the panic traceback when a worker process reported one;
	// in-process panics carry theirs inside err as *sandbox.PanicError.
	stack string
}

// Handle tracks one in-flight invocation so it can be observed and
// cancelled from outside the Execute call. Handles are engine-internal;
// callers address them by request ID.
type Handle struct {
	RequestID  string
	PluginName string
	Mode       ExecutionMode
	CreatedAt  time.Time

	// done receives the backend outcome exactly once. Buffered so the
	// dispatch goroutine never blocks after Execute stops listening.
	done chan outcome
	// cancelled is closed on the first Cancel call.
	cancelled chan struct{}
	// stop aborts the backend: cancels the dispatch context, kills the
	// worker process, or marks the queued pool job skipped.
	stop func()

	mu        sync.Mutex
	settled   bool
	didCancel bool
}

func newHandle(requestID, pluginName string, mode ExecutionMode) *Handle {
	return &Handle{
		RequestID:  requestID,
		PluginName: pluginName,
		Mode:       mode,
		CreatedAt:  time.Now(),
		done:       make(chan outcome, 1),
		cancelled:  make(chan struct{}),
		stop:       func() {},
	}
}

// Cancel requests cancellation. It reports true only on the first call
// against a not-yet-settled execution; cancelling a settled or already
// cancelled execution is a no-op returning false.
func (h *Handle) Cancel() bool {
	h.mu.Lock()
	if h.settled || h.didCancel {
		h.mu.Unlock()
		return false
	}
	h.didCancel = true
	stop := h.stop
	h.mu.Unlock()

	close(h.cancelled)
	stop()
	return true
}

// settle marks the execution terminal. Cancel calls arriving after settle
// report false.
func (h *Handle) settle() {
	h.mu.Lock()
	h.settled = true
	h.mu.Unlock()
}

// stopBackend fires the abort hook without marking the handle cancelled.
// Used on the timeout path, where the execution settles as timed out.
func (h *Handle) stopBackend() {
	h.mu.Lock()
	stop := h.stop
	h.mu.Unlock()
	stop()
}

// setStop installs the backend-specific abort hook once dispatch has
// started. If Cancel already ran, the hook fires immediately.
func (h *Handle) setStop(stop func()) {
	h.mu.Lock()
	h.stop = stop
	fire := h.didCancel
	h.mu.Unlock()
	if fire {
		stop()
	}
}
