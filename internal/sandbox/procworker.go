package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"plugin-exec-engine/internal/policy"
	"plugin-exec-engine/pkg/pluginsdk"
)

// WorkerEnv marks a process as a plugin worker. The engine's process
// launcher re-execs the host binary with this variable set; main must call
// RunWorker before doing anything else when it is present.
const WorkerEnv = "PLUGIN_WORKER"

// IsWorker reports whether this process was launched as a plugin worker.
func IsWorker() bool {
	return os.Getenv(WorkerEnv) == "1"
}

// WorkerRequest is the unit of work sent to a worker process on stdin.
type WorkerRequest struct {
	EntryPoint     string                `json:"entry_point"`
	Params         map[string]any        `json:"params"`
	Limits         policy.ResourceLimits `json:"limits"`
	Policy         policy.SecurityPolicy `json:"policy"`
	TimeoutSeconds int                   `json:"timeout_seconds"`
}

// WorkerResponse is the worker's reply on stdout. Kind classifies the error
// so the parent can map it back to a sentinel without string matching.
type WorkerResponse struct {
	Result any    `json:"result,omitempty"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Stack  string `json:"stack,omitempty"`
}

// Error kinds carried across the worker boundary.
const (
	KindPermission = "permission"
	KindImport     = "import"
	KindPanic      = "panic"
	KindPlugin     = "plugin"
)

// RunWorker is the body of a worker process: decode one request from stdin,
// apply rlimits, run the entry point sandboxed, write one response to
// stdout. It never returns a plugin failure as a non-zero exit; the parent
// reads the response to learn the outcome.
func RunWorker(resolver *pluginsdk.Resolver) error {
	return runWorker(resolver, os.Stdin, os.Stdout)
}

func runWorker(resolver *pluginsdk.Resolver, in io.Reader, out io.Writer) error {
	var req WorkerRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("decoding worker request: %w", err)
	}

	resp := executeWorkerRequest(resolver, &req)
	if err := json.NewEncoder(out).Encode(resp); err != nil {
		return fmt.Errorf("encoding worker response: %w", err)
	}
	return nil
}

func executeWorkerRequest(resolver *pluginsdk.Resolver, req *WorkerRequest) *WorkerResponse {
	entry, err := resolver.Resolve(req.EntryPoint)
	if err != nil {
		return &WorkerResponse{Error: err.Error(), Kind: KindPlugin}
	}

	// Backstop deadline in case the parent dies without killing us.
	ctx := context.Background()
	if req.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		grace := time.Duration(req.TimeoutSeconds)*time.Second + 5*time.Second
		ctx, cancel = context.WithTimeout(ctx, grace)
		defer cancel()
	}

	var opts []Option
	if IsWorker() {
		opts = append(opts, WithOSLimits())
	}
	sb := New(req.Limits, req.Policy, opts...)
	inv, err := sb.Run(ctx, entry, req.Params)
	if err != nil {
		resp := &WorkerResponse{Error: err.Error(), Kind: classifyError(err)}
		if inv != nil {
			resp.Output = inv.Output
		}
		var panicErr *PanicError
		if errors.As(err, &panicErr) {
			resp.Stack = panicErr.Stack
		}
		return resp
	}

	return &WorkerResponse{Result: inv.Result, Output: inv.Output}
}

func classifyError(err error) string {
	switch {
	case errors.Is(err, pluginsdk.ErrPermission):
		return KindPermission
	case errors.Is(err, pluginsdk.ErrImportBlocked):
		return KindImport
	default:
		var panicErr *PanicError
		if errors.As(err, &panicErr) {
			return KindPanic
		}
		return KindPlugin
	}
}
