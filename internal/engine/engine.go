// Package engine is the execution façade: it validates parameters against
// the plugin's manifest schema, dispatches the entry point onto one of four
// backends, enforces wall-clock timeouts and cancellation, and keeps the
// active table, history ring and lifetime counters.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"plugin-exec-engine/internal/monitor"
	"plugin-exec-engine/internal/policy"
	"plugin-exec-engine/internal/registry"
	"plugin-exec-engine/internal/sandbox"
	"plugin-exec-engine/internal/storage"
	"plugin-exec-engine/internal/validate"
	"plugin-exec-engine/internal/worker"
	"plugin-exec-engine/pkg/pluginsdk"
)

// killGrace is how long Execute waits for a stopped backend to report back
// before giving up on its output.
const killGrace = 500 * time.Millisecond

// AuditSink receives settled execution records and policy violations.
// *storage.AuditWriter satisfies it; a nil sink disables auditing.
type AuditSink interface {
	Log(exec *storage.Execution)
	LogViolation(v *storage.ViolationRecord)
}

// Options configures a new Engine.
type Options struct {
	Store    registry.Store
	Resolver *pluginsdk.Resolver

	DefaultMode    ExecutionMode
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
	HistorySize    int

	ThreadPoolSize         int
	ThreadQueueDepth       int
	MaxConcurrentProcesses int

	// Base limits and policy; per-request overrides merge onto these.
	Limits policy.ResourceLimits
	Policy policy.SecurityPolicy

	Metrics *monitor.Metrics
	Scanner *monitor.ThreatScanner
	Tracer  *monitor.Tracer
	Audit   AuditSink
}

// Engine runs plugin invocations. All methods are safe for concurrent use.
type Engine struct {
	store    registry.Store
	resolver *pluginsdk.Resolver
	pool     *worker.Pool
	launcher *worker.Launcher

	defaultMode    ExecutionMode
	defaultTimeout time.Duration
	maxTimeout     time.Duration
	historySize    int

	limits policy.ResourceLimits
	policy policy.SecurityPolicy

	metrics *monitor.Metrics
	scanner *monitor.ThreatScanner
	tracer  *monitor.Tracer
	audit   AuditSink

	mu      sync.Mutex
	active  map[string]*Handle
	history []*ExecutionResult

	statsMu         sync.Mutex
	stats           Stats
	totalDurationMS int64
}

// New builds an Engine. Store and Resolver are required; everything else
// falls back to defaults.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine requires a plugin store")
	}
	if opts.Resolver == nil {
		return nil, errors.New("engine requires an entry point resolver")
	}

	if opts.DefaultMode == "" {
		opts.DefaultMode = ModeSandboxed
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 30 * time.Second
	}
	if opts.MaxTimeout <= 0 {
		opts.MaxTimeout = 5 * time.Minute
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 1000
	}
	if opts.ThreadPoolSize <= 0 {
		opts.ThreadPoolSize = 8
	}
	if opts.ThreadQueueDepth <= 0 {
		opts.ThreadQueueDepth = 64
	}
	if opts.MaxConcurrentProcesses <= 0 {
		opts.MaxConcurrentProcesses = 16
	}
	if opts.Limits == (policy.ResourceLimits{}) {
		opts.Limits = policy.DefaultLimits()
	}
	if opts.Scanner == nil {
		opts.Scanner = monitor.NewThreatScanner()
	}

	launcher, err := worker.NewLauncher(opts.MaxConcurrentProcesses)
	if err != nil {
		return nil, fmt.Errorf("creating process launcher: %w", err)
	}

	return &Engine{
		store:          opts.Store,
		resolver:       opts.Resolver,
		pool:           worker.NewPool(opts.ThreadPoolSize, opts.ThreadQueueDepth),
		launcher:       launcher,
		defaultMode:    opts.DefaultMode,
		defaultTimeout: opts.DefaultTimeout,
		maxTimeout:     opts.MaxTimeout,
		historySize:    opts.HistorySize,
		limits:         opts.Limits,
		policy:         opts.Policy,
		metrics:        opts.Metrics,
		scanner:        opts.Scanner,
		tracer:         opts.Tracer,
		audit:          opts.Audit,
	}, nil
}

// Execute runs one plugin invocation to completion and returns its settled
// result. It never returns a Go error: lookup failures, validation
// failures, timeouts and cancellations all land in the result's Status and
// Error fields so callers have one uniform shape to report.
func (e *Engine) Execute(ctx context.Context, req ExecutionRequest) *ExecutionResult {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	mode, err := ParseMode(string(req.Mode))
	if err == nil && req.Mode == "" {
		mode = e.defaultMode
	}
	if err != nil {
		return e.finalize(nil, &ExecutionResult{
			RequestID:  req.RequestID,
			PluginName: req.PluginName,
			Mode:       req.Mode,
			Status:     StatusFailed,
			Error:      (&ExecutionError{RequestID: req.RequestID, Op: "parse_mode", Err: err}).Error(),
			StartedAt:  time.Now(),
		}, "invalid_mode", req)
	}
	req.Mode = mode

	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	if timeout > e.maxTimeout {
		timeout = e.maxTimeout
	}

	logger := log.With().
		Str("request_id", req.RequestID).
		Str("plugin", req.PluginName).
		Str("mode", string(req.Mode)).
		Bool("isolated", req.Mode.isolated()).
		Logger()
	logger.Info().Msg("execution requested")

	start := time.Now()
	result := &ExecutionResult{
		RequestID:  req.RequestID,
		PluginName: req.PluginName,
		Mode:       req.Mode,
		StartedAt:  start,
	}

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.StartSpan(ctx, "execute",
			monitor.AttrRequestID.String(req.RequestID),
			monitor.AttrPlugin.String(req.PluginName),
			monitor.AttrMode.String(string(req.Mode)),
		)
		defer func() {
			span.SetAttributes(monitor.AttrStatus.String(string(result.Status)),
				monitor.AttrDurationMS.Int64(result.Duration.Milliseconds()))
			span.End()
		}()
	}

	if e.metrics != nil {
		e.metrics.ParamsSizeBytes.Observe(float64(approxParamsSize(req.Params)))
	}

	meta, err := e.store.Get(req.PluginName)
	if err != nil {
		return e.fail(result, req, "lookup", fmt.Errorf("%w: %s", ErrPluginNotFound, req.PluginName), "not_found")
	}
	if !meta.Status.Executable() {
		return e.fail(result, req, "lookup",
			fmt.Errorf("%w: %s has status %s", ErrPluginUnavailable, req.PluginName, meta.Status), "unavailable")
	}

	// Fail fast on unknown symbols even for process modes; workers resolve
	// against the same compiled-in table.
	entry, err := e.resolver.Resolve(meta.Manifest.EntryPoint)
	if err != nil {
		return e.fail(result, req, "resolve",
			fmt.Errorf("%w: %v", ErrPluginUnavailable, err), "unavailable")
	}

	sanitized, err := validate.SanitizeInput(req.Params, meta.Manifest.Schema())
	if err != nil {
		return e.fail(result, req, "validate", err, "validation")
	}

	if detections := e.scanner.ScanParams(sanitized); len(detections) > 0 {
		if e.metrics != nil {
			for range detections {
				e.metrics.RecordViolation("suspicious_input")
			}
		}
		setMetadata(result, "detections", detections)
		e.auditViolations(req, "suspicious_input", detections)
		logger.Warn().Int("count", len(detections)).Msg("suspicious parameter content flagged")
	}

	limits := e.limits.Merge(req.LimitsOverride)
	pol := e.policy.Merge(req.PolicyOverride)

	handle := newHandle(req.RequestID, req.PluginName, req.Mode)
	e.register(handle)

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	if err := e.dispatch(runCtx, runCancel, handle, req.Mode, meta.Manifest.EntryPoint, entry, sanitized, limits, pol, timeout); err != nil {
		e.unregister(handle)
		return e.fail(result, req, "dispatch", err, "pool_exhausted")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var out outcome
	select {
	case out = <-handle.done:
		// A cancel racing a fast failure settles as cancelled, not failed.
		select {
		case <-handle.cancelled:
			if out.err != nil {
				out.err = ErrCancelled
			}
		default:
		}
	case <-timer.C:
		logger.Warn().Dur("timeout", timeout).Msg("execution timed out, stopping backend")
		out = e.drainAfterStop(handle)
		out.err = ErrTimeout
	case <-handle.cancelled:
		logger.Info().Msg("execution cancelled")
		out = e.drainAfterStop(handle)
		out.err = ErrCancelled
	}

	handle.settle()
	e.unregister(handle)

	result.Output = out.output
	result.Duration = time.Since(start)

	switch {
	case errors.Is(out.err, ErrTimeout):
		result.Status = StatusTimeout
		result.Error = (&ExecutionError{RequestID: req.RequestID, Op: "await", Err: ErrTimeout}).Error()
	case errors.Is(out.err, ErrCancelled):
		result.Status = StatusCancelled
		result.Error = (&ExecutionError{RequestID: req.RequestID, Op: "await", Err: ErrCancelled}).Error()
		setMetadata(result, "cancelled", true)
	case out.err != nil:
		result.Status = StatusFailed
		result.Error = (&ExecutionError{RequestID: req.RequestID, Op: "run", Err: out.err}).Error()
		if tb := stackOf(out); tb != "" {
			setMetadata(result, "traceback", tb)
		}
	default:
		cleaned, err := validate.SanitizeOutput(out.result, limits)
		if err != nil {
			result.Status = StatusFailed
			result.Error = (&ExecutionError{RequestID: req.RequestID, Op: "sanitize_output", Err: err}).Error()
		} else {
			result.Status = StatusCompleted
			result.Result = cleaned
		}
	}

	if result.Output != "" {
		if hits := e.scanner.ScanOutput(result.Output); len(hits) > 0 {
			if e.metrics != nil {
				for range hits {
					e.metrics.RecordViolation("suspicious_output")
				}
			}
			setMetadata(result, "output_detections", hits)
			e.auditViolations(req, "suspicious_output", hits)
			logger.Warn().Int("count", len(hits)).Msg("suspicious content in plugin output")
		}
	}

	logger.Info().
		Str("status", string(result.Status)).
		Dur("duration", result.Duration).
		Msg("execution settled")

	return e.finalize(handle, result, errType(out.err), req)
}

// dispatch starts the invocation on the selected backend. The backend
// reports through handle.done; dispatch itself only fails when a backend
// refuses the work outright.
func (e *Engine) dispatch(
	ctx context.Context,
	cancel context.CancelFunc,
	handle *Handle,
	mode ExecutionMode,
	entryPoint string,
	entry pluginsdk.EntryFunc,
	params map[string]any,
	limits policy.ResourceLimits,
	pol policy.SecurityPolicy,
	timeout time.Duration,
) error {
	switch mode {
	case ModeDirect:
		handle.setStop(cancel)
		sb := sandbox.New(limits, pol)
		go func() {
			inv, err := sb.Run(ctx, entry, params)
			handle.done <- invocationOutcome(inv, err)
		}()
		return nil

	case ModeThread:
		job, err := e.pool.Submit(ctx, func(jobCtx context.Context) {
			sb := sandbox.New(limits, pol)
			inv, runErr := sb.Run(jobCtx, entry, params)
			handle.done <- invocationOutcome(inv, runErr)
		})
		if err != nil {
			if e.metrics != nil {
				e.metrics.QueueRejections.WithLabelValues("thread").Inc()
			}
			return fmt.Errorf("%w: %v", ErrPoolExhausted, err)
		}
		handle.setStop(func() { job.Cancel() })
		return nil

	case ModeProcess, ModeSandboxed:
		handle.setStop(cancel)
		wreq := &sandbox.WorkerRequest{
			EntryPoint:     entryPoint,
			Params:         params,
			Limits:         limits,
			Policy:         pol,
			TimeoutSeconds: int(timeout / time.Second),
		}
		go func() {
			resp, err := e.launcher.Launch(ctx, wreq)
			if err != nil {
				handle.done <- outcome{err: err}
				return
			}
			handle.done <- workerOutcome(resp)
		}()
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
}

// drainAfterStop gives a stopped backend a short grace period to report its
// partial output. A killed worker or a plugin ignoring its context may
// never report; the zero outcome is returned then.
func (e *Engine) drainAfterStop(handle *Handle) outcome {
	handle.stopBackend()
	select {
	case out := <-handle.done:
		return out
	case <-time.After(killGrace):
		return outcome{}
	}
}

func invocationOutcome(inv *sandbox.Invocation, err error) outcome {
	out := outcome{err: err}
	if inv != nil {
		out.result = inv.Result
		out.output = inv.Output
	}
	return out
}

// workerOutcome maps a worker response back onto in-process error types.
func workerOutcome(resp *sandbox.WorkerResponse) outcome {
	out := outcome{result: resp.Result, output: resp.Output, stack: resp.Stack}
	if resp.Error == "" {
		return out
	}
	switch resp.Kind {
	case sandbox.KindPermission:
		out.err = fmt.Errorf("%w: %s", pluginsdk.ErrPermission, resp.Error)
	case sandbox.KindImport:
		out.err = fmt.Errorf("%w: %s", pluginsdk.ErrImportBlocked, resp.Error)
	default:
		out.err = errors.New(resp.Error)
	}
	return out
}

// setMetadata lazily allocates the result metadata map.
func setMetadata(result *ExecutionResult, key string, value any) {
	if result.Metadata == nil {
		result.Metadata = make(map[string]any)
	}
	result.Metadata[key] = value
}

// stackOf extracts the panic traceback from an outcome, whichever side of
// the process boundary it was captured on.
func stackOf(out outcome) string {
	if out.stack != "" {
		return out.stack
	}
	var panicErr *sandbox.PanicError
	if errors.As(out.err, &panicErr) {
		return panicErr.Stack
	}
	return ""
}

// auditViolations persists scanner detections as violation records.
func (e *Engine) auditViolations(req ExecutionRequest, vtype string, detections []monitor.Detection) {
	if e.audit == nil {
		return
	}
	for _, d := range detections {
		detail := d.Pattern
		if d.Parameter != "" {
			detail = fmt.Sprintf("%s (parameter %s)", d.Pattern, d.Parameter)
		}
		e.audit.LogViolation(&storage.ViolationRecord{
			RequestID:  req.RequestID,
			PluginName: req.PluginName,
			Type:       vtype,
			Detail:     detail,
		})
	}
}

// fail settles a request that never dispatched.
func (e *Engine) fail(result *ExecutionResult, req ExecutionRequest, op string, err error, kind string) *ExecutionResult {
	result.Status = StatusFailed
	result.Error = (&ExecutionError{RequestID: req.RequestID, Op: op, Err: err}).Error()
	result.Duration = time.Since(result.StartedAt)
	log.Warn().
		Str("request_id", req.RequestID).
		Str("plugin", req.PluginName).
		Err(err).
		Msg("execution rejected")
	return e.finalize(nil, result, kind, req)
}

// finalize records the settled result in history, counters, metrics and the
// audit log, then returns it.
func (e *Engine) finalize(handle *Handle, result *ExecutionResult, kind string, req ExecutionRequest) *ExecutionResult {
	e.mu.Lock()
	e.history = append(e.history, result)
	if len(e.history) > e.historySize {
		e.history = e.history[len(e.history)-e.historySize:]
	}
	e.mu.Unlock()

	durMS := result.Duration.Milliseconds()
	e.statsMu.Lock()
	e.stats.TotalExecutions++
	switch result.Status {
	case StatusCompleted:
		e.stats.Succeeded++
	case StatusTimeout:
		e.stats.Timeouts++
	case StatusCancelled:
		e.stats.Cancelled++
	default:
		e.stats.Failed++
	}
	e.totalDurationMS += durMS
	e.statsMu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordExecution(result.PluginName, string(result.Mode), string(result.Status), result.Duration.Seconds())
		if result.Status != StatusCompleted && kind != "" {
			e.metrics.RecordError(kind)
		}
		e.metrics.OutputSizeBytes.Observe(float64(len(result.Output)))
	}

	// Policy denials are violations worth auditing on their own, not just
	// failed executions.
	var violationType string
	switch kind {
	case "permission":
		violationType = "permission_denied"
	case "import_blocked":
		violationType = "blocked_import"
	}
	if violationType != "" {
		if e.metrics != nil {
			e.metrics.RecordViolation(violationType)
		}
		if e.audit != nil {
			e.audit.LogViolation(&storage.ViolationRecord{
				RequestID:  result.RequestID,
				PluginName: result.PluginName,
				Type:       violationType,
				Detail:     result.Error,
			})
		}
	}

	if e.audit != nil {
		completed := time.Now()
		e.audit.Log(&storage.Execution{
			RequestID:   result.RequestID,
			PluginName:  result.PluginName,
			Mode:        string(result.Mode),
			Status:      string(result.Status),
			Error:       result.Error,
			Output:      result.Output,
			DurationMS:  durMS,
			UserID:      req.UserID,
			SessionID:   req.SessionID,
			CreatedAt:   result.StartedAt,
			CompletedAt: &completed,
		})
	}

	return result
}

// approxParamsSize measures the wire size of a parameter map.
func approxParamsSize(params map[string]any) int {
	b, err := json.Marshal(params)
	if err != nil {
		return 0
	}
	return len(b)
}

// errType maps an await error onto a metrics label.
func errType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, pluginsdk.ErrPermission):
		return "permission"
	case errors.Is(err, pluginsdk.ErrImportBlocked):
		return "import_blocked"
	default:
		var panicErr *sandbox.PanicError
		if errors.As(err, &panicErr) {
			return "panic"
		}
		return "plugin"
	}
}

func (e *Engine) register(h *Handle) {
	e.mu.Lock()
	if e.active == nil {
		e.active = make(map[string]*Handle)
	}
	e.active[h.RequestID] = h
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.ActiveExecutions.Inc()
	}
}

func (e *Engine) unregister(h *Handle) {
	e.mu.Lock()
	delete(e.active, h.RequestID)
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.ActiveExecutions.Dec()
	}
}

// Cancel stops the named execution. It reports true only when the request
// was in flight and this call was the one that cancelled it; settled or
// unknown request IDs report false.
func (e *Engine) Cancel(requestID string) bool {
	e.mu.Lock()
	h, ok := e.active[requestID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	return h.Cancel()
}

// ActiveExecution describes one in-flight invocation.
type ActiveExecution struct {
	RequestID  string        `json:"request_id"`
	PluginName string        `json:"plugin_name"`
	Mode       ExecutionMode `json:"mode"`
	StartedAt  time.Time     `json:"started_at"`
}

// ActiveExecutions snapshots the in-flight table, oldest first.
func (e *Engine) ActiveExecutions() []ActiveExecution {
	e.mu.Lock()
	out := make([]ActiveExecution, 0, len(e.active))
	for _, h := range e.active {
		out = append(out, ActiveExecution{
			RequestID:  h.RequestID,
			PluginName: h.PluginName,
			Mode:       h.Mode,
			StartedAt:  h.CreatedAt,
		})
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// History returns up to limit settled results, most recent first. A
// non-positive limit returns the full ring.
func (e *Engine) History(limit int) []*ExecutionResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*ExecutionResult, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, e.history[i])
	}
	return out
}

// Get returns the result for a request ID: a synthetic running result for
// an in-flight execution, the settled result from history otherwise.
func (e *Engine) Get(requestID string) (*ExecutionResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if h, ok := e.active[requestID]; ok {
		return &ExecutionResult{
			RequestID:  h.RequestID,
			PluginName: h.PluginName,
			Mode:       h.Mode,
			Status:     StatusRunning,
			StartedAt:  h.CreatedAt,
		}, true
	}
	for i := len(e.history) - 1; i >= 0; i-- {
		if e.history[i].RequestID == requestID {
			return e.history[i], true
		}
	}
	return nil, false
}

// Stats snapshots the lifetime counters.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	s := e.stats
	s.TotalDurationMS = e.totalDurationMS
	e.statsMu.Unlock()

	e.mu.Lock()
	s.ActiveCount = len(e.active)
	e.mu.Unlock()

	if s.TotalExecutions > 0 {
		s.AverageDurationMS = float64(s.TotalDurationMS) / float64(s.TotalExecutions)
	}
	return s
}

// Close shuts down the dispatch backends, waiting for in-flight thread
// work to finish.
func (e *Engine) Close() {
	e.pool.Close()
}
