// Package sandbox establishes the isolated context one plugin invocation
// runs in: a per-invocation capability table derived from the security
// policy, best-effort OS resource limits, and panic containment.
//
// The capability table is the defense-in-depth layer; the primary
// enforcement boundary for untrusted plugins is the worker process the
// engine dispatches to, which applies real rlimits before the entry point
// runs.
package sandbox

import (
	"context"
	"fmt"
	"runtime/debug"

	"plugin-exec-engine/internal/policy"
	"plugin-exec-engine/pkg/pluginsdk"
)

// Sandbox runs entry points under a limits/policy pair. A Sandbox value is
// cheap and carries no mutable state; the mutable capability table is
// allocated fresh for every Run, so concurrent invocations never share
// restrictions or output buffers.
type Sandbox struct {
	limits   policy.ResourceLimits
	policy   policy.SecurityPolicy
	osLimits bool
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithOSLimits makes Run apply process-wide rlimits before invoking the
// entry point. Only safe inside a dedicated worker process.
func WithOSLimits() Option {
	return func(s *Sandbox) { s.osLimits = true }
}

func New(limits policy.ResourceLimits, pol policy.SecurityPolicy, opts ...Option) *Sandbox {
	s := &Sandbox{limits: limits, policy: pol}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invocation is the outcome of one sandboxed run.
type Invocation struct {
	Result any
	// Output is everything the plugin printed through its capability table.
	Output string
}

// PanicError wraps a panic raised by plugin code, with the stack captured
// for diagnostics.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("plugin panicked: %v", e.Value)
}

// Run invokes entry with the sanitized parameters inside this sandbox's
// restrictions. Panics in plugin code are contained and returned as
// *PanicError; the capability table is discarded on return so no state
// survives the invocation.
func (s *Sandbox) Run(ctx context.Context, entry pluginsdk.EntryFunc, params map[string]any) (inv *Invocation, err error) {
	if s.osLimits {
		applyOSLimits(s.limits)
	}

	caps := s.newCapabilities()

	defer func() {
		if rec := recover(); rec != nil {
			inv = &Invocation{Output: caps.Output()}
			err = &PanicError{Value: rec, Stack: string(debug.Stack())}
		}
	}()

	result, err := entry(ctx, caps, params)
	if err != nil {
		return &Invocation{Output: caps.Output()}, err
	}
	return &Invocation{Result: result, Output: caps.Output()}, nil
}

// newCapabilities builds the per-invocation capability table from the
// security policy. The print budget follows the output-size limit so a
// chatty plugin cannot outgrow what the output sanitizer would accept.
func (s *Sandbox) newCapabilities() *pluginsdk.Capabilities {
	pol := s.policy
	return pluginsdk.NewCapabilities(pluginsdk.CapabilityConfig{
		AllowedOps:    pol.AllowedBuiltins,
		FileSystem:    pol.AllowFileSystem,
		Network:       pol.AllowNetwork,
		Subprocess:    pol.AllowSubprocess,
		MaxPrintBytes: s.limits.MaxOutputSizeKB * 1024,
		CheckImport:   pol.CheckImport,
	})
}
