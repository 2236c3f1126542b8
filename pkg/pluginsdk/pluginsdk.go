// Package pluginsdk is the surface plugins are written against: the entry
// point signature, the capability table handed to each invocation, and the
// resolver that maps manifest entry-point symbols to compiled-in functions.
//
// Go has no safe dynamic symbol loading, so entry points are ordinary
// functions registered under the symbol name their manifest declares. Worker
// processes re-exec the host binary and therefore share the same table.
package pluginsdk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// EntryFunc is the contract every plugin entry point satisfies. It receives
// the sanitized parameter map and a per-invocation capability table, and
// returns an opaque success payload or an error. Long-running entry points
// are expected to honor ctx cancellation.
type EntryFunc func(ctx context.Context, caps *Capabilities, params map[string]any) (any, error)

// Sentinel errors raised from inside the capability table.
var (
	ErrPermission    = errors.New("permission denied by security policy")
	ErrImportBlocked = errors.New("import restricted by security policy")
	ErrUnknownSymbol = errors.New("unknown entry point symbol")
)

// Resolver maps entry-point symbol names to their functions.
type Resolver struct {
	mu      sync.RWMutex
	entries map[string]EntryFunc
}

func NewResolver() *Resolver {
	return &Resolver{entries: make(map[string]EntryFunc)}
}

// Register binds fn to symbol. Rebinding an existing symbol is an error so a
// misconfigured plugin cannot silently shadow another.
func (r *Resolver) Register(symbol string, fn EntryFunc) error {
	if symbol == "" {
		return fmt.Errorf("entry point symbol must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("entry point %q: nil function", symbol)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[symbol]; exists {
		return fmt.Errorf("entry point %q already registered", symbol)
	}
	r.entries[symbol] = fn
	return nil
}

// Resolve returns the function bound to symbol.
func (r *Resolver) Resolve(symbol string) (EntryFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.entries[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSymbol, symbol)
	}
	return fn, nil
}

// Symbols returns all registered symbol names, sorted.
func (r *Resolver) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for s := range r.entries {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
