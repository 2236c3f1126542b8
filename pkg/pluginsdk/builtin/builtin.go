// Package builtin ships a handful of small reference plugins. They double as
// fixtures for the engine's own tests and as a smoke surface for the demo
// server.
package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plugin-exec-engine/pkg/pluginsdk"
)

// RegisterAll binds every bundled entry point into the resolver.
func RegisterAll(r *pluginsdk.Resolver) error {
	entries := map[string]pluginsdk.EntryFunc{
		"echo_handler":       Echo,
		"word_count_handler": WordCount,
		"delay_handler":      Delay,
		"blob_handler":       Blob,
		"sum_handler":        Sum,
	}
	for symbol, fn := range entries {
		if err := r.Register(symbol, fn); err != nil {
			return err
		}
	}
	return nil
}

// Echo returns its sanitized parameters unchanged.
func Echo(ctx context.Context, caps *pluginsdk.Capabilities, params map[string]any) (any, error) {
	return params, nil
}

// WordCount counts whitespace-separated words in the "text" parameter.
func WordCount(ctx context.Context, caps *pluginsdk.Capabilities, params map[string]any) (any, error) {
	text, _ := params["text"].(string)
	words := strings.Fields(text)
	return map[string]any{
		"words": len(words),
		"chars": len(text),
	}, nil
}

// asFloat accepts the numeric representations parameters may arrive in:
// int64 from the validator, float64 after a JSON round trip to a worker
// process.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// Delay sleeps for the "seconds" parameter, honoring cancellation. Used to
// exercise timeout and cancel paths.
func Delay(ctx context.Context, caps *pluginsdk.Capabilities, params map[string]any) (any, error) {
	seconds, ok := asFloat(params["seconds"])
	if !ok || seconds < 0 {
		return nil, fmt.Errorf("delay: %q must be a non-negative number", "seconds")
	}

	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
		return map[string]any{"slept_seconds": seconds}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Blob returns a payload of "size_bytes" repeated characters. Used to
// exercise output-size enforcement.
func Blob(ctx context.Context, caps *pluginsdk.Capabilities, params map[string]any) (any, error) {
	size, ok := asFloat(params["size_bytes"])
	if !ok || size < 0 {
		return nil, fmt.Errorf("blob: %q must be a non-negative integer", "size_bytes")
	}
	return strings.Repeat("x", int(size)), nil
}

// Sum adds the numbers in the "values" array parameter.
func Sum(ctx context.Context, caps *pluginsdk.Capabilities, params map[string]any) (any, error) {
	values, ok := params["values"].([]any)
	if !ok {
		return nil, fmt.Errorf("sum: %q must be an array of numbers", "values")
	}
	var total float64
	for i, v := range values {
		n, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("sum: values[%d] is not a number", i)
		}
		total += n
	}
	return map[string]any{"total": total}, nil
}
