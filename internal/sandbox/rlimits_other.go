//go:build !linux

package sandbox

import (
	"github.com/rs/zerolog/log"

	"plugin-exec-engine/internal/policy"
)

// applyOSLimits is a no-op on platforms without rlimit support. Limits stay
// advisory: execution proceeds, bounded only by the wall-clock timeout and
// the capability table.
func applyOSLimits(limits policy.ResourceLimits) {
	log.Warn().
		Int("max_memory_mb", limits.MaxMemoryMB).
		Int("max_cpu_time_seconds", limits.MaxCPUTimeSeconds).
		Msg("OS resource limits unsupported on this platform, continuing without them")
}
