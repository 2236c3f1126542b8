//go:build linux

package sandbox

import (
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"plugin-exec-engine/internal/policy"
)

// applyOSLimits installs process-wide rlimits. Each limit kind is applied
// independently and best-effort: a kind the platform refuses is logged and
// skipped, never fatal.
func applyOSLimits(limits policy.ResourceLimits) {
	setRlimit("memory", unix.RLIMIT_AS, uint64(limits.MaxMemoryMB)*1024*1024)
	setRlimit("cpu_time", unix.RLIMIT_CPU, uint64(limits.MaxCPUTimeSeconds))
	setRlimit("file_descriptors", unix.RLIMIT_NOFILE, uint64(limits.MaxFileDescriptors))
	setRlimit("processes", unix.RLIMIT_NPROC, uint64(limits.MaxProcesses))
}

func setRlimit(kind string, resource int, value uint64) {
	rl := &unix.Rlimit{Cur: value, Max: value}
	if err := unix.Setrlimit(resource, rl); err != nil {
		log.Warn().
			Err(err).
			Str("limit", kind).
			Uint64("value", value).
			Msg("resource limit not applied, continuing without it")
		return
	}
	log.Debug().Str("limit", kind).Uint64("value", value).Msg("resource limit applied")
}
