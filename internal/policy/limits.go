package policy

import "fmt"

// ResourceLimits caps the resources one plugin invocation may consume.
// Limits are advisory: each kind is applied through whatever platform
// primitive is available, and a missing primitive downgrades to a logged
// warning rather than a failed execution.
type ResourceLimits struct {
	MaxMemoryMB        int `json:"max_memory_mb" yaml:"max_memory_mb"`
	MaxCPUTimeSeconds  int `json:"max_cpu_time_seconds" yaml:"max_cpu_time_seconds"`
	MaxWallTimeSeconds int `json:"max_wall_time_seconds" yaml:"max_wall_time_seconds"`
	MaxFileDescriptors int `json:"max_file_descriptors" yaml:"max_file_descriptors"`
	MaxProcesses       int `json:"max_processes" yaml:"max_processes"`
	MaxThreads         int `json:"max_threads" yaml:"max_threads"`
	MaxOutputSizeKB    int `json:"max_output_size_kb" yaml:"max_output_size_kb"`
}

func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxMemoryMB:        256,
		MaxCPUTimeSeconds:  10,
		MaxWallTimeSeconds: 30,
		MaxFileDescriptors: 64,
		MaxProcesses:       8,
		MaxThreads:         16,
		MaxOutputSizeKB:    1024,
	}
}

func (rl ResourceLimits) Validate() error {
	if rl.MaxMemoryMB < 16 || rl.MaxMemoryMB > 16384 {
		return fmt.Errorf("max_memory_mb must be 16-16384, got %d", rl.MaxMemoryMB)
	}
	if rl.MaxCPUTimeSeconds < 1 || rl.MaxCPUTimeSeconds > 300 {
		return fmt.Errorf("max_cpu_time_seconds must be 1-300, got %d", rl.MaxCPUTimeSeconds)
	}
	if rl.MaxWallTimeSeconds < 1 || rl.MaxWallTimeSeconds > 600 {
		return fmt.Errorf("max_wall_time_seconds must be 1-600, got %d", rl.MaxWallTimeSeconds)
	}
	if rl.MaxFileDescriptors < 8 || rl.MaxFileDescriptors > 4096 {
		return fmt.Errorf("max_file_descriptors must be 8-4096, got %d", rl.MaxFileDescriptors)
	}
	if rl.MaxProcesses < 1 || rl.MaxProcesses > 500 {
		return fmt.Errorf("max_processes must be 1-500, got %d", rl.MaxProcesses)
	}
	if rl.MaxThreads < 1 || rl.MaxThreads > 2000 {
		return fmt.Errorf("max_threads must be 1-2000, got %d", rl.MaxThreads)
	}
	if rl.MaxOutputSizeKB < 1 || rl.MaxOutputSizeKB > 102400 {
		return fmt.Errorf("max_output_size_kb must be 1-102400, got %d", rl.MaxOutputSizeKB)
	}
	return nil
}

// Merge overlays the non-zero fields of override onto rl and returns the
// combined limits. A nil override returns rl unchanged.
func (rl ResourceLimits) Merge(override *ResourceLimits) ResourceLimits {
	if override == nil {
		return rl
	}
	out := rl
	if override.MaxMemoryMB > 0 {
		out.MaxMemoryMB = override.MaxMemoryMB
	}
	if override.MaxCPUTimeSeconds > 0 {
		out.MaxCPUTimeSeconds = override.MaxCPUTimeSeconds
	}
	if override.MaxWallTimeSeconds > 0 {
		out.MaxWallTimeSeconds = override.MaxWallTimeSeconds
	}
	if override.MaxFileDescriptors > 0 {
		out.MaxFileDescriptors = override.MaxFileDescriptors
	}
	if override.MaxProcesses > 0 {
		out.MaxProcesses = override.MaxProcesses
	}
	if override.MaxThreads > 0 {
		out.MaxThreads = override.MaxThreads
	}
	if override.MaxOutputSizeKB > 0 {
		out.MaxOutputSizeKB = override.MaxOutputSizeKB
	}
	return out
}
