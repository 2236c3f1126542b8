package policy

import "testing"

func TestDefaultLimits(t *testing.T) {
	l := DefaultLimits()
	if l.MaxMemoryMB != 256 {
		t.Errorf("MaxMemoryMB = %d, want 256", l.MaxMemoryMB)
	}
	if l.MaxWallTimeSeconds != 30 {
		t.Errorf("MaxWallTimeSeconds = %d, want 30", l.MaxWallTimeSeconds)
	}
	if l.MaxOutputSizeKB != 1024 {
		t.Errorf("MaxOutputSizeKB = %d, want 1024", l.MaxOutputSizeKB)
	}
	if err := l.Validate(); err != nil {
		t.Errorf("DefaultLimits().Validate() = %v, want nil", err)
	}
}

func TestValidate_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ResourceLimits)
	}{
		{"memory under", func(l *ResourceLimits) { l.MaxMemoryMB = 8 }},
		{"memory over", func(l *ResourceLimits) { l.MaxMemoryMB = 32768 }},
		{"cpu zero", func(l *ResourceLimits) { l.MaxCPUTimeSeconds = 0 }},
		{"wall over", func(l *ResourceLimits) { l.MaxWallTimeSeconds = 601 }},
		{"fds under", func(l *ResourceLimits) { l.MaxFileDescriptors = 4 }},
		{"procs zero", func(l *ResourceLimits) { l.MaxProcesses = 0 }},
		{"threads over", func(l *ResourceLimits) { l.MaxThreads = 2001 }},
		{"output zero", func(l *ResourceLimits) { l.MaxOutputSizeKB = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := DefaultLimits()
			tt.modify(&l)
			if err := l.Validate(); err == nil {
				t.Error("expected validation error for out-of-bounds value")
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := DefaultLimits()

	if got := base.Merge(nil); got != base {
		t.Errorf("Merge(nil) = %+v, want unchanged", got)
	}

	merged := base.Merge(&ResourceLimits{MaxMemoryMB: 512, MaxOutputSizeKB: 1})
	if merged.MaxMemoryMB != 512 {
		t.Errorf("MaxMemoryMB = %d, want 512", merged.MaxMemoryMB)
	}
	if merged.MaxOutputSizeKB != 1 {
		t.Errorf("MaxOutputSizeKB = %d, want 1", merged.MaxOutputSizeKB)
	}
	// Untouched fields keep their defaults.
	if merged.MaxCPUTimeSeconds != base.MaxCPUTimeSeconds {
		t.Errorf("MaxCPUTimeSeconds = %d, want %d", merged.MaxCPUTimeSeconds, base.MaxCPUTimeSeconds)
	}
}
