package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func validManifest(name string) Manifest {
	return Manifest{
		Name:       name,
		Version:    "1.0.0",
		EntryPoint: name + "_handler",
	}
}

func TestRegisterAndGet(t *testing.T) {
	s := NewMemoryStore()

	if _, err := s.Register(validManifest("echo"), "/plugins/echo"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	meta, err := s.Get("echo")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if meta.Status != StatusRegistered {
		t.Errorf("Status = %s, want registered", meta.Status)
	}
	if meta.Manifest.EntryPoint != "echo_handler" {
		t.Errorf("EntryPoint = %s", meta.Manifest.EntryPoint)
	}

	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestRegister_InvalidManifest(t *testing.T) {
	s := NewMemoryStore()

	if _, err := s.Register(Manifest{Name: "x"}, ""); err == nil {
		t.Error("manifest without entry_point must be rejected")
	}
	if _, err := s.Register(Manifest{EntryPoint: "h", Version: "1"}, ""); err == nil {
		t.Error("manifest without name must be rejected")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Register(validManifest("echo"), ""); err != nil {
		t.Fatal(err)
	}

	meta, _ := s.Get("echo")
	meta.Status = StatusDisabled

	fresh, _ := s.Get("echo")
	if fresh.Status != StatusRegistered {
		t.Error("mutating a Get result must not affect registry state")
	}
}

func TestStatusExecutable(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusRegistered, true},
		{StatusLoaded, true},
		{StatusActive, true},
		{StatusDisabled, false},
		{StatusError, false},
	}
	for _, tt := range tests {
		if got := tt.status.Executable(); got != tt.want {
			t.Errorf("%s.Executable() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestSetStatus(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Register(validManifest("echo"), ""); err != nil {
		t.Fatal(err)
	}

	if err := s.SetStatus("echo", StatusActive); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	meta, _ := s.Get("echo")
	if meta.Status != StatusActive {
		t.Errorf("Status = %s, want active", meta.Status)
	}

	if err := s.SetStatus("missing", StatusActive); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus(missing) = %v, want ErrNotFound", err)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	pluginDir := filepath.Join(dir, "echo")
	if err := os.MkdirAll(pluginDir, 0o755); err != nil {
		t.Fatal(err)
	}

	manifest := `
name: echo
version: 1.0.0
entry_point: echo_handler
parameters:
  text:
    type: string
    required: true
`
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.yaml"), []byte(manifest), 0o600); err != nil {
		t.Fatal(err)
	}

	// A broken manifest alongside a valid one is skipped, not fatal.
	brokenDir := filepath.Join(dir, "broken")
	if err := os.MkdirAll(brokenDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(brokenDir, "plugin.yaml"), []byte("name: only-a-name"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := NewMemoryStore()
	n, err := s.Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if n != 1 {
		t.Errorf("Discover registered %d plugins, want 1", n)
	}

	meta, err := s.Get("echo")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	rule, ok := meta.Manifest.Parameters["text"]
	if !ok || rule.Type != "string" || !rule.Required {
		t.Errorf("parameter schema not parsed: %+v", meta.Manifest.Parameters)
	}
	if meta.Path != pluginDir {
		t.Errorf("Path = %q, want %q", meta.Path, pluginDir)
	}
}

func TestList_Sorted(t *testing.T) {
	s := NewMemoryStore()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := s.Register(validManifest(name), ""); err != nil {
			t.Fatal(err)
		}
	}

	list := s.List()
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	if list[0].Manifest.Name != "alpha" || list[2].Manifest.Name != "zeta" {
		t.Errorf("list not sorted: %s, %s, %s",
			list[0].Manifest.Name, list[1].Manifest.Name, list[2].Manifest.Name)
	}
}
