package policy

import (
	"testing"

	"plugin-exec-engine/pkg/caps"
)

func TestCheckImport_BlockedWinsOverAllowed(t *testing.T) {
	p := SecurityPolicy{
		AllowImports:   []string{"os"},
		BlockedImports: []string{"os/exec"},
	}

	if err := p.CheckImport("os/exec"); err == nil {
		t.Error("blocked prefix must take precedence over allow list")
	}
	if err := p.CheckImport("os/exec/internal"); err == nil {
		t.Error("blocked prefix must cover submodules")
	}
	if err := p.CheckImport("os"); err != nil {
		t.Errorf("CheckImport(os) = %v, want nil", err)
	}
}

func TestCheckImport_AllowListRequired(t *testing.T) {
	p := SecurityPolicy{AllowImports: []string{"encoding", "math"}}

	if err := p.CheckImport("math/rand"); err != nil {
		t.Errorf("CheckImport(math/rand) = %v, want nil", err)
	}
	if err := p.CheckImport("net/http"); err == nil {
		t.Error("module outside allow list must be denied")
	}
	// Prefix match is on path segments, not raw string prefixes.
	if err := p.CheckImport("mathutil"); err == nil {
		t.Error("mathutil must not match prefix math")
	}
}

func TestCheckImport_NoAllowListAllowsUnblocked(t *testing.T) {
	p := SecurityPolicy{BlockedImports: []string{"syscall"}}

	if err := p.CheckImport("strings"); err != nil {
		t.Errorf("CheckImport(strings) = %v, want nil", err)
	}
	if err := p.CheckImport("syscall"); err == nil {
		t.Error("blocked module must be denied even with empty allow list")
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.AllowNetwork || p.AllowFileSystem || p.AllowSubprocess {
		t.Error("default policy must deny network, filesystem and subprocess")
	}
	if !p.BuiltinAllowed(caps.OpLen) {
		t.Error("default policy must expose len")
	}
	if p.BuiltinAllowed(caps.OpOpenFile) {
		t.Error("default policy must not expose open")
	}
}

func TestMerge_BlockedImportsUnion(t *testing.T) {
	base := DefaultPolicy()
	merged := base.Merge(&SecurityPolicy{
		AllowNetwork:   true,
		BlockedImports: []string{"crypto/tls"},
	})

	if !merged.AllowNetwork {
		t.Error("override grant not applied")
	}
	if err := merged.CheckImport("syscall"); err == nil {
		t.Error("override must not unblock base blocked imports")
	}
	if err := merged.CheckImport("crypto/tls"); err == nil {
		t.Error("override blocked import not applied")
	}
}
