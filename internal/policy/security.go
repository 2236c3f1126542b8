package policy

import (
	"fmt"
	"strings"

	"plugin-exec-engine/pkg/caps"
)

// SecurityPolicy describes the capability surface exposed to one plugin
// invocation. Everything is denied unless listed here.
type SecurityPolicy struct {
	AllowNetwork    bool     `json:"allow_network" yaml:"allow_network"`
	AllowFileSystem bool     `json:"allow_file_system" yaml:"allow_file_system"`
	AllowSubprocess bool     `json:"allow_subprocess" yaml:"allow_subprocess"`
	AllowImports    []string `json:"allow_imports,omitempty" yaml:"allow_imports"`
	BlockedImports  []string `json:"blocked_imports,omitempty" yaml:"blocked_imports"`
	AllowedBuiltins []string `json:"allowed_builtins,omitempty" yaml:"allowed_builtins"`
}

// DefaultPolicy denies network, filesystem and subprocess access, blocks the
// module prefixes plugins most commonly abuse, and exposes only the pure
// computation builtins.
func DefaultPolicy() SecurityPolicy {
	return SecurityPolicy{
		AllowNetwork:    false,
		AllowFileSystem: false,
		AllowSubprocess: false,
		BlockedImports: []string{
			"os", "os/exec", "net", "syscall", "unsafe",
			"runtime/debug", "plugin",
		},
		AllowedBuiltins: caps.DefaultProfile(),
	}
}

// CheckImport decides whether plugin code may resolve the named module.
// Blocked prefixes always win over the allow-list; with no allow-list
// configured, anything not blocked is permitted.
func (p SecurityPolicy) CheckImport(module string) error {
	for _, blocked := range p.BlockedImports {
		if matchesPrefix(module, blocked) {
			return fmt.Errorf("import %q denied: matches blocked prefix %q", module, blocked)
		}
	}
	if len(p.AllowImports) == 0 {
		return nil
	}
	for _, allowed := range p.AllowImports {
		if matchesPrefix(module, allowed) {
			return nil
		}
	}
	return fmt.Errorf("import %q denied: not in allow list", module)
}

// BuiltinAllowed reports whether the named primitive operation is exposed.
func (p SecurityPolicy) BuiltinAllowed(op string) bool {
	for _, b := range p.AllowedBuiltins {
		if b == op {
			return true
		}
	}
	return false
}

// Merge overlays override onto p. Boolean grants are OR-ed in only when the
// override carries them; list fields replace wholesale when non-empty, except
// BlockedImports which is unioned so an override can never unblock a module.
func (p SecurityPolicy) Merge(override *SecurityPolicy) SecurityPolicy {
	if override == nil {
		return p
	}
	out := p
	out.AllowNetwork = p.AllowNetwork || override.AllowNetwork
	out.AllowFileSystem = p.AllowFileSystem || override.AllowFileSystem
	out.AllowSubprocess = p.AllowSubprocess || override.AllowSubprocess
	if len(override.AllowImports) > 0 {
		out.AllowImports = append([]string(nil), override.AllowImports...)
	}
	if len(override.BlockedImports) > 0 {
		merged := append([]string(nil), p.BlockedImports...)
		for _, b := range override.BlockedImports {
			if !contains(merged, b) {
				merged = append(merged, b)
			}
		}
		out.BlockedImports = merged
	}
	if len(override.AllowedBuiltins) > 0 {
		out.AllowedBuiltins = append([]string(nil), override.AllowedBuiltins...)
	}
	return out
}

// matchesPrefix reports whether module equals prefix or sits underneath it
// ("os/exec" matches prefix "os", "osquery" does not).
func matchesPrefix(module, prefix string) bool {
	if module == prefix {
		return true
	}
	return strings.HasPrefix(module, prefix+"/") || strings.HasPrefix(module, prefix+".")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
