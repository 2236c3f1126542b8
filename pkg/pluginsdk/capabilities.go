package pluginsdk

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync"

	"plugin-exec-engine/pkg/caps"
)

// CapabilityConfig is filled in by the sandbox from the effective security
// policy before each invocation.
type CapabilityConfig struct {
	AllowedOps     []string
	FileSystem     bool
	Network        bool
	Subprocess     bool
	MaxPrintBytes  int
	// CheckImport decides module resolution; nil permits everything.
	CheckImport func(module string) error
}

// Capabilities is the explicit allow-list of operations one plugin invocation
// may perform. A fresh table is allocated per invocation and never shared, so
// concurrent executions cannot observe each other's restrictions or output.
type Capabilities struct {
	cfg     CapabilityConfig
	allowed map[string]struct{}

	mu        sync.Mutex
	out       bytes.Buffer
	truncated bool
}

func NewCapabilities(cfg CapabilityConfig) *Capabilities {
	if cfg.MaxPrintBytes <= 0 {
		cfg.MaxPrintBytes = 256 * 1024
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedOps))
	for _, op := range cfg.AllowedOps {
		allowed[op] = struct{}{}
	}
	return &Capabilities{cfg: cfg, allowed: allowed}
}

// Allows reports whether the named primitive operation is exposed.
func (c *Capabilities) Allows(op string) bool {
	_, ok := c.allowed[op]
	return ok
}

// Print appends to the invocation's captured output, space-separated with a
// trailing newline. Output beyond the print budget is dropped with a marker.
func (c *Capabilities) Print(args ...any) error {
	if !c.Allows(caps.OpPrint) {
		return fmt.Errorf("%w: print", ErrPermission)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.truncated {
		return nil
	}
	line := fmt.Sprintln(args...)
	if c.out.Len()+len(line) > c.cfg.MaxPrintBytes {
		remain := c.cfg.MaxPrintBytes - c.out.Len()
		if remain > 0 {
			c.out.WriteString(line[:remain])
		}
		c.out.WriteString("\n... [output truncated]")
		c.truncated = true
		return nil
	}
	c.out.WriteString(line)
	return nil
}

// Printf is Print with formatting.
func (c *Capabilities) Printf(format string, args ...any) error {
	return c.Print(fmt.Sprintf(format, args...))
}

// Output returns everything the invocation printed.
func (c *Capabilities) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

// OpenFile is the guarded open capability. When filesystem access is
// disallowed it fails with a permission error without touching the
// filesystem at all.
func (c *Capabilities) OpenFile(path string) (*os.File, error) {
	if !c.cfg.FileSystem || !c.Allows(caps.OpOpenFile) {
		return nil, fmt.Errorf("%w: open %q (filesystem access disabled)", ErrPermission, path)
	}
	return os.Open(path) // #nosec G304 -- reachable only under an explicit filesystem grant
}

// Dial is the guarded outbound-connection capability.
func (c *Capabilities) Dial(network, address string) (net.Conn, error) {
	if !c.cfg.Network || !c.Allows(caps.OpDial) {
		return nil, fmt.Errorf("%w: dial %s %s (network access disabled)", ErrPermission, network, address)
	}
	return net.Dial(network, address)
}

// Command is the guarded subprocess capability.
func (c *Capabilities) Command(name string, args ...string) (*exec.Cmd, error) {
	if !c.cfg.Subprocess || !c.Allows(caps.OpSpawn) {
		return nil, fmt.Errorf("%w: spawn %q (subprocess access disabled)", ErrPermission, name)
	}
	return exec.Command(name, args...), nil // #nosec G204 -- reachable only under an explicit subprocess grant
}

// Import gates module resolution through the security policy.
func (c *Capabilities) Import(module string) error {
	if c.cfg.CheckImport == nil {
		return nil
	}
	if err := c.cfg.CheckImport(module); err != nil {
		return fmt.Errorf("%w: %v", ErrImportBlocked, err)
	}
	return nil
}
