package pluginsdk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"plugin-exec-engine/pkg/caps"
)

func TestOpenFile_DeniedWithoutGrant(t *testing.T) {
	c := NewCapabilities(CapabilityConfig{AllowedOps: caps.DefaultProfile()})

	_, err := c.OpenFile("/etc/hosts")
	if !errors.Is(err, ErrPermission) {
		t.Errorf("OpenFile error = %v, want ErrPermission", err)
	}
}

func TestOpenFile_RequiresBothFlagAndOp(t *testing.T) {
	// Policy flag set but op not in the allow-list: still denied.
	c := NewCapabilities(CapabilityConfig{
		AllowedOps: caps.DefaultProfile(),
		FileSystem: true,
	})
	if _, err := c.OpenFile("/etc/hosts"); !errors.Is(err, ErrPermission) {
		t.Errorf("OpenFile error = %v, want ErrPermission", err)
	}
}

func TestDial_Denied(t *testing.T) {
	c := NewCapabilities(CapabilityConfig{AllowedOps: caps.DefaultProfile()})
	if _, err := c.Dial("tcp", "127.0.0.1:80"); !errors.Is(err, ErrPermission) {
		t.Errorf("Dial error = %v, want ErrPermission", err)
	}
}

func TestCommand_Denied(t *testing.T) {
	c := NewCapabilities(CapabilityConfig{AllowedOps: caps.DefaultProfile()})
	if _, err := c.Command("ls"); !errors.Is(err, ErrPermission) {
		t.Errorf("Command error = %v, want ErrPermission", err)
	}
}

func TestPrint_CapturesAndTruncates(t *testing.T) {
	c := NewCapabilities(CapabilityConfig{
		AllowedOps:    caps.DefaultProfile(),
		MaxPrintBytes: 32,
	})

	if err := c.Print("hello", "world"); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if got := c.Output(); got != "hello world\n" {
		t.Errorf("Output = %q, want %q", got, "hello world\n")
	}

	for range 10 {
		_ = c.Print(strings.Repeat("x", 16))
	}
	out := c.Output()
	if !strings.Contains(out, "[output truncated]") {
		t.Error("expected truncation marker in output")
	}
	if len(out) > 32+len("\n... [output truncated]") {
		t.Errorf("output length %d exceeds budget", len(out))
	}
}

func TestPrint_DeniedWithoutOp(t *testing.T) {
	c := NewCapabilities(CapabilityConfig{AllowedOps: []string{caps.OpLen}})
	if err := c.Print("x"); !errors.Is(err, ErrPermission) {
		t.Errorf("Print error = %v, want ErrPermission", err)
	}
}

func TestImport_WrapsPolicyDenial(t *testing.T) {
	c := NewCapabilities(CapabilityConfig{
		CheckImport: func(module string) error {
			if module == "syscall" {
				return fmt.Errorf("blocked")
			}
			return nil
		},
	})

	if err := c.Import("strings"); err != nil {
		t.Errorf("Import(strings) = %v, want nil", err)
	}
	if err := c.Import("syscall"); !errors.Is(err, ErrImportBlocked) {
		t.Errorf("Import(syscall) = %v, want ErrImportBlocked", err)
	}
}

func TestResolver(t *testing.T) {
	r := NewResolver()

	if err := r.Register("echo_handler", func(ctx context.Context, c *Capabilities, p map[string]any) (any, error) {
		return p, nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("echo_handler", func(ctx context.Context, c *Capabilities, p map[string]any) (any, error) {
		return nil, nil
	}); err == nil {
		t.Error("duplicate registration must fail")
	}
	if _, err := r.Resolve("echo_handler"); err != nil {
		t.Errorf("Resolve: %v", err)
	}
	if _, err := r.Resolve("missing"); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("Resolve(missing) = %v, want ErrUnknownSymbol", err)
	}
	if got := r.Symbols(); len(got) != 1 || got[0] != "echo_handler" {
		t.Errorf("Symbols = %v", got)
	}
}
