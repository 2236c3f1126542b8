// Package caps defines the named primitive operations a sandboxed plugin may
// use, and a builder for composing allow-lists out of operation groups. It is
// the in-process analogue of a syscall allow-list: the sandbox consults the
// resulting set before exposing an operation to plugin code.
package caps

import "sort"

// Primitive operation names understood by the sandbox capability table.
const (
	OpLen     = "len"
	OpString  = "str"
	OpInt     = "int"
	OpFloat   = "float"
	OpBool    = "bool"
	OpList    = "list"
	OpMap     = "map"
	OpCompare = "cmp"
	OpMin     = "min"
	OpMax     = "max"
	OpAbs     = "abs"
	OpSum     = "sum"
	OpSorted  = "sorted"
	OpRange   = "range"
	OpType    = "type"
	OpPrint   = "print"

	OpOpenFile  = "open"
	OpDial      = "dial"
	OpSpawn     = "spawn"
	OpEnvRead   = "env"
	OpRandom    = "random"
	OpTimeNow   = "time"
)

// SetBuilder accumulates operation names into an allow-list.
type SetBuilder struct {
	ops map[string]struct{}
}

func NewBuilder() *SetBuilder {
	return &SetBuilder{ops: make(map[string]struct{})}
}

// Allow adds the named operations to the set.
func (b *SetBuilder) Allow(names ...string) *SetBuilder {
	for _, n := range names {
		b.ops[n] = struct{}{}
	}
	return b
}

// Deny removes the named operations from the set.
func (b *SetBuilder) Deny(names ...string) *SetBuilder {
	for _, n := range names {
		delete(b.ops, n)
	}
	return b
}

// Build returns the accumulated set as a sorted slice.
func (b *SetBuilder) Build() []string {
	out := make([]string, 0, len(b.ops))
	for n := range b.ops {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
