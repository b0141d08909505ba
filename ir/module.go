package ir

import (
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/gomlx/tensorir/dtypes"
)

// Module owns an ordered instruction list and the buffer declarations the
// instructions operate on, plus the per-module type registry. It is the unit
// of IR storage and the handle optimization passes rewrite.
//
// A Module is built by a single goroutine; after building, passes are
// expected to process it to completion one at a time.
type Module struct {
	name  string
	types *TypeRegistry

	instrs []Instruction
	vars   []*Variable

	// owned tracks the values declared in this module; instructions may only
	// reference owned values.
	owned map[Value]bool

	nameCounts map[string]int
}

// NewModule creates an empty Module.
func NewModule(name string) *Module {
	return &Module{
		name:       name,
		types:      NewTypeRegistry(),
		owned:      make(map[Value]bool),
		nameCounts: make(map[string]int),
	}
}

// Name returns the module's name.
func (m *Module) Name() string { return m.name }

// UniqueType interns the given element kind and dimensions and returns the
// canonical *Type: repeated calls with equal arguments return the same
// pointer.
func (m *Module) UniqueType(dtype dtypes.DType, dims ...int) *Type {
	return m.types.Get(dtype, dims...)
}

// Instructions returns the module's instruction list in program order. The
// returned slice is the module's own storage: optimization passes may replace
// or reorder entries in place, or install a rewritten list with
// SetInstructions.
func (m *Module) Instructions() []Instruction { return m.instrs }

// SetInstructions replaces the instruction list, e.g. after a pass deleted or
// inserted instructions.
func (m *Module) SetInstructions(instrs []Instruction) { m.instrs = instrs }

// Variables returns the module's buffer declarations in declaration order.
func (m *Module) Variables() []*Variable { return m.vars }

// owns reports whether v was declared in this module.
func (m *Module) owns(v Value) bool { return m.owned[v] }

// uniqueName disambiguates display names: the first use of a base name is
// kept as is, later uses get a numeric suffix.
func (m *Module) uniqueName(base string) string {
	if base == "" {
		base = "res"
	}
	count := m.nameCounts[base]
	m.nameCounts[base] = count + 1
	if count == 0 {
		return base
	}
	return base + strconv.Itoa(count)
}

func (m *Module) pushVar(v *Variable) {
	m.vars = append(m.vars, v)
	m.owned[v] = true
	klog.V(2).Infof("module %q: declare %s", m.name, v)
}

func (m *Module) pushInstr(instr Instruction) {
	m.instrs = append(m.instrs, instr)
	klog.V(2).Infof("module %q: emit %s", m.name, Describe(instr))
}

// String renders the module's declarations and program as text, for
// diagnostics and golden-text diffing in tests.
func (m *Module) String() string {
	var sb strings.Builder
	sb.WriteString("declare {\n")
	for _, v := range m.vars {
		sb.WriteString("  " + v.String() + "\n")
	}
	sb.WriteString("}\n\nprogram {\n")
	for _, instr := range m.instrs {
		sb.WriteString("  " + Describe(instr) + "\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}
