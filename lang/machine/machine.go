// Package machine implements the stack-based virtual machine that
// interprets compiled bytecode chunks. A Machine owns its evaluation
// stack and heap exclusively; it executes one opcode per step and
// requests garbage collection only at opcode boundaries.
package machine

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/slices"

	"github.com/mna/glacier/glarerr"
	"github.com/mna/glacier/lang/bytecode"
	"github.com/mna/glacier/lang/operators"
	"github.com/mna/glacier/lang/value"
)

// DefaultMaxStack bounds the evaluation stack depth.
const DefaultMaxStack = 8192

// State is the execution state of a Machine.
type State int

const (
	// Idle means no execution is in progress and no error is pending.
	Idle State = iota
	// Running means the dispatch loop is advancing.
	Running
	// Faulted means an error halted execution; the pc stays on the
	// faulting opcode until the error is cleared.
	Faulted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return "faulted"
	}
}

// Option configures a Machine.
type Option func(*Machine)

// REPLMode retains the last popped value for display and keeps top-level
// locals on the stack across runs.
func REPLMode() Option { return func(m *Machine) { m.replMode = true } }

// Stdout redirects print opcodes, which write to os.Stdout by default.
func Stdout(w io.Writer) Option { return func(m *Machine) { m.stdout = w } }

// MaxStack caps the evaluation stack depth.
func MaxStack(n int) Option { return func(m *Machine) { m.maxStack = n } }

// GCThreshold overrides the heap's allocation-count collection threshold.
func GCThreshold(n int) Option { return func(m *Machine) { m.heap.SetGCThreshold(n) } }

// Machine executes bytecode chunks. The zero value is not usable; call
// New.
type Machine struct {
	heap   *value.Heap
	chunk  *bytecode.Chunk
	consts []value.Handle // persistent allocations mirroring chunk.Constants
	stack  []value.Handle
	pc     int
	opPC   int // offset of the opcode currently executing

	state   State
	err     *glarerr.Error
	last    value.Handle
	hasLast bool

	replMode bool
	maxStack int
	stdout   io.Writer
}

// New returns an idle Machine with an empty heap.
func New(opts ...Option) *Machine {
	m := &Machine{
		heap:     value.NewHeap(),
		maxStack: DefaultMaxStack,
		stdout:   os.Stdout,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Run executes chunk from offset zero and returns nil on normal
// termination or the error that faulted the machine. Outside REPL mode
// the stack is emptied before each run; in REPL mode it is trimmed to the
// chunk's local-slot region, so the session keeps its top-level locals
// while transient operands are discarded.
func (m *Machine) Run(chunk *bytecode.Chunk) error {
	m.chunk = chunk
	for len(m.consts) < len(chunk.Constants) {
		m.consts = append(m.consts, m.heap.AllocatePersistent(chunk.Constants[len(m.consts)]))
	}
	if !m.replMode {
		m.stack = m.stack[:0]
	} else if len(m.stack) > chunk.NumLocals {
		m.stack = m.stack[:chunk.NumLocals]
	}
	m.hasLast = false
	m.pc = 0
	m.err = nil
	m.state = Running

	for m.pc < len(chunk.Code) && m.err == nil {
		m.opPC = m.pc
		op := bytecode.Opcode(chunk.Code[m.pc])
		m.pc++
		m.step(op)
		if m.heap.ShouldCollect() {
			m.heap.Collect(m.roots())
		}
	}
	if m.err != nil {
		m.state = Faulted
		m.pc = m.opPC
		return m.err
	}
	m.state = Idle
	return nil
}

// State reports the machine's execution state.
func (m *Machine) State() State { return m.state }

// Err returns the error that faulted the machine, or nil.
func (m *Machine) Err() *glarerr.Error { return m.err }

// ClearError resets a Faulted machine to Idle so a REPL session can
// continue after reporting the error.
func (m *Machine) ClearError() {
	m.err = nil
	if m.state == Faulted {
		m.state = Idle
	}
}

// Heap exposes the machine's heap, for drivers that format values.
func (m *Machine) Heap() *value.Heap { return m.heap }

// LastPopped returns the value most recently discarded by POP_LAST during
// the last run. It reports false outside REPL mode or when nothing was
// popped.
func (m *Machine) LastPopped() (value.Value, bool) {
	if !m.hasLast {
		return nil, false
	}
	return m.heap.Deref(m.last), true
}

func (m *Machine) fault(kind glarerr.Kind, format string, args ...any) {
	m.err = glarerr.New(kind, m.chunk.Spans[m.opPC], format, args...)
}

func (m *Machine) operand() int {
	u := m.chunk.Code[m.pc]
	m.pc++
	return int(u)
}

func (m *Machine) push(h value.Handle) {
	if len(m.stack) >= m.maxStack {
		m.fault(glarerr.StackOverflow, "Stack overflow")
		return
	}
	m.stack = append(m.stack, h)
}

func (m *Machine) pop() (value.Handle, bool) {
	n := len(m.stack)
	if n == 0 {
		m.fault(glarerr.TypeError, "Stack underflow")
		return 0, false
	}
	h := m.stack[n-1]
	m.stack = m.stack[:n-1]
	return h, true
}

// roots collects every handle the collector must treat as live: the
// evaluation stack, the constant pool and the retained last popped value.
func (m *Machine) roots() []value.Handle {
	roots := make([]value.Handle, 0, len(m.stack)+len(m.consts)+1)
	roots = append(roots, m.stack...)
	roots = append(roots, m.consts...)
	if m.hasLast {
		roots = append(roots, m.last)
	}
	return roots
}

func (m *Machine) step(op bytecode.Opcode) {
	switch op {
	case bytecode.NOOP:

	case bytecode.POP_LAST:
		h, ok := m.pop()
		if ok && m.replMode {
			m.last, m.hasLast = h, true
		}

	case bytecode.REPLACE:
		idx := m.operand()
		h, ok := m.pop()
		if !ok {
			return
		}
		if idx >= m.maxStack {
			m.fault(glarerr.StackOverflow, "Stack overflow")
			return
		}
		if idx >= len(m.stack) {
			m.stack = slices.Grow(m.stack, idx+1-len(m.stack))
			for len(m.stack) <= idx {
				m.stack = append(m.stack, m.heap.Allocate(value.Null{}))
			}
		}
		m.stack[idx] = m.heap.ShallowCopy(h)

	case bytecode.SET_INDEX:
		m.setIndex()

	case bytecode.LOAD_CONST:
		idx := m.operand()
		if idx >= len(m.chunk.Constants) {
			m.fault(glarerr.TypeError, "Invalid constant index %d", idx)
			return
		}
		// a fresh cell per load, so in-place mutation cannot reach the pool
		m.push(m.heap.Allocate(m.chunk.Constants[idx]))

	case bytecode.LOAD_LOCAL:
		idx := m.operand()
		if idx >= len(m.stack) {
			m.fault(glarerr.TypeError, "Local slot %d is not initialized", idx)
			return
		}
		// aliasing: the slot's handle itself is pushed, no copy
		m.push(m.stack[idx])

	case bytecode.MAKE_ARRAY:
		n := m.operand()
		if n > len(m.stack) {
			m.fault(glarerr.TypeError, "Stack underflow")
			return
		}
		// the compiler emitted elements in reverse, so popping restores
		// insertion order
		elems := make([]value.Handle, 0, n)
		for j := 0; j < n; j++ {
			h, _ := m.pop()
			elems = append(elems, h)
		}
		m.push(m.heap.Allocate(value.NewArray(elems)))

	case bytecode.JUMP:
		m.pc = m.operand()

	case bytecode.JUMP_IF_FALSE:
		addr := m.operand()
		h, ok := m.pop()
		if !ok {
			return
		}
		if !m.heap.Deref(h).Truth() {
			m.pc = addr
		}

	case bytecode.JUMP_IF_FALSE_NO_POP:
		// peeks only: the short-circuit lowering pops the operand itself
		// with an explicit POP_LAST on the fall-through path
		addr := m.operand()
		if len(m.stack) == 0 {
			m.fault(glarerr.TypeError, "Stack underflow")
			return
		}
		if !m.heap.Deref(m.stack[len(m.stack)-1]).Truth() {
			m.pc = addr
		}

	case bytecode.DEBUG_PRINT, bytecode.ECHO_PRINT:
		h, ok := m.pop()
		if !ok {
			return
		}
		fmt.Fprintln(m.stdout, m.heap.Format(h, op == bytecode.DEBUG_PRINT))

	case bytecode.GET:
		m.get()

	case bytecode.UNARY_NEG:
		m.unary("-")
	case bytecode.UNARY_NOT:
		m.unary("!")

	case bytecode.BINARY_ADD:
		m.binary("+")
	case bytecode.BINARY_SUB:
		m.binary("-")
	case bytecode.BINARY_MUL:
		m.binary("*")
	case bytecode.BINARY_DIV:
		m.binary("/")
	case bytecode.BINARY_MOD:
		m.binary("%")
	case bytecode.BINARY_EXP:
		m.binary("**")
	case bytecode.BINARY_EQ:
		m.binary("==")
	case bytecode.BINARY_NE:
		m.binary("!=")
	case bytecode.BINARY_LT:
		m.binary("<")
	case bytecode.BINARY_LE:
		m.binary("<=")
	case bytecode.BINARY_GT:
		m.binary(">")
	case bytecode.BINARY_GE:
		m.binary(">=")

	default:
		m.fault(glarerr.TypeError, "Unknown opcode: %d", op)
	}
}

// get implements GET: pops the index and collection, pushes the element.
// Array elements are pushed by handle (aliasing); string indexing is by
// code point and yields a fresh one-character string.
func (m *Machine) get() {
	idxh, ok := m.pop()
	if !ok {
		return
	}
	colh, ok := m.pop()
	if !ok {
		return
	}

	switch col := m.heap.Deref(colh).(type) {
	case *value.Array:
		i, ok := m.heap.Deref(idxh).(value.Int)
		if !ok {
			m.fault(glarerr.TypeError, "Index must be an int, got %s", m.heap.Deref(idxh).Type())
			return
		}
		if i < 0 || int(i) >= len(col.Elems) {
			m.fault(glarerr.IndexError, "Index %d out of range for array of length %d", i, len(col.Elems))
			return
		}
		m.push(col.Elems[i])

	case value.String:
		i, ok := m.heap.Deref(idxh).(value.Int)
		if !ok {
			m.fault(glarerr.TypeError, "Index must be an int, got %s", m.heap.Deref(idxh).Type())
			return
		}
		rs := []rune(string(col))
		if i < 0 || int(i) >= len(rs) {
			m.fault(glarerr.IndexError, "Index %d out of range for string of length %d", i, len(rs))
			return
		}
		m.push(m.heap.Allocate(value.String(string(rs[i]))))

	default:
		m.fault(glarerr.TypeError, "Cannot index %s", col.Type())
	}
}

// setIndex implements SET_INDEX, the in-place assignment opcode: it pops
// the value, index and collection, overwrites the addressed element cell
// with the value's payload and pushes the value back.
func (m *Machine) setIndex() {
	vh, ok := m.pop()
	if !ok {
		return
	}
	idxh, ok := m.pop()
	if !ok {
		return
	}
	colh, ok := m.pop()
	if !ok {
		return
	}

	arr, ok := m.heap.Deref(colh).(*value.Array)
	if !ok {
		m.fault(glarerr.TypeError, "Cannot assign into %s", m.heap.Deref(colh).Type())
		return
	}
	i, ok := m.heap.Deref(idxh).(value.Int)
	if !ok {
		m.fault(glarerr.TypeError, "Index must be an int, got %s", m.heap.Deref(idxh).Type())
		return
	}
	if i < 0 || int(i) >= len(arr.Elems) {
		m.fault(glarerr.IndexError, "Index %d out of range for array of length %d", i, len(arr.Elems))
		return
	}
	m.heap.SetInPlace(arr.Elems[i], m.heap.Deref(vh))
	m.push(vh)
}

func (m *Machine) unary(op string) {
	h, ok := m.pop()
	if !ok {
		return
	}
	res, operr := operators.Unary(op, m.heap.Deref(h))
	if operr != nil {
		m.faultOp(operr)
		return
	}
	m.push(m.heap.Allocate(res))
}

func (m *Machine) binary(op string) {
	rh, ok := m.pop()
	if !ok {
		return
	}
	lh, ok := m.pop()
	if !ok {
		return
	}
	res, operr := operators.Binary(op, m.heap, m.heap.Deref(lh), m.heap.Deref(rh))
	if operr != nil {
		m.faultOp(operr)
		return
	}
	m.push(m.heap.Allocate(res))
}

func (m *Machine) faultOp(e *operators.Error) {
	m.err = &glarerr.Error{Kind: e.Kind, Message: e.Message, Span: m.chunk.Spans[m.opPC]}
}
