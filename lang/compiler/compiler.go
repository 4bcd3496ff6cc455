// Package compiler translates an abstract syntax tree into a bytecode
// chunk: a linear code stream, a constant pool and a local-slot count.
// It owns lexical-scope resolution, jump patching for short-circuit and
// loop control flow, and a small peephole pass over the emitted stream.
package compiler

import (
	"strconv"

	"github.com/dolthub/swiss"
	"golang.org/x/exp/slices"

	"github.com/mna/glacier/glarerr"
	"github.com/mna/glacier/lang/ast"
	"github.com/mna/glacier/lang/bytecode"
	"github.com/mna/glacier/lang/token"
	"github.com/mna/glacier/lang/value"
)

// Default structural limits. Exceeding either is a compile-time error.
const (
	DefaultMaxConstants = 1024
	DefaultMaxScopes    = 512
)

// maxJumpTarget is the largest code offset addressable by a one-unit jump
// operand.
const maxJumpTarget = int(^bytecode.Unit(0))

// Option configures a Compiler.
type Option func(*Compiler)

// REPLMode keeps the top-level scope and the constant pool across
// successive Compile calls, and preserves the chunk's final pop so the
// session's last value can be displayed.
func REPLMode() Option { return func(c *Compiler) { c.replMode = true } }

// MaxConstants caps the size of the constant pool.
func MaxConstants(n int) Option { return func(c *Compiler) { c.maxConstants = n } }

// MaxScopes caps lexical scope nesting depth.
func MaxScopes(n int) Option { return func(c *Compiler) { c.maxScopes = n } }

// Compiler holds the scope and constant-pool state for compiling one
// program, or a sequence of programs in REPL mode.
type Compiler struct {
	chunk  *bytecode.Chunk
	scopes []map[string]int // name to absolute slot, innermost last
	count  int              // slots allocated across all open scopes

	// pending jump patches, one list per open loop
	breaks    [][]int
	continues [][]int

	// integer literal payload to constant-pool index
	ints *swiss.Map[int64, bytecode.Unit]

	// offset and opcode of the most recently emitted instruction, used to
	// strip a trailing POP_LAST when a block's value is kept
	lastOp    bytecode.Opcode
	lastOpPos int

	replMode     bool
	maxConstants int
	maxScopes    int

	err *glarerr.Error
}

// New returns a Compiler ready to compile programs.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		chunk:        bytecode.NewChunk(),
		scopes:       []map[string]int{{}},
		ints:         swiss.NewMap[int64, bytecode.Unit](8),
		maxConstants: DefaultMaxConstants,
		maxScopes:    DefaultMaxScopes,
		lastOpPos:    -1,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compile translates program into a bytecode chunk. In REPL mode,
// constants and top-level locals accumulate across calls and the returned
// chunk is only valid until the next call; outside REPL mode each call
// starts from a fresh chunk, scope and constant pool.
func (c *Compiler) Compile(program ast.Program) (*bytecode.Chunk, error) {
	if !c.replMode {
		c.chunk = bytecode.NewChunk()
		c.scopes = []map[string]int{{}}
		c.ints = swiss.NewMap[int64, bytecode.Unit](8)
	}
	c.chunk.Code = c.chunk.Code[:0]
	c.chunk.Spans = c.chunk.Spans[:0]
	c.scopes = c.scopes[:1]
	c.count = len(c.scopes[0])
	c.breaks, c.continues = nil, nil
	c.lastOp, c.lastOpPos = bytecode.NOOP, -1
	c.err = nil

	c.program(program)
	if c.err != nil {
		return nil, c.err
	}
	c.peephole()
	c.chunk.NumLocals = c.count
	return c.chunk, nil
}

func (c *Compiler) fail(kind glarerr.Kind, span token.Span, format string, args ...any) {
	if c.err == nil {
		c.err = glarerr.New(kind, span, format, args...)
	}
}

func (c *Compiler) emit(op bytecode.Opcode, span token.Span) int {
	if c.err != nil {
		return -1
	}
	c.lastOp, c.lastOpPos = op, c.chunk.Here()
	return c.chunk.Emit(op, span)
}

func (c *Compiler) emitOperand(op bytecode.Opcode, operand bytecode.Unit, span token.Span) int {
	if c.err != nil {
		return -1
	}
	c.lastOp, c.lastOpPos = op, c.chunk.Here()
	return c.chunk.EmitOperand(op, operand, span)
}

// patchJump backfills the operand of the jump at opPos to the current
// offset.
func (c *Compiler) patchJump(opPos int, span token.Span) {
	c.patchJumpTo(opPos, c.chunk.Here(), span)
}

func (c *Compiler) patchJumpTo(opPos, target int, span token.Span) {
	if c.err != nil || opPos < 0 {
		return
	}
	if target > maxJumpTarget {
		c.fail(glarerr.JumpOverflow, span, "Jump target %d exceeds the addressable range", target)
		return
	}
	c.chunk.PatchOperand(opPos, bytecode.Unit(target))
}

func (c *Compiler) beginScope(span token.Span) {
	if len(c.scopes) >= c.maxScopes {
		c.fail(glarerr.ScopeOverflow, span, "Scope nesting exceeds limit of %d", c.maxScopes)
		return
	}
	c.scopes = append(c.scopes, map[string]int{})
}

func (c *Compiler) endScope() {
	n := len(c.scopes) - 1
	c.count -= len(c.scopes[n])
	c.scopes = c.scopes[:n]
}

// addLocal returns the slot already bound to name in any open scope, or
// binds name in the innermost scope to the next free slot. Rebinding an
// existing name reuses its slot, which is what gives assignment its
// update-in-place semantics.
func (c *Compiler) addLocal(name string) int {
	if slot, ok := c.resolveLocal(name); ok {
		return slot
	}
	slot := c.count
	c.scopes[len(c.scopes)-1][name] = slot
	c.count++
	return slot
}

func (c *Compiler) resolveLocal(name string) (int, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if slot, ok := c.scopes[i][name]; ok {
			return slot, true
		}
	}
	return 0, false
}

// addConstant appends v to the pool and returns its index.
func (c *Compiler) addConstant(v value.Value, span token.Span) bytecode.Unit {
	if len(c.chunk.Constants) >= c.maxConstants {
		c.fail(glarerr.ConstantOverflow, span, "Constant exceeds limit of %d", c.maxConstants)
		return 0
	}
	c.chunk.Constants = append(c.chunk.Constants, v)
	return bytecode.Unit(len(c.chunk.Constants) - 1)
}

func (c *Compiler) program(program ast.Program) {
	for _, s := range program {
		if c.err != nil {
			return
		}
		c.stmt(s)
	}
}

func (c *Compiler) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.ExprStmt:
		c.expr(s.Expr)
		c.emit(bytecode.POP_LAST, s.Pos)

	case *ast.DebugPrint:
		c.expr(s.Expr)
		c.emit(bytecode.DEBUG_PRINT, s.Pos)

	case *ast.EchoPrint:
		c.expr(s.Expr)
		c.emit(bytecode.ECHO_PRINT, s.Pos)

	case *ast.Break:
		if len(c.breaks) == 0 {
			c.fail(glarerr.MisplacedBreakOrNext, s.Pos, "'break' outside of a loop")
			return
		}
		pos := c.emitOperand(bytecode.JUMP, 0, s.Pos)
		last := len(c.breaks) - 1
		c.breaks[last] = append(c.breaks[last], pos)

	case *ast.Next:
		if len(c.continues) == 0 {
			c.fail(glarerr.MisplacedBreakOrNext, s.Pos, "'next' outside of a loop")
			return
		}
		pos := c.emitOperand(bytecode.JUMP, 0, s.Pos)
		last := len(c.continues) - 1
		c.continues[last] = append(c.continues[last], pos)

	case *ast.PointerAssign:
		// the target is lowered through all but its final index step, so
		// SET_INDEX receives the collection and index as plain operands
		c.expr(s.Ptr.Callee)
		c.expr(s.Ptr.Index)
		c.expr(s.Value)
		c.emit(bytecode.SET_INDEX, s.Pos)
		c.emit(bytecode.POP_LAST, s.Pos)
	}
}

func (c *Compiler) expr(e ast.Expr) {
	if c.err != nil {
		return
	}
	switch e := e.(type) {
	case *ast.Int:
		i, err := strconv.ParseInt(e.Value, 10, 64)
		if err != nil {
			c.fail(glarerr.ConstantOverflow, e.Pos, "Integer literal out of range: %s", e.Value)
			return
		}
		idx, ok := c.ints.Get(i)
		if !ok {
			idx = c.addConstant(value.Int(i), e.Pos)
			if c.err != nil {
				return
			}
			c.ints.Put(i, idx)
		}
		c.emitOperand(bytecode.LOAD_CONST, idx, e.Pos)

	case *ast.Float:
		f, err := strconv.ParseFloat(e.Value, 64)
		if err != nil {
			c.fail(glarerr.ConstantOverflow, e.Pos, "Float literal out of range: %s", e.Value)
			return
		}
		idx := c.addConstant(value.Float(f), e.Pos)
		c.emitOperand(bytecode.LOAD_CONST, idx, e.Pos)

	case *ast.String:
		idx := c.addConstant(value.String(e.Value), e.Pos)
		c.emitOperand(bytecode.LOAD_CONST, idx, e.Pos)

	case *ast.Bool:
		idx := bytecode.Unit(bytecode.ConstFalse)
		if e.Value {
			idx = bytecode.ConstTrue
		}
		c.emitOperand(bytecode.LOAD_CONST, idx, e.Pos)

	case *ast.Array:
		if len(e.Values) > maxJumpTarget {
			c.fail(glarerr.ConstantOverflow, e.Pos, "Array literal exceeds %d elements", maxJumpTarget)
			return
		}
		// elements are emitted in reverse so that MAKE_ARRAY pops them back
		// in insertion order
		rev := slices.Clone(e.Values)
		slices.Reverse(rev)
		for _, el := range rev {
			c.expr(el)
		}
		c.emitOperand(bytecode.MAKE_ARRAY, bytecode.Unit(len(e.Values)), e.Pos)

	case *ast.GetVar:
		slot, ok := c.resolveLocal(e.Name)
		if !ok {
			c.fail(glarerr.UndefinedVariable, e.Pos, "Variable '%s' is not defined", e.Name)
			return
		}
		c.emitOperand(bytecode.LOAD_LOCAL, bytecode.Unit(slot), e.Pos)

	case *ast.SetVar:
		slot := c.addLocal(e.Name)
		c.expr(e.Value)
		c.emitOperand(bytecode.REPLACE, bytecode.Unit(slot), e.Pos)
		c.emitOperand(bytecode.LOAD_LOCAL, bytecode.Unit(slot), e.Pos)

	case *ast.Infix:
		c.infix(e)

	case *ast.Prefix:
		c.expr(e.Right)
		switch e.Operator {
		case "-":
			c.emit(bytecode.UNARY_NEG, e.Pos)
		case "!":
			c.emit(bytecode.UNARY_NOT, e.Pos)
		default:
			c.fail(glarerr.UnsupportedUnary, e.Pos, "Unsupported operator: %s", e.Operator)
		}

	case *ast.Index:
		c.expr(e.Callee)
		c.expr(e.Index)
		c.emit(bytecode.GET, e.Pos)

	case *ast.If:
		c.ifExpr(e)

	case *ast.While:
		c.while(e)

	case *ast.Do:
		c.blockValue(e.Body, e.Pos)
	}
}

var binaryOps = map[string]bytecode.Opcode{
	"+":  bytecode.BINARY_ADD,
	"-":  bytecode.BINARY_SUB,
	"*":  bytecode.BINARY_MUL,
	"/":  bytecode.BINARY_DIV,
	"%":  bytecode.BINARY_MOD,
	"**": bytecode.BINARY_EXP,
	"==": bytecode.BINARY_EQ,
	"!=": bytecode.BINARY_NE,
	"<":  bytecode.BINARY_LT,
	"<=": bytecode.BINARY_LE,
	">":  bytecode.BINARY_GT,
	">=": bytecode.BINARY_GE,
}

func (c *Compiler) infix(e *ast.Infix) {
	switch e.Operator {
	case "&&":
		// the branch peeks: a falsy left operand stays on the stack as the
		// expression's value, a truthy one is popped on the fall-through path
		c.expr(e.Left)
		p := c.emitOperand(bytecode.JUMP_IF_FALSE_NO_POP, 0, e.Pos)
		c.emit(bytecode.POP_LAST, e.Pos)
		c.expr(e.Right)
		c.patchJump(p, e.Pos)

	case "||":
		c.expr(e.Left)
		p1 := c.emitOperand(bytecode.JUMP_IF_FALSE_NO_POP, 0, e.Pos)
		p2 := c.emitOperand(bytecode.JUMP, 0, e.Pos)
		c.patchJump(p1, e.Pos)
		c.emit(bytecode.POP_LAST, e.Pos)
		c.expr(e.Right)
		c.patchJump(p2, e.Pos)

	default:
		c.expr(e.Left)
		c.expr(e.Right)
		op, ok := binaryOps[e.Operator]
		if !ok {
			c.fail(glarerr.UnsupportedBinary, e.Pos, "Unsupported operator: %s", e.Operator)
			return
		}
		c.emit(op, e.Pos)
	}
}

func (c *Compiler) ifExpr(e *ast.If) {
	c.expr(e.Cond)
	p1 := c.emitOperand(bytecode.JUMP_IF_FALSE, 0, e.Pos)
	c.blockValue(e.Body, e.Pos)
	p2 := c.emitOperand(bytecode.JUMP, 0, e.Pos)
	c.patchJump(p1, e.Pos)
	c.blockValue(e.Other, e.Pos)
	c.patchJump(p2, e.Pos)
}

func (c *Compiler) while(e *ast.While) {
	c.breaks = append(c.breaks, nil)
	c.continues = append(c.continues, nil)

	loopStart := c.chunk.Here()
	c.expr(e.Cond)
	exit := c.emitOperand(bytecode.JUMP_IF_FALSE, 0, e.Pos)

	c.beginScope(e.Pos)
	c.program(e.Body)
	c.endScope()

	back := c.emitOperand(bytecode.JUMP, 0, e.Pos)
	c.patchJumpTo(back, loopStart, e.Pos)
	c.patchJump(exit, e.Pos)

	n := len(c.breaks) - 1
	for _, p := range c.breaks[n] {
		c.patchJump(p, e.Pos)
	}
	for _, p := range c.continues[n] {
		c.patchJumpTo(p, loopStart, e.Pos)
	}
	c.breaks = c.breaks[:n]
	c.continues = c.continues[:n]

	// the loop expression always yields null
	c.emitOperand(bytecode.LOAD_CONST, bytecode.ConstNull, e.Pos)
}

// blockValue compiles body in a nested scope and arranges for exactly one
// value to remain on the stack: the last expression statement's value if
// there is one, null otherwise.
func (c *Compiler) blockValue(body ast.Program, span token.Span) {
	if len(body) == 0 {
		c.emitOperand(bytecode.LOAD_CONST, bytecode.ConstNull, span)
		return
	}
	c.beginScope(span)
	c.program(body)
	c.endScope()
	if c.err != nil {
		return
	}
	if c.lastOp == bytecode.POP_LAST && c.lastOpPos >= 0 {
		c.chunk.TruncateLast(c.lastOpPos)
		c.lastOp, c.lastOpPos = c.chunk.LastOp(), -1
	} else {
		c.emitOperand(bytecode.LOAD_CONST, bytecode.ConstNull, span)
	}
}

// peephole replaces a LOAD_CONST or LOAD_LOCAL immediately followed by
// POP_LAST with NOOPs, keeping every offset stable so no jump needs
// repatching. Two exceptions: in REPL mode the chunk's final pair is the
// session's displayed result, and a POP_LAST that is itself a jump target
// pops a different path's value, so both are left alone.
func (c *Compiler) peephole() {
	code := c.chunk.Code

	targets := make(map[int]bool)
	for i := 0; i < len(code); {
		op := bytecode.Opcode(code[i])
		switch op {
		case bytecode.JUMP, bytecode.JUMP_IF_FALSE, bytecode.JUMP_IF_FALSE_NO_POP:
			targets[int(code[i+1])] = true
		}
		i += op.Size()
	}

	for i := 0; i < len(code); {
		op := bytecode.Opcode(code[i])
		sz := op.Size()
		if (op == bytecode.LOAD_CONST || op == bytecode.LOAD_LOCAL) &&
			i+sz < len(code) && bytecode.Opcode(code[i+sz]) == bytecode.POP_LAST &&
			!targets[i+sz] {
			if c.replMode && i+sz == len(code)-1 {
				i += sz + 1
				continue
			}
			code[i] = bytecode.Unit(bytecode.NOOP)
			code[i+1] = bytecode.Unit(bytecode.NOOP)
			code[i+sz] = bytecode.Unit(bytecode.NOOP)
			i += sz + 1
			continue
		}
		i += sz
	}
}
