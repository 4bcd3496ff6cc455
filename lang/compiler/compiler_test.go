package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/glacier/glarerr"
	"github.com/mna/glacier/lang/ast"
	"github.com/mna/glacier/lang/bytecode"
	"github.com/mna/glacier/lang/value"
)

func iLit(s string) *ast.Int    { return &ast.Int{Value: s} }
func getv(n string) *ast.GetVar { return &ast.GetVar{Name: n} }
func setv(n string, e ast.Expr) *ast.SetVar {
	return &ast.SetVar{Name: n, Value: e}
}
func stmt(e ast.Expr) ast.Stmt { return &ast.ExprStmt{Expr: e} }

func TestCompileIntLiteralsShareConstant(t *testing.T) {
	chunk, err := New().Compile(ast.Program{
		stmt(&ast.Infix{Left: iLit("7"), Operator: "+", Right: iLit("7")}),
	})
	require.NoError(t, err)

	// reserved false/true/null plus a single slot for 7
	assert.Len(t, chunk.Constants, 4)
	assert.Equal(t, bytecode.Unit(3), chunk.Code[1])
	assert.Equal(t, bytecode.Unit(3), chunk.Code[3])
}

func TestCompileBoolUsesReservedSlots(t *testing.T) {
	chunk, err := New().Compile(ast.Program{
		stmt(&ast.Bool{Value: true}),
		stmt(&ast.Bool{Value: false}),
	})
	require.NoError(t, err)
	assert.Len(t, chunk.Constants, 3, "booleans use the reserved pool slots")
}

func TestCompileUndefinedVariable(t *testing.T) {
	_, err := New().Compile(ast.Program{stmt(getv("x"))})
	require.Error(t, err)

	var gerr *glarerr.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, glarerr.UndefinedVariable, gerr.Kind)
}

func TestCompileAssignmentReusesSlot(t *testing.T) {
	// x = 1; do { x = 2 }: the inner assignment updates the outer slot
	chunk, err := New().Compile(ast.Program{
		stmt(setv("x", iLit("1"))),
		stmt(&ast.Do{Body: ast.Program{stmt(setv("x", iLit("2")))}}),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, chunk.NumLocals)

	var replaceOperands []bytecode.Unit
	for i := 0; i < len(chunk.Code); {
		op := bytecode.Opcode(chunk.Code[i])
		if op == bytecode.REPLACE {
			replaceOperands = append(replaceOperands, chunk.Code[i+1])
		}
		i += op.Size()
	}
	assert.Equal(t, []bytecode.Unit{0, 0}, replaceOperands)
}

func TestCompileScopeReleasesSlots(t *testing.T) {
	// do { y = 1 }; z = 2: y's slot is freed when the block closes, z
	// takes it over
	chunk, err := New().Compile(ast.Program{
		stmt(&ast.Do{Body: ast.Program{stmt(setv("y", iLit("1")))}}),
		stmt(setv("z", iLit("2"))),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, chunk.NumLocals)
}

func TestCompileIfLowering(t *testing.T) {
	chunk, err := New().Compile(ast.Program{
		stmt(&ast.If{Cond: &ast.Bool{Value: true}, Body: ast.Program{stmt(iLit("8"))}}),
	})
	require.NoError(t, err)

	want := []bytecode.Unit{
		bytecode.Unit(bytecode.LOAD_CONST), bytecode.ConstTrue,
		bytecode.Unit(bytecode.JUMP_IF_FALSE), 8,
		bytecode.Unit(bytecode.LOAD_CONST), 3, // 8, the body's value kept
		bytecode.Unit(bytecode.JUMP), 10,
		bytecode.Unit(bytecode.LOAD_CONST), bytecode.ConstNull,
		bytecode.Unit(bytecode.POP_LAST),
	}
	assert.Equal(t, want, chunk.Code)
}

func TestCompileShortCircuitAnd(t *testing.T) {
	chunk, err := New().Compile(ast.Program{
		stmt(&ast.Infix{Left: &ast.Bool{Value: true}, Operator: "&&", Right: &ast.Bool{Value: false}}),
	})
	require.NoError(t, err)

	want := []bytecode.Unit{
		bytecode.Unit(bytecode.LOAD_CONST), bytecode.ConstTrue,
		bytecode.Unit(bytecode.JUMP_IF_FALSE_NO_POP), 7,
		bytecode.Unit(bytecode.POP_LAST),
		bytecode.Unit(bytecode.LOAD_CONST), bytecode.ConstFalse,
		bytecode.Unit(bytecode.POP_LAST),
	}
	assert.Equal(t, want, chunk.Code)
}

func TestCompileShortCircuitOr(t *testing.T) {
	chunk, err := New().Compile(ast.Program{
		stmt(&ast.Infix{Left: &ast.Bool{Value: false}, Operator: "||", Right: &ast.Bool{Value: true}}),
	})
	require.NoError(t, err)

	want := []bytecode.Unit{
		bytecode.Unit(bytecode.LOAD_CONST), bytecode.ConstFalse,
		bytecode.Unit(bytecode.JUMP_IF_FALSE_NO_POP), 6,
		bytecode.Unit(bytecode.JUMP), 9,
		bytecode.Unit(bytecode.POP_LAST),
		bytecode.Unit(bytecode.LOAD_CONST), bytecode.ConstTrue,
		bytecode.Unit(bytecode.POP_LAST),
	}
	assert.Equal(t, want, chunk.Code)
}

func TestCompileWhileBreakPatching(t *testing.T) {
	// x = 0; while x { break }
	chunk, err := New().Compile(ast.Program{
		stmt(setv("x", iLit("0"))),
		stmt(&ast.While{Cond: getv("x"), Body: ast.Program{&ast.Break{}}}),
	})
	require.NoError(t, err)

	want := []bytecode.Unit{
		bytecode.Unit(bytecode.LOAD_CONST), 3,
		bytecode.Unit(bytecode.REPLACE), 0,
		// LOAD_LOCAL x; POP_LAST erased by the peephole pass
		bytecode.Unit(bytecode.NOOP), bytecode.Unit(bytecode.NOOP), bytecode.Unit(bytecode.NOOP),
		bytecode.Unit(bytecode.LOAD_LOCAL), 0, // loop condition, offset 7
		bytecode.Unit(bytecode.JUMP_IF_FALSE), 15,
		bytecode.Unit(bytecode.JUMP), 15, // break
		bytecode.Unit(bytecode.JUMP), 7, // back edge
		// LOAD_CONST null; POP_LAST erased by the peephole pass
		bytecode.Unit(bytecode.NOOP), bytecode.Unit(bytecode.NOOP), bytecode.Unit(bytecode.NOOP),
	}
	assert.Equal(t, want, chunk.Code)
}

func TestCompileNextPatchesToLoopStart(t *testing.T) {
	chunk, err := New().Compile(ast.Program{
		stmt(setv("x", iLit("0"))),
		stmt(&ast.While{Cond: getv("x"), Body: ast.Program{&ast.Next{}}}),
	})
	require.NoError(t, err)

	// the next statement's JUMP targets the condition at offset 7
	assert.Equal(t, bytecode.Unit(bytecode.JUMP), chunk.Code[11])
	assert.Equal(t, bytecode.Unit(7), chunk.Code[12])
}

func TestCompileBreakOutsideLoopFails(t *testing.T) {
	_, err := New().Compile(ast.Program{&ast.Break{}})
	require.Error(t, err)

	var gerr *glarerr.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, glarerr.MisplacedBreakOrNext, gerr.Kind)
	assert.Equal(t, glarerr.CompileTime, gerr.Phase())
}

func TestCompileNextOutsideLoopFails(t *testing.T) {
	_, err := New().Compile(ast.Program{&ast.Next{}})
	require.Error(t, err)

	var gerr *glarerr.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, glarerr.MisplacedBreakOrNext, gerr.Kind)
}

func TestCompilePointerAssign(t *testing.T) {
	chunk, err := New().Compile(ast.Program{
		stmt(setv("a", &ast.Array{Values: []ast.Expr{iLit("1")}})),
		&ast.PointerAssign{
			Ptr:   &ast.Index{Callee: getv("a"), Index: iLit("0")},
			Value: iLit("9"),
		},
	})
	require.NoError(t, err)

	var ops []bytecode.Opcode
	for i := 0; i < len(chunk.Code); {
		op := bytecode.Opcode(chunk.Code[i])
		ops = append(ops, op)
		i += op.Size()
	}
	assert.Contains(t, ops, bytecode.SET_INDEX)
	assert.NotContains(t, ops, bytecode.GET, "the final index step is not a read")
}

func TestCompileArrayLiteralReversesElements(t *testing.T) {
	chunk, err := New().Compile(ast.Program{
		stmt(&ast.Array{Values: []ast.Expr{iLit("10"), iLit("20")}}),
	})
	require.NoError(t, err)

	// the last element is emitted (and interned) first
	assert.Equal(t, value.Int(20), chunk.Constants[3])
	assert.Equal(t, value.Int(10), chunk.Constants[4])
	assert.Equal(t, bytecode.Unit(bytecode.LOAD_CONST), chunk.Code[0])
	assert.Equal(t, bytecode.Unit(3), chunk.Code[1])
	assert.Equal(t, bytecode.Unit(4), chunk.Code[3])
	assert.Equal(t, bytecode.Unit(bytecode.MAKE_ARRAY), chunk.Code[4])
	assert.Equal(t, bytecode.Unit(2), chunk.Code[5])
}

func TestCompilePeepholeKeepsFinalReplResult(t *testing.T) {
	chunk, err := New(REPLMode()).Compile(ast.Program{stmt(iLit("5"))})
	require.NoError(t, err)

	want := []bytecode.Unit{
		bytecode.Unit(bytecode.LOAD_CONST), 3,
		bytecode.Unit(bytecode.POP_LAST),
	}
	assert.Equal(t, want, chunk.Code)
}

func TestCompilePeepholeErasesDeadLoads(t *testing.T) {
	chunk, err := New().Compile(ast.Program{stmt(iLit("5"))})
	require.NoError(t, err)

	want := []bytecode.Unit{
		bytecode.Unit(bytecode.NOOP), bytecode.Unit(bytecode.NOOP), bytecode.Unit(bytecode.NOOP),
	}
	assert.Equal(t, want, chunk.Code)
}

func TestCompileConstantOverflow(t *testing.T) {
	_, err := New(MaxConstants(3)).Compile(ast.Program{stmt(iLit("5"))})
	require.Error(t, err)

	var gerr *glarerr.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, glarerr.ConstantOverflow, gerr.Kind)
}

func TestCompileScopeOverflow(t *testing.T) {
	_, err := New(MaxScopes(1)).Compile(ast.Program{
		stmt(&ast.Do{Body: ast.Program{stmt(iLit("1"))}}),
	})
	require.Error(t, err)

	var gerr *glarerr.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, glarerr.ScopeOverflow, gerr.Kind)
}

func TestCompileReplAccumulatesAcrossCalls(t *testing.T) {
	c := New(REPLMode())

	chunk, err := c.Compile(ast.Program{stmt(setv("a", iLit("4")))})
	require.NoError(t, err)
	require.Equal(t, 1, chunk.NumLocals)
	nconsts := len(chunk.Constants)

	chunk, err = c.Compile(ast.Program{stmt(getv("a"))})
	require.NoError(t, err)
	assert.Equal(t, 1, chunk.NumLocals, "top-level locals persist across compilations")
	assert.Len(t, chunk.Constants, nconsts, "constants persist across compilations")
}

func TestCompileSpansCoverEveryUnit(t *testing.T) {
	chunk, err := New().Compile(ast.Program{
		stmt(&ast.Infix{Left: iLit("1"), Operator: "+", Right: iLit("2")}),
	})
	require.NoError(t, err)
	assert.Len(t, chunk.Spans, len(chunk.Code))
}
