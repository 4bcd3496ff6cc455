package bytecode

import (
	"testing"

	"github.com/mna/glacier/lang/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkReservedConstants(t *testing.T) {
	c := NewChunk()
	require.Len(t, c.Constants, 3)
	assert.Equal(t, "false", c.Constants[ConstFalse].Display())
	assert.Equal(t, "true", c.Constants[ConstTrue].Display())
	assert.Equal(t, "null", c.Constants[ConstNull].Display())
}

func TestEmitAndPatchOperand(t *testing.T) {
	c := NewChunk()
	sp := token.Span{Start: 0, End: 1}

	jmpPos := c.EmitOperand(JUMP_IF_FALSE, 0, sp)
	c.Emit(POP_LAST, sp)
	c.PatchOperand(jmpPos, Unit(c.Here()))

	assert.Equal(t, Unit(JUMP_IF_FALSE), c.Code[0])
	assert.Equal(t, Unit(3), c.Code[1])
	assert.Equal(t, Unit(POP_LAST), c.Code[2])
}

func TestDisassemble(t *testing.T) {
	c := NewChunk()
	sp := token.Span{}
	c.EmitOperand(LOAD_CONST, 1, sp)
	c.Emit(POP_LAST, sp)

	got := Disassemble(c)
	assert.Contains(t, got, "LOAD_CONST")
	assert.Contains(t, got, "POP_LAST")
}

func TestOpcodeHasOperand(t *testing.T) {
	assert.False(t, POP_LAST.HasOperand())
	assert.False(t, BINARY_ADD.HasOperand())
	assert.True(t, LOAD_CONST.HasOperand())
	assert.True(t, JUMP.HasOperand())
}
