package bytecode

import (
	"fmt"
	"strings"

	"github.com/mna/glacier/lang/token"
	"github.com/mna/glacier/lang/value"
)

// Chunk is the output of compilation: a linear code stream, a constant
// pool, and a parallel span table used to locate runtime errors. Indices
// 0, 1 and 2 of Constants are reserved for false, true and null (§3).
type Chunk struct {
	Code      []Unit
	Spans     []token.Span // one entry per Unit in Code
	Constants []value.Value
	NumLocals int
}

// Reserved constant-pool indices, per §3.
const (
	ConstFalse = 0
	ConstTrue  = 1
	ConstNull  = 2
)

// NewChunk returns a Chunk with the three reserved constants pre-seeded.
func NewChunk() *Chunk {
	return &Chunk{
		Constants: []value.Value{value.Bool(false), value.Bool(true), value.Null{}},
	}
}

// Here returns the offset of the next Unit to be written.
func (c *Chunk) Here() int { return len(c.Code) }

// Emit appends a no-operand opcode at the given span and returns its
// offset.
func (c *Chunk) Emit(op Opcode, span token.Span) int {
	pos := len(c.Code)
	c.Code = append(c.Code, Unit(op))
	c.Spans = append(c.Spans, span)
	return pos
}

// EmitOperand appends an opcode followed by one immediate operand and
// returns the offset of the opcode (the operand is at offset+1).
func (c *Chunk) EmitOperand(op Opcode, operand Unit, span token.Span) int {
	pos := len(c.Code)
	c.Code = append(c.Code, Unit(op), operand)
	c.Spans = append(c.Spans, span, span)
	return pos
}

// PatchOperand overwrites the operand Unit immediately following the
// opcode at opPos.
func (c *Chunk) PatchOperand(opPos int, operand Unit) {
	c.Code[opPos+1] = operand
}

// LastOp returns the opcode of the last emitted instruction, or NOOP if
// the chunk is empty. Used by if/do lowering to recover the last opcode
// after a trailing POP_LAST has been removed.
func (c *Chunk) LastOp() Opcode {
	if len(c.Code) == 0 {
		return NOOP
	}
	// Walk from the start since instructions are variable-width; the scan
	// covers the whole code stream, not only the enclosing block.
	i := 0
	last := NOOP
	for i < len(c.Code) {
		op := Opcode(c.Code[i])
		last = op
		i += op.Size()
	}
	return last
}

// TruncateLast removes the last instruction, which must be a no-operand
// opcode at offset pos.
func (c *Chunk) TruncateLast(pos int) {
	c.Code = c.Code[:pos]
	c.Spans = c.Spans[:pos]
}

// Disassemble renders the chunk as human-readable text, one instruction
// per line: "<offset>: <mnemonic> [operand]".
func Disassemble(c *Chunk) string {
	var sb strings.Builder
	i := 0
	for i < len(c.Code) {
		op := Opcode(c.Code[i])
		if op.HasOperand() {
			fmt.Fprintf(&sb, "%04d: %-20s %d\n", i, op, c.Code[i+1])
		} else {
			fmt.Fprintf(&sb, "%04d: %s\n", i, op)
		}
		i += op.Size()
	}
	return sb.String()
}
