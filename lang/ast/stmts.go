package ast

import "github.com/mna/glacier/lang/token"

type (
	// ExprStmt evaluates Expr and discards its value.
	ExprStmt struct {
		Expr Expr
		Pos  token.Span
	}

	// DebugPrint evaluates Expr and writes its debug representation (strings
	// quoted) to standard output.
	DebugPrint struct {
		Expr Expr
		Pos  token.Span
	}

	// EchoPrint evaluates Expr and writes its display representation (strings
	// unquoted) to standard output.
	EchoPrint struct {
		Expr Expr
		Pos  token.Span
	}

	// Break exits the innermost enclosing while loop. Only valid inside a
	// loop body.
	Break struct {
		Pos token.Span
	}

	// Next jumps to the condition of the innermost enclosing while loop. Only
	// valid inside a loop body.
	Next struct {
		Pos token.Span
	}

	// PointerAssign evaluates Ptr's callee and index, evaluates Value, and
	// writes Value into the addressed array element in place.
	PointerAssign struct {
		Ptr   *Index
		Value Expr
		Pos   token.Span
	}
)

func (n *ExprStmt) Span() token.Span      { return n.Pos }
func (n *DebugPrint) Span() token.Span    { return n.Pos }
func (n *EchoPrint) Span() token.Span     { return n.Pos }
func (n *Break) Span() token.Span         { return n.Pos }
func (n *Next) Span() token.Span          { return n.Pos }
func (n *PointerAssign) Span() token.Span { return n.Pos }

func (*ExprStmt) stmt()      {}
func (*DebugPrint) stmt()    {}
func (*EchoPrint) stmt()     {}
func (*Break) stmt()         {}
func (*Next) stmt()          {}
func (*PointerAssign) stmt() {}
