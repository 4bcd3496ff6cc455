package ast

import "github.com/mna/glacier/lang/token"

type (
	// Int is an integer literal. Value is the raw source text, parsed by the
	// compiler.
	Int struct {
		Value string
		Pos   token.Span
	}

	// Float is a floating-point literal. Value is the raw source text, parsed
	// by the compiler.
	Float struct {
		Value string
		Pos   token.Span
	}

	// String is a string literal. Value is already unescaped.
	String struct {
		Value string
		Pos   token.Span
	}

	// Bool is a boolean literal.
	Bool struct {
		Value bool
		Pos   token.Span
	}

	// Array is an array literal.
	Array struct {
		Values []Expr
		Pos    token.Span
	}

	// GetVar reads the value currently bound to Name.
	GetVar struct {
		Name string
		Pos  token.Span
	}

	// SetVar assigns Value to Name, declaring it in the innermost scope if
	// no open scope binds it yet; otherwise the existing binding is
	// updated. The expression evaluates to the assigned value.
	SetVar struct {
		Name  string
		Value Expr
		Pos   token.Span
	}

	// Infix applies a binary Operator to Left and Right. Operator is one of
	// "+", "-", "*", "/", "%", "**", "==", "!=", "<", "<=", ">", ">=", "&&",
	// "||".
	Infix struct {
		Left     Expr
		Operator string
		Right    Expr
		Pos      token.Span
	}

	// Prefix applies a unary Operator ("-" or "!") to Right.
	Prefix struct {
		Operator string
		Right    Expr
		Pos      token.Span
	}

	// Index reads an element of Callee (an array or a string) at position
	// Index.
	Index struct {
		Callee Expr
		Index  Expr
		Pos    token.Span
	}

	// If evaluates Cond; if truthy it evaluates Body and yields its last
	// expression value, otherwise it evaluates Other. Either branch may be
	// empty, in which case it yields null.
	If struct {
		Cond  Expr
		Body  Program
		Other Program
		Pos   token.Span
	}

	// While repeatedly evaluates Cond and, while truthy, evaluates Body. The
	// expression always yields null.
	While struct {
		Cond Expr
		Body Program
		Pos  token.Span
	}

	// Do evaluates Body in a nested scope and yields its last expression
	// value, or null if Body is empty.
	Do struct {
		Body Program
		Pos  token.Span
	}
)

func (n *Int) Span() token.Span    { return n.Pos }
func (n *Float) Span() token.Span  { return n.Pos }
func (n *String) Span() token.Span { return n.Pos }
func (n *Bool) Span() token.Span   { return n.Pos }
func (n *Array) Span() token.Span  { return n.Pos }
func (n *GetVar) Span() token.Span { return n.Pos }
func (n *SetVar) Span() token.Span { return n.Pos }
func (n *Infix) Span() token.Span  { return n.Pos }
func (n *Prefix) Span() token.Span { return n.Pos }
func (n *Index) Span() token.Span  { return n.Pos }
func (n *If) Span() token.Span     { return n.Pos }
func (n *While) Span() token.Span  { return n.Pos }
func (n *Do) Span() token.Span     { return n.Pos }

func (*Int) expr()    {}
func (*Float) expr()  {}
func (*String) expr() {}
func (*Bool) expr()   {}
func (*Array) expr()  {}
func (*GetVar) expr() {}
func (*SetVar) expr() {}
func (*Infix) expr()  {}
func (*Prefix) expr() {}
func (*Index) expr()  {}
func (*If) expr()     {}
func (*While) expr()  {}
func (*Do) expr()     {}
