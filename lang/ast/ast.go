// Package ast defines the abstract syntax tree consumed by the compiler.
// The surface parser that produces these nodes is not part of this module;
// tests build trees directly.
package ast

import "github.com/mna/glacier/lang/token"

// Node is implemented by every AST node.
type Node interface {
	// Span reports the half-open byte range of the node in the source.
	Span() token.Span
}

// Expr is implemented by every expression node.
type Expr interface {
	Node
	expr()
}

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	stmt()
}

// Program is an ordered sequence of statements, the unit the compiler
// consumes.
type Program []Stmt
