package maincmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mna/glacier/lang/ast"
	"github.com/mna/glacier/lang/token"
)

// document is the interchange form produced by the surface parser: the
// original source text, kept for error citation, and the program's
// syntax tree.
type document struct {
	Source  string  `json:"source"`
	Program []*node `json:"program"`

	prog ast.Program
}

// node is one syntax tree node; Type selects which of the other fields
// are meaningful. Literal nodes carry their payload in Value as a JSON
// string or boolean; set_var and pointer_assign carry the assigned
// expression there as a nested node.
type node struct {
	Type     string          `json:"type"`
	Pos      [2]int          `json:"pos"`
	Value    json.RawMessage `json:"value,omitempty"`
	Values   []*node         `json:"values,omitempty"`
	Name     string          `json:"name,omitempty"`
	Operator string          `json:"operator,omitempty"`
	Left     *node           `json:"left,omitempty"`
	Right    *node           `json:"right,omitempty"`
	Expr     *node           `json:"expr,omitempty"`
	Cond     *node           `json:"cond,omitempty"`
	Callee   *node           `json:"callee,omitempty"`
	Index    *node           `json:"index,omitempty"`
	Ptr      *node           `json:"ptr,omitempty"`
	Body     []*node         `json:"body,omitempty"`
	Other    []*node         `json:"other,omitempty"`
}

func readDocument(path string) (*document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	prog, err := decodeProgram(doc.Program)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.prog = prog
	return &doc, nil
}

func decodeProgram(ns []*node) (ast.Program, error) {
	prog := make(ast.Program, 0, len(ns))
	for _, n := range ns {
		s, err := decodeStmt(n)
		if err != nil {
			return nil, err
		}
		prog = append(prog, s)
	}
	return prog, nil
}

func span(n *node) token.Span {
	return token.Span{Start: token.Pos(n.Pos[0]), End: token.Pos(n.Pos[1])}
}

func decodeStmt(n *node) (ast.Stmt, error) {
	if n == nil {
		return nil, fmt.Errorf("missing statement node")
	}
	switch n.Type {
	case "expr_stmt":
		e, err := decodeExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Expr: e, Pos: span(n)}, nil

	case "debug_print":
		e, err := decodeExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		return &ast.DebugPrint{Expr: e, Pos: span(n)}, nil

	case "echo_print":
		e, err := decodeExpr(n.Expr)
		if err != nil {
			return nil, err
		}
		return &ast.EchoPrint{Expr: e, Pos: span(n)}, nil

	case "break":
		return &ast.Break{Pos: span(n)}, nil

	case "next":
		return &ast.Next{Pos: span(n)}, nil

	case "pointer_assign":
		ptr, err := decodeExpr(n.Ptr)
		if err != nil {
			return nil, err
		}
		idx, ok := ptr.(*ast.Index)
		if !ok {
			return nil, fmt.Errorf("pointer_assign target must be an index expression")
		}
		vn, err := nodeValue(n)
		if err != nil {
			return nil, err
		}
		v, err := decodeExpr(vn)
		if err != nil {
			return nil, err
		}
		return &ast.PointerAssign{Ptr: idx, Value: v, Pos: span(n)}, nil

	default:
		return nil, fmt.Errorf("unknown statement type: %q", n.Type)
	}
}

func decodeExpr(n *node) (ast.Expr, error) {
	if n == nil {
		return nil, fmt.Errorf("missing expression node")
	}
	switch n.Type {
	case "int":
		s, err := stringValue(n)
		if err != nil {
			return nil, err
		}
		return &ast.Int{Value: s, Pos: span(n)}, nil

	case "float":
		s, err := stringValue(n)
		if err != nil {
			return nil, err
		}
		return &ast.Float{Value: s, Pos: span(n)}, nil

	case "string":
		s, err := stringValue(n)
		if err != nil {
			return nil, err
		}
		return &ast.String{Value: s, Pos: span(n)}, nil

	case "bool":
		var b bool
		if err := json.Unmarshal(n.Value, &b); err != nil {
			return nil, fmt.Errorf("bool node: %w", err)
		}
		return &ast.Bool{Value: b, Pos: span(n)}, nil

	case "array":
		vals := make([]ast.Expr, 0, len(n.Values))
		for _, vn := range n.Values {
			v, err := decodeExpr(vn)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return &ast.Array{Values: vals, Pos: span(n)}, nil

	case "get_var":
		return &ast.GetVar{Name: n.Name, Pos: span(n)}, nil

	case "set_var":
		vn, err := nodeValue(n)
		if err != nil {
			return nil, err
		}
		v, err := decodeExpr(vn)
		if err != nil {
			return nil, err
		}
		return &ast.SetVar{Name: n.Name, Value: v, Pos: span(n)}, nil

	case "infix":
		l, err := decodeExpr(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := decodeExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return &ast.Infix{Left: l, Operator: n.Operator, Right: r, Pos: span(n)}, nil

	case "prefix":
		r, err := decodeExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return &ast.Prefix{Operator: n.Operator, Right: r, Pos: span(n)}, nil

	case "index":
		c, err := decodeExpr(n.Callee)
		if err != nil {
			return nil, err
		}
		i, err := decodeExpr(n.Index)
		if err != nil {
			return nil, err
		}
		return &ast.Index{Callee: c, Index: i, Pos: span(n)}, nil

	case "if":
		cond, err := decodeExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := decodeProgram(n.Body)
		if err != nil {
			return nil, err
		}
		other, err := decodeProgram(n.Other)
		if err != nil {
			return nil, err
		}
		return &ast.If{Cond: cond, Body: body, Other: other, Pos: span(n)}, nil

	case "while":
		cond, err := decodeExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := decodeProgram(n.Body)
		if err != nil {
			return nil, err
		}
		return &ast.While{Cond: cond, Body: body, Pos: span(n)}, nil

	case "do":
		body, err := decodeProgram(n.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Do{Body: body, Pos: span(n)}, nil

	default:
		return nil, fmt.Errorf("unknown expression type: %q", n.Type)
	}
}

func stringValue(n *node) (string, error) {
	var s string
	if err := json.Unmarshal(n.Value, &s); err != nil {
		return "", fmt.Errorf("%s node: %w", n.Type, err)
	}
	return s, nil
}

func nodeValue(n *node) (*node, error) {
	var vn node
	if err := json.Unmarshal(n.Value, &vn); err != nil {
		return nil, fmt.Errorf("%s node: %w", n.Type, err)
	}
	return &vn, nil
}
