package value

import "strings"

// Array is an ordered sequence of heap handles. Arrays are always accessed
// through a handle so that assignment aliases rather than copies (see
// Heap.ShallowCopy).
type Array struct {
	Elems []Handle
}

// NewArray returns an array referencing the given element handles. Callers
// must not subsequently reuse the slice.
func NewArray(elems []Handle) *Array { return &Array{Elems: elems} }

func (a *Array) Type() string { return "array" }
func (a *Array) Truth() bool  { return len(a.Elems) > 0 }

// String and Display require a Heap to resolve element handles; use
// Heap.Format instead. These satisfy the Value interface for callers that
// only need the type tag, and fall back to a placeholder otherwise.
func (a *Array) String() string  { return "[array]" }
func (a *Array) Display() string { return "[array]" }

var _ Value = (*Array)(nil)

// formatArray renders an array's debug or display form by resolving each
// element through h.
func formatArray(h *Heap, a *Array, debug bool) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, eh := range a.Elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		v := h.Deref(eh)
		if debug {
			sb.WriteString(v.String())
		} else {
			sb.WriteString(v.Display())
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
