// Package value defines the tagged value representation, the object heap
// and its garbage collector. Composite values reference their elements
// through heap handles, so the value types and the heap live in the same
// package to avoid a dependency cycle between them.
package value

import "strconv"

// Value is implemented by every runtime value variant: Null, Bool, Int,
// Float, String and *Array.
type Value interface {
	// String returns the debug representation (strings quoted). *Array
	// returns a placeholder; Heap.Format renders arrays with their elements.
	String() string
	// Display returns the display representation (strings unquoted).
	Display() string
	// Type names the variant, used in error messages.
	Type() string
	// Truth reports the value's boolean projection.
	Truth() bool
}

// Null is the singleton null value.
type Null struct{}

func (Null) String() string  { return "null" }
func (Null) Display() string { return "null" }
func (Null) Type() string    { return "null" }
func (Null) Truth() bool     { return false }

// Bool is a boolean value.
type Bool bool

func (b Bool) String() string  { return b.Display() }
func (b Bool) Display() string {
	if b {
		return "true"
	}
	return "false"
}
func (Bool) Type() string { return "bool" }
func (b Bool) Truth() bool { return bool(b) }

// Int is a 64-bit signed integer value.
type Int int64

func (i Int) String() string  { return i.Display() }
func (i Int) Display() string { return strconv.FormatInt(int64(i), 10) }
func (Int) Type() string      { return "int" }
func (i Int) Truth() bool     { return i != 0 }

// Float is a 64-bit IEEE floating point value.
type Float float64

func (f Float) String() string  { return f.Display() }
func (f Float) Display() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }
func (Float) Type() string      { return "float" }
func (f Float) Truth() bool     { return f != 0 }

// String is an immutable UTF-8 text value.
type String string

func (s String) String() string  { return strconv.Quote(string(s)) }
func (s String) Display() string { return string(s) }
func (String) Type() string      { return "string" }
func (s String) Truth() bool     { return len(s) > 0 }

var (
	_ Value = Null{}
	_ Value = Bool(false)
	_ Value = Int(0)
	_ Value = Float(0)
	_ Value = String("")
)
