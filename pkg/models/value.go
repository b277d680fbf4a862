package models

import "fmt"

// ValueKind discriminates the variants of Value.
type ValueKind string

const (
	ValueInt    ValueKind = "int"
	ValueUint   ValueKind = "uint"
	ValueDouble ValueKind = "double"
	ValueString ValueKind = "string"
)

// Value is the host-owned tagged union carried by an Attribute. Exactly one
// of the typed fields is meaningful, selected by Kind; String owns its
// bytes (unlike the borrowed form crossing the plugin ABI, see
// internal/abi.Val).
type Value struct {
	Kind   ValueKind `json:"kind"`
	Int    int32     `json:"int,omitempty"`
	Uint   uint32    `json:"uint,omitempty"`
	Double float64   `json:"double,omitempty"`
	String string    `json:"string,omitempty"`
}

func NewInt(v int32) Value    { return Value{Kind: ValueInt, Int: v} }
func NewUint(v uint32) Value  { return Value{Kind: ValueUint, Uint: v} }
func NewDouble(v float64) Value { return Value{Kind: ValueDouble, Double: v} }
func NewString(v string) Value { return Value{Kind: ValueString, String: v} }

// SameKind reports whether v and other carry the same variant, the
// condition a set must satisfy or be rejected as a type mismatch.
func (v Value) SameKind(other Value) bool {
	return v.Kind == other.Kind
}

// Describe renders v for logging; unlike Stringer it cannot be named
// String() because Value already has a String field.
func (v Value) Describe() string {
	switch v.Kind {
	case ValueInt:
		return fmt.Sprintf("Int(%d)", v.Int)
	case ValueUint:
		return fmt.Sprintf("Uint(%d)", v.Uint)
	case ValueDouble:
		return fmt.Sprintf("Double(%g)", v.Double)
	case ValueString:
		return fmt.Sprintf("String(%q)", v.String)
	default:
		return "Value(invalid)"
	}
}
