package models

import "encoding/json"

// Peripheral is a live instance bound to one plugin, identified by ID.
// The authoritative copy lives inside the owning executor goroutine;
// everything else in the process only ever sees a Clone of it.
type Peripheral struct {
	ID         uint64               `json:"id" example:"0"`
	LibraryID  uint64               `json:"library_id" example:"0"`
	Name       string               `json:"name" example:"foo"`
	Attributes map[uint64]Attribute `json:"-"`
}

// AttributeList returns the peripheral's attributes ordered by ID, for
// deterministic iteration.
func (p Peripheral) AttributeList() []Attribute {
	out := make([]Attribute, 0, len(p.Attributes))
	for _, a := range p.Attributes {
		out = append(out, a)
	}
	sortAttributesByID(out)
	return out
}

// MarshalJSON emits attributes as an ID-ordered array instead of the
// unordered map used internally, so the wire representation is stable.
func (p Peripheral) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID         uint64      `json:"id"`
		LibraryID  uint64      `json:"library_id"`
		Name       string      `json:"name"`
		Attributes []Attribute `json:"attributes"`
	}
	return json.Marshal(wire{
		ID:         p.ID,
		LibraryID:  p.LibraryID,
		Name:       p.Name,
		Attributes: p.AttributeList(),
	})
}

// Clone returns a deep copy of p, safe to hand to a caller outside the
// owning executor goroutine.
func (p Peripheral) Clone() Peripheral {
	attrs := make(map[uint64]Attribute, len(p.Attributes))
	for id, a := range p.Attributes {
		attrs[id] = a.Clone()
	}
	return Peripheral{ID: p.ID, LibraryID: p.LibraryID, Name: p.Name, Attributes: attrs}
}

func sortAttributesByID(attrs []Attribute) {
	// Insertion sort: attribute counts per peripheral are small (single
	// or low double digits), and this keeps the package free of an
	// extra import for what is otherwise a one-line sort.Slice call.
	for i := 1; i < len(attrs); i++ {
		for j := i; j > 0 && attrs[j].ID < attrs[j-1].ID; j-- {
			attrs[j], attrs[j-1] = attrs[j-1], attrs[j]
		}
	}
}
