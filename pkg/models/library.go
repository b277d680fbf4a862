package models

import "encoding/json"

// Library describes one loaded plugin shared-library, created once at
// startup. The default attribute set is what a fresh
// peripheral from this library starts with before any pre-init overrides.
type Library struct {
	ID                 uint64               `json:"id" example:"0"`
	Name               string               `json:"name" example:"libkpal_demo.so"`
	Path               string               `json:"path" example:"/home/user/.kpal/peripherals/libkpal_demo.so"`
	DefaultAttributes  map[uint64]Attribute `json:"-"`
}

// DefaultAttributeList returns the library's default attributes ordered by ID.
func (l Library) DefaultAttributeList() []Attribute {
	out := make([]Attribute, 0, len(l.DefaultAttributes))
	for _, a := range l.DefaultAttributes {
		out = append(out, a)
	}
	sortAttributesByID(out)
	return out
}

// MarshalJSON emits default_attributes as an ID-ordered array.
func (l Library) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID                uint64      `json:"id"`
		Name              string      `json:"name"`
		Path              string      `json:"path"`
		DefaultAttributes []Attribute `json:"default_attributes"`
	}
	return json.Marshal(wire{
		ID:                l.ID,
		Name:              l.Name,
		Path:              l.Path,
		DefaultAttributes: l.DefaultAttributeList(),
	})
}
