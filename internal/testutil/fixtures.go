package testutil

import (
	"github.com/kpal-project/kpal/pkg/models"
)

// NewAttribute returns an Attribute with sensible defaults, suitable
// for test fixtures. Override individual fields after creation, or
// via the With* options.
func NewAttribute(id uint64, opts ...func(*models.Attribute)) models.Attribute {
	a := models.Attribute{
		ID:      id,
		Name:    "test_attribute",
		PreInit: false,
		Value:   models.NewInt(0),
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// WithAttributeName sets the attribute name.
func WithAttributeName(name string) func(*models.Attribute) {
	return func(a *models.Attribute) { a.Name = name }
}

// WithAttributeValue sets the attribute value.
func WithAttributeValue(v models.Value) func(*models.Attribute) {
	return func(a *models.Attribute) { a.Value = v }
}

// WithPreInit marks the attribute settable before plugin_init.
func WithPreInit(preInit bool) func(*models.Attribute) {
	return func(a *models.Attribute) { a.PreInit = preInit }
}

// NewPeripheral returns a Peripheral with sensible defaults.
func NewPeripheral(id, libraryID uint64, opts ...func(*models.Peripheral)) models.Peripheral {
	p := models.Peripheral{
		ID:        id,
		LibraryID: libraryID,
		Name:      "test-peripheral",
		Attributes: map[uint64]models.Attribute{
			0: NewAttribute(0),
		},
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithPeripheralName sets the peripheral name.
func WithPeripheralName(name string) func(*models.Peripheral) {
	return func(p *models.Peripheral) { p.Name = name }
}

// WithAttributes replaces the peripheral's attribute set.
func WithAttributes(attrs ...models.Attribute) func(*models.Peripheral) {
	return func(p *models.Peripheral) {
		p.Attributes = make(map[uint64]models.Attribute, len(attrs))
		for _, a := range attrs {
			p.Attributes[a.ID] = a
		}
	}
}

// NewLibrary returns a Library with sensible defaults.
func NewLibrary(id uint64, opts ...func(*models.Library)) models.Library {
	l := models.Library{
		ID:   id,
		Name: "libtest.so",
		Path: "/etc/kpal/plugins/libtest.so",
		DefaultAttributes: map[uint64]models.Attribute{
			0: NewAttribute(0),
		},
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// WithLibraryPath sets the library's filesystem path.
func WithLibraryPath(path string) func(*models.Library) {
	return func(l *models.Library) { l.Path = path }
}

// WithDefaultAttributes replaces the library's default attribute set.
func WithDefaultAttributes(attrs ...models.Attribute) func(*models.Library) {
	return func(l *models.Library) {
		l.DefaultAttributes = make(map[uint64]models.Attribute, len(attrs))
		for _, a := range attrs {
			l.DefaultAttributes[a.ID] = a
		}
	}
}
