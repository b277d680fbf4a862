// Package plugintest provides an in-process fake plugin vtable, built
// from Go closures, for testing code that drives a plugin.Phase-aware
// vtable without a real cgo/dlopen-loaded shared library. It mirrors
// original_source's Rust #[cfg(test)] mock vtable in
// src/plugins/executor/mod.rs.
package plugintest

import (
	"fmt"
	"sync"

	"github.com/kpal-project/kpal/pkg/models"
	"github.com/kpal-project/kpal/pkg/plugin"
)

// AttributeDef describes one attribute a Fake exposes, including its
// per-phase callback policy. Get/Set are only
// consulted for CallbackGetAndSet; Constant/Update are handled directly
// against Value.
type AttributeDef struct {
	ID      uint64
	Name    string
	PreInit bool
	Value   models.Value

	InitCallback plugin.CallbackKind
	RunCallback  plugin.CallbackKind
	Get          func(cached models.Value) (models.Value, error)
	Set          func(cached models.Value, v models.Value) error
}

// Fake is an in-process stand-in for a loaded plugin instance. It
// implements the same method set as internal/abi.Plugin (see
// internal/executor.VTable) without any cgo involved.
type Fake struct {
	mu         sync.Mutex
	attrs      map[uint64]AttributeDef
	ids        []uint64
	freed      bool
	FreeCalls  int
	InitCalls  int
	InitErr    error
	FailAll    bool // when true, every attribute call returns UndefinedErr (Free and Init are unaffected)
}

// New builds a Fake from an ordered attribute set.
func New(defs ...AttributeDef) *Fake {
	f := &Fake{attrs: make(map[uint64]AttributeDef)}
	for _, d := range defs {
		f.attrs[d.ID] = d
		f.ids = append(f.ids, d.ID)
	}
	return f
}

type fakeError struct {
	code int32
	msg  string
}

func (e *fakeError) Error() string { return fmt.Sprintf("plugin error %d: %s", e.code, e.msg) }

// PluginCode lets callers classify a Fake's errors the same way they
// would classify internal/abi.Error, without either package depending
// on the other.
func (e *fakeError) PluginCode() int32 { return e.code }

func (f *Fake) Free() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freed = true
	f.FreeCalls++
}

func (f *Fake) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitCalls++
	return f.InitErr
}

func (f *Fake) AttributeCount() (int, error) {
	if f.FailAll {
		return 0, &fakeError{code: 1, msg: "undefined"}
	}
	return len(f.ids), nil
}

func (f *Fake) AttributeIDs(count int) ([]uint64, error) {
	if f.FailAll {
		return nil, &fakeError{code: 1, msg: "undefined"}
	}
	out := make([]uint64, len(f.ids))
	copy(out, f.ids)
	return out, nil
}

func (f *Fake) AttributeName(id uint64) (string, error) {
	if f.FailAll {
		return "", &fakeError{code: 1, msg: "undefined"}
	}
	d, ok := f.attrs[id]
	if !ok {
		return "", &fakeError{code: 4, msg: "attribute does not exist"}
	}
	return d.Name, nil
}

func (f *Fake) AttributePreInit(id uint64) (bool, error) {
	if f.FailAll {
		return false, &fakeError{code: 1, msg: "undefined"}
	}
	d, ok := f.attrs[id]
	if !ok {
		return false, &fakeError{code: 4, msg: "attribute does not exist"}
	}
	return d.PreInit, nil
}

func (f *Fake) AttributeValue(id uint64, phase plugin.Phase) (models.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailAll {
		return models.Value{}, &fakeError{code: 1, msg: "undefined"}
	}
	d, ok := f.attrs[id]
	if !ok {
		return models.Value{}, &fakeError{code: 4, msg: "attribute does not exist"}
	}
	kind := f.callbackFor(d, phase)
	if kind == plugin.CallbackGetAndSet && d.Get != nil {
		v, err := d.Get(d.Value)
		if err != nil {
			return models.Value{}, &fakeError{code: 10, msg: err.Error()}
		}
		return v, nil
	}
	return d.Value, nil
}

func (f *Fake) SetAttributeValue(id uint64, v models.Value, phase plugin.Phase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailAll {
		return &fakeError{code: 1, msg: "undefined"}
	}
	d, ok := f.attrs[id]
	if !ok {
		return &fakeError{code: 4, msg: "attribute does not exist"}
	}
	if !d.Value.SameKind(v) && d.Value.Kind != "" {
		return &fakeError{code: 5, msg: "attribute type mismatch"}
	}
	kind := f.callbackFor(d, phase)
	switch kind {
	case plugin.CallbackConstant:
		return &fakeError{code: 6, msg: "attribute cannot be set"}
	case plugin.CallbackGetAndSet:
		if d.Set != nil {
			if err := d.Set(d.Value, v); err != nil {
				return &fakeError{code: 10, msg: err.Error()}
			}
		}
		d.Value = v
		f.attrs[id] = d
		return nil
	default: // CallbackUpdate
		d.Value = v
		f.attrs[id] = d
		return nil
	}
}

func (f *Fake) callbackFor(d AttributeDef, phase plugin.Phase) plugin.CallbackKind {
	if phase == plugin.InitPhase {
		return d.InitCallback
	}
	return d.RunCallback
}

// Freed reports whether Free has been called at least once, for
// assertions that executor termination ran plugin_free; FreeCalls holds
// the exact count.
func (f *Fake) Freed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.freed
}
