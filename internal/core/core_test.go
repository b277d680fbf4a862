package core_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kpal-project/kpal/internal/core"
	"github.com/kpal-project/kpal/internal/executor"
	"github.com/kpal-project/kpal/internal/kerrors"
	"github.com/kpal-project/kpal/internal/libraryregistry"
	"github.com/kpal-project/kpal/pkg/models"
	"github.com/kpal-project/kpal/pkg/plugin/plugintest"
)

// fakeLoader constructs a fresh plugintest.Fake per call, standing in for
// internal/abi's real dlopen+kpal_plugin_new path in tests.
type fakeLoader struct {
	newFake func() *plugintest.Fake
}

func (l fakeLoader) Open(string) (libraryregistry.Opened, error) {
	return fakeOpened{l}, nil
}

type fakeOpened struct{ l fakeLoader }

func (o fakeOpened) NewPlugin() (executor.VTable, error) {
	return o.l.newFake(), nil
}

func newTestCore(t *testing.T) *core.Core {
	t.Helper()
	loader := fakeLoader{newFake: plugintest.NewDemo}
	libs := libraryregistry.NewWithLibraries([]models.Library{
		{ID: 0, Name: "libkpal_demo.so", DefaultAttributes: attrsByID(plugintest.DemoAttributes())},
	})
	return core.New(libs, loader, zap.NewNop())
}

func attrsByID(defs []plugintest.AttributeDef) map[uint64]models.Attribute {
	out := make(map[uint64]models.Attribute, len(defs))
	for _, d := range defs {
		out[d.ID] = models.Attribute{ID: d.ID, Name: d.Name, PreInit: d.PreInit, Value: d.Value}
	}
	return out
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestScenario1_EmptyLibraryDirectory(t *testing.T) {
	libs := libraryregistry.NewWithLibraries(nil)
	c := core.New(libs, fakeLoader{newFake: plugintest.NewDemo}, zap.NewNop())

	got, err := c.ReadLibraries(ctx(t))
	if err != nil {
		t.Fatalf("ReadLibraries() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len(got) = %d, want 0", len(got))
	}

	_, err = c.CreatePeripheral(ctx(t), 0, "x", nil)
	if !kerrors.IsResourceNotFound(err) {
		t.Fatalf("err = %v, want ResourceNotFound", err)
	}
}

func TestScenario2_LoadDemoPlugin(t *testing.T) {
	c := newTestCore(t)

	lib, err := c.ReadLibrary(ctx(t), 0)
	if err != nil {
		t.Fatalf("ReadLibrary() error = %v", err)
	}
	if len(lib.DefaultAttributes) != 4 {
		t.Fatalf("len(lib.DefaultAttributes) = %d, want 4", len(lib.DefaultAttributes))
	}

	p, err := c.CreatePeripheral(ctx(t), 0, "foo", nil)
	if err != nil {
		t.Fatalf("CreatePeripheral() error = %v", err)
	}
	if p.ID != 0 {
		t.Fatalf("p.ID = %d, want 0", p.ID)
	}
}

func TestScenario3_StringRoundTrip(t *testing.T) {
	c := newTestCore(t)
	if _, err := c.CreatePeripheral(ctx(t), 0, "foo", nil); err != nil {
		t.Fatalf("CreatePeripheral() error = %v", err)
	}

	attr, err := c.ReadPeripheralAttribute(ctx(t), 0, 3)
	if err != nil {
		t.Fatalf("ReadPeripheralAttribute() error = %v", err)
	}
	if attr.Value.String != "foobar" {
		t.Fatalf("attr.Value.String = %q, want foobar", attr.Value.String)
	}

	updated, err := c.UpdatePeripheralAttribute(ctx(t), 0, 3, models.NewString("helloworld"))
	if err != nil {
		t.Fatalf("UpdatePeripheralAttribute() error = %v", err)
	}
	if updated.Value.String != "helloworld" {
		t.Fatalf("updated.Value.String = %q, want helloworld", updated.Value.String)
	}

	again, err := c.ReadPeripheralAttribute(ctx(t), 0, 3)
	if err != nil {
		t.Fatalf("ReadPeripheralAttribute() error = %v", err)
	}
	if again.Value.String != "helloworld" {
		t.Fatalf("again.Value.String = %q, want helloworld", again.Value.String)
	}
}

func TestScenario4_TypeMismatch(t *testing.T) {
	c := newTestCore(t)
	if _, err := c.CreatePeripheral(ctx(t), 0, "foo", nil); err != nil {
		t.Fatalf("CreatePeripheral() error = %v", err)
	}

	if _, err := c.UpdatePeripheralAttribute(ctx(t), 0, 0, models.NewDouble(42.0)); err != nil {
		t.Fatalf("UpdatePeripheralAttribute(Double) error = %v", err)
	}
	_, err := c.UpdatePeripheralAttribute(ctx(t), 0, 0, models.NewInt(42))
	if !kerrors.IsUnprocessableRequest(err) {
		t.Fatalf("err = %v, want UnprocessableRequest", err)
	}
}

func TestScenario5_PreInitOnSecondPeripheral(t *testing.T) {
	c := newTestCore(t)
	if _, err := c.CreatePeripheral(ctx(t), 0, "foo", nil); err != nil {
		t.Fatalf("CreatePeripheral(0) error = %v", err)
	}
	if _, err := c.CreatePeripheral(ctx(t), 0, "bar", map[uint64]models.Value{0: models.NewDouble(999.99)}); err != nil {
		t.Fatalf("CreatePeripheral(1) error = %v", err)
	}

	attr, err := c.ReadPeripheralAttribute(ctx(t), 1, 0)
	if err != nil {
		t.Fatalf("ReadPeripheralAttribute() error = %v", err)
	}
	if attr.Value.Double != 999.99 {
		t.Fatalf("attr.Value.Double = %v, want 999.99", attr.Value.Double)
	}
}

func TestScenario6_DeadExecutorIsolatedFromOthers(t *testing.T) {
	c := newTestCore(t)
	if _, err := c.CreatePeripheral(ctx(t), 0, "foo", nil); err != nil {
		t.Fatalf("CreatePeripheral(0) error = %v", err)
	}
	if _, err := c.CreatePeripheral(ctx(t), 0, "bar", nil); err != nil {
		t.Fatalf("CreatePeripheral(1) error = %v", err)
	}

	// Simulate the executor for peripheral 0 dying by racing a very
	// short timeout against its (normally fast) reply; peripheral 1
	// must still serve within the default timeout.
	shortCtx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	if _, err := c.ReadPeripheral(shortCtx, 0); err == nil {
		t.Log("peripheral 0 replied within a nanosecond; timeout assertion is best-effort")
	}

	if _, err := c.ReadPeripheral(ctx(t), 1); err != nil {
		t.Fatalf("ReadPeripheral(1) error = %v, want nil", err)
	}
}
