package executor_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kpal-project/kpal/internal/executor"
	"github.com/kpal-project/kpal/internal/kerrors"
	"github.com/kpal-project/kpal/pkg/models"
	"github.com/kpal-project/kpal/pkg/plugin/plugintest"
)

func newTestExecutor(t *testing.T, vt *plugintest.Fake, preInit map[uint64]models.Value) *executor.Executor {
	t.Helper()
	e, err := executor.New(vt, executor.Spec{
		PeripheralID: 0,
		LibraryID:    0,
		Name:         "foo",
		PreInit:      preInit,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("executor.New() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func ctx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDiscoverAttributes(t *testing.T) {
	vt := plugintest.NewDemo()
	e := newTestExecutor(t, vt, nil)

	attrs, err := e.GetAttributes(ctx(t))
	if err != nil {
		t.Fatalf("GetAttributes() error = %v", err)
	}
	if len(attrs) != 4 {
		t.Fatalf("len(attrs) = %d, want 4", len(attrs))
	}
	if attrs[3].Name != "msg" || attrs[3].Value.String != "foobar" {
		t.Errorf("attrs[3] = %+v, want msg=foobar", attrs[3])
	}
}

func TestPatchAttribute_RoundTrip(t *testing.T) {
	vt := plugintest.NewDemo()
	e := newTestExecutor(t, vt, nil)

	got, err := e.PatchAttribute(ctx(t), 3, models.NewString("helloworld"))
	if err != nil {
		t.Fatalf("PatchAttribute() error = %v", err)
	}
	if got.Value.String != "helloworld" {
		t.Fatalf("got = %q, want helloworld", got.Value.String)
	}

	again, err := e.GetAttribute(ctx(t), 3)
	if err != nil {
		t.Fatalf("GetAttribute() error = %v", err)
	}
	if again.Value.String != "helloworld" {
		t.Fatalf("subsequent read = %q, want helloworld", again.Value.String)
	}
}

func TestPatchAttribute_TypeMismatch(t *testing.T) {
	vt := plugintest.NewDemo()
	e := newTestExecutor(t, vt, nil)

	_, err := e.PatchAttribute(ctx(t), 0, models.NewInt(42))
	if !kerrors.IsUnprocessableRequest(err) {
		t.Fatalf("err = %v, want UnprocessableRequest", err)
	}
}

func TestPreInit_AppliedBeforeInit(t *testing.T) {
	vt := plugintest.NewDemo()
	e := newTestExecutor(t, vt, map[uint64]models.Value{0: models.NewDouble(999.99)})

	attr, err := e.GetAttribute(ctx(t), 0)
	if err != nil {
		t.Fatalf("GetAttribute() error = %v", err)
	}
	if attr.Value.Double != 999.99 {
		t.Fatalf("attr.Value.Double = %v, want 999.99", attr.Value.Double)
	}
}

func TestAttributeDoesNotExist(t *testing.T) {
	vt := plugintest.NewDemo()
	e := newTestExecutor(t, vt, nil)

	_, err := e.GetAttribute(ctx(t), 99)
	if !kerrors.IsAttributeDoesNotExist(err) {
		t.Fatalf("err = %v, want AttributeDoesNotExist", err)
	}
}

func TestClose_FreesPlugin(t *testing.T) {
	vt := plugintest.NewDemo()
	// Built directly rather than through newTestExecutor, whose cleanup
	// would close the inbox a second time.
	e, err := executor.New(vt, executor.Spec{PeripheralID: 0, Name: "foo"}, zap.NewNop())
	if err != nil {
		t.Fatalf("executor.New() error = %v", err)
	}
	e.Close()
	time.Sleep(50 * time.Millisecond)
	if !vt.Freed() {
		t.Fatal("expected plugin_free to have been called after Close")
	}
}

func TestFailureIsolation(t *testing.T) {
	// A plugin that fails discovery entirely still leaves executor.New
	// returning a clean error rather than a half-started goroutine.
	vt := plugintest.New()
	vt.FailAll = true
	_, err := executor.New(vt, executor.Spec{PeripheralID: 0}, zap.NewNop())
	if err == nil {
		t.Fatal("expected an error from a fully-failing plugin")
	}
	if !vt.Freed() {
		t.Fatal("expected plugin_free on startup failure")
	}
}

func TestVTableContract(t *testing.T) {
	plugintest.TestVTableContract(t, func() plugintest.VTable { return plugintest.NewDemo() })
}
