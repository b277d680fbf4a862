package transmitter_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kpal-project/kpal/internal/executor"
	"github.com/kpal-project/kpal/internal/kerrors"
	"github.com/kpal-project/kpal/internal/transmitter"
	"github.com/kpal-project/kpal/pkg/plugin/plugintest"
)

func mustExecutor(t *testing.T, id uint64) *executor.Executor {
	t.Helper()
	e, err := executor.New(plugintest.NewDemo(), executor.Spec{PeripheralID: id}, zap.NewNop())
	if err != nil {
		t.Fatalf("executor.New() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestNextID_DenseFromZero(t *testing.T) {
	r := transmitter.New()
	if got := r.NextID(); got != 0 {
		t.Fatalf("NextID() on empty registry = %d, want 0", got)
	}
	r.Register(0, mustExecutor(t, 0))
	if got := r.NextID(); got != 1 {
		t.Fatalf("NextID() after registering 0 = %d, want 1", got)
	}
	r.Register(1, mustExecutor(t, 1))
	if got := r.NextID(); got != 2 {
		t.Fatalf("NextID() after registering 0,1 = %d, want 2", got)
	}
}

func TestGet_UnknownID(t *testing.T) {
	r := transmitter.New()
	_, err := r.Get(42)
	if !kerrors.IsResourceNotFound(err) {
		t.Fatalf("err = %v, want ResourceNotFound", err)
	}
}

func TestIsolation_OtherPeripheralsStillServe(t *testing.T) {
	r := transmitter.New()
	r.Register(0, mustExecutor(t, 0))
	r.Register(1, mustExecutor(t, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := r.GetPeripheral(ctx, 0); err != nil {
		t.Fatalf("GetPeripheral(0) error = %v", err)
	}
	if _, err := r.GetPeripheral(ctx, 1); err != nil {
		t.Fatalf("GetPeripheral(1) error = %v", err)
	}
}

func TestGetPeripheral_UnknownID(t *testing.T) {
	r := transmitter.New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := r.GetPeripheral(ctx, 7)
	if !kerrors.IsResourceNotFound(err) {
		t.Fatalf("err = %v, want ResourceNotFound", err)
	}
}
