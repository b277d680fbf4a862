package plugintest

import (
	"testing"

	"github.com/kpal-project/kpal/pkg/models"
	"github.com/kpal-project/kpal/pkg/plugin"
)

// VTable is the method set TestVTableContract drives. It is declared
// locally, structurally matching internal/executor.VTable, so that
// neither this package nor its callers need to import internal/executor
// just to name the interface satisfied by *Fake and *internal/abi.Plugin
// alike.
type VTable interface {
	Free()
	Init() error
	AttributeCount() (int, error)
	AttributeIDs(count int) ([]uint64, error)
	AttributeName(id uint64) (string, error)
	AttributePreInit(id uint64) (bool, error)
	AttributeValue(id uint64, phase plugin.Phase) (models.Value, error)
	SetAttributeValue(id uint64, v models.Value, phase plugin.Phase) error
}

// TestVTableContract runs a suite of behavioral checks against any
// VTable implementation: attribute discovery is self-consistent, Init
// succeeds, and a value written back through SetAttributeValue reads
// back unchanged. Call this from each implementation's own test file:
//
//	func TestContract(t *testing.T) {
//	    plugintest.TestVTableContract(t, func() plugintest.VTable { return plugintest.NewDemo() })
//	}
func TestVTableContract(t *testing.T, factory func() VTable) {
	t.Helper()

	t.Run("AttributeCount_matches_AttributeIDs", func(t *testing.T) {
		vt := factory()
		defer vt.Free()
		count, err := vt.AttributeCount()
		if err != nil {
			t.Fatalf("AttributeCount() error = %v", err)
		}
		ids, err := vt.AttributeIDs(count)
		if err != nil {
			t.Fatalf("AttributeIDs() error = %v", err)
		}
		if len(ids) != count {
			t.Errorf("AttributeIDs() returned %d ids, want %d", len(ids), count)
		}
	})

	t.Run("every_id_has_a_name_and_an_init_phase_value", func(t *testing.T) {
		vt := factory()
		defer vt.Free()
		for _, id := range discoverIDs(t, vt) {
			if _, err := vt.AttributeName(id); err != nil {
				t.Errorf("AttributeName(%d) error = %v", id, err)
			}
			if _, err := vt.AttributePreInit(id); err != nil {
				t.Errorf("AttributePreInit(%d) error = %v", id, err)
			}
			if _, err := vt.AttributeValue(id, plugin.InitPhase); err != nil {
				t.Errorf("AttributeValue(%d, InitPhase) error = %v", id, err)
			}
		}
	})

	t.Run("Init_succeeds", func(t *testing.T) {
		vt := factory()
		defer vt.Free()
		if err := vt.Init(); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
	})

	t.Run("set_attribute_value_round_trips", func(t *testing.T) {
		vt := factory()
		defer vt.Free()
		if err := vt.Init(); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		for _, id := range discoverIDs(t, vt) {
			before, err := vt.AttributeValue(id, plugin.RunPhase)
			if err != nil {
				t.Fatalf("AttributeValue(%d, RunPhase) error = %v", id, err)
			}
			if err := vt.SetAttributeValue(id, before, plugin.RunPhase); err != nil {
				// A constant or callback-guarded attribute may
				// legitimately refuse a set; that is not a
				// contract violation.
				continue
			}
			after, err := vt.AttributeValue(id, plugin.RunPhase)
			if err != nil {
				t.Fatalf("AttributeValue(%d, RunPhase) error = %v", id, err)
			}
			if after != before {
				t.Errorf("attribute %d: wrote %v, read back %v", id, before, after)
			}
		}
	})

	t.Run("Free_is_safe_to_call_once", func(t *testing.T) {
		factory().Free()
	})
}

func discoverIDs(t *testing.T, vt VTable) []uint64 {
	t.Helper()
	count, err := vt.AttributeCount()
	if err != nil {
		t.Fatalf("AttributeCount() error = %v", err)
	}
	ids, err := vt.AttributeIDs(count)
	if err != nil {
		t.Fatalf("AttributeIDs() error = %v", err)
	}
	return ids
}
