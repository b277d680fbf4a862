//go:build cgo_integration

// This file exercises internal/abi against the real cgo ABI, loading
// the compiled demo plugin the way kpald's libraryregistry does. Every
// other plugin-facing test in this repository drives plugintest.Fake
// instead, which
// never touches the C union layout valToC/valFromC depend on. It
// shells out to `go build -buildmode=c-shared`, so it is opt-in rather
// than part of the default `go test ./...` run:
//
//	go test -tags cgo_integration ./internal/abi/...
package abi_test

import (
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/kpal-project/kpal/internal/abi"
	"github.com/kpal-project/kpal/pkg/models"
	"github.com/kpal-project/kpal/pkg/plugin"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Join(filepath.Dir(file), "..", "..")
}

// buildDemoPlugin compiles cmd/kpal-demo-plugin into a shared library
// under t.TempDir, giving the test a real kpal_plugin_new symbol to
// dlopen instead of an in-process fake.
func buildDemoPlugin(t *testing.T) string {
	t.Helper()
	so := filepath.Join(t.TempDir(), "libkpal_demo.so")
	cmd := exec.Command("go", "build", "-buildmode=c-shared", "-o", so, "./cmd/kpal-demo-plugin")
	cmd.Dir = repoRoot(t)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("building demo plugin: %v\n%s", err, out)
	}
	return so
}

func loadDemoPlugin(t *testing.T) *abi.Plugin {
	t.Helper()
	h, err := abi.OpenLibrary(buildDemoPlugin(t))
	if err != nil {
		t.Fatalf("OpenLibrary: %v", err)
	}
	p, err := h.NewPlugin()
	if err != nil {
		t.Fatalf("NewPlugin: %v", err)
	}
	if err := p.Init(); err != nil {
		p.Free()
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(p.Free)
	return p
}

func findAttribute(t *testing.T, p *abi.Plugin, name string) uint64 {
	t.Helper()
	count, err := p.AttributeCount()
	if err != nil {
		t.Fatalf("AttributeCount: %v", err)
	}
	ids, err := p.AttributeIDs(count)
	if err != nil {
		t.Fatalf("AttributeIDs: %v", err)
	}
	for _, id := range ids {
		n, err := p.AttributeName(id)
		if err != nil {
			t.Fatalf("AttributeName(%d): %v", id, err)
		}
		if n == name {
			return id
		}
	}
	t.Fatalf("no attribute named %q", name)
	return 0
}

// TestStringRoundTripThroughRealABI writes a string attribute value
// through the real C union layout and reads it back, the path
// plugintest.Fake cannot exercise since it never touches valToC or
// valFromC. A regression that leaves valToC's KindString arm zeroed
// turns this into reading back "".
func TestStringRoundTripThroughRealABI(t *testing.T) {
	p := loadDemoPlugin(t)
	msgID := findAttribute(t, p, "msg")

	const want = "round trip through the real ABI"
	if err := p.SetAttributeValue(msgID, models.NewString(want), plugin.RunPhase); err != nil {
		t.Fatalf("SetAttributeValue: %v", err)
	}

	got, err := p.AttributeValue(msgID, plugin.RunPhase)
	if err != nil {
		t.Fatalf("AttributeValue: %v", err)
	}
	if got.Kind != models.ValueString || got.String != want {
		t.Fatalf("string round trip: got %+v, want String(%q)", got, want)
	}
}

// TestSetAttributeValueRejectsInteriorNUL exercises FromModel's
// host-boundary validation through the real vtable call path: the
// plugin must never see a value the ABI cannot represent, and the
// caller must see ConversionErr rather than a truncated write.
func TestSetAttributeValueRejectsInteriorNUL(t *testing.T) {
	p := loadDemoPlugin(t)
	msgID := findAttribute(t, p, "msg")

	err := p.SetAttributeValue(msgID, models.NewString("bad\x00value"), plugin.RunPhase)
	if err == nil {
		t.Fatal("SetAttributeValue: expected ConversionErr, got nil")
	}
	abiErr, ok := err.(*abi.Error)
	if !ok {
		t.Fatalf("SetAttributeValue: got %T, want *abi.Error", err)
	}
	if abiErr.Code != abi.ConversionErr {
		t.Fatalf("SetAttributeValue: got code %d, want ConversionErr", abiErr.Code)
	}
}
