// Package libraryregistry scans a directory for plugin shared libraries
// at startup and computes each one's default attribute set. It is
// read-only after Load returns; ids are dense and zero-based in
// discovery order.
package libraryregistry

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"go.uber.org/zap"

	"github.com/kpal-project/kpal/internal/abi"
	"github.com/kpal-project/kpal/internal/executor"
	"github.com/kpal-project/kpal/internal/kerrors"
	"github.com/kpal-project/kpal/pkg/models"
)

// Loader opens a shared library and constructs throwaway plugin
// instances from it, the seam internal/abi.Handle/abi.Plugin implement
// for real and a test fake can implement without cgo.
type Loader interface {
	Open(path string) (Opened, error)
}

// Opened is a successfully dlopen'd library, able to produce plugin
// instances via its discovery symbol.
type Opened interface {
	NewPlugin() (executor.VTable, error)
}

// Registry is the process-lifetime, read-only-after-load set of loaded
// libraries.
type Registry struct {
	libraries []models.Library
	byID      map[uint64]models.Library
}

// Load scans dir for files with the platform dynamic-library extension
// (".dylib" on macOS, ".so" elsewhere), opens each via loader, runs discovery on a throwaway plugin
// instance to compute its default attribute set, then frees the
// throwaway instance. Libraries that fail to load or whose discovery
// fails are logged and skipped.
func Load(dir string, loader Loader, logger *zap.Logger) (*Registry, error) {
	paths, err := findLibraries(dir)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.InternalError, "scanning library directory", err)
	}

	r := &Registry{byID: make(map[uint64]models.Library)}
	var nextID uint64
	for _, path := range paths {
		lib, ok := loadOne(path, nextID, loader, logger)
		if !ok {
			continue
		}
		r.libraries = append(r.libraries, lib)
		r.byID[lib.ID] = lib
		nextID++
	}
	return r, nil
}

func findLibraries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	ext := ".so"
	if runtime.GOOS == "darwin" {
		ext = ".dylib"
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ext {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func loadOne(path string, id uint64, loader Loader, logger *zap.Logger) (models.Library, bool) {
	opened, err := loader.Open(path)
	if err != nil {
		logger.Warn("failed to open plugin library", zap.String("path", path), zap.Error(err))
		return models.Library{}, false
	}

	vt, err := opened.NewPlugin()
	if err != nil {
		logger.Warn("failed to construct plugin instance", zap.String("path", path), zap.Error(err))
		return models.Library{}, false
	}
	defer vt.Free()

	attrs, err := discoverDefaultAttributes(vt)
	if err != nil {
		logger.Warn("failed to discover plugin attributes", zap.String("path", path), zap.Error(err))
		return models.Library{}, false
	}

	return models.Library{
		ID:                id,
		Name:              filepath.Base(path),
		Path:              path,
		DefaultAttributes: attrs,
	}, true
}

// discoverDefaultAttributes mirrors the discovery half of
// internal/executor's startup sequence, run here against a throwaway
// instance that is freed immediately after.
func discoverDefaultAttributes(vt executor.VTable) (map[uint64]models.Attribute, error) {
	count, err := vt.AttributeCount()
	if err != nil {
		return nil, err
	}
	ids, err := vt.AttributeIDs(count)
	if err != nil {
		return nil, err
	}
	attrs := make(map[uint64]models.Attribute, len(ids))
	for _, id := range ids {
		name, err := vt.AttributeName(id)
		if err != nil {
			continue
		}
		preInit, err := vt.AttributePreInit(id)
		if err != nil {
			continue
		}
		value, err := vt.AttributeValue(id, 0)
		if err != nil {
			continue
		}
		attrs[id] = models.Attribute{ID: id, Name: name, PreInit: preInit, Value: value}
	}
	return attrs, nil
}

// NewWithLibraries builds a Registry directly from an already-known
// library list, bypassing directory scanning. Used by tests (and by any
// future transport that discovers libraries some other way) that need a
// Registry without dlopen-ing a real directory.
func NewWithLibraries(libs []models.Library) *Registry {
	r := &Registry{byID: make(map[uint64]models.Library, len(libs))}
	for _, lib := range libs {
		r.libraries = append(r.libraries, lib)
		r.byID[lib.ID] = lib
	}
	return r
}

// Get returns one library by id.
func (r *Registry) Get(id uint64) (models.Library, error) {
	lib, ok := r.byID[id]
	if !ok {
		return models.Library{}, kerrors.New(kerrors.ResourceNotFound, "library does not exist")
	}
	return lib, nil
}

// List returns all loaded libraries, ordered by id.
func (r *Registry) List() []models.Library {
	out := make([]models.Library, len(r.libraries))
	copy(out, r.libraries)
	return out
}

// abiLoader adapts internal/abi's real dlopen path to the Loader seam.
type abiLoader struct{}

// NewLoader returns the production Loader backed by internal/abi.
func NewLoader() Loader { return abiLoader{} }

func (abiLoader) Open(path string) (Opened, error) {
	h, err := abi.OpenLibrary(path)
	if err != nil {
		return nil, err
	}
	return abiOpened{h: h}, nil
}

type abiOpened struct{ h *abi.Handle }

func (o abiOpened) NewPlugin() (executor.VTable, error) {
	return o.h.NewPlugin()
}
