// Package core implements the transport-agnostic API:
// create/read peripherals, read/update attributes, list libraries. Any
// transport (HTTP, a CLI, a test) is expected to call only these
// functions, never internal/transmitter or internal/executor directly.
package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kpal-project/kpal/internal/executor"
	"github.com/kpal-project/kpal/internal/kerrors"
	"github.com/kpal-project/kpal/internal/libraryregistry"
	"github.com/kpal-project/kpal/internal/metrics"
	"github.com/kpal-project/kpal/internal/transmitter"
	"github.com/kpal-project/kpal/pkg/models"
)

// DefaultRequestTimeout is the request timeout used unless
// WithRequestTimeout overrides it; it bounds each request sent to an
// executor. Library reads do not go through an executor and are not
// bounded by it.
const DefaultRequestTimeout = 5 * time.Second

// Notifier is called after a successful attribute update, decoupling
// core from any particular observer (internal/wsfeed subscribes one).
type Notifier interface {
	AttributeUpdated(peripheralID uint64, attr models.Attribute)
}

type noopNotifier struct{}

func (noopNotifier) AttributeUpdated(uint64, models.Attribute) {}

// Core wires the transmitter registry, library registry, and a plugin
// loader together behind a fixed set of eight operations.
type Core struct {
	libraries      *libraryregistry.Registry
	transmitters   *transmitter.Registry
	loader         libraryregistry.Loader
	requestTimeout time.Duration
	logger         *zap.Logger
	notifier       Notifier
	metrics        *metrics.Metrics

	// createMu serializes id allocation and registration, so concurrent
	// CreatePeripheral calls never share an id.
	createMu sync.Mutex
}

// Option customizes a Core at construction.
type Option func(*Core)

func WithRequestTimeout(d time.Duration) Option {
	return func(c *Core) { c.requestTimeout = d }
}

func WithNotifier(n Notifier) Option {
	return func(c *Core) { c.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Core) { c.metrics = m }
}

// New builds a Core over an already-loaded library registry.
func New(libraries *libraryregistry.Registry, loader libraryregistry.Loader, logger *zap.Logger, opts ...Option) *Core {
	c := &Core{
		libraries:      libraries,
		transmitters:   transmitter.New(),
		loader:         loader,
		requestTimeout: DefaultRequestTimeout,
		logger:         logger,
		notifier:       noopNotifier{},
		metrics:        metrics.NoOp(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Core) timeoutCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.requestTimeout)
}

// CreatePeripheral validates libraryID, allocates the next peripheral
// id, constructs a fresh plugin instance, starts its executor, and
// registers it. PreInit values are applied before plugin_init runs.
func (c *Core) CreatePeripheral(ctx context.Context, libraryID uint64, name string, preInit map[uint64]models.Value) (models.Peripheral, error) {
	lib, err := c.libraries.Get(libraryID)
	if err != nil {
		return models.Peripheral{}, err
	}

	opened, err := c.loader.Open(lib.Path)
	if err != nil {
		return models.Peripheral{}, kerrors.Wrap(kerrors.InternalError, "reopening library", err)
	}
	vt, err := opened.NewPlugin()
	if err != nil {
		return models.Peripheral{}, kerrors.Wrap(kerrors.InternalError, "constructing plugin instance", err)
	}

	c.createMu.Lock()
	id := c.transmitters.NextID()
	ex, err := executor.New(vt, executor.Spec{
		PeripheralID: id,
		LibraryID:    libraryID,
		Name:         name,
		PreInit:      preInit,
	}, c.logger)
	if err != nil {
		c.createMu.Unlock()
		c.metrics.LibraryLoad("peripheral_init_failed")
		return models.Peripheral{}, kerrors.Wrap(kerrors.InternalError, "starting executor", err)
	}
	c.transmitters.Register(id, ex)
	c.createMu.Unlock()

	tctx, cancel := c.timeoutCtx(ctx)
	defer cancel()
	return c.transmitters.GetPeripheral(tctx, id)
}

// ReadLibraries returns every loaded library.
func (c *Core) ReadLibraries(context.Context) ([]models.Library, error) {
	return c.libraries.List(), nil
}

// ReadLibrary returns one library by id.
func (c *Core) ReadLibrary(_ context.Context, id uint64) (models.Library, error) {
	return c.libraries.Get(id)
}

// ReadPeripheral returns a live snapshot from the owning executor, not a
// stale registry copy.
func (c *Core) ReadPeripheral(ctx context.Context, id uint64) (models.Peripheral, error) {
	tctx, cancel := c.timeoutCtx(ctx)
	defer cancel()
	return c.transmitters.GetPeripheral(tctx, id)
}

// ReadPeripherals returns a live snapshot of every registered peripheral
// whose executor replies in time; a peripheral whose request fails is
// omitted from the result without an error.
func (c *Core) ReadPeripherals(ctx context.Context) ([]models.Peripheral, error) {
	ids := c.transmitters.IDs()
	out := make([]models.Peripheral, 0, len(ids))
	for _, id := range ids {
		p, err := c.ReadPeripheral(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// ReadPeripheralAttribute returns one attribute of one peripheral.
func (c *Core) ReadPeripheralAttribute(ctx context.Context, id, attrID uint64) (models.Attribute, error) {
	tctx, cancel := c.timeoutCtx(ctx)
	defer cancel()
	return c.transmitters.GetAttribute(tctx, id, attrID)
}

// ReadPeripheralAttributes returns all attributes of one peripheral.
func (c *Core) ReadPeripheralAttributes(ctx context.Context, id uint64) ([]models.Attribute, error) {
	tctx, cancel := c.timeoutCtx(ctx)
	defer cancel()
	return c.transmitters.GetAttributes(tctx, id)
}

// UpdatePeripheralAttribute applies a new value through the executor and
// notifies any subscribed observer on success.
func (c *Core) UpdatePeripheralAttribute(ctx context.Context, id, attrID uint64, value models.Value) (models.Attribute, error) {
	tctx, cancel := c.timeoutCtx(ctx)
	defer cancel()
	attr, err := c.transmitters.PatchAttribute(tctx, id, attrID, value)
	if err != nil {
		c.metrics.AttributeUpdate("error")
		return models.Attribute{}, err
	}
	c.metrics.AttributeUpdate("ok")
	c.notifier.AttributeUpdated(id, attr)
	return attr, nil
}
