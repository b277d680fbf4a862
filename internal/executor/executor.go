// Package executor implements the per-peripheral worker thread that owns
// one plugin instance exclusively. An Executor is spawned
// once, at peripheral-creation time, and runs until its inbox is closed.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/kpal-project/kpal/internal/kerrors"
	"github.com/kpal-project/kpal/pkg/models"
	"github.com/kpal-project/kpal/pkg/plugin"
)

// pluginCoder is implemented by plugin-originated errors that carry a
// numeric vtable return code (internal/abi.Error, plugintest's fake
// error). Classifying by this interface instead of a concrete type
// keeps the executor's import graph free of internal/abi, so it stays
// testable against plugintest without cgo.
type pluginCoder interface {
	PluginCode() int32
}

// Numeric codes mirrored from internal/abi.Code: duplicated here
// rather than imported, for the same reason as pluginCoder above.
const (
	conversionErrCode          int32 = 8
	attributeIsNotSettableCode int32 = 6
)

// VTable is the subset of a loaded plugin's behavior an Executor drives.
// internal/abi.Plugin implements it against a real C ABI; plugintest
// provides an in-process fake for unit tests that never touches cgo.
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

// Executor owns one VTable instance on a dedicated goroutine pinned to
// one OS thread and
// serves an inbox of typed requests.
type Executor struct {
	inbox  chan request
	logger *zap.Logger
}

// Spec describes a peripheral to be brought up by an Executor.
type Spec struct {
	PeripheralID uint64
	LibraryID    uint64
	Name         string
	// PreInit carries values to assign before init, keyed by attribute
	// id. Any set the plugin rejects (not-settable or otherwise) is
	// skipped rather than failing the whole sync.
	PreInit map[uint64]models.Value
}

// New spawns the executor goroutine, which pins itself to one OS thread
// and runs discovery/sync/init there before entering the request loop.
// New returns only once that startup succeeds or fails. On startup
// failure, vt.Free is called on the same thread and the error is
// returned; no goroutine is left running.
func New(vt VTable, spec Spec, logger *zap.Logger) (*Executor, error) {
	e := &Executor{
		inbox:  make(chan request),
		logger: logger,
	}
	started := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		peripheral := models.Peripheral{
			ID:         spec.PeripheralID,
			LibraryID:  spec.LibraryID,
			Name:       spec.Name,
			Attributes: make(map[uint64]models.Attribute),
		}
		if err := discoverAttributes(vt, &peripheral, logger); err != nil {
			vt.Free()
			started <- err
			return
		}
		syncPreInit(vt, &peripheral, spec.PreInit, logger)
		if err := vt.Init(); err != nil {
			vt.Free()
			started <- toPluginError("plugin_init", err)
			return
		}
		started <- nil
		e.run(vt, peripheral)
	}()
	if err := <-started; err != nil {
		return nil, err
	}
	return e, nil
}

// discoverAttributes obtains the id list and, for each id, its name,
// pre-init flag, and current (init-phase) value, caching them into
// peripheral. Ids for which any call fails are logged and skipped.
func discoverAttributes(vt VTable, peripheral *models.Peripheral, logger *zap.Logger) error {
	count, err := vt.AttributeCount()
	if err != nil {
		return toPluginError("attribute_count", err)
	}
	ids, err := vt.AttributeIDs(count)
	if err != nil {
		return toPluginError("attribute_ids", err)
	}
	for _, id := range ids {
		name, err := vt.AttributeName(id)
		if err != nil {
			logger.Warn("attribute skipped: attribute_name failed", zap.Uint64("attribute_id", id), zap.Error(err))
			continue
		}
		preInit, err := vt.AttributePreInit(id)
		if err != nil {
			logger.Warn("attribute skipped: attribute_pre_init failed", zap.Uint64("attribute_id", id), zap.Error(err))
			continue
		}
		value, err := vt.AttributeValue(id, plugin.InitPhase)
		if err != nil {
			logger.Warn("attribute skipped: attribute_value failed", zap.Uint64("attribute_id", id), zap.Error(err))
			continue
		}
		peripheral.Attributes[id] = models.Attribute{
			ID:      id,
			Name:    name,
			PreInit: preInit,
			Value:   value,
		}
	}
	return nil
}

// syncPreInit applies caller-supplied pre-init values through the
// vtable, skipping (not failing on) any set the plugin rejects,
// AttributeIsNotSettable included; each skip is logged at debug level.
func syncPreInit(vt VTable, peripheral *models.Peripheral, preInit map[uint64]models.Value, logger *zap.Logger) {
	for id, v := range preInit {
		if err := vt.SetAttributeValue(id, v, plugin.InitPhase); err != nil {
			logger.Debug("pre-init set skipped", zap.Uint64("attribute_id", id), zap.Error(err))
			continue
		}
		if attr, ok := peripheral.Attributes[id]; ok {
			attr.Value = v
			peripheral.Attributes[id] = attr
		}
	}
}

type request struct {
	kind  requestKind
	attrID uint64
	value  models.Value
	reply  any
}

type requestKind int

const (
	reqGetPeripheral requestKind = iota
	reqGetAttribute
	reqGetAttributes
	reqPatchAttribute
)

// run is the executor's request loop. It owns vt exclusively for its
// entire lifetime.
func (e *Executor) run(vt VTable, peripheral models.Peripheral) {
	runtime.LockOSThread()
	defer vt.Free()

	// plugin_init already ran during startup (see New), advancing the plugin
	// from InitPhase to RunPhase. Every call made from here on passes RunPhase.
	const phase = plugin.RunPhase

	for req := range e.inbox {
		switch req.kind {
		case reqGetPeripheral:
			req.reply.(chan models.Peripheral) <- peripheral.Clone()

		case reqGetAttribute:
			reply := req.reply.(chan attrResult)
			attr, ok := peripheral.Attributes[req.attrID]
			if !ok {
				reply <- attrResult{err: kerrors.New(kerrors.AttributeDoesNotExist, fmt.Sprintf("attribute %d does not exist", req.attrID))}
				continue
			}
			reply <- attrResult{attr: attr}

		case reqGetAttributes:
			req.reply.(chan []models.Attribute) <- peripheral.AttributeList()

		case reqPatchAttribute:
			reply := req.reply.(chan attrResult)
			attr, ok := peripheral.Attributes[req.attrID]
			if !ok {
				reply <- attrResult{err: kerrors.New(kerrors.AttributeDoesNotExist, fmt.Sprintf("attribute %d does not exist", req.attrID))}
				continue
			}
			if !attr.Value.SameKind(req.value) {
				reply <- attrResult{err: kerrors.New(kerrors.UnprocessableRequest, "attribute value type mismatch")}
				continue
			}
			if err := vt.SetAttributeValue(req.attrID, req.value, phase); err != nil {
				reply <- attrResult{err: toPluginError("set_attribute_value", err)}
				continue
			}
			newVal, err := vt.AttributeValue(req.attrID, phase)
			if err != nil {
				reply <- attrResult{err: toPluginError("attribute_value", err)}
				continue
			}
			attr.Value = newVal
			peripheral.Attributes[req.attrID] = attr
			reply <- attrResult{attr: attr}
		}
	}
}

type attrResult struct {
	attr models.Attribute
	err  error
}

// pluginCodeReasons maps the plugin return codes that have a dedicated
// host-side reason; every other code is reported as InternalError.
var pluginCodeReasons = map[int32]kerrors.Reason{
	conversionErrCode:          kerrors.UnprocessableRequest,
	attributeIsNotSettableCode: kerrors.AttributeNotSettable,
}

// toPluginError classifies a plugin-originated error into the host error
// taxonomy, looking up the numeric code behind it in pluginCodeReasons
// when the error implements pluginCoder.
func toPluginError(op string, err error) error {
	reason := kerrors.InternalError
	var ce pluginCoder
	if errors.As(err, &ce) {
		if r, ok := pluginCodeReasons[ce.PluginCode()]; ok {
			reason = r
		}
	}
	return kerrors.Wrap(reason, fmt.Sprintf("%s failed", op), err)
}

// GetPeripheral returns a snapshot of the owned peripheral.
func (e *Executor) GetPeripheral(ctx context.Context) (models.Peripheral, error) {
	reply := make(chan models.Peripheral, 1)
	if err := e.send(ctx, request{kind: reqGetPeripheral, reply: reply}); err != nil {
		return models.Peripheral{}, err
	}
	return e.awaitPeripheral(ctx, reply)
}

// GetAttribute returns one attribute by id.
func (e *Executor) GetAttribute(ctx context.Context, attrID uint64) (models.Attribute, error) {
	reply := make(chan attrResult, 1)
	if err := e.send(ctx, request{kind: reqGetAttribute, attrID: attrID, reply: reply}); err != nil {
		return models.Attribute{}, err
	}
	return e.awaitAttr(ctx, reply)
}

// GetAttributes returns all attributes, ordered by id.
func (e *Executor) GetAttributes(ctx context.Context) ([]models.Attribute, error) {
	reply := make(chan []models.Attribute, 1)
	if err := e.send(ctx, request{kind: reqGetAttributes, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case attrs := <-reply:
		return attrs, nil
	case <-ctx.Done():
		return nil, kerrors.New(kerrors.InternalError, "request timed out")
	}
}

// PatchAttribute applies a new value to one attribute and returns the
// resulting attribute as observed after the write.
func (e *Executor) PatchAttribute(ctx context.Context, attrID uint64, value models.Value) (models.Attribute, error) {
	reply := make(chan attrResult, 1)
	if err := e.send(ctx, request{kind: reqPatchAttribute, attrID: attrID, value: value, reply: reply}); err != nil {
		return models.Attribute{}, err
	}
	return e.awaitAttr(ctx, reply)
}

// Close closes the inbox, causing the executor goroutine to free its
// plugin and exit. Safe to call once.
func (e *Executor) Close() {
	close(e.inbox)
}

func (e *Executor) send(ctx context.Context, req request) error {
	select {
	case e.inbox <- req:
		return nil
	case <-ctx.Done():
		return kerrors.New(kerrors.InternalError, "request timed out")
	}
}

func (e *Executor) awaitPeripheral(ctx context.Context, reply chan models.Peripheral) (models.Peripheral, error) {
	select {
	case p := <-reply:
		return p, nil
	case <-ctx.Done():
		return models.Peripheral{}, kerrors.New(kerrors.InternalError, "request timed out")
	}
}

func (e *Executor) awaitAttr(ctx context.Context, reply chan attrResult) (models.Attribute, error) {
	select {
	case r := <-reply:
		return r.attr, r.err
	case <-ctx.Done():
		return models.Attribute{}, kerrors.New(kerrors.InternalError, "request timed out")
	}
}
