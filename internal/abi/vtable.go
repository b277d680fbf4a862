package abi

/*
#include "kpal_abi.h"
*/
import "C"

import (
	"unsafe"

	"github.com/kpal-project/kpal/pkg/models"
	"github.com/kpal-project/kpal/pkg/plugin"
)

// Free releases everything the plugin instance owns. Idempotent on a
// plugin whose plugin_data is already null.
func (p *Plugin) Free() {
	C.kpal_call_plugin_free(&p.raw.vtable, p.raw.plugin_data)
}

// Init calls plugin_init, the hardware-setup half of advancing from
// InitPhase to RunPhase.
func (p *Plugin) Init() error {
	code := Code(C.kpal_call_plugin_init(&p.raw.vtable, p.raw.plugin_data))
	if code != PluginOK {
		return &Error{Code: code, Message: p.errorMessage(code)}
	}
	return nil
}

// AttributeCount returns the number of attributes the plugin exposes.
func (p *Plugin) AttributeCount() (int, error) {
	var n C.size_t
	code := Code(C.kpal_call_attribute_count(&p.raw.vtable, p.raw.plugin_data, &n))
	if code != PluginOK {
		return 0, &Error{Code: code, Message: p.errorMessage(code)}
	}
	return int(n), nil
}

// AttributeIDs fills a buffer of length count (from AttributeCount) with
// the plugin's attribute ids.
func (p *Plugin) AttributeIDs(count int) ([]uint64, error) {
	if count == 0 {
		return nil, nil
	}
	buf := make([]C.size_t, count)
	code := Code(C.kpal_call_attribute_ids(&p.raw.vtable, p.raw.plugin_data, &buf[0], C.size_t(count)))
	if code != PluginOK {
		return nil, &Error{Code: code, Message: p.errorMessage(code)}
	}
	ids := make([]uint64, count)
	for i, v := range buf {
		ids[i] = uint64(v)
	}
	return ids, nil
}

// AttributeName copies the attribute's null-terminated name into a
// caller-allocated buffer sized plugin.AttributeNameBufferLen and
// returns it as a Go string. A plugin that fills the entire buffer
// without a NUL is rejected with ConversionErr rather than read past.
func (p *Plugin) AttributeName(id uint64) (string, error) {
	buf := make([]C.char, attributeNameBufferLen)
	code := Code(C.kpal_call_attribute_name(&p.raw.vtable, p.raw.plugin_data, C.size_t(id), &buf[0], C.size_t(attributeNameBufferLen)))
	if code != PluginOK {
		return "", &Error{Code: code, Message: p.errorMessage(code)}
	}
	n := -1
	for i, c := range buf {
		if c == 0 {
			n = i
			break
		}
	}
	if n < 0 {
		return "", &Error{Code: ConversionErr, Message: FallbackMessage(ConversionErr)}
	}
	return C.GoStringN(&buf[0], C.int(n)), nil
}

// AttributePreInit reports whether the attribute may be set before init.
func (p *Plugin) AttributePreInit(id uint64) (bool, error) {
	var out C.int8_t
	code := Code(C.kpal_call_attribute_pre_init(&p.raw.vtable, p.raw.plugin_data, C.size_t(id), &out))
	if code != PluginOK {
		return false, &Error{Code: code, Message: p.errorMessage(code)}
	}
	return int8(out) == plugin.PreInitTrue, nil
}

// AttributeValue reads the attribute's value for the given phase. String
// values are copied into a Go string before this call returns; the
// returned value never retains a pointer into plugin memory.
func (p *Plugin) AttributeValue(id uint64, phase plugin.Phase) (models.Value, error) {
	var out C.kpal_val_t
	code := Code(C.kpal_call_attribute_value(&p.raw.vtable, p.raw.plugin_data, C.size_t(id), &out, C.int32_t(phase)))
	if code != PluginOK {
		return models.Value{}, &Error{Code: code, Message: p.errorMessage(code)}
	}
	return ToModel(valFromC(out)), nil
}

// SetAttributeValue writes a new value for the given phase. The plugin
// must copy any string bytes before this call returns.
func (p *Plugin) SetAttributeValue(id uint64, v models.Value, phase plugin.Phase) error {
	abiVal, err := FromModel(v)
	if err != nil {
		return err
	}
	cv, free := valToC(abiVal)
	defer free()
	code := Code(C.kpal_call_set_attribute_value(&p.raw.vtable, p.raw.plugin_data, C.size_t(id), &cv, C.int32_t(phase)))
	if code != PluginOK {
		return &Error{Code: code, Message: p.errorMessage(code)}
	}
	return nil
}

// errorMessage resolves a return code to text: the plugin's own
// error_message_ns first, the daemon's static table as fallback.
func (p *Plugin) errorMessage(code Code) string {
	cmsg := C.kpal_call_error_message_ns(&p.raw.vtable, C.int32_t(code))
	if cmsg == nil {
		return FallbackMessage(code)
	}
	return C.GoString(cmsg)
}

func valFromC(v C.kpal_val_t) Val {
	kind := plugin.ValueKind(int32(v.kind))
	switch kind {
	case plugin.KindInt:
		return Val{Kind: kind, Int: int32(*(*C.int32_t)(unsafe.Pointer(&v.value[0])))}
	case plugin.KindUint:
		return Val{Kind: kind, Uint: uint32(*(*C.uint32_t)(unsafe.Pointer(&v.value[0])))}
	case plugin.KindDouble:
		return Val{Kind: kind, Double: float64(*(*C.double)(unsafe.Pointer(&v.value[0])))}
	case plugin.KindString:
		sv := (*strView)(unsafe.Pointer(&v.value[0]))
		return Val{Kind: kind, Str: C.GoStringN(sv.ptr, C.int(sv.len))}
	default:
		return Val{}
	}
}
