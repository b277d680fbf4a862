// Package abi is the narrow, unsafe boundary between the daemon and
// plugin shared libraries. Nothing outside this package touches a plugin
// pointer or calls a vtable entry directly; every other package works
// against the Plugin type's Go methods, which validate return codes and
// buffer lengths before handing data back across the trust boundary.
package abi

/*
#include <stdlib.h>
#include <string.h>
#include "kpal_abi.h"
*/
import "C"

import (
	"fmt"
	"strings"
	"unicode/utf8"
	"unsafe"

	"github.com/kpal-project/kpal/pkg/models"
	"github.com/kpal-project/kpal/pkg/plugin"
)

// attributeNameBufferLen is the caller-allocated buffer size for
// attribute_name.
const attributeNameBufferLen = plugin.AttributeNameBufferLen

// strView overlays the string arm of kpal_val_t's anonymous union:
// a borrowed (ptr, len) pair, never owned past the call that produced
// or consumed it.
type strView struct {
	ptr *C.char
	len C.size_t
}

// Plugin is one loaded, instantiated plugin: an opaque pointer allocated
// by the plugin library plus a by-value copy of its vtable.
// It must never be touched from more than one goroutine at a time; the
// executor is the only caller permitted to hold one.
type Plugin struct {
	raw C.kpal_plugin_t
}

// Val mirrors kpal_val_t for conversions at the boundary of a single
// vtable call. It never outlives the call that produced or consumed it.
type Val struct {
	Kind   plugin.ValueKind
	Int    int32
	Uint   uint32
	Double float64
	Str    string
}

// valToC converts v into its C union representation. For KindString it
// mallocs a copy of v.Str and writes a borrowed (ptr, len) view onto it;
// the returned free func must be called once the vtable call that
// consumed cv has returned (the plugin is required to have copied the
// bytes out by then).
func valToC(v Val) (cv C.kpal_val_t, free func()) {
	free = func() {}
	cv.kind = C.int32_t(v.Kind)
	switch v.Kind {
	case plugin.KindInt:
		*(*C.int32_t)(unsafe.Pointer(&cv.value[0])) = C.int32_t(v.Int)
	case plugin.KindUint:
		*(*C.uint32_t)(unsafe.Pointer(&cv.value[0])) = C.uint32_t(v.Uint)
	case plugin.KindDouble:
		*(*C.double)(unsafe.Pointer(&cv.value[0])) = C.double(v.Double)
	case plugin.KindString:
		cstr := C.CString(v.Str)
		sv := (*strView)(unsafe.Pointer(&cv.value[0]))
		sv.ptr = cstr
		sv.len = C.size_t(len(v.Str))
		free = func() { C.free(unsafe.Pointer(cstr)) }
	}
	return cv, free
}

// FromModel converts a host-owned models.Value into the borrowed ABI
// form. A string containing an interior NUL or invalid UTF-8 is
// rejected here, at the host boundary, with ConversionErr: the ABI has
// no way to represent either (the C side is NUL-terminated-adjacent via
// an explicit length, but plugins are free to treat attribute values as
// text).
func FromModel(v models.Value) (Val, error) {
	switch v.Kind {
	case models.ValueInt:
		return Val{Kind: plugin.KindInt, Int: v.Int}, nil
	case models.ValueUint:
		return Val{Kind: plugin.KindUint, Uint: v.Uint}, nil
	case models.ValueDouble:
		return Val{Kind: plugin.KindDouble, Double: v.Double}, nil
	case models.ValueString:
		if !utf8.ValidString(v.String) || strings.IndexByte(v.String, 0) >= 0 {
			return Val{}, &Error{Code: ConversionErr, Message: FallbackMessage(ConversionErr)}
		}
		return Val{Kind: plugin.KindString, Str: v.String}, nil
	default:
		return Val{}, nil
	}
}

// ToModel converts an ABI value into a host-owned models.Value. The
// string case must already have been copied out of borrowed memory by
// the caller (see Plugin.AttributeValue).
func ToModel(v Val) models.Value {
	switch v.Kind {
	case plugin.KindInt:
		return models.NewInt(v.Int)
	case plugin.KindUint:
		return models.NewUint(v.Uint)
	case plugin.KindDouble:
		return models.NewDouble(v.Double)
	case plugin.KindString:
		return models.NewString(v.Str)
	default:
		return models.Value{}
	}
}

// Error wraps a numeric plugin return code with the message resolved
// for it: the plugin's own error_message_ns first, the daemon's static
// table as fallback.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("plugin error %d: %s", e.Code, e.Message)
}
