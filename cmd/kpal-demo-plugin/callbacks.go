package main

/*
#cgo CFLAGS: -I${SRCDIR}/../../internal/abi
#include <stdlib.h>
#include <string.h>
#include "kpal_abi.h"
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/kpal-project/kpal/internal/abi"
	"github.com/kpal-project/kpal/pkg/plugin"
)

// strView overlays the string arm of kpal_val_t's anonymous union, same
// layout as internal/abi's unexported equivalent.
type strView struct {
	ptr *C.char
	len C.size_t
}

func writeDouble(out *C.kpal_val_t, v float64) {
	out.kind = C.int32_t(plugin.KindDouble)
	*(*C.double)(unsafe.Pointer(&out.value[0])) = C.double(v)
}

func writeInt(out *C.kpal_val_t, v int32) {
	out.kind = C.int32_t(plugin.KindInt)
	*(*C.int32_t)(unsafe.Pointer(&out.value[0])) = C.int32_t(v)
}

func writeUint(out *C.kpal_val_t, v uint32) {
	out.kind = C.int32_t(plugin.KindUint)
	*(*C.uint32_t)(unsafe.Pointer(&out.value[0])) = C.uint32_t(v)
}

// writeString borrows s into the state's last-string buffer, freeing
// whatever that buffer held before. The backing memory must outlive this
// call only until the daemon copies it, and the daemon copies a returned
// string out before the attribute_value call returns
// (internal/abi.Plugin.AttributeValue).
func writeString(s *state, out *C.kpal_val_t, v string) {
	if s.lastStr != nil {
		C.free(s.lastStr)
	}
	cstr := C.CString(v)
	s.lastStr = unsafe.Pointer(cstr)
	out.kind = C.int32_t(plugin.KindString)
	sv := (*strView)(unsafe.Pointer(&out.value[0]))
	sv.ptr = cstr
	sv.len = C.size_t(len(v))
}

func readDouble(v *C.kpal_val_t) float64 {
	return float64(*(*C.double)(unsafe.Pointer(&v.value[0])))
}

func readInt(v *C.kpal_val_t) int32 {
	return int32(*(*C.int32_t)(unsafe.Pointer(&v.value[0])))
}

func readUint(v *C.kpal_val_t) uint32 {
	return uint32(*(*C.uint32_t)(unsafe.Pointer(&v.value[0])))
}

func readString(v *C.kpal_val_t) string {
	sv := (*strView)(unsafe.Pointer(&v.value[0]))
	return C.GoStringN(sv.ptr, C.int(sv.len))
}

func handleState(pd C.kpal_plugin_data_t) *state {
	h := cgo.Handle(uintptr(pd))
	return h.Value().(*state)
}

//export kpal_demo_plugin_free
func kpal_demo_plugin_free(pd C.kpal_plugin_data_t) {
	if pd == nil {
		return
	}
	s := handleState(pd)
	if s.lastStr != nil {
		C.free(s.lastStr)
	}
	cgo.Handle(uintptr(pd)).Delete()
}

//export kpal_demo_plugin_init
func kpal_demo_plugin_init(pd C.kpal_plugin_data_t) C.int32_t {
	s := handleState(pd)
	s.mu.Lock()
	s.init = true
	s.mu.Unlock()
	return C.int32_t(abi.PluginOK)
}

//export kpal_demo_error_message_ns
func kpal_demo_error_message_ns(code C.int32_t) *C.char {
	// Let the daemon fall back to its own static table.
	return nil
}

//export kpal_demo_attribute_count
func kpal_demo_attribute_count(pd C.kpal_plugin_data_t, out *C.size_t) C.int32_t {
	*out = C.size_t(len(attrNames))
	return C.int32_t(abi.PluginOK)
}

//export kpal_demo_attribute_ids
func kpal_demo_attribute_ids(pd C.kpal_plugin_data_t, out *C.size_t, length C.size_t) C.int32_t {
	if int(length) < len(attrNames) {
		return C.int32_t(abi.UndefinedErr)
	}
	ids := []attrID{attrX, attrY, attrZ, attrMsg}
	dst := unsafe.Slice(out, length)
	for i, id := range ids {
		dst[i] = C.size_t(id)
	}
	return C.int32_t(abi.PluginOK)
}

//export kpal_demo_attribute_name
func kpal_demo_attribute_name(pd C.kpal_plugin_data_t, id C.size_t, out *C.char, length C.size_t) C.int32_t {
	name, ok := attrNames[attrID(id)]
	if !ok {
		return C.int32_t(abi.AttributeDoesNotExist)
	}
	if C.size_t(len(name)+1) > length {
		return C.int32_t(abi.UndefinedErr)
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	C.memcpy(unsafe.Pointer(out), unsafe.Pointer(cname), C.size_t(len(name)+1))
	return C.int32_t(abi.PluginOK)
}

//export kpal_demo_attribute_pre_init
func kpal_demo_attribute_pre_init(pd C.kpal_plugin_data_t, id C.size_t, out *C.int8_t) C.int32_t {
	if _, ok := attrNames[attrID(id)]; !ok {
		return C.int32_t(abi.AttributeDoesNotExist)
	}
	*out = C.int8_t(plugin.PreInitTrue)
	return C.int32_t(abi.PluginOK)
}

//export kpal_demo_attribute_value
func kpal_demo_attribute_value(pd C.kpal_plugin_data_t, id C.size_t, out *C.kpal_val_t, phase C.int32_t) C.int32_t {
	s := handleState(pd)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch attrID(id) {
	case attrX:
		writeDouble(out, s.x)
	case attrY:
		writeInt(out, s.y)
	case attrZ:
		writeUint(out, s.z)
	case attrMsg:
		writeString(s, out, s.msg)
	default:
		return C.int32_t(abi.AttributeDoesNotExist)
	}
	return C.int32_t(abi.PluginOK)
}

//export kpal_demo_set_attribute_value
func kpal_demo_set_attribute_value(pd C.kpal_plugin_data_t, id C.size_t, val *C.kpal_val_t, phase C.int32_t) C.int32_t {
	s := handleState(pd)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch attrID(id) {
	case attrX:
		s.x = readDouble(val)
	case attrY:
		s.y = readInt(val)
	case attrZ:
		s.z = readUint(val)
	case attrMsg:
		s.msg = readString(val)
	default:
		return C.int32_t(abi.AttributeDoesNotExist)
	}
	return C.int32_t(abi.PluginOK)
}
