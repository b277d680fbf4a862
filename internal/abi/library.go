package abi

/*
#include <stdlib.h>
#include "kpal_abi.h"
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Handle is an open dynamic-library handle. It is safe to keep for the
// process lifetime; its symbols, not the handle itself, are what crosses
// threads.
type Handle struct {
	h unsafe.Pointer
}

// OpenLibrary dlopens the shared-library file at path.
func OpenLibrary(path string) (*Handle, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	h := C.kpal_dlopen(cpath)
	if h == nil {
		cerr := C.dlerror()
		if cerr != nil {
			return nil, fmt.Errorf("dlopen %s: %s", path, C.GoString(cerr))
		}
		return nil, fmt.Errorf("dlopen %s: unknown error", path)
	}
	return &Handle{h: h}, nil
}

// NewPlugin looks up the discovery symbol kpal_plugin_new in h and
// invokes it, producing a freshly allocated plugin instance exclusively
// owned by the caller; the caller must eventually call Plugin.Free.
func (h *Handle) NewPlugin() (*Plugin, error) {
	sym := C.CString("kpal_plugin_new")
	defer C.free(unsafe.Pointer(sym))

	fn := C.kpal_dlsym(h.h, sym)
	if fn == nil {
		return nil, fmt.Errorf("symbol kpal_plugin_new not found")
	}

	var p Plugin
	code := Code(C.kpal_call_plugin_new(C.kpal_plugin_new_fn(fn), &p.raw))
	if code != PluginOK {
		return nil, &Error{Code: code, Message: FallbackMessage(code)}
	}
	return &p, nil
}
