package main

/*
#cgo CFLAGS: -I${SRCDIR}/../../internal/abi
#include "kpal_abi.h"
*/
import "C"

import "runtime/cgo"

//export kpal_demo_new_handle
func kpal_demo_new_handle() C.kpal_plugin_data_t {
	h := cgo.NewHandle(newState())
	return C.kpal_plugin_data_t(uintptr(h))
}
