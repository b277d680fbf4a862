package main

import (
	"sync"
	"unsafe"
)

// state is the Go-side data for one plugin instance, reached from C
// only through a runtime/cgo.Handle stashed in Plugin.plugin_data.
type state struct {
	mu   sync.Mutex
	x    float64
	y    int32
	z    uint32
	msg  string
	init bool

	// lastStr holds the C buffer most recently handed out by
	// attribute_value for msg, freed on the next call or on
	// plugin_free. Declared unsafe.Pointer so this file stays
	// cgo-free; callbacks.go casts it to *C.char.
	lastStr unsafe.Pointer
}

func newState() *state {
	return &state{x: 0, y: 0, z: 0, msg: "foobar"}
}

// attrID identifies one of the four fixed attributes this demo
// exposes.
type attrID = uint64

const (
	attrX   attrID = 0
	attrY   attrID = 1
	attrZ   attrID = 2
	attrMsg attrID = 3
)

var attrNames = map[attrID]string{
	attrX:   "x",
	attrY:   "y",
	attrZ:   "z",
	attrMsg: "msg",
}
