// Command kpal-demo-plugin builds the reference plugin used throughout
// this repository's tests and documentation:
// a four-attribute peripheral with one attribute of each Val kind —
// x:Double, y:Int, z:Uint, msg:String (initial value "foobar") — all
// pre-init-settable and all using the Update callback triad (values
// are cached and simply echoed back).
//
// Build as a C shared library consumed by internal/abi's dlopen path:
//
//	go build -buildmode=c-shared -o libkpal_demo.so ./cmd/kpal-demo-plugin
package main
