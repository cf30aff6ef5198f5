package model

import (
	"runtime"
	"runtime/debug"
)

// Reclaim forces a collection and returns freed pages to the OS so decoding
// buffers from the previous call do not pile up across files.
func Reclaim() {
	runtime.GC()
	debug.FreeOSMemory()
}
