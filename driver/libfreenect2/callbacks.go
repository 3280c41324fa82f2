//go:build libfreenect2

package libfreenect2

/*
#include <stdlib.h>
#include "shim.h"
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"go.viam.com/freenect2/driver"
	"go.viam.com/freenect2/frame"
)

// goFreenect2OnNewFrame is called on native capture threads. It takes ownership of the native
// frame and returns a malloc'd message for the native side to log when the listener rejected it.
//
//export goFreenect2OnNewFrame
func goFreenect2OnNewFrame(handle C.uintptr_t, frameType C.int, info *C.fn2_frame_info, native unsafe.Pointer) *C.char {
	release := func() { C.fn2_frame_free(native) }

	d, ok := cgo.Handle(handle).Value().(*delivery)
	if !ok {
		release()
		return C.CString("frame listener handle does not hold a listener")
	}

	size := int(info.width * info.height * info.bytes_per_pixel)
	var data []byte
	if size > 0 {
		data = unsafe.Slice((*byte)(unsafe.Pointer(info.data)), size)
	}
	f, err := frame.Wrap(int(info.width), int(info.height), int(info.bytes_per_pixel), data,
		frame.Format(info.format), frame.Metadata{
			Timestamp: uint32(info.timestamp),
			Sequence:  uint32(info.sequence),
			Exposure:  float32(info.exposure),
			Gain:      float32(info.gain),
			Gamma:     float32(info.gamma),
			Status:    uint32(info.status),
		}, release)
	if err != nil {
		release()
		return C.CString(err.Error())
	}

	if err := d.deliver(frame.Type(frameType), f); err != nil {
		return C.CString(err.Error())
	}
	return nil
}

//export goFreenect2Log
func goFreenect2Log(level C.int, message *C.char) {
	sinkMu.RLock()
	s := sink
	sinkMu.RUnlock()
	if s != nil {
		s(driver.LogLevel(level), C.GoString(message))
	}
}
