//go:build libfreenect2

package libfreenect2

/*
#include <stdlib.h>
#include "shim.h"
*/
import "C"

import (
	"runtime"
	"unsafe"

	"github.com/pkg/errors"

	"go.viam.com/freenect2/driver"
	"go.viam.com/freenect2/frame"
)

// registrationEngine wraps the native registration. The tables are freed by a finalizer since
// the engine interface has no Close.
type registrationEngine struct {
	reg *C.fn2_registration
}

func newRegistrationEngine(ir driver.IrCameraParams, color driver.ColorCameraParams) *registrationEngine {
	irp := C.fn2_ir_params{
		fx: C.float(ir.Fx), fy: C.float(ir.Fy), cx: C.float(ir.Cx), cy: C.float(ir.Cy),
		k1: C.float(ir.K1), k2: C.float(ir.K2), k3: C.float(ir.K3),
		p1: C.float(ir.P1), p2: C.float(ir.P2),
	}
	cp := C.fn2_color_params{
		fx: C.float(color.Fx), fy: C.float(color.Fy), cx: C.float(color.Cx), cy: C.float(color.Cy),
		shift_d: C.float(color.ShiftD), shift_m: C.float(color.ShiftM),
	}
	for i := range color.Mx {
		cp.mx[i] = C.float(color.Mx[i])
		cp.my[i] = C.float(color.My[i])
	}
	e := &registrationEngine{reg: C.fn2_registration_new(irp, cp)}
	runtime.SetFinalizer(e, func(e *registrationEngine) {
		C.fn2_registration_free(e.reg)
	})
	return e
}

// The native code trusts buffer sizes, so they are checked here even though callers validate.
func checkBuffer(name string, f *frame.Frame, width, height int) error {
	if f == nil || f.Released() {
		return errors.Errorf("%s frame is missing", name)
	}
	if f.Width() != width || f.Height() != height || f.BytesPerPixel() != frame.BytesPerPixel {
		return errors.Errorf("%s frame is %dx%dx%d, want %dx%dx%d", name,
			f.Width(), f.Height(), f.BytesPerPixel(), width, height, frame.BytesPerPixel)
	}
	return nil
}

func bufferOf(f *frame.Frame) *C.uchar {
	if f == nil {
		return nil
	}
	return (*C.uchar)(unsafe.Pointer(&f.Data()[0]))
}

// Apply runs native registration.
func (e *registrationEngine) Apply(rgb, depth, undistorted, registered *frame.Frame, enableFilter bool, bigDepth *frame.Frame) error {
	if err := checkBuffer("color", rgb, frame.ColorWidth, frame.ColorHeight); err != nil {
		return err
	}
	if !rgb.Format().IsColor() {
		return errors.Errorf("color frame has format %s", rgb.Format())
	}
	for _, b := range []struct {
		name string
		f    *frame.Frame
	}{{"depth", depth}, {"undistorted", undistorted}, {"registered", registered}} {
		if err := checkBuffer(b.name, b.f, frame.DepthWidth, frame.DepthHeight); err != nil {
			return err
		}
	}
	if bigDepth != nil {
		if err := checkBuffer("big depth", bigDepth, frame.BigDepthWidth, frame.BigDepthHeight); err != nil {
			return err
		}
	}
	C.fn2_registration_apply(e.reg, bufferOf(rgb), C.int(rgb.Format()),
		bufferOf(depth), bufferOf(undistorted), bufferOf(registered),
		cBool(enableFilter), bufferOf(bigDepth))
	runtime.KeepAlive(e)
	return nil
}

// UndistortDepth runs native undistortion only.
func (e *registrationEngine) UndistortDepth(depth, undistorted *frame.Frame) error {
	if err := checkBuffer("depth", depth, frame.DepthWidth, frame.DepthHeight); err != nil {
		return err
	}
	if err := checkBuffer("undistorted", undistorted, frame.DepthWidth, frame.DepthHeight); err != nil {
		return err
	}
	C.fn2_registration_undistort_depth(e.reg, bufferOf(depth), bufferOf(undistorted))
	runtime.KeepAlive(e)
	return nil
}
