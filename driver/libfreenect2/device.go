//go:build libfreenect2

package libfreenect2

/*
#include <stdlib.h>
#include "shim.h"
*/
import "C"

import (
	"runtime/cgo"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/freenect2/config"
	"go.viam.com/freenect2/driver"
	"go.viam.com/freenect2/logging"
)

var errDeviceClosed = errors.New("device is closed")

// nativeListener pairs a native listener with the handle it resolves Go listeners through.
type nativeListener struct {
	handle cgo.Handle
	native *C.fn2_listener
}

func newNativeListener(l driver.FrameListener) *nativeListener {
	h := cgo.NewHandle(newDelivery(l))
	return &nativeListener{handle: h, native: C.fn2_listener_new(C.uintptr_t(h))}
}

func (nl *nativeListener) free() {
	C.fn2_listener_free(nl.native)
	nl.handle.Delete()
}

// Device is an open native device.
type Device struct {
	mu     sync.Mutex
	dev    *C.fn2_device
	logger logging.Logger
	// Replaced listeners may still be running on a capture thread, so every native listener
	// lives until the device is freed.
	listeners []*nativeListener
}

func newDevice(dev *C.fn2_device, logger logging.Logger) *Device {
	return &Device{dev: dev, logger: logger}
}

// SerialNumber of the device.
func (d *Device) SerialNumber() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return "", errDeviceClosed
	}
	return goString(C.fn2_device_serial_number(d.dev)), nil
}

// FirmwareVersion of the device.
func (d *Device) FirmwareVersion() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return "", errDeviceClosed
	}
	return goString(C.fn2_device_firmware_version(d.dev)), nil
}

func (d *Device) listenerFor(l driver.FrameListener) *C.fn2_listener {
	if l == nil {
		return nil
	}
	nl := newNativeListener(l)
	d.listeners = append(d.listeners, nl)
	return nl.native
}

// SetColorFrameListener routes color frames to l.
func (d *Device) SetColorFrameListener(l driver.FrameListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return
	}
	C.fn2_device_set_color_listener(d.dev, d.listenerFor(l))
}

// SetIrAndDepthFrameListener routes IR and depth frames to l.
func (d *Device) SetIrAndDepthFrameListener(l driver.FrameListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return
	}
	C.fn2_device_set_ir_depth_listener(d.dev, d.listenerFor(l))
}

// SetConfig applies depth processing settings.
func (d *Device) SetConfig(cfg config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return errDeviceClosed
	}
	C.fn2_device_set_config(d.dev,
		C.float(cfg.MinDepth()), C.float(cfg.MaxDepth()),
		cBool(cfg.EnableBilateralFilter()), cBool(cfg.EnableEdgeAwareFilter()))
	return nil
}

func cBool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

func (d *Device) call(op string, fn func() C.int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return errDeviceClosed
	}
	if fn() == 0 {
		return errors.Errorf("libfreenect2 failed to %s", op)
	}
	return nil
}

// Start streams color and depth.
func (d *Device) Start() error {
	return d.call("start streams", func() C.int { return C.fn2_device_start(d.dev) })
}

// StartStreams starts the selected streams.
func (d *Device) StartStreams(rgb, depth bool) error {
	return d.call("start streams", func() C.int {
		return C.fn2_device_start_streams(d.dev, cBool(rgb), cBool(depth))
	})
}

// Stop stops streaming.
func (d *Device) Stop() error {
	return d.call("stop streams", func() C.int { return C.fn2_device_stop(d.dev) })
}

// Close closes and frees the device, then every listener it ever held.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return nil
	}
	var err error
	if C.fn2_device_close(d.dev) == 0 {
		err = multierr.Combine(err, errors.New("libfreenect2 failed to close device"))
	}
	C.fn2_device_free(d.dev)
	d.dev = nil
	for _, nl := range d.listeners {
		nl.free()
	}
	d.listeners = nil
	d.logger.Debug("closed device")
	return err
}

// IrCameraParams reads the factory calibration of the depth camera.
func (d *Device) IrCameraParams() (driver.IrCameraParams, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return driver.IrCameraParams{}, errDeviceClosed
	}
	p := C.fn2_device_ir_params(d.dev)
	return driver.IrCameraParams{
		Fx: float64(p.fx), Fy: float64(p.fy), Cx: float64(p.cx), Cy: float64(p.cy),
		K1: float64(p.k1), K2: float64(p.k2), K3: float64(p.k3),
		P1: float64(p.p1), P2: float64(p.p2),
	}, nil
}

// ColorCameraParams reads the factory calibration of the color camera.
func (d *Device) ColorCameraParams() (driver.ColorCameraParams, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return driver.ColorCameraParams{}, errDeviceClosed
	}
	p := C.fn2_device_color_params(d.dev)
	out := driver.ColorCameraParams{
		Fx: float64(p.fx), Fy: float64(p.fy), Cx: float64(p.cx), Cy: float64(p.cy),
		ShiftD: float64(p.shift_d), ShiftM: float64(p.shift_m),
	}
	for i := range out.Mx {
		out.Mx[i] = float64(p.mx[i])
		out.My[i] = float64(p.my[i])
	}
	return out, nil
}

// NewRegistration builds the native registration tables for the given calibration.
func (d *Device) NewRegistration(ir driver.IrCameraParams, color driver.ColorCameraParams) (driver.RegistrationEngine, error) {
	return newRegistrationEngine(ir, color), nil
}
