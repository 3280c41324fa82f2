//go:build libfreenect2

package libfreenect2

/*
#cgo pkg-config: freenect2
#cgo CXXFLAGS: -std=c++11
#include <stdlib.h>
#include "shim.h"
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/pkg/errors"

	"go.viam.com/freenect2/driver"
	"go.viam.com/freenect2/logging"
)

// Name is the name the driver registers under.
const Name = "libfreenect2"

func init() {
	driver.Register(Name, func(logger logging.Logger) (driver.Driver, error) {
		return NewDriver(logger), nil
	})
}

var errDriverClosed = errors.New("driver is closed")

// The native logger is process wide.
var (
	sinkMu sync.RWMutex
	sink   driver.LogSink
)

// Driver is a driver.Driver over the native library. The native context is not thread safe, so
// every discovery and open call is serialized.
type Driver struct {
	mu     sync.Mutex
	ctx    *C.fn2_context
	logger logging.Logger
}

// NewDriver creates a native context. Driver messages go to logger until SetLogSink replaces it.
func NewDriver(logger logging.Logger) *Driver {
	d := &Driver{
		ctx:    C.fn2_context_new(),
		logger: logger.Sublogger(Name),
	}
	d.SetLogSink(driver.LoggerSink(d.logger))
	return d
}

// SetLogSink replaces the destination of native log messages.
func (d *Driver) SetLogSink(s driver.LogSink) {
	sinkMu.Lock()
	sink = s
	sinkMu.Unlock()

	level := driver.LogNone
	if s != nil {
		level = driver.LogLevelFor(d.logger.GetLevel())
	}
	C.fn2_set_logger(C.int(level))
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(s))
	return C.GoString(s)
}

// EnumerateDevices scans the USB bus.
func (d *Driver) EnumerateDevices() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return 0, errDriverClosed
	}
	return int(C.fn2_enumerate_devices(d.ctx)), nil
}

// SerialNumber returns the serial of the device at index as of the last scan.
func (d *Driver) SerialNumber(index int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return "", errDriverClosed
	}
	serial := goString(C.fn2_device_serial_at(d.ctx, C.int(index)))
	if serial == "" {
		return "", errors.Errorf("no device at index %d", index)
	}
	return serial, nil
}

// DefaultSerialNumber returns the serial of the first device.
func (d *Driver) DefaultSerialNumber() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return "", errDriverClosed
	}
	serial := goString(C.fn2_default_device_serial(d.ctx))
	if serial == "" {
		return "", errors.New("no device connected")
	}
	return serial, nil
}

// OpenDevice opens the device at index.
func (d *Driver) OpenDevice(index int, pipeline driver.PacketPipeline) (driver.Device, error) {
	return d.open(func() *C.fn2_device {
		return C.fn2_open_by_index(d.ctx, C.int(index), C.int(pipeline))
	}, fmt.Sprintf("device %d", index))
}

// OpenDeviceBySerial opens the device with the given serial.
func (d *Driver) OpenDeviceBySerial(serial string, pipeline driver.PacketPipeline) (driver.Device, error) {
	cSerial := C.CString(serial)
	defer C.free(unsafe.Pointer(cSerial))
	return d.open(func() *C.fn2_device {
		return C.fn2_open_by_serial(d.ctx, cSerial, C.int(pipeline))
	}, fmt.Sprintf("device %q", serial))
}

// OpenDefaultDevice opens the first device.
func (d *Driver) OpenDefaultDevice(pipeline driver.PacketPipeline) (driver.Device, error) {
	return d.open(func() *C.fn2_device {
		return C.fn2_open_default(d.ctx, C.int(pipeline))
	}, "default device")
}

func (d *Driver) open(openFn func() *C.fn2_device, what string) (driver.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return nil, errDriverClosed
	}
	dev := openFn()
	if dev == nil {
		return nil, errors.Errorf("libfreenect2 could not open %s", what)
	}
	return newDevice(dev, d.logger), nil
}

// Close frees the native context. Devices must be closed first.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return nil
	}
	C.fn2_context_free(d.ctx)
	d.ctx = nil
	return nil
}
