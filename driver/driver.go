// Package driver defines the boundary between freenect2 and a camera driver implementation. The
// native libfreenect2 binding and the software driver both implement these interfaces.
package driver

import (
	"github.com/pkg/errors"

	"go.viam.com/freenect2/config"
	"go.viam.com/freenect2/frame"
)

// ErrUnsupported is returned by drivers for operations their backend cannot perform.
var ErrUnsupported = errors.New("operation not supported by driver")

// A Driver discovers and opens devices. Every discovery call performs a fresh scan.
type Driver interface {
	EnumerateDevices() (int, error)
	// SerialNumber returns the serial of the device at index. Callers bound index by a scan.
	SerialNumber(index int) (string, error)
	DefaultSerialNumber() (string, error)

	OpenDevice(index int, pipeline PacketPipeline) (Device, error)
	OpenDeviceBySerial(serial string, pipeline PacketPipeline) (Device, error)
	OpenDefaultDevice(pipeline PacketPipeline) (Device, error)

	// SetLogSink replaces the process-wide destination of driver log messages. A nil sink
	// silences the driver.
	SetLogSink(sink LogSink)

	Close() error
}

// A Device is an open handle. Control calls are made by one goroutine at a time; frame
// listeners are invoked on driver-owned goroutines.
type Device interface {
	SerialNumber() (string, error)
	FirmwareVersion() (string, error)

	SetColorFrameListener(l FrameListener)
	SetIrAndDepthFrameListener(l FrameListener)
	SetConfig(cfg config.Config) error

	Start() error
	StartStreams(rgb, depth bool) error
	// Stop returns once no listener invocation is in progress.
	Stop() error
	Close() error

	IrCameraParams() (IrCameraParams, error)
	ColorCameraParams() (ColorCameraParams, error)
	NewRegistration(ir IrCameraParams, color ColorCameraParams) (RegistrationEngine, error)
}

// FrameListener receives captured frames. Invocations for one stream are sequential; the color
// and IR/depth streams may be delivered concurrently. The listener owns f for the duration of the
// call. A non-nil error tells the driver to stop delivering on that stream.
type FrameListener interface {
	OnNewFrame(t frame.Type, f *frame.Frame) error
}

// RegistrationEngine maps depth images into the color camera.
type RegistrationEngine interface {
	// Apply undistorts depth into undistorted and writes the color of every depth pixel into
	// registered. bigDepth is optional and receives depth in color camera space.
	Apply(rgb, depth, undistorted, registered *frame.Frame, enableFilter bool, bigDepth *frame.Frame) error
	UndistortDepth(depth, undistorted *frame.Frame) error
}
