package inject

import (
	"go.viam.com/freenect2/config"
	"go.viam.com/freenect2/driver"
	"go.viam.com/freenect2/frame"
)

// Device is an injected device.
type Device struct {
	driver.Device
	StartFunc             func() error
	StartStreamsFunc      func(rgb, depth bool) error
	StopFunc              func() error
	CloseFunc             func() error
	SetConfigFunc         func(cfg config.Config) error
	IrCameraParamsFunc    func() (driver.IrCameraParams, error)
	ColorCameraParamsFunc func() (driver.ColorCameraParams, error)
	NewRegistrationFunc   func(ir driver.IrCameraParams, color driver.ColorCameraParams) (driver.RegistrationEngine, error)
}

// Start calls the injected Start or the real version.
func (d *Device) Start() error {
	if d.StartFunc == nil {
		return d.Device.Start()
	}
	return d.StartFunc()
}

// StartStreams calls the injected StartStreams or the real version.
func (d *Device) StartStreams(rgb, depth bool) error {
	if d.StartStreamsFunc == nil {
		return d.Device.StartStreams(rgb, depth)
	}
	return d.StartStreamsFunc(rgb, depth)
}

// Stop calls the injected Stop or the real version.
func (d *Device) Stop() error {
	if d.StopFunc == nil {
		return d.Device.Stop()
	}
	return d.StopFunc()
}

// Close calls the injected Close or the real version.
func (d *Device) Close() error {
	if d.CloseFunc == nil {
		return d.Device.Close()
	}
	return d.CloseFunc()
}

// SetConfig calls the injected SetConfig or the real version.
func (d *Device) SetConfig(cfg config.Config) error {
	if d.SetConfigFunc == nil {
		return d.Device.SetConfig(cfg)
	}
	return d.SetConfigFunc(cfg)
}

// IrCameraParams calls the injected IrCameraParams or the real version.
func (d *Device) IrCameraParams() (driver.IrCameraParams, error) {
	if d.IrCameraParamsFunc == nil {
		return d.Device.IrCameraParams()
	}
	return d.IrCameraParamsFunc()
}

// ColorCameraParams calls the injected ColorCameraParams or the real version.
func (d *Device) ColorCameraParams() (driver.ColorCameraParams, error) {
	if d.ColorCameraParamsFunc == nil {
		return d.Device.ColorCameraParams()
	}
	return d.ColorCameraParamsFunc()
}

// NewRegistration calls the injected NewRegistration or the real version.
func (d *Device) NewRegistration(ir driver.IrCameraParams, color driver.ColorCameraParams) (driver.RegistrationEngine, error) {
	if d.NewRegistrationFunc == nil {
		return d.Device.NewRegistration(ir, color)
	}
	return d.NewRegistrationFunc(ir, color)
}

// RegistrationEngine is an injected registration engine.
type RegistrationEngine struct {
	driver.RegistrationEngine
	ApplyFunc          func(rgb, depth, undistorted, registered *frame.Frame, enableFilter bool, bigDepth *frame.Frame) error
	UndistortDepthFunc func(depth, undistorted *frame.Frame) error
}

// Apply calls the injected Apply or the real version.
func (e *RegistrationEngine) Apply(
	rgb, depth, undistorted, registered *frame.Frame, enableFilter bool, bigDepth *frame.Frame,
) error {
	if e.ApplyFunc == nil {
		return e.RegistrationEngine.Apply(rgb, depth, undistorted, registered, enableFilter, bigDepth)
	}
	return e.ApplyFunc(rgb, depth, undistorted, registered, enableFilter, bigDepth)
}

// UndistortDepth calls the injected UndistortDepth or the real version.
func (e *RegistrationEngine) UndistortDepth(depth, undistorted *frame.Frame) error {
	if e.UndistortDepthFunc == nil {
		return e.RegistrationEngine.UndistortDepth(depth, undistorted)
	}
	return e.UndistortDepthFunc(depth, undistorted)
}
