// Package inject provides driver implementations whose methods can be replaced per test.
package inject

import (
	"go.viam.com/freenect2/driver"
)

// Driver is an injected driver.
type Driver struct {
	driver.Driver
	EnumerateDevicesFunc    func() (int, error)
	SerialNumberFunc        func(index int) (string, error)
	DefaultSerialNumberFunc func() (string, error)
	OpenDeviceFunc          func(index int, pipeline driver.PacketPipeline) (driver.Device, error)
	OpenDeviceBySerialFunc  func(serial string, pipeline driver.PacketPipeline) (driver.Device, error)
	OpenDefaultDeviceFunc   func(pipeline driver.PacketPipeline) (driver.Device, error)
	SetLogSinkFunc          func(sink driver.LogSink)
	CloseFunc               func() error
}

// EnumerateDevices calls the injected EnumerateDevices or the real version.
func (d *Driver) EnumerateDevices() (int, error) {
	if d.EnumerateDevicesFunc == nil {
		return d.Driver.EnumerateDevices()
	}
	return d.EnumerateDevicesFunc()
}

// SerialNumber calls the injected SerialNumber or the real version.
func (d *Driver) SerialNumber(index int) (string, error) {
	if d.SerialNumberFunc == nil {
		return d.Driver.SerialNumber(index)
	}
	return d.SerialNumberFunc(index)
}

// DefaultSerialNumber calls the injected DefaultSerialNumber or the real version.
func (d *Driver) DefaultSerialNumber() (string, error) {
	if d.DefaultSerialNumberFunc == nil {
		return d.Driver.DefaultSerialNumber()
	}
	return d.DefaultSerialNumberFunc()
}

// OpenDevice calls the injected OpenDevice or the real version.
func (d *Driver) OpenDevice(index int, pipeline driver.PacketPipeline) (driver.Device, error) {
	if d.OpenDeviceFunc == nil {
		return d.Driver.OpenDevice(index, pipeline)
	}
	return d.OpenDeviceFunc(index, pipeline)
}

// OpenDeviceBySerial calls the injected OpenDeviceBySerial or the real version.
func (d *Driver) OpenDeviceBySerial(serial string, pipeline driver.PacketPipeline) (driver.Device, error) {
	if d.OpenDeviceBySerialFunc == nil {
		return d.Driver.OpenDeviceBySerial(serial, pipeline)
	}
	return d.OpenDeviceBySerialFunc(serial, pipeline)
}

// OpenDefaultDevice calls the injected OpenDefaultDevice or the real version.
func (d *Driver) OpenDefaultDevice(pipeline driver.PacketPipeline) (driver.Device, error) {
	if d.OpenDefaultDeviceFunc == nil {
		return d.Driver.OpenDefaultDevice(pipeline)
	}
	return d.OpenDefaultDeviceFunc(pipeline)
}

// SetLogSink calls the injected SetLogSink or the real version. With neither, the sink is dropped.
func (d *Driver) SetLogSink(sink driver.LogSink) {
	if d.SetLogSinkFunc != nil {
		d.SetLogSinkFunc(sink)
		return
	}
	if d.Driver != nil {
		d.Driver.SetLogSink(sink)
	}
}

// Close calls the injected Close or the real version.
func (d *Driver) Close() error {
	if d.CloseFunc == nil {
		if d.Driver == nil {
			return nil
		}
		return d.Driver.Close()
	}
	return d.CloseFunc()
}
