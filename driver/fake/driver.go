// Package fake implements a software camera driver. It synthesizes color, IR and depth frames of
// the real device's sizes and formats, and registers depth to color with a pinhole model.
package fake

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/freenect2/driver"
	"go.viam.com/freenect2/frame"
	"go.viam.com/freenect2/logging"
)

// Name is the name the driver registers under.
const Name = "fake"

func init() {
	driver.Register(Name, func(logger logging.Logger) (driver.Driver, error) {
		return NewDriver(logger, Options{}), nil
	})
}

// Options configure the simulated devices.
type Options struct {
	// Serials of the attached devices, the first being the default. Defaults to one device.
	Serials []string
	// FirmwareVersion reported by every device.
	FirmwareVersion string
	// Interval between captures on each stream. Defaults to 33ms.
	Interval time.Duration
	// FrameLimit stops each stream after that many captures. Zero is unlimited.
	FrameLimit int
	// ColorFormat is BGRX or RGBX. Defaults to BGRX.
	ColorFormat frame.Format
	// IrParams and ColorParams override the reported camera parameters.
	IrParams    *driver.IrCameraParams
	ColorParams *driver.ColorCameraParams
}

// DefaultSerial is the serial of the single device attached when Options.Serials is empty.
const DefaultSerial = "011987650347"

// DefaultIrParams are typical Kinect v2 depth camera intrinsics.
var DefaultIrParams = driver.IrCameraParams{
	Fx: 365.456, Fy: 365.456, Cx: 254.878, Cy: 205.395,
	K1: 0.0905474, K2: -0.26819, K3: 0.0950862,
}

// DefaultColorParams are typical Kinect v2 color camera intrinsics.
var DefaultColorParams = driver.ColorCameraParams{
	Fx: 1081.37, Fy: 1081.37, Cx: 959.5, Cy: 539.5,
	ShiftD: 863, ShiftM: 52,
}

func (o Options) withDefaults() Options {
	if len(o.Serials) == 0 {
		o.Serials = []string{DefaultSerial}
	}
	if o.FirmwareVersion == "" {
		o.FirmwareVersion = "4.0.3911.0"
	}
	if o.Interval <= 0 {
		o.Interval = 33 * time.Millisecond
	}
	if o.ColorFormat != frame.RGBX {
		o.ColorFormat = frame.BGRX
	}
	if o.IrParams == nil {
		ir := DefaultIrParams
		o.IrParams = &ir
	}
	if o.ColorParams == nil {
		color := DefaultColorParams
		o.ColorParams = &color
	}
	return o
}

// Driver is a driver.Driver over simulated devices.
type Driver struct {
	mu      sync.Mutex
	opts    Options
	logger  logging.Logger
	open    map[string]*Device
	sink    driver.LogSink
	scans   atomic.Int64
	unfreed atomic.Int64
	closed  bool
}

// NewDriver creates a driver with the given simulated devices.
func NewDriver(logger logging.Logger, opts Options) *Driver {
	return &Driver{
		opts:   opts.withDefaults(),
		logger: logger.Sublogger(Name),
		open:   map[string]*Device{},
	}
}

// SetLogSink replaces the destination of driver messages.
func (d *Driver) SetLogSink(sink driver.LogSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
}

func (d *Driver) log(level driver.LogLevel, msg string) {
	d.mu.Lock()
	sink := d.sink
	d.mu.Unlock()
	if sink != nil {
		sink(level, msg)
	}
}

// SetSerials changes the attached devices, simulating hotplug.
func (d *Driver) SetSerials(serials ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.Serials = append([]string(nil), serials...)
}

// Scans is the number of discovery scans performed.
func (d *Driver) Scans() int64 {
	return d.scans.Load()
}

// Unreleased is the number of delivered frames whose buffers were never given back.
func (d *Driver) Unreleased() int64 {
	return d.unfreed.Load()
}

func (d *Driver) serials() []string {
	d.scans.Inc()
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.opts.Serials...)
}

// EnumerateDevices scans for attached devices.
func (d *Driver) EnumerateDevices() (int, error) {
	return len(d.serials()), nil
}

// SerialNumber returns the serial of the device at index.
func (d *Driver) SerialNumber(index int) (string, error) {
	serials := d.serials()
	if index < 0 || index >= len(serials) {
		return "", errors.Errorf("no device at index %d", index)
	}
	return serials[index], nil
}

// DefaultSerialNumber returns the serial of the first device.
func (d *Driver) DefaultSerialNumber() (string, error) {
	serials := d.serials()
	if len(serials) == 0 {
		return "", errors.New("no device connected")
	}
	return serials[0], nil
}

// OpenDevice opens the device at index.
func (d *Driver) OpenDevice(index int, pipeline driver.PacketPipeline) (driver.Device, error) {
	serial, err := d.SerialNumber(index)
	if err != nil {
		return nil, err
	}
	return d.OpenDeviceBySerial(serial, pipeline)
}

// OpenDefaultDevice opens the first device.
func (d *Driver) OpenDefaultDevice(pipeline driver.PacketPipeline) (driver.Device, error) {
	serial, err := d.DefaultSerialNumber()
	if err != nil {
		return nil, err
	}
	return d.OpenDeviceBySerial(serial, pipeline)
}

// OpenDeviceBySerial opens a device. A device can only be open once at a time.
func (d *Driver) OpenDeviceBySerial(serial string, pipeline driver.PacketPipeline) (driver.Device, error) {
	found := false
	for _, s := range d.serials() {
		if s == serial {
			found = true
			break
		}
	}
	if !found {
		return nil, errors.Errorf("no device with serial %q", serial)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, errors.New("driver is closed")
	}
	if _, busy := d.open[serial]; busy {
		d.mu.Unlock()
		return nil, errors.Errorf("device %q is already open", serial)
	}
	dev := newDevice(d, serial, pipeline)
	d.open[serial] = dev
	d.mu.Unlock()

	if pipeline != driver.CPUPipeline {
		d.log(driver.LogWarning, pipeline.String()+" pipeline is not available, falling back to cpu")
	}
	d.log(driver.LogInfo, "opened device "+serial)
	return dev, nil
}

func (d *Driver) release(serial string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.open, serial)
}

// Close closes every device still open.
func (d *Driver) Close() error {
	d.mu.Lock()
	d.closed = true
	devices := make([]*Device, 0, len(d.open))
	for _, dev := range d.open {
		devices = append(devices, dev)
	}
	d.mu.Unlock()

	var err error
	for _, dev := range devices {
		err = multierr.Combine(err, dev.Close())
	}
	return err
}
