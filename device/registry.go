// Package device opens depth cameras and runs their streaming sessions.
package device

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/freenect2/driver"
	"go.viam.com/freenect2/logging"
)

// InstallDriverLogger routes the driver's log messages to logger. The native sink is process-wide,
// so the last install wins.
func InstallDriverLogger(drv driver.Driver, logger logging.Logger) {
	drv.SetLogSink(driver.LoggerSink(logger))
}

// Registry finds attached devices and opens sessions on them. Every query rescans the bus; results
// may be stale as soon as they are returned.
type Registry struct {
	mu     sync.Mutex
	drv    driver.Driver
	logger logging.Logger
}

// NewRegistry creates a registry over drv and forwards the driver's messages to logger.
func NewRegistry(drv driver.Driver, logger logging.Logger) *Registry {
	logger = logger.Sublogger("registry")
	InstallDriverLogger(drv, logger.Sublogger("driver"))
	return &Registry{drv: drv, logger: logger}
}

// OpenOption configures how a device is opened.
type OpenOption func(*openOptions)

type openOptions struct {
	pipeline driver.PacketPipeline
}

// WithPipeline selects the packet pipeline the driver decodes with. Defaults to the CPU pipeline.
func WithPipeline(p driver.PacketPipeline) OpenOption {
	return func(o *openOptions) {
		o.pipeline = p
	}
}

func collect(opts []OpenOption) openOptions {
	o := openOptions{pipeline: driver.CPUPipeline}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// EnumerateDevices returns the number of attached devices.
func (r *Registry) EnumerateDevices() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.drv.EnumerateDevices()
	if err != nil {
		return 0, errors.Wrap(err, "enumerating devices")
	}
	return n, nil
}

// SerialNumberAt returns the serial of the device at index.
func (r *Registry) SerialNumberAt(index int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.drv.EnumerateDevices()
	if err != nil {
		return "", errors.Wrap(err, "enumerating devices")
	}
	if index < 0 || index >= n {
		return "", errors.Wrapf(ErrIndexOutOfRange, "index %d with %d device(s) attached", index, n)
	}
	serial, err := r.drv.SerialNumber(index)
	if err != nil {
		return "", errors.Wrapf(err, "reading serial of device %d", index)
	}
	return serial, nil
}

// DefaultSerialNumber returns the serial of the device OpenDefault would open.
func (r *Registry) DefaultSerialNumber() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.drv.EnumerateDevices()
	if err != nil {
		return "", errors.Wrap(err, "enumerating devices")
	}
	if n == 0 {
		return "", ErrNoDeviceFound
	}
	serial, err := r.drv.DefaultSerialNumber()
	if err != nil {
		return "", errors.Wrap(err, "reading default serial")
	}
	return serial, nil
}

// OpenByIndex opens the device at index.
func (r *Registry) OpenByIndex(index int, opts ...OpenOption) (*Session, error) {
	o := collect(opts)
	r.mu.Lock()
	defer r.mu.Unlock()
	dev, err := r.drv.OpenDevice(index, o.pipeline)
	if err != nil || dev == nil {
		return nil, openFailure(err, fmt.Sprintf("device %d", index))
	}
	return r.newSession(dev, o)
}

// OpenBySerial opens the device with the given serial.
func (r *Registry) OpenBySerial(serial string, opts ...OpenOption) (*Session, error) {
	o := collect(opts)
	r.mu.Lock()
	defer r.mu.Unlock()
	dev, err := r.drv.OpenDeviceBySerial(serial, o.pipeline)
	if err != nil || dev == nil {
		return nil, openFailure(err, fmt.Sprintf("device %q", serial))
	}
	return r.newSession(dev, o)
}

// OpenDefault opens the first attached device.
func (r *Registry) OpenDefault(opts ...OpenOption) (*Session, error) {
	o := collect(opts)
	r.mu.Lock()
	defer r.mu.Unlock()
	dev, err := r.drv.OpenDefaultDevice(o.pipeline)
	if err != nil || dev == nil {
		return nil, openFailure(err, "default device")
	}
	return r.newSession(dev, o)
}

func openFailure(cause error, what string) error {
	if cause == nil {
		return errors.Wrap(ErrDeviceOpenFailure, what)
	}
	return errors.Wrapf(ErrDeviceOpenFailure, "%s: %v", what, cause)
}

func (r *Registry) newSession(dev driver.Device, o openOptions) (*Session, error) {
	serial, err := dev.SerialNumber()
	if err != nil {
		closeErr := dev.Close()
		return nil, openFailure(multierr.Combine(err, closeErr), "reading serial of opened device")
	}
	s := newSession(dev, serial, o.pipeline, r.logger)
	s.logger.Infow("opened device", "serial", serial, "pipeline", o.pipeline.String())
	return s, nil
}
