package fake

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/freenect2/config"
	"go.viam.com/freenect2/driver"
	"go.viam.com/freenect2/frame"
	"go.viam.com/freenect2/logging"
	"go.viam.com/freenect2/utils"
)

var (
	errDeviceClosed   = errors.New("device is closed")
	errStreaming      = errors.New("device is already streaming")
	errNotStreaming   = errors.New("device is not streaming")
	errNoStreamsAsked = errors.New("at least one of color or depth must be started")
)

// The device clock ticks every 0.125ms; a capture every 33.4ms is 267 ticks.
const ticksPerCapture = 267

// Device is a simulated open device.
type Device struct {
	drv      *Driver
	serial   string
	pipeline driver.PacketPipeline
	logger   logging.Logger

	mu        sync.Mutex
	color     driver.FrameListener
	irDepth   driver.FrameListener
	cfg       config.Config
	workers   utils.StoppableWorkers
	streaming bool
	closed    bool
}

func newDevice(drv *Driver, serial string, pipeline driver.PacketPipeline) *Device {
	return &Device{
		drv:      drv,
		serial:   serial,
		pipeline: pipeline,
		logger:   drv.logger.Sublogger(serial),
		cfg:      config.New(),
	}
}

// SerialNumber of the device.
func (d *Device) SerialNumber() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", errDeviceClosed
	}
	return d.serial, nil
}

// FirmwareVersion of the device.
func (d *Device) FirmwareVersion() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", errDeviceClosed
	}
	return d.drv.opts.FirmwareVersion, nil
}

// SetColorFrameListener sets the listener of the color stream.
func (d *Device) SetColorFrameListener(l driver.FrameListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.color = l
}

// SetIrAndDepthFrameListener sets the listener of the IR and depth stream.
func (d *Device) SetIrAndDepthFrameListener(l driver.FrameListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.irDepth = l
}

// SetConfig applies depth processing settings. Running streams pick them up on the next capture.
func (d *Device) SetConfig(cfg config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errDeviceClosed
	}
	d.cfg = cfg
	return nil
}

// Config returns the settings last applied.
func (d *Device) Config() config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Start starts both streams.
func (d *Device) Start() error {
	return d.StartStreams(true, true)
}

// StartStreams starts the requested streams.
func (d *Device) StartStreams(rgb, depth bool) error {
	if !rgb && !depth {
		return errNoStreamsAsked
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errDeviceClosed
	}
	if d.streaming {
		return errStreaming
	}

	d.workers = utils.NewStoppableWorkers()
	if rgb {
		d.workers.AddWorkers(func(ctx context.Context) { d.produce(ctx, "color", d.emitColor) })
	}
	if depth {
		d.workers.AddWorkers(func(ctx context.Context) { d.produce(ctx, "ir/depth", d.emitIrDepth) })
	}
	d.streaming = true
	d.logger.Debugw("streams started", "color", rgb, "depth", depth, "pipeline", d.pipeline.String())
	return nil
}

// Stop stops streaming and waits for the capture goroutines, and so any running callback, to
// return.
func (d *Device) Stop() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errDeviceClosed
	}
	if !d.streaming {
		d.mu.Unlock()
		return errNotStreaming
	}
	workers := d.workers
	d.workers = nil
	d.streaming = false
	d.mu.Unlock()

	workers.Stop()
	d.logger.Debug("streams stopped")
	return nil
}

// Close stops streaming if needed and gives the device back to the driver.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errDeviceClosed
	}
	workers := d.workers
	d.workers = nil
	d.streaming = false
	d.closed = true
	d.color, d.irDepth = nil, nil
	d.mu.Unlock()

	if workers != nil {
		workers.Stop()
	}
	d.drv.release(d.serial)
	d.drv.log(driver.LogInfo, "closed device "+d.serial)
	return nil
}

// IrCameraParams returns the depth camera intrinsics.
func (d *Device) IrCameraParams() (driver.IrCameraParams, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return driver.IrCameraParams{}, errDeviceClosed
	}
	return *d.drv.opts.IrParams, nil
}

// ColorCameraParams returns the color camera intrinsics.
func (d *Device) ColorCameraParams() (driver.ColorCameraParams, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return driver.ColorCameraParams{}, errDeviceClosed
	}
	return *d.drv.opts.ColorParams, nil
}

// NewRegistration builds a software registration engine for the given parameters.
func (d *Device) NewRegistration(ir driver.IrCameraParams, color driver.ColorCameraParams) (driver.RegistrationEngine, error) {
	engine, err := NewRegistrationEngine(ir, color)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

func (d *Device) produce(ctx context.Context, stream string, emit func(seq uint32) error) {
	ticker := time.NewTicker(d.drv.opts.Interval)
	defer ticker.Stop()

	limit := d.drv.opts.FrameLimit
	for seq := uint32(0); limit == 0 || int(seq) < limit; seq++ {
		if ctx.Err() != nil {
			return
		}
		if err := emit(seq); err != nil {
			d.logger.Warnw("listener failed, stopping stream", "stream", stream, "error", err)
			d.drv.log(driver.LogError, stream+" listener failed: "+err.Error())
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *Device) listeners() (color, irDepth driver.FrameListener, cfg config.Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.color, d.irDepth, d.cfg
}

// newFrame allocates a frame that counts as driver memory until released.
func (d *Device) newFrame(width, height int, format frame.Format, meta frame.Metadata) (*frame.Frame, error) {
	f, err := frame.Wrap(width, height, frame.BytesPerPixel, nil, format, meta, func() {
		d.drv.unfreed.Dec()
	})
	if err != nil {
		return nil, err
	}
	d.drv.unfreed.Inc()
	return f, nil
}

func metadataFor(seq uint32) frame.Metadata {
	return frame.Metadata{Timestamp: seq * ticksPerCapture, Sequence: seq, Gain: 1, Gamma: 1}
}

func (d *Device) emitColor(seq uint32) error {
	l, _, _ := d.listeners()
	if l == nil {
		return nil
	}
	meta := metadataFor(seq)
	meta.Exposure = 10
	f, err := d.newFrame(frame.ColorWidth, frame.ColorHeight, d.drv.opts.ColorFormat, meta)
	if err != nil {
		return err
	}
	data := f.Data()
	for y := 0; y < frame.ColorHeight; y++ {
		g := byte(y * 255 / (frame.ColorHeight - 1))
		for x := 0; x < frame.ColorWidth; x++ {
			r := byte(x * 255 / (frame.ColorWidth - 1))
			i := (y*frame.ColorWidth + x) * frame.BytesPerPixel
			if f.Format() == frame.BGRX {
				data[i], data[i+1], data[i+2] = byte(seq), g, r
			} else {
				data[i], data[i+1], data[i+2] = r, g, byte(seq)
			}
		}
	}
	return l.OnNewFrame(frame.Color, f)
}

func (d *Device) emitIrDepth(seq uint32) error {
	_, l, cfg := d.listeners()
	if l == nil {
		return nil
	}
	ir, err := d.newFrame(frame.DepthWidth, frame.DepthHeight, frame.Float, metadataFor(seq))
	if err != nil {
		return err
	}
	fillFloat(ir, func(x, y int) float32 { return float32(1000 + x + y) })
	if err := l.OnNewFrame(frame.Ir, ir); err != nil {
		return err
	}

	depth, err := d.newFrame(frame.DepthWidth, frame.DepthHeight, frame.Float, metadataFor(seq))
	if err != nil {
		return err
	}
	minMM, maxMM := cfg.MinDepth()*1000, cfg.MaxDepth()*1000
	fillFloat(depth, func(x, y int) float32 {
		z := SceneDepth(x, y)
		if z < minMM || z > maxMM {
			return 0
		}
		return z
	})
	return l.OnNewFrame(frame.Depth, depth)
}

// SceneDepth is the simulated distance in millimeters seen by depth pixel (x, y): a tilted wall
// with a box in front of it.
func SceneDepth(x, y int) float32 {
	if x >= 200 && x < 300 && y >= 150 && y < 250 {
		return 800
	}
	return 1000 + 2.5*float32(x) + 1.5*float32(y)
}

func fillFloat(f *frame.Frame, value func(x, y int) float32) {
	data := f.Data()
	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			i := (y*f.Width() + x) * frame.BytesPerPixel
			binary.LittleEndian.PutUint32(data[i:], math.Float32bits(value(x, y)))
		}
	}
}
