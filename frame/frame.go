// Package frame defines the image buffers exchanged with the camera driver.
//
// A Frame has exactly one owner at a time. Frames handed to a listener callback are owned by the
// callback for its duration and released by the listener bridge once it returns, unless the
// callback took them with Detach.
package frame

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Sizes produced by the Kinect v2 class devices.
const (
	DepthWidth     = 512
	DepthHeight    = 424
	ColorWidth     = 1920
	ColorHeight    = 1080
	BigDepthWidth  = ColorWidth
	BigDepthHeight = ColorHeight + 2
	BytesPerPixel  = 4
)

// TimestampUnit is the duration of one timestamp tick.
const TimestampUnit = 125 * time.Microsecond

// Metadata is the per-capture information attached to a frame.
type Metadata struct {
	// Timestamp in TimestampUnit ticks.
	Timestamp uint32
	Sequence  uint32
	// Exposure time in milliseconds, color frames only.
	Exposure float32
	Gain     float32
	Gamma    float32
	// Status is zero for a good frame.
	Status uint32
}

// Frame is a width*height*bytesPerPixel image buffer plus capture metadata.
type Frame struct {
	width         int
	height        int
	bytesPerPixel int
	data          []byte
	format        Format
	meta          Metadata

	release  func()
	released bool
}

// New creates a frame. A nil data slice allocates a zeroed buffer; otherwise the frame takes
// ownership of data, whose length must be exactly width*height*bytesPerPixel.
func New(width, height, bytesPerPixel int, data []byte, format Format, meta Metadata) (*Frame, error) {
	if width < 0 || height < 0 || bytesPerPixel <= 0 {
		return nil, errors.Errorf("invalid frame dimensions %dx%dx%d", width, height, bytesPerPixel)
	}
	size := width * height * bytesPerPixel
	if data == nil {
		data = make([]byte, size)
	}
	if len(data) != size {
		return nil, errors.Errorf("frame data is %d bytes, %dx%dx%d requires %d",
			len(data), width, height, bytesPerPixel, size)
	}
	return &Frame{
		width:         width,
		height:        height,
		bytesPerPixel: bytesPerPixel,
		data:          data,
		format:        format,
		meta:          meta,
	}, nil
}

// Wrap creates a frame over memory owned elsewhere, e.g. by the native driver. release is called
// exactly once, when the frame is released or detached.
func Wrap(width, height, bytesPerPixel int, data []byte, format Format, meta Metadata, release func()) (*Frame, error) {
	f, err := New(width, height, bytesPerPixel, data, format, meta)
	if err != nil {
		return nil, err
	}
	f.release = release
	return f, nil
}

func mustNew(width, height int, format Format) *Frame {
	f, err := New(width, height, BytesPerPixel, nil, format, Metadata{})
	if err != nil {
		panic(err)
	}
	return f
}

// NewDepth allocates an undistorted depth output for registration: 512x424 Float.
func NewDepth() *Frame {
	return mustNew(DepthWidth, DepthHeight, Float)
}

// NewColorForDepth allocates a registered color output for registration: 512x424 RGBX.
func NewColorForDepth() *Frame {
	return mustNew(DepthWidth, DepthHeight, RGBX)
}

// NewDepthFullColor allocates a depth image in color camera space: 1920x1082 Float. The extra two
// rows are padding the driver writes past the color image.
func NewDepthFullColor() *Frame {
	return mustNew(BigDepthWidth, BigDepthHeight, Float)
}

// Width in pixels.
func (f *Frame) Width() int { return f.width }

// Height in pixels.
func (f *Frame) Height() int { return f.height }

// BytesPerPixel is the size of one pixel in the data buffer.
func (f *Frame) BytesPerPixel() int { return f.bytesPerPixel }

// Data returns the backing buffer, or nil once the frame is released.
func (f *Frame) Data() []byte { return f.data }

// Format returns the pixel format.
func (f *Frame) Format() Format { return f.format }

// SetFormat overwrites the pixel format label. The data is not converted.
func (f *Frame) SetFormat(format Format) { f.format = format }

// Metadata returns a copy of the capture metadata.
func (f *Frame) Metadata() Metadata { return f.meta }

// SetMetadata replaces the capture metadata.
func (f *Frame) SetMetadata(meta Metadata) { f.meta = meta }

// Timestamp in TimestampUnit ticks.
func (f *Frame) Timestamp() uint32 { return f.meta.Timestamp }

// TimestampDuration converts the timestamp to a duration since the device's epoch.
func (f *Frame) TimestampDuration() time.Duration {
	return time.Duration(f.meta.Timestamp) * TimestampUnit
}

// Sequence number of the capture.
func (f *Frame) Sequence() uint32 { return f.meta.Sequence }

// Exposure in milliseconds.
func (f *Frame) Exposure() float32 { return f.meta.Exposure }

// Gain of the color sensor.
func (f *Frame) Gain() float32 { return f.meta.Gain }

// Gamma of the color sensor.
func (f *Frame) Gamma() float32 { return f.meta.Gamma }

// Status is zero for a good frame.
func (f *Frame) Status() uint32 { return f.meta.Status }

// Released reports whether the backing buffer has been given up.
func (f *Frame) Released() bool { return f.released }

// Release gives up the backing buffer. Only the first call has an effect.
func (f *Frame) Release() {
	if f.released {
		return
	}
	f.released = true
	f.data = nil
	if f.release != nil {
		release := f.release
		f.release = nil
		release()
	}
}

// Detach moves the frame's contents into a new frame owned by the caller and releases f. Frames
// over driver memory are copied first. Use this to keep a frame past the end of a callback.
func (f *Frame) Detach() (*Frame, error) {
	if f.released {
		return nil, errors.New("cannot detach a released frame")
	}
	data := f.data
	if f.release != nil {
		data = make([]byte, len(f.data))
		copy(data, f.data)
	} else {
		f.data = nil
	}
	out := &Frame{
		width:         f.width,
		height:        f.height,
		bytesPerPixel: f.bytesPerPixel,
		data:          data,
		format:        f.format,
		meta:          f.meta,
	}
	f.Release()
	return out, nil
}

// Clone returns a deep copy owned by the caller.
func (f *Frame) Clone() (*Frame, error) {
	if f.released {
		return nil, errors.New("cannot clone a released frame")
	}
	data := make([]byte, len(f.data))
	copy(data, f.data)
	return New(f.width, f.height, f.bytesPerPixel, data, f.format, f.meta)
}

func (f *Frame) String() string {
	return fmt.Sprintf("%dx%dx%d %s seq=%d ts=%d", f.width, f.height, f.bytesPerPixel, f.format, f.meta.Sequence, f.meta.Timestamp)
}
