package frame

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
)

var (
	// ErrOutOfBounds is returned by pixel accessors for coordinates outside the frame.
	ErrOutOfBounds = errors.New("pixel out of bounds")
	// ErrPixelSize is returned by typed pixel accessors when the frame's bytes per pixel are too
	// few for its format.
	ErrPixelSize = errors.New("bytes per pixel too small for format")
)

func (f *Frame) offset(x, y int, want ...Format) (int, error) {
	if f.released {
		return 0, errors.New("frame is released")
	}
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return 0, errors.Wrapf(ErrOutOfBounds, "(%d, %d) in %dx%d", x, y, f.width, f.height)
	}
	if len(want) > 0 {
		ok := false
		for _, w := range want {
			if f.format == w {
				ok = true
				break
			}
		}
		if !ok {
			return 0, errors.Errorf("pixel access expects format %v, frame is %s", want, f.format)
		}
		if need := f.format.PixelSize(); f.bytesPerPixel < need {
			return 0, errors.Wrapf(ErrPixelSize, "%s pixel needs %d bytes, frame has %d", f.format, need, f.bytesPerPixel)
		}
	}
	i := (y*f.width + x) * f.bytesPerPixel
	if i+f.bytesPerPixel > len(f.data) {
		return 0, errors.Wrapf(ErrOutOfBounds, "(%d, %d) past the end of a %d byte buffer", x, y, len(f.data))
	}
	return i, nil
}

// ColorAt returns the pixel of an RGBX or BGRX frame.
func (f *Frame) ColorAt(x, y int) (color.NRGBA, error) {
	i, err := f.offset(x, y, RGBX, BGRX)
	if err != nil {
		return color.NRGBA{}, err
	}
	px := f.data[i : i+4]
	if f.format == BGRX {
		return color.NRGBA{R: px[2], G: px[1], B: px[0], A: 255}, nil
	}
	return color.NRGBA{R: px[0], G: px[1], B: px[2], A: 255}, nil
}

// SetColorAt writes the pixel of an RGBX or BGRX frame. Alpha is ignored.
func (f *Frame) SetColorAt(x, y int, c color.NRGBA) error {
	i, err := f.offset(x, y, RGBX, BGRX)
	if err != nil {
		return err
	}
	px := f.data[i : i+4]
	if f.format == BGRX {
		px[0], px[1], px[2] = c.B, c.G, c.R
	} else {
		px[0], px[1], px[2] = c.R, c.G, c.B
	}
	px[3] = 0
	return nil
}

// GrayAt returns the pixel of a Gray frame.
func (f *Frame) GrayAt(x, y int) (uint8, error) {
	i, err := f.offset(x, y, Gray)
	if err != nil {
		return 0, err
	}
	return f.data[i], nil
}

// FloatAt returns the pixel of a Float frame.
func (f *Frame) FloatAt(x, y int) (float32, error) {
	i, err := f.offset(x, y, Float)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(f.data[i:])), nil
}

// SetFloatAt writes the pixel of a Float frame.
func (f *Frame) SetFloatAt(x, y int, v float32) error {
	i, err := f.offset(x, y, Float)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(f.data[i:], math.Float32bits(v))
	return nil
}

// RawAt returns a copy of the bytes of one pixel regardless of format.
func (f *Frame) RawAt(x, y int) ([]byte, error) {
	i, err := f.offset(x, y)
	if err != nil {
		return nil, err
	}
	out := make([]byte, f.bytesPerPixel)
	copy(out, f.data[i:i+f.bytesPerPixel])
	return out, nil
}

// ToImage converts the frame into a Go image. Color frames become NRGBA, Gray frames Gray and
// Float frames Gray16 holding the value clamped to [0, 65535], which is millimeters for depth.
func (f *Frame) ToImage() (image.Image, error) {
	if f.released {
		return nil, errors.New("frame is released")
	}
	if f.bytesPerPixel < f.format.PixelSize() {
		return nil, errors.Wrapf(ErrPixelSize, "cannot convert %s frame with %d bytes per pixel", f.format, f.bytesPerPixel)
	}
	bounds := image.Rect(0, 0, f.width, f.height)
	switch f.format {
	case RGBX, BGRX:
		img := image.NewNRGBA(bounds)
		for y := 0; y < f.height; y++ {
			for x := 0; x < f.width; x++ {
				c, err := f.ColorAt(x, y)
				if err != nil {
					return nil, err
				}
				img.SetNRGBA(x, y, c)
			}
		}
		return img, nil
	case Gray:
		img := image.NewGray(bounds)
		for y := 0; y < f.height; y++ {
			for x := 0; x < f.width; x++ {
				v, err := f.GrayAt(x, y)
				if err != nil {
					return nil, err
				}
				img.Pix[y*img.Stride+x] = v
			}
		}
		return img, nil
	case Float:
		img := image.NewGray16(bounds)
		for y := 0; y < f.height; y++ {
			for x := 0; x < f.width; x++ {
				v, err := f.FloatAt(x, y)
				if err != nil {
					return nil, err
				}
				img.SetGray16(x, y, color.Gray16{Y: clampUint16(v)})
			}
		}
		return img, nil
	case Invalid, Raw:
		fallthrough
	default:
		return nil, errors.Errorf("cannot convert %s frame to an image", f.format)
	}
}

func clampUint16(v float32) uint16 {
	switch {
	case math.IsNaN(float64(v)), v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(v)
	}
}
