package frame

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Type identifies the stream a frame was captured from. Values match the driver's numbering.
type Type int

// Frame types.
const (
	Color Type = 1
	Ir    Type = 2
	Depth Type = 4
)

// Types lists every frame type in driver order.
var Types = []Type{Color, Ir, Depth}

func (t Type) String() string {
	switch t {
	case Color:
		return "color"
	case Ir:
		return "ir"
	case Depth:
		return "depth"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Valid reports whether t is one of the driver's frame types.
func (t Type) Valid() bool {
	return t == Color || t == Ir || t == Depth
}

// ParseType parses "color", "ir" or "depth".
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, errors.Errorf("unknown frame type %q", s)
}

// Format describes the pixel layout of a frame. Values match the driver's numbering.
type Format int

// Frame formats.
const (
	Invalid Format = 0
	// Raw is undecoded data, e.g. JPEG color before decompression.
	Raw Format = 1
	// Float is one little-endian float32 per pixel. Depth is in millimeters.
	Float Format = 2
	BGRX  Format = 4
	RGBX  Format = 5
	Gray  Format = 6
)

func (f Format) String() string {
	switch f {
	case Invalid:
		return "invalid"
	case Raw:
		return "raw"
	case Float:
		return "float"
	case BGRX:
		return "bgrx"
	case RGBX:
		return "rgbx"
	case Gray:
		return "gray"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// IsColor reports whether f is one of the 4 byte color layouts.
func (f Format) IsColor() bool {
	return f == BGRX || f == RGBX
}

// PixelSize is the number of bytes a typed pixel accessor reads for f, or 0 when f has no typed
// accessor.
func (f Format) PixelSize() int {
	switch f {
	case Float, BGRX, RGBX:
		return 4
	case Gray:
		return 1
	case Invalid, Raw:
		return 0
	default:
		return 0
	}
}
