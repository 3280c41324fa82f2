package fake

import (
	"encoding/binary"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/freenect2/driver"
	"go.viam.com/freenect2/frame"
	"go.viam.com/freenect2/rimage/transform"
	"go.viam.com/freenect2/utils"
)

// Occlusion filter window around each mapped color pixel, and the relative depth difference
// beyond which a depth pixel counts as hidden behind a nearer one.
const (
	filterHalfWidth  = 2
	filterHalfHeight = 1
	filterTolerance  = 0.01
)

// RegistrationEngine maps depth pixels into the color image with pinhole models of both cameras
// separated by the ShiftM baseline along x.
type RegistrationEngine struct {
	depth   *transform.PinholeCameraIntrinsics
	color   *transform.PinholeCameraIntrinsics
	toColor *transform.Extrinsics

	// undistortSource[i] is the raw depth pixel imaged at undistorted pixel i, or -1.
	undistortSource []int32
}

// NewRegistrationEngine precomputes the undistortion table for the given parameters.
func NewRegistrationEngine(ir driver.IrCameraParams, color driver.ColorCameraParams) (*RegistrationEngine, error) {
	model := ir.Model()
	if err := model.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "invalid depth camera parameters")
	}
	colorIntrinsics := color.Intrinsics()
	if err := colorIntrinsics.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "invalid color camera parameters")
	}

	e := &RegistrationEngine{
		depth:           model.PinholeCameraIntrinsics,
		color:           colorIntrinsics,
		toColor:         transform.NewTranslationExtrinsics(r3.Vector{X: color.ShiftM}),
		undistortSource: make([]int32, frame.DepthWidth*frame.DepthHeight),
	}
	distort := model.DistortionMap()
	utils.ParallelForEachRow(frame.DepthHeight, func(y int) {
		for x := 0; x < frame.DepthWidth; x++ {
			i := y*frame.DepthWidth + x
			dx, dy := distort(float64(x), float64(y))
			sx, sy, ok := e.depth.Contains(r2.Point{X: dx, Y: dy})
			if !ok {
				e.undistortSource[i] = -1
				continue
			}
			e.undistortSource[i] = int32(sy*frame.DepthWidth + sx)
		}
	})
	return e, nil
}

func checkSize(name string, f *frame.Frame, width, height int) error {
	if f == nil {
		return errors.Errorf("%s frame is missing", name)
	}
	if f.Width() != width || f.Height() != height || f.BytesPerPixel() != frame.BytesPerPixel ||
		len(f.Data()) != width*height*frame.BytesPerPixel {
		return errors.Errorf("%s frame must be %dx%dx%d, got %dx%dx%d",
			name, width, height, frame.BytesPerPixel, f.Width(), f.Height(), f.BytesPerPixel())
	}
	return nil
}

func floatAt(data []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
}

func putFloat(data []byte, i int, v float32) {
	binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
}

// UndistortDepth removes lens distortion from a depth frame. Pixels with no source are zero.
func (e *RegistrationEngine) UndistortDepth(depth, undistorted *frame.Frame) error {
	if err := checkSize("depth", depth, frame.DepthWidth, frame.DepthHeight); err != nil {
		return err
	}
	if err := checkSize("undistorted", undistorted, frame.DepthWidth, frame.DepthHeight); err != nil {
		return err
	}
	src, dst := depth.Data(), undistorted.Data()
	utils.ParallelForEachRow(frame.DepthHeight, func(y int) {
		for i := y * frame.DepthWidth; i < (y+1)*frame.DepthWidth; i++ {
			from := e.undistortSource[i]
			if from < 0 {
				putFloat(dst, i, 0)
				continue
			}
			copy(dst[i*4:i*4+4], src[from*4:from*4+4])
		}
	})
	return nil
}

// Apply undistorts depth and colors every depth pixel with the color pixel it projects onto. With
// enableFilter, depth pixels hidden from the color camera by nearer surfaces are left black.
// bigDepth, when given, receives depth seen from the color camera, one row of padding on top and
// bottom, +Inf where nothing projects.
func (e *RegistrationEngine) Apply(
	rgb, depth, undistorted, registered *frame.Frame, enableFilter bool, bigDepth *frame.Frame,
) error {
	if err := checkSize("color", rgb, frame.ColorWidth, frame.ColorHeight); err != nil {
		return err
	}
	if err := checkSize("registered", registered, frame.DepthWidth, frame.DepthHeight); err != nil {
		return err
	}
	if bigDepth != nil {
		if err := checkSize("big depth", bigDepth, frame.BigDepthWidth, frame.BigDepthHeight); err != nil {
			return err
		}
	}
	if err := e.UndistortDepth(depth, undistorted); err != nil {
		return err
	}

	const bigWidth = frame.BigDepthWidth
	zbuf := make([]float32, bigWidth*frame.BigDepthHeight)
	for i := range zbuf {
		zbuf[i] = float32(math.Inf(1))
	}
	// colorIndex[i] is the color pixel depth pixel i lands on, or -1.
	colorIndex := make([]int32, frame.DepthWidth*frame.DepthHeight)

	ud := undistorted.Data()
	for y := 0; y < frame.DepthHeight; y++ {
		for x := 0; x < frame.DepthWidth; x++ {
			i := y*frame.DepthWidth + x
			colorIndex[i] = -1
			z := floatAt(ud, i)
			if z <= 0 || math.IsNaN(float64(z)) {
				continue
			}
			p := e.toColor.Apply(e.depth.PixelToPoint(float64(x), float64(y), float64(z)))
			cx, cy, ok := e.color.Contains(e.color.PointToPixel(p))
			if !ok {
				continue
			}
			colorIndex[i] = int32(cy*frame.ColorWidth + cx)
			zi := (cy+1)*bigWidth + cx
			if z < zbuf[zi] {
				zbuf[zi] = z
			}
		}
	}

	colorData, out := rgb.Data(), registered.Data()
	for i, ci := range colorIndex {
		o := out[i*4 : i*4+4]
		if ci < 0 || (enableFilter && e.occluded(zbuf, int(ci), floatAt(ud, i))) {
			o[0], o[1], o[2], o[3] = 0, 0, 0, 0
			continue
		}
		copy(o, colorData[int(ci)*4:int(ci)*4+4])
	}

	if bigDepth != nil {
		bd := bigDepth.Data()
		for i, z := range zbuf {
			putFloat(bd, i, z)
		}
	}
	return nil
}

func (e *RegistrationEngine) occluded(zbuf []float32, colorIndex int, z float32) bool {
	cx, cy := colorIndex%frame.ColorWidth, colorIndex/frame.ColorWidth+1
	for dy := -filterHalfHeight; dy <= filterHalfHeight; dy++ {
		y := cy + dy
		if y < 0 || y >= frame.BigDepthHeight {
			continue
		}
		for dx := -filterHalfWidth; dx <= filterHalfWidth; dx++ {
			x := cx + dx
			if x < 0 || x >= frame.BigDepthWidth {
				continue
			}
			if near := zbuf[y*frame.BigDepthWidth+x]; (z-near)/z > filterTolerance {
				return true
			}
		}
	}
	return false
}
