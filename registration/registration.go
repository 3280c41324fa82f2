// Package registration aligns depth images with color images of the same device.
package registration

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/freenect2/driver"
	"go.viam.com/freenect2/frame"
)

// ErrInvalidFrame is returned when a frame handed to a registration has the wrong shape or format.
var ErrInvalidFrame = errors.New("invalid frame for registration")

// Registration maps depth images into the color camera, using the camera parameters captured when
// it was created. It holds no reference to the session it came from and is safe to use after that
// session closes, or from several goroutines as long as they use distinct output frames.
type Registration struct {
	ir     driver.IrCameraParams
	color  driver.ColorCameraParams
	engine driver.RegistrationEngine
}

// New binds a registration engine to a snapshot of camera parameters.
func New(ir driver.IrCameraParams, color driver.ColorCameraParams, engine driver.RegistrationEngine) (*Registration, error) {
	if engine == nil {
		return nil, errors.New("registration engine is required")
	}
	return &Registration{ir: ir, color: color, engine: engine}, nil
}

// IrParams returns the depth camera parameters the registration was built with.
func (r *Registration) IrParams() driver.IrCameraParams {
	return r.ir
}

// ColorParams returns the color camera parameters the registration was built with.
func (r *Registration) ColorParams() driver.ColorCameraParams {
	return r.color
}

// DepthCameraMatrix is the 3x3 intrinsic matrix of the depth camera.
func (r *Registration) DepthCameraMatrix() *mat.Dense {
	return r.ir.Intrinsics().GetCameraMatrix()
}

// ColorCameraMatrix is the 3x3 intrinsic matrix of the color camera.
func (r *Registration) ColorCameraMatrix() *mat.Dense {
	return r.color.Intrinsics().GetCameraMatrix()
}

func check(name string, f *frame.Frame, width, height int, formats ...frame.Format) error {
	if f == nil {
		return errors.Wrapf(ErrInvalidFrame, "%s frame is nil", name)
	}
	if f.Released() {
		return errors.Wrapf(ErrInvalidFrame, "%s frame was released", name)
	}
	if f.Width() != width || f.Height() != height || f.BytesPerPixel() != frame.BytesPerPixel {
		return errors.Wrapf(ErrInvalidFrame, "%s frame is %dx%dx%d, want %dx%dx%d",
			name, f.Width(), f.Height(), f.BytesPerPixel(), width, height, frame.BytesPerPixel)
	}
	for _, format := range formats {
		if f.Format() == format {
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidFrame, "%s frame has format %s, want one of %v", name, f.Format(), formats)
}

func checkMapping(depth, color, undistorted, colorDepth *frame.Frame) error {
	if err := check("depth", depth, frame.DepthWidth, frame.DepthHeight, frame.Float); err != nil {
		return err
	}
	if err := check("color", color, frame.ColorWidth, frame.ColorHeight, frame.RGBX, frame.BGRX); err != nil {
		return err
	}
	if err := check("undistorted", undistorted, frame.DepthWidth, frame.DepthHeight, frame.Float); err != nil {
		return err
	}
	return check("registered", colorDepth, frame.DepthWidth, frame.DepthHeight, frame.RGBX, frame.BGRX)
}

// MapDepthToColor undistorts depth into undistorted and fills colorDepth with the color of the
// pixel each depth pixel projects onto. colorDepth takes color's pixel format. With enableFilter,
// depth pixels occluded from the color camera are left black.
func (r *Registration) MapDepthToColor(depth, color, undistorted, colorDepth *frame.Frame, enableFilter bool) error {
	return r.MapDepthToFullColor(depth, color, undistorted, colorDepth, enableFilter, nil)
}

// MapDepthToFullColor is MapDepthToColor that also fills bigDepth, when non-nil, with depth as
// seen from the color camera (1920x1082, one padding row above and below the color image).
func (r *Registration) MapDepthToFullColor(
	depth, color, undistorted, colorDepth *frame.Frame, enableFilter bool, bigDepth *frame.Frame,
) error {
	if err := checkMapping(depth, color, undistorted, colorDepth); err != nil {
		return err
	}
	if bigDepth != nil {
		if err := check("big depth", bigDepth, frame.BigDepthWidth, frame.BigDepthHeight, frame.Float); err != nil {
			return err
		}
	}
	colorDepth.SetFormat(color.Format())
	return r.engine.Apply(color, depth, undistorted, colorDepth, enableFilter, bigDepth)
}

// UndistortDepth removes lens distortion from depth into undistorted.
func (r *Registration) UndistortDepth(depth, undistorted *frame.Frame) error {
	if err := check("depth", depth, frame.DepthWidth, frame.DepthHeight, frame.Float); err != nil {
		return err
	}
	if err := check("undistorted", undistorted, frame.DepthWidth, frame.DepthHeight, frame.Float); err != nil {
		return err
	}
	return r.engine.UndistortDepth(depth, undistorted)
}
