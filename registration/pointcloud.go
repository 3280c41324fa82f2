package registration

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/freenect2/frame"
	"go.viam.com/freenect2/pointcloud"
)

// minValidDepth is the depth in millimeters at or below which a pixel holds no measurement.
const minValidDepth = 1

// Point back-projects pixel (row, col) of an undistorted depth image into depth camera space, in
// millimeters. ok is false where the pixel holds no measurement.
func (r *Registration) Point(undistorted *frame.Frame, row, col int) (r3.Vector, bool, error) {
	if err := check("undistorted", undistorted, frame.DepthWidth, frame.DepthHeight, frame.Float); err != nil {
		return r3.Vector{}, false, err
	}
	return r.point(undistorted, row, col)
}

func (r *Registration) point(undistorted *frame.Frame, row, col int) (r3.Vector, bool, error) {
	z, err := undistorted.FloatAt(col, row)
	if err != nil {
		return r3.Vector{}, false, err
	}
	if math.IsNaN(float64(z)) || z <= minValidDepth {
		return r3.Vector{}, false, nil
	}
	// Pixel centers sit half a pixel in.
	return r.ir.Intrinsics().PixelToPoint(float64(col)+0.5, float64(row)+0.5, float64(z)), true, nil
}

// PointCloud back-projects every measured pixel of an undistorted depth image. When registered is
// non-nil, the output of MapDepthToColor for the same depth image, points take its colors.
func (r *Registration) PointCloud(undistorted, registered *frame.Frame) (pointcloud.PointCloud, error) {
	if err := check("undistorted", undistorted, frame.DepthWidth, frame.DepthHeight, frame.Float); err != nil {
		return nil, err
	}
	if registered != nil {
		if err := check("registered", registered, frame.DepthWidth, frame.DepthHeight, frame.RGBX, frame.BGRX); err != nil {
			return nil, err
		}
	}

	pc := pointcloud.NewWithPrealloc(frame.DepthWidth * frame.DepthHeight)
	for row := 0; row < frame.DepthHeight; row++ {
		for col := 0; col < frame.DepthWidth; col++ {
			p, ok, err := r.point(undistorted, row, col)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			d := pointcloud.NewBasicData()
			if registered != nil {
				c, err := registered.ColorAt(col, row)
				if err != nil {
					return nil, err
				}
				d.SetColor(c)
			}
			if err := pc.Set(p, d); err != nil {
				return nil, err
			}
		}
	}
	return pc, nil
}
