package driver

import (
	"go.viam.com/freenect2/frame"
	"go.viam.com/freenect2/rimage/transform"
)

// IrCameraParams are the factory intrinsics of the depth camera.
type IrCameraParams struct {
	Fx, Fy, Cx, Cy float64
	K1, K2, K3     float64
	P1, P2         float64
}

// Intrinsics returns the pinhole model of the 512x424 depth image.
func (p IrCameraParams) Intrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  frame.DepthWidth,
		Height: frame.DepthHeight,
		Fx:     p.Fx,
		Fy:     p.Fy,
		Ppx:    p.Cx,
		Ppy:    p.Cy,
	}
}

// Distortion returns the lens model of the depth camera.
func (p IrCameraParams) Distortion() *transform.BrownConrady {
	return &transform.BrownConrady{
		RadialK1:     p.K1,
		RadialK2:     p.K2,
		RadialK3:     p.K3,
		TangentialP1: p.P1,
		TangentialP2: p.P2,
	}
}

// Model combines intrinsics and distortion.
func (p IrCameraParams) Model() *transform.PinholeCameraModel {
	return &transform.PinholeCameraModel{PinholeCameraIntrinsics: p.Intrinsics(), Distortion: p.Distortion()}
}

// ColorCameraParams are the factory intrinsics of the color camera plus the coefficients relating
// depth pixels to color pixels.
type ColorCameraParams struct {
	Fx, Fy, Cx, Cy float64

	// ShiftM is the stereo baseline in millimeters. ShiftD is the disparity offset paired with it.
	ShiftD, ShiftM float64

	// Mx and My are the cubic polynomials mapping normalized depth coordinates to color
	// coordinates, in the order x³, y³, x²y, xy², x², y², xy, x, y, 1.
	Mx [10]float64
	My [10]float64
}

// Intrinsics returns the pinhole model of the 1920x1080 color image.
func (p ColorCameraParams) Intrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  frame.ColorWidth,
		Height: frame.ColorHeight,
		Fx:     p.Fx,
		Fy:     p.Fy,
		Ppx:    p.Cx,
		Ppy:    p.Cy,
	}
}
