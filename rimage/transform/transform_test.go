package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

var irIntrinsics = &PinholeCameraIntrinsics{
	Width:  512,
	Height: 424,
	Fx:     365.456,
	Fy:     365.456,
	Ppx:    254.878,
	Ppy:    205.395,
}

func TestIntrinsicsCheckValid(t *testing.T) {
	test.That(t, irIntrinsics.CheckValid(), test.ShouldBeNil)

	var missing *PinholeCameraIntrinsics
	test.That(t, errors.Is(missing.CheckValid(), ErrNoIntrinsics), test.ShouldBeTrue)

	bad := *irIntrinsics
	bad.Fx = 0
	err := bad.CheckValid()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Invalid focal length Fx")

	bad = *irIntrinsics
	bad.Width = 0
	test.That(t, bad.CheckValid(), test.ShouldNotBeNil)
}

func TestPixelPointRoundTrip(t *testing.T) {
	pt := irIntrinsics.PixelToPoint(100, 300, 1500)
	test.That(t, pt.Z, test.ShouldEqual, 1500.)

	px := irIntrinsics.PointToPixel(pt)
	test.That(t, px.X, test.ShouldAlmostEqual, 100., 1e-9)
	test.That(t, px.Y, test.ShouldAlmostEqual, 300., 1e-9)

	test.That(t, irIntrinsics.PointToPixel(r3.Vector{X: 1, Y: 1}), test.ShouldResemble, r2.Point{X: -1, Y: -1})

	x, y, ok := irIntrinsics.Contains(r2.Point{X: 511.4, Y: 0.2})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, x, test.ShouldEqual, 511)
	test.That(t, y, test.ShouldEqual, 0)
	_, _, ok = irIntrinsics.Contains(r2.Point{X: 511.6, Y: 0})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestCameraMatrix(t *testing.T) {
	m := irIntrinsics.GetCameraMatrix()
	test.That(t, m.At(0, 0), test.ShouldEqual, irIntrinsics.Fx)
	test.That(t, m.At(1, 1), test.ShouldEqual, irIntrinsics.Fy)
	test.That(t, m.At(0, 2), test.ShouldEqual, irIntrinsics.Ppx)
	test.That(t, m.At(1, 2), test.ShouldEqual, irIntrinsics.Ppy)
	test.That(t, m.At(2, 2), test.ShouldEqual, 1.)
	test.That(t, m.At(1, 0), test.ShouldEqual, 0.)

	var missing *PinholeCameraIntrinsics
	test.That(t, missing.GetCameraMatrix(), test.ShouldBeNil)
}

func TestBrownConrady(t *testing.T) {
	var none *BrownConrady
	x, y := none.Transform(0.3, -0.2)
	test.That(t, x, test.ShouldEqual, 0.3)
	test.That(t, y, test.ShouldEqual, -0.2)

	radial := &BrownConrady{RadialK1: 0.1}
	// r² = 0.25, so both coordinates scale by 1.025.
	x, y = radial.Transform(0.3, 0.4)
	test.That(t, x, test.ShouldAlmostEqual, 0.3075, 1e-12)
	test.That(t, y, test.ShouldAlmostEqual, 0.41, 1e-12)

	tangential := &BrownConrady{TangentialP1: 0.01}
	x, y = tangential.Transform(0.5, 0)
	test.That(t, x, test.ShouldAlmostEqual, 0.5, 1e-12)
	test.That(t, y, test.ShouldAlmostEqual, 0.0025, 1e-12)
}

func TestDistortionMap(t *testing.T) {
	model := &PinholeCameraModel{PinholeCameraIntrinsics: irIntrinsics}
	x, y := model.DistortionMap()(10, 20)
	test.That(t, x, test.ShouldEqual, 10.)
	test.That(t, y, test.ShouldEqual, 20.)

	model.Distortion = &BrownConrady{RadialK1: 0.09}
	// The principal point is a fixed point of any radial model.
	x, y = model.DistortionMap()(irIntrinsics.Ppx, irIntrinsics.Ppy)
	test.That(t, x, test.ShouldAlmostEqual, irIntrinsics.Ppx)
	test.That(t, y, test.ShouldAlmostEqual, irIntrinsics.Ppy)
	// Positive k1 pushes the corners outward.
	x, _ = model.DistortionMap()(0, irIntrinsics.Ppy)
	test.That(t, x, test.ShouldBeLessThan, 0.)
}

func TestExtrinsics(t *testing.T) {
	shift := NewTranslationExtrinsics(r3.Vector{X: 52})
	test.That(t, shift.Apply(r3.Vector{X: 1, Y: 2, Z: 3}), test.ShouldResemble, r3.Vector{X: 53, Y: 2, Z: 3})

	// 90 degrees about z.
	rot := &Extrinsics{Rotation: mat.NewDense(3, 3, []float64{0, -1, 0, 1, 0, 0, 0, 0, 1})}
	out := rot.Apply(r3.Vector{X: 1})
	test.That(t, out.X, test.ShouldAlmostEqual, 0.)
	test.That(t, out.Y, test.ShouldAlmostEqual, 1.)
	test.That(t, math.Abs(out.Z), test.ShouldAlmostEqual, 0.)

	var none *Extrinsics
	test.That(t, none.Apply(r3.Vector{X: 4}), test.ShouldResemble, r3.Vector{X: 4})
}
