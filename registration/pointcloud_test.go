package registration

import (
	"image/color"
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/freenect2/driver/fake"
	"go.viam.com/freenect2/frame"
)

func TestPointCloud(t *testing.T) {
	reg := newFakeRegistration(t)
	depth := newSceneDepth(t)

	colorFrame := newColor(t, frame.BGRX)
	data := colorFrame.Data()
	for i := 0; i < len(data); i += frame.BytesPerPixel {
		data[i], data[i+1], data[i+2] = 50, 100, 200
	}

	undistorted, registered := frame.NewDepth(), frame.NewColorForDepth()
	test.That(t, reg.MapDepthToColor(depth, colorFrame, undistorted, registered, false), test.ShouldBeNil)
	test.That(t, undistorted.SetFloatAt(10, 20, 0), test.ShouldBeNil)
	test.That(t, undistorted.SetFloatAt(11, 20, float32(math.NaN())), test.ShouldBeNil)

	// Pixels the lens leaves without a source are zero after undistortion.
	measured := 0
	for y := 0; y < frame.DepthHeight; y++ {
		for x := 0; x < frame.DepthWidth; x++ {
			z, err := undistorted.FloatAt(x, y)
			test.That(t, err, test.ShouldBeNil)
			if z > 1 {
				measured++
			}
		}
	}
	test.That(t, measured, test.ShouldBeGreaterThan, frame.DepthWidth*frame.DepthHeight/2)

	pc, err := reg.PointCloud(undistorted, registered)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, measured)
	test.That(t, pc.MetaData().HasColor, test.ShouldBeTrue)
	test.That(t, pc.MetaData().MinZ, test.ShouldEqual, 800)

	p, ok, err := reg.Point(undistorted, 212, 256)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	z, err := undistorted.FloatAt(256, 212)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, z, test.ShouldEqual, fake.SceneDepth(256, 212))
	test.That(t, p, test.ShouldResemble, reg.IrParams().Intrinsics().PixelToPoint(256.5, 212.5, float64(z)))

	d, ok := pc.At(p.X, p.Y, p.Z)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, d.Color(), test.ShouldResemble, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	_, ok, err = reg.Point(undistorted, 20, 10)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)
	_, ok, err = reg.Point(undistorted, 20, 11)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)

	_, _, err = reg.Point(undistorted, -1, 0)
	test.That(t, errors.Is(err, frame.ErrOutOfBounds), test.ShouldBeTrue)

	plain, err := reg.PointCloud(undistorted, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, plain.MetaData().HasColor, test.ShouldBeFalse)
	test.That(t, plain.Size(), test.ShouldEqual, pc.Size())

	_, err = reg.PointCloud(frame.NewColorForDepth(), nil)
	test.That(t, errors.Is(err, ErrInvalidFrame), test.ShouldBeTrue)
	_, err = reg.PointCloud(undistorted, frame.NewDepth())
	test.That(t, errors.Is(err, ErrInvalidFrame), test.ShouldBeTrue)
}
