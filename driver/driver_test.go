package driver

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/freenect2/logging"
	"go.viam.com/freenect2/rimage/transform"
)

type nopDriver struct {
	Driver
}

func TestRegistry(t *testing.T) {
	logger := logging.NewTestLogger(t)
	const name = "registry-test"
	Register(name, func(logging.Logger) (Driver, error) { return &nopDriver{}, nil })
	defer Deregister(name)

	test.That(t, Registered(), test.ShouldContain, name)
	drv, err := New(name, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, drv, test.ShouldHaveSameTypeAs, &nopDriver{})

	test.That(t, func() {
		Register(name, func(logging.Logger) (Driver, error) { return nil, nil })
	}, test.ShouldPanic)

	_, err = New("missing", logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `no driver registered with name "missing"`)
}

func TestPacketPipeline(t *testing.T) {
	for _, p := range PacketPipelines {
		parsed, err := ParsePacketPipeline(p.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, p)
	}
	p, err := ParsePacketPipeline("OpenCL")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, OpenCLPipeline)

	_, err = ParsePacketPipeline("cuda")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoggerSink(t *testing.T) {
	logger, observed := logging.NewObservedTestLogger(t)
	sink := LoggerSink(logger)
	sink(LogError, "usb transfer failed")
	sink(LogWarning, "pipeline unavailable")
	sink(LogInfo, "opened device")
	sink(LogDebug, "packet")
	sink(LogNone, "dropped")

	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 4)
	test.That(t, entries[0].Level.String(), test.ShouldEqual, "error")
	test.That(t, entries[1].Level.String(), test.ShouldEqual, "warn")
	test.That(t, entries[3].Message, test.ShouldEqual, "packet")

	test.That(t, LogLevelFor(logging.WARN), test.ShouldEqual, LogWarning)
	test.That(t, LogLevelFor(logging.DEBUG), test.ShouldEqual, LogDebug)
}

func TestCameraParams(t *testing.T) {
	ir := IrCameraParams{Fx: 365.4, Fy: 365.4, Cx: 256.2, Cy: 207.1, K1: 0.09, K2: -0.27, K3: 0.09}
	intr := ir.Intrinsics()
	test.That(t, intr.CheckValid(), test.ShouldBeNil)
	test.That(t, intr.Width, test.ShouldEqual, 512)
	test.That(t, intr.Height, test.ShouldEqual, 424)
	test.That(t, *ir.Distortion(), test.ShouldResemble, transform.BrownConrady{RadialK1: 0.09, RadialK2: -0.27, RadialK3: 0.09})
	test.That(t, ir.Model().Distortion, test.ShouldNotBeNil)

	color := ColorCameraParams{Fx: 1081.37, Fy: 1081.37, Cx: 959.5, Cy: 539.5}
	test.That(t, color.Intrinsics().Width, test.ShouldEqual, 1920)
	test.That(t, color.Intrinsics().CheckValid(), test.ShouldBeNil)
}
