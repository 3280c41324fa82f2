package fake

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/freenect2/config"
	"go.viam.com/freenect2/driver"
	"go.viam.com/freenect2/frame"
	"go.viam.com/freenect2/logging"
	freenecttestutils "go.viam.com/freenect2/testutils"
)

func TestMain(m *testing.M) {
	freenecttestutils.VerifyTestMain(m)
}

type delivery struct {
	typ frame.Type
	seq uint32
}

type recordingListener struct {
	mu     sync.Mutex
	got    []delivery
	center []float32
	failOn int
}

func (l *recordingListener) OnNewFrame(typ frame.Type, f *frame.Frame) error {
	defer f.Release()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, delivery{typ, f.Sequence()})
	if typ == frame.Depth {
		v, err := f.FloatAt(250, 200)
		if err != nil {
			return err
		}
		l.center = append(l.center, v)
	}
	if l.failOn > 0 && len(l.got) == l.failOn {
		return errors.New("listener gave up")
	}
	return nil
}

func (l *recordingListener) deliveries() []delivery {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]delivery(nil), l.got...)
}

func TestDiscovery(t *testing.T) {
	d := NewDriver(logging.NewTestLogger(t), Options{Serials: []string{"a", "b"}})

	n, err := d.EnumerateDevices()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 2)

	serial, err := d.SerialNumber(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, serial, test.ShouldEqual, "b")
	_, err = d.SerialNumber(2)
	test.That(t, err, test.ShouldNotBeNil)

	serial, err = d.DefaultSerialNumber()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, serial, test.ShouldEqual, "a")
	test.That(t, d.Scans(), test.ShouldEqual, int64(4))

	d.SetSerials()
	n, err = d.EnumerateDevices()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 0)
	_, err = d.DefaultSerialNumber()
	test.That(t, err, test.ShouldNotBeNil)
	_, err = d.OpenDefaultDevice(driver.CPUPipeline)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, d.Close(), test.ShouldBeNil)
}

func TestOpenIsExclusive(t *testing.T) {
	d := NewDriver(logging.NewTestLogger(t), Options{})
	var (
		mu       sync.Mutex
		messages []string
	)
	d.SetLogSink(func(level driver.LogLevel, msg string) {
		mu.Lock()
		defer mu.Unlock()
		messages = append(messages, level.String()+": "+msg)
	})

	dev, err := d.OpenDevice(0, driver.OpenCLPipeline)
	test.That(t, err, test.ShouldBeNil)
	serial, err := dev.SerialNumber()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, serial, test.ShouldEqual, DefaultSerial)

	_, err = d.OpenDeviceBySerial(DefaultSerial, driver.CPUPipeline)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = d.OpenDeviceBySerial("nope", driver.CPUPipeline)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, dev.Close(), test.ShouldBeNil)
	test.That(t, dev.Close(), test.ShouldNotBeNil)
	_, err = dev.SerialNumber()
	test.That(t, err, test.ShouldNotBeNil)

	dev, err = d.OpenDefaultDevice(driver.CPUPipeline)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Close(), test.ShouldBeNil)
	_, err = dev.FirmwareVersion()
	test.That(t, err, test.ShouldNotBeNil)
	_, err = d.OpenDefaultDevice(driver.CPUPipeline)
	test.That(t, err, test.ShouldNotBeNil)

	mu.Lock()
	defer mu.Unlock()
	test.That(t, messages[0], test.ShouldContainSubstring, "opencl pipeline is not available")
}

func TestStreaming(t *testing.T) {
	d := NewDriver(logging.NewTestLogger(t), Options{Interval: time.Millisecond, FrameLimit: 3})
	dev, err := d.OpenDefaultDevice(driver.CPUPipeline)
	test.That(t, err, test.ShouldBeNil)

	color, irDepth := &recordingListener{}, &recordingListener{}
	dev.SetColorFrameListener(color)
	dev.SetIrAndDepthFrameListener(irDepth)
	test.That(t, dev.Start(), test.ShouldBeNil)
	test.That(t, dev.Start(), test.ShouldNotBeNil)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(color.deliveries()), test.ShouldEqual, 3)
		test.That(tb, len(irDepth.deliveries()), test.ShouldEqual, 6)
	})
	test.That(t, dev.Stop(), test.ShouldBeNil)
	test.That(t, dev.Stop(), test.ShouldNotBeNil)

	test.That(t, color.deliveries(), test.ShouldResemble, []delivery{
		{frame.Color, 0}, {frame.Color, 1}, {frame.Color, 2},
	})
	test.That(t, irDepth.deliveries(), test.ShouldResemble, []delivery{
		{frame.Ir, 0}, {frame.Depth, 0}, {frame.Ir, 1}, {frame.Depth, 1}, {frame.Ir, 2}, {frame.Depth, 2},
	})
	test.That(t, irDepth.center[0], test.ShouldEqual, SceneDepth(250, 200))
	test.That(t, d.Unreleased(), test.ShouldEqual, int64(0))
	test.That(t, dev.Close(), test.ShouldBeNil)
}

func TestDepthRangeFollowsConfig(t *testing.T) {
	d := NewDriver(logging.NewTestLogger(t), Options{Interval: time.Millisecond, FrameLimit: 1})
	dev, err := d.OpenDefaultDevice(driver.CPUPipeline)
	test.That(t, err, test.ShouldBeNil)

	cfg := config.New()
	test.That(t, cfg.SetMinDepth(1.0), test.ShouldBeNil)
	test.That(t, dev.SetConfig(cfg), test.ShouldBeNil)

	irDepth := &recordingListener{}
	dev.SetIrAndDepthFrameListener(irDepth)
	test.That(t, dev.StartStreams(false, true), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(irDepth.deliveries()), test.ShouldEqual, 2)
	})
	// (250, 200) is on the box at 0.8m, nearer than the minimum.
	test.That(t, irDepth.center, test.ShouldResemble, []float32{0})
	test.That(t, dev.Close(), test.ShouldBeNil)
	test.That(t, d.Unreleased(), test.ShouldEqual, int64(0))
}

func TestListenerErrorEndsStream(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	d := NewDriver(logger, Options{Interval: time.Millisecond})
	dev, err := d.OpenDefaultDevice(driver.CPUPipeline)
	test.That(t, err, test.ShouldBeNil)

	color := &recordingListener{failOn: 2}
	dev.SetColorFrameListener(color)
	test.That(t, dev.StartStreams(true, false), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, logs.FilterMessage("listener failed, stopping stream").Len(), test.ShouldEqual, 1)
	})
	time.Sleep(10 * time.Millisecond)
	test.That(t, len(color.deliveries()), test.ShouldEqual, 2)
	test.That(t, dev.Close(), test.ShouldBeNil)
}

func TestLifecycleErrors(t *testing.T) {
	d := NewDriver(logging.NewTestLogger(t), Options{})
	dev, err := d.OpenDefaultDevice(driver.CPUPipeline)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, dev.Stop(), test.ShouldNotBeNil)
	test.That(t, dev.StartStreams(false, false), test.ShouldNotBeNil)

	ir, err := dev.IrCameraParams()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ir, test.ShouldResemble, DefaultIrParams)
	color, err := dev.ColorCameraParams()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, color, test.ShouldResemble, DefaultColorParams)

	test.That(t, dev.Close(), test.ShouldBeNil)
	test.That(t, dev.Start(), test.ShouldNotBeNil)
	test.That(t, dev.SetConfig(config.New()), test.ShouldNotBeNil)
	_, err = dev.IrCameraParams()
	test.That(t, err, test.ShouldNotBeNil)
}

func sceneFrames(t *testing.T) (rgb, depth *frame.Frame) {
	t.Helper()
	var err error
	rgb, err = frame.New(frame.ColorWidth, frame.ColorHeight, frame.BytesPerPixel, nil, frame.BGRX, frame.Metadata{})
	test.That(t, err, test.ShouldBeNil)
	data := rgb.Data()
	for i := 0; i < len(data); i += 4 {
		data[i], data[i+1], data[i+2] = 10, 20, 30
	}
	depth = frame.NewDepth()
	fillFloat(depth, SceneDepth)
	return rgb, depth
}

func countBlack(f *frame.Frame) int {
	black := 0
	data := f.Data()
	for i := 0; i < len(data); i += 4 {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 0 {
			black++
		}
	}
	return black
}

func TestRegistrationEngine(t *testing.T) {
	engine, err := NewRegistrationEngine(DefaultIrParams, DefaultColorParams)
	test.That(t, err, test.ShouldBeNil)
	rgb, depth := sceneFrames(t)

	undistorted, registered, bigDepth := frame.NewDepth(), frame.NewColorForDepth(), frame.NewDepthFullColor()
	test.That(t, engine.Apply(rgb, depth, undistorted, registered, false, bigDepth), test.ShouldBeNil)

	z, err := undistorted.FloatAt(256, 212)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, z, test.ShouldBeGreaterThan, 0)
	c, err := registered.ColorAt(256, 212)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.G, test.ShouldEqual, uint8(20))

	finite := 0
	for y := 0; y < frame.BigDepthHeight; y++ {
		for x := 0; x < frame.BigDepthWidth; x++ {
			v, err := bigDepth.FloatAt(x, y)
			test.That(t, err, test.ShouldBeNil)
			if !math.IsInf(float64(v), 1) {
				finite++
			}
		}
	}
	test.That(t, finite, test.ShouldBeGreaterThan, 0)
	unfiltered := countBlack(registered)

	// Wall pixels next to the box are hidden from the color camera once filtering is on.
	filteredOut := frame.NewColorForDepth()
	test.That(t, engine.Apply(rgb, depth, undistorted, filteredOut, true, nil), test.ShouldBeNil)
	test.That(t, countBlack(filteredOut), test.ShouldBeGreaterThan, unfiltered)
}

func TestRegistrationEngineRejectsBadInput(t *testing.T) {
	bad := DefaultIrParams
	bad.Fx = 0
	_, err := NewRegistrationEngine(bad, DefaultColorParams)
	test.That(t, err, test.ShouldNotBeNil)

	engine, err := NewRegistrationEngine(DefaultIrParams, DefaultColorParams)
	test.That(t, err, test.ShouldBeNil)
	rgb, depth := sceneFrames(t)
	small := frame.NewDepth()
	err = engine.Apply(small, depth, frame.NewDepth(), frame.NewColorForDepth(), true, nil)
	test.That(t, err, test.ShouldNotBeNil)
	err = engine.Apply(rgb, depth, frame.NewDepth(), frame.NewColorForDepth(), true, frame.NewDepth())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, engine.UndistortDepth(nil, frame.NewDepth()), test.ShouldNotBeNil)
}
