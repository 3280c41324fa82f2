package libfreenect2

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/freenect2/frame"
	"go.viam.com/freenect2/listener"
)

func TestDeliveryReportsEachFaultOnce(t *testing.T) {
	l, err := listener.NewFunc(func(typ frame.Type, f *frame.Frame) error {
		if f.Sequence() == 2 {
			return errors.New("disk full")
		}
		return nil
	})
	test.That(t, err, test.ShouldBeNil)
	d := newDelivery(l)

	deliver := func(seq uint32) error {
		f, err := frame.New(1, 1, frame.BytesPerPixel, nil, frame.Float, frame.Metadata{Sequence: seq})
		test.That(t, err, test.ShouldBeNil)
		return d.deliver(frame.Depth, f)
	}
	test.That(t, deliver(1), test.ShouldBeNil)
	err = deliver(2)
	test.That(t, listener.IsCallbackFault(err), test.ShouldBeTrue)
	for seq := uint32(3); seq < 10; seq++ {
		test.That(t, deliver(seq), test.ShouldBeNil)
	}
	test.That(t, l.Dropped(), test.ShouldEqual, uint64(7))

	// A restart clears the fault; a new one is reported again.
	l.Reset()
	test.That(t, listener.IsCallbackFault(deliver(2)), test.ShouldBeTrue)
	test.That(t, deliver(3), test.ShouldBeNil)

	test.That(t, l.Close(), test.ShouldBeNil)
	test.That(t, errors.Is(deliver(4), listener.ErrListenerClosed), test.ShouldBeTrue)
	test.That(t, deliver(5), test.ShouldBeNil)
}

func TestDeliveryRecoversPanics(t *testing.T) {
	d := newDelivery(panicking{})
	f, err := frame.New(1, 1, frame.BytesPerPixel, nil, frame.Float, frame.Metadata{})
	test.That(t, err, test.ShouldBeNil)
	err = d.deliver(frame.Color, f)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "boom")
}

type panicking struct{}

func (panicking) OnNewFrame(frame.Type, *frame.Frame) error {
	panic("boom")
}
