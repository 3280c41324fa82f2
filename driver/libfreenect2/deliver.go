package libfreenect2

import (
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/freenect2/driver"
	"go.viam.com/freenect2/frame"
	"go.viam.com/freenect2/listener"
)

// delivery is what a native listener's handle resolves to.
type delivery struct {
	l driver.FrameListener

	mu       sync.Mutex
	reported map[*listener.CallbackFault]struct{}
	closed   bool
}

func newDelivery(l driver.FrameListener) *delivery {
	return &delivery{l: l, reported: map[*listener.CallbackFault]struct{}{}}
}

// deliver passes f to the listener and returns the error the native side should log. A latched
// fault keeps refusing frames until the next start; only its first refusal is returned.
func (d *delivery) deliver(t frame.Type, f *frame.Frame) error {
	err := callListener(d.l, t, f)
	if err == nil {
		return nil
	}
	var fault *listener.CallbackFault
	switch {
	case errors.As(err, &fault):
		d.mu.Lock()
		defer d.mu.Unlock()
		if _, ok := d.reported[fault]; ok {
			return nil
		}
		d.reported[fault] = struct{}{}
	case errors.Is(err, listener.ErrListenerClosed):
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.closed {
			return nil
		}
		d.closed = true
	}
	return err
}

// callListener keeps a panicking listener from unwinding through native frames.
func callListener(l driver.FrameListener, t frame.Type, f *frame.Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("frame listener panicked: %v", r)
		}
	}()
	return l.OnNewFrame(t, f)
}
