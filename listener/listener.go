// Package listener bridges driver frame deliveries to user callbacks.
//
// A Listener owns a caller supplied context value and hands it to the callback on every
// delivery. The callback owns the frame for the duration of the call; the bridge releases it
// afterwards unless the callback kept it with frame.Detach. A callback error (or panic) becomes a
// CallbackFault that is returned to the driver and latched for that stream.
package listener

import (
	"fmt"
	"io"
	"runtime/debug"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"go.viam.com/freenect2/frame"
)

// Callback is invoked once per delivered frame with the listener's context.
type Callback[T any] func(t frame.Type, f *frame.Frame, ctx T) error

// Listener implements driver.FrameListener.
type Listener struct {
	// Every delivery holds gate for reading. Taking it for writing waits out in-flight callbacks.
	gate sync.RWMutex

	mu       sync.Mutex
	attached int
	closed   bool
	faults   [2]*CallbackFault

	invoke     func(frame.Type, *frame.Frame) error
	releaseCtx func() error

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a listener that moves ctx into itself and passes it to fn on every delivery. If ctx
// implements io.Closer it is closed by Listener.Close.
func New[T any](ctx T, fn Callback[T]) (*Listener, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	l := &Listener{
		invoke: func(t frame.Type, f *frame.Frame) error {
			return fn(t, f, ctx)
		},
	}
	if closer, ok := any(ctx).(io.Closer); ok {
		l.releaseCtx = closer.Close
	}
	return l, nil
}

// NewFunc creates a listener without a context value.
func NewFunc(fn func(t frame.Type, f *frame.Frame) error) (*Listener, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	return New(struct{}{}, func(t frame.Type, f *frame.Frame, _ struct{}) error {
		return fn(t, f)
	})
}

// OnNewFrame delivers f to the callback. It is called by the driver on its capture goroutines.
func (l *Listener) OnNewFrame(t frame.Type, f *frame.Frame) error {
	if f == nil {
		return errors.Errorf("nil %s frame delivered", t)
	}
	defer f.Release()

	l.gate.RLock()
	defer l.gate.RUnlock()

	stream := StreamOf(t)
	l.mu.Lock()
	closed, fault := l.closed, l.faults[stream]
	l.mu.Unlock()
	if closed {
		l.dropped.Inc()
		return ErrListenerClosed
	}
	if fault != nil {
		l.dropped.Inc()
		return fault
	}

	if callErr := l.call(t, f); callErr != nil {
		fault := &CallbackFault{Stream: stream, Type: t, Sequence: f.Sequence(), Err: callErr}
		l.mu.Lock()
		if l.faults[stream] == nil {
			l.faults[stream] = fault
		}
		l.mu.Unlock()
		return fault
	}
	l.delivered.Inc()
	return nil
}

func (l *Listener) call(t frame.Type, f *frame.Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic in frame listener: %v\n%s", r, debug.Stack())
		}
	}()
	return l.invoke(t, f)
}

// Attach records that a session delivers to this listener. It is called by the session.
func (l *Listener) Attach() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrListenerClosed
	}
	l.attached++
	return nil
}

// Detach undoes one Attach after waiting for in-flight callbacks.
func (l *Listener) Detach() {
	l.Quiesce()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.attached > 0 {
		l.attached--
	}
}

// Quiesce blocks until no callback is running. It must not be called from inside a callback.
func (l *Listener) Quiesce() {
	l.gate.Lock()
	//nolint:staticcheck
	l.gate.Unlock()
}

// Reset clears latched faults so a restarted session can deliver again.
func (l *Listener) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.faults = [2]*CallbackFault{}
}

// Fault returns the latched fault of a stream, if any.
func (l *Listener) Fault(stream Stream) *CallbackFault {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.faults[stream]
}

// Err combines the latched faults of both streams.
func (l *Listener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for _, fault := range l.faults {
		if fault != nil {
			errs = append(errs, fault)
		}
	}
	return multierr.Combine(errs...)
}

// Delivered is the number of frames the callback accepted.
func (l *Listener) Delivered() uint64 {
	return l.delivered.Load()
}

// Dropped is the number of frames refused without invoking the callback.
func (l *Listener) Dropped() uint64 {
	return l.dropped.Load()
}

// Close releases the context once the listener is detached from every session and no callback is
// running. Closing twice is a no-op.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.attached > 0 {
		l.mu.Unlock()
		return ErrListenerAttached
	}
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	release := l.releaseCtx
	l.releaseCtx = nil
	l.mu.Unlock()

	l.Quiesce()
	if release != nil {
		if err := release(); err != nil {
			return errors.Wrap(err, "releasing listener context")
		}
	}
	return nil
}

func (l *Listener) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprintf("listener(attached=%d closed=%t delivered=%d)", l.attached, l.closed, l.delivered.Load())
}
