package listener

import (
	"fmt"

	"github.com/pkg/errors"

	"go.viam.com/freenect2/frame"
)

var (
	// ErrNilCallback is returned when constructing a listener without a callback.
	ErrNilCallback = errors.New("frame listener callback is nil")
	// ErrListenerAttached is returned when closing a listener a session still delivers to.
	ErrListenerAttached = errors.New("frame listener is attached to an open session")
	// ErrListenerClosed is returned when delivering to or attaching a closed listener.
	ErrListenerClosed = errors.New("frame listener is closed")
)

// Stream is one of the driver's two delivery paths.
type Stream int

// Streams.
const (
	ColorStream Stream = iota
	IrDepthStream
)

// StreamOf returns the stream a frame type is delivered on.
func StreamOf(t frame.Type) Stream {
	if t == frame.Color {
		return ColorStream
	}
	return IrDepthStream
}

func (s Stream) String() string {
	if s == ColorStream {
		return "color"
	}
	return "ir/depth"
}

// CallbackFault is the error surfaced when a listener callback fails. Once a stream faults the
// driver stops delivering on it until the session is restarted.
type CallbackFault struct {
	Stream   Stream
	Type     frame.Type
	Sequence uint32
	Err      error
}

func (e *CallbackFault) Error() string {
	return fmt.Sprintf("frame listener failed on %s stream (%s frame %d): %v", e.Stream, e.Type, e.Sequence, e.Err)
}

func (e *CallbackFault) Unwrap() error {
	return e.Err
}

// IsCallbackFault reports whether err is or wraps a CallbackFault.
func IsCallbackFault(err error) bool {
	var fault *CallbackFault
	return errors.As(err, &fault)
}
