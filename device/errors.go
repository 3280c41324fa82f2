package device

import "github.com/pkg/errors"

var (
	// ErrDeviceOpenFailure means the driver could not open the device: it is missing, already
	// claimed, or the driver failed. Opens are never retried.
	ErrDeviceOpenFailure = errors.New("failed to open device")
	// ErrIndexOutOfRange means a device index is not below the number of attached devices.
	ErrIndexOutOfRange = errors.New("device index out of range")
	// ErrNoDeviceFound means no device is attached.
	ErrNoDeviceFound = errors.New("no device found")
	// ErrStreamOperationFailure means the driver failed to start, stop or configure streaming.
	ErrStreamOperationFailure = errors.New("stream operation failed")
	// ErrInvalidLifecycleTransition means an operation was called in a state that does not allow it.
	ErrInvalidLifecycleTransition = errors.New("invalid lifecycle transition")
	// ErrInvalidArgument means an argument was rejected before reaching the driver.
	ErrInvalidArgument = errors.New("invalid argument")
)

func newTransitionError(op string, from State) error {
	return errors.Wrapf(ErrInvalidLifecycleTransition, "cannot %s a %s session", op, from)
}
