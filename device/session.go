package device

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/freenect2/config"
	"go.viam.com/freenect2/driver"
	"go.viam.com/freenect2/logging"
	"go.viam.com/freenect2/registration"
)

// State is the lifecycle state of a Session.
type State int

// The session states. A session starts Created and ends Closed; Streaming and Stopped alternate
// in between.
const (
	Created State = iota
	Streaming
	Stopped
	Closed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Streaming:
		return "streaming"
	case Stopped:
		return "stopped"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// FrameListener is what a session attaches to a stream. *listener.Listener and
// *listener.SyncListener implement it.
type FrameListener interface {
	driver.FrameListener
	// Attach marks the listener as in use; it must not be closed until detached.
	Attach() error
	// Detach waits for running callbacks and undoes Attach.
	Detach()
	// Quiesce waits for running callbacks.
	Quiesce()
	// Reset clears latched callback faults.
	Reset()
	// Err returns the latched callback faults.
	Err() error
}

// Session owns one open device. Its methods are safe for concurrent use.
//
// A frame callback may call the queries of its own session (ID, Pipeline, State, SerialNumber,
// FirmwareVersion, Config, Err, Registration) and SetConfig, including while Stop, Close or a
// listener replacement waits for that callback. It must not call StartStreams, Stop, Close or
// the listener setters of its own session: those wait for running callbacks and deadlock.
type Session struct {
	id       uuid.UUID
	serial   string
	pipeline driver.PacketPipeline
	logger   logging.Logger

	// opMu serializes lifecycle changes. It is held while waiting for callbacks; mu never is.
	opMu sync.Mutex

	mu      sync.Mutex
	dev     driver.Device
	state   State
	color   FrameListener
	irDepth FrameListener
	cfg     config.Config
}

func newSession(dev driver.Device, serial string, pipeline driver.PacketPipeline, logger logging.Logger) *Session {
	id := uuid.New()
	return &Session{
		id:       id,
		serial:   serial,
		pipeline: pipeline,
		logger:   logger.Sublogger("session").Sublogger(id.String()[:8]),
		dev:      dev,
		state:    Created,
		cfg:      config.New(),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Pipeline is the packet pipeline requested at open.
func (s *Session) Pipeline() driver.PacketPipeline {
	return s.pipeline
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SerialNumber of the device.
func (s *Session) SerialNumber() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return "", newTransitionError("query", Closed)
	}
	return s.serial, nil
}

// FirmwareVersion of the device.
func (s *Session) FirmwareVersion() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return "", newTransitionError("query", Closed)
	}
	version, err := s.dev.FirmwareVersion()
	if err != nil {
		return "", errors.Wrap(err, "reading firmware version")
	}
	return version, nil
}

// SetColorFrameListener attaches l to the color stream, replacing and detaching the previous
// listener once its running callback, if any, returns. A nil l detaches.
func (s *Session) SetColorFrameListener(l FrameListener) error {
	return s.replaceListener(&s.color, l, s.dev.SetColorFrameListener)
}

// SetIrAndDepthFrameListener attaches l to the IR and depth stream, like SetColorFrameListener.
func (s *Session) SetIrAndDepthFrameListener(l FrameListener) error {
	return s.replaceListener(&s.irDepth, l, s.dev.SetIrAndDepthFrameListener)
}

func (s *Session) replaceListener(slot *FrameListener, l FrameListener, set func(driver.FrameListener)) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return newTransitionError("attach a listener to", Closed)
	}
	old := *slot
	if old == l {
		s.mu.Unlock()
		return nil
	}
	if l != nil {
		if err := l.Attach(); err != nil {
			s.mu.Unlock()
			return errors.Wrap(ErrInvalidArgument, err.Error())
		}
	}
	set(l)
	*slot = l
	s.mu.Unlock()

	if old != nil {
		old.Detach()
	}
	return nil
}

// SetConfig applies depth processing settings. The session keeps a copy; changing cfg afterwards
// has no effect. Applying while streaming is passed to the driver, which decides from which frame
// on it takes effect.
func (s *Session) SetConfig(cfg config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return newTransitionError("configure", Closed)
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(ErrInvalidArgument, err.Error())
	}
	if err := s.dev.SetConfig(cfg); err != nil {
		return errors.Wrapf(ErrStreamOperationFailure, "applying config: %v", err)
	}
	if s.state == Streaming {
		s.logger.Infow("config applied while streaming; frames already in the pipeline keep the old settings",
			"min_depth", cfg.MinDepth(), "max_depth", cfg.MaxDepth())
	}
	s.cfg = cfg
	return nil
}

// Config returns the settings last applied.
func (s *Session) Config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Start starts the color and depth streams.
func (s *Session) Start() error {
	return s.StartStreams(true, true)
}

// StartStreams starts the requested streams from Created or Stopped. Latched callback faults are
// cleared first.
func (s *Session) StartStreams(rgb, depth bool) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Streaming || s.state == Closed {
		return newTransitionError("start", s.state)
	}
	if !rgb && !depth {
		return errors.Wrap(ErrInvalidArgument, "at least one of color or depth must be started")
	}
	if rgb && s.color == nil {
		s.logger.Warn("starting color stream with no listener; frames will be dropped")
	}
	if depth && s.irDepth == nil {
		s.logger.Warn("starting depth stream with no listener; frames will be dropped")
	}
	s.eachListener(FrameListener.Reset)

	var err error
	if rgb && depth {
		err = s.dev.Start()
	} else {
		err = s.dev.StartStreams(rgb, depth)
	}
	if err != nil {
		return errors.Wrapf(ErrStreamOperationFailure, "starting streams: %v", err)
	}
	s.state = Streaming
	s.logger.Debugw("streaming", "color", rgb, "depth", depth)
	return nil
}

// Stop stops streaming and returns once no callback is running. The state stays Streaming until
// then.
func (s *Session) Stop() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != Streaming {
		return newTransitionError("stop", state)
	}
	if err := s.stop(); err != nil {
		return errors.Wrapf(ErrStreamOperationFailure, "stopping streams: %v", err)
	}
	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()
	return nil
}

// stop must be called with opMu held and mu not held.
func (s *Session) stop() error {
	if err := s.dev.Stop(); err != nil {
		return err
	}
	s.mu.Lock()
	listeners := s.listeners()
	s.mu.Unlock()
	for _, l := range listeners {
		l.Quiesce()
	}
	s.logger.Debug("stopped")
	return nil
}

// Close stops streaming if needed, detaches the listeners and closes the device. The session is
// Closed afterwards even if the driver reported errors.
func (s *Session) Close() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == Closed {
		return newTransitionError("close", Closed)
	}

	var err error
	if state == Streaming {
		err = multierr.Combine(err, s.stop())
	}

	s.mu.Lock()
	s.dev.SetColorFrameListener(nil)
	s.dev.SetIrAndDepthFrameListener(nil)
	detached := []FrameListener{s.color, s.irDepth}
	s.color, s.irDepth = nil, nil
	s.mu.Unlock()
	for _, l := range detached {
		if l != nil {
			l.Detach()
		}
	}

	err = multierr.Combine(err, s.dev.Close())
	s.mu.Lock()
	s.state = Closed
	s.mu.Unlock()
	s.logger.Infow("closed device", "serial", s.serial)

	if err != nil {
		return errors.Wrapf(ErrStreamOperationFailure, "closing device: %v", err)
	}
	return nil
}

// Registration creates a registration for the device's current camera parameters.
func (s *Session) Registration() (*registration.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return nil, newTransitionError("register frames of", Closed)
	}
	ir, err := s.dev.IrCameraParams()
	if err != nil {
		return nil, errors.Wrap(err, "reading depth camera parameters")
	}
	color, err := s.dev.ColorCameraParams()
	if err != nil {
		return nil, errors.Wrap(err, "reading color camera parameters")
	}
	engine, err := s.dev.NewRegistration(ir, color)
	if err != nil {
		return nil, errors.Wrap(err, "creating registration engine")
	}
	return registration.New(ir, color, engine)
}

// Err returns the callback faults latched by the attached listeners since the last start.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	s.eachListener(func(l FrameListener) {
		err = multierr.Combine(err, l.Err())
	})
	return err
}

// eachListener calls f once per distinct attached listener. mu must be held.
func (s *Session) eachListener(f func(FrameListener)) {
	for _, l := range s.listeners() {
		f(l)
	}
}

// listeners returns the distinct attached listeners. mu must be held.
func (s *Session) listeners() []FrameListener {
	var ls []FrameListener
	if s.color != nil {
		ls = append(ls, s.color)
	}
	if s.irDepth != nil && s.irDepth != s.color {
		ls = append(ls, s.irDepth)
	}
	return ls
}
