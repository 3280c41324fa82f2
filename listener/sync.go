package listener

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/freenect2/frame"
)

// ErrFramesTimeout is returned by FramesWithTimeout when no complete set arrives in time.
var ErrFramesTimeout = errors.New("timed out waiting for frames")

// FrameSet holds one detached frame per requested type. The holder owns the frames.
type FrameSet struct {
	frames map[frame.Type]*frame.Frame
}

// Get returns the frame of type t without giving up ownership, or nil.
func (s *FrameSet) Get(t frame.Type) *frame.Frame {
	return s.frames[t]
}

// Take removes and returns the frame of type t, or nil. The caller becomes its owner.
func (s *FrameSet) Take(t frame.Type) *frame.Frame {
	f := s.frames[t]
	delete(s.frames, t)
	return f
}

// Types lists the frame types still held, in driver order.
func (s *FrameSet) Types() []frame.Type {
	types := make([]frame.Type, 0, len(s.frames))
	for t := range s.frames {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Release releases every frame still held.
func (s *FrameSet) Release() {
	for t, f := range s.frames {
		f.Release()
		delete(s.frames, t)
	}
}

// SyncListener gathers one frame of each requested type and publishes the complete set. Frames of
// other types are dropped. When the consumer falls behind, the oldest unread set is discarded.
type SyncListener struct {
	*Listener
	state *syncState
}

type syncState struct {
	mu      sync.Mutex
	want    map[frame.Type]bool
	pending map[frame.Type]*frame.Frame
	sets    chan *FrameSet
	done    chan struct{}
	closed  bool
}

// NewSyncListener listens for the given frame types, keeping at most capacity unread sets.
func NewSyncListener(capacity int, types ...frame.Type) (*SyncListener, error) {
	if len(types) == 0 {
		return nil, errors.New("at least one frame type must be specified")
	}
	if capacity < 1 {
		capacity = 1
	}
	state := &syncState{
		want:    map[frame.Type]bool{},
		pending: map[frame.Type]*frame.Frame{},
		sets:    make(chan *FrameSet, capacity),
		done:    make(chan struct{}),
	}
	for _, t := range types {
		if !t.Valid() {
			return nil, errors.Errorf("invalid frame type %d", int(t))
		}
		state.want[t] = true
	}
	l, err := New(state, func(t frame.Type, f *frame.Frame, s *syncState) error {
		return s.onFrame(t, f)
	})
	if err != nil {
		return nil, err
	}
	return &SyncListener{Listener: l, state: state}, nil
}

func (s *syncState) onFrame(t frame.Type, f *frame.Frame) error {
	if !s.want[t] {
		return nil
	}
	owned, err := f.Detach()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		owned.Release()
		return nil
	}
	if old := s.pending[t]; old != nil {
		old.Release()
	}
	s.pending[t] = owned
	if len(s.pending) < len(s.want) {
		return nil
	}

	set := &FrameSet{frames: s.pending}
	s.pending = map[frame.Type]*frame.Frame{}
	for {
		select {
		case s.sets <- set:
			return nil
		default:
		}
		select {
		case stale := <-s.sets:
			stale.Release()
		default:
		}
	}
}

// Close stops accepting frames and releases everything not yet handed out.
func (s *syncState) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	for t, f := range s.pending {
		f.Release()
		delete(s.pending, t)
	}
	for {
		select {
		case set := <-s.sets:
			set.Release()
		default:
			return nil
		}
	}
}

// Frames blocks until a complete set is available, the context is done, or the listener is closed.
func (sl *SyncListener) Frames(ctx context.Context) (*FrameSet, error) {
	select {
	case set := <-sl.state.sets:
		return set, nil
	default:
	}
	select {
	case set := <-sl.state.sets:
		return set, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-sl.state.done:
		return nil, ErrListenerClosed
	}
}

// FramesWithTimeout is like Frames but gives up after timeout with ErrFramesTimeout.
func (sl *SyncListener) FramesWithTimeout(timeout time.Duration) (*FrameSet, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	set, err := sl.Frames(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrFramesTimeout
	}
	return set, err
}
