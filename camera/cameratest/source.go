// Package cameratest provides a scripted camera.Source for tests.
package cameratest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/arlink/camera"
)

// Source is a camera that emits frames only when told to.
//
// Open calls PreviewStarted synchronously with the scripted Params; Emit
// delivers one frame on the caller's goroutine.
type Source struct {
	// OpenErr, when set, is returned by Open.
	OpenErr error

	params camera.Params
	caps   camera.Capabilities
	pool   *camera.BufferPool

	mu       sync.Mutex
	listener camera.Listener
	open     bool
	seq      uint64

	opens    atomic.Int32
	closes   atomic.Int32
	emitted  atomic.Uint64
	dropped  atomic.Uint64
	released atomic.Uint64
}

// NewSource returns a source that allocates a buffer per frame.
func NewSource(p camera.Params) *Source {
	return &Source{params: p}
}

// NewPooledSource returns a source that recycles n buffers.
func NewPooledSource(p camera.Params, n int) *Source {
	return &Source{
		params: p,
		caps:   camera.Capabilities{BufferPool: true},
		pool:   camera.NewBufferPool(n, camera.FrameSize(p.PixelFormat, p.Width, p.Height)),
	}
}

func (s *Source) Capabilities() camera.Capabilities { return s.caps }

func (s *Source) Open(ctx context.Context, l camera.Listener) error {
	s.mu.Lock()
	if s.OpenErr != nil {
		s.mu.Unlock()
		return s.OpenErr
	}
	if s.open {
		s.mu.Unlock()
		return camera.ErrAlreadyOpen
	}
	s.listener = l
	s.open = true
	s.seq = 0
	s.mu.Unlock()

	s.opens.Add(1)
	l.PreviewStarted(s.params)
	return nil
}

// Emit delivers one frame. It returns false when the source is closed or the
// buffer pool is exhausted.
func (s *Source) Emit() bool {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return false
	}
	l := s.listener
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	size := camera.FrameSize(s.params.PixelFormat, s.params.Width, s.params.Height)
	f := &camera.Frame{
		Width:       s.params.Width,
		Height:      s.params.Height,
		PixelFormat: s.params.PixelFormat,
		CameraIndex: s.params.CameraIndex,
		FrontFacing: s.params.FrontFacing,
		Seq:         seq,
		Timestamp:   time.Now(),
		TraceID:     uuid.New().String(),
	}

	var buf []byte
	if s.pool != nil {
		var ok bool
		if buf, ok = s.pool.Get(); !ok {
			s.dropped.Add(1)
			return false
		}
		f.SetRelease(func() {
			s.released.Add(1)
			s.pool.Put(buf)
		})
	} else {
		buf = make([]byte, size)
		f.SetRelease(func() { s.released.Add(1) })
	}
	f.Planes = []camera.Plane{{Data: buf, PixelStride: 1, RowStride: s.params.Width}}

	s.emitted.Add(1)
	l.PreviewFrame(f)
	return true
}

// EmitN calls Emit n times and returns how many frames were delivered.
func (s *Source) EmitN(n int) int {
	delivered := 0
	for i := 0; i < n; i++ {
		if s.Emit() {
			delivered++
		}
	}
	return delivered
}

func (s *Source) Close() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	l := s.listener
	s.open = false
	s.listener = nil
	s.mu.Unlock()

	s.closes.Add(1)
	l.PreviewStopped()
	return nil
}

// IsOpen reports whether the source is capturing.
func (s *Source) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Source) Opens() int       { return int(s.opens.Load()) }
func (s *Source) Closes() int      { return int(s.closes.Load()) }
func (s *Source) Emitted() uint64  { return s.emitted.Load() }
func (s *Source) Dropped() uint64  { return s.dropped.Load() }
func (s *Source) Released() uint64 { return s.released.Load() }

var _ camera.Source = (*Source)(nil)

// Listener records preview events.
type Listener struct {
	mu      sync.Mutex
	Started []camera.Params
	Frames  []*camera.Frame
	Stopped int

	// Keep, when false, releases frames as soon as they arrive.
	Keep bool
}

func (l *Listener) PreviewStarted(p camera.Params) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Started = append(l.Started, p)
}

func (l *Listener) PreviewFrame(f *camera.Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Frames = append(l.Frames, f)
	if !l.Keep {
		f.Release()
	}
}

func (l *Listener) PreviewStopped() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Stopped++
}

// FrameCount returns how many frames were received.
func (l *Listener) FrameCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Frames)
}
