package screen

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/e7canasta/arlink/camera"
	"github.com/e7canasta/arlink/handoff"
)

// PreviewStarted starts tracking with the camera's frame geometry and arms
// scene configuration for the first frame.
func (s *Screen) PreviewStarted(p camera.Params) {
	if err := s.sess.StartWithPushedVideo(p); err != nil {
		slog.Error("screen: error initialising camera, cannot continue",
			"params", p.String(),
			"error", err,
		)
		s.closeScreen("video start failed")
		return
	}
	slog.Info("screen: camera initialised", "params", p.String(), "pixel_format", p.PixelFormat)
	s.opts.Notifier.Notify(fmt.Sprintf(msgCameraSettings, p))

	s.mu.Lock()
	if s.state == StateCameraOpen {
		s.state = StateVideoRunning
	}
	s.mu.Unlock()
	s.firstUpdate.Store(true)
}

// PreviewFrame processes f inline or hands it to the processing goroutine.
func (s *Screen) PreviewFrame(f *camera.Frame) {
	s.offered.Add(1)

	s.mu.Lock()
	closed := s.state == StateClosed
	mb := s.mailbox
	s.mu.Unlock()

	if closed {
		s.dropped.Add(1)
		f.Release()
		return
	}
	if mb != nil {
		mb.Offer(f)
		return
	}
	if s.opts.Delivery == DeliveryMailbox {
		// Processing already stopped; the camera is being closed.
		s.dropped.Add(1)
		f.Release()
		return
	}

	defer logPanic("camera-callback")
	s.processFrame(f)
}

// PreviewStopped finalises the session once the camera has been released.
func (s *Screen) PreviewStopped() {
	s.firstUpdate.Store(false)
	s.sess.StopAndFinal()

	s.mu.Lock()
	if s.state == StateCameraOpen || s.state == StateVideoRunning {
		s.state = StateStopped
	}
	s.mu.Unlock()
	slog.Info("screen: preview stopped", "session_id", s.sess.ID())
}

func (s *Screen) processFrame(f *camera.Frame) {
	defer f.Release()
	s.processed.Add(1)

	s.mu.Lock()
	scene := s.scene
	driver := s.driver
	s.mu.Unlock()

	if s.firstUpdate.CompareAndSwap(true, false) {
		if !scene.Configure(s.sess) {
			slog.Error("screen: error configuring scene, cannot continue", "session_id", s.sess.ID())
			s.closeScreen("scene configuration failed")
			return
		}
		slog.Info("screen: scene configured", "session_id", s.sess.ID())
	}

	if !s.sess.ConvertAndDetect(f) {
		return
	}
	s.tracked.Add(1)

	if driver != nil {
		driver.RequestRender()
	}
	if hook, ok := s.host.(FrameProcessedHook); ok {
		hook.OnFrameProcessed()
	}
}

func (s *Screen) startProcessing() {
	if s.opts.Delivery != DeliveryMailbox {
		return
	}
	mb := handoff.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.mailbox = mb
	s.procCancel = cancel
	s.procDone = done
	s.mu.Unlock()

	go s.processLoop(ctx, mb, done)
}

func (s *Screen) processLoop(ctx context.Context, mb *handoff.Mailbox, done chan struct{}) {
	defer close(done)
	defer logPanic("frame-processor")

	for {
		f, err := mb.Take(ctx)
		if err != nil {
			return
		}
		s.processFrame(f)
	}
}

func (s *Screen) stopProcessing() {
	s.mu.Lock()
	mb, cancel, done := s.mailbox, s.procCancel, s.procDone
	s.mailbox, s.procCancel, s.procDone = nil, nil, nil
	s.mu.Unlock()

	if mb == nil {
		return
	}
	mb.Close()
	cancel()
	<-done
	s.superseded.Add(mb.Stats().Superseded)
}

// logPanic logs a panic with the goroutine it happened on and re-raises it.
func logPanic(goroutine string) {
	if r := recover(); r != nil {
		slog.Error("screen: uncaught panic",
			"goroutine", goroutine,
			"panic", r,
			"stack", string(debug.Stack()),
		)
		panic(r)
	}
}
