// Package gstcamera captures frames through a GStreamer pipeline.
//
// Any V4L2 device GStreamer can open works; an empty device (or
// TestPatternDevice) captures from videotestsrc, which is handy on hosts
// without a camera. Frames are converted and scaled inside the pipeline to
// the configured pixel format and geometry, so the tracking engine always
// sees exactly what PreviewStarted announced.
//
// There is no reconnection: a pipeline error is logged and capture stops.
package gstcamera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/arlink/camera"
)

// TestPatternDevice selects videotestsrc instead of a V4L2 device.
const TestPatternDevice = "test"

// Config configures a GStreamer capture.
type Config struct {
	Device      string // e.g. "/dev/video0"; "" or "test" for a test pattern
	Width       int
	Height      int
	FPS         int
	PixelFormat string
	CameraIndex int
	FrontFacing bool

	// PoolBuffers is the number of recycled buffers for pooled delivery.
	PoolBuffers int
	// Delivery is the preferred delivery mode, negotiated at Open.
	Delivery camera.Delivery
}

// Stats is a snapshot of capture counters.
type Stats struct {
	Frames        uint64
	FramesDropped uint64
	BytesRead     uint64
	FPS           float64
	Errors        map[string]uint64
	Delivery      string
	IsOpen        bool
}

// Source is a camera.Source backed by a GStreamer pipeline.
type Source struct {
	cfg Config

	mu       sync.Mutex
	elements *pipelineElements
	listener camera.Listener
	pool     *camera.BufferPool
	delivery camera.Delivery
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  time.Time

	accepting atomic.Bool
	seq       atomic.Uint64
	bytesRead atomic.Uint64
	dropped   atomic.Uint64
	errCounts [ErrCategoryUnknown + 1]atomic.Uint64

	fps *camera.FPSCounter
}

// New returns an unopened source. Zero fields get defaults:
// 640x480, 30 fps, NV21, camera.DefaultPoolBuffers, pooled delivery.
func New(cfg Config) *Source {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 640, 480
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.PixelFormat == "" {
		cfg.PixelFormat = camera.PixelFormatNV21
	}
	if cfg.PoolBuffers <= 0 {
		cfg.PoolBuffers = camera.DefaultPoolBuffers
	}
	return &Source{
		cfg: cfg,
		fps: camera.NewFPSCounter("gstreamer"),
	}
}

// Capabilities reports buffer pool support: appsink samples are always copied
// out, so recycling the destination buffers is always possible.
func (s *Source) Capabilities() camera.Capabilities {
	return camera.Capabilities{BufferPool: true}
}

func (s *Source) params() camera.Params {
	return camera.Params{
		Width:       s.cfg.Width,
		Height:      s.cfg.Height,
		Rate:        s.cfg.FPS,
		PixelFormat: s.cfg.PixelFormat,
		CameraIndex: s.cfg.CameraIndex,
		FrontFacing: s.cfg.FrontFacing,
	}
}

// Open builds the pipeline, sets it to PLAYING and announces the preview.
func (s *Source) Open(ctx context.Context, l camera.Listener) error {
	s.mu.Lock()
	if s.elements != nil {
		s.mu.Unlock()
		return camera.ErrAlreadyOpen
	}

	if camera.FrameSize(s.cfg.PixelFormat, s.cfg.Width, s.cfg.Height) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("camera: unsupported pixel format %q", s.cfg.PixelFormat)
	}

	elements, err := createPipeline(s.cfg)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("camera: %w", err)
	}

	s.delivery = camera.Negotiate(s.Capabilities(), s.cfg.Delivery)
	s.pool = nil
	if s.delivery == camera.DeliveryPooled {
		s.pool = camera.NewBufferPool(s.cfg.PoolBuffers,
			camera.FrameSize(s.cfg.PixelFormat, s.cfg.Width, s.cfg.Height))
	}
	s.listener = l
	s.seq.Store(0)
	s.fps.Reset()

	elements.appSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})

	if err := elements.pipeline.SetState(gst.StatePlaying); err != nil {
		_ = destroyPipeline(elements)
		s.listener = nil
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", camera.ErrCameraBusy, err)
	}

	monitorCtx, cancel := context.WithCancel(ctx)
	s.elements = elements
	s.cancel = cancel
	s.started = time.Now()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.monitorBus(monitorCtx, elements.pipeline); err != nil {
			s.accepting.Store(false)
			slog.Error("camera: capture stopped", "device", s.cfg.Device, "error", err)
		}
	}()
	s.mu.Unlock()

	p := s.params()
	slog.Info("camera: gstreamer capture started",
		"device", s.cfg.Device,
		"params", p.String(),
		"pixel_format", p.PixelFormat,
		"delivery", s.delivery.String(),
	)

	l.PreviewStarted(p)
	s.accepting.Store(true)
	return nil
}

// onNewSample runs on the GStreamer streaming thread.
func (s *Source) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("camera: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}
	if !s.accepting.Load() {
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("camera: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("camera: empty buffer received")
		return gst.FlowOK
	}

	f := &camera.Frame{
		Width:       s.cfg.Width,
		Height:      s.cfg.Height,
		PixelFormat: s.cfg.PixelFormat,
		CameraIndex: s.cfg.CameraIndex,
		FrontFacing: s.cfg.FrontFacing,
		Timestamp:   time.Now(),
		TraceID:     uuid.New().String(),
	}

	var buf []byte
	if s.pool != nil {
		var ok bool
		buf, ok = s.pool.Get()
		if !ok || len(data) > len(buf) {
			buffer.Unmap()
			if ok {
				s.pool.Put(buf)
			}
			s.dropped.Add(1)
			slog.Debug("camera: dropping frame, no free buffer", "size_bytes", len(data))
			return gst.FlowOK
		}
		buf = buf[:len(data)]
		s.pool.Attach(f, buf)
	} else {
		buf = make([]byte, len(data))
	}
	copy(buf, data)
	buffer.Unmap()

	f.Seq = s.seq.Add(1)
	f.Planes = []camera.Plane{{Data: buf, PixelStride: 1, RowStride: s.cfg.Width}}
	s.bytesRead.Add(uint64(len(data)))
	s.fps.Frame()

	s.listener.PreviewFrame(f)
	return gst.FlowOK
}

// monitorBus polls the pipeline bus until ctx is cancelled or the pipeline
// ends. It returns nil on cancellation.
func (s *Source) monitorBus(ctx context.Context, pipeline *gst.Pipeline) error {
	bus := pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("camera: context cancelled, stopping bus monitor")
			return nil
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("camera: end of stream received",
				"device", s.cfg.Device,
				"uptime", time.Since(s.started),
				"frames", s.seq.Load(),
			)
			return errors.New("end of stream")

		case gst.MessageError:
			gerr := msg.ParseError()
			category := ClassifyGStreamerError(gerr)
			s.errCounts[category].Add(1)

			slog.Error("camera: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
				"device", s.cfg.Device,
				"uptime", time.Since(s.started),
				"frames", s.seq.Load(),
			)
			return fmt.Errorf("pipeline error [%s]: %s", category, gerr.Error())

		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				old, new := msg.ParseStateChanged()
				slog.Debug("camera: pipeline state changed", "from", old, "to", new)
			}
		}
	}
}

// Close stops the pipeline, waits for the streaming thread and the bus
// monitor, then calls PreviewStopped.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.elements == nil {
		s.mu.Unlock()
		return nil
	}

	s.accepting.Store(false)
	s.cancel()
	s.wg.Wait()

	err := destroyPipeline(s.elements)
	if err != nil {
		slog.Error("camera: failed to destroy pipeline", "error", err)
	}
	s.elements = nil
	s.cancel = nil
	l := s.listener
	s.listener = nil
	s.mu.Unlock()

	slog.Info("camera: gstreamer capture stopped",
		"frames", s.seq.Load(),
		"dropped", s.dropped.Load(),
		"uptime", time.Since(s.started),
	)

	l.PreviewStopped()
	return err
}

// Stats returns a snapshot of capture counters.
func (s *Source) Stats() Stats {
	s.mu.Lock()
	open := s.elements != nil
	delivery := s.delivery.String()
	s.mu.Unlock()

	errs := make(map[string]uint64, len(s.errCounts))
	for i := range s.errCounts {
		errs[ErrorCategory(i).String()] = s.errCounts[i].Load()
	}
	return Stats{
		Frames:        s.seq.Load(),
		FramesDropped: s.dropped.Load(),
		BytesRead:     s.bytesRead.Load(),
		FPS:           s.fps.FPS(),
		Errors:        errs,
		Delivery:      delivery,
		IsOpen:        open,
	}
}

var _ camera.Source = (*Source)(nil)
