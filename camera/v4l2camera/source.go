// Package v4l2camera captures YUYV frames straight from a V4L2 device with go4vl.
//
// go4vl owns the MMAP buffers and hands out one slice per frame, so this
// source uses callback delivery: there is no pool to recycle into.
package v4l2camera

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"github.com/e7canasta/arlink/camera"
)

// Config configures a V4L2 capture.
type Config struct {
	Device      string // default "/dev/video0"
	Width       int
	Height      int
	FPS         int
	CameraIndex int
	FrontFacing bool
}

// Source is a camera.Source reading a V4L2 device.
type Source struct {
	cfg Config

	mu       sync.Mutex
	dev      *device.Device
	listener camera.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	seq atomic.Uint64
	fps *camera.FPSCounter
}

// New returns an unopened source. Zero fields default to /dev/video0, 640x480, 30 fps.
func New(cfg Config) *Source {
	if cfg.Device == "" {
		cfg.Device = "/dev/video0"
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 640, 480
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	return &Source{cfg: cfg, fps: camera.NewFPSCounter("v4l2")}
}

func (s *Source) Capabilities() camera.Capabilities {
	return camera.Capabilities{BufferPool: false}
}

func (s *Source) Open(ctx context.Context, l camera.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev != nil {
		return camera.ErrAlreadyOpen
	}

	dev, err := device.Open(
		s.cfg.Device,
		device.WithIOType(v4l2.IOTypeMMAP),
		device.WithPixFormat(v4l2.PixFormat{
			Width:       uint32(s.cfg.Width),
			Height:      uint32(s.cfg.Height),
			PixelFormat: v4l2.PixelFmtYUYV,
			Field:       v4l2.FieldNone,
		}),
		device.WithFPS(uint32(s.cfg.FPS)),
	)
	if err != nil {
		return classifyOpenError(s.cfg.Device, err)
	}

	format, err := dev.GetPixFormat()
	if err != nil {
		dev.Close()
		return fmt.Errorf("camera: failed to get pixel format: %w", err)
	}
	if format.PixelFormat != v4l2.PixelFmtYUYV {
		dev.Close()
		return fmt.Errorf("camera: %s does not deliver YUYV", s.cfg.Device)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	if err := dev.Start(streamCtx); err != nil {
		cancel()
		dev.Close()
		return fmt.Errorf("%w: %v", camera.ErrCameraBusy, err)
	}

	s.dev = dev
	s.listener = l
	s.cancel = cancel
	s.seq.Store(0)
	s.fps.Reset()

	p := camera.Params{
		Width:       int(format.Width),
		Height:      int(format.Height),
		Rate:        s.cfg.FPS,
		PixelFormat: camera.PixelFormatYUYV,
		CameraIndex: s.cfg.CameraIndex,
		FrontFacing: s.cfg.FrontFacing,
	}

	slog.Info("camera: v4l2 capture started",
		"device", s.cfg.Device,
		"params", p.String(),
	)

	l.PreviewStarted(p)

	s.wg.Add(1)
	go s.readFrames(streamCtx, dev.GetOutput(), p)
	return nil
}

func (s *Source) readFrames(ctx context.Context, out <-chan []byte, p camera.Params) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-out:
			if !ok {
				return
			}
			if len(data) == 0 {
				continue
			}
			f := &camera.Frame{
				Planes:      []camera.Plane{{Data: data, PixelStride: 2, RowStride: p.Width * 2}},
				Width:       p.Width,
				Height:      p.Height,
				PixelFormat: p.PixelFormat,
				CameraIndex: p.CameraIndex,
				FrontFacing: p.FrontFacing,
				Seq:         s.seq.Add(1),
				Timestamp:   time.Now(),
				TraceID:     uuid.New().String(),
			}
			s.fps.Frame()
			s.listener.PreviewFrame(f)
		}
	}
}

func (s *Source) Close() error {
	s.mu.Lock()
	if s.dev == nil {
		s.mu.Unlock()
		return nil
	}

	s.cancel()
	s.wg.Wait()
	err := s.dev.Close()
	if err != nil {
		slog.Error("camera: failed to close v4l2 device", "device", s.cfg.Device, "error", err)
	}
	s.dev = nil
	l := s.listener
	s.listener = nil
	s.mu.Unlock()

	slog.Info("camera: v4l2 capture stopped", "device", s.cfg.Device, "frames", s.seq.Load())
	l.PreviewStopped()
	return err
}

// FPS returns the measured capture rate.
func (s *Source) FPS() float64 { return s.fps.FPS() }

func classifyOpenError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENODEV):
		return fmt.Errorf("%w: %s: %v", camera.ErrNoCamera, path, err)
	case errors.Is(err, syscall.EBUSY):
		return fmt.Errorf("%w: %s: %v", camera.ErrCameraBusy, path, err)
	default:
		return fmt.Errorf("camera: failed to open %s: %w", path, err)
	}
}

var _ camera.Source = (*Source)(nil)
