//go:build gocv

package cvcamera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/e7canasta/arlink/camera"
)

// Source is a camera.Source reading an OpenCV VideoCapture.
type Source struct {
	cfg Config

	mu       sync.Mutex
	webcam   *gocv.VideoCapture
	listener camera.Listener
	pool     *camera.BufferPool
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	seq     atomic.Uint64
	dropped atomic.Uint64
	fps     *camera.FPSCounter
}

// New returns an unopened source.
func New(cfg Config) *Source {
	cfg.setDefaults()
	return &Source{cfg: cfg, fps: camera.NewFPSCounter("opencv")}
}

func (s *Source) Capabilities() camera.Capabilities {
	return camera.Capabilities{BufferPool: true}
}

func (s *Source) Open(ctx context.Context, l camera.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.webcam != nil {
		return camera.ErrAlreadyOpen
	}

	webcam, err := gocv.VideoCaptureDevice(s.cfg.DeviceID)
	if err != nil {
		return fmt.Errorf("%w: device %d: %v", camera.ErrNoCamera, s.cfg.DeviceID, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return fmt.Errorf("%w: device %d", camera.ErrCameraBusy, s.cfg.DeviceID)
	}
	webcam.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.Width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.Height))
	webcam.Set(gocv.VideoCaptureFPS, float64(s.cfg.FPS))

	// The driver may pick a different geometry; trust the first frame.
	img := gocv.NewMat()
	defer img.Close()
	if ok := webcam.Read(&img); !ok || img.Empty() {
		webcam.Close()
		return fmt.Errorf("%w: cannot read from device %d", camera.ErrCameraBusy, s.cfg.DeviceID)
	}

	p := camera.Params{
		Width:       img.Cols(),
		Height:      img.Rows(),
		Rate:        s.cfg.FPS,
		PixelFormat: camera.PixelFormatBGR,
		CameraIndex: s.cfg.DeviceID,
		FrontFacing: s.cfg.FrontFacing,
	}

	delivery := camera.Negotiate(s.Capabilities(), s.cfg.Delivery)
	s.pool = nil
	if delivery == camera.DeliveryPooled {
		s.pool = camera.NewBufferPool(s.cfg.PoolBuffers, camera.FrameSize(p.PixelFormat, p.Width, p.Height))
	}

	readCtx, cancel := context.WithCancel(ctx)
	s.webcam = webcam
	s.listener = l
	s.cancel = cancel
	s.seq.Store(0)
	s.fps.Reset()

	slog.Info("camera: opencv capture started",
		"device_id", s.cfg.DeviceID,
		"params", p.String(),
		"delivery", delivery.String(),
	)

	l.PreviewStarted(p)

	s.wg.Add(1)
	go s.readFrames(readCtx, webcam, p)
	return nil
}

func (s *Source) readFrames(ctx context.Context, webcam *gocv.VideoCapture, p camera.Params) {
	defer s.wg.Done()

	img := gocv.NewMat()
	defer img.Close()

	for ctx.Err() == nil {
		if ok := webcam.Read(&img); !ok {
			slog.Warn("camera: opencv device closed", "device_id", s.cfg.DeviceID)
			return
		}
		if img.Empty() || img.Cols() != p.Width || img.Rows() != p.Height {
			continue
		}

		data := img.ToBytes()
		f := &camera.Frame{
			Width:       p.Width,
			Height:      p.Height,
			PixelFormat: p.PixelFormat,
			CameraIndex: p.CameraIndex,
			FrontFacing: p.FrontFacing,
			Timestamp:   time.Now(),
			TraceID:     uuid.New().String(),
		}
		if s.pool != nil {
			buf, ok := s.pool.Get()
			if !ok {
				s.dropped.Add(1)
				continue
			}
			copy(buf, data)
			s.pool.Attach(f, buf)
			data = buf
		}
		f.Seq = s.seq.Add(1)
		f.Planes = []camera.Plane{{Data: data, PixelStride: 3, RowStride: p.Width * 3}}
		s.fps.Frame()
		s.listener.PreviewFrame(f)
	}
}

func (s *Source) Close() error {
	s.mu.Lock()
	if s.webcam == nil {
		s.mu.Unlock()
		return nil
	}

	s.cancel()
	// Closing the capture unblocks a pending Read.
	err := s.webcam.Close()
	s.wg.Wait()
	s.webcam = nil
	l := s.listener
	s.listener = nil
	s.mu.Unlock()

	slog.Info("camera: opencv capture stopped",
		"device_id", s.cfg.DeviceID,
		"frames", s.seq.Load(),
		"dropped", s.dropped.Load(),
	)
	l.PreviewStopped()
	return err
}

var _ camera.Source = (*Source)(nil)
