package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/e7canasta/arlink/camera"
	"github.com/e7canasta/arlink/camera/cameratest"
	"github.com/e7canasta/arlink/camera/cvcamera"
	"github.com/e7canasta/arlink/camera/gstcamera"
	"github.com/e7canasta/arlink/camera/v4l2camera"
	"github.com/e7canasta/arlink/internal/config"
)

// newSource builds the camera source selected by cfg.Driver.
func newSource(cfg config.CameraConfig) (camera.Source, error) {
	w, h := cfg.Size()
	switch cfg.Driver {
	case "gstreamer":
		return gstcamera.New(gstcamera.Config{
			Device:      cfg.Device,
			Width:       w,
			Height:      h,
			FPS:         cfg.FPS,
			PixelFormat: cfg.PixelFormat,
			CameraIndex: cfg.Index,
			FrontFacing: cfg.FrontFacing,
			PoolBuffers: cfg.PoolBuffers,
			Delivery:    camera.DeliveryPooled,
		}), nil
	case "v4l2":
		return v4l2camera.New(v4l2camera.Config{
			Device:      cfg.Device,
			Width:       w,
			Height:      h,
			FPS:         cfg.FPS,
			CameraIndex: cfg.Index,
			FrontFacing: cfg.FrontFacing,
		}), nil
	case "gocv":
		return cvcamera.New(cvcamera.Config{
			DeviceID:    cfg.Index,
			Width:       w,
			Height:      h,
			FPS:         cfg.FPS,
			FrontFacing: cfg.FrontFacing,
			PoolBuffers: cfg.PoolBuffers,
			Delivery:    camera.DeliveryPooled,
		}), nil
	case "test":
		return newSyntheticSource(cfg), nil
	default:
		return nil, fmt.Errorf("unknown camera driver %q", cfg.Driver)
	}
}

// syntheticSource emits blank pooled frames at the configured rate. It lets
// the daemon run end to end without capture hardware.
type syntheticSource struct {
	*cameratest.Source
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newSyntheticSource(cfg config.CameraConfig) *syntheticSource {
	w, h := cfg.Size()
	p := camera.Params{
		Width:       w,
		Height:      h,
		Rate:        cfg.FPS,
		PixelFormat: cfg.PixelFormat,
		CameraIndex: cfg.Index,
		FrontFacing: cfg.FrontFacing,
	}
	return &syntheticSource{
		Source:   cameratest.NewPooledSource(p, cfg.PoolBuffers),
		interval: time.Second / time.Duration(cfg.FPS),
	}
}

func (s *syntheticSource) Open(ctx context.Context, l camera.Listener) error {
	if err := s.Source.Open(ctx, l); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pumpCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.pump(pumpCtx)
	return nil
}

func (s *syntheticSource) pump(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Emit()
		}
	}
}

func (s *syntheticSource) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
	return s.Source.Close()
}

var _ camera.Source = (*syntheticSource)(nil)
