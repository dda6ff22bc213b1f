//go:build !gocv

package cvcamera

import (
	"context"
	"errors"
	"testing"

	"github.com/e7canasta/arlink/camera/cameratest"
)

func TestStubOpenFails(t *testing.T) {
	s := New(Config{})
	if err := s.Open(context.Background(), &cameratest.Listener{}); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("Open() = %v, want ErrNotBuilt", err)
	}
	if s.cfg.Width != 640 || s.cfg.Height != 480 || s.cfg.FPS != 30 {
		t.Errorf("defaults = %+v", s.cfg)
	}
}
