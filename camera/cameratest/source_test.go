package cameratest

import (
	"context"
	"errors"
	"testing"

	"github.com/e7canasta/arlink/camera"
)

var vga = camera.Params{Width: 640, Height: 480, Rate: 30, PixelFormat: camera.PixelFormatNV21}

// TestSourceLifecycle verifies started → frames → stopped ordering.
func TestSourceLifecycle(t *testing.T) {
	src := NewSource(vga)
	l := &Listener{}

	if src.Emit() {
		t.Fatal("Emit() before Open delivered a frame")
	}
	if err := src.Open(context.Background(), l); err != nil {
		t.Fatalf("Open() = %v", err)
	}
	if err := src.Open(context.Background(), l); !errors.Is(err, camera.ErrAlreadyOpen) {
		t.Errorf("second Open() = %v, want ErrAlreadyOpen", err)
	}

	if n := src.EmitN(3); n != 3 {
		t.Errorf("EmitN(3) = %d", n)
	}
	src.Close()
	src.Close()

	if len(l.Started) != 1 || l.Started[0] != vga {
		t.Errorf("Started = %v", l.Started)
	}
	if l.FrameCount() != 3 || l.Stopped != 1 {
		t.Errorf("frames=%d stopped=%d", l.FrameCount(), l.Stopped)
	}
	if got := len(l.Frames[0].Bytes()); got != camera.FrameSize(camera.PixelFormatNV21, 640, 480) {
		t.Errorf("frame size = %d", got)
	}
	if src.Released() != 3 {
		t.Errorf("Released() = %d, want 3", src.Released())
	}
}

// TestPooledSourceDropsWhenExhausted verifies lossy flow control.
func TestPooledSourceDropsWhenExhausted(t *testing.T) {
	src := NewPooledSource(vga, 2)
	l := &Listener{Keep: true}
	if err := src.Open(context.Background(), l); err != nil {
		t.Fatal(err)
	}

	if n := src.EmitN(5); n != 2 {
		t.Errorf("delivered %d frames, want 2", n)
	}
	if src.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", src.Dropped())
	}

	l.Frames[0].Release()
	if !src.Emit() {
		t.Error("Emit() after release failed")
	}
}

func TestSourceOpenError(t *testing.T) {
	src := NewSource(vga)
	src.OpenErr = camera.ErrCameraBusy
	if err := src.Open(context.Background(), &Listener{}); !errors.Is(err, camera.ErrCameraBusy) {
		t.Errorf("Open() = %v", err)
	}
	if src.IsOpen() {
		t.Error("source open after failure")
	}
}
