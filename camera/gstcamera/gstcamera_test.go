package gstcamera

import (
	"testing"

	"github.com/e7canasta/arlink/camera"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		msg, debug string
		want       ErrorCategory
	}{
		{"Could not open device '/dev/video0' for reading and writing.", "system error: Permission denied", ErrCategoryPermission},
		{"Internal data stream error.", "streaming stopped, reason not-negotiated (-4): not negotiated", ErrCategoryFormat},
		{"Device '/dev/video0' is busy", "", ErrCategoryDevice},
		{"Cannot identify device '/dev/video9'.", "", ErrCategoryDevice},
		{"Something odd", "", ErrCategoryUnknown},
	}
	for _, tt := range tests {
		if got := classify(tt.msg, tt.debug); got != tt.want {
			t.Errorf("classify(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
	if ClassifyGStreamerError(nil) != ErrCategoryUnknown {
		t.Error("nil error not unknown")
	}
}

func TestBuildCaps(t *testing.T) {
	caps, err := buildCaps(Config{Width: 640, Height: 480, FPS: 30, PixelFormat: camera.PixelFormatYUYV})
	if err != nil {
		t.Fatal(err)
	}
	if want := "video/x-raw,format=YUY2,width=640,height=480,framerate=30/1"; caps != want {
		t.Errorf("buildCaps() = %q, want %q", caps, want)
	}

	if _, err := buildCaps(Config{PixelFormat: "MJPG"}); err == nil {
		t.Error("MJPG accepted")
	}
}

func TestNewDefaults(t *testing.T) {
	s := New(Config{})
	p := s.params()
	if p.Width != 640 || p.Height != 480 || p.Rate != 30 || p.PixelFormat != camera.PixelFormatNV21 {
		t.Errorf("params() = %+v", p)
	}
	if !s.Capabilities().BufferPool {
		t.Error("gstreamer source should support buffer pools")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on unopened source = %v", err)
	}
	if st := s.Stats(); st.IsOpen || st.Frames != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}
