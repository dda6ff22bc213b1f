package camera

import (
	"math"
	"testing"
	"time"
)

func TestFrameSize(t *testing.T) {
	tests := []struct {
		format string
		w, h   int
		want   int
	}{
		{PixelFormatNV21, 640, 480, 640*480 + 2*320*240},
		{PixelFormatI420, 320, 240, 320*240 + 2*160*120},
		{PixelFormatYUYV, 640, 480, 640 * 480 * 2},
		{PixelFormatBGR, 640, 480, 640 * 480 * 3},
		{PixelFormatRGBA, 2, 2, 16},
		{"MJPG", 640, 480, 0},
	}
	for _, tt := range tests {
		if got := FrameSize(tt.format, tt.w, tt.h); got != tt.want {
			t.Errorf("FrameSize(%s, %d, %d) = %d, want %d", tt.format, tt.w, tt.h, got, tt.want)
		}
	}
}

// TestFrameReleaseOnce verifies the release callback runs exactly once.
func TestFrameReleaseOnce(t *testing.T) {
	calls := 0
	f := &Frame{}
	f.SetRelease(func() { calls++ })

	f.Release()
	f.Release()

	if calls != 1 {
		t.Errorf("release ran %d times, want 1", calls)
	}
	if !f.Released() {
		t.Error("Released() = false")
	}

	var nilFrame *Frame
	nilFrame.Release()
}

// TestBufferPoolExhaustion verifies Get fails without blocking when all
// buffers are held and recovers once a frame is released.
func TestBufferPoolExhaustion(t *testing.T) {
	pool := NewBufferPool(2, 16)

	a, ok := pool.Get()
	if !ok || len(a) != 16 {
		t.Fatalf("Get() = %d bytes, %v", len(a), ok)
	}
	b, ok := pool.Get()
	if !ok {
		t.Fatal("second Get() failed")
	}

	if _, ok := pool.Get(); ok {
		t.Fatal("Get() on empty pool succeeded")
	}
	if pool.Misses() != 1 {
		t.Errorf("Misses() = %d, want 1", pool.Misses())
	}

	f := &Frame{Planes: []Plane{{Data: a}}}
	pool.Attach(f, a)
	f.Release()
	f.Release()

	if pool.Available() != 1 {
		t.Errorf("Available() = %d after release, want 1", pool.Available())
	}

	pool.Put(make([]byte, 8))
	if pool.Available() != 1 {
		t.Error("wrong-size buffer accepted")
	}

	pool.Put(b)
	pool.Put(make([]byte, 16))
	if pool.Available() != 2 {
		t.Errorf("pool grew past capacity: %d", pool.Available())
	}
}

func TestBufferPoolDefaultSize(t *testing.T) {
	pool := NewBufferPool(0, FrameSize(PixelFormatNV21, 4, 4))
	if pool.Available() != DefaultPoolBuffers {
		t.Errorf("Available() = %d, want %d", pool.Available(), DefaultPoolBuffers)
	}
	if pool.BufferSize() != 24 {
		t.Errorf("BufferSize() = %d, want 24", pool.BufferSize())
	}
}

func TestNegotiate(t *testing.T) {
	if got := Negotiate(Capabilities{BufferPool: true}, DeliveryPooled); got != DeliveryPooled {
		t.Errorf("pool-capable source: %v", got)
	}
	if got := Negotiate(Capabilities{}, DeliveryPooled); got != DeliveryCallback {
		t.Errorf("source without pool: %v", got)
	}
	if got := Negotiate(Capabilities{BufferPool: true}, DeliveryCallback); got != DeliveryCallback {
		t.Errorf("callback requested: %v", got)
	}
}

func TestParamsString(t *testing.T) {
	p := Params{Width: 640, Height: 480, Rate: 30}
	if s := p.String(); s != "640x480@30fps" {
		t.Errorf("String() = %q", s)
	}
}

// TestCalculateFPSStats checks stability on an even and an uneven capture.
func TestCalculateFPSStats(t *testing.T) {
	t0 := time.Unix(0, 0)

	even := make([]time.Time, 30)
	for i := range even {
		even[i] = t0.Add(time.Duration(i) * time.Second)
	}
	stats := CalculateFPSStats(even, 30*time.Second)
	if !stats.IsStable {
		t.Errorf("even capture unstable: %+v", stats)
	}
	if math.Abs(stats.FPSMean-1.0) > 1e-9 {
		t.Errorf("FPSMean = %v, want 1", stats.FPSMean)
	}

	uneven := make([]time.Time, 30)
	at := t0
	for i := range uneven {
		uneven[i] = at
		if i%2 == 0 {
			at = at.Add(500 * time.Millisecond)
		} else {
			at = at.Add(1500 * time.Millisecond)
		}
	}
	stats = CalculateFPSStats(uneven, 30*time.Second)
	if stats.IsStable {
		t.Errorf("uneven capture stable: %+v", stats)
	}

	if empty := CalculateFPSStats(nil, time.Second); empty.Frames != 0 || empty.IsStable {
		t.Errorf("empty stats = %+v", empty)
	}
}

// TestFPSCounterReportsOncePerSecond drives the counter with a fake clock.
func TestFPSCounterReportsOncePerSecond(t *testing.T) {
	c := NewFPSCounter("test")
	now := time.Unix(100, 0)
	c.now = func() time.Time { return now }

	reports := 0
	var last float64
	for i := 0; i < 21; i++ {
		if fps, ok := c.Frame(); ok {
			reports++
			last = fps
		}
		now = now.Add(100 * time.Millisecond)
	}

	if reports != 2 {
		t.Errorf("reports = %d, want 2", reports)
	}
	if math.Abs(last-10) > 0.01 {
		t.Errorf("fps = %v, want 10", last)
	}
	if c.FPS() != last {
		t.Errorf("FPS() = %v, want %v", c.FPS(), last)
	}

	if s := c.Stats(); math.Abs(s.FPSMean-10) > 0.01 || !s.IsStable {
		t.Errorf("Stats() = %+v", s)
	}

	c.Reset()
	if c.FPS() != 0 {
		t.Error("Reset() kept rate")
	}
}
