package handoff

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/e7canasta/arlink/camera"
)

func newFrame(seq uint64, released *atomic.Int32) *camera.Frame {
	f := &camera.Frame{Seq: seq}
	f.SetRelease(func() { released.Add(1) })
	return f
}

// TestOfferNonBlocking validates Offer returns immediately with no consumer.
//
// Scenario:
//  1. Offer 1000 frames, nobody takes
//  2. Assert: total time well under 100ms
//  3. Assert: 999 superseded frames released, one pending
func TestOfferNonBlocking(t *testing.T) {
	m := New()
	var released atomic.Int32

	start := time.Now()
	for i := uint64(1); i <= 1000; i++ {
		m.Offer(newFrame(i, &released))
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Offer() blocked: elapsed=%v", elapsed)
	}

	if got := released.Load(); got != 999 {
		t.Errorf("released = %d, want 999", got)
	}
	st := m.Stats()
	if st.Offered != 1000 || st.Superseded != 999 || st.ConsecutiveSuperseded != 999 {
		t.Errorf("Stats() = %+v", st)
	}
}

// TestTakeReturnsLatest validates overwrite semantics: only the newest frame
// is delivered.
func TestTakeReturnsLatest(t *testing.T) {
	m := New()
	var released atomic.Int32

	m.Offer(newFrame(1, &released))
	m.Offer(newFrame(2, &released))
	m.Offer(newFrame(3, &released))

	f, err := m.Take(context.Background())
	if err != nil {
		t.Fatalf("Take() = %v", err)
	}
	if f.Seq != 3 {
		t.Errorf("Take() seq = %d, want 3", f.Seq)
	}
	if f.Released() {
		t.Error("taken frame already released")
	}
	if released.Load() != 2 {
		t.Errorf("released = %d, want 2", released.Load())
	}

	st := m.Stats()
	if st.Consumed != 1 || st.LastConsumedSeq != 3 || st.ConsecutiveSuperseded != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

// TestTakeBlocksUntilOffer validates the consumer wakes on Offer.
func TestTakeBlocksUntilOffer(t *testing.T) {
	m := New()
	var released atomic.Int32

	got := make(chan uint64, 1)
	go func() {
		f, err := m.Take(context.Background())
		if err != nil {
			t.Errorf("Take() = %v", err)
			return
		}
		got <- f.Seq
	}()

	time.Sleep(20 * time.Millisecond)
	m.Offer(newFrame(7, &released))

	select {
	case seq := <-got:
		if seq != 7 {
			t.Errorf("seq = %d, want 7", seq)
		}
	case <-time.After(time.Second):
		t.Fatal("Take() did not wake on Offer")
	}
}

// TestTakeContextCancel validates Take returns the context error.
func TestTakeContextCancel(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := m.Take(ctx)
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Take() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Take() ignored cancellation")
	}
}

// TestCloseReleasesPendingAndWakes validates Close semantics.
//
// Scenario:
//  1. Offer a frame, nobody takes
//  2. Close: pending frame released, Take returns ErrClosed
//  3. Offer after Close: frame released immediately
//  4. Close again: no panic
func TestCloseReleasesPendingAndWakes(t *testing.T) {
	m := New()
	var released atomic.Int32

	m.Offer(newFrame(1, &released))
	m.Close()

	if released.Load() != 1 {
		t.Errorf("pending frame not released on Close")
	}
	if _, err := m.Take(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Take() after Close = %v, want ErrClosed", err)
	}

	m.Offer(newFrame(2, &released))
	if released.Load() != 2 {
		t.Error("frame offered after Close not released")
	}
	m.Close()

	if !m.Stats().Closed {
		t.Error("Stats().Closed = false")
	}
}

// TestCloseWakesBlockedConsumer validates a blocked Take returns on Close.
func TestCloseWakesBlockedConsumer(t *testing.T) {
	m := New()
	errc := make(chan error, 1)
	go func() {
		_, err := m.Take(context.Background())
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	m.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Take() = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Take() not woken by Close")
	}
}

// TestEveryFrameReleasedOnce validates that under concurrent offer/take every
// frame is released exactly once.
func TestEveryFrameReleasedOnce(t *testing.T) {
	m := New()
	const n = 2000

	var counts [n + 1]atomic.Int32
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			f, err := m.Take(context.Background())
			if err != nil {
				return
			}
			time.Sleep(10 * time.Microsecond)
			f.Release()
		}
	}()

	for i := uint64(1); i <= n; i++ {
		seq := i
		f := &camera.Frame{Seq: seq}
		f.SetRelease(func() { counts[seq].Add(1) })
		m.Offer(f)
	}
	time.Sleep(10 * time.Millisecond)
	m.Close()
	wg.Wait()

	for i := 1; i <= n; i++ {
		if c := counts[i].Load(); c != 1 {
			t.Fatalf("frame %d released %d times", i, c)
		}
	}

	st := m.Stats()
	if st.Consumed+st.Superseded > n {
		t.Errorf("consumed %d + superseded %d > offered %d", st.Consumed, st.Superseded, n)
	}
	t.Logf("consumed=%d superseded=%d", st.Consumed, st.Superseded)
}

// TestIdleDetection validates IsIdle with a fake clock.
func TestIdleDetection(t *testing.T) {
	m := New()
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }
	m.lastConsumedAt = now

	var released atomic.Int32
	now = now.Add(10 * time.Second)
	m.Offer(newFrame(1, &released))
	if !m.Stats().IsIdle {
		t.Error("consumer not idle after 10s without Take")
	}

	if _, err := m.Take(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.Stats().IsIdle {
		t.Error("consumer idle right after Take")
	}
}
