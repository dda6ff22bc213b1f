package handoff

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/e7canasta/arlink/camera"
)

// ErrClosed is returned by Take after Close.
var ErrClosed = errors.New("handoff: closed")

// idleThreshold is how long the consumer may go without taking a frame,
// while frames are being offered, before Stats reports it idle.
const idleThreshold = 5 * time.Second

// Stats is a snapshot of mailbox counters.
type Stats struct {
	// Offered counts every Offer call on an open mailbox.
	Offered uint64
	// Consumed counts frames returned by Take.
	Consumed uint64
	// Superseded counts frames replaced before they were taken.
	Superseded uint64
	// ConsecutiveSuperseded is the current streak of replaced frames,
	// reset by every Take.
	ConsecutiveSuperseded uint64
	// LastConsumedSeq is the camera sequence number of the last taken frame.
	LastConsumedSeq uint64
	LastConsumedAt  time.Time
	// IsIdle is true when frames keep arriving but the consumer has not
	// taken one for idleThreshold.
	IsIdle bool
	Closed bool
}

// Mailbox is a single-slot frame hand-off. The zero value is not usable; use New.
//
// Thread-safety: Offer may be called from any goroutine. Take must be called
// from a single consumer goroutine.
type Mailbox struct {
	mu    sync.Mutex
	cond  *sync.Cond
	frame *camera.Frame

	closed bool

	offered               uint64
	consumed              uint64
	superseded            uint64
	consecutiveSuperseded uint64
	lastConsumedSeq       uint64
	lastConsumedAt        time.Time
	lastOfferedAt         time.Time

	now func() time.Time
}

// New returns an open mailbox.
func New() *Mailbox {
	m := &Mailbox{now: time.Now}
	m.cond = sync.NewCond(&m.mu)
	m.lastConsumedAt = m.now()
	return m
}

// Offer places f in the slot, replacing and releasing any frame not yet taken.
// On a closed mailbox the frame is released immediately.
func (m *Mailbox) Offer(f *camera.Frame) {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		f.Release()
		return
	}

	stale := m.frame
	if stale != nil {
		m.superseded++
		m.consecutiveSuperseded++
	}
	m.frame = f
	m.offered++
	m.lastOfferedAt = m.now()

	m.cond.Signal()
	m.mu.Unlock()

	// Release outside the lock: it runs the source's callback.
	stale.Release()
}

// Take waits for the next frame. The caller owns the returned frame and must
// Release it.
func (m *Mailbox) Take(ctx context.Context) (*camera.Frame, error) {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for m.frame == nil && !m.closed && ctx.Err() == nil {
		m.cond.Wait()
	}

	if m.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := m.frame
	m.frame = nil
	m.consumed++
	m.consecutiveSuperseded = 0
	m.lastConsumedSeq = f.Seq
	m.lastConsumedAt = m.now()
	return f, nil
}

// Close wakes the consumer and releases a pending frame. Idempotent.
func (m *Mailbox) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	pending := m.frame
	m.frame = nil
	m.cond.Broadcast()
	m.mu.Unlock()

	pending.Release()
}

// Stats returns a snapshot of the mailbox counters.
func (m *Mailbox) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	idle := !m.closed &&
		now.Sub(m.lastOfferedAt) < idleThreshold &&
		now.Sub(m.lastConsumedAt) > idleThreshold

	return Stats{
		Offered:               m.offered,
		Consumed:              m.consumed,
		Superseded:            m.superseded,
		ConsecutiveSuperseded: m.consecutiveSuperseded,
		LastConsumedSeq:       m.lastConsumedSeq,
		LastConsumedAt:        m.lastConsumedAt,
		IsIdle:                idle,
		Closed:                m.closed,
	}
}
