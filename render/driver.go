package render

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/arlink/session"
)

// ErrNotResumed is returned by DrawFrame when the driver has no surface.
var ErrNotResumed = errors.New("render: driver not resumed")

// Options configures a Driver.
type Options struct {
	// OnRequest switches the driver to host-driven mode: render requests are
	// forwarded to the platform (a paint event) and the host calls DrawFrame
	// on its own GL thread. No render goroutine is started.
	OnRequest func()
}

// Stats is a snapshot of driver counters.
type Stats struct {
	Requests   uint64 // RequestRender calls while resumed
	Coalesced  uint64 // requests folded into an already pending one
	Drawn      uint64 // Scene.Draw invocations
	Skipped    uint64 // frames cleared without Draw because the session was not running
	Resumed    bool
	HostDriven bool
}

// Driver renders a Scene when dirty.
//
// Lifecycle: NewDriver → Resume(surface) → RequestRender()/SurfaceChanged() →
// Pause(). Resume and Pause may alternate any number of times.
//
// Pending requests are single-slot: any number of RequestRender calls between
// two draws produce one draw.
type Driver struct {
	scene Scene
	sess  *session.Session
	opts  Options

	mu            sync.Mutex
	cond          *sync.Cond
	surface       Surface
	dirty         bool
	pendingCreate bool
	pendingSize   bool
	width, height int
	resumed       bool

	// drawMu serializes frames between the loop and host DrawFrame calls.
	drawMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	requests  atomic.Uint64
	coalesced atomic.Uint64
	drawn     atomic.Uint64
	skipped   atomic.Uint64
}

// NewDriver returns a paused driver for scene. A nil scene draws ClearScene.
func NewDriver(scene Scene, sess *session.Session, opts Options) *Driver {
	if scene == nil {
		scene = ClearScene{}
	}
	d := &Driver{scene: scene, sess: sess, opts: opts}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Scene returns the scene being drawn.
func (d *Driver) Scene() Scene { return d.scene }

// Resume attaches sf and starts rendering. SurfaceCreated is delivered on the
// next frame, from the thread that draws it. Resuming an already resumed
// driver only swaps the surface.
func (d *Driver) Resume(sf Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.surface = sf
	d.pendingCreate = true
	if d.width > 0 && d.height > 0 {
		d.pendingSize = true
	}
	d.dirty = true

	if d.resumed {
		d.cond.Broadcast()
		return
	}
	d.resumed = true

	if d.opts.OnRequest != nil {
		slog.Debug("render: resumed (host-driven)")
		go d.opts.OnRequest()
		return
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.wg.Add(1)
	go d.loop(d.ctx)
	slog.Debug("render: resumed")
}

// Pause stops rendering and waits for an in-flight frame to finish.
func (d *Driver) Pause() {
	d.mu.Lock()
	if !d.resumed {
		d.mu.Unlock()
		return
	}
	d.resumed = false
	d.dirty = false
	hasLoop := d.cancel != nil
	if hasLoop {
		d.cancel()
		d.cancel = nil
	}
	d.cond.Broadcast()
	d.mu.Unlock()

	if hasLoop {
		d.wg.Wait()
	}

	// Host-driven frames may still be drawing.
	d.drawMu.Lock()
	d.drawMu.Unlock()

	slog.Debug("render: paused",
		"drawn", d.drawn.Load(),
		"coalesced", d.coalesced.Load(),
	)
}

// RequestRender marks the surface dirty. It never blocks and is ignored
// while paused.
func (d *Driver) RequestRender() {
	d.mu.Lock()
	if !d.resumed {
		d.mu.Unlock()
		return
	}
	d.requests.Add(1)
	if d.dirty {
		d.coalesced.Add(1)
		d.mu.Unlock()
		return
	}
	d.dirty = true
	d.cond.Signal()
	d.mu.Unlock()

	if d.opts.OnRequest != nil {
		d.opts.OnRequest()
	}
}

// SurfaceChanged records a new surface size; the scene sees it on the next
// frame.
func (d *Driver) SurfaceChanged(width, height int) {
	d.mu.Lock()
	d.width, d.height = width, height
	d.pendingSize = true
	d.mu.Unlock()

	slog.Debug("render: surface changed", "width", width, "height", height)
	d.RequestRender()
}

// DrawFrame draws one frame on the caller's thread. Hosts in host-driven
// mode call it from their paint handler.
func (d *Driver) DrawFrame() error {
	d.mu.Lock()
	if !d.resumed || d.surface == nil {
		d.mu.Unlock()
		return ErrNotResumed
	}
	d.dirty = false
	d.mu.Unlock()

	d.draw()
	return nil
}

func (d *Driver) loop(ctx context.Context) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		for !d.dirty && ctx.Err() == nil {
			d.cond.Wait()
		}
		if ctx.Err() != nil {
			d.mu.Unlock()
			return
		}
		d.dirty = false
		d.mu.Unlock()

		d.draw()
	}
}

func (d *Driver) draw() {
	d.drawMu.Lock()
	defer d.drawMu.Unlock()

	d.mu.Lock()
	sf := d.surface
	create := d.pendingCreate
	resize := d.pendingSize
	w, h := d.width, d.height
	d.pendingCreate = false
	d.pendingSize = false
	d.mu.Unlock()

	if sf == nil {
		return
	}
	if create {
		d.scene.SurfaceCreated(sf)
	}
	if resize {
		d.scene.SurfaceChanged(sf, w, h)
	}

	if d.sess == nil || !d.sess.Running() {
		sf.Clear()
		d.skipped.Add(1)
		return
	}
	d.scene.Draw(sf, d.sess)
	d.drawn.Add(1)
}

// Stats returns a snapshot of the driver counters.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	resumed := d.resumed
	d.mu.Unlock()
	return Stats{
		Requests:   d.requests.Load(),
		Coalesced:  d.coalesced.Load(),
		Drawn:      d.drawn.Load(),
		Skipped:    d.skipped.Load(),
		Resumed:    resumed,
		HostDriven: d.opts.OnRequest != nil,
	}
}
