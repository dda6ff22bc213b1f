package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/arlink/camera"
	"github.com/e7canasta/arlink/handoff"
	"github.com/e7canasta/arlink/render"
	"github.com/e7canasta/arlink/session"
)

var (
	// ErrClosed is returned by lifecycle calls on a closed screen.
	ErrClosed = errors.New("screen: closed")

	// ErrNotStarted is returned by Resume before Start.
	ErrNotStarted = errors.New("screen: not started")
)

const (
	msgNativeNotLoaded   = "The native library is not loaded. The application cannot continue."
	msgPermissionDenied  = "Application will not run with camera access denied"
	msgPermissionAllowed = "Camera access permission %q allowed"
	msgCameraSettings    = "Camera settings: %s"

	cameraPermission = "camera"
)

// Delivery selects where frames are processed.
type Delivery string

const (
	// DeliveryInline processes frames on the camera's goroutine.
	DeliveryInline Delivery = "inline"
	// DeliveryMailbox hands frames to a processing goroutine through a
	// single-slot mailbox; frames arriving while one is processed supersede
	// each other.
	DeliveryMailbox Delivery = "mailbox"
)

// Options configures a Screen.
type Options struct {
	// CacheDir is the native library's working directory (marker data).
	CacheDir string
	Delivery Delivery
	// Permissions gates camera access. Nil means always granted.
	Permissions camera.Permissions
	// Notifier shows user notices. Nil logs them.
	Notifier Notifier
	Render   render.Options
}

// Status is a point-in-time view of a screen.
type Status struct {
	State           State
	SessionID       string
	FramesOffered   uint64
	FramesProcessed uint64
	FramesTracked   uint64
	FramesDropped   uint64
	FramesRendered  uint64
	Uptime          time.Duration
	CloseReason     string
	Session         session.Stats
	Render          render.Stats
}

// Screen is one AR screen. It is a camera.Listener for its own source.
type Screen struct {
	host Host
	sess *session.Session
	src  camera.Source
	opts Options

	// lifeMu serializes Start, Resume, Pause, Stop, permission results and
	// teardown. Camera callbacks never take it.
	lifeMu sync.Mutex

	mu          sync.Mutex
	state       State
	closeReason string
	layout      Layout
	scene       render.Scene
	driver      *render.Driver
	cameraView  View
	renderView  View
	mailbox     *handoff.Mailbox
	procCancel  context.CancelFunc
	procDone    chan struct{}
	startedAt   time.Time

	firstUpdate atomic.Bool
	done        chan struct{}
	doneOnce    sync.Once

	offered    atomic.Uint64
	processed  atomic.Uint64
	tracked    atomic.Uint64
	dropped    atomic.Uint64
	superseded atomic.Uint64
}

// New returns a screen in StateUninitialized.
func New(host Host, sess *session.Session, src camera.Source, opts Options) *Screen {
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}
	if opts.Permissions == nil {
		opts.Permissions = camera.StaticPermissions(true)
	}
	if opts.Delivery == "" {
		opts.Delivery = DeliveryInline
	}
	return &Screen{
		host: host,
		sess: sess,
		src:  src,
		opts: opts,
		done: make(chan struct{}),
	}
}

// Start brings the screen to the foreground: it initialises the native
// library and asks the host for its layout and scene.
func (s *Screen) Start() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	switch st := s.State(); st {
	case StateClosed:
		return ErrClosed
	case StateUninitialized, StateStopped, StateFinalized:
	default:
		slog.Debug("screen: already started", "state", st)
		return nil
	}

	if err := s.initialise(); err != nil {
		return err
	}

	layout := s.host.SupplyLayout()
	if layout == nil {
		slog.Error("screen: host did not supply a layout")
	}
	scene := s.host.SupplyScene()
	if scene == nil {
		slog.Error("screen: host did not supply a scene, using clear scene")
		scene = render.ClearScene{}
	}

	s.mu.Lock()
	s.layout = layout
	s.scene = scene
	s.driver = render.NewDriver(scene, s.sess, s.opts.Render)
	s.startedAt = time.Now()
	s.mu.Unlock()

	slog.Info("screen: started",
		"session_id", s.sess.ID(),
		"cache_dir", s.opts.CacheDir,
		"delivery", s.opts.Delivery,
		"scene", fmt.Sprintf("%T", scene),
	)
	return nil
}

func (s *Screen) initialise() error {
	if err := s.sess.Initialise(s.opts.CacheDir); err != nil {
		s.opts.Notifier.Notify(msgNativeNotLoaded)
		s.closeScreen("native library not loaded")
		return fmt.Errorf("screen: start: %w", err)
	}
	s.setState(StateNativeInitialized)
	return nil
}

// Resume makes the screen visible. Without camera permission it requests it
// and waits for OnPermissionResult; otherwise it opens the camera. The check
// repeats on every Resume, including while a request is outstanding.
func (s *Screen) Resume() error {
	s.lifeMu.Lock()

	switch st := s.State(); st {
	case StateClosed:
		s.lifeMu.Unlock()
		return ErrClosed
	case StateUninitialized:
		s.lifeMu.Unlock()
		return ErrNotStarted
	case StateCameraOpen, StateVideoRunning:
		s.lifeMu.Unlock()
		return nil
	case StateStopped, StateFinalized:
		// The previous run shut the native library down.
		if !s.sess.Initialised() {
			if err := s.initialise(); err != nil {
				s.lifeMu.Unlock()
				return err
			}
		}
	}

	if !s.opts.Permissions.Granted() {
		s.setState(StateAwaitingPermission)
		s.lifeMu.Unlock()
		slog.Info("screen: requesting camera permission")
		s.opts.Permissions.Request()
		return nil
	}

	defer s.lifeMu.Unlock()
	return s.openCameraLocked()
}

// OnPermissionResult reports the outcome of a camera permission request.
// A grant continues Resume from camera open; a denial leaves the screen idle
// until a later grant.
func (s *Screen) OnPermissionResult(granted bool) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if st := s.State(); st != StateAwaitingPermission {
		slog.Debug("screen: permission result ignored", "state", st, "granted", granted)
		return nil
	}
	if !granted {
		slog.Warn("screen: camera permission denied")
		s.opts.Notifier.Notify(msgPermissionDenied)
		return nil
	}

	s.opts.Notifier.Notify(fmt.Sprintf(msgPermissionAllowed, cameraPermission))
	return s.openCameraLocked()
}

func (s *Screen) openCameraLocked() error {
	s.mu.Lock()
	layout := s.layout
	driver := s.driver
	s.mu.Unlock()

	if layout == nil {
		slog.Warn("screen: no layout, camera not opened")
		return nil
	}

	cameraView := &viewFunc{name: "camera-preview", release: s.closeCamera}
	renderView := &viewFunc{name: "render-surface", release: driver.Pause}
	layout.AddView(cameraView)
	layout.AddView(renderView)

	s.startProcessing()

	s.mu.Lock()
	s.cameraView = cameraView
	s.renderView = renderView
	s.state = StateCameraOpen
	s.mu.Unlock()

	if err := s.src.Open(context.Background(), s); err != nil {
		slog.Error("screen: camera open failed", "error", err)
		s.closeScreen("camera open failed")
		return fmt.Errorf("screen: open camera: %w", err)
	}

	driver.Resume(s.surface())
	slog.Info("screen: resumed", "session_id", s.sess.ID())
	return nil
}

func (s *Screen) surface() render.Surface {
	if sh, ok := s.host.(SurfaceHost); ok {
		if sf := sh.SupplySurface(); sf != nil {
			return sf
		}
	}
	return render.NewHeadlessSurface()
}

func (s *Screen) closeCamera() {
	if err := s.src.Close(); err != nil {
		slog.Warn("screen: error closing camera", "error", err)
	}
}

// Pause leaves the foreground. The render surface is paused and removed
// before the camera view, whose removal closes the camera and finalises the
// session.
func (s *Screen) Pause() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	s.pauseLocked()
}

func (s *Screen) pauseLocked() {
	s.mu.Lock()
	layout := s.layout
	driver := s.driver
	cameraView, renderView := s.cameraView, s.renderView
	s.cameraView, s.renderView = nil, nil
	if s.state == StateAwaitingPermission {
		s.state = StateNativeInitialized
	}
	s.mu.Unlock()

	if cameraView == nil && renderView == nil {
		return
	}

	if driver != nil {
		driver.Pause()
	}
	if renderView != nil {
		layout.RemoveView(renderView)
	}
	s.stopProcessing()
	if cameraView != nil {
		layout.RemoveView(cameraView)
	}

	slog.Info("screen: paused",
		"session_id", s.sess.ID(),
		"frames_processed", s.processed.Load(),
		"frames_tracked", s.tracked.Load(),
	)
}

// Stop pauses the screen if needed and finalises the session.
func (s *Screen) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	st := s.State()
	if st == StateClosed || st == StateUninitialized {
		return
	}
	s.pauseLocked()
	if s.sess.Initialised() {
		s.sess.StopAndFinal()
	}
	s.setState(StateFinalized)
	slog.Info("screen: stopped", "session_id", s.sess.ID())
}

// closeScreen moves to StateClosed and tears everything down on another
// goroutine, so it may be called from camera callbacks.
func (s *Screen) closeScreen(reason string) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = StateClosed
	s.closeReason = reason
	s.mu.Unlock()

	slog.Error("screen: closing", "reason", reason, "state", prev)

	go func() {
		s.lifeMu.Lock()
		defer s.lifeMu.Unlock()
		s.pauseLocked()
		if s.sess.Initialised() {
			s.sess.StopAndFinal()
		}
		s.doneOnce.Do(func() { close(s.done) })
	}()
}

// Done is closed once the screen has closed and released the camera.
func (s *Screen) Done() <-chan struct{} { return s.done }

// State returns the current lifecycle state.
func (s *Screen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Screen) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		s.state = st
	}
}

// Session returns the screen's tracking session.
func (s *Screen) Session() *session.Session { return s.sess }

// Driver returns the render driver, or nil before Start.
func (s *Screen) Driver() *render.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver
}

// Status returns a snapshot of the screen.
func (s *Screen) Status() Status {
	s.mu.Lock()
	st := Status{
		State:       s.state,
		SessionID:   s.sess.ID(),
		CloseReason: s.closeReason,
	}
	driver := s.driver
	mb := s.mailbox
	startedAt := s.startedAt
	s.mu.Unlock()

	st.FramesOffered = s.offered.Load()
	st.FramesProcessed = s.processed.Load()
	st.FramesTracked = s.tracked.Load()
	st.FramesDropped = s.dropped.Load() + s.superseded.Load()
	if mb != nil {
		st.FramesDropped += mb.Stats().Superseded
	}
	if driver != nil {
		st.Render = driver.Stats()
		st.FramesRendered = st.Render.Drawn
	}
	if !startedAt.IsZero() {
		st.Uptime = time.Since(startedAt)
	}
	st.Session = s.sess.Stats()
	return st
}
