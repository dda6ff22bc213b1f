package screen

import (
	"errors"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/e7canasta/arlink/camera"
	"github.com/e7canasta/arlink/camera/cameratest"
	"github.com/e7canasta/arlink/engine/enginetest"
	"github.com/e7canasta/arlink/render"
	"github.com/e7canasta/arlink/session"
)

var vga = camera.Params{Width: 640, Height: 480, Rate: 30, PixelFormat: camera.PixelFormatNV21}

type testScene struct {
	render.ClearScene
	configured atomic.Int32
	fail       bool
	panicMsg   string
}

func (s *testScene) Configure(*session.Session) bool {
	s.configured.Add(1)
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return !s.fail
}

type testHost struct {
	layout    Layout
	scene     render.Scene
	processed atomic.Int32
}

func (h *testHost) SupplyLayout() Layout      { return h.layout }
func (h *testHost) SupplyScene() render.Scene { return h.scene }
func (h *testHost) OnFrameProcessed()         { h.processed.Add(1) }

type notices struct {
	mu   sync.Mutex
	msgs []string
}

func (n *notices) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *notices) has(prefix string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, m := range n.msgs {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

type fakePermissions struct {
	granted  atomic.Bool
	requests atomic.Int32
}

func (p *fakePermissions) Granted() bool { return p.granted.Load() }
func (p *fakePermissions) Request()      { p.requests.Add(1) }

type fixture struct {
	eng     *enginetest.Fake
	src     *cameratest.Source
	layout  *FrameLayout
	scene   *testScene
	host    *testHost
	notices *notices
	screen  *Screen
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		eng:     enginetest.New(),
		src:     cameratest.NewSource(vga),
		layout:  NewFrameLayout(),
		scene:   &testScene{},
		notices: &notices{},
	}
	f.host = &testHost{layout: f.layout, scene: f.scene}
	if opts.CacheDir == "" {
		opts.CacheDir = t.TempDir()
	}
	opts.Notifier = f.notices
	f.screen = New(f.host, session.New(f.eng, session.Options{}), f.src, opts)
	return f
}

func (f *fixture) startAndResume(t *testing.T) {
	t.Helper()
	if err := f.screen.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if err := f.screen.Resume(); err != nil {
		t.Fatalf("Resume() = %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitDone(t *testing.T, s *Screen) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("screen did not close")
	}
}

// TestLifecycleOrdering validates the native call sequence of one full run.
func TestLifecycleOrdering(t *testing.T) {
	f := newFixture(t, Options{})
	f.startAndResume(t)

	if got := f.screen.State(); got != StateVideoRunning {
		t.Fatalf("State() = %v, want video_running", got)
	}
	if got, want := f.layout.Views(), []string{"camera-preview", "render-surface"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Views() = %v, want %v", got, want)
	}
	if !f.notices.has("Camera settings: 640x480@30fps") {
		t.Errorf("notices = %v", f.notices.msgs)
	}

	if n := f.src.EmitN(3); n != 3 {
		t.Fatalf("emitted %d frames", n)
	}
	f.screen.Pause()
	f.screen.Stop()

	got := f.eng.Names("InitialiseWithOptions", "StartRunning", "VideoPushInit", "VideoPush1",
		"VideoPushFinal", "StopRunning", "Shutdown")
	want := []string{"InitialiseWithOptions", "StartRunning", "VideoPushInit",
		"VideoPush1", "VideoPush1", "VideoPush1",
		"VideoPushFinal", "StopRunning", "Shutdown"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v\nwant    %v", got, want)
	}
	if f.screen.State() != StateFinalized {
		t.Errorf("State() = %v, want finalized", f.screen.State())
	}
	if len(f.layout.Views()) != 0 {
		t.Errorf("views left: %v", f.layout.Views())
	}
	if f.src.Released() != 3 {
		t.Errorf("released %d frames, want 3", f.src.Released())
	}
	if f.host.processed.Load() != 3 {
		t.Errorf("OnFrameProcessed called %d times, want 3", f.host.processed.Load())
	}
}

// TestConfigureFiresOncePerRun validates scene configuration happens on the
// first frame even when detection keeps failing.
func TestConfigureFiresOncePerRun(t *testing.T) {
	f := newFixture(t, Options{})
	f.eng.FailOn("Capture")
	f.startAndResume(t)

	f.src.EmitN(4)
	if n := f.scene.configured.Load(); n != 1 {
		t.Fatalf("Configure called %d times, want 1", n)
	}
	if f.host.processed.Load() != 0 {
		t.Error("OnFrameProcessed called for failed frames")
	}

	f.eng.Heal()
	f.src.Emit()
	if f.host.processed.Load() != 1 {
		t.Error("OnFrameProcessed not called after successful frame")
	}
	if f.scene.configured.Load() != 1 {
		t.Error("Configure fired again within the same run")
	}

	// A new run configures again.
	f.screen.Pause()
	if err := f.screen.Resume(); err != nil {
		t.Fatal(err)
	}
	f.src.Emit()
	if n := f.scene.configured.Load(); n != 2 {
		t.Errorf("Configure called %d times after second run, want 2", n)
	}
	if n := f.eng.Count("VideoPushInit"); n != 2 {
		t.Errorf("VideoPushInit called %d times, want 2", n)
	}
	f.screen.Stop()
}

// TestConfigureFailureClosesScreen validates no frame is pushed after a
// failed configuration.
func TestConfigureFailureClosesScreen(t *testing.T) {
	f := newFixture(t, Options{})
	f.scene.fail = true
	f.startAndResume(t)

	f.src.Emit()
	waitDone(t, f.screen)

	if f.screen.State() != StateClosed {
		t.Errorf("State() = %v, want closed", f.screen.State())
	}
	if f.eng.Count("VideoPush1") != 0 {
		t.Error("frame pushed after configuration failure")
	}
	if f.src.IsOpen() {
		t.Error("camera still open")
	}
	if f.eng.Count("Shutdown") != 1 {
		t.Errorf("Shutdown called %d times, want 1", f.eng.Count("Shutdown"))
	}
	if st := f.screen.Status(); st.CloseReason == "" {
		t.Error("empty close reason")
	}
	if err := f.screen.Resume(); !errors.Is(err, ErrClosed) {
		t.Errorf("Resume() after close = %v", err)
	}
}

// TestInitialiseFailure validates the fatal notice and terminal state.
func TestInitialiseFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.eng.FailOn("InitialiseWithOptions")

	err := f.screen.Start()
	if !errors.Is(err, session.ErrInitialise) {
		t.Fatalf("Start() = %v, want ErrInitialise", err)
	}
	waitDone(t, f.screen)

	if !f.notices.has("The native library is not loaded.") {
		t.Errorf("notices = %v", f.notices.msgs)
	}
	if f.screen.State() != StateClosed {
		t.Errorf("State() = %v", f.screen.State())
	}
	if err := f.screen.Resume(); !errors.Is(err, ErrClosed) {
		t.Errorf("Resume() = %v, want ErrClosed", err)
	}
	if f.src.Opens() != 0 {
		t.Error("camera opened after failed initialisation")
	}
}

// TestPermissionDeniedThenGranted validates no camera view or frames while
// denied, and that a later grant resumes from camera open.
func TestPermissionDeniedThenGranted(t *testing.T) {
	perms := &fakePermissions{}
	f := newFixture(t, Options{Permissions: perms})
	f.startAndResume(t)

	if f.screen.State() != StateAwaitingPermission {
		t.Fatalf("State() = %v, want awaiting_permission", f.screen.State())
	}
	if perms.requests.Load() != 1 {
		t.Errorf("permission requested %d times", perms.requests.Load())
	}

	f.screen.OnPermissionResult(false)
	if !f.notices.has("Application will not run with camera access denied") {
		t.Errorf("notices = %v", f.notices.msgs)
	}
	if len(f.layout.Views()) != 0 {
		t.Errorf("views while denied: %v", f.layout.Views())
	}
	if f.src.Emit() {
		t.Error("frame delivered while denied")
	}
	if f.eng.Count("VideoPushInit") != 0 {
		t.Error("video started while denied")
	}

	perms.granted.Store(true)
	if err := f.screen.OnPermissionResult(true); err != nil {
		t.Fatal(err)
	}
	if !f.notices.has(`Camera access permission "camera" allowed`) {
		t.Errorf("notices = %v", f.notices.msgs)
	}
	if f.src.Opens() != 1 || f.screen.State() != StateVideoRunning {
		t.Errorf("opens=%d state=%v", f.src.Opens(), f.screen.State())
	}
	if !f.src.Emit() || f.eng.Count("VideoPush1") != 1 {
		t.Error("frame not pushed after grant")
	}
	f.screen.Stop()
}

// TestResumeWhileAwaitingPermission validates each Resume asks again after a
// denial and opens the camera once the permission has been granted.
func TestResumeWhileAwaitingPermission(t *testing.T) {
	perms := &fakePermissions{}
	f := newFixture(t, Options{Permissions: perms})
	f.startAndResume(t)
	f.screen.OnPermissionResult(false)

	if err := f.screen.Resume(); err != nil {
		t.Fatal(err)
	}
	if perms.requests.Load() != 2 {
		t.Errorf("permission requested %d times, want 2", perms.requests.Load())
	}
	if f.screen.State() != StateAwaitingPermission || f.src.Opens() != 0 {
		t.Errorf("state=%v opens=%d", f.screen.State(), f.src.Opens())
	}

	// Granted from system settings while the screen was still up.
	perms.granted.Store(true)
	if err := f.screen.Resume(); err != nil {
		t.Fatal(err)
	}
	if perms.requests.Load() != 2 {
		t.Errorf("permission requested %d times after grant, want 2", perms.requests.Load())
	}
	if f.src.Opens() != 1 || f.screen.State() != StateVideoRunning {
		t.Errorf("opens=%d state=%v", f.src.Opens(), f.screen.State())
	}
	f.screen.Stop()
}

// TestCameraOpenFailure validates a busy camera closes the screen.
func TestCameraOpenFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.src.OpenErr = camera.ErrCameraBusy

	if err := f.screen.Start(); err != nil {
		t.Fatal(err)
	}
	if err := f.screen.Resume(); !errors.Is(err, camera.ErrCameraBusy) {
		t.Fatalf("Resume() = %v, want ErrCameraBusy", err)
	}
	waitDone(t, f.screen)

	if len(f.layout.Views()) != 0 {
		t.Errorf("views left: %v", f.layout.Views())
	}
	if f.eng.Count("Shutdown") != 1 {
		t.Error("session not finalised")
	}
}

// TestVideoStartFailureClosesScreen validates push-init failure.
func TestVideoStartFailureClosesScreen(t *testing.T) {
	f := newFixture(t, Options{})
	f.eng.FailOn("VideoPushInit")

	f.startAndResume(t)
	waitDone(t, f.screen)

	if f.src.IsOpen() {
		t.Error("camera still open")
	}
	if f.eng.Count("VideoPushFinal") != 0 {
		t.Error("VideoPushFinal without a push session")
	}
	if f.screen.State() != StateClosed {
		t.Errorf("State() = %v", f.screen.State())
	}
}

// orderLayout records removal order and what had happened at that point.
type orderLayout struct {
	*FrameLayout
	eng    *enginetest.Fake
	driver func() *render.Driver

	mu      sync.Mutex
	removed []string
	// state at the moment the camera view was removed
	renderResumed bool
	finalBefore   int
}

func (l *orderLayout) RemoveView(v View) {
	l.mu.Lock()
	l.removed = append(l.removed, v.Name())
	if v.Name() == "camera-preview" {
		l.renderResumed = l.driver().Stats().Resumed
		l.finalBefore = l.eng.Count("VideoPushFinal")
	}
	l.mu.Unlock()
	l.FrameLayout.RemoveView(v)
}

// TestTeardownOrder validates render pause and removal precede camera
// removal, which triggers push-final.
func TestTeardownOrder(t *testing.T) {
	f := newFixture(t, Options{})
	layout := &orderLayout{FrameLayout: f.layout, eng: f.eng, driver: f.screen.Driver}
	f.host.layout = layout
	f.startAndResume(t)
	f.src.EmitN(2)

	f.screen.Pause()

	if want := []string{"render-surface", "camera-preview"}; !reflect.DeepEqual(layout.removed, want) {
		t.Errorf("removed = %v, want %v", layout.removed, want)
	}
	if layout.renderResumed {
		t.Error("render driver still resumed when camera view removed")
	}
	if layout.finalBefore != 0 {
		t.Error("VideoPushFinal before camera view removal")
	}
	if f.eng.Count("VideoPushFinal") != 1 {
		t.Error("VideoPushFinal not called on camera removal")
	}
	if f.screen.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", f.screen.State())
	}
}

// TestMailboxDelivery validates every frame is released exactly once when
// frames outpace processing.
func TestMailboxDelivery(t *testing.T) {
	f := newFixture(t, Options{Delivery: DeliveryMailbox})
	f.src = cameratest.NewPooledSource(vga, 3)
	f.screen = New(f.host, session.New(f.eng, session.Options{}), f.src,
		Options{CacheDir: t.TempDir(), Delivery: DeliveryMailbox, Notifier: f.notices})
	f.startAndResume(t)

	for i := 0; i < 200; i++ {
		f.src.Emit()
	}
	waitFor(t, "processed frame", func() bool { return f.screen.Status().FramesProcessed > 0 })
	f.screen.Pause()

	if got, want := f.src.Released(), f.src.Emitted(); got != want {
		t.Errorf("released %d of %d frames", got, want)
	}
	st := f.screen.Status()
	if st.FramesOffered != f.src.Emitted() {
		t.Errorf("FramesOffered = %d, want %d", st.FramesOffered, f.src.Emitted())
	}
	if st.FramesProcessed > st.FramesOffered {
		t.Errorf("processed %d > offered %d", st.FramesProcessed, st.FramesOffered)
	}
	if f.scene.configured.Load() != 1 {
		t.Errorf("Configure called %d times", f.scene.configured.Load())
	}
}

// TestRenderFollowsTracking validates successful frames request a render.
func TestRenderFollowsTracking(t *testing.T) {
	f := newFixture(t, Options{})
	f.startAndResume(t)
	defer f.screen.Stop()

	f.src.Emit()
	waitFor(t, "rendered frame", func() bool { return f.screen.Status().FramesRendered > 0 })

	st := f.screen.Status()
	if st.FramesTracked != 1 || st.SessionID == "" || st.State != StateVideoRunning {
		t.Errorf("Status() = %+v", st)
	}
}

// TestPanicIsReraised validates a panic in frame processing is not swallowed.
func TestPanicIsReraised(t *testing.T) {
	f := newFixture(t, Options{})
	f.scene.panicMsg = "boom"
	f.startAndResume(t)

	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("recovered %v, want boom", r)
		}
		f.screen.Stop()
	}()
	f.src.Emit()
	t.Error("panic swallowed")
}

// TestNilLayoutAndScene validates the blank-screen fallbacks.
func TestNilLayoutAndScene(t *testing.T) {
	f := newFixture(t, Options{})
	f.host.layout = nil
	f.host.scene = nil

	f.startAndResume(t)
	if f.src.Opens() != 0 {
		t.Error("camera opened without a layout")
	}
	if _, ok := f.screen.Driver().Scene().(render.ClearScene); !ok {
		t.Error("nil scene not replaced by ClearScene")
	}
	f.screen.Stop()
	if !slices.Contains(f.eng.Names(), "Shutdown") {
		t.Error("session not finalised on Stop")
	}
}

func TestStateString(t *testing.T) {
	if StateVideoRunning.String() != "video_running" || State(42).String() != "State(42)" {
		t.Error("unexpected state names")
	}
}
