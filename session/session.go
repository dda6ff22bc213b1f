// Package session owns the tracking engine's run state.
//
// A Session moves through three states:
//
//	idle ──Initialise──► initialised ──StartWithPushedVideo──► running
//	  ▲                                                           │
//	  └──────────────────────── StopAndFinal ◄────────────────────┘
//
// Every frame push, marker query and debug image fetch requires the running
// state and short-circuits to its failure value otherwise. Marker
// registration and parameter changes only require initialised, so a scene
// can configure itself before the first frame is pushed.
//
// All engine calls are serialized by one mutex: the processing goroutine
// pushes frames while the render goroutine queries poses, and the native
// library is not safe for concurrent use. Queries may observe the result of
// the previous frame.
package session

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/e7canasta/arlink/camera"
	"github.com/e7canasta/arlink/engine"
)

var (
	// ErrInitialise is returned when the native library fails to initialise.
	ErrInitialise = errors.New("session: native library initialisation failed")

	// ErrNotInitialised is returned by operations that need Initialise first.
	ErrNotInitialised = errors.New("session: native library not initialised")

	// ErrAlreadyRunning is returned by StartWithPushedVideo on a running session.
	ErrAlreadyRunning = errors.New("session: already running")

	// ErrStartRunning is returned when the engine refuses to start tracking.
	ErrStartRunning = errors.New("session: engine failed to start")

	// ErrPushInit is returned when the video push session cannot be opened.
	ErrPushInit = errors.New("session: video push initialisation failed")
)

// Defaults for Options.
const (
	DefaultCameraParaPath = "Data/camera_para.dat"
	DefaultNearPlane      = 10.0
	DefaultFarPlane       = 10000.0
	DefaultPattSize       = 16
	DefaultPattCountMax   = 25
)

// videoSourceIndex is the only push channel used: there is no stereo support.
const videoSourceIndex = 0

// Options configures a Session. Zero fields take the defaults above.
type Options struct {
	// CameraParaPath is the camera calibration file, absolute or relative
	// to the resources directory.
	CameraParaPath string
	NearPlane      float32
	FarPlane       float32

	// PattSize is the template marker edge length in pixels.
	PattSize int
	// PattCountMax is the maximum number of templates loaded at once.
	PattCountMax int
}

func (o *Options) setDefaults() {
	if o.CameraParaPath == "" {
		o.CameraParaPath = DefaultCameraParaPath
	}
	if o.NearPlane <= 0 {
		o.NearPlane = DefaultNearPlane
	}
	if o.FarPlane <= o.NearPlane {
		o.FarPlane = DefaultFarPlane
	}
	if o.PattSize <= 0 {
		o.PattSize = DefaultPattSize
	}
	if o.PattCountMax <= 0 {
		o.PattCountMax = DefaultPattCountMax
	}
}

// Stats is a snapshot of per-frame counters.
type Stats struct {
	FramesPushed   uint64
	FramesDetected uint64
	PushFailures   uint64
	DetectFailures uint64
	Rejected       uint64 // frames offered while not running
}

// Session is the explicitly owned tracking run state. Create one per screen.
type Session struct {
	id   string
	eng  engine.Engine
	opts Options

	mu          sync.Mutex
	initialised bool
	running     bool
	pushInited  bool
	video       camera.Params
	debugBuf    []byte
	debugImage  *image.RGBA

	pushed         atomic.Uint64
	detected       atomic.Uint64
	pushFailures   atomic.Uint64
	detectFailures atomic.Uint64
	rejected       atomic.Uint64
}

// New returns an idle session over eng.
func New(eng engine.Engine, opts Options) *Session {
	opts.setDefaults()
	return &Session{
		id:   uuid.New().String(),
		eng:  eng,
		opts: opts,
	}
}

// ID is a unique identifier for logs and telemetry.
func (s *Session) ID() string { return s.id }

// Options returns the effective options.
func (s *Session) Options() Options { return s.opts }

// Initialise initialises the native library and changes its working
// directory to resourcesDir. A directory change failure is logged only.
func (s *Session) Initialise(resourcesDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialised {
		return nil
	}

	if !s.eng.InitialiseWithOptions(s.opts.PattSize, s.opts.PattCountMax) {
		slog.Error("session: error initialising native library",
			"session_id", s.id,
			"patt_size", s.opts.PattSize,
			"patt_count_max", s.opts.PattCountMax,
		)
		return ErrInitialise
	}
	slog.Info("session: native library initialised",
		"session_id", s.id,
		"version", s.eng.Version(),
	)

	if !s.eng.ChangeToResourcesDir(resourcesDir) {
		slog.Warn("session: error while changing working directory to resources directory",
			"session_id", s.id,
			"dir", resourcesDir,
		)
	}

	s.initialised = true
	return nil
}

// StartWithPushedVideo starts tracking for a pushed video stream of the given
// geometry. The video push session is opened exactly once per run.
func (s *Session) StartWithPushedVideo(p camera.Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialised {
		slog.Error("session: cannot start because native library not initialised", "session_id", s.id)
		return ErrNotInitialised
	}
	if s.running {
		return ErrAlreadyRunning
	}

	if !s.eng.StartRunning("", s.opts.CameraParaPath, s.opts.NearPlane, s.opts.FarPlane) {
		slog.Error("session: error starting",
			"session_id", s.id,
			"camera_para", s.opts.CameraParaPath,
		)
		return ErrStartRunning
	}

	rc := s.eng.VideoPushInit(videoSourceIndex, p.Width, p.Height, p.PixelFormat,
		p.CameraIndex, engine.CameraFace(p.FrontFacing))
	if rc < 0 {
		slog.Error("session: error initialising pushed video",
			"session_id", s.id,
			"params", p.String(),
			"pixel_format", p.PixelFormat,
			"rc", rc,
		)
		s.eng.StopRunning()
		return fmt.Errorf("%w: rc=%d", ErrPushInit, rc)
	}

	s.pushInited = true
	s.running = true
	s.video = p
	s.debugBuf = make([]byte, p.Width*p.Height*4)
	s.debugImage = nil

	slog.Info("session: running with pushed video",
		"session_id", s.id,
		"params", p.String(),
		"pixel_format", p.PixelFormat,
		"camera_index", p.CameraIndex,
		"front_facing", p.FrontFacing,
	)
	return nil
}

// ConvertAndDetect pushes one frame and runs detection on it. It reports
// false when the session is not running or any engine step fails; the frame
// is then simply skipped. The frame is not released.
func (s *Session) ConvertAndDetect(f *camera.Frame) bool {
	if f == nil || len(f.Planes) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.rejected.Add(1)
		return false
	}

	var rc int
	if len(f.Planes) == 1 {
		rc = s.eng.VideoPush1(videoSourceIndex, f.Planes[0].Data)
	} else {
		var planes [engine.MaxPlanes]engine.Plane
		for i := 0; i < len(f.Planes) && i < engine.MaxPlanes; i++ {
			planes[i] = engine.Plane{
				Data:        f.Planes[i].Data,
				PixelStride: f.Planes[i].PixelStride,
				RowStride:   f.Planes[i].RowStride,
			}
		}
		rc = s.eng.VideoPush2(videoSourceIndex, planes)
	}
	if rc < 0 {
		s.pushFailures.Add(1)
		return false
	}
	s.pushed.Add(1)

	if !s.eng.Capture() || !s.eng.UpdateAR() {
		s.detectFailures.Add(1)
		return false
	}
	s.detected.Add(1)
	return true
}

// StopAndFinal closes the push session, stops tracking and shuts the native
// library down. It is a no-op on an uninitialised session.
func (s *Session) StopAndFinal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialised {
		return
	}

	if s.pushInited {
		if rc := s.eng.VideoPushFinal(videoSourceIndex); rc < 0 {
			slog.Warn("session: error finalising pushed video", "session_id", s.id, "rc", rc)
		}
		s.pushInited = false
	}
	if !s.eng.StopRunning() {
		slog.Debug("session: stop running reported failure", "session_id", s.id)
	}
	if !s.eng.Shutdown() {
		slog.Warn("session: error shutting down native library", "session_id", s.id)
	}

	s.debugBuf = nil
	s.debugImage = nil
	s.running = false
	s.initialised = false

	slog.Info("session: stopped and finalised",
		"session_id", s.id,
		"frames_pushed", s.pushed.Load(),
		"frames_detected", s.detected.Load(),
	)
}

// Initialised reports whether the native library is initialised.
func (s *Session) Initialised() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialised
}

// Running reports whether video is being pushed.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// EngineRunning asks the engine itself whether tracking runs.
func (s *Session) EngineRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return false
	}
	return s.eng.IsRunning()
}

// Video returns the parameters of the current run.
func (s *Session) Video() (camera.Params, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video, s.running
}

// Stats returns per-frame counters.
func (s *Session) Stats() Stats {
	return Stats{
		FramesPushed:   s.pushed.Load(),
		FramesDetected: s.detected.Load(),
		PushFailures:   s.pushFailures.Load(),
		DetectFailures: s.detectFailures.Load(),
		Rejected:       s.rejected.Load(),
	}
}
