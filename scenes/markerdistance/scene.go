// Package markerdistance draws a line between two square markers and
// publishes their distance.
//
// The reference marker defines the coordinate frame: the line starts at its
// origin and ends at the target's relative position, and the model-view
// matrix is the reference marker's transform.
package markerdistance

import (
	"log/slog"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/e7canasta/arlink/engine"
	"github.com/e7canasta/arlink/internal/telemetry"
	"github.com/e7canasta/arlink/render"
	"github.com/e7canasta/arlink/session"
)

const (
	DefaultReference  = "single;Data/minion.patt;80"
	DefaultTarget     = "single;Data/cat.patt;80"
	DefaultBorderSize = float32(0.1)
	DefaultLineWidth  = float32(3)
)

// DefaultLineColor is the teal used for the distance line.
var DefaultLineColor = mgl32.Vec4{0.38, 0.757, 0.761, 1}

// MarkerOptions are applied to both markers after registration. Nil fields
// keep the engine default.
type MarkerOptions struct {
	Filtered               *bool
	FilterSampleRate       *float32
	FilterCutoffFreq       *float32
	ContPoseEstimation     *bool
	SquareConfidenceCutoff *float32
}

// Options configures a Scene.
type Options struct {
	Reference string
	Target    string
	// BorderSize overrides Params.BorderSize. With neither set the scene uses
	// DefaultBorderSize.
	BorderSize    *float32
	MarkerOptions MarkerOptions
	// Params are global tracking parameters applied on every run.
	Params session.Params

	InstanceID string
	Publisher  telemetry.Publisher

	LineColor mgl32.Vec4
	LineWidth float32
}

func (o *Options) setDefaults() {
	if o.Reference == "" {
		o.Reference = DefaultReference
	}
	if o.Target == "" {
		o.Target = DefaultTarget
	}
	if o.BorderSize == nil && o.Params.BorderSize == nil {
		b := DefaultBorderSize
		o.BorderSize = &b
	}
	if o.Publisher == nil {
		o.Publisher = telemetry.Discard{}
	}
	if o.LineColor == (mgl32.Vec4{}) {
		o.LineColor = DefaultLineColor
	}
	if o.LineWidth <= 0 {
		o.LineWidth = DefaultLineWidth
	}
}

// Scene implements render.Scene.
type Scene struct {
	opts Options

	mu        sync.Mutex
	reference int
	target    int
	visible   map[int]bool
}

var _ render.Scene = (*Scene)(nil)

// New returns an unconfigured scene.
func New(opts Options) *Scene {
	opts.setDefaults()
	return &Scene{
		opts:      opts,
		reference: -1,
		target:    -1,
		visible:   make(map[int]bool),
	}
}

// Markers returns the registered reference and target UIDs, -1 before
// Configure.
func (sc *Scene) Markers() (reference, target int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.reference, sc.target
}

// Configure registers both markers. It runs once per run; each run starts on
// a freshly initialised engine, so markers are always added again.
func (sc *Scene) Configure(s *session.Session) bool {
	target := s.AddMarker(sc.opts.Target)
	if target < 0 {
		slog.Error("markerdistance: unable to load target marker", "config", sc.opts.Target)
		return false
	}
	reference := s.AddMarker(sc.opts.Reference)
	if reference < 0 {
		slog.Error("markerdistance: unable to load reference marker", "config", sc.opts.Reference)
		return false
	}

	for _, uid := range []int{reference, target} {
		applyMarkerOptions(s, uid, sc.opts.MarkerOptions)
	}
	s.ApplyParams(sc.opts.Params)
	if sc.opts.BorderSize != nil {
		s.SetBorderSize(*sc.opts.BorderSize)
	}

	sc.mu.Lock()
	sc.reference, sc.target = reference, target
	sc.visible = make(map[int]bool)
	sc.mu.Unlock()

	slog.Info("markerdistance: scene configured",
		"reference", reference,
		"target", target,
		"border_size", s.BorderSize(),
	)
	return true
}

func applyMarkerOptions(s *session.Session, uid int, o MarkerOptions) {
	if o.Filtered != nil {
		s.SetMarkerOptionBool(uid, engine.MarkerOptionFiltered, *o.Filtered)
	}
	if o.FilterSampleRate != nil {
		s.SetMarkerOptionFloat(uid, engine.MarkerOptionFilterSampleRate, *o.FilterSampleRate)
	}
	if o.FilterCutoffFreq != nil {
		s.SetMarkerOptionFloat(uid, engine.MarkerOptionFilterCutoffFreq, *o.FilterCutoffFreq)
	}
	if o.ContPoseEstimation != nil {
		s.SetMarkerOptionBool(uid, engine.MarkerOptionSquareUseContPoseEstimation, *o.ContPoseEstimation)
	}
	if o.SquareConfidenceCutoff != nil {
		s.SetMarkerOptionFloat(uid, engine.MarkerOptionSquareConfidenceCutoff, *o.SquareConfidenceCutoff)
	}
}

func (sc *Scene) SurfaceCreated(sf render.Surface) {
	sf.ClearColor(0, 0, 0, 1)
}

func (sc *Scene) SurfaceChanged(sf render.Surface, width, height int) {
	sf.Viewport(0, 0, width, height)
}

// Draw clears the surface and, when both markers are visible, draws the line
// from the reference origin to the target and publishes a distance event.
func (sc *Scene) Draw(sf render.Surface, s *session.Session) {
	sf.Clear()

	sc.mu.Lock()
	reference, target := sc.reference, sc.target
	sc.mu.Unlock()
	if reference < 0 || target < 0 {
		return
	}

	transforms := sc.visibleTransforms(s, reference, target)
	if len(transforms) < 2 {
		return
	}

	pos, ok := s.RelativePosition(reference, target)
	if !ok {
		return
	}
	proj, ok := s.ProjectionMatrix()
	if !ok {
		return
	}

	mvp := proj.Mul4(transforms[reference])
	sf.DrawLine(mvp, mgl32.Vec3{0, 0, 0}, pos.Vec3(), sc.opts.LineColor, sc.opts.LineWidth)

	sc.publish(telemetry.DistanceEvent{
		InstanceID: sc.opts.InstanceID,
		SessionID:  s.ID(),
		Reference:  reference,
		Target:     target,
		Distance:   s.Distance(reference, target),
		Position:   [4]float32(pos),
		Timestamp:  time.Now(),
	})
}

// visibleTransforms returns the transforms of the visible markers and
// publishes a marker event for every visibility change.
func (sc *Scene) visibleTransforms(s *session.Session, uids ...int) map[int]mgl32.Mat4 {
	out := make(map[int]mgl32.Mat4, len(uids))
	for _, uid := range uids {
		t, ok := s.MarkerTransform(uid)
		if ok {
			out[uid] = t
		}

		sc.mu.Lock()
		changed := sc.visible[uid] != ok
		sc.visible[uid] = ok
		sc.mu.Unlock()

		if changed {
			slog.Debug("markerdistance: marker visibility changed", "uid", uid, "visible", ok)
			sc.publish(telemetry.MarkerEvent{
				InstanceID: sc.opts.InstanceID,
				SessionID:  s.ID(),
				UID:        uid,
				Visible:    ok,
				Transform:  [16]float32(t),
				Timestamp:  time.Now(),
			})
		}
	}
	return out
}

func (sc *Scene) publish(ev telemetry.Event) {
	if err := sc.opts.Publisher.Publish(ev); err != nil {
		slog.Debug("markerdistance: publish failed", "type", ev.Type(), "error", err)
	}
}
