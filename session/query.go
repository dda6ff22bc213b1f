package session

import (
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
)

// unitPoint is the point transformed by RelativePosition.
var unitPoint = mgl32.Vec4{1, 1, 1, 1}

// ReferenceMatrix returns the pose of marker b expressed in the coordinate
// frame of marker a: inverse(T_a) * T_b.
//
// ok is false when either marker is not visible in the current frame. The
// engine may update faster than a caller checks visibility, so this is an
// expected outcome, not an error.
func (s *Session) ReferenceMatrix(a, b int) (mgl32.Mat4, bool) {
	s.mu.Lock()
	ta, okA := s.markerTransformLocked(a)
	tb, okB := s.markerTransformLocked(b)
	s.mu.Unlock()

	if !okA || !okB {
		slog.Debug("session: markers not visible at the same time", "reference", a, "marker", b)
		return mgl32.Mat4{}, false
	}
	if ta.Det() == 0 {
		return mgl32.Mat4{}, false
	}
	return ta.Inv().Mul4(tb), true
}

// Distance is the Euclidean length of the translation from marker a to
// marker b, in the marker size unit. It is 0 when either marker is not visible.
func (s *Session) Distance(a, b int) float32 {
	ref, ok := s.ReferenceMatrix(a, b)
	if !ok {
		return 0
	}
	t := ref.Col(3).Vec3()
	d := t.Len()
	slog.Debug("session: marker distance",
		"x", t.X(), "y", t.Y(), "z", t.Z(),
		"distance", d,
	)
	return d
}

// RelativePosition transforms (1,1,1,1) by the reference matrix of b in a.
// ok is false when either marker is not visible.
func (s *Session) RelativePosition(a, b int) (mgl32.Vec4, bool) {
	ref, ok := s.ReferenceMatrix(a, b)
	if !ok {
		return mgl32.Vec4{}, false
	}
	return ref.Mul4x1(unitPoint), true
}
