package session

import (
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/e7canasta/arlink/engine"
)

// Params is an optional set of global tracking parameters. Nil fields are
// left at the engine's current value.
type Params struct {
	DebugMode            *bool
	Threshold            *int
	ThresholdMode        *engine.ThresholdMode
	LabelingMode         *engine.LabelingMode
	PatternDetectionMode *engine.PatternDetectionMode
	MatrixCodeType       *engine.MatrixCodeType
	BorderSize           *float32
	ImageProcMode        *engine.ImageProcMode
}

// ApplyParams sets every non-nil parameter. It is a no-op before Initialise.
func (s *Session) ApplyParams(p Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return
	}
	if p.DebugMode != nil {
		s.eng.SetVideoDebugMode(*p.DebugMode)
	}
	if p.Threshold != nil {
		s.eng.SetVideoThreshold(*p.Threshold)
	}
	if p.ThresholdMode != nil {
		s.eng.SetVideoThresholdMode(*p.ThresholdMode)
	}
	if p.LabelingMode != nil {
		s.eng.SetLabelingMode(*p.LabelingMode)
	}
	if p.PatternDetectionMode != nil {
		s.eng.SetPatternDetectionMode(*p.PatternDetectionMode)
	}
	if p.MatrixCodeType != nil {
		s.eng.SetMatrixCodeType(*p.MatrixCodeType)
	}
	if p.BorderSize != nil {
		s.eng.SetBorderSize(*p.BorderSize)
	}
	if p.ImageProcMode != nil {
		s.eng.SetImageProcMode(*p.ImageProcMode)
	}
	slog.Debug("session: parameters applied", "session_id", s.id)
}

// CurrentParams reads every global parameter back from the engine.
// ok is false before Initialise.
func (s *Session) CurrentParams() (p Params, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return Params{}, false
	}
	debug := s.eng.VideoDebugMode()
	threshold := s.eng.VideoThreshold()
	thresholdMode := s.eng.VideoThresholdMode()
	labeling := s.eng.LabelingMode()
	detection := s.eng.PatternDetectionMode()
	codeType := s.eng.MatrixCodeType()
	border := s.eng.BorderSize()
	imageProc := s.eng.ImageProcMode()
	return Params{
		DebugMode:            &debug,
		Threshold:            &threshold,
		ThresholdMode:        &thresholdMode,
		LabelingMode:         &labeling,
		PatternDetectionMode: &detection,
		MatrixCodeType:       &codeType,
		BorderSize:           &border,
		ImageProcMode:        &imageProc,
	}, true
}

func (s *Session) DebugMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return false
	}
	return s.eng.VideoDebugMode()
}

func (s *Session) SetDebugMode(debug bool) {
	s.ApplyParams(Params{DebugMode: &debug})
}

// Threshold returns the binarization threshold (0-255), or -1 before Initialise.
func (s *Session) Threshold() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return -1
	}
	return s.eng.VideoThreshold()
}

func (s *Session) SetThreshold(threshold int) {
	s.ApplyParams(Params{Threshold: &threshold})
}

func (s *Session) ThresholdMode() engine.ThresholdMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return -1
	}
	return s.eng.VideoThresholdMode()
}

func (s *Session) SetThresholdMode(mode engine.ThresholdMode) {
	s.ApplyParams(Params{ThresholdMode: &mode})
}

func (s *Session) LabelingMode() engine.LabelingMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return -1
	}
	return s.eng.LabelingMode()
}

func (s *Session) SetLabelingMode(mode engine.LabelingMode) {
	s.ApplyParams(Params{LabelingMode: &mode})
}

func (s *Session) PatternDetectionMode() engine.PatternDetectionMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return -1
	}
	return s.eng.PatternDetectionMode()
}

func (s *Session) SetPatternDetectionMode(mode engine.PatternDetectionMode) {
	s.ApplyParams(Params{PatternDetectionMode: &mode})
}

func (s *Session) MatrixCodeType() engine.MatrixCodeType {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return -1
	}
	return s.eng.MatrixCodeType()
}

func (s *Session) SetMatrixCodeType(codeType engine.MatrixCodeType) {
	s.ApplyParams(Params{MatrixCodeType: &codeType})
}

// BorderSize returns the marker border width as a fraction of marker width.
func (s *Session) BorderSize() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return -1
	}
	return s.eng.BorderSize()
}

func (s *Session) SetBorderSize(size float32) {
	s.ApplyParams(Params{BorderSize: &size})
}

func (s *Session) ImageProcMode() engine.ImageProcMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return -1
	}
	return s.eng.ImageProcMode()
}

func (s *Session) SetImageProcMode(mode engine.ImageProcMode) {
	s.ApplyParams(Params{ImageProcMode: &mode})
}

// ProjectionMatrix returns the OpenGL projection matrix derived from the
// camera parameters. ok is false unless the session is running.
func (s *Session) ProjectionMatrix() (mgl32.Mat4, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return mgl32.Mat4{}, false
	}
	m, ok := s.eng.ProjectionMatrix()
	if !ok {
		return mgl32.Mat4{}, false
	}
	return mgl32.Mat4(m), true
}
