package session

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/e7canasta/arlink/engine"
)

// AddMarker registers a marker from a configuration string, for example:
//
//	single;Data/hiro.patt;80
//	single_barcode;0;80
//	multi;Data/multi/marker.dat
//
// It returns the marker UID, or -1 on error or before Initialise.
func (s *Session) AddMarker(cfg string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return -1
	}
	return s.eng.AddMarker(cfg)
}

// RemoveMarker removes one marker.
func (s *Session) RemoveMarker(uid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return false
	}
	return s.eng.RemoveMarker(uid)
}

// RemoveAllMarkers removes every marker and returns how many were removed,
// or -1 before Initialise.
func (s *Session) RemoveAllMarkers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return -1
	}
	return s.eng.RemoveAllMarkers()
}

// MarkerVisible reports whether the marker was found in the last frame.
func (s *Session) MarkerVisible(uid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	return s.eng.QueryMarkerVisibility(uid)
}

// MarkerTransform returns the marker pose in camera coordinates (column-major).
// ok is false when the marker is not visible or the session is not running.
func (s *Session) MarkerTransform(uid int) (mgl32.Mat4, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markerTransformLocked(uid)
}

func (s *Session) markerTransformLocked(uid int) (mgl32.Mat4, bool) {
	if !s.running {
		return mgl32.Mat4{}, false
	}
	m, ok := s.eng.QueryMarkerTransformation(uid)
	if !ok {
		return mgl32.Mat4{}, false
	}
	return mgl32.Mat4(m), true
}

// SetMarkerOptionBool sets a boolean option on marker uid. No-op before Initialise.
func (s *Session) SetMarkerOptionBool(uid int, option engine.MarkerOption, value bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialised {
		s.eng.SetMarkerOptionBool(uid, option, value)
	}
}

// SetMarkerOptionInt sets an integer option on marker uid. No-op before Initialise.
func (s *Session) SetMarkerOptionInt(uid int, option engine.MarkerOption, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialised {
		s.eng.SetMarkerOptionInt(uid, option, value)
	}
}

// SetMarkerOptionFloat sets a float option on marker uid. No-op before Initialise.
func (s *Session) SetMarkerOptionFloat(uid int, option engine.MarkerOption, value float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialised {
		s.eng.SetMarkerOptionFloat(uid, option, value)
	}
}

// MarkerOptionBool reads a boolean option of marker uid, false before Initialise.
func (s *Session) MarkerOptionBool(uid int, option engine.MarkerOption) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return false
	}
	return s.eng.MarkerOptionBool(uid, option)
}

// MarkerOptionInt reads an integer option of marker uid, -1 before Initialise.
func (s *Session) MarkerOptionInt(uid int, option engine.MarkerOption) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return -1
	}
	return s.eng.MarkerOptionInt(uid, option)
}

// MarkerOptionFloat reads a float option of marker uid, -1 before Initialise.
func (s *Session) MarkerOptionFloat(uid int, option engine.MarkerOption) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialised {
		return -1
	}
	return s.eng.MarkerOptionFloat(uid, option)
}
