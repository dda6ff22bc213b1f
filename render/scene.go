package render

import (
	"github.com/e7canasta/arlink/session"
)

// Scene is the application content drawn over the camera preview.
//
// Configure runs once per run on the processing goroutine, before the first
// frame is pushed, and typically registers markers. The remaining methods run
// on the render goroutine.
type Scene interface {
	Configure(s *session.Session) bool
	SurfaceCreated(sf Surface)
	SurfaceChanged(sf Surface, width, height int)
	Draw(sf Surface, s *session.Session)
}

// ClearScene registers nothing and only clears the screen.
type ClearScene struct{}

func (ClearScene) Configure(*session.Session) bool { return true }

func (ClearScene) SurfaceCreated(sf Surface) {
	sf.ClearColor(0, 0, 0, 1)
}

func (ClearScene) SurfaceChanged(sf Surface, width, height int) {
	sf.Viewport(0, 0, width, height)
}

func (ClearScene) Draw(sf Surface, _ *session.Session) {
	sf.Clear()
}
