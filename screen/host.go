package screen

import (
	"log/slog"

	"github.com/e7canasta/arlink/render"
)

// Host supplies the application-specific parts of a screen.
type Host interface {
	// SupplyLayout returns the layout views are added to. A nil layout leaves
	// the screen blank.
	SupplyLayout() Layout
	// SupplyScene returns the scene to draw. Nil means render.ClearScene.
	SupplyScene() render.Scene
}

// FrameProcessedHook is implemented by hosts that want a callback after each
// frame that was tracked successfully.
type FrameProcessedHook interface {
	OnFrameProcessed()
}

// SurfaceHost is implemented by hosts that draw on a real display. Hosts
// without it get a render.HeadlessSurface.
type SurfaceHost interface {
	SupplySurface() render.Surface
}

// Notifier shows short user-visible notices.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

// LogNotifier writes notices to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(msg string) {
	slog.Info("screen: notice", "message", msg)
}
