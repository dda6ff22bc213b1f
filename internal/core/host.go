package core

import (
	"github.com/e7canasta/arlink/render"
	"github.com/e7canasta/arlink/screen"
)

// host supplies a frame layout, the configured scene and a surface. Without
// a surface supplier it draws on a recording surface; the daemon has no
// display.
type host struct {
	layout   *screen.FrameLayout
	scene    render.Scene
	surface  func() render.Surface
	headless *render.HeadlessSurface
}

func newHost(scene render.Scene, surface func() render.Surface) *host {
	return &host{
		layout:   screen.NewFrameLayout(),
		scene:    scene,
		surface:  surface,
		headless: render.NewHeadlessSurface(),
	}
}

func (h *host) SupplyLayout() screen.Layout { return h.layout }

func (h *host) SupplyScene() render.Scene { return h.scene }

func (h *host) SupplySurface() render.Surface {
	if h.surface != nil {
		if sf := h.surface(); sf != nil {
			return sf
		}
	}
	return h.headless
}

// OnFrameProcessed trims the recording surface so it only holds recent frames.
func (h *host) OnFrameProcessed() {
	if len(h.headless.Lines()) > 64 {
		h.headless.Reset()
	}
}

var (
	_ screen.Host               = (*host)(nil)
	_ screen.SurfaceHost        = (*host)(nil)
	_ screen.FrameProcessedHook = (*host)(nil)
)
