// Command arlink-mobile runs the marker distance screen in a
// golang.org/x/mobile app. Lifecycle events drive the screen and paint
// events draw frames on the GL thread.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/mobile/app"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"
	"golang.org/x/mobile/gl"

	"github.com/e7canasta/arlink/engine/arwrapper"
	"github.com/e7canasta/arlink/internal/config"
	"github.com/e7canasta/arlink/internal/core"
	"github.com/e7canasta/arlink/render"
	"github.com/e7canasta/arlink/render/glsurface"
	"github.com/e7canasta/arlink/screen"
)

const defaultConfigPath = "config/arlink.yaml"

// surfaceSlot holds the surface of the current GL context.
type surfaceSlot struct {
	mu sync.Mutex
	sf *glsurface.Surface
}

func (s *surfaceSlot) get() render.Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sf == nil {
		return nil
	}
	return s.sf
}

func (s *surfaceSlot) set(sf *glsurface.Surface) {
	s.mu.Lock()
	s.sf = sf
	s.mu.Unlock()
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	app.Main(func(a app.App) {
		run(a, cfg)
	})
}

func run(a app.App, cfg *config.Config) {
	eng, err := arwrapper.New()
	if err != nil {
		slog.Error("failed to load native library", "error", err)
		return
	}

	var slot surfaceSlot
	svc, err := core.NewService(cfg, eng, core.Options{
		Surface: slot.get,
		Render: render.Options{
			OnRequest: func() { a.Send(paint.Event{}) },
		},
	})
	if err != nil {
		slog.Error("failed to create arlink service", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.StartPlanes(ctx); err != nil {
		slog.Warn("running without MQTT planes", "error", err)
	}

	scr := svc.Screen()
	var (
		glctx        gl.Context
		sz           size.Event
		closedLogged bool
	)

	for e := range a.Events() {
		switch e := a.Filter(e).(type) {
		case lifecycle.Event:
			switch e.Crosses(lifecycle.StageVisible) {
			case lifecycle.CrossOn:
				glctx, _ = e.DrawContext.(gl.Context)
				if glctx == nil {
					continue
				}
				sf, err := glsurface.New(glctx)
				if err != nil {
					slog.Error("failed to create GL surface", "error", err)
					continue
				}
				slot.set(sf)
				if err := scr.Start(); err != nil {
					slog.Error("screen start failed", "error", err)
					continue
				}
				if err := scr.Resume(); err != nil {
					slog.Error("screen resume failed", "error", err)
				}
				// Size events may arrive before the driver exists.
				if d := scr.Driver(); d != nil && sz.WidthPx > 0 {
					d.SurfaceChanged(sz.WidthPx, sz.HeightPx)
				}
			case lifecycle.CrossOff:
				scr.Pause()
				if sf := slot.get(); sf != nil {
					sf.(*glsurface.Surface).Release()
				}
				slot.set(nil)
				glctx = nil
			}
			if e.To == lifecycle.StageDead {
				shutdown(svc)
				return
			}

		case size.Event:
			sz = e
			if d := scr.Driver(); d != nil {
				d.SurfaceChanged(e.WidthPx, e.HeightPx)
			}

		case paint.Event:
			if glctx == nil || e.External {
				continue
			}
			d := scr.Driver()
			if d == nil {
				continue
			}
			if err := d.DrawFrame(); err != nil {
				continue
			}
			a.Publish()
		}

		if !closedLogged && scr.State() == screen.StateClosed {
			slog.Error("screen closed", "reason", scr.Status().CloseReason)
			closedLogged = true
		}
	}
}

func shutdown(svc *core.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), svc.ShutdownTimeout())
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}
