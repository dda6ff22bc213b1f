package screen

import (
	"log/slog"
	"sync"
)

// View is something placed in a Layout. Release is called when the view is
// removed and must free what the view holds (the camera device, the GL
// surface).
type View interface {
	Name() string
	Release()
}

// Layout holds the screen's views.
type Layout interface {
	AddView(v View)
	RemoveView(v View)
}

// FrameLayout stacks views in insertion order.
type FrameLayout struct {
	mu    sync.Mutex
	views []View
}

// NewFrameLayout returns an empty layout.
func NewFrameLayout() *FrameLayout {
	return &FrameLayout{}
}

func (l *FrameLayout) AddView(v View) {
	l.mu.Lock()
	l.views = append(l.views, v)
	l.mu.Unlock()
	slog.Debug("screen: view added", "view", v.Name())
}

// RemoveView removes v and releases it. Removing an absent view is a no-op.
func (l *FrameLayout) RemoveView(v View) {
	l.mu.Lock()
	idx := -1
	for i, cur := range l.views {
		if cur == v {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return
	}
	l.views = append(l.views[:idx], l.views[idx+1:]...)
	l.mu.Unlock()

	v.Release()
	slog.Debug("screen: view removed", "view", v.Name())
}

// Views returns the names of the views, bottom first.
func (l *FrameLayout) Views() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, len(l.views))
	for i, v := range l.views {
		names[i] = v.Name()
	}
	return names
}

// viewFunc is a View backed by a release function.
type viewFunc struct {
	name    string
	release func()
}

func (v *viewFunc) Name() string { return v.name }

func (v *viewFunc) Release() {
	if v.release != nil {
		v.release()
	}
}
