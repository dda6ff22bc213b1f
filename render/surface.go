package render

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Surface is the drawing backend handed to scenes.
type Surface interface {
	Viewport(x, y, width, height int)
	ClearColor(r, g, b, a float32)
	Clear()
	// DrawLine draws a segment between two points in model space, transformed
	// by mvp. Color components are in [0,1].
	DrawLine(mvp mgl32.Mat4, from, to mgl32.Vec3, color mgl32.Vec4, width float32)
}

// Op is one call recorded by HeadlessSurface.
type Op struct {
	Name  string
	Args  []any
	Color mgl32.Vec4
}

func (o Op) String() string { return fmt.Sprintf("%s%v", o.Name, o.Args) }

// Line is a DrawLine call with its endpoints projected to clip space.
type Line struct {
	From, To mgl32.Vec4
	Color    mgl32.Vec4
	Width    float32
}

// HeadlessSurface records drawing calls for hosts without a display and for
// tests. It is safe for concurrent use.
type HeadlessSurface struct {
	mu     sync.Mutex
	ops    []Op
	lines  []Line
	width  int
	height int
	clears int
}

// NewHeadlessSurface returns an empty recording surface.
func NewHeadlessSurface() *HeadlessSurface {
	return &HeadlessSurface{}
}

func (h *HeadlessSurface) Viewport(x, y, width, height int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.width, h.height = width, height
	h.ops = append(h.ops, Op{Name: "Viewport", Args: []any{x, y, width, height}})
}

func (h *HeadlessSurface) ClearColor(r, g, b, a float32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ops = append(h.ops, Op{Name: "ClearColor", Color: mgl32.Vec4{r, g, b, a}})
}

func (h *HeadlessSurface) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clears++
	h.ops = append(h.ops, Op{Name: "Clear"})
}

func (h *HeadlessSurface) DrawLine(mvp mgl32.Mat4, from, to mgl32.Vec3, color mgl32.Vec4, width float32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, Line{
		From:  mvp.Mul4x1(from.Vec4(1)),
		To:    mvp.Mul4x1(to.Vec4(1)),
		Color: color,
		Width: width,
	})
	h.ops = append(h.ops, Op{Name: "DrawLine", Args: []any{from, to}, Color: color})
}

// Ops returns a copy of the recorded calls.
func (h *HeadlessSurface) Ops() []Op {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Op, len(h.ops))
	copy(out, h.ops)
	return out
}

// Lines returns the recorded lines.
func (h *HeadlessSurface) Lines() []Line {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Line, len(h.lines))
	copy(out, h.lines)
	return out
}

// Size returns the last viewport size.
func (h *HeadlessSurface) Size() (width, height int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.width, h.height
}

// Clears returns how many times Clear was called.
func (h *HeadlessSurface) Clears() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clears
}

// Reset drops everything recorded so far.
func (h *HeadlessSurface) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ops = nil
	h.lines = nil
	h.clears = 0
}
