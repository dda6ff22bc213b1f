// Package glsurface implements render.Surface over an OpenGL ES 2 context
// from golang.org/x/mobile/gl.
package glsurface

import (
	"encoding/binary"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/mobile/exp/f32"
	"golang.org/x/mobile/exp/gl/glutil"
	"golang.org/x/mobile/gl"
)

const (
	vertexShader = `#version 100
uniform mat4 mvp;
attribute vec4 position;
void main() {
	gl_Position = mvp * position;
}`

	fragmentShader = `#version 100
precision mediump float;
uniform vec4 color;
void main() {
	gl_FragColor = color;
}`

	coordsPerVertex = 3
)

// Surface draws on the GL context it was created with. All methods must be
// called on the thread that owns that context.
type Surface struct {
	ctx      gl.Context
	program  gl.Program
	buf      gl.Buffer
	position gl.Attrib
	mvp      gl.Uniform
	color    gl.Uniform
}

// New compiles the line program on ctx.
func New(ctx gl.Context) (*Surface, error) {
	program, err := glutil.CreateProgram(ctx, vertexShader, fragmentShader)
	if err != nil {
		return nil, fmt.Errorf("glsurface: create program: %w", err)
	}
	s := &Surface{
		ctx:      ctx,
		program:  program,
		buf:      ctx.CreateBuffer(),
		position: ctx.GetAttribLocation(program, "position"),
		mvp:      ctx.GetUniformLocation(program, "mvp"),
		color:    ctx.GetUniformLocation(program, "color"),
	}
	return s, nil
}

// Release deletes the GL objects. A nil Surface is a no-op.
func (s *Surface) Release() {
	if s == nil {
		return
	}
	s.ctx.DeleteProgram(s.program)
	s.ctx.DeleteBuffer(s.buf)
}

func (s *Surface) Viewport(x, y, width, height int) {
	s.ctx.Viewport(x, y, width, height)
}

func (s *Surface) ClearColor(r, g, b, a float32) {
	s.ctx.ClearColor(r, g, b, a)
}

func (s *Surface) Clear() {
	s.ctx.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

func (s *Surface) DrawLine(mvp mgl32.Mat4, from, to mgl32.Vec3, color mgl32.Vec4, width float32) {
	s.ctx.UseProgram(s.program)
	s.ctx.UniformMatrix4fv(s.mvp, mvp[:])
	s.ctx.Uniform4f(s.color, color[0], color[1], color[2], color[3])

	s.ctx.BindBuffer(gl.ARRAY_BUFFER, s.buf)
	s.ctx.BufferData(gl.ARRAY_BUFFER, lineVertices(from, to), gl.DYNAMIC_DRAW)

	s.ctx.EnableVertexAttribArray(s.position)
	s.ctx.VertexAttribPointer(s.position, coordsPerVertex, gl.FLOAT, false, 0, 0)
	s.ctx.LineWidth(width)
	s.ctx.DrawArrays(gl.LINES, 0, 2)
	s.ctx.DisableVertexAttribArray(s.position)
}

func lineVertices(from, to mgl32.Vec3) []byte {
	return f32.Bytes(binary.LittleEndian,
		from[0], from[1], from[2],
		to[0], to[1], to[2],
	)
}
