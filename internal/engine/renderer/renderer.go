// Package renderer draws a scene's vertex buffer with OpenGL.
package renderer

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/physbox/internal/engine/debug"
	"github.com/Faultbox/physbox/internal/engine/lighting"
	"github.com/Faultbox/physbox/internal/engine/shader"
	"github.com/Faultbox/physbox/internal/logger"
	"github.com/Faultbox/physbox/internal/scene"
	"github.com/Faultbox/physbox/pkg/math"
)

const meshVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aNormal;

uniform mat4 uViewProj;
uniform mat4 uModel;

out vec3 vNormal;

void main() {
	vNormal = mat3(uModel) * aNormal;
	gl_Position = uViewProj * uModel * vec4(aPos, 1.0);
}
`

const meshFragmentShader = `
#version 410 core

in vec3 vNormal;

uniform vec3 uColor;
uniform vec3 uLightDir;
uniform float uAmbient;
uniform float uHighlight;

out vec4 FragColor;

void main() {
	float diffuse = max(dot(normalize(vNormal), -uLightDir), 0.0);
	vec3 color = uColor * (uAmbient + (1.0 - uAmbient) * diffuse);
	FragColor = vec4(mix(color, vec3(1.0, 0.85, 0.3), uHighlight), 1.0);
}
`

const lineVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;

uniform mat4 uViewProj;

void main() {
	gl_Position = uViewProj * vec4(aPos, 1.0);
}
`

const lineFragmentShader = `
#version 410 core

uniform vec3 uColor;

out vec4 FragColor;

void main() {
	FragColor = vec4(uColor, 1.0);
}
`

var (
	gridColor      = math.Vec3{X: 0.3, Y: 0.3, Z: 0.35}
	selectionColor = math.Vec3{X: 1, Y: 0.85, Z: 0.3}
)

// Renderer draws scene.DrawCalls from an uploaded scene.VertexBuffer. It
// implements scene.Renderer.
type Renderer struct {
	width, height int

	mesh  *shader.Program
	lines *shader.Program

	meshVAO, meshVBO, meshEBO uint32
	lineVAO, lineVBO          uint32

	grid      []float32
	selection []float32
	viewProj  math.Mat4
	sun       lighting.Sun
}

// New creates the renderer. The OpenGL context must already exist.
func New(width, height int) (*Renderer, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))))

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.CULL_FACE)
	gl.ClearColor(0.1, 0.1, 0.15, 1.0)

	r := &Renderer{grid: debug.GridLines(20, 1, 0.001), sun: lighting.DefaultSun()}

	var err error
	if r.mesh, err = shader.Compile("mesh", meshVertexShader, meshFragmentShader); err != nil {
		return nil, err
	}
	if r.lines, err = shader.Compile("lines", lineVertexShader, lineFragmentShader); err != nil {
		r.mesh.Delete()
		return nil, err
	}

	gl.GenVertexArrays(1, &r.meshVAO)
	gl.GenBuffers(1, &r.meshVBO)
	gl.GenBuffers(1, &r.meshEBO)
	gl.BindVertexArray(r.meshVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.meshVBO)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.meshEBO)
	stride := int32(scene.VertexStride * 4)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(1)

	gl.GenVertexArrays(1, &r.lineVAO)
	gl.GenBuffers(1, &r.lineVBO)
	gl.BindVertexArray(r.lineVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.lineVBO)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 3*4, 0)
	gl.EnableVertexAttribArray(0)
	gl.BindVertexArray(0)

	r.Resize(width, height)
	return r, nil
}

// Close releases GL resources.
func (r *Renderer) Close() {
	logger.Info("closing renderer")
	gl.DeleteVertexArrays(1, &r.meshVAO)
	gl.DeleteBuffers(1, &r.meshVBO)
	gl.DeleteBuffers(1, &r.meshEBO)
	gl.DeleteVertexArrays(1, &r.lineVAO)
	gl.DeleteBuffers(1, &r.lineVBO)
	r.mesh.Delete()
	r.lines.Delete()
}

// Resize updates the viewport.
func (r *Renderer) Resize(width, height int) {
	r.width, r.height = width, height
	gl.Viewport(0, 0, int32(width), int32(height))
	logger.Debug("renderer resized", zap.Int("width", width), zap.Int("height", height))
}

// Aspect returns the viewport aspect ratio.
func (r *Renderer) Aspect() float32 {
	if r.height == 0 {
		return 1
	}
	return float32(r.width) / float32(r.height)
}

// Upload replaces the GPU copy of vb.
func (r *Renderer) Upload(vb *scene.VertexBuffer) {
	gl.BindVertexArray(r.meshVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.meshVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(vb.Vertices)*4, glPtr(vb.Vertices), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.meshEBO)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(vb.Indices)*4, glPtr(vb.Indices), gl.STATIC_DRAW)
	gl.BindVertexArray(0)
	logger.Debug("vertex buffer uploaded",
		zap.Int("vertices", vb.VertexCount()),
		zap.Int("indices", len(vb.Indices)))
}

func glPtr[T float32 | uint32](s []T) unsafe.Pointer {
	if len(s) == 0 {
		return nil
	}
	return gl.Ptr(s)
}

// SetSun replaces the directional light.
func (r *Renderer) SetSun(sun lighting.Sun) { r.sun = sun }

// Begin clears the frame and binds the mesh program for viewProj.
func (r *Renderer) Begin(viewProj math.Mat4) {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	r.viewProj = viewProj
	r.selection = r.selection[:0]

	r.mesh.Use()
	r.mesh.SetMat4("uViewProj", viewProj)
	r.mesh.SetVec3("uLightDir", r.sun.Direction())
	r.mesh.SetFloat("uAmbient", r.sun.Ambient)
	gl.BindVertexArray(r.meshVAO)
}

// Draw renders one draw call. Selected objects are tinted and outlined.
func (r *Renderer) Draw(call scene.DrawCall) {
	r.mesh.SetMat4("uModel", call.Matrix)
	r.mesh.SetVec3("uColor", math.Vec3{X: call.Color[0], Y: call.Color[1], Z: call.Color[2]})
	highlight := float32(0)
	if call.Selected {
		highlight = 0.35
		lo, hi := call.Object.Bounds()
		r.selection = append(r.selection, debug.BoxWireframe(lo, hi, debug.SelectionPadding)...)
	}
	r.mesh.SetFloat("uHighlight", highlight)
	gl.DrawElementsWithOffset(gl.TRIANGLES, int32(call.Count), gl.UNSIGNED_INT, uintptr(call.First*4))
}

// End draws the floor grid and the selection outlines.
func (r *Renderer) End() {
	r.lines.Use()
	r.lines.SetMat4("uViewProj", r.viewProj)
	gl.BindVertexArray(r.lineVAO)
	r.drawLines(r.grid, gridColor)
	r.drawLines(r.selection, selectionColor)
	gl.BindVertexArray(0)
}

func (r *Renderer) drawLines(vertices []float32, color math.Vec3) {
	if len(vertices) == 0 {
		return
	}
	r.lines.SetVec3("uColor", color)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.lineVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STREAM_DRAW)
	gl.DrawArrays(gl.LINES, 0, int32(len(vertices)/3))
}

// ReadPixels returns the back buffer as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() ([]byte, int, int) {
	pixels := make([]byte, r.width*r.height*4)
	if len(pixels) == 0 {
		return pixels, r.width, r.height
	}
	gl.ReadPixels(0, 0, int32(r.width), int32(r.height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels, r.width, r.height
}
