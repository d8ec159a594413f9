// Package render owns the GL window, shader, and mesh resources for the
// avatar. Everything GPU-side created here is released by Shutdown or by the
// per-resource Delete methods; the rest of the engine never calls GL directly.
package render

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

type Config struct {
	Width  int
	Height int
	Title  string
	VSync  bool
	MSAA   int
}

func DefaultConfig() Config {
	return Config{
		Width:  900,
		Height: 900,
		Title:  "Talking Avatar",
		VSync:  true,
		MSAA:   4,
	}
}

// Renderer wraps the GLFW window, the camera matrices, and the single shader
// the avatar head needs. The caller must have run glfw.Init on a locked OS
// thread before calling New.
type Renderer struct {
	window *glfw.Window
	config Config

	shader *Shader

	projection mgl32.Mat4
	view       mgl32.Mat4
}

func New(cfg Config) (*Renderer, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	if cfg.MSAA > 0 {
		glfw.WindowHint(glfw.Samples, cfg.MSAA)
	}

	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gl init: %w", err)
	}

	if cfg.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	r := &Renderer{window: window, config: cfg}

	r.shader, err = NewBasicShader()
	if err != nil {
		return nil, fmt.Errorf("init shader: %w", err)
	}

	aspect := float32(cfg.Width) / float32(cfg.Height)
	r.projection = mgl32.Perspective(mgl32.DegToRad(40), aspect, 0.05, 50)
	r.view = mgl32.LookAtV(
		mgl32.Vec3{0, 1.5, 1.6},
		mgl32.Vec3{0, 1.5, 0},
		mgl32.Vec3{0, 1, 0},
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	if cfg.MSAA > 0 {
		gl.Enable(gl.MULTISAMPLE)
	}

	return r, nil
}

// ShouldClose reports whether the user asked to close the window.
func (r *Renderer) ShouldClose() bool {
	return r.window.ShouldClose()
}

// BeginFrame clears the framebuffer and binds the avatar shader with the
// frame-constant uniforms set.
func (r *Renderer) BeginFrame() *Shader {
	gl.ClearColor(0.08, 0.09, 0.11, 1.0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	r.shader.Use()
	r.shader.SetMat4("uProjection", r.projection)
	r.shader.SetMat4("uView", r.view)
	r.shader.SetVec3("uLightDir", mgl32.Vec3{-0.4, -0.6, -0.7})
	r.shader.SetVec3("uBaseColor", mgl32.Vec3{0.85, 0.72, 0.62})
	return r.shader
}

// EndFrame swaps buffers and pumps window events.
func (r *Renderer) EndFrame() {
	r.window.SwapBuffers()
	glfw.PollEvents()
}

// Shutdown releases the shader and destroys the window. Meshes are owned by
// the engine and released separately.
func (r *Renderer) Shutdown() {
	if r.shader != nil {
		r.shader.Delete()
		r.shader = nil
	}
	if r.window != nil {
		r.window.Destroy()
		r.window = nil
	}
}
