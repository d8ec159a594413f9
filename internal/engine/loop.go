package engine

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hgittham/talkingavatar/internal/gesture"
)

// Run drives the render loop until the window closes or ctx is cancelled.
// Must be called on the thread that owns the GL context. Headless engines
// (nil renderer) return immediately.
func (e *Engine) Run(ctx context.Context) {
	if e.renderer == nil {
		e.log.Warn().Msg("no renderer attached, nothing to run")
		return
	}

	for !e.renderer.ShouldClose() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pose := e.Tick(e.nowMs())

		e.mu.Lock()
		model := e.state.Model
		upload := e.needUpload
		e.needUpload = false
		e.mu.Unlock()

		shader := e.renderer.BeginFrame()
		if model != nil {
			if upload {
				model.Upload()
			}
			shader.SetMat4("uModel", poseMatrix(pose))
			for _, mesh := range model.Meshes {
				mesh.Sync()
				mesh.Draw()
			}
		}
		e.renderer.EndFrame()
	}
}

// poseMatrix folds the gesture pose offsets into one model matrix:
// scale, then the Euler rotation, then the translation.
func poseMatrix(p gesture.Pose) mgl32.Mat4 {
	m := mgl32.Translate3D(p.Position.X(), p.Position.Y(), p.Position.Z())
	m = m.Mul4(mgl32.HomogRotate3DY(p.Rotation.Y()))
	m = m.Mul4(mgl32.HomogRotate3DX(p.Rotation.X()))
	m = m.Mul4(mgl32.HomogRotate3DZ(p.Rotation.Z()))
	if p.Scale != 0 && p.Scale != 1 {
		m = m.Mul4(mgl32.Scale3D(p.Scale, p.Scale, p.Scale))
	}
	return m
}
