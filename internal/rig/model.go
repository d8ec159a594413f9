package rig

import (
	"fmt"

	"github.com/hgittham/talkingavatar/internal/render"
)

// LoadError reports a model fetch/parse failure. The caller keeps running in
// a no-model state; nothing about the engine loop depends on a load having
// succeeded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Model aggregates the loaded meshes and the channel registry discovered on
// them. Replaced wholesale on reload; the registry is immutable after Load.
type Model struct {
	Path     string
	Meshes   []*render.Mesh
	Registry *Registry
}

// Load parses a glTF/GLB asset and discovers its mouth channels. Returns a
// *LoadError on any fetch or parse failure.
func Load(path string) (*Model, error) {
	meshes, err := render.LoadMeshes(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return &Model{
		Path:     path,
		Meshes:   meshes,
		Registry: Discover(meshes),
	}, nil
}

// NewModel wraps pre-built meshes, running discovery on them. Used by tests
// and the placeholder path.
func NewModel(meshes ...*render.Mesh) *Model {
	return &Model{Meshes: meshes, Registry: Discover(meshes)}
}

// FindChannel resolves a named non-mouth target on the model's meshes.
func (m *Model) FindChannel(name string) (*render.Mesh, int, bool) {
	return FindChannel(m.Meshes, name)
}

// Upload pushes every mesh to the GPU. Requires a current GL context.
func (m *Model) Upload() {
	for _, mesh := range m.Meshes {
		mesh.Upload()
	}
}

// Delete releases every mesh's GPU buffers. Idempotent.
func (m *Model) Delete() {
	for _, mesh := range m.Meshes {
		mesh.Delete()
	}
}
