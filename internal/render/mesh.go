package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	TexCoord mgl32.Vec2
}

// MorphTarget is a named per-vertex deformation channel. Weight lives on the
// owning Mesh so several controllers can read and write it between frames.
type MorphTarget struct {
	Name           string
	PositionDeltas []mgl32.Vec3
	NormalDeltas   []mgl32.Vec3
}

// Mesh holds CPU-side geometry plus optional GPU buffers. All weight and
// target-name operations work without a GL context; Upload/Sync/Draw/Delete
// are the only entry points that touch the GPU, so headless tests can build
// meshes freely. Weight reads and writes are safe from any goroutine —
// speech callbacks and control goroutines write weights while the render
// loop folds them in Sync.
type Mesh struct {
	Name         string
	BaseVertices []Vertex
	MorphTargets []MorphTarget

	mu            sync.Mutex
	weights       []float32
	dirty         bool
	currentDeltas []mgl32.Vec3

	vao, vbo, ebo uint32
	indexCount    int32
	vertexCount   int32
	hasIndices    bool
	indices       []uint32
	uploaded      bool
}

// NewMesh builds a CPU-only mesh with the given named morph targets. Used by
// tests and by the placeholder path when no model asset is available.
func NewMesh(name string, targetNames ...string) *Mesh {
	m := &Mesh{Name: name}
	for _, tn := range targetNames {
		m.MorphTargets = append(m.MorphTargets, MorphTarget{Name: tn})
	}
	m.weights = make([]float32, len(m.MorphTargets))
	return m
}

// TargetNames returns the morph target names in declaration order.
func (m *Mesh) TargetNames() []string {
	names := make([]string, len(m.MorphTargets))
	for i, t := range m.MorphTargets {
		names[i] = t.Name
	}
	return names
}

// SetTargetWeight sets the weight of one morph target, clamped to [0,1].
// Out-of-range indices are ignored.
func (m *Mesh) SetTargetWeight(idx int, w float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx < 0 || idx >= len(m.weights) {
		return
	}
	if w < 0 {
		w = 0
	}
	if w > 1 {
		w = 1
	}
	if m.weights[idx] != w {
		m.weights[idx] = w
		m.dirty = true
	}
}

// TargetWeight returns the current weight of one morph target.
func (m *Mesh) TargetWeight(idx int) float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx < 0 || idx >= len(m.weights) {
		return 0
	}
	return m.weights[idx]
}

// TargetCount returns the number of morph targets on the mesh.
func (m *Mesh) TargetCount() int {
	return len(m.MorphTargets)
}

// LoadMeshes parses a glTF/GLB asset and returns one Mesh per glTF mesh that
// carries geometry. Morph target names come from the mesh extras
// ("targetNames"); targets without a published name get a synthetic one so
// indices stay stable.
func LoadMeshes(path string) ([]*Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}
	if len(doc.Meshes) == 0 {
		return nil, fmt.Errorf("no meshes in %s", path)
	}

	baseDir := filepath.Dir(path)
	var meshes []*Mesh
	for _, gm := range doc.Meshes {
		if len(gm.Primitives) == 0 {
			continue
		}
		mesh, err := meshFromPrimitive(doc, gm, baseDir)
		if err != nil {
			return nil, fmt.Errorf("mesh %q: %w", gm.Name, err)
		}
		meshes = append(meshes, mesh)
	}
	if len(meshes) == 0 {
		return nil, fmt.Errorf("no drawable primitives in %s", path)
	}
	return meshes, nil
}

func meshFromPrimitive(doc *gltf.Document, gm *gltf.Mesh, baseDir string) (*Mesh, error) {
	prim := gm.Primitives[0]

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("primitive has no positions")
	}
	positions, err := readAccessorVec3(doc, uint32(posIdx), baseDir)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	normals := make([]mgl32.Vec3, len(positions))
	if ni, ok := prim.Attributes[gltf.NORMAL]; ok {
		if n, err := readAccessorVec3(doc, uint32(ni), baseDir); err == nil {
			normals = n
		}
	}

	texCoords := make([]mgl32.Vec2, len(positions))
	if ti, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if tc, err := readAccessorVec2(doc, uint32(ti), baseDir); err == nil {
			texCoords = tc
		}
	}

	mesh := &Mesh{Name: gm.Name}
	mesh.BaseVertices = make([]Vertex, len(positions))
	for i := range positions {
		mesh.BaseVertices[i] = Vertex{
			Position: positions[i],
			Normal:   normals[i],
			TexCoord: texCoords[i],
		}
	}

	names := targetNamesFromExtras(gm.Extras, len(prim.Targets))
	for i, target := range prim.Targets {
		mt := MorphTarget{Name: names[i]}
		if pi, ok := target[gltf.POSITION]; ok {
			mt.PositionDeltas, _ = readAccessorVec3(doc, uint32(pi), baseDir)
		}
		if ni, ok := target[gltf.NORMAL]; ok {
			mt.NormalDeltas, _ = readAccessorVec3(doc, uint32(ni), baseDir)
		}
		mesh.MorphTargets = append(mesh.MorphTargets, mt)
	}
	mesh.weights = make([]float32, len(mesh.MorphTargets))

	if prim.Indices != nil {
		indices, err := readAccessorIndices(doc, uint32(*prim.Indices), baseDir)
		if err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
		mesh.indices = indices
		mesh.hasIndices = true
		mesh.indexCount = int32(len(indices))
	}

	mesh.vertexCount = int32(len(mesh.BaseVertices))
	mesh.currentDeltas = make([]mgl32.Vec3, len(mesh.BaseVertices))
	return mesh, nil
}

func targetNamesFromExtras(extras interface{}, count int) []string {
	names := make([]string, count)
	for i := range names {
		names[i] = fmt.Sprintf("target_%d", i)
	}
	ex, ok := extras.(map[string]interface{})
	if !ok {
		return names
	}
	raw, ok := ex["targetNames"].([]interface{})
	if !ok {
		return names
	}
	for i, n := range raw {
		if i >= count {
			break
		}
		if s, ok := n.(string); ok && strings.TrimSpace(s) != "" {
			names[i] = s
		}
	}
	return names
}

// Upload creates the GPU buffers. Must run on the thread owning the GL
// context. No-op if already uploaded.
func (m *Mesh) Upload() {
	if m.uploaded || len(m.BaseVertices) == 0 {
		return
	}

	gl.GenVertexArrays(1, &m.vao)
	gl.GenBuffers(1, &m.vbo)
	gl.BindVertexArray(m.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)

	data := m.vertexData()
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.DYNAMIC_DRAW)

	stride := int32(8 * 4)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, stride, 6*4)
	gl.EnableVertexAttribArray(2)

	if m.hasIndices {
		gl.GenBuffers(1, &m.ebo)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(m.indices)*4, gl.Ptr(m.indices), gl.STATIC_DRAW)
	}

	gl.BindVertexArray(0)
	m.uploaded = true
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
}

// Sync folds the current morph weights into the vertex buffer. Cheap when no
// weight changed since the last call.
func (m *Mesh) Sync() {
	m.mu.Lock()
	if !m.dirty {
		m.mu.Unlock()
		return
	}
	m.dirty = false
	weights := append([]float32(nil), m.weights...)
	m.mu.Unlock()

	for i := range m.currentDeltas {
		m.currentDeltas[i] = mgl32.Vec3{}
	}
	for ti := range m.MorphTargets {
		w := weights[ti]
		if w < 0.001 {
			continue
		}
		for vi, delta := range m.MorphTargets[ti].PositionDeltas {
			if vi < len(m.currentDeltas) {
				m.currentDeltas[vi] = m.currentDeltas[vi].Add(delta.Mul(w))
			}
		}
	}

	if !m.uploaded {
		return
	}
	data := m.vertexData()
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(data)*4, gl.Ptr(data))
}

func (m *Mesh) vertexData() []float32 {
	data := make([]float32, 0, len(m.BaseVertices)*8)
	for i, v := range m.BaseVertices {
		pos := v.Position
		if i < len(m.currentDeltas) {
			pos = pos.Add(m.currentDeltas[i])
		}
		data = append(data, pos[0], pos[1], pos[2])
		data = append(data, v.Normal[0], v.Normal[1], v.Normal[2])
		data = append(data, v.TexCoord[0], v.TexCoord[1])
	}
	return data
}

// Draw issues the draw call. No-op before Upload.
func (m *Mesh) Draw() {
	if !m.uploaded {
		return
	}
	gl.BindVertexArray(m.vao)
	if m.hasIndices {
		gl.DrawElements(gl.TRIANGLES, m.indexCount, gl.UNSIGNED_INT, nil)
	} else {
		gl.DrawArrays(gl.TRIANGLES, 0, m.vertexCount)
	}
	gl.BindVertexArray(0)
}

// Delete releases the GPU buffers. Safe to call more than once and safe on a
// mesh that was never uploaded.
func (m *Mesh) Delete() {
	if !m.uploaded {
		return
	}
	gl.DeleteVertexArrays(1, &m.vao)
	gl.DeleteBuffers(1, &m.vbo)
	if m.hasIndices {
		gl.DeleteBuffers(1, &m.ebo)
	}
	m.uploaded = false
}

// accessorBytes resolves one accessor to its backing bytes and validates that
// every element lies inside the buffer. elemSize is the byte width of one
// element; the returned stride defaults to elemSize for tightly packed views.
// Malformed assets must come back as errors so rig loading can degrade
// instead of panicking.
func accessorBytes(doc *gltf.Document, accessorIdx uint32, elemSize int, baseDir string) (data []byte, offset, count, stride int, err error) {
	if int(accessorIdx) >= len(doc.Accessors) {
		return nil, 0, 0, 0, fmt.Errorf("accessor %d out of range", accessorIdx)
	}
	accessor := doc.Accessors[accessorIdx]
	if accessor.BufferView == nil {
		return nil, 0, 0, 0, fmt.Errorf("accessor %d has no buffer view", accessorIdx)
	}
	if int(*accessor.BufferView) >= len(doc.BufferViews) {
		return nil, 0, 0, 0, fmt.Errorf("buffer view %d out of range", *accessor.BufferView)
	}
	bufferView := doc.BufferViews[*accessor.BufferView]
	if int(bufferView.Buffer) >= len(doc.Buffers) {
		return nil, 0, 0, 0, fmt.Errorf("buffer %d out of range", bufferView.Buffer)
	}

	data, err = bufferData(doc.Buffers[bufferView.Buffer], baseDir)
	if err != nil {
		return nil, 0, 0, 0, err
	}

	offset = int(bufferView.ByteOffset) + int(accessor.ByteOffset)
	count = int(accessor.Count)
	stride = int(bufferView.ByteStride)
	if stride == 0 {
		stride = elemSize
	}
	if count > 0 {
		end := offset + (count-1)*stride + elemSize
		if offset < 0 || end > len(data) {
			return nil, 0, 0, 0, fmt.Errorf("accessor %d overruns buffer: need %d bytes, have %d", accessorIdx, end, len(data))
		}
	}
	return data, offset, count, stride, nil
}

func readAccessorVec3(doc *gltf.Document, accessorIdx uint32, baseDir string) ([]mgl32.Vec3, error) {
	data, offset, count, stride, err := accessorBytes(doc, accessorIdx, 12, baseDir)
	if err != nil {
		return nil, err
	}
	result := make([]mgl32.Vec3, count)
	for i := 0; i < count; i++ {
		idx := offset + i*stride
		floats := (*[3]float32)(unsafe.Pointer(&data[idx]))
		result[i] = mgl32.Vec3{floats[0], floats[1], floats[2]}
	}
	return result, nil
}

func readAccessorVec2(doc *gltf.Document, accessorIdx uint32, baseDir string) ([]mgl32.Vec2, error) {
	data, offset, count, stride, err := accessorBytes(doc, accessorIdx, 8, baseDir)
	if err != nil {
		return nil, err
	}
	result := make([]mgl32.Vec2, count)
	for i := 0; i < count; i++ {
		idx := offset + i*stride
		floats := (*[2]float32)(unsafe.Pointer(&data[idx]))
		result[i] = mgl32.Vec2{floats[0], floats[1]}
	}
	return result, nil
}

func readAccessorIndices(doc *gltf.Document, accessorIdx uint32, baseDir string) ([]uint32, error) {
	var elemSize int
	if int(accessorIdx) < len(doc.Accessors) {
		switch doc.Accessors[accessorIdx].ComponentType {
		case gltf.ComponentUbyte:
			elemSize = 1
		case gltf.ComponentUshort:
			elemSize = 2
		case gltf.ComponentUint:
			elemSize = 4
		default:
			return nil, fmt.Errorf("accessor %d: unsupported index component type", accessorIdx)
		}
	}
	data, offset, count, _, err := accessorBytes(doc, accessorIdx, elemSize, baseDir)
	if err != nil {
		return nil, err
	}

	result := make([]uint32, count)
	switch elemSize {
	case 1:
		for i := 0; i < count; i++ {
			result[i] = uint32(data[offset+i])
		}
	case 2:
		for i := 0; i < count; i++ {
			idx := offset + i*2
			result[i] = uint32(*(*uint16)(unsafe.Pointer(&data[idx])))
		}
	case 4:
		for i := 0; i < count; i++ {
			idx := offset + i*4
			result[i] = *(*uint32)(unsafe.Pointer(&data[idx]))
		}
	}
	return result, nil
}

// bufferData yields the buffer's bytes. External URIs resolve relative to the
// directory of the asset file, not the process working directory.
func bufferData(buffer *gltf.Buffer, baseDir string) ([]byte, error) {
	if buffer.URI == "" {
		if len(buffer.Data) > 0 {
			return buffer.Data, nil
		}
		return nil, fmt.Errorf("buffer has no URI and no embedded data")
	}
	if strings.HasPrefix(buffer.URI, "data:") {
		return nil, fmt.Errorf("data URI buffers not supported")
	}
	uri := buffer.URI
	if !filepath.IsAbs(uri) {
		uri = filepath.Join(baseDir, uri)
	}
	data, err := os.ReadFile(uri)
	if err != nil {
		return nil, fmt.Errorf("read buffer file: %w", err)
	}
	return data, nil
}
