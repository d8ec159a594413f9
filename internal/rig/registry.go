// Package rig discovers animation channels on loaded models. Discovery runs
// once per model load and produces a read-only Registry: a capability map
// from canonical mouth-shape labels to the morph channels that realize them.
// Models with no usable channels produce an empty Registry, which every
// consumer must treat as valid.
package rig

import (
	"strings"

	"github.com/hgittham/talkingavatar/internal/render"
)

// ShapeLabel is a canonical mouth-shape name. The vowel labels drive distinct
// visemes; MouthOpen is the generic fallback used by degraded rigs.
type ShapeLabel string

const (
	ShapeA         ShapeLabel = "A"
	ShapeE         ShapeLabel = "E"
	ShapeI         ShapeLabel = "I"
	ShapeO         ShapeLabel = "O"
	ShapeU         ShapeLabel = "U"
	ShapeMouthOpen ShapeLabel = "mouthOpen"
)

// VowelLabels lists the vowel-family labels in canonical order.
var VowelLabels = []ShapeLabel{ShapeA, ShapeE, ShapeI, ShapeO, ShapeU}

// labelAliases are the lowercase multi-character spellings accepted by the
// substring pass. Single letters are excluded there: "a" would match half the
// target names on any ARKit-style rig.
var labelAliases = map[ShapeLabel][]string{
	ShapeA:         {"aa", "viseme_a"},
	ShapeE:         {"ee", "viseme_e"},
	ShapeI:         {"ih", "viseme_i"},
	ShapeO:         {"oh", "viseme_o"},
	ShapeU:         {"ou", "viseme_u"},
	ShapeMouthOpen: {"mouthopen", "mouth_open", "jawopen"},
}

// MorphChannel addresses one morph target on one mesh, tagged with the
// canonical label it realizes. Channels are looked up, never mutated, after
// discovery.
type MorphChannel struct {
	Mesh   *render.Mesh
	Target int
	Label  ShapeLabel
}

// Registry maps canonical labels to the channels that realize them. A label
// may span several meshes. Built exactly once per successful model load.
type Registry struct {
	channels map[ShapeLabel][]MorphChannel
	degraded bool
}

// NewRegistry returns an empty registry. All operations on an empty registry
// are valid no-ops.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[ShapeLabel][]MorphChannel)}
}

// Channels returns the channels registered for a label, nil when none.
func (r *Registry) Channels(label ShapeLabel) []MorphChannel {
	return r.channels[label]
}

// All returns every registered channel.
func (r *Registry) All() []MorphChannel {
	var all []MorphChannel
	for _, label := range append(VowelLabels, ShapeMouthOpen) {
		all = append(all, r.channels[label]...)
	}
	return all
}

// Degraded reports that no vowel-family channel exists anywhere and only a
// generic mouth-open channel was found. In that mode all vowel-shape requests
// fold onto the generic channel: the mouth opens and closes but renders no
// distinct vowel shapes.
func (r *Registry) Degraded() bool {
	return r.degraded
}

// Empty reports that discovery found no channels at all.
func (r *Registry) Empty() bool {
	return len(r.channels) == 0
}

// Discover matches each mesh's morph target names against the canonical label
// set. Precedence per label per mesh: exact name match, then case-insensitive
// exact match, then case-insensitive substring match against the label's
// multi-character aliases. First match wins; a mesh with no matching names
// contributes no channels. Works identically for humanoid rigs with named
// blend shapes and raw morph-target meshes, since both expose target names.
func Discover(meshes []*render.Mesh) *Registry {
	reg := NewRegistry()

	labels := append(append([]ShapeLabel{}, VowelLabels...), ShapeMouthOpen)
	for _, mesh := range meshes {
		names := mesh.TargetNames()
		if len(names) == 0 {
			continue
		}
		for _, label := range labels {
			if idx, ok := matchTarget(names, label); ok {
				reg.channels[label] = append(reg.channels[label], MorphChannel{
					Mesh:   mesh,
					Target: idx,
					Label:  label,
				})
			}
		}
	}

	hasVowel := false
	for _, label := range VowelLabels {
		if len(reg.channels[label]) > 0 {
			hasVowel = true
			break
		}
	}
	if !hasVowel && len(reg.channels[ShapeMouthOpen]) > 0 {
		reg.degraded = true
	}

	return reg
}

func matchTarget(names []string, label ShapeLabel) (int, bool) {
	want := string(label)

	for i, n := range names {
		if n == want {
			return i, true
		}
	}
	for i, n := range names {
		if strings.EqualFold(n, want) {
			return i, true
		}
	}
	for i, n := range names {
		lower := strings.ToLower(n)
		for _, alias := range labelAliases[label] {
			if strings.Contains(lower, alias) {
				return i, true
			}
		}
	}
	return 0, false
}

// FindChannel resolves an arbitrary named target across meshes using the same
// precedence rule as Discover (exact, then case-insensitive, then substring on
// the given name when longer than one rune). Used by the gesture controller
// for expression channels, which live in a namespace disjoint from the mouth
// labels.
func FindChannel(meshes []*render.Mesh, name string) (*render.Mesh, int, bool) {
	for _, mesh := range meshes {
		for i, n := range mesh.TargetNames() {
			if n == name {
				return mesh, i, true
			}
		}
	}
	for _, mesh := range meshes {
		for i, n := range mesh.TargetNames() {
			if strings.EqualFold(n, name) {
				return mesh, i, true
			}
		}
	}
	if len([]rune(name)) > 1 {
		lower := strings.ToLower(name)
		for _, mesh := range meshes {
			for i, n := range mesh.TargetNames() {
				if strings.Contains(strings.ToLower(n), lower) {
					return mesh, i, true
				}
			}
		}
	}
	return nil, 0, false
}
