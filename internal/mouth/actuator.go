// Package mouth applies mouth shapes to a discovered channel registry and
// builds the heuristic viseme timeline used when no precise speech timing is
// available.
package mouth

import (
	"github.com/hgittham/talkingavatar/internal/render"
	"github.com/hgittham/talkingavatar/internal/rig"
)

// Actuator writes shape weights through a registry. It holds no state of its
// own beyond the registry reference, so the same call sequence always produces
// the same channel weights.
type Actuator struct {
	reg *rig.Registry
}

// NewActuator wraps a registry. A nil registry behaves like an empty one.
func NewActuator(reg *rig.Registry) *Actuator {
	if reg == nil {
		reg = rig.NewRegistry()
	}
	return &Actuator{reg: reg}
}

// Registry exposes the wrapped registry for callers that need to inspect it.
func (a *Actuator) Registry() *rig.Registry {
	return a.reg
}

// Apply sets every channel tagged with shape to intensity and zeroes every
// other vowel-family channel on the same meshes, so two shapes never render
// at once. On a degraded registry the intensity goes to the generic
// mouth-open channel regardless of the requested shape; the rig can only
// approximate mouth opening, not distinct vowels.
func (a *Actuator) Apply(shape rig.ShapeLabel, intensity float32) {
	if a.reg.Degraded() {
		for _, ch := range a.reg.Channels(rig.ShapeMouthOpen) {
			ch.Mesh.SetTargetWeight(ch.Target, intensity)
		}
		return
	}

	targets := a.reg.Channels(shape)
	if len(targets) == 0 {
		return
	}

	sharedMeshes := make(map[*render.Mesh]struct{}, len(targets))
	for _, ch := range targets {
		sharedMeshes[ch.Mesh] = struct{}{}
	}

	for _, label := range rig.VowelLabels {
		if label == shape {
			continue
		}
		for _, ch := range a.reg.Channels(label) {
			if _, shared := sharedMeshes[ch.Mesh]; shared {
				ch.Mesh.SetTargetWeight(ch.Target, 0)
			}
		}
	}
	for _, ch := range targets {
		ch.Mesh.SetTargetWeight(ch.Target, intensity)
	}
}

// Clear zeroes every registered channel. Callable at any time; idempotent.
func (a *Actuator) Clear() {
	for _, ch := range a.reg.All() {
		ch.Mesh.SetTargetWeight(ch.Target, 0)
	}
}
