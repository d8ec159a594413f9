package mouth

import (
	"testing"

	"github.com/hgittham/talkingavatar/internal/render"
	"github.com/hgittham/talkingavatar/internal/rig"
)

func fullRig() (*render.Mesh, *rig.Registry) {
	mesh := render.NewMesh("face", "A", "E", "I", "O", "U", "mouthOpen")
	return mesh, rig.Discover([]*render.Mesh{mesh})
}

func TestApplySetsShapeAndZeroesSiblings(t *testing.T) {
	mesh, reg := fullRig()
	act := NewActuator(reg)

	act.Apply(rig.ShapeA, 0.9)
	act.Apply(rig.ShapeO, 0.7)

	if got := mesh.TargetWeight(3); got != 0.7 {
		t.Errorf("O weight = %v, want 0.7", got)
	}
	if got := mesh.TargetWeight(0); got != 0 {
		t.Errorf("A weight = %v, want 0 after switching to O", got)
	}
}

func TestApplyClampsIntensity(t *testing.T) {
	mesh, reg := fullRig()
	act := NewActuator(reg)

	act.Apply(rig.ShapeE, 1.5)
	if got := mesh.TargetWeight(1); got != 1 {
		t.Errorf("weight = %v, want clamp to 1", got)
	}
}

func TestApplyDegradedFoldsToMouthOpen(t *testing.T) {
	mesh := render.NewMesh("face", "mouthOpen")
	reg := rig.Discover([]*render.Mesh{mesh})
	if !reg.Degraded() {
		t.Fatal("fixture should be degraded")
	}
	act := NewActuator(reg)

	act.Apply(rig.ShapeU, 0.9)
	if got := mesh.TargetWeight(0); got != 0.9 {
		t.Errorf("degraded apply: mouthOpen = %v, want 0.9", got)
	}
}

func TestApplyUnknownShapeNoop(t *testing.T) {
	mesh, reg := fullRig()
	act := NewActuator(reg)
	act.Apply(rig.ShapeA, 0.9)

	act.Apply(rig.ShapeLabel("sneer"), 0.5)
	if got := mesh.TargetWeight(0); got != 0.9 {
		t.Errorf("unknown shape should not disturb weights, A = %v", got)
	}
}

func TestClear(t *testing.T) {
	mesh, reg := fullRig()
	act := NewActuator(reg)

	act.Apply(rig.ShapeI, 0.8)
	act.Clear()
	act.Clear() // idempotent

	for i := 0; i < mesh.TargetCount(); i++ {
		if got := mesh.TargetWeight(i); got != 0 {
			t.Errorf("target %d = %v after Clear, want 0", i, got)
		}
	}
}

func TestEmptyRegistryIsSafe(t *testing.T) {
	act := NewActuator(rig.NewRegistry())
	act.Apply(rig.ShapeA, 0.9)
	act.Clear()

	act = NewActuator(nil)
	act.Apply(rig.ShapeO, 0.5)
	act.Clear()
}
