package gesture

import (
	"testing"

	"github.com/hgittham/talkingavatar/internal/render"
	"github.com/hgittham/talkingavatar/internal/rig"
)

func expressiveModel() (*render.Mesh, *rig.Model) {
	mesh := render.NewMesh("face", "A", "mouthSmile", "browInnerUp", "eyeBlinkLeft")
	return mesh, rig.NewModel(mesh)
}

func TestWaveExpires(t *testing.T) {
	c := NewController(nil)
	c.Wave()

	if !c.WaveActive() {
		t.Fatal("wave should be active after trigger")
	}

	// Advance well past the pulse duration.
	for i := 0; i < 40; i++ {
		c.Update(0.05)
	}
	if c.WaveActive() {
		t.Error("wave should auto-expire")
	}
}

func TestNodExpires(t *testing.T) {
	c := NewController(nil)
	c.Nod()
	if !c.NodActive() {
		t.Fatal("nod should be active after trigger")
	}
	for i := 0; i < 40; i++ {
		c.Update(0.05)
	}
	if c.NodActive() {
		t.Error("nod should auto-expire")
	}
}

func TestNodContributesPitch(t *testing.T) {
	c := NewController(nil)
	c.Nod()

	moved := false
	for i := 0; i < 10; i++ {
		pose := c.Update(0.05)
		if pose.Rotation.X() != 0 {
			moved = true
		}
	}
	if !moved {
		t.Error("nod pulse never moved the pitch axis")
	}
}

func TestIdleSwayAlwaysRuns(t *testing.T) {
	c := NewController(nil)

	moved := false
	for i := 0; i < 20; i++ {
		pose := c.Update(0.1)
		if pose.Rotation.Y() != 0 {
			moved = true
		}
	}
	if !moved {
		t.Error("idle sway should move the yaw axis with no gestures active")
	}
}

func TestListeningPulseScales(t *testing.T) {
	c := NewController(nil)

	pose := c.Update(0.1)
	if pose.Scale != 1 {
		t.Errorf("scale = %v with listening off, want 1", pose.Scale)
	}

	c.SetListening(true)
	scaled := false
	for i := 0; i < 20; i++ {
		pose = c.Update(0.07)
		if pose.Scale != 1 {
			scaled = true
		}
	}
	if !scaled {
		t.Error("listening pulse never modulated scale")
	}

	c.SetListening(false)
	if pose := c.Update(0.1); pose.Scale != 1 {
		t.Errorf("scale = %v after listening off, want 1", pose.Scale)
	}
}

func TestSetExpression(t *testing.T) {
	mesh, model := expressiveModel()
	c := NewController(model)

	c.SetExpression("happy")
	if c.Expression() != "happy" {
		t.Errorf("expression = %s, want happy", c.Expression())
	}
	if got := mesh.TargetWeight(1); got != 0.55 {
		t.Errorf("mouthSmile = %v, want 0.55", got)
	}

	c.SetExpression("surprised")
	if got := mesh.TargetWeight(1); got != 0 {
		t.Errorf("mouthSmile = %v after switching away, want 0", got)
	}
	if got := mesh.TargetWeight(2); got != 0.6 {
		t.Errorf("browInnerUp = %v, want 0.6", got)
	}

	c.SetExpression("neutral")
	if got := mesh.TargetWeight(2); got != 0 {
		t.Errorf("browInnerUp = %v after neutral, want 0", got)
	}
}

func TestSetExpressionUnknownClears(t *testing.T) {
	mesh, model := expressiveModel()
	c := NewController(model)

	c.SetExpression("happy")
	c.SetExpression("zombie")
	if c.Expression() != "neutral" {
		t.Errorf("unknown preset should land on neutral, got %s", c.Expression())
	}
	if got := mesh.TargetWeight(1); got != 0 {
		t.Errorf("mouthSmile = %v after unknown preset, want 0", got)
	}
}

func TestSetExpressionNoChannelsIsSafe(t *testing.T) {
	c := NewController(rig.NewModel(render.NewMesh("sphere")))
	c.SetExpression("happy")
	c.SetExpression("neutral")

	c = NewController(nil)
	c.SetExpression("surprised")
}
