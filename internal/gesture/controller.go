// Package gesture drives the avatar's secondary animation: triggered wave and
// nod pulses, the continuous idle sway and listening pulse, named expression
// presets, and an automatic blink. All of it is independent of speech state
// and advances every tick; anything the model's rig cannot express degrades
// to a safe no-op.
package gesture

import (
	"math"
	"math/rand"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hgittham/talkingavatar/internal/rig"
)

// Pulse durations and motion amplitudes. Gestures auto-expire; the sway and
// listening modulation never pause.
const (
	WaveDuration = 1.6 // seconds
	NodDuration  = 1.4

	idleSwayRate      = 0.22 // Hz
	idleSwayAmplitude = 0.035

	listenPulseRate      = 1.1
	listenPulseAmplitude = 0.012

	blinkDuration = 0.15
)

// Pose is the per-frame transform offset gestures contribute to the model:
// Euler rotation in radians, a translation, and a uniform scale factor.
type Pose struct {
	Rotation mgl32.Vec3
	Position mgl32.Vec3
	Scale    float32
}

type blinkPhase int

const (
	blinkOpen blinkPhase = iota
	blinkClosing
	blinkOpening
)

// Controller owns all gesture state. Phase timers advance on every Update
// regardless of what speech is doing.
type Controller struct {
	mu sync.Mutex

	model *rig.Model

	clock float32

	waveRemaining float32
	nodRemaining  float32
	listening     bool

	expression string

	blink         blinkPhase
	blinkProgress float32
	nextBlinkAt   float32
}

// NewController builds a controller for a model. A nil model is allowed:
// every channel write becomes a no-op while the pose math keeps running.
func NewController(model *rig.Model) *Controller {
	return &Controller{
		model:       model,
		nextBlinkAt: 2 + rand.Float32()*3,
	}
}

// Wave triggers the wave pulse. Re-triggering while active restarts it.
func (c *Controller) Wave() {
	c.mu.Lock()
	c.waveRemaining = WaveDuration
	c.mu.Unlock()
}

// Nod triggers the nod pulse.
func (c *Controller) Nod() {
	c.mu.Lock()
	c.nodRemaining = NodDuration
	c.mu.Unlock()
}

// SetListening toggles the listening pulse.
func (c *Controller) SetListening(on bool) {
	c.mu.Lock()
	c.listening = on
	c.mu.Unlock()
}

// expressionPresets name the non-mouth channels each preset drives. The
// channel namespace is disjoint from the vowel labels, so expressions and
// mouth shapes never fight over a target.
var expressionPresets = map[string]map[string]float32{
	"happy": {
		"mouthSmile":  0.55,
		"cheekSquint": 0.3,
	},
	"surprised": {
		"browInnerUp": 0.6,
		"eyeWide":     0.45,
	},
	"thinking": {
		"browDown":   0.35,
		"mouthPress": 0.2,
	},
	"neutral": {},
}

// SetExpression applies a named preset of non-mouth blend-shape weights.
// "neutral" (or an unknown name) clears whatever the previous preset set.
// Models without expression channels make this a no-op.
func (c *Controller) SetExpression(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Clear the outgoing preset first so switching never accumulates.
	if prev, ok := expressionPresets[c.expression]; ok {
		c.setChannels(prev, 0)
	}

	preset, ok := expressionPresets[name]
	if !ok {
		c.expression = "neutral"
		return
	}
	c.expression = name
	for ch, w := range preset {
		c.setChannels(map[string]float32{ch: w}, w)
	}
}

func (c *Controller) setChannels(channels map[string]float32, weight float32) {
	if c.model == nil {
		return
	}
	for name := range channels {
		if mesh, idx, ok := c.model.FindChannel(name); ok {
			mesh.SetTargetWeight(idx, weight)
		}
	}
}

// Expression returns the active preset name.
func (c *Controller) Expression() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expression == "" {
		return "neutral"
	}
	return c.expression
}

// WaveActive reports whether the wave pulse is still running.
func (c *Controller) WaveActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waveRemaining > 0
}

// NodActive reports whether the nod pulse is still running.
func (c *Controller) NodActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodRemaining > 0
}

// Update advances every phase timer by dt seconds and returns the pose
// offsets for this frame. Idle sway and the listening pulse contribute
// unconditionally; wave and nod contribute while their pulses run.
func (c *Controller) Update(dt float32) Pose {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clock += dt

	pose := Pose{Scale: 1}

	// Idle sway: slow yaw drift plus a faint bob. Always on.
	swayPhase := float64(c.clock * idleSwayRate * 2 * math.Pi)
	pose.Rotation[1] += idleSwayAmplitude * float32(math.Sin(swayPhase))
	pose.Position[1] += 0.004 * float32(math.Sin(swayPhase*0.7))

	if c.listening {
		pulse := float32(math.Sin(float64(c.clock*listenPulseRate*2*math.Pi))) * listenPulseAmplitude
		pose.Scale += pulse
	}

	if c.nodRemaining > 0 {
		elapsed := NodDuration - c.nodRemaining
		// Two full dips over the pulse, eased out toward the end.
		envelope := c.nodRemaining / NodDuration
		pose.Rotation[0] += 0.2 * envelope * float32(math.Sin(float64(elapsed/NodDuration)*2*math.Pi*2))
		c.nodRemaining -= dt
	}

	if c.waveRemaining > 0 {
		elapsed := WaveDuration - c.waveRemaining
		envelope := c.waveRemaining / WaveDuration
		// No arm bone on a head rig, so the wave drives a roll-and-bob proxy.
		pose.Rotation[2] += 0.15 * envelope * float32(math.Sin(float64(elapsed/WaveDuration)*2*math.Pi*3))
		pose.Position[1] += 0.01 * envelope * float32(math.Sin(float64(elapsed/WaveDuration)*2*math.Pi*3))
		c.waveRemaining -= dt
	}

	c.updateBlink(dt)

	return pose
}

func (c *Controller) updateBlink(dt float32) {
	switch c.blink {
	case blinkOpen:
		if c.clock >= c.nextBlinkAt {
			c.blink = blinkClosing
			c.blinkProgress = 0
		}
	case blinkClosing:
		c.blinkProgress += dt / (blinkDuration * 0.4)
		if c.blinkProgress >= 1 {
			c.blinkProgress = 1
			c.blink = blinkOpening
		}
	case blinkOpening:
		c.blinkProgress -= dt / (blinkDuration * 0.6)
		if c.blinkProgress <= 0 {
			c.blinkProgress = 0
			c.blink = blinkOpen
			c.nextBlinkAt = c.clock + 2 + rand.Float32()*3
		}
	}

	if c.model == nil {
		return
	}
	for _, name := range []string{"eyeBlink", "blink"} {
		if mesh, idx, ok := c.model.FindChannel(name); ok {
			mesh.SetTargetWeight(idx, c.blinkProgress)
			return
		}
	}
}
