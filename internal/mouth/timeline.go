package mouth

import (
	"strings"
	"unicode"

	"github.com/hgittham/talkingavatar/internal/rig"
)

// Calibration constants for the text-derived timing estimate. Tuned for a
// conversational speech rate; the whole path is an approximation, not
// phoneme-accurate lip sync.
const (
	PerWordMs     = 300.0
	MinDurationMs = 1400.0
	MaxDurationMs = 15000.0

	// DutyCycle is the fraction of each letter slot during which the shape
	// is held. The gap lets the mouth close briefly between letters instead
	// of freezing in one shape.
	DutyCycle = 0.85

	// GraceMs past the final event's end before the timeline deactivates
	// itself.
	GraceMs = 250.0

	vowelIntensity     = 0.9
	consonantIntensity = 0.5
)

// VisemeEvent is one scheduled mouth shape. Immutable once created.
type VisemeEvent struct {
	TimeMs     float64
	Shape      rig.ShapeLabel
	Intensity  float32
	DurationMs float64
}

// Timeline is an ordered viseme event sequence plus its playback anchor. At
// most one timeline is active per avatar; starting a new one replaces the
// previous.
type Timeline struct {
	Events     []VisemeEvent
	DurationMs float64

	anchorMs float64
	active   bool
}

var letterShapes = map[rune]rig.ShapeLabel{
	'a': rig.ShapeA,
	'e': rig.ShapeE,
	'i': rig.ShapeI,
	'o': rig.ShapeO,
	'u': rig.ShapeU,
}

// Consonants alternate between two narrow, near-closed shapes. Not
// phonetically accurate; it just keeps the mouth moving at letter rate.
var consonantShapes = [2]rig.ShapeLabel{rig.ShapeE, rig.ShapeI}

// Build converts text into a deterministic viseme timeline. With no duration
// hint the total length is estimated from the word count and clamped to the
// calibration bounds. Empty or whitespace-only text yields an empty timeline.
func Build(text string, hintMs float64) *Timeline {
	words := strings.Fields(text)
	if len(words) == 0 {
		return &Timeline{}
	}

	durationMs := hintMs
	if durationMs <= 0 {
		durationMs = clampF(float64(len(words))*PerWordMs, MinDurationMs, MaxDurationMs)
	}

	letters := make([]rune, 0, len(text))
	for _, r := range strings.ToLower(strings.Join(words, "")) {
		if unicode.IsLetter(r) {
			letters = append(letters, r)
		}
	}
	// Symbol-only input still gets a non-zero slot count.
	if len(letters) == 0 {
		letters = []rune("aaa")
	}

	slot := durationMs / float64(len(letters))
	events := make([]VisemeEvent, 0, len(letters))
	consonantIdx := 0
	for i, r := range letters {
		shape, isVowel := letterShapes[r]
		intensity := float32(vowelIntensity)
		if !isVowel {
			shape = consonantShapes[consonantIdx%2]
			consonantIdx++
			intensity = consonantIntensity
		}
		events = append(events, VisemeEvent{
			TimeMs:     float64(i) * slot,
			Shape:      shape,
			Intensity:  intensity,
			DurationMs: slot * DutyCycle,
		})
	}

	return &Timeline{Events: events, DurationMs: durationMs}
}

// Start anchors the timeline at nowMs and marks it active.
func (t *Timeline) Start(nowMs float64) {
	t.anchorMs = nowMs
	t.active = len(t.Events) > 0
}

// Stop deactivates the timeline.
func (t *Timeline) Stop() {
	t.active = false
}

// Active reports whether the timeline is still driving the mouth.
func (t *Timeline) Active() bool {
	return t.active
}

// Tick returns the shape to hold at nowMs. ok is false when the mouth should
// be clear: between letter slots, before the anchor, or after the end. Once
// nowMs passes the final event's end plus the grace window, the timeline
// deactivates itself and stays clear.
func (t *Timeline) Tick(nowMs float64) (shape rig.ShapeLabel, intensity float32, ok bool) {
	if !t.active {
		return "", 0, false
	}

	elapsed := nowMs - t.anchorMs
	if elapsed < 0 {
		return "", 0, false
	}

	last := t.Events[len(t.Events)-1]
	if elapsed > last.TimeMs+last.DurationMs+GraceMs {
		t.active = false
		return "", 0, false
	}

	// Most recent event wins, so search from the end.
	for i := len(t.Events) - 1; i >= 0; i-- {
		ev := t.Events[i]
		if ev.TimeMs > elapsed {
			continue
		}
		if elapsed <= ev.TimeMs+ev.DurationMs {
			return ev.Shape, ev.Intensity, true
		}
		return "", 0, false
	}
	return "", 0, false
}

// ShapeForChar maps a single character to its canonical shape the same way
// Build classifies letters. Used by boundary-driven sync, where an external
// speech collaborator reports the character currently being spoken.
func ShapeForChar(r rune) (rig.ShapeLabel, float32) {
	lower := unicode.ToLower(r)
	if shape, isVowel := letterShapes[lower]; isVowel {
		return shape, vowelIntensity
	}
	if !unicode.IsLetter(lower) {
		return "", 0
	}
	return consonantShapes[int(lower)%2], consonantIntensity
}

func clampF(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
