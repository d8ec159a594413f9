package mouth

import (
	"strings"
	"testing"
	"unicode"

	"github.com/hgittham/talkingavatar/internal/rig"
)

func TestBuildEmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "\t\n"} {
		tl := Build(text, 0)
		if len(tl.Events) != 0 {
			t.Errorf("Build(%q): got %d events, want 0", text, len(tl.Events))
		}
		tl.Start(0)
		if tl.Active() {
			t.Errorf("Build(%q): empty timeline must not activate", text)
		}
	}
}

func TestBuildDurationClamps(t *testing.T) {
	if tl := Build("hi", 0); tl.DurationMs != MinDurationMs {
		t.Errorf("short text duration = %v, want min %v", tl.DurationMs, MinDurationMs)
	}

	long := strings.Repeat("word ", 100)
	if tl := Build(long, 0); tl.DurationMs != MaxDurationMs {
		t.Errorf("long text duration = %v, want max %v", tl.DurationMs, MaxDurationMs)
	}

	if tl := Build("three word phrase", 0); tl.DurationMs != MinDurationMs {
		// 3 * 300 = 900, below the floor
		t.Errorf("duration = %v, want %v", tl.DurationMs, MinDurationMs)
	}

	if tl := Build("hello", 5000); tl.DurationMs != 5000 {
		t.Errorf("hint should bypass the estimate, got %v", tl.DurationMs)
	}
}

func TestBuildEventShapes(t *testing.T) {
	tl := Build("aei", 0)
	want := []rig.ShapeLabel{rig.ShapeA, rig.ShapeE, rig.ShapeI}
	if len(tl.Events) != len(want) {
		t.Fatalf("got %d events, want %d", len(tl.Events), len(want))
	}
	for i, ev := range tl.Events {
		if ev.Shape != want[i] {
			t.Errorf("event %d shape = %s, want %s", i, ev.Shape, want[i])
		}
		if ev.Intensity != 0.9 {
			t.Errorf("vowel intensity = %v, want 0.9", ev.Intensity)
		}
	}
}

func TestBuildConsonantsAlternate(t *testing.T) {
	tl := Build("bcd", 0)
	if len(tl.Events) != 3 {
		t.Fatalf("got %d events", len(tl.Events))
	}
	if tl.Events[0].Shape != rig.ShapeE || tl.Events[1].Shape != rig.ShapeI || tl.Events[2].Shape != rig.ShapeE {
		t.Errorf("consonants should alternate E/I, got %s %s %s",
			tl.Events[0].Shape, tl.Events[1].Shape, tl.Events[2].Shape)
	}
	for _, ev := range tl.Events {
		if ev.Intensity != 0.5 {
			t.Errorf("consonant intensity = %v, want 0.5", ev.Intensity)
		}
	}
}

func TestBuildSymbolOnlyText(t *testing.T) {
	tl := Build("123 !!!", 0)
	if len(tl.Events) != 3 {
		t.Fatalf("symbol-only text should use the placeholder slots, got %d events", len(tl.Events))
	}
	for _, ev := range tl.Events {
		if ev.Shape != rig.ShapeA {
			t.Errorf("placeholder shape = %s, want A", ev.Shape)
		}
	}
}

func TestBuildEventsNonOverlapping(t *testing.T) {
	tl := Build("Hello beautiful world of avatars", 0)
	for i := 1; i < len(tl.Events); i++ {
		prev, cur := tl.Events[i-1], tl.Events[i]
		if prev.TimeMs+prev.DurationMs > cur.TimeMs {
			t.Errorf("event %d overlaps %d: %v+%v > %v",
				i-1, i, prev.TimeMs, prev.DurationMs, cur.TimeMs)
		}
	}
	last := tl.Events[len(tl.Events)-1]
	if last.TimeMs+last.DurationMs > tl.DurationMs {
		t.Errorf("final event runs past the timeline: %v > %v",
			last.TimeMs+last.DurationMs, tl.DurationMs)
	}
}

func TestTickMidSlotAndGap(t *testing.T) {
	tl := Build("aaaa", 2000) // 4 slots of 500ms, held 425ms each
	tl.Start(1000)

	shape, intensity, ok := tl.Tick(1000 + 200)
	if !ok || shape != rig.ShapeA || intensity != 0.9 {
		t.Errorf("mid-slot tick: shape=%s intensity=%v ok=%v", shape, intensity, ok)
	}

	// 460ms is inside slot 0's gap (after 425ms hold, before slot 1 at 500ms).
	if _, _, ok := tl.Tick(1000 + 460); ok {
		t.Error("tick inside the duty-cycle gap should be clear")
	}

	if shape, _, ok := tl.Tick(1000 + 510); !ok || shape != rig.ShapeA {
		t.Errorf("slot 1 tick: shape=%s ok=%v", shape, ok)
	}
}

func TestTickBeforeAnchor(t *testing.T) {
	tl := Build("hello", 0)
	tl.Start(5000)
	if _, _, ok := tl.Tick(4000); ok {
		t.Error("tick before the anchor should be clear")
	}
	if !tl.Active() {
		t.Error("pre-anchor tick must not deactivate the timeline")
	}
}

func TestTickGraceDeactivates(t *testing.T) {
	tl := Build("aa", 2000)
	tl.Start(0)

	last := tl.Events[len(tl.Events)-1]
	end := last.TimeMs + last.DurationMs

	if _, _, ok := tl.Tick(end + GraceMs - 1); ok {
		t.Error("inside grace should be clear but not done")
	}
	if !tl.Active() {
		t.Fatal("timeline deactivated before grace elapsed")
	}

	tl.Tick(end + GraceMs + 1)
	if tl.Active() {
		t.Error("timeline should self-deactivate past the grace window")
	}
	if _, _, ok := tl.Tick(end); ok {
		t.Error("deactivated timeline must stay clear")
	}
}

func TestStop(t *testing.T) {
	tl := Build("hello world", 0)
	tl.Start(0)
	tl.Stop()
	if tl.Active() {
		t.Error("Stop should deactivate")
	}
	if _, _, ok := tl.Tick(10); ok {
		t.Error("stopped timeline must not produce shapes")
	}
}

func TestShapeForChar(t *testing.T) {
	if shape, intensity := ShapeForChar('O'); shape != rig.ShapeO || intensity != 0.9 {
		t.Errorf("vowel: got %s/%v", shape, intensity)
	}
	if shape, intensity := ShapeForChar('b'); intensity != 0.5 || (shape != rig.ShapeE && shape != rig.ShapeI) {
		t.Errorf("consonant: got %s/%v", shape, intensity)
	}
	if shape, _ := ShapeForChar('7'); shape != "" {
		t.Errorf("digit should map to no shape, got %s", shape)
	}
	if shape, _ := ShapeForChar(' '); shape != "" {
		t.Errorf("space should map to no shape, got %s", shape)
	}
}

func TestBuildVowelsMatchShapeForChar(t *testing.T) {
	// Consonant alternation depends on position in Build and on the rune in
	// ShapeForChar, so only the vowel mapping is shared between the two.
	text := "gopher"
	tl := Build(text, 0)
	i := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		if strings.ContainsRune("aeiou", unicode.ToLower(r)) {
			shape, _ := ShapeForChar(r)
			if tl.Events[i].Shape != shape {
				t.Errorf("letter %c: timeline %s vs char map %s", r, tl.Events[i].Shape, shape)
			}
		}
		i++
	}
}
