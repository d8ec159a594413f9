package speech

import (
	"github.com/hgittham/talkingavatar/internal/rig"
)

// visemeBucket pairs a canonical shape with the intensity it is held at.
type visemeBucket struct {
	Shape     rig.ShapeLabel
	Intensity float32
}

// visemeBuckets maps the speech engine's raw viseme identifiers onto the
// canonical shape set. Several raw ids share a bucket and the table is
// deliberately partial: the engine emits ids for consonant articulations this
// rig cannot express, and guessing entries for them looks worse than a
// neutral mouth. Unmapped ids fall back to neutralBucket. Id 0 is silence.
var visemeBuckets = map[int]visemeBucket{
	1:  {rig.ShapeA, 0.7}, // ae, ax, ah
	2:  {rig.ShapeA, 0.9}, // aa
	3:  {rig.ShapeO, 0.8}, // ao
	4:  {rig.ShapeE, 0.7}, // ey, eh, uh
	5:  {rig.ShapeE, 0.6}, // er
	6:  {rig.ShapeI, 0.7}, // y, iy, ih, ix
	7:  {rig.ShapeU, 0.8}, // w, uw
	8:  {rig.ShapeO, 0.8}, // ow
	9:  {rig.ShapeO, 0.7}, // aw
	10: {rig.ShapeO, 0.8}, // oy
	11: {rig.ShapeA, 0.8}, // ay
	13: {rig.ShapeO, 0.4}, // r
	16: {rig.ShapeU, 0.5}, // sh, ch, jh, zh
	21: {rig.ShapeE, 0.2}, // p, b, m (lips together)
}

// neutralBucket is the near-closed default for ids the table does not cover.
var neutralBucket = visemeBucket{rig.ShapeE, 0.3}

// silenceID closes the mouth instead of applying a shape.
const silenceID = 0

// shapeForViseme resolves a raw viseme id. closed is true for silence.
func shapeForViseme(id int) (bucket visemeBucket, closed bool) {
	if id == silenceID {
		return visemeBucket{}, true
	}
	if b, ok := visemeBuckets[id]; ok {
		return b, false
	}
	return neutralBucket, false
}
