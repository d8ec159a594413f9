// Package speech drives the mouth from streamed speech-engine events. The
// adapter consumes discrete viseme events from a cloud synthesis session and
// applies them immediately; a local fallback synthesizer emits coarse
// boundary callbacks when the cloud path is unavailable. All collaborator
// failures surface as a typed asynchronous outcome, never as a panic or a
// synchronous error, so the render loop is never interrupted by a speech or
// network failure.
package speech

import (
	"context"
	"errors"

	"github.com/hgittham/talkingavatar/internal/rig"
)

var (
	// ErrCredential reports that the ephemeral token fetch failed.
	ErrCredential = errors.New("speech credential fetch failed")
	// ErrSynthesis reports that the streaming synthesis session failed.
	ErrSynthesis = errors.New("speech synthesis failed")
	// ErrStopped reports that the session was terminated by a newer speak
	// request or an explicit stop.
	ErrStopped = errors.New("speech session stopped")
)

// Credential is the externally-issued ephemeral (token, region) pair required
// by the cloud speech collaborator.
type Credential struct {
	Token  string
	Region string
}

// CredentialProvider returns an ephemeral credential. Failure is a
// recoverable error for the adapter, not a crash.
type CredentialProvider func(ctx context.Context) (Credential, error)

// Options configure one speak request.
type Options struct {
	// Muted suppresses audio delivery; viseme events still fire.
	Muted bool
	// VoiceID selects the synthesis voice.
	VoiceID string
	// RateAdjust is a relative speaking-rate delta, e.g. -0.1 for 10% slower.
	// Zero means the engine default.
	RateAdjust float64
}

// ShapeSink receives mouth shapes. Satisfied by mouth.Actuator.
type ShapeSink interface {
	Apply(shape rig.ShapeLabel, intensity float32)
	Clear()
}

// VisemeEvent is one raw event from the speech engine: the engine's viseme
// identifier and its offset into the audio stream.
type VisemeEvent struct {
	ID       int
	OffsetMs float64
}

// Streamer runs one streaming synthesis request against the cloud
// collaborator, invoking onViseme for each event, and returns when the
// engine signals completion or failure.
type Streamer interface {
	Stream(ctx context.Context, cred Credential, ssml string, onViseme func(VisemeEvent), onAudio func([]byte)) error
}
