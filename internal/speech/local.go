package speech

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Boundary is one progress callback from the local synthesizer: the word
// being spoken and the index of its first character in the original text.
// Consumers must tolerate either granularity — some platforms report every
// character, others only word starts.
type Boundary struct {
	Word      string
	CharIndex int
}

// LocalSynthesizer is the fallback speech collaborator used when the cloud
// path fails. It has no real audio; it emits word-boundary callbacks on an
// estimated schedule so the caller can keep mouth motion and captions in
// step. The analog of a platform-native utterance API.
type LocalSynthesizer struct {
	logger    zerolog.Logger
	perWordMs float64
}

// NewLocalSynthesizer builds a synthesizer pacing words at perWordMs. Zero or
// negative selects the default conversational rate.
func NewLocalSynthesizer(perWordMs float64, logger zerolog.Logger) *LocalSynthesizer {
	if perWordMs <= 0 {
		perWordMs = 300
	}
	return &LocalSynthesizer{
		logger:    logger.With().Str("component", "local-synth").Logger(),
		perWordMs: perWordMs,
	}
}

// Speak emits one Boundary per word at the estimated cadence, adjusted by
// rateAdjust the same way the cloud path adjusts prosody. Blocks until the
// text is exhausted or ctx is cancelled. Empty text returns immediately.
func (l *LocalSynthesizer) Speak(ctx context.Context, text string, rateAdjust float64, onBoundary func(Boundary)) error {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	// Rates at or below -1 would zero or invert the divisor and produce a
	// ticker that never fires. Clamp to a slow-but-finite cadence.
	if rateAdjust < -0.9 {
		rateAdjust = -0.9
	}
	interval := l.perWordMs
	if rateAdjust != 0 {
		interval = interval / (1 + rateAdjust)
	}
	if interval < 50 {
		interval = 50
	}

	ticker := time.NewTicker(time.Duration(interval * float64(time.Millisecond)))
	defer ticker.Stop()

	charIdx := 0
	search := text
	consumed := 0
	for _, w := range words {
		rel := strings.Index(search, w)
		if rel >= 0 {
			charIdx = consumed + rel
			consumed += rel + len(w)
			search = search[rel+len(w):]
		}

		if onBoundary != nil {
			onBoundary(Boundary{Word: w, CharIndex: charIdx})
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
