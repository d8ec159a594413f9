package speech

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultVisemeHold is how long a shape stays applied after its event before
// the automatic clear fires, so shapes do not stick across gaps in the event
// stream.
const DefaultVisemeHold = 70 * time.Millisecond

// Session is the handle to one in-flight streamed-speech request. Its outcome
// resolves exactly once: nil on completed playback, a wrapped ErrCredential /
// ErrSynthesis on failure, ErrStopped when superseded or stopped.
type Session struct {
	cancel context.CancelFunc

	outcome chan error
	done    chan struct{}
	once    sync.Once
}

// Outcome returns the buffered single-value outcome channel.
func (s *Session) Outcome() <-chan error {
	return s.outcome
}

// Wait blocks for the outcome or the caller's context.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case err := <-s.outcome:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) finish(err error) {
	s.once.Do(func() { s.outcome <- err })
}

// terminate cancels the session and waits for its goroutine to exit, so no
// stale viseme callback can fire after terminate returns.
func (s *Session) terminate() {
	s.cancel()
	<-s.done
}

// Adapter turns streamed viseme events into mouth shapes. At most one session
// is live at a time: Speak terminates any prior session before starting the
// next, and stale sessions can no longer touch the sink once superseded.
type Adapter struct {
	streamer Streamer
	logger   zerolog.Logger
	hold     time.Duration

	mu         sync.Mutex
	sink       ShapeSink
	current    *Session
	clearTimer *time.Timer
	onAudio    func([]byte)
}

// NewAdapter wires a sink and a streamer. A nil sink panics early rather than
// on the first event.
func NewAdapter(sink ShapeSink, streamer Streamer, logger zerolog.Logger) *Adapter {
	if sink == nil {
		panic("speech: nil ShapeSink")
	}
	return &Adapter{
		streamer: streamer,
		logger:   logger.With().Str("component", "viseme-adapter").Logger(),
		hold:     DefaultVisemeHold,
		sink:     sink,
	}
}

// SetSink swaps the shape sink, e.g. after a model reload. The mouth on the
// old sink is left cleared.
func (a *Adapter) SetSink(sink ShapeSink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sink != nil {
		a.sink.Clear()
	}
	a.sink = sink
}

// SetAudioSink registers a playback callback for decoded audio chunks. Unset
// or muted requests discard audio; viseme events still fire either way.
func (a *Adapter) SetAudioSink(fn func([]byte)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onAudio = fn
}

// Speak starts a streamed-speech session for text. It never fails
// synchronously: credential fetch, synthesis, and playback failures all
// surface on the returned session's outcome, so the caller can fall back to
// the heuristic timeline path. Any prior session is terminated first.
func (a *Adapter) Speak(ctx context.Context, text string, provider CredentialProvider, opts Options) *Session {
	sessCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		cancel:  cancel,
		outcome: make(chan error, 1),
		done:    make(chan struct{}),
	}

	a.mu.Lock()
	prev := a.current
	a.current = s
	a.mu.Unlock()

	if prev != nil {
		prev.terminate()
	}

	go a.run(sessCtx, s, text, provider, opts)
	return s
}

func (a *Adapter) run(ctx context.Context, s *Session, text string, provider CredentialProvider, opts Options) {
	defer close(s.done)
	defer a.clearIfCurrent(s)

	if provider == nil {
		s.finish(fmt.Errorf("%w: no credential provider", ErrCredential))
		return
	}

	cred, err := provider(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("credential fetch failed")
		s.finish(fmt.Errorf("%w: %v", ErrCredential, err))
		return
	}

	ssml := BuildSSML(text, opts.VoiceID, opts.RateAdjust)

	var onAudio func([]byte)
	if !opts.Muted {
		a.mu.Lock()
		onAudio = a.onAudio
		a.mu.Unlock()
	}

	err = a.streamer.Stream(ctx, cred, ssml, func(ev VisemeEvent) {
		a.handleViseme(s, ev)
	}, onAudio)

	switch {
	case ctx.Err() != nil:
		s.finish(ErrStopped)
	case err != nil:
		a.logger.Warn().Err(err).Msg("streaming synthesis failed")
		s.finish(fmt.Errorf("%w: %v", ErrSynthesis, err))
	default:
		s.finish(nil)
	}
}

// handleViseme applies the shape for one raw event and schedules the
// automatic clear. Events from superseded sessions are dropped.
func (a *Adapter) handleViseme(s *Session, ev VisemeEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != s || a.sink == nil {
		return
	}
	if a.clearTimer != nil {
		a.clearTimer.Stop()
	}

	bucket, closed := shapeForViseme(ev.ID)
	if closed {
		a.sink.Clear()
		return
	}
	a.sink.Apply(bucket.Shape, bucket.Intensity)

	a.clearTimer = time.AfterFunc(a.hold, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.current == s && a.sink != nil {
			a.sink.Clear()
		}
	})
}

// clearIfCurrent clears the mouth when a session reaches a terminal state,
// unless a newer session has already taken over.
func (a *Adapter) clearIfCurrent(s *Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != s {
		return
	}
	if a.clearTimer != nil {
		a.clearTimer.Stop()
		a.clearTimer = nil
	}
	if a.sink != nil {
		a.sink.Clear()
	}
}

// Speaking reports whether a session is currently live.
func (a *Adapter) Speaking() bool {
	a.mu.Lock()
	s := a.current
	a.mu.Unlock()
	if s == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Stop terminates the current session, if any, and leaves the mouth cleared.
// Safe to call at any time, including with nothing active.
func (a *Adapter) Stop() {
	a.mu.Lock()
	s := a.current
	a.mu.Unlock()
	if s != nil {
		s.terminate()
	}
	a.mu.Lock()
	if a.sink != nil {
		a.sink.Clear()
	}
	a.mu.Unlock()
}
