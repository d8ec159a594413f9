// Package engine composes the model rig, mouth actuation, speech, and
// gestures behind one update loop. Exactly one mouth source wins per tick:
// live streamed visemes, then the heuristic timeline, then clear.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/hgittham/talkingavatar/internal/bus"
	"github.com/hgittham/talkingavatar/internal/gesture"
	"github.com/hgittham/talkingavatar/internal/mouth"
	"github.com/hgittham/talkingavatar/internal/render"
	"github.com/hgittham/talkingavatar/internal/rig"
	"github.com/hgittham/talkingavatar/internal/speech"
)

// boundaryHoldMs is how long a boundary-driven shape stays up before the tick
// clear is allowed to take it down. Boundary callbacks arrive at word rate,
// far slower than the frame rate, so without the hold the shape would flash
// for a single frame.
const boundaryHoldMs = 120.0

// Options wire the engine's collaborators. Renderer may be nil for headless
// use; Streamer and Provider may be nil when only the heuristic path is
// wanted.
type Options struct {
	Renderer *render.Renderer
	Streamer speech.Streamer
	Provider speech.CredentialProvider
	Logger   zerolog.Logger

	// VoiceID and RateAdjust are the per-engine speech defaults.
	VoiceID    string
	RateAdjust float64
	Muted      bool

	// WatchModel arms a file watcher on loaded model assets so edits on disk
	// hot reload the avatar.
	WatchModel bool
}

// AvatarState aggregates everything the loaded model determines: the model
// itself, the actuator over its registry, and the gesture controller bound to
// its channels. Replaced wholesale on every load and torn down exactly once.
type AvatarState struct {
	Model    *rig.Model
	Actuator *mouth.Actuator
	Gestures *gesture.Controller
}

func newAvatarState(model *rig.Model) *AvatarState {
	var reg *rig.Registry
	if model != nil {
		reg = model.Registry
	}
	return &AvatarState{
		Model:    model,
		Actuator: mouth.NewActuator(reg),
		Gestures: gesture.NewController(model),
	}
}

// teardown releases the state's GPU-side resources. Safe on the empty state.
func (s *AvatarState) teardown() {
	if s.Model != nil {
		s.Model.Delete()
	}
}

// Engine owns the avatar's animation state. All mutation funnels through the
// public methods; Tick is the only place mouth weights are resolved against
// the source priority.
type Engine struct {
	log    zerolog.Logger
	events *bus.EventBus

	renderer *render.Renderer
	adapter  *speech.Adapter
	local    *speech.LocalSynthesizer
	provider speech.CredentialProvider

	voiceID    string
	rateAdjust float64
	muted      bool
	watchModel bool

	mu               sync.Mutex
	state            *AvatarState
	timeline         *mouth.Timeline
	mouthHoldUntilMs float64
	lastTickMs       float64
	needUpload       bool
	pendingReload    string
	localCancel      context.CancelFunc
	onSpeechText     func(string)

	watcher   *fsnotify.Watcher
	watchDone chan struct{}

	closeOnce sync.Once
	nowMs     func() float64
}

// New builds an engine with no model loaded. Every operation is valid in the
// no-model state; loading can happen any time later.
func New(opts Options) *Engine {
	e := &Engine{
		log:        opts.Logger.With().Str("component", "engine").Logger(),
		events:     bus.NewEventBus(),
		renderer:   opts.Renderer,
		provider:   opts.Provider,
		voiceID:    opts.VoiceID,
		rateAdjust: opts.RateAdjust,
		muted:      opts.Muted,
		watchModel: opts.WatchModel,
		state:      newAvatarState(nil),
		timeline:   &mouth.Timeline{},
		local:      speech.NewLocalSynthesizer(mouth.PerWordMs, opts.Logger),
		nowMs: func() float64 {
			return float64(time.Now().UnixNano()) / 1e6
		},
	}
	if opts.Streamer != nil {
		e.adapter = speech.NewAdapter(e.state.Actuator, opts.Streamer, opts.Logger)
	}
	return e
}

// LoadModel loads a glTF/GLB asset and swaps all rig-dependent state
// wholesale: registry, actuator, gesture controller, and the live adapter's
// sink. On failure the previous model stays in place and keeps animating.
func (e *Engine) LoadModel(path string) error {
	model, err := rig.Load(path)
	if err != nil {
		e.log.Error().Err(err).Str("path", path).Msg("model load failed, keeping previous model")
		e.events.Publish(bus.Event{Type: bus.EventTypeModelFailed, Data: map[string]any{"path": path, "error": err.Error()}})
		return err
	}
	e.swapModel(model)
	e.log.Info().Str("path", path).
		Bool("degraded", model.Registry.Degraded()).
		Bool("empty", model.Registry.Empty()).
		Msg("model loaded")
	e.events.Publish(bus.Event{Type: bus.EventTypeModelLoaded, Data: map[string]any{"path": path}})

	if e.watchModel {
		if err := e.armWatcher(path); err != nil {
			e.log.Warn().Err(err).Msg("model hot reload unavailable")
		}
	}
	return nil
}

// SetModel installs a pre-built model. Used by tests and the placeholder
// path; performs the same wholesale swap as LoadModel.
func (e *Engine) SetModel(model *rig.Model) {
	e.swapModel(model)
}

func (e *Engine) swapModel(model *rig.Model) {
	next := newAvatarState(model)

	e.mu.Lock()
	old := e.state
	e.state = next
	e.timeline.Stop()
	e.mouthHoldUntilMs = 0
	e.needUpload = true
	e.mu.Unlock()

	if e.adapter != nil {
		e.adapter.SetSink(next.Actuator)
	}
	old.teardown()
}

// Model returns the currently loaded model, nil when none.
func (e *Engine) Model() *rig.Model {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Model
}

// armWatcher (re)arms the fsnotify watcher on the model file. Editors and
// exporters replace files rather than rewriting them in place, so create
// events count as much as writes.
func (e *Engine) armWatcher(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.watcher != nil {
		e.watcher.Close()
		<-e.watchDone
		e.watcher = nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return err
	}

	e.watcher = w
	e.watchDone = make(chan struct{})
	go func() {
		defer close(e.watchDone)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					e.mu.Lock()
					e.pendingReload = path
					e.mu.Unlock()
					e.log.Info().Str("path", path).Msg("model changed on disk, reload queued")
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				e.log.Warn().Err(err).Msg("model watcher error")
			}
		}
	}()
	return nil
}

// Events exposes the engine's event bus for observers like captions or a
// control UI.
func (e *Engine) Events() *bus.EventBus {
	return e.events
}

// Wave triggers the wave gesture.
func (e *Engine) Wave() {
	e.mu.Lock()
	g := e.state.Gestures
	e.mu.Unlock()
	g.Wave()
	e.events.Publish(bus.Event{Type: bus.EventTypeGestureTriggered, Data: map[string]any{"gesture": "wave"}})
}

// Nod triggers the nod gesture.
func (e *Engine) Nod() {
	e.mu.Lock()
	g := e.state.Gestures
	e.mu.Unlock()
	g.Nod()
	e.events.Publish(bus.Event{Type: bus.EventTypeGestureTriggered, Data: map[string]any{"gesture": "nod"}})
}

// SetListening toggles the listening pulse.
func (e *Engine) SetListening(on bool) {
	e.mu.Lock()
	g := e.state.Gestures
	e.mu.Unlock()
	g.SetListening(on)
	e.events.Publish(bus.Event{Type: bus.EventTypeListeningChanged, Data: map[string]any{"listening": on}})
}

// SetExpression applies a named expression preset.
func (e *Engine) SetExpression(name string) {
	e.mu.Lock()
	g := e.state.Gestures
	e.mu.Unlock()
	g.SetExpression(name)
	e.events.Publish(bus.Event{Type: bus.EventTypeExpressionChanged, Data: map[string]any{"expression": g.Expression()}})
}

// OnSpeechText registers a callback fired with the text of every speak
// request, for captions or logging.
func (e *Engine) OnSpeechText(fn func(string)) {
	e.mu.Lock()
	e.onSpeechText = fn
	e.mu.Unlock()
}

// DriveMouthStart builds a heuristic timeline for text and starts it now.
// Replaces any running timeline.
func (e *Engine) DriveMouthStart(text string, hintMs float64) {
	now := e.nowMs()
	e.mu.Lock()
	e.timeline = mouth.Build(text, hintMs)
	e.timeline.Start(now)
	e.mu.Unlock()
}

// SetMouthByChar applies the shape for one spoken character, holding it
// briefly so the word-rate boundary cadence survives the frame-rate clear.
func (e *Engine) SetMouthByChar(r rune) {
	shape, intensity := mouth.ShapeForChar(r)
	e.mu.Lock()
	act := e.state.Actuator
	if shape != "" {
		e.mouthHoldUntilMs = e.nowMs() + boundaryHoldMs
	}
	e.mu.Unlock()
	if shape != "" {
		act.Apply(shape, intensity)
	}
}

// StopMouth halts every mouth source: the live session, the timeline, the
// local fallback, and any boundary hold. Leaves the mouth cleared.
func (e *Engine) StopMouth() {
	e.mu.Lock()
	e.timeline.Stop()
	e.mouthHoldUntilMs = 0
	cancel := e.localCancel
	e.localCancel = nil
	act := e.state.Actuator
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if e.adapter != nil {
		e.adapter.Stop()
	}
	act.Clear()
}

// Speak runs the full speech pipeline for text: the streamed cloud path when
// a streamer and provider are wired, falling back to the heuristic timeline
// paced by the local synthesizer when the cloud path fails. Returns
// immediately; failures surface in logs and the fallback, never to the
// caller.
func (e *Engine) Speak(ctx context.Context, text string) {
	e.mu.Lock()
	notify := e.onSpeechText
	provider := e.provider
	e.mu.Unlock()

	if notify != nil {
		notify(text)
	}
	e.events.Publish(bus.Event{Type: bus.EventTypeSpeechStarted, Data: map[string]any{"text": text}})

	if e.adapter == nil || provider == nil {
		e.speakFallback(ctx, text)
		return
	}

	s := e.adapter.Speak(ctx, text, provider, speech.Options{
		Muted:      e.muted,
		VoiceID:    e.voiceID,
		RateAdjust: e.rateAdjust,
	})

	go func() {
		err := s.Wait(ctx)
		switch {
		case err == nil:
			e.events.Publish(bus.Event{Type: bus.EventTypeSpeechEnded, Data: map[string]any{"text": text}})
		case ctx.Err() != nil, err == speech.ErrStopped:
			return
		default:
			e.log.Warn().Err(err).Msg("streamed speech failed, using heuristic timeline")
			e.events.Publish(bus.Event{Type: bus.EventTypeSpeechFallback, Data: map[string]any{"text": text, "error": err.Error()}})
			e.speakFallback(ctx, text)
		}
	}()
}

// speakFallback starts the heuristic timeline and paces boundary shapes with
// the local synthesizer on top of it. The timeline alone would carry the
// mouth; the boundaries keep it roughly aligned with the estimated word
// cadence.
func (e *Engine) speakFallback(ctx context.Context, text string) {
	e.DriveMouthStart(text, 0)

	localCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	if e.localCancel != nil {
		e.localCancel()
	}
	e.localCancel = cancel
	e.mu.Unlock()

	go func() {
		defer cancel()
		err := e.local.Speak(localCtx, text, e.rateAdjust, func(b speech.Boundary) {
			for _, r := range b.Word {
				e.SetMouthByChar(r)
				break
			}
		})
		if err != nil && localCtx.Err() == nil {
			e.log.Warn().Err(err).Msg("local synthesizer failed")
		}
	}()
}

// Speaking reports whether any mouth source is currently active.
func (e *Engine) Speaking() bool {
	if e.adapter != nil && e.adapter.Speaking() {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeline.Active()
}

// Tick advances one frame at nowMs and returns the gesture pose for it.
// Source priority for the mouth: a live streamed session owns the mouth
// outright (its events apply between ticks); otherwise the timeline; with
// neither active and no boundary hold pending, the mouth clears.
func (e *Engine) Tick(nowMs float64) gesture.Pose {
	e.mu.Lock()
	dt := float32(0)
	if e.lastTickMs > 0 && nowMs > e.lastTickMs {
		dt = float32(nowMs-e.lastTickMs) / 1000
	}
	e.lastTickMs = nowMs

	reload := e.pendingReload
	e.pendingReload = ""
	e.mu.Unlock()

	if reload != "" {
		if model, err := rig.Load(reload); err != nil {
			e.log.Error().Err(err).Str("path", reload).Msg("hot reload failed, keeping previous model")
			e.events.Publish(bus.Event{Type: bus.EventTypeModelFailed, Data: map[string]any{"path": reload, "error": err.Error()}})
		} else {
			e.swapModel(model)
			e.log.Info().Str("path", reload).Msg("model hot reloaded")
			e.events.Publish(bus.Event{Type: bus.EventTypeModelReloaded, Data: map[string]any{"path": reload}})
		}
	}

	// The timeline resolves under the engine lock so Stop and DriveMouthStart
	// from other goroutines serialize against the frame.
	e.mu.Lock()
	g := e.state.Gestures
	act := e.state.Actuator
	hold := e.mouthHoldUntilMs
	shape, intensity, tlOK := e.timeline.Tick(nowMs)
	e.mu.Unlock()

	pose := g.Update(dt)

	liveSpeaking := e.adapter != nil && e.adapter.Speaking()
	if !liveSpeaking {
		if tlOK {
			act.Apply(shape, intensity)
		} else if nowMs >= hold {
			act.Clear()
		}
	}

	return pose
}

// Close releases everything the engine owns. Idempotent; callable from any
// state, including mid-speech.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.StopMouth()

		e.mu.Lock()
		w := e.watcher
		done := e.watchDone
		e.watcher = nil
		state := e.state
		e.state = newAvatarState(nil)
		e.mu.Unlock()

		if w != nil {
			w.Close()
			<-done
		}
		state.teardown()
		if e.renderer != nil {
			e.renderer.Shutdown()
		}
		e.log.Info().Msg("engine closed")
	})
}
