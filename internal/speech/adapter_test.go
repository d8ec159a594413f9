package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgittham/talkingavatar/internal/rig"
)

type sinkCall struct {
	shape     rig.ShapeLabel
	intensity float32
	clear     bool
}

type recordingSink struct {
	mu    sync.Mutex
	calls []sinkCall
}

func (r *recordingSink) Apply(shape rig.ShapeLabel, intensity float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, sinkCall{shape: shape, intensity: intensity})
}

func (r *recordingSink) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, sinkCall{clear: true})
}

func (r *recordingSink) snapshot() []sinkCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sinkCall(nil), r.calls...)
}

// fakeStreamer replays scripted viseme IDs, then returns err. A non-nil
// block channel makes it hang after the events until cancelled.
type fakeStreamer struct {
	events []int
	err    error
	block  chan struct{}
}

func (f *fakeStreamer) Stream(ctx context.Context, cred Credential, ssml string, onViseme func(VisemeEvent), onAudio func([]byte)) error {
	for _, id := range f.events {
		onViseme(VisemeEvent{ID: id})
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func staticProvider(ctx context.Context) (Credential, error) {
	return Credential{Token: "tok", Region: "westus"}, nil
}

func TestSpeakAppliesVisemes(t *testing.T) {
	sink := &recordingSink{}
	adapter := NewAdapter(sink, &fakeStreamer{events: []int{2, 8}}, zerolog.Nop())

	s := adapter.Speak(context.Background(), "hello", staticProvider, Options{})
	require.NoError(t, s.Wait(context.Background()))

	calls := sink.snapshot()
	require.GreaterOrEqual(t, len(calls), 3)
	assert.Equal(t, rig.ShapeA, calls[0].shape)
	assert.Equal(t, rig.ShapeO, calls[1].shape)
	assert.True(t, calls[len(calls)-1].clear, "mouth should be cleared at session end")
}

func TestSpeakSilenceClearsMouth(t *testing.T) {
	sink := &recordingSink{}
	adapter := NewAdapter(sink, &fakeStreamer{events: []int{2, 0}}, zerolog.Nop())

	s := adapter.Speak(context.Background(), "hi", staticProvider, Options{})
	require.NoError(t, s.Wait(context.Background()))

	calls := sink.snapshot()
	require.GreaterOrEqual(t, len(calls), 2)
	assert.False(t, calls[0].clear)
	assert.True(t, calls[1].clear, "viseme id 0 must clear, not apply")
}

func TestSpeakCredentialFailure(t *testing.T) {
	sink := &recordingSink{}
	adapter := NewAdapter(sink, &fakeStreamer{}, zerolog.Nop())

	provider := func(ctx context.Context) (Credential, error) {
		return Credential{}, errors.New("endpoint unreachable")
	}

	s := adapter.Speak(context.Background(), "hello", provider, Options{})
	err := s.Wait(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredential)
}

func TestSpeakNilProvider(t *testing.T) {
	adapter := NewAdapter(&recordingSink{}, &fakeStreamer{}, zerolog.Nop())
	s := adapter.Speak(context.Background(), "hello", nil, Options{})
	assert.ErrorIs(t, s.Wait(context.Background()), ErrCredential)
}

func TestSpeakSynthesisFailure(t *testing.T) {
	adapter := NewAdapter(&recordingSink{}, &fakeStreamer{err: errors.New("engine exploded")}, zerolog.Nop())
	s := adapter.Speak(context.Background(), "hello", staticProvider, Options{})
	err := s.Wait(context.Background())
	assert.ErrorIs(t, err, ErrSynthesis)
}

func TestSecondSpeakSupersedesFirst(t *testing.T) {
	sink := &recordingSink{}
	first := &fakeStreamer{events: []int{2}, block: make(chan struct{})}
	adapter := NewAdapter(sink, first, zerolog.Nop())

	s1 := adapter.Speak(context.Background(), "first", staticProvider, Options{})
	require.True(t, adapter.Speaking())

	s2 := adapter.Speak(context.Background(), "second", staticProvider, Options{})

	assert.ErrorIs(t, s1.Wait(context.Background()), ErrStopped)

	close(first.block)
	require.NoError(t, s2.Wait(context.Background()))
}

func TestStop(t *testing.T) {
	sink := &recordingSink{}
	adapter := NewAdapter(sink, &fakeStreamer{events: []int{2}, block: make(chan struct{})}, zerolog.Nop())

	s := adapter.Speak(context.Background(), "hello", staticProvider, Options{})
	adapter.Stop()

	assert.ErrorIs(t, s.Wait(context.Background()), ErrStopped)
	assert.False(t, adapter.Speaking())

	calls := sink.snapshot()
	require.NotEmpty(t, calls)
	assert.True(t, calls[len(calls)-1].clear)

	// Stop with nothing active is fine.
	adapter.Stop()
}

func TestHoldTimerClears(t *testing.T) {
	sink := &recordingSink{}
	block := make(chan struct{})
	adapter := NewAdapter(sink, &fakeStreamer{events: []int{2}, block: block}, zerolog.Nop())
	adapter.hold = 10 * time.Millisecond

	adapter.Speak(context.Background(), "hello", staticProvider, Options{})

	require.Eventually(t, func() bool {
		calls := sink.snapshot()
		return len(calls) >= 2 && calls[len(calls)-1].clear
	}, time.Second, 5*time.Millisecond, "shape should auto-clear after the hold")

	close(block)
}

func TestNewAdapterNilSinkPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewAdapter(nil, &fakeStreamer{}, zerolog.Nop())
	})
}
