package speech

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgittham/talkingavatar/internal/rig"
)

func TestBuildSSML(t *testing.T) {
	ssml := BuildSSML("Hello <world> & friends", "en-US-GuyNeural", -0.1)

	assert.Contains(t, ssml, `<voice name="en-US-GuyNeural">`)
	assert.Contains(t, ssml, `<prosody rate="-10%">`)
	assert.Contains(t, ssml, "Hello &lt;world&gt; &amp; friends")
	assert.True(t, strings.HasPrefix(ssml, `<speak version="1.0"`))
	assert.True(t, strings.HasSuffix(ssml, `</prosody></voice></speak>`))
}

func TestBuildSSMLDefaults(t *testing.T) {
	ssml := BuildSSML("hi", "", 0)
	assert.Contains(t, ssml, DefaultVoiceID)
	assert.Contains(t, ssml, `rate="+0%"`)
}

func TestBuildSSMLEscapesVoiceID(t *testing.T) {
	ssml := BuildSSML("hi", `evil"><prosody rate="+900%`, 0)

	assert.NotContains(t, ssml, `name="evil">`, "attribute must not break out of the voice element")
	assert.Contains(t, ssml, "evil&#34;&gt;")
}

func TestShapeForViseme(t *testing.T) {
	bucket, closed := shapeForViseme(2)
	assert.False(t, closed)
	assert.Equal(t, rig.ShapeA, bucket.Shape)

	_, closed = shapeForViseme(silenceID)
	assert.True(t, closed, "id 0 is silence")

	bucket, closed = shapeForViseme(19) // unmapped consonant id
	assert.False(t, closed)
	assert.Equal(t, neutralBucket, bucket, "unmapped ids use the neutral bucket")
}

func TestHTTPCredentialProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		w.Write([]byte(`{"token":"ephemeral-tok","region":"westus"}`))
	}))
	defer srv.Close()

	provider := NewHTTPCredentialProvider(srv.URL, "key-123")
	cred, err := provider(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Credential{Token: "ephemeral-tok", Region: "westus"}, cred)
}

func TestHTTPCredentialProviderErrors(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		_, err := NewHTTPCredentialProvider(srv.URL, "")(context.Background())
		assert.Error(t, err)
	})

	t.Run("empty fields", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"token":"","region":""}`))
		}))
		defer srv.Close()

		_, err := NewHTTPCredentialProvider(srv.URL, "")(context.Background())
		assert.Error(t, err)
	})
}

func TestLocalSynthesizerBoundaries(t *testing.T) {
	synth := NewLocalSynthesizer(1, zerolog.Nop()) // 1ms/word floors to 50ms; keep the test fast anyway

	var got []Boundary
	err := synth.Speak(context.Background(), "go go gadget", 2.0, func(b Boundary) {
		got = append(got, b)
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, Boundary{Word: "go", CharIndex: 0}, got[0])
	assert.Equal(t, Boundary{Word: "go", CharIndex: 3}, got[1])
	assert.Equal(t, Boundary{Word: "gadget", CharIndex: 6}, got[2])
}

func TestLocalSynthesizerExtremeSlowdown(t *testing.T) {
	synth := NewLocalSynthesizer(1, zerolog.Nop())

	// A rate of -1 would zero the cadence divisor; the clamp keeps the
	// ticker finite so Speak still terminates.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []Boundary
	err := synth.Speak(ctx, "one two", -1, func(b Boundary) {
		got = append(got, b)
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLocalSynthesizerEmptyText(t *testing.T) {
	synth := NewLocalSynthesizer(0, zerolog.Nop())
	err := synth.Speak(context.Background(), "   ", 0, func(Boundary) {
		t.Fatal("no boundaries expected for empty text")
	})
	assert.NoError(t, err)
}

func TestLocalSynthesizerCancel(t *testing.T) {
	synth := NewLocalSynthesizer(10_000, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	fired := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- synth.Speak(ctx, "one two three", 0, func(Boundary) {
			select {
			case fired <- struct{}{}:
			default:
			}
		})
	}()

	<-fired
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
