package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// DefaultEndpointTemplate is the regional websocket endpoint of the cloud
// speech collaborator; the credential's region fills the placeholder.
const DefaultEndpointTemplate = "wss://%s.tts.voicegateway.dev/synthesis/v1/stream"

// CloudStreamer speaks the cloud engine's streaming protocol: one SSML
// request per connection, then a sequence of viseme/audio messages and a
// single terminal end or error message.
type CloudStreamer struct {
	endpointTemplate string
	handshakeTimeout time.Duration
	logger           zerolog.Logger
}

// NewCloudStreamer builds a streamer. An empty template selects the default
// endpoint.
func NewCloudStreamer(endpointTemplate string, logger zerolog.Logger) *CloudStreamer {
	if endpointTemplate == "" {
		endpointTemplate = DefaultEndpointTemplate
	}
	return &CloudStreamer{
		endpointTemplate: endpointTemplate,
		handshakeTimeout: 10 * time.Second,
		logger:           logger.With().Str("component", "cloud-streamer").Logger(),
	}
}

type synthRequest struct {
	Type string `json:"type"`
	SSML string `json:"ssml"`
}

type synthMessage struct {
	Type     string  `json:"type"`
	VisemeID int     `json:"visemeId,omitempty"`
	OffsetMs float64 `json:"audioOffsetMs,omitempty"`
	Audio    string  `json:"audio,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// Stream dials the regional endpoint with the ephemeral token, sends the
// SSML request, and forwards viseme and audio messages until the engine's
// terminal signal. The engine owns completion; there is no independent
// timeout here.
func (c *CloudStreamer) Stream(ctx context.Context, cred Credential, ssml string, onViseme func(VisemeEvent), onAudio func([]byte)) error {
	url := fmt.Sprintf(c.endpointTemplate, cred.Region)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cred.Token)

	dialer := websocket.Dialer{HandshakeTimeout: c.handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			c.logger.Error().Int("status", resp.StatusCode).Err(err).Msg("synthesis websocket dial failed")
		}
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(synthRequest{Type: "synthesize", SSML: ssml}); err != nil {
		return fmt.Errorf("send synthesis request: %w", err)
	}

	// Unblock ReadMessage when the session is cancelled out from under us.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read synthesis message: %w", err)
		}

		var msg synthMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn().Err(err).Msg("unparseable synthesis message, skipping")
			continue
		}

		switch msg.Type {
		case "viseme":
			if onViseme != nil {
				onViseme(VisemeEvent{ID: msg.VisemeID, OffsetMs: msg.OffsetMs})
			}
		case "audio":
			if onAudio != nil {
				if chunk, err := base64.StdEncoding.DecodeString(msg.Audio); err == nil {
					onAudio(chunk)
				}
			}
		case "end":
			return nil
		case "error":
			return fmt.Errorf("synthesis engine: %s", msg.Message)
		default:
			// Forward-compatible: ignore message types we don't know.
		}
	}
}
