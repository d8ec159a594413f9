package speech

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// DefaultVoiceID is used when the caller passes no voice.
const DefaultVoiceID = "en-US-JennyNeural"

// BuildSSML wraps text in the markup the cloud engine expects: a voice
// element plus a prosody rate attribute expressing the relative rate
// adjustment as a percentage.
func BuildSSML(text, voiceID string, rateAdjust float64) string {
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}

	// The voice id comes from config, so it goes through the same escaping
	// as the text before landing in an attribute.
	rate := fmt.Sprintf("%+.0f%%", rateAdjust*100)

	var b strings.Builder
	b.WriteString(`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="en-US">`)
	fmt.Fprintf(&b, `<voice name="%s">`, escapeXML(voiceID))
	fmt.Fprintf(&b, `<prosody rate="%s">`, rate)
	b.WriteString(escapeXML(text))
	b.WriteString(`</prosody></voice></speak>`)
	return b.String()
}

func escapeXML(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}
