package usecase

import (
	"encoding/base64"
	"encoding/xml"
	"strings"
)

const audioDataURIPrefix = "data:audio/mp3;base64,"

// speechReplacer respells brand tokens so the voice pronounces them. The
// displayed reply keeps the original spelling.
var speechReplacer = strings.NewReplacer(
	"SPRNGPOD", "SPRINGPOD",
)

// ToSpeechText returns the text the voice should read for a reply.
func ToSpeechText(reply string) string {
	return speechReplacer.Replace(reply)
}

// BuildSSML wraps speech text in a <speak> envelope, escaping markup
// characters so the document stays well formed.
func BuildSSML(speechText string) string {
	var b strings.Builder
	b.WriteString("<speak>")
	_ = xml.EscapeText(&b, []byte(speechText))
	b.WriteString("</speak>")
	return b.String()
}

// AudioDataURI embeds mp3 bytes in a data URI playable by an <audio> element.
func AudioDataURI(audio []byte) string {
	return audioDataURIPrefix + base64.StdEncoding.EncodeToString(audio)
}
