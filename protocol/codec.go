package protocol

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Encode serializes an Envelope to a single line of text. The JSON form is
// wrapped in base64 so the framing newline can never occur inside the
// payload, whatever the content says.
func Encode(e Envelope) string {
	raw, err := json.Marshal(e)
	if err != nil {
		// Envelope only holds ints and strings; Marshal cannot fail on it.
		return ""
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// Decode parses one line back into an Envelope. Any input that is not a
// well-formed encoding of a known kind yields ok=false. This is a
// recoverable condition: a read-timeout probe surfaces here too, so Decode
// never returns an error or a partially populated envelope.
func Decode(line string) (Envelope, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Envelope{}, false
	}
	raw, err := base64.StdEncoding.DecodeString(line)
	if err != nil {
		return Envelope{}, false
	}
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, false
	}
	if !e.Kind.known() {
		return Envelope{}, false
	}
	return e, true
}
