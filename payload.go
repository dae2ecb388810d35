package resque

import (
	"encoding/json"
	"fmt"
)

// Payload is the wire record enqueued onto a Redis list, matching
// spec.md §6's shape: {"class": ..., "args": [...], "id": ..., "queue": ...}.
type Payload struct {
	Class string        `json:"class"`
	Args  []interface{} `json:"args"`
	ID    string         `json:"id"`
	Queue string         `json:"queue,omitempty"`
}

// EncodePayload serializes a Payload to its JSON wire form. Encoding and
// decoding must round-trip exactly for any value that is a finite tree of
// strings, numbers, booleans, nulls, sequences, and string-keyed maps —
// encoding/json already guarantees this for []interface{}/map[string]interface{},
// so no custom codec is needed (spec.md §4.B).
func EncodePayload(p *Payload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("resque: encode payload: %w", err)
	}
	return string(b), nil
}

// DecodePayload parses a queue entry back into a Payload. It only does the
// mechanical decode: a JSON syntax error is returned as is (reserve.go logs
// it and discards the entry), and a payload without "class" decodes
// without error.
func DecodePayload(raw string) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
