package eventbus

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the on-wire representation of a record: a JSON-encoded
// payload plus an RFC 3339 publish timestamp. Consumers must tolerate
// additional fields — Decode only reads "payload" and "published_at_utc".
type Envelope struct {
	Payload        json.RawMessage `json:"payload"`
	PublishedAtUTC string          `json:"published_at_utc"`
}

// DecodedEnvelope is the result of a successful Decode: the original raw
// fields are kept alongside the typed PublishedAt so DLQ metadata can
// reference them without re-marshaling.
type DecodedEnvelope struct {
	Message     json.RawMessage
	PublishedAt time.Time
	Raw         []byte
}

// Encode serializes message to JSON and stamps it with the current time.
// The envelope is intentionally minimal — just payload and
// published_at_utc — so any log store can carry it as an opaque value.
func Encode(message any, now time.Time) ([]byte, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("eventbus: encode message: %w", err)
	}
	env := Envelope{
		Payload:        payload,
		PublishedAtUTC: now.UTC().Format(time.RFC3339Nano),
	}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("eventbus: encode envelope: %w", err)
	}
	return out, nil
}

// Decode requires a "payload" field parseable as JSON. Any failure yields
// an error with the raw bytes still available via the caller's own copy,
// so DLQ metadata can be attached without re-reading the stream.
func Decode(raw []byte) (DecodedEnvelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return DecodedEnvelope{}, fmt.Errorf("eventbus: decode envelope: %w", err)
	}
	if len(env.Payload) == 0 {
		return DecodedEnvelope{}, fmt.Errorf("eventbus: decode envelope: missing payload field")
	}
	var probe json.RawMessage
	if err := json.Unmarshal(env.Payload, &probe); err != nil {
		return DecodedEnvelope{}, fmt.Errorf("eventbus: decode envelope: payload is not valid JSON: %w", err)
	}

	publishedAt := time.Time{}
	if env.PublishedAtUTC != "" {
		if t, err := time.Parse(time.RFC3339Nano, env.PublishedAtUTC); err == nil {
			publishedAt = t
		} else if t, err := time.Parse(time.RFC3339, env.PublishedAtUTC); err == nil {
			publishedAt = t
		}
	}

	return DecodedEnvelope{
		Message:     env.Payload,
		PublishedAt: publishedAt,
		Raw:         raw,
	}, nil
}
