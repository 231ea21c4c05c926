package eventbus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleMessage struct {
	EventID string `json:"event_id"`
	Value   int    `json:"value"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := sampleMessage{EventID: "e1", Value: 42}
	raw, err := Encode(msg, time.Date(2026, 2, 23, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)

	var got sampleMessage
	require.NoError(t, json.Unmarshal(decoded.Message, &got))
	assert.Equal(t, msg, got)
	assert.Equal(t, 2026, decoded.PublishedAt.Year())
}

func TestDecodeTolerantOfExtraFields(t *testing.T) {
	raw := []byte(`{"payload":{"event_id":"e1"},"published_at_utc":"2026-02-23T10:00:00Z","extra":"ignored"}`)
	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event_id":"e1"}`, string(decoded.Message))
}

func TestDecodeMissingPayloadErrors(t *testing.T) {
	_, err := Decode([]byte(`{"published_at_utc":"2026-02-23T10:00:00Z"}`))
	assert.Error(t, err)
}

func TestDecodeMalformedJSONErrors(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}
