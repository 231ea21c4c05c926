package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSignalResolvesCamelCaseAliases(t *testing.T) {
	raw := map[string]any{
		"eventId":         "e1",
		"sourceType":      "news",
		"rawContent":      "hello",
		"sourceReference": "ref-1",
		"region":          "US-TX",
		"confidence":      1.4,
	}
	s, err := NormalizeSignal(raw, time.Date(2026, 2, 23, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "e1", s.EventID)
	assert.Equal(t, SourceNews, s.SourceType)
	assert.Equal(t, "hello", s.RawContent)
	assert.Equal(t, "ref-1", s.SourceReference)
	assert.Equal(t, "US-TX", s.GeographicScope)
	assert.Equal(t, 1.0, s.SignalConfidence, "confidence must clamp to [0,1]")
}

func TestNormalizeSignalSynthesizesEventIDWhenAbsent(t *testing.T) {
	raw := map[string]any{
		"source_reference": "ref-1",
		"raw_content":      "hello",
		"timestamp_utc":    "2026-02-23T10:00:00Z",
	}
	s, err := NormalizeSignal(raw, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, s.EventID)

	s2, err := NormalizeSignal(raw, time.Now())
	require.NoError(t, err)
	assert.Equal(t, s.EventID, s2.EventID, "synthesized id must be stable for identical inputs")
}

func TestNormalizeSignalDefaultsSourceTypeToOther(t *testing.T) {
	s, err := NormalizeSignal(map[string]any{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, SourceOther, s.SourceType)
}
