package classifier_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/classifier"
	"github.com/arc-self/riskstream/internal/domain"
)

func TestLLMClassifyResolvesValidCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{
					"role": "assistant",
					"content": `{"event_type":"WEATHER_DISRUPTION","severity_level":"HIGH",` +
						`"impact_region":"US-TX","expected_duration_hours":48,"probability":87,"model":"gpt-test"}`,
				}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := classifier.New(classifier.Config{
		UpstreamBaseURL:  srv.URL,
		Model:            "gpt-test",
		Timeout:          time.Second,
		MaxConcurrency:   1,
		MaxQueueSize:     1,
		MaxRetries:       1,
		RetryBaseDelayMs: 1,
	}, zap.NewNop())

	sr, err := c.Classify(context.Background(), domain.Signal{RawContent: "storm warning", GeographicScope: "US-TX"})
	require.NoError(t, err)
	assert.Equal(t, "WEATHER_DISRUPTION", sr.EventType)
	assert.Equal(t, 0.87, sr.ClassificationConfidence)
	assert.Equal(t, "gpt-test", sr.ModelVersion)
}

func TestLLMClassifyReturnsErrorWhenCompletionHasNoValidDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": `{"unrelated":"data"}`}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := classifier.New(classifier.Config{
		UpstreamBaseURL:  srv.URL,
		Model:            "gpt-test",
		Timeout:          time.Second,
		MaxConcurrency:   1,
		MaxQueueSize:     1,
		MaxRetries:       1,
		RetryBaseDelayMs: 1,
	}, zap.NewNop())

	_, err := c.Classify(context.Background(), domain.Signal{RawContent: "storm warning"})
	assert.ErrorIs(t, err, classifier.ErrNoJSONCandidate)
}
