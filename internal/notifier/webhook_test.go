package notifier_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/riskstream/internal/deliverylog"
	"github.com/arc-self/riskstream/internal/domain"
	"github.com/arc-self/riskstream/internal/notifier"
)

func TestWebhookNotifySignsPayloadAndRecordsSuccess(t *testing.T) {
	const secret = "s3cr3t"
	var receivedSig string
	var receivedBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedSig = r.Header.Get("X-Arc-Signature")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logs := deliverylog.NewMemoryStore()
	w := notifier.NewWebhook(srv.URL, secret, logs, zap.NewNop())

	n, err := w.Notify(context.Background(), domain.MitigationPlan{EventID: "e1", Actions: []string{"reroute_affected_lanes"}})
	require.NoError(t, err)
	assert.Equal(t, "e1", n.EventID)
	assert.Equal(t, "webhook", n.Channel)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(receivedBody)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), receivedSig)

	entries := logs.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "success", entries[0].Status)
}

func TestWebhookNotifyRecordsFailureOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	logs := deliverylog.NewMemoryStore()
	w := notifier.NewWebhook(srv.URL, "secret", logs, zap.NewNop())

	_, err := w.Notify(context.Background(), domain.MitigationPlan{EventID: "e1"})
	assert.Error(t, err)

	entries := logs.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "failed", entries[0].Status)
}
