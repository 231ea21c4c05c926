package httpjsonprovider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/riskstream/internal/connector"
)

func TestFetchDecodesJSONArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"id":"a"},{"id":"b"}]`))
	}))
	defer srv.Close()

	p := Provider{URL: srv.URL, Timeout: time.Second, MaxRetries: 1, client: srv.Client()}
	result, err := Fetch(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, "a", result.Items[0]["id"])
}

func TestFetchSurfacesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := Provider{URL: srv.URL, Timeout: time.Second, MaxRetries: 1, client: srv.Client()}
	_, err := Fetch(context.Background(), p)
	require.Error(t, err)
}

func TestChangeDetectIsStableForEquivalentItems(t *testing.T) {
	a := Item{"id": "a", "value": 1.0}
	b := Item{"value": 1.0, "id": "a"}

	hashA, err := ChangeDetect(a)
	require.NoError(t, err)
	hashB, err := ChangeDetect(b)
	require.NoError(t, err)
	assert.Equal(t, hashA, hashB)
}

func TestChangeDetectDiffersForDifferentItems(t *testing.T) {
	hashA, err := ChangeDetect(Item{"id": "a", "value": 1.0})
	require.NoError(t, err)
	hashB, err := ChangeDetect(Item{"id": "a", "value": 2.0})
	require.NoError(t, err)
	assert.NotEqual(t, hashA, hashB)
}

func TestTransformIsIdentity(t *testing.T) {
	in := Item{"id": "a"}
	out, err := Transform(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestNewFactoryRequiresURL(t *testing.T) {
	factory := NewFactory(nil, nil, nil)
	_, err := factory(connector.Spec{Name: "missing-url", ProviderConfig: map[string]string{}})
	require.Error(t, err)
}

func TestNewFactoryBuildsPoller(t *testing.T) {
	factory := NewFactory(nil, nil, nil)
	poller, err := factory(connector.Spec{
		Name:             "feed-1",
		OutputStream:     "raw-input-signals",
		RequestTimeoutMs: 1000,
		MaxRetries:       2,
		ProviderConfig:   map[string]string{"url": "http://example.invalid/feed"},
	})
	require.NoError(t, err)
	assert.NotNil(t, poller)
}

func TestTypeNameMatchesRegistryConstant(t *testing.T) {
	assert.Equal(t, "http_json", TypeName())
}
