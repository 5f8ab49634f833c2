package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/internal/metrics"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

func newTestClient(baseURL string) *Client {
	return New(Config{
		BaseURL:           baseURL,
		APIKey:            "test-key",
		Model:             "test-model",
		Timeout:           5 * time.Second,
		RequestsPerMinute: 6000,
	}, metrics.New(), logger.NewDefault("ai-test"))
}

func TestCompleteParsesContent(t *testing.T) {
	var gotAuth, gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel, _ = body["model"].(string)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"the analysis"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	answer, err := client.Complete(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	require.Equal(t, "the analysis", answer)
	require.Equal(t, "Bearer test-key", gotAuth)
	require.Equal(t, "test-model", gotModel)
}

func TestCompleteProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), "s", "p")
	require.True(t, apperr.IsKind(err, apperr.KindExternal))
}

func TestCompleteMissingContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Complete(context.Background(), "s", "p")
	require.True(t, apperr.IsKind(err, apperr.KindExternal))
}

func TestCompleteUnreachableProvider(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")
	_, err := client.Complete(context.Background(), "s", "p")
	require.True(t, apperr.IsKind(err, apperr.KindExternal))
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/models", r.URL.Path)
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	require.NoError(t, client.Ping(context.Background()))
}

func TestPingServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	require.Error(t, client.Ping(context.Background()))
}
