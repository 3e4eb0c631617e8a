package alerting

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookAlerterPostsPayload(t *testing.T) {
	received := make(chan map[string]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(body, &payload))
		received <- payload
	}))
	defer srv.Close()

	a := NewWebhookAlerter(srv.URL, zerolog.Nop())
	a.Alert(context.Background(), "resolve", "stale series for manifold/q1")

	payload := <-received
	assert.Equal(t, "resolve", payload["job"])
	assert.Equal(t, "stale series for manifold/q1", payload["message"])
	assert.NotEmpty(t, payload["time"])
}

func TestWebhookAlerterEmptyURLIsNoop(t *testing.T) {
	a := NewWebhookAlerter("", zerolog.Nop())
	// Must not panic or attempt any network call
	a.Alert(context.Background(), "score", "message")
}

func TestWebhookAlerterSwallowsDeliveryFailure(t *testing.T) {
	a := NewWebhookAlerter("http://127.0.0.1:1", zerolog.Nop())
	a.Alert(context.Background(), "curate", "message")
}

func TestWebhookAlerterSwallowsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a := NewWebhookAlerter(srv.URL, zerolog.Nop())
	a.Alert(context.Background(), "bankupdate", "message")
}
