package alerting

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhijithsuren/dga-lab-v2/internal/config"
)

func testConfig(url string) config.AlertingConfig {
	return config.AlertingConfig{
		Enabled:        true,
		WebhookURL:     url,
		MinConfidence:  0.8,
		TimeoutSeconds: 1,
		RetryCount:     3,
	}
}

func TestNotifyDeliversAlert(t *testing.T) {
	var got Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	}))
	defer srv.Close()

	n := NewNotifier(testConfig(srv.URL))
	err := n.Notify(Alert{Domain: "bad.xyz", Verdict: "DGA", Confidence: 0.95, Source: "model"})
	require.NoError(t, err)
	assert.Equal(t, "bad.xyz", got.Domain)
	assert.Equal(t, "DGA", got.Verdict)
}

func TestNotifySkipsLowConfidence(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	n := NewNotifier(testConfig(srv.URL))
	require.NoError(t, n.Notify(Alert{Domain: "meh.com", Confidence: 0.5}))
	assert.Equal(t, int32(0), calls.Load())
}

func TestNotifyRetriesOnFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
	}))
	defer srv.Close()

	n := NewNotifier(testConfig(srv.URL))
	require.NoError(t, n.Notify(Alert{Domain: "bad.xyz", Confidence: 0.9}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNotifyReturnsErrorWhenExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(testConfig(srv.URL))
	assert.Error(t, n.Notify(Alert{Domain: "bad.xyz", Confidence: 0.9}))
}

func TestDisabledNotifierIsNoop(t *testing.T) {
	var n *Notifier
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Notify(Alert{Domain: "x.com", Confidence: 0.99}))

	n = NewNotifier(config.AlertingConfig{Enabled: false, WebhookURL: "http://example.invalid"})
	assert.False(t, n.Enabled())
}
