package endpoint

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerRoutesByHostHeader(t *testing.T) {
	sim, _ := newTestSimulator(t)
	ts := httptest.NewServer(NewServer(":0", sim).Routes())
	defer ts.Close()

	get := func(host string) (*http.Response, string) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
		require.NoError(t, err)
		req.Host = host
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp, string(body)
	}

	resp, body := get("google.com")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hi from google.com", body)

	// Port in the Host header is stripped before routing.
	resp, body = get("google.com:8080")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hi from google.com", body)

	resp, body = get("nosuchname.example")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "unknown")
}

func TestServerHealthRoute(t *testing.T) {
	sim, _ := newTestSimulator(t)
	ts := httptest.NewServer(NewServer(":0", sim).Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
}
