// Package victim drives the infected-host side of the lab: it walks the
// generated domain batch, asks the detector for a verdict on each, and
// connects to the endpoint for anything allowed through.
package victim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/abhijithsuren/dga-lab-v2/internal/verdict"
)

// TransportError marks a check that never produced a verdict: the
// detector was unreachable, timed out, or answered garbage. Callers fall
// back to the configured default policy.
type TransportError struct {
	Domain string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("detector check for %s failed: %v", e.Domain, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client talks to the detector's /check endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Check asks the detector for a verdict on domain. A *TransportError is
// returned when no verdict could be obtained.
func (c *Client) Check(ctx context.Context, domain string) (verdict.Result, error) {
	payload, err := json.Marshal(map[string]string{
		"domain": domain,
		"origin": verdict.OriginGenerated,
	})
	if err != nil {
		return verdict.Result{}, &TransportError{Domain: domain, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/check", bytes.NewReader(payload))
	if err != nil {
		return verdict.Result{}, &TransportError{Domain: domain, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return verdict.Result{}, &TransportError{Domain: domain, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return verdict.Result{}, &TransportError{Domain: domain, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var result verdict.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return verdict.Result{}, &TransportError{Domain: domain, Err: err}
	}

	return result, nil
}
