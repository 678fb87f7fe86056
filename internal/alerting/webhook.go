// Package alerting pushes high-confidence DGA detections to an external
// webhook so the lab can feed dashboards or chat channels.
package alerting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/abhijithsuren/dga-lab-v2/internal/config"
	"github.com/abhijithsuren/dga-lab-v2/internal/logging"
)

// Alert is the payload posted to the webhook endpoint.
type Alert struct {
	Domain     string    `json:"domain"`
	Verdict    string    `json:"verdict"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	Origin     string    `json:"origin"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier fires alerts at a single configured webhook with retries.
type Notifier struct {
	cfg    config.AlertingConfig
	client *http.Client
}

func NewNotifier(cfg config.AlertingConfig) *Notifier {
	return &Notifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.cfg.Enabled && n.cfg.WebhookURL != ""
}

// Notify posts the alert, retrying on failure. Alerts below the configured
// confidence floor are skipped. Callers run this off the request path.
func (n *Notifier) Notify(alert Alert) error {
	if !n.Enabled() {
		return nil
	}
	if alert.Confidence < n.cfg.MinConfidence {
		return nil
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("alerting: encoding alert: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= n.cfg.RetryCount; attempt++ {
		if err := n.post(payload); err == nil {
			logging.Info("alert delivered for %s (attempt %d)", alert.Domain, attempt)
			return nil
		} else {
			lastErr = err
			logging.Warn("alert attempt %d/%d for %s failed: %v", attempt, n.cfg.RetryCount, alert.Domain, err)
		}

		if attempt < n.cfg.RetryCount {
			time.Sleep(time.Duration(n.cfg.RetryDelaySeconds) * time.Second)
		}
	}

	logging.Error("alert for %s dropped after %d attempts: %v", alert.Domain, n.cfg.RetryCount, lastErr)
	return lastErr
}

func (n *Notifier) post(payload []byte) error {
	req, err := http.NewRequest(http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "dgalab-alert/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
