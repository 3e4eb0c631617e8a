// Package alerting delivers best-effort incident messages for fatal
// data-integrity errors. Delivery failures are logged and swallowed; the
// job's non-zero exit is the authoritative failure signal.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Alerter posts incident messages to an external channel.
type Alerter interface {
	Alert(ctx context.Context, job, message string)
}

// WebhookAlerter posts JSON incident messages to a webhook URL.
type WebhookAlerter struct {
	url        string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewWebhookAlerter creates an alerter for the given webhook URL. An empty
// URL yields a no-op alerter so callers never branch.
func NewWebhookAlerter(url string, log zerolog.Logger) *WebhookAlerter {
	return &WebhookAlerter{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.With().Str("component", "alerting").Logger(),
	}
}

// Alert posts the incident message. Best-effort: errors are logged, never
// returned.
func (a *WebhookAlerter) Alert(ctx context.Context, job, message string) {
	if a.url == "" {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"job":     job,
		"message": message,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to encode alert payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to build alert request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.log.Warn().Err(err).Str("job", job).Msg("Alert delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.log.Warn().Int("status", resp.StatusCode).Str("job", job).Msg("Alert endpoint rejected message")
	}
}
