package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertBounceRate      AlertType = "bounce_rate"
	AlertStalledSearches AlertType = "stalled_searches"
	AlertDraftBacklog    AlertType = "draft_backlog"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns a Snapshot into alerts and posts them to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Thresholds returns the collection thresholds for this config.
func (a *Alerter) Thresholds() Thresholds {
	return Thresholds{
		StallAfter: time.Duration(a.cfg.StallAfterHours) * time.Hour,
		BounceRate: a.cfg.BounceRateThreshold,
		MinSent:    a.cfg.MinSent,
	}
}

// Evaluate returns the alerts a snapshot triggers.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	for _, hb := range snap.HighBounce {
		alerts = append(alerts, Alert{
			Type:     AlertBounceRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Campaign %q bounce rate %.1f%% exceeds threshold %.1f%% (%d sent)",
				hb.Name, hb.BounceRate, a.cfg.BounceRateThreshold, hb.Sent,
			),
			Details: map[string]any{
				"campaign_id": hb.CampaignID,
				"bounce_rate": hb.BounceRate,
				"threshold":   a.cfg.BounceRateThreshold,
				"sent":        hb.Sent,
			},
			Timestamp: now,
		})
	}

	if n := len(snap.StalledSearches); n > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertStalledSearches,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d lead search(es) still unfinished after %dh",
				n, snap.StallAfterHours,
			),
			Details: map[string]any{
				"job_ids":   snap.StalledSearches,
				"timed_out": snap.TimedOutSearches,
			},
			Timestamp: now,
		})
	}

	// Drafts without a pending search will never be activated by a follow-up.
	if orphaned := snap.CampaignsDraft - snap.PendingSearches; orphaned > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertDraftBacklog,
			Severity: "low",
			Message:  fmt.Sprintf("%d draft campaign(s) have no pending lead search", orphaned),
			Details: map[string]any{
				"drafts":           snap.CampaignsDraft,
				"pending_searches": snap.PendingSearches,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
