// Package notify delivers run summaries to an operator webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bigrise-data/bigrise/internal/config"
	"github.com/bigrise-data/bigrise/internal/model"
)

// Message is the webhook payload sent after a pipeline run.
type Message struct {
	RunID      string              `json:"run_id"`
	TargetDate string              `json:"target_date"`
	Status     model.RunStatus     `json:"status"`
	Error      string              `json:"error,omitempty"`
	Collected  int                 `json:"collected"`
	Failed     []string            `json:"failed_collectors,omitempty"`
	Match      *model.MatchSummary `json:"match,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// Notifier posts run summaries to a webhook. A notifier with no URL
// configured is a no-op.
type Notifier struct {
	cfg    config.NotifyConfig
	client *http.Client
	log    *zap.Logger
}

// New creates a Notifier with the given config.
func New(cfg config.NotifyConfig) *Notifier {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    zap.L().With(zap.String("component", "notify")),
	}
}

// Enabled reports whether a webhook is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.WebhookURL != ""
}

// Send posts the message to the configured webhook. Delivery failures are
// logged, not returned: a run summary is never worth failing the run over.
func (n *Notifier) Send(ctx context.Context, msg *Message) {
	if !n.Enabled() {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	if err := n.post(ctx, msg); err != nil {
		n.log.Error("webhook delivery failed",
			zap.String("run_id", msg.RunID),
			zap.Error(err),
		)
		return
	}
	n.log.Info("run summary sent",
		zap.String("run_id", msg.RunID),
		zap.String("status", string(msg.Status)),
	)
}

func (n *Notifier) post(ctx context.Context, msg *Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "notify: marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
