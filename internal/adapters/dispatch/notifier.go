// Package dispatch fans shortlists out as offer notifications and feeds
// inbound accept/decline callbacks into the match engine.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/enmusubi/enmusubi/internal/domain/model"
	"github.com/enmusubi/enmusubi/pkg/logger"
)

const webhookTimeout = 10 * time.Second

// Notifier delivers one offer to the notification channel. Transport and
// message rendering are the collaborator's concern.
type Notifier interface {
	Offer(ctx context.Context, o model.Offer) error
}

// LogNotifier records offers in the log. Default when no webhook is set.
type LogNotifier struct {
	logger logger.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: logger.Get().Named("notifier")}
}

// Offer logs the outbound offer.
func (n *LogNotifier) Offer(ctx context.Context, o model.Offer) error {
	n.logger.Info(ctx, "offer",
		logger.String("matchID", o.MatchID),
		logger.String("responderID", o.ResponderID),
		logger.String("summary", o.RequesterSummary),
	)
	return nil
}

// WebhookNotifier POSTs each offer as JSON to a configured URL, typically
// a chat service incoming webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier for url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: webhookTimeout},
	}
}

// Offer posts the offer payload. Non-2xx responses are errors.
func (n *WebhookNotifier) Offer(ctx context.Context, o model.Offer) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode offer: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build offer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post offer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post offer: unexpected status %d", resp.StatusCode)
	}
	return nil
}
