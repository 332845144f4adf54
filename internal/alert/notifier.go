package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// SyncFailure describes a failed reconciliation run for the ops channel.
type SyncFailure struct {
	GameKey      string
	GameName     string
	Reason       string
	LastSyncedAt *time.Time
	OccurredAt   time.Time
}

// Notifier posts sync failures to a Slack-compatible webhook. All methods are
// best effort: they log and swallow errors, and no-op when no webhook is
// configured.
type Notifier struct {
	WebhookURL string
	HTTP       *http.Client
	Logger     *zap.Logger
}

var defaultHTTP = &http.Client{Timeout: 10 * time.Second}

func (n *Notifier) Configured() bool {
	return n != nil && n.WebhookURL != ""
}

// NotifySyncFailure sends the rich block payload first and falls back to a
// minimal text payload if the webhook rejects it.
func (n *Notifier) NotifySyncFailure(ctx context.Context, failure SyncFailure) {
	if !n.Configured() {
		return
	}

	if err := n.post(ctx, richPayload(failure)); err == nil {
		return
	} else if n.Logger != nil {
		n.Logger.Debug("rich alert payload rejected, falling back",
			zap.String("game_key", failure.GameKey), zap.Error(err))
	}

	if err := n.post(ctx, fallbackPayload(failure)); err != nil && n.Logger != nil {
		n.Logger.Warn("sync failure alert could not be delivered",
			zap.String("game_key", failure.GameKey), zap.Error(err))
	}
}

func (n *Notifier) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := n.HTTP
	if client == nil {
		client = defaultHTTP
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook http %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

func richPayload(failure SyncFailure) map[string]any {
	lastSynced := "never"
	if failure.LastSyncedAt != nil {
		lastSynced = failure.LastSyncedAt.UTC().Format(time.RFC3339)
	}
	return map[string]any{
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("Sync failed: %s", failure.GameName),
				},
			},
			{
				"type": "section",
				"fields": []map[string]any{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Game:*\n%s", failure.GameKey)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Last good sync:*\n%s", lastSynced)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:*\n%s", failure.Reason)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*At:*\n%s", failure.OccurredAt.UTC().Format(time.RFC3339))},
				},
			},
		},
	}
}

func fallbackPayload(failure SyncFailure) map[string]any {
	lastSynced := "never"
	if failure.LastSyncedAt != nil {
		lastSynced = failure.LastSyncedAt.UTC().Format(time.RFC3339)
	}
	return map[string]any{
		"text": fmt.Sprintf("Sync failed for %s (%s): %s (last good sync %s)",
			failure.GameName, failure.GameKey, failure.Reason, lastSynced),
	}
}
