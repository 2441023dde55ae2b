package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
	"github.com/josh-kwaku/credit-ledger/internal/logging"
)

// NotifierClient posts account events to a downstream notification webhook.
type NotifierClient struct {
	url        string
	httpClient *http.Client
}

func NewNotifierClient(url string) *NotifierClient {
	return &NotifierClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type notificationPayload struct {
	EventID   string          `json:"event_id"`
	AccountID string          `json:"account_id"`
	EventType string          `json:"event_type"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func (c *NotifierClient) Notify(ctx context.Context, event domain.AccountEvent) error {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(notificationPayload{
		EventID:   event.ID.String(),
		AccountID: event.AccountID.String(),
		EventType: string(event.EventType),
		Actor:     event.Actor,
		Payload:   event.Payload,
		CreatedAt: event.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("Notify: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("Notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-ID", event.ID.String())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Notify: send: %w", err)
	}
	defer resp.Body.Close()

	log.Debug("notification delivered",
		"event_id", event.ID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("Notify: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
