// Package notify delivers push notifications through the Expo push service.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bigbag/internal/resilience"
	"bigbag/internal/telemetry"
)

// Message is one Expo push message.
type Message struct {
	To    string            `json:"to"`
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

// Pusher delivers a batch of messages.
type Pusher interface {
	Push(ctx context.Context, msgs []Message) error
}

type ticket struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type pushResponse struct {
	Data []ticket `json:"data"`
}

type Expo struct {
	url     string
	enabled bool
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

var _ Pusher = (*Expo)(nil)

func NewExpo(url string, enabled bool) *Expo {
	return &Expo{
		url:     url,
		enabled: enabled,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		breaker: resilience.NewCircuitBreaker("expo", 3, 30*time.Second),
	}
}

// Push sends msgs in one request. When push is disabled the messages are
// logged and dropped.
func (e *Expo) Push(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if !e.enabled {
		slog.Debug("Push disabled, dropping messages", "count", len(msgs))
		telemetry.PushDropped(len(msgs))
		return nil
	}

	payload, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode push batch: %w", err)
	}

	var resp pushResponse
	err = e.breaker.Do(func() error {
		return resilience.Retry(ctx, 3, 500*time.Millisecond, func() error {
			return e.postJSON(ctx, payload, &resp)
		})
	})
	if err != nil {
		telemetry.PushFailed(len(msgs))
		return err
	}

	failed := 0
	for i, t := range resp.Data {
		if t.Status != "ok" {
			failed++
			slog.Warn("Push ticket rejected", "index", i, "message", t.Message)
		}
	}
	telemetry.PushSent(len(msgs) - failed)
	telemetry.PushFailed(failed)
	return nil
}

func (e *Expo) postJSON(ctx context.Context, payload []byte, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server error: %d", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bad status code: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(target)
}
