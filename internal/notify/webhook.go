package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openclaw-gurusharan/ondc-seller/internal/events"
	"go.uber.org/zap"
)

// Notification is the body posted to the webhook, one per escrow party.
type Notification struct {
	EventType string         `json:"event_type"`
	Wallet    string         `json:"wallet_address"`
	EscrowID  string         `json:"escrow_id"`
	OrderID   string         `json:"order_id"`
	Status    string         `json:"status"`
	Text      string         `json:"text"`
	Payload   map[string]any `json:"payload"`
}

// WebhookClient forwards escrow notifications to the dashboard's notification service.
type WebhookClient struct {
	url        string
	httpClient *http.Client
	log        *zap.Logger
}

func NewWebhookClient(url string, timeout time.Duration, log *zap.Logger) *WebhookClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookClient{
		url: strings.TrimRight(url, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

func (c *WebhookClient) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notification service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notification service returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// Forward fans an escrow event out to each party wallet. Failures are logged;
// the first error is returned.
func (c *WebhookClient) Forward(ctx context.Context, event events.Event) error {
	var firstErr error
	for _, wallet := range Parties(event) {
		n := Notification{
			EventType: event.Type,
			Wallet:    wallet,
			EscrowID:  stringField(event.Payload, "escrow_id"),
			OrderID:   stringField(event.Payload, "order_id"),
			Status:    stringField(event.Payload, "status"),
			Text:      Message(event),
			Payload:   event.Payload,
		}
		if err := c.Send(ctx, n); err != nil {
			c.log.Warn("failed to forward notification",
				zap.String("type", event.Type),
				zap.String("escrow_id", n.EscrowID),
				zap.String("wallet", wallet),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Message renders the human-readable line shown in the dashboard inbox.
func Message(event events.Event) string {
	order := stringField(event.Payload, "order_id")
	amount := strings.TrimSpace(stringField(event.Payload, "amount") + " " + stringField(event.Payload, "currency"))

	switch event.Type {
	case events.EventEscrowCreated:
		return fmt.Sprintf("Escrow opened for order %s (%s)", order, amount)
	case events.EventEscrowFunded:
		return fmt.Sprintf("Payment of %s received for order %s", amount, order)
	case events.EventEscrowReleaseRequested:
		return fmt.Sprintf("Release requested for order %s, your approval is needed", order)
	case events.EventEscrowApproved:
		return fmt.Sprintf("All parties approved release for order %s", order)
	case events.EventEscrowRejected:
		return fmt.Sprintf("Release for order %s was rejected by the %s and is now disputed", order, stringField(event.Payload, "role"))
	case events.EventEscrowReleased:
		return fmt.Sprintf("Funds for order %s released to the seller", order)
	case events.EventEscrowCancelled:
		return fmt.Sprintf("Escrow for order %s cancelled", order)
	case events.EventEscrowDisputed:
		return fmt.Sprintf("Escrow for order %s is under dispute", order)
	}
	return fmt.Sprintf("Event: %s", event.Type)
}

// Parties returns the distinct non-empty wallets in payload["parties"].
func Parties(event events.Event) []string {
	var out []string
	seen := map[string]bool{}
	add := func(w string) {
		if w != "" && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	switch v := event.Payload["parties"].(type) {
	case []string:
		for _, w := range v {
			add(w)
		}
	case []any:
		for _, p := range v {
			if w, ok := p.(string); ok {
				add(w)
			}
		}
	}
	return out
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}
