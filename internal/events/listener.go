package events

import (
	"context"
	"time"

	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
	"go.uber.org/zap"
)

// EscrowEvents is a set of lifecycle callbacks. Nil fields are skipped. Callbacks run after
// the transition has been committed and receive a copy of the account.
type EscrowEvents struct {
	OnCreated          func(acc models.EscrowAccount)
	OnFunded           func(acc models.EscrowAccount)
	OnReleaseRequested func(acc models.EscrowAccount)

	// OnApproved fires once, when the last of the three parties approves.
	OnApproved  func(acc models.EscrowAccount, role models.PartyRole)
	OnRejected  func(acc models.EscrowAccount, role models.PartyRole)
	OnReleased  func(acc models.EscrowAccount)
	OnCancelled func(acc models.EscrowAccount)
	OnDisputed  func(acc models.EscrowAccount)
}

const publishTimeout = 3 * time.Second

// PublishingListener turns engine callbacks into JSON events on EscrowChannel.
func PublishingListener(pub Publisher, log *zap.Logger) EscrowEvents {
	send := func(eventType string, acc models.EscrowAccount, extra map[string]any) {
		payload := EscrowPayload(acc)
		for k, v := range extra {
			payload[k] = v
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := pub.Publish(ctx, EscrowChannel, Event{Type: eventType, Payload: payload}); err != nil {
			log.Warn("failed to publish escrow event",
				zap.String("type", eventType),
				zap.String("escrow_id", acc.ID.String()),
				zap.Error(err),
			)
		}
	}

	return EscrowEvents{
		OnCreated:          func(acc models.EscrowAccount) { send(EventEscrowCreated, acc, nil) },
		OnFunded:           func(acc models.EscrowAccount) { send(EventEscrowFunded, acc, nil) },
		OnReleaseRequested: func(acc models.EscrowAccount) { send(EventEscrowReleaseRequested, acc, nil) },
		OnApproved: func(acc models.EscrowAccount, role models.PartyRole) {
			send(EventEscrowApproved, acc, map[string]any{"role": string(role)})
		},
		OnRejected: func(acc models.EscrowAccount, role models.PartyRole) {
			send(EventEscrowRejected, acc, map[string]any{"role": string(role)})
		},
		OnReleased:  func(acc models.EscrowAccount) { send(EventEscrowReleased, acc, nil) },
		OnCancelled: func(acc models.EscrowAccount) { send(EventEscrowCancelled, acc, nil) },
		OnDisputed:  func(acc models.EscrowAccount) { send(EventEscrowDisputed, acc, nil) },
	}
}

// EscrowPayload is the common event body. Parties lists the wallets that should be
// notified.
func EscrowPayload(acc models.EscrowAccount) map[string]any {
	parties := acc.Parties()
	return map[string]any{
		"escrow_id":     acc.ID.String(),
		"order_id":      acc.OrderID,
		"status":        string(acc.Status),
		"amount":        acc.Amount.String(),
		"currency":      acc.Currency,
		"chain_tx_hash": acc.ChainTxHash,
		"parties":       []any{parties[0], parties[1], parties[2]},
	}
}
