package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	stream []string
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, stream string, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stream = append(p.stream, stream)
	p.events = append(p.events, event)
	return p.err
}

func testAccount() models.EscrowAccount {
	return models.EscrowAccount{
		ID:       uuid.New(),
		OrderID:  "order_123456",
		Status:   models.EscrowStatusApproved,
		Amount:   decimal.NewFromInt(10000),
		Currency: "INR",
		Buyer:    models.EscrowParty{WalletAddress: "B"},
		Seller:   models.EscrowParty{WalletAddress: "S"},
		Escrow:   models.EscrowParty{WalletAddress: "E"},
	}
}

func TestPublishingListener(t *testing.T) {
	pub := &recordingPublisher{}
	l := PublishingListener(pub, zap.NewNop())
	acc := testAccount()

	tests := []struct {
		name     string
		fire     func()
		wantType string
		wantRole string
	}{
		{"created", func() { l.OnCreated(acc) }, EventEscrowCreated, ""},
		{"funded", func() { l.OnFunded(acc) }, EventEscrowFunded, ""},
		{"requested", func() { l.OnReleaseRequested(acc) }, EventEscrowReleaseRequested, ""},
		{"approved", func() { l.OnApproved(acc, models.RoleEscrow) }, EventEscrowApproved, "escrow"},
		{"rejected", func() { l.OnRejected(acc, models.RoleBuyer) }, EventEscrowRejected, "buyer"},
		{"released", func() { l.OnReleased(acc) }, EventEscrowReleased, ""},
		{"cancelled", func() { l.OnCancelled(acc) }, EventEscrowCancelled, ""},
		{"disputed", func() { l.OnDisputed(acc) }, EventEscrowDisputed, ""},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fire()
			require.Len(t, pub.events, i+1)
			ev := pub.events[i]
			assert.Equal(t, EscrowChannel, pub.stream[i])
			assert.Equal(t, tt.wantType, ev.Type)
			assert.Equal(t, acc.ID.String(), ev.Payload["escrow_id"])
			assert.Equal(t, "10000", ev.Payload["amount"])
			if tt.wantRole != "" {
				assert.Equal(t, tt.wantRole, ev.Payload["role"])
			} else {
				assert.NotContains(t, ev.Payload, "role")
			}
		})
	}
}

func TestPublishingListenerSwallowsErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("redis down")}
	l := PublishingListener(pub, zap.NewNop())
	assert.NotPanics(t, func() { l.OnFunded(testAccount()) })
	assert.Len(t, pub.events, 1)
}

func TestEscrowPayloadParties(t *testing.T) {
	p := EscrowPayload(testAccount())
	assert.Equal(t, []any{"B", "S", "E"}, p["parties"])
	assert.Equal(t, "approved", p["status"])
}
