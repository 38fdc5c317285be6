package events

import "context"

// EscrowChannel is the Redis pub/sub channel carrying escrow lifecycle events.
const EscrowChannel = "events:escrow"

// Event types
const (
	EventEscrowCreated          = "escrow_created"
	EventEscrowFunded           = "escrow_funded"
	EventEscrowReleaseRequested = "escrow_release_requested"
	EventEscrowApproved         = "escrow_approved"
	EventEscrowRejected         = "escrow_rejected"
	EventEscrowReleased         = "escrow_released"
	EventEscrowCancelled        = "escrow_cancelled"
	EventEscrowDisputed         = "escrow_disputed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
