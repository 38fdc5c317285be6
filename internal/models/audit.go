package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit action codes
const (
	AuditEscrowCreated    = "ESCROW_CREATED"
	AuditEscrowFunded     = "ESCROW_FUNDED"
	AuditReleaseRequested = "RELEASE_REQUESTED"
	AuditReleaseApproved  = "RELEASE_APPROVED"
	AuditReleaseRejected  = "RELEASE_REJECTED"
	AuditFundsReleased    = "FUNDS_RELEASED"
	AuditEscrowCancelled  = "ESCROW_CANCELLED"
	AuditEscrowDisputed   = "ESCROW_DISPUTED"
)

// AuditTrailEntry is the compliance record of one engine operation. Entries are never
// mutated after append and form the authoritative history for dispute review.
type AuditTrailEntry struct {
	ID             uuid.UUID         `json:"id"`
	EscrowID       uuid.UUID         `json:"escrow_id"`
	Action         string            `json:"action"`
	Actor          string            `json:"actor"`
	ActorRole      PartyRole         `json:"actor_role"` // buyer/seller/escrow/system
	Timestamp      time.Time         `json:"timestamp"`
	PreviousStatus EscrowStatus      `json:"previous_status"`
	NewStatus      EscrowStatus      `json:"new_status"`
	Details        map[string]string `json:"details"`
	ChainTxHash    string            `json:"chain_tx_hash,omitempty"`
}

func (a AuditTrailEntry) Clone() AuditTrailEntry {
	c := a
	c.Details = cloneStringMap(a.Details)
	return c
}
