package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionAction string

// Ledger actions
const (
	TxActionCreated          TransactionAction = "created"
	TxActionFunded           TransactionAction = "funded"
	TxActionReleaseRequested TransactionAction = "release_requested"
	TxActionBuyerApproved    TransactionAction = "buyer_approved"
	TxActionSellerApproved   TransactionAction = "seller_approved"
	TxActionEscrowApproved   TransactionAction = "escrow_approved"
	TxActionBuyerRejected    TransactionAction = "buyer_rejected"
	TxActionSellerRejected   TransactionAction = "seller_rejected"
	TxActionEscrowRejected   TransactionAction = "escrow_rejected"
	TxActionReleased         TransactionAction = "released"
	TxActionCancelled        TransactionAction = "cancelled"
	TxActionDisputed         TransactionAction = "disputed"
	TxActionRefunded         TransactionAction = "refunded"
)

// ApprovalAction maps a party decision to its ledger action, e.g. buyer_approved.
func ApprovalAction(role PartyRole, approved bool) TransactionAction {
	if approved {
		return TransactionAction(string(role) + "_approved")
	}
	return TransactionAction(string(role) + "_rejected")
}

// EscrowTransaction is a write-once ledger entry.
type EscrowTransaction struct {
	ID        uuid.UUID         `json:"id"`
	EscrowID  uuid.UUID         `json:"escrow_id"`
	Action    TransactionAction `json:"action"`
	From      string            `json:"from"`
	To        string            `json:"to"`
	Amount    decimal.Decimal   `json:"amount"`
	Currency  string            `json:"currency"`
	Timestamp time.Time         `json:"timestamp"`
	Signature *string           `json:"signature,omitempty"`
	BlockHash *string           `json:"block_hash,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (t EscrowTransaction) Clone() EscrowTransaction {
	c := t
	if t.Signature != nil {
		s := *t.Signature
		c.Signature = &s
	}
	if t.BlockHash != nil {
		h := *t.BlockHash
		c.BlockHash = &h
	}
	c.Metadata = cloneStringMap(t.Metadata)
	return c
}
