package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NotarizationRecord is the receipt returned by the notary for one escrow event.
// PrevHash links it to the previous record of the same escrow.
type NotarizationRecord struct {
	ID          uuid.UUID       `json:"id"`
	TxHash      string          `json:"tx_hash"`
	PrevHash    string          `json:"prev_hash,omitempty"`
	EscrowID    uuid.UUID       `json:"escrow_id"`
	Parties     [3]string       `json:"parties"`
	Amount      decimal.Decimal `json:"amount"`
	Status      EscrowStatus    `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
	BlockNumber uint64          `json:"block_number"`
}
