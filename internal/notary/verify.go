package notary

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
)

type ChainVerification struct {
	EscrowID uuid.UUID  `json:"escrow_id"`
	Records  int        `json:"records"`
	Valid    bool       `json:"valid"`
	HeadHash string     `json:"head_hash,omitempty"`
	BrokenAt *uuid.UUID `json:"broken_at,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// VerifyChain recomputes every hash and checks that each record links to its predecessor.
// Records must be in block order, as returned by History.
func VerifyChain(escrowID uuid.UUID, records []models.NotarizationRecord) ChainVerification {
	res := ChainVerification{EscrowID: escrowID, Records: len(records), Valid: true}
	prev := ""
	var lastBlock uint64
	for i := range records {
		rec := records[i]
		switch {
		case rec.EscrowID != escrowID:
			return res.broken(rec.ID, fmt.Sprintf("record belongs to escrow %s", rec.EscrowID))
		case rec.PrevHash != prev:
			return res.broken(rec.ID, "previous hash does not match chain")
		case i > 0 && rec.BlockNumber <= lastBlock:
			return res.broken(rec.ID, "block marker is not increasing")
		case ComputeHash(rec) != rec.TxHash:
			return res.broken(rec.ID, "hash mismatch")
		}
		prev = rec.TxHash
		lastBlock = rec.BlockNumber
	}
	res.HeadHash = prev
	return res
}

func (v ChainVerification) broken(id uuid.UUID, reason string) ChainVerification {
	v.Valid = false
	v.BrokenAt = &id
	v.Reason = reason
	return v
}

// Contains reports whether hash belongs to one of records.
func Contains(records []models.NotarizationRecord, hash string) bool {
	for i := range records {
		if records[i].TxHash == hash {
			return true
		}
	}
	return false
}
