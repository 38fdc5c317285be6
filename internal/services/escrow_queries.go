package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
	"github.com/openclaw-gurusharan/ondc-seller/internal/notary"
	"github.com/openclaw-gurusharan/ondc-seller/internal/repositories"
)

// GetEscrow returns nil without an error when the id is unknown.
func (s *EscrowService) GetEscrow(ctx context.Context, id uuid.UUID) (*models.EscrowAccount, error) {
	acc, err := s.store.Get(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get escrow: %w", err)
	}
	return acc, nil
}

// GetEscrowsByWallet lists escrows where wallet is buyer, seller or escrow agent, in
// creation order.
func (s *EscrowService) GetEscrowsByWallet(ctx context.Context, wallet string) ([]models.EscrowAccount, error) {
	if wallet == "" {
		return []models.EscrowAccount{}, nil
	}
	accounts, err := s.store.ListByWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("list escrows: %w", err)
	}
	return accounts, nil
}

// ListEscrowIDs lists every escrow id in creation order.
func (s *EscrowService) ListEscrowIDs(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := s.store.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list escrow ids: %w", err)
	}
	return ids, nil
}

func (s *EscrowService) GetTransactions(ctx context.Context, id uuid.UUID) ([]models.EscrowTransaction, error) {
	txs, err := s.store.Transactions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}
	return txs, nil
}

func (s *EscrowService) GetAuditTrail(ctx context.Context, id uuid.UUID) ([]models.AuditTrailEntry, error) {
	entries, err := s.store.AuditTrail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get audit trail: %w", err)
	}
	return entries, nil
}

// VerifyOnChainRecord reports whether the escrow exists and carries a notarization hash.
func (s *EscrowService) VerifyOnChainRecord(ctx context.Context, id uuid.UUID) (bool, error) {
	acc, err := s.GetEscrow(ctx, id)
	if err != nil {
		return false, err
	}
	return acc != nil && acc.ChainTxHash != "", nil
}

// GetNotarizationRecord returns nil when the notary has no record with that id.
func (s *EscrowService) GetNotarizationRecord(ctx context.Context, recordID uuid.UUID) (*models.NotarizationRecord, error) {
	rec, err := s.notary.Record(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotarization, err)
	}
	return rec, nil
}

// VerifyNotarizationChain checks the escrow's notarization history: every hash recomputes,
// every record links to its predecessor, and every hash referenced by the account and its
// audit trail is present in the history.
func (s *EscrowService) VerifyNotarizationChain(ctx context.Context, id uuid.UUID) (*notary.ChainVerification, error) {
	acc, err := s.store.Get(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("verify chain: %w", err)
	}
	history, err := s.notary.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotarization, err)
	}

	res := notary.VerifyChain(id, history)
	if !res.Valid {
		return &res, nil
	}

	trail, err := s.store.AuditTrail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("verify chain: %w", err)
	}
	for _, entry := range trail {
		if !notary.Contains(history, entry.ChainTxHash) {
			res.Valid = false
			res.Reason = fmt.Sprintf("audit entry %s references unknown hash %s", entry.ID, entry.ChainTxHash)
			return &res, nil
		}
	}
	if !notary.Contains(history, acc.ChainTxHash) {
		res.Valid = false
		res.Reason = "account hash is not in the notarization history"
	}
	return &res, nil
}
