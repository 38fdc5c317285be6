package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
	"github.com/shopspring/decimal"
)

// Ledger and audit rows are insert-only; the migration installs triggers that reject
// UPDATE and DELETE on both tables.

func appendTransaction(ctx context.Context, tx pgx.Tx, t models.EscrowTransaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO escrow_transactions (id, escrow_id, action, from_wallet, to_wallet, amount, currency, created_at, signature, block_hash, metadata)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11)
	`, t.ID, t.EscrowID, t.Action, t.From, t.To, t.Amount.String(), t.Currency, t.Timestamp, t.Signature, t.BlockHash, t.Metadata)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func appendAudit(ctx context.Context, tx pgx.Tx, e models.AuditTrailEntry) error {
	details := e.Details
	if details == nil {
		details = map[string]string{}
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO escrow_audit_trail (id, escrow_id, action, actor, actor_role, created_at, previous_status, new_status, details, chain_tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.EscrowID, e.Action, e.Actor, e.ActorRole, e.Timestamp, e.PreviousStatus, e.NewStatus, details, e.ChainTxHash)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Transactions(ctx context.Context, escrowID uuid.UUID) ([]models.EscrowTransaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, escrow_id, action, from_wallet, to_wallet, amount::text, currency, created_at, signature, block_hash, metadata
		FROM escrow_transactions WHERE escrow_id = $1
		ORDER BY seq ASC
	`, escrowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]models.EscrowTransaction, 0)
	for rows.Next() {
		var (
			t      models.EscrowTransaction
			amount string
		)
		if err := rows.Scan(&t.ID, &t.EscrowID, &t.Action, &t.From, &t.To, &amount, &t.Currency, &t.Timestamp, &t.Signature, &t.BlockHash, &t.Metadata); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse ledger amount %q: %w", amount, err)
		}
		t.Timestamp = t.Timestamp.UTC()
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (s *PostgresStore) AuditTrail(ctx context.Context, escrowID uuid.UUID) ([]models.AuditTrailEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, escrow_id, action, actor, actor_role, created_at, previous_status, new_status, details, chain_tx_hash
		FROM escrow_audit_trail WHERE escrow_id = $1
		ORDER BY seq ASC
	`, escrowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditTrailEntry
	for rows.Next() {
		var e models.AuditTrailEntry
		if err := rows.Scan(&e.ID, &e.EscrowID, &e.Action, &e.Actor, &e.ActorRole, &e.Timestamp, &e.PreviousStatus, &e.NewStatus, &e.Details, &e.ChainTxHash); err != nil {
			return nil, err
		}
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, e)
	}
	if entries == nil {
		entries = []models.AuditTrailEntry{}
	}
	return entries, rows.Err()
}
