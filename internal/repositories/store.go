package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
)

var (
	ErrNotFound       = errors.New("escrow not found")
	ErrConflict       = errors.New("escrow status changed concurrently")
	ErrDuplicateOrder = errors.New("escrow already exists for order")
)

// Commit is the unit of work of one engine operation: the mutated account together with
// the single ledger entry and audit entry it produced.
type Commit struct {
	Account *models.EscrowAccount
	// PreviousStatus is the status the account had when it was loaded. Commit fails with
	// ErrConflict when the stored status differs. Ignored by Insert.
	PreviousStatus models.EscrowStatus
	Transaction    models.EscrowTransaction
	Audit          models.AuditTrailEntry
}

// EscrowStore persists escrow accounts with their append-only ledger and audit trail.
// Accounts returned by Get carry their ledger in Transactions.
type EscrowStore interface {
	Insert(ctx context.Context, c Commit) error
	Commit(ctx context.Context, c Commit) error
	Get(ctx context.Context, id uuid.UUID) (*models.EscrowAccount, error)
	ListByWallet(ctx context.Context, wallet string) ([]models.EscrowAccount, error)
	// IDs lists every escrow id in creation order.
	IDs(ctx context.Context) ([]uuid.UUID, error)
	Transactions(ctx context.Context, escrowID uuid.UUID) ([]models.EscrowTransaction, error)
	AuditTrail(ctx context.Context, escrowID uuid.UUID) ([]models.AuditTrailEntry, error)
}
