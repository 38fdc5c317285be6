package repositories

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
)

// MemoryStore keeps escrows in process memory. Used by tests and single-node setups.
type MemoryStore struct {
	mu       sync.RWMutex
	order    []uuid.UUID
	accounts map[uuid.UUID]*models.EscrowAccount
	byOrder  map[string]uuid.UUID
	ledger   map[uuid.UUID][]models.EscrowTransaction
	audit    map[uuid.UUID][]models.AuditTrailEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[uuid.UUID]*models.EscrowAccount),
		byOrder:  make(map[string]uuid.UUID),
		ledger:   make(map[uuid.UUID][]models.EscrowTransaction),
		audit:    make(map[uuid.UUID][]models.AuditTrailEntry),
	}
}

func (m *MemoryStore) Insert(_ context.Context, c Commit) error {
	if c.Account == nil {
		return fmt.Errorf("insert escrow: nil account")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := c.Account.ID
	if _, ok := m.accounts[id]; ok {
		return fmt.Errorf("insert escrow %s: id already used", id)
	}
	if _, ok := m.byOrder[c.Account.OrderID]; ok {
		return ErrDuplicateOrder
	}

	m.accounts[id] = stripLedger(c.Account)
	m.order = append(m.order, id)
	m.byOrder[c.Account.OrderID] = id
	m.ledger[id] = []models.EscrowTransaction{c.Transaction.Clone()}
	m.audit[id] = []models.AuditTrailEntry{c.Audit.Clone()}
	return nil
}

func (m *MemoryStore) Commit(_ context.Context, c Commit) error {
	if c.Account == nil {
		return fmt.Errorf("commit escrow: nil account")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := c.Account.ID
	current, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	if current.Status != c.PreviousStatus {
		return ErrConflict
	}

	m.accounts[id] = stripLedger(c.Account)
	m.ledger[id] = append(m.ledger[id], c.Transaction.Clone())
	m.audit[id] = append(m.audit[id], c.Audit.Clone())
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.EscrowAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.withLedger(acc), nil
}

// List returns the accounts matching pred in creation order.
func (m *MemoryStore) List(_ context.Context, pred func(*models.EscrowAccount) bool) ([]models.EscrowAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.EscrowAccount, 0)
	for _, id := range m.order {
		acc := m.accounts[id]
		if pred == nil || pred(acc) {
			out = append(out, *m.withLedger(acc))
		}
	}
	return out, nil
}

func (m *MemoryStore) ListByWallet(ctx context.Context, wallet string) ([]models.EscrowAccount, error) {
	return m.List(ctx, func(acc *models.EscrowAccount) bool {
		return acc.HasParty(wallet)
	})
}

func (m *MemoryStore) IDs(_ context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]uuid.UUID{}, m.order...), nil
}

func (m *MemoryStore) Transactions(_ context.Context, escrowID uuid.UUID) ([]models.EscrowTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneLedger(m.ledger[escrowID]), nil
}

func (m *MemoryStore) AuditTrail(_ context.Context, escrowID uuid.UUID) ([]models.AuditTrailEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.audit[escrowID]
	out := make([]models.AuditTrailEntry, len(entries))
	for i := range entries {
		out[i] = entries[i].Clone()
	}
	return out, nil
}

// withLedger must be called with m.mu held.
func (m *MemoryStore) withLedger(acc *models.EscrowAccount) *models.EscrowAccount {
	c := acc.Clone()
	c.Transactions = cloneLedger(m.ledger[acc.ID])
	return c
}

func stripLedger(acc *models.EscrowAccount) *models.EscrowAccount {
	c := acc.Clone()
	c.Transactions = nil
	return c
}

func cloneLedger(txs []models.EscrowTransaction) []models.EscrowTransaction {
	out := make([]models.EscrowTransaction, len(txs))
	for i := range txs {
		out[i] = txs[i].Clone()
	}
	return out
}
