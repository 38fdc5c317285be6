package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(orderID, buyer string) *models.EscrowAccount {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.EscrowAccount{
		ID:        uuid.New(),
		OrderID:   orderID,
		Status:    models.EscrowStatusPending,
		Amount:    decimal.NewFromInt(10000),
		Currency:  "INR",
		Buyer:     models.EscrowParty{WalletAddress: buyer, Role: models.RoleBuyer, Name: "Buyer", ApprovalStatus: models.ApprovalPending},
		Seller:    models.EscrowParty{WalletAddress: "S", Role: models.RoleSeller, Name: "Seller", ApprovalStatus: models.ApprovalPending},
		Escrow:    models.EscrowParty{WalletAddress: "E", Role: models.RoleEscrow, Name: "Escrow", ApprovalStatus: models.ApprovalPending},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func commitFor(acc *models.EscrowAccount, prev models.EscrowStatus, action models.TransactionAction, auditAction string) Commit {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return Commit{
		Account:        acc,
		PreviousStatus: prev,
		Transaction: models.EscrowTransaction{
			ID:        uuid.New(),
			EscrowID:  acc.ID,
			Action:    action,
			From:      "B",
			To:        "E",
			Amount:    acc.Amount,
			Currency:  acc.Currency,
			Timestamp: now,
			Metadata:  map[string]string{"reason": "test"},
		},
		Audit: models.AuditTrailEntry{
			ID:             uuid.New(),
			EscrowID:       acc.ID,
			Action:         auditAction,
			Actor:          "B",
			ActorRole:      models.RoleBuyer,
			Timestamp:      now,
			PreviousStatus: prev,
			NewStatus:      acc.Status,
			Details:        map[string]string{"amount": acc.Amount.String()},
		},
	}
}

// exerciseStore runs the EscrowStore contract against any implementation.
func exerciseStore(t *testing.T, store EscrowStore) {
	ctx := context.Background()
	suffix := uuid.NewString()
	wallet := "B-" + suffix

	acc := newAccount("order-"+suffix, wallet)
	require.NoError(t, store.Insert(ctx, commitFor(acc, "", models.TxActionCreated, models.AuditEscrowCreated)))

	dup := newAccount("order-"+suffix, wallet)
	assert.ErrorIs(t, store.Insert(ctx, commitFor(dup, "", models.TxActionCreated, models.AuditEscrowCreated)), ErrDuplicateOrder)

	got, err := store.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusPending, got.Status)
	assert.True(t, acc.Amount.Equal(got.Amount))
	assert.Equal(t, acc.CreatedAt, got.CreatedAt)
	require.Len(t, got.Transactions, 1)

	funded := got.Clone()
	funded.Status = models.EscrowStatusFunded
	funded.ChainTxHash = "0xabc"
	require.NoError(t, store.Commit(ctx, commitFor(funded, models.EscrowStatusPending, models.TxActionFunded, models.AuditEscrowFunded)))

	stale := got.Clone()
	stale.Status = models.EscrowStatusCancelled
	err = store.Commit(ctx, commitFor(stale, models.EscrowStatusPending, models.TxActionCancelled, models.AuditEscrowCancelled))
	assert.ErrorIs(t, err, ErrConflict)

	missing := newAccount("order-missing-"+suffix, wallet)
	assert.ErrorIs(t, store.Commit(ctx, commitFor(missing, models.EscrowStatusPending, models.TxActionFunded, models.AuditEscrowFunded)), ErrNotFound)

	got, err = store.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusFunded, got.Status)
	assert.Equal(t, "0xabc", got.ChainTxHash)

	txs, err := store.Transactions(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, models.TxActionCreated, txs[0].Action)
	assert.Equal(t, models.TxActionFunded, txs[1].Action)
	assert.Equal(t, "test", txs[1].Metadata["reason"])

	trail, err := store.AuditTrail(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.AuditEscrowFunded, trail[1].Action)
	assert.Equal(t, models.EscrowStatusPending, trail[1].PreviousStatus)
	assert.Equal(t, "10000", trail[1].Details["amount"])

	second := newAccount("order2-"+suffix, wallet)
	require.NoError(t, store.Insert(ctx, commitFor(second, "", models.TxActionCreated, models.AuditEscrowCreated)))
	listed, err := store.ListByWallet(ctx, wallet)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, acc.ID, listed[0].ID)
	assert.Equal(t, second.ID, listed[1].ID)

	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	first, last := indexOf(ids, acc.ID), indexOf(ids, second.ID)
	require.GreaterOrEqual(t, first, 0)
	assert.Greater(t, last, first)
	assert.Equal(t, -1, indexOf(ids, missing.ID))

	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	empty, err := store.Transactions(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
	emptyTrail, err := store.AuditTrail(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, emptyTrail)
}

func TestMemoryStoreContract(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	acc := newAccount("order-1", "B")
	require.NoError(t, store.Insert(ctx, commitFor(acc, "", models.TxActionCreated, models.AuditEscrowCreated)))

	acc.Status = models.EscrowStatusReleased
	got, err := store.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusPending, got.Status, "insert keeps its own copy")

	got.Transactions[0].Metadata["reason"] = "changed"
	txs, err := store.Transactions(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "test", txs[0].Metadata["reason"])
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i, status := range []models.EscrowStatus{models.EscrowStatusPending, models.EscrowStatusFunded, models.EscrowStatusPending} {
		acc := newAccount(uuid.NewString(), "B")
		acc.Status = status
		require.NoError(t, store.Insert(ctx, commitFor(acc, "", models.TxActionCreated, models.AuditEscrowCreated)), "insert %d", i)
	}

	pending, err := store.List(ctx, func(a *models.EscrowAccount) bool { return a.Status == models.EscrowStatusPending })
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	all, err := store.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func indexOf(ids []uuid.UUID, id uuid.UUID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
