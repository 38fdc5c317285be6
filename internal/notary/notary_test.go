package notary

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestNotary(t *testing.T) *Notary {
	t.Helper()
	n, err := OpenMemory(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func snapshot(status models.EscrowStatus) models.EscrowAccount {
	return models.EscrowAccount{
		ID:       uuid.New(),
		Status:   status,
		Amount:   decimal.NewFromInt(10000),
		Currency: "INR",
		Buyer:    models.EscrowParty{WalletAddress: "B"},
		Seller:   models.EscrowParty{WalletAddress: "S"},
		Escrow:   models.EscrowParty{WalletAddress: "E"},
	}
}

func TestNotarizeChainsRecordsPerEscrow(t *testing.T) {
	ctx := context.Background()
	n := newTestNotary(t)

	acc := snapshot(models.EscrowStatusPending)
	first, err := n.Notarize(ctx, acc)
	require.NoError(t, err)
	assert.Empty(t, first.PrevHash)
	assert.True(t, strings.HasPrefix(first.TxHash, "0x"))
	assert.Len(t, first.TxHash, 66)
	assert.Equal(t, [3]string{"B", "S", "E"}, first.Parties)

	other, err := n.Notarize(ctx, snapshot(models.EscrowStatusPending))
	require.NoError(t, err)
	assert.Empty(t, other.PrevHash, "chains are per escrow")

	acc.Status = models.EscrowStatusFunded
	second, err := n.Notarize(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, first.TxHash, second.PrevHash)
	assert.Greater(t, second.BlockNumber, other.BlockNumber)
	assert.NotEqual(t, first.TxHash, second.TxHash)

	history, err := n.History(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, second.ID, history[1].ID)

	res := VerifyChain(acc.ID, history)
	assert.True(t, res.Valid, res.Reason)
	assert.Equal(t, second.TxHash, res.HeadHash)
}

func TestRecordLookup(t *testing.T) {
	ctx := context.Background()
	n := newTestNotary(t)

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	n.SetNowFunc(func() time.Time { return fixed })

	rec, err := n.Notarize(ctx, snapshot(models.EscrowStatusPending))
	require.NoError(t, err)

	got, err := n.Record(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.TxHash, got.TxHash)
	assert.True(t, fixed.Equal(got.Timestamp))
	assert.Equal(t, rec.TxHash, ComputeHash(*got), "hash must survive a store round trip")

	missing, err := n.Record(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	ctx := context.Background()
	n := newTestNotary(t)

	acc := snapshot(models.EscrowStatusPending)
	for _, st := range []models.EscrowStatus{models.EscrowStatusPending, models.EscrowStatusFunded, models.EscrowStatusReleaseRequested} {
		acc.Status = st
		_, err := n.Notarize(ctx, acc)
		require.NoError(t, err)
	}
	history, err := n.History(ctx, acc.ID)
	require.NoError(t, err)

	tampered := append([]models.NotarizationRecord(nil), history...)
	tampered[1].Amount = decimal.NewFromInt(1)
	res := VerifyChain(acc.ID, tampered)
	assert.False(t, res.Valid)
	require.NotNil(t, res.BrokenAt)
	assert.Equal(t, history[1].ID, *res.BrokenAt)
	assert.Equal(t, "hash mismatch", res.Reason)

	dropped := []models.NotarizationRecord{history[0], history[2]}
	res = VerifyChain(acc.ID, dropped)
	assert.False(t, res.Valid)
	assert.Equal(t, "previous hash does not match chain", res.Reason)

	res = VerifyChain(uuid.New(), history)
	assert.False(t, res.Valid)
}

func TestNotarizeHonoursCancelledContext(t *testing.T) {
	n := newTestNotary(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.Notarize(ctx, snapshot(models.EscrowStatusPending))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenPersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notary")

	n, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	acc := snapshot(models.EscrowStatusPending)
	first, err := n.Notarize(ctx, acc)
	require.NoError(t, err)
	require.NoError(t, n.Close())

	n, err = Open(path, zap.NewNop())
	require.NoError(t, err)
	defer n.Close()

	acc.Status = models.EscrowStatusFunded
	second, err := n.Notarize(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, first.TxHash, second.PrevHash)
	assert.Equal(t, first.BlockNumber+1, second.BlockNumber)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ", zap.NewNop())
	assert.Error(t, err)
}

// exerciseNotarizer runs the Notarizer contract against any implementation.
func exerciseNotarizer(t *testing.T, n Notarizer) {
	ctx := context.Background()

	acc := snapshot(models.EscrowStatusPending)
	acc.Amount = decimal.RequireFromString("1500.50")
	first, err := n.Notarize(ctx, acc)
	require.NoError(t, err)
	assert.Empty(t, first.PrevHash)

	acc.Status = models.EscrowStatusFunded
	second, err := n.Notarize(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, first.TxHash, second.PrevHash)
	assert.Greater(t, second.BlockNumber, first.BlockNumber)

	got, err := n.Record(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.TxHash, ComputeHash(*got), "hash must survive a store round trip")

	history, err := n.History(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	res := VerifyChain(acc.ID, history)
	assert.True(t, res.Valid, res.Reason)

	missing, err := n.Record(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	empty, err := n.History(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLevelDBNotarizerContract(t *testing.T) {
	exerciseNotarizer(t, newTestNotary(t))
}
