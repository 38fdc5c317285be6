package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openclaw-gurusharan/ondc-seller/internal/metrics"
	"github.com/openclaw-gurusharan/ondc-seller/internal/notary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeVerifier struct {
	ids     []uuid.UUID
	listErr error
	results map[uuid.UUID]*notary.ChainVerification
	errs    map[uuid.UUID]error
	sweeps  atomic.Int32
}

func (f *fakeVerifier) ListEscrowIDs(context.Context) ([]uuid.UUID, error) {
	f.sweeps.Add(1)
	return f.ids, f.listErr
}

func (f *fakeVerifier) VerifyNotarizationChain(_ context.Context, id uuid.UUID) (*notary.ChainVerification, error) {
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return f.results[id], nil
}

func TestRunOnce(t *testing.T) {
	good, bad, gone := uuid.New(), uuid.New(), uuid.New()
	v := &fakeVerifier{
		ids: []uuid.UUID{good, bad, gone},
		results: map[uuid.UUID]*notary.ChainVerification{
			good: {EscrowID: good, Records: 3, Valid: true},
			bad:  {EscrowID: bad, Records: 2, Valid: false, Reason: "hash mismatch"},
		},
		errs: map[uuid.UUID]error{gone: errors.New("notary closed")},
	}

	a := NewChainAuditor(v, time.Minute, metrics.New(), zap.NewNop())
	summary, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Broken, 1)
	assert.Equal(t, bad, summary.Broken[0].EscrowID)
	assert.Equal(t, "hash mismatch", summary.Broken[0].Reason)
}

func TestRunOnceListError(t *testing.T) {
	v := &fakeVerifier{listErr: errors.New("db down")}
	a := NewChainAuditor(v, time.Minute, nil, zap.NewNop())

	_, err := a.RunOnce(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestRunStopsOnCancel(t *testing.T) {
	v := &fakeVerifier{}
	a := NewChainAuditor(v, 10*time.Millisecond, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return v.sweeps.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunDisabled(t *testing.T) {
	v := &fakeVerifier{}
	NewChainAuditor(v, 0, nil, zap.NewNop()).Run(context.Background())
	assert.Zero(t, v.sweeps.Load())
}
