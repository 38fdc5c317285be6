package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/openclaw-gurusharan/ondc-seller/internal/metrics"
	"github.com/openclaw-gurusharan/ondc-seller/internal/notary"
	"go.uber.org/zap"
)

// ChainVerifier is the part of the escrow service the auditor needs.
type ChainVerifier interface {
	ListEscrowIDs(ctx context.Context) ([]uuid.UUID, error)
	VerifyNotarizationChain(ctx context.Context, id uuid.UUID) (*notary.ChainVerification, error)
}

// AuditSummary is the result of one sweep.
type AuditSummary struct {
	Checked int
	Broken  []notary.ChainVerification
	Failed  int
}

// ChainAuditor periodically re-verifies the notarization chain of every escrow so that
// tampering with the notary store is noticed before a dispute needs the history.
type ChainAuditor struct {
	verifier ChainVerifier
	interval time.Duration
	metrics  *metrics.Registry
	log      *zap.Logger
}

func NewChainAuditor(verifier ChainVerifier, interval time.Duration, m *metrics.Registry, log *zap.Logger) *ChainAuditor {
	return &ChainAuditor{verifier: verifier, interval: interval, metrics: m, log: log}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (a *ChainAuditor) Run(ctx context.Context) {
	if a.interval <= 0 {
		a.log.Info("chain auditor disabled")
		return
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.log.Info("chain auditor started", zap.Duration("interval", a.interval))
	for {
		_, _ = a.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *ChainAuditor) RunOnce(ctx context.Context) (AuditSummary, error) {
	var summary AuditSummary

	ids, err := a.verifier.ListEscrowIDs(ctx)
	if err != nil {
		a.log.Error("failed to list escrows for chain audit", zap.Error(err))
		a.metrics.RecordChainAudit(0, err)
		return summary, err
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			a.metrics.RecordChainAudit(0, ctx.Err())
			return summary, ctx.Err()
		}
		res, err := a.verifier.VerifyNotarizationChain(ctx, id)
		if err != nil {
			summary.Failed++
			a.log.Warn("chain audit failed", zap.String("escrow_id", id.String()), zap.Error(err))
			continue
		}
		summary.Checked++
		if !res.Valid {
			summary.Broken = append(summary.Broken, *res)
			a.log.Error("notarization chain broken",
				zap.String("escrow_id", id.String()),
				zap.String("reason", res.Reason),
			)
		}
	}

	a.metrics.RecordChainAudit(len(summary.Broken), nil)
	a.log.Info("chain audit finished",
		zap.Int("checked", summary.Checked),
		zap.Int("broken", len(summary.Broken)),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}
