package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openclaw-gurusharan/ondc-seller/internal/events"
	"github.com/openclaw-gurusharan/ondc-seller/internal/metrics"
	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
	"github.com/openclaw-gurusharan/ondc-seller/internal/notary"
	"github.com/openclaw-gurusharan/ondc-seller/internal/repositories"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SystemProgramAddress is the source wallet of the ledger entry written at creation.
const SystemProgramAddress = "11111111111111111111111111111111"

const DefaultNotaryTimeout = 5 * time.Second

type CreateEscrowParams struct {
	OrderID           string
	Amount            decimal.Decimal
	Currency          string
	BuyerWallet       string
	BuyerName         string
	SellerWallet      string
	SellerName        string
	EscrowWallet      string
	EscrowName        string
	BuyerAadhaarHash  *string
	SellerAadhaarHash *string
	Metadata          map[string]string
}

type FundEscrowParams struct {
	EscrowID    uuid.UUID
	PayerWallet string
	Amount      decimal.Decimal
}

type ReleaseRequestParams struct {
	EscrowID        uuid.UUID
	RequesterWallet string
	Reason          string
}

type ApprovalParams struct {
	EscrowID       uuid.UUID
	ApproverWallet string
	Approved       bool
	Reason         string
}

type ReleaseFundsParams struct {
	EscrowID       uuid.UUID
	ReleaserWallet string
}

type CancelEscrowParams struct {
	EscrowID        uuid.UUID
	CancellerWallet string
	Reason          string
}

type DisputeEscrowParams struct {
	EscrowID       uuid.UUID
	DisputerWallet string
	Reason         string
}

// EscrowService runs the three-party escrow workflow. Every successful operation appends one
// ledger entry and one audit entry and notarizes the new state exactly once. Notarization must
// succeed before anything is committed.
type EscrowService struct {
	store         repositories.EscrowStore
	notary        notary.Notarizer
	locker        Locker
	listeners     []events.EscrowEvents
	metrics       *metrics.Registry
	notaryTimeout time.Duration
	nowFn         func() time.Time
	log           *zap.Logger
}

type Option func(*EscrowService)

// WithListener registers lifecycle callbacks. May be given more than once.
func WithListener(l events.EscrowEvents) Option {
	return func(s *EscrowService) { s.listeners = append(s.listeners, l) }
}

func WithLocker(l Locker) Option {
	return func(s *EscrowService) { s.locker = l }
}

func WithMetrics(m *metrics.Registry) Option {
	return func(s *EscrowService) { s.metrics = m }
}

func WithNotaryTimeout(d time.Duration) Option {
	return func(s *EscrowService) {
		if d > 0 {
			s.notaryTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *EscrowService) {
		if now != nil {
			s.nowFn = now
		}
	}
}

func NewEscrowService(store repositories.EscrowStore, notarizer notary.Notarizer, log *zap.Logger, opts ...Option) *EscrowService {
	s := &EscrowService{
		store:         store,
		notary:        notarizer,
		locker:        NewKeyedLocker(),
		notaryTimeout: DefaultNotaryTimeout,
		nowFn:         time.Now,
		log:           log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// effect is what an operation decided after its guard passed. The engine fills in ids,
// timestamps, statuses and the notarization hash.
type effect struct {
	tx     models.EscrowTransaction
	audit  models.AuditTrailEntry
	notify func(l events.EscrowEvents, acc models.EscrowAccount)
}

func (s *EscrowService) CreateEscrow(ctx context.Context, p CreateEscrowParams) (*models.EscrowAccount, error) {
	acc, err := s.createEscrow(ctx, p)
	s.metrics.IncTransition("create", outcome(err))
	if err != nil {
		return nil, err
	}
	s.fire(*acc, func(l events.EscrowEvents, a models.EscrowAccount) {
		if l.OnCreated != nil {
			l.OnCreated(a)
		}
	})
	return acc, nil
}

func (s *EscrowService) createEscrow(ctx context.Context, p CreateEscrowParams) (*models.EscrowAccount, error) {
	if err := validateCreate(p); err != nil {
		return nil, err
	}

	now := s.now()
	acc := &models.EscrowAccount{
		ID:       uuid.New(),
		OrderID:  strings.TrimSpace(p.OrderID),
		Status:   models.EscrowStatusPending,
		Amount:   p.Amount,
		Currency: strings.TrimSpace(p.Currency),
		Buyer: models.EscrowParty{
			WalletAddress:  p.BuyerWallet,
			AadhaarHash:    optional(p.BuyerAadhaarHash),
			Role:           models.RoleBuyer,
			Name:           p.BuyerName,
			ApprovalStatus: models.ApprovalPending,
		},
		Seller: models.EscrowParty{
			WalletAddress:  p.SellerWallet,
			AadhaarHash:    optional(p.SellerAadhaarHash),
			Role:           models.RoleSeller,
			Name:           p.SellerName,
			ApprovalStatus: models.ApprovalPending,
		},
		Escrow: models.EscrowParty{
			WalletAddress:  p.EscrowWallet,
			Role:           models.RoleEscrow,
			Name:           p.EscrowName,
			ApprovalStatus: models.ApprovalPending,
		},
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  p.Metadata,
	}

	rec, err := s.notarize(ctx, *acc)
	if err != nil {
		return nil, err
	}
	acc.ChainTxHash = rec.TxHash
	recordID := rec.ID
	acc.OnChainRecordID = &recordID

	tx := s.ledgerEntry(acc, now, rec.TxHash, models.EscrowTransaction{
		Action:   models.TxActionCreated,
		From:     SystemProgramAddress,
		To:       acc.Escrow.WalletAddress,
		Amount:   acc.Amount,
		Metadata: map[string]string{"orderId": acc.OrderID},
	})
	audit := s.auditEntry(acc, now, rec.TxHash, "", models.AuditTrailEntry{
		Action:    models.AuditEscrowCreated,
		Actor:     acc.Escrow.WalletAddress,
		ActorRole: models.RoleSystem,
		Details:   map[string]string{"orderId": acc.OrderID, "amount": acc.Amount.String()},
	})

	err = s.store.Insert(ctx, repositories.Commit{Account: acc, Transaction: tx, Audit: audit})
	if errors.Is(err, repositories.ErrDuplicateOrder) {
		return nil, validationErr("escrow already exists for order %s", acc.OrderID)
	}
	if err != nil {
		return nil, fmt.Errorf("create escrow: %w", err)
	}

	s.log.Info("escrow created",
		zap.String("escrow_id", acc.ID.String()),
		zap.String("order_id", acc.OrderID),
		zap.String("amount", acc.Amount.String()),
		zap.String("currency", acc.Currency),
	)

	acc.Transactions = []models.EscrowTransaction{tx}
	return acc.Clone(), nil
}

func validateCreate(p CreateEscrowParams) error {
	switch {
	case strings.TrimSpace(p.OrderID) == "":
		return validationErr("order id is required")
	case !p.Amount.IsPositive():
		return validationErr("amount must be greater than zero")
	case strings.TrimSpace(p.Currency) == "":
		return validationErr("currency is required")
	case strings.TrimSpace(p.BuyerWallet) == "", strings.TrimSpace(p.SellerWallet) == "", strings.TrimSpace(p.EscrowWallet) == "":
		return validationErr("buyer, seller and escrow wallets are required")
	case strings.TrimSpace(p.BuyerName) == "", strings.TrimSpace(p.SellerName) == "", strings.TrimSpace(p.EscrowName) == "":
		return validationErr("buyer, seller and escrow names are required")
	case p.BuyerWallet == p.SellerWallet, p.BuyerWallet == p.EscrowWallet, p.SellerWallet == p.EscrowWallet:
		return validationErr("buyer, seller and escrow wallets must be distinct")
	}
	return nil
}

func (s *EscrowService) FundEscrow(ctx context.Context, p FundEscrowParams) (*models.EscrowAccount, error) {
	return s.mutate(ctx, "fund", p.EscrowID, func(acc *models.EscrowAccount, now time.Time) (*effect, error) {
		if acc.Status != models.EscrowStatusPending {
			return nil, invalidState(models.EscrowStatusPending)
		}
		if !p.Amount.IsPositive() {
			return nil, validationErr("funding amount must be greater than zero")
		}
		acc.Status = models.EscrowStatusFunded

		return &effect{
			tx: models.EscrowTransaction{
				Action: models.TxActionFunded,
				From:   p.PayerWallet,
				To:     acc.Escrow.WalletAddress,
				Amount: p.Amount,
			},
			audit: models.AuditTrailEntry{
				Action:    models.AuditEscrowFunded,
				Actor:     p.PayerWallet,
				ActorRole: actorRole(acc, p.PayerWallet),
				Details:   map[string]string{"amount": p.Amount.String()},
			},
			notify: func(l events.EscrowEvents, a models.EscrowAccount) {
				if l.OnFunded != nil {
					l.OnFunded(a)
				}
			},
		}, nil
	})
}

func (s *EscrowService) RequestRelease(ctx context.Context, p ReleaseRequestParams) (*models.EscrowAccount, error) {
	return s.mutate(ctx, "request_release", p.EscrowID, func(acc *models.EscrowAccount, now time.Time) (*effect, error) {
		if acc.Status != models.EscrowStatusFunded {
			return nil, invalidState(models.EscrowStatusFunded)
		}
		acc.Status = models.EscrowStatusReleaseRequested

		return &effect{
			tx: models.EscrowTransaction{
				Action:   models.TxActionReleaseRequested,
				From:     p.RequesterWallet,
				To:       acc.Escrow.WalletAddress,
				Amount:   acc.Amount,
				Metadata: map[string]string{"reason": orDefault(p.Reason, "Release requested")},
			},
			audit: models.AuditTrailEntry{
				Action:    models.AuditReleaseRequested,
				Actor:     p.RequesterWallet,
				ActorRole: actorRole(acc, p.RequesterWallet),
				Details:   map[string]string{"reason": orDefault(p.Reason, "No reason provided")},
			},
			notify: func(l events.EscrowEvents, a models.EscrowAccount) {
				if l.OnReleaseRequested != nil {
					l.OnReleaseRequested(a)
				}
			},
		}, nil
	})
}

// ApproveRelease records one party's decision. The escrow becomes approved when all three
// parties show approved; a single rejection moves it to disputed.
func (s *EscrowService) ApproveRelease(ctx context.Context, p ApprovalParams) (*models.EscrowAccount, error) {
	return s.mutate(ctx, "approve", p.EscrowID, func(acc *models.EscrowAccount, now time.Time) (*effect, error) {
		if acc.Status != models.EscrowStatusReleaseRequested {
			return nil, invalidState(models.EscrowStatusReleaseRequested)
		}
		role, ok := acc.RoleOf(p.ApproverWallet)
		if !ok {
			return nil, fmt.Errorf("%w: wallet %s is not a party to escrow %s", ErrUnauthorized, p.ApproverWallet, acc.ID)
		}

		party := acc.Party(role)
		reason := orDefault(p.Reason, "Approved")
		auditAction := models.AuditReleaseApproved
		if p.Approved {
			at := now
			party.ApprovalStatus = models.ApprovalApproved
			party.ApprovedAt = &at
			if acc.AllApproved() {
				acc.Status = models.EscrowStatusApproved
			}
		} else {
			reason = orDefault(p.Reason, "Rejected")
			auditAction = models.AuditReleaseRejected
			party.ApprovalStatus = models.ApprovalRejected
			party.ApprovedAt = nil
			acc.Status = models.EscrowStatusDisputed
		}

		fullyApproved := acc.Status == models.EscrowStatusApproved
		return &effect{
			tx: models.EscrowTransaction{
				Action:   models.ApprovalAction(role, p.Approved),
				From:     p.ApproverWallet,
				To:       acc.Escrow.WalletAddress,
				Amount:   acc.Amount,
				Metadata: map[string]string{"reason": reason},
			},
			audit: models.AuditTrailEntry{
				Action:    auditAction,
				Actor:     p.ApproverWallet,
				ActorRole: role,
				Details:   map[string]string{"reason": reason},
			},
			notify: func(l events.EscrowEvents, a models.EscrowAccount) {
				switch {
				case !p.Approved && l.OnRejected != nil:
					l.OnRejected(a, role)
				case fullyApproved && l.OnApproved != nil:
					l.OnApproved(a, role)
				}
			},
		}, nil
	})
}

// ReleaseFunds pays the seller. Only the aggregate status is checked.
func (s *EscrowService) ReleaseFunds(ctx context.Context, p ReleaseFundsParams) (*models.EscrowAccount, error) {
	return s.mutate(ctx, "release", p.EscrowID, func(acc *models.EscrowAccount, now time.Time) (*effect, error) {
		if acc.Status != models.EscrowStatusApproved {
			return nil, invalidState(models.EscrowStatusApproved)
		}
		at := now
		acc.Status = models.EscrowStatusReleased
		acc.ReleasedAt = &at

		return &effect{
			tx: models.EscrowTransaction{
				Action: models.TxActionReleased,
				From:   acc.Escrow.WalletAddress,
				To:     acc.Seller.WalletAddress,
				Amount: acc.Amount,
			},
			audit: models.AuditTrailEntry{
				Action:    models.AuditFundsReleased,
				Actor:     p.ReleaserWallet,
				ActorRole: models.RoleEscrow,
				Details:   map[string]string{"amount": acc.Amount.String()},
			},
			notify: func(l events.EscrowEvents, a models.EscrowAccount) {
				if l.OnReleased != nil {
					l.OnReleased(a)
				}
			},
		}, nil
	})
}

func (s *EscrowService) CancelEscrow(ctx context.Context, p CancelEscrowParams) (*models.EscrowAccount, error) {
	return s.mutate(ctx, "cancel", p.EscrowID, func(acc *models.EscrowAccount, now time.Time) (*effect, error) {
		if acc.Status == models.EscrowStatusReleased {
			return nil, fmt.Errorf("%w: cannot cancel released escrow", ErrInvalidState)
		}
		acc.Status = models.EscrowStatusCancelled

		return &effect{
			tx: models.EscrowTransaction{
				Action:   models.TxActionCancelled,
				From:     p.CancellerWallet,
				To:       acc.Buyer.WalletAddress,
				Amount:   acc.Amount,
				Metadata: map[string]string{"reason": orDefault(p.Reason, "Cancelled")},
			},
			audit: models.AuditTrailEntry{
				Action:    models.AuditEscrowCancelled,
				Actor:     p.CancellerWallet,
				ActorRole: actorRole(acc, p.CancellerWallet),
				Details:   map[string]string{"reason": orDefault(p.Reason, "No reason provided")},
			},
			notify: func(l events.EscrowEvents, a models.EscrowAccount) {
				if l.OnCancelled != nil {
					l.OnCancelled(a)
				}
			},
		}, nil
	})
}

// DisputeEscrow flags an escrow for manual review. Any state except released is accepted,
// including cancelled and already disputed escrows.
func (s *EscrowService) DisputeEscrow(ctx context.Context, p DisputeEscrowParams) (*models.EscrowAccount, error) {
	return s.mutate(ctx, "dispute", p.EscrowID, func(acc *models.EscrowAccount, now time.Time) (*effect, error) {
		if acc.Status == models.EscrowStatusReleased {
			return nil, fmt.Errorf("%w: cannot dispute released escrow", ErrInvalidState)
		}
		if strings.TrimSpace(p.Reason) == "" {
			return nil, validationErr("dispute reason is required")
		}
		acc.Status = models.EscrowStatusDisputed

		return &effect{
			tx: models.EscrowTransaction{
				Action:   models.TxActionDisputed,
				From:     p.DisputerWallet,
				To:       acc.Escrow.WalletAddress,
				Amount:   acc.Amount,
				Metadata: map[string]string{"reason": p.Reason},
			},
			audit: models.AuditTrailEntry{
				Action:    models.AuditEscrowDisputed,
				Actor:     p.DisputerWallet,
				ActorRole: actorRole(acc, p.DisputerWallet),
				Details:   map[string]string{"reason": p.Reason},
			},
			notify: func(l events.EscrowEvents, a models.EscrowAccount) {
				if l.OnDisputed != nil {
					l.OnDisputed(a)
				}
			},
		}, nil
	})
}

// mutate runs one transition under the escrow's lock. apply validates the guard against a
// private copy of the account and mutates it; nothing reaches the store unless notarization
// and the commit both succeed. Listeners fire after the lock is released.
func (s *EscrowService) mutate(ctx context.Context, op string, id uuid.UUID, apply func(acc *models.EscrowAccount, now time.Time) (*effect, error)) (*models.EscrowAccount, error) {
	acc, eff, err := s.commitTransition(ctx, op, id, apply)
	s.metrics.IncTransition(op, outcome(err))
	if err != nil {
		s.log.Debug("escrow transition rejected",
			zap.String("operation", op),
			zap.String("escrow_id", id.String()),
			zap.Error(err),
		)
		return nil, err
	}
	if eff.notify != nil {
		s.fire(*acc, eff.notify)
	}
	return acc, nil
}

func (s *EscrowService) commitTransition(ctx context.Context, op string, id uuid.UUID, apply func(acc *models.EscrowAccount, now time.Time) (*effect, error)) (*models.EscrowAccount, *effect, error) {
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: lock escrow %s: %w", op, id, err)
	}
	defer unlock()

	current, err := s.store.Get(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: load escrow: %w", op, err)
	}

	// One timestamp covers the account, its approval stamps, the ledger and the audit entry.
	now := s.now()
	prev := current.Status
	next := current.Clone()
	eff, err := apply(next, now)
	if err != nil {
		return nil, nil, err
	}
	if !models.IsValidTransition(prev, next.Status) {
		return nil, nil, fmt.Errorf("%w: transition from %s to %s is not allowed", ErrInvalidState, prev, next.Status)
	}
	next.UpdatedAt = now

	rec, err := s.notarize(ctx, *next)
	if err != nil {
		return nil, nil, err
	}
	next.ChainTxHash = rec.TxHash

	tx := s.ledgerEntry(next, now, rec.TxHash, eff.tx)
	audit := s.auditEntry(next, now, rec.TxHash, prev, eff.audit)

	err = s.store.Commit(ctx, repositories.Commit{
		Account:        next,
		PreviousStatus: prev,
		Transaction:    tx,
		Audit:          audit,
	})
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case errors.Is(err, repositories.ErrConflict):
		return nil, nil, fmt.Errorf("%w: escrow %s changed concurrently", ErrInvalidState, id)
	case err != nil:
		return nil, nil, fmt.Errorf("%s: commit escrow: %w", op, err)
	}

	s.log.Info("escrow transitioned",
		zap.String("operation", op),
		zap.String("escrow_id", id.String()),
		zap.String("from", string(prev)),
		zap.String("to", string(next.Status)),
		zap.String("chain_tx_hash", rec.TxHash),
	)

	next.Transactions = append(next.Transactions, tx.Clone())
	return next, eff, nil
}

// notarize bounds the notary call with the configured timeout.
func (s *EscrowService) notarize(ctx context.Context, snapshot models.EscrowAccount) (*models.NotarizationRecord, error) {
	nctx, cancel := context.WithTimeout(ctx, s.notaryTimeout)
	defer cancel()

	start := time.Now()
	rec, err := s.notary.Notarize(nctx, snapshot)
	if err == nil && (rec == nil || rec.TxHash == "") {
		err = errors.New("notary returned an empty record")
	}
	s.metrics.ObserveNotarize(time.Since(start), err)
	if err != nil {
		s.log.Warn("notarization failed",
			zap.String("escrow_id", snapshot.ID.String()),
			zap.String("status", string(snapshot.Status)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrNotarization, err)
	}
	return rec, nil
}

func (s *EscrowService) ledgerEntry(acc *models.EscrowAccount, now time.Time, hash string, tx models.EscrowTransaction) models.EscrowTransaction {
	tx.ID = uuid.New()
	tx.EscrowID = acc.ID
	tx.Currency = acc.Currency
	tx.Timestamp = now
	blockHash := hash
	tx.BlockHash = &blockHash
	return tx
}

func (s *EscrowService) auditEntry(acc *models.EscrowAccount, now time.Time, hash string, prev models.EscrowStatus, e models.AuditTrailEntry) models.AuditTrailEntry {
	e.ID = uuid.New()
	e.EscrowID = acc.ID
	e.Timestamp = now
	e.PreviousStatus = prev
	if prev == "" {
		e.PreviousStatus = acc.Status
	}
	e.NewStatus = acc.Status
	e.ChainTxHash = hash
	if e.Details == nil {
		e.Details = map[string]string{}
	}
	return e
}

// fire runs notify against every listener. A panicking listener is logged and skipped.
func (s *EscrowService) fire(acc models.EscrowAccount, notify func(l events.EscrowEvents, acc models.EscrowAccount)) {
	for _, l := range s.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.metrics.IncListenerPanic()
					s.log.Error("escrow listener panicked",
						zap.String("escrow_id", acc.ID.String()),
						zap.Any("panic", r),
					)
				}
			}()
			notify(l, *acc.Clone())
		}()
	}
}

// now is truncated to microseconds so values survive a Postgres round trip unchanged.
func (s *EscrowService) now() time.Time {
	return s.nowFn().UTC().Truncate(time.Microsecond)
}

func actorRole(acc *models.EscrowAccount, wallet string) models.PartyRole {
	if role, ok := acc.RoleOf(wallet); ok {
		return role
	}
	return models.RoleSystem
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func optional(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	c := *v
	return &c
}
