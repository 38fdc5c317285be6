package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
	"github.com/shopspring/decimal"
)

// PostgresStore is the persistent EscrowStore. It also serialises transitions across
// service instances with session-level advisory locks.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const accountColumns = `
	id, order_id, status, amount::text, currency,
	buyer_wallet, buyer_name, buyer_aadhaar_hash, buyer_approval, buyer_approved_at,
	seller_wallet, seller_name, seller_aadhaar_hash, seller_approval, seller_approved_at,
	escrow_wallet, escrow_name, escrow_approval, escrow_approved_at,
	created_at, updated_at, released_at, chain_tx_hash, on_chain_record_id, metadata`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) Insert(ctx context.Context, c Commit) error {
	if c.Account == nil {
		return fmt.Errorf("insert escrow: nil account")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	a := c.Account
	_, err = tx.Exec(ctx, `
		INSERT INTO escrow_accounts (
			id, order_id, status, amount, currency,
			buyer_wallet, buyer_name, buyer_aadhaar_hash, buyer_approval, buyer_approved_at,
			seller_wallet, seller_name, seller_aadhaar_hash, seller_approval, seller_approved_at,
			escrow_wallet, escrow_name, escrow_approval, escrow_approved_at,
			created_at, updated_at, released_at, chain_tx_hash, on_chain_record_id, metadata)
		VALUES ($1, $2, $3, $4::numeric, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25)
	`, a.ID, a.OrderID, a.Status, a.Amount.String(), a.Currency,
		a.Buyer.WalletAddress, a.Buyer.Name, a.Buyer.AadhaarHash, a.Buyer.ApprovalStatus, a.Buyer.ApprovedAt,
		a.Seller.WalletAddress, a.Seller.Name, a.Seller.AadhaarHash, a.Seller.ApprovalStatus, a.Seller.ApprovedAt,
		a.Escrow.WalletAddress, a.Escrow.Name, a.Escrow.ApprovalStatus, a.Escrow.ApprovedAt,
		a.CreatedAt, a.UpdatedAt, a.ReleasedAt, a.ChainTxHash, a.OnChainRecordID, a.Metadata)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "escrow_accounts_order_id_key" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert escrow: %w", err)
	}

	if err := appendTransaction(ctx, tx, c.Transaction); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, c.Audit); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Commit(ctx context.Context, c Commit) error {
	if c.Account == nil {
		return fmt.Errorf("commit escrow: nil account")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	a := c.Account
	tag, err := tx.Exec(ctx, `
		UPDATE escrow_accounts SET
			status = $2,
			buyer_approval = $3, buyer_approved_at = $4,
			seller_approval = $5, seller_approved_at = $6,
			escrow_approval = $7, escrow_approved_at = $8,
			updated_at = $9, released_at = $10,
			chain_tx_hash = $11, on_chain_record_id = $12, metadata = $13
		WHERE id = $1 AND status = $14
	`, a.ID, a.Status,
		a.Buyer.ApprovalStatus, a.Buyer.ApprovedAt,
		a.Seller.ApprovalStatus, a.Seller.ApprovedAt,
		a.Escrow.ApprovalStatus, a.Escrow.ApprovedAt,
		a.UpdatedAt, a.ReleasedAt,
		a.ChainTxHash, a.OnChainRecordID, a.Metadata,
		c.PreviousStatus)
	if err != nil {
		return fmt.Errorf("update escrow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM escrow_accounts WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}

	if err := appendTransaction(ctx, tx, c.Transaction); err != nil {
		return err
	}
	if err := appendAudit(ctx, tx, c.Audit); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.EscrowAccount, error) {
	acc, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM escrow_accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if acc.Transactions, err = s.Transactions(ctx, id); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *PostgresStore) ListByWallet(ctx context.Context, wallet string) ([]models.EscrowAccount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM escrow_accounts
		WHERE buyer_wallet = $1 OR seller_wallet = $1 OR escrow_wallet = $1
		ORDER BY seq ASC
	`, wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]models.EscrowAccount, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range accounts {
		if accounts[i].Transactions, err = s.Transactions(ctx, accounts[i].ID); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

func (s *PostgresStore) IDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM escrow_accounts ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Lock takes a session-level advisory lock keyed by the escrow id. The returned func
// unlocks and returns the connection to the pool.
func (s *PostgresStore) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	key := "escrow|" + id.String()
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtextextended($1, 0))`, key); err != nil {
		conn.Release()
		return nil, err
	}
	release := func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key)
		conn.Release()
	}
	return release, nil
}

func scanAccount(row rowScanner) (*models.EscrowAccount, error) {
	var (
		a      models.EscrowAccount
		amount string
	)
	err := row.Scan(&a.ID, &a.OrderID, &a.Status, &amount, &a.Currency,
		&a.Buyer.WalletAddress, &a.Buyer.Name, &a.Buyer.AadhaarHash, &a.Buyer.ApprovalStatus, &a.Buyer.ApprovedAt,
		&a.Seller.WalletAddress, &a.Seller.Name, &a.Seller.AadhaarHash, &a.Seller.ApprovalStatus, &a.Seller.ApprovedAt,
		&a.Escrow.WalletAddress, &a.Escrow.Name, &a.Escrow.ApprovalStatus, &a.Escrow.ApprovedAt,
		&a.CreatedAt, &a.UpdatedAt, &a.ReleasedAt, &a.ChainTxHash, &a.OnChainRecordID, &a.Metadata)
	if err != nil {
		return nil, err
	}
	if a.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse escrow amount %q: %w", amount, err)
	}
	a.Buyer.Role = models.RoleBuyer
	a.Seller.Role = models.RoleSeller
	a.Escrow.Role = models.RoleEscrow
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	a.ReleasedAt = utcPtr(a.ReleasedAt)
	a.Buyer.ApprovedAt = utcPtr(a.Buyer.ApprovedAt)
	a.Seller.ApprovedAt = utcPtr(a.Seller.ApprovedAt)
	a.Escrow.ApprovedAt = utcPtr(a.Escrow.ApprovedAt)
	return &a, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
