package notary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	insertColumns = `id, escrow_id, tx_hash, prev_hash, buyer_wallet, seller_wallet, escrow_wallet,
	amount, status, notarized_at, block_number`
	recordColumns = `id, escrow_id, tx_hash, prev_hash, buyer_wallet, seller_wallet, escrow_wallet,
	amount::text, status, notarized_at, block_number`
)

// PostgresNotary keeps notarization records in the escrow database so every API replica
// reads and extends the same chains. Block numbers come from a shared sequence.
type PostgresNotary struct {
	pool  *pgxpool.Pool
	log   *zap.Logger
	nowFn func() time.Time
}

func NewPostgres(pool *pgxpool.Pool, log *zap.Logger) *PostgresNotary {
	return &PostgresNotary{pool: pool, log: log, nowFn: time.Now}
}

// SetNowFunc overrides the clock, mainly for tests.
func (n *PostgresNotary) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	n.nowFn = now
}

func (n *PostgresNotary) Notarize(ctx context.Context, snapshot models.EscrowAccount) (*models.NotarizationRecord, error) {
	tx, err := n.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin notarization: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialise writers of one chain; the lock is released with the transaction.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "notary:"+snapshot.ID.String()); err != nil {
		return nil, fmt.Errorf("lock notary chain: %w", err)
	}

	var prev string
	err = tx.QueryRow(ctx, `
		SELECT tx_hash FROM notary_records
		WHERE escrow_id = $1
		ORDER BY block_number DESC
		LIMIT 1
	`, snapshot.ID).Scan(&prev)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load chain head: %w", err)
	}

	var block int64
	if err := tx.QueryRow(ctx, `SELECT nextval('notary_block_seq')`).Scan(&block); err != nil {
		return nil, fmt.Errorf("next block marker: %w", err)
	}

	rec := models.NotarizationRecord{
		ID:       uuid.New(),
		PrevHash: prev,
		EscrowID: snapshot.ID,
		Parties:  snapshot.Parties(),
		Amount:   snapshot.Amount,
		Status:   snapshot.Status,
		// TIMESTAMPTZ keeps microseconds; the hash must survive the round trip.
		Timestamp:   n.nowFn().UTC().Truncate(time.Microsecond),
		BlockNumber: uint64(block),
	}
	rec.TxHash = ComputeHash(rec)

	_, err = tx.Exec(ctx, `
		INSERT INTO notary_records (`+insertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.ID, rec.EscrowID, rec.TxHash, rec.PrevHash,
		rec.Parties[0], rec.Parties[1], rec.Parties[2],
		rec.Amount.String(), rec.Status, rec.Timestamp, block)
	if err != nil {
		return nil, fmt.Errorf("write notarization record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit notarization record: %w", err)
	}

	n.log.Debug("escrow notarized",
		zap.String("escrow_id", rec.EscrowID.String()),
		zap.String("tx_hash", rec.TxHash),
		zap.Uint64("block", rec.BlockNumber),
	)
	return &rec, nil
}

// Record returns the record with id, or nil when none exists.
func (n *PostgresNotary) Record(ctx context.Context, id uuid.UUID) (*models.NotarizationRecord, error) {
	rec, err := scanRecord(n.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM notary_records WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load notarization record: %w", err)
	}
	return rec, nil
}

// History returns every record of an escrow in block order.
func (n *PostgresNotary) History(ctx context.Context, escrowID uuid.UUID) ([]models.NotarizationRecord, error) {
	rows, err := n.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM notary_records
		WHERE escrow_id = $1
		ORDER BY block_number
	`, escrowID)
	if err != nil {
		return nil, fmt.Errorf("query notarization records: %w", err)
	}
	defer rows.Close()

	records := make([]models.NotarizationRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notarization record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanRecord(row pgx.Row) (*models.NotarizationRecord, error) {
	var (
		rec    models.NotarizationRecord
		amount string
		block  int64
	)
	err := row.Scan(&rec.ID, &rec.EscrowID, &rec.TxHash, &rec.PrevHash,
		&rec.Parties[0], &rec.Parties[1], &rec.Parties[2],
		&amount, &rec.Status, &rec.Timestamp, &block)
	if err != nil {
		return nil, err
	}
	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse notarized amount %q: %w", amount, err)
	}
	rec.Timestamp = rec.Timestamp.UTC()
	rec.BlockNumber = uint64(block)
	return &rec, nil
}
