package notary

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/openclaw-gurusharan/ondc-seller/internal/models"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"
)

const (
	recordKeyPrefix = "record:"
	escrowKeyPrefix = "escrow:"
	headKeyPrefix   = "head:"
	blockKey        = "meta:block"
)

var ErrClosed = errors.New("notary: store closed")

// Notarizer records tamper-evident receipts of escrow events outside the escrow store.
type Notarizer interface {
	Notarize(ctx context.Context, snapshot models.EscrowAccount) (*models.NotarizationRecord, error)
	Record(ctx context.Context, id uuid.UUID) (*models.NotarizationRecord, error)
	History(ctx context.Context, escrowID uuid.UUID) ([]models.NotarizationRecord, error)
}

// Notary is a LevelDB-backed Notarizer. Every record of an escrow carries the hash of the
// previous one, and the block marker increases across all escrows.
type Notary struct {
	mu    sync.Mutex
	db    *leveldb.DB
	log   *zap.Logger
	nowFn func() time.Time
}

// Open opens (or creates) a LevelDB notary database at path.
func Open(path string, log *zap.Logger) (*Notary, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("notary path required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve notary path: %w", err)
	}
	db, err := leveldb.OpenFile(abs, nil)
	if err != nil {
		return nil, fmt.Errorf("open notary store: %w", err)
	}
	log.Info("notary store opened", zap.String("path", abs))
	return &Notary{db: db, log: log, nowFn: time.Now}, nil
}

// OpenMemory returns a notary backed by in-memory LevelDB storage.
func OpenMemory(log *zap.Logger) (*Notary, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open memory notary: %w", err)
	}
	return &Notary{db: db, log: log, nowFn: time.Now}, nil
}

// SetNowFunc overrides the clock, mainly for tests.
func (n *Notary) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	n.mu.Lock()
	n.nowFn = now
	n.mu.Unlock()
}

func (n *Notary) Close() error {
	if n == nil || n.db == nil {
		return nil
	}
	return n.db.Close()
}

func (n *Notary) Notarize(ctx context.Context, snapshot models.EscrowAccount) (*models.NotarizationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n == nil || n.db == nil {
		return nil, ErrClosed
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	block, err := n.lastBlock()
	if err != nil {
		return nil, err
	}
	prev, err := n.head(snapshot.ID)
	if err != nil {
		return nil, err
	}

	rec := models.NotarizationRecord{
		ID:          uuid.New(),
		PrevHash:    prev,
		EscrowID:    snapshot.ID,
		Parties:     snapshot.Parties(),
		Amount:      snapshot.Amount,
		Status:      snapshot.Status,
		Timestamp:   n.nowFn().UTC(),
		BlockNumber: block + 1,
	}
	rec.TxHash = ComputeHash(rec)

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode notarization record: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put(recordKey(rec.ID), data)
	batch.Put(escrowKey(rec.EscrowID, rec.BlockNumber), rec.ID[:])
	batch.Put(headKey(rec.EscrowID), []byte(rec.TxHash))
	batch.Put([]byte(blockKey), encodeUint64(rec.BlockNumber))
	if err := n.db.Write(batch, nil); err != nil {
		return nil, fmt.Errorf("write notarization record: %w", err)
	}

	n.log.Debug("escrow notarized",
		zap.String("escrow_id", rec.EscrowID.String()),
		zap.String("tx_hash", rec.TxHash),
		zap.Uint64("block", rec.BlockNumber),
	)
	return &rec, nil
}

// Record returns the record with id, or nil when none exists.
func (n *Notary) Record(ctx context.Context, id uuid.UUID) (*models.NotarizationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n == nil || n.db == nil {
		return nil, ErrClosed
	}
	data, err := n.db.Get(recordKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load notarization record: %w", err)
	}
	var rec models.NotarizationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode notarization record: %w", err)
	}
	return &rec, nil
}

// History returns every record of an escrow in block order.
func (n *Notary) History(ctx context.Context, escrowID uuid.UUID) ([]models.NotarizationRecord, error) {
	if n == nil || n.db == nil {
		return nil, ErrClosed
	}
	iter := n.db.NewIterator(util.BytesPrefix([]byte(escrowKeyPrefix+escrowID.String()+":")), nil)
	defer iter.Release()

	records := make([]models.NotarizationRecord, 0)
	for iter.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		id, err := uuid.FromBytes(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("decode record id: %w", err)
		}
		rec, err := n.Record(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, fmt.Errorf("notarization index references missing record %s", id)
		}
		records = append(records, *rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate notarization records: %w", err)
	}
	return records, nil
}

func (n *Notary) lastBlock() (uint64, error) {
	v, err := n.db.Get([]byte(blockKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load block marker: %w", err)
	}
	return binary.BigEndian.Uint64(v), nil
}

func (n *Notary) head(escrowID uuid.UUID) (string, error) {
	v, err := n.db.Get(headKey(escrowID), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load chain head: %w", err)
	}
	return string(v), nil
}

func recordKey(id uuid.UUID) []byte { return []byte(recordKeyPrefix + id.String()) }

func headKey(escrowID uuid.UUID) []byte { return []byte(headKeyPrefix + escrowID.String()) }

// escrowKey sorts lexicographically by block number.
func escrowKey(escrowID uuid.UUID, block uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", escrowKeyPrefix, escrowID.String(), block))
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

// ComputeHash returns the Keccak-256 hash of the record's canonical form, 0x-prefixed.
// TxHash itself is excluded.
func ComputeHash(rec models.NotarizationRecord) string {
	payload := strings.Join([]string{
		rec.ID.String(),
		rec.PrevHash,
		rec.EscrowID.String(),
		rec.Parties[0], rec.Parties[1], rec.Parties[2],
		rec.Amount.String(),
		string(rec.Status),
		fmt.Sprintf("%d", rec.Timestamp.UnixNano()),
		fmt.Sprintf("%d", rec.BlockNumber),
	}, "|")
	return ethcrypto.Keccak256Hash([]byte(payload)).Hex()
}
