// Copyright 2025 Certen Protocol
//
// Index is an optional Postgres read mirror for block/transaction
// listings, grounded on pkg/database/client.go's connection-pooled
// *sql.DB wrapper and pkg/database/repository_proof.go's
// QueryContext/ORDER BY/LIMIT query style. BlockStore's append-only
// writes are mirrored here, and ListBlocks/ListTransactions offer
// paginated SQL listings; the RPC handlers for GET /transactions and
// GET /blocks read from BlockStore, not from this index. A nil *Index
// means a KV-only deployment.

package pgindex

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/SatsBridge/payy/pkg/types"
)

// Index wraps a connection-pooled Postgres mirror of finalized blocks and
// their transactions.
type Index struct {
	db *sql.DB
}

// Config configures the connection pool, mirroring
// DatabaseMaxConns/DatabaseMinConns/DatabaseMaxIdleTime/DatabaseMaxLifetime
// fields from the client this package is grounded on.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to Postgres and verifies the connection with a ping,
// exactly as database.NewClient does.
func Open(cfg Config) (*Index, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgindex: dsn cannot be empty")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgindex: open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgindex: ping: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the underlying connection pool.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// MirrorBlock upserts a finalized block and its transactions into the
// read-mirror tables, called right after BlockStore.AppendBlock succeeds.
func (idx *Index) MirrorBlock(ctx context.Context, height uint64, blockHash, rootHash types.Element, txnHashes []types.Element) error {
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgindex: begin tx: %w", err)
	}
	defer tx.Rollback()

	const insertBlock = `
		INSERT INTO blocks (height, block_hash, root_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (height) DO NOTHING`
	if _, err := tx.ExecContext(ctx, insertBlock, height, blockHash.Hex(), rootHash.Hex(), time.Now()); err != nil {
		return fmt.Errorf("pgindex: insert block: %w", err)
	}

	const insertTxn = `
		INSERT INTO transactions (txn_hash, height, tx_index, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (txn_hash) DO NOTHING`
	for i, h := range txnHashes {
		if _, err := tx.ExecContext(ctx, insertTxn, h.Hex(), height, i, time.Now()); err != nil {
			return fmt.Errorf("pgindex: insert transaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgindex: commit: %w", err)
	}
	return nil
}

// BlockSummary is one row of a paginated block listing.
type BlockSummary struct {
	Height    uint64
	BlockHash string
	RootHash  string
}

// ListBlocks returns up to limit block summaries strictly below
// beforeHeight (0 means "from the latest"), newest first.
func (idx *Index) ListBlocks(ctx context.Context, beforeHeight uint64, limit int) ([]BlockSummary, error) {
	query := `
		SELECT height, block_hash, root_hash FROM blocks
		WHERE ($1 = 0 OR height < $1)
		ORDER BY height DESC
		LIMIT $2`

	rows, err := idx.db.QueryContext(ctx, query, beforeHeight, limit)
	if err != nil {
		return nil, fmt.Errorf("pgindex: list blocks: %w", err)
	}
	defer rows.Close()

	var out []BlockSummary
	for rows.Next() {
		var s BlockSummary
		if err := rows.Scan(&s.Height, &s.BlockHash, &s.RootHash); err != nil {
			return nil, fmt.Errorf("pgindex: scan block row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TransactionSummary is one row of a paginated transaction listing.
type TransactionSummary struct {
	TxnHash string
	Height  uint64
	TxIndex int
}

// ListTransactions returns up to limit transaction summaries strictly
// below beforeHeight, newest first.
func (idx *Index) ListTransactions(ctx context.Context, beforeHeight uint64, limit int) ([]TransactionSummary, error) {
	query := `
		SELECT txn_hash, height, tx_index FROM transactions
		WHERE ($1 = 0 OR height < $1)
		ORDER BY height DESC, tx_index DESC
		LIMIT $2`

	rows, err := idx.db.QueryContext(ctx, query, beforeHeight, limit)
	if err != nil {
		return nil, fmt.Errorf("pgindex: list transactions: %w", err)
	}
	defer rows.Close()

	var out []TransactionSummary
	for rows.Next() {
		var s TransactionSummary
		if err := rows.Scan(&s.TxnHash, &s.Height, &s.TxIndex); err != nil {
			return nil, fmt.Errorf("pgindex: scan transaction row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
