package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/pointchain/internal/domain"
)

var ErrNotFound = errors.New("record not found")

// Store is the document store for transaction records, balance projections
// and their referenced entities. It is the single source of truth; the
// chain is an eventually-consistent mirror of what lands here.
type Store struct {
	Db *pgxpool.Pool
}

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

// receipt column plumbing: receipts live as three scalar columns plus a
// JSONB log array, nullable until the chain call lands.

func receiptArgs(r *domain.Receipt) (txHash, addr *string, block *int64, logs []byte, err error) {
	if r == nil {
		return nil, nil, nil, nil, nil
	}
	txHash = &r.TxHash
	block = &r.BlockNumber
	if r.ContractAddress != "" {
		addr = &r.ContractAddress
	}
	if len(r.Logs) > 0 {
		logs, err = json.Marshal(r.Logs)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("encode receipt logs: %w", err)
		}
	}
	return txHash, addr, block, logs, nil
}

func scanReceipt(txHash, addr *string, block *int64, logs []byte) (*domain.Receipt, error) {
	if txHash == nil {
		return nil, nil
	}
	r := &domain.Receipt{TxHash: *txHash}
	if block != nil {
		r.BlockNumber = *block
	}
	if addr != nil {
		r.ContractAddress = *addr
	}
	if len(logs) > 0 {
		if err := json.Unmarshal(logs, &r.Logs); err != nil {
			return nil, fmt.Errorf("decode receipt logs: %w", err)
		}
	}
	return r, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
