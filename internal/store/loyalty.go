package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/pointchain/internal/domain"
	"github.com/shopspring/decimal"
)

// CreateLoyaltyTransaction persists one points movement and applies its
// delta to the member's balance projection in the same database
// transaction. The balance update is a single atomic increment, so
// concurrent writers for the same member cannot lose updates.
func (s *Store) CreateLoyaltyTransaction(ctx context.Context, t *domain.LoyaltyTransaction) error {
	txHash, addr, block, logs, err := receiptArgs(t.Receipt)
	if err != nil {
		return err
	}

	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO loyalty_transactions
		   (id, partner_id, member_id, offer_id, points, amount, quantity, type, status, tx_hash, contract_address, block_number, logs)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING created_at`,
		t.ID, t.PartnerID, t.MemberID, t.OfferID, t.Points, t.Amount.String(), t.Quantity,
		t.Type, t.Status, txHash, addr, block, logs,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("loyalty transaction insert failed: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO loyalty (member_id, current_points, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (member_id)
		 DO UPDATE SET current_points = loyalty.current_points + EXCLUDED.current_points, updated_at = now()`,
		t.MemberID, t.Points,
	)
	if err != nil {
		return fmt.Errorf("loyalty balance update failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// CompleteLoyaltyTransaction promotes a pending record with its receipt.
// Balances are untouched here; they were applied at creation time.
func (s *Store) CompleteLoyaltyTransaction(ctx context.Context, id uuid.UUID, r *domain.Receipt) error {
	txHash, addr, block, logs, err := receiptArgs(r)
	if err != nil {
		return err
	}
	tag, err := s.Db.Exec(ctx,
		`UPDATE loyalty_transactions
		 SET status = 'completed', tx_hash = $2, contract_address = $3, block_number = $4, logs = $5
		 WHERE id = $1 AND status = 'pending'`,
		id, txHash, addr, block, logs,
	)
	if err != nil {
		return fmt.Errorf("loyalty transaction update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetLoyalty returns the member's balance projection. A member with no
// transactions yet reads as a zero balance rather than not-found.
func (s *Store) GetLoyalty(ctx context.Context, memberID uuid.UUID) (*domain.Loyalty, error) {
	l := domain.Loyalty{MemberID: memberID}
	err := s.Db.QueryRow(ctx,
		`SELECT current_points, updated_at FROM loyalty WHERE member_id = $1`, memberID,
	).Scan(&l.CurrentPoints, &l.UpdatedAt)
	if err == pgx.ErrNoRows {
		l.UpdatedAt = time.Now()
		return &l, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLoyaltyTransactions pages a member's transactions, newest first.
func (s *Store) ListLoyaltyTransactions(ctx context.Context, memberID uuid.UUID, page, size int) ([]domain.LoyaltyTransaction, error) {
	if size <= 0 {
		size = 20
	}
	if page < 0 {
		page = 0
	}
	rows, err := s.Db.Query(ctx,
		`SELECT id, partner_id, member_id, offer_id, points, amount, quantity, type, status,
		        tx_hash, contract_address, block_number, logs, created_at
		 FROM loyalty_transactions
		 WHERE member_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		memberID, size, page*size,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LoyaltyTransaction
	for rows.Next() {
		t, err := scanLoyaltyTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanLoyaltyTransaction(row pgx.Row) (*domain.LoyaltyTransaction, error) {
	var t domain.LoyaltyTransaction
	var amount string
	var txHash, addr *string
	var block *int64
	var logs []byte
	err := row.Scan(&t.ID, &t.PartnerID, &t.MemberID, &t.OfferID, &t.Points, &amount, &t.Quantity,
		&t.Type, &t.Status, &txHash, &addr, &block, &logs, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", amount, err)
	}
	if t.Receipt, err = scanReceipt(txHash, addr, block, logs); err != nil {
		return nil, err
	}
	return &t, nil
}
