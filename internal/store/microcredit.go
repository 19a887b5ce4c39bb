package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/pointchain/internal/domain"
	"github.com/shopspring/decimal"
)

// CreateSupportWithPromise persists a new pledge and its PromiseFund
// transaction atomically. The support's token counters are set directly at
// insert; there is no separate increment to race against.
func (s *Store) CreateSupportWithPromise(ctx context.Context, sp *domain.MicrocreditSupport, t *domain.MicrocreditTransaction) error {
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
		`INSERT INTO microcredit_supports
		   (id, campaign_id, member_id, initial_tokens, current_tokens, amount, status, payment, contract_ref, contract_index)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10)
		 RETURNING created_at`,
		sp.ID, sp.CampaignID, sp.MemberID, sp.InitialTokens, sp.CurrentTokens, sp.Amount.String(),
		sp.Status, sp.Payment, sp.ContractRef, sp.ContractIndex,
	).Scan(&sp.CreatedAt)
	if err != nil {
		return fmt.Errorf("support insert failed: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO microcredit_transactions
		   (id, support_id, tokens, payoff, type, status, tx_hash, contract_address, block_number, logs)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		t.ID, t.SupportID, t.Tokens, t.Payoff.String(), t.Type, t.Status, txHash, addr, block, logs,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("promise transaction insert failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// CreateMicrocreditTransaction appends one event to a support's log and
// applies tokenDelta to current_tokens atomically. Receive and Revert pass
// a zero delta; only the payoff figure moves for those.
func (s *Store) CreateMicrocreditTransaction(ctx context.Context, t *domain.MicrocreditTransaction, tokenDelta int64) error {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertMicrocreditTx(ctx, tx, t); err != nil {
		return err
	}
	if err := applyTokenDelta(ctx, tx, t.SupportID, tokenDelta); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// CreateMicrocreditTransactionWithStatus appends one event, applies
// tokenDelta and moves the support to the given status in a single
// transaction. Used wherever the event and the status flip must land
// together: a confirmation recorded with the support still unpaid would
// let a retry pass the status guard and record a second payoff.
func (s *Store) CreateMicrocreditTransactionWithStatus(ctx context.Context, t *domain.MicrocreditTransaction, tokenDelta int64, status domain.SupportStatus) error {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertMicrocreditTx(ctx, tx, t); err != nil {
		return err
	}
	if err := applyTokenDelta(ctx, tx, t.SupportID, tokenDelta); err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE microcredit_supports SET status = $2 WHERE id = $1`, t.SupportID, status,
	)
	if err != nil {
		return fmt.Errorf("support status update failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

func insertMicrocreditTx(ctx context.Context, tx pgx.Tx, t *domain.MicrocreditTransaction) error {
	txHash, addr, block, logs, err := receiptArgs(t.Receipt)
	if err != nil {
		return err
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO microcredit_transactions
		   (id, support_id, tokens, payoff, type, status, tx_hash, contract_address, block_number, logs)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		t.ID, t.SupportID, t.Tokens, t.Payoff.String(), t.Type, t.Status, txHash, addr, block, logs,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("microcredit transaction insert failed: %w", err)
	}
	return nil
}

func applyTokenDelta(ctx context.Context, tx pgx.Tx, supportID uuid.UUID, delta int64) error {
	if delta == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`UPDATE microcredit_supports SET current_tokens = current_tokens + $2 WHERE id = $1`,
		supportID, delta,
	)
	if err != nil {
		return fmt.Errorf("support token update failed: %w", err)
	}
	return nil
}

// CompleteMicrocreditTransaction promotes a pending record with its
// receipt. Token counters are untouched; they were applied at creation.
func (s *Store) CompleteMicrocreditTransaction(ctx context.Context, id uuid.UUID, r *domain.Receipt) error {
	txHash, addr, block, logs, err := receiptArgs(r)
	if err != nil {
		return err
	}
	tag, err := s.Db.Exec(ctx,
		`UPDATE microcredit_transactions
		 SET status = 'completed', tx_hash = $2, contract_address = $3, block_number = $4, logs = $5
		 WHERE id = $1 AND status = 'pending'`,
		id, txHash, addr, block, logs,
	)
	if err != nil {
		return fmt.Errorf("microcredit transaction update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetSupport(ctx context.Context, id uuid.UUID) (*domain.MicrocreditSupport, error) {
	row := s.Db.QueryRow(ctx, supportSelect+` WHERE sp.id = $1`, id)
	sp, err := scanSupport(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return sp, nil
}

// SetSupportContract records the pledge's position in the on-chain
// campaign record, learned from the PromiseFund receipt logs.
func (s *Store) SetSupportContract(ctx context.Context, id uuid.UUID, ref string, index int) error {
	tag, err := s.Db.Exec(ctx,
		`UPDATE microcredit_supports SET contract_ref = $2, contract_index = $3 WHERE id = $1`,
		id, ref, index,
	)
	if err != nil {
		return fmt.Errorf("support contract update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const supportSelect = `
	SELECT sp.id, sp.campaign_id, sp.member_id, sp.initial_tokens, sp.current_tokens, sp.amount,
	       sp.status, sp.payment, sp.contract_ref, sp.contract_index, sp.created_at
	FROM microcredit_supports sp`

func scanSupport(row pgx.Row) (*domain.MicrocreditSupport, error) {
	var sp domain.MicrocreditSupport
	var amount string
	var payment, ref *string
	err := row.Scan(&sp.ID, &sp.CampaignID, &sp.MemberID, &sp.InitialTokens, &sp.CurrentTokens, &amount,
		&sp.Status, &payment, &ref, &sp.ContractIndex, &sp.CreatedAt)
	if err != nil {
		return nil, err
	}
	if sp.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", amount, err)
	}
	if payment != nil {
		sp.Payment = *payment
	}
	if ref != nil {
		sp.ContractRef = *ref
	}
	return &sp, nil
}
