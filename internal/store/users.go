package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/punchamoorthee/pointchain/internal/domain"
)

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	err := s.Db.QueryRow(ctx,
		`INSERT INTO users (id, role, account, email, card, verified, activated)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
		 RETURNING created_at`,
		u.ID, u.Role, u.Account, u.Email, u.Card, u.Verified, u.Activated,
	).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("user insert failed: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	var email, card *string
	err := s.Db.QueryRow(ctx,
		`SELECT id, role, account, email, card, verified, activated, created_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Role, &u.Account, &email, &card, &u.Verified, &u.Activated, &u.CreatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if email != nil {
		u.Email = *email
	}
	if card != nil {
		u.Card = *card
	}
	return &u, nil
}

func (s *Store) CreateRegistrationTransaction(ctx context.Context, t *domain.RegistrationTransaction) error {
	txHash, addr, block, logs, err := receiptArgs(t.Receipt)
	if err != nil {
		return err
	}
	err = s.Db.QueryRow(ctx,
		`INSERT INTO registration_transactions (id, user_id, type, status, tx_hash, contract_address, block_number, logs)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		t.ID, t.UserID, t.Type, t.Status, txHash, addr, block, logs,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("registration transaction insert failed: %w", err)
	}
	return nil
}

// CompleteRegistrationTransaction promotes a pending record. The status
// predicate keeps the transition monotonic: a completed record is never
// rewritten, even by a racing duplicate sweep.
func (s *Store) CompleteRegistrationTransaction(ctx context.Context, id uuid.UUID, r *domain.Receipt) error {
	txHash, addr, block, logs, err := receiptArgs(r)
	if err != nil {
		return err
	}
	tag, err := s.Db.Exec(ctx,
		`UPDATE registration_transactions
		 SET status = 'completed', tx_hash = $2, contract_address = $3, block_number = $4, logs = $5
		 WHERE id = $1 AND status = 'pending'`,
		id, txHash, addr, block, logs,
	)
	if err != nil {
		return fmt.Errorf("registration transaction update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
