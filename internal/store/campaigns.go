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

func (s *Store) CreateCampaign(ctx context.Context, c *domain.MicrocreditCampaign) error {
	txHash, addr, block, logs, err := receiptArgs(c.Receipt)
	if err != nil {
		return err
	}
	err = s.Db.QueryRow(ctx,
		`INSERT INTO microcredit_campaigns
		   (id, partner_id, title, quantitative, min_allowed, max_allowed, max_amount, step_amount,
		    starts_at, expires_at, redeem_starts, redeem_ends, redeemable, status, registered, address,
		    tx_hash, contract_address, block_number, logs)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NULLIF($16, ''), $17, $18, $19, $20)
		 RETURNING created_at`,
		c.ID, c.PartnerID, c.Title, c.Quantitative,
		c.MinAllowed.String(), c.MaxAllowed.String(), c.MaxAmount.String(), c.StepAmount.String(),
		c.StartsAt, c.ExpiresAt, c.RedeemStarts, c.RedeemEnds, c.Redeemable, c.Status, c.Registered,
		c.Address, txHash, addr, block, logs,
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("campaign insert failed: %w", err)
	}
	return nil
}

func (s *Store) GetCampaign(ctx context.Context, id uuid.UUID) (*domain.MicrocreditCampaign, error) {
	row := s.Db.QueryRow(ctx, campaignSelect+` WHERE c.id = $1`, id)
	c, err := scanCampaign(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return c, nil
}

// CompleteCampaignRegistration records the deployed contract address and
// flips registered to completed. Monotonic: already-registered campaigns
// are left alone.
func (s *Store) CompleteCampaignRegistration(ctx context.Context, id uuid.UUID, address string, r *domain.Receipt) error {
	txHash, addr, block, logs, err := receiptArgs(r)
	if err != nil {
		return err
	}
	tag, err := s.Db.Exec(ctx,
		`UPDATE microcredit_campaigns
		 SET registered = 'completed', address = $2, tx_hash = $3, contract_address = $4, block_number = $5, logs = $6
		 WHERE id = $1 AND registered = 'pending'`,
		id, address, txHash, addr, block, logs,
	)
	if err != nil {
		return fmt.Errorf("campaign registration update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCampaignsRedeemStartingBetween selects published, redeemable
// campaigns whose redemption window opens inside [from, to). Feeds the
// campaign-starts notifier.
func (s *Store) ListCampaignsRedeemStartingBetween(ctx context.Context, from, to time.Time) ([]domain.MicrocreditCampaign, error) {
	rows, err := s.Db.Query(ctx,
		campaignSelect+`
		 WHERE c.status = 'published' AND c.redeemable AND c.redeem_starts >= $1 AND c.redeem_starts < $2
		 ORDER BY c.redeem_starts ASC`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MicrocreditCampaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

const campaignSelect = `
	SELECT c.id, c.partner_id, c.title, c.quantitative,
	       c.min_allowed, c.max_allowed, c.max_amount, c.step_amount,
	       c.starts_at, c.expires_at, c.redeem_starts, c.redeem_ends, c.redeemable,
	       c.status, c.registered, c.address, c.tx_hash, c.contract_address, c.block_number, c.logs, c.created_at
	FROM microcredit_campaigns c`

func scanCampaign(row pgx.Row) (*domain.MicrocreditCampaign, error) {
	var c domain.MicrocreditCampaign
	var minA, maxA, maxAmt, step string
	var address, txHash, addr *string
	var block *int64
	var logs []byte
	err := row.Scan(&c.ID, &c.PartnerID, &c.Title, &c.Quantitative,
		&minA, &maxA, &maxAmt, &step,
		&c.StartsAt, &c.ExpiresAt, &c.RedeemStarts, &c.RedeemEnds, &c.Redeemable,
		&c.Status, &c.Registered, &address, &txHash, &addr, &block, &logs, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if c.MinAllowed, err = decimal.NewFromString(minA); err != nil {
		return nil, fmt.Errorf("bad min_allowed %q: %w", minA, err)
	}
	if c.MaxAllowed, err = decimal.NewFromString(maxA); err != nil {
		return nil, fmt.Errorf("bad max_allowed %q: %w", maxA, err)
	}
	if c.MaxAmount, err = decimal.NewFromString(maxAmt); err != nil {
		return nil, fmt.Errorf("bad max_amount %q: %w", maxAmt, err)
	}
	if c.StepAmount, err = decimal.NewFromString(step); err != nil {
		return nil, fmt.Errorf("bad step_amount %q: %w", step, err)
	}
	if address != nil {
		c.Address = *address
	}
	if c.Receipt, err = scanReceipt(txHash, addr, block, logs); err != nil {
		return nil, err
	}
	return &c, nil
}
