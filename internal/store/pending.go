package store

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/pointchain/internal/domain"
	"github.com/shopspring/decimal"
)

// Pending-record hydration. The reconciler re-derives each chain call from
// the stored record alone, so these queries materialize the full referenced
// graph in one round trip, oldest record first so churn never starves an
// old record.

func (s *Store) ListPendingRegistrations(ctx context.Context, limit int) ([]domain.PendingRegistration, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT t.id, t.user_id, t.type, t.status, t.created_at,
		        u.id, u.role, u.account, COALESCE(u.email, ''), COALESCE(u.card, ''), u.verified, u.activated, u.created_at
		 FROM registration_transactions t
		 JOIN users u ON u.id = t.user_id
		 WHERE t.status = 'pending'
		 ORDER BY t.created_at ASC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pending registrations query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingRegistration
	for rows.Next() {
		var p domain.PendingRegistration
		err := rows.Scan(&p.Tx.ID, &p.Tx.UserID, &p.Tx.Type, &p.Tx.Status, &p.Tx.CreatedAt,
			&p.User.ID, &p.User.Role, &p.User.Account, &p.User.Email, &p.User.Card,
			&p.User.Verified, &p.User.Activated, &p.User.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListPendingLoyalty(ctx context.Context, limit int) ([]domain.PendingLoyalty, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT t.id, t.partner_id, t.member_id, t.offer_id, t.points, t.amount, t.quantity, t.type, t.status, t.created_at,
		        p.id, p.role, p.account,
		        m.id, m.role, m.account
		 FROM loyalty_transactions t
		 JOIN users p ON p.id = t.partner_id
		 JOIN users m ON m.id = t.member_id
		 WHERE t.status = 'pending'
		 ORDER BY t.created_at ASC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pending loyalty query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingLoyalty
	for rows.Next() {
		var p domain.PendingLoyalty
		var amount string
		err := rows.Scan(&p.Tx.ID, &p.Tx.PartnerID, &p.Tx.MemberID, &p.Tx.OfferID, &p.Tx.Points, &amount,
			&p.Tx.Quantity, &p.Tx.Type, &p.Tx.Status, &p.Tx.CreatedAt,
			&p.Partner.ID, &p.Partner.Role, &p.Partner.Account,
			&p.Member.ID, &p.Member.Role, &p.Member.Account)
		if err != nil {
			return nil, err
		}
		if p.Tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bad amount %q: %w", amount, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPendingCampaigns returns published campaigns awaiting contract
// registration, each with its owning partner. Drafts stay off the chain
// until published.
func (s *Store) ListPendingCampaigns(ctx context.Context, limit int) ([]domain.PendingCampaign, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT c.id, c.partner_id, c.title, c.quantitative,
		        c.min_allowed, c.max_allowed, c.max_amount, c.step_amount,
		        c.starts_at, c.expires_at, c.redeem_starts, c.redeem_ends, c.redeemable,
		        c.status, c.registered, c.created_at,
		        p.id, p.role, p.account
		 FROM microcredit_campaigns c
		 JOIN users p ON p.id = c.partner_id
		 WHERE c.registered = 'pending' AND c.status = 'published'
		 ORDER BY c.created_at ASC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pending campaigns query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingCampaign
	for rows.Next() {
		var p domain.PendingCampaign
		var minA, maxA, maxAmt, step string
		err := rows.Scan(&p.Campaign.ID, &p.Campaign.PartnerID, &p.Campaign.Title, &p.Campaign.Quantitative,
			&minA, &maxA, &maxAmt, &step,
			&p.Campaign.StartsAt, &p.Campaign.ExpiresAt, &p.Campaign.RedeemStarts, &p.Campaign.RedeemEnds,
			&p.Campaign.Redeemable, &p.Campaign.Status, &p.Campaign.Registered, &p.Campaign.CreatedAt,
			&p.Partner.ID, &p.Partner.Role, &p.Partner.Account)
		if err != nil {
			return nil, err
		}
		if p.Campaign.MinAllowed, err = decimal.NewFromString(minA); err != nil {
			return nil, fmt.Errorf("bad min_allowed %q: %w", minA, err)
		}
		if p.Campaign.MaxAllowed, err = decimal.NewFromString(maxA); err != nil {
			return nil, fmt.Errorf("bad max_allowed %q: %w", maxA, err)
		}
		if p.Campaign.MaxAmount, err = decimal.NewFromString(maxAmt); err != nil {
			return nil, fmt.Errorf("bad max_amount %q: %w", maxAmt, err)
		}
		if p.Campaign.StepAmount, err = decimal.NewFromString(step); err != nil {
			return nil, fmt.Errorf("bad step_amount %q: %w", step, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPendingPromises returns pending PromiseFund transactions; all other
// microcredit types come from ListPendingMicrocredit. They sweep as
// separate families because a promise must land before receive/revert/
// spend against the same pledge can possibly succeed.
func (s *Store) ListPendingPromises(ctx context.Context, limit int) ([]domain.PendingMicrocredit, error) {
	return s.listPendingMicrocredit(ctx, limit, true)
}

func (s *Store) ListPendingMicrocredit(ctx context.Context, limit int) ([]domain.PendingMicrocredit, error) {
	return s.listPendingMicrocredit(ctx, limit, false)
}

func (s *Store) listPendingMicrocredit(ctx context.Context, limit int, promises bool) ([]domain.PendingMicrocredit, error) {
	op := "<>"
	if promises {
		op = "="
	}
	rows, err := s.Db.Query(ctx,
		`SELECT t.id, t.support_id, t.tokens, t.payoff, t.type, t.status, t.created_at,
		        sp.id, sp.campaign_id, sp.member_id, sp.initial_tokens, sp.current_tokens, sp.amount,
		        sp.status, COALESCE(sp.payment, ''), COALESCE(sp.contract_ref, ''), sp.contract_index, sp.created_at,
		        c.id, c.partner_id, c.registered, COALESCE(c.address, ''), c.quantitative, c.step_amount,
		        m.id, m.role, m.account
		 FROM microcredit_transactions t
		 JOIN microcredit_supports sp ON sp.id = t.support_id
		 JOIN microcredit_campaigns c ON c.id = sp.campaign_id
		 JOIN users m ON m.id = sp.member_id
		 WHERE t.status = 'pending' AND t.type `+op+` 'PromiseFund'
		 ORDER BY t.created_at ASC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pending microcredit query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingMicrocredit
	for rows.Next() {
		var p domain.PendingMicrocredit
		var payoff, spAmount, step string
		err := rows.Scan(&p.Tx.ID, &p.Tx.SupportID, &p.Tx.Tokens, &payoff, &p.Tx.Type, &p.Tx.Status, &p.Tx.CreatedAt,
			&p.Support.ID, &p.Support.CampaignID, &p.Support.MemberID, &p.Support.InitialTokens,
			&p.Support.CurrentTokens, &spAmount, &p.Support.Status, &p.Support.Payment,
			&p.Support.ContractRef, &p.Support.ContractIndex, &p.Support.CreatedAt,
			&p.Campaign.ID, &p.Campaign.PartnerID, &p.Campaign.Registered, &p.Campaign.Address,
			&p.Campaign.Quantitative, &step,
			&p.Member.ID, &p.Member.Role, &p.Member.Account)
		if err != nil {
			return nil, err
		}
		if p.Tx.Payoff, err = decimal.NewFromString(payoff); err != nil {
			return nil, fmt.Errorf("bad payoff %q: %w", payoff, err)
		}
		if p.Support.Amount, err = decimal.NewFromString(spAmount); err != nil {
			return nil, fmt.Errorf("bad support amount %q: %w", spAmount, err)
		}
		if p.Campaign.StepAmount, err = decimal.NewFromString(step); err != nil {
			return nil, fmt.Errorf("bad step_amount %q: %w", step, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
