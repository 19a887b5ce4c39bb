package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/punchamoorthee/pointchain/internal/domain"
	"github.com/punchamoorthee/pointchain/internal/store"
)

// Update operations retry the chain call for a still-pending record. The
// call is re-derived entirely from the hydrated record, never from request
// state. On success the record is promoted and returned; on failure (or
// with chain mirroring disabled) the result is (nil, nil) and the stored
// record is left untouched. Retrying is idempotent: balances were applied
// at creation time and are never revisited here.

func (s *Service) UpdateRegistrationTransaction(ctx context.Context, p domain.PendingRegistration) (*domain.RegistrationTransaction, error) {
	outcome := s.attempt(ctx, string(p.Tx.Type), func(ctx context.Context) (*domain.Receipt, error) {
		if p.Tx.Type == domain.RegisterMember {
			return s.ledger.RegisterMemberAccount(ctx, p.User.Account)
		}
		return s.ledger.RegisterPartnerAccount(ctx, p.User.Account)
	})
	if !outcome.OK() {
		return nil, nil
	}

	if err := s.store.CompleteRegistrationTransaction(ctx, p.Tx.ID, outcome.Receipt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Raced with another promotion; the record is already terminal.
			return nil, nil
		}
		return nil, fmt.Errorf("complete registration transaction: %w", err)
	}
	p.Tx.Status = domain.StatusCompleted
	p.Tx.Receipt = outcome.Receipt
	return &p.Tx, nil
}

func (s *Service) UpdateLoyaltyTransaction(ctx context.Context, p domain.PendingLoyalty) (*domain.LoyaltyTransaction, error) {
	outcome := s.attempt(ctx, string(p.Tx.Type), func(ctx context.Context) (*domain.Receipt, error) {
		if p.Tx.Type == domain.EarnPoints {
			return s.ledger.EarnPoints(ctx, p.Tx.Points, p.Member.Account, p.Partner.Account)
		}
		// Redeem deltas are stored negative; the contract takes a count.
		return s.ledger.RedeemPoints(ctx, -p.Tx.Points, p.Member.Account, p.Partner.Account)
	})
	if !outcome.OK() {
		return nil, nil
	}

	if err := s.store.CompleteLoyaltyTransaction(ctx, p.Tx.ID, outcome.Receipt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("complete loyalty transaction: %w", err)
	}
	p.Tx.Status = domain.StatusCompleted
	p.Tx.Receipt = outcome.Receipt
	return &p.Tx, nil
}

func (s *Service) UpdateCampaignRegistration(ctx context.Context, p domain.PendingCampaign) (*domain.MicrocreditCampaign, error) {
	outcome := s.attempt(ctx, "registerCampaign", func(ctx context.Context) (*domain.Receipt, error) {
		return s.ledger.RegisterCampaign(ctx, p.Partner.Account, campaignTerms(&p.Campaign))
	})
	if !outcome.OK() {
		return nil, nil
	}

	address := outcome.Receipt.ContractAddress
	if err := s.store.CompleteCampaignRegistration(ctx, p.Campaign.ID, address, outcome.Receipt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("complete campaign registration: %w", err)
	}
	p.Campaign.Registered = domain.StatusCompleted
	p.Campaign.Address = address
	p.Campaign.Receipt = outcome.Receipt
	return &p.Campaign, nil
}

// UpdatePromiseTransaction retries a pledge's PromiseFund call. It
// requires the campaign contract to exist; until then the record is
// skipped with ErrCampaignNotRegistered and retried on a later sweep.
func (s *Service) UpdatePromiseTransaction(ctx context.Context, p domain.PendingMicrocredit) (*domain.MicrocreditTransaction, error) {
	if p.Campaign.Registered != domain.StatusCompleted {
		return nil, ErrCampaignNotRegistered
	}

	outcome := s.attempt(ctx, "promiseFund", func(ctx context.Context) (*domain.Receipt, error) {
		return s.ledger.PromiseFund(ctx, p.Campaign.Address, p.Member.Account, p.Support.Amount)
	})
	if !outcome.OK() {
		return nil, nil
	}

	if err := s.store.CompleteMicrocreditTransaction(ctx, p.Tx.ID, outcome.Receipt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("complete promise transaction: %w", err)
	}
	if len(outcome.Receipt.Logs) > 0 {
		log := outcome.Receipt.Logs[0]
		if err := s.store.SetSupportContract(ctx, p.Support.ID, log.Ref, log.Index); err != nil {
			return nil, fmt.Errorf("record support contract position: %w", err)
		}
	}
	p.Tx.Status = domain.StatusCompleted
	p.Tx.Receipt = outcome.Receipt
	return &p.Tx, nil
}

// UpdateMicrocreditTransaction retries receive, revert and spend records.
// Receive and revert additionally need the pledge's contract index, which
// only exists once its PromiseFund has landed.
func (s *Service) UpdateMicrocreditTransaction(ctx context.Context, p domain.PendingMicrocredit) (*domain.MicrocreditTransaction, error) {
	if p.Campaign.Registered != domain.StatusCompleted {
		return nil, ErrCampaignNotRegistered
	}

	var outcome domain.LedgerOutcome
	switch p.Tx.Type {
	case domain.ReceiveFund, domain.RevertFund:
		if p.Support.ContractIndex == nil {
			return nil, ErrCampaignNotRegistered
		}
		idx := *p.Support.ContractIndex
		outcome = s.attempt(ctx, string(p.Tx.Type), func(ctx context.Context) (*domain.Receipt, error) {
			if p.Tx.Type == domain.ReceiveFund {
				return s.ledger.ReceiveFund(ctx, p.Campaign.Address, idx)
			}
			return s.ledger.RevertFund(ctx, p.Campaign.Address, idx)
		})
	case domain.SpendFund:
		outcome = s.attempt(ctx, "spendFund", func(ctx context.Context) (*domain.Receipt, error) {
			return s.ledger.SpendFund(ctx, p.Campaign.Address, p.Member.Account, -p.Tx.Tokens)
		})
	default:
		return nil, fmt.Errorf("unexpected microcredit transaction type %q", p.Tx.Type)
	}
	if !outcome.OK() {
		return nil, nil
	}

	if err := s.store.CompleteMicrocreditTransaction(ctx, p.Tx.ID, outcome.Receipt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("complete microcredit transaction: %w", err)
	}
	p.Tx.Status = domain.StatusCompleted
	p.Tx.Receipt = outcome.Receipt
	return &p.Tx, nil
}
