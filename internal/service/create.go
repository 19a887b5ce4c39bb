package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/punchamoorthee/pointchain/internal/chain"
	"github.com/punchamoorthee/pointchain/internal/domain"
	"github.com/shopspring/decimal"
)

// CreateEarnTransaction credits points to a member on behalf of a partner.
// The chain mirror is attempted inline; its failure leaves the record
// pending but never blocks the credit.
func (s *Service) CreateEarnTransaction(ctx context.Context, partner, member *domain.User, amount decimal.Decimal, points int64) (*domain.LoyaltyTransaction, error) {
	unlock := s.locks.lock(member.ID)
	defer unlock()

	outcome := s.attempt(ctx, "earnPoints", func(ctx context.Context) (*domain.Receipt, error) {
		return s.ledger.EarnPoints(ctx, points, member.Account, partner.Account)
	})

	t := &domain.LoyaltyTransaction{
		ID:        uuid.New(),
		PartnerID: partner.ID,
		MemberID:  member.ID,
		Points:    points,
		Amount:    amount,
		Type:      domain.EarnPoints,
		Status:    outcome.Status(),
		Receipt:   outcome.Receipt,
	}
	if err := s.store.CreateLoyaltyTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("create earn transaction: %w", err)
	}
	return t, nil
}

// CreateRedeemTransaction debits points from a member. The stored delta is
// pre-negated so transaction logs sum directly to the balance. Passing an
// offer records an offer redemption with its quantity.
func (s *Service) CreateRedeemTransaction(ctx context.Context, partner, member *domain.User, offer *uuid.UUID, amount decimal.Decimal, points int64, quantity int) (*domain.LoyaltyTransaction, error) {
	unlock := s.locks.lock(member.ID)
	defer unlock()

	balance, err := s.store.GetLoyalty(ctx, member.ID)
	if err != nil {
		return nil, fmt.Errorf("read loyalty balance: %w", err)
	}
	if balance.CurrentPoints < points {
		return nil, ErrInsufficientPoints
	}

	outcome := s.attempt(ctx, "redeemPoints", func(ctx context.Context) (*domain.Receipt, error) {
		return s.ledger.RedeemPoints(ctx, points, member.Account, partner.Account)
	})

	txType := domain.RedeemPoints
	if offer != nil {
		txType = domain.RedeemPointsOffer
	}
	t := &domain.LoyaltyTransaction{
		ID:        uuid.New(),
		PartnerID: partner.ID,
		MemberID:  member.ID,
		OfferID:   offer,
		Points:    -points,
		Amount:    amount,
		Quantity:  quantity,
		Type:      txType,
		Status:    outcome.Status(),
		Receipt:   outcome.Receipt,
	}
	if err := s.store.CreateLoyaltyTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("create redeem transaction: %w", err)
	}
	return t, nil
}

// CreateRegisterTransaction mirrors a new user's account onto the chain.
func (s *Service) CreateRegisterTransaction(ctx context.Context, user *domain.User) (*domain.RegistrationTransaction, error) {
	var regType domain.RegistrationType
	switch user.Role {
	case domain.RoleMember:
		regType = domain.RegisterMember
	case domain.RolePartner, domain.RoleAdmin:
		regType = domain.RegisterPartner
	default:
		return nil, ErrUnsupportedRole
	}

	outcome := s.attempt(ctx, string(regType), func(ctx context.Context) (*domain.Receipt, error) {
		if regType == domain.RegisterMember {
			return s.ledger.RegisterMemberAccount(ctx, user.Account)
		}
		return s.ledger.RegisterPartnerAccount(ctx, user.Account)
	})

	t := &domain.RegistrationTransaction{
		ID:      uuid.New(),
		UserID:  user.ID,
		Type:    regType,
		Status:  outcome.Status(),
		Receipt: outcome.Receipt,
	}
	if err := s.store.CreateRegistrationTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("create register transaction: %w", err)
	}
	return t, nil
}

// CreateCampaign persists a partner's campaign and, when it is published,
// attempts the contract deployment inline. Draft campaigns stay off the
// chain until published; the reconciler picks them up afterwards.
func (s *Service) CreateCampaign(ctx context.Context, partner *domain.User, c *domain.MicrocreditCampaign) error {
	c.ID = uuid.New()
	c.PartnerID = partner.ID
	c.Registered = domain.StatusPending

	if c.Status == domain.CampaignPublished {
		outcome := s.attempt(ctx, "registerCampaign", func(ctx context.Context) (*domain.Receipt, error) {
			return s.ledger.RegisterCampaign(ctx, partner.Account, campaignTerms(c))
		})
		if outcome.OK() {
			c.Registered = domain.StatusCompleted
			c.Address = outcome.Receipt.ContractAddress
			c.Receipt = outcome.Receipt
		}
	}

	if err := s.store.CreateCampaign(ctx, c); err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

// CreatePromiseTransaction records a member's pledge to a campaign,
// opening the support and its PromiseFund transaction in one durable
// write. The chain call is only attempted once the campaign contract
// exists; otherwise the record starts pending and the reconciler retries
// after registration lands.
func (s *Service) CreatePromiseTransaction(ctx context.Context, campaign *domain.MicrocreditCampaign, member *domain.User, amount decimal.Decimal, payment string) (*domain.MicrocreditSupport, *domain.MicrocreditTransaction, error) {
	if amount.LessThan(campaign.MinAllowed) ||
		(campaign.MaxAllowed.IsPositive() && amount.GreaterThan(campaign.MaxAllowed)) {
		return nil, nil, ErrAmountOutOfBounds
	}

	unlock := s.locks.lock(member.ID)
	defer unlock()

	outcome := domain.LedgerFailed(ErrCampaignNotRegistered)
	if campaign.Registered == domain.StatusCompleted {
		outcome = s.attempt(ctx, "promiseFund", func(ctx context.Context) (*domain.Receipt, error) {
			return s.ledger.PromiseFund(ctx, campaign.Address, member.Account, amount)
		})
	}

	tokens := promiseTokens(campaign, amount)
	sp := &domain.MicrocreditSupport{
		ID:            uuid.New(),
		CampaignID:    campaign.ID,
		MemberID:      member.ID,
		InitialTokens: tokens,
		CurrentTokens: tokens,
		Amount:        amount,
		Status:        domain.SupportUnpaid,
		Payment:       payment,
	}
	if outcome.OK() && len(outcome.Receipt.Logs) > 0 {
		idx := outcome.Receipt.Logs[0].Index
		sp.ContractRef = outcome.Receipt.Logs[0].Ref
		sp.ContractIndex = &idx
	}

	t := &domain.MicrocreditTransaction{
		ID:        uuid.New(),
		SupportID: sp.ID,
		Tokens:    tokens,
		Payoff:    decimal.Zero,
		Type:      domain.PromiseFund,
		Status:    outcome.Status(),
		Receipt:   outcome.Receipt,
	}
	if err := s.store.CreateSupportWithPromise(ctx, sp, t); err != nil {
		return nil, nil, fmt.Errorf("create promise transaction: %w", err)
	}
	return sp, t, nil
}

// CreateReceiveTransaction marks the partner's confirmation of a pledge's
// payment. Only the payoff figure moves; token counters are untouched.
func (s *Service) CreateReceiveTransaction(ctx context.Context, campaign *domain.MicrocreditCampaign, support *domain.MicrocreditSupport) (*domain.MicrocreditTransaction, error) {
	if support.Status != domain.SupportUnpaid {
		return nil, ErrSupportNotConfirmed
	}

	outcome := s.receiveOutcome(ctx, "receiveFund", campaign, support, s.ledger.ReceiveFund)

	t := &domain.MicrocreditTransaction{
		ID:        uuid.New(),
		SupportID: support.ID,
		Tokens:    0,
		Payoff:    support.Amount,
		Type:      domain.ReceiveFund,
		Status:    outcome.Status(),
		Receipt:   outcome.Receipt,
	}
	if err := s.store.CreateMicrocreditTransactionWithStatus(ctx, t, 0, domain.SupportPaid); err != nil {
		return nil, fmt.Errorf("create receive transaction: %w", err)
	}
	support.Status = domain.SupportPaid
	return t, nil
}

// CreateRevertTransaction cancels a confirmed-but-not-yet-received pledge.
// It negates the payoff recorded by the confirmation; currentTokens never
// changed on confirmation, so there is nothing to restore there.
func (s *Service) CreateRevertTransaction(ctx context.Context, campaign *domain.MicrocreditCampaign, support *domain.MicrocreditSupport) (*domain.MicrocreditTransaction, error) {
	if support.Status != domain.SupportPaid {
		return nil, ErrSupportNotConfirmed
	}

	outcome := s.receiveOutcome(ctx, "revertFund", campaign, support, s.ledger.RevertFund)

	t := &domain.MicrocreditTransaction{
		ID:        uuid.New(),
		SupportID: support.ID,
		Tokens:    0,
		Payoff:    support.Amount.Neg(),
		Type:      domain.RevertFund,
		Status:    outcome.Status(),
		Receipt:   outcome.Receipt,
	}
	if err := s.store.CreateMicrocreditTransactionWithStatus(ctx, t, 0, domain.SupportUnpaid); err != nil {
		return nil, fmt.Errorf("create revert transaction: %w", err)
	}
	support.Status = domain.SupportUnpaid
	return t, nil
}

// CreateSpendTransaction redeems tokens from a support during the
// campaign's redemption window. The token decrement applies to the support
// regardless of chain outcome.
func (s *Service) CreateSpendTransaction(ctx context.Context, campaign *domain.MicrocreditCampaign, member *domain.User, tokens int64, support *domain.MicrocreditSupport) (*domain.MicrocreditTransaction, error) {
	unlock := s.locks.lock(support.ID)
	defer unlock()

	// The caller hydrated its copy before this lock was acquired; re-read
	// so the guard sees spends serialized ahead of this one.
	fresh, err := s.store.GetSupport(ctx, support.ID)
	if err != nil {
		return nil, fmt.Errorf("read support: %w", err)
	}
	*support = *fresh

	if support.CurrentTokens < tokens {
		return nil, ErrInsufficientTokens
	}

	outcome := domain.LedgerFailed(ErrCampaignNotRegistered)
	if campaign.Registered == domain.StatusCompleted {
		outcome = s.attempt(ctx, "spendFund", func(ctx context.Context) (*domain.Receipt, error) {
			return s.ledger.SpendFund(ctx, campaign.Address, member.Account, tokens)
		})
	}

	t := &domain.MicrocreditTransaction{
		ID:        uuid.New(),
		SupportID: support.ID,
		Tokens:    -tokens,
		Payoff:    decimal.Zero,
		Type:      domain.SpendFund,
		Status:    outcome.Status(),
		Receipt:   outcome.Receipt,
	}
	remaining := support.CurrentTokens - tokens
	if remaining == 0 {
		err = s.store.CreateMicrocreditTransactionWithStatus(ctx, t, -tokens, domain.SupportCompleted)
	} else {
		err = s.store.CreateMicrocreditTransaction(ctx, t, -tokens)
	}
	if err != nil {
		return nil, fmt.Errorf("create spend transaction: %w", err)
	}
	support.CurrentTokens = remaining
	if remaining == 0 {
		support.Status = domain.SupportCompleted
	}
	return t, nil
}

// receiveOutcome attempts a contract-index-addressed call (receive or
// revert). Without a registered campaign or a known contract index the
// attempt is skipped and the record starts pending.
func (s *Service) receiveOutcome(ctx context.Context, op string, campaign *domain.MicrocreditCampaign, support *domain.MicrocreditSupport, call func(context.Context, string, int) (*domain.Receipt, error)) domain.LedgerOutcome {
	if campaign.Registered != domain.StatusCompleted {
		return domain.LedgerFailed(ErrCampaignNotRegistered)
	}
	if support.ContractIndex == nil {
		return domain.LedgerFailed(chain.ErrUnavailable)
	}
	return s.attempt(ctx, op, func(ctx context.Context) (*domain.Receipt, error) {
		return call(ctx, campaign.Address, *support.ContractIndex)
	})
}

func promiseTokens(c *domain.MicrocreditCampaign, amount decimal.Decimal) int64 {
	if c.Quantitative && c.StepAmount.IsPositive() {
		return amount.Div(c.StepAmount).IntPart()
	}
	return 1
}

func campaignTerms(c *domain.MicrocreditCampaign) chain.CampaignTerms {
	return chain.CampaignTerms{
		Quantitative: c.Quantitative,
		MinAllowed:   c.MinAllowed,
		MaxAllowed:   c.MaxAllowed,
		MaxAmount:    c.MaxAmount,
		StepAmount:   c.StepAmount,
		StartsAt:     c.StartsAt,
		ExpiresAt:    c.ExpiresAt,
		RedeemStarts: c.RedeemStarts,
		RedeemEnds:   c.RedeemEnds,
	}
}
