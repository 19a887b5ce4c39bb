package chain

import (
	"context"
	"errors"
	"time"

	"github.com/punchamoorthee/pointchain/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrDisabled is returned by every call when chain mirroring is
	// switched off by configuration. The reconciler treats it as a no-op
	// rather than a retryable failure.
	ErrDisabled = errors.New("chain mirroring disabled")

	// ErrUnavailable wraps gateway transport and contract errors.
	ErrUnavailable = errors.New("chain gateway unavailable")
)

// CampaignTerms are the on-chain parameters of a campaign contract.
type CampaignTerms struct {
	Quantitative bool
	MinAllowed   decimal.Decimal
	MaxAllowed   decimal.Decimal
	MaxAmount    decimal.Decimal
	StepAmount   decimal.Decimal
	StartsAt     time.Time
	ExpiresAt    time.Time
	RedeemStarts time.Time
	RedeemEnds   time.Time
}

// Ledger is the capability set the platform consumes from the chain
// gateway. Every call either returns a receipt or an error; callers never
// see partial results.
type Ledger interface {
	CreateWallet(secret string) (string, error)
	UnlockWallet(account, secret string) ([]byte, error)

	RegisterMemberAccount(ctx context.Context, account string) (*domain.Receipt, error)
	RegisterPartnerAccount(ctx context.Context, account string) (*domain.Receipt, error)

	EarnPoints(ctx context.Context, points int64, member, partner string) (*domain.Receipt, error)
	RedeemPoints(ctx context.Context, points int64, member, partner string) (*domain.Receipt, error)

	RegisterCampaign(ctx context.Context, partner string, terms CampaignTerms) (*domain.Receipt, error)
	PromiseFund(ctx context.Context, campaign, member string, amount decimal.Decimal) (*domain.Receipt, error)
	ReceiveFund(ctx context.Context, campaign string, contractIndex int) (*domain.Receipt, error)
	RevertFund(ctx context.Context, campaign string, contractIndex int) (*domain.Receipt, error)
	SpendFund(ctx context.Context, campaign, member string, tokens int64) (*domain.Receipt, error)

	Close()
}
