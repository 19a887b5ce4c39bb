package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/punchamoorthee/pointchain/internal/chain"
	"github.com/punchamoorthee/pointchain/internal/domain"
)

var (
	ErrInsufficientPoints    = errors.New("insufficient points")
	ErrInsufficientTokens    = errors.New("insufficient tokens")
	ErrAmountOutOfBounds     = errors.New("amount outside campaign bounds")
	ErrCampaignNotRegistered = errors.New("campaign not registered on chain")
	ErrSupportNotConfirmed   = errors.New("support not confirmed")
	ErrUnsupportedRole       = errors.New("role cannot be registered on chain")
)

// Store is the persistence surface the transaction service writes through.
// Implemented by *store.Store; faked in tests.
type Store interface {
	CreateRegistrationTransaction(ctx context.Context, t *domain.RegistrationTransaction) error
	CompleteRegistrationTransaction(ctx context.Context, id uuid.UUID, r *domain.Receipt) error

	CreateLoyaltyTransaction(ctx context.Context, t *domain.LoyaltyTransaction) error
	CompleteLoyaltyTransaction(ctx context.Context, id uuid.UUID, r *domain.Receipt) error
	GetLoyalty(ctx context.Context, memberID uuid.UUID) (*domain.Loyalty, error)

	CreateCampaign(ctx context.Context, c *domain.MicrocreditCampaign) error
	CompleteCampaignRegistration(ctx context.Context, id uuid.UUID, address string, r *domain.Receipt) error

	CreateSupportWithPromise(ctx context.Context, sp *domain.MicrocreditSupport, t *domain.MicrocreditTransaction) error
	CreateMicrocreditTransaction(ctx context.Context, t *domain.MicrocreditTransaction, tokenDelta int64) error
	CreateMicrocreditTransactionWithStatus(ctx context.Context, t *domain.MicrocreditTransaction, tokenDelta int64, status domain.SupportStatus) error
	CompleteMicrocreditTransaction(ctx context.Context, id uuid.UUID, r *domain.Receipt) error
	GetSupport(ctx context.Context, id uuid.UUID) (*domain.MicrocreditSupport, error)
	SetSupportContract(ctx context.Context, id uuid.UUID, ref string, index int) error
}

// Service is the dual-ledger transaction core. Every create operation
// attempts exactly one chain call, then persists the record with a status
// derived from the outcome; the database write never waits on, and never
// fails because of, the chain. Update operations retry the chain call for
// a pending record and only ever touch status and receipt fields.
type Service struct {
	store  Store
	ledger chain.Ledger
	logger *slog.Logger

	// Serializes balance-affecting writes per member (and per support for
	// spends) so concurrent requests cannot interleave on one projection.
	locks keyedMutex
}

func New(store Store, ledger chain.Ledger, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		ledger: ledger,
		logger: logger,
	}
}

// attempt runs one chain call and collapses any error into a failed
// outcome. Chain errors never propagate past this point on the create
// path; the record falls back to pending instead.
func (s *Service) attempt(ctx context.Context, op string, call func(context.Context) (*domain.Receipt, error)) domain.LedgerOutcome {
	receipt, err := call(ctx)
	if err != nil {
		if !errors.Is(err, chain.ErrDisabled) {
			s.logger.Warn("chain call failed, falling back to pending", "op", op, "error", err)
		}
		return domain.LedgerFailed(err)
	}
	return domain.LedgerSuccess(receipt)
}
