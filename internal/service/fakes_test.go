package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/punchamoorthee/pointchain/internal/chain"
	"github.com/punchamoorthee/pointchain/internal/domain"
	"github.com/punchamoorthee/pointchain/internal/store"
	"github.com/shopspring/decimal"
)

// fakeLedger is a scriptable chain gateway. Flip failing/disabled between
// calls to simulate outages.
type fakeLedger struct {
	mu       sync.Mutex
	failing  bool
	disabled bool
	calls    map[string]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{calls: make(map[string]int)}
}

func (f *fakeLedger) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *fakeLedger) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeLedger) do(method string) (*domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	if f.disabled {
		return nil, chain.ErrDisabled
	}
	if f.failing {
		return nil, fmt.Errorf("%w: simulated outage", chain.ErrUnavailable)
	}
	r := &domain.Receipt{
		TxHash:      fmt.Sprintf("0x%s-%d", method, f.calls[method]),
		BlockNumber: int64(1000 + f.calls[method]),
	}
	switch method {
	case "promiseFund":
		r.Logs = []domain.ReceiptLog{{Index: f.calls[method], Ref: fmt.Sprintf("pledge-%d", f.calls[method])}}
	case "registerCampaign":
		r.ContractAddress = "0xcampaign"
	}
	return r, nil
}

func (f *fakeLedger) CreateWallet(string) (string, error)          { return "sealed-account", nil }
func (f *fakeLedger) UnlockWallet(string, string) ([]byte, error)  { return []byte("key"), nil }
func (f *fakeLedger) Close()                                       {}

func (f *fakeLedger) RegisterMemberAccount(_ context.Context, _ string) (*domain.Receipt, error) {
	return f.do("registerMember")
}

func (f *fakeLedger) RegisterPartnerAccount(_ context.Context, _ string) (*domain.Receipt, error) {
	return f.do("registerPartner")
}

func (f *fakeLedger) EarnPoints(_ context.Context, _ int64, _, _ string) (*domain.Receipt, error) {
	return f.do("earnPoints")
}

func (f *fakeLedger) RedeemPoints(_ context.Context, _ int64, _, _ string) (*domain.Receipt, error) {
	return f.do("redeemPoints")
}

func (f *fakeLedger) RegisterCampaign(_ context.Context, _ string, _ chain.CampaignTerms) (*domain.Receipt, error) {
	return f.do("registerCampaign")
}

func (f *fakeLedger) PromiseFund(_ context.Context, _, _ string, _ decimal.Decimal) (*domain.Receipt, error) {
	return f.do("promiseFund")
}

func (f *fakeLedger) ReceiveFund(_ context.Context, _ string, _ int) (*domain.Receipt, error) {
	return f.do("receiveFund")
}

func (f *fakeLedger) RevertFund(_ context.Context, _ string, _ int) (*domain.Receipt, error) {
	return f.do("revertFund")
}

func (f *fakeLedger) SpendFund(_ context.Context, _, _ string, _ int64) (*domain.Receipt, error) {
	return f.do("spendFund")
}

var errStoreDown = errors.New("store down")

// fakeStore is an in-memory Store with the same atomic-increment balance
// semantics as the Postgres implementation.
type fakeStore struct {
	mu            sync.Mutex
	failWrites    bool
	registrations map[uuid.UUID]*domain.RegistrationTransaction
	loyaltyTxs    map[uuid.UUID]*domain.LoyaltyTransaction
	balances      map[uuid.UUID]int64
	campaigns     map[uuid.UUID]*domain.MicrocreditCampaign
	supports      map[uuid.UUID]*domain.MicrocreditSupport
	microTxs      map[uuid.UUID]*domain.MicrocreditTransaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		registrations: make(map[uuid.UUID]*domain.RegistrationTransaction),
		loyaltyTxs:    make(map[uuid.UUID]*domain.LoyaltyTransaction),
		balances:      make(map[uuid.UUID]int64),
		campaigns:     make(map[uuid.UUID]*domain.MicrocreditCampaign),
		supports:      make(map[uuid.UUID]*domain.MicrocreditSupport),
		microTxs:      make(map[uuid.UUID]*domain.MicrocreditTransaction),
	}
}

func (f *fakeStore) CreateRegistrationTransaction(_ context.Context, t *domain.RegistrationTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errStoreDown
	}
	cp := *t
	f.registrations[t.ID] = &cp
	return nil
}

func (f *fakeStore) CompleteRegistrationTransaction(_ context.Context, id uuid.UUID, r *domain.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.registrations[id]
	if !ok || t.Status != domain.StatusPending {
		return store.ErrNotFound
	}
	t.Status = domain.StatusCompleted
	t.Receipt = r
	return nil
}

func (f *fakeStore) CreateLoyaltyTransaction(_ context.Context, t *domain.LoyaltyTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errStoreDown
	}
	cp := *t
	f.loyaltyTxs[t.ID] = &cp
	f.balances[t.MemberID] += t.Points
	return nil
}

func (f *fakeStore) CompleteLoyaltyTransaction(_ context.Context, id uuid.UUID, r *domain.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.loyaltyTxs[id]
	if !ok || t.Status != domain.StatusPending {
		return store.ErrNotFound
	}
	t.Status = domain.StatusCompleted
	t.Receipt = r
	return nil
}

func (f *fakeStore) GetLoyalty(_ context.Context, memberID uuid.UUID) (*domain.Loyalty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &domain.Loyalty{MemberID: memberID, CurrentPoints: f.balances[memberID]}, nil
}

func (f *fakeStore) CreateCampaign(_ context.Context, c *domain.MicrocreditCampaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errStoreDown
	}
	cp := *c
	f.campaigns[c.ID] = &cp
	return nil
}

func (f *fakeStore) CompleteCampaignRegistration(_ context.Context, id uuid.UUID, address string, r *domain.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok || c.Registered != domain.StatusPending {
		return store.ErrNotFound
	}
	c.Registered = domain.StatusCompleted
	c.Address = address
	c.Receipt = r
	return nil
}

func (f *fakeStore) CreateSupportWithPromise(_ context.Context, sp *domain.MicrocreditSupport, t *domain.MicrocreditTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errStoreDown
	}
	spc, tc := *sp, *t
	f.supports[sp.ID] = &spc
	f.microTxs[t.ID] = &tc
	return nil
}

func (f *fakeStore) CreateMicrocreditTransaction(_ context.Context, t *domain.MicrocreditTransaction, tokenDelta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errStoreDown
	}
	cp := *t
	f.microTxs[t.ID] = &cp
	if tokenDelta != 0 {
		if sp, ok := f.supports[t.SupportID]; ok {
			sp.CurrentTokens += tokenDelta
		}
	}
	return nil
}

func (f *fakeStore) CreateMicrocreditTransactionWithStatus(_ context.Context, t *domain.MicrocreditTransaction, tokenDelta int64, status domain.SupportStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errStoreDown
	}
	sp, ok := f.supports[t.SupportID]
	if !ok {
		return store.ErrNotFound
	}
	cp := *t
	f.microTxs[t.ID] = &cp
	sp.CurrentTokens += tokenDelta
	sp.Status = status
	return nil
}

func (f *fakeStore) GetSupport(_ context.Context, id uuid.UUID) (*domain.MicrocreditSupport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp, ok := f.supports[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sp
	return &cp, nil
}

func (f *fakeStore) CompleteMicrocreditTransaction(_ context.Context, id uuid.UUID, r *domain.Receipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.microTxs[id]
	if !ok || t.Status != domain.StatusPending {
		return store.ErrNotFound
	}
	t.Status = domain.StatusCompleted
	t.Receipt = r
	return nil
}

func (f *fakeStore) SetSupportContract(_ context.Context, id uuid.UUID, ref string, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp, ok := f.supports[id]
	if !ok {
		return store.ErrNotFound
	}
	sp.ContractRef = ref
	sp.ContractIndex = &index
	return nil
}

// sumLoyaltyPoints recomputes a member's balance from the transaction log.
func (f *fakeStore) sumLoyaltyPoints(memberID uuid.UUID) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int64
	for _, t := range f.loyaltyTxs {
		if t.MemberID == memberID {
			sum += t.Points
		}
	}
	return sum
}
