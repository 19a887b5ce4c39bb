package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/punchamoorthee/pointchain/internal/domain"
	"github.com/punchamoorthee/pointchain/internal/service"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	listed        []string
	registrations []domain.PendingRegistration
	loyalty       []domain.PendingLoyalty
	campaigns     []domain.PendingCampaign
	promises      []domain.PendingMicrocredit
	microcredit   []domain.PendingMicrocredit
	listErr       error
}

func (f *fakeSource) ListPendingRegistrations(_ context.Context, _ int) ([]domain.PendingRegistration, error) {
	f.listed = append(f.listed, "registration")
	return f.registrations, f.listErr
}

func (f *fakeSource) ListPendingLoyalty(_ context.Context, _ int) ([]domain.PendingLoyalty, error) {
	f.listed = append(f.listed, "loyalty")
	return f.loyalty, f.listErr
}

func (f *fakeSource) ListPendingCampaigns(_ context.Context, _ int) ([]domain.PendingCampaign, error) {
	f.listed = append(f.listed, "campaign")
	return f.campaigns, f.listErr
}

func (f *fakeSource) ListPendingPromises(_ context.Context, _ int) ([]domain.PendingMicrocredit, error) {
	f.listed = append(f.listed, "promise")
	return f.promises, f.listErr
}

func (f *fakeSource) ListPendingMicrocredit(_ context.Context, _ int) ([]domain.PendingMicrocredit, error) {
	f.listed = append(f.listed, "microcredit")
	return f.microcredit, f.listErr
}

// fakeUpdater promotes every record except those scripted to fail or to
// stay pending.
type fakeUpdater struct {
	attempts []uuid.UUID
	failWith map[uuid.UUID]error
	stuck    map[uuid.UUID]bool
}

func newFakeUpdater() *fakeUpdater {
	return &fakeUpdater{failWith: make(map[uuid.UUID]error), stuck: make(map[uuid.UUID]bool)}
}

func (f *fakeUpdater) outcome(id uuid.UUID) (bool, error) {
	f.attempts = append(f.attempts, id)
	if err := f.failWith[id]; err != nil {
		return false, err
	}
	if f.stuck[id] {
		return false, nil
	}
	return true, nil
}

func (f *fakeUpdater) UpdateRegistrationTransaction(_ context.Context, p domain.PendingRegistration) (*domain.RegistrationTransaction, error) {
	ok, err := f.outcome(p.Tx.ID)
	if !ok {
		return nil, err
	}
	return &p.Tx, nil
}

func (f *fakeUpdater) UpdateLoyaltyTransaction(_ context.Context, p domain.PendingLoyalty) (*domain.LoyaltyTransaction, error) {
	ok, err := f.outcome(p.Tx.ID)
	if !ok {
		return nil, err
	}
	return &p.Tx, nil
}

func (f *fakeUpdater) UpdateCampaignRegistration(_ context.Context, p domain.PendingCampaign) (*domain.MicrocreditCampaign, error) {
	ok, err := f.outcome(p.Campaign.ID)
	if !ok {
		return nil, err
	}
	return &p.Campaign, nil
}

func (f *fakeUpdater) UpdatePromiseTransaction(_ context.Context, p domain.PendingMicrocredit) (*domain.MicrocreditTransaction, error) {
	ok, err := f.outcome(p.Tx.ID)
	if !ok {
		return nil, err
	}
	return &p.Tx, nil
}

func (f *fakeUpdater) UpdateMicrocreditTransaction(_ context.Context, p domain.PendingMicrocredit) (*domain.MicrocreditTransaction, error) {
	ok, err := f.outcome(p.Tx.ID)
	if !ok {
		return nil, err
	}
	return &p.Tx, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pendingLoyaltyBatch(n int) []domain.PendingLoyalty {
	out := make([]domain.PendingLoyalty, n)
	for i := range out {
		out[i] = domain.PendingLoyalty{Tx: domain.LoyaltyTransaction{ID: uuid.New(), Status: domain.StatusPending}}
	}
	return out
}

// One record failing must not stop the rest of its batch from being
// retried.
func TestSweepIsolatesFailingRecord(t *testing.T) {
	src := &fakeSource{loyalty: pendingLoyaltyBatch(5)}
	upd := newFakeUpdater()
	upd.failWith[src.loyalty[2].Tx.ID] = errors.New("chain call failed")

	r := NewReconciler(src, upd, testLogger(), 0, 0)
	r.Sweep(context.Background())

	require.Len(t, upd.attempts, 5, "every record in the batch is attempted")
	require.Equal(t, src.loyalty[3].Tx.ID, upd.attempts[3], "batch order preserved past the failure")
}

func TestSweepFamilyOrder(t *testing.T) {
	src := &fakeSource{}
	r := NewReconciler(src, newFakeUpdater(), testLogger(), 0, 0)
	r.Sweep(context.Background())

	require.Equal(t, []string{"registration", "loyalty", "campaign", "promise", "microcredit"}, src.listed)
}

// A promise whose campaign contract has not landed yet is requeued
// quietly, without counting as a failure or stopping the sweep.
func TestSweepRequeuesUnregisteredPromise(t *testing.T) {
	promises := []domain.PendingMicrocredit{
		{Tx: domain.MicrocreditTransaction{ID: uuid.New(), Type: domain.PromiseFund}},
		{Tx: domain.MicrocreditTransaction{ID: uuid.New(), Type: domain.PromiseFund}},
	}
	src := &fakeSource{promises: promises}
	upd := newFakeUpdater()
	upd.failWith[promises[0].Tx.ID] = service.ErrCampaignNotRegistered

	r := NewReconciler(src, upd, testLogger(), 0, 0)
	r.Sweep(context.Background())

	require.Len(t, upd.attempts, 2)
}

// A family whose previous sweep is still running is skipped; the other
// families still sweep.
func TestSweepGuardSkipsBusyFamily(t *testing.T) {
	src := &fakeSource{loyalty: pendingLoyaltyBatch(1)}
	upd := newFakeUpdater()
	r := NewReconciler(src, upd, testLogger(), 0, 0)

	r.guards[1].Store(true)
	r.Sweep(context.Background())

	require.Equal(t, []string{"registration", "campaign", "promise", "microcredit"}, src.listed)
	require.Empty(t, upd.attempts)

	r.guards[1].Store(false)
	src.listed = nil
	r.Sweep(context.Background())
	require.Contains(t, src.listed, "loyalty")
	require.Len(t, upd.attempts, 1)
}

// A still-pending outcome (chain down, record untouched) is neither a
// promotion nor a sweep abort.
func TestSweepLeavesStuckRecordsPending(t *testing.T) {
	src := &fakeSource{loyalty: pendingLoyaltyBatch(3)}
	upd := newFakeUpdater()
	for _, p := range src.loyalty {
		upd.stuck[p.Tx.ID] = true
	}

	r := NewReconciler(src, upd, testLogger(), 0, 0)
	r.Sweep(context.Background())

	require.Len(t, upd.attempts, 3)
}

func TestStartStopIdempotent(t *testing.T) {
	r := NewReconciler(&fakeSource{}, newFakeUpdater(), testLogger(), 0, 0)

	ctx := context.Background()
	r.Start(ctx)
	r.Start(ctx)
	r.Stop()
	r.Stop()
}
