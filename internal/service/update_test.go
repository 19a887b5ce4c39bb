package service

import (
	"context"
	"testing"

	"github.com/punchamoorthee/pointchain/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// A failed retry followed by a successful one must land on the same final
// balance as a single successful attempt: update only touches status and
// receipt, never the projection.
func TestUpdateLoyaltyIdempotentRetry(t *testing.T) {
	svc, st, ld := newTestService()
	partner, member := testPartner(), testMember()
	ctx := context.Background()

	ld.setFailing(true)
	created, err := svc.CreateEarnTransaction(ctx, partner, member, decimal.NewFromInt(10), 1000)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, created.Status)

	pending := domain.PendingLoyalty{Tx: *created, Partner: *partner, Member: *member}

	// First retry: chain still down.
	updated, err := svc.UpdateLoyaltyTransaction(ctx, pending)
	require.NoError(t, err)
	require.Nil(t, updated)
	require.Equal(t, domain.StatusPending, st.loyaltyTxs[created.ID].Status)

	// Second retry: chain back up.
	ld.setFailing(false)
	updated, err = svc.UpdateLoyaltyTransaction(ctx, pending)
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Equal(t, domain.StatusCompleted, updated.Status)
	require.NotNil(t, updated.Receipt)

	balance, err := st.GetLoyalty(ctx, member.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1000), balance.CurrentPoints, "retries never double-apply the delta")

	// Third retry against the now-completed record is a no-op.
	updated, err = svc.UpdateLoyaltyTransaction(ctx, pending)
	require.NoError(t, err)
	require.Nil(t, updated)
	require.Equal(t, int64(1000), st.balances[member.ID])
	require.Equal(t, domain.StatusCompleted, st.loyaltyTxs[created.ID].Status, "completed is terminal")
}

func TestUpdateRedeemRetriesWithPositiveCount(t *testing.T) {
	svc, st, ld := newTestService()
	partner, member := testPartner(), testMember()
	ctx := context.Background()

	_, err := svc.CreateEarnTransaction(ctx, partner, member, decimal.NewFromInt(10), 1000)
	require.NoError(t, err)
	ld.setFailing(true)
	created, err := svc.CreateRedeemTransaction(ctx, partner, member, nil, decimal.NewFromInt(3), 300, 0)
	require.NoError(t, err)

	ld.setFailing(false)
	updated, err := svc.UpdateLoyaltyTransaction(ctx, domain.PendingLoyalty{Tx: *created, Partner: *partner, Member: *member})
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Equal(t, int64(-300), updated.Points, "stored delta stays negative")
	require.Equal(t, int64(700), st.balances[member.ID])
}

func TestUpdateRegistrationTransaction(t *testing.T) {
	svc, st, ld := newTestService()
	member := testMember()
	ctx := context.Background()

	ld.setFailing(true)
	created, err := svc.CreateRegisterTransaction(ctx, member)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, created.Status)

	ld.setFailing(false)
	updated, err := svc.UpdateRegistrationTransaction(ctx, domain.PendingRegistration{Tx: *created, User: *member})
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Equal(t, domain.StatusCompleted, updated.Status)
	require.Equal(t, domain.StatusCompleted, st.registrations[created.ID].Status)
	require.Equal(t, 2, ld.callCount("registerMember"))
}

func TestUpdateDisabledChainIsNoop(t *testing.T) {
	svc, st, ld := newTestService()
	partner, member := testPartner(), testMember()
	ctx := context.Background()

	ld.disabled = true
	created, err := svc.CreateEarnTransaction(ctx, partner, member, decimal.NewFromInt(1), 100)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, created.Status)

	updated, err := svc.UpdateLoyaltyTransaction(ctx, domain.PendingLoyalty{Tx: *created, Partner: *partner, Member: *member})
	require.NoError(t, err)
	require.Nil(t, updated)
	require.Equal(t, domain.StatusPending, st.loyaltyTxs[created.ID].Status)
}

func TestUpdateCampaignRegistration(t *testing.T) {
	svc, st, ld := newTestService()
	partner := testPartner()
	ctx := context.Background()

	ld.setFailing(true)
	c := &domain.MicrocreditCampaign{
		Title:      "spring round",
		MinAllowed: decimal.NewFromInt(1),
		MaxAllowed: decimal.NewFromInt(100),
		Status:     domain.CampaignPublished,
	}
	require.NoError(t, svc.CreateCampaign(ctx, partner, c))
	require.Equal(t, domain.StatusPending, c.Registered)

	ld.setFailing(false)
	updated, err := svc.UpdateCampaignRegistration(ctx, domain.PendingCampaign{Campaign: *c, Partner: *partner})
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Equal(t, domain.StatusCompleted, updated.Registered)
	require.Equal(t, "0xcampaign", updated.Address)
	require.Equal(t, "0xcampaign", st.campaigns[c.ID].Address)
}

func TestUpdatePromiseRequiresRegisteredCampaign(t *testing.T) {
	svc, st, ld := newTestService()
	partner, member := testPartner(), testMember()
	campaign := registeredCampaign(partner)
	campaign.Registered = domain.StatusPending
	campaign.Address = ""
	ctx := context.Background()

	sp, created, err := svc.CreatePromiseTransaction(ctx, campaign, member, decimal.NewFromInt(50), "card")
	require.NoError(t, err)

	pending := domain.PendingMicrocredit{Tx: *created, Support: *sp, Campaign: *campaign, Member: *member}
	_, err = svc.UpdatePromiseTransaction(ctx, pending)
	require.ErrorIs(t, err, ErrCampaignNotRegistered)
	require.Equal(t, 0, ld.callCount("promiseFund"))

	// Campaign registration lands; the retry now succeeds and records the
	// pledge's contract position.
	pending.Campaign.Registered = domain.StatusCompleted
	pending.Campaign.Address = "0xcampaign"
	updated, err := svc.UpdatePromiseTransaction(ctx, pending)
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Equal(t, domain.StatusCompleted, updated.Status)
	require.NotNil(t, st.supports[sp.ID].ContractIndex)
	require.Equal(t, "pledge-1", st.supports[sp.ID].ContractRef)
}

func TestUpdateReceiveRequiresContractIndex(t *testing.T) {
	svc, _, _ := newTestService()
	partner, member := testPartner(), testMember()
	campaign := registeredCampaign(partner)
	ctx := context.Background()

	sp := &domain.MicrocreditSupport{ID: member.ID, CampaignID: campaign.ID, MemberID: member.ID}
	tx := domain.MicrocreditTransaction{Type: domain.ReceiveFund, Status: domain.StatusPending}

	pending := domain.PendingMicrocredit{Tx: tx, Support: *sp, Campaign: *campaign, Member: *member}
	_, err := svc.UpdateMicrocreditTransaction(ctx, pending)
	require.ErrorIs(t, err, ErrCampaignNotRegistered, "receive cannot retry before the promise landed")
}

func TestUpdateSpendTransaction(t *testing.T) {
	svc, st, ld := newTestService()
	partner, member := testPartner(), testMember()
	campaign := registeredCampaign(partner)
	ctx := context.Background()

	sp, _, err := svc.CreatePromiseTransaction(ctx, campaign, member, decimal.NewFromInt(50), "card")
	require.NoError(t, err)

	ld.setFailing(true)
	created, err := svc.CreateSpendTransaction(ctx, campaign, member, 4, sp)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, created.Status)
	tokensAfterCreate := st.supports[sp.ID].CurrentTokens

	ld.setFailing(false)
	updated, err := svc.UpdateMicrocreditTransaction(ctx, domain.PendingMicrocredit{
		Tx: *created, Support: *sp, Campaign: *campaign, Member: *member,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	require.Equal(t, domain.StatusCompleted, updated.Status)
	require.Equal(t, tokensAfterCreate, st.supports[sp.ID].CurrentTokens, "promotion never touches token counters")
}
