package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/pointchain/internal/domain"
	"github.com/stretchr/testify/require"
)

type fakeCampaignSource struct {
	from, to  time.Time
	campaigns []domain.MicrocreditCampaign
	err       error
}

func (f *fakeCampaignSource) ListCampaignsRedeemStartingBetween(_ context.Context, from, to time.Time) ([]domain.MicrocreditCampaign, error) {
	f.from, f.to = from, to
	return f.campaigns, f.err
}

type fakeNotifier struct {
	notified []uuid.UUID
	failFor  uuid.UUID
}

func (f *fakeNotifier) CampaignStarting(_ context.Context, c domain.MicrocreditCampaign) error {
	f.notified = append(f.notified, c.ID)
	if c.ID == f.failFor {
		return errors.New("smtp unreachable")
	}
	return nil
}

// The selection window is the whole of tomorrow, local calendar day,
// regardless of the time of day the pass runs.
func TestRunSelectsTomorrowsWindow(t *testing.T) {
	src := &fakeCampaignSource{}
	n := NewStartsNotifier(src, &fakeNotifier{}, testLogger(), 0)
	n.now = func() time.Time {
		return time.Date(2026, time.March, 14, 23, 55, 0, 0, time.UTC)
	}

	n.Run(context.Background())

	require.Equal(t, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC), src.from)
	require.Equal(t, time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC), src.to)
}

func TestRunNotifiesEachCampaign(t *testing.T) {
	campaigns := []domain.MicrocreditCampaign{
		{ID: uuid.New(), Title: "round one"},
		{ID: uuid.New(), Title: "round two"},
		{ID: uuid.New(), Title: "round three"},
	}
	src := &fakeCampaignSource{campaigns: campaigns}
	sink := &fakeNotifier{failFor: campaigns[1].ID}
	n := NewStartsNotifier(src, sink, testLogger(), 0)
	n.now = func() time.Time { return time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC) }

	n.Run(context.Background())

	// One delivery failing does not stop the rest.
	require.Equal(t, []uuid.UUID{campaigns[0].ID, campaigns[1].ID, campaigns[2].ID}, sink.notified)
}

func TestRunSelectionFailureNotifiesNobody(t *testing.T) {
	src := &fakeCampaignSource{err: errors.New("connection refused")}
	sink := &fakeNotifier{}
	n := NewStartsNotifier(src, sink, testLogger(), 0)
	n.now = func() time.Time { return time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC) }

	n.Run(context.Background())

	require.Empty(t, sink.notified)
}
