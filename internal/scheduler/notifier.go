package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/punchamoorthee/pointchain/internal/domain"
)

// Notifier delivers the "campaign redemption opens tomorrow" side effect.
// Delivery (email etc.) is an external collaborator; only the selection
// logic lives here.
type Notifier interface {
	CampaignStarting(ctx context.Context, c domain.MicrocreditCampaign) error
}

// CampaignSource selects campaigns by redemption-window opening time.
type CampaignSource interface {
	ListCampaignsRedeemStartingBetween(ctx context.Context, from, to time.Time) ([]domain.MicrocreditCampaign, error)
}

// StartsNotifier periodically finds published, redeemable campaigns whose
// redemption window opens the next calendar day and notifies for each.
type StartsNotifier struct {
	source   CampaignSource
	notifier Notifier
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewStartsNotifier(source CampaignSource, notifier Notifier, logger *slog.Logger, interval time.Duration) *StartsNotifier {
	if interval <= 0 {
		interval = time.Hour
	}
	return &StartsNotifier{
		source:   source,
		notifier: notifier,
		logger:   logger.With("component", "starts-notifier"),
		interval: interval,
		now:      time.Now,
	}
}

func (n *StartsNotifier) Start(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return
	}
	n.running = true

	ctx, n.cancel = context.WithCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(n.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.Run(ctx)
			}
		}
	}()
}

func (n *StartsNotifier) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	n.cancel()
	n.mu.Unlock()
	n.wg.Wait()
}

// Run performs one selection-and-notify pass for tomorrow's window.
func (n *StartsNotifier) Run(ctx context.Context) {
	now := n.now()
	tomorrow := now.AddDate(0, 0, 1)
	from := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 0, 1)

	campaigns, err := n.source.ListCampaignsRedeemStartingBetween(ctx, from, to)
	if err != nil {
		n.logger.Error("campaign selection failed", "error", err)
		return
	}
	for _, c := range campaigns {
		if err := n.notifier.CampaignStarting(ctx, c); err != nil {
			n.logger.Warn("notification failed", "campaign", c.ID, "error", err)
		}
	}
	if len(campaigns) > 0 {
		n.logger.Info("campaign start notifications sent", "count", len(campaigns))
	}
}
