package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/pointchain/internal/domain"
	"github.com/punchamoorthee/pointchain/internal/service"
)

var (
	reconcilerPromotions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pointchain_reconciler_promotions_total",
		Help: "Pending records promoted to completed, by family",
	}, []string{"family"})

	reconcilerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pointchain_reconciler_failures_total",
		Help: "Per-record retry failures during sweeps, by family",
	}, []string{"family"})

	reconcilerPending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pointchain_reconciler_pending_records",
		Help: "Pending records seen by the latest sweep, by family",
	}, []string{"family"})
)

// PendingSource lists pending records with their referenced graph
// hydrated, oldest first.
type PendingSource interface {
	ListPendingRegistrations(ctx context.Context, limit int) ([]domain.PendingRegistration, error)
	ListPendingLoyalty(ctx context.Context, limit int) ([]domain.PendingLoyalty, error)
	ListPendingCampaigns(ctx context.Context, limit int) ([]domain.PendingCampaign, error)
	ListPendingPromises(ctx context.Context, limit int) ([]domain.PendingMicrocredit, error)
	ListPendingMicrocredit(ctx context.Context, limit int) ([]domain.PendingMicrocredit, error)
}

// Updater is the transaction service's retry surface.
type Updater interface {
	UpdateRegistrationTransaction(ctx context.Context, p domain.PendingRegistration) (*domain.RegistrationTransaction, error)
	UpdateLoyaltyTransaction(ctx context.Context, p domain.PendingLoyalty) (*domain.LoyaltyTransaction, error)
	UpdateCampaignRegistration(ctx context.Context, p domain.PendingCampaign) (*domain.MicrocreditCampaign, error)
	UpdatePromiseTransaction(ctx context.Context, p domain.PendingMicrocredit) (*domain.MicrocreditTransaction, error)
	UpdateMicrocreditTransaction(ctx context.Context, p domain.PendingMicrocredit) (*domain.MicrocreditTransaction, error)
}

// Reconciler periodically retries the chain mirror for pending records.
// Families sweep in dependency order within a tick (registrations before
// loyalty and campaigns, campaigns and promises before the rest), but the
// ordering is advisory: a record whose prerequisite has not landed simply
// stays pending for a later tick. Each family carries its own in-progress
// guard so a slow sweep is skipped, not duplicated, by the next tick.
type Reconciler struct {
	source   PendingSource
	updater  Updater
	logger   *slog.Logger
	interval time.Duration
	batch    int

	guards [5]atomic.Bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewReconciler(source PendingSource, updater Updater, logger *slog.Logger, interval time.Duration, batch int) *Reconciler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Reconciler{
		source:   source,
		updater:  updater,
		logger:   logger.With("component", "reconciler"),
		interval: interval,
		batch:    batch,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true

	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep(ctx)
			}
		}
	}()
}

func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
}

// Sweep runs one pass over all families in dependency order.
func (r *Reconciler) Sweep(ctx context.Context) {
	r.sweep(ctx, "registration", &r.guards[0], r.sweepRegistrations)
	r.sweep(ctx, "loyalty", &r.guards[1], r.sweepLoyalty)
	r.sweep(ctx, "campaign", &r.guards[2], r.sweepCampaigns)
	r.sweep(ctx, "promise", &r.guards[3], r.sweepPromises)
	r.sweep(ctx, "microcredit", &r.guards[4], r.sweepMicrocredit)
}

func (r *Reconciler) sweep(ctx context.Context, family string, guard *atomic.Bool, run func(ctx context.Context) (completed, total int, err error)) {
	if !guard.CompareAndSwap(false, true) {
		r.logger.Debug("sweep still in progress, skipping", "family", family)
		return
	}
	defer guard.Store(false)

	completed, total, err := run(ctx)
	if err != nil {
		r.logger.Error("sweep aborted", "family", family, "error", err)
		return
	}
	reconcilerPending.WithLabelValues(family).Set(float64(total))
	if total > 0 {
		r.logger.Info("sweep finished", "family", family, "completed", completed, "total", total)
	}
}

func (r *Reconciler) sweepRegistrations(ctx context.Context) (int, int, error) {
	pending, err := r.source.ListPendingRegistrations(ctx, r.batch)
	if err != nil {
		return 0, 0, err
	}
	completed := 0
	for _, p := range pending {
		updated, err := r.updater.UpdateRegistrationTransaction(ctx, p)
		if r.recordResult(ctx, "registration", p.Tx.ID.String(), updated != nil, err) {
			completed++
		}
	}
	return completed, len(pending), nil
}

func (r *Reconciler) sweepLoyalty(ctx context.Context) (int, int, error) {
	pending, err := r.source.ListPendingLoyalty(ctx, r.batch)
	if err != nil {
		return 0, 0, err
	}
	completed := 0
	for _, p := range pending {
		updated, err := r.updater.UpdateLoyaltyTransaction(ctx, p)
		if r.recordResult(ctx, "loyalty", p.Tx.ID.String(), updated != nil, err) {
			completed++
		}
	}
	return completed, len(pending), nil
}

func (r *Reconciler) sweepCampaigns(ctx context.Context) (int, int, error) {
	pending, err := r.source.ListPendingCampaigns(ctx, r.batch)
	if err != nil {
		return 0, 0, err
	}
	completed := 0
	for _, p := range pending {
		updated, err := r.updater.UpdateCampaignRegistration(ctx, p)
		if r.recordResult(ctx, "campaign", p.Campaign.ID.String(), updated != nil, err) {
			completed++
		}
	}
	return completed, len(pending), nil
}

func (r *Reconciler) sweepPromises(ctx context.Context) (int, int, error) {
	pending, err := r.source.ListPendingPromises(ctx, r.batch)
	if err != nil {
		return 0, 0, err
	}
	completed := 0
	for _, p := range pending {
		updated, err := r.updater.UpdatePromiseTransaction(ctx, p)
		if r.recordResult(ctx, "promise", p.Tx.ID.String(), updated != nil, err) {
			completed++
		}
	}
	return completed, len(pending), nil
}

func (r *Reconciler) sweepMicrocredit(ctx context.Context) (int, int, error) {
	pending, err := r.source.ListPendingMicrocredit(ctx, r.batch)
	if err != nil {
		return 0, 0, err
	}
	completed := 0
	for _, p := range pending {
		updated, err := r.updater.UpdateMicrocreditTransaction(ctx, p)
		if r.recordResult(ctx, "microcredit", p.Tx.ID.String(), updated != nil, err) {
			completed++
		}
	}
	return completed, len(pending), nil
}

// recordResult handles one record's retry outcome without letting it stop
// the sweep. Returns true when the record was promoted.
func (r *Reconciler) recordResult(_ context.Context, family, id string, promoted bool, err error) bool {
	switch {
	case errors.Is(err, service.ErrCampaignNotRegistered):
		r.logger.Debug("prerequisite not on chain yet, requeued", "family", family, "record", id)
		return false
	case err != nil:
		reconcilerFailures.WithLabelValues(family).Inc()
		r.logger.Warn("record retry failed", "family", family, "record", id, "error", err)
		return false
	case promoted:
		reconcilerPromotions.WithLabelValues(family).Inc()
		return true
	default:
		return false
	}
}
