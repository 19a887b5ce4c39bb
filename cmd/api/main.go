package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/pointchain/internal/api"
	"github.com/punchamoorthee/pointchain/internal/chain"
	"github.com/punchamoorthee/pointchain/internal/config"
	"github.com/punchamoorthee/pointchain/internal/domain"
	"github.com/punchamoorthee/pointchain/internal/scheduler"
	"github.com/punchamoorthee/pointchain/internal/service"
	"github.com/punchamoorthee/pointchain/internal/store"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ledgerStore, err := store.NewStore(cfg.DBSource)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer ledgerStore.Close()

	chainClient := chain.NewClient(chain.Options{
		GatewayURL:  cfg.ChainGatewayURL,
		APIKey:      cfg.ChainAPIKey,
		CallTimeout: cfg.ChainCallTimeout,
		Enabled:     cfg.ChainEnabled,
	})
	defer chainClient.Close()

	// Initialize Layers
	txService := service.New(ledgerStore, chainClient, logger)
	handler := api.NewHandler(ledgerStore, txService, chainClient, cfg.EarnRate)

	reconciler := scheduler.NewReconciler(ledgerStore, txService, logger, cfg.ReconcileInterval, cfg.SweepBatchSize)
	notifier := scheduler.NewStartsNotifier(ledgerStore, logNotifier{logger}, logger, cfg.NotifyInterval)

	// Router
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheckHandler)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/users", handler.RegisterUserHandler).Methods("POST")
	apiV1.HandleFunc("/loyalty/earn", handler.EarnPointsHandler).Methods("POST")
	apiV1.HandleFunc("/loyalty/redeem", handler.RedeemPointsHandler).Methods("POST")
	apiV1.HandleFunc("/loyalty/{memberId}", handler.GetLoyaltyHandler).Methods("GET")
	apiV1.HandleFunc("/loyalty/{memberId}/transactions", handler.ListLoyaltyTransactionsHandler).Methods("GET")
	apiV1.HandleFunc("/campaigns", handler.CreateCampaignHandler).Methods("POST")
	apiV1.HandleFunc("/campaigns/{id}", handler.GetCampaignHandler).Methods("GET")
	apiV1.HandleFunc("/campaigns/{id}/promises", handler.CreatePromiseHandler).Methods("POST")
	apiV1.HandleFunc("/supports/{id}", handler.GetSupportHandler).Methods("GET")
	apiV1.HandleFunc("/supports/{id}/receive", handler.ReceiveFundHandler).Methods("POST")
	apiV1.HandleFunc("/supports/{id}/revert", handler.RevertFundHandler).Methods("POST")
	apiV1.HandleFunc("/supports/{id}/spend", handler.SpendFundHandler).Methods("POST")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reconciler.Start(ctx)
	defer reconciler.Stop()
	notifier.Start(ctx)
	defer notifier.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Port, "chain_enabled", cfg.ChainEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// logNotifier is the default campaign-starts collaborator; production
// deployments swap in the mailer.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) CampaignStarting(_ context.Context, c domain.MicrocreditCampaign) error {
	n.logger.Info("campaign redemption opens tomorrow", "campaign", c.ID, "title", c.Title)
	return nil
}
