package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"coffee-backend/internal/config"
	"coffee-backend/internal/infrastructure/momo"
	"coffee-backend/internal/infrastructure/repo"
	"coffee-backend/internal/infrastructure/vnpay"
	"coffee-backend/internal/logging"
	"coffee-backend/internal/metrics"
	"coffee-backend/internal/server"
	"coffee-backend/internal/usecase"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the MoMo reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg)
		},
	}
}

type stores struct {
	orders  usecase.OrderStore
	catalog interface {
		usecase.Catalog
		server.Menu
	}
	db *sql.DB
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (*stores, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("COFFEE_DATABASE_URL not set, orders are kept in memory")
		return &stores{orders: repo.NewMemoryOrderRepo(), catalog: repo.NewMemoryCatalog(repo.DefaultMenu()...)}, nil
	}
	db, err := repo.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := repo.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &stores{orders: repo.NewPostgresOrderRepo(db), catalog: repo.NewPostgresCatalog(db), db: db}, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = withDevSecret(cfg)
	log := logging.New(cfg)
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if st.db != nil {
		defer st.db.Close()
	}

	m := &metrics.Counters{}
	settlement := usecase.NewSettlement(st.orders, log, m, cfg.AmountTolerance)
	orders, err := usecase.NewOrderService(st.orders, st.catalog, cfg.NodeID)
	if err != nil {
		return err
	}
	payments := &usecase.PaymentService{Repo: st.orders, Log: log, Tolerance: cfg.AmountTolerance}
	deps := server.Deps{
		Config:     cfg,
		Log:        log,
		Metrics:    m,
		Auth:       &usecase.AuthService{JWTSecret: cfg.JWTSecret},
		Orders:     orders,
		Payments:   payments,
		Settlement: settlement,
		Menu:       st.catalog,
	}

	if mc, err := momo.NewClient(cfg.MoMo); err != nil {
		log.Warn("momo disabled", "err", err)
	} else {
		deps.MoMo, payments.MoMo = mc, mc
		rec := &usecase.Reconciler{
			Repo:       st.orders,
			MoMo:       mc,
			Settlement: settlement,
			Log:        log.With("component", "reconciler"),
			Metrics:    m,
			Interval:   cfg.ReconcileInterval,
			MinAge:     cfg.ReconcileAge,
		}
		go rec.Run(ctx)
	}
	if vc, err := vnpay.NewClient(cfg.VNPay); err != nil {
		log.Warn("vnpay disabled", "err", err)
	} else {
		deps.VNPay, payments.VNPay = vc, vc
		returnURL, ipnURL := vc.CallbackURLs()
		log.Info("vnpay enabled, register the IPN URL in the merchant portal", "returnUrl", returnURL, "ipnUrl", ipnURL)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.New(deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr, "store", storeKind(st))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func storeKind(st *stores) string {
	if st.db != nil {
		return "postgres"
	}
	return "memory"
}
