package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"coffee-backend/internal/domain"
	"coffee-backend/internal/infrastructure/momo"
	"coffee-backend/internal/metrics"
)

type MoMoStatusQuerier interface {
	QueryStatus(ctx context.Context, orderID, requestID string) (domain.PaymentOutcome, error)
}

// Reconciler polls MoMo for payments whose IPN never arrived and feeds the
// definitive answers through the settlement coordinator.
type Reconciler struct {
	Repo       OrderStore
	MoMo       MoMoStatusQuerier
	Settlement *Settlement
	Log        *slog.Logger
	Metrics    *metrics.Counters
	Interval   time.Duration
	MinAge     time.Duration
	BatchSize  int
	Now        func() time.Time
}

func (r *Reconciler) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ReconcileOnce(ctx); err != nil && ctx.Err() == nil {
				r.Log.Error("reconcile pass failed", "err", err)
			}
		}
	}
}

// ReconcileOnce returns how many orders were settled in this pass.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	batch := r.BatchSize
	if batch <= 0 {
		batch = 50
	}
	orders, err := r.Repo.ListAwaitingPayment(ctx, domain.MethodMoMo, now().Add(-r.MinAge), batch)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, o := range orders {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		if o.MoMo == nil || o.MoMo.RequestID == "" {
			continue
		}
		log := r.Log.With("orderId", o.OrderID, "requestId", o.MoMo.RequestID)
		out, err := r.MoMo.QueryStatus(ctx, o.OrderID, o.MoMo.RequestID)
		var ne *domain.NetworkError
		if errors.As(err, &ne) {
			log.Info("momo status query unavailable, retry next tick", "err", err)
			continue
		}
		if err != nil {
			log.Warn("momo status query failed", "err", err)
			continue
		}
		if momo.IsPending(out.RawResultCode) {
			continue
		}
		res, err := r.Settlement.Apply(ctx, out)
		if err != nil {
			log.Warn("reconciled outcome not applied", "resultCode", out.RawResultCode, "err", err)
			continue
		}
		if res.Action == ActionApplied {
			settled++
			if r.Metrics != nil {
				r.Metrics.Reconciled.Add(1)
			}
		}
	}
	return settled, nil
}
