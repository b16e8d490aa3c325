package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coffee-backend/internal/domain"
	"coffee-backend/internal/metrics"
)

type Action string

const (
	ActionApplied   Action = "applied"
	ActionDuplicate Action = "duplicate"
	// ActionIgnored means the outcome was recorded in the transaction log
	// but did not change the payment status.
	ActionIgnored Action = "ignored"
)

type SettlementResult struct {
	Action Action
	Order  *domain.Order
}

// Settlement is the only writer of an order's payment status in response to
// provider outcomes. Every write is a conditional update on the order
// version; a lost race re-reads and re-decides.
type Settlement struct {
	Store       OrderStore
	Log         *slog.Logger
	Metrics     *metrics.Counters
	Tolerance   decimal.Decimal
	MaxAttempts int
	Now         func() time.Time
}

func NewSettlement(store OrderStore, log *slog.Logger, m *metrics.Counters, tolerance decimal.Decimal) *Settlement {
	if m == nil {
		m = &metrics.Counters{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Settlement{
		Store:       store,
		Log:         log,
		Metrics:     m,
		Tolerance:   tolerance,
		MaxAttempts: DefaultMaxAttempts,
		Now:         time.Now,
	}
}

func (s *Settlement) Apply(ctx context.Context, out domain.PaymentOutcome) (SettlementResult, error) {
	log := s.Log.With("provider", out.Provider, "orderId", out.OrderID, "resultCode", out.RawResultCode,
		"transId", out.ProviderTransactionID, "signatureValid", out.SignatureValid)
	if !out.SignatureValid {
		s.Metrics.SignatureFailures.Add(1)
		log.Warn("payment outcome rejected: signature invalid")
		return SettlementResult{}, domain.ErrSignatureInvalid
	}
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	for i := 0; i < attempts; i++ {
		cur, err := s.Store.Get(ctx, out.OrderID)
		if errors.Is(err, domain.ErrOrderNotFound) {
			s.Metrics.Rejected.Add(1)
			log.Warn("payment outcome for unknown order")
			return SettlementResult{}, err
		}
		if err != nil {
			return SettlementResult{}, err
		}
		if out.HasAmount && !s.amountMatches(cur, out.AmountMinorUnits) {
			s.Metrics.Rejected.Add(1)
			log.Warn("payment outcome rejected: amount mismatch", "amount", out.AmountMinorUnits, "total", cur.Total.String())
			return SettlementResult{Order: cur}, fmt.Errorf("%w: got %d, order total %s", domain.ErrAmountMismatch, out.AmountMinorUnits, cur.Total.String())
		}
		if cur.HasTransaction(out.Provider, out.ProviderTransactionID, out.RawResultCode) {
			s.Metrics.Duplicates.Add(1)
			log.Info("payment outcome already recorded", "action", ActionDuplicate)
			return SettlementResult{Action: ActionDuplicate, Order: cur}, nil
		}

		next := cur.Clone()
		action := s.decide(next, out, log)
		next.Transactions = append(next.Transactions, domain.TransactionRecord{
			ID:            uuid.NewString(),
			Provider:      out.Provider,
			RequestID:     out.RequestID,
			TransactionID: out.ProviderTransactionID,
			ResultCode:    out.RawResultCode,
			Message:       out.NormalizedMessage,
			AmountMinor:   out.AmountMinorUnits,
			Success:       out.Success,
			Action:        string(action),
			RecordedAt:    s.Now().UTC(),
		})
		next.UpdatedAt = s.Now().UTC()

		err = s.Store.Update(ctx, next, cur.Version)
		if errors.Is(err, domain.ErrVersionConflict) {
			s.Metrics.ConflictRetries.Add(1)
			log.Debug("settlement lost update race, retrying", "attempt", i+1)
			continue
		}
		if err != nil {
			return SettlementResult{}, err
		}
		if action == ActionApplied {
			s.Metrics.SettlementsApplied.Add(1)
		} else {
			s.Metrics.Ignored.Add(1)
		}
		log.Info("payment outcome settled", "action", action, "paymentStatus", next.PaymentStatus, "status", next.Status)
		return SettlementResult{Action: action, Order: next}, nil
	}
	log.Error("settlement gave up after repeated update conflicts", "attempts", attempts)
	return SettlementResult{}, domain.ErrConcurrentUpdate
}

func (s *Settlement) amountMatches(o *domain.Order, amount int64) bool {
	return decimal.NewFromInt(amount).Sub(o.Total).Abs().LessThanOrEqual(s.Tolerance)
}

// decide mutates o according to the payment status partial order and
// reports whether the status changed.
func (s *Settlement) decide(o *domain.Order, out domain.PaymentOutcome, log *slog.Logger) Action {
	target := domain.PaymentFailed
	if out.Success {
		target = domain.PaymentPaid
	}
	if !o.PaymentStatus.CanSettle(target) {
		return ActionIgnored
	}
	now := s.Now().UTC()
	amount := decimal.NewFromInt(out.AmountMinorUnits)
	method := domain.PaymentMethod(out.Provider)
	o.PaymentStatus = target
	o.PaymentMethod = method
	d := &domain.PaymentDetails{
		Method:        method,
		TransactionID: out.ProviderTransactionID,
		ResponseCode:  out.RawResultCode,
	}
	if out.HasAmount {
		d.Amount = &amount
	}
	if out.Success {
		d.PaidAt = &now
		switch o.Status {
		case domain.OrderPending:
			o.Status = domain.OrderConfirmed
		case domain.OrderCancelled:
			log.Warn("payment succeeded for a cancelled order, refund required")
		}
	} else {
		d.FailedAt = &now
		d.FailureReason = out.NormalizedMessage
	}
	o.PaymentDetails = d
	if out.Provider == domain.ProviderMoMo {
		if o.MoMo == nil {
			o.MoMo = &domain.MoMoTransaction{}
		}
		if out.RequestID != "" {
			o.MoMo.RequestID = out.RequestID
		}
		o.MoMo.TransID = out.ProviderTransactionID
		o.MoMo.ResultCode = out.RawResultCode
		o.MoMo.Message = out.NormalizedMessage
		o.MoMo.ResponseTime = out.ResponseTime
		o.MoMo.PayType = out.PayType
	}
	return ActionApplied
}
