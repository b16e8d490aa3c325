package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffee-backend/internal/domain"
	"coffee-backend/internal/infrastructure/repo"
	"coffee-backend/internal/logging"
	"coffee-backend/internal/metrics"
)

var testNow = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func seedOrder(t *testing.T, store OrderStore, id string, total int64) *domain.Order {
	t.Helper()
	o := &domain.Order{
		OrderID:       id,
		CustomerID:    "u1",
		Items:         []domain.OrderItem{{ProductID: "latte", Name: "Latte", Price: decimal.NewFromInt(total), Quantity: 1}},
		Total:         decimal.NewFromInt(total),
		Status:        domain.OrderPending,
		OrderType:     domain.OrderPickup,
		PaymentMethod: domain.MethodMoMo,
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
	require.NoError(t, store.Create(context.Background(), o))
	return o
}

func newTestSettlement(store OrderStore) *Settlement {
	s := NewSettlement(store, logging.Discard(), &metrics.Counters{}, decimal.NewFromInt(1))
	s.Now = func() time.Time { return testNow }
	return s
}

func outcome(id string, success bool, transID, code string, amount int64) domain.PaymentOutcome {
	return domain.PaymentOutcome{
		Provider:              domain.ProviderMoMo,
		OrderID:               id,
		Success:               success,
		SignatureValid:        true,
		ProviderTransactionID: transID,
		RequestID:             "MOMO1",
		RawResultCode:         code,
		NormalizedMessage:     "msg " + code,
		AmountMinorUnits:      amount,
		HasAmount:             true,
	}
}

func TestSettlement_SuccessConfirmsOrder(t *testing.T) {
	store := repo.NewMemoryOrderRepo()
	seedOrder(t, store, "WC1", 48600)
	s := newTestSettlement(store)

	res, err := s.Apply(context.Background(), outcome("WC1", true, "99", "0", 48600))
	require.NoError(t, err)
	assert.Equal(t, ActionApplied, res.Action)

	o, _ := store.Get(context.Background(), "WC1")
	assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, domain.OrderConfirmed, o.Status)
	require.Len(t, o.Transactions, 1)
	assert.NotEmpty(t, o.Transactions[0].ID)
	require.NotNil(t, o.PaymentDetails)
	assert.Equal(t, "99", o.PaymentDetails.TransactionID)
	assert.Equal(t, testNow, *o.PaymentDetails.PaidAt)
	require.NotNil(t, o.MoMo)
	assert.Equal(t, "99", o.MoMo.TransID)
	assert.Equal(t, uint64(1), s.Metrics.SettlementsApplied.Load())
}

func TestSettlement_Idempotent(t *testing.T) {
	store := repo.NewMemoryOrderRepo()
	seedOrder(t, store, "WC1", 48600)
	s := newTestSettlement(store)
	ctx := context.Background()

	_, err := s.Apply(ctx, outcome("WC1", true, "99", "0", 48600))
	require.NoError(t, err)
	once, _ := store.Get(ctx, "WC1")

	res, err := s.Apply(ctx, outcome("WC1", true, "99", "0", 48600))
	require.NoError(t, err)
	assert.Equal(t, ActionDuplicate, res.Action)

	twice, _ := store.Get(ctx, "WC1")
	assert.Equal(t, once, twice)
	assert.Equal(t, uint64(1), s.Metrics.Duplicates.Load())
}

func TestSettlement_PaidNeverRegresses(t *testing.T) {
	store := repo.NewMemoryOrderRepo()
	seedOrder(t, store, "WC1", 48600)
	s := newTestSettlement(store)
	ctx := context.Background()

	_, err := s.Apply(ctx, outcome("WC1", true, "99", "0", 48600))
	require.NoError(t, err)
	res, err := s.Apply(ctx, outcome("WC1", false, "100", "1006", 48600))
	require.NoError(t, err)
	assert.Equal(t, ActionIgnored, res.Action)

	o, _ := store.Get(ctx, "WC1")
	assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
	assert.Len(t, o.Transactions, 2)
	assert.Equal(t, string(ActionIgnored), o.Transactions[1].Action)
	assert.Equal(t, "99", o.PaymentDetails.TransactionID)
}

func TestSettlement_OrderingsConvergeToPaid(t *testing.T) {
	orders := map[string][]domain.PaymentOutcome{
		"failure then success": {outcome("WC1", false, "1", "1006", 48600), outcome("WC1", true, "2", "0", 48600)},
		"success then failure": {outcome("WC1", true, "2", "0", 48600), outcome("WC1", false, "1", "1006", 48600)},
	}
	for name, seq := range orders {
		t.Run(name, func(t *testing.T) {
			store := repo.NewMemoryOrderRepo()
			seedOrder(t, store, "WC1", 48600)
			s := newTestSettlement(store)
			for _, out := range seq {
				_, err := s.Apply(context.Background(), out)
				require.NoError(t, err)
			}
			o, _ := store.Get(context.Background(), "WC1")
			assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
			assert.Equal(t, domain.OrderConfirmed, o.Status)
		})
	}
}

func TestSettlement_AmountMismatchLeavesOrderUnchanged(t *testing.T) {
	store := repo.NewMemoryOrderRepo()
	seedOrder(t, store, "WC1", 48600)
	s := newTestSettlement(store)
	ctx := context.Background()
	before, _ := store.Get(ctx, "WC1")

	_, err := s.Apply(ctx, outcome("WC1", true, "99", "0", 48602))
	assert.ErrorIs(t, err, domain.ErrAmountMismatch)

	after, _ := store.Get(ctx, "WC1")
	assert.Equal(t, before, after)

	_, err = s.Apply(ctx, outcome("WC1", true, "99", "0", 48601))
	assert.NoError(t, err, "within tolerance")
}

func TestSettlement_MissingAmountSkipsCheck(t *testing.T) {
	store := repo.NewMemoryOrderRepo()
	seedOrder(t, store, "WC1", 48600)
	out := outcome("WC1", true, "99", "0", 0)
	out.HasAmount = false
	res, err := newTestSettlement(store).Apply(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, ActionApplied, res.Action)
	assert.Nil(t, res.Order.PaymentDetails.Amount)
}

func TestSettlement_RejectsBadSignatureAndUnknownOrder(t *testing.T) {
	store := repo.NewMemoryOrderRepo()
	seedOrder(t, store, "WC1", 48600)
	s := newTestSettlement(store)

	bad := outcome("WC1", false, "99", "0", 48600)
	bad.SignatureValid = false
	_, err := s.Apply(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
	o, _ := store.Get(context.Background(), "WC1")
	assert.Empty(t, o.Transactions)

	_, err = s.Apply(context.Background(), outcome("WC404", true, "99", "0", 48600))
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Equal(t, uint64(1), s.Metrics.SignatureFailures.Load())
	assert.Equal(t, uint64(1), s.Metrics.Rejected.Load())
}

func TestSettlement_StatusRules(t *testing.T) {
	cases := []struct {
		name       string
		status     domain.OrderStatus
		payment    domain.PaymentStatus
		success    bool
		wantStatus domain.OrderStatus
		wantPay    domain.PaymentStatus
		wantAction Action
	}{
		{"advanced workflow kept", domain.OrderPreparing, domain.PaymentPending, true, domain.OrderPreparing, domain.PaymentPaid, ActionApplied},
		{"cancelled stays cancelled", domain.OrderCancelled, domain.PaymentPending, true, domain.OrderCancelled, domain.PaymentPaid, ActionApplied},
		{"failure keeps workflow", domain.OrderPending, domain.PaymentPending, false, domain.OrderPending, domain.PaymentFailed, ActionApplied},
		{"retry after failure", domain.OrderPending, domain.PaymentFailed, true, domain.OrderConfirmed, domain.PaymentPaid, ActionApplied},
		{"refunded is terminal", domain.OrderCancelled, domain.PaymentRefunded, true, domain.OrderCancelled, domain.PaymentRefunded, ActionIgnored},
		{"second failure ignored", domain.OrderPending, domain.PaymentFailed, false, domain.OrderPending, domain.PaymentFailed, ActionIgnored},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := repo.NewMemoryOrderRepo()
			o := seedOrder(t, store, "WC1", 48600)
			o.Status, o.PaymentStatus = tc.status, tc.payment
			require.NoError(t, store.Update(context.Background(), o, o.Version))

			code := "0"
			if !tc.success {
				code = "1006"
			}
			res, err := newTestSettlement(store).Apply(context.Background(), outcome("WC1", tc.success, "7", code, 48600))
			require.NoError(t, err)
			assert.Equal(t, tc.wantAction, res.Action)
			assert.Equal(t, tc.wantStatus, res.Order.Status)
			assert.Equal(t, tc.wantPay, res.Order.PaymentStatus)
		})
	}
}

// racyStore makes the first n conditional updates lose.
type racyStore struct {
	OrderStore
	n int32
}

func (s *racyStore) Update(ctx context.Context, o *domain.Order, expected int64) error {
	if atomic.AddInt32(&s.n, -1) >= 0 {
		return domain.ErrVersionConflict
	}
	return s.OrderStore.Update(ctx, o, expected)
}

func TestSettlement_RetriesOnConflict(t *testing.T) {
	mem := repo.NewMemoryOrderRepo()
	seedOrder(t, mem, "WC1", 48600)

	s := newTestSettlement(&racyStore{OrderStore: mem, n: 2})
	res, err := s.Apply(context.Background(), outcome("WC1", true, "99", "0", 48600))
	require.NoError(t, err)
	assert.Equal(t, ActionApplied, res.Action)
	assert.Equal(t, uint64(2), s.Metrics.ConflictRetries.Load())

	s = newTestSettlement(&racyStore{OrderStore: mem, n: 100})
	_, err = s.Apply(context.Background(), outcome("WC1", false, "100", "1006", 48600))
	assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)
}

func TestSettlement_ConcurrentCallbacks(t *testing.T) {
	store := repo.NewMemoryOrderRepo()
	seedOrder(t, store, "WC1", 48600)
	s := newTestSettlement(store)
	s.MaxAttempts = 50

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out := outcome("WC1", true, "99", "0", 48600)
			if i%2 == 1 {
				out = outcome("WC1", false, "98", "1006", 48600)
			}
			if _, err := s.Apply(context.Background(), out); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.False(t, errors.Is(err, domain.ErrConcurrentUpdate), "unexpected %v", err)
	}

	o, _ := store.Get(context.Background(), "WC1")
	assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
	seen := map[string]int{}
	for _, tr := range o.Transactions {
		seen[tr.TransactionID+"/"+tr.ResultCode]++
	}
	assert.Equal(t, 1, seen["99/0"])
	assert.Equal(t, 1, seen["98/1006"])
}
