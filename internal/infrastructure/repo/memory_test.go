package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffee-backend/internal/domain"
)

func newOrder(id, customer string, created time.Time) *domain.Order {
	return &domain.Order{
		OrderID:       id,
		CustomerID:    customer,
		Items:         []domain.OrderItem{{ProductID: "latte", Name: "Latte", Price: vnd(45000), Quantity: 1}},
		Total:         vnd(48600),
		Status:        domain.OrderPending,
		PaymentMethod: domain.MethodMoMo,
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestMemoryOrderRepo_CreateGet(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryOrderRepo()
	o := newOrder("WC1", "u1", time.Now())
	require.NoError(t, r.Create(ctx, o))
	assert.Equal(t, int64(1), o.Version)

	var ce domain.ConflictError
	assert.True(t, errors.As(r.Create(ctx, newOrder("WC1", "u2", time.Now())), &ce))

	got, err := r.Get(ctx, "WC1")
	require.NoError(t, err)
	got.Items[0].Quantity = 9
	again, _ := r.Get(ctx, "WC1")
	assert.Equal(t, 1, again.Items[0].Quantity)

	_, err = r.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestMemoryOrderRepo_UpdateIsConditional(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryOrderRepo()
	require.NoError(t, r.Create(ctx, newOrder("WC1", "u1", time.Now())))

	a, _ := r.Get(ctx, "WC1")
	b, _ := r.Get(ctx, "WC1")
	a.PaymentStatus = domain.PaymentPaid
	require.NoError(t, r.Update(ctx, a, 1))
	assert.Equal(t, int64(2), a.Version)

	b.PaymentStatus = domain.PaymentFailed
	assert.ErrorIs(t, r.Update(ctx, b, 1), domain.ErrVersionConflict)

	cur, _ := r.Get(ctx, "WC1")
	assert.Equal(t, domain.PaymentPaid, cur.PaymentStatus)

	assert.ErrorIs(t, r.Update(ctx, newOrder("WC9", "u1", time.Now()), 1), domain.ErrOrderNotFound)
}

func TestMemoryOrderRepo_List(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryOrderRepo()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"WC1", "WC2", "WC3"} {
		require.NoError(t, r.Create(ctx, newOrder(id, "u1", base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, r.Create(ctx, newOrder("WC4", "u2", base)))

	page, total, err := r.List(ctx, "u1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "WC3", page[0].OrderID)

	page, _, _ = r.List(ctx, "u1", 5, 2)
	assert.Empty(t, page)

	_, total, _ = r.List(ctx, "", 1, 10)
	assert.Equal(t, 4, total)
}

func TestMemoryOrderRepo_ListAwaitingPayment(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryOrderRepo()
	now := time.Now()
	old := newOrder("WC1", "u1", now.Add(-time.Hour))
	fresh := newOrder("WC2", "u1", now)
	paid := newOrder("WC3", "u1", now.Add(-time.Hour))
	paid.PaymentStatus = domain.PaymentPaid
	cash := newOrder("WC4", "u1", now.Add(-time.Hour))
	cash.PaymentMethod = domain.MethodCash
	neverStarted := newOrder("WC5", "u1", now.Add(-2*time.Hour))
	retried := newOrder("WC6", "u1", now.Add(-3*time.Hour))
	retried.UpdatedAt = now.Add(-30 * time.Minute)
	for _, o := range []*domain.Order{old, fresh, paid, cash, retried} {
		o.MoMo = &domain.MoMoTransaction{RequestID: "MOMO" + o.OrderID}
	}
	for _, o := range []*domain.Order{old, fresh, paid, cash, neverStarted, retried} {
		require.NoError(t, r.Create(ctx, o))
	}

	out, err := r.ListAwaitingPayment(ctx, domain.MethodMoMo, now.Add(-10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "WC1", out[0].OrderID)
	assert.Equal(t, "WC6", out[1].OrderID, "ordered by last update")

	out, err = r.ListAwaitingPayment(ctx, domain.MethodMoMo, now.Add(-10*time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestMemoryCatalog(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCatalog(DefaultMenu()...)
	p, err := c.Product(ctx, "latte")
	require.NoError(t, err)
	assert.True(t, p.PriceFor("large").Equal(vnd(55000)))
	assert.True(t, p.PriceFor("tiny").Equal(vnd(45000)))

	_, err = c.Product(ctx, "mocha")
	var nf domain.NotFoundError
	assert.True(t, errors.As(err, &nf))

	all, _ := c.Products(ctx)
	assert.Len(t, all, len(DefaultMenu()))
}
