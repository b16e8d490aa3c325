package usecase

import (
	"context"
	"errors"
	"time"

	"coffee-backend/internal/domain"
)

type OrderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	// Update persists o only if the stored version equals expected and
	// returns domain.ErrVersionConflict otherwise.
	Update(ctx context.Context, o *domain.Order, expected int64) error
	List(ctx context.Context, customerID string, page, pageSize int) ([]domain.Order, int, error)
	ListAwaitingPayment(ctx context.Context, method domain.PaymentMethod, before time.Time, limit int) ([]*domain.Order, error)
}

type Catalog interface {
	Product(ctx context.Context, id string) (domain.Product, error)
}

const DefaultMaxAttempts = 5

// mutate runs a read-modify-write cycle against the store, re-reading and
// re-running fn whenever the conditional update loses a race.
func mutate(ctx context.Context, store OrderStore, id string, attempts int, fn func(*domain.Order) error) (*domain.Order, error) {
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	for i := 0; i < attempts; i++ {
		cur, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		next := cur.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		err = store.Update(ctx, next, cur.Version)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return next, nil
	}
	return nil, domain.ErrConcurrentUpdate
}
