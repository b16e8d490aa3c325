package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coffee-backend/internal/domain"
)

var (
	taxRate     = decimal.RequireFromString("0.08")
	loyaltyRate = decimal.RequireFromString("0.1")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultSize     = "Regular"
)

type OrderService struct {
	Repo    OrderStore
	Catalog Catalog
	IDs     *snowflake.Node
	Now     func() time.Time
}

func NewOrderService(repo OrderStore, catalog Catalog, nodeID int64) (*OrderService, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &OrderService{Repo: repo, Catalog: catalog, IDs: node, Now: time.Now}, nil
}

// NewOrderID yields an alphanumeric id that satisfies the bank gateway's
// TxnRef rule.
func (s *OrderService) NewOrderID() string {
	return "WC" + strings.ToUpper(s.IDs.Generate().Base36())
}

type ItemInput struct {
	ProductID      string   `json:"product"`
	Quantity       int      `json:"quantity"`
	Size           string   `json:"size"`
	Customizations []string `json:"customizations"`
}

type CreateOrderInput struct {
	Items           []ItemInput             `json:"items"`
	OrderType       domain.OrderType        `json:"orderType"`
	PaymentMethod   domain.PaymentMethod    `json:"paymentMethod"`
	DeliveryAddress *domain.DeliveryAddress `json:"deliveryAddress"`
	Notes           string                  `json:"notes"`
}

func (in CreateOrderInput) validate() error {
	if len(in.Items) == 0 {
		return domain.ValidationError("order must contain at least one item")
	}
	switch in.OrderType {
	case domain.OrderPickup, domain.OrderDineIn:
	case domain.OrderDelivery:
		a := in.DeliveryAddress
		if a == nil || strings.TrimSpace(a.Street) == "" || strings.TrimSpace(a.City) == "" {
			return domain.ValidationError("delivery address is required for delivery orders")
		}
	default:
		return domain.ValidationError("invalid order type")
	}
	switch in.PaymentMethod {
	case domain.MethodCash, domain.MethodCard, domain.MethodMoMo, domain.MethodVNPay:
	default:
		return domain.ValidationError("invalid payment method")
	}
	return nil
}

func (s *OrderService) Create(ctx context.Context, p domain.Principal, in CreateOrderInput) (*domain.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	subtotal := decimal.Zero
	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return nil, domain.ValidationError("item quantity must be at least 1")
		}
		prod, err := s.Catalog.Product(ctx, it.ProductID)
		var nf domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, domain.ValidationError("product " + it.ProductID + " not found")
		}
		if err != nil {
			return nil, err
		}
		if !prod.Available {
			return nil, domain.ValidationError("product " + prod.Name + " is not available")
		}
		size := it.Size
		if size == "" {
			size = defaultSize
		}
		price := prod.PriceFor(it.Size)
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		items = append(items, domain.OrderItem{
			ProductID:      prod.ID,
			Name:           prod.Name,
			Price:          price,
			Quantity:       it.Quantity,
			Size:           size,
			Customizations: append([]string(nil), it.Customizations...),
		})
	}
	tax := subtotal.Mul(taxRate).Round(2)
	total := subtotal.Add(tax)
	now := s.Now().UTC()
	o := &domain.Order{
		OrderID:             s.NewOrderID(),
		CustomerID:          p.UserID,
		Items:               items,
		Subtotal:            subtotal,
		Tax:                 tax,
		Total:               total,
		Status:              domain.OrderPending,
		OrderType:           in.OrderType,
		PaymentMethod:       in.PaymentMethod,
		PaymentStatus:       domain.PaymentPending,
		Notes:               domain.SanitizeText(in.Notes, 500),
		LoyaltyPointsEarned: total.Mul(loyaltyRate).Floor().IntPart(),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if in.OrderType == domain.OrderDelivery {
		a := *in.DeliveryAddress
		o.DeliveryAddress = &a
	}
	if err := s.Repo.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func canAccess(p domain.Principal, o *domain.Order) bool {
	return p.IsAdmin() || p.Owns(o)
}

func (s *OrderService) Get(ctx context.Context, p domain.Principal, id string) (*domain.Order, error) {
	o, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(p, o) {
		return nil, domain.ErrForbidden
	}
	return o, nil
}

// List pages through the caller's orders; admins see every order.
func (s *OrderService) List(ctx context.Context, p domain.Principal, page, pageSize int) ([]domain.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	customer := p.UserID
	if p.IsAdmin() {
		customer = ""
	}
	return s.Repo.List(ctx, customer, page, pageSize)
}

// UpdateStatus moves the workflow status. Customers may only cancel their
// own orders.
func (s *OrderService) UpdateStatus(ctx context.Context, p domain.Principal, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, domain.ValidationError("invalid status")
	}
	return mutate(ctx, s.Repo, id, DefaultMaxAttempts, func(o *domain.Order) error {
		if !canAccess(p, o) {
			return domain.ErrForbidden
		}
		if !p.IsAdmin() && status != domain.OrderCancelled {
			return domain.ErrForbidden
		}
		if status == domain.OrderCancelled && o.Status != domain.OrderPending && o.Status != domain.OrderConfirmed {
			return domain.ConflictError("order cannot be cancelled at this stage")
		}
		now := s.Now().UTC()
		o.Status = status
		if status == domain.OrderCompleted {
			o.ActualCompletionTime = &now
		}
		o.UpdatedAt = now
		return nil
	})
}

func (s *OrderService) Cancel(ctx context.Context, p domain.Principal, id string) (*domain.Order, error) {
	return mutate(ctx, s.Repo, id, DefaultMaxAttempts, func(o *domain.Order) error {
		if !canAccess(p, o) {
			return domain.ErrOrderNotFound
		}
		if o.Status != domain.OrderPending {
			return domain.ConflictError("only pending orders can be cancelled")
		}
		o.Status = domain.OrderCancelled
		o.UpdatedAt = s.Now().UTC()
		return nil
	})
}

// MarkRefunded is the administrative paid/failed -> refunded transition.
func (s *OrderService) MarkRefunded(ctx context.Context, p domain.Principal, id, reason string) (*domain.Order, error) {
	if !p.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return mutate(ctx, s.Repo, id, DefaultMaxAttempts, func(o *domain.Order) error {
		if o.PaymentStatus != domain.PaymentPaid && o.PaymentStatus != domain.PaymentFailed {
			return domain.ConflictError("only paid or failed payments can be refunded")
		}
		now := s.Now().UTC()
		o.PaymentStatus = domain.PaymentRefunded
		if o.PaymentDetails == nil {
			o.PaymentDetails = &domain.PaymentDetails{Method: o.PaymentMethod}
		}
		o.PaymentDetails.RefundedAt = &now
		o.Transactions = append(o.Transactions, domain.TransactionRecord{
			ID:         uuid.NewString(),
			Provider:   domain.Provider(o.PaymentMethod),
			ResultCode: "refund",
			Message:    domain.SanitizeText(reason, domain.MaxDescriptionLen),
			Action:     "refunded",
			RecordedAt: now,
		})
		o.UpdatedAt = now
		return nil
	})
}
