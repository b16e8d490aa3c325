package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coffee-backend/internal/domain"
	"coffee-backend/internal/infrastructure/momo"
)

type MoMoGateway interface {
	CreatePayment(ctx context.Context, orderID string, amount int64, description, extraData string) (*momo.SignedRequest, *momo.CreateResponse, error)
}

type VNPayGateway interface {
	BuildPaymentURL(req domain.PaymentRequest) (string, error)
}

// PaymentService starts provider payments for existing orders. Either
// gateway may be nil when its credentials are not configured.
type PaymentService struct {
	Repo  OrderStore
	MoMo  MoMoGateway
	VNPay VNPayGateway
	Log   *slog.Logger
	Now   func() time.Time
	// Tolerance bounds how far a client supplied amount may drift from the
	// order total. It must match the settlement tolerance, otherwise the
	// provider charges an amount the callback will be rejected for.
	Tolerance decimal.Decimal
}

type MoMoInput struct {
	OrderID   string `json:"orderId"`
	Amount    *int64 `json:"amount"`
	OrderInfo string `json:"orderInfo"`
}

type MoMoPayment struct {
	OrderID   string `json:"orderId"`
	RequestID string `json:"requestId"`
	Amount    int64  `json:"amount"`
	PayURL    string `json:"payUrl"`
	Deeplink  string `json:"deeplink,omitempty"`
	QRCodeURL string `json:"qrCodeUrl,omitempty"`
}

type VNPayInput struct {
	OrderID   string `json:"orderId"`
	Amount    *int64 `json:"amount"`
	OrderInfo string `json:"orderInfo"`
	BankCode  string `json:"bankCode"`
	ClientIP  string `json:"-"`
}

type VNPayPayment struct {
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
	PaymentURL string `json:"paymentUrl"`
}

type PaymentView struct {
	OrderID        string                  `json:"orderId"`
	Status         domain.OrderStatus      `json:"status"`
	PaymentStatus  domain.PaymentStatus    `json:"paymentStatus"`
	PaymentMethod  domain.PaymentMethod    `json:"paymentMethod"`
	Total          decimal.Decimal         `json:"total"`
	Amount         int64                   `json:"amount"`
	MoMo           *domain.MoMoTransaction `json:"momoTransaction,omitempty"`
	PaymentDetails *domain.PaymentDetails  `json:"paymentDetails,omitempty"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

func (s *PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *PaymentService) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// payable loads the order and checks that p may start a payment for it.
func (s *PaymentService) payable(ctx context.Context, p domain.Principal, id string, override *int64) (*domain.Order, int64, error) {
	o, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if !p.Owns(o) {
		return nil, 0, domain.ErrForbidden
	}
	if err := checkPayable(o); err != nil {
		return nil, 0, err
	}
	amount := o.PayableAmount()
	if override != nil && *override != amount {
		if *override <= 0 {
			return nil, 0, domain.ValidationError("amount must be a positive integer")
		}
		if decimal.NewFromInt(*override).Sub(o.Total).Abs().GreaterThan(s.Tolerance) {
			return nil, 0, domain.ValidationError("amount does not match order total " + o.Total.String())
		}
		amount = *override
	}
	if amount <= 0 {
		return nil, 0, domain.ValidationError("amount must be a positive integer")
	}
	return o, amount, nil
}

func checkPayable(o *domain.Order) error {
	switch {
	case o.PaymentStatus == domain.PaymentPaid:
		return domain.ConflictError("order already paid")
	case o.PaymentStatus == domain.PaymentRefunded:
		return domain.ConflictError("order already refunded")
	case o.Status == domain.OrderCancelled:
		return domain.ConflictError("order is cancelled")
	}
	return nil
}

func defaultOrderInfo(info, orderID string) string {
	if info != "" {
		return info
	}
	return "Thanh toan don hang " + orderID
}

func extraData(userID, orderID string) string {
	raw, _ := json.Marshal(map[string]string{"userId": userID, "orderNumber": orderID})
	return base64.StdEncoding.EncodeToString(raw)
}

func (s *PaymentService) initiated(p domain.Provider, requestID string, amount int64) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:          uuid.NewString(),
		Provider:    p,
		RequestID:   requestID,
		ResultCode:  "created",
		AmountMinor: amount,
		Action:      "initiated",
		RecordedAt:  s.now(),
	}
}

// CreateMoMo asks MoMo for a payment link. A network failure or rejection
// leaves the order untouched so the caller can simply retry.
func (s *PaymentService) CreateMoMo(ctx context.Context, p domain.Principal, in MoMoInput) (*MoMoPayment, error) {
	if s.MoMo == nil {
		return nil, domain.ErrProviderDisabled
	}
	_, amount, err := s.payable(ctx, p, in.OrderID, in.Amount)
	if err != nil {
		return nil, err
	}
	req, resp, err := s.MoMo.CreatePayment(ctx, in.OrderID, amount, defaultOrderInfo(in.OrderInfo, in.OrderID), extraData(p.UserID, in.OrderID))
	if err != nil {
		s.logger().Warn("momo create payment failed", "orderId", in.OrderID, "err", err)
		return nil, err
	}
	_, err = mutate(ctx, s.Repo, in.OrderID, DefaultMaxAttempts, func(o *domain.Order) error {
		if err := checkPayable(o); err != nil {
			return err
		}
		o.PaymentMethod = domain.MethodMoMo
		o.MoMo = &domain.MoMoTransaction{
			RequestID:  req.RequestID,
			PayURL:     resp.PayURL,
			Deeplink:   resp.Deeplink,
			QRCodeURL:  resp.QRCodeURL,
			ResultCode: resp.ResultCode.String(),
			Message:    resp.Message,
		}
		o.Transactions = append(o.Transactions, s.initiated(domain.ProviderMoMo, req.RequestID, amount))
		o.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger().Info("momo payment created", "orderId", in.OrderID, "requestId", req.RequestID, "amount", amount)
	return &MoMoPayment{
		OrderID:   in.OrderID,
		RequestID: req.RequestID,
		Amount:    amount,
		PayURL:    resp.PayURL,
		Deeplink:  resp.Deeplink,
		QRCodeURL: resp.QRCodeURL,
	}, nil
}

func (s *PaymentService) CreateVNPay(ctx context.Context, p domain.Principal, in VNPayInput) (*VNPayPayment, error) {
	if s.VNPay == nil {
		return nil, domain.ErrProviderDisabled
	}
	_, amount, err := s.payable(ctx, p, in.OrderID, in.Amount)
	if err != nil {
		return nil, err
	}
	payURL, err := s.VNPay.BuildPaymentURL(domain.PaymentRequest{
		OrderID:          in.OrderID,
		AmountMinorUnits: amount,
		Description:      defaultOrderInfo(in.OrderInfo, in.OrderID),
		ClientIP:         in.ClientIP,
		BankCode:         in.BankCode,
	})
	if err != nil {
		return nil, err
	}
	_, err = mutate(ctx, s.Repo, in.OrderID, DefaultMaxAttempts, func(o *domain.Order) error {
		if err := checkPayable(o); err != nil {
			return err
		}
		o.PaymentMethod = domain.MethodVNPay
		o.Transactions = append(o.Transactions, s.initiated(domain.ProviderVNPay, in.OrderID, amount))
		o.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger().Info("vnpay payment url created", "orderId", in.OrderID, "amount", amount)
	return &VNPayPayment{OrderID: in.OrderID, Amount: amount, PaymentURL: payURL}, nil
}

func (s *PaymentService) Status(ctx context.Context, p domain.Principal, id string) (*PaymentView, error) {
	o, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(p, o) {
		return nil, domain.ErrForbidden
	}
	return &PaymentView{
		OrderID:        o.OrderID,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		PaymentMethod:  o.PaymentMethod,
		Total:          o.Total,
		Amount:         o.PayableAmount(),
		MoMo:           o.MoMo,
		PaymentDetails: o.PaymentDetails,
		UpdatedAt:      o.UpdatedAt,
	}, nil
}

// ConfirmCash confirms a cash order for preparation. The payment itself stays
// pending until the cashier collects it.
func (s *PaymentService) ConfirmCash(ctx context.Context, p domain.Principal, id string) (*domain.Order, error) {
	return mutate(ctx, s.Repo, id, DefaultMaxAttempts, func(o *domain.Order) error {
		if !p.Owns(o) {
			return domain.ErrOrderNotFound
		}
		if o.PaymentMethod != domain.MethodCash {
			return domain.ValidationError("order is not a cash order")
		}
		if o.Status == domain.OrderConfirmed || o.PaymentStatus == domain.PaymentPaid {
			return domain.ConflictError("order is already confirmed")
		}
		if o.Status != domain.OrderPending {
			return domain.ConflictError("order cannot be confirmed at this stage")
		}
		o.Status = domain.OrderConfirmed
		o.PaymentDetails = &domain.PaymentDetails{Method: domain.MethodCash}
		o.UpdatedAt = s.now()
		return nil
	})
}
