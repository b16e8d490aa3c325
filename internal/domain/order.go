package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderReady, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// CanSettle reports whether a provider outcome may move the payment status
// from s to next. Refunds are administrative and never reachable from here.
func (s PaymentStatus) CanSettle(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentPaid || next == PaymentFailed
	case PaymentFailed:
		return next == PaymentPaid
	}
	return false
}

type OrderType string

const (
	OrderPickup   OrderType = "pickup"
	OrderDelivery OrderType = "delivery"
	OrderDineIn   OrderType = "dine-in"
)

type PaymentMethod string

const (
	MethodCash  PaymentMethod = "cash"
	MethodCard  PaymentMethod = "card"
	MethodMoMo  PaymentMethod = "momo"
	MethodVNPay PaymentMethod = "vnpay"
)

type OrderItem struct {
	ProductID      string          `json:"productId"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int             `json:"quantity"`
	Size           string          `json:"size"`
	Customizations []string        `json:"customizations,omitempty"`
}

type DeliveryAddress struct {
	Street       string `json:"street"`
	City         string `json:"city"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zipCode,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// MoMoTransaction mirrors the last MoMo create response and callback.
type MoMoTransaction struct {
	RequestID    string `json:"requestId,omitempty"`
	TransID      string `json:"transId,omitempty"`
	PayURL       string `json:"payUrl,omitempty"`
	Deeplink     string `json:"deeplink,omitempty"`
	QRCodeURL    string `json:"qrCodeUrl,omitempty"`
	ResultCode   string `json:"resultCode,omitempty"`
	Message      string `json:"message,omitempty"`
	ResponseTime string `json:"responseTime,omitempty"`
	PayType      string `json:"payType,omitempty"`
}

type PaymentDetails struct {
	Method        PaymentMethod    `json:"method"`
	TransactionID string           `json:"transactionId,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	ResponseCode  string           `json:"responseCode,omitempty"`
	PaidAt        *time.Time       `json:"paidAt,omitempty"`
	FailedAt      *time.Time       `json:"failedAt,omitempty"`
	FailureReason string           `json:"failureReason,omitempty"`
	RefundedAt    *time.Time       `json:"refundedAt,omitempty"`
}

// TransactionRecord is one entry of the append-only payment log.
type TransactionRecord struct {
	ID            string    `json:"id"`
	Provider      Provider  `json:"provider"`
	RequestID     string    `json:"requestId,omitempty"`
	TransactionID string    `json:"transId,omitempty"`
	ResultCode    string    `json:"resultCode"`
	Message       string    `json:"message,omitempty"`
	AmountMinor   int64     `json:"amount,omitempty"`
	Success       bool      `json:"success"`
	Action        string    `json:"action"`
	RecordedAt    time.Time `json:"recordedAt"`
}

type Order struct {
	OrderID              string              `json:"orderId"`
	CustomerID           string              `json:"customerId"`
	Items                []OrderItem         `json:"items"`
	Subtotal             decimal.Decimal     `json:"subtotal"`
	Tax                  decimal.Decimal     `json:"tax"`
	Total                decimal.Decimal     `json:"total"`
	Status               OrderStatus         `json:"status"`
	OrderType            OrderType           `json:"orderType"`
	PaymentMethod        PaymentMethod       `json:"paymentMethod"`
	PaymentStatus        PaymentStatus       `json:"paymentStatus"`
	MoMo                 *MoMoTransaction    `json:"momoTransaction,omitempty"`
	PaymentDetails       *PaymentDetails     `json:"paymentDetails,omitempty"`
	Transactions         []TransactionRecord `json:"paymentTransactionLog"`
	DeliveryAddress      *DeliveryAddress    `json:"deliveryAddress,omitempty"`
	Notes                string              `json:"notes,omitempty"`
	LoyaltyPointsEarned  int64               `json:"loyaltyPointsEarned"`
	ActualCompletionTime *time.Time          `json:"actualCompletionTime,omitempty"`
	Version              int64               `json:"-"`
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate it before a conditional update.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = make([]OrderItem, len(o.Items))
	for i, it := range o.Items {
		it.Customizations = append([]string(nil), it.Customizations...)
		cp.Items[i] = it
	}
	cp.Transactions = append([]TransactionRecord(nil), o.Transactions...)
	if o.MoMo != nil {
		m := *o.MoMo
		cp.MoMo = &m
	}
	if o.PaymentDetails != nil {
		d := *o.PaymentDetails
		cp.PaymentDetails = &d
	}
	if o.DeliveryAddress != nil {
		a := *o.DeliveryAddress
		cp.DeliveryAddress = &a
	}
	if o.ActualCompletionTime != nil {
		t := *o.ActualCompletionTime
		cp.ActualCompletionTime = &t
	}
	return &cp
}

// HasTransaction reports whether the log already holds the same provider result.
func (o *Order) HasTransaction(p Provider, transID, resultCode string) bool {
	for _, tr := range o.Transactions {
		if tr.Provider == p && tr.TransactionID == transID && tr.ResultCode == resultCode {
			return true
		}
	}
	return false
}

// PayableAmount is the order total rounded to whole VND.
func (o *Order) PayableAmount() int64 {
	return o.Total.Round(0).IntPart()
}
