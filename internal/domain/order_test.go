package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPaymentStatus_CanSettle(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentPending, PaymentPaid, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentFailed, PaymentPaid, true},
		{PaymentFailed, PaymentFailed, false},
		{PaymentPaid, PaymentFailed, false},
		{PaymentPaid, PaymentPaid, false},
		{PaymentRefunded, PaymentPaid, false},
		{PaymentPending, PaymentRefunded, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanSettle(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestOrderStatus_Valid(t *testing.T) {
	assert.True(t, OrderReady.Valid())
	assert.False(t, OrderStatus("shipped").Valid())
}

func TestOrder_CloneIsDeep(t *testing.T) {
	done := time.Now()
	o := &Order{
		OrderID:              "WC1",
		Items:                []OrderItem{{ProductID: "latte", Customizations: []string{"oat"}}},
		Transactions:         []TransactionRecord{{TransactionID: "1"}},
		MoMo:                 &MoMoTransaction{RequestID: "r1"},
		PaymentDetails:       &PaymentDetails{Method: MethodMoMo},
		DeliveryAddress:      &DeliveryAddress{Street: "1 Le Loi"},
		ActualCompletionTime: &done,
	}
	cp := o.Clone()
	cp.Items[0].Customizations[0] = "soy"
	cp.Transactions[0].TransactionID = "2"
	cp.MoMo.RequestID = "r2"
	cp.PaymentDetails.Method = MethodCash
	cp.DeliveryAddress.Street = "2 Le Loi"

	assert.Equal(t, "oat", o.Items[0].Customizations[0])
	assert.Equal(t, "1", o.Transactions[0].TransactionID)
	assert.Equal(t, "r1", o.MoMo.RequestID)
	assert.Equal(t, MethodMoMo, o.PaymentDetails.Method)
	assert.Equal(t, "1 Le Loi", o.DeliveryAddress.Street)
	assert.NotSame(t, o.ActualCompletionTime, cp.ActualCompletionTime)
}

func TestOrder_HasTransaction(t *testing.T) {
	o := &Order{Transactions: []TransactionRecord{{Provider: ProviderVNPay, TransactionID: "14226112", ResultCode: "00"}}}
	assert.True(t, o.HasTransaction(ProviderVNPay, "14226112", "00"))
	assert.False(t, o.HasTransaction(ProviderVNPay, "14226112", "24"))
	assert.False(t, o.HasTransaction(ProviderMoMo, "14226112", "00"))
}

func TestOrder_PayableAmount(t *testing.T) {
	o := &Order{Total: decimal.RequireFromString("48599.5")}
	assert.Equal(t, int64(48600), o.PayableAmount())
}

func TestPrincipal(t *testing.T) {
	o := &Order{CustomerID: "u1"}
	assert.True(t, Principal{UserID: "u1"}.Owns(o))
	assert.False(t, Principal{UserID: "u2"}.Owns(o))
	assert.False(t, Principal{UserID: "u1"}.Owns(nil))
	assert.True(t, Principal{UserID: "a", Role: RoleAdmin}.IsAdmin())
	assert.False(t, Principal{UserID: "u1", Role: RoleCustomer}.IsAdmin())
}

func TestProduct_PriceFor(t *testing.T) {
	p := Product{
		Price: decimal.NewFromInt(29000),
		Sizes: []SizeOption{{Name: "large", Price: decimal.NewFromInt(42000)}},
	}
	assert.True(t, p.PriceFor("large").Equal(decimal.NewFromInt(42000)))
	assert.True(t, p.PriceFor("Regular").Equal(decimal.NewFromInt(29000)))
}
