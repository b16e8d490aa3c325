package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type MoMoConfig struct {
	PartnerCode   string
	AccessKey     string
	SecretKey     string
	PartnerName   string
	StoreID       string
	RedirectURL   string
	IPNURL        string
	Endpoint      string
	QueryEndpoint string
	RequestType   string
	Lang          string
	AutoCapture   bool
	Timeout       time.Duration
	MaxAmount     int64
}

type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
	IPNURL     string
	Version    string
	Command    string
	CurrCode   string
	Locale     string
	OrderType  string
	Expiry     time.Duration
	MaxAmount  int64
}

type Config struct {
	Env               string
	Port              int
	LogJSON           bool
	JWTSecret         string
	DatabaseURL       string
	FrontendURL       string
	NodeID            int64
	AmountTolerance   decimal.Decimal
	ReconcileInterval time.Duration
	ReconcileAge      time.Duration
	CallbackRPS       float64
	CallbackBurst     int
	MoMo              MoMoConfig
	VNPay             VNPayConfig
}

func Default() Config {
	return Config{
		Env:               "dev",
		Port:              5003,
		LogJSON:           true,
		FrontendURL:       "http://localhost:5173",
		NodeID:            1,
		AmountTolerance:   decimal.NewFromInt(1),
		ReconcileInterval: time.Minute,
		ReconcileAge:      5 * time.Minute,
		CallbackRPS:       20,
		CallbackBurst:     40,
		MoMo: MoMoConfig{
			PartnerCode:   "MOMO",
			PartnerName:   "Dream Coffee",
			StoreID:       "DreamCoffeeStore",
			RedirectURL:   "http://localhost:5173/momo/return",
			IPNURL:        "http://localhost:5003/api/payments/momo/callback",
			Endpoint:      "https://test-payment.momo.vn/v2/gateway/api/create",
			QueryEndpoint: "https://test-payment.momo.vn/v2/gateway/api/query",
			RequestType:   "payWithMethod",
			Lang:          "vi",
			AutoCapture:   true,
			Timeout:       30 * time.Second,
			MaxAmount:     50_000_000,
		},
		VNPay: VNPayConfig{
			PayURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
			ReturnURL: "http://localhost:5003/api/payments/vnpay/return",
			IPNURL:    "http://localhost:5003/api/payments/vnpay/ipn",
			Version:   "2.1.0",
			Command:   "pay",
			CurrCode:  "VND",
			Locale:    "vn",
			OrderType: "other",
			Expiry:    15 * time.Minute,
			MaxAmount: 500_000_000,
		},
	}
}

func EnvDefaults() Config {
	return fromEnv(Default())
}

// Validate rejects configurations that cannot talk to the providers. Only
// production insists on secrets; dev and sandbox may run without them.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Env != "prod" {
		return nil
	}
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "COFFEE_JWT_SECRET")
	}
	if c.MoMo.AccessKey == "" || c.MoMo.SecretKey == "" {
		missing = append(missing, "MOMO_ACCESS_KEY/MOMO_SECRET_KEY")
	}
	if c.VNPay.TmnCode == "" || c.VNPay.HashSecret == "" {
		missing = append(missing, "VNP_TMNCODE/VNP_HASHSECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func fromEnv(c Config) Config {
	str(&c.Env, "COFFEE_ENV")
	num(&c.Port, "COFFEE_PORT")
	flag(&c.LogJSON, "COFFEE_LOG_JSON")
	str(&c.JWTSecret, "COFFEE_JWT_SECRET")
	str(&c.DatabaseURL, "COFFEE_DATABASE_URL")
	str(&c.FrontendURL, "FRONTEND_URL")
	if v := os.Getenv("COFFEE_NODE_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.NodeID = n
		}
	}
	if v := os.Getenv("COFFEE_AMOUNT_TOLERANCE"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && !d.IsNegative() {
			c.AmountTolerance = d
		}
	}
	dur(&c.ReconcileInterval, "COFFEE_RECONCILE_INTERVAL")
	dur(&c.ReconcileAge, "COFFEE_RECONCILE_AGE")
	if v := os.Getenv("COFFEE_CALLBACK_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.CallbackRPS = f
		}
	}
	num(&c.CallbackBurst, "COFFEE_CALLBACK_BURST")

	str(&c.MoMo.PartnerCode, "MOMO_PARTNER_CODE")
	str(&c.MoMo.AccessKey, "MOMO_ACCESS_KEY")
	str(&c.MoMo.SecretKey, "MOMO_SECRET_KEY")
	str(&c.MoMo.RedirectURL, "MOMO_REDIRECT_URL")
	str(&c.MoMo.IPNURL, "MOMO_IPN_URL")
	str(&c.MoMo.Endpoint, "MOMO_ENDPOINT")
	str(&c.MoMo.QueryEndpoint, "MOMO_QUERY_ENDPOINT")
	dur(&c.MoMo.Timeout, "MOMO_TIMEOUT")

	str(&c.VNPay.TmnCode, "VNP_TMNCODE")
	str(&c.VNPay.HashSecret, "VNP_HASHSECRET")
	str(&c.VNPay.PayURL, "VNP_URL")
	str(&c.VNPay.ReturnURL, "VNP_RETURN_URL")
	if v := os.Getenv("VNP_IPN_URL"); v != "" {
		c.VNPay.IPNURL = v
	} else if v := os.Getenv("VNP_RETURN_URL"); v != "" {
		c.VNPay.IPNURL = strings.TrimRight(v, "/") + "/ipn"
	}
	if c.Env == "prod" {
		if os.Getenv("MOMO_ENDPOINT") == "" {
			c.MoMo.Endpoint = "https://payment.momo.vn/v2/gateway/api/create"
		}
		if os.Getenv("MOMO_QUERY_ENDPOINT") == "" {
			c.MoMo.QueryEndpoint = "https://payment.momo.vn/v2/gateway/api/query"
		}
		if os.Getenv("VNP_URL") == "" {
			c.VNPay.PayURL = "https://pay.vnpay.vn/vpcpay.html"
		}
	}
	return c
}

func str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func num(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func dur(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

func flag(dst *bool, key string) {
	switch os.Getenv(key) {
	case "1", "true", "TRUE":
		*dst = true
	case "0", "false", "FALSE":
		*dst = false
	}
}
