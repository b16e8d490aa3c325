package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coffee-backend/internal/config"
	"coffee-backend/internal/domain"
	"coffee-backend/internal/signature"
)

// MoMo does not sort fields: the raw signature string must list them in the
// order its documentation gives, which differs per message type.
var (
	createFields = []string{
		"accessKey", "amount", "extraData", "ipnUrl", "orderId",
		"orderInfo", "partnerCode", "redirectUrl", "requestId", "requestType",
	}
	callbackFields = []string{
		"accessKey", "amount", "extraData", "message", "orderId", "orderInfo",
		"orderType", "partnerCode", "payType", "requestId", "responseTime",
		"resultCode", "transId",
	}
	queryFields = []string{"accessKey", "orderId", "partnerCode", "requestId"}
)

const (
	ResultSuccess = "0"
	maxBodyBytes  = 1 << 20
)

type Client struct {
	cfg  config.MoMoConfig
	HTTP *http.Client
	Now  func() time.Time
}

func NewClient(cfg config.MoMoConfig) (*Client, error) {
	if strings.TrimSpace(cfg.PartnerCode) == "" || strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "" || strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("momo config incomplete")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		HTTP: &http.Client{Timeout: timeout},
		Now:  time.Now,
	}, nil
}

func (c *Client) CallbackURLs() (redirectURL, ipnURL string) {
	return c.cfg.RedirectURL, c.cfg.IPNURL
}

type CreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	PartnerName string `json:"partnerName,omitempty"`
	StoreID     string `json:"storeId,omitempty"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	Lang        string `json:"lang"`
	RequestType string `json:"requestType"`
	AutoCapture bool   `json:"autoCapture"`
	ExtraData   string `json:"extraData"`
	Signature   string `json:"signature"`
}

type SignedRequest struct {
	RequestID    string
	RawSignature string
	Body         CreateRequest
}

type CreateResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       Value  `json:"amount"`
	ResponseTime Value  `json:"responseTime"`
	Message      string `json:"message"`
	ResultCode   Value  `json:"resultCode"`
	PayURL       string `json:"payUrl"`
	Deeplink     string `json:"deeplink"`
	QRCodeURL    string `json:"qrCodeUrl"`
}

// BuildRequest validates and signs a payment creation request. It performs
// no I/O.
func (c *Client) BuildRequest(orderID string, amount int64, description, extraData string) (*SignedRequest, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, domain.ValidationError("orderId required")
	}
	if amount <= 0 {
		return nil, domain.ValidationError("amount must be positive")
	}
	if c.cfg.MaxAmount > 0 && amount > c.cfg.MaxAmount {
		return nil, domain.ValidationError("amount exceeds momo limit")
	}
	info := domain.SanitizeText(description, domain.MaxDescriptionLen)
	if info == "" {
		return nil, domain.ValidationError("orderInfo required")
	}
	requestID := c.cfg.PartnerCode + strconv.FormatInt(c.Now().UnixMilli(), 10)
	body := CreateRequest{
		PartnerCode: c.cfg.PartnerCode,
		PartnerName: c.cfg.PartnerName,
		StoreID:     c.cfg.StoreID,
		RequestID:   requestID,
		Amount:      amount,
		OrderID:     orderID,
		OrderInfo:   info,
		RedirectURL: c.cfg.RedirectURL,
		IPNURL:      c.cfg.IPNURL,
		Lang:        c.cfg.Lang,
		RequestType: c.cfg.RequestType,
		AutoCapture: c.cfg.AutoCapture,
		ExtraData:   extraData,
	}
	raw := signature.JoinFixed(createFields, map[string]string{
		"accessKey":   c.cfg.AccessKey,
		"amount":      strconv.FormatInt(amount, 10),
		"extraData":   extraData,
		"ipnUrl":      body.IPNURL,
		"orderId":     orderID,
		"orderInfo":   info,
		"partnerCode": body.PartnerCode,
		"redirectUrl": body.RedirectURL,
		"requestId":   requestID,
		"requestType": body.RequestType,
	})
	body.Signature = signature.Sign(raw, c.cfg.SecretKey, signature.SHA256)
	return &SignedRequest{RequestID: requestID, RawSignature: raw, Body: body}, nil
}

// CreatePayment signs and posts a payment creation request. Transport
// failures come back as *domain.NetworkError, a rejected request as
// *domain.ProviderError.
func (c *Client) CreatePayment(ctx context.Context, orderID string, amount int64, description, extraData string) (*SignedRequest, *CreateResponse, error) {
	req, err := c.BuildRequest(orderID, amount, description, extraData)
	if err != nil {
		return nil, nil, err
	}
	var out CreateResponse
	if err := c.post(ctx, "momo create", c.cfg.Endpoint, req.Body, &out); err != nil {
		return req, nil, err
	}
	if out.ResultCode.String() != ResultSuccess {
		return req, &out, &domain.ProviderError{Provider: domain.ProviderMoMo, Code: out.ResultCode.String(), Message: out.Message}
	}
	return req, &out, nil
}

type queryRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	OrderID     string `json:"orderId"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type QueryResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	ExtraData    string `json:"extraData"`
	Amount       Value  `json:"amount"`
	TransID      Value  `json:"transId"`
	PayType      string `json:"payType"`
	ResultCode   Value  `json:"resultCode"`
	Message      string `json:"message"`
	ResponseTime Value  `json:"responseTime"`
}

// QueryStatus asks MoMo for the current state of a payment. The answer comes
// over our own authenticated request, so the outcome is marked as verified.
func (c *Client) QueryStatus(ctx context.Context, orderID, requestID string) (domain.PaymentOutcome, error) {
	endpoint := c.cfg.QueryEndpoint
	if endpoint == "" {
		return domain.PaymentOutcome{}, fmt.Errorf("momo query endpoint not configured")
	}
	raw := signature.JoinFixed(queryFields, map[string]string{
		"accessKey":   c.cfg.AccessKey,
		"orderId":     orderID,
		"partnerCode": c.cfg.PartnerCode,
		"requestId":   requestID,
	})
	body := queryRequest{
		PartnerCode: c.cfg.PartnerCode,
		RequestID:   requestID,
		OrderID:     orderID,
		Lang:        c.cfg.Lang,
		Signature:   signature.Sign(raw, c.cfg.SecretKey, signature.SHA256),
	}
	var out QueryResponse
	if err := c.post(ctx, "momo query", endpoint, body, &out); err != nil {
		return domain.PaymentOutcome{}, err
	}
	code := out.ResultCode.String()
	o := domain.PaymentOutcome{
		Provider:              domain.ProviderMoMo,
		OrderID:               orderID,
		Success:               code == ResultSuccess,
		SignatureValid:        true,
		ProviderTransactionID: out.TransID.String(),
		RequestID:             requestID,
		RawResultCode:         code,
		NormalizedMessage:     out.Message,
		PayType:               out.PayType,
		ResponseTime:          out.ResponseTime.String(),
	}
	if n, err := strconv.ParseInt(out.Amount.String(), 10, 64); err == nil {
		o.AmountMinorUnits, o.HasAmount = n, true
	}
	return o, nil
}

// IsPending reports result codes that say the payment is still in flight.
func IsPending(code string) bool {
	switch code {
	case "1000", "7000", "7002":
		return true
	}
	return false
}

func (c *Client) post(ctx context.Context, op, endpoint string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: op, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &domain.NetworkError{Op: op, Timeout: isTimeout(err), Err: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		if resp.StatusCode >= 500 {
			return &domain.NetworkError{Op: op, Err: fmt.Errorf("http %d", resp.StatusCode)}
		}
		return &domain.ProviderError{Provider: domain.ProviderMoMo, Code: strconv.Itoa(resp.StatusCode), Message: strings.TrimSpace(string(data))}
	}
	if resp.StatusCode >= 500 {
		return &domain.NetworkError{Op: op, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Callback is the IPN body, also delivered as query parameters on the
// browser return. Numeric fields arrive as JSON numbers or strings.
type Callback struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       Value  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      Value  `json:"transId"`
	ResultCode   Value  `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime Value  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

func CallbackFromQuery(q url.Values) Callback {
	return Callback{
		PartnerCode:  q.Get("partnerCode"),
		OrderID:      q.Get("orderId"),
		RequestID:    q.Get("requestId"),
		Amount:       Value(q.Get("amount")),
		OrderInfo:    q.Get("orderInfo"),
		OrderType:    q.Get("orderType"),
		TransID:      Value(q.Get("transId")),
		ResultCode:   Value(q.Get("resultCode")),
		Message:      q.Get("message"),
		PayType:      q.Get("payType"),
		ResponseTime: Value(q.Get("responseTime")),
		ExtraData:    q.Get("extraData"),
		Signature:    q.Get("signature"),
	}
}

func (c *Client) RawCallbackSignature(cb Callback) string {
	return signature.JoinFixed(callbackFields, map[string]string{
		"accessKey":    c.cfg.AccessKey,
		"amount":       cb.Amount.String(),
		"extraData":    cb.ExtraData,
		"message":      cb.Message,
		"orderId":      cb.OrderID,
		"orderInfo":    cb.OrderInfo,
		"orderType":    cb.OrderType,
		"partnerCode":  cb.PartnerCode,
		"payType":      cb.PayType,
		"requestId":    cb.RequestID,
		"responseTime": cb.ResponseTime.String(),
		"resultCode":   cb.ResultCode.String(),
		"transId":      cb.TransID.String(),
	})
}

// SignCallback fills in the signature MoMo would send. Used by tests and the
// sandbox tooling.
func (c *Client) SignCallback(cb *Callback) {
	cb.Signature = signature.Sign(c.RawCallbackSignature(*cb), c.cfg.SecretKey, signature.SHA256)
}

func (c *Client) VerifyCallback(cb Callback) bool {
	if cb.Signature == "" {
		return false
	}
	expected := signature.Sign(c.RawCallbackSignature(cb), c.cfg.SecretKey, signature.SHA256)
	return signature.Equal(expected, cb.Signature)
}

// ParseCallback verifies and normalizes a callback. It fails closed: an
// outcome with an invalid signature is never successful.
func (c *Client) ParseCallback(cb Callback) domain.PaymentOutcome {
	valid := c.VerifyCallback(cb)
	code := cb.ResultCode.String()
	o := domain.PaymentOutcome{
		Provider:              domain.ProviderMoMo,
		OrderID:               cb.OrderID,
		SignatureValid:        valid,
		Success:               valid && code == ResultSuccess,
		ProviderTransactionID: cb.TransID.String(),
		RequestID:             cb.RequestID,
		RawResultCode:         code,
		NormalizedMessage:     cb.Message,
		PayType:               cb.PayType,
		ResponseTime:          cb.ResponseTime.String(),
	}
	if !valid {
		o.NormalizedMessage = domain.ErrSignatureInvalid.Error()
	}
	if n, err := strconv.ParseInt(cb.Amount.String(), 10, 64); err == nil {
		o.AmountMinorUnits, o.HasAmount = n, true
	}
	return o
}
