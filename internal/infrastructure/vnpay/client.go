package vnpay

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coffee-backend/internal/config"
	"coffee-backend/internal/domain"
	"coffee-backend/internal/signature"
)

const (
	HashField     = "vnp_SecureHash"
	HashTypeField = "vnp_SecureHashType"
	ResultSuccess = "00"
	timeLayout    = "20060102150405"
)

// VNPay interprets every timestamp as Indochina Time, whatever the server's zone.
var gatewayZone = time.FixedZone("UTC+7", 7*60*60)

type Client struct {
	cfg config.VNPayConfig
	Now func() time.Time
}

func NewClient(cfg config.VNPayConfig) (*Client, error) {
	if strings.TrimSpace(cfg.TmnCode) == "" || strings.TrimSpace(cfg.HashSecret) == "" || strings.TrimSpace(cfg.PayURL) == "" {
		return nil, fmt.Errorf("vnpay config incomplete")
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 15 * time.Minute
	}
	return &Client{cfg: cfg, Now: time.Now}, nil
}

// CallbackURLs returns the return URL signed into every payment and the IPN
// URL, which VNPay only learns from the merchant portal.
func (c *Client) CallbackURLs() (returnURL, ipnURL string) {
	return c.cfg.ReturnURL, c.cfg.IPNURL
}

func FormatTime(t time.Time) string {
	return t.In(gatewayZone).Format(timeLayout)
}

// BuildPaymentURL validates the request, then signs the alphabetically
// canonicalized parameters with HMAC-SHA512. The hash is appended last.
func (c *Client) BuildPaymentURL(req domain.PaymentRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if c.cfg.MaxAmount > 0 && req.AmountMinorUnits > c.cfg.MaxAmount {
		return "", domain.ValidationError("amount exceeds vnpay limit")
	}
	if strings.TrimSpace(req.ClientIP) == "" {
		return "", domain.ValidationError("client ip required")
	}
	info := domain.SanitizeASCII(req.Description, domain.MaxDescriptionLen)
	if info == "" {
		return "", domain.ValidationError("orderInfo must contain letters or digits")
	}
	now := c.Now()
	params := map[string]string{
		"vnp_Version":    c.cfg.Version,
		"vnp_Command":    c.cfg.Command,
		"vnp_TmnCode":    c.cfg.TmnCode,
		"vnp_Locale":     c.cfg.Locale,
		"vnp_CurrCode":   c.cfg.CurrCode,
		"vnp_TxnRef":     req.OrderID,
		"vnp_OrderInfo":  info,
		"vnp_OrderType":  c.cfg.OrderType,
		"vnp_Amount":     strconv.FormatInt(req.AmountMinorUnits*100, 10),
		"vnp_ReturnUrl":  c.cfg.ReturnURL,
		"vnp_IpAddr":     req.ClientIP,
		"vnp_CreateDate": FormatTime(now),
		"vnp_ExpireDate": FormatTime(now.Add(c.cfg.Expiry)),
	}
	if req.BankCode != "" {
		params["vnp_BankCode"] = req.BankCode
	}
	query := signature.Canonicalize(params, signature.SpacePlus)
	hash := signature.Sign(query, c.cfg.HashSecret, signature.SHA512)
	return c.cfg.PayURL + "?" + query + "&" + HashField + "=" + hash, nil
}

// VerifyCallback checks the hash of a return or IPN query. Only the first
// value of each key is signed.
func (c *Client) VerifyCallback(q url.Values) bool {
	params := make(map[string]string, len(q))
	for k := range q {
		params[k] = q.Get(k)
	}
	return signature.Verify(params, q.Get(HashField), c.cfg.HashSecret, signature.SHA512, signature.SpacePlus,
		HashField, HashTypeField)
}

// ParseCallback verifies and normalizes a return or IPN query. Success is
// strictly response code "00" with a valid hash.
func (c *Client) ParseCallback(q url.Values) domain.PaymentOutcome {
	valid := c.VerifyCallback(q)
	code := q.Get("vnp_ResponseCode")
	o := domain.PaymentOutcome{
		Provider:              domain.ProviderVNPay,
		OrderID:               q.Get("vnp_TxnRef"),
		SignatureValid:        valid,
		Success:               valid && code == ResultSuccess,
		ProviderTransactionID: q.Get("vnp_TransactionNo"),
		RawResultCode:         code,
		NormalizedMessage:     MapResultCode(code),
		PayType:               q.Get("vnp_CardType"),
		ResponseTime:          q.Get("vnp_PayDate"),
	}
	if !valid {
		o.NormalizedMessage = domain.ErrSignatureInvalid.Error()
	}
	if n, err := strconv.ParseInt(q.Get("vnp_Amount"), 10, 64); err == nil {
		o.AmountMinorUnits, o.HasAmount = n/100, true
	}
	return o
}

var resultMessages = map[string]string{
	"00": "Giao dịch thành công",
	"07": "Trừ tiền thành công. Giao dịch bị nghi ngờ (liên quan tới lừa đảo, giao dịch bất thường).",
	"09": "Giao dịch không thành công do: Thẻ/Tài khoản của khách hàng chưa đăng ký dịch vụ InternetBanking tại ngân hàng.",
	"10": "Giao dịch không thành công do: Khách hàng xác thực thông tin thẻ/tài khoản không đúng quá 3 lần",
	"11": "Giao dịch không thành công do: Đã hết hạn chờ thanh toán. Xin quý khách vui lòng thực hiện lại giao dịch.",
	"12": "Giao dịch không thành công do: Thẻ/Tài khoản của khách hàng bị khóa.",
	"13": "Giao dịch không thành công do Quý khách nhập sai mật khẩu xác thực giao dịch (OTP). Xin quý khách vui lòng thực hiện lại giao dịch.",
	"24": "Giao dịch không thành công do: Khách hàng hủy giao dịch",
	"51": "Giao dịch không thành công do: Tài khoản của quý khách không đủ số dư để thực hiện giao dịch.",
	"65": "Giao dịch không thành công do: Tài khoản của Quý khách đã vượt quá hạn mức giao dịch trong ngày.",
	"75": "Ngân hàng thanh toán đang bảo trì.",
	"79": "Giao dịch không thành công do: KH nhập sai mật khẩu thanh toán quá số lần quy định. Xin quý khách vui lòng thực hiện lại giao dịch",
	"99": "Các lỗi khác (lỗi còn lại, không có trong danh sách mã lỗi đã liệt kê)",
}

const unknownResult = "Lỗi không xác định"

// MapResultCode is display only; it never decides success.
func MapResultCode(code string) string {
	if m, ok := resultMessages[code]; ok {
		return m
	}
	return unknownResult
}

// IPN acknowledgement codes. The vocabulary is fixed by VNPay.
const (
	RspAccepted       = "00"
	RspOrderNotFound  = "01"
	RspAmountMismatch = "04"
	RspBadSignature   = "97"
	RspInternalError  = "99"
)

type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}
