package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"coffee-backend/internal/domain"
	"coffee-backend/internal/infrastructure/momo"
	"coffee-backend/internal/infrastructure/vnpay"
	"coffee-backend/internal/usecase"
)

func (s *Server) handleCreateMoMo(c *gin.Context) {
	var in usecase.MoMoInput
	if err := c.ShouldBindJSON(&in); err != nil || in.OrderID == "" {
		s.writeError(c, domain.ValidationError("orderId required"))
		return
	}
	pay, err := s.Payments.CreateMoMo(c.Request.Context(), principal(c), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": pay})
}

func (s *Server) handleCreateVNPay(c *gin.Context) {
	var in usecase.VNPayInput
	if err := c.ShouldBindJSON(&in); err != nil || in.OrderID == "" {
		s.writeError(c, domain.ValidationError("orderId required"))
		return
	}
	in.ClientIP = c.ClientIP()
	pay, err := s.Payments.CreateVNPay(c.Request.Context(), principal(c), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": pay})
}

func (s *Server) handlePaymentStatus(c *gin.Context) {
	v, err := s.Payments.Status(c.Request.Context(), principal(c), c.Param("orderId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": v})
}

type cashReq struct {
	OrderID string `json:"orderId"`
}

func (s *Server) handleConfirmCash(c *gin.Context) {
	var req cashReq
	if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == "" {
		s.writeError(c, domain.ValidationError("orderId required"))
		return
	}
	o, err := s.Payments.ConfirmCash(c.Request.Context(), principal(c), req.OrderID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": o})
}

// handleMoMoIPN acknowledges every business outcome with 200 so MoMo stops
// retrying. Only unreadable or forged bodies and storage failures get a
// non-200 answer.
func (s *Server) handleMoMoIPN(c *gin.Context) {
	s.Metrics.CallbacksReceived.Add(1)
	if s.MoMo == nil {
		s.writeError(c, domain.ErrProviderDisabled)
		return
	}
	var cb momo.Callback
	if err := c.ShouldBindJSON(&cb); err != nil {
		s.Log.Warn("momo ipn malformed body", "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid payload"})
		return
	}
	out := s.MoMo.ParseCallback(cb)
	res, err := s.Settlement.Apply(c.Request.Context(), out)
	log := s.Log.With("provider", out.Provider, "orderId", out.OrderID, "resultCode", out.RawResultCode,
		"signatureValid", out.SignatureValid, "action", res.Action)
	switch {
	case errors.Is(err, domain.ErrSignatureInvalid):
		log.Warn("momo ipn rejected")
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid signature"})
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrAmountMismatch):
		log.Warn("momo ipn not applied", "err", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error()})
	case err != nil:
		log.Error("momo ipn failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal error"})
	default:
		log.Info("momo ipn handled")
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "IPN processed successfully"})
	}
}

// handleMoMoReturn only routes the browser; the IPN owns state changes.
func (s *Server) handleMoMoReturn(c *gin.Context) {
	if s.MoMo == nil {
		s.redirect(c, "/payment/error", url.Values{"message": {"Payment provider unavailable"}})
		return
	}
	cb := momo.CallbackFromQuery(c.Request.URL.Query())
	if !s.MoMo.VerifyCallback(cb) {
		s.Metrics.SignatureFailures.Add(1)
		s.Log.Warn("momo return signature invalid", "orderId", cb.OrderID)
		s.redirect(c, "/payment/error", url.Values{"message": {"Invalid signature"}})
		return
	}
	if cb.ResultCode.String() == momo.ResultSuccess {
		s.redirect(c, "/payment/success", url.Values{"orderId": {cb.OrderID}, "transId": {cb.TransID.String()}})
		return
	}
	s.redirect(c, "/payment/error", url.Values{"orderId": {cb.OrderID}, "message": {cb.Message}})
}

func (s *Server) handleVNPayReturn(c *gin.Context) {
	s.Metrics.CallbacksReceived.Add(1)
	if s.VNPay == nil {
		s.redirect(c, "/checkout/result", url.Values{"status": {"error"}, "message": {"Payment provider unavailable"}})
		return
	}
	out := s.VNPay.ParseCallback(c.Request.URL.Query())
	res, err := s.Settlement.Apply(c.Request.Context(), out)
	s.Log.Info("vnpay return handled", "orderId", out.OrderID, "resultCode", out.RawResultCode,
		"signatureValid", out.SignatureValid, "action", res.Action, "err", err)

	q := url.Values{"orderId": {out.OrderID}}
	switch {
	case errors.Is(err, domain.ErrSignatureInvalid):
		q = url.Values{"status": {"error"}, "message": {"Invalid signature"}}
	case errors.Is(err, domain.ErrOrderNotFound):
		q = url.Values{"status": {"error"}, "message": {"Order not found"}}
	case errors.Is(err, domain.ErrAmountMismatch):
		q.Set("status", "error")
		q.Set("message", "Invalid amount")
	case err != nil:
		q.Set("status", "error")
		q.Set("message", "Payment processing error")
	case res.Order != nil && res.Order.PaymentStatus == domain.PaymentPaid:
		q.Set("status", string(domain.PaymentPaid))
		q.Set("message", vnpay.MapResultCode(out.RawResultCode))
	default:
		q.Set("status", string(domain.PaymentFailed))
		q.Set("message", vnpay.MapResultCode(out.RawResultCode))
	}
	s.redirect(c, "/checkout/result", q)
}

// handleVNPayIPN always answers HTTP 200; VNPay reads only the RspCode.
func (s *Server) handleVNPayIPN(c *gin.Context) {
	s.Metrics.CallbacksReceived.Add(1)
	if s.VNPay == nil {
		c.JSON(http.StatusOK, vnpay.IPNResponse{RspCode: vnpay.RspInternalError, Message: "Provider not configured"})
		return
	}
	q := c.Request.URL.Query()
	if c.Request.Method == http.MethodPost && len(q) == 0 {
		if err := c.Request.ParseForm(); err == nil {
			q = c.Request.PostForm
		}
	}
	out := s.VNPay.ParseCallback(q)
	res, err := s.Settlement.Apply(c.Request.Context(), out)
	rsp := vnpay.IPNResponse{RspCode: vnpay.RspAccepted, Message: "Confirm Success"}
	switch {
	case errors.Is(err, domain.ErrSignatureInvalid):
		rsp = vnpay.IPNResponse{RspCode: vnpay.RspBadSignature, Message: "Invalid signature"}
	case errors.Is(err, domain.ErrOrderNotFound):
		rsp = vnpay.IPNResponse{RspCode: vnpay.RspOrderNotFound, Message: "Order not found"}
	case errors.Is(err, domain.ErrAmountMismatch):
		rsp = vnpay.IPNResponse{RspCode: vnpay.RspAmountMismatch, Message: "Invalid amount"}
	case err != nil:
		rsp = vnpay.IPNResponse{RspCode: vnpay.RspInternalError, Message: "Unknown error"}
	}
	log := s.Log.With("provider", out.Provider, "orderId", out.OrderID, "resultCode", out.RawResultCode,
		"signatureValid", out.SignatureValid, "action", res.Action, "rspCode", rsp.RspCode)
	if err != nil {
		log.Warn("vnpay ipn not applied", "err", err)
	} else {
		log.Info("vnpay ipn handled")
	}
	c.JSON(http.StatusOK, rsp)
}

func (s *Server) redirect(c *gin.Context, path string, q url.Values) {
	c.Redirect(http.StatusFound, s.Config.FrontendURL+path+"?"+q.Encode())
}
