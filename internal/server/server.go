package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"coffee-backend/internal/config"
	"coffee-backend/internal/domain"
	"coffee-backend/internal/infrastructure/momo"
	"coffee-backend/internal/infrastructure/vnpay"
	"coffee-backend/internal/metrics"
	"coffee-backend/internal/usecase"
)

type Menu interface {
	Products(ctx context.Context) ([]domain.Product, error)
}

// Deps are the collaborators the HTTP layer dispatches to. MoMo and VNPay
// are nil when the provider is not configured.
type Deps struct {
	Config     config.Config
	Log        *slog.Logger
	Metrics    *metrics.Counters
	Auth       *usecase.AuthService
	Orders     *usecase.OrderService
	Payments   *usecase.PaymentService
	Settlement *usecase.Settlement
	Menu       Menu
	MoMo       *momo.Client
	VNPay      *vnpay.Client
}

type Server struct {
	Deps
	router  *gin.Engine
	limiter *ipLimiters
}

func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = &metrics.Counters{}
	}
	if d.Config.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		Deps:    d,
		router:  gin.New(),
		limiter: newIPLimiters(d.Config.CallbackRPS, d.Config.CallbackBurst),
	}
	s.router.Use(gin.Recovery(), s.requestID(), s.accessLog(), s.cors())
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api")
	api.GET("/products", s.handleMenu)

	orders := api.Group("/orders", s.authenticate())
	{
		orders.POST("", s.handleCreateOrder)
		orders.GET("", s.handleListOrders)
		orders.GET("/:id", s.handleGetOrder)
		orders.PUT("/:id/status", s.handleUpdateStatus)
		orders.DELETE("/:id", s.handleCancelOrder)
		orders.POST("/:id/refund", s.requireAdmin(), s.handleRefund)
	}

	pay := api.Group("/payments")
	authed := pay.Group("", s.authenticate())
	{
		authed.POST("/momo/create", s.handleCreateMoMo)
		authed.GET("/momo/status/:orderId", s.handlePaymentStatus)
		authed.POST("/vnpay/create", s.handleCreateVNPay)
		authed.GET("/vnpay/status/:orderId", s.handlePaymentStatus)
		authed.POST("/cash/confirm", s.handleConfirmCash)
	}
	callbacks := pay.Group("", s.rateLimit(nil))
	{
		callbacks.POST("/momo/callback", s.handleMoMoIPN)
		callbacks.GET("/momo/return", s.handleMoMoReturn)
		callbacks.GET("/vnpay/return", s.handleVNPayReturn)
	}
	vnpIPN := pay.Group("/vnpay/ipn", s.rateLimit(vnpayThrottled))
	{
		vnpIPN.GET("", s.handleVNPayIPN)
		vnpIPN.POST("", s.handleVNPayIPN)
	}

	admin := api.Group("/admin", s.authenticate(), s.requireAdmin())
	{
		admin.GET("/metrics", func(c *gin.Context) {
			c.JSON(http.StatusOK, s.Metrics.Snapshot())
		})
		admin.GET("/providers", s.handleProviders)
	}
}

type providerInfo struct {
	Enabled   bool   `json:"enabled"`
	ReturnURL string `json:"returnUrl,omitempty"`
	IPNURL    string `json:"ipnUrl,omitempty"`
}

// handleProviders shows which gateways are configured and the callback URLs
// to register with them.
func (s *Server) handleProviders(c *gin.Context) {
	var mi, vi providerInfo
	if s.MoMo != nil {
		mi.Enabled = true
		mi.ReturnURL, mi.IPNURL = s.MoMo.CallbackURLs()
	}
	if s.VNPay != nil {
		vi.Enabled = true
		vi.ReturnURL, vi.IPNURL = s.VNPay.CallbackURLs()
	}
	c.JSON(http.StatusOK, gin.H{"momo": mi, "vnpay": vi})
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"requestId", c.GetString(requestIDKey))
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses and the
// {"error":{...}} envelope.
func (s *Server) writeError(c *gin.Context, err error) {
	status, code, msg := http.StatusInternalServerError, "ServerError", "internal server error"
	retryable := false
	var (
		ve domain.ValidationError
		ce domain.ConflictError
		nf domain.NotFoundError
		ne *domain.NetworkError
		pe *domain.ProviderError
	)
	switch {
	case errors.As(err, &ve):
		status, code, msg = http.StatusBadRequest, "BadRequest", ve.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		status, code, msg = http.StatusUnauthorized, "Unauthorized", "authentication required"
	case errors.Is(err, domain.ErrForbidden):
		status, code, msg = http.StatusForbidden, "Forbidden", "not authorized to access this order"
	case errors.Is(err, domain.ErrOrderNotFound):
		status, code, msg = http.StatusNotFound, "NotFound", err.Error()
	case errors.As(err, &nf):
		status, code, msg = http.StatusNotFound, "NotFound", nf.Error()
	case errors.As(err, &ce):
		status, code, msg = http.StatusConflict, "Conflict", ce.Error()
	case errors.Is(err, domain.ErrProviderDisabled):
		status, code, msg = http.StatusServiceUnavailable, "ProviderDisabled", err.Error()
	case errors.As(err, &ne):
		status, code, msg, retryable = http.StatusServiceUnavailable, "ProviderUnavailable", "payment provider unreachable, please retry", true
		if ne.Timeout {
			status, code, msg = http.StatusGatewayTimeout, "ProviderTimeout", "payment provider timed out, please retry"
		}
	case errors.As(err, &pe):
		status, code, msg = http.StatusBadGateway, "ProviderError", pe.Message
	case errors.Is(err, domain.ErrConcurrentUpdate):
		code, msg, retryable = "ConcurrentUpdate", err.Error(), true
	}
	if status >= http.StatusInternalServerError {
		s.Log.Error("request failed", "path", c.FullPath(), "status", status, "err", err, "requestId", c.GetString(requestIDKey))
	}
	body := gin.H{
		"code":      code,
		"message":   msg,
		"requestId": c.GetString(requestIDKey),
	}
	if retryable {
		body["retryable"] = true
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func (s *Server) handleMenu(c *gin.Context) {
	products, err := s.Menu.Products(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products})
}
