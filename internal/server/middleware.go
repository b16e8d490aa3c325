package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"coffee-backend/internal/domain"
	"coffee-backend/internal/infrastructure/vnpay"
)

const (
	requestIDKey = "requestId"
	principalKey = "principal"
)

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || token == "" {
			s.writeError(c, domain.ErrUnauthorized)
			return
		}
		p, err := s.Auth.Verify(token)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !principal(c).IsAdmin() {
			s.writeError(c, domain.ErrForbidden)
			return
		}
		c.Next()
	}
}

func principal(c *gin.Context) domain.Principal {
	p, _ := c.Get(principalKey)
	v, _ := p.(domain.Principal)
	return v
}

type ipLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

// ipLimiters hands out one token bucket per client IP and forgets IPs that
// have been idle for a while.
type ipLimiters struct {
	mu    sync.Mutex
	m     map[string]*ipLimiter
	rps   rate.Limit
	burst int
	swept time.Time
}

func newIPLimiters(rps float64, burst int) *ipLimiters {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(rps) + 1
	}
	return &ipLimiters{m: make(map[string]*ipLimiter), rps: rate.Limit(rps), burst: burst, swept: time.Now()}
}

func (l *ipLimiters) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if now.Sub(l.swept) > 5*time.Minute {
		for k, v := range l.m {
			if now.Sub(v.last) > 30*time.Minute {
				delete(l.m, k)
			}
		}
		l.swept = now
	}
	il, ok := l.m[ip]
	if !ok {
		il = &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.m[ip] = il
	}
	il.last = now
	return il.limiter.Allow()
}

// rateLimit throttles per client IP. reject writes the refusal; nil means
// the generic 429 error envelope.
func (s *Server) rateLimit(reject gin.HandlerFunc) gin.HandlerFunc {
	if reject == nil {
		reject = func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": gin.H{
				"code":      "TooManyRequests",
				"message":   "rate limit exceeded",
				"requestId": c.GetString(requestIDKey),
			}})
		}
	}
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.allow(c.ClientIP()) {
			s.Log.Warn("callback rate limited", "ip", c.ClientIP(), "path", c.FullPath())
			reject(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

// vnpayThrottled keeps the IPN envelope contract: VNPay only understands
// HTTP 200 with an RspCode, and 99 makes it retry later.
func vnpayThrottled(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusOK, vnpay.IPNResponse{RspCode: vnpay.RspInternalError, Message: "Too many requests"})
}
