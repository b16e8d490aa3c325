package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"coffee-backend/internal/domain"
	"coffee-backend/internal/usecase"
)

func (s *Server) handleCreateOrder(c *gin.Context) {
	var in usecase.CreateOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		s.writeError(c, domain.ValidationError("invalid json"))
		return
	}
	o, err := s.Orders.Create(c.Request.Context(), principal(c), in)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": o, "message": "Order created successfully"})
}

func (s *Server) handleListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	orders, total, err := s.Orders.List(c.Request.Context(), principal(c), page, size)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders, "total": total, "page": page})
}

func (s *Server) handleGetOrder(c *gin.Context) {
	o, err := s.Orders.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": o})
}

type statusReq struct {
	Status domain.OrderStatus `json:"status"`
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, domain.ValidationError("invalid json"))
		return
	}
	o, err := s.Orders.UpdateStatus(c.Request.Context(), principal(c), c.Param("id"), req.Status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": o, "message": "Order status updated successfully"})
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	o, err := s.Orders.Cancel(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": o, "message": "Order cancelled successfully"})
}

type refundReq struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRefund(c *gin.Context) {
	var req refundReq
	_ = c.ShouldBindJSON(&req)
	o, err := s.Orders.MarkRefunded(c.Request.Context(), principal(c), c.Param("id"), req.Reason)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": o})
}
