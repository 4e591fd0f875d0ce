package handlers

import (
	"net/http"

	"cafe_pos_backend/internal/middleware"
	"cafe_pos_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// CustomerHandler exposes customer lookup and manual loyalty adjustments.
type CustomerHandler struct {
	loyaltyService services.LoyaltyService
}

func NewCustomerHandler(ls services.LoyaltyService) *CustomerHandler {
	return &CustomerHandler{loyaltyService: ls}
}

type adjustPointsRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

// GetCustomerByID returns the customer with loyalty balance and tier.
func (h *CustomerHandler) GetCustomerByID(c *gin.Context) {
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	customer, err := h.loyaltyService.GetCustomer(c.Request.Context(), customerID)
	if err != nil {
		respondServiceError(c, err, "fetch customer")
		return
	}
	c.JSON(http.StatusOK, customer)
}

// AdjustLoyaltyPoints applies a signed manual correction to the balance.
func (h *CustomerHandler) AdjustLoyaltyPoints(c *gin.Context) {
	customerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req adjustPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	customer, err := h.loyaltyService.AdjustPoints(c.Request.Context(), customerID, req.Delta, req.Reason, middleware.ActorFromContext(c))
	if err != nil {
		respondServiceError(c, err, "adjust loyalty points")
		return
	}
	c.JSON(http.StatusOK, customer)
}
