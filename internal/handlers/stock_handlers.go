package handlers

import (
	"net/http"

	"cafe_pos_backend/internal/models"
	"cafe_pos_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// StockHandler exposes the stock alert inbox.
type StockHandler struct {
	inventoryService services.InventoryService
}

func NewStockHandler(is services.InventoryService) *StockHandler {
	return &StockHandler{inventoryService: is}
}

// GetUnreadAlerts lists unread low and out of stock alerts, newest first.
func (h *StockHandler) GetUnreadAlerts(c *gin.Context) {
	alerts, err := h.inventoryService.GetUnreadAlerts(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "fetch stock alerts")
		return
	}
	if alerts == nil {
		alerts = []models.StockAlert{}
	}
	c.JSON(http.StatusOK, gin.H{"data": alerts})
}

// MarkAlertRead acknowledges an alert so the next drop below minimum raises a new one.
func (h *StockHandler) MarkAlertRead(c *gin.Context) {
	alertID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.inventoryService.MarkAlertRead(c.Request.Context(), alertID); err != nil {
		respondServiceError(c, err, "mark stock alert read")
		return
	}
	c.Status(http.StatusNoContent)
}
