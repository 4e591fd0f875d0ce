package handlers

import (
	"net/http"
	"strings"
	"time"

	"cafe_pos_backend/internal/middleware"
	"cafe_pos_backend/internal/models"
	"cafe_pos_backend/internal/services"
	"cafe_pos_backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
)

// OrderHandler holds the order lifecycle services.
type OrderHandler struct {
	orderService services.OrderService
	draftService services.DraftService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(os services.OrderService, ds services.DraftService) *OrderHandler {
	return &OrderHandler{orderService: os, draftService: ds}
}

type changeStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

type holdRequest struct {
	HoldName string `json:"hold_name"`
}

type reasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type splitRequest struct {
	Splits [][]int64 `json:"splits" binding:"required"`
}

type mergeRequest struct {
	OrderIDs   []int64 `json:"order_ids" binding:"required"`
	MergedName string  `json:"merged_name"`
}

type discardResponse struct {
	Deleted int64 `json:"deleted"`
}

// staffCreatorName defaults the creator to the authenticated staff member.
func staffCreatorName(c *gin.Context, requested string) string {
	if name := strings.TrimSpace(requested); name != "" {
		return name
	}
	return middleware.ActorFromContext(c).Username
}

// UpsertStaffDraft syncs the cart of the staff member's till.
func (h *OrderHandler) UpsertStaffDraft(c *gin.Context) {
	var req services.DraftInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.CreatorKind = models.CreatorStaff
	req.CreatorName = staffCreatorName(c, req.CreatorName)
	h.upsertDraft(c, req)
}

// UpsertCustomerDraft syncs the cart of a self-ordering customer.
func (h *OrderHandler) UpsertCustomerDraft(c *gin.Context) {
	var req services.DraftInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.CreatorKind = models.CreatorCustomer
	items, err := h.orderService.PriceFromMenu(c.Request.Context(), req.Items)
	if err != nil {
		respondServiceError(c, err, "price draft order")
		return
	}
	req.Items = items
	h.upsertDraft(c, req)
}

func (h *OrderHandler) upsertDraft(c *gin.Context, req services.DraftInput) {
	draft, err := h.draftService.UpsertDraft(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "save draft order")
		return
	}
	c.JSON(http.StatusOK, draft)
}

// DiscardStaffDraft deletes the staff member's draft, e.g. when the cart is abandoned.
func (h *OrderHandler) DiscardStaffDraft(c *gin.Context) {
	creatorName := staffCreatorName(c, c.Query("creator_name"))
	deleted, err := h.draftService.DiscardDrafts(c.Request.Context(), models.CreatorStaff, creatorName)
	if err != nil {
		respondServiceError(c, err, "discard draft orders")
		return
	}
	c.JSON(http.StatusOK, discardResponse{Deleted: deleted})
}

// CreateStaffOrder checks out a staff cart. The order is confirmed and stock deducted at once.
func (h *OrderHandler) CreateStaffOrder(c *gin.Context) {
	var req services.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "CreateStaffOrder: Failed to bind JSON")
		respondBindError(c, err)
		return
	}
	req.CreatorKind = models.CreatorStaff
	req.CreatorName = staffCreatorName(c, req.CreatorName)
	h.createOrder(c, req)
}

// CreateCustomerOrder checks out a customer cart. The order waits for staff verification.
func (h *OrderHandler) CreateCustomerOrder(c *gin.Context) {
	var req services.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "CreateCustomerOrder: Failed to bind JSON")
		respondBindError(c, err)
		return
	}
	req.CreatorKind = models.CreatorCustomer
	items, err := h.orderService.PriceFromMenu(c.Request.Context(), req.Items)
	if err != nil {
		respondServiceError(c, err, "price order")
		return
	}
	req.Items = items
	h.createOrder(c, req)
}

func (h *OrderHandler) createOrder(c *gin.Context, req services.CreateOrderInput) {
	order, err := h.orderService.CreateOrder(c.Request.Context(), req, middleware.ActorFromContext(c))
	if err != nil {
		respondServiceError(c, err, "create order")
		return
	}
	c.JSON(http.StatusCreated, order)
}

// GetOrders handles fetching orders with filters
func (h *OrderHandler) GetOrders(c *gin.Context) {
	var filters models.OrderFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		respondBindError(c, err)
		return
	}
	if filters.Page < 0 || filters.PageSize < 0 {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid page format.", "page and page_size must be positive integers"))
		return
	}
	if filters.Page == 0 {
		filters.Page = defaultPage
	}
	if filters.PageSize == 0 {
		filters.PageSize = defaultPageSize
	}

	orders, totalCount, err := h.orderService.GetOrders(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err, "fetch orders")
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      orders,
		"total":     totalCount,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

// GetOrderByID handles fetching a single order by ID with its items
func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.GetOrderByID(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, err, "fetch order")
		return
	}
	c.JSON(http.StatusOK, order)
}

// publicOrder is what an unauthenticated table sees of its order. Customer
// identity, notes and payment references stay staff-only.
type publicOrder struct {
	ID          int64              `json:"id"`
	OrderNumber string             `json:"order_number"`
	Status      models.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	TableNumber *string            `json:"table_number,omitempty"`
	HoldName    *string            `json:"hold_name,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Items       []models.OrderItem `json:"items"`
}

func newPublicOrder(order *models.Order) publicOrder {
	return publicOrder{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		TableNumber: order.TableNumber,
		HoldName:    order.HoldName,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
		Items:       order.Items,
	}
}

// GetPublicOrderByID lets a table follow its order without staff credentials.
func (h *OrderHandler) GetPublicOrderByID(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.GetOrderByID(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, err, "fetch order")
		return
	}
	c.JSON(http.StatusOK, newPublicOrder(order))
}

// ChangeStatus moves the order along the lifecycle.
func (h *OrderHandler) ChangeStatus(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	order, err := h.orderService.ChangeStatus(c.Request.Context(), orderID, req.Status, middleware.ActorFromContext(c))
	if err != nil {
		respondServiceError(c, err, "update order status")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) HoldOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req holdRequest
	// An empty body holds the order under its number.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}
	order, err := h.orderService.HoldOrder(c.Request.Context(), orderID, req.HoldName, middleware.ActorFromContext(c))
	if err != nil {
		respondServiceError(c, err, "hold order")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ResumeHold(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.ResumeHold(c.Request.Context(), orderID, middleware.ActorFromContext(c))
	if err != nil {
		respondServiceError(c, err, "resume order")
		return
	}
	c.JSON(http.StatusOK, order)
}

// VerifyOrder confirms a pending customer order.
func (h *OrderHandler) VerifyOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.orderService.VerifyOrder(c.Request.Context(), orderID, middleware.ActorFromContext(c))
	if err != nil {
		respondServiceError(c, err, "verify order")
		return
	}
	c.JSON(http.StatusOK, order)
}

// RejectOrder cancels a pending customer order.
func (h *OrderHandler) RejectOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	order, err := h.orderService.RejectOrder(c.Request.Context(), orderID, req.Reason, middleware.ActorFromContext(c))
	if err != nil {
		respondServiceError(c, err, "reject order")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.CancelInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	order, err := h.orderService.CancelOrder(c.Request.Context(), orderID, req, middleware.ActorFromContext(c))
	if err != nil {
		respondServiceError(c, err, "cancel order")
		return
	}
	c.JSON(http.StatusOK, order)
}

// ReturnOrder records returned items of a completed order.
func (h *OrderHandler) ReturnOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.ReturnInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	ret, err := h.orderService.ReturnOrder(c.Request.Context(), orderID, req, middleware.ActorFromContext(c))
	if err != nil {
		respondServiceError(c, err, "return order items")
		return
	}
	c.JSON(http.StatusCreated, ret)
}

func (h *OrderHandler) SplitOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req splitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	orders, err := h.orderService.SplitOrder(c.Request.Context(), orderID, req.Splits, middleware.ActorFromContext(c))
	if err != nil {
		respondServiceError(c, err, "split order")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": orders})
}

func (h *OrderHandler) MergeOrders(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	order, err := h.orderService.MergeOrders(c.Request.Context(), req.OrderIDs, req.MergedName, middleware.ActorFromContext(c))
	if err != nil {
		respondServiceError(c, err, "merge orders")
		return
	}
	c.JSON(http.StatusCreated, order)
}
