package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/service"
	"github.com/stackbill/stackbill/internal/types"
)

type OrderHandler struct {
	orderService service.OrderService
	logger       *logger.Logger
}

func NewOrderHandler(orderService service.OrderService, logger *logger.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// CreateCheckout godoc
// @Summary Create a checkout order
// @Description Prices the cart, applies any coupon and opens a gateway checkout session
// @Tags Orders
// @Accept json
// @Produce json
// @Param order body dto.CreateOrderRequest true "Order details"
// @Success 201 {object} dto.OrderResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 502 {object} middleware.ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) CreateCheckout(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorw("failed to bind request", "error", err)
		c.Error(ierr.WithError(err).WithHint("Invalid request format").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.orderService.CreateCheckout(c.Request.Context(), &req)
	if err != nil {
		h.logger.Errorw("failed to create checkout", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetOrder godoc
// @Summary Get an order by ID
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} dto.OrderResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid order id").Mark(ierr.ErrValidation))
		return
	}

	o, err := h.orderService.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.OrderResponse{Order: o})
}

// ListOrders godoc
// @Summary List orders for the workspace
// @Tags Orders
// @Produce json
// @Param status query string false "Filter by order status"
// @Param limit query int false "Page size"
// @Success 200 {object} dto.ListOrdersResponse
// @Router /orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	filter := &types.OrderFilter{
		WorkspaceID: types.GetWorkspaceID(c.Request.Context()),
	}
	if status := c.Query("status"); status != "" {
		filter.Statuses = []types.OrderStatus{types.OrderStatus(status)}
	}
	if limit := c.Query("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			filter.Limit = n
		}
	}

	resp, err := h.orderService.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Errorw("failed to list orders", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
