package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/service"
)

type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *logger.Logger
}

func NewPaymentHandler(paymentService service.PaymentService, logger *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// GetPayment godoc
// @Summary Get a payment by ID
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} dto.PaymentResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid payment id").Mark(ierr.ErrValidation))
		return
	}

	p, err := h.paymentService.GetPayment(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.PaymentResponse{Payment: p})
}

// CreateSetupSession godoc
// @Summary Start a payment method setup flow
// @Description Returns the gateway URL where the customer saves a payment method
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body dto.CreateSetupSessionRequest true "Setup options"
// @Success 201 {object} dto.SetupSessionResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 502 {object} middleware.ErrorResponse
// @Router /payments/setup-sessions [post]
func (h *PaymentHandler) CreateSetupSession(c *gin.Context) {
	var req dto.CreateSetupSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("Invalid request format").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.paymentService.CreateSetupSession(c.Request.Context(), &req)
	if err != nil {
		h.logger.Errorw("failed to create setup session", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListPaymentMethods godoc
// @Summary List saved payment methods for the workspace
// @Tags Payments
// @Produce json
// @Success 200 {object} dto.ListPaymentMethodsResponse
// @Router /payments/methods [get]
func (h *PaymentHandler) ListPaymentMethods(c *gin.Context) {
	resp, err := h.paymentService.ListPaymentMethods(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to list payment methods", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SetDefaultPaymentMethod godoc
// @Summary Make a payment method the workspace default
// @Tags Payments
// @Produce json
// @Param id path string true "Payment method ID"
// @Success 204
// @Failure 404 {object} middleware.ErrorResponse
// @Router /payments/methods/{id}/default [post]
func (h *PaymentHandler) SetDefaultPaymentMethod(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid payment method id").Mark(ierr.ErrValidation))
		return
	}

	if err := h.paymentService.SetDefaultPaymentMethod(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DetachPaymentMethod godoc
// @Summary Detach a saved payment method
// @Tags Payments
// @Produce json
// @Param id path string true "Payment method ID"
// @Success 204
// @Failure 404 {object} middleware.ErrorResponse
// @Router /payments/methods/{id} [delete]
func (h *PaymentHandler) DetachPaymentMethod(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid payment method id").Mark(ierr.ErrValidation))
		return
	}

	if err := h.paymentService.DetachPaymentMethod(c.Request.Context(), id); err != nil {
		h.logger.Errorw("failed to detach payment method", "error", err, "method_id", id)
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// RefundPayment godoc
// @Summary Refund a captured payment
// @Description Refunds the given amount, or the full payment when the amount is zero
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param request body dto.RefundRequest true "Refund options"
// @Success 200 {object} dto.PaymentResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /payments/{id}/refund [post]
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid payment id").Mark(ierr.ErrValidation))
		return
	}

	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("Invalid request format").Mark(ierr.ErrValidation))
		return
	}

	p, err := h.paymentService.Refund(c.Request.Context(), id, &req)
	if err != nil {
		h.logger.Errorw("failed to refund payment", "error", err, "payment_id", id)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.PaymentResponse{Payment: p})
}
