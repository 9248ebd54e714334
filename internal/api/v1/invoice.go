package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/service"
	"github.com/stackbill/stackbill/internal/types"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	logger         *logger.Logger
}

func NewInvoiceHandler(invoiceService service.InvoiceService, logger *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		logger:         logger,
	}
}

// GetInvoice godoc
// @Summary Get an invoice by ID
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid invoice id").Mark(ierr.ErrValidation))
		return
	}

	inv, err := h.invoiceService.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

// ListInvoices godoc
// @Summary List invoices for the workspace
// @Tags Invoices
// @Produce json
// @Param subscription_id query string false "Filter by subscription"
// @Param status query string false "Filter by status"
// @Param limit query int false "Page size"
// @Success 200 {object} dto.ListInvoicesResponse
// @Router /invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	filter := &types.InvoiceFilter{
		WorkspaceID:    types.GetWorkspaceID(c.Request.Context()),
		SubscriptionID: c.Query("subscription_id"),
	}
	if status := c.Query("status"); status != "" {
		filter.Statuses = []types.InvoiceStatus{types.InvoiceStatus(status)}
	}
	if limit := c.Query("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			filter.Limit = n
		}
	}

	resp, err := h.invoiceService.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Errorw("failed to list invoices", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// VoidInvoice godoc
// @Summary Void an invoice
// @Description Writes off an uncollectible invoice
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 204
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /invoices/{id}/void [post]
func (h *InvoiceHandler) VoidInvoice(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid invoice id").Mark(ierr.ErrValidation))
		return
	}

	if err := h.invoiceService.Void(c.Request.Context(), id); err != nil {
		h.logger.Errorw("failed to void invoice", "error", err, "invoice_id", id)
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
