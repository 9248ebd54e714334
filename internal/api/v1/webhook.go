package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/service"
	"github.com/stackbill/stackbill/internal/types"
)

type WebhookHandler struct {
	webhookService service.WebhookService
	logger         *logger.Logger
}

func NewWebhookHandler(webhookService service.WebhookService, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		logger:         logger,
	}
}

// signatureHeaders maps each gateway to the header carrying its HMAC.
var signatureHeaders = map[types.PaymentGateway]string{
	types.PaymentGatewayStripe: "Stripe-Signature",
	types.PaymentGatewayBTCPay: "BTCPay-Sig",
}

// HandleWebhook godoc
// @Summary Receive a gateway webhook
// @Description Verifies the signature and processes the event exactly once
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param gateway path string true "Gateway (stripe, btcpay)"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Router /webhooks/{gateway} [post]
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	gatewayType := types.PaymentGateway(c.Param("gateway"))
	if !gatewayType.Validate() {
		c.Error(ierr.NewError("unknown gateway").
			WithHint("Gateway must be stripe or btcpay").
			Mark(ierr.ErrValidation))
		return
	}

	// The raw body must reach the verifier untouched: any re-marshalling
	// would break the HMAC.
	payload, err := c.GetRawData()
	if err != nil {
		h.logger.Errorw("failed to read webhook body", "error", err, "gateway", gatewayType)
		c.Error(ierr.WithError(err).WithHint("Failed to read request body").Mark(ierr.ErrValidation))
		return
	}

	signature := c.GetHeader(signatureHeaders[gatewayType])

	if err := h.webhookService.Process(c.Request.Context(), gatewayType, payload, signature); err != nil {
		h.logger.Errorw("webhook processing failed", "error", err, "gateway", gatewayType)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
