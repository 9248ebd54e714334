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

type SubscriptionHandler struct {
	subscriptionService service.SubscriptionService
	changeService       service.SubscriptionChangeService
	logger              *logger.Logger
}

func NewSubscriptionHandler(subscriptionService service.SubscriptionService, changeService service.SubscriptionChangeService, logger *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		changeService:       changeService,
		logger:              logger,
	}
}

// GetSubscription godoc
// @Summary Get a subscription by ID
// @Tags Subscriptions
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /subscriptions/{id} [get]
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid subscription id").Mark(ierr.ErrValidation))
		return
	}

	sub, err := h.subscriptionService.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.SubscriptionResponse{Subscription: sub})
}

// ListSubscriptions godoc
// @Summary List subscriptions for the workspace
// @Tags Subscriptions
// @Produce json
// @Param status query string false "Filter by status"
// @Param limit query int false "Page size"
// @Success 200 {object} dto.ListSubscriptionsResponse
// @Router /subscriptions [get]
func (h *SubscriptionHandler) ListSubscriptions(c *gin.Context) {
	filter := &types.SubscriptionFilter{
		WorkspaceID: types.GetWorkspaceID(c.Request.Context()),
	}
	if status := c.Query("status"); status != "" {
		filter.Statuses = []types.SubscriptionStatus{types.SubscriptionStatus(status)}
	}
	if limit := c.Query("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			filter.Limit = n
		}
	}

	resp, err := h.subscriptionService.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Errorw("failed to list subscriptions", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CancelSubscription godoc
// @Summary Cancel a subscription
// @Description Cancels at period end by default, immediately on request
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body dto.CancelSubscriptionRequest true "Cancellation options"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /subscriptions/{id}/cancel [post]
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid subscription id").Mark(ierr.ErrValidation))
		return
	}

	var req dto.CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("Invalid request format").Mark(ierr.ErrValidation))
		return
	}

	sub, err := h.subscriptionService.Cancel(c.Request.Context(), id, &req)
	if err != nil {
		h.logger.Errorw("failed to cancel subscription", "error", err, "subscription_id", id)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.SubscriptionResponse{Subscription: sub})
}

// ResumeSubscription godoc
// @Summary Resume a subscription
// @Description Undoes a pending cancellation or reactivates within the paid period
// @Tags Subscriptions
// @Produce json
// @Param id path string true "Subscription ID"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /subscriptions/{id}/resume [post]
func (h *SubscriptionHandler) ResumeSubscription(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid subscription id").Mark(ierr.ErrValidation))
		return
	}

	sub, err := h.subscriptionService.Resume(c.Request.Context(), id)
	if err != nil {
		h.logger.Errorw("failed to resume subscription", "error", err, "subscription_id", id)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.SubscriptionResponse{Subscription: sub})
}

// QuotePlanChange godoc
// @Summary Quote a plan change
// @Description Prices an upgrade or downgrade without applying it
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body dto.ChangePlanRequest true "Target plan"
// @Success 200 {object} dto.PlanChangeQuoteResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /subscriptions/{id}/change-plan/quote [post]
func (h *SubscriptionHandler) QuotePlanChange(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid subscription id").Mark(ierr.ErrValidation))
		return
	}

	var req dto.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("Invalid request format").Mark(ierr.ErrValidation))
		return
	}

	quote, err := h.changeService.Quote(c.Request.Context(), id, &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// ChangePlan godoc
// @Summary Change a subscription's plan
// @Description Applies the change immediately with proration, or defers it to the period boundary
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Param id path string true "Subscription ID"
// @Param request body dto.ChangePlanRequest true "Target plan"
// @Success 200 {object} dto.SubscriptionResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /subscriptions/{id}/change-plan [post]
func (h *SubscriptionHandler) ChangePlan(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid subscription id").Mark(ierr.ErrValidation))
		return
	}

	var req dto.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("Invalid request format").Mark(ierr.ErrValidation))
		return
	}

	sub, err := h.changeService.Execute(c.Request.Context(), id, &req)
	if err != nil {
		h.logger.Errorw("failed to change plan", "error", err, "subscription_id", id)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.SubscriptionResponse{Subscription: sub})
}
