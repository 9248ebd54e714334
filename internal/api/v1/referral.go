package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/service"
	"github.com/stackbill/stackbill/internal/types"
)

type ReferralHandler struct {
	referralService service.ReferralService
	logger          *logger.Logger
}

func NewReferralHandler(referralService service.ReferralService, logger *logger.Logger) *ReferralHandler {
	return &ReferralHandler{
		referralService: referralService,
		logger:          logger,
	}
}

// CreateReferral godoc
// @Summary Record a referral
// @Description Attributes a new workspace to the referrer's code
// @Tags Referrals
// @Accept json
// @Produce json
// @Param referral body dto.CreateReferralRequest true "Referral details"
// @Success 201 {object} dto.ReferralResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /referrals [post]
func (h *ReferralHandler) CreateReferral(c *gin.Context) {
	var req dto.CreateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("Invalid request format").Mark(ierr.ErrValidation))
		return
	}

	ref, err := h.referralService.Create(c.Request.Context(), &req)
	if err != nil {
		h.logger.Errorw("failed to create referral", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, &dto.ReferralResponse{Referral: ref})
}

// GetReferral godoc
// @Summary Get a referral by ID
// @Tags Referrals
// @Produce json
// @Param id path string true "Referral ID"
// @Success 200 {object} dto.ReferralResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /referrals/{id} [get]
func (h *ReferralHandler) GetReferral(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid referral id").Mark(ierr.ErrValidation))
		return
	}

	ref, err := h.referralService.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.ReferralResponse{Referral: ref})
}

// GetEarnings godoc
// @Summary Summarize the workspace's referral earnings
// @Tags Referrals
// @Produce json
// @Success 200 {object} dto.ReferralEarningsResponse
// @Router /referrals/earnings [get]
func (h *ReferralHandler) GetEarnings(c *gin.Context) {
	ctx := c.Request.Context()
	resp, err := h.referralService.Earnings(ctx, types.GetWorkspaceID(ctx))
	if err != nil {
		h.logger.Errorw("failed to compute earnings", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CreatePayout godoc
// @Summary Batch payable commissions into a payout
// @Tags Referrals
// @Produce json
// @Success 201 {object} dto.PayoutResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /referrals/payouts [post]
func (h *ReferralHandler) CreatePayout(c *gin.Context) {
	ctx := c.Request.Context()
	resp, err := h.referralService.CreatePayout(ctx, types.GetWorkspaceID(ctx))
	if err != nil {
		h.logger.Errorw("failed to create payout", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
