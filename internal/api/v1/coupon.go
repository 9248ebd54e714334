package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stackbill/stackbill/internal/domain/coupon"
	"github.com/stackbill/stackbill/internal/dto"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/service"
	"github.com/stackbill/stackbill/internal/types"
)

type CouponHandler struct {
	couponService service.CouponService
	logger        *logger.Logger
}

func NewCouponHandler(couponService service.CouponService, logger *logger.Logger) *CouponHandler {
	return &CouponHandler{
		couponService: couponService,
		logger:        logger,
	}
}

// CreateCoupon godoc
// @Summary Create a coupon
// @Tags Coupons
// @Accept json
// @Produce json
// @Param coupon body dto.CreateCouponRequest true "Coupon details"
// @Success 201 {object} dto.CouponResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /coupons [post]
func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	var req dto.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("Invalid request format").Mark(ierr.ErrValidation))
		return
	}

	ctx := c.Request.Context()
	cpn := &coupon.Coupon{
		Code:           req.Code,
		CouponType:     req.CouponType,
		Value:          req.Value,
		Currency:       req.Currency,
		MinOrderTotal:  req.MinOrderTotal,
		MaxRedemptions: req.MaxRedemptions,
		AppliesTo:      req.AppliesTo,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}

	if err := h.couponService.Create(ctx, cpn); err != nil {
		h.logger.Errorw("failed to create coupon", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, &dto.CouponResponse{Coupon: cpn})
}

// GetCoupon godoc
// @Summary Get a coupon by ID
// @Tags Coupons
// @Produce json
// @Param id path string true "Coupon ID"
// @Success 200 {object} dto.CouponResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /coupons/{id} [get]
func (h *CouponHandler) GetCoupon(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Error(ierr.NewError("invalid coupon id").Mark(ierr.ErrValidation))
		return
	}

	cpn, err := h.couponService.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &dto.CouponResponse{Coupon: cpn})
}

// ValidateCoupon godoc
// @Summary Validate a coupon code against an order
// @Description A bad code yields an invalid result, not an error
// @Tags Coupons
// @Accept json
// @Produce json
// @Param request body dto.ValidateCouponRequest true "Code and order subtotal"
// @Success 200 {object} dto.ValidateCouponResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /coupons/validate [post]
func (h *CouponHandler) ValidateCoupon(c *gin.Context) {
	var req dto.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("Invalid request format").Mark(ierr.ErrValidation))
		return
	}

	ctx := c.Request.Context()
	result := h.couponService.Validate(ctx, types.GetWorkspaceID(ctx), req.Code, req.Subtotal, req.SKU)
	c.JSON(http.StatusOK, dto.NewValidateCouponResponse(result))
}
