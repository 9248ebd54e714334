package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/stackbill/stackbill/internal/api/v1"
	"github.com/stackbill/stackbill/internal/config"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/rest/middleware"
	"github.com/stackbill/stackbill/internal/service"
	"github.com/stackbill/stackbill/internal/types"
)

type Handlers struct {
	Webhook      *v1.WebhookHandler
	Order        *v1.OrderHandler
	Subscription *v1.SubscriptionHandler
	Invoice      *v1.InvoiceHandler
	Payment      *v1.PaymentHandler
	Coupon       *v1.CouponHandler
	Referral     *v1.ReferralHandler
	Permission   *v1.PermissionHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, permissionService service.PermissionService, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.ContextMiddleware(cfg))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Gateway webhooks authenticate with their own HMAC signatures, not the
	// service token.
	router.POST("/webhooks/:gateway", handlers.Webhook.HandleWebhook)

	v1Group := router.Group("/v1")
	v1Group.Use(middleware.AuthMiddleware(cfg))
	registerV1Routes(v1Group, handlers, permissionService, log)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers, permissionService service.PermissionService, log *logger.Logger) {
	gate := func(key string) gin.HandlerFunc {
		return middleware.PermissionMiddleware(permissionService, log, key, types.PermissionScopeGlobal)
	}

	orders := router.Group("/orders")
	{
		orders.POST("", gate("order.create"), handlers.Order.CreateCheckout)
		orders.GET("", handlers.Order.ListOrders)
		orders.GET("/:id", handlers.Order.GetOrder)
	}

	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.GET("", handlers.Subscription.ListSubscriptions)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.POST("/:id/cancel", gate("subscription.cancel"), handlers.Subscription.CancelSubscription)
		subscriptions.POST("/:id/resume", gate("subscription.resume"), handlers.Subscription.ResumeSubscription)
		subscriptions.POST("/:id/change-plan/quote", handlers.Subscription.QuotePlanChange)
		subscriptions.POST("/:id/change-plan", gate("subscription.change_plan"), handlers.Subscription.ChangePlan)
	}

	invoices := router.Group("/invoices")
	{
		invoices.GET("", handlers.Invoice.ListInvoices)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.POST("/:id/void", gate("invoice.void"), handlers.Invoice.VoidInvoice)
	}

	payments := router.Group("/payments")
	{
		payments.GET("/methods", handlers.Payment.ListPaymentMethods)
		payments.POST("/methods/:id/default", handlers.Payment.SetDefaultPaymentMethod)
		payments.DELETE("/methods/:id", handlers.Payment.DetachPaymentMethod)
		payments.POST("/setup-sessions", handlers.Payment.CreateSetupSession)
		payments.GET("/:id", handlers.Payment.GetPayment)
		payments.POST("/:id/refund", gate("payment.refund"), handlers.Payment.RefundPayment)
	}

	coupons := router.Group("/coupons")
	{
		coupons.POST("", gate("coupon.create"), handlers.Coupon.CreateCoupon)
		coupons.POST("/validate", handlers.Coupon.ValidateCoupon)
		coupons.GET("/:id", handlers.Coupon.GetCoupon)
	}

	referrals := router.Group("/referrals")
	{
		referrals.POST("", handlers.Referral.CreateReferral)
		referrals.GET("/earnings", handlers.Referral.GetEarnings)
		referrals.POST("/payouts", gate("referral.payout"), handlers.Referral.CreatePayout)
		referrals.GET("/:id", handlers.Referral.GetReferral)
	}

	entities := router.Group("/entities")
	{
		entities.POST("", handlers.Permission.CreateEntity)
		entities.GET("/:id", handlers.Permission.GetEntity)
	}

	permissions := router.Group("/permissions")
	{
		permissions.PUT("", handlers.Permission.SetPermission)
		permissions.POST("/check", handlers.Permission.CheckPermission)
		permissions.POST("/unlock", handlers.Permission.UnlockPermission)
		permissions.GET("/requests", handlers.Permission.ListPendingRequests)
	}
}
