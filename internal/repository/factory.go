package repository

import (
	"github.com/stackbill/stackbill/internal/domain/coupon"
	"github.com/stackbill/stackbill/internal/domain/entity"
	"github.com/stackbill/stackbill/internal/domain/invoice"
	"github.com/stackbill/stackbill/internal/domain/order"
	"github.com/stackbill/stackbill/internal/domain/payment"
	"github.com/stackbill/stackbill/internal/domain/referral"
	"github.com/stackbill/stackbill/internal/domain/subscription"
	"github.com/stackbill/stackbill/internal/domain/webhookevent"
	"github.com/stackbill/stackbill/internal/logger"
	"github.com/stackbill/stackbill/internal/postgres"
	postgresRepo "github.com/stackbill/stackbill/internal/repository/postgres"
)

func NewSubscriptionRepository(db postgres.IClient, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(db, logger)
}

func NewInvoiceRepository(db postgres.IClient, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}

func NewOrderRepository(db postgres.IClient, logger *logger.Logger) order.Repository {
	return postgresRepo.NewOrderRepository(db, logger)
}

func NewPaymentRepository(db postgres.IClient, logger *logger.Logger) payment.Repository {
	return postgresRepo.NewPaymentRepository(db, logger)
}

func NewPaymentMethodRepository(db postgres.IClient, logger *logger.Logger) payment.MethodRepository {
	return postgresRepo.NewPaymentMethodRepository(db, logger)
}

func NewWebhookEventRepository(db postgres.IClient, logger *logger.Logger) webhookevent.Repository {
	return postgresRepo.NewWebhookEventRepository(db, logger)
}

func NewCouponRepository(db postgres.IClient, logger *logger.Logger) coupon.Repository {
	return postgresRepo.NewCouponRepository(db, logger)
}

func NewEntityRepository(db postgres.IClient, logger *logger.Logger) entity.Repository {
	return postgresRepo.NewEntityRepository(db, logger)
}

func NewPermissionRepository(db postgres.IClient, logger *logger.Logger) entity.PermissionRepository {
	return postgresRepo.NewPermissionRepository(db, logger)
}

func NewPermissionRequestRepository(db postgres.IClient, logger *logger.Logger) entity.PermissionRequestRepository {
	return postgresRepo.NewPermissionRequestRepository(db, logger)
}

func NewReferralRepository(db postgres.IClient, logger *logger.Logger) referral.Repository {
	return postgresRepo.NewReferralRepository(db, logger)
}

func NewCommissionRepository(db postgres.IClient, logger *logger.Logger) referral.CommissionRepository {
	return postgresRepo.NewCommissionRepository(db, logger)
}

func NewPayoutRepository(db postgres.IClient, logger *logger.Logger) referral.PayoutRepository {
	return postgresRepo.NewPayoutRepository(db, logger)
}
