package types

// CouponType is how a coupon discounts an order.
type CouponType string

const (
	CouponTypePercent CouponType = "percent"
	CouponTypeFixed   CouponType = "fixed"
)

// CouponInvalidReason explains why a coupon failed validation. Invalid
// coupons are an expected input, so they surface as a structured result
// rather than an error.
type CouponInvalidReason string

const (
	CouponInvalidNotFound      CouponInvalidReason = "not_found"
	CouponInvalidExpired       CouponInvalidReason = "expired"
	CouponInvalidNotStarted    CouponInvalidReason = "not_started"
	CouponInvalidUsageExceeded CouponInvalidReason = "usage_limit_exceeded"
	CouponInvalidMinOrder      CouponInvalidReason = "min_order_not_met"
	CouponInvalidNotApplicable CouponInvalidReason = "not_applicable"
	CouponInvalidInactive      CouponInvalidReason = "inactive"
)
