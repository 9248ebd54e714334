package types

// PaymentGateway identifies a supported payment gateway.
type PaymentGateway string

const (
	PaymentGatewayStripe PaymentGateway = "stripe"
	PaymentGatewayBTCPay PaymentGateway = "btcpay"
)

func (g PaymentGateway) Validate() bool {
	return g == PaymentGatewayStripe || g == PaymentGatewayBTCPay
}

// PaymentStatus is the state of a single payment attempt/record.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// PaymentMethodType is the kind of stored payment instrument.
type PaymentMethodType string

const (
	PaymentMethodTypeCard   PaymentMethodType = "card"
	PaymentMethodTypeCrypto PaymentMethodType = "crypto"
)
