package domain

type OrderStatusType string

const (
	OrderStatusPending OrderStatusType = "pending"
	OrderStatusPaid    OrderStatusType = "paid"
	OrderStatusFailed  OrderStatusType = "failed"
)

type PaymentChannel string

const (
	ChannelAlipay PaymentChannel = "alipay"
	ChannelWechat PaymentChannel = "wechat"
	ChannelEpay   PaymentChannel = "epay"
)

type TransactionType string

const (
	TransactionPurchase TransactionType = "purchase"
	TransactionSpend    TransactionType = "spend"
	TransactionReferral TransactionType = "referral"
	TransactionRefund   TransactionType = "refund"
)

type ReferralStatusType string

const (
	ReferralStatusCompleted ReferralStatusType = "completed"
)
