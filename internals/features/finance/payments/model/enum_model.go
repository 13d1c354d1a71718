package model

type StagingStatus string
type PaymentType string
type GatewayProvider string
type GatewayEventStatus string

const (
	StagingPending  StagingStatus = "pending"
	StagingVerified StagingStatus = "verified"
	StagingRejected StagingStatus = "rejected"
)

const (
	PaymentTypeRegistration PaymentType = "registration"
	PaymentTypeCourse       PaymentType = "course"
)

func (p PaymentType) Valid() bool {
	return p == PaymentTypeRegistration || p == PaymentTypeCourse
}

const (
	GatewayProviderMidtrans GatewayProvider = "midtrans"
	GatewayProviderManual   GatewayProvider = "manual"
)

const (
	GatewayEventReceived   GatewayEventStatus = "received"
	GatewayEventProcessing GatewayEventStatus = "processing"
	GatewayEventSuccess    GatewayEventStatus = "success"
	GatewayEventFailed     GatewayEventStatus = "failed"
	GatewayEventIgnored    GatewayEventStatus = "ignored"
)

// Status of rows in registration_payments and course_payments.
const PaymentRecordCompleted = "completed"

const (
	MethodGateway      = "gateway"
	MethodBankTransfer = "bank_transfer"
	MethodCash         = "cash"
	MethodQRIS         = "qris"
)
