// file: internals/features/finance/payments/dto/payment_gateway_event_dto.go
package dto

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"impactacademy_backend/internals/features/finance/payments/model"
)

type PaymentGatewayEventResponse struct {
	GatewayEventID             uuid.UUID  `json:"gateway_event_id"`
	GatewayEventVerificationID *uuid.UUID `json:"gateway_event_verification_id,omitempty"`

	GatewayEventProvider    model.GatewayProvider `json:"gateway_event_provider"`
	GatewayEventExternalID  string                `json:"gateway_event_external_id"`
	GatewayEventType        string                `json:"gateway_event_type"`
	GatewayEventExternalRef *string               `json:"gateway_event_external_ref,omitempty"`

	GatewayEventPayload datatypes.JSON `json:"gateway_event_payload,omitempty"`

	GatewayEventStatus   model.GatewayEventStatus `json:"gateway_event_status"`
	GatewayEventError    *string                  `json:"gateway_event_error,omitempty"`
	GatewayEventTryCount int                      `json:"gateway_event_try_count"`

	GatewayEventReceivedAt  time.Time  `json:"gateway_event_received_at"`
	GatewayEventProcessedAt *time.Time `json:"gateway_event_processed_at,omitempty"`
}

// FromGatewayEvent drops headers and signature; they stay in the database
// for forensics only.
func FromGatewayEvent(m *model.PaymentGatewayEventModel, withPayload bool) *PaymentGatewayEventResponse {
	out := &PaymentGatewayEventResponse{
		GatewayEventID:             m.GatewayEventID,
		GatewayEventVerificationID: m.GatewayEventVerificationID,
		GatewayEventProvider:       m.GatewayEventProvider,
		GatewayEventExternalID:     m.GatewayEventExternalID,
		GatewayEventType:           m.GatewayEventType,
		GatewayEventExternalRef:    m.GatewayEventExternalRef,
		GatewayEventStatus:         m.GatewayEventStatus,
		GatewayEventError:          m.GatewayEventError,
		GatewayEventTryCount:       m.GatewayEventTryCount,
		GatewayEventReceivedAt:     m.GatewayEventReceivedAt,
		GatewayEventProcessedAt:    m.GatewayEventProcessedAt,
	}
	if withPayload {
		out.GatewayEventPayload = m.GatewayEventPayload
	}
	return out
}
