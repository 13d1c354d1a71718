// file: internals/features/finance/payments/model/payment_gateway_events_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*
  payment_gateway_events = webhook / callback log.
  A redelivery of the same (provider, external_id, event_type) hits the
  unique index and only bumps try_count.
*/

type PaymentGatewayEventModel struct {
	GatewayEventID             uuid.UUID  `gorm:"column:gateway_event_id;type:uuid;primaryKey" json:"gateway_event_id"`
	GatewayEventVerificationID *uuid.UUID `gorm:"column:gateway_event_verification_id;type:uuid;index" json:"gateway_event_verification_id"`

	GatewayEventProvider    GatewayProvider `gorm:"column:gateway_event_provider;type:varchar(20);not null;uniqueIndex:uq_gateway_event_delivery" json:"gateway_event_provider"`
	GatewayEventExternalID  string          `gorm:"column:gateway_event_external_id;type:varchar(120);not null;uniqueIndex:uq_gateway_event_delivery" json:"gateway_event_external_id"`
	GatewayEventType        string          `gorm:"column:gateway_event_type;type:varchar(40);not null;uniqueIndex:uq_gateway_event_delivery" json:"gateway_event_type"`
	GatewayEventExternalRef *string         `gorm:"column:gateway_event_external_ref;type:varchar(120)" json:"gateway_event_external_ref"`

	GatewayEventHeaders   datatypes.JSON `gorm:"column:gateway_event_headers;type:jsonb" json:"gateway_event_headers"`
	GatewayEventPayload   datatypes.JSON `gorm:"column:gateway_event_payload;type:jsonb" json:"gateway_event_payload"`
	GatewayEventSignature *string        `gorm:"column:gateway_event_signature" json:"gateway_event_signature"`

	GatewayEventStatus   GatewayEventStatus `gorm:"column:gateway_event_status;type:varchar(20);not null" json:"gateway_event_status"`
	GatewayEventError    *string            `gorm:"column:gateway_event_error" json:"gateway_event_error"`
	GatewayEventTryCount int                `gorm:"column:gateway_event_try_count;not null" json:"gateway_event_try_count"`

	GatewayEventReceivedAt  time.Time  `gorm:"column:gateway_event_received_at;not null" json:"gateway_event_received_at"`
	GatewayEventProcessedAt *time.Time `gorm:"column:gateway_event_processed_at" json:"gateway_event_processed_at"`

	GatewayEventCreatedAt time.Time      `gorm:"column:gateway_event_created_at;autoCreateTime" json:"gateway_event_created_at"`
	GatewayEventUpdatedAt time.Time      `gorm:"column:gateway_event_updated_at;autoUpdateTime" json:"gateway_event_updated_at"`
	GatewayEventDeletedAt gorm.DeletedAt `gorm:"column:gateway_event_deleted_at;index" json:"gateway_event_deleted_at,omitempty"`
}

func (PaymentGatewayEventModel) TableName() string {
	return "payment_gateway_events"
}

func (m *PaymentGatewayEventModel) BeforeCreate(tx *gorm.DB) error {
	if m.GatewayEventID == uuid.Nil {
		m.GatewayEventID = uuid.New()
	}
	if m.GatewayEventStatus == "" {
		m.GatewayEventStatus = GatewayEventReceived
	}
	if m.GatewayEventReceivedAt.IsZero() {
		m.GatewayEventReceivedAt = time.Now().UTC()
	}
	return nil
}
