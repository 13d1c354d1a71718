// file: internals/features/finance/notifications/model/notification_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CategoryPayment   = "payment"
	CategoryInvoice   = "invoice"
	CategoryReminder  = "reminder"
	CategoryClearance = "clearance"
	CategoryAccount   = "account"
)

/* ===================== notifications (in-app) ===================== */

type NotificationModel struct {
	NotificationID       uuid.UUID `gorm:"column:notification_id;type:uuid;primaryKey" json:"notification_id"`
	NotificationUserID   uuid.UUID `gorm:"column:notification_user_id;type:uuid;not null;index" json:"notification_user_id"`
	NotificationTitle    string    `gorm:"column:notification_title;type:varchar(200);not null" json:"notification_title"`
	NotificationMessage  string    `gorm:"column:notification_message;type:text;not null" json:"notification_message"`
	NotificationCategory string    `gorm:"column:notification_category;type:varchar(30);not null;index" json:"notification_category"`
	NotificationIsRead   bool      `gorm:"column:notification_is_read;not null;default:false" json:"notification_is_read"`

	NotificationCreatedAt time.Time `gorm:"column:notification_created_at;autoCreateTime" json:"notification_created_at"`
}

func (NotificationModel) TableName() string { return "notifications" }

func (m *NotificationModel) BeforeCreate(tx *gorm.DB) error {
	if m.NotificationID == uuid.Nil {
		m.NotificationID = uuid.New()
	}
	return nil
}

/* ===================== internal_messages ===================== */

type InternalMessageModel struct {
	InternalMessageID         uuid.UUID         `gorm:"column:internal_message_id;type:uuid;primaryKey" json:"internal_message_id"`
	InternalMessageSenderID   *uuid.UUID        `gorm:"column:internal_message_sender_id;type:uuid" json:"internal_message_sender_id"`
	InternalMessageReceiverID uuid.UUID         `gorm:"column:internal_message_receiver_id;type:uuid;not null;index" json:"internal_message_receiver_id"`
	InternalMessageTitle      string            `gorm:"column:internal_message_title;type:varchar(200);not null" json:"internal_message_title"`
	InternalMessageBody       string            `gorm:"column:internal_message_body;type:text;not null" json:"internal_message_body"`
	InternalMessageType       string            `gorm:"column:internal_message_type;type:varchar(30);not null" json:"internal_message_type"`
	InternalMessageMeta       datatypes.JSONMap `gorm:"column:internal_message_meta;type:jsonb" json:"internal_message_meta"`
	InternalMessageIsRead     bool              `gorm:"column:internal_message_is_read;not null;default:false" json:"internal_message_is_read"`

	InternalMessageCreatedAt time.Time `gorm:"column:internal_message_created_at;autoCreateTime" json:"internal_message_created_at"`
}

func (InternalMessageModel) TableName() string { return "internal_messages" }

func (m *InternalMessageModel) BeforeCreate(tx *gorm.DB) error {
	if m.InternalMessageID == uuid.Nil {
		m.InternalMessageID = uuid.New()
	}
	return nil
}

/* ===================== financial_activity_logs (append-only) ===================== */

type FinancialActivityLogModel struct {
	ActivityID            uuid.UUID         `gorm:"column:activity_id;type:uuid;primaryKey" json:"activity_id"`
	ActivityActorID       *uuid.UUID        `gorm:"column:activity_actor_id;type:uuid;index" json:"activity_actor_id"`
	ActivityActorRole     string            `gorm:"column:activity_actor_role;type:varchar(20);not null" json:"activity_actor_role"`
	ActivityAction        string            `gorm:"column:activity_action;type:varchar(60);not null;index" json:"activity_action"`
	ActivityDescription   string            `gorm:"column:activity_description;type:text" json:"activity_description"`
	ActivityStudentID     *uuid.UUID        `gorm:"column:activity_student_id;type:uuid;index" json:"activity_student_id"`
	ActivityClassID       *uuid.UUID        `gorm:"column:activity_class_id;type:uuid" json:"activity_class_id"`
	ActivityTransactionID *uuid.UUID        `gorm:"column:activity_transaction_id;type:uuid" json:"activity_transaction_id"`
	ActivityMeta          datatypes.JSONMap `gorm:"column:activity_meta;type:jsonb" json:"activity_meta"`

	ActivityCreatedAt time.Time `gorm:"column:activity_created_at;autoCreateTime" json:"activity_created_at"`
}

func (FinancialActivityLogModel) TableName() string { return "financial_activity_logs" }

func (m *FinancialActivityLogModel) BeforeCreate(tx *gorm.DB) error {
	if m.ActivityID == uuid.Nil {
		m.ActivityID = uuid.New()
	}
	return nil
}
