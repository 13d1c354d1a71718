// file: internals/features/finance/payments/model/staging_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*
  Staging rows = a claimed payment waiting for reconciliation.
  pending -> verified | rejected, never back.
  payment_verifications come from the gateway (checkout + webhook),
  manual_payment_entries are typed in by finance staff.
*/

type PaymentVerificationModel struct {
	VerificationID        uuid.UUID       `gorm:"column:verification_id;type:uuid;primaryKey" json:"verification_id"`
	VerificationStudentID uuid.UUID       `gorm:"column:verification_student_id;type:uuid;not null;index" json:"verification_student_id"`
	VerificationProgramID *uuid.UUID      `gorm:"column:verification_program_id;type:uuid" json:"verification_program_id"`
	VerificationCourseID  *uuid.UUID      `gorm:"column:verification_course_id;type:uuid" json:"verification_course_id"`
	VerificationClassID   *uuid.UUID      `gorm:"column:verification_class_id;type:uuid" json:"verification_class_id"`
	VerificationType      PaymentType     `gorm:"column:verification_payment_type;type:varchar(20);not null" json:"verification_payment_type"`
	VerificationAmount    decimal.Decimal `gorm:"column:verification_amount;type:numeric(14,2);not null" json:"verification_amount"`

	VerificationReference string `gorm:"column:verification_payment_reference;type:varchar(120);not null;uniqueIndex:uq_verification_payment_reference" json:"verification_payment_reference"`
	VerificationMethod    string `gorm:"column:verification_payment_method;type:varchar(30);not null" json:"verification_payment_method"`

	VerificationProvider             GatewayProvider `gorm:"column:verification_provider;type:varchar(20);not null" json:"verification_provider"`
	VerificationGatewayTransactionID *string         `gorm:"column:verification_gateway_transaction_id;type:varchar(120)" json:"verification_gateway_transaction_id"`

	VerificationStatus          StagingStatus  `gorm:"column:verification_status;type:varchar(20);not null;index" json:"verification_status"`
	VerificationVerifiedBy      *uuid.UUID     `gorm:"column:verification_verified_by;type:uuid" json:"verification_verified_by"`
	VerificationVerifiedAt      *time.Time     `gorm:"column:verification_verified_at" json:"verification_verified_at"`
	VerificationRejectionReason *string        `gorm:"column:verification_rejection_reason" json:"verification_rejection_reason"`
	VerificationTransactionID   *uuid.UUID     `gorm:"column:verification_transaction_id;type:uuid" json:"verification_transaction_id"`
	VerificationMeta            datatypes.JSON `gorm:"column:verification_meta;type:jsonb" json:"verification_meta"`

	VerificationCreatedAt time.Time `gorm:"column:verification_created_at;autoCreateTime" json:"verification_created_at"`
	VerificationUpdatedAt time.Time `gorm:"column:verification_updated_at;autoUpdateTime" json:"verification_updated_at"`
}

func (PaymentVerificationModel) TableName() string { return "payment_verifications" }

func (m *PaymentVerificationModel) BeforeCreate(tx *gorm.DB) error {
	if m.VerificationID == uuid.Nil {
		m.VerificationID = uuid.New()
	}
	if m.VerificationStatus == "" {
		m.VerificationStatus = StagingPending
	}
	if m.VerificationProvider == "" {
		m.VerificationProvider = GatewayProviderMidtrans
	}
	return nil
}

type ManualPaymentEntryModel struct {
	ManualEntryID        uuid.UUID       `gorm:"column:manual_entry_id;type:uuid;primaryKey" json:"manual_entry_id"`
	ManualEntryStudentID uuid.UUID       `gorm:"column:manual_entry_student_id;type:uuid;not null;index" json:"manual_entry_student_id"`
	ManualEntryProgramID *uuid.UUID      `gorm:"column:manual_entry_program_id;type:uuid" json:"manual_entry_program_id"`
	ManualEntryCourseID  *uuid.UUID      `gorm:"column:manual_entry_course_id;type:uuid" json:"manual_entry_course_id"`
	ManualEntryClassID   *uuid.UUID      `gorm:"column:manual_entry_class_id;type:uuid" json:"manual_entry_class_id"`
	ManualEntryType      PaymentType     `gorm:"column:manual_entry_payment_type;type:varchar(20);not null" json:"manual_entry_payment_type"`
	ManualEntryAmount    decimal.Decimal `gorm:"column:manual_entry_amount;type:numeric(14,2);not null" json:"manual_entry_amount"`

	ManualEntryReference string  `gorm:"column:manual_entry_payment_reference;type:varchar(120);not null;uniqueIndex:uq_manual_entry_payment_reference" json:"manual_entry_payment_reference"`
	ManualEntryMethod    string  `gorm:"column:manual_entry_payment_method;type:varchar(30);not null" json:"manual_entry_payment_method"`
	ManualEntryNotes     *string `gorm:"column:manual_entry_notes" json:"manual_entry_notes"`

	ManualEntryStatus          StagingStatus  `gorm:"column:manual_entry_status;type:varchar(20);not null;index" json:"manual_entry_status"`
	ManualEntryCreatedBy       *uuid.UUID     `gorm:"column:manual_entry_created_by;type:uuid" json:"manual_entry_created_by"`
	ManualEntryVerifiedBy      *uuid.UUID     `gorm:"column:manual_entry_verified_by;type:uuid" json:"manual_entry_verified_by"`
	ManualEntryVerifiedAt      *time.Time     `gorm:"column:manual_entry_verified_at" json:"manual_entry_verified_at"`
	ManualEntryRejectionReason *string        `gorm:"column:manual_entry_rejection_reason" json:"manual_entry_rejection_reason"`
	ManualEntryTransactionID   *uuid.UUID     `gorm:"column:manual_entry_transaction_id;type:uuid" json:"manual_entry_transaction_id"`
	ManualEntryMeta            datatypes.JSON `gorm:"column:manual_entry_meta;type:jsonb" json:"manual_entry_meta"`

	ManualEntryCreatedAt time.Time `gorm:"column:manual_entry_created_at;autoCreateTime" json:"manual_entry_created_at"`
	ManualEntryUpdatedAt time.Time `gorm:"column:manual_entry_updated_at;autoUpdateTime" json:"manual_entry_updated_at"`
}

func (ManualPaymentEntryModel) TableName() string { return "manual_payment_entries" }

func (m *ManualPaymentEntryModel) BeforeCreate(tx *gorm.DB) error {
	if m.ManualEntryID == uuid.Nil {
		m.ManualEntryID = uuid.New()
	}
	if m.ManualEntryStatus == "" {
		m.ManualEntryStatus = StagingPending
	}
	return nil
}
