// file: internals/features/finance/ledger/model/financial_status_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	feeModel "impactacademy_backend/internals/features/finance/fees/model"
)

/*
  student_financial_status = one ledger row per (student, class).
  balance and is_cleared are derived from total_fee and paid_amount on every
  mutation; they are never written independently.
*/

type FinancialStatusModel struct {
	FinancialStatusID          uuid.UUID            `gorm:"column:financial_status_id;type:uuid;primaryKey" json:"financial_status_id"`
	FinancialStatusStudentID   uuid.UUID            `gorm:"column:financial_status_student_id;type:uuid;not null;uniqueIndex:uq_financial_status_student_class" json:"financial_status_student_id"`
	FinancialStatusClassID     uuid.UUID            `gorm:"column:financial_status_class_id;type:uuid;not null;uniqueIndex:uq_financial_status_student_class" json:"financial_status_class_id"`
	FinancialStatusProgramType feeModel.ProgramType `gorm:"column:financial_status_program_type;type:varchar(10);not null" json:"financial_status_program_type"`

	FinancialStatusTotalFee   decimal.Decimal `gorm:"column:financial_status_total_fee;type:numeric(14,2);not null" json:"financial_status_total_fee"`
	FinancialStatusPaidAmount decimal.Decimal `gorm:"column:financial_status_paid_amount;type:numeric(14,2);not null;default:0" json:"financial_status_paid_amount"`
	FinancialStatusBalance    decimal.Decimal `gorm:"column:financial_status_balance;type:numeric(14,2);not null" json:"financial_status_balance"`
	// bagian dari total_fee yang berasal dari denda keterlambatan
	FinancialStatusLateFees decimal.Decimal `gorm:"column:financial_status_late_fees;type:numeric(14,2);not null;default:0" json:"financial_status_late_fees"`

	FinancialStatusRegistrationPaid bool `gorm:"column:financial_status_registration_paid;not null;default:false" json:"financial_status_registration_paid"`
	FinancialStatusBlock1Paid       bool `gorm:"column:financial_status_block1_paid;not null;default:false" json:"financial_status_block1_paid"`
	FinancialStatusBlock2Paid       bool `gorm:"column:financial_status_block2_paid;not null;default:false" json:"financial_status_block2_paid"`
	FinancialStatusBlock3Paid       bool `gorm:"column:financial_status_block3_paid;not null;default:false" json:"financial_status_block3_paid"`
	FinancialStatusCurrentBlock     int  `gorm:"column:financial_status_current_block;not null;default:1" json:"financial_status_current_block"`

	FinancialStatusIsCleared bool       `gorm:"column:financial_status_is_cleared;not null;default:false;index" json:"financial_status_is_cleared"`
	FinancialStatusClearedAt *time.Time `gorm:"column:financial_status_cleared_at" json:"financial_status_cleared_at"`

	FinancialStatusIsSuspended      bool       `gorm:"column:financial_status_is_suspended;not null;default:false" json:"financial_status_is_suspended"`
	FinancialStatusSuspendedAt      *time.Time `gorm:"column:financial_status_suspended_at" json:"financial_status_suspended_at"`
	FinancialStatusSuspensionReason *string    `gorm:"column:financial_status_suspension_reason" json:"financial_status_suspension_reason"`
	FinancialStatusNextPaymentDue   *time.Time `gorm:"column:financial_status_next_payment_due" json:"financial_status_next_payment_due"`

	FinancialStatusCreatedAt time.Time `gorm:"column:financial_status_created_at;autoCreateTime" json:"financial_status_created_at"`
	FinancialStatusUpdatedAt time.Time `gorm:"column:financial_status_updated_at;autoUpdateTime" json:"financial_status_updated_at"`
}

func (FinancialStatusModel) TableName() string { return "student_financial_status" }

func (m *FinancialStatusModel) BeforeCreate(tx *gorm.DB) error {
	if m.FinancialStatusID == uuid.Nil {
		m.FinancialStatusID = uuid.New()
	}
	if m.FinancialStatusCurrentBlock < 1 {
		m.FinancialStatusCurrentBlock = 1
	}
	m.Recompute()
	return nil
}

func (m *FinancialStatusModel) BeforeUpdate(tx *gorm.DB) error {
	m.Recompute()
	return nil
}
