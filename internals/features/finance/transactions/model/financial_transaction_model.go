// file: internals/features/finance/transactions/model/financial_transaction_model.go
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionRegistration TransactionType = "registration"
	TransactionTuition      TransactionType = "tuition"
	TransactionCourse       TransactionType = "course"
	TransactionOther        TransactionType = "other"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionRegistration, TransactionTuition, TransactionCourse, TransactionOther:
		return true
	}
	return false
}

const (
	TransactionStatusCompleted = "completed"

	// ManualReferencePrefix marks references of staff-entered payments.
	ManualReferencePrefix = "MANUAL-"
)

// ReferenceKey normalises an external reference so the manual-marked and
// plain variants of the same payment collide on the unique index.
func ReferenceKey(ref string) string {
	ref = strings.TrimSpace(ref)
	if len(ref) > len(ManualReferencePrefix) && strings.EqualFold(ref[:len(ManualReferencePrefix)], ManualReferencePrefix) {
		ref = ref[len(ManualReferencePrefix):]
	}
	return strings.TrimSpace(ref)
}

/*
  financial_transactions = immutable payment log.
  Only receipt_url and is_verified are written after insert.
*/

type FinancialTransactionModel struct {
	FinancialTransactionID        uuid.UUID       `gorm:"column:financial_transaction_id;type:uuid;primaryKey" json:"financial_transaction_id"`
	FinancialTransactionStudentID uuid.UUID       `gorm:"column:financial_transaction_student_id;type:uuid;not null;index" json:"financial_transaction_student_id"`
	FinancialTransactionClassID   *uuid.UUID      `gorm:"column:financial_transaction_class_id;type:uuid;index" json:"financial_transaction_class_id"`
	FinancialTransactionType      TransactionType `gorm:"column:financial_transaction_type;type:varchar(20);not null" json:"financial_transaction_type"`
	FinancialTransactionMethod    string          `gorm:"column:financial_transaction_payment_method;type:varchar(30);not null" json:"financial_transaction_payment_method"`
	FinancialTransactionAmount    decimal.Decimal `gorm:"column:financial_transaction_amount;type:numeric(14,2);not null" json:"financial_transaction_amount"`

	FinancialTransactionGatewayReference string `gorm:"column:financial_transaction_gateway_reference;type:varchar(120);not null" json:"financial_transaction_gateway_reference"`
	FinancialTransactionReferenceKey     string `gorm:"column:financial_transaction_reference_key;type:varchar(120);not null;uniqueIndex:uq_financial_transaction_reference_key" json:"-"`

	FinancialTransactionDescription string     `gorm:"column:financial_transaction_description;type:text" json:"financial_transaction_description"`
	FinancialTransactionStatus      string     `gorm:"column:financial_transaction_status;type:varchar(20);not null" json:"financial_transaction_status"`
	FinancialTransactionIsVerified  bool       `gorm:"column:financial_transaction_is_verified;not null;default:false" json:"financial_transaction_is_verified"`
	FinancialTransactionReceiptURL  *string    `gorm:"column:financial_transaction_receipt_url" json:"financial_transaction_receipt_url"`
	FinancialTransactionRecordedBy  *uuid.UUID `gorm:"column:financial_transaction_recorded_by;type:uuid" json:"financial_transaction_recorded_by"`

	FinancialTransactionCreatedAt time.Time `gorm:"column:financial_transaction_created_at;autoCreateTime;index" json:"financial_transaction_created_at"`
}

func (FinancialTransactionModel) TableName() string { return "financial_transactions" }

func (m *FinancialTransactionModel) BeforeCreate(tx *gorm.DB) error {
	if m.FinancialTransactionID == uuid.Nil {
		m.FinancialTransactionID = uuid.New()
	}
	m.FinancialTransactionReferenceKey = ReferenceKey(m.FinancialTransactionGatewayReference)
	if m.FinancialTransactionStatus == "" {
		m.FinancialTransactionStatus = TransactionStatusCompleted
	}
	return nil
}
