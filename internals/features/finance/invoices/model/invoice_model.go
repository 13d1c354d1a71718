// file: internals/features/finance/invoices/model/invoice_model.go
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// =========================================================
// ENUM
// =========================================================

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePartial InvoiceStatus = "partial"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

// OpenStatuses = status yang masih menunggu pembayaran
var OpenStatuses = []InvoiceStatus{InvoicePending, InvoicePartial, InvoiceOverdue}

type InvoiceType string

const (
	InvoiceRegistration  InvoiceType = "registration"
	InvoiceTuition       InvoiceType = "tuition"
	InvoiceTuitionBlock1 InvoiceType = "tuition_block1"
	InvoiceTuitionBlock2 InvoiceType = "tuition_block2"
	InvoiceTuitionTerm1  InvoiceType = "tuition_term1"
	InvoiceTuitionTerm2  InvoiceType = "tuition_term2"
	InvoiceTuitionTerm3  InvoiceType = "tuition_term3"
	InvoiceLateFee       InvoiceType = "late_fee"
)

func (t InvoiceType) Valid() bool {
	switch t {
	case InvoiceRegistration, InvoiceTuition, InvoiceTuitionBlock1, InvoiceTuitionBlock2,
		InvoiceTuitionTerm1, InvoiceTuitionTerm2, InvoiceTuitionTerm3, InvoiceLateFee:
		return true
	}
	return false
}

// BlockInvoiceType maps a ledger block to the invoice type that bills it.
func BlockInvoiceType(onsite bool, block int) InvoiceType {
	if onsite {
		return InvoiceType(fmt.Sprintf("tuition_term%d", block))
	}
	return InvoiceType(fmt.Sprintf("tuition_block%d", block))
}

// OpenKey is unique while an invoice is unpaid: one open invoice per
// (student, class, type). Late fees are keyed by their parent instead.
func OpenKey(studentID, classID uuid.UUID, t InvoiceType) string {
	return strings.Join([]string{studentID.String(), classID.String(), string(t)}, "|")
}

// =========================================================
// MODEL
// =========================================================

type InvoiceModel struct {
	InvoiceID        uuid.UUID   `gorm:"column:invoice_id;type:uuid;primaryKey" json:"invoice_id"`
	InvoiceNumber    string      `gorm:"column:invoice_number;type:varchar(40);not null;uniqueIndex:uq_invoice_number" json:"invoice_number"`
	InvoiceStudentID uuid.UUID   `gorm:"column:invoice_student_id;type:uuid;not null;index:ix_invoice_student_class" json:"invoice_student_id"`
	InvoiceClassID   uuid.UUID   `gorm:"column:invoice_class_id;type:uuid;not null;index:ix_invoice_student_class" json:"invoice_class_id"`
	InvoiceType      InvoiceType `gorm:"column:invoice_type;type:varchar(30);not null" json:"invoice_type"`

	InvoiceAmount     decimal.Decimal `gorm:"column:invoice_amount;type:numeric(14,2);not null" json:"invoice_amount"`
	InvoicePaidAmount decimal.Decimal `gorm:"column:invoice_paid_amount;type:numeric(14,2);not null" json:"invoice_paid_amount"`
	InvoiceBalance    decimal.Decimal `gorm:"column:invoice_balance;type:numeric(14,2);not null" json:"invoice_balance"`

	InvoiceDueDate time.Time     `gorm:"column:invoice_due_date;not null;index" json:"invoice_due_date"`
	InvoiceStatus  InvoiceStatus `gorm:"column:invoice_status;type:varchar(20);not null;index" json:"invoice_status"`
	InvoicePaidAt  *time.Time    `gorm:"column:invoice_paid_at" json:"invoice_paid_at,omitempty"`

	// maksimal satu denda per invoice
	InvoiceParentID *uuid.UUID `gorm:"column:invoice_parent_invoice_id;type:uuid;uniqueIndex:uq_invoice_parent" json:"invoice_parent_invoice_id,omitempty"`
	InvoiceOpenKey  *string    `gorm:"column:invoice_open_key;type:varchar(120);uniqueIndex:uq_invoice_open_key" json:"-"`

	InvoiceLastReminderSent *time.Time `gorm:"column:invoice_last_reminder_sent" json:"invoice_last_reminder_sent,omitempty"`
	InvoiceCreatedBy        *uuid.UUID `gorm:"column:invoice_created_by;type:uuid" json:"invoice_created_by,omitempty"`

	InvoiceCreatedAt time.Time `gorm:"column:invoice_created_at;autoCreateTime" json:"invoice_created_at"`
	InvoiceUpdatedAt time.Time `gorm:"column:invoice_updated_at;autoUpdateTime" json:"invoice_updated_at"`
}

func (InvoiceModel) TableName() string { return "invoices" }

func (m *InvoiceModel) BeforeCreate(tx *gorm.DB) error {
	if m.InvoiceID == uuid.Nil {
		m.InvoiceID = uuid.New()
	}
	if m.InvoiceStatus == "" {
		m.InvoiceStatus = InvoicePending
	}
	m.InvoiceBalance = m.InvoiceAmount.Sub(m.InvoicePaidAmount)
	return nil
}

// Settle membayar invoice maksimal sebesar amount, sisanya dikembalikan.
func (m *InvoiceModel) Settle(amount decimal.Decimal, now time.Time) decimal.Decimal {
	if !amount.IsPositive() || !m.InvoiceBalance.IsPositive() {
		return amount
	}
	take := decimal.Min(amount, m.InvoiceBalance)
	m.InvoicePaidAmount = m.InvoicePaidAmount.Add(take)
	m.InvoiceBalance = m.InvoiceAmount.Sub(m.InvoicePaidAmount)
	if m.InvoiceBalance.IsPositive() {
		if m.InvoiceStatus == InvoicePending {
			m.InvoiceStatus = InvoicePartial
		}
	} else {
		t := now
		m.InvoiceStatus = InvoicePaid
		m.InvoicePaidAt = &t
		m.InvoiceOpenKey = nil
	}
	return amount.Sub(take)
}

func (m *InvoiceModel) IsOpen() bool {
	for _, s := range OpenStatuses {
		if m.InvoiceStatus == s {
			return true
		}
	}
	return false
}
