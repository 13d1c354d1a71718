// file: internals/features/finance/payments/model/payment_record_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

/*
  registration_payments / course_payments = revenue ledgers.
  One row per external reference, written by the reconciler only.
  Deductions sum these tables per month.
*/

type RegistrationPaymentModel struct {
	RegistrationPaymentID            uuid.UUID       `gorm:"column:registration_payment_id;type:uuid;primaryKey" json:"registration_payment_id"`
	RegistrationPaymentStudentID     uuid.UUID       `gorm:"column:registration_payment_student_id;type:uuid;not null;index" json:"registration_payment_student_id"`
	RegistrationPaymentProgramID     uuid.UUID       `gorm:"column:registration_payment_program_id;type:uuid;not null" json:"registration_payment_program_id"`
	RegistrationPaymentClassID       *uuid.UUID      `gorm:"column:registration_payment_class_id;type:uuid" json:"registration_payment_class_id"`
	RegistrationPaymentAmount        decimal.Decimal `gorm:"column:registration_payment_amount;type:numeric(14,2);not null" json:"registration_payment_amount"`
	RegistrationPaymentReference     string          `gorm:"column:registration_payment_reference;type:varchar(120);not null;uniqueIndex:uq_registration_payment_reference" json:"registration_payment_reference"`
	RegistrationPaymentMethod        string          `gorm:"column:registration_payment_method;type:varchar(30);not null" json:"registration_payment_method"`
	RegistrationPaymentStatus        string          `gorm:"column:registration_payment_status;type:varchar(20);not null" json:"registration_payment_status"`
	RegistrationPaymentPaidAt        time.Time       `gorm:"column:registration_payment_paid_at;not null;index" json:"registration_payment_paid_at"`
	RegistrationPaymentTransactionID *uuid.UUID      `gorm:"column:registration_payment_transaction_id;type:uuid" json:"registration_payment_transaction_id"`

	RegistrationPaymentCreatedAt time.Time `gorm:"column:registration_payment_created_at;autoCreateTime" json:"registration_payment_created_at"`
}

func (RegistrationPaymentModel) TableName() string { return "registration_payments" }

func (m *RegistrationPaymentModel) BeforeCreate(tx *gorm.DB) error {
	if m.RegistrationPaymentID == uuid.Nil {
		m.RegistrationPaymentID = uuid.New()
	}
	if m.RegistrationPaymentStatus == "" {
		m.RegistrationPaymentStatus = PaymentRecordCompleted
	}
	return nil
}

type CoursePaymentModel struct {
	CoursePaymentID            uuid.UUID       `gorm:"column:course_payment_id;type:uuid;primaryKey" json:"course_payment_id"`
	CoursePaymentStudentID     uuid.UUID       `gorm:"column:course_payment_student_id;type:uuid;not null;index" json:"course_payment_student_id"`
	CoursePaymentCourseID      uuid.UUID       `gorm:"column:course_payment_course_id;type:uuid;not null" json:"course_payment_course_id"`
	CoursePaymentClassID       uuid.UUID       `gorm:"column:course_payment_class_id;type:uuid;not null" json:"course_payment_class_id"`
	CoursePaymentAmount        decimal.Decimal `gorm:"column:course_payment_amount;type:numeric(14,2);not null" json:"course_payment_amount"`
	CoursePaymentReference     string          `gorm:"column:course_payment_reference;type:varchar(120);not null;uniqueIndex:uq_course_payment_reference" json:"course_payment_reference"`
	CoursePaymentMethod        string          `gorm:"column:course_payment_method;type:varchar(30);not null" json:"course_payment_method"`
	CoursePaymentStatus        string          `gorm:"column:course_payment_status;type:varchar(20);not null" json:"course_payment_status"`
	CoursePaymentPaidAt        time.Time       `gorm:"column:course_payment_paid_at;not null;index" json:"course_payment_paid_at"`
	CoursePaymentTransactionID *uuid.UUID      `gorm:"column:course_payment_transaction_id;type:uuid" json:"course_payment_transaction_id"`

	CoursePaymentCreatedAt time.Time `gorm:"column:course_payment_created_at;autoCreateTime" json:"course_payment_created_at"`
}

func (CoursePaymentModel) TableName() string { return "course_payments" }

func (m *CoursePaymentModel) BeforeCreate(tx *gorm.DB) error {
	if m.CoursePaymentID == uuid.Nil {
		m.CoursePaymentID = uuid.New()
	}
	if m.CoursePaymentStatus == "" {
		m.CoursePaymentStatus = PaymentRecordCompleted
	}
	return nil
}
