// file: internals/features/finance/payments/dto/payment_dto.go
package dto

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"impactacademy_backend/internals/features/finance/payments/model"
	"impactacademy_backend/internals/features/finance/payments/service"
)

/* =========================================================
   Manual entries
========================================================= */

type CreateManualEntryRequest struct {
	StudentID     uuid.UUID       `json:"student_id" validate:"required"`
	ProgramID     *uuid.UUID      `json:"program_id"`
	CourseID      *uuid.UUID      `json:"course_id"`
	ClassID       *uuid.UUID      `json:"class_id"`
	PaymentType   string          `json:"payment_type" validate:"required,oneof=registration course"`
	Amount        decimal.Decimal `json:"amount"`
	Reference     string          `json:"payment_reference" validate:"required,max=120"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,oneof=bank_transfer cash qris gateway"`
	Notes         string          `json:"notes" validate:"max=1000"`

	// ReconcileNow reconciles the entry in the same request.
	ReconcileNow bool `json:"reconcile_now"`
}

func nilIfZero(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}

func (r *CreateManualEntryRequest) Normalize() {
	r.PaymentType = strings.ToLower(strings.TrimSpace(r.PaymentType))
	r.PaymentMethod = strings.ToLower(strings.TrimSpace(r.PaymentMethod))
	r.Reference = strings.TrimSpace(r.Reference)
	r.Notes = strings.TrimSpace(r.Notes)
	r.ProgramID = nilIfZero(r.ProgramID)
	r.CourseID = nilIfZero(r.CourseID)
	r.ClassID = nilIfZero(r.ClassID)
}

func (r CreateManualEntryRequest) ToInput() service.ManualEntryInput {
	return service.ManualEntryInput{
		StudentID:   r.StudentID,
		ProgramID:   r.ProgramID,
		CourseID:    r.CourseID,
		ClassID:     r.ClassID,
		PaymentType: model.PaymentType(r.PaymentType),
		Amount:      r.Amount,
		Reference:   r.Reference,
		Method:      r.PaymentMethod,
		Notes:       r.Notes,
	}
}

type RejectPaymentRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

/* =========================================================
   Checkout
========================================================= */

type CheckoutRequest struct {
	PaymentType string     `json:"payment_type" validate:"required,oneof=registration course"`
	ProgramID   *uuid.UUID `json:"program_id"`
	CourseID    *uuid.UUID `json:"course_id"`
	ClassID     *uuid.UUID `json:"class_id"`

	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"max=30"`
}

func (r *CheckoutRequest) Normalize() {
	r.PaymentType = strings.ToLower(strings.TrimSpace(r.PaymentType))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.ProgramID = nilIfZero(r.ProgramID)
	r.CourseID = nilIfZero(r.CourseID)
	r.ClassID = nilIfZero(r.ClassID)
}

func (r CheckoutRequest) ToInput(studentID uuid.UUID) service.CheckoutInput {
	return service.CheckoutInput{
		StudentID:   studentID,
		PaymentType: model.PaymentType(r.PaymentType),
		ProgramID:   r.ProgramID,
		CourseID:    r.CourseID,
		ClassID:     r.ClassID,
		Customer: service.Customer{
			FirstName: r.FirstName,
			LastName:  r.LastName,
			Email:     r.Email,
			Phone:     r.Phone,
		},
	}
}
