// file: internals/features/finance/transactions/dto/transaction_dto.go
package dto

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"impactacademy_backend/internals/features/finance/transactions/model"
	"impactacademy_backend/internals/features/finance/transactions/service"
)

type RecordTransactionRequest struct {
	StudentID       uuid.UUID       `json:"student_id" validate:"required"`
	ClassID         *uuid.UUID      `json:"class_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethod   string          `json:"payment_method" validate:"required,oneof=cash bank_transfer gateway pos cheque other"`
	TransactionType string          `json:"transaction_type" validate:"required,oneof=registration tuition course other"`
	Description     string          `json:"description" validate:"max=500"`
	Reference       string          `json:"reference" validate:"max=120"`
}

func (r *RecordTransactionRequest) Normalize() {
	r.PaymentMethod = strings.ToLower(strings.TrimSpace(r.PaymentMethod))
	r.TransactionType = strings.ToLower(strings.TrimSpace(r.TransactionType))
	r.Description = strings.TrimSpace(r.Description)
	r.Reference = strings.TrimSpace(r.Reference)
	if r.ClassID != nil && *r.ClassID == uuid.Nil {
		r.ClassID = nil
	}
}

func (r RecordTransactionRequest) ToInput() service.RecordInput {
	return service.RecordInput{
		StudentID:   r.StudentID,
		ClassID:     r.ClassID,
		Amount:      r.Amount,
		Method:      r.PaymentMethod,
		Type:        model.TransactionType(r.TransactionType),
		Description: r.Description,
		Reference:   r.Reference,
	}
}
