// file: internals/features/finance/invoices/dto/invoice_dto.go
package dto

import (
	"strings"

	"github.com/google/uuid"

	"impactacademy_backend/internals/features/finance/invoices/model"
)

type GenerateInvoiceRequest struct {
	StudentID   uuid.UUID `json:"student_id" validate:"required"`
	ClassID     uuid.UUID `json:"class_id" validate:"required"`
	InvoiceType string    `json:"invoice_type" validate:"required,oneof=registration tuition tuition_block1 tuition_block2 tuition_term1 tuition_term2 tuition_term3"`
	// SkipGuard lets staff bypass the open-invoice check; the store still
	// refuses a second open invoice of the same type.
	SkipGuard bool `json:"skip_guard"`
}

func (r *GenerateInvoiceRequest) Normalize() {
	r.InvoiceType = strings.ToLower(strings.TrimSpace(r.InvoiceType))
}

func (r GenerateInvoiceRequest) Type() model.InvoiceType { return model.InvoiceType(r.InvoiceType) }
