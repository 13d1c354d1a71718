package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"impactacademy_backend/internals/features/finance/finerr"
	"impactacademy_backend/internals/features/finance/invoices/model"
	helper "impactacademy_backend/internals/helpers"
)

// SettleInvoices spreads a payment over the open invoices of (student,
// class), oldest due date first, inside the caller's transaction. It
// returns the invoices it touched.
func SettleInvoices(ctx context.Context, tx *gorm.DB, studentID, classID uuid.UUID, amount decimal.Decimal, now time.Time) ([]model.InvoiceModel, error) {
	if !amount.IsPositive() {
		return nil, nil
	}
	var open []model.InvoiceModel
	if err := helper.ForUpdate(tx.WithContext(ctx)).
		Where("invoice_student_id = ? AND invoice_class_id = ?", studentID, classID).
		Where("invoice_status IN ?", model.OpenStatuses).
		Order("invoice_due_date ASC").
		Order("invoice_created_at ASC").
		Find(&open).Error; err != nil {
		return nil, finerr.Persistence(err, "load open invoices")
	}

	var touched []model.InvoiceModel
	left := amount
	for i := range open {
		if !left.IsPositive() {
			break
		}
		inv := &open[i]
		left = inv.Settle(left, now)
		if err := tx.WithContext(ctx).Save(inv).Error; err != nil {
			return nil, finerr.Persistence(err, "settle invoice %s", inv.InvoiceNumber)
		}
		touched = append(touched, *inv)
	}
	return touched, nil
}
