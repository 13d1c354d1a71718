package service

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"impactacademy_backend/internals/features/finance/finerr"
	"impactacademy_backend/internals/features/finance/notifications/model"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

const (
	ActionPaymentRecorded   = "payment_recorded"
	ActionPaymentReconciled = "payment_reconciled"
	ActionPaymentRejected   = "payment_rejected"
	ActionManualEntry       = "manual_entry_created"
	ActionInvoiceGenerated  = "invoice_generated"
	ActionLateFee           = "late_fee_generated"
	ActionSuspended         = "student_suspended"
	ActionDeduction         = "deduction_generated"
)

type ActivityEntry struct {
	Actor         helperAuth.Actor
	Action        string
	Description   string
	StudentID     *uuid.UUID
	ClassID       *uuid.UUID
	TransactionID *uuid.UUID
	Meta          map[string]any
}

// ActivityLogger appends to financial_activity_logs.
type ActivityLogger struct {
	db *gorm.DB
}

func NewActivityLogger(db *gorm.DB) *ActivityLogger {
	return &ActivityLogger{db: db}
}

func (a *ActivityLogger) LogFinancialActivity(ctx context.Context, e ActivityEntry) error {
	row := model.FinancialActivityLogModel{
		ActivityActorID:       e.Actor.UserIDPtr(),
		ActivityActorRole:     e.Actor.Role,
		ActivityAction:        e.Action,
		ActivityDescription:   e.Description,
		ActivityStudentID:     e.StudentID,
		ActivityClassID:       e.ClassID,
		ActivityTransactionID: e.TransactionID,
	}
	if row.ActivityActorRole == "" {
		row.ActivityActorRole = helperAuth.RoleSystem
	}
	if len(e.Meta) > 0 {
		row.ActivityMeta = datatypes.JSONMap(e.Meta)
	}
	if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
		return finerr.Persistence(err, "append activity log")
	}
	return nil
}
