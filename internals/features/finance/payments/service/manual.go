package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"impactacademy_backend/internals/features/finance/finerr"
	notifModel "impactacademy_backend/internals/features/finance/notifications/model"
	notifService "impactacademy_backend/internals/features/finance/notifications/service"
	"impactacademy_backend/internals/features/finance/payments/model"
	helper "impactacademy_backend/internals/helpers"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

type ManualEntryInput struct {
	StudentID   uuid.UUID
	ProgramID   *uuid.UUID
	CourseID    *uuid.UUID
	ClassID     *uuid.UUID
	PaymentType model.PaymentType
	Amount      decimal.Decimal
	Reference   string
	Method      string
	Notes       string
}

// CreateManualEntry stages a payment typed in by finance staff. A reference
// that was already staged returns the existing row with an
// AlreadyProcessed error, so double submits of the form are harmless.
func (s *Service) CreateManualEntry(ctx context.Context, actor helperAuth.Actor, in ManualEntryInput) (*model.ManualPaymentEntryModel, error) {
	in.Reference = strings.TrimSpace(in.Reference)
	in.Method = strings.ToLower(strings.TrimSpace(in.Method))
	if in.Method == "" {
		in.Method = model.MethodBankTransfer
	}
	sp := &stagedPayment{
		Kind:        StagingManual,
		StudentID:   in.StudentID,
		ProgramID:   in.ProgramID,
		CourseID:    in.CourseID,
		ClassID:     in.ClassID,
		PaymentType: in.PaymentType,
		Amount:      in.Amount,
		Reference:   in.Reference,
		Method:      in.Method,
	}
	if err := sp.validate(); err != nil {
		return nil, err
	}

	row := &model.ManualPaymentEntryModel{
		ManualEntryStudentID: in.StudentID,
		ManualEntryProgramID: in.ProgramID,
		ManualEntryCourseID:  in.CourseID,
		ManualEntryClassID:   in.ClassID,
		ManualEntryType:      in.PaymentType,
		ManualEntryAmount:    in.Amount.Round(2),
		ManualEntryReference: in.Reference,
		ManualEntryMethod:    in.Method,
		ManualEntryCreatedBy: actor.UserIDPtr(),
	}
	if n := strings.TrimSpace(in.Notes); n != "" {
		row.ManualEntryNotes = &n
	}

	db := s.DB.WithContext(ctx)
	if err := db.Create(row).Error; err != nil {
		if !helper.IsUniqueViolation(err) {
			return nil, finerr.Persistence(err, "create manual payment entry")
		}
		var existing model.ManualPaymentEntryModel
		if ferr := db.Where("manual_entry_payment_reference = ?", in.Reference).Take(&existing).Error; ferr != nil {
			return nil, finerr.Persistence(ferr, "load manual payment entry")
		}
		return &existing, finerr.AlreadyProcessed("manual payment %s already entered", in.Reference)
	}

	if s.Activity != nil {
		if err := s.Activity.LogFinancialActivity(ctx, notifService.ActivityEntry{
			Actor:       actor,
			Action:      notifService.ActionManualEntry,
			Description: fmt.Sprintf("Manual %s payment %s entered", in.PaymentType, in.Reference),
			StudentID:   &in.StudentID,
			ClassID:     in.ClassID,
			Meta:        map[string]any{"manual_entry_id": row.ManualEntryID.String(), "amount": row.ManualEntryAmount.StringFixed(2)},
		}); err != nil {
			s.Log.Warn("activity log failed", zap.Error(err))
		}
	}
	return row, nil
}

// RejectPayment closes a pending staging row without touching the ledger.
// Rejecting twice is a no-op; rejecting a verified payment is a Conflict.
func (s *Service) RejectPayment(ctx context.Context, actor helperAuth.Actor, kind StagingKind, id uuid.UUID, reason string) error {
	if !kind.Valid() {
		return finerr.Validation("unknown staging kind %q", kind)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return finerr.Validation("rejection reason is required")
	}
	now := s.now()
	outbox := notifService.NewOutbox()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		outbox.Reset()
		sp, err := lockStaged(ctx, tx, kind, id)
		if err != nil {
			return err
		}
		switch sp.Status {
		case model.StagingVerified:
			return finerr.Conflict("%s payment %s is already verified", kind, id)
		case model.StagingRejected:
			return nil
		}
		changed, err := markRejected(ctx, tx, kind, id, actor.UserIDPtr(), reason, now)
		if err != nil || !changed {
			return err
		}
		outbox.Notify(sp.StudentID,
			"Payment rejected",
			fmt.Sprintf("Your payment with reference %s was rejected: %s", sp.Reference, reason),
			notifModel.CategoryPayment,
		)
		outbox.Activity(notifService.ActivityEntry{
			Actor:       actor,
			Action:      notifService.ActionPaymentRejected,
			Description: fmt.Sprintf("Rejected %s payment %s", kind, sp.Reference),
			StudentID:   &sp.StudentID,
			ClassID:     sp.ClassID,
			Meta:        map[string]any{"staging_id": id.String(), "reason": reason},
		})
		return nil
	})
	if err != nil {
		return err
	}
	outbox.Flush(ctx, s.Notifier, s.Activity, s.Log)
	return nil
}

// FindVerificationByReference returns nil when nothing is staged under ref.
func FindVerificationByReference(ctx context.Context, db *gorm.DB, ref string) (*model.PaymentVerificationModel, error) {
	var v model.PaymentVerificationModel
	err := db.WithContext(ctx).Where("verification_payment_reference = ?", ref).Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, finerr.Persistence(err, "lookup payment verification")
	}
	return &v, nil
}
