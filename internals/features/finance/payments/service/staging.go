package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"impactacademy_backend/internals/features/finance/finerr"
	"impactacademy_backend/internals/features/finance/payments/model"
	helper "impactacademy_backend/internals/helpers"
)

// StagingKind names the table a staged payment lives in.
type StagingKind string

const (
	StagingVerification StagingKind = "verification"
	StagingManual       StagingKind = "manual"
)

func (k StagingKind) Valid() bool { return k == StagingVerification || k == StagingManual }

func (k StagingKind) table() string {
	if k == StagingManual {
		return model.ManualPaymentEntryModel{}.TableName()
	}
	return model.PaymentVerificationModel{}.TableName()
}

func (k StagingKind) col(name string) string {
	if k == StagingManual {
		return "manual_entry_" + name
	}
	return "verification_" + name
}

// stagedPayment is the common view the reconciler works on, whichever
// table the claim came from.
type stagedPayment struct {
	Kind        StagingKind
	ID          uuid.UUID
	StudentID   uuid.UUID
	ProgramID   *uuid.UUID
	CourseID    *uuid.UUID
	ClassID     *uuid.UUID
	PaymentType model.PaymentType
	Amount      decimal.Decimal
	Reference   string
	Method      string
	Status      model.StagingStatus
}

func fromVerification(m *model.PaymentVerificationModel) *stagedPayment {
	return &stagedPayment{
		Kind:        StagingVerification,
		ID:          m.VerificationID,
		StudentID:   m.VerificationStudentID,
		ProgramID:   m.VerificationProgramID,
		CourseID:    m.VerificationCourseID,
		ClassID:     m.VerificationClassID,
		PaymentType: m.VerificationType,
		Amount:      m.VerificationAmount,
		Reference:   m.VerificationReference,
		Method:      m.VerificationMethod,
		Status:      m.VerificationStatus,
	}
}

func fromManual(m *model.ManualPaymentEntryModel) *stagedPayment {
	return &stagedPayment{
		Kind:        StagingManual,
		ID:          m.ManualEntryID,
		StudentID:   m.ManualEntryStudentID,
		ProgramID:   m.ManualEntryProgramID,
		CourseID:    m.ManualEntryCourseID,
		ClassID:     m.ManualEntryClassID,
		PaymentType: m.ManualEntryType,
		Amount:      m.ManualEntryAmount,
		Reference:   m.ManualEntryReference,
		Method:      m.ManualEntryMethod,
		Status:      m.ManualEntryStatus,
	}
}

// lockStaged loads a staging row under a row lock.
func lockStaged(ctx context.Context, tx *gorm.DB, kind StagingKind, id uuid.UUID) (*stagedPayment, error) {
	q := helper.ForUpdate(tx.WithContext(ctx)).Where(kind.col("id")+" = ?", id)
	var err error
	var sp *stagedPayment
	switch kind {
	case StagingManual:
		var m model.ManualPaymentEntryModel
		if err = q.Take(&m).Error; err == nil {
			sp = fromManual(&m)
		}
	default:
		var m model.PaymentVerificationModel
		if err = q.Take(&m).Error; err == nil {
			sp = fromVerification(&m)
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, finerr.NotFound("%s payment %s not found", kind, id)
	}
	if err != nil {
		return nil, finerr.Persistence(err, "load %s payment", kind)
	}
	return sp, nil
}

// validate checks the fields each payment type needs. Failing here happens
// before any write.
func (sp *stagedPayment) validate() error {
	switch {
	case sp.StudentID == uuid.Nil:
		return finerr.Validation("student_id is required")
	case sp.Reference == "":
		return finerr.Validation("payment_reference is required")
	case !sp.Amount.IsPositive():
		return finerr.Validation("amount must be positive")
	}
	switch sp.PaymentType {
	case model.PaymentTypeRegistration:
		if sp.ProgramID == nil || *sp.ProgramID == uuid.Nil {
			return finerr.Validation("program_id is required for registration payments")
		}
	case model.PaymentTypeCourse:
		if sp.CourseID == nil || *sp.CourseID == uuid.Nil || sp.ClassID == nil || *sp.ClassID == uuid.Nil {
			return finerr.Validation("course_id and class_id are required for course payments")
		}
	default:
		return finerr.Validation("unknown payment type %q", sp.PaymentType)
	}
	return nil
}

func markVerified(ctx context.Context, tx *gorm.DB, kind StagingKind, id uuid.UUID, verifiedBy *uuid.UUID, txnID *uuid.UUID, now time.Time) error {
	updates := map[string]any{
		kind.col("status"):      model.StagingVerified,
		kind.col("verified_by"): verifiedBy,
		kind.col("verified_at"): now,
		kind.col("updated_at"):  now,
	}
	if txnID != nil {
		updates[kind.col("transaction_id")] = *txnID
	}
	res := tx.WithContext(ctx).
		Table(kind.table()).
		Where(kind.col("id")+" = ? AND "+kind.col("status")+" <> ?", id, model.StagingRejected).
		Updates(updates)
	if res.Error != nil {
		return finerr.Persistence(res.Error, "mark %s payment verified", kind)
	}
	return nil
}

func markRejected(ctx context.Context, tx *gorm.DB, kind StagingKind, id uuid.UUID, by *uuid.UUID, reason string, now time.Time) (bool, error) {
	res := tx.WithContext(ctx).
		Table(kind.table()).
		Where(kind.col("id")+" = ? AND "+kind.col("status")+" = ?", id, model.StagingPending).
		Updates(map[string]any{
			kind.col("status"):           model.StagingRejected,
			kind.col("verified_by"):      by,
			kind.col("verified_at"):      now,
			kind.col("rejection_reason"): reason,
			kind.col("updated_at"):       now,
		})
	if res.Error != nil {
		return false, finerr.Persistence(res.Error, "reject %s payment", kind)
	}
	return res.RowsAffected == 1, nil
}
