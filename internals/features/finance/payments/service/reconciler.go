// file: internals/features/finance/payments/service/reconciler.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	enrollModel "impactacademy_backend/internals/features/finance/enrollments/model"
	"impactacademy_backend/internals/features/finance/finerr"
	invoiceService "impactacademy_backend/internals/features/finance/invoices/service"
	ledgerModel "impactacademy_backend/internals/features/finance/ledger/model"
	ledgerService "impactacademy_backend/internals/features/finance/ledger/service"
	notifModel "impactacademy_backend/internals/features/finance/notifications/model"
	notifService "impactacademy_backend/internals/features/finance/notifications/service"
	"impactacademy_backend/internals/features/finance/payments/model"
	receiptService "impactacademy_backend/internals/features/finance/receipts/service"
	transModel "impactacademy_backend/internals/features/finance/transactions/model"
	transService "impactacademy_backend/internals/features/finance/transactions/service"
	helper "impactacademy_backend/internals/helpers"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

type Service struct {
	DB       *gorm.DB
	Gateway  PaymentGateway
	Receipts *receiptService.Issuer
	Notifier notifService.Notifier
	Activity *notifService.ActivityLogger
	Log      *zap.Logger
	Now      func() time.Time

	// ServerKey untuk verifikasi signature webhook.
	ServerKey string
}

func New(db *gorm.DB, gw PaymentGateway, receipts *receiptService.Issuer, n notifService.Notifier, act *notifService.ActivityLogger, log *zap.Logger) *Service {
	return &Service{
		DB:       db,
		Gateway:  gw,
		Receipts: receipts,
		Notifier: n,
		Activity: act,
		Log:      log.Named("payments"),
		Now:      time.Now,
	}
}

func (s *Service) now() time.Time { return s.Now().UTC() }

type ReconcileResult struct {
	Kind      StagingKind `json:"kind"`
	StagingID uuid.UUID   `json:"staging_id"`
	Reference string      `json:"payment_reference"`
	// AlreadyProcessed: referensi sudah pernah direkonsiliasi, panggilan
	// ini hanya mengubah status staging.
	AlreadyProcessed bool                                  `json:"already_processed"`
	Transaction      *transModel.FinancialTransactionModel `json:"transaction,omitempty"`
	Status           *ledgerModel.FinancialStatusModel     `json:"financial_status,omitempty"`
	SettledInvoices  []uuid.UUID                           `json:"settled_invoices,omitempty"`
}

// ProcessPaymentVerification merekonsiliasi pembayaran dari gateway.
func (s *Service) ProcessPaymentVerification(ctx context.Context, actor helperAuth.Actor, id uuid.UUID) (*ReconcileResult, error) {
	return s.Reconcile(ctx, actor, StagingVerification, id)
}

// ProcessManualPayment merekonsiliasi pembayaran yang diinput staf.
func (s *Service) ProcessManualPayment(ctx context.Context, actor helperAuth.Actor, id uuid.UUID) (*ReconcileResult, error) {
	return s.Reconcile(ctx, actor, StagingManual, id)
}

// Reconcile turns a staged payment into exactly one transaction and one
// ledger mutation per payment reference. Calling it again, or racing it
// against another path carrying the same reference, returns a result with
// AlreadyProcessed set and leaves the ledger alone. Any failure rolls the
// whole unit back and leaves the staging row pending, so a retry is safe.
func (s *Service) Reconcile(ctx context.Context, actor helperAuth.Actor, kind StagingKind, id uuid.UUID) (*ReconcileResult, error) {
	if !kind.Valid() {
		return nil, finerr.Validation("unknown staging kind %q", kind)
	}
	now := s.now()
	outbox := notifService.NewOutbox()
	var res *ReconcileResult

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		outbox.Reset()
		res = &ReconcileResult{Kind: kind, StagingID: id}
		return s.reconcileTx(ctx, tx, actor, kind, id, res, outbox, now)
	})
	if finerr.IsAlreadyProcessed(err) {
		// kalah race unique key dengan jalur lain; attempt ini sudah di-rollback
		return s.adoptExisting(ctx, actor, kind, id, now)
	}
	if err != nil {
		s.Log.Error("reconcile failed",
			zap.String("kind", string(kind)), zap.Stringer("id", id),
			zap.String("error_kind", finerr.KindOf(err).String()), zap.Error(err))
		return nil, err
	}
	if !res.AlreadyProcessed {
		outbox.Flush(ctx, s.Notifier, s.Activity, s.Log)
	}
	return res, nil
}

func (s *Service) reconcileTx(ctx context.Context, tx *gorm.DB, actor helperAuth.Actor, kind StagingKind, id uuid.UUID, res *ReconcileResult, outbox *notifService.Outbox, now time.Time) error {
	// 1) baris staging, dikunci sampai unit selesai
	sp, err := lockStaged(ctx, tx, kind, id)
	if err != nil {
		return err
	}
	res.Reference = sp.Reference
	switch sp.Status {
	case model.StagingVerified:
		res.AlreadyProcessed = true
		res.Transaction, err = transService.FindByReference(ctx, tx, sp.Reference)
		return err
	case model.StagingRejected:
		return finerr.New(finerr.KindRejected, "%s payment %s was rejected", kind, id)
	}

	// 2) transaksi dengan referensi ini dari jalur mana pun
	existing, err := transService.FindByReference(ctx, tx, sp.Reference)
	if err != nil {
		return err
	}
	if existing != nil {
		res.AlreadyProcessed = true
		res.Transaction = existing
		return markVerified(ctx, tx, kind, id, actor.UserIDPtr(), &existing.FinancialTransactionID, now)
	}

	// 3) registrasi juga punya ledger sendiri
	if sp.PaymentType == model.PaymentTypeRegistration {
		var reg model.RegistrationPaymentModel
		err := tx.WithContext(ctx).
			Where("registration_payment_reference = ?", transModel.ReferenceKey(sp.Reference)).
			Take(&reg).Error
		if err == nil {
			res.AlreadyProcessed = true
			return markVerified(ctx, tx, kind, id, actor.UserIDPtr(), reg.RegistrationPaymentTransactionID, now)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return finerr.Persistence(err, "look up registration payment")
		}
	}

	// 4) belum ada yang ditulis sebelum klaim lengkap
	if err := sp.validate(); err != nil {
		return err
	}

	txnID := uuid.New()
	key := transModel.ReferenceKey(sp.Reference)
	var ledgerKind ledgerModel.PaymentKind

	// 5) cabang per tipe pembayaran
	switch sp.PaymentType {
	case model.PaymentTypeRegistration:
		ledgerKind = ledgerModel.PaymentKindRegistration
		// tanpa kelas: pakai kelas program yang sudah diikuti, bila jelas
		if sp.ClassID == nil {
			if sp.ClassID, err = ledgerService.ClassForProgram(ctx, tx, sp.StudentID, *sp.ProgramID); err != nil {
				return err
			}
		}
		if err := insertUnique(ctx, tx, &model.RegistrationPaymentModel{
			RegistrationPaymentStudentID:     sp.StudentID,
			RegistrationPaymentProgramID:     *sp.ProgramID,
			RegistrationPaymentClassID:       sp.ClassID,
			RegistrationPaymentAmount:        sp.Amount,
			RegistrationPaymentReference:     key,
			RegistrationPaymentMethod:        sp.Method,
			RegistrationPaymentPaidAt:        now,
			RegistrationPaymentTransactionID: &txnID,
		}, sp.Reference); err != nil {
			return err
		}
		if err := approveApplication(ctx, tx, sp, actor, now); err != nil {
			return err
		}
		if err := upsertEnrollment(ctx, tx, sp); err != nil {
			return err
		}
	case model.PaymentTypeCourse:
		ledgerKind = ledgerModel.PaymentKindCourse
		if err := insertUnique(ctx, tx, &model.CoursePaymentModel{
			CoursePaymentStudentID:     sp.StudentID,
			CoursePaymentCourseID:      *sp.CourseID,
			CoursePaymentClassID:       *sp.ClassID,
			CoursePaymentAmount:        sp.Amount,
			CoursePaymentReference:     key,
			CoursePaymentMethod:        sp.Method,
			CoursePaymentPaidAt:        now,
			CoursePaymentTransactionID: &txnID,
		}, sp.Reference); err != nil {
			return err
		}
	}

	if sp.ClassID != nil {
		st, _, err := ledgerService.ApplyPayment(ctx, tx, ledgerService.ApplyInput{
			StudentID: sp.StudentID,
			ClassID:   *sp.ClassID,
			Amount:    sp.Amount,
			Kind:      ledgerKind,
		}, outbox, now)
		if err != nil {
			return err
		}
		res.Status = st
	}

	// 6) baris transaksi; unique reference key menutup race
	txn := &transModel.FinancialTransactionModel{
		FinancialTransactionID:               txnID,
		FinancialTransactionStudentID:        sp.StudentID,
		FinancialTransactionClassID:          sp.ClassID,
		FinancialTransactionType:             transModel.TransactionType(sp.PaymentType),
		FinancialTransactionMethod:           sp.Method,
		FinancialTransactionAmount:           sp.Amount.Round(2),
		FinancialTransactionGatewayReference: sp.Reference,
		FinancialTransactionDescription:      fmt.Sprintf("%s payment via %s", sp.PaymentType, kind),
		FinancialTransactionStatus:           transModel.TransactionStatusCompleted,
		FinancialTransactionRecordedBy:       actor.UserIDPtr(),
		FinancialTransactionCreatedAt:        now,
	}
	if err := transService.Insert(ctx, tx, txn); err != nil {
		return err
	}
	res.Transaction = txn

	// 7) invoice terbuka di kelas ini
	if sp.ClassID != nil {
		settled, err := invoiceService.SettleInvoices(ctx, tx, sp.StudentID, *sp.ClassID, sp.Amount, now)
		if err != nil {
			return err
		}
		for _, inv := range settled {
			res.SettledInvoices = append(res.SettledInvoices, inv.InvoiceID)
		}
	}

	// 8) kuitansi
	if err := transService.IssueReceipt(ctx, tx, s.Receipts, txn, actor); err != nil {
		return err
	}

	// 9) staging selesai dipakai
	if err := markVerified(ctx, tx, kind, id, actor.UserIDPtr(), &txnID, now); err != nil {
		return err
	}

	outbox.Notify(sp.StudentID,
		"Payment confirmed",
		fmt.Sprintf("Your %s payment of %s (ref %s) has been confirmed.", sp.PaymentType, sp.Amount.StringFixed(2), sp.Reference),
		notifModel.CategoryPayment,
	)
	outbox.Activity(notifService.ActivityEntry{
		Actor:         actor,
		Action:        notifService.ActionPaymentReconciled,
		Description:   fmt.Sprintf("Reconciled %s payment %s", kind, sp.Reference),
		StudentID:     &sp.StudentID,
		ClassID:       sp.ClassID,
		TransactionID: &txnID,
		Meta:          map[string]any{"staging_id": id.String(), "amount": sp.Amount.StringFixed(2), "method": sp.Method},
	})
	return nil
}

// adoptExisting menyelesaikan rekonsiliasi yang kalah race: staging diarahkan
// ke transaksi pemenang dan dilaporkan already processed.
func (s *Service) adoptExisting(ctx context.Context, actor helperAuth.Actor, kind StagingKind, id uuid.UUID, now time.Time) (*ReconcileResult, error) {
	res := &ReconcileResult{Kind: kind, StagingID: id, AlreadyProcessed: true}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sp, err := lockStaged(ctx, tx, kind, id)
		if err != nil {
			return err
		}
		res.Reference = sp.Reference
		existing, err := transService.FindByReference(ctx, tx, sp.Reference)
		if err != nil {
			return err
		}
		var txnID *uuid.UUID
		if existing != nil {
			res.Transaction = existing
			txnID = &existing.FinancialTransactionID
		}
		if sp.Status != model.StagingPending {
			return nil
		}
		return markVerified(ctx, tx, kind, id, actor.UserIDPtr(), txnID, now)
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("reference already reconciled", zap.String("kind", string(kind)), zap.Stringer("id", id), zap.String("reference", res.Reference))
	return res, nil
}

func insertUnique(ctx context.Context, tx *gorm.DB, row any, ref string) error {
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		if helper.IsUniqueViolation(err) {
			return finerr.AlreadyProcessed("payment reference %s already recorded", ref)
		}
		return finerr.Persistence(err, "insert payment record")
	}
	return nil
}

func approveApplication(ctx context.Context, tx *gorm.DB, sp *stagedPayment, actor helperAuth.Actor, now time.Time) error {
	if err := tx.WithContext(ctx).
		Model(&enrollModel.ApplicationModel{}).
		Where("application_student_id = ? AND application_program_id = ? AND application_status = ?",
			sp.StudentID, *sp.ProgramID, enrollModel.ApplicationPending).
		Updates(map[string]any{
			"application_status":      enrollModel.ApplicationApproved,
			"application_reviewed_by": actor.UserIDPtr(),
			"application_reviewed_at": now,
		}).Error; err != nil {
		return finerr.Persistence(err, "approve application")
	}
	return nil
}

// upsertEnrollment membuat enrollment, atau kalau sudah ada untuk program
// tsb cukup ubah statusnya.
func upsertEnrollment(ctx context.Context, tx *gorm.DB, sp *stagedPayment) error {
	row := enrollModel.EnrollmentModel{
		EnrollmentStudentID: sp.StudentID,
		EnrollmentProgramID: *sp.ProgramID,
		EnrollmentClassID:   sp.ClassID,
		EnrollmentStatus:    enrollModel.EnrollmentActive,
	}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "enrollment_student_id"}, {Name: "enrollment_program_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"enrollment_status"}),
		}).
		Create(&row).Error; err != nil {
		return finerr.Persistence(err, "upsert enrollment")
	}
	return nil
}
