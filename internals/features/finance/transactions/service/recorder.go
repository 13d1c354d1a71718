// file: internals/features/finance/transactions/service/recorder.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"impactacademy_backend/internals/features/finance/finerr"
	invoiceService "impactacademy_backend/internals/features/finance/invoices/service"
	ledgerModel "impactacademy_backend/internals/features/finance/ledger/model"
	ledgerService "impactacademy_backend/internals/features/finance/ledger/service"
	notifModel "impactacademy_backend/internals/features/finance/notifications/model"
	notifService "impactacademy_backend/internals/features/finance/notifications/service"
	receiptService "impactacademy_backend/internals/features/finance/receipts/service"
	"impactacademy_backend/internals/features/finance/transactions/model"
	helper "impactacademy_backend/internals/helpers"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

// NewReference -> IDA-TXN-YYYYMMDD-HHMMSS-XXXXXXXX
func NewReference(now time.Time) string {
	return fmt.Sprintf("IDA-TXN-%s-%s",
		now.Format("20060102-150405"),
		strings.ToUpper(uuid.NewString()[:8]),
	)
}

// Insert writes one transaction row. A second row for the same reference
// key is reported as AlreadyProcessed.
func Insert(ctx context.Context, tx *gorm.DB, t *model.FinancialTransactionModel) error {
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		if helper.IsUniqueViolation(err) {
			return finerr.AlreadyProcessed("payment reference %s already has a transaction", t.FinancialTransactionGatewayReference)
		}
		return finerr.Persistence(err, "insert financial transaction")
	}
	return nil
}

// FindByReference mencocokkan referensi persis dan varian bertanda manual.
func FindByReference(ctx context.Context, db *gorm.DB, ref string) (*model.FinancialTransactionModel, error) {
	var t model.FinancialTransactionModel
	err := db.WithContext(ctx).
		Where("financial_transaction_reference_key = ?", model.ReferenceKey(ref)).
		Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, finerr.Persistence(err, "lookup transaction by reference")
	}
	return &t, nil
}

// IssueReceipt render + simpan kuitansi, lalu tempel lokasinya ke transaksi.
func IssueReceipt(ctx context.Context, tx *gorm.DB, issuer *receiptService.Issuer, t *model.FinancialTransactionModel, actor helperAuth.Actor) error {
	if issuer == nil {
		return nil
	}
	r := receiptService.Receipt{
		Reference:   t.FinancialTransactionGatewayReference,
		StudentID:   t.FinancialTransactionStudentID.String(),
		Type:        string(t.FinancialTransactionType),
		Method:      t.FinancialTransactionMethod,
		Amount:      t.FinancialTransactionAmount,
		Description: t.FinancialTransactionDescription,
		IssuedAt:    t.FinancialTransactionCreatedAt,
		IssuedBy:    actorLabel(actor),
	}
	if t.FinancialTransactionClassID != nil {
		r.ClassID = t.FinancialTransactionClassID.String()
	}
	loc, err := issuer.Issue(ctx, r)
	if err != nil {
		return finerr.Wrap(finerr.KindPersistence, err, "generate receipt")
	}
	if err := tx.WithContext(ctx).
		Model(&model.FinancialTransactionModel{}).
		Where("financial_transaction_id = ?", t.FinancialTransactionID).
		Updates(map[string]any{
			"financial_transaction_receipt_url": loc,
			"financial_transaction_is_verified": true,
		}).Error; err != nil {
		return finerr.Persistence(err, "attach receipt")
	}
	t.FinancialTransactionReceiptURL = &loc
	t.FinancialTransactionIsVerified = true
	return nil
}

func actorLabel(a helperAuth.Actor) string {
	if a.Name != "" {
		return a.Name
	}
	if a.UserID != uuid.Nil {
		return a.UserID.String()
	}
	return a.Role
}

/* ===================== Recorder ===================== */

type Recorder struct {
	DB       *gorm.DB
	Receipts *receiptService.Issuer
	Notifier notifService.Notifier
	Activity *notifService.ActivityLogger
	Log      *zap.Logger
	Now      func() time.Time
}

func NewRecorder(db *gorm.DB, receipts *receiptService.Issuer, n notifService.Notifier, act *notifService.ActivityLogger, log *zap.Logger) *Recorder {
	return &Recorder{DB: db, Receipts: receipts, Notifier: n, Activity: act, Log: log.Named("recorder"), Now: time.Now}
}

type RecordInput struct {
	StudentID   uuid.UUID
	ClassID     *uuid.UUID
	Amount      decimal.Decimal
	Method      string
	Type        model.TransactionType
	Description string
	// referensi eksternal; kosong -> dibuatkan IDA-TXN baru
	Reference string
}

func (in RecordInput) validate() error {
	switch {
	case in.StudentID == uuid.Nil:
		return finerr.Validation("student_id is required")
	case !in.Amount.IsPositive():
		return finerr.Validation("amount must be positive")
	case strings.TrimSpace(in.Method) == "":
		return finerr.Validation("payment_method is required")
	case !in.Type.Valid():
		return finerr.Validation("invalid transaction type %q", in.Type)
	}
	return nil
}

// RecordPaymentTransaction inserts one completed transaction, applies it to
// the ledger and settles open invoices when a class is given, and attaches a
// receipt, all in one unit of work. Notifications go out after commit.
func (r *Recorder) RecordPaymentTransaction(ctx context.Context, actor helperAuth.Actor, in RecordInput) (*model.FinancialTransactionModel, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := r.Now().UTC()
	ref := strings.TrimSpace(in.Reference)
	if ref == "" {
		ref = NewReference(now)
	}

	outbox := notifService.NewOutbox()
	txn := &model.FinancialTransactionModel{
		FinancialTransactionStudentID:        in.StudentID,
		FinancialTransactionClassID:          in.ClassID,
		FinancialTransactionType:             in.Type,
		FinancialTransactionMethod:           in.Method,
		FinancialTransactionAmount:           in.Amount.Round(2),
		FinancialTransactionGatewayReference: ref,
		FinancialTransactionDescription:      in.Description,
		FinancialTransactionStatus:           model.TransactionStatusCompleted,
		FinancialTransactionRecordedBy:       actor.UserIDPtr(),
		FinancialTransactionCreatedAt:        now,
	}

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := Insert(ctx, tx, txn); err != nil {
			return err
		}
		if in.ClassID != nil {
			if _, _, err := ledgerService.ApplyPayment(ctx, tx, ledgerService.ApplyInput{
				StudentID: in.StudentID,
				ClassID:   *in.ClassID,
				Amount:    txn.FinancialTransactionAmount,
				Kind:      ledgerModel.PaymentKind(in.Type),
			}, outbox, now); err != nil {
				return err
			}
			if _, err := invoiceService.SettleInvoices(ctx, tx, in.StudentID, *in.ClassID, txn.FinancialTransactionAmount, now); err != nil {
				return err
			}
		}
		return IssueReceipt(ctx, tx, r.Receipts, txn, actor)
	})
	if err != nil {
		if !finerr.IsAlreadyProcessed(err) {
			r.Log.Error("record transaction failed", zap.String("reference", ref), zap.Error(err))
		}
		return nil, err
	}

	outbox.Notify(in.StudentID,
		"Payment received",
		fmt.Sprintf("We received your %s payment of %s (ref %s).", in.Type, txn.FinancialTransactionAmount.StringFixed(2), ref),
		notifModel.CategoryPayment,
	)
	outbox.Activity(notifService.ActivityEntry{
		Actor:         actor,
		Action:        notifService.ActionPaymentRecorded,
		Description:   fmt.Sprintf("Recorded %s payment %s", in.Type, ref),
		StudentID:     &in.StudentID,
		ClassID:       in.ClassID,
		TransactionID: &txn.FinancialTransactionID,
		Meta:          map[string]any{"amount": txn.FinancialTransactionAmount.StringFixed(2), "method": in.Method},
	})
	outbox.Flush(ctx, r.Notifier, r.Activity, r.Log)
	return txn, nil
}
