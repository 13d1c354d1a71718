package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"impactacademy_backend/internals/features/finance/finerr"
	"impactacademy_backend/internals/features/finance/invoices/model"
	ledgerModel "impactacademy_backend/internals/features/finance/ledger/model"
	ledgerService "impactacademy_backend/internals/features/finance/ledger/service"
	notifModel "impactacademy_backend/internals/features/finance/notifications/model"
	notifService "impactacademy_backend/internals/features/finance/notifications/service"
	helper "impactacademy_backend/internals/helpers"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

const overdueLookback = 7 * 24 * time.Hour

type OverdueSummary struct {
	LateFees  int `json:"late_fees"`
	Skipped   int `json:"skipped"`
	Suspended int `json:"suspended"`
	Failed    int `json:"failed"`
}

// CheckOverduePayments charges a late fee on invoices that fell due in the
// last seven days and suspends ledger rows whose next payment is more than
// the plan's suspension days late.
func (s *Service) CheckOverduePayments(ctx context.Context) (OverdueSummary, error) {
	var sum OverdueSummary
	now := s.now()
	cache := newTermsCache()

	var overdue []model.InvoiceModel
	if err := s.DB.WithContext(ctx).
		Where("invoice_status = ? AND invoice_type <> ?", model.InvoicePending, model.InvoiceLateFee).
		Where("invoice_due_date < ? AND invoice_due_date >= ?", now, now.Add(-overdueLookback)).
		Order("invoice_due_date ASC").
		Find(&overdue).Error; err != nil {
		return sum, finerr.Persistence(err, "scan overdue invoices")
	}
	for i := range overdue {
		created, err := s.chargeLateFee(ctx, cache, overdue[i].InvoiceID, now)
		switch {
		case err != nil:
			sum.Failed++
			s.Log.Warn("late fee failed", zap.Stringer("invoice_id", overdue[i].InvoiceID), zap.Error(err))
		case created:
			sum.LateFees++
		default:
			sum.Skipped++
		}
	}

	var late []ledgerModel.FinancialStatusModel
	if err := s.DB.WithContext(ctx).
		Where("financial_status_is_suspended = ? AND financial_status_is_cleared = ?", false, false).
		Where("financial_status_next_payment_due IS NOT NULL AND financial_status_next_payment_due < ?", now).
		Find(&late).Error; err != nil {
		return sum, finerr.Persistence(err, "scan late ledger rows")
	}
	for i := range late {
		suspended, err := s.suspendIfLate(ctx, cache, late[i].FinancialStatusID, now)
		if err != nil {
			sum.Failed++
			s.Log.Warn("suspension failed", zap.Stringer("status_id", late[i].FinancialStatusID), zap.Error(err))
			continue
		}
		if suspended {
			sum.Suspended++
		}
	}

	s.Log.Info("overdue check done",
		zap.Int("late_fees", sum.LateFees), zap.Int("suspended", sum.Suspended), zap.Int("failed", sum.Failed))
	return sum, nil
}

// chargeLateFee creates the single late-fee child of an invoice and adds the
// fee to the ledger total. The child lookup keeps reruns quiet; the unique
// parent index settles races.
func (s *Service) chargeLateFee(ctx context.Context, cache termsCache, invoiceID uuid.UUID, now time.Time) (bool, error) {
	outbox := notifService.NewOutbox()
	created := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv model.InvoiceModel
		if err := helper.ForUpdate(tx).Where("invoice_id = ?", invoiceID).Take(&inv).Error; err != nil {
			return finerr.Persistence(err, "lock invoice")
		}
		if inv.InvoiceStatus != model.InvoicePending {
			return nil
		}

		var child model.InvoiceModel
		err := tx.Where("invoice_parent_invoice_id = ?", inv.InvoiceID).Take(&child).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return finerr.Persistence(err, "look up late fee")
		}

		terms, err := cache.get(ctx, tx, inv.InvoiceClassID)
		if err != nil {
			return err
		}
		fee := terms.Plan.LateFee(inv.InvoiceAmount)
		if !fee.IsPositive() {
			return nil
		}

		parentID := inv.InvoiceID
		if _, err := createInvoice(ctx, tx, helperAuth.SystemActor, invoiceParams{
			StudentID: inv.InvoiceStudentID,
			ClassID:   inv.InvoiceClassID,
			Type:      model.InvoiceLateFee,
			Amount:    fee,
			DueDate:   now.AddDate(0, 0, lateFeeDueDays),
			ParentID:  &parentID,
		}, outbox, now); err != nil {
			return err
		}
		if _, err := ledgerService.ChargeLateFee(ctx, tx, inv.InvoiceStudentID, inv.InvoiceClassID, fee, now); err != nil {
			return err
		}

		if err := tx.Model(&model.InvoiceModel{}).
			Where("invoice_id = ?", inv.InvoiceID).
			Update("invoice_status", model.InvoiceOverdue).Error; err != nil {
			return finerr.Persistence(err, "mark invoice overdue")
		}
		created = true
		return nil
	})
	if finerr.Is(err, finerr.KindConflict) {
		// run paralel sudah membebankannya
		return false, nil
	}
	if err != nil {
		return false, err
	}
	outbox.Flush(ctx, s.Notifier, s.Activity, s.Log)
	return created, nil
}

func (s *Service) suspendIfLate(ctx context.Context, cache termsCache, statusID uuid.UUID, now time.Time) (bool, error) {
	outbox := notifService.NewOutbox()
	suspended := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st ledgerModel.FinancialStatusModel
		if err := helper.ForUpdate(tx).Where("financial_status_id = ?", statusID).Take(&st).Error; err != nil {
			return finerr.Persistence(err, "lock financial status")
		}
		if st.FinancialStatusIsSuspended || st.FinancialStatusIsCleared || st.FinancialStatusNextPaymentDue == nil {
			return nil
		}
		terms, err := cache.get(ctx, tx, st.FinancialStatusClassID)
		if err != nil {
			return err
		}
		graceEnd := st.FinancialStatusNextPaymentDue.AddDate(0, 0, terms.Plan.PaymentPlanSuspensionDays)
		if !now.After(graceEnd) {
			return nil
		}

		days := int(now.Sub(*st.FinancialStatusNextPaymentDue).Hours() / 24)
		reason := fmt.Sprintf("Payment overdue by %d days", days)
		if err := ledgerService.Suspend(ctx, tx, &st, reason, now); err != nil {
			return err
		}
		suspended = true

		outbox.Notify(st.FinancialStatusStudentID,
			"Account suspended",
			fmt.Sprintf("Your access has been suspended: %s. Outstanding balance: %s.", reason, st.FinancialStatusBalance.StringFixed(2)),
			notifModel.CategoryAccount,
		)
		outbox.Activity(notifService.ActivityEntry{
			Actor:       helperAuth.SystemActor,
			Action:      notifService.ActionSuspended,
			Description: reason,
			StudentID:   &st.FinancialStatusStudentID,
			ClassID:     &st.FinancialStatusClassID,
		})
		return nil
	})
	if err != nil {
		return false, err
	}
	outbox.Flush(ctx, s.Notifier, s.Activity, s.Log)
	return suspended, nil
}

type ReminderSummary struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// maxReminderLead batas scan; hari pengingat per plan yang menentukan.
const maxReminderLead = 30

// SendPaymentReminders nudges students about open invoices that are due
// within the plan's reminder days or already overdue, at most once per
// reminder window.
func (s *Service) SendPaymentReminders(ctx context.Context) (ReminderSummary, error) {
	var sum ReminderSummary
	now := s.now()
	cache := newTermsCache()
	outbox := notifService.NewOutbox()

	var open []model.InvoiceModel
	if err := s.DB.WithContext(ctx).
		Where("invoice_status IN ?", model.OpenStatuses).
		Where("invoice_due_date <= ?", now.AddDate(0, 0, maxReminderLead)).
		Order("invoice_due_date ASC").
		Find(&open).Error; err != nil {
		return sum, finerr.Persistence(err, "scan open invoices")
	}

	for i := range open {
		inv := &open[i]
		terms, err := cache.get(ctx, s.DB, inv.InvoiceClassID)
		if err != nil {
			sum.Failed++
			s.Log.Warn("reminder skipped", zap.Stringer("invoice_id", inv.InvoiceID), zap.Error(err))
			continue
		}
		if !reminderDue(inv, terms.Plan.PaymentPlanReminderDays, now) {
			sum.Skipped++
			continue
		}
		if err := s.DB.WithContext(ctx).
			Model(&model.InvoiceModel{}).
			Where("invoice_id = ?", inv.InvoiceID).
			Update("invoice_last_reminder_sent", now).Error; err != nil {
			sum.Failed++
			s.Log.Warn("stamp reminder failed", zap.Stringer("invoice_id", inv.InvoiceID), zap.Error(err))
			continue
		}

		title := "Payment reminder"
		msg := fmt.Sprintf("Invoice %s (%s) of %s is due on %s.",
			inv.InvoiceNumber, inv.InvoiceType, inv.InvoiceBalance.StringFixed(2), inv.InvoiceDueDate.Format("2006-01-02"))
		if inv.InvoiceDueDate.Before(now) {
			title = "Payment overdue"
			msg = fmt.Sprintf("Invoice %s (%s) of %s was due on %s. Please pay as soon as possible.",
				inv.InvoiceNumber, inv.InvoiceType, inv.InvoiceBalance.StringFixed(2), inv.InvoiceDueDate.Format("2006-01-02"))
		}
		outbox.Notify(inv.InvoiceStudentID, title, msg, notifModel.CategoryReminder)
		sum.Sent++
	}

	outbox.Flush(ctx, s.Notifier, s.Activity, s.Log)
	return sum, nil
}

func reminderDue(inv *model.InvoiceModel, reminderDays int, now time.Time) bool {
	if reminderDays <= 0 {
		reminderDays = 3
	}
	window := time.Duration(reminderDays) * 24 * time.Hour
	if inv.InvoiceDueDate.Sub(now) > window {
		return false
	}
	return inv.InvoiceLastReminderSent == nil || now.Sub(*inv.InvoiceLastReminderSent) >= window
}
