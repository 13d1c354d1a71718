// file: internals/features/finance/invoices/service/generator.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	feeModel "impactacademy_backend/internals/features/finance/fees/model"
	feeService "impactacademy_backend/internals/features/finance/fees/service"
	"impactacademy_backend/internals/features/finance/finerr"
	"impactacademy_backend/internals/features/finance/invoices/model"
	ledgerModel "impactacademy_backend/internals/features/finance/ledger/model"
	ledgerService "impactacademy_backend/internals/features/finance/ledger/service"
	notifModel "impactacademy_backend/internals/features/finance/notifications/model"
	notifService "impactacademy_backend/internals/features/finance/notifications/service"
	helper "impactacademy_backend/internals/helpers"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

const (
	invoiceDueDays = 30
	lateFeeDueDays = 7
)

type Service struct {
	DB       *gorm.DB
	Notifier notifService.Notifier
	Activity *notifService.ActivityLogger
	Log      *zap.Logger
	Now      func() time.Time
}

func New(db *gorm.DB, n notifService.Notifier, act *notifService.ActivityLogger, log *zap.Logger) *Service {
	return &Service{DB: db, Notifier: n, Activity: act, Log: log.Named("invoices"), Now: time.Now}
}

func (s *Service) now() time.Time { return s.Now().UTC() }

// NewInvoiceNumber -> INV-YYYYMM-XXXXXXXX
func NewInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%s", now.Format("200601"), strings.ToUpper(uuid.NewString()[:8]))
}

// AmountFor memilih bagian rincian biaya yang ditagih tipe invoice.
// Tipe tuition yang tidak dikenal menagih total biaya.
func AmountFor(fee *feeService.FeeBreakdown, t model.InvoiceType) (decimal.Decimal, error) {
	onsite := fee.ProgramType == feeModel.ProgramTypeOnsite
	switch t {
	case model.InvoiceRegistration:
		return fee.RegistrationFee, nil
	case model.InvoiceTuitionBlock1, model.InvoiceTuitionBlock2:
		if onsite {
			return decimal.Zero, finerr.Validation("%s is not billed for onsite programs", t)
		}
		if t == model.InvoiceTuitionBlock1 {
			return fee.Block1Amount, nil
		}
		return fee.Block2Amount, nil
	case model.InvoiceTuitionTerm1, model.InvoiceTuitionTerm2, model.InvoiceTuitionTerm3:
		if !onsite || len(fee.TermAmounts) == 0 {
			return decimal.Zero, finerr.Validation("%s is only billed for onsite programs", t)
		}
		idx := int(t[len(t)-1] - '1')
		return fee.TermAmounts[idx], nil
	case model.InvoiceLateFee:
		return decimal.Zero, finerr.Validation("late fee invoices are created by the overdue check")
	default:
		return fee.TotalFee, nil
	}
}

type invoiceParams struct {
	StudentID uuid.UUID
	ClassID   uuid.UUID
	Type      model.InvoiceType
	Amount    decimal.Decimal
	DueDate   time.Time
	ParentID  *uuid.UUID
}

func createInvoice(ctx context.Context, tx *gorm.DB, actor helperAuth.Actor, p invoiceParams, outbox *notifService.Outbox, now time.Time) (*model.InvoiceModel, error) {
	inv := &model.InvoiceModel{
		InvoiceNumber:     NewInvoiceNumber(now),
		InvoiceStudentID:  p.StudentID,
		InvoiceClassID:    p.ClassID,
		InvoiceType:       p.Type,
		InvoiceAmount:     p.Amount.Round(2),
		InvoicePaidAmount: decimal.Zero,
		InvoiceDueDate:    p.DueDate,
		InvoiceStatus:     model.InvoicePending,
		InvoiceParentID:   p.ParentID,
		InvoiceCreatedBy:  actor.UserIDPtr(),
	}
	if p.ParentID == nil {
		key := model.OpenKey(p.StudentID, p.ClassID, p.Type)
		inv.InvoiceOpenKey = &key
	}
	if err := tx.WithContext(ctx).Create(inv).Error; err != nil {
		if helper.IsUniqueViolation(err) {
			return nil, finerr.Conflict("an open %s invoice already exists for this student and class", p.Type)
		}
		return nil, finerr.Persistence(err, "insert invoice")
	}

	outbox.Notify(p.StudentID,
		"New invoice",
		fmt.Sprintf("Invoice %s for %s is due on %s. Amount: %s.",
			inv.InvoiceNumber, p.Type, inv.InvoiceDueDate.Format("2006-01-02"), inv.InvoiceAmount.StringFixed(2)),
		notifModel.CategoryInvoice,
	)
	action := notifService.ActionInvoiceGenerated
	if p.ParentID != nil {
		action = notifService.ActionLateFee
	}
	outbox.Activity(notifService.ActivityEntry{
		Actor:       actor,
		Action:      action,
		Description: fmt.Sprintf("Generated %s invoice %s", p.Type, inv.InvoiceNumber),
		StudentID:   &inv.InvoiceStudentID,
		ClassID:     &inv.InvoiceClassID,
		Meta:        map[string]any{"invoice_id": inv.InvoiceID.String(), "amount": inv.InvoiceAmount.StringFixed(2)},
	})
	return inv, nil
}

// GenerateInvoice bills invoiceType for (student, class), due in 30 days.
// It does not look for an existing open invoice; callers guard with
// HasOpenInvoice. A duplicate that slips through is a Conflict.
func (s *Service) GenerateInvoice(ctx context.Context, actor helperAuth.Actor, studentID, classID uuid.UUID, invoiceType model.InvoiceType) (*model.InvoiceModel, error) {
	if studentID == uuid.Nil || classID == uuid.Nil {
		return nil, finerr.Validation("student_id and class_id are required")
	}
	if !invoiceType.Valid() {
		return nil, finerr.Validation("invalid invoice type %q", invoiceType)
	}
	now := s.now()
	outbox := notifService.NewOutbox()

	var inv *model.InvoiceModel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inv, err = s.generate(ctx, tx, actor, studentID, classID, invoiceType, nil, outbox, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	outbox.Flush(ctx, s.Notifier, s.Activity, s.Log)
	return inv, nil
}

// generate menagihkan tipe t; ceiling (bila ada) membatasi nominalnya.
func (s *Service) generate(ctx context.Context, tx *gorm.DB, actor helperAuth.Actor, studentID, classID uuid.UUID, t model.InvoiceType, ceiling *decimal.Decimal, outbox *notifService.Outbox, now time.Time) (*model.InvoiceModel, error) {
	fee, err := feeService.CalculateTotalFee(ctx, tx, classID, "")
	if err != nil {
		return nil, err
	}
	amount, err := AmountFor(fee, t)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, finerr.Configuration("no amount configured for %s", t)
	}
	if ceiling != nil {
		amount = decimal.Min(amount, *ceiling)
	}
	return createInvoice(ctx, tx, actor, invoiceParams{
		StudentID: studentID,
		ClassID:   classID,
		Type:      t,
		Amount:    amount,
		DueDate:   now.AddDate(0, 0, invoiceDueDays),
	}, outbox, now)
}

// HasOpenInvoice: apakah (student, class) sudah punya invoice invoiceType
// yang belum lunas.
func HasOpenInvoice(ctx context.Context, db *gorm.DB, studentID, classID uuid.UUID, invoiceType model.InvoiceType) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&model.InvoiceModel{}).
		Where("invoice_student_id = ? AND invoice_class_id = ? AND invoice_type = ?", studentID, classID, invoiceType).
		Where("invoice_status IN ?", model.OpenStatuses).
		Count(&n).Error
	if err != nil {
		return false, finerr.Persistence(err, "check open invoices")
	}
	return n > 0, nil
}

type GenerateSummary struct {
	Scanned int `json:"scanned"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// GenerateDueInvoices bills every open ledger row for its current block,
// plus the registration fee while unpaid. Existing open invoices are left
// alone, so the job can run any number of times. What is open on a row never
// exceeds its ledger balance.
func (s *Service) GenerateDueInvoices(ctx context.Context) (GenerateSummary, error) {
	var sum GenerateSummary
	now := s.now()

	var rows []ledgerModel.FinancialStatusModel
	err := s.DB.WithContext(ctx).
		Where("financial_status_is_cleared = ?", false).
		FindInBatches(&rows, 200, func(_ *gorm.DB, _ int) error {
			for i := range rows {
				st := &rows[i]
				sum.Scanned++
				open, err := OpenInvoiceBalance(ctx, s.DB, st.FinancialStatusStudentID, st.FinancialStatusClassID)
				if err != nil {
					sum.Failed++
					s.Log.Warn("open invoice balance failed", zap.Stringer("status_id", st.FinancialStatusID), zap.Error(err))
					continue
				}
				for _, t := range dueInvoiceTypes(st) {
					room := st.FinancialStatusBalance.Sub(open)
					if !room.IsPositive() {
						sum.Skipped++
						continue
					}
					inv, created, err := s.generateIfAbsent(ctx, st, t, room, now)
					if created {
						open = open.Add(inv.InvoiceBalance)
					}
					switch {
					case err != nil:
						sum.Failed++
						s.Log.Warn("invoice generation failed",
							zap.Stringer("student_id", st.FinancialStatusStudentID),
							zap.Stringer("class_id", st.FinancialStatusClassID),
							zap.String("type", string(t)), zap.Error(err))
					case created:
						sum.Created++
					default:
						sum.Skipped++
					}
				}
			}
			return nil
		}).Error
	if err != nil {
		return sum, finerr.Persistence(err, "scan financial status")
	}
	return sum, nil
}

// dueInvoiceTypes: registrasi tidak ditagih lagi setelah blok pertama
// tercapai, karena ambang blok sudah memuat biaya registrasi.
func dueInvoiceTypes(st *ledgerModel.FinancialStatusModel) []model.InvoiceType {
	var out []model.InvoiceType
	if !st.FinancialStatusRegistrationPaid && !st.BlockPaid(1) {
		out = append(out, model.InvoiceRegistration)
	}
	if !st.BlockPaid(st.FinancialStatusCurrentBlock) {
		out = append(out, model.BlockInvoiceType(st.FinancialStatusProgramType == feeModel.ProgramTypeOnsite, st.FinancialStatusCurrentBlock))
	}
	return out
}

func (s *Service) generateIfAbsent(ctx context.Context, st *ledgerModel.FinancialStatusModel, t model.InvoiceType, ceiling decimal.Decimal, now time.Time) (*model.InvoiceModel, bool, error) {
	open, err := HasOpenInvoice(ctx, s.DB, st.FinancialStatusStudentID, st.FinancialStatusClassID, t)
	if err != nil || open {
		return nil, false, err
	}
	outbox := notifService.NewOutbox()
	var inv *model.InvoiceModel
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inv, err = s.generate(ctx, tx, helperAuth.SystemActor, st.FinancialStatusStudentID, st.FinancialStatusClassID, t, &ceiling, outbox, now)
		return err
	})
	if finerr.Is(err, finerr.KindConflict) {
		// run lain sudah membuatnya di antara cek dan insert
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	outbox.Flush(ctx, s.Notifier, s.Activity, s.Log)
	return inv, true, nil
}

// OpenInvoiceBalance = sisa tagihan semua invoice terbuka (student, class).
func OpenInvoiceBalance(ctx context.Context, db *gorm.DB, studentID, classID uuid.UUID) (decimal.Decimal, error) {
	var out struct{ Total decimal.Decimal }
	if err := db.WithContext(ctx).
		Model(&model.InvoiceModel{}).
		Select("COALESCE(SUM(invoice_balance), 0) AS total").
		Where("invoice_student_id = ? AND invoice_class_id = ?", studentID, classID).
		Where("invoice_status IN ?", model.OpenStatuses).
		Scan(&out).Error; err != nil {
		return decimal.Zero, finerr.Persistence(err, "sum open invoices")
	}
	return out.Total, nil
}

// termsCache menyimpan terms kelas selama satu kali job jalan.
type termsCache map[uuid.UUID]*ledgerService.ClassTerms

func newTermsCache() termsCache { return termsCache{} }

func (c termsCache) get(ctx context.Context, db *gorm.DB, classID uuid.UUID) (*ledgerService.ClassTerms, error) {
	if t, ok := c[classID]; ok {
		return t, nil
	}
	t, err := ledgerService.LoadClassTerms(ctx, db, classID)
	if err != nil {
		return nil, err
	}
	c[classID] = t
	return t, nil
}
