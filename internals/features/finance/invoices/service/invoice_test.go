package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"impactacademy_backend/internals/databases/dbtest"
	enrollModel "impactacademy_backend/internals/features/finance/enrollments/model"
	feeModel "impactacademy_backend/internals/features/finance/fees/model"
	"impactacademy_backend/internals/features/finance/finerr"
	"impactacademy_backend/internals/features/finance/invoices/model"
	ledgerModel "impactacademy_backend/internals/features/finance/ledger/model"
	ledgerService "impactacademy_backend/internals/features/finance/ledger/service"
	notifModel "impactacademy_backend/internals/features/finance/notifications/model"
	"impactacademy_backend/internals/features/finance/notifications/notifytest"
	notifService "impactacademy_backend/internals/features/finance/notifications/service"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

var t0 = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newService(t *testing.T, db *gorm.DB) (*Service, *notifytest.Recorder, *clock) {
	t.Helper()
	rec := &notifytest.Recorder{}
	c := &clock{now: t0}
	s := New(db, rec, notifService.NewActivityLogger(db), zap.NewNop())
	s.Now = c.Now
	return s, rec, c
}

func countInvoices(t *testing.T, db *gorm.DB, typ model.InvoiceType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.InvoiceModel{}).Where("invoice_type = ?", typ).Count(&n).Error)
	return n
}

func TestGenerateInvoiceAmountsByType(t *testing.T) {
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, t0)
	s, notes, _ := newService(t, db)
	ctx := context.Background()
	student := uuid.New()

	cases := map[model.InvoiceType]int64{
		model.InvoiceRegistration:  10000,
		model.InvoiceTuitionBlock1: 63000,
		model.InvoiceTuitionBlock2: 27000,
		model.InvoiceTuition:       100000,
	}
	for typ, want := range cases {
		inv, err := s.GenerateInvoice(ctx, helperAuth.SystemActor, student, seed.Class.ClassID, typ)
		require.NoError(t, err, typ)
		assert.True(t, inv.InvoiceAmount.Equal(decimal.NewFromInt(want)), "%s: %s", typ, inv.InvoiceAmount)
		assert.True(t, inv.InvoiceBalance.Equal(inv.InvoiceAmount))
		assert.Equal(t, model.InvoicePending, inv.InvoiceStatus)
		assert.Equal(t, t0.AddDate(0, 0, 30), inv.InvoiceDueDate.UTC())
		assert.Regexp(t, `^INV-202503-[0-9A-F]{8}$`, inv.InvoiceNumber)
	}
	assert.Equal(t, len(cases), notes.Count(notifModel.CategoryInvoice))

	_, err := s.GenerateInvoice(ctx, helperAuth.SystemActor, student, seed.Class.ClassID, model.InvoiceTuitionTerm1)
	assert.True(t, finerr.Is(err, finerr.KindValidation))
	_, err = s.GenerateInvoice(ctx, helperAuth.SystemActor, student, seed.Class.ClassID, model.InvoiceLateFee)
	assert.True(t, finerr.Is(err, finerr.KindValidation))
}

func TestGenerateInvoiceOnsiteTerms(t *testing.T) {
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnsite, 100000, t0)
	s, _, _ := newService(t, db)

	inv, err := s.GenerateInvoice(context.Background(), helperAuth.SystemActor, uuid.New(), seed.Class.ClassID, model.InvoiceTuitionTerm3)
	require.NoError(t, err)
	assert.Equal(t, "33333.34", inv.InvoiceAmount.StringFixed(2))
}

func TestGenerateInvoiceMissingClassIsConfigurationError(t *testing.T) {
	db := dbtest.NewTestDB(t)
	s, _, _ := newService(t, db)

	_, err := s.GenerateInvoice(context.Background(), helperAuth.SystemActor, uuid.New(), uuid.New(), model.InvoiceRegistration)
	assert.True(t, finerr.Is(err, finerr.KindConfiguration))
	assert.Zero(t, countInvoices(t, db, model.InvoiceRegistration))
}

func TestDuplicateOpenInvoiceIsGuarded(t *testing.T) {
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, t0)
	s, _, _ := newService(t, db)
	ctx := context.Background()
	student, classID := uuid.New(), seed.Class.ClassID

	_, err := ledgerService.GetStudentFinancialStatus(ctx, db, student, classID, t0)
	require.NoError(t, err)
	_, err = s.GenerateInvoice(ctx, helperAuth.SystemActor, student, classID, model.InvoiceTuitionBlock1)
	require.NoError(t, err)

	open, err := HasOpenInvoice(ctx, db, student, classID, model.InvoiceTuitionBlock1)
	require.NoError(t, err)
	assert.True(t, open)

	sum, err := s.GenerateDueInvoices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Created, "registration only")
	assert.Equal(t, 1, sum.Skipped)
	assert.EqualValues(t, 1, countInvoices(t, db, model.InvoiceTuitionBlock1))

	// a caller that skips the guard is stopped by the open-invoice key
	_, err = s.GenerateInvoice(ctx, helperAuth.SystemActor, student, classID, model.InvoiceTuitionBlock1)
	assert.True(t, finerr.Is(err, finerr.KindConflict))
	assert.EqualValues(t, 1, countInvoices(t, db, model.InvoiceTuitionBlock1))

	sum, err = s.GenerateDueInvoices(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Created)
}

func applyLedger(t *testing.T, db *gorm.DB, studentID, classID uuid.UUID, amount int64, kind ledgerModel.PaymentKind, now time.Time) {
	t.Helper()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, _, err := ledgerService.ApplyPayment(context.Background(), tx, ledgerService.ApplyInput{
			StudentID: studentID, ClassID: classID, Amount: decimal.NewFromInt(amount), Kind: kind,
		}, nil, now)
		return err
	}))
}

func TestGenerateDueInvoicesNeverExceedsBalance(t *testing.T) {
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, t0)
	s, _, _ := newService(t, db)
	ctx := context.Background()
	classID := seed.Class.ClassID

	// 70000 lewat course: blok 1 tercapai, registrasi belum ditandai
	courseOnly := uuid.New()
	applyLedger(t, db, courseOnly, classID, 70000, ledgerModel.PaymentKindCourse, t0)

	// sisa 5000, lebih kecil dari nominal blok 2
	almostDone := uuid.New()
	applyLedger(t, db, almostDone, classID, 10000, ledgerModel.PaymentKindRegistration, t0)
	applyLedger(t, db, almostDone, classID, 85000, ledgerModel.PaymentKindCourse, t0)

	for run := 0; run < 2; run++ {
		_, err := s.GenerateDueInvoices(ctx)
		require.NoError(t, err)

		var rows []ledgerModel.FinancialStatusModel
		require.NoError(t, db.Find(&rows).Error)
		require.Len(t, rows, 2)
		for _, st := range rows {
			open, err := OpenInvoiceBalance(ctx, db, st.FinancialStatusStudentID, classID)
			require.NoError(t, err)
			assert.True(t, open.LessThanOrEqual(st.FinancialStatusBalance),
				"open %s > balance %s", open, st.FinancialStatusBalance)
		}
	}

	var invs []model.InvoiceModel
	require.NoError(t, db.Where("invoice_student_id = ?", courseOnly).Find(&invs).Error)
	require.Len(t, invs, 1)
	assert.Equal(t, model.InvoiceTuitionBlock2, invs[0].InvoiceType)
	assert.Equal(t, "27000.00", invs[0].InvoiceAmount.StringFixed(2))

	invs = nil
	require.NoError(t, db.Where("invoice_student_id = ?", almostDone).Find(&invs).Error)
	require.Len(t, invs, 1)
	assert.Equal(t, model.InvoiceTuitionBlock2, invs[0].InvoiceType)
	assert.Equal(t, "5000.00", invs[0].InvoiceAmount.StringFixed(2))
}

func TestLateFeeRaisesLedgerTotal(t *testing.T) {
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, t0)
	s, _, c := newService(t, db)
	ctx := context.Background()
	student, classID := uuid.New(), seed.Class.ClassID

	_, err := s.GenerateInvoice(ctx, helperAuth.SystemActor, student, classID, model.InvoiceTuitionBlock1)
	require.NoError(t, err)
	c.now = t0.AddDate(0, 0, 31)
	sum, err := s.CheckOverduePayments(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sum.LateFees)

	st, err := ledgerService.GetStudentFinancialStatus(ctx, db, student, classID, c.now)
	require.NoError(t, err)
	assert.Equal(t, "103150.00", st.FinancialStatusTotalFee.StringFixed(2))
	assert.Equal(t, "3150.00", st.FinancialStatusLateFees.StringFixed(2))
	assert.Equal(t, "103150.00", st.FinancialStatusBalance.StringFixed(2))

	// denda tidak ikut menurunkan sisa biaya kuliah
	applyLedger(t, db, student, classID, 70000, ledgerModel.PaymentKindCourse, c.now)
	st, err = ledgerService.GetStudentFinancialStatus(ctx, db, student, classID, c.now)
	require.NoError(t, err)
	assert.False(t, st.FinancialStatusBlock1Paid)
	assert.Equal(t, "33150.00", st.FinancialStatusBalance.StringFixed(2))

	applyLedger(t, db, student, classID, 3150, ledgerModel.PaymentKindCourse, c.now)
	st, err = ledgerService.GetStudentFinancialStatus(ctx, db, student, classID, c.now)
	require.NoError(t, err)
	assert.True(t, st.FinancialStatusBlock1Paid)
	assert.Equal(t, "30000.00", st.FinancialStatusBalance.StringFixed(2))
}

func TestCheckOverduePaymentsChargesLateFeeOnce(t *testing.T) {
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, t0)
	s, notes, c := newService(t, db)
	ctx := context.Background()
	student := uuid.New()

	parent, err := s.GenerateInvoice(ctx, helperAuth.SystemActor, student, seed.Class.ClassID, model.InvoiceTuitionBlock1)
	require.NoError(t, err)

	c.now = t0.AddDate(0, 0, 31)
	sum, err := s.CheckOverduePayments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.LateFees)

	sum, err = s.CheckOverduePayments(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.LateFees)

	// even if the parent were reopened, the child lookup stops a second fee
	require.NoError(t, db.Model(&model.InvoiceModel{}).
		Where("invoice_id = ?", parent.InvoiceID).
		Update("invoice_status", model.InvoicePending).Error)
	sum, err = s.CheckOverduePayments(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.LateFees)
	assert.Equal(t, 1, sum.Skipped)

	var fees []model.InvoiceModel
	require.NoError(t, db.Where("invoice_type = ?", model.InvoiceLateFee).Find(&fees).Error)
	require.Len(t, fees, 1)
	assert.Equal(t, "3150.00", fees[0].InvoiceAmount.StringFixed(2))
	require.NotNil(t, fees[0].InvoiceParentID)
	assert.Equal(t, parent.InvoiceID, *fees[0].InvoiceParentID)
	assert.Equal(t, c.now.AddDate(0, 0, 7), fees[0].InvoiceDueDate.UTC())
	assert.Nil(t, fees[0].InvoiceOpenKey)

	assert.Equal(t, 2, notes.Count(notifModel.CategoryInvoice))
}

func TestCheckOverduePaymentsIgnoresOldInvoices(t *testing.T) {
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, t0)
	s, _, c := newService(t, db)
	ctx := context.Background()

	_, err := s.GenerateInvoice(ctx, helperAuth.SystemActor, uuid.New(), seed.Class.ClassID, model.InvoiceRegistration)
	require.NoError(t, err)

	c.now = t0.AddDate(0, 0, 45)
	sum, err := s.CheckOverduePayments(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.LateFees)
}

func TestCheckOverduePaymentsSuspendsLateStudents(t *testing.T) {
	db := dbtest.NewTestDB(t)
	ctx := context.Background()
	start := t0.AddDate(0, 0, -60)
	late := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, start)
	recent := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, t0.AddDate(0, 0, -40))
	s, notes, _ := newService(t, db)

	lateStudent, okStudent := uuid.New(), uuid.New()
	_, err := ledgerService.GetStudentFinancialStatus(ctx, db, lateStudent, late.Class.ClassID, t0)
	require.NoError(t, err)
	_, err = ledgerService.GetStudentFinancialStatus(ctx, db, okStudent, recent.Class.ClassID, t0)
	require.NoError(t, err)

	classID := late.Class.ClassID
	require.NoError(t, db.Create(&enrollModel.EnrollmentModel{
		EnrollmentStudentID: lateStudent,
		EnrollmentProgramID: late.Program.ProgramID,
		EnrollmentClassID:   &classID,
		EnrollmentStatus:    enrollModel.EnrollmentActive,
	}).Error)

	sum, err := s.CheckOverduePayments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Suspended)

	var st ledgerModel.FinancialStatusModel
	require.NoError(t, db.Where("financial_status_student_id = ?", lateStudent).Take(&st).Error)
	assert.True(t, st.FinancialStatusIsSuspended)
	require.NotNil(t, st.FinancialStatusSuspensionReason)
	assert.Contains(t, *st.FinancialStatusSuspensionReason, "30 days")

	var ok ledgerModel.FinancialStatusModel
	require.NoError(t, db.Where("financial_status_student_id = ?", okStudent).Take(&ok).Error)
	assert.False(t, ok.FinancialStatusIsSuspended)

	var enr enrollModel.EnrollmentModel
	require.NoError(t, db.Where("enrollment_student_id = ?", lateStudent).Take(&enr).Error)
	assert.Equal(t, enrollModel.EnrollmentSuspended, enr.EnrollmentStatus)
	assert.Equal(t, 1, notes.Count(notifModel.CategoryAccount))

	sum, err = s.CheckOverduePayments(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Suspended)
	assert.Equal(t, 1, notes.Count(notifModel.CategoryAccount))
}

func TestSendPaymentRemindersOncePerWindow(t *testing.T) {
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, t0)
	s, notes, c := newService(t, db)
	ctx := context.Background()

	inv, err := s.GenerateInvoice(ctx, helperAuth.SystemActor, uuid.New(), seed.Class.ClassID, model.InvoiceRegistration)
	require.NoError(t, err)

	c.now = t0.AddDate(0, 0, 10)
	sum, err := s.SendPaymentReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Sent, "not due yet")

	c.now = t0.AddDate(0, 0, 28)
	sum, err = s.SendPaymentReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)

	sum, err = s.SendPaymentReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Sent)

	c.now = t0.AddDate(0, 0, 31)
	sum, err = s.SendPaymentReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, 2, notes.Count(notifModel.CategoryReminder))

	var reloaded model.InvoiceModel
	require.NoError(t, db.First(&reloaded, "invoice_id = ?", inv.InvoiceID).Error)
	require.NotNil(t, reloaded.InvoiceLastReminderSent)
	assert.Equal(t, c.now, reloaded.InvoiceLastReminderSent.UTC())
}

func TestSettleInvoicesOldestFirst(t *testing.T) {
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, t0)
	s, _, c := newService(t, db)
	ctx := context.Background()
	student, classID := uuid.New(), seed.Class.ClassID

	reg, err := s.GenerateInvoice(ctx, helperAuth.SystemActor, student, classID, model.InvoiceRegistration)
	require.NoError(t, err)
	c.now = t0.AddDate(0, 0, 1)
	block, err := s.GenerateInvoice(ctx, helperAuth.SystemActor, student, classID, model.InvoiceTuitionBlock1)
	require.NoError(t, err)

	var touched []model.InvoiceModel
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		touched, err = SettleInvoices(ctx, tx, student, classID, decimal.NewFromInt(20000), c.now)
		return err
	}))
	require.Len(t, touched, 2)

	var got model.InvoiceModel
	require.NoError(t, db.First(&got, "invoice_id = ?", reg.InvoiceID).Error)
	assert.Equal(t, model.InvoicePaid, got.InvoiceStatus)
	assert.Nil(t, got.InvoiceOpenKey)
	assert.True(t, got.InvoiceBalance.IsZero())

	var blk model.InvoiceModel
	require.NoError(t, db.First(&blk, "invoice_id = ?", block.InvoiceID).Error)
	assert.Equal(t, model.InvoicePartial, blk.InvoiceStatus)
	assert.Equal(t, "53000.00", blk.InvoiceBalance.StringFixed(2))

	// a paid registration invoice no longer blocks a new one
	open, err := HasOpenInvoice(ctx, db, student, classID, model.InvoiceRegistration)
	require.NoError(t, err)
	assert.False(t, open)
}
