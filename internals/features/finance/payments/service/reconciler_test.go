package service

import (
	"context"
	"errors"
	"sync"
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
	ledgerModel "impactacademy_backend/internals/features/finance/ledger/model"
	notifModel "impactacademy_backend/internals/features/finance/notifications/model"
	"impactacademy_backend/internals/features/finance/notifications/notifytest"
	notifService "impactacademy_backend/internals/features/finance/notifications/service"
	"impactacademy_backend/internals/features/finance/payments/model"
	receiptService "impactacademy_backend/internals/features/finance/receipts/service"
	transModel "impactacademy_backend/internals/features/finance/transactions/model"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

var t0 = time.Date(2025, 4, 7, 9, 0, 0, 0, time.UTC)

var staff = helperAuth.Actor{UserID: uuid.New(), Role: helperAuth.RoleFinance, Name: "Grace"}

type failingStore struct{}

func (failingStore) Put(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("bucket unavailable")
}

func newService(t *testing.T, db *gorm.DB, store receiptService.Store, gw PaymentGateway) (*Service, *notifytest.Recorder) {
	t.Helper()
	rec := &notifytest.Recorder{}
	s := New(db, gw, &receiptService.Issuer{Store: store, Prefix: "receipts"}, rec, notifService.NewActivityLogger(db), zap.NewNop())
	s.Now = func() time.Time { return t0 }
	return s, rec
}

type fixture struct {
	db      *gorm.DB
	seed    dbtest.Class
	course  feeModel.CourseModel
	student uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, t0)
	var course feeModel.CourseModel
	require.NoError(t, db.Where("course_program_id = ?", seed.Program.ProgramID).Take(&course).Error)
	return fixture{db: db, seed: seed, course: course, student: uuid.New()}
}

func (f fixture) courseEntry(ref string, amount int64) ManualEntryInput {
	classID := f.seed.Class.ClassID
	courseID := f.course.CourseID
	return ManualEntryInput{
		StudentID:   f.student,
		CourseID:    &courseID,
		ClassID:     &classID,
		PaymentType: model.PaymentTypeCourse,
		Amount:      decimal.NewFromInt(amount),
		Reference:   ref,
		Method:      model.MethodBankTransfer,
	}
}

func countRows(t *testing.T, db *gorm.DB, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}

func ledgerRow(t *testing.T, db *gorm.DB, student uuid.UUID) ledgerModel.FinancialStatusModel {
	t.Helper()
	var st ledgerModel.FinancialStatusModel
	require.NoError(t, db.Where("financial_status_student_id = ?", student).Take(&st).Error)
	return st
}

func TestManualPaymentReconciledTwice(t *testing.T) {
	f := newFixture(t)
	s, notes := newService(t, f.db, receiptService.LocalStore{Dir: t.TempDir()}, nil)
	ctx := context.Background()

	entry, err := s.CreateManualEntry(ctx, staff, f.courseEntry("ABC123", 50000))
	require.NoError(t, err)

	first, err := s.ProcessManualPayment(ctx, staff, entry.ManualEntryID)
	require.NoError(t, err)
	assert.False(t, first.AlreadyProcessed)
	require.NotNil(t, first.Transaction)
	assert.Equal(t, "ABC123", first.Transaction.FinancialTransactionGatewayReference)
	require.NotNil(t, first.Transaction.FinancialTransactionReceiptURL)

	second, err := s.ProcessManualPayment(ctx, staff, entry.ManualEntryID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	require.NotNil(t, second.Transaction)
	assert.Equal(t, first.Transaction.FinancialTransactionID, second.Transaction.FinancialTransactionID)

	assert.EqualValues(t, 1, countRows(t, f.db, &transModel.FinancialTransactionModel{}))
	assert.EqualValues(t, 1, countRows(t, f.db, &model.CoursePaymentModel{}))
	st := ledgerRow(t, f.db, f.student)
	assert.True(t, st.FinancialStatusPaidAmount.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, 1, notes.Count(notifModel.CategoryPayment))

	var stored model.ManualPaymentEntryModel
	require.NoError(t, f.db.Take(&stored, "manual_entry_id = ?", entry.ManualEntryID).Error)
	assert.Equal(t, model.StagingVerified, stored.ManualEntryStatus)
	require.NotNil(t, stored.ManualEntryTransactionID)
	assert.Equal(t, first.Transaction.FinancialTransactionID, *stored.ManualEntryTransactionID)
	require.NotNil(t, stored.ManualEntryVerifiedBy)
	assert.Equal(t, staff.UserID, *stored.ManualEntryVerifiedBy)
}

func TestConcurrentReconcileCreatesOneTransaction(t *testing.T) {
	f := newFixture(t)
	s, _ := newService(t, f.db, receiptService.LocalStore{Dir: t.TempDir()}, nil)
	ctx := context.Background()

	entry, err := s.CreateManualEntry(ctx, staff, f.courseEntry("RACE-1", 20000))
	require.NoError(t, err)

	const workers = 6
	var wg sync.WaitGroup
	results := make([]*ReconcileResult, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.ProcessManualPayment(ctx, staff, entry.ManualEntryID)
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := range results {
		require.NoError(t, errs[i])
		if !results[i].AlreadyProcessed {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.EqualValues(t, 1, countRows(t, f.db, &transModel.FinancialTransactionModel{}))
	assert.True(t, ledgerRow(t, f.db, f.student).FinancialStatusPaidAmount.Equal(decimal.NewFromInt(20000)))
}

func TestManualVariantOfGatewayReferenceIsAlreadyProcessed(t *testing.T) {
	f := newFixture(t)
	s, _ := newService(t, f.db, receiptService.LocalStore{Dir: t.TempDir()}, nil)
	ctx := context.Background()

	in := f.courseEntry("ABC123", 30000)
	ver := &model.PaymentVerificationModel{
		VerificationStudentID: in.StudentID,
		VerificationCourseID:  in.CourseID,
		VerificationClassID:   in.ClassID,
		VerificationType:      model.PaymentTypeCourse,
		VerificationAmount:    in.Amount,
		VerificationReference: "ABC123",
		VerificationMethod:    model.MethodGateway,
	}
	require.NoError(t, f.db.Create(ver).Error)
	first, err := s.ProcessPaymentVerification(ctx, helperAuth.SystemActor, ver.VerificationID)
	require.NoError(t, err)
	require.False(t, first.AlreadyProcessed)

	in.Reference = "MANUAL-ABC123"
	entry, err := s.CreateManualEntry(ctx, staff, in)
	require.NoError(t, err)
	second, err := s.ProcessManualPayment(ctx, staff, entry.ManualEntryID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)

	assert.EqualValues(t, 1, countRows(t, f.db, &transModel.FinancialTransactionModel{}))
	assert.True(t, ledgerRow(t, f.db, f.student).FinancialStatusPaidAmount.Equal(decimal.NewFromInt(30000)))

	var stored model.ManualPaymentEntryModel
	require.NoError(t, f.db.Take(&stored, "manual_entry_id = ?", entry.ManualEntryID).Error)
	assert.Equal(t, model.StagingVerified, stored.ManualEntryStatus)
	require.NotNil(t, stored.ManualEntryTransactionID)
	assert.Equal(t, first.Transaction.FinancialTransactionID, *stored.ManualEntryTransactionID)
}

func TestReconcileValidationWritesNothing(t *testing.T) {
	f := newFixture(t)
	s, notes := newService(t, f.db, receiptService.LocalStore{Dir: t.TempDir()}, nil)
	courseID := f.course.CourseID

	// a course payment without class can only come from a bad import
	row := &model.ManualPaymentEntryModel{
		ManualEntryStudentID: f.student,
		ManualEntryCourseID:  &courseID,
		ManualEntryType:      model.PaymentTypeCourse,
		ManualEntryAmount:    decimal.NewFromInt(1000),
		ManualEntryReference: "BAD-1",
		ManualEntryMethod:    model.MethodCash,
	}
	require.NoError(t, f.db.Create(row).Error)

	_, err := s.ProcessManualPayment(context.Background(), staff, row.ManualEntryID)
	require.Error(t, err)
	assert.True(t, finerr.Is(err, finerr.KindValidation))

	assert.Zero(t, countRows(t, f.db, &transModel.FinancialTransactionModel{}))
	assert.Zero(t, countRows(t, f.db, &model.CoursePaymentModel{}))
	assert.Zero(t, countRows(t, f.db, &ledgerModel.FinancialStatusModel{}))
	assert.Empty(t, notes.Notes)

	var stored model.ManualPaymentEntryModel
	require.NoError(t, f.db.Take(&stored, "manual_entry_id = ?", row.ManualEntryID).Error)
	assert.Equal(t, model.StagingPending, stored.ManualEntryStatus)
}

func TestCreateManualEntryRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	s, _ := newService(t, f.db, receiptService.LocalStore{Dir: t.TempDir()}, nil)

	in := f.courseEntry("", 1000)
	_, err := s.CreateManualEntry(context.Background(), staff, in)
	assert.True(t, finerr.Is(err, finerr.KindValidation))

	in = f.courseEntry("NEG-1", -5)
	_, err = s.CreateManualEntry(context.Background(), staff, in)
	assert.True(t, finerr.Is(err, finerr.KindValidation))

	in = f.courseEntry("REG-1", 1000)
	in.PaymentType = model.PaymentTypeRegistration
	_, err = s.CreateManualEntry(context.Background(), staff, in)
	assert.True(t, finerr.Is(err, finerr.KindValidation), "registration needs program_id")

	assert.Zero(t, countRows(t, f.db, &model.ManualPaymentEntryModel{}))
}

func TestCreateManualEntryDoubleSubmit(t *testing.T) {
	f := newFixture(t)
	s, _ := newService(t, f.db, receiptService.LocalStore{Dir: t.TempDir()}, nil)
	ctx := context.Background()

	first, err := s.CreateManualEntry(ctx, staff, f.courseEntry("  DUP-7 ", 1000))
	require.NoError(t, err)
	assert.Equal(t, "DUP-7", first.ManualEntryReference)

	again, err := s.CreateManualEntry(ctx, staff, f.courseEntry("DUP-7", 1000))
	assert.True(t, finerr.IsAlreadyProcessed(err))
	require.NotNil(t, again)
	assert.Equal(t, first.ManualEntryID, again.ManualEntryID)
	assert.EqualValues(t, 1, countRows(t, f.db, &model.ManualPaymentEntryModel{}))
}

func TestReconcileRollsBackWhenReceiptFails(t *testing.T) {
	f := newFixture(t)
	s, notes := newService(t, f.db, failingStore{}, nil)
	ctx := context.Background()

	entry, err := s.CreateManualEntry(ctx, staff, f.courseEntry("RCPT-1", 40000))
	require.NoError(t, err)

	_, err = s.ProcessManualPayment(ctx, staff, entry.ManualEntryID)
	require.Error(t, err)

	assert.Zero(t, countRows(t, f.db, &transModel.FinancialTransactionModel{}))
	assert.Zero(t, countRows(t, f.db, &model.CoursePaymentModel{}))
	assert.Zero(t, countRows(t, f.db, &ledgerModel.FinancialStatusModel{}))
	assert.Empty(t, notes.Notes)

	var stored model.ManualPaymentEntryModel
	require.NoError(t, f.db.Take(&stored, "manual_entry_id = ?", entry.ManualEntryID).Error)
	assert.Equal(t, model.StagingPending, stored.ManualEntryStatus)

	// retry once storage is back
	s.Receipts = &receiptService.Issuer{Store: receiptService.LocalStore{Dir: t.TempDir()}, Prefix: "receipts"}
	res, err := s.ProcessManualPayment(ctx, staff, entry.ManualEntryID)
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.EqualValues(t, 1, countRows(t, f.db, &transModel.FinancialTransactionModel{}))
}

func TestRegistrationPaymentApprovesAndEnrolls(t *testing.T) {
	f := newFixture(t)
	s, _ := newService(t, f.db, receiptService.LocalStore{Dir: t.TempDir()}, nil)
	ctx := context.Background()
	programID := f.seed.Program.ProgramID
	classID := f.seed.Class.ClassID

	app := enrollModel.ApplicationModel{
		ApplicationStudentID: f.student,
		ApplicationProgramID: programID,
		ApplicationStatus:    enrollModel.ApplicationPending,
	}
	require.NoError(t, f.db.Create(&app).Error)
	require.NoError(t, f.db.Create(&enrollModel.EnrollmentModel{
		EnrollmentStudentID: f.student,
		EnrollmentProgramID: programID,
		EnrollmentStatus:    enrollModel.EnrollmentPending,
	}).Error)

	entry, err := s.CreateManualEntry(ctx, staff, ManualEntryInput{
		StudentID:   f.student,
		ProgramID:   &programID,
		ClassID:     &classID,
		PaymentType: model.PaymentTypeRegistration,
		Amount:      decimal.NewFromInt(10000),
		Reference:   "REG-42",
		Method:      model.MethodCash,
	})
	require.NoError(t, err)

	res, err := s.ProcessManualPayment(ctx, staff, entry.ManualEntryID)
	require.NoError(t, err)
	assert.Equal(t, transModel.TransactionRegistration, res.Transaction.FinancialTransactionType)

	require.NoError(t, f.db.Take(&app, "application_id = ?", app.ApplicationID).Error)
	assert.Equal(t, enrollModel.ApplicationApproved, app.ApplicationStatus)
	require.NotNil(t, app.ApplicationReviewedBy)
	assert.Equal(t, staff.UserID, *app.ApplicationReviewedBy)

	var enrollments []enrollModel.EnrollmentModel
	require.NoError(t, f.db.Where("enrollment_student_id = ?", f.student).Find(&enrollments).Error)
	require.Len(t, enrollments, 1)
	assert.Equal(t, enrollModel.EnrollmentActive, enrollments[0].EnrollmentStatus)

	var reg model.RegistrationPaymentModel
	require.NoError(t, f.db.Take(&reg).Error)
	assert.Equal(t, "REG-42", reg.RegistrationPaymentReference)
	require.NotNil(t, reg.RegistrationPaymentTransactionID)
	assert.Equal(t, res.Transaction.FinancialTransactionID, *reg.RegistrationPaymentTransactionID)

	st := ledgerRow(t, f.db, f.student)
	assert.True(t, st.FinancialStatusRegistrationPaid)
}

func TestRegistrationWithoutClassSkipsLedger(t *testing.T) {
	f := newFixture(t)
	s, _ := newService(t, f.db, receiptService.LocalStore{Dir: t.TempDir()}, nil)
	programID := f.seed.Program.ProgramID

	entry, err := s.CreateManualEntry(context.Background(), staff, ManualEntryInput{
		StudentID:   f.student,
		ProgramID:   &programID,
		PaymentType: model.PaymentTypeRegistration,
		Amount:      decimal.NewFromInt(10000),
		Reference:   "REG-43",
	})
	require.NoError(t, err)

	res, err := s.ProcessManualPayment(context.Background(), staff, entry.ManualEntryID)
	require.NoError(t, err)
	assert.Nil(t, res.Status)
	assert.Zero(t, countRows(t, f.db, &ledgerModel.FinancialStatusModel{}))
	assert.EqualValues(t, 1, countRows(t, f.db, &enrollModel.EnrollmentModel{}))
}

func (f fixture) registrationEntry(ref string, amount int64) ManualEntryInput {
	programID := f.seed.Program.ProgramID
	return ManualEntryInput{
		StudentID:   f.student,
		ProgramID:   &programID,
		PaymentType: model.PaymentTypeRegistration,
		Amount:      decimal.NewFromInt(amount),
		Reference:   ref,
		Method:      model.MethodBankTransfer,
	}
}

func (f fixture) reconcileEntry(t *testing.T, s *Service, in ManualEntryInput) *ReconcileResult {
	t.Helper()
	entry, err := s.CreateManualEntry(context.Background(), staff, in)
	require.NoError(t, err)
	res, err := s.ProcessManualPayment(context.Background(), staff, entry.ManualEntryID)
	require.NoError(t, err)
	return res
}

func TestRegistrationWithoutClassCreditedWhenClassLedgerOpens(t *testing.T) {
	f := newFixture(t)
	s, _ := newService(t, f.db, receiptService.LocalStore{Dir: t.TempDir()}, nil)
	classID := f.seed.Class.ClassID

	res := f.reconcileEntry(t, s, f.registrationEntry("REG-P1", 10000))
	assert.Nil(t, res.Status)

	res = f.reconcileEntry(t, s, f.courseEntry("CRS-P1", 90000))
	require.NotNil(t, res.Status)

	st := ledgerRow(t, f.db, f.student)
	assert.Equal(t, "100000.00", st.FinancialStatusTotalFee.StringFixed(2))
	assert.Equal(t, "100000.00", st.FinancialStatusPaidAmount.StringFixed(2))
	assert.True(t, st.FinancialStatusRegistrationPaid)
	assert.True(t, st.FinancialStatusIsCleared)

	var reg model.RegistrationPaymentModel
	require.NoError(t, f.db.Take(&reg).Error)
	require.NotNil(t, reg.RegistrationPaymentClassID)
	assert.Equal(t, classID, *reg.RegistrationPaymentClassID)

	var enr enrollModel.EnrollmentModel
	require.NoError(t, f.db.Take(&enr).Error)
	require.NotNil(t, enr.EnrollmentClassID)
	assert.Equal(t, classID, *enr.EnrollmentClassID)
}

func TestRegistrationWithoutClassUsesExistingLedgerClass(t *testing.T) {
	f := newFixture(t)
	s, _ := newService(t, f.db, receiptService.LocalStore{Dir: t.TempDir()}, nil)

	f.reconcileEntry(t, s, f.courseEntry("CRS-P2", 90000))
	assert.False(t, ledgerRow(t, f.db, f.student).FinancialStatusIsCleared)

	res := f.reconcileEntry(t, s, f.registrationEntry("REG-P2", 10000))
	require.NotNil(t, res.Status)
	require.NotNil(t, res.Transaction.FinancialTransactionClassID)
	assert.Equal(t, f.seed.Class.ClassID, *res.Transaction.FinancialTransactionClassID)

	st := ledgerRow(t, f.db, f.student)
	assert.Equal(t, "100000.00", st.FinancialStatusPaidAmount.StringFixed(2))
	assert.True(t, st.FinancialStatusRegistrationPaid)
	assert.True(t, st.FinancialStatusIsCleared)
	assert.EqualValues(t, 1, countRows(t, f.db, &ledgerModel.FinancialStatusModel{}))
}

func TestRejectPayment(t *testing.T) {
	f := newFixture(t)
	s, notes := newService(t, f.db, receiptService.LocalStore{Dir: t.TempDir()}, nil)
	ctx := context.Background()

	entry, err := s.CreateManualEntry(ctx, staff, f.courseEntry("REJ-1", 1000))
	require.NoError(t, err)

	err = s.RejectPayment(ctx, staff, StagingManual, entry.ManualEntryID, "")
	assert.True(t, finerr.Is(err, finerr.KindValidation))

	require.NoError(t, s.RejectPayment(ctx, staff, StagingManual, entry.ManualEntryID, "slip does not match"))
	require.NoError(t, s.RejectPayment(ctx, staff, StagingManual, entry.ManualEntryID, "again"))
	assert.Equal(t, 1, notes.Count(notifModel.CategoryPayment))

	var stored model.ManualPaymentEntryModel
	require.NoError(t, f.db.Take(&stored, "manual_entry_id = ?", entry.ManualEntryID).Error)
	assert.Equal(t, model.StagingRejected, stored.ManualEntryStatus)
	require.NotNil(t, stored.ManualEntryRejectionReason)
	assert.Equal(t, "slip does not match", *stored.ManualEntryRejectionReason)

	_, err = s.ProcessManualPayment(ctx, staff, entry.ManualEntryID)
	assert.True(t, finerr.Is(err, finerr.KindRejected))
	assert.Zero(t, countRows(t, f.db, &transModel.FinancialTransactionModel{}))

	ok, err := s.CreateManualEntry(ctx, staff, f.courseEntry("REJ-2", 1000))
	require.NoError(t, err)
	_, err = s.ProcessManualPayment(ctx, staff, ok.ManualEntryID)
	require.NoError(t, err)
	err = s.RejectPayment(ctx, staff, StagingManual, ok.ManualEntryID, "too late")
	assert.True(t, finerr.Is(err, finerr.KindConflict))
}

func TestReconcileUnknownStagingRow(t *testing.T) {
	f := newFixture(t)
	s, _ := newService(t, f.db, receiptService.LocalStore{Dir: t.TempDir()}, nil)

	_, err := s.ProcessPaymentVerification(context.Background(), staff, uuid.New())
	assert.True(t, finerr.Is(err, finerr.KindNotFound))

	_, err = s.Reconcile(context.Background(), staff, StagingKind("cheque"), uuid.New())
	assert.True(t, finerr.Is(err, finerr.KindValidation))
}
