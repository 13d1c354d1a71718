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
	"impactacademy_backend/internals/features/finance/ledger/model"
	notifModel "impactacademy_backend/internals/features/finance/notifications/model"
	"impactacademy_backend/internals/features/finance/notifications/notifytest"
	notifService "impactacademy_backend/internals/features/finance/notifications/service"
	payModel "impactacademy_backend/internals/features/finance/payments/model"
)

var (
	classStart = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	now        = time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func apply(t *testing.T, db *gorm.DB, studentID, classID uuid.UUID, amount int64, kind model.PaymentKind, outbox *notifService.Outbox) (*model.FinancialStatusModel, model.ApplyResult) {
	t.Helper()
	var (
		st  *model.FinancialStatusModel
		res model.ApplyResult
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		st, res, err = ApplyPayment(context.Background(), tx, ApplyInput{
			StudentID: studentID, ClassID: classID, Amount: d(amount), Kind: kind,
		}, outbox, now)
		return err
	})
	require.NoError(t, err)
	return st, res
}

func TestGetStudentFinancialStatusCreatesLazily(t *testing.T) {
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, classStart)
	student := uuid.New()

	st, err := GetStudentFinancialStatus(context.Background(), db, student, seed.Class.ClassID, now)
	require.NoError(t, err)
	assert.True(t, st.FinancialStatusTotalFee.Equal(d(100000)))
	assert.True(t, st.FinancialStatusBalance.Equal(d(100000)))
	assert.Equal(t, 1, st.FinancialStatusCurrentBlock)
	assert.False(t, st.FinancialStatusIsCleared)
	require.NotNil(t, st.FinancialStatusNextPaymentDue)
	assert.True(t, st.FinancialStatusNextPaymentDue.Equal(classStart.AddDate(0, 0, 30)))

	again, err := GetStudentFinancialStatus(context.Background(), db, student, seed.Class.ClassID, now)
	require.NoError(t, err)
	assert.Equal(t, st.FinancialStatusID, again.FinancialStatusID)

	var count int64
	db.Model(&model.FinancialStatusModel{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestGetStudentFinancialStatusCreditsRegistrationWithoutClass(t *testing.T) {
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, classStart)
	student := uuid.New()

	reg := payModel.RegistrationPaymentModel{
		RegistrationPaymentStudentID: student,
		RegistrationPaymentProgramID: seed.Program.ProgramID,
		RegistrationPaymentAmount:    d(10000),
		RegistrationPaymentReference: "REG-7",
		RegistrationPaymentMethod:    "bank_transfer",
		RegistrationPaymentPaidAt:    now,
	}
	require.NoError(t, db.Create(&reg).Error)
	// program lain tidak ikut dihitung
	require.NoError(t, db.Create(&payModel.RegistrationPaymentModel{
		RegistrationPaymentStudentID: student,
		RegistrationPaymentProgramID: uuid.New(),
		RegistrationPaymentAmount:    d(10000),
		RegistrationPaymentReference: "REG-8",
		RegistrationPaymentMethod:    "bank_transfer",
		RegistrationPaymentPaidAt:    now,
	}).Error)

	st, err := GetStudentFinancialStatus(context.Background(), db, student, seed.Class.ClassID, now)
	require.NoError(t, err)
	assert.True(t, st.FinancialStatusPaidAmount.Equal(d(10000)))
	assert.True(t, st.FinancialStatusBalance.Equal(d(90000)))
	assert.True(t, st.FinancialStatusRegistrationPaid)

	require.NoError(t, db.Take(&reg, "registration_payment_id = ?", reg.RegistrationPaymentID).Error)
	require.NotNil(t, reg.RegistrationPaymentClassID)
	assert.Equal(t, seed.Class.ClassID, *reg.RegistrationPaymentClassID)

	st, res := apply(t, db, student, seed.Class.ClassID, 90000, model.PaymentKindCourse, nil)
	assert.True(t, res.BecameCleared)
	assert.True(t, st.FinancialStatusPaidAmount.Equal(d(100000)))

	id, err := ClassForProgram(context.Background(), db, student, seed.Program.ProgramID)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, seed.Class.ClassID, *id)
}

func TestChargeLateFeeShiftsBlockThresholds(t *testing.T) {
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, classStart)
	student, classID := uuid.New(), seed.Class.ClassID

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := ChargeLateFee(context.Background(), tx, student, classID, d(3150), now)
		return err
	})
	require.NoError(t, err)

	st, res := apply(t, db, student, classID, 70000, model.PaymentKindCourse, nil)
	assert.Empty(t, res.CompletedBlocks)
	assert.True(t, st.FinancialStatusTotalFee.Equal(d(103150)))
	assert.True(t, st.FinancialStatusPaidAmount.Equal(d(70000)))

	st, res = apply(t, db, student, classID, 3150, model.PaymentKindCourse, nil)
	assert.Equal(t, []int{1}, res.CompletedBlocks)
	assert.True(t, st.FinancialStatusBalance.Equal(d(30000)))

	st, res = apply(t, db, student, classID, 30000, model.PaymentKindCourse, nil)
	assert.True(t, res.BecameCleared)
	assert.True(t, st.FinancialStatusBlock2Paid)

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := ChargeLateFee(context.Background(), tx, student, classID, decimal.Zero, now)
		return err
	})
	assert.Equal(t, finerr.KindValidation, finerr.KindOf(err))
}

func TestGetStudentFinancialStatusWithoutFeeConfig(t *testing.T) {
	db := dbtest.NewTestDB(t)
	_, err := GetStudentFinancialStatus(context.Background(), db, uuid.New(), uuid.New(), now)
	assert.Equal(t, finerr.KindConfiguration, finerr.KindOf(err))
}

func TestApplyPaymentScenario(t *testing.T) {
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, classStart)
	student := uuid.New()
	outbox := notifService.NewOutbox()

	apply(t, db, student, seed.Class.ClassID, 10000, model.PaymentKindRegistration, outbox)
	st, _ := apply(t, db, student, seed.Class.ClassID, 60000, model.PaymentKindTuition, outbox)

	assert.True(t, st.FinancialStatusRegistrationPaid)
	assert.True(t, st.FinancialStatusBlock1Paid)
	assert.Equal(t, 2, st.FinancialStatusCurrentBlock)
	assert.True(t, st.FinancialStatusBalance.Equal(d(30000)))
	assert.False(t, st.FinancialStatusIsCleared)
	require.NotNil(t, st.FinancialStatusNextPaymentDue)
	assert.True(t, st.FinancialStatusNextPaymentDue.Equal(classStart.AddDate(0, 0, 90)))
	assert.Equal(t, 0, outbox.Len())

	st, res := apply(t, db, student, seed.Class.ClassID, 30000, model.PaymentKindTuition, outbox)
	assert.True(t, res.BecameCleared)
	assert.True(t, st.FinancialStatusIsCleared)
	assert.Nil(t, st.FinancialStatusNextPaymentDue)

	_, res = apply(t, db, student, seed.Class.ClassID, 1000, model.PaymentKindTuition, outbox)
	assert.False(t, res.BecameCleared)

	rec := &notifytest.Recorder{}
	outbox.Flush(context.Background(), rec, nil, zap.NewNop())
	assert.Equal(t, 1, rec.Count(notifModel.CategoryClearance))

	var stored model.FinancialStatusModel
	require.NoError(t, db.First(&stored, "financial_status_id = ?", st.FinancialStatusID).Error)
	assert.True(t, stored.FinancialStatusBalance.Equal(stored.FinancialStatusTotalFee.Sub(stored.FinancialStatusPaidAmount)))
	assert.True(t, stored.FinancialStatusIsCleared)
}

func TestApplyPaymentRejectsNonPositiveAmount(t *testing.T) {
	db := dbtest.NewTestDB(t)
	err := db.Transaction(func(tx *gorm.DB) error {
		_, _, err := ApplyPayment(context.Background(), tx, ApplyInput{StudentID: uuid.New(), ClassID: uuid.New(), Amount: d(0)}, nil, now)
		return err
	})
	assert.Equal(t, finerr.KindValidation, finerr.KindOf(err))
}

func TestSuspendAndLiftOnClearance(t *testing.T) {
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, classStart)
	student := uuid.New()
	classID := seed.Class.ClassID

	require.NoError(t, db.Create(&enrollModel.EnrollmentModel{
		EnrollmentStudentID: student,
		EnrollmentProgramID: seed.Program.ProgramID,
		EnrollmentClassID:   &classID,
		EnrollmentStatus:    enrollModel.EnrollmentActive,
	}).Error)

	st, err := GetStudentFinancialStatus(context.Background(), db, student, classID, now)
	require.NoError(t, err)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return Suspend(context.Background(), tx, st, "overdue", now)
	}))

	var enr enrollModel.EnrollmentModel
	require.NoError(t, db.First(&enr, "enrollment_student_id = ?", student).Error)
	assert.Equal(t, enrollModel.EnrollmentSuspended, enr.EnrollmentStatus)

	st, _ = apply(t, db, student, classID, 100000, model.PaymentKindTuition, notifService.NewOutbox())
	assert.False(t, st.FinancialStatusIsSuspended)
	assert.Nil(t, st.FinancialStatusSuspensionReason)

	require.NoError(t, db.First(&enr, "enrollment_student_id = ?", student).Error)
	assert.Equal(t, enrollModel.EnrollmentActive, enr.EnrollmentStatus)
}

func TestBlockProgressionCheckRepairsAndReminds(t *testing.T) {
	db := dbtest.NewTestDB(t)
	seed := dbtest.SeedClass(t, db, feeModel.ProgramTypeOnline, 90000, classStart)

	// paid past block 1 but the flag was never set
	due := now.AddDate(0, 0, 5)
	broken := model.FinancialStatusModel{
		FinancialStatusStudentID:      uuid.New(),
		FinancialStatusClassID:        seed.Class.ClassID,
		FinancialStatusProgramType:    feeModel.ProgramTypeOnline,
		FinancialStatusTotalFee:       d(100000),
		FinancialStatusPaidAmount:     d(75000),
		FinancialStatusCurrentBlock:   1,
		FinancialStatusNextPaymentDue: &due,
	}
	require.NoError(t, db.Create(&broken).Error)

	// nothing paid, block 1 due in 5 days
	pending := broken
	pending.FinancialStatusID = uuid.Nil
	pending.FinancialStatusStudentID = uuid.New()
	pending.FinancialStatusPaidAmount = decimal.Zero
	require.NoError(t, db.Create(&pending).Error)

	rec := &notifytest.Recorder{}
	svc := New(db, rec, nil, zap.NewNop())
	svc.Now = func() time.Time { return now }

	sum, err := svc.BlockProgressionCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Scanned)
	assert.Equal(t, 1, sum.Repaired)
	assert.Equal(t, 1, sum.Reminded)
	assert.Equal(t, 0, sum.Failed)

	var fixed model.FinancialStatusModel
	require.NoError(t, db.First(&fixed, "financial_status_id = ?", broken.FinancialStatusID).Error)
	assert.True(t, fixed.FinancialStatusBlock1Paid)
	assert.Equal(t, 2, fixed.FinancialStatusCurrentBlock)

	require.Len(t, rec.Notes, 1)
	assert.Equal(t, pending.FinancialStatusStudentID, rec.Notes[0].UserID)

	// second run is a no-op repair-wise
	sum, err = svc.BlockProgressionCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Repaired)
}
