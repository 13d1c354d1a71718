// file: internals/features/finance/ledger/service/status.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	enrollModel "impactacademy_backend/internals/features/finance/enrollments/model"
	feeModel "impactacademy_backend/internals/features/finance/fees/model"
	feeService "impactacademy_backend/internals/features/finance/fees/service"
	"impactacademy_backend/internals/features/finance/finerr"
	"impactacademy_backend/internals/features/finance/ledger/model"
	notifModel "impactacademy_backend/internals/features/finance/notifications/model"
	notifService "impactacademy_backend/internals/features/finance/notifications/service"
	payModel "impactacademy_backend/internals/features/finance/payments/model"
	helper "impactacademy_backend/internals/helpers"
)

// ClassTerms bundles what the ledger needs to know about a class.
type ClassTerms struct {
	ProgramType feeModel.ProgramType
	Plan        feeModel.PaymentPlanModel
	StartDate   *time.Time
}

func LoadClassTerms(ctx context.Context, db *gorm.DB, classID uuid.UUID) (*ClassTerms, error) {
	class, program, err := feeService.LoadClassProgram(ctx, db, classID)
	if err != nil {
		return nil, err
	}
	plan, err := feeService.ResolvePlan(ctx, db, program.ProgramID)
	if err != nil {
		return nil, err
	}
	return &ClassTerms{ProgramType: program.ProgramType, Plan: plan, StartDate: class.ClassStartDate}, nil
}

// Thresholds dihitung dari biaya tanpa denda, lalu digeser sebesar denda
// yang sudah dibebankan: denda harus lunas sebelum blok dianggap selesai.
func (t *ClassTerms) Thresholds(st *model.FinancialStatusModel) []decimal.Decimal {
	base := st.FinancialStatusTotalFee.Sub(st.FinancialStatusLateFees)
	out := t.Plan.Thresholds(t.ProgramType, base)
	for i := range out {
		out[i] = out[i].Add(st.FinancialStatusLateFees)
	}
	return out
}

// DueDate returns when block (1-based) falls due. Onsite term 3 follows term
// 2 by the same gap that separates terms 1 and 2.
func (t *ClassTerms) DueDate(block int, now time.Time) time.Time {
	start := now
	if t.StartDate != nil {
		start = *t.StartDate
	}
	b1 := t.Plan.PaymentPlanBlock1DueDays
	b2 := t.Plan.PaymentPlanBlock2DueDays
	switch block {
	case 1:
		return start.AddDate(0, 0, b1)
	case 2:
		return start.AddDate(0, 0, b2)
	default:
		return start.AddDate(0, 0, b2+(b2-b1)*(block-2))
	}
}

func findStatus(ctx context.Context, db *gorm.DB, studentID, classID uuid.UUID) (*model.FinancialStatusModel, error) {
	var st model.FinancialStatusModel
	err := db.WithContext(ctx).
		Where("financial_status_student_id = ? AND financial_status_class_id = ?", studentID, classID).
		Take(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetStudentFinancialStatus returns the ledger row of (student, class),
// creating it from the fee breakdown on first access. Registration payments
// of the program made before a class was chosen are credited to the new row
// and get the class attached.
func GetStudentFinancialStatus(ctx context.Context, db *gorm.DB, studentID, classID uuid.UUID, now time.Time) (*model.FinancialStatusModel, error) {
	if studentID == uuid.Nil || classID == uuid.Nil {
		return nil, finerr.Validation("student_id and class_id are required")
	}
	st, err := findStatus(ctx, db, studentID, classID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, finerr.Persistence(err, "load financial status")
	}

	fee, err := feeService.CalculateTotalFee(ctx, db, classID, "")
	if err != nil {
		return nil, err
	}
	terms, err := LoadClassTerms(ctx, db, classID)
	if err != nil {
		return nil, err
	}
	row := model.FinancialStatusModel{
		FinancialStatusStudentID:    studentID,
		FinancialStatusClassID:      classID,
		FinancialStatusProgramType:  fee.ProgramType,
		FinancialStatusTotalFee:     fee.TotalFee,
		FinancialStatusPaidAmount:   decimal.Zero,
		FinancialStatusCurrentBlock: 1,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []payModel.RegistrationPaymentModel
		if err := tx.
			Where("registration_payment_student_id = ? AND registration_payment_program_id = ?", studentID, fee.ProgramID).
			Where("registration_payment_class_id IS NULL AND registration_payment_status = ?", payModel.PaymentRecordCompleted).
			Find(&pending).Error; err != nil {
			return finerr.Persistence(err, "load registration payments without class")
		}
		ids := make([]uuid.UUID, 0, len(pending))
		for _, p := range pending {
			row.FinancialStatusPaidAmount = row.FinancialStatusPaidAmount.Add(p.RegistrationPaymentAmount)
			ids = append(ids, p.RegistrationPaymentID)
		}
		if len(ids) > 0 {
			row.FinancialStatusRegistrationPaid = true
			row.Recompute()
			row.AdvanceBlocks(terms.Thresholds(&row))
		}
		due := terms.DueDate(row.FinancialStatusCurrentBlock, now)
		row.FinancialStatusNextPaymentDue = &due

		// akses pertama yang bersamaan mungkin sudah membuat barisnya
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "financial_status_student_id"}, {Name: "financial_status_class_id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return finerr.Persistence(res.Error, "create financial status")
		}
		if res.RowsAffected == 0 || len(ids) == 0 {
			return nil
		}
		return attachClass(tx, studentID, fee.ProgramID, classID, ids)
	})
	if err != nil {
		return nil, err
	}
	st, err = findStatus(ctx, db, studentID, classID)
	if err != nil {
		return nil, finerr.Persistence(err, "reload financial status")
	}
	return st, nil
}

// attachClass mengikat pembayaran registrasi (dan enrollment) tanpa kelas ke
// classID. Bila pembayaran sudah diklaim kelas lain, seluruh unit dibatalkan.
func attachClass(tx *gorm.DB, studentID, programID, classID uuid.UUID, ids []uuid.UUID) error {
	res := tx.Model(&payModel.RegistrationPaymentModel{}).
		Where("registration_payment_id IN ? AND registration_payment_class_id IS NULL", ids).
		Update("registration_payment_class_id", classID)
	if res.Error != nil {
		return finerr.Persistence(res.Error, "attach class to registration payments")
	}
	if res.RowsAffected != int64(len(ids)) {
		return finerr.Conflict("registration payment already credited to another class")
	}
	if err := tx.Model(&enrollModel.EnrollmentModel{}).
		Where("enrollment_student_id = ? AND enrollment_program_id = ? AND enrollment_class_id IS NULL", studentID, programID).
		Update("enrollment_class_id", classID).Error; err != nil {
		return finerr.Persistence(err, "attach class to enrollment")
	}
	return nil
}

// ClassForProgram mencari kelas yang sudah diikuti siswa dalam program:
// kelas di enrollment, atau satu-satunya baris ledger untuk kelas program
// tersebut. Nil bila belum ada atau ambigu.
func ClassForProgram(ctx context.Context, db *gorm.DB, studentID, programID uuid.UUID) (*uuid.UUID, error) {
	var enr enrollModel.EnrollmentModel
	err := db.WithContext(ctx).
		Where("enrollment_student_id = ? AND enrollment_program_id = ? AND enrollment_class_id IS NOT NULL", studentID, programID).
		Take(&enr).Error
	if err == nil {
		return enr.EnrollmentClassID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, finerr.Persistence(err, "look up enrolled class")
	}

	var ids []uuid.UUID
	if err := db.WithContext(ctx).
		Model(&model.FinancialStatusModel{}).
		Joins("JOIN academy_classes ON academy_classes.class_id = student_financial_status.financial_status_class_id").
		Where("student_financial_status.financial_status_student_id = ? AND academy_classes.class_program_id = ?", studentID, programID).
		Limit(2).
		Pluck("student_financial_status.financial_status_class_id", &ids).Error; err != nil {
		return nil, finerr.Persistence(err, "look up ledger class")
	}
	if len(ids) != 1 {
		return nil, nil
	}
	return &ids[0], nil
}

type ApplyInput struct {
	StudentID uuid.UUID
	ClassID   uuid.UUID
	Amount    decimal.Decimal
	Kind      model.PaymentKind
}

// ApplyPayment mutates the ledger row inside tx. The clearance notification
// is queued on outbox only on the false to true edge.
func ApplyPayment(ctx context.Context, tx *gorm.DB, in ApplyInput, outbox *notifService.Outbox, now time.Time) (*model.FinancialStatusModel, model.ApplyResult, error) {
	var res model.ApplyResult
	if !in.Amount.IsPositive() {
		return nil, res, finerr.Validation("amount must be positive")
	}
	if _, err := GetStudentFinancialStatus(ctx, tx, in.StudentID, in.ClassID, now); err != nil {
		return nil, res, err
	}

	var st model.FinancialStatusModel
	if err := helper.ForUpdate(tx.WithContext(ctx)).
		Where("financial_status_student_id = ? AND financial_status_class_id = ?", in.StudentID, in.ClassID).
		Take(&st).Error; err != nil {
		return nil, res, finerr.Persistence(err, "lock financial status")
	}

	terms, err := LoadClassTerms(ctx, tx, in.ClassID)
	if err != nil {
		return nil, res, err
	}

	res = st.ApplyPayment(in.Amount, in.Kind, terms.Thresholds(&st), now)

	if st.FinancialStatusIsCleared {
		st.FinancialStatusNextPaymentDue = nil
	} else if len(res.CompletedBlocks) > 0 {
		due := terms.DueDate(st.FinancialStatusCurrentBlock, now)
		st.FinancialStatusNextPaymentDue = &due
	}

	lifted := false
	if st.FinancialStatusIsCleared && st.FinancialStatusIsSuspended {
		st.FinancialStatusIsSuspended = false
		st.FinancialStatusSuspendedAt = nil
		st.FinancialStatusSuspensionReason = nil
		lifted = true
	}

	if err := tx.WithContext(ctx).Save(&st).Error; err != nil {
		return nil, res, finerr.Persistence(err, "update financial status")
	}

	if lifted {
		if err := setEnrollmentStatus(ctx, tx, in.StudentID, in.ClassID, enrollModel.EnrollmentSuspended, enrollModel.EnrollmentActive); err != nil {
			return nil, res, err
		}
	}

	if res.BecameCleared && outbox != nil {
		outbox.Notify(in.StudentID,
			"Fees cleared",
			fmt.Sprintf("Your fees are fully paid (total %s). Thank you!", st.FinancialStatusTotalFee.StringFixed(2)),
			notifModel.CategoryClearance,
		)
	}
	return &st, res, nil
}

// ChargeLateFee menambahkan denda ke total_fee baris (student, class) di
// dalam tx, sehingga pembayaran denda tidak mengurangi sisa biaya kuliah.
func ChargeLateFee(ctx context.Context, tx *gorm.DB, studentID, classID uuid.UUID, amount decimal.Decimal, now time.Time) (*model.FinancialStatusModel, error) {
	if !amount.IsPositive() {
		return nil, finerr.Validation("late fee must be positive")
	}
	if _, err := GetStudentFinancialStatus(ctx, tx, studentID, classID, now); err != nil {
		return nil, err
	}
	var st model.FinancialStatusModel
	if err := helper.ForUpdate(tx.WithContext(ctx)).
		Where("financial_status_student_id = ? AND financial_status_class_id = ?", studentID, classID).
		Take(&st).Error; err != nil {
		return nil, finerr.Persistence(err, "lock financial status")
	}
	st.AddCharge(amount)
	if err := tx.WithContext(ctx).Save(&st).Error; err != nil {
		return nil, finerr.Persistence(err, "add late fee to financial status")
	}
	return &st, nil
}

// Suspend marks the row suspended and cascades to the enrollment.
func Suspend(ctx context.Context, tx *gorm.DB, st *model.FinancialStatusModel, reason string, now time.Time) error {
	t := now
	st.FinancialStatusIsSuspended = true
	st.FinancialStatusSuspendedAt = &t
	st.FinancialStatusSuspensionReason = &reason

	if err := tx.WithContext(ctx).
		Model(&model.FinancialStatusModel{}).
		Where("financial_status_id = ?", st.FinancialStatusID).
		Updates(map[string]any{
			"financial_status_is_suspended":      true,
			"financial_status_suspended_at":      t,
			"financial_status_suspension_reason": reason,
		}).Error; err != nil {
		return finerr.Persistence(err, "suspend financial status")
	}
	return setEnrollmentStatus(ctx, tx, st.FinancialStatusStudentID, st.FinancialStatusClassID, "", enrollModel.EnrollmentSuspended)
}

func setEnrollmentStatus(ctx context.Context, tx *gorm.DB, studentID, classID uuid.UUID, from, to enrollModel.EnrollmentStatus) error {
	q := tx.WithContext(ctx).
		Model(&enrollModel.EnrollmentModel{}).
		Where("enrollment_student_id = ? AND enrollment_class_id = ?", studentID, classID)
	if from != "" {
		q = q.Where("enrollment_status = ?", from)
	}
	if err := q.Update("enrollment_status", to).Error; err != nil {
		return finerr.Persistence(err, "update enrollment status")
	}
	return nil
}
