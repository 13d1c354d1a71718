// file: internals/features/finance/fees/service/calculator.go
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"impactacademy_backend/internals/features/finance/fees/model"
	"impactacademy_backend/internals/features/finance/finerr"
)

const onsiteTerms = 3

type FeeBreakdown struct {
	ClassID         uuid.UUID         `json:"class_id"`
	ProgramID       uuid.UUID         `json:"program_id"`
	ProgramType     model.ProgramType `json:"program_type"`
	RegistrationFee decimal.Decimal   `json:"registration_fee"`
	CoreFee         decimal.Decimal   `json:"core_fee"`

	// online
	Block1Amount decimal.Decimal `json:"block1_amount"`
	Block2Amount decimal.Decimal `json:"block2_amount"`

	// onsite
	TermFee     decimal.Decimal   `json:"term_fee"`
	TermAmounts []decimal.Decimal `json:"term_amounts,omitempty"`

	TotalFee decimal.Decimal        `json:"total_fee"`
	Plan     model.PaymentPlanModel `json:"-"`
}

// Thresholds are the cumulative ledger thresholds for this breakdown.
func (b *FeeBreakdown) Thresholds() []decimal.Decimal {
	return b.Plan.Thresholds(b.ProgramType, b.TotalFee)
}

// ResolvePlan ambil plan aktif program, fallback ke plan default.
func ResolvePlan(ctx context.Context, db *gorm.DB, programID uuid.UUID) (model.PaymentPlanModel, error) {
	var plan model.PaymentPlanModel
	err := db.WithContext(ctx).
		Where("payment_plan_program_id = ? AND payment_plan_is_active = ?", programID, true).
		Order("payment_plan_created_at DESC").
		First(&plan).Error
	switch {
	case err == nil:
		return plan, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		p := model.DefaultPaymentPlan()
		p.PaymentPlanProgramID = programID
		return p, nil
	default:
		return model.PaymentPlanModel{}, finerr.Persistence(err, "load payment plan")
	}
}

// LoadClassProgram resolves a class and its program. A missing row of either
// is a configuration error: the fee is not set up, it is not zero.
func LoadClassProgram(ctx context.Context, db *gorm.DB, classID uuid.UUID) (*model.AcademyClassModel, *model.ProgramModel, error) {
	var class model.AcademyClassModel
	if err := db.WithContext(ctx).First(&class, "class_id = ?", classID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, finerr.Configuration("class %s not found", classID)
		}
		return nil, nil, finerr.Persistence(err, "load class")
	}
	var program model.ProgramModel
	if err := db.WithContext(ctx).First(&program, "program_id = ?", class.ClassProgramID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, finerr.Configuration("program for class %s not found", classID)
		}
		return nil, nil, finerr.Persistence(err, "load program")
	}
	return &class, &program, nil
}

// CalculateTotalFee derives the fee breakdown of a class. programType may be
// empty, in which case the program's own type is used.
func CalculateTotalFee(ctx context.Context, db *gorm.DB, classID uuid.UUID, programType model.ProgramType) (*FeeBreakdown, error) {
	_, program, err := LoadClassProgram(ctx, db, classID)
	if err != nil {
		return nil, err
	}
	if programType == "" {
		programType = program.ProgramType
	}
	if !programType.Valid() {
		return nil, finerr.Validation("invalid program type %q", programType)
	}
	if programType != program.ProgramType {
		return nil, finerr.Configuration("class %s belongs to an %s program, not %s", classID, program.ProgramType, programType)
	}

	var core struct{ Total decimal.Decimal }
	if err := db.WithContext(ctx).
		Model(&model.CourseModel{}).
		Select("COALESCE(SUM(course_fee), 0) AS total").
		Where("course_program_id = ? AND course_is_core = ?", program.ProgramID, true).
		Scan(&core).Error; err != nil {
		return nil, finerr.Persistence(err, "sum core course fees")
	}
	coreFee := core.Total
	if !coreFee.IsPositive() {
		coreFee = program.ProgramBaseFee
	}
	if !coreFee.IsPositive() {
		return nil, finerr.Configuration("no fee configured for program %s", program.ProgramName)
	}

	plan, err := ResolvePlan(ctx, db, program.ProgramID)
	if err != nil {
		return nil, err
	}

	b := &FeeBreakdown{
		ClassID:         classID,
		ProgramID:       program.ProgramID,
		ProgramType:     programType,
		RegistrationFee: registrationFee(plan, program),
		CoreFee:         coreFee.Round(2),
		Plan:            plan,
	}
	b.TotalFee = b.RegistrationFee.Add(b.CoreFee)

	switch programType {
	case model.ProgramTypeOnline:
		b.Block1Amount = b.CoreFee.Mul(plan.PaymentPlanBlock1Percentage).Div(decimal.NewFromInt(100)).Round(2)
		b.Block2Amount = b.CoreFee.Sub(b.Block1Amount)
	case model.ProgramTypeOnsite:
		b.TermFee = b.CoreFee.Div(decimal.NewFromInt(onsiteTerms)).Round(2)
		b.TermAmounts = make([]decimal.Decimal, onsiteTerms)
		rest := b.CoreFee
		for i := 0; i < onsiteTerms-1; i++ {
			b.TermAmounts[i] = b.TermFee
			rest = rest.Sub(b.TermFee)
		}
		b.TermAmounts[onsiteTerms-1] = rest
	}
	return b, nil
}

func registrationFee(plan model.PaymentPlanModel, program *model.ProgramModel) decimal.Decimal {
	if plan.PaymentPlanID != uuid.Nil && plan.PaymentPlanRegistrationFee.IsPositive() {
		return plan.PaymentPlanRegistrationFee
	}
	if program.ProgramRegistrationFee.IsPositive() {
		return program.ProgramRegistrationFee
	}
	return model.DefaultRegistrationFee
}

// RegistrationFeeForProgram biaya registrasi saat kelas belum dipilih.
func RegistrationFeeForProgram(ctx context.Context, db *gorm.DB, programID uuid.UUID) (decimal.Decimal, error) {
	var program model.ProgramModel
	if err := db.WithContext(ctx).Where("program_id = ?", programID).Take(&program).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, finerr.Configuration("program %s not found", programID)
		}
		return decimal.Zero, finerr.Persistence(err, "load program")
	}
	plan, err := ResolvePlan(ctx, db, programID)
	if err != nil {
		return decimal.Zero, err
	}
	return registrationFee(plan, &program), nil
}
