package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

/*
  payment_plans = per-program fee configuration.
  Read-only for the ledger; DefaultPaymentPlan() applies when a program has
  no active plan.
*/

type PaymentPlanModel struct {
	PaymentPlanID        uuid.UUID `gorm:"column:payment_plan_id;type:uuid;primaryKey" json:"payment_plan_id"`
	PaymentPlanProgramID uuid.UUID `gorm:"column:payment_plan_program_id;type:uuid;not null;index" json:"payment_plan_program_id"`

	PaymentPlanRegistrationFee   decimal.Decimal `gorm:"column:payment_plan_registration_fee;type:numeric(14,2);not null" json:"payment_plan_registration_fee"`
	PaymentPlanBlock1Percentage  decimal.Decimal `gorm:"column:payment_plan_block1_percentage;type:numeric(5,2);not null" json:"payment_plan_block1_percentage"`
	PaymentPlanBlock2Percentage  decimal.Decimal `gorm:"column:payment_plan_block2_percentage;type:numeric(5,2);not null" json:"payment_plan_block2_percentage"`
	PaymentPlanBlock1DueDays     int             `gorm:"column:payment_plan_block1_due_days;not null" json:"payment_plan_block1_due_days"`
	PaymentPlanBlock2DueDays     int             `gorm:"column:payment_plan_block2_due_days;not null" json:"payment_plan_block2_due_days"`
	PaymentPlanLateFeePercentage decimal.Decimal `gorm:"column:payment_plan_late_fee_percentage;type:numeric(5,2);not null" json:"payment_plan_late_fee_percentage"`
	PaymentPlanSuspensionDays    int             `gorm:"column:payment_plan_suspension_days;not null" json:"payment_plan_suspension_days"`
	PaymentPlanReminderDays      int             `gorm:"column:payment_plan_reminder_days;not null" json:"payment_plan_reminder_days"`
	PaymentPlanIsActive          bool            `gorm:"column:payment_plan_is_active;not null" json:"payment_plan_is_active"`

	PaymentPlanCreatedAt time.Time `gorm:"column:payment_plan_created_at;autoCreateTime" json:"payment_plan_created_at"`
	PaymentPlanUpdatedAt time.Time `gorm:"column:payment_plan_updated_at;autoUpdateTime" json:"payment_plan_updated_at"`
}

func (PaymentPlanModel) TableName() string { return "payment_plans" }

func (m *PaymentPlanModel) BeforeCreate(tx *gorm.DB) error {
	if m.PaymentPlanID == uuid.Nil {
		m.PaymentPlanID = uuid.New()
	}
	return nil
}

var DefaultRegistrationFee = decimal.NewFromInt(10000)

// DefaultPaymentPlan is the plan used when a program has none configured.
func DefaultPaymentPlan() PaymentPlanModel {
	return PaymentPlanModel{
		PaymentPlanRegistrationFee:   DefaultRegistrationFee,
		PaymentPlanBlock1Percentage:  decimal.NewFromInt(70),
		PaymentPlanBlock2Percentage:  decimal.NewFromInt(30),
		PaymentPlanBlock1DueDays:     30,
		PaymentPlanBlock2DueDays:     90,
		PaymentPlanLateFeePercentage: decimal.NewFromInt(5),
		PaymentPlanSuspensionDays:    21,
		PaymentPlanReminderDays:      3,
		PaymentPlanIsActive:          true,
	}
}

var hundred = decimal.NewFromInt(100)

// Thresholds returns the cumulative paid amounts at which each block (online)
// or term (onsite) counts as settled. Registration counts toward the first
// block; the last threshold is always the total fee.
func (m PaymentPlanModel) Thresholds(pt ProgramType, total decimal.Decimal) []decimal.Decimal {
	if pt == ProgramTypeOnsite {
		third := total.Div(decimal.NewFromInt(3)).Round(2)
		return []decimal.Decimal{third, third.Mul(decimal.NewFromInt(2)), total}
	}
	b1 := total.Mul(m.PaymentPlanBlock1Percentage).Div(hundred).Round(2)
	return []decimal.Decimal{b1, total}
}

// LateFee is the late-fee amount charged on an overdue invoice.
func (m PaymentPlanModel) LateFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(m.PaymentPlanLateFeePercentage).Div(hundred).Round(2)
}
