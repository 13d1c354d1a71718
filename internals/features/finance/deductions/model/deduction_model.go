// file: internals/features/finance/deductions/model/deduction_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ExpenseStatus string

const (
	ExpensePending  ExpenseStatus = "pending"
	ExpenseApproved ExpenseStatus = "approved"
	ExpenseRejected ExpenseStatus = "rejected"
)

// CategoryAutomatedDeduction is the expense category of rule-generated rows.
const CategoryAutomatedDeduction = "automated_deduction"

/* ===================== deduction_rules ===================== */

type DeductionRuleModel struct {
	DeductionRuleID            uuid.UUID       `gorm:"column:deduction_rule_id;type:uuid;primaryKey" json:"deduction_rule_id"`
	DeductionRuleType          string          `gorm:"column:deduction_rule_type;type:varchar(40);not null;uniqueIndex:uq_deduction_rule_type" json:"deduction_rule_type"`
	DeductionRuleName          string          `gorm:"column:deduction_rule_name;type:varchar(120);not null" json:"deduction_rule_name"`
	DeductionRulePercentage    decimal.Decimal `gorm:"column:deduction_rule_percentage;type:numeric(5,2);not null" json:"deduction_rule_percentage"`
	DeductionRuleIsActive      bool            `gorm:"column:deduction_rule_is_active;not null" json:"deduction_rule_is_active"`
	DeductionRuleTotalDeducted decimal.Decimal `gorm:"column:deduction_rule_total_deducted;type:numeric(14,2);not null" json:"deduction_rule_total_deducted"`
	DeductionRuleLastPeriodKey *string         `gorm:"column:deduction_rule_last_period_key;type:varchar(7)" json:"deduction_rule_last_period_key"`

	DeductionRuleCreatedAt time.Time `gorm:"column:deduction_rule_created_at;autoCreateTime" json:"deduction_rule_created_at"`
	DeductionRuleUpdatedAt time.Time `gorm:"column:deduction_rule_updated_at;autoUpdateTime" json:"deduction_rule_updated_at"`
}

func (DeductionRuleModel) TableName() string { return "deduction_rules" }

func (m *DeductionRuleModel) BeforeCreate(tx *gorm.DB) error {
	if m.DeductionRuleID == uuid.Nil {
		m.DeductionRuleID = uuid.New()
	}
	return nil
}

/* ===================== expenses ===================== */

// ExpenseModel rows generated by a rule carry (deduction_type, period_key);
// the pair is unique so a month is never deducted twice. Hand-entered
// expenses leave both NULL.
type ExpenseModel struct {
	ExpenseID            uuid.UUID       `gorm:"column:expense_id;type:uuid;primaryKey" json:"expense_id"`
	ExpenseCategory      string          `gorm:"column:expense_category;type:varchar(40);not null;index" json:"expense_category"`
	ExpenseDescription   string          `gorm:"column:expense_description;type:text;not null" json:"expense_description"`
	ExpenseAmount        decimal.Decimal `gorm:"column:expense_amount;type:numeric(14,2);not null" json:"expense_amount"`
	ExpenseStatus        ExpenseStatus   `gorm:"column:expense_status;type:varchar(20);not null" json:"expense_status"`
	ExpenseDeductionType *string         `gorm:"column:expense_deduction_type;type:varchar(40);uniqueIndex:uq_expense_deduction_period,priority:1" json:"expense_deduction_type,omitempty"`
	ExpensePeriodKey     *string         `gorm:"column:expense_period_key;type:varchar(7);uniqueIndex:uq_expense_deduction_period,priority:2" json:"expense_period_key,omitempty"`
	ExpenseDate          time.Time       `gorm:"column:expense_date;not null;index" json:"expense_date"`
	ExpenseApprovedBy    *uuid.UUID      `gorm:"column:expense_approved_by;type:uuid" json:"expense_approved_by,omitempty"`
	ExpenseApprovedAt    *time.Time      `gorm:"column:expense_approved_at" json:"expense_approved_at,omitempty"`

	ExpenseCreatedAt time.Time `gorm:"column:expense_created_at;autoCreateTime" json:"expense_created_at"`
	ExpenseUpdatedAt time.Time `gorm:"column:expense_updated_at;autoUpdateTime" json:"expense_updated_at"`
}

func (ExpenseModel) TableName() string { return "expenses" }

func (m *ExpenseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ExpenseID == uuid.Nil {
		m.ExpenseID = uuid.New()
	}
	if m.ExpenseStatus == "" {
		m.ExpenseStatus = ExpensePending
	}
	return nil
}
