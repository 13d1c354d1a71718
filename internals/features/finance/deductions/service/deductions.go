// file: internals/features/finance/deductions/service/deductions.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"impactacademy_backend/internals/features/finance/deductions/model"
	"impactacademy_backend/internals/features/finance/finerr"
	notifService "impactacademy_backend/internals/features/finance/notifications/service"
	payModel "impactacademy_backend/internals/features/finance/payments/model"
	helper "impactacademy_backend/internals/helpers"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

const PeriodLayout = "2006-01"

var hundred = decimal.NewFromInt(100)

type Service struct {
	DB       *gorm.DB
	Activity *notifService.ActivityLogger
	Log      *zap.Logger
	Now      func() time.Time
}

func New(db *gorm.DB, act *notifService.ActivityLogger, log *zap.Logger) *Service {
	return &Service{DB: db, Activity: act, Log: log.Named("deductions"), Now: time.Now}
}

type RuleOutcome struct {
	RuleType   string          `json:"deduction_type"`
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
	ExpenseID  *uuid.UUID      `json:"expense_id,omitempty"`
	Skipped    bool            `json:"skipped"`
	Reason     string          `json:"reason,omitempty"`
}

type Summary struct {
	Period  string          `json:"period"`
	Revenue decimal.Decimal `json:"revenue"`
	Rules   []RuleOutcome   `json:"rules"`
	Created int             `json:"created"`
	Skipped int             `json:"skipped"`
}

// ParsePeriod: YYYY-MM -> bulan UTC [start, end).
func ParsePeriod(period string) (time.Time, time.Time, error) {
	start, err := time.Parse(PeriodLayout, period)
	if err != nil || start.Format(PeriodLayout) != period {
		return time.Time{}, time.Time{}, finerr.Validation("period must be YYYY-MM, got %q", period)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// PreviousPeriod bulan sebelum now (yang ditutup job bulanan).
func PreviousPeriod(now time.Time) string {
	y, m, _ := now.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0).Format(PeriodLayout)
}

// MonthlyRevenue sums completed registration and course payments paid in
// [start, end).
func MonthlyRevenue(ctx context.Context, db *gorm.DB, start, end time.Time) (decimal.Decimal, error) {
	var reg, course struct{ Total decimal.Decimal }
	if err := db.WithContext(ctx).
		Model(&payModel.RegistrationPaymentModel{}).
		Select("COALESCE(SUM(registration_payment_amount), 0) AS total").
		Where("registration_payment_status = ? AND registration_payment_paid_at >= ? AND registration_payment_paid_at < ?",
			payModel.PaymentRecordCompleted, start, end).
		Scan(&reg).Error; err != nil {
		return decimal.Zero, finerr.Persistence(err, "sum registration revenue")
	}
	if err := db.WithContext(ctx).
		Model(&payModel.CoursePaymentModel{}).
		Select("COALESCE(SUM(course_payment_amount), 0) AS total").
		Where("course_payment_status = ? AND course_payment_paid_at >= ? AND course_payment_paid_at < ?",
			payModel.PaymentRecordCompleted, start, end).
		Scan(&course).Error; err != nil {
		return decimal.Zero, finerr.Persistence(err, "sum course revenue")
	}
	return reg.Total.Add(course.Total).Round(2), nil
}

// CalculateAutomatedDeductions books one approved expense per active rule
// for period. The (deduction_type, period_key) unique index makes a second
// run for the same month report every rule as skipped.
func (s *Service) CalculateAutomatedDeductions(ctx context.Context, actor helperAuth.Actor, period string) (*Summary, error) {
	start, end, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	revenue, err := MonthlyRevenue(ctx, s.DB, start, end)
	if err != nil {
		return nil, err
	}

	var rules []model.DeductionRuleModel
	if err := s.DB.WithContext(ctx).
		Where("deduction_rule_is_active = ?", true).
		Order("deduction_rule_type ASC").
		Find(&rules).Error; err != nil {
		return nil, finerr.Persistence(err, "load deduction rules")
	}

	sum := &Summary{Period: period, Revenue: revenue, Rules: make([]RuleOutcome, 0, len(rules))}
	now := s.Now().UTC()
	for i := range rules {
		out, err := s.applyRule(ctx, actor, &rules[i], period, start, revenue, now)
		if err != nil {
			// rule yang sudah dibukukan dilewati saat rerun
			return sum, err
		}
		if out.Skipped {
			sum.Skipped++
		} else {
			sum.Created++
		}
		sum.Rules = append(sum.Rules, out)
	}

	s.Log.Info("deductions calculated",
		zap.String("period", period), zap.String("revenue", revenue.StringFixed(2)),
		zap.Int("created", sum.Created), zap.Int("skipped", sum.Skipped))
	return sum, nil
}

func (s *Service) applyRule(ctx context.Context, actor helperAuth.Actor, rule *model.DeductionRuleModel, period string, start time.Time, revenue decimal.Decimal, now time.Time) (RuleOutcome, error) {
	out := RuleOutcome{
		RuleType:   rule.DeductionRuleType,
		Name:       rule.DeductionRuleName,
		Percentage: rule.DeductionRulePercentage,
		Amount:     revenue.Mul(rule.DeductionRulePercentage).Div(hundred).Round(2),
	}
	if !out.Amount.IsPositive() {
		out.Skipped, out.Reason = true, "nothing to deduct"
		return out, nil
	}

	ruleType, periodKey := rule.DeductionRuleType, period
	expense := &model.ExpenseModel{
		ExpenseCategory:      model.CategoryAutomatedDeduction,
		ExpenseDescription:   fmt.Sprintf("%s (%s%%) for %s", rule.DeductionRuleName, rule.DeductionRulePercentage.String(), period),
		ExpenseAmount:        out.Amount,
		ExpenseStatus:        model.ExpenseApproved,
		ExpenseDeductionType: &ruleType,
		ExpensePeriodKey:     &periodKey,
		ExpenseDate:          start,
		ExpenseApprovedBy:    actor.UserIDPtr(),
		ExpenseApprovedAt:    &now,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(expense).Error; err != nil {
			if helper.IsUniqueViolation(err) {
				return finerr.Conflict("%s already deducted for %s", rule.DeductionRuleType, period)
			}
			return finerr.Persistence(err, "insert deduction expense")
		}
		if err := tx.Model(&model.DeductionRuleModel{}).
			Where("deduction_rule_id = ?", rule.DeductionRuleID).
			Updates(map[string]any{
				"deduction_rule_total_deducted":  gorm.Expr("deduction_rule_total_deducted + ?", out.Amount),
				"deduction_rule_last_period_key": period,
				"deduction_rule_updated_at":      now,
			}).Error; err != nil {
			return finerr.Persistence(err, "update deduction rule")
		}
		return nil
	})
	switch {
	case finerr.Is(err, finerr.KindConflict):
		out.Skipped, out.Reason = true, "already generated for period"
		return out, nil
	case err != nil:
		s.Log.Error("deduction failed", zap.String("rule", rule.DeductionRuleType), zap.String("period", period), zap.Error(err))
		return out, err
	}

	out.ExpenseID = &expense.ExpenseID
	if s.Activity != nil {
		if err := s.Activity.LogFinancialActivity(ctx, notifService.ActivityEntry{
			Actor:       actor,
			Action:      notifService.ActionDeduction,
			Description: expense.ExpenseDescription,
			Meta:        map[string]any{"deduction_type": ruleType, "period": period, "amount": out.Amount.StringFixed(2)},
		}); err != nil {
			s.Log.Warn("activity log failed", zap.Error(err))
		}
	}
	return out, nil
}
