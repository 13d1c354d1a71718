package database

import (
	"fmt"

	"gorm.io/gorm"

	dedModel "impactacademy_backend/internals/features/finance/deductions/model"
	enrollModel "impactacademy_backend/internals/features/finance/enrollments/model"
	feeModel "impactacademy_backend/internals/features/finance/fees/model"
	invoiceModel "impactacademy_backend/internals/features/finance/invoices/model"
	ledgerModel "impactacademy_backend/internals/features/finance/ledger/model"
	notifModel "impactacademy_backend/internals/features/finance/notifications/model"
	payModel "impactacademy_backend/internals/features/finance/payments/model"
	transModel "impactacademy_backend/internals/features/finance/transactions/model"
)

// FinanceModels lists every table owned by the finance backend.
func FinanceModels() []any {
	return []any{
		&feeModel.ProgramModel{},
		&feeModel.CourseModel{},
		&feeModel.AcademyClassModel{},
		&feeModel.PaymentPlanModel{},
		&ledgerModel.FinancialStatusModel{},
		&enrollModel.ApplicationModel{},
		&enrollModel.EnrollmentModel{},
		&transModel.FinancialTransactionModel{},
		&invoiceModel.InvoiceModel{},
		&payModel.PaymentVerificationModel{},
		&payModel.ManualPaymentEntryModel{},
		&payModel.RegistrationPaymentModel{},
		&payModel.CoursePaymentModel{},
		&payModel.PaymentGatewayEventModel{},
		&dedModel.DeductionRuleModel{},
		&dedModel.ExpenseModel{},
		&notifModel.NotificationModel{},
		&notifModel.InternalMessageModel{},
		&notifModel.FinancialActivityLogModel{},
	}
}

// Migrate creates or updates the finance schema, including the unique
// constraints the reconciler relies on.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(FinanceModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
