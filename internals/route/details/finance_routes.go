// file: internals/route/details/finance_routes.go
package details

import (
	"github.com/gofiber/fiber/v2"

	"impactacademy_backend/internals/features/finance"
	deductionController "impactacademy_backend/internals/features/finance/deductions/controller"
	deductionRoute "impactacademy_backend/internals/features/finance/deductions/route"
	feeController "impactacademy_backend/internals/features/finance/fees/controller"
	feeRoute "impactacademy_backend/internals/features/finance/fees/route"
	invoiceController "impactacademy_backend/internals/features/finance/invoices/controller"
	invoiceRoute "impactacademy_backend/internals/features/finance/invoices/route"
	ledgerController "impactacademy_backend/internals/features/finance/ledger/controller"
	ledgerRoute "impactacademy_backend/internals/features/finance/ledger/route"
	paymentController "impactacademy_backend/internals/features/finance/payments/controller"
	paymentRoute "impactacademy_backend/internals/features/finance/payments/route"
	reportController "impactacademy_backend/internals/features/finance/reports/controller"
	reportRoute "impactacademy_backend/internals/features/finance/reports/route"
	"impactacademy_backend/internals/features/finance/scheduler"
	jobController "impactacademy_backend/internals/features/finance/scheduler/controller"
	jobRoute "impactacademy_backend/internals/features/finance/scheduler/route"
	transactionController "impactacademy_backend/internals/features/finance/transactions/controller"
	transactionRoute "impactacademy_backend/internals/features/finance/transactions/route"
)

// FinancePublicRoutes mounts under /api/public/finance (no JWT).
func FinancePublicRoutes(r fiber.Router, svc *finance.Services) {
	paymentRoute.PaymentPublicRoutes(r, paymentController.NewPaymentController(svc.Payments))
}

// FinanceUserRoutes mounts under /api/u/finance.
func FinanceUserRoutes(r fiber.Router, svc *finance.Services) {
	ledgerRoute.FinancialStatusUserRoutes(r, ledgerController.NewFinancialStatusController(svc.Ledger))
	paymentRoute.PaymentUserRoutes(r, paymentController.NewPaymentController(svc.Payments))
}

// FinanceAdminRoutes mounts under /api/a/finance (finance staff).
func FinanceAdminRoutes(r fiber.Router, svc *finance.Services, sched *scheduler.Scheduler) {
	transactionRoute.TransactionAdminRoutes(r, transactionController.NewTransactionController(svc.Recorder))
	ledgerRoute.FinancialStatusAdminRoutes(r, ledgerController.NewFinancialStatusController(svc.Ledger))
	paymentRoute.PaymentAdminRoutes(r,
		paymentController.NewPaymentController(svc.Payments),
		paymentController.NewPaymentGatewayEventController(svc.DB),
	)
	invoiceRoute.InvoiceAdminRoutes(r, invoiceController.NewInvoiceController(svc.Invoices))
	jobRoute.JobAdminRoutes(r, jobController.NewJobController(sched))
	deductionRoute.DeductionAdminRoutes(r, deductionController.NewDeductionController(svc.Deductions))
	reportRoute.ReportAdminRoutes(r, reportController.NewReportController(svc.DB))
	feeRoute.FeeAdminRoutes(r, feeController.NewFeeController(svc.DB))
}
