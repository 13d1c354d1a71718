package route

import (
	"github.com/gofiber/fiber/v2"

	ledgerController "impactacademy_backend/internals/features/finance/ledger/controller"
)

// Admin: GET /api/a/finance/status/:student_id/:class_id
func FinancialStatusAdminRoutes(r fiber.Router, ctl *ledgerController.FinancialStatusController) {
	r.Get("/status/:student_id/:class_id", ctl.GetStatus)
}

// User: GET /api/u/finance/status/:class_id
func FinancialStatusUserRoutes(r fiber.Router, ctl *ledgerController.FinancialStatusController) {
	r.Get("/status/:class_id", ctl.GetMyStatus)
}
