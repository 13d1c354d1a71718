package route

import (
	"github.com/gofiber/fiber/v2"

	transactionController "impactacademy_backend/internals/features/finance/transactions/controller"
)

// TransactionAdminRoutes: POST /api/a/finance/transactions
func TransactionAdminRoutes(r fiber.Router, ctl *transactionController.TransactionController) {
	r.Post("/transactions", ctl.Record)
}
