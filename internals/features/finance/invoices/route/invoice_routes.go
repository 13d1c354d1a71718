package route

import (
	"github.com/gofiber/fiber/v2"

	invoiceController "impactacademy_backend/internals/features/finance/invoices/controller"
)

// InvoiceAdminRoutes: POST /api/a/finance/invoices
func InvoiceAdminRoutes(r fiber.Router, ctl *invoiceController.InvoiceController) {
	r.Post("/invoices", ctl.Generate)
}
