package route

import (
	"github.com/gofiber/fiber/v2"

	reportController "impactacademy_backend/internals/features/finance/reports/controller"
)

// ReportAdminRoutes: GET /api/a/finance/reports/:kind
func ReportAdminRoutes(r fiber.Router, ctl *reportController.ReportController) {
	r.Get("/reports/:kind", ctl.Export)
}
