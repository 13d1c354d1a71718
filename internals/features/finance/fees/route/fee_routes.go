package route

import (
	"github.com/gofiber/fiber/v2"

	feeController "impactacademy_backend/internals/features/finance/fees/controller"
)

// FeeAdminRoutes: GET /api/a/finance/fees/:class_id
func FeeAdminRoutes(r fiber.Router, ctl *feeController.FeeController) {
	r.Get("/fees/:class_id", ctl.GetBreakdown)
}
