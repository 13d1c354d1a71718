package route

import (
	"github.com/gofiber/fiber/v2"

	deductionController "impactacademy_backend/internals/features/finance/deductions/controller"
	helperAuth "impactacademy_backend/internals/helpers/auth"
	"impactacademy_backend/internals/middlewares/auth"
)

// DeductionAdminRoutes: POST /api/a/finance/deductions/:period (owner/admin only)
func DeductionAdminRoutes(r fiber.Router, ctl *deductionController.DeductionController) {
	r.Post("/deductions/:period", auth.OnlyRoles("Owner or admin only", helperAuth.RoleOwner, helperAuth.RoleAdmin), ctl.Calculate)
}
