package route

import (
	"github.com/gofiber/fiber/v2"

	jobController "impactacademy_backend/internals/features/finance/scheduler/controller"
)

// JobAdminRoutes: POST /api/a/finance/jobs/:job
func JobAdminRoutes(r fiber.Router, ctl *jobController.JobController) {
	r.Post("/jobs/:job", ctl.Run)
}
