// file: internals/features/finance/scheduler/controller/job_controller.go
package controller

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"impactacademy_backend/internals/features/finance/scheduler"
	helper "impactacademy_backend/internals/helpers"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

type JobController struct {
	Scheduler *scheduler.Scheduler
}

func NewJobController(s *scheduler.Scheduler) *JobController {
	return &JobController{Scheduler: s}
}

type runJobRequest struct {
	Args []string `json:"args"`
}

// POST /api/a/finance/jobs/:job
// Body (optional): {"args": ["2025-05"]}; ?period=YYYY-MM also works for deductions.
func (h *JobController) Run(c *fiber.Ctx) error {
	actor, err := helperAuth.ActorFromCtx(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	job := strings.ToLower(strings.TrimSpace(c.Params("job")))
	if !scheduler.IsJob(job) {
		return helper.JsonError(c, fiber.StatusNotFound, "unknown job: "+job)
	}

	var req runJobRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "invalid json: "+err.Error())
		}
	}
	if p := strings.TrimSpace(c.Query("period")); p != "" && len(req.Args) == 0 {
		req.Args = []string{p}
	}

	res, err := h.Scheduler.RunLocked(c.UserContext(), actor, job, req.Args)
	switch {
	case errors.Is(err, scheduler.ErrLocked):
		return helper.JsonError(c, fiber.StatusConflict, err.Error())
	case err != nil:
		return helper.JsonFinanceError(c, err)
	}
	return helper.JsonOK(c, job+" finished", res)
}
