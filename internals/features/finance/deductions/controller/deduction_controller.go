package controller

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"impactacademy_backend/internals/features/finance/deductions/service"
	helper "impactacademy_backend/internals/helpers"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

type DeductionController struct {
	Deductions *service.Service
}

func NewDeductionController(s *service.Service) *DeductionController {
	return &DeductionController{Deductions: s}
}

// POST /api/a/finance/deductions/:period   (period = YYYY-MM)
func (h *DeductionController) Calculate(c *fiber.Ctx) error {
	actor, err := helperAuth.ActorFromCtx(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}

	sum, err := h.Deductions.CalculateAutomatedDeductions(c.UserContext(), actor, strings.TrimSpace(c.Params("period")))
	if err != nil {
		return helper.JsonFinanceError(c, err)
	}
	if sum.Created == 0 {
		return helper.JsonOK(c, "no new deductions", sum)
	}
	return helper.JsonCreated(c, "deductions generated", sum)
}
