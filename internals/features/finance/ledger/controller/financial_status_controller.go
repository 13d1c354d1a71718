// file: internals/features/finance/ledger/controller/financial_status_controller.go
package controller

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"impactacademy_backend/internals/features/finance/ledger/service"
	helper "impactacademy_backend/internals/helpers"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

type FinancialStatusController struct {
	Ledger *service.Service
}

func NewFinancialStatusController(ledger *service.Service) *FinancialStatusController {
	return &FinancialStatusController{Ledger: ledger}
}

func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Params(name)))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// GET /api/a/finance/status/:student_id/:class_id
func (h *FinancialStatusController) GetStatus(c *fiber.Ctx) error {
	studentID, err := parseUUIDParam(c, "student_id")
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	}
	classID, err := parseUUIDParam(c, "class_id")
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	}

	st, err := h.Ledger.GetStudentFinancialStatus(c.UserContext(), studentID, classID)
	if err != nil {
		return helper.JsonFinanceError(c, err)
	}
	return helper.JsonOK(c, "ok", st)
}

// GET /api/u/finance/status/:class_id
func (h *FinancialStatusController) GetMyStatus(c *fiber.Ctx) error {
	actor, err := helperAuth.ActorFromCtx(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	classID, err := parseUUIDParam(c, "class_id")
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	}

	st, err := h.Ledger.GetStudentFinancialStatus(c.UserContext(), actor.UserID, classID)
	if err != nil {
		return helper.JsonFinanceError(c, err)
	}
	return helper.JsonOK(c, "ok", st)
}
