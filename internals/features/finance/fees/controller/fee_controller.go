package controller

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"impactacademy_backend/internals/features/finance/fees/model"
	"impactacademy_backend/internals/features/finance/fees/service"
	helper "impactacademy_backend/internals/helpers"
)

type FeeController struct {
	DB *gorm.DB
}

func NewFeeController(db *gorm.DB) *FeeController {
	return &FeeController{DB: db}
}

// GET /api/a/finance/fees/:class_id?program_type=online|onsite
func (h *FeeController) GetBreakdown(c *fiber.Ctx) error {
	classID, err := uuid.Parse(strings.TrimSpace(c.Params("class_id")))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid class_id")
	}
	pt := model.ProgramType(strings.ToLower(strings.TrimSpace(c.Query("program_type"))))

	b, err := service.CalculateTotalFee(c.UserContext(), h.DB, classID, pt)
	if err != nil {
		return helper.JsonFinanceError(c, err)
	}
	return helper.JsonOK(c, "ok", fiber.Map{
		"breakdown":  b,
		"thresholds": b.Thresholds(),
	})
}
