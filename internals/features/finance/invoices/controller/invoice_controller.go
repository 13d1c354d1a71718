package controller

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"impactacademy_backend/internals/features/finance/invoices/dto"
	"impactacademy_backend/internals/features/finance/invoices/service"
	helper "impactacademy_backend/internals/helpers"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

type InvoiceController struct {
	Invoices  *service.Service
	Validator *validator.Validate
}

func NewInvoiceController(s *service.Service) *InvoiceController {
	return &InvoiceController{Invoices: s, Validator: validator.New()}
}

// POST /api/a/finance/invoices
func (h *InvoiceController) Generate(c *fiber.Ctx) error {
	actor, err := helperAuth.ActorFromCtx(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}

	var req dto.GenerateInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid json: "+err.Error())
	}
	req.Normalize()
	if err := h.Validator.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}

	ctx := c.UserContext()
	if !req.SkipGuard {
		open, err := service.HasOpenInvoice(ctx, h.Invoices.DB, req.StudentID, req.ClassID, req.Type())
		if err != nil {
			return helper.JsonFinanceError(c, err)
		}
		if open {
			return helper.JsonError(c, fiber.StatusConflict, "an open "+req.InvoiceType+" invoice already exists")
		}
	}

	inv, err := h.Invoices.GenerateInvoice(ctx, actor, req.StudentID, req.ClassID, req.Type())
	if err != nil {
		return helper.JsonFinanceError(c, err)
	}
	return helper.JsonCreated(c, "invoice generated", inv)
}
