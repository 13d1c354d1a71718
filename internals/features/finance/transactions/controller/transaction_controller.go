package controller

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"impactacademy_backend/internals/features/finance/finerr"
	"impactacademy_backend/internals/features/finance/transactions/dto"
	"impactacademy_backend/internals/features/finance/transactions/service"
	helper "impactacademy_backend/internals/helpers"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

type TransactionController struct {
	Recorder  *service.Recorder
	Validator *validator.Validate
}

func NewTransactionController(rec *service.Recorder) *TransactionController {
	return &TransactionController{Recorder: rec, Validator: validator.New()}
}

// POST /api/a/finance/transactions
func (h *TransactionController) Record(c *fiber.Ctx) error {
	actor, err := helperAuth.ActorFromCtx(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}

	var req dto.RecordTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid json: "+err.Error())
	}
	req.Normalize()
	if err := h.Validator.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}

	txn, err := h.Recorder.RecordPaymentTransaction(c.UserContext(), actor, req.ToInput())
	if err != nil {
		if finerr.IsAlreadyProcessed(err) {
			return helper.JsonOK(c, finerr.MessageOf(err), fiber.Map{"already_processed": true})
		}
		return helper.JsonFinanceError(c, err)
	}
	return helper.JsonCreated(c, "transaction recorded", txn)
}
