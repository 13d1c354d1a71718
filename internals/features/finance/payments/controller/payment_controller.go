// file: internals/features/finance/payments/controller/payment_controller.go
package controller

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"impactacademy_backend/internals/features/finance/finerr"
	"impactacademy_backend/internals/features/finance/payments/dto"
	"impactacademy_backend/internals/features/finance/payments/service"
	helper "impactacademy_backend/internals/helpers"
	helperAuth "impactacademy_backend/internals/helpers/auth"
)

/* =======================================================================
   Controller
======================================================================= */

type PaymentController struct {
	Payments  *service.Service
	Validator *validator.Validate
}

func NewPaymentController(svc *service.Service) *PaymentController {
	return &PaymentController{Payments: svc, Validator: validator.New()}
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func reconcileResponse(c *fiber.Ctx, res *service.ReconcileResult) error {
	if res.AlreadyProcessed {
		return helper.JsonOK(c, "payment already processed", res)
	}
	return helper.JsonOK(c, "payment reconciled", res)
}

/* =======================================================================
   Manual entries (finance staff)
======================================================================= */

// POST /api/a/finance/manual-payments
func (h *PaymentController) CreateManualEntry(c *fiber.Ctx) error {
	actor, err := helperAuth.ActorFromCtx(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}

	var req dto.CreateManualEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid json: "+err.Error())
	}
	req.Normalize()
	if err := h.Validator.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}

	entry, err := h.Payments.CreateManualEntry(c.UserContext(), actor, req.ToInput())
	if err != nil {
		if finerr.IsAlreadyProcessed(err) && entry != nil {
			return helper.JsonOK(c, finerr.MessageOf(err), fiber.Map{"entry": entry, "already_processed": true})
		}
		return helper.JsonFinanceError(c, err)
	}
	if !req.ReconcileNow {
		return helper.JsonCreated(c, "manual payment entered", fiber.Map{"entry": entry})
	}

	res, err := h.Payments.ProcessManualPayment(c.UserContext(), actor, entry.ManualEntryID)
	if err != nil {
		return helper.JsonFinanceError(c, err)
	}
	return helper.JsonCreated(c, "manual payment entered and reconciled", fiber.Map{"entry": entry, "reconcile": res})
}

// POST /api/a/finance/manual-payments/:id/reconcile
func (h *PaymentController) ReconcileManual(c *fiber.Ctx) error {
	return h.reconcile(c, service.StagingManual)
}

// POST /api/a/finance/verifications/:id/reconcile
func (h *PaymentController) ReconcileVerification(c *fiber.Ctx) error {
	return h.reconcile(c, service.StagingVerification)
}

func (h *PaymentController) reconcile(c *fiber.Ctx, kind service.StagingKind) error {
	actor, err := helperAuth.ActorFromCtx(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	res, err := h.Payments.Reconcile(c.UserContext(), actor, kind, id)
	if err != nil {
		return helper.JsonFinanceError(c, err)
	}
	return reconcileResponse(c, res)
}

// POST /api/a/finance/manual-payments/:id/reject
func (h *PaymentController) RejectManual(c *fiber.Ctx) error {
	return h.reject(c, service.StagingManual)
}

// POST /api/a/finance/verifications/:id/reject
func (h *PaymentController) RejectVerification(c *fiber.Ctx) error {
	return h.reject(c, service.StagingVerification)
}

func (h *PaymentController) reject(c *fiber.Ctx, kind service.StagingKind) error {
	actor, err := helperAuth.ActorFromCtx(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req dto.RejectPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid json: "+err.Error())
	}
	if err := h.Validator.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}
	if err := h.Payments.RejectPayment(c.UserContext(), actor, kind, id, req.Reason); err != nil {
		return helper.JsonFinanceError(c, err)
	}
	return helper.JsonOK(c, "payment rejected", fiber.Map{"id": id, "kind": kind})
}

/* =======================================================================
   Checkout (students)
======================================================================= */

// POST /api/u/finance/checkout
func (h *PaymentController) Checkout(c *fiber.Ctx) error {
	actor, err := helperAuth.ActorFromCtx(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	var req dto.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid json: "+err.Error())
	}
	req.Normalize()
	if err := h.Validator.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}

	res, err := h.Payments.CreateCheckout(c.UserContext(), actor, req.ToInput(actor.UserID))
	if err != nil {
		return helper.JsonFinanceError(c, err)
	}
	return helper.JsonCreated(c, "checkout created", res)
}

/* =======================================================================
   Webhook Midtrans
======================================================================= */

// POST /api/public/finance/midtrans/notify
//
// 2xx tells Midtrans to stop redelivering, so only transient failures
// answer with 5xx.
func (h *PaymentController) MidtransWebhook(c *fiber.Ctx) error {
	var n service.Notification
	if err := c.BodyParser(&n); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid payload: "+err.Error())
	}
	n.Raw = append([]byte(nil), c.Body()...)
	n.Headers = map[string]string{}
	for k, v := range c.GetReqHeaders() {
		if len(v) > 0 && k != fiber.HeaderAuthorization {
			n.Headers[k] = v[0]
		}
	}

	res, err := h.Payments.HandleGatewayNotification(c.UserContext(), n)
	switch {
	case err == nil:
		return c.JSON(res)
	case errors.Is(err, service.ErrInvalidSignature):
		return helper.JsonError(c, fiber.StatusUnauthorized, "invalid signature")
	case finerr.Is(err, finerr.KindRejected):
		return c.JSON(fiber.Map{"status": "rejected", "reason": finerr.MessageOf(err)})
	default:
		return helper.JsonFinanceError(c, err)
	}
}
