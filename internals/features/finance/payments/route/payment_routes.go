// file: internals/features/finance/payments/route/payment_routes.go
package route

import (
	"github.com/gofiber/fiber/v2"

	paymentController "impactacademy_backend/internals/features/finance/payments/controller"
	"impactacademy_backend/internals/middlewares"
)

/*
Admin routes (mounted under /api/a/finance, finance staff only):
- POST /manual-payments
- POST /manual-payments/:id/reconcile
- POST /manual-payments/:id/reject
- POST /verifications/:id/reconcile
- POST /verifications/:id/reject
- GET  /gateway-events
- GET  /gateway-events/:id
*/
func PaymentAdminRoutes(r fiber.Router, ctl *paymentController.PaymentController, events *paymentController.PaymentGatewayEventController) {
	manual := r.Group("/manual-payments")
	manual.Post("/", ctl.CreateManualEntry)
	manual.Post("/:id/reconcile", ctl.ReconcileManual)
	manual.Post("/:id/reject", ctl.RejectManual)

	ver := r.Group("/verifications")
	ver.Post("/:id/reconcile", ctl.ReconcileVerification)
	ver.Post("/:id/reject", ctl.RejectVerification)

	ev := r.Group("/gateway-events")
	ev.Get("/", events.ListEvents)
	ev.Get("/:id", events.GetByID)
}

// PaymentUserRoutes: /api/u/finance/checkout
func PaymentUserRoutes(r fiber.Router, ctl *paymentController.PaymentController) {
	r.Post("/checkout", middlewares.CheckoutRateLimiter(), ctl.Checkout)
}

// PaymentPublicRoutes: /api/public/finance/midtrans/notify (no JWT, signature checked)
func PaymentPublicRoutes(r fiber.Router, ctl *paymentController.PaymentController) {
	r.Post("/midtrans/notify", middlewares.WebhookRateLimiter(), ctl.MidtransWebhook)
}
