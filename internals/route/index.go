// file: internals/route/index.go
package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"impactacademy_backend/internals/features/finance"
	"impactacademy_backend/internals/features/finance/scheduler"
	"impactacademy_backend/internals/middlewares/auth"
	routeDetails "impactacademy_backend/internals/route/details"
)

var startTime time.Time

func SetupRoutes(app *fiber.App, svc *finance.Services, sched *scheduler.Scheduler) {
	startTime = time.Now()
	log := svc.Log.Named("routes")

	BaseRoutes(app, svc.DB, svc.Config.Env)

	// ===================== GROUPS =====================

	log.Info("setting up PUBLIC group")
	public := app.Group("/api/public/finance")

	log.Info("setting up USER group (actor JWT)")
	user := app.Group("/api/u/finance",
		auth.ActorJWT(svc.Config.JWTSecret, svc.Log, nil),
	)

	log.Info("setting up ADMIN group (actor JWT + finance staff)")
	admin := app.Group("/api/a/finance",
		auth.ActorJWT(svc.Config.JWTSecret, svc.Log, nil),
		auth.OnlyFinanceStaff(),
	)

	// ===================== MOUNT ROUTES =====================

	log.Info("mounting finance routes")
	routeDetails.FinancePublicRoutes(public, svc)
	routeDetails.FinanceUserRoutes(user, svc)
	routeDetails.FinanceAdminRoutes(admin, svc, sched)

	log.Info("routes ready", zap.Int("handlers", int(app.HandlersCount())))
}
