package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"impactacademy_backend/internals/middlewares/logger"
)

func SetupMiddlewares(app *fiber.App, log *zap.Logger) {
	app.Use(RecoveryMiddleware())
	app.Use(RequestID(log, 15*time.Second))
	app.Use(logger.LoggerMiddleware())
	app.Use(CorsMiddleware())
	app.Use(GlobalRateLimiter())
}
