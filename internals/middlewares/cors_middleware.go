// middlewares/cors.go

package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"impactacademy_backend/internals/configs"
)

var defaultOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5500",
	"https://portal.impactdigitalacademy.com",
}

// CorsMiddleware reads CORS_ORIGINS (comma separated) with a local default.
func CorsMiddleware() fiber.Handler {
	origins := defaultOrigins
	if raw := configs.GetEnv("CORS_ORIGINS"); raw != "" {
		origins = nil
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}
	return cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ", "),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowCredentials: true,
	})
}
