// internals/middlewares/auth/auth_middleware.go
package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	helperAuth "impactacademy_backend/internals/helpers/auth"
)

// Public webhook paths that never carry a user token.
var skipPaths = map[string]struct{}{
	"/api/public/finance/midtrans/notify": {},
}

// ActorJWT verifies the bearer token and stores the helperAuth.Actor in
// locals. now is injectable for tests; nil means time.Now.
func ActorJWT(secret string, logger *zap.Logger, now func() time.Time) fiber.Handler {
	if now == nil {
		now = time.Now
	}
	return func(c *fiber.Ctx) error {
		if _, ok := skipPaths[c.Path()]; ok {
			return c.Next()
		}

		tokenString, err := extractBearerToken(c)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		if secret == "" {
			logger.Error("JWT_SECRET is empty")
			return fiber.NewError(fiber.StatusInternalServerError, "Missing JWT Secret")
		}

		claims := jwt.MapClaims{}
		parser := jwt.Parser{SkipClaimsValidation: true}
		if _, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "unexpected signing method")
			}
			return []byte(secret), nil
		}); err != nil {
			logger.Debug("token parse failed", zap.Error(err))
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Token parse error")
		}

		if err := validateTokenExpiry(claims, 30*time.Second, now()); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Token expired")
		}

		userID, err := extractUserID(claims)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - Invalid or missing user ID")
		}

		helperAuth.WithActor(c, helperAuth.Actor{
			UserID: userID,
			Role:   strings.ToLower(claimString(claims, "role")),
			Name:   claimString(claims, "user_name"),
		})
		return c.Next()
	}
}
