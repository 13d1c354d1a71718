package auth

import (
	"github.com/gofiber/fiber/v2"

	helperAuth "impactacademy_backend/internals/helpers/auth"
)

// RoleMiddlewareWithCustomError lets the request through when the actor role
// is one of allowedRoles.
func RoleMiddlewareWithCustomError(allowedRoles []string, customForbiddenMessage string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := helperAuth.ActorFromCtx(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized: missing role information",
			})
		}

		for _, allowed := range allowedRoles {
			if actor.Role == allowed {
				return c.Next()
			}
		}

		if customForbiddenMessage == "" {
			customForbiddenMessage = "Forbidden: you are not authorized to access this resource"
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": customForbiddenMessage,
		})
	}
}

func OnlyRoles(customMessage string, roles ...string) fiber.Handler {
	return RoleMiddlewareWithCustomError(roles, customMessage)
}

// OnlyFinanceStaff guards the admin finance routes.
func OnlyFinanceStaff() fiber.Handler {
	return OnlyRoles("Finance staff only",
		helperAuth.RoleAdmin, helperAuth.RoleFinance, helperAuth.RoleOwner)
}
