package helper

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	RoleSystem  = "system"
	RoleAdmin   = "admin"
	RoleFinance = "finance"
	RoleOwner   = "owner"
	RoleStudent = "student"

	localsActor = "finance_actor"
)

// Actor is the user on whose behalf a ledger operation runs. It is passed
// explicitly into every service call and ends up in verified_by, recorded_by
// and the activity log.
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	Name   string    `json:"name,omitempty"`
}

// SystemActor is used by cron jobs and gateway callbacks.
var SystemActor = Actor{Role: RoleSystem, Name: "system"}

func (a Actor) IsSystem() bool { return a.Role == RoleSystem }

func (a Actor) IsStaff() bool {
	switch strings.ToLower(a.Role) {
	case RoleAdmin, RoleFinance, RoleOwner, RoleSystem:
		return true
	}
	return false
}

// UserIDPtr returns nil for the system actor so audit columns stay NULL.
func (a Actor) UserIDPtr() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}

func WithActor(c *fiber.Ctx, a Actor) {
	c.Locals(localsActor, a)
}

// ActorFromCtx reads the actor stored by the JWT middleware.
func ActorFromCtx(c *fiber.Ctx) (Actor, error) {
	a, ok := c.Locals(localsActor).(Actor)
	if !ok || a.UserID == uuid.Nil {
		return Actor{}, fiber.NewError(fiber.StatusUnauthorized, "Unauthorized - missing actor")
	}
	return a, nil
}
