package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	helperAuth "impactacademy_backend/internals/helpers/auth"
)

const secret = "test-secret"

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func token(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func newApp() *fiber.App {
	app := fiber.New()
	guard := ActorJWT(secret, zap.NewNop(), func() time.Time { return now })
	app.Post("/api/public/finance/midtrans/notify", guard, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	admin := app.Group("/api/a/finance", guard, OnlyFinanceStaff())
	admin.Get("/whoami", func(c *fiber.Ctx) error {
		a, err := helperAuth.ActorFromCtx(c)
		if err != nil {
			return err
		}
		return c.JSON(a)
	})
	return app
}

func TestActorJWT(t *testing.T) {
	userID := uuid.New()
	valid := jwt.MapClaims{"id": userID.String(), "role": "Finance", "user_name": "Rina", "exp": now.Add(time.Hour).Unix()}

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no token", "", fiber.StatusUnauthorized},
		{"bad scheme", "Token " + token(t, secret, valid), fiber.StatusUnauthorized},
		{"wrong key", "Bearer " + token(t, "other", valid), fiber.StatusUnauthorized},
		{"expired", "Bearer " + token(t, secret, jwt.MapClaims{"id": userID.String(), "role": "admin", "exp": now.Add(-time.Hour).Unix()}), fiber.StatusUnauthorized},
		{"no id", "Bearer " + token(t, secret, jwt.MapClaims{"role": "admin", "exp": now.Add(time.Hour).Unix()}), fiber.StatusUnauthorized},
		{"student", "Bearer " + token(t, secret, jwt.MapClaims{"id": userID.String(), "role": "student", "exp": now.Add(time.Hour).Unix()}), fiber.StatusForbidden},
		{"finance staff", "bearer  " + token(t, secret, valid), fiber.StatusOK},
	}

	app := newApp()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/api/a/finance/whoami", nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			res, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.StatusCode)
		})
	}
}

func TestActorJWTStoresActor(t *testing.T) {
	userID := uuid.New()
	tok := token(t, secret, jwt.MapClaims{"id": userID.String(), "role": "OWNER", "user_name": " Budi ", "exp": now.Add(time.Minute).Unix()})

	req := httptest.NewRequest(fiber.MethodGet, "/api/a/finance/whoami", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
	res, err := newApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)

	var got helperAuth.Actor
	require.NoError(t, sonic.ConfigDefault.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, helperAuth.Actor{UserID: userID, Role: helperAuth.RoleOwner, Name: "Budi"}, got)
}

func TestActorJWTSkipsWebhook(t *testing.T) {
	req := httptest.NewRequest(fiber.MethodPost, "/api/public/finance/midtrans/notify", nil)
	res, err := newApp().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, res.StatusCode)
}

func TestActorJWTCookieFallback(t *testing.T) {
	tok := token(t, secret, jwt.MapClaims{"id": uuid.NewString(), "role": "admin", "exp": now.Add(time.Minute).Unix()})
	req := httptest.NewRequest(fiber.MethodGet, "/api/a/finance/whoami", nil)
	req.Header.Set(fiber.HeaderCookie, "access_token="+tok)
	res, err := newApp().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}
