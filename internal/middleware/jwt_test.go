package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-progress-api/internal/middleware"
)

const testSecret = "unit-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func jwtApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.JWTProtected(testSecret))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": c.Locals("user_id"), "role": c.Locals("user_role")})
	})
	return app
}

func callWithAuth(t *testing.T, app *fiber.App, header string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(fiber.HeaderAuthorization, header)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestJWTProtectedAcceptsStaffToken(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), middleware.StaffClaims{
		Role: "Teacher",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	resp := callWithAuth(t, jwtApp(), "bearer "+token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		UserID uint   `json:"user_id"`
		Role   string `json:"role"`
	}
	require.NoError(t, decodeJSON(resp, &body))
	require.Equal(t, uint(42), body.UserID)
	require.Equal(t, "teacher", body.Role)
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"empty token":    "Bearer   ",
		"wrong secret": "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{
			Subject: "1", ExpiresAt: future,
		}),
		"expired": "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
			Subject: "1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}),
		"no expiry": "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
			Subject: "1",
		}),
		"other algorithm": "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.RegisteredClaims{
			Subject: "1", ExpiresAt: future,
		}),
		"non numeric subject": "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
			Subject: "teacher-1", ExpiresAt: future,
		}),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			resp := callWithAuth(t, jwtApp(), header)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}
