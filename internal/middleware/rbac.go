package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-progress-api/internal/utils"
)

// RequireRole guards a route group. Roles follow WithAuth, so AuthRoleStaff
// admits both teachers and administrators.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make([]string, 0, len(roles))
	for _, role := range roles {
		if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
			allowed = append(allowed, normalized)
		}
	}

	return func(c *fiber.Ctx) error {
		current := normalizeRoleValue(c.Locals("user_role"))
		for _, role := range allowed {
			if roleSatisfies(current, role) {
				return c.Next()
			}
		}
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}
}

func roleSatisfies(current, required string) bool {
	switch required {
	case AuthRoleAny:
		return true
	case AuthRoleStaff:
		return current == AuthRoleTeacher || current == AuthRoleAdmin
	default:
		return current != "" && current == required
	}
}

func normalizeRoleValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
	}
}
