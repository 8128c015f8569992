package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/TimoLindner/WaxCrate/app/models"
	"github.com/TimoLindner/WaxCrate/internal/pkg/usercontext"
)

// Identity headers set by the auth gateway in front of this service. The
// gateway strips them from external traffic, so their presence is trusted.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// UserContextMiddleware resolves the verified identity for every request.
// Authentication itself happens upstream; this only translates the gateway
// headers into the request-local user context.
func UserContextMiddleware(c *fiber.Ctx) error {
	raw := strings.TrimSpace(c.Get(HeaderUserID))
	if raw == "" {
		c.Locals(usercontext.ContextKey, usercontext.UserContext{})
		return c.Next()
	}

	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.Locals(usercontext.ContextKey, usercontext.UserContext{})
		return c.Next()
	}

	c.Locals(usercontext.ContextKey, usercontext.UserContext{
		UserID:     uint(id),
		IsLoggedIn: true,
		IsAdmin:    strings.TrimSpace(c.Get(HeaderUserRole)) == models.ROLE_ADMIN,
	})
	return c.Next()
}
