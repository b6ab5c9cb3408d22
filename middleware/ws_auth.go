// game-match-system/middleware/ws_auth.go
package middleware

import (
	"log"
	"strings"

	"game-match-system/services"

	"github.com/gofiber/fiber/v2"
)

type contextKey string

const (
	UserIDContextKey    contextKey = "user_id"
	UsernameContextKey  contextKey = "username"
	UserRolesContextKey contextKey = "user_roles"
	DeviceIDContextKey  contextKey = "device_id"
	WalletContextKey    contextKey = "wallet_address"
)

// WSAuthMiddleware validates `token` and `device_id` from query params via
// AuthServiceClient. Browser WebSocket handshakes cannot carry custom
// headers, so the gateway's header-based context never reaches this route.
//
// Usage:
//
//	app.Use("/ws/arena", middleware.WSAuthMiddleware(authClient), ...)
func WSAuthMiddleware(authClient *services.AuthServiceClient) func(*fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		accessToken := strings.TrimSpace(string(c.Request().URI().QueryArgs().Peek("token")))
		deviceID := strings.TrimSpace(string(c.Request().URI().QueryArgs().Peek("device_id")))

		if accessToken == "" || deviceID == "" {
			log.Printf("[WSAuth] ❌ Missing query params: token len=%d, device_id='%s'", len(accessToken), deviceID)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token or device_id in query",
			})
		}

		resp, err := authClient.ValidateToken(accessToken, deviceID)
		if err != nil {
			log.Printf("[WSAuth] ❌ Validation failed for device %s: %v", deviceID, err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		// ✅ Attach to Fiber context (like UserContextMiddleware, but from query)
		c.Locals(string(UserIDContextKey), resp.UserID)
		c.Locals(string(UsernameContextKey), resp.Username)
		c.Locals(string(DeviceIDContextKey), resp.DeviceID)
		c.Locals(string(WalletContextKey), resp.WalletAddress)
		c.Locals(string(UserRolesContextKey), resp.Roles)

		log.Printf("[WSAuth] ✅ Authenticated user %s (device %s)", resp.UserID, resp.DeviceID)
		return c.Next()
	}
}
