package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v3"
)

const (
	// Template permissions
	ReadTemplatePermission   = "read:template"
	WriteTemplatePermission  = "write:template"
	DeleteTemplatePermission = "delete:template"

	// Entry permissions
	ReadEntryPermission   = "read:entry"
	WriteEntryPermission  = "write:entry"
	DeleteEntryPermission = "delete:entry"

	// Verification permissions
	VerifyEntryPermission = "verify:entry"

	// Access grant permissions
	ManageAccessPermission = "manage:access"

	// Admin permissions (for backward compatibility)
	AdminPermission   = "admin"
	ManagerPermission = "manager"
)

// PermissionRequired checks the gateway-injected X-User-Permissions
// header for the required permission. Admin and manager prefixes pass
// everything.
func PermissionRequired(requiredPermission string) fiber.Handler {
	return func(c fiber.Ctx) error {
		userPermissions := c.Get("X-User-Permissions")
		hasPermission := false
		if userPermissions != "" {
			permissions := strings.Split(userPermissions, ",")

			for _, perm := range permissions {
				if perm == requiredPermission || strings.HasPrefix(perm, AdminPermission) || strings.HasPrefix(perm, ManagerPermission) {
					hasPermission = true
					break
				}
			}
		}

		if !hasPermission {
			log.Printf("Permission %s denied for %s %s from %s", requiredPermission, c.Method(), c.OriginalURL(), c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}

// UserRequired rejects requests missing the gateway identity header.
func UserRequired() fiber.Handler {
	return func(c fiber.Ctx) error {
		if c.Get("X-User-ID") == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		return c.Next()
	}
}
