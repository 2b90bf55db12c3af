package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"nightpress/pkg/auth"
)

// AuthorAuth verifies the writer's JWT and stores the pseudonym identity
// in request locals. With no JWT configured (development only) a fixed dev
// identity is injected.
func AuthorAuth(jwtAuth *auth.LocalJWTAuth, environment string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if jwtAuth == nil {
			if environment == "production" {
				log.Fatal("❌ CRITICAL SECURITY ERROR: JWT auth not configured in production environment. Authentication is required.")
			}
			c.Locals("author_id", "dev-author")
			c.Locals("author_handle", "")
			return c.Next()
		}

		token, err := auth.ExtractToken(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid authorization token",
			})
		}

		author, err := jwtAuth.VerifyToken(token)
		if err != nil {
			log.Printf("❌ Auth failed: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("author_id", author.ID)
		c.Locals("author_handle", author.Handle)
		return c.Next()
	}
}

// AuthorID reads the authenticated pseudonym from request locals.
func AuthorID(c *fiber.Ctx) string {
	id, _ := c.Locals("author_id").(string)
	return id
}

// AuthorHandle reads the claimed handle from request locals, if any.
func AuthorHandle(c *fiber.Ctx) string {
	handle, _ := c.Locals("author_handle").(string)
	return handle
}
