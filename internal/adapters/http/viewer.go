package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// HeaderUserID carries the identity of the calling user.
const HeaderUserID = "X-User-ID"

// viewerID returns the caller identity, or "" for anonymous requests.
func viewerID(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(HeaderUserID))
}

// requireViewer returns the caller identity or writes a 401.
func requireViewer(c *fiber.Ctx) (string, bool, error) {
	id := viewerID(c)
	if id == "" {
		return "", false, errUnauthorized(c, HeaderUserID+" header is required")
	}
	return id, true, nil
}

// requireSelf checks the caller acts on their own account.
func requireSelf(c *fiber.Ctx, userID string) (bool, error) {
	id, ok, err := requireViewer(c)
	if !ok {
		return false, err
	}
	if id != userID {
		return false, errForbidden(c, "you can only act on your own account")
	}
	return true, nil
}
