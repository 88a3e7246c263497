package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geobubbles/internal/core/domain"
	"github.com/samirrijal/geobubbles/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errUnauthorized returns a 401 error.
func errUnauthorized(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusUnauthorized, "unauthorized", msg)
}

// errForbidden returns a 403 error.
func errForbidden(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusForbidden, "forbidden", msg)
}

// errFromDomain maps service errors onto API errors.
func errFromDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidGeometryKind),
		errors.Is(err, domain.ErrInvalidCoordinateArity),
		errors.Is(err, domain.ErrInvalidCoordinateRange):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrInactiveUser):
		return errForbidden(c, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return newError(c, fiber.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrLocationUnavailable):
		return newError(c, fiber.StatusUnprocessableEntity, "location_unavailable",
			"no viewer location: pass lat and lon or report a location first")
	}
	logging.FromContext(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
	return errInternal(c, "internal server error")
}

// ErrorHandler renders errors that escape handlers, including Fiber's own, as APIError.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := "error"
		switch fe.Code {
		case fiber.StatusNotFound:
			code = "not_found"
		case fiber.StatusMethodNotAllowed:
			code = "method_not_allowed"
		case fiber.StatusRequestTimeout:
			code = "timeout"
		case fiber.StatusUpgradeRequired:
			code = "upgrade_required"
		case fiber.StatusBadRequest:
			code = "bad_request"
		}
		return newError(c, fe.Code, code, fe.Message)
	}
	return errFromDomain(c, err)
}
