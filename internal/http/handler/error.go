package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/killkli/boyo-app-share/internal/http/middleware"
	"github.com/killkli/boyo-app-share/internal/pipeline"
	"github.com/killkli/boyo-app-share/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps service and pipeline sentinels onto HTTP responses.
// Rejections raised before any object write map to 400; a failed object write
// maps to 502 so clients can tell their payload apart from a backend outage.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "app not found")
	case errors.Is(err, service.ErrIDRequired):
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	case errors.Is(err, service.ErrTitleRequired):
		return writeError(c, fiber.StatusBadRequest, "TITLE_REQUIRED", "title is required")
	case errors.Is(err, service.ErrInvalidUploadType):
		return writeError(c, fiber.StatusBadRequest, "INVALID_UPLOAD_TYPE", "upload type must be paste, file or zip")
	case errors.Is(err, service.ErrMissingContent):
		return writeError(c, fiber.StatusBadRequest, "CONTENT_REQUIRED", "html or zip content is required")
	case errors.Is(err, service.ErrInvalidBase64):
		return writeError(c, fiber.StatusBadRequest, "INVALID_BASE64", "content is not valid base64")
	case errors.Is(err, service.ErrContentTooLarge):
		return writeError(c, fiber.StatusRequestEntityTooLarge, "CONTENT_TOO_LARGE", "content exceeds the upload size limit")
	case errors.Is(err, pipeline.ErrMalformedArchive):
		return writeError(c, fiber.StatusBadRequest, "MALFORMED_ARCHIVE", "zip archive cannot be read")
	case errors.Is(err, pipeline.ErrEmptyArchive):
		return writeError(c, fiber.StatusBadRequest, "EMPTY_ARCHIVE", "zip archive contains no files")
	case errors.Is(err, pipeline.ErrNoEntryPoint):
		return writeError(c, fiber.StatusBadRequest, "NO_ENTRY_POINT", "zip archive contains no html entry point")
	case errors.Is(err, pipeline.ErrPublishFailed):
		return writeError(c, fiber.StatusBadGateway, "PUBLISH_FAILED", "object storage unavailable")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusTooManyRequests:
			return writeError(c, status, "RATE_LIMITED", "too many requests")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
