package httpapi

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-webhooks/core"
)

type fieldErrorPayload struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorPayload struct {
	Category         string              `json:"category"`
	Code             int                 `json:"code"`
	TextCode         string              `json:"text_code"`
	Message          string              `json:"message"`
	ValidationErrors []fieldErrorPayload `json:"validation_errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// writeError renders err through core.MapError. Internal failures keep
// their generic message.
func writeError(c *fiber.Ctx, err error) error {
	mapped := core.MapError(err)
	if mapped == nil {
		mapped = core.MapError(fmt.Errorf("httpapi: unknown error"))
	}
	payload := errorPayload{
		Category: fmt.Sprint(mapped.Category),
		Code:     mapped.Code,
		TextCode: mapped.TextCode,
		Message:  mapped.Message,
	}
	for _, fieldErr := range mapped.ValidationErrors {
		payload.ValidationErrors = append(payload.ValidationErrors, fieldErrorPayload{
			Field:   fieldErr.Field,
			Message: fieldErr.Message,
		})
	}
	if mapped.Category == goerrors.CategoryInternal {
		payload.Message = "An unexpected error occurred"
	}
	status := mapped.Code
	if status < 400 || status > 599 {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(errorResponse{Error: payload})
}

func badRequest(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(fiber.StatusBadRequest).
		WithTextCode(core.ErrorBadInput)
}
