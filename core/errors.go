package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput        = "WEBHOOK_BAD_INPUT"
	ErrorNotFound        = "WEBHOOK_NOT_FOUND"
	ErrorConflict        = "WEBHOOK_CONFLICT"
	ErrorExternalFailure = "WEBHOOK_EXTERNAL_FAILURE"
	ErrorInternal        = "WEBHOOK_INTERNAL_ERROR"
)

var ErrDeliveryLocked = errors.New("core: redelivery already in progress")

// MapError converts any error into a go-errors envelope with an HTTP code
// and a WEBHOOK_* text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrWebhookNotFound),
		errors.Is(err, ErrDeliveryNotFound),
		errors.Is(err, ErrNamespaceNotFound):
		return newError(err, goerrors.CategoryNotFound, ErrorNotFound)
	case errors.Is(err, ErrDeliveryLocked):
		return newError(err, goerrors.CategoryConflict, ErrorConflict)
	case errors.Is(err, ErrInvalidWebhookURL):
		return newError(err, goerrors.CategoryBadInput, ErrorBadInput)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newError(err, goerrors.CategoryNotFound, ErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newError(err, goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newError(source error, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.Wrap(source, category, source.Error()).
			WithTextCode(textCode),
	)
}

func validationError(message string, fields ...goerrors.FieldError) error {
	return goerrors.NewValidation(message, fields...).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" || err.TextCode == "INTERNAL_ERROR" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryConflict:
		return ErrorConflict
	case goerrors.CategoryExternal:
		return ErrorExternalFailure
	default:
		return ErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
