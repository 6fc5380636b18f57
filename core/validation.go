package core

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	goerrors "github.com/goliatone/go-errors"
)

var inputValidator = validator.New()

// PrepareCreateWebhook validates a create request and returns it with a
// normalized URL and trimmed header names.
func PrepareCreateWebhook(in CreateWebhookInput) (CreateWebhookInput, error) {
	in.NamespaceID = strings.TrimSpace(in.NamespaceID)
	in.URL = strings.TrimSpace(in.URL)
	in.Headers = trimHeaderInputs(in.Headers)
	if err := validateStruct("invalid webhook", in); err != nil {
		return CreateWebhookInput{}, err
	}
	normalized, err := NormalizeWebhookURL(in.URL)
	if err != nil {
		return CreateWebhookInput{}, urlValidationError(err)
	}
	in.URL = normalized
	return in, nil
}

func PrepareUpdateWebhook(in UpdateWebhookInput) (UpdateWebhookInput, error) {
	in.ID = strings.TrimSpace(in.ID)
	if err := validateStruct("invalid webhook update", in); err != nil {
		return UpdateWebhookInput{}, err
	}
	if in.URL != nil {
		normalized, err := NormalizeWebhookURL(*in.URL)
		if err != nil {
			return UpdateWebhookInput{}, urlValidationError(err)
		}
		in.URL = &normalized
	}
	return in, nil
}

func PrepareHeaders(headers []HeaderInput) ([]HeaderInput, error) {
	headers = trimHeaderInputs(headers)
	for _, header := range headers {
		if err := validateStruct("invalid webhook header", header); err != nil {
			return nil, err
		}
	}
	return headers, nil
}

func trimHeaderInputs(headers []HeaderInput) []HeaderInput {
	if len(headers) == 0 {
		return nil
	}
	out := make([]HeaderInput, 0, len(headers))
	for _, header := range headers {
		out = append(out, HeaderInput{Name: strings.TrimSpace(header.Name), Value: header.Value})
	}
	return out
}

func validateStruct(message string, value any) error {
	err := inputValidator.Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return validationError(message, goerrors.FieldError{Field: "input", Message: err.Error()})
	}
	fields := make([]goerrors.FieldError, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		fields = append(fields, goerrors.FieldError{
			Field:   fieldPath(fieldErr.Namespace()),
			Message: fieldMessage(fieldErr),
		})
	}
	return validationError(message, fields...)
}

func urlValidationError(err error) error {
	return validationError("invalid webhook url", goerrors.FieldError{Field: "url", Message: err.Error()})
}

func fieldMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fieldErr.Param()
	case "max":
		return "must be at most " + fieldErr.Param() + " characters"
	default:
		return "failed " + fieldErr.Tag() + " validation"
	}
}

// fieldPath turns "CreateWebhookInput.Headers[0].Name" into "headers[0].name".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for index, part := range parts {
		parts[index] = snakeCase(part)
	}
	return strings.Join(parts, ".")
}

func snakeCase(value string) string {
	var b strings.Builder
	runes := []rune(value)
	for index, r := range runes {
		if unicode.IsUpper(r) {
			if index > 0 && (unicode.IsLower(runes[index-1]) ||
				(index+1 < len(runes) && unicode.IsLower(runes[index+1]) && unicode.IsUpper(runes[index-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
