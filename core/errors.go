package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput              = "WHATSAPP_BAD_INPUT"
	ErrorConfiguration         = "WHATSAPP_CONFIGURATION_INVALID"
	ErrorMalformedNotification = "WHATSAPP_MALFORMED_NOTIFICATION"
	ErrorUpdateConstruction    = "WHATSAPP_UPDATE_CONSTRUCTION_FAILED"
	ErrorHandlerFailed         = "WHATSAPP_HANDLER_FAILED"
	ErrorCallbackRegistration  = "WHATSAPP_CALLBACK_REGISTRATION_FAILED"
	ErrorFlowDecryption        = "WHATSAPP_FLOW_DECRYPTION_FAILED"
	ErrorInternal              = "WHATSAPP_INTERNAL_ERROR"
)

// ConfigurationError marks a setup-time failure. These are fatal and raised
// to the caller performing setup, never a runtime condition.
func ConfigurationError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorConfiguration)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// MalformedNotificationError marks a delivery whose minimal shape could not
// be extracted. Dispatch logs it and aborts; the HTTP caller still sees 200.
func MalformedNotificationError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorMalformedNotification)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// WrapError attaches category, status code and text code to a source error,
// preserving the chain.
func WrapError(
	source error,
	category goerrors.Category,
	message string,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		source = goerrors.New(message, category)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(categoryHTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// ErrorMapper normalizes any error into the module's envelope so callers
// always observe a code and text code.
func ErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = categoryHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryOperation:
		return ErrorHandlerFailed
	default:
		return ErrorInternal
	}
}

func categoryHTTPStatus(category goerrors.Category) int {
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
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
