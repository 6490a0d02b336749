package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	InboxErrorBadInput         = "INBOX_BAD_INPUT"
	InboxErrorStructureInvalid = "INBOX_STRUCTURE_INVALID"
	InboxErrorTenantNotFound   = "INBOX_TENANT_NOT_FOUND"
	InboxErrorUnauthorized     = "INBOX_TENANT_UNAUTHORIZED"
	InboxErrorNotFound         = "INBOX_NOT_FOUND"
	InboxErrorInfraRetryable   = "INBOX_INFRA_RETRYABLE"
	InboxErrorInfraFatal       = "INBOX_INFRA_FATAL"
	InboxErrorInternal         = "INBOX_INTERNAL"
)

// NewStructureError marks an event whose envelope deviates from the
// expected shape. Structural failures never retry: malformed input will not
// become well-formed by waiting.
func NewStructureError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(InboxErrorStructureInvalid)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// NewTenantNotFoundError marks an event whose channel has no owning store.
// Fatal for the event: there is no tenant to attribute it to.
func NewTenantNotFoundError(channelID string) error {
	return goerrors.New("core: no store mapped for channel", goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(InboxErrorTenantNotFound).
		WithMetadata(map[string]any{"channel_id": strings.TrimSpace(channelID)})
}

// NewAuthorizationError marks a principal that cannot be bound to a tenant
// partition.
func NewAuthorizationError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryAuthz).
		WithCode(http.StatusForbidden).
		WithTextCode(InboxErrorUnauthorized)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// NewRetryableInfraError tags a transient infrastructure failure: bounded
// retry is expected to resolve it.
func NewRetryableInfraError(source error, message string) error {
	if source == nil {
		return goerrors.New(message, goerrors.CategoryOperation).
			WithCode(http.StatusServiceUnavailable).
			WithTextCode(InboxErrorInfraRetryable)
	}
	return goerrors.Wrap(source, goerrors.CategoryOperation, message).
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(InboxErrorInfraRetryable)
}

// NewFatalInfraError tags an infrastructure failure that no amount of
// retrying will fix (constraint violations, syntax errors, programming
// errors).
func NewFatalInfraError(source error, message string) error {
	if source == nil {
		return goerrors.New(message, goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(InboxErrorInfraFatal)
	}
	return goerrors.Wrap(source, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(InboxErrorInfraFatal)
}

func NewNotFoundError(message string) error {
	return goerrors.New(message, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(InboxErrorNotFound)
}

func NewBadInputError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(InboxErrorBadInput)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func NewInternalError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(InboxErrorInternal)
}

// IsRetryable reports whether an error was classified transient at the
// point it was raised. Classification is carried on the error itself; free
// text is never inspected.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	if strings.TrimSpace(rich.TextCode) == InboxErrorInfraRetryable {
		return true
	}
	return rich.Category == goerrors.CategoryRateLimit
}

// IsTenantNotFound reports whether an error marks an unattributable event.
func IsTenantNotFound(err error) bool {
	return hasTextCode(err, InboxErrorTenantNotFound)
}

// IsStructureInvalid reports whether an error marks a malformed envelope.
func IsStructureInvalid(err error) bool {
	return hasTextCode(err, InboxErrorStructureInvalid)
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return strings.TrimSpace(rich.TextCode) == textCode
}

// MapError normalizes any error into the rich error envelope. Errors that
// already carry a category and text code pass through untouched. Everything
// else goes through the stock mappers and lands as internal; retryability is
// never inferred from message text, only from the classification set where
// the error was raised.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureErrorEnvelope(rich)
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err = err.WithTextCode(InboxErrorInternal)
	}
	if err.Code == 0 {
		err = err.WithCode(categoryStatus(err.Category))
	}
	return err
}

func categoryStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryOperation, goerrors.CategoryExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatus maps an error onto a transport status the way the rest of the
// goliatone stack expects. Unclassified errors read as internal.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Code != 0 {
		return rich.Code
	}
	return http.StatusInternalServerError
}
