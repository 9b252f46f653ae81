package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-ticktick-auth/deployment"
	"github.com/goliatone/go-ticktick-auth/exchange"
)

var (
	ErrEmptyInput           = errors.New("core: input must not be empty")
	ErrPersistence          = errors.New("core: credential store write failed")
	ErrStateMismatch        = errors.New("core: oauth callback state mismatch")
	ErrAuthorizationDenied  = errors.New("core: authorization denied by provider")
	ErrAuthorizationTimeout = errors.New("core: timed out waiting for authorization redirect")
)

const (
	AuthErrorUnknownDeployment = "AUTH_UNKNOWN_DEPLOYMENT"
	AuthErrorEmptyInput        = "AUTH_EMPTY_INPUT"
	AuthErrorPersistence       = "AUTH_PERSISTENCE"
	AuthErrorStateMismatch     = "AUTH_STATE_MISMATCH"
	AuthErrorDenied            = "AUTH_DENIED"
	AuthErrorTimeout           = "AUTH_TIMEOUT"
	AuthErrorTokenExchange     = "AUTH_TOKEN_EXCHANGE"
	AuthErrorRefreshRequired   = "AUTH_REFRESH_NOT_POSSIBLE"
	AuthErrorInternal          = "AUTH_INTERNAL_ERROR"
)

func flowErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureAuthErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, deployment.ErrUnknownDeployment):
		return wrapAuthError(err, goerrors.CategoryNotFound, AuthErrorUnknownDeployment)
	case errors.Is(err, ErrEmptyInput):
		return wrapAuthError(err, goerrors.CategoryBadInput, AuthErrorEmptyInput)
	case errors.Is(err, ErrPersistence):
		return wrapAuthError(err, goerrors.CategoryInternal, AuthErrorPersistence)
	case errors.Is(err, ErrStateMismatch):
		return wrapAuthError(err, goerrors.CategoryAuth, AuthErrorStateMismatch)
	case errors.Is(err, ErrAuthorizationDenied):
		return wrapAuthError(err, goerrors.CategoryAuth, AuthErrorDenied)
	case errors.Is(err, ErrAuthorizationTimeout):
		return wrapAuthError(err, goerrors.CategoryOperation, AuthErrorTimeout)
	case errors.Is(err, exchange.ErrTokenExchange):
		return wrapAuthError(err, goerrors.CategoryOperation, AuthErrorTokenExchange)
	case errors.Is(err, ErrRefreshNotPossible):
		return wrapAuthError(err, goerrors.CategoryAuth, AuthErrorRefreshRequired)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureAuthErrorEnvelope(mapped)
}

// wrapAuthError keeps the source chain intact so callers can still match the
// package sentinels with errors.Is after mapping.
func wrapAuthError(source error, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureAuthErrorEnvelope(
		goerrors.Wrap(source, category, source.Error()).
			WithTextCode(textCode),
	)
}

func ensureAuthErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = authHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultAuthTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultAuthTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return AuthErrorEmptyInput
	case goerrors.CategoryNotFound:
		return AuthErrorUnknownDeployment
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return AuthErrorDenied
	case goerrors.CategoryOperation:
		return AuthErrorTokenExchange
	default:
		return AuthErrorInternal
	}
}

func authHTTPStatus(category goerrors.Category) int {
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
