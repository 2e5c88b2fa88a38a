package auth

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/felixgeelhaar/sciencepoint/internal/errors"
	"github.com/felixgeelhaar/sciencepoint/internal/platform"
)

// classifyLoginError maps a login failure onto one user-facing error. Raw
// transport text only ever ends up in Cause.
func classifyLoginError(err error) *errors.AppError {
	var statusErr *platform.StatusError
	var transportErr *platform.TransportError

	switch {
	case stderrors.As(err, &statusErr):
		switch {
		case statusErr.Status == http.StatusUnauthorized:
			return errors.NewInvalidCredentialsError(err)
		case statusErr.Status == http.StatusForbidden:
			return errors.NewAccessDeniedError(err)
		case statusErr.Status == http.StatusNotFound:
			return errors.NewServiceUnavailableError(err)
		case statusErr.Status >= 500:
			return errors.NewServerError(err)
		default:
			return errors.NewLoginFailedError(err)
		}
	case stderrors.As(err, &transportErr),
		stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewConnectivityError(err)
	default:
		return errors.NewLoginFailedError(err)
	}
}

// resultLabel is the metrics label for a classified failure.
func resultLabel(err *errors.AppError) string {
	switch err.Code {
	case errors.ErrCodeInvalidCredentials:
		return "invalid_credentials"
	case errors.ErrCodeAccessDenied:
		return "access_denied"
	case errors.ErrCodeServiceUnavailable:
		return "service_unavailable"
	case errors.ErrCodeServerError:
		return "server_error"
	case errors.ErrCodeConnectivity:
		return "connectivity"
	default:
		return "failed"
	}
}
