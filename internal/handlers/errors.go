package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"socialhub/internal/service"
)

type apiError struct {
	status  int
	code    string
	message string
}

var (
	errInternal           = apiError{http.StatusInternalServerError, "internal_server_error", "internal server error"}
	errInvalidCredentials = apiError{http.StatusUnauthorized, "invalid_credentials", "invalid email or password"}
	errUnauthorized       = apiError{http.StatusUnauthorized, "unauthorized", "unauthorized"}
)

// errorTable is checked in order; the first match wins.
var errorTable = []struct {
	err error
	api apiError
}{
	{service.ErrBadRequest, apiError{http.StatusBadRequest, "bad_request", "missing or malformed input"}},
	{service.ErrPasswordValidation, apiError{http.StatusBadRequest, "password_validation", "password does not meet the password policy"}},
	{service.ErrEmailAlreadyInUse, apiError{http.StatusConflict, "email_in_use", "email already in use"}},
	{service.ErrDuplicateUsername, apiError{http.StatusConflict, "username_in_use", "username already in use"}},
	{service.ErrLogin, errInvalidCredentials},
	{service.ErrInvalidPassword, errInvalidCredentials},
	{service.ErrAccountSuspended, apiError{http.StatusForbidden, "account_suspended", "account suspended"}},
	{service.ErrForbidden, apiError{http.StatusForbidden, "forbidden", "forbidden"}},
	{service.ErrNoToken, apiError{http.StatusUnauthorized, "no_token", "no token provided"}},
	{service.ErrNoRefreshToken, apiError{http.StatusUnauthorized, "no_refresh_token", "no refresh token provided"}},
	{service.ErrVerifyingToken, errUnauthorized},
	{service.ErrUnauthorized, errUnauthorized},
	{service.ErrUserWithIDNotFound, apiError{http.StatusNotFound, "user_not_found", "user not found"}},
	{service.ErrTooManyRequests, apiError{http.StatusTooManyRequests, "too_many_requests", "too many requests"}},
	{service.ErrCreatingUser, errInternal},
	{service.ErrGeneratingToken, errInternal},
	{service.ErrRefreshingToken, errInternal},
	{service.ErrLogout, errInternal},
	{service.ErrInternal, errInternal},
}

func lookupError(err error) apiError {
	for _, entry := range errorTable {
		if errors.Is(err, entry.err) {
			return entry.api
		}
	}
	return errInternal
}

// respondError writes the mapped status and body and aborts. The cause only
// goes to the log.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	api := lookupError(err)

	event := h.log.Warn()
	if api.status >= http.StatusInternalServerError {
		event = h.log.Error()
	}
	event.
		Err(err).
		Str("code", api.code).
		Str("path", c.Request.URL.Path).
		Str("request_id", c.Writer.Header().Get("X-Request-Id")).
		Msg("request failed")

	c.AbortWithStatusJSON(api.status, gin.H{
		"error":   api.code,
		"message": api.message,
	})
}
