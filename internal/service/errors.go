package service

import "errors"

// Auth domain errors. Use cases return these (possibly wrapping a cause);
// the HTTP layer maps them to fixed statuses and never echoes the cause.
var (
	ErrBadRequest         = errors.New("bad request")
	ErrEmailAlreadyInUse  = errors.New("email already in use")
	ErrDuplicateUsername  = errors.New("username already in use")
	ErrPasswordValidation = errors.New("password validation failed")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrLogin              = errors.New("login failed")
	ErrAccountSuspended   = errors.New("account suspended")
	ErrCreatingUser       = errors.New("error creating user")
	ErrGeneratingToken    = errors.New("error generating token")
	ErrRefreshingToken    = errors.New("error generating refresh token")
	ErrVerifyingToken     = errors.New("error verifying token")
	ErrNoToken            = errors.New("no token provided")
	ErrNoRefreshToken     = errors.New("no refresh token provided")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrUserWithIDNotFound = errors.New("user with id not found")
	ErrLogout             = errors.New("error logging out user")
	ErrTooManyRequests    = errors.New("too many requests")
	ErrInternal           = errors.New("internal server error")
)
