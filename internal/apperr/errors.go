// Package apperr carries machine-readable error codes together with the HTTP
// status they map to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"bigbag/internal/store"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeInternal          Code = "INTERNAL"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeNotFound          Code = "NOT_FOUND"
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeConflict          Code = "CONFLICT"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeTooLarge          Code = "PAYLOAD_TOO_LARGE"
	CodeShopNotApproved   Code = "SHOP_NOT_APPROVED"
	CodeNoShop            Code = "NO_SHOP"
	CodeNoRollCredits     Code = "NO_ROLL_CREDITS"
	CodePackageInactive   Code = "PACKAGE_INACTIVE"
	CodeCouponUnavailable Code = "COUPON_UNAVAILABLE"
	CodeInvalidOTP        Code = "INVALID_OTP"
)

var statusByCode = map[Code]int{
	CodeInternal:          http.StatusInternalServerError,
	CodeInvalidArgument:   http.StatusBadRequest,
	CodeNotFound:          http.StatusNotFound,
	CodeUnauthenticated:   http.StatusUnauthorized,
	CodeForbidden:         http.StatusForbidden,
	CodeConflict:          http.StatusConflict,
	CodeRateLimited:       http.StatusTooManyRequests,
	CodeTooLarge:          http.StatusRequestEntityTooLarge,
	CodeShopNotApproved:   http.StatusForbidden,
	CodeNoShop:            http.StatusForbidden,
	CodeNoRollCredits:     http.StatusPaymentRequired,
	CodePackageInactive:   http.StatusConflict,
	CodeCouponUnavailable: http.StatusConflict,
	CodeInvalidOTP:        http.StatusUnauthorized,
}

// Error is an error that is safe to show to API clients.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status for the error's code.
func (e *Error) Status() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

func Invalid(msg string) *Error      { return New(CodeInvalidArgument, msg) }
func NotFound(what string) *Error    { return Newf(CodeNotFound, "%s not found", what) }
func Forbidden(msg string) *Error    { return New(CodeForbidden, msg) }
func Unauthorized(msg string) *Error { return New(CodeUnauthenticated, msg) }
func Conflict(msg string) *Error     { return New(CodeConflict, msg) }

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// From converts any error into an *Error. Store sentinels map to their API
// codes and anything unrecognised becomes INTERNAL with the cause kept.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Wrap(CodeNotFound, "resource not found", err)
	case errors.Is(err, store.ErrDuplicate):
		return Wrap(CodeConflict, "resource already exists", err)
	case errors.Is(err, store.ErrConflict):
		return Wrap(CodeConflict, "resource changed, try again", err)
	default:
		return Wrap(CodeInternal, "internal server error", err)
	}
}
