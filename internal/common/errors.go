package common

import "errors"

// AppError is the error currency of the service layer: a stable code the POS
// frontend switches on (PRODUCT_NOT_FOUND, INSUFFICIENT_STOCK, ...), a
// human-readable message, and the HTTP status the handlers should answer
// with. Details carries structured context such as the offending product id.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped cause to errors.Is/As, so services can layer an
// AppError over pgx or engine sentinels without losing them.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError reports whether err carries an AppError anywhere in its chain.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
