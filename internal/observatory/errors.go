package observatory

import (
	"fmt"
	"net/http"
)

func ErrorInvalidInput() *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Type:       "observatory#InvalidInput",
	}
}

func ErrorInvalidDomain() *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Type:       "observatory#InvalidDomain",
	}
}

func ErrorInvalidFormat() *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Type:       "observatory#InvalidFormat",
	}
}

func ErrorNotFound() *Error {
	return &Error{
		StatusCode: http.StatusNotFound,
		Type:       "observatory#NotFound",
	}
}

func ErrorMethodNotAllowed() *Error {
	return &Error{
		StatusCode: http.StatusMethodNotAllowed,
		Type:       "observatory#MethodNotAllowed",
	}
}

func ErrorStoreUnavailable() *Error {
	return &Error{
		StatusCode: http.StatusServiceUnavailable,
		Type:       "observatory#StoreUnavailable",
	}
}

func ErrorInternalServer() *Error {
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Type:       "observatory#InternalServerError",
	}
}

// Error is the json error body returned by the daemon api.
type Error struct {
	StatusCode int    `json:"-"`
	Type       string `json:"__type"`
	Message    string `json:"message"`
}

func (e Error) WithMessage(message string) *Error {
	e.Message = message
	return &e
}

func (e Error) WithMessagef(format string, args ...any) *Error {
	e.Message = fmt.Sprintf(format, args...)
	return &e
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}
