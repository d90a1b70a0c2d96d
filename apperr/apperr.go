package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP layer.
type Kind string

const (
	Unauthenticated    Kind = "unauthenticated"
	Forbidden          Kind = "forbidden"
	Invalid            Kind = "invalid"
	NotFound           Kind = "not_found"
	Declined           Kind = "declined"
	GatewayUnavailable Kind = "gateway_unavailable"
	Signature          Kind = "signature"
	Internal           Kind = "internal"
)

const defaultPublicMsg = "Payment could not be processed"

// AppError carries a caller-safe message next to the internal cause.
type AppError struct {
	Kind         Kind
	PublicMsg    string
	Fields       map[string]string
	ResponseCode string
	Err          error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

// New returns an error of kind with a caller-safe message and internal cause.
func New(kind Kind, publicMsg string, err error) *AppError {
	return &AppError{Kind: kind, PublicMsg: publicMsg, Err: err}
}

// InvalidErr reports bad input, optionally per field.
func InvalidErr(publicMsg string, fields map[string]string) *AppError {
	return &AppError{Kind: Invalid, PublicMsg: publicMsg, Fields: fields}
}

// UnauthenticatedErr reports a missing or rejected identity.
func UnauthenticatedErr(publicMsg string, err error) *AppError {
	return &AppError{Kind: Unauthenticated, PublicMsg: publicMsg, Err: err}
}

// DeclinedErr reports a gateway decline with its response code.
func DeclinedErr(publicMsg, responseCode string) *AppError {
	return &AppError{Kind: Declined, PublicMsg: publicMsg, ResponseCode: responseCode}
}

// Wrap marks err as internal with a generic message.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Kind: Internal, PublicMsg: defaultPublicMsg, Err: err}
}

// As finds the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// HTTPStatus maps err to a response status; unknown errors are 500.
func HTTPStatus(err error) int {
	if ae, ok := As(err); ok {
		switch ae.Kind {
		case Invalid, Declined:
			return http.StatusBadRequest
		case Unauthenticated:
			return http.StatusUnauthorized
		case Forbidden:
			return http.StatusForbidden
		case NotFound:
			return http.StatusNotFound
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the caller-safe message for err.
func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.PublicMsg != "" {
		return ae.PublicMsg
	}
	return defaultPublicMsg
}
