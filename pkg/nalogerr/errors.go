// Package nalogerr defines the typed failure categories raised by local
// validation and by remote-call outcomes.
//
// Every error produced by this module that is not a plain programming error is
// a *Error. Callers branch on the category with errors.Is against the
// sentinels, and reach the detail (field, HTTP status, server code) with
// errors.As:
//
//	var nerr *nalogerr.Error
//	switch {
//	case errors.Is(err, nalogerr.ErrValidation):
//	case errors.Is(err, nalogerr.ErrPhone):
//	case errors.As(err, &nerr) && nerr.Status == 406:
//	}
package nalogerr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is a failure category.
type Kind int

const (
	// KindTransport covers network failures, malformed server responses,
	// 5xx and every status not classified otherwise.
	KindTransport Kind = iota
	// KindValidation is a local, pre-network failure of a domain object.
	KindValidation
	// KindPhone is a phone-challenge failure: bad phone format, bad or
	// expired SMS code, exhausted challenge.
	KindPhone
	// KindUnauthorized means credentials or token were rejected, including a
	// failed refresh.
	KindUnauthorized
	// KindDomain is a well-formed request rejected by remote business rules.
	KindDomain
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPhone:
		return "phone"
	case KindUnauthorized:
		return "unauthorized"
	case KindDomain:
		return "domain"
	default:
		return "transport"
	}
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrTransport    = &Error{Kind: KindTransport}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrPhone        = &Error{Kind: KindPhone}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrDomain       = &Error{Kind: KindDomain}
)

// Error is the single concrete error type of the taxonomy.
type Error struct {
	Kind Kind
	// Op names the failed operation, e.g. "income.create".
	Op string
	// Field and Rule are set for validation failures.
	Field string
	Rule  string
	// Status is the HTTP status of a remote rejection, 0 for local errors.
	Status int
	// Code is the machine-readable code from the server error body.
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(" error in ")
		b.WriteString(e.Op)
	} else {
		b.WriteString(" error")
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
		if e.Rule != "" {
			fmt.Fprintf(&b, " (%s)", e.Rule)
		}
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Field == "" && t.Status == 0
}

// Validation returns a validation failure for field violating rule.
func Validation(field, rule, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Rule: rule, Message: message}
}

// Phone returns a phone-challenge failure.
func Phone(op, message string) *Error {
	return &Error{Kind: KindPhone, Op: op, Message: message}
}

// Unauthorized returns a credential/token rejection.
func Unauthorized(op, message string) *Error {
	return &Error{Kind: KindUnauthorized, Op: op, Message: message}
}

// Transport wraps a network or decoding failure.
func Transport(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// KindOf returns the Kind of err, or KindTransport when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransport
}

// Endpoint selects the status classification table for a remote call.
type Endpoint int

const (
	// EndpointAPI is any authenticated facade call.
	EndpointAPI Endpoint = iota
	// EndpointCredentials is the INN/password exchange.
	EndpointCredentials
	// EndpointPhone is phone-challenge start and SMS verification.
	EndpointPhone
	// EndpointRefresh is the refresh-token exchange.
	EndpointRefresh
)

// FromStatus classifies a non-2xx response.
func FromStatus(endpoint Endpoint, op string, status int, code, message string) *Error {
	e := &Error{Op: op, Status: status, Code: code, Message: message}
	if message == "" {
		e.Message = http.StatusText(status)
	}
	e.Kind = classify(endpoint, status)
	return e
}

func classify(endpoint Endpoint, status int) Kind {
	if status == http.StatusUnauthorized {
		return KindUnauthorized
	}

	switch endpoint {
	case EndpointCredentials, EndpointRefresh:
		switch status {
		case http.StatusBadRequest, http.StatusForbidden:
			return KindUnauthorized
		}
	case EndpointPhone:
		switch status {
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return KindPhone
		case http.StatusForbidden, http.StatusNotFound, http.StatusNotAcceptable, http.StatusConflict:
			return KindDomain
		}
	}

	switch status {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound,
		http.StatusNotAcceptable, http.StatusConflict, http.StatusUnprocessableEntity:
		return KindDomain
	}
	return KindTransport
}
