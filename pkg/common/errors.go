//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package common provides shared types and utilities used across the
// archive authorization packages.
//
// # Error Handling
//
// The [AuthError] type carries a [ReasonCode] classifying the failure, so
// callers can tell a malformed override file apart from an unreachable
// schedule database without matching on message text.
package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// ReasonCode classifies an [AuthError].
type ReasonCode int

const (
	// UnknownError is an unexpected failure.
	UnknownError ReasonCode = iota
	// ParseError is a malformed override rule, override file name or path,
	// or proprietary period.
	ParseError
	// ExternalServiceError is a failure of the schedule service or the
	// override rule store.
	ExternalServiceError
	// Misconfiguration is a configuration value that cannot be used.
	Misconfiguration
	// NotFoundError is a lookup that matched nothing.
	NotFoundError
)

var reasonNames = map[ReasonCode]string{
	UnknownError:         "UNKNOWN_ERROR",
	ParseError:           "PARSE_ERROR",
	ExternalServiceError: "EXTERNAL_SERVICE_ERROR",
	Misconfiguration:     "MISCONFIGURATION",
	NotFoundError:        "NOTFOUND_ERROR",
}

func (c ReasonCode) String() string {
	if s, ok := reasonNames[c]; ok {
		return s
	}
	return fmt.Sprintf("REASON_%d", int(c))
}

// AuthError is an error raised while parsing authorization inputs or talking
// to an external collaborator.
type AuthError struct {
	// Code is the machine-readable classification.
	Code ReasonCode
	// Reason is a human-readable description.
	Reason string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s(code-%s)", e.Reason, e.Code)
}

// NewError creates a new [AuthError].
func NewError(code ReasonCode, msg string) *AuthError {
	return &AuthError{Code: code, Reason: msg}
}

// NewErrorf creates a new [AuthError] with a formatted reason.
func NewErrorf(code ReasonCode, format string, args ...interface{}) *AuthError {
	return &AuthError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err, or any error it wraps, is an [AuthError] with
// the given code.
func IsCode(err error, code ReasonCode) bool {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}
