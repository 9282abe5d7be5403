/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package apperr defines the classified error kinds produced by the query
// pipeline. Components return these; only the orchestrator turns them into
// user-facing text.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the classification of a pipeline failure
type Kind string

const (
	InputRejected        Kind = "InputRejected"
	SchemaDiscoveryError Kind = "SchemaDiscoveryError"
	NoRelevantTables     Kind = "NoRelevantTablesError"
	TranslationError     Kind = "TranslationError"
	UnsafeOperation      Kind = "UnsafeOperationError"
	SuspiciousQuery      Kind = "SuspiciousQueryError"
	PoolExhausted        Kind = "PoolExhaustedError"
	QueryTimeout         Kind = "QueryTimeoutError"
	ExecutionError       Kind = "ExecutionError"
	InternalError        Kind = "InternalError"
)

// Kinds lists every kind in a stable order
var Kinds = []Kind{
	InputRejected,
	SchemaDiscoveryError,
	NoRelevantTables,
	TranslationError,
	UnsafeOperation,
	SuspiciousQuery,
	PoolExhausted,
	QueryTimeout,
	ExecutionError,
	InternalError,
}

// Retryable reports whether the orchestrator may retry a failure of this kind
// within its bounded budget.
func (k Kind) Retryable() bool {
	return k == TranslationError
}

// Error is a classified pipeline error
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	// Code carries a driver specific code (SQLSTATE etc.) when known
	Code string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a classified error
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Wrapf classifies an existing error with a formatted message
func Wrapf(err error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// KindOf returns the kind of the first classified error in the chain.
// Unclassified errors are InternalError.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsCancellation reports whether err stems from the caller cancelling the
// context, as opposed to an internal deadline.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
