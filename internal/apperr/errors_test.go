/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := New(UnsafeOperation, "leading DELETE")
	wrapped := fmt.Errorf("validate: %w", base)

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", base, UnsafeOperation},
		{"wrapped", wrapped, UnsafeOperation},
		{"plain", errors.New("boom"), InternalError},
		{"nil", nil, InternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := context.DeadlineExceeded
	err := Wrap(cause, QueryTimeout, "statement exceeded 5s")

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected wrapped error to match its cause")
	}
	if !Is(err, QueryTimeout) {
		t.Error("expected Is to match QueryTimeout")
	}
	if Is(err, ExecutionError) {
		t.Error("did not expect Is to match ExecutionError")
	}
}

func TestRetryable(t *testing.T) {
	for _, k := range Kinds {
		want := k == TranslationError
		if k.Retryable() != want {
			t.Errorf("%s.Retryable() = %v, want %v", k, k.Retryable(), want)
		}
	}
}

func TestIsCancellation(t *testing.T) {
	if !IsCancellation(fmt.Errorf("x: %w", context.Canceled)) {
		t.Error("expected cancellation to be detected")
	}
	if IsCancellation(context.DeadlineExceeded) {
		t.Error("deadline is not a caller cancellation")
	}
}
