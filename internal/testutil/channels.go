// Package testutil provides shared helpers for tests that wait on goroutines.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	// DefaultTestTimeout bounds most async waits.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout is for operations expected to complete quickly.
	ShortTestTimeout = 2 * time.Second

	// LongTestTimeout is for shutdown of whole services.
	LongTestTimeout = 10 * time.Second
)

// Receive returns the next value from ch or fails the test after timeout.
func Receive[T any](t *testing.T, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		require.Fail(t, msg)
		var zero T
		return zero
	}
}

// RequireNoErrorWithin waits for a goroutine's result and requires it to be nil.
// Use it for Run(ctx) style loops after cancelling ctx.
func RequireNoErrorWithin(t *testing.T, done <-chan error, timeout time.Duration, msg string) {
	t.Helper()
	err := Receive(t, done, timeout, msg)
	require.NoError(t, err)
}
