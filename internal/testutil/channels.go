// Package testutil provides shared test helpers for PetMood packages.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// DefaultTestTimeout bounds waits on goroutines started by tests.
const DefaultTestTimeout = 5 * time.Second

// WaitForError waits for a value on ch or fails the test after timeout.
func WaitForError(t *testing.T, ch <-chan error, timeout time.Duration, msg string) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(timeout):
		require.Fail(t, msg)
		return nil
	}
}
