// Package test provides helpers for unit tests: contexts with loggers and
// parallel groups tied to the test lifecycle.
package test

import (
	"context"
	"errors"
	"testing"

	"github.com/ridge/parallel"
	"github.com/ridge/siltstone/tlog"
	"github.com/stretchr/testify/require"
	"time"
)

// Context returns a new testing context with a logger
func Context(t *testing.T) context.Context {
	return tlog.WithLogger(context.Background(), tlog.NewForTesting(t))
}

// ContextWithTimeout is a version of Context with a timeout.
//
// If the timeout expires, the test context is closed with
// context.DeadlineExceeded.
func ContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(Context(t), timeout)
	t.Cleanup(cancel)
	return ctx
}

// Group returns a parallel.Group with a testing context.
//
// If the group finishes with an error other than context.Canceled, the test
// is failed.
func Group(t *testing.T) *parallel.Group {
	group := parallel.NewGroup(Context(t))
	t.Cleanup(func() {
		group.Exit(nil)
		if err := group.Wait(); !errors.Is(err, context.Canceled) {
			require.NoError(t, err)
		}
	})
	return group
}

// GroupWithTimeout is a version of Group with a timeout.
//
// If the timeout expires, the test context is closed with
// context.DeadlineExceeded.
func GroupWithTimeout(t *testing.T, timeout time.Duration) *parallel.Group {
	group := parallel.NewGroup(ContextWithTimeout(t, timeout))
	t.Cleanup(func() {
		group.Exit(nil)
		if err := group.Wait(); !errors.Is(err, context.Canceled) {
			require.NoError(t, err)
		}
	})
	return group
}
