package main

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/stromboli/pkg/events"
)

func TestRunWithRouterReturnsAfterWorkerSucceeds(t *testing.T) {
	router, err := events.NewEventRouter()
	require.NoError(t, err)
	defer func() { _ = router.Close() }()

	done := make(chan error, 1)
	go func() {
		done <- runWithRouter(context.Background(), router, func(ctx context.Context) error {
			return nil
		})
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runWithRouter still blocked after the worker returned nil")
	}
}

func TestRunWithRouterPropagatesWorkerError(t *testing.T) {
	router, err := events.NewEventRouter()
	require.NoError(t, err)
	defer func() { _ = router.Close() }()

	done := make(chan error, 1)
	go func() {
		done <- runWithRouter(context.Background(), router, func(ctx context.Context) error {
			return errors.New("worker failed")
		})
	}()

	select {
	case err := <-done:
		assert.EqualError(t, err, "worker failed")
	case <-time.After(5 * time.Second):
		t.Fatal("runWithRouter still blocked after the worker returned an error")
	}
}
