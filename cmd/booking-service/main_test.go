package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitRetryElapses(t *testing.T) {
	assert.True(t, waitRetry(context.Background(), time.Millisecond))
}

func TestWaitRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.False(t, waitRetry(ctx, time.Minute))
	assert.Less(t, time.Since(start), time.Second)
}
