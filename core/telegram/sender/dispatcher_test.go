package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

var errDial = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

func TestDeliversQueuedJobs(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2})
	var calls atomic.Int32
	for range 5 {
		require.NoError(t, d.Enqueue(context.Background(), "send.text", func() error {
			calls.Add(1)
			return nil
		}))
	}
	d.Close()

	assert.Equal(t, int32(5), calls.Load())
	sent, failed := d.Stats()
	assert.Equal(t, uint64(5), sent)
	assert.Zero(t, failed)
}

func TestRetriesTransientFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "send.text", func() error {
		if calls.Add(1) < 3 {
			return errDial
		}
		return nil
	}))
	d.Close()

	assert.Equal(t, int32(3), calls.Load())
	sent, failed := d.Stats()
	assert.Equal(t, uint64(1), sent)
	assert.Zero(t, failed)
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), "send.text", func() error {
		calls.Add(1)
		return &tele.Error{Code: 400, Description: "Bad Request: message is not modified"}
	}))
	d.Close()

	assert.Equal(t, int32(1), calls.Load())
	_, failed := d.Stats()
	assert.Equal(t, uint64(1), failed)
}

func TestEnqueueAfterCloseAndWhenFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "a", func() error {
		close(started)
		<-block
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "b", func() error { return nil }))
	assert.ErrorIs(t, d.Enqueue(context.Background(), "c", func() error { return nil }), ErrQueueFull)

	close(block)
	d.Close()
	d.Close()
	assert.ErrorIs(t, d.Enqueue(context.Background(), "d", func() error { return nil }), ErrQueueClosed)
}

func TestErrorKindAndRedact(t *testing.T) {
	assert.Equal(t, "network", errorKind(errDial))
	assert.Equal(t, "timeout", errorKind(context.DeadlineExceeded))
	assert.Equal(t, "api_403", errorKind(&tele.Error{Code: 403, Description: "Forbidden"}))
	assert.Equal(t, "unknown", errorKind(errors.New("boom")))

	err := errors.New(`Post "https://api.telegram.org/bot123456:AAE-x_y/sendMessage": EOF`)
	assert.Contains(t, redact(err), "bot<redacted>")
	assert.NotContains(t, redact(err), "123456")
}
