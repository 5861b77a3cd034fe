package client

import "time"

// StatusCallback receives progress notifications from a streaming Model
// Client call. The CLI's chat command wires one in to print retry/error
// feedback as it happens rather than leaving the terminal silent during a
// long generation.
type StatusCallback interface {
	// OnRetry fires before a retried call, after the backoff for it is
	// already chosen. attempt is 1-based; maxAttempts is cfg.MaxRetries.
	OnRetry(attempt, maxAttempts int, delay time.Duration, reason string)

	// OnError fires when a streaming call ends in an error that streamChat
	// is about to retry.
	OnError(err error, recoverable bool)
}

// DefaultStatusCallback discards every notification. New clients start with
// this until SetStatusCallback installs something that actually surfaces
// the events.
type DefaultStatusCallback struct{}

func (d *DefaultStatusCallback) OnRetry(attempt, maxAttempts int, delay time.Duration, reason string) {}

func (d *DefaultStatusCallback) OnError(err error, recoverable bool) {}
