// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across retrieval backends.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 500 * time.Millisecond

const defaultMaxAttempts = 3

// Policy describes a bounded exponential-backoff retry. The zero value is
// usable: 3 attempts total, RetryBaseDelay base, doubling delays, retrying
// only transient errors.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	// When 0 the default (3) is used.
	MaxAttempts int

	// BaseDelay is the wait before the first retry. When 0, RetryBaseDelay
	// is used.
	BaseDelay time.Duration

	// Multiplier scales the delay between consecutive attempts. Must be
	// greater than 1 so delays strictly increase; when 0 the default (2) is
	// used.
	Multiplier float64

	// Retryable reports whether an error is worth another attempt. When nil,
	// IsTransient is used.
	Retryable func(error) bool
}

// Do runs op, retrying on retryable errors with exponential backoff:
// BaseDelay, BaseDelay*Multiplier, and so on. If the context is cancelled
// during a backoff wait, Do returns ctx.Err(). After exhausting attempts the
// last error is returned unchanged so callers can classify it.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	base := p.BaseDelay
	if base <= 0 {
		base = RetryBaseDelay
	}
	mult := p.Multiplier
	if mult <= 1 {
		mult = 2
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !retryable(err) || attempt == maxAttempts-1 {
			return err
		}

		backoff := time.Duration(float64(base) * math.Pow(mult, float64(attempt)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}

// transientError marks an error as belonging to the retryable class:
// transport failures, non-2xx responses, and malformed provider payloads.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so IsTransient reports true for it. A nil err returns
// nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Transientf formats a transient error the way fmt.Errorf does.
func Transientf(format string, args ...any) error {
	return &transientError{err: fmt.Errorf(format, args...)}
}

// IsTransient reports whether err (or any error it wraps) was marked with
// Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
