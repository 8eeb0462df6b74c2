// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/farmhand/internal/cloud"
)

// ErrEmptyInput is returned by Submit for blank text. No state changes.
var ErrEmptyInput = errors.New("empty input")

// ErrorKind classifies a failed turn.
type ErrorKind int

const (
	KindTransportFailure ErrorKind = iota
	KindRateLimited
	KindCapacityExhausted
	KindCanceled
)

// String returns the kind name used in logs.
func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindCapacityExhausted:
		return "capacity_exhausted"
	case KindCanceled:
		return "canceled"
	default:
		return "transport_failure"
	}
}

// Message returns the user-facing text for the kind.
func (k ErrorKind) Message() string {
	switch k {
	case KindRateLimited:
		return "Too many requests. Please wait a moment and try again."
	case KindCapacityExhausted:
		return "Service temporarily unavailable. Please try again later."
	case KindCanceled:
		return "Response stopped."
	default:
		return "Failed to get response"
	}
}

// TurnError is the single failure surfaced for a turn.
type TurnError struct {
	Kind       ErrorKind
	RetryAfter time.Duration
	Err        error
}

// Error returns the user-facing message.
func (e *TurnError) Error() string {
	return e.Kind.Message()
}

// Unwrap returns the underlying cause.
func (e *TurnError) Unwrap() error {
	return e.Err
}

// Detail returns the message together with the cause, for logs.
func (e *TurnError) Detail() string {
	if e.Err == nil {
		return e.Kind.Message()
	}
	return fmt.Sprintf("%s (%v)", e.Kind.Message(), e.Err)
}

// classify maps a transport or stream error onto the taxonomy.
func classify(ctx context.Context, err error) *TurnError {
	turnErr := &TurnError{Kind: KindTransportFailure, Err: err}

	var gwErr *cloud.GatewayError
	if errors.As(err, &gwErr) {
		turnErr.RetryAfter = gwErr.RetryAfter
	}

	switch {
	case errors.Is(err, context.Canceled) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled)):
		turnErr.Kind = KindCanceled
	case errors.Is(err, cloud.ErrRateLimited):
		turnErr.Kind = KindRateLimited
	case errors.Is(err, cloud.ErrCapacityExhausted):
		turnErr.Kind = KindCapacityExhausted
	}
	return turnErr
}
