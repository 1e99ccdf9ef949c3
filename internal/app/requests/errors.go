package requests

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Failure taxonomy for orchestrated calls. Every error leaving this package
// wraps exactly one of these sentinels so callers can branch with errors.Is.
var (
	// ErrTimeout marks a call that hit its deadline. Always recoverable via retry.
	ErrTimeout = errors.New("requests: deadline exceeded")
	// ErrCancelled marks a call superseded by a newer one. Never user-visible.
	ErrCancelled = errors.New("requests: cancelled")
	// ErrTransport marks a network or backend failure surfaced with a retry affordance.
	ErrTransport = errors.New("requests: transport failure")
	// ErrValidation marks input rejected before dispatch, without a round-trip.
	ErrValidation = errors.New("requests: validation failed")
	// ErrConflict marks an optimistic mutation rejected by the backend.
	ErrConflict = errors.New("requests: conflict")
)

// Classify folds an arbitrary error into the taxonomy. Context errors and
// gRPC status codes are recognized; anything else counts as transport failure.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrCancelled) ||
		errors.Is(err, ErrTransport) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.DeadlineExceeded:
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		case codes.Canceled:
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		case codes.InvalidArgument:
			return fmt.Errorf("%w: %w", ErrValidation, err)
		case codes.Aborted, codes.FailedPrecondition, codes.AlreadyExists:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// IsCancelled reports whether err represents a superseded or cancelled call.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// IsTimeout reports whether err represents an exceeded deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
