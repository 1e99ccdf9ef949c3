package requests

import (
	"context"
	"errors"
	"time"
)

// DefaultTimeout bounds orchestrated calls that do not override it.
const DefaultTimeout = 10 * time.Second

// Status is the three-state outcome of an orchestrated call.
type Status int

const (
	// StatusOK means the call succeeded and its ticket was still current.
	StatusOK Status = iota
	// StatusFailed means the call failed with a user-visible error.
	StatusFailed
	// StatusCancelled means the call was superseded; its result must be ignored.
	StatusCancelled
)

// Result carries the outcome of Run. Value is meaningful only for StatusOK,
// Err only for StatusFailed.
type Result[T any] struct {
	Status Status
	Value  T
	Err    error
	Seq    uint64
}

// OK reports whether the result may be committed to shared state.
func (r Result[T]) OK() bool { return r.Status == StatusOK }

// Cancelled reports whether the result was superseded and must be dropped.
func (r Result[T]) Cancelled() bool { return r.Status == StatusCancelled }

// RunOptions tune a single orchestrated call.
type RunOptions struct {
	// Timeout caps the call; DefaultTimeout applies when zero.
	Timeout time.Duration
}

type outcome[T any] struct {
	value T
	err   error
}

// Run executes fn as the sole authoritative request for slot. It issues a
// ticket (cancelling any prior in-flight request on the slot), bounds fn with
// a hard deadline so the caller's loading state always resolves, and gates the
// success path on the ticket still being current. The deadline holds even for
// callees that never observe their context: fn runs on its own goroutine and
// Run resolves when the deadline fires, leaving the late result to be
// discarded by the currency check. Cancellation is never surfaced as an
// error; timeouts and transport failures are, classified per the package
// taxonomy. Committing the value into shared state is the caller's
// responsibility and must happen only for StatusOK.
func Run[T any](ctx context.Context, slots *Slots, slot string, opts RunOptions, fn func(context.Context) (T, error)) Result[T] {
	ticket, runCtx := slots.Begin(ctx, slot)
	defer slots.finish(ticket)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(runCtx, timeout)
	defer cancel()

	settled := make(chan outcome[T], 1)
	go func() {
		value, err := fn(callCtx)
		settled <- outcome[T]{value: value, err: err}
	}()

	var value T
	var err error
	select {
	case out := <-settled:
		value, err = out.value, out.err
	case <-callCtx.Done():
		err = callCtx.Err()
	}
	// Every outcome, including failure, commits only while the ticket is
	// current; a superseded call resolves Cancelled no matter how it ended.
	if !ticket.Current() {
		slots.discarded(ticket)
		return Result[T]{Status: StatusCancelled, Seq: ticket.Seq()}
	}
	if err != nil {
		// A deadline that fired before any supersede reports Failed so the
		// slot's loading state resolves even when the transport never answers.
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) || IsTimeout(err) {
			return Result[T]{Status: StatusFailed, Err: Classify(context.DeadlineExceeded), Seq: ticket.Seq()}
		}
		if runCtx.Err() != nil || IsCancelled(err) {
			slots.discarded(ticket)
			return Result[T]{Status: StatusCancelled, Seq: ticket.Seq()}
		}
		return Result[T]{Status: StatusFailed, Err: Classify(err), Seq: ticket.Seq()}
	}
	return Result[T]{Status: StatusOK, Value: value, Seq: ticket.Seq()}
}
