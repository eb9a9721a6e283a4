package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// FailureKind classifies a pipeline failure by the state change it demands.
type FailureKind int

const (
	// FailureTransient: object-store/disk trouble, a vendor timeout, or a
	// run interrupted by shutdown. No status change; the recording stays
	// READY and is retried next cycle.
	FailureTransient FailureKind = iota
	// FailureTranscode: the external encoder exited non-zero. Terminal,
	// recording moves to CONVERT_ERROR.
	FailureTranscode
	// FailureTranscription: vendor error, empty segment list, or an
	// unrecognized response shape. Terminal, recording moves to STT_ERROR.
	FailureTranscription
	// FailurePersistence: the transcript batch write rolled back. Nothing
	// was persisted and status is unchanged, so the run is retried.
	FailurePersistence
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailureTranscode:
		return "transcode"
	case FailureTranscription:
		return "transcription"
	case FailurePersistence:
		return "persistence"
	}
	return "unknown"
}

// Error is a pipeline failure tagged with its kind.
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func failure(kind FailureKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// isCanceled reports whether err stems from the run's context being
// canceled, e.g. worker shutdown killing the encoder or an in-flight vendor
// call. An interrupted run proves nothing about the recording.
func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

// isTimeout reports whether err stems from a bounded-deadline expiry rather
// than a definite remote failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return os.IsTimeout(err)
}
