package fsum

import (
	"errors"
	"fmt"
)

var (
	// ErrNoOutput is returned when neither the CRC32 nor the hash
	// output is requested.
	ErrNoOutput = errors.New("at least one of the CRC32 and hash outputs must be enabled")

	// ErrInvalidThreads is returned when the requested thread count
	// is not positive.
	ErrInvalidThreads = errors.New("thread count must be positive")

	// ErrNegativeOffset is returned when the starting offset is
	// negative.
	ErrNegativeOffset = errors.New("starting offset must not be negative")

	// ErrRangeBeyondEOF is returned when an explicit length reaches
	// past the end of the source at planning time. A source that
	// shrinks after planning surfaces as StatusIncomplete instead.
	ErrRangeBeyondEOF = errors.New("requested range extends past the end of the source")
)

// ReadError reports a failed positioned read at a specific offset.
//
// The underlying error can be accessed via errors.Unwrap.
type ReadError struct {
	Offset int64
	cause  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read failed at offset %d: %v", e.Offset, e.cause)
}

func (e *ReadError) Unwrap() error { return e.cause }
