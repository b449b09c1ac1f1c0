package fsum

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/fsum/internal/chunk"
	"github.com/hupe1980/fsum/internal/crc32x"
	"github.com/hupe1980/fsum/source"
)

// Status classifies the outcome of a digest run.
type Status int

const (
	// StatusComplete means every requested byte was read and the
	// digest covers the full span.
	StatusComplete Status = iota

	// StatusIncomplete means the source ended before the requested
	// length; the digest covers only the bytes that were read.
	StatusIncomplete

	// StatusCancelled means the context was cancelled before
	// completion; no digest values are surfaced.
	StatusCancelled

	// StatusFailed means a read failed; FailedOffset names where.
	StatusFailed
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusIncomplete:
		return "incomplete"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// HashSize is the size in bytes of the hash digest.
const HashSize = chunk.HashSize

// Digest is the result of one digest run. The caller owns it; nothing
// inside fsum retains state across calls.
type Digest struct {
	// CRC32 is the checksum of the processed bytes. For every status
	// except StatusCancelled it covers exactly BytesProcessed bytes
	// and, when the run is complete, is bit-identical to a sequential
	// CRC32 of the span regardless of thread count.
	CRC32 uint32

	// Hash is the BLAKE3 digest (HashSize bytes), nil when the hash
	// output was not requested or the run was cancelled. Sequential
	// mode (one worker) matches a plain BLAKE3 of the same bytes;
	// parallel mode is a deterministic tree digest, distinct per
	// worker count.
	Hash []byte

	// BytesProcessed is the number of bytes actually digested.
	BytesProcessed int64

	// Workers is the effective worker count after the planner reduced
	// the requested thread count. The parallel-mode hash is a function
	// of this value; record it alongside the digest when the hash is
	// to be verified later.
	Workers int

	// Status classifies the outcome.
	Status Status

	// FailedOffset is the absolute offset of the first defect: the
	// failing read for StatusFailed, the end of available data for
	// StatusIncomplete. Zero otherwise.
	FailedOffset int64
}

// Sum digests a span of src according to the options. See Options for
// the knobs; by default the whole source is digested sequentially and
// both outputs are produced.
//
// The returned error is non-nil for invalid requests, read failures
// (StatusFailed) and cancellation (StatusCancelled). A short source
// is not an error: it returns StatusIncomplete with the partial
// digest, and the caller decides whether that is acceptable.
func Sum(ctx context.Context, src source.Source, optFns ...func(o *Options)) (Digest, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if !opts.CRC32 && !opts.Hash {
		return Digest{}, ErrNoOutput
	}
	if opts.Threads < 1 {
		return Digest{}, ErrInvalidThreads
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions.BufferSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = NoopLogger()
	}
	reporter := opts.Progress
	if reporter == nil {
		reporter = NoopReporter{}
	}

	offset := opts.Offset
	if opts.FromCurrent {
		if seeker, ok := src.(io.Seeker); ok {
			pos, err := seeker.Seek(0, io.SeekCurrent)
			if err != nil {
				return Digest{}, err
			}
			offset = pos
		}
	}
	if offset < 0 {
		return Digest{}, ErrNegativeOffset
	}

	size := src.Size()
	length := opts.Length
	if length == RestOfStream {
		length = size - offset
		if length < 0 {
			length = 0
		}
	} else if length < 0 || offset+length > size {
		return Digest{}, ErrRangeBeyondEOF
	}

	ranges := chunk.Plan(offset, length, opts.Threads, opts.MinChunkSize)
	sequential := len(ranges) == 1

	cfg := func(rng chunk.Range) chunk.Config {
		return chunk.Config{
			BufferSize: opts.BufferSize,
			CRC:        opts.CRC32,
			Hash:       opts.Hash,
			Sequential: sequential,
			Report: func(done int64) {
				reporter.Report(rng.Index, done, length)
			},
		}
	}

	results := make([]chunk.Result, len(ranges))
	if sequential {
		// Degenerate single-range case: same code path, no goroutines.
		results[0] = chunk.Run(ctx, src, ranges[0], cfg(ranges[0]))
	} else {
		var g errgroup.Group
		for _, rng := range ranges {
			rng := rng
			g.Go(func() error {
				// A failing worker must not abort its siblings; status
				// aggregation happens after the join.
				results[rng.Index] = chunk.Run(ctx, src, rng, cfg(rng))
				return nil
			})
		}
		// Strict barrier: combination must not start before every
		// worker has returned its result.
		_ = g.Wait()
	}

	d, err := combine(ranges, results, opts)
	logger.WithThreads(len(ranges)).WithBytes(d.BytesProcessed).LogDigest(ctx, d.Status, err)
	return d, err
}

// SumFile opens the named file, digests it and closes it again.
func SumFile(ctx context.Context, name string, optFns ...func(o *Options)) (Digest, error) {
	src, err := source.Open(name)
	if err != nil {
		return Digest{}, err
	}
	defer src.Close()
	return Sum(ctx, src, optFns...)
}

// combine folds the per-range results into the final digest and
// classifies the outcome. Runs single-threaded after the worker join;
// fold order is ascending range offset, never completion order.
func combine(ranges []chunk.Range, results []chunk.Result, opts Options) (Digest, error) {
	d := Digest{Status: StatusComplete, Workers: len(ranges)}

	// Cancellation outranks every other defect regardless of offset:
	// an earlier range may have ended short or failed before a later
	// worker observed the cancelled context, and the run must still
	// withhold its partial values.
	var firstErr error
	for i := range results {
		r := &results[i]
		d.BytesProcessed += r.BytesRead
		if r.Err != nil && (errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded)) && d.Status != StatusCancelled {
			d.Status = StatusCancelled
			firstErr = r.Err
		}
	}
	if d.Status == StatusCancelled {
		// Partial values must never leak out of a cancelled run.
		return d, fmt.Errorf("digest cancelled: %w", firstErr)
	}

	// The first remaining defect in ascending offset order classifies
	// the run.
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			d.Status = StatusFailed
			d.FailedOffset = r.ErrOffset
			firstErr = &ReadError{Offset: r.ErrOffset, cause: r.Err}
			break
		}
		if r.BytesRead < ranges[i].Length {
			d.Status = StatusIncomplete
			d.FailedOffset = ranges[i].Offset + r.BytesRead
			break
		}
	}

	if opts.CRC32 {
		var acc uint32
		for i := range results {
			acc = crc32x.Combine(acc, results[i].CRC, results[i].BytesRead)
		}
		d.CRC32 = acc
	}
	if opts.Hash {
		if len(results) == 1 {
			d.Hash = results[0].Leaf[:]
		} else {
			leaves := make([][chunk.HashSize]byte, len(results))
			for i := range results {
				leaves[i] = results[i].Leaf
			}
			root := chunk.RootSum(leaves, d.BytesProcessed)
			d.Hash = root[:]
		}
	}

	return d, firstErr
}
