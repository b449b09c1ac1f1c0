// Package source defines the input abstraction consumed by fsum: a
// positioned-read view of a byte stream with a known length. Sources
// never expose a shared cursor, so any number of workers can read
// disjoint ranges of one source concurrently.
//
// Implementations:
//
//   - [Bytes]: in-memory source, mainly for tests and small buffers
//   - [File]: local file source built on os.File positioned reads
//   - source/minio: MinIO and S3-compatible object storage
//   - source/s3: AWS S3 via the AWS SDK v2
package source

import (
	"bytes"
	"io"
	"os"
)

// ErrNotFound is returned when a named source does not exist.
//
// Implementations should return an error that satisfies
// errors.Is(err, ErrNotFound). The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Source is a positioned-read view of a byte stream.
type Source interface {
	io.ReaderAt
	// Size returns the total length of the source in bytes.
	Size() int64
}

// Bytes returns an in-memory Source backed by b. The caller must not
// mutate b while the source is in use.
func Bytes(b []byte) Source {
	return &bytesSource{r: bytes.NewReader(b), size: int64(len(b))}
}

type bytesSource struct {
	r    *bytes.Reader
	size int64
}

func (s *bytesSource) ReadAt(p []byte, off int64) (int, error) {
	return s.r.ReadAt(p, off)
}

func (s *bytesSource) Size() int64 { return s.size }
