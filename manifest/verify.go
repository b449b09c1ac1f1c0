package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/fsum"
	"github.com/hupe1980/fsum/source"
)

// OpenSourceFunc resolves a recorded entry name to a readable source.
// Returning source.ErrNotFound marks the entry as missing rather than
// aborting the whole verification.
type OpenSourceFunc func(name string) (source.Source, error)

// Mismatch describes one entry that failed verification.
type Mismatch struct {
	Name   string
	Reason string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Reason)
}

// Verify re-digests every entry of the manifest at path and compares
// against the recorded values. Each entry is digested with the thread
// count it was recorded with, so parallel-mode hashes compare
// correctly. The context cancels the run between and within entries.
//
// The returned slice is empty when everything matched. A non-nil
// error means verification itself could not proceed (unreadable
// manifest, cancelled context); mismatches alone are not an error.
func Verify(ctx context.Context, path string, open OpenSourceFunc) ([]Mismatch, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var mismatches []Mismatch
	for {
		e, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		m, err := verifyEntry(ctx, e, open)
		if err != nil {
			return nil, err
		}
		if m != nil {
			mismatches = append(mismatches, *m)
		}
	}
	return mismatches, nil
}

func verifyEntry(ctx context.Context, e Entry, open OpenSourceFunc) (*Mismatch, error) {
	src, err := open(e.Name)
	if errors.Is(err, source.ErrNotFound) {
		return &Mismatch{Name: e.Name, Reason: "missing"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", e.Name, err)
	}
	if closer, ok := src.(io.Closer); ok {
		defer closer.Close()
	}

	if src.Size() != e.Size {
		return &Mismatch{Name: e.Name, Reason: fmt.Sprintf("size mismatch: want %d, have %d", e.Size, src.Size())}, nil
	}

	threads := e.Threads
	if threads < 1 {
		threads = 1
	}
	d, err := fsum.Sum(ctx, src, func(o *fsum.Options) {
		// Entries record the effective worker count; pinning the
		// minimum chunk size to one byte makes the planner reproduce
		// exactly that partition, so parallel-mode hashes compare
		// against the same tree shape they were recorded with.
		o.Threads = threads
		o.MinChunkSize = 1
		o.Length = e.Size
		o.CRC32 = e.HasCRC
		o.Hash = len(e.Hash) > 0
	})
	if err != nil {
		return nil, fmt.Errorf("failed to digest %q: %w", e.Name, err)
	}
	if d.Status != fsum.StatusComplete {
		return &Mismatch{Name: e.Name, Reason: fmt.Sprintf("digest %s at offset %d", d.Status, d.FailedOffset)}, nil
	}

	if e.HasCRC && d.CRC32 != e.CRC32 {
		return &Mismatch{Name: e.Name, Reason: fmt.Sprintf("crc32 mismatch: want %08x, got %08x", e.CRC32, d.CRC32)}, nil
	}
	if len(e.Hash) > 0 && !bytes.Equal(d.Hash, e.Hash) {
		return &Mismatch{Name: e.Name, Reason: "hash mismatch"}, nil
	}
	return nil, nil
}
