package chunk

import (
	"context"
	"encoding/binary"
	"errors"
	"io"

	"github.com/zeebo/blake3"

	"github.com/hupe1980/fsum/internal/crc32x"
)

// Domain separation keys for the parallel hash mode. These are fixed
// constants; changing them invalidates every previously recorded
// parallel-mode digest. The byte values are the ASCII name of the
// domain, zero-padded to the 32 bytes BLAKE3 keyed mode requires, so
// the keys stay readable in hex dumps.
var (
	leafKey = [32]byte{
		'f', 's', 'u', 'm', '.', 'c', 'h', 'u', 'n', 'k', '.', 'l', 'e', 'a', 'f',
	}

	rootKey = [32]byte{
		'f', 's', 'u', 'm', '.', 'c', 'h', 'u', 'n', 'k', '.', 'r', 'o', 'o', 't',
	}
)

// HashSize is the size of all digests produced by this package.
const HashSize = 32

// Result carries what one worker computed over its range. Results are
// valid even when the worker stopped early: BytesRead then reports how
// far it got, and CRC/Leaf cover exactly those bytes.
type Result struct {
	Index int

	// CRC is the finalized CRC32 over the bytes read in this range,
	// as if they were a complete message on their own.
	CRC uint32

	// Leaf is the BLAKE3 digest of this range. In sequential mode it
	// is a plain unkeyed hash of the content; in parallel mode it is
	// keyed and bound to the range's absolute offset and declared
	// length, so identical content at different positions yields
	// different leaves.
	Leaf [HashSize]byte

	// BytesRead is the number of bytes actually consumed. Less than
	// the range length after a short read, an I/O error or
	// cancellation.
	BytesRead int64

	// Err is the read error or context error that stopped the worker,
	// nil on success and on plain end-of-source truncation.
	Err error

	// ErrOffset is the absolute offset at which Err occurred.
	ErrOffset int64
}

// Config controls a single Run.
type Config struct {
	// BufferSize is the size of the read buffer. Cancellation and
	// progress latency are bounded by one buffer iteration.
	BufferSize int

	// CRC and Hash select which digests to maintain.
	CRC  bool
	Hash bool

	// Sequential marks a single-worker run: the leaf is then a plain
	// unkeyed hash with no offset/length framing, bit-identical to a
	// one-pass BLAKE3 of the same bytes.
	Sequential bool

	// Report, if non-nil, is invoked after every buffer iteration
	// with the cumulative bytes read in this range.
	Report func(done int64)
}

// Run digests one range of src. Reads are positioned (ReadAt), so
// concurrent Runs over disjoint ranges of the same source never share
// a cursor. The context is polled at every buffer boundary.
func Run(ctx context.Context, src io.ReaderAt, rng Range, cfg Config) Result {
	res := Result{Index: rng.Index}

	var leaf *blake3.Hasher
	if cfg.Hash {
		if cfg.Sequential {
			leaf = blake3.New()
		} else {
			var err error
			leaf, err = blake3.NewKeyed(leafKey[:])
			if err != nil {
				// NewKeyed fails only on a key of the wrong length,
				// which the fixed-size array rules out.
				panic("chunk: BLAKE3 keyed hasher: " + err.Error())
			}
			var hdr [16]byte
			binary.LittleEndian.PutUint64(hdr[:8], uint64(rng.Offset))
			binary.LittleEndian.PutUint64(hdr[8:], uint64(rng.Length))
			leaf.Write(hdr[:])
		}
	}

	buf := make([]byte, cfg.BufferSize)
	off := rng.Offset
	remaining := rng.Length

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			res.Err = err
			res.ErrOffset = off
			break
		}

		want := len(buf)
		if int64(want) > remaining {
			want = int(remaining)
		}

		n, err := src.ReadAt(buf[:want], off)
		if n > 0 {
			if cfg.CRC {
				res.CRC = crc32x.Update(res.CRC, buf[:n])
			}
			if leaf != nil {
				leaf.Write(buf[:n])
			}
			off += int64(n)
			remaining -= int64(n)
			res.BytesRead += int64(n)
		}
		if cfg.Report != nil {
			cfg.Report(res.BytesRead)
		}
		if err != nil {
			// A short source (EOF before the declared length) is not
			// a worker error; the caller sees it through BytesRead.
			if !errors.Is(err, io.EOF) {
				res.Err = err
				res.ErrOffset = off
			}
			break
		}
		if n == 0 {
			break
		}
	}

	if leaf != nil {
		leaf.Sum(res.Leaf[:0])
	}
	return res
}

// RootSum finalizes a parallel-mode digest from the ordered leaf
// digests: a keyed hash over the concatenated leaves followed by the
// total byte count and the leaf count. Single-level tree, computed
// after all workers have joined.
func RootSum(leaves [][HashSize]byte, totalBytes int64) [HashSize]byte {
	root, err := blake3.NewKeyed(rootKey[:])
	if err != nil {
		panic("chunk: BLAKE3 keyed hasher: " + err.Error())
	}
	for i := range leaves {
		root.Write(leaves[i][:])
	}
	var tail [16]byte
	binary.LittleEndian.PutUint64(tail[:8], uint64(totalBytes))
	binary.LittleEndian.PutUint64(tail[8:], uint64(len(leaves)))
	root.Write(tail[:])

	var sum [HashSize]byte
	root.Sum(sum[:0])
	return sum
}
