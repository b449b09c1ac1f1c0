// Package chunk plans and digests the per-worker ranges of a chunked
// checksum run. A Range is one contiguous slice of the span being
// digested; Run reads a single range through positioned reads and
// produces its partial CRC32 and BLAKE3 leaf digest.
package chunk

// Range is one contiguous, disjoint slice of the byte span being
// digested, assigned to exactly one worker.
type Range struct {
	// Index is the ordinal of the range, 0..N-1 in ascending offset
	// order. Combination folds results in this order.
	Index int

	// Offset is the absolute start of the range within the source.
	Offset int64

	// Length is the number of bytes the range covers.
	Length int64
}

// Plan splits length bytes starting at offset into at most threads
// contiguous ranges. Ranges shorter than minChunk are never produced
// (except for the single empty range of a zero-length span), so tiny
// inputs collapse to fewer workers. A non-positive minChunk behaves as
// one byte; no range of a non-empty span is ever empty. The remainder
// of an uneven split goes to the trailing ranges, one extra byte each.
//
// The partition is a pure function of its arguments: identical inputs
// always yield the identical plan.
func Plan(offset, length int64, threads int, minChunk int64) []Range {
	if length <= 0 {
		return []Range{{Index: 0, Offset: offset, Length: 0}}
	}

	n := int64(threads)
	if n < 1 {
		n = 1
	}
	if minChunk < 1 {
		minChunk = 1
	}
	if length/minChunk < n {
		n = length / minChunk
		if n < 1 {
			n = 1
		}
	}

	base := length / n
	rem := length % n

	ranges := make([]Range, n)
	off := offset
	for i := int64(0); i < n; i++ {
		size := base
		if i >= n-rem {
			size++
		}
		ranges[i] = Range{Index: int(i), Offset: off, Length: size}
		off += size
	}
	return ranges
}
