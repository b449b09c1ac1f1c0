// Package crc32x provides the CRC32 primitives for chunked digesting:
// a shared IEEE table for per-chunk updates and the GF(2) algebra that
// merges independently computed chunk CRCs into the CRC of the
// concatenation.
//
// # Combination
//
// A CRC32 is a linear function over GF(2), so appending n zero bits to
// a message transforms its CRC by a fixed 32x32 bit matrix raised to
// the n-th power. For two adjacent chunks A and B this gives
//
//	crc(A||B) = Shift(crc(A), 8*len(B)) XOR crc(B)
//
// which is the identity zlib's crc32_combine is built on. Shift
// decomposes n into powers of two and applies one precomputed matrix
// per set bit, so a combine costs O(log n) matrix-vector products and
// no allocation.
//
// The power table is a pure function of the fixed polynomial. It is
// built once on first use and is read-only afterwards, safe to share
// across any number of concurrent digests.
package crc32x

import (
	"sync"

	"github.com/klauspost/crc32"
)

// Table is the reflected IEEE CRC32 table (polynomial 0xEDB88320)
// shared by all chunk hashers. Hoisted to a package variable so
// MakeTable runs once.
var Table = crc32.MakeTable(crc32.IEEE)

// Update returns the CRC32 of the bytes seen so far extended by p.
// An initial crc of 0 corresponds to the empty message.
func Update(crc uint32, p []byte) uint32 {
	return crc32.Update(crc, Table, p)
}

// Checksum returns the CRC32 of p.
func Checksum(p []byte) uint32 {
	return crc32.Checksum(p, Table)
}

// matrix is a 32x32 bit matrix over GF(2). Row i holds the image of
// the i-th basis vector.
type matrix [32]uint32

// times multiplies the matrix by a column vector.
func (m *matrix) times(vec uint32) uint32 {
	var sum uint32
	for i := 0; vec != 0; i, vec = i+1, vec>>1 {
		if vec&1 != 0 {
			sum ^= m[i]
		}
	}
	return sum
}

// squareOf stores src*src into m. m and src must not alias.
func (m *matrix) squareOf(src *matrix) {
	for n := range m {
		m[n] = src.times(src[n])
	}
}

// zeroOps yields the zero-bit operators: zeroOps()[k] advances a CRC
// across 2^k zero bits. Index 63 is enough for any int64 bit count.
var zeroOps = sync.OnceValue(buildZeroOps)

func buildZeroOps() *[64]matrix {
	var ops [64]matrix

	// Operator for a single zero bit of a reflected CRC: the low bit
	// selects the polynomial, every other bit shifts down one place.
	ops[0][0] = crc32.IEEE
	for n, row := 1, uint32(1); n < 32; n++ {
		ops[0][n] = row
		row <<= 1
	}

	for k := 1; k < len(ops); k++ {
		ops[k].squareOf(&ops[k-1])
	}
	return &ops
}

// Shift advances crc across n zero bits. Shift(crc, 0) == crc.
func Shift(crc uint32, n int64) uint32 {
	ops := zeroOps()
	for k := 0; n != 0; k, n = k+1, n>>1 {
		if n&1 != 0 {
			crc = ops[k].times(crc)
		}
	}
	return crc
}

// Combine returns the CRC32 of the concatenation of two byte
// sequences given crc1 of the first, crc2 of the second and the
// second's length in bytes. Both inputs and the result are plain
// finalized CRC32 values as produced by Update starting from 0.
func Combine(crc1, crc2 uint32, len2 int64) uint32 {
	if len2 <= 0 {
		return crc1
	}
	return Shift(crc1, 8*len2) ^ crc2
}
