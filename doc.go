// Package fsum computes file content digests (CRC32 and BLAKE3) for
// archive integrity verification, optionally spreading the work over
// multiple goroutines while producing a CRC32 bit-identical to a
// sequential pass.
//
// # Overview
//
// A digest run partitions the requested byte span into contiguous
// ranges, one per worker. Each worker reads its range through
// positioned reads (no shared cursor), maintaining a running CRC32
// and a BLAKE3 leaf state. After all workers join, the partial CRCs
// are merged with GF(2) polynomial arithmetic into the exact CRC32 of
// the whole span, and the leaves are folded into a single digest.
//
// With one worker the hash is a plain sequential BLAKE3. With more
// workers it is a single-level tree hash whose leaves are bound to
// their offset and length; the parallel digest is deterministic for a
// given worker count but intentionally distinct from the sequential
// one. The CRC32 is identical in every mode.
//
// # Usage
//
//	src, err := source.Open("archive.part1")
//	if err != nil { ... }
//	defer src.Close()
//
//	d, err := fsum.Sum(ctx, src, func(o *fsum.Options) {
//		o.Threads = 4
//	})
//	if err != nil { ... }
//	if d.Status != fsum.StatusComplete { ... }
//
// Cancellation goes through the context and is observed by every
// worker at each buffer boundary. Progress reporting is opt-in via
// [Options.Progress].
package fsum
