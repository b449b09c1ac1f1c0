// Package manifest records and verifies file digests for archive
// integrity checks.
//
// A manifest is an append-only sidecar file of per-entry records
// {name, size, crc32, blake3, threads}; either digest may be absent
// when the run recorded only the other. The threads field matters:
// parallel-mode hash digests depend on the worker count used at
// record time, so Verify re-digests with the same count. Records are
// length-prefixed and individually CRC-protected; the whole record
// stream can optionally be zstd- or lz4-compressed.
package manifest

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/fsum/internal/crc32x"
)

// Compression selects the codec for the manifest record stream.
type Compression uint8

const (
	// CompressionNone stores records uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 compresses the record stream with LZ4 (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD compresses the record stream with zstd
	// (better ratio).
	CompressionZSTD Compression = 2
)

var (
	manifestMagic   = [4]byte{'F', 'S', 'M', '0'}
	manifestVersion = uint16(1)
)

// ErrCorrupt is returned when a manifest header or record fails its
// integrity check.
var ErrCorrupt = errors.New("manifest corrupt")

// Entry is one recorded digest.
type Entry struct {
	// Name identifies the digested file; the caller chooses the
	// naming scheme (manifest does no path traversal of its own).
	Name string

	// Size is the byte count the digest covers.
	Size int64

	// CRC32 is the recorded checksum, meaningful only when HasCRC is
	// set.
	CRC32 uint32

	// HasCRC marks whether a checksum was recorded. Zero is a valid
	// CRC32, so absence needs an explicit flag; a hash-only run leaves
	// it false.
	HasCRC bool

	// Hash is the recorded BLAKE3 digest; empty when only the CRC
	// was recorded.
	Hash []byte

	// Threads is the effective worker count the digest was computed
	// with (Digest.Workers). Parallel-mode hashes are only comparable
	// at the same count.
	Threads int
}

// Options contains configuration for manifest creation.
type Options struct {
	// Compression selects the record stream codec.
	Compression Compression
}

// DefaultOptions holds the defaults applied by Create.
var DefaultOptions = Options{
	Compression: CompressionNone,
}

// Writer appends digest records to a manifest file.
type Writer struct {
	f   *os.File
	bw  *bufio.Writer
	zw  *zstd.Encoder
	lw  *lz4.Writer
	w   io.Writer
	err error
}

// Create creates (or truncates) a manifest at path.
func Create(path string, optFns ...func(o *Options)) (*Writer, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600) //nolint:gosec // G304: path is caller-provided by design
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest: %w", err)
	}

	if err := writeHeader(f, opts.Compression); err != nil {
		_ = f.Close()
		return nil, err
	}

	w := &Writer{f: f}
	switch opts.Compression {
	case CompressionZSTD:
		zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create compressor: %w", err)
		}
		w.zw = zw
		w.bw = bufio.NewWriter(zw)
	case CompressionLZ4:
		w.lw = lz4.NewWriter(f)
		w.bw = bufio.NewWriter(w.lw)
	case CompressionNone:
		w.bw = bufio.NewWriter(f)
	default:
		_ = f.Close()
		return nil, fmt.Errorf("unsupported manifest compression: %d", opts.Compression)
	}
	w.w = w.bw
	return w, nil
}

// Append writes one record. Records become durable at Close.
func (w *Writer) Append(e Entry) error {
	if w.err != nil {
		return w.err
	}
	payload, err := encodeEntry(e)
	if err != nil {
		return err
	}

	var frame [8]byte
	binary.LittleEndian.PutUint32(frame[:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(frame[4:], crc32x.Checksum(payload))
	if _, err := w.w.Write(frame[:]); err != nil {
		w.err = err
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		w.err = err
		return err
	}
	return nil
}

// Close flushes, syncs and closes the manifest.
func (w *Writer) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(w.bw.Flush())
	if w.zw != nil {
		record(w.zw.Close())
	}
	if w.lw != nil {
		record(w.lw.Close())
	}
	record(w.f.Sync())
	record(w.f.Close())
	return firstErr
}

// Reader iterates the records of a manifest file.
type Reader struct {
	f  *os.File
	zr *zstd.Decoder
	r  io.Reader
}

// Open opens a manifest for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is caller-provided by design
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	compression, err := readHeader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r := &Reader{f: f}
	switch compression {
	case CompressionZSTD:
		zr, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create decompressor: %w", err)
		}
		r.zr = zr
		r.r = zr
	case CompressionLZ4:
		r.r = lz4.NewReader(f)
	case CompressionNone:
		r.r = bufio.NewReader(f)
	default:
		_ = f.Close()
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, compression)
	}
	return r, nil
}

// Read returns the next record, or io.EOF after the last one.
func (r *Reader) Read() (Entry, error) {
	var frame [8]byte
	if _, err := io.ReadFull(r.r, frame[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, fmt.Errorf("%w: truncated record frame: %v", ErrCorrupt, err)
	}

	size := binary.LittleEndian.Uint32(frame[:4])
	sum := binary.LittleEndian.Uint32(frame[4:])

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Entry{}, fmt.Errorf("%w: truncated record payload: %v", ErrCorrupt, err)
	}
	if crc32x.Checksum(payload) != sum {
		return Entry{}, fmt.Errorf("%w: record checksum mismatch", ErrCorrupt)
	}
	return decodeEntry(payload)
}

// Close closes the manifest.
func (r *Reader) Close() error {
	if r.zr != nil {
		r.zr.Close()
	}
	return r.f.Close()
}

func writeHeader(w io.Writer, compression Compression) error {
	var buf [12]byte
	copy(buf[:4], manifestMagic[:])
	binary.LittleEndian.PutUint16(buf[4:6], manifestVersion)
	buf[6] = byte(compression)
	// buf[7] reserved
	binary.LittleEndian.PutUint32(buf[8:], crc32x.Checksum(buf[:8]))

	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("failed to write manifest header: %w", err)
	}
	return nil
}

func readHeader(r io.Reader) (Compression, error) {
	var buf [12]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}
	if [4]byte(buf[:4]) != manifestMagic {
		return 0, fmt.Errorf("%w: invalid header magic", ErrCorrupt)
	}
	if crc32x.Checksum(buf[:8]) != binary.LittleEndian.Uint32(buf[8:]) {
		return 0, fmt.Errorf("%w: header checksum mismatch", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint16(buf[4:6]); v != manifestVersion {
		return 0, fmt.Errorf("unsupported manifest version: %d", v)
	}
	return Compression(buf[6]), nil
}

// Flag bits of the per-entry flags byte.
const flagHasCRC = 1 << 0

// encodeEntry writes an entry in binary format.
// Format: [NameLen:2][Name:N][Size:8][Flags:1][CRC32:4][HashLen:1][Hash:N][Threads:2]
func encodeEntry(e Entry) ([]byte, error) {
	if len(e.Name) > int(^uint16(0)) {
		return nil, fmt.Errorf("entry name too long: %d bytes", len(e.Name))
	}
	if len(e.Hash) > int(^uint8(0)) {
		return nil, fmt.Errorf("entry hash too long: %d bytes", len(e.Hash))
	}
	if e.Threads < 0 || e.Threads > int(^uint16(0)) {
		return nil, fmt.Errorf("entry thread count out of range: %d", e.Threads)
	}
	if !e.HasCRC && len(e.Hash) == 0 {
		return nil, fmt.Errorf("entry %q records no digest", e.Name)
	}

	var flags byte
	var crc uint32
	if e.HasCRC {
		flags |= flagHasCRC
		crc = e.CRC32
	}

	buf := make([]byte, 0, 2+len(e.Name)+8+1+4+1+len(e.Hash)+2)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(e.Name)))
	buf = append(buf, e.Name...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.Size))
	buf = append(buf, flags)
	buf = binary.LittleEndian.AppendUint32(buf, crc)
	buf = append(buf, byte(len(e.Hash)))
	buf = append(buf, e.Hash...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(e.Threads))
	return buf, nil
}

// decodeEntry reads an entry in binary format.
func decodeEntry(buf []byte) (Entry, error) {
	var e Entry
	fail := func() (Entry, error) {
		return Entry{}, fmt.Errorf("%w: malformed record", ErrCorrupt)
	}

	if len(buf) < 2 {
		return fail()
	}
	nameLen := int(binary.LittleEndian.Uint16(buf))
	buf = buf[2:]
	if len(buf) < nameLen+8+1+4+1 {
		return fail()
	}
	e.Name = string(buf[:nameLen])
	buf = buf[nameLen:]

	e.Size = int64(binary.LittleEndian.Uint64(buf))
	buf = buf[8:]
	e.HasCRC = buf[0]&flagHasCRC != 0
	buf = buf[1:]
	e.CRC32 = binary.LittleEndian.Uint32(buf)
	buf = buf[4:]

	hashLen := int(buf[0])
	buf = buf[1:]
	if len(buf) != hashLen+2 {
		return fail()
	}
	if hashLen > 0 {
		e.Hash = append([]byte(nil), buf[:hashLen]...)
	}
	buf = buf[hashLen:]
	e.Threads = int(binary.LittleEndian.Uint16(buf))

	return e, nil
}
