package manifest

import (
	"context"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/fsum"
	"github.com/hupe1980/fsum/source"
)

func testEntries() []Entry {
	return []Entry{
		{Name: "archive.part1", Size: 1 << 20, CRC32: 0xDEADBEEF, HasCRC: true, Hash: make([]byte, 32), Threads: 4},
		{Name: "archive.part2", Size: 42, CRC32: 0x01020304, HasCRC: true, Threads: 1},
		{Name: "", Size: 0, Hash: make([]byte, 32), Threads: 1},
	}
}

func TestManifestRoundtrip(t *testing.T) {
	for name, compression := range map[string]Compression{
		"none": CompressionNone,
		"lz4":  CompressionLZ4,
		"zstd": CompressionZSTD,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "checksums.fsm")

			w, err := Create(path, func(o *Options) {
				o.Compression = compression
			})
			require.NoError(t, err)
			for _, e := range testEntries() {
				require.NoError(t, w.Append(e))
			}
			require.NoError(t, w.Close())

			r, err := Open(path)
			require.NoError(t, err)
			defer r.Close()

			var got []Entry
			for {
				e, err := r.Read()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				got = append(got, e)
			}
			require.Equal(t, testEntries(), got)
		})
	}
}

func TestManifestRejectsCorruptHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checksums.fsm")
	require.NoError(t, os.WriteFile(path, []byte("not a manifest at all"), 0600))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestManifestRejectsCorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checksums.fsm")

	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(Entry{Name: "x", Size: 1, CRC32: 2, HasCRC: true, Threads: 1}))
	require.NoError(t, w.Close())

	// Flip one payload byte past the header and record frame.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0600))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Read()
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestAppendRejectsDigestlessEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checksums.fsm")

	w, err := Create(path)
	require.NoError(t, err)
	defer w.Close()

	err = w.Append(Entry{Name: "x", Size: 1, Threads: 1})
	require.Error(t, err)
}

func writeRandomFile(t *testing.T, dir, name string, size int) []byte {
	t.Helper()
	buf := make([]byte, size)
	rand.New(rand.NewSource(int64(size))).Read(buf)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf, 0600))
	return buf
}

func record(t *testing.T, w *Writer, dir, name string, threads int) {
	t.Helper()
	d, err := fsum.SumFile(context.Background(), filepath.Join(dir, name), func(o *fsum.Options) {
		o.Threads = threads
		o.MinChunkSize = 4096
	})
	require.NoError(t, err)
	require.Equal(t, fsum.StatusComplete, d.Status)
	require.NoError(t, w.Append(Entry{
		Name:    name,
		Size:    d.BytesProcessed,
		CRC32:   d.CRC32,
		HasCRC:  true,
		Hash:    d.Hash,
		Threads: d.Workers,
	}))
}

func dirOpener(t *testing.T, dir string) OpenSourceFunc {
	t.Helper()
	return func(name string) (source.Source, error) {
		return source.Open(filepath.Join(dir, name))
	}
}

func TestVerifyCleanManifest(t *testing.T) {
	dir := t.TempDir()
	writeRandomFile(t, dir, "a.bin", 300000)
	writeRandomFile(t, dir, "b.bin", 1000)

	path := filepath.Join(dir, "checksums.fsm")
	w, err := Create(path)
	require.NoError(t, err)
	record(t, w, dir, "a.bin", 4)
	record(t, w, dir, "b.bin", 1)
	require.NoError(t, w.Close())

	mismatches, err := Verify(context.Background(), path, dirOpener(t, dir))
	require.NoError(t, err)
	require.Empty(t, mismatches)
}

func TestVerifyHashOnlyEntry(t *testing.T) {
	// A run recorded without the CRC32 output must verify against its
	// hash alone, not against a checksum that was never computed.
	dir := t.TempDir()
	writeRandomFile(t, dir, "a.bin", 100000)

	path := filepath.Join(dir, "checksums.fsm")
	w, err := Create(path)
	require.NoError(t, err)

	d, err := fsum.SumFile(context.Background(), filepath.Join(dir, "a.bin"), func(o *fsum.Options) {
		o.CRC32 = false
		o.Threads = 2
		o.MinChunkSize = 4096
	})
	require.NoError(t, err)
	require.NoError(t, w.Append(Entry{
		Name:    "a.bin",
		Size:    d.BytesProcessed,
		Hash:    d.Hash,
		Threads: d.Workers,
	}))
	require.NoError(t, w.Close())

	mismatches, err := Verify(context.Background(), path, dirOpener(t, dir))
	require.NoError(t, err)
	require.Empty(t, mismatches)
}

func TestVerifyDetectsContentChange(t *testing.T) {
	dir := t.TempDir()
	data := writeRandomFile(t, dir, "a.bin", 100000)

	path := filepath.Join(dir, "checksums.fsm")
	w, err := Create(path)
	require.NoError(t, err)
	record(t, w, dir, "a.bin", 2)
	require.NoError(t, w.Close())

	// Same size, different content.
	data[500] ^= 0xFF
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), data, 0600))

	mismatches, err := Verify(context.Background(), path, dirOpener(t, dir))
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	require.Equal(t, "a.bin", mismatches[0].Name)
	require.Contains(t, mismatches[0].Reason, "crc32 mismatch")
}

func TestVerifyDetectsSizeChange(t *testing.T) {
	dir := t.TempDir()
	writeRandomFile(t, dir, "a.bin", 100000)

	path := filepath.Join(dir, "checksums.fsm")
	w, err := Create(path)
	require.NoError(t, err)
	record(t, w, dir, "a.bin", 1)
	require.NoError(t, w.Close())

	require.NoError(t, os.Truncate(filepath.Join(dir, "a.bin"), 50000))

	mismatches, err := Verify(context.Background(), path, dirOpener(t, dir))
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	require.Contains(t, mismatches[0].Reason, "size mismatch")
}

func TestVerifyReportsMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeRandomFile(t, dir, "a.bin", 1000)

	path := filepath.Join(dir, "checksums.fsm")
	w, err := Create(path)
	require.NoError(t, err)
	record(t, w, dir, "a.bin", 1)
	require.NoError(t, w.Close())

	require.NoError(t, os.Remove(filepath.Join(dir, "a.bin")))

	mismatches, err := Verify(context.Background(), path, dirOpener(t, dir))
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	require.Equal(t, "missing", mismatches[0].Reason)
}

func TestVerifyCancelled(t *testing.T) {
	dir := t.TempDir()
	writeRandomFile(t, dir, "a.bin", 1000)

	path := filepath.Join(dir, "checksums.fsm")
	w, err := Create(path)
	require.NoError(t, err)
	record(t, w, dir, "a.bin", 1)
	require.NoError(t, w.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Verify(ctx, path, dirOpener(t, dir))
	require.ErrorIs(t, err, context.Canceled)
}
