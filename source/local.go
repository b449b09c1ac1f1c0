package source

import (
	"os"
)

// File is a local-file Source. ReadAt maps to pread, so concurrent
// range reads do not disturb the file's seek cursor; Seek remains
// available for callers that digest from the current position.
type File struct {
	f    *os.File
	size int64
}

// Open opens the named file for digesting.
func Open(name string) (*File, error) {
	f, err := os.Open(name) //nolint:gosec // G304: path is caller-provided by design
	if err != nil {
		return nil, err
	}
	return NewFile(f)
}

// NewFile wraps an already-open file. The caller keeps ownership of f
// unless it closes the source through [File.Close]. The size is
// captured once at wrap time; a file that shrinks afterwards surfaces
// as an incomplete digest, not an error.
func NewFile(f *os.File) (*File, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &File{f: f, size: st.Size()}, nil
}

// ReadAt implements io.ReaderAt via positioned reads.
func (s *File) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

// Seek forwards to the underlying file. fsum uses it only to resolve
// the "start at current position" option.
func (s *File) Seek(offset int64, whence int) (int64, error) {
	return s.f.Seek(offset, whence)
}

// Size returns the file size captured at open time.
func (s *File) Size() int64 { return s.size }

// Close closes the underlying file.
func (s *File) Close() error { return s.f.Close() }
