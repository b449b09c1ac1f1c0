package fsum

// RestOfStream is the Length sentinel selecting every byte from the
// starting offset through the end of the source.
const RestOfStream int64 = -1

// Options contains configuration for a single digest run.
type Options struct {
	// Threads is the requested worker count. The effective count is
	// reduced so no range falls below MinChunkSize; it never exceeds
	// Threads. Must be at least 1.
	Threads int

	// Offset is the absolute byte offset to start from.
	Offset int64

	// FromCurrent starts at the source's current seek position
	// instead of Offset. It applies only to sources that implement
	// io.Seeker (such as source.File); for all others Offset is used.
	FromCurrent bool

	// Length is the number of bytes to digest, or RestOfStream.
	Length int64

	// CRC32 and Hash select the outputs. At least one must be true.
	CRC32 bool
	Hash  bool

	// BufferSize is the per-worker read buffer size. Cancellation and
	// progress latency are bounded by one buffer iteration.
	BufferSize int

	// MinChunkSize is the smallest range the planner will hand to a
	// worker; it keeps tiny inputs from fanning out into pathological
	// slivers.
	MinChunkSize int64

	// Progress receives per-chunk byte counts after every buffer
	// iteration. Nil disables reporting.
	Progress Reporter

	// Logger receives a structured record of each completed run. Nil
	// disables logging.
	Logger *Logger
}

// DefaultOptions holds the defaults applied by Sum before the option
// functions run. Parallelism is opt-in: callers that want it set
// Threads explicitly.
var DefaultOptions = Options{
	Threads:      1,
	Length:       RestOfStream,
	CRC32:        true,
	Hash:         true,
	BufferSize:   256 << 10,
	MinChunkSize: 1 << 20,
}
