package fsum

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/time/rate"
)

// Reporter receives progress updates from digest workers.
//
// Report is called after every buffer iteration with the range
// ordinal, the cumulative bytes read in that range and the total byte
// count of the whole run. Implementations must be safe for concurrent
// use; workers call it in parallel.
type Reporter interface {
	Report(chunk int, done, total int64)
}

// NoopReporter discards all progress updates.
type NoopReporter struct{}

func (NoopReporter) Report(int, int64, int64) {}

// TextReporter writes human-readable progress to a writer. With
// ShowAll false it prints only a one-line header on the first update;
// with ShowAll true it additionally emits live percentage updates,
// throttled so tight read loops do not flood the output.
//
// All output is serialized internally; a single TextReporter may be
// shared by every worker of a run.
type TextReporter struct {
	w       io.Writer
	showAll bool

	mu      sync.Mutex
	limiter *rate.Limiter
	started bool
	done    map[int]int64
	lastPct int
}

// NewTextReporter creates a TextReporter writing to w.
func NewTextReporter(w io.Writer, showAll bool) *TextReporter {
	return &TextReporter{
		w:       w,
		showAll: showAll,
		limiter: rate.NewLimiter(rate.Limit(20), 1),
		done:    make(map[int]int64),
		lastPct: -1,
	}
}

// Report implements Reporter.
func (r *TextReporter) Report(chunk int, done, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		r.started = true
		fmt.Fprintln(r.w, "Calculating the checksum")
	}
	if !r.showAll || total <= 0 {
		return
	}

	r.done[chunk] = done
	var sum int64
	for _, d := range r.done {
		sum += d
	}
	pct := int(sum * 100 / total)

	// Always let 100% through so a finished run never shows a stale
	// percentage.
	if pct == r.lastPct || (pct < 100 && !r.limiter.Allow()) {
		return
	}
	r.lastPct = pct
	fmt.Fprintf(r.w, "\r%3d%%", pct)
	if pct >= 100 {
		fmt.Fprintln(r.w)
	}
}
