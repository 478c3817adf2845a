package filter

import (
	"sync"
	"time"
)

// DefaultDebounce is the settle window list views use between a selection
// change and the resulting refetch.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer coalesces bursts of triggers into a single callback once the
// triggers have been quiet for the configured duration. Each Trigger cancels
// any pending callback and restarts the clock. Safe for concurrent use.
type Debouncer struct {
	d time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a Debouncer with the given settle duration.
// A non-positive duration falls back to DefaultDebounce.
func NewDebouncer(d time.Duration) *Debouncer {
	if d <= 0 {
		d = DefaultDebounce
	}
	return &Debouncer{d: d}
}

// Trigger schedules fn to run after the settle window, replacing any
// previously scheduled callback. fn runs on a timer goroutine.
func (db *Debouncer) Trigger(fn func()) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.stopped {
		return
	}
	if db.timer != nil {
		db.timer.Stop()
	}
	db.timer = time.AfterFunc(db.d, fn)
}

// Stop cancels any pending callback and rejects further triggers.
func (db *Debouncer) Stop() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.stopped = true
	if db.timer != nil {
		db.timer.Stop()
		db.timer = nil
	}
}
