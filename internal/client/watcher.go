package client

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khana-fast/api/internal/filter"
)

// DefaultPollInterval is how often the watcher refetches the current page
// when the selection is idle.
const DefaultPollInterval = 10 * time.Second

// Watcher keeps one filtered order listing current. Selection edits are
// debounced, responses are sequence-numbered so a slow fetch can never
// overwrite the result of a newer one, and the page resets to the first
// offset only when the compiled predicate actually changes.
type Watcher struct {
	client   *Client
	onUpdate func(Page)
	onError  func(error)

	debouncer *filter.Debouncer
	interval  time.Duration

	mu        sync.Mutex
	selection filter.Selection
	predicate filter.Predicate
	limit     int32
	offset    int32

	seq    atomic.Uint64
	cancel context.CancelFunc
	done   chan struct{}

	// deliverMu serializes response delivery; delivered is the highest
	// sequence number handed to a callback. Separate from mu so callbacks
	// may call SetSelection or SetOffset.
	deliverMu sync.Mutex
	delivered uint64
}

// WatcherConfig configures a Watcher. OnError may be nil.
type WatcherConfig struct {
	Debounce     time.Duration
	PollInterval time.Duration
	PageSize     int32
	OnUpdate     func(Page)
	OnError      func(error)
}

// NewWatcher creates a Watcher. Call Start to begin polling.
func NewWatcher(c *Client, cfg WatcherConfig) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = filter.DefaultDebounce
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	return &Watcher{
		client:    c,
		onUpdate:  cfg.OnUpdate,
		onError:   cfg.OnError,
		debouncer: filter.NewDebouncer(cfg.Debounce),
		interval:  cfg.PollInterval,
		predicate: filter.Predicate{},
		limit:     cfg.PageSize,
		done:      make(chan struct{}),
	}
}

// Start fetches the initial page and begins the poll loop.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()
	w.refresh(ctx)
	go w.poll(ctx)
}

// SetSelection schedules a refetch for the edited filter controls. Rapid
// successive calls collapse into one request after the debounce window. The
// offset resets only when the recompiled predicate differs from the current
// one, so unrelated edits keep the user's page.
func (w *Watcher) SetSelection(ctx context.Context, sel filter.Selection) {
	w.mu.Lock()
	w.selection = sel
	w.mu.Unlock()

	w.debouncer.Trigger(func() {
		w.mu.Lock()
		compiled := filter.Compile(w.selection)
		if !reflect.DeepEqual(compiled, w.predicate) {
			w.predicate = compiled
			w.offset = 0
		}
		w.mu.Unlock()
		w.refresh(ctx)
	})
}

// SetOffset moves to another page of the current predicate immediately.
func (w *Watcher) SetOffset(ctx context.Context, offset int32) {
	w.mu.Lock()
	if offset < 0 {
		offset = 0
	}
	w.offset = offset
	w.mu.Unlock()
	w.refresh(ctx)
}

// Stop halts polling and cancels any in-flight fetch. Pending debounced
// triggers are dropped. A Watcher that was never started stops immediately.
func (w *Watcher) Stop() {
	w.debouncer.Stop()
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-w.done
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

// refresh fetches the current page. Each call claims a sequence number; a
// response is delivered only while it is still the newest claim, so
// out-of-order completions cannot clobber fresher results.
func (w *Watcher) refresh(ctx context.Context) {
	w.mu.Lock()
	predicate := w.predicate
	limit, offset := w.limit, w.offset
	w.mu.Unlock()

	id := w.seq.Add(1)
	go func() {
		page, err := w.client.ListOrders(ctx, predicate, limit, offset)

		// Delivery is serialized and watermarked: once a response has been
		// handed to a callback, no response with a lower sequence number
		// can follow it.
		w.deliverMu.Lock()
		defer w.deliverMu.Unlock()
		if id != w.seq.Load() || id <= w.delivered {
			return // a newer request superseded this one
		}
		w.delivered = id

		if err != nil {
			if w.onError != nil && ctx.Err() == nil {
				w.onError(err)
			}
			return
		}
		if w.onUpdate != nil {
			w.onUpdate(page)
		}
	}()
}
