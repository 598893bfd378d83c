package notify

import (
	"context"
	"sort"
	"time"
)

// Debouncer coalesces bursts of table-change signals into a single downstream
// flush. It is a read-side convenience for cache invalidation and dashboard
// refresh hints; delivery is best-effort and nothing correctness-bearing may
// depend on it. Consumers can always re-derive state with direct queries.
type Debouncer struct {
	window  time.Duration
	signals chan string
	flush   func(tables []string)
}

// NewDebouncer creates a debouncer that calls flush with the distinct changed
// tables once a burst has been quiet-collected for one window.
func NewDebouncer(window time.Duration, flush func(tables []string)) *Debouncer {
	return &Debouncer{
		window:  window,
		signals: make(chan string, 64),
		flush:   flush,
	}
}

// Signal reports that something in the named table changed. Non-blocking:
// if the buffer is full the signal is dropped, which is fine for a
// best-effort refresh hint. Safe to call on a nil Debouncer.
func (d *Debouncer) Signal(table string) {
	if d == nil {
		return
	}
	select {
	case d.signals <- table:
	default:
	}
}

// Run collects signals until cancelled. The first signal of a burst arms the
// timer; everything arriving within the window rides along in the same flush.
func (d *Debouncer) Run(ctx context.Context) {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case table := <-d.signals:
			pending[table] = struct{}{}
			if fire == nil {
				timer = time.NewTimer(d.window)
				fire = timer.C
			}
		case <-fire:
			tables := make([]string, 0, len(pending))
			for table := range pending {
				tables = append(tables, table)
			}
			sort.Strings(tables)
			pending = make(map[string]struct{})
			fire = nil
			d.flush(tables)
		}
	}
}
