package layout

import (
	"sort"
	"sync"
	"time"
)

// Debouncer runs at most one trailing-edge callback per key. Scheduling a
// key again before its timer fires replaces the callback and restarts the delay.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	seq     uint64
	entries map[string]*debounceEntry
}

type debounceEntry struct {
	timer *time.Timer
	fn    func()
	seq   uint64
}

// NewDebouncer creates a debouncer with the given delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay, entries: make(map[string]*debounceEntry)}
}

// Schedule arranges for fn to run after the delay unless rescheduled.
func (d *Debouncer) Schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.entries[key]; ok {
		e.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.entries[key] = &debounceEntry{
		fn:    fn,
		seq:   seq,
		timer: time.AfterFunc(d.delay, func() { d.fire(key, seq) }),
	}
}

// fire runs the callback for key if seq is still the scheduled one. A timer
// that lost the race with Schedule, Cancel or Flush does nothing.
func (d *Debouncer) fire(key string, seq uint64) {
	d.mu.Lock()
	e, ok := d.entries[key]
	if !ok || e.seq != seq {
		d.mu.Unlock()
		return
	}
	delete(d.entries, key)
	d.mu.Unlock()

	e.fn()
}

// Cancel drops the pending callback for key. It reports whether one existed.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(d.entries, key)
	return true
}

// Pending reports whether key has a callback waiting.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[key]
	return ok
}

// Flush runs every pending callback now, in key order, on the calling goroutine.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fns := make([]func(), 0, len(keys))
	for _, k := range keys {
		e := d.entries[k]
		e.timer.Stop()
		fns = append(fns, e.fn)
		delete(d.entries, k)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
