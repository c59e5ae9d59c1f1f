package service

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// MinBreakdownTextLen is the length in characters that trimmed text must exceed to arm a breakdown.
const MinBreakdownTextLen = 10

// Debouncer delays a breakdown until the input for a key has been stable for
// the configured delay. Each new Trigger for a key stops the pending timer
// before it can fire, so only the latest snapshot is ever processed.
type Debouncer struct {
	delay time.Duration
	fire  func(key int64, text string)

	mu      sync.Mutex
	pending map[int64]*pendingFire
	last    map[int64]string
	seq     uint64
}

type pendingFire struct {
	timer *time.Timer
	seq   uint64
}

// NewDebouncer calls fire(key, snapshot) on its own goroutine once input settles.
func NewDebouncer(delay time.Duration, fire func(key int64, text string)) *Debouncer {
	return &Debouncer{
		delay:   delay,
		fire:    fire,
		pending: make(map[int64]*pendingFire),
		last:    make(map[int64]string),
	}
}

// Trigger records new input for key. It reports whether a timer was armed:
// text that is too short or identical to the last processed snapshot only
// cancels what was pending.
func (d *Debouncer) Trigger(key int64, text string) bool {
	snapshot := strings.TrimSpace(text)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancelLocked(key)
	if utf8.RuneCountInString(snapshot) <= MinBreakdownTextLen {
		// Short input forgets the last snapshot so retyping it fires again.
		delete(d.last, key)
		return false
	}
	if snapshot == d.last[key] {
		return false
	}

	d.seq++
	seq := d.seq
	d.pending[key] = &pendingFire{
		seq: seq,
		timer: time.AfterFunc(d.delay, func() {
			d.mu.Lock()
			current, ok := d.pending[key]
			if !ok || current.seq != seq {
				d.mu.Unlock()
				return
			}
			delete(d.pending, key)
			d.last[key] = snapshot
			d.mu.Unlock()

			d.fire(key, snapshot)
		}),
	}
	return true
}

// Cancel drops any pending fire for key.
func (d *Debouncer) Cancel(key int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked(key)
}

// Reset cancels pending work and forgets the last processed snapshot for key.
func (d *Debouncer) Reset(key int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked(key)
	delete(d.last, key)
}

// Pending reports whether a fire is scheduled for key.
func (d *Debouncer) Pending(key int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Stop cancels every pending timer.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.pending {
		d.cancelLocked(key)
	}
}

func (d *Debouncer) cancelLocked(key int64) {
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
		delete(d.pending, key)
	}
}
