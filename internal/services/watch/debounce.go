package watch

import (
	"context"
	"sync"
	"time"
)

// debouncer delivers a key on C once no Trigger for it has arrived for delay.
type debouncer struct {
	ctx   context.Context
	delay time.Duration
	C     chan string

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func newDebouncer(ctx context.Context, delay time.Duration) *debouncer {
	return &debouncer{
		ctx:     ctx,
		delay:   delay,
		C:       make(chan string, 64),
		pending: make(map[string]*time.Timer),
	}
}

// Trigger (re)starts the timer for key.
func (d *debouncer) Trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old, ok := d.pending[key]; ok {
		old.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.pending[key] == t {
			delete(d.pending, key)
		}
		d.mu.Unlock()

		select {
		case d.C <- key:
		case <-d.ctx.Done():
		}
	})
	d.pending[key] = t
}

// Stop cancels every pending timer.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for k, t := range d.pending {
		t.Stop()
		delete(d.pending, k)
	}
}

// Pending returns the number of keys waiting to fire.
func (d *debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
