package eventlog

import "sync"

// Recent keeps the last entries in a fixed-capacity ring, oldest overwritten first.
type Recent struct {
	mu    sync.RWMutex
	buf   []Entry
	head  int // next write position
	count int
}

func NewRecent(capacity int) *Recent {
	if capacity <= 0 {
		capacity = 1
	}
	return &Recent{buf: make([]Entry, capacity)}
}

func (r *Recent) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Entries returns a copy, oldest first.
func (r *Recent) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, r.count)
	start := (r.head - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

func (r *Recent) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}
