package capture

import "sync"

// ring is a fixed-size byte queue filled by a device callback and drained
// by Line.Read. When full the oldest bytes are overwritten.
type ring struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	head    int // next byte to read
	size    int // bytes queued
	dropped int64
	closed  bool
}

func newRing(capacity int) *ring {
	r := &ring{buf: make([]byte, capacity)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// write queues p and returns the number of old bytes overwritten
func (r *ring) write(p []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0
	}
	cut := 0
	if len(p) > len(r.buf) {
		cut = len(p) - len(r.buf)
		p = p[cut:]
	}
	over := r.size + len(p) - len(r.buf)
	if over > 0 {
		r.head = (r.head + over) % len(r.buf)
		r.size -= over
	} else {
		over = 0
	}
	over += cut
	r.dropped += int64(over)
	tail := (r.head + r.size) % len(r.buf)
	n := copy(r.buf[tail:], p)
	copy(r.buf, p[n:])
	r.size += len(p)
	r.cond.Broadcast()
	return over
}

// read fills p, waiting for the callback as needed. It returns early with
// what it has once the ring is closed.
func (r *ring) read(p []byte) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for n < len(p) {
		for r.size == 0 && !r.closed {
			r.cond.Wait()
		}
		if r.size == 0 {
			return n, false
		}
		n += r.take(p[n:])
	}
	return n, true
}

func (r *ring) take(p []byte) int {
	want := len(p)
	if want > r.size {
		want = r.size
	}
	first := copy(p[:want], r.buf[r.head:])
	copy(p[first:want], r.buf)
	r.head = (r.head + want) % len(r.buf)
	r.size -= want
	return want
}

func (r *ring) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

func (r *ring) overwritten() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *ring) reset() {
	r.mu.Lock()
	r.head, r.size, r.closed = 0, 0, false
	r.mu.Unlock()
}

func (r *ring) close() {
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()
}
