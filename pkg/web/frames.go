package web

import (
	"sync"
	"time"
)

// latestFrame holds the newest JPEG and wakes waiters when it changes.
type latestFrame struct {
	mu      sync.Mutex
	data    []byte
	seq     uint64
	changed chan struct{}
}

func newLatestFrame() *latestFrame {
	return &latestFrame{changed: make(chan struct{})}
}

func (f *latestFrame) set(data []byte) {
	f.mu.Lock()
	f.data = data
	f.seq++
	close(f.changed)
	f.changed = make(chan struct{})
	f.mu.Unlock()
}

func (f *latestFrame) get() ([]byte, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data, f.seq
}

// next waits for a frame newer than seq. ok is false on timeout or stop.
func (f *latestFrame) next(seq uint64, timeout time.Duration, stop <-chan struct{}) (data []byte, newSeq uint64, ok bool) {
	f.mu.Lock()
	if f.seq > seq {
		data, newSeq = f.data, f.seq
		f.mu.Unlock()
		return data, newSeq, true
	}
	changed := f.changed
	f.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-changed:
		data, newSeq = f.get()
		return data, newSeq, true
	case <-timer.C:
		return nil, seq, false
	case <-stop:
		return nil, seq, false
	}
}
