package analytics

import "sync"

// Latest is a last-writer-wins slot for the newest completed report. A
// consumer that refires requests as the user flips periods tags each
// in-flight request with Begin's sequence number; a completion that lost the
// race is discarded instead of overwriting a newer result. There is no
// ordering guarantee beyond that, and discarding has no side effects.
type Latest[T any] struct {
	mu      sync.Mutex
	nextSeq uint64
	applied uint64
	value   T
	set     bool
}

// Begin reserves a sequence number for a request about to start.
func (l *Latest[T]) Begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextSeq++
	return l.nextSeq
}

// Complete stores value if seq is newer than the last applied completion.
// It reports whether the value was kept.
func (l *Latest[T]) Complete(seq uint64, value T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq <= l.applied {
		return false
	}
	l.applied = seq
	l.value = value
	l.set = true
	return true
}

// Get returns the newest completed value, if any.
func (l *Latest[T]) Get() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.set
}
