// Package ring implements the circular chunk store behind the feedback
// delay. A Buffer is a fixed number of slots holding captured audio chunks
// plus a single cursor that marks the slot due for playback next. The buffer
// can be resized while audio is flowing; the splice keeps chunks that are
// already scheduled for playback and keeps the cursor pointing at the same
// logical slot.
package ring

import (
	"errors"
	"sync"
)

// Chunk is one fixed-size block of interleaved float32 audio samples.
// A chunk is never mutated after capture; slots hold nil until the loop
// has written them once.
type Chunk []float32

// ErrInvalidSize is returned for a requested size below one slot. The
// cursor arithmetic divides by the length, so the buffer never shrinks
// to zero.
var ErrInvalidSize = errors.New("ring: size must be at least 1")

// Buffer is a mutex-guarded slot ring. The playback loop and the control
// surface issuing resizes run on different goroutines; every operation
// takes the lock for its full duration so a resize is atomic relative to
// one loop iteration.
type Buffer struct {
	mu     sync.Mutex
	slots  []Chunk
	cursor int
}

// New creates a buffer with size empty slots and the cursor at zero.
func New(size int) (*Buffer, error) {
	if size < 1 {
		return nil, ErrInvalidSize
	}
	return &Buffer{slots: make([]Chunk, size)}, nil
}

// Len reports the current number of slots.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.slots)
}

// Cursor reports the index of the slot due for playback next.
func (b *Buffer) Cursor() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

// Get returns the chunk at slot i, or nil if the slot has never been
// written. The index must be within the current length.
func (b *Buffer) Get(i int) Chunk {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slots[i]
}

// Set stores a chunk at slot i. The index must be within the current length.
func (b *Buffer) Set(i int, c Chunk) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[i] = c
}

// Advance moves the cursor forward by n slots, wrapping modulo the current
// length. Negative n moves it backward.
func (b *Buffer) Advance(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursor = wrap(b.cursor+n, len(b.slots))
}

// Retreat moves the cursor backward by n slots.
func (b *Buffer) Retreat(n int) {
	b.Advance(-n)
}

// Exchange runs one loop iteration atomically: it passes the chunk at the
// cursor to fn, stores the chunk fn returns in its place, advances the
// cursor by one, and reports whether the cursor wrapped back to zero.
//
// fn runs with the ring locked, so a concurrent Resize waits for the
// iteration to finish rather than splicing the slot mid-exchange. fn is
// where the caller blocks on device I/O, which bounds how long a resize
// can wait to one iteration.
func (b *Buffer) Exchange(fn func(prev Chunk) Chunk) (wrapped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[b.cursor] = fn(b.slots[b.cursor])
	b.cursor = wrap(b.cursor+1, len(b.slots))
	return b.cursor == 0
}

// Resize changes the slot count to size.
//
// Growing inserts the new empty slots immediately after the cursor slot,
// so the chunk about to be played and everything queued behind it keep
// their order. Shrinking removes slots starting immediately after the
// cursor; if there are not enough slots past the cursor, the shortfall is
// taken from the front of the sequence (the oldest slots) and the cursor
// is moved back by exactly the number of slots removed in front of it.
func (b *Buffer) Resize(size int) error {
	if size < 1 {
		return ErrInvalidSize
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	diff := size - len(b.slots)
	switch {
	case diff == 0:
		return nil

	case diff > 0:
		grown := make([]Chunk, 0, size)
		grown = append(grown, b.slots[:b.cursor+1]...)
		grown = grown[:b.cursor+1+diff]
		grown = append(grown, b.slots[b.cursor+1:]...)
		b.slots = grown

	default:
		amount := -diff
		after := len(b.slots) - b.cursor - 1
		if after >= amount {
			kept := make([]Chunk, 0, size)
			kept = append(kept, b.slots[:b.cursor+1]...)
			kept = append(kept, b.slots[b.cursor+1+amount:]...)
			b.slots = kept
		} else {
			// Everything past the cursor goes, plus the oldest
			// slots at the front; the cursor follows the shift.
			fromFront := amount - after
			kept := make([]Chunk, 0, size)
			kept = append(kept, b.slots[fromFront:b.cursor+1]...)
			b.slots = kept
			b.cursor -= fromFront
		}
	}
	return nil
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
