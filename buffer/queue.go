// Package buffer implements the bounded pre-ready FIFO queue shared by
// every bridge in this repository. Client-originated messages that
// arrive before the upstream connection has advanced past a required
// lifecycle gate are parked here and drained, strictly in order, once
// the gate opens.
package buffer

import (
	"errors"
	"sync"
)

// ErrFull is returned when appending an item would exceed the queue's
// configured byte budget.
var ErrFull = errors.New("pre-ready buffer full")

// Kind tags what an Item carries, so a drain callback can dispatch
// without re-inspecting raw bytes.
type Kind int

const (
	BinaryAudio  Kind = iota // raw PCM received as a WebSocket binary frame
	Base64Audio              // PCM received base64-encoded inside a JSON message
	TextInput                // a text turn the upstream hasn't been told about yet
	SessionStart             // a session-config request awaiting the connection gate
	Raw                      // an opaque frame forwarded untouched (GLM pass-through)
)

// Item is one parked message. Bytes holds the payload for BinaryAudio
// and Raw; Text holds it for Base64Audio and TextInput; Meta carries
// anything bridge-specific (e.g. a doubao.SessionConfig for
// SessionStart, or the WebSocket message type for Raw) so this package
// stays free of a dependency on its callers.
type Item struct {
	Kind  Kind
	Bytes []byte
	Text  string
	Meta  any
}

func (it Item) size() int {
	return len(it.Bytes) + len(it.Text)
}

// Queue is a mutex-guarded FIFO of Items bounded by total byte size.
// A single session owns a Queue and drives it from its own goroutine;
// the locking exists only to let an observability ticker read Len
// concurrently without racing the session's drain.
type Queue struct {
	mu      sync.Mutex
	items   []Item
	size    int
	maxSize int // 0 means unbounded
}

// New creates a Queue with the given maximum total byte size. A
// maxSize of 0 means unbounded.
func New(maxSize int) *Queue {
	return &Queue{maxSize: maxSize}
}

// Push appends an item to the back of the queue. It returns ErrFull if
// doing so would exceed the configured byte budget; the item is not
// added in that case.
func (q *Queue) Push(it Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxSize > 0 && q.size+it.size() > q.maxSize {
		return ErrFull
	}
	q.items = append(q.items, it)
	q.size += it.size()
	return nil
}

// Drain removes every item in FIFO order and invokes fn for each,
// clearing the queue before returning. fn runs after the queue's
// internal lock is released, so it is safe for fn to push new items
// onto this (or another) Queue.
func (q *Queue) Drain(fn func(Item)) {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.size = 0
	q.mu.Unlock()

	for _, it := range items {
		fn(it)
	}
}

// Len reports the number of parked items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty reports whether the queue currently holds no items.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear discards every parked item without invoking any callback.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.size = 0
}
