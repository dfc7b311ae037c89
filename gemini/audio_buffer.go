package gemini

import (
	"bytes"
	"errors"
	"sync"
)

// ErrBufferFull is returned when AudioBuffer would grow past its
// configured cap.
var ErrBufferFull = errors.New("gemini: audio buffer full")

// AudioBuffer accumulates raw PCM on a per-turn basis: a client trickles
// in chunks over many WebSocket frames, and end_turn flushes whatever
// has accumulated as one contiguous clip for Gemini Live. It backs onto
// a single growing byte slice rather than a list of chunks, since the
// only operations that matter are "append" and "take everything."
type AudioBuffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	chunks  int
	maxSize int
}

// NewAudioBuffer creates a buffer that rejects appends once Size would
// exceed maxSize bytes.
func NewAudioBuffer(maxSize int) *AudioBuffer {
	return &AudioBuffer{maxSize: maxSize}
}

func (ab *AudioBuffer) MaxSize() int {
	return ab.maxSize
}

// Append writes chunk to the buffer, or returns ErrBufferFull without
// writing anything if doing so would exceed maxSize.
func (ab *AudioBuffer) Append(chunk []byte) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if ab.buf.Len()+len(chunk) > ab.maxSize {
		return ErrBufferFull
	}
	ab.buf.Write(chunk)
	ab.chunks++
	return nil
}

// Flush returns everything buffered so far and resets the buffer to
// empty. Returns nil if nothing was buffered.
func (ab *AudioBuffer) Flush() []byte {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if ab.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, ab.buf.Len())
	copy(out, ab.buf.Bytes())
	ab.buf.Reset()
	ab.chunks = 0
	return out
}

// Clear discards any buffered audio without returning it.
func (ab *AudioBuffer) Clear() {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	ab.buf.Reset()
	ab.chunks = 0
}

func (ab *AudioBuffer) Size() int {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return ab.buf.Len()
}

func (ab *AudioBuffer) IsEmpty() bool {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return ab.buf.Len() == 0
}

// ChunkCount returns the number of Append calls since the last
// Flush/Clear, mainly for logging and tests.
func (ab *AudioBuffer) ChunkCount() int {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return ab.chunks
}
