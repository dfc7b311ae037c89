package doubao

import "github.com/kaivoice/bridge/buffer"

// This file implements the pre-ready buffer: two FIFO sub-queues keyed
// by the lifecycle gate their contents await. SessionStart requests
// wait on the connection gate; everything TASK_REQUEST-shaped (audio,
// text) waits on the session gate.

// BufferSessionStart parks a start_session request until
// ConnectionEstablished becomes true.
func (s *Session) BufferSessionStart(cfg SessionConfig) error {
	return s.connectionBuffer.Push(buffer.Item{Kind: buffer.SessionStart, Meta: cfg})
}

// BufferBinaryAudio parks a raw PCM chunk until SessionActive becomes
// true.
func (s *Session) BufferBinaryAudio(data []byte) error {
	return s.sessionBuffer.Push(buffer.Item{Kind: buffer.BinaryAudio, Bytes: data})
}

// BufferBase64Audio parks a base64-encoded PCM chunk (the legacy
// audio_data client message) until SessionActive becomes true.
func (s *Session) BufferBase64Audio(data string) error {
	return s.sessionBuffer.Push(buffer.Item{Kind: buffer.Base64Audio, Text: data})
}

// BufferTextInput parks a text turn until SessionActive becomes true.
func (s *Session) BufferTextInput(text string) error {
	return s.sessionBuffer.Push(buffer.Item{Kind: buffer.TextInput, Text: text})
}

// DrainConnectionGate drains every item parked behind the connection
// gate, in FIFO order, invoking fn for each. Called the moment
// ConnectionEstablished flips true, strictly before any newly arriving
// client message of the same class is processed.
func (s *Session) DrainConnectionGate(fn func(buffer.Item)) {
	s.connectionBuffer.Drain(fn)
}

// DrainSessionGate drains every item parked behind the session gate,
// in FIFO order, invoking fn for each. Called the moment SessionActive
// flips true.
func (s *Session) DrainSessionGate(fn func(buffer.Item)) {
	s.sessionBuffer.Drain(fn)
}

// PendingAudioCount reports how many items await the session gate, for
// observability logging.
func (s *Session) PendingAudioCount() int {
	return s.sessionBuffer.Len()
}

// PendingConnectionCount reports how many items await the connection
// gate, for observability logging.
func (s *Session) PendingConnectionCount() int {
	return s.connectionBuffer.Len()
}
