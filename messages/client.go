package messages

import "encoding/json"

// ClientMessage is the envelope of every JSON frame the Gemini demo
// bridge's browser client sends. Raw PCM audio chunks are sent as
// binary WebSocket frames instead and never pass through this
// envelope; Payload is only decoded once Type is known.
type ClientMessage struct {
	Type    string          `json:"type"` // "audio" or "control"
	Payload json.RawMessage `json:"payload"`
}

// AudioPayload carries one base64-encoded PCM chunk sent over the
// JSON path, as an alternative to a raw binary frame.
type AudioPayload struct {
	Data string `json:"data"`
}

// ControlPayload carries a control command: "ping" (answered with a
// status pong) or "end_turn" (flushes the buffered audio to Gemini).
type ControlPayload struct {
	Action string `json:"action"`
}
