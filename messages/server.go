package messages

// Error codes surfaced to the client in an error-type ServerMessage.
const (
	ErrCodeInvalidMessage   = "INVALID_MESSAGE"
	ErrCodeGeminiError      = "GEMINI_ERROR"
	ErrCodeSessionFailed    = "SESSION_FAILED"
	ErrCodeConnectionClosed = "CONNECTION_CLOSED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeBufferFull       = "BUFFER_FULL"
)

// ServerMessage type discriminants.
const (
	TypeAudio  = "audio"
	TypeText   = "text"
	TypeStatus = "status"
	TypeError  = "error"
)

// ServerMessage is the single flat envelope the Gemini demo bridge
// sends back to its browser client; which fields are populated
// depends on Type, mirroring the flat shape doubao.ServerMessage uses
// for the same purpose.
type ServerMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      string `json:"data,omitempty"`     // base64 PCM audio, TypeAudio only
	MimeType  string `json:"mimeType,omitempty"` // TypeAudio only
	Text      string `json:"text,omitempty"`     // TypeText only
	Status    string `json:"status,omitempty"`   // TypeStatus only
	Code      string `json:"code,omitempty"`      // TypeError only
	Message   string `json:"message,omitempty"`   // TypeStatus or TypeError
}

// NewAudioMessage builds a TypeAudio message carrying one base64
// PCM/24kHz chunk from Gemini.
func NewAudioMessage(sessionID, data string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeAudio,
		SessionID: sessionID,
		Data:      data,
		MimeType:  "audio/pcm;rate=24000",
	}
}

// NewTextMessage builds a TypeText message carrying one text part of
// Gemini's response.
func NewTextMessage(sessionID, text string) *ServerMessage {
	return &ServerMessage{Type: TypeText, SessionID: sessionID, Text: text}
}

// NewStatusMessage builds a TypeStatus message, e.g. "connected" or
// "turn_complete".
func NewStatusMessage(sessionID, status, message string) *ServerMessage {
	return &ServerMessage{Type: TypeStatus, SessionID: sessionID, Status: status, Message: message}
}

// NewErrorMessage builds a TypeError message carrying one of the
// ErrCode* constants and a human-readable message.
func NewErrorMessage(sessionID, code, message string) *ServerMessage {
	return &ServerMessage{Type: TypeError, SessionID: sessionID, Code: code, Message: message}
}
