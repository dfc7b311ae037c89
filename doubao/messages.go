package doubao

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// ClientMessage is the envelope of every text frame a browser client
// sends on /doubao-proxy.
type ClientMessage struct {
	Type         string `json:"type"`
	SessionID    string `json:"sessionId,omitempty"`
	SystemMessage string `json:"systemMessage,omitempty"`
	Model        string `json:"model,omitempty"`
	Data         string `json:"data,omitempty"` // base64 PCM, audio_data only
	IsLast       bool   `json:"isLast,omitempty"`
	Text         string `json:"text,omitempty"`
}

// Client message type discriminants.
const (
	ClientStartSession    = "start_session"
	ClientAudioData       = "audio_data"
	ClientTextInput       = "text_input"
	ClientFinishSession   = "finish_session"
	ClientFinishConnection = "finish_connection"
)

// ServerMessage is the envelope of every text frame the bridge sends
// back to the browser client.
type ServerMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	DialogID  string          `json:"dialog_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	QuestionID string         `json:"question_id,omitempty"`
	ReplyID    string         `json:"reply_id,omitempty"`
	Content    string         `json:"content,omitempty"`
	Results    json.RawMessage `json:"results,omitempty"`
}

// Server message type discriminants.
const (
	ServerSessionStarted = "session_started"
	ServerError          = "error"
	ServerSpeechStarted  = "speech_started"
	ServerASRResponse    = "asr_response"
	ServerChatResponse   = "chat_response"
	ServerChatEnded      = "chat_ended"
)

func newSessionStartedMessage(sessionID string) ServerMessage {
	return ServerMessage{Type: ServerSessionStarted, SessionID: sessionID, DialogID: sessionID}
}

func newErrorMessage(errText string, details map[string]any) ServerMessage {
	msg := ServerMessage{Type: ServerError, Error: errText}
	if details != nil {
		if raw, err := sonic.Marshal(details); err == nil {
			msg.Details = raw
		}
	}
	return msg
}

func newSpeechStartedMessage(questionID string) ServerMessage {
	return ServerMessage{Type: ServerSpeechStarted, QuestionID: questionID}
}

func newASRResponseMessage(results map[string]any) ServerMessage {
	msg := ServerMessage{Type: ServerASRResponse}
	if raw, err := sonic.Marshal(results); err == nil {
		msg.Results = raw
	}
	return msg
}

func newChatResponseMessage(content, questionID, replyID string) ServerMessage {
	return ServerMessage{Type: ServerChatResponse, Content: content, QuestionID: questionID, ReplyID: replyID}
}

func newChatEndedMessage(questionID, replyID string) ServerMessage {
	return ServerMessage{Type: ServerChatEnded, QuestionID: questionID, ReplyID: replyID}
}

// taskRequestTextPayload is the JSON body of a text TASK_REQUEST frame.
type taskRequestTextPayload struct {
	Text      string `json:"text"`
	InputText string `json:"input_text"`
	InputMod  string `json:"input_mod"`
	InputMode string `json:"input_mode"`
}

func newTaskRequestTextPayload(text string) taskRequestTextPayload {
	return taskRequestTextPayload{Text: text, InputText: text, InputMod: "text", InputMode: "text"}
}
