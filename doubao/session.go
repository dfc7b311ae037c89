package doubao

import (
	"fmt"
	"time"

	"github.com/kaivoice/bridge/buffer"
)

// ASRConfig configures upstream speech recognition.
type ASRConfig struct {
	EndSmoothWindowMs int  `json:"end_smooth_window_ms"`
	EnableCustomVAD   bool `json:"enable_custom_vad"`
	EnableTwoPass     bool `json:"enable_two_pass"`
}

// AudioConfig configures TTS output format.
type AudioConfig struct {
	Channel    int    `json:"channel"`
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
}

// TTSConfig configures upstream speech synthesis.
type TTSConfig struct {
	Speaker     string      `json:"speaker,omitempty"`
	AudioConfig AudioConfig `json:"audio_config"`
}

// DialogConfig configures the upstream dialogue/LLM turn.
type DialogConfig struct {
	BotName          string `json:"bot_name,omitempty"`
	SystemRole       string `json:"system_role,omitempty"`
	SpeakingStyle    string `json:"speaking_style,omitempty"`
	Model            string `json:"model"`
	InputModality    string `json:"input_mod"`
	StrictAudit      bool   `json:"strict_audit"`
	ReceiveTimeoutMs int    `json:"receive_timeout_ms"`
}

// SessionConfig is the JSON payload of a START_SESSION frame.
type SessionConfig struct {
	ASR    ASRConfig    `json:"asr"`
	TTS    TTSConfig    `json:"tts"`
	Dialog DialogConfig `json:"dialog"`
}

// DefaultSessionConfig returns a SessionConfig with the defaults named
// in the data model: 1500ms end-of-speech smoothing, no custom VAD, no
// two-pass ASR, mono 16-bit PCM TTS at 24kHz, model "O2.0", audio input
// modality, audit disabled, a 10s receive timeout.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ASR: ASRConfig{
			EndSmoothWindowMs: 1500,
			EnableCustomVAD:   false,
			EnableTwoPass:     false,
		},
		TTS: TTSConfig{
			AudioConfig: AudioConfig{
				Channel:    1,
				Format:     "pcm_s16le",
				SampleRate: 24000,
			},
		},
		Dialog: DialogConfig{
			Model:            "O2.0",
			InputModality:    "audio",
			StrictAudit:      false,
			ReceiveTimeoutMs: 10000,
		},
	}
}

// Session is the per-connection runtime entity described in the data
// model. It is only ever touched from the owning Bridge's single
// select loop, so it carries no internal locking.
//
// connectionEstablished/sessionActive from the data model are not
// stored redundantly here; they collapse into the Bridge's
// StateMachine per the design note on shared mutable session state,
// and are derived from it (see Bridge.ConnectionEstablished /
// Bridge.SessionActive).
type Session struct {
	ID         string
	SystemRole string
	Model      string

	PendingStartSession *SessionConfig

	connectionBuffer *buffer.Queue // items awaiting CONNECTION_STARTED
	sessionBuffer    *buffer.Queue // items awaiting SESSION_STARTED

	MessageCount int
}

// NewSession creates a Session with a freshly generated ID in the
// "session_<epoch_ms>" shape the client-facing protocol uses when a
// client doesn't supply its own sessionId.
func NewSession(maxBufferSize int) *Session {
	return &Session{
		ID:               fmt.Sprintf("session_%d", time.Now().UnixMilli()),
		connectionBuffer: buffer.New(maxBufferSize),
		sessionBuffer:    buffer.New(maxBufferSize),
	}
}
