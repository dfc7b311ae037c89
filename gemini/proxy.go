package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sync"

	"google.golang.org/genai"
)

// liveModel is pinned to the native-audio preview build; the demo
// bridge only ever runs one model, so this isn't exposed as config.
const liveModel = "models/gemini-2.5-flash-native-audio-preview-12-2025"

// liveVoice is one of the prebuilt voices Gemini Live ships with
// (Puck, Charon, Kore, Fenrir, Aoede, Leda, Orus, Zephyr).
const liveVoice = "Zephyr"

// Proxy wraps one Gemini Live SDK session and fans its server events
// out through a handful of callbacks, so gemini.Bridge never touches
// the genai package directly.
type Proxy struct {
	client  *genai.Client
	session *genai.Session

	OnAudioRaw func(base64Data string)
	OnText     func(text string)
	OnComplete func()
	OnToolCall func(functionCalls []*genai.FunctionCall)
	OnError    func(err error)

	mu     sync.RWMutex
	closed bool
}

// NewProxy creates the underlying genai client; the Live session
// itself isn't opened until Setup.
func NewProxy(ctx context.Context, apiKey string) (*Proxy, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Proxy{client: client}, nil
}

// Setup opens the Live session with the given system prompt and tool
// set.
func (gp *Proxy) Setup(ctx context.Context, systemPrompt string, tools []*genai.Tool) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	if gp.closed {
		return fmt.Errorf("gemini: proxy is closed")
	}

	config := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{"AUDIO"},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
		Tools: tools,
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: liveVoice},
			},
		},
	}

	session, err := gp.client.Live.Connect(ctx, liveModel, config)
	if err != nil {
		return fmt.Errorf("gemini: connect live session: %w", err)
	}
	gp.session = session
	log.Printf("✅ connected to Gemini Live (%s)", liveModel)
	return nil
}

// activeSession returns the session if the proxy is usable, or an
// error describing why it isn't.
func (gp *Proxy) activeSession() (*genai.Session, error) {
	gp.mu.RLock()
	defer gp.mu.RUnlock()
	if gp.closed || gp.session == nil {
		return nil, fmt.Errorf("gemini: proxy is closed or not connected")
	}
	return gp.session, nil
}

// StartReceiving drains session.Receive in a background goroutine
// until the proxy closes or the stream errors out.
func (gp *Proxy) StartReceiving(ctx context.Context) {
	go func() {
		for {
			session, err := gp.activeSession()
			if err != nil {
				return
			}

			resp, err := session.Receive()
			if err != nil {
				gp.mu.RLock()
				closed := gp.closed
				gp.mu.RUnlock()
				if !closed {
					log.Printf("❌ Gemini receive error: %v", err)
					if gp.OnError != nil {
						gp.OnError(err)
					}
				}
				return
			}

			gp.handleResponse(resp)
		}
	}()
}

func (gp *Proxy) handleResponse(resp *genai.LiveServerMessage) {
	if resp.ToolCall != nil && len(resp.ToolCall.FunctionCalls) > 0 {
		log.Printf("📥 Gemini: %d tool call(s)", len(resp.ToolCall.FunctionCalls))
		if gp.OnToolCall != nil {
			gp.OnToolCall(resp.ToolCall.FunctionCalls)
		}
	}

	if resp.ServerContent == nil {
		return
	}

	if resp.ServerContent.ModelTurn != nil {
		for _, part := range resp.ServerContent.ModelTurn.Parts {
			if part.Text != "" && gp.OnText != nil {
				gp.OnText(part.Text)
			}
			if part.InlineData != nil && gp.OnAudioRaw != nil {
				gp.OnAudioRaw(base64.StdEncoding.EncodeToString(part.InlineData.Data))
			}
		}
	}

	if resp.ServerContent.TurnComplete && gp.OnComplete != nil {
		gp.OnComplete()
	}
}

// SendAudioBatch sends one complete clip followed by an end-of-stream
// marker, which is what triggers Gemini to turn a response around.
func (gp *Proxy) SendAudioBatch(audioData []byte) error {
	if len(audioData) == 0 {
		return nil
	}
	if err := gp.sendRealtimeInput(audioData); err != nil {
		return fmt.Errorf("gemini: send audio batch: %w", err)
	}
	return gp.sendTurnComplete()
}

// SendText sends a text turn, mainly useful for smoke-testing a
// session without a real audio source.
func (gp *Proxy) SendText(text string) error {
	session, err := gp.activeSession()
	if err != nil {
		return err
	}

	turnComplete := true
	err = session.SendClientContent(genai.LiveSendClientContentParameters{
		Turns:        []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: text}}}},
		TurnComplete: &turnComplete,
	})
	if err != nil {
		return fmt.Errorf("gemini: send text: %w", err)
	}
	return nil
}

func (gp *Proxy) sendRealtimeInput(data []byte) error {
	session, err := gp.activeSession()
	if err != nil {
		return err
	}
	return session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{MIMEType: "audio/pcm;rate=16000", Data: data},
	})
}

func (gp *Proxy) sendTurnComplete() error {
	session, err := gp.activeSession()
	if err != nil {
		return err
	}
	return session.SendRealtimeInput(genai.LiveRealtimeInput{AudioStreamEnd: true})
}

// SendToolResponse answers one or more function calls the model made
// via OnToolCall.
func (gp *Proxy) SendToolResponse(responses []*genai.FunctionResponse) error {
	session, err := gp.activeSession()
	if err != nil {
		return err
	}
	return session.SendToolResponse(genai.LiveToolResponseInput{FunctionResponses: responses})
}

// Close shuts down the Live session. Idempotent.
func (gp *Proxy) Close() error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	if gp.closed {
		return nil
	}
	gp.closed = true

	if gp.session != nil {
		return gp.session.Close()
	}
	return nil
}
