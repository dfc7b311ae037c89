// Package gemini implements the supplemental Gemini Live demo bridge:
// a WebSocket session that translates a simple client-facing JSON/
// binary protocol into Gemini Live SDK calls.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"

	"github.com/kaivoice/bridge/functions"
	"github.com/kaivoice/bridge/messages"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
)

// Tools returns the function declarations exposed to every Gemini
// Live session this bridge opens.
func Tools() []*genai.Tool {
	return []*genai.Tool{
		{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				functions.GetBridgeInfoDocsFunctionDeclaration(),
			},
		},
	}
}

// Bridge is the Session Bridge for the client-facing protocol: JSON
// control messages plus binary audio chunks, batched on an explicit
// end_turn and forwarded to Gemini Live.
type Bridge struct {
	id         string
	clientConn *websocket.Conn
	proxy      *Proxy
	audio      *AudioBuffer

	writeChan chan any
	closeChan chan struct{}

	mu     sync.Mutex
	closed bool

	onActivity func()
}

// NewBridge creates a Bridge and connects its Gemini Live session.
func NewBridge(ctx context.Context, id string, clientConn *websocket.Conn, apiKey string, maxBufferSize int) (*Bridge, error) {
	proxy, err := NewProxy(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("gemini: create proxy: %w", err)
	}
	if err := proxy.Setup(ctx, DefaultSystemPrompt, Tools()); err != nil {
		proxy.Close()
		return nil, fmt.Errorf("gemini: setup session: %w", err)
	}

	clientConn.SetReadLimit(512 * 1024)
	clientConn.EnableWriteCompression(true)
	clientConn.SetCompressionLevel(6)

	return &Bridge{
		id:         id,
		clientConn: clientConn,
		proxy:      proxy,
		audio:      NewAudioBuffer(maxBufferSize),
		writeChan:  make(chan any, writeBufferSize),
		closeChan:  make(chan struct{}),
	}, nil
}

// SetActivityHook registers a callback invoked once per client or
// upstream message observed, letting a session.Manager track idle
// time without this package depending on that one.
func (b *Bridge) SetActivityHook(fn func()) {
	b.onActivity = fn
}

func (b *Bridge) touch() {
	if b.onActivity != nil {
		b.onActivity()
	}
}

// Close forces the client connection closed, unwinding Run through
// its normal client-disconnect path.
func (b *Bridge) Close() {
	b.clientConn.Close()
}

// Run wires the Gemini callbacks, starts the write pump, and blocks
// reading client messages until the connection closes.
func (b *Bridge) Run(ctx context.Context) {
	go b.writePump()
	b.setupCallbacks()
	b.proxy.StartReceiving(ctx)
	b.queueMessage(messages.NewStatusMessage(b.id, "connected", "Session established"))
	b.handleClientMessages()
	b.shutdown()
}

func (b *Bridge) setupCallbacks() {
	b.proxy.OnAudioRaw = func(base64Data string) {
		b.touch()
		b.queueMessage(messages.NewAudioMessage(b.id, base64Data))
	}
	b.proxy.OnText = func(text string) {
		b.touch()
		b.queueMessage(messages.NewTextMessage(b.id, text))
	}
	b.proxy.OnComplete = func() {
		b.touch()
		b.queueMessage(messages.NewStatusMessage(b.id, "turn_complete", ""))
	}
	b.proxy.OnError = func(err error) {
		log.Printf("❌ [%s] Gemini error: %v", b.id, err)
		b.queueMessage(messages.NewErrorMessage(b.id, messages.ErrCodeGeminiError, err.Error()))
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) ||
			websocket.IsUnexpectedCloseError(err) {
			b.Close()
		}
	}
	b.proxy.OnToolCall = func(calls []*genai.FunctionCall) {
		b.touch()
		b.handleToolCalls(calls)
	}
}

func (b *Bridge) handleClientMessages() {
	for {
		messageType, message, err := b.clientConn.ReadMessage()
		if err != nil {
			return
		}
		b.touch()

		if messageType == websocket.BinaryMessage {
			if err := b.audio.Append(message); err != nil {
				b.queueMessage(messages.NewErrorMessage(b.id, messages.ErrCodeBufferFull,
					fmt.Sprintf("audio buffer full (max %d bytes)", b.audio.MaxSize())))
			}
			continue
		}

		var msg messages.ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			b.queueMessage(messages.NewErrorMessage(b.id, messages.ErrCodeInvalidMessage, "invalid message format"))
			continue
		}
		b.processClientMessage(&msg)
	}
}

func (b *Bridge) processClientMessage(msg *messages.ClientMessage) {
	switch msg.Type {
	case "audio":
		var payload messages.AudioPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			b.queueMessage(messages.NewErrorMessage(b.id, messages.ErrCodeInvalidMessage, "invalid audio payload"))
			return
		}
		audioBytes, err := base64.StdEncoding.DecodeString(payload.Data)
		if err != nil {
			b.queueMessage(messages.NewErrorMessage(b.id, messages.ErrCodeInvalidMessage, "invalid base64 audio data"))
			return
		}
		if err := b.audio.Append(audioBytes); err != nil {
			b.queueMessage(messages.NewErrorMessage(b.id, messages.ErrCodeBufferFull,
				fmt.Sprintf("audio buffer full (max %d bytes)", b.audio.MaxSize())))
		}

	case "control":
		var payload messages.ControlPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			b.queueMessage(messages.NewErrorMessage(b.id, messages.ErrCodeInvalidMessage, "invalid control payload"))
			return
		}
		b.handleControlMessage(&payload)

	default:
		b.queueMessage(messages.NewErrorMessage(b.id, messages.ErrCodeInvalidMessage, "unknown message type: "+msg.Type))
	}
}

func (b *Bridge) handleControlMessage(payload *messages.ControlPayload) {
	switch payload.Action {
	case "ping":
		b.queueMessage(messages.NewStatusMessage(b.id, "pong", ""))
	case "end_turn":
		b.handleEndTurn()
	default:
		b.queueMessage(messages.NewErrorMessage(b.id, messages.ErrCodeInvalidMessage, "unknown control action: "+payload.Action))
	}
}

func (b *Bridge) handleEndTurn() {
	if b.audio.IsEmpty() {
		return
	}
	audioData := b.audio.Flush()
	log.Printf("📤 [%s] sending batched audio to Gemini: %d bytes", b.id, len(audioData))
	if err := b.proxy.SendAudioBatch(audioData); err != nil {
		log.Printf("❌ [%s] failed to send audio to Gemini: %v", b.id, err)
		b.queueMessage(messages.NewErrorMessage(b.id, messages.ErrCodeGeminiError, err.Error()))
	}
}

func (b *Bridge) handleToolCalls(calls []*genai.FunctionCall) {
	responses := make([]*genai.FunctionResponse, 0, len(calls))
	for _, fc := range calls {
		var response map[string]any
		switch fc.Name {
		case "GetBridgeInfoDocs":
			response = map[string]any{"output": functions.GetBridgeInfoDocs()}
		default:
			response = map[string]any{"error": fmt.Sprintf("unknown function: %s", fc.Name)}
		}
		responses = append(responses, &genai.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: response})
	}
	if err := b.proxy.SendToolResponse(responses); err != nil {
		log.Printf("❌ [%s] failed to send tool response: %v", b.id, err)
		b.queueMessage(messages.NewErrorMessage(b.id, messages.ErrCodeGeminiError, err.Error()))
	}
}

func (b *Bridge) queueMessage(msg any) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	select {
	case b.writeChan <- msg:
	default:
		log.Printf("⚠️ [%s] client write queue full, dropping message", b.id)
	}
}

func (b *Bridge) writePump() {
	defer func() {
		b.clientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
		b.clientConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()

	for {
		select {
		case <-b.closeChan:
			return
		case msg, ok := <-b.writeChan:
			if !ok {
				return
			}
			b.clientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := b.clientConn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func (b *Bridge) shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.writeChan)
	close(b.closeChan)
	b.audio.Clear()
	b.proxy.Close()
	b.clientConn.Close()
}
