package doubao

import (
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/kaivoice/bridge/buffer"
)

const (
	writeBufferSize     = 256
	writeTimeout        = 10 * time.Second
	observeInterval     = 2 * time.Second
	lateResponseTimeout = 5 * time.Second
	shutdownDeferral    = 100 * time.Millisecond
)

// Bridge is the per-connection orchestrator that wires one client
// WebSocket to one upstream WebSocket. All of its state is touched
// exclusively from the brain loop, its single select loop, so no field
// needs a mutex.
type Bridge struct {
	id           string
	clientConn   *websocket.Conn
	upstreamConn *websocket.Conn
	creds        Credentials

	session *Session
	sm      *StateMachine

	writeChan chan clientWrite
	closeChan chan struct{}

	onActivity func()
}

// SetActivityHook registers a callback invoked once per message
// observed in either direction, letting a session.Manager track idle
// time without this package depending on that one.
func (b *Bridge) SetActivityHook(fn func()) {
	b.onActivity = fn
}

// Close forces the client connection closed, which unwinds the brain
// loop through its normal client-disconnect path (graceful upstream
// shutdown sequence included). Safe to call from outside the brain
// loop, e.g. from an idle-session reaper.
func (b *Bridge) Close() {
	b.clientConn.Close()
}

type clientWrite struct {
	binary []byte
	json   any
}

// NewBridge creates a Bridge for one freshly-upgraded client
// WebSocket. Call Run to dial upstream and start shuttling frames; Run
// blocks until the session ends.
func NewBridge(id string, clientConn *websocket.Conn, creds Credentials, maxBufferSize int) *Bridge {
	clientConn.SetReadLimit(512 * 1024)

	return &Bridge{
		id:         id,
		clientConn: clientConn,
		creds:      creds,
		session:    NewSession(maxBufferSize),
		sm:         NewStateMachine(),
		writeChan:  make(chan clientWrite, writeBufferSize),
		closeChan:  make(chan struct{}),
	}
}

// Run dials the upstream dialogue endpoint, starts the reader
// goroutines, and runs the brain loop until the session ends. It
// always returns nil after the client connection has been closed;
// errors are logged, not propagated, matching this protocol's
// never-retry recovery policy.
func (b *Bridge) Run() error {
	conn, _, err := Dial(b.creds)
	if err != nil {
		b.sendClientError(fmt.Sprintf("服务器连接错误: %v", err))
		b.clientConn.Close()
		return nil
	}
	return b.serve(conn)
}

// serve runs the session against an already-established upstream
// connection. Splitting this out of Run lets tests supply a fake
// upstream without reaching the real dialogue endpoint.
func (b *Bridge) serve(conn *websocket.Conn) error {
	b.upstreamConn = conn
	b.sm.Transition(StateConnecting)

	go b.writePump()

	clientEvents := make(chan clientEvent, writeBufferSize)
	upstreamFrames := make(chan []byte, writeBufferSize)
	go b.readClient(clientEvents)
	go b.readUpstream(upstreamFrames)

	if err := b.sendUpstreamStartConnection(); err != nil {
		log.Printf("⚠️ [%s] start connection failed: %v", b.id, err)
	}

	b.brain(clientEvents, upstreamFrames)
	return nil
}

type clientEvent struct {
	binary bool
	data   []byte
	err    error
}

func (b *Bridge) brain(clientEvents <-chan clientEvent, upstreamFrames <-chan []byte) {
	observeTicker := time.NewTicker(observeInterval)
	defer observeTicker.Stop()

	lateTimer := time.NewTimer(lateResponseTimeout)
	defer lateTimer.Stop()
	gotFirstResponse := false

	for {
		select {
		case ev, ok := <-clientEvents:
			if !ok || ev.err != nil {
				b.shutdown()
				return
			}
			b.touch()
			if ev.binary {
				b.handleClientAudio(ev.data)
			} else {
				b.handleClientJSON(ev.data)
			}

		case raw, ok := <-upstreamFrames:
			if !ok {
				b.sendClientError("服务器连接关闭: upstream closed")
				b.closeClientWith(websocket.CloseNormalClosure, "Server connection closed")
				return
			}
			b.touch()
			gotFirstResponse = true
			if b.sm.IsTerminal() {
				return
			}
			b.handleUpstreamFrame(raw)
			if b.sm.IsTerminal() {
				return
			}

		case <-observeTicker.C:
			log.Printf("🩺 [%s] state=%s connEstablished=%v sessionActive=%v pendingConn=%d pendingSession=%d msgs=%d",
				b.id, b.sm.Current(), b.ConnectionEstablished(), b.SessionActive(),
				b.session.PendingConnectionCount(), b.session.PendingAudioCount(), b.session.MessageCount)

		case <-lateTimer.C:
			if !gotFirstResponse {
				log.Printf("⏱️ [%s] no upstream response 5s after connection open", b.id)
			}
		}
	}
}

func (b *Bridge) touch() {
	if b.onActivity != nil {
		b.onActivity()
	}
}

// ConnectionEstablished reports true iff CONNECTION_STARTED has been
// observed, derived from the state machine.
func (b *Bridge) ConnectionEstablished() bool {
	switch b.sm.Current() {
	case StateConnected, StateSessionStarting, StateSessionActive, StateSessionEnding:
		return true
	default:
		return false
	}
}

// SessionActive reports true while the state machine is in
// SESSION_ACTIVE: after SESSION_STARTED has been observed and before
// FINISH_SESSION has been sent or the session has closed.
func (b *Bridge) SessionActive() bool {
	return b.sm.Current() == StateSessionActive
}

func (b *Bridge) readClient(out chan<- clientEvent) {
	defer close(out)
	for {
		msgType, data, err := b.clientConn.ReadMessage()
		if err != nil {
			out <- clientEvent{err: err}
			return
		}
		out <- clientEvent{binary: msgType == websocket.BinaryMessage, data: data}
	}
}

func (b *Bridge) readUpstream(out chan<- []byte) {
	defer close(out)
	for {
		_, data, err := b.upstreamConn.ReadMessage()
		if err != nil {
			return
		}
		out <- data
	}
}

func (b *Bridge) writePump() {
	for {
		select {
		case <-b.closeChan:
			return
		case w, ok := <-b.writeChan:
			if !ok {
				return
			}
			b.clientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
			var err error
			if w.binary != nil {
				err = b.clientConn.WriteMessage(websocket.BinaryMessage, w.binary)
			} else {
				err = b.clientConn.WriteJSON(w.json)
			}
			if err != nil {
				return
			}
		}
	}
}

func (b *Bridge) queueJSON(msg any) {
	select {
	case b.writeChan <- clientWrite{json: msg}:
	default:
		log.Printf("⚠️ [%s] client write queue full, dropping message", b.id)
	}
}

func (b *Bridge) queueBinary(data []byte) {
	select {
	case b.writeChan <- clientWrite{binary: data}:
	default:
		log.Printf("⚠️ [%s] client write queue full, dropping audio frame", b.id)
	}
}

func (b *Bridge) sendClientError(errText string) {
	b.queueJSON(newErrorMessage(errText, nil))
}

func (b *Bridge) closeClientWith(code int, text string) {
	close(b.closeChan)
	b.clientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
	b.clientConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
	b.clientConn.Close()
}

// --- inbound: client -> upstream ---

func (b *Bridge) handleClientJSON(data []byte) {
	var msg ClientMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		log.Printf("⚠️ [%s] dropping malformed client message: %v", b.id, err)
		return
	}
	b.session.MessageCount++

	switch msg.Type {
	case ClientStartSession:
		b.handleStartSession(msg)
	case ClientAudioData:
		raw, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			log.Printf("⚠️ [%s] dropping audio_data with invalid base64: %v", b.id, err)
			return
		}
		b.routeAudio(raw)
	case ClientTextInput:
		b.handleTextInput(msg.Text)
	case ClientFinishSession:
		b.sendUpstreamFinishSession()
	case ClientFinishConnection:
		b.sendUpstreamFinishConnection()
	default:
		log.Printf("⚠️ [%s] dropping unknown client message type %q", b.id, msg.Type)
	}
}

func (b *Bridge) handleClientAudio(data []byte) {
	b.session.MessageCount++
	b.routeAudio(data)
}

func (b *Bridge) routeAudio(data []byte) {
	if b.SessionActive() {
		if err := b.sendUpstreamTaskRequestAudio(data); err != nil {
			log.Printf("⚠️ [%s] send audio task request: %v", b.id, err)
		}
		return
	}
	if b.sm.IsTerminal() {
		log.Printf("⚠️ [%s] dropping audio chunk, upstream is closed", b.id)
		return
	}
	if err := b.session.BufferBinaryAudio(data); err != nil {
		log.Printf("⚠️ [%s] pre-ready buffer rejected audio chunk: %v", b.id, err)
	}
}

func (b *Bridge) handleStartSession(msg ClientMessage) {
	cfg := DefaultSessionConfig()
	if msg.SystemMessage != "" {
		cfg.Dialog.SystemRole = msg.SystemMessage
		b.session.SystemRole = msg.SystemMessage
	}
	if msg.Model != "" {
		cfg.Dialog.Model = msg.Model
		b.session.Model = msg.Model
	}
	if msg.SessionID != "" {
		b.session.ID = msg.SessionID
	}

	if b.ConnectionEstablished() {
		if err := b.sendUpstreamStartSession(cfg); err != nil {
			log.Printf("⚠️ [%s] send start session: %v", b.id, err)
		}
		return
	}
	b.session.PendingStartSession = &cfg
}

func (b *Bridge) handleTextInput(text string) {
	if b.SessionActive() {
		if err := b.sendUpstreamTaskRequestText(text); err != nil {
			log.Printf("⚠️ [%s] send text task request: %v", b.id, err)
		}
		return
	}
	if err := b.session.BufferTextInput(text); err != nil {
		log.Printf("⚠️ [%s] pre-ready buffer rejected text input: %v", b.id, err)
	}
}

// --- outbound frames to upstream ---

func (b *Bridge) sendUpstream(msgType MessageType, flags byte, eventID *EventID, sessionID *string, payload any) error {
	encoded, err := EncodeFrame(msgType, flags, eventID, sessionID, nil, payload, true)
	if err != nil {
		return err
	}
	b.upstreamConn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return b.upstreamConn.WriteMessage(websocket.BinaryMessage, encoded)
}

func (b *Bridge) sendUpstreamStartConnection() error {
	ev := EventStartConnection
	return b.sendUpstream(MsgFullClientRequest, FlagHasEvent, &ev, nil, map[string]any{})
}

func (b *Bridge) sendUpstreamStartSession(cfg SessionConfig) error {
	ev := EventStartSession
	sid := b.session.ID
	if err := b.sendUpstream(MsgFullClientRequest, FlagHasEvent, &ev, &sid, cfg); err != nil {
		return err
	}
	b.sm.Transition(StateSessionStarting)
	return nil
}

func (b *Bridge) sendUpstreamTaskRequestAudio(pcm []byte) error {
	ev := EventTaskRequest
	sid := b.session.ID
	encoded, err := EncodeFrame(MsgAudioOnlyRequest, FlagHasEvent, &ev, &sid, nil, pcm, true)
	if err != nil {
		return err
	}
	b.upstreamConn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return b.upstreamConn.WriteMessage(websocket.BinaryMessage, encoded)
}

func (b *Bridge) sendUpstreamTaskRequestText(text string) error {
	ev := EventTaskRequest
	sid := b.session.ID
	return b.sendUpstream(MsgFullClientRequest, FlagHasEvent, &ev, &sid, newTaskRequestTextPayload(text))
}

func (b *Bridge) sendUpstreamFinishSession() error {
	if !b.SessionActive() {
		return nil
	}
	ev := EventFinishSession
	sid := b.session.ID
	if err := b.sendUpstream(MsgFullClientRequest, FlagHasEvent, &ev, &sid, map[string]any{}); err != nil {
		return err
	}
	b.sm.Transition(StateSessionEnding)
	return nil
}

func (b *Bridge) sendUpstreamFinishConnection() error {
	ev := EventFinishConnection
	return b.sendUpstream(MsgFullClientRequest, FlagHasEvent, &ev, nil, map[string]any{})
}

// shutdown runs the graceful-close sequence: best-effort
// FINISH_SESSION, a 100ms deferral, FINISH_CONNECTION, then close the
// upstream socket.
func (b *Bridge) shutdown() {
	if b.sm.IsTerminal() {
		return
	}
	if err := b.sendUpstreamFinishSession(); err != nil {
		log.Printf("⚠️ [%s] finish session on shutdown: %v", b.id, err)
	}
	time.Sleep(shutdownDeferral)
	if err := b.sendUpstreamFinishConnection(); err != nil {
		log.Printf("⚠️ [%s] finish connection on shutdown: %v", b.id, err)
	}
	b.sm.Transition(StateClosed)
	b.upstreamConn.Close()
	b.clientConn.Close()
	close(b.closeChan)
	close(b.writeChan)
}

// --- outbound: upstream -> client ---

func (b *Bridge) handleUpstreamFrame(raw []byte) {
	frame, err := DecodeFrame(raw)
	if err != nil {
		log.Printf("⚠️ [%s] dropping undecodable upstream frame: %v", b.id, err)
		return
	}

	alreadyForwarded := false
	if frame.Serialization == SerializationNone && frame.Payload.Kind == PayloadBinary {
		b.queueBinary(frame.Payload.Bytes)
		alreadyForwarded = true
		if frame.MessageType == MsgServerACK {
			return
		}
	}

	if frame.MessageType == MsgErrorInfo {
		b.handleErrorInfo(frame)
		return
	}

	if frame.EventID == nil {
		return
	}

	switch *frame.EventID {
	case EventConnectionStarted:
		b.onConnectionStarted()
	case EventConnectionFailed:
		b.sendClientError(errorFieldOrText(frame.Payload))
	case EventSessionStarted:
		b.onSessionStarted(frame)
	case EventSessionFailed:
		b.sendClientError(errorFieldOrText(frame.Payload))
	case EventASRInfo:
		b.queueJSON(newSpeechStartedMessage(stringField(frame.Payload, "question_id")))
	case EventASRResponse:
		b.queueJSON(newASRResponseMessage(frame.Payload.JSON))
	case EventASREnded:
		log.Printf("📝 [%s] ASR ended", b.id)
	case EventTTSResponse:
		if !alreadyForwarded {
			b.queueBinary(frame.Payload.Bytes)
		}
	case EventChatResponse:
		b.queueJSON(newChatResponseMessage(
			stringField(frame.Payload, "content"),
			stringField(frame.Payload, "question_id"),
			stringField(frame.Payload, "reply_id"),
		))
	case EventChatEnded:
		b.queueJSON(newChatEndedMessage(
			stringField(frame.Payload, "question_id"),
			stringField(frame.Payload, "reply_id"),
		))
	case EventSessionFinished:
		log.Printf("✅ [%s] session finished", b.id)
	case EventConnectionFinished:
		log.Printf("✅ [%s] connection finished", b.id)
	default:
		log.Printf("⚠️ [%s] dropping frame with unrecognized eventId %d", b.id, *frame.EventID)
	}
}

func (b *Bridge) onConnectionStarted() {
	b.sm.Transition(StateConnected)

	if b.session.PendingStartSession != nil {
		cfg := *b.session.PendingStartSession
		b.session.PendingStartSession = nil
		if err := b.sendUpstreamStartSession(cfg); err != nil {
			log.Printf("⚠️ [%s] send pending start session: %v", b.id, err)
		}
	}

	b.session.DrainConnectionGate(func(it buffer.Item) {
		if it.Kind != buffer.SessionStart {
			return
		}
		cfg, ok := it.Meta.(SessionConfig)
		if !ok {
			return
		}
		if err := b.sendUpstreamStartSession(cfg); err != nil {
			log.Printf("⚠️ [%s] send buffered start session: %v", b.id, err)
		}
	})
}

func (b *Bridge) onSessionStarted(frame *Frame) {
	if frame.SessionID != "" {
		b.session.ID = frame.SessionID
	}
	b.sm.Transition(StateSessionActive)
	b.queueJSON(newSessionStartedMessage(b.session.ID))

	b.session.DrainSessionGate(func(it buffer.Item) {
		switch it.Kind {
		case buffer.BinaryAudio:
			if err := b.sendUpstreamTaskRequestAudio(it.Bytes); err != nil {
				log.Printf("⚠️ [%s] send buffered audio: %v", b.id, err)
			}
		case buffer.Base64Audio:
			raw, err := base64.StdEncoding.DecodeString(it.Text)
			if err != nil {
				log.Printf("⚠️ [%s] buffered audio_data had invalid base64: %v", b.id, err)
				return
			}
			if err := b.sendUpstreamTaskRequestAudio(raw); err != nil {
				log.Printf("⚠️ [%s] send buffered audio_data: %v", b.id, err)
			}
		case buffer.TextInput:
			if err := b.sendUpstreamTaskRequestText(it.Text); err != nil {
				log.Printf("⚠️ [%s] send buffered text: %v", b.id, err)
			}
		}
	})
}

func (b *Bridge) handleErrorInfo(frame *Frame) {
	msg := errorFieldOrText(frame.Payload)
	var details map[string]any
	if frame.Payload.Kind == PayloadJSON {
		details = frame.Payload.JSON
	}
	b.queueJSON(newErrorMessage(fmt.Sprintf("服务器错误: %s", msg), details))
}

func errorFieldOrText(p Payload) string {
	if p.Kind == PayloadJSON {
		if v, ok := p.JSON["error"].(string); ok {
			return v
		}
		if v, ok := p.JSON["message"].(string); ok {
			return v
		}
	}
	return p.Text
}

func stringField(p Payload, key string) string {
	if p.Kind != PayloadJSON {
		return ""
	}
	v, _ := p.JSON[key].(string)
	return v
}
