// Package glm implements the degenerate pass-through bridge: a
// WebSocket proxy that forwards every client frame verbatim to a
// single upstream endpoint and every upstream frame verbatim back,
// attaching the Authorization header a browser cannot set itself.
package glm

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kaivoice/bridge/buffer"
)

// UpstreamURL is the fixed endpoint for the pass-through mode.
const UpstreamURL = "wss://open.bigmodel.cn/api/paas/v4/realtime"

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
)

// Dial opens the upstream connection with the single Authorization
// header this mode requires.
func Dial(apiKey string) (*websocket.Conn, *http.Response, error) {
	header := http.Header{}
	header.Set("Authorization", apiKey)

	conn, resp, err := websocket.DefaultDialer.Dial(UpstreamURL, header)
	if err != nil {
		return nil, resp, fmt.Errorf("glm: upstream dial failed: %w", err)
	}
	return conn, resp, nil
}

type pendingFrame struct {
	messageType int
	data        []byte
}

// Bridge is the pass-through Session Bridge: no protocol translation,
// just a pre-ready buffer (identical in shape to the Doubao bridge's)
// that parks client frames until the upstream socket is open.
type Bridge struct {
	id           string
	clientConn   *websocket.Conn
	upstreamConn *websocket.Conn
	apiKey       string

	buf *buffer.Queue

	upstreamOpen bool
	writeChan    chan pendingFrame
	closeChan    chan struct{}

	onActivity func()
}

// SetActivityHook registers a callback invoked once per frame observed
// in either direction, letting a session.Manager track idle time
// without this package depending on that one.
func (b *Bridge) SetActivityHook(fn func()) {
	b.onActivity = fn
}

// Close forces the client connection closed, unwinding Run/serve
// through their normal client-disconnect path.
func (b *Bridge) Close() {
	b.clientConn.Close()
}

func (b *Bridge) touch() {
	if b.onActivity != nil {
		b.onActivity()
	}
}

// NewBridge creates a Bridge for one freshly-upgraded client
// WebSocket.
func NewBridge(id string, clientConn *websocket.Conn, apiKey string, maxBufferSize int) *Bridge {
	clientConn.SetReadLimit(512 * 1024)
	return &Bridge{
		id:         id,
		clientConn: clientConn,
		apiKey:     apiKey,
		buf:        buffer.New(maxBufferSize),
		writeChan:  make(chan pendingFrame, writeBufferSize),
		closeChan:  make(chan struct{}),
	}
}

// Run dials upstream and shuttles frames until either side closes. The
// client reader starts immediately, before the upstream dial
// completes, so frames arriving during the handshake are parked in
// the pre-ready buffer and replayed the moment the upstream socket is
// open.
func (b *Bridge) Run() error {
	go b.writePump()

	clientFrames := make(chan pendingFrame, writeBufferSize)
	clientDone := make(chan error, 1)
	go b.readLoop(b.clientConn, clientFrames, clientDone)

	dialDone := make(chan struct{})
	var dialErr error
	go func() {
		conn, _, err := Dial(b.apiKey)
		if err == nil {
			b.upstreamConn = conn
		}
		dialErr = err
		close(dialDone)
	}()

	for {
		select {
		case f := <-clientFrames:
			b.touch()
			b.forwardToUpstream(f)
		case <-clientDone:
			b.shutdown()
			return nil
		case <-dialDone:
			if dialErr != nil {
				b.clientConn.WriteJSON(map[string]string{"type": "error", "error": dialErr.Error()})
				b.shutdown()
				return nil
			}
			return b.serve(clientFrames, clientDone)
		}
	}
}

// serve takes over once the upstream dial has succeeded: it drains
// whatever parked in the pre-ready buffer, starts the upstream reader,
// and shuttles frames both ways until either side closes.
func (b *Bridge) serve(clientFrames <-chan pendingFrame, clientDone <-chan error) error {
	b.upstreamOpen = true
	b.buf.Drain(func(it buffer.Item) {
		msgType, _ := it.Meta.(int)
		b.forwardToUpstream(pendingFrame{messageType: msgType, data: it.Bytes})
	})

	upstreamFrames := make(chan pendingFrame, writeBufferSize)
	upstreamDone := make(chan error, 1)
	go b.readLoop(b.upstreamConn, upstreamFrames, upstreamDone)

	for {
		select {
		case f := <-clientFrames:
			b.touch()
			b.forwardToUpstream(f)
		case f := <-upstreamFrames:
			b.touch()
			b.queueToClient(f)
		case <-clientDone:
			b.shutdown()
			return nil
		case <-upstreamDone:
			b.shutdown()
			return nil
		}
	}
}

func (b *Bridge) readLoop(conn *websocket.Conn, out chan<- pendingFrame, done chan<- error) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			done <- err
			return
		}
		out <- pendingFrame{messageType: msgType, data: data}
	}
}

func (b *Bridge) forwardToUpstream(f pendingFrame) {
	if !b.upstreamOpen {
		if err := b.buf.Push(buffer.Item{Kind: buffer.Raw, Bytes: f.data, Meta: f.messageType}); err != nil {
			log.Printf("⚠️ [%s] pre-ready buffer rejected frame: %v", b.id, err)
		}
		return
	}
	b.upstreamConn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := b.upstreamConn.WriteMessage(f.messageType, f.data); err != nil {
		log.Printf("⚠️ [%s] forward to upstream: %v", b.id, err)
	}
}

func (b *Bridge) queueToClient(f pendingFrame) {
	select {
	case b.writeChan <- f:
	default:
		log.Printf("⚠️ [%s] client write queue full, dropping frame", b.id)
	}
}

func (b *Bridge) writePump() {
	for {
		select {
		case <-b.closeChan:
			return
		case f, ok := <-b.writeChan:
			if !ok {
				return
			}
			b.clientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := b.clientConn.WriteMessage(f.messageType, f.data); err != nil {
				return
			}
		}
	}
}

func (b *Bridge) shutdown() {
	select {
	case <-b.closeChan:
		return
	default:
	}
	close(b.closeChan)
	close(b.writeChan)
	if b.upstreamConn != nil {
		b.upstreamConn.Close()
	}
	b.clientConn.Close()
}
