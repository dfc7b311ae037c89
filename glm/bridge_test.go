package glm

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// testRig wires a Bridge between two in-process WebSocket pairs,
// bypassing Dial (see Bridge.serve) the same way the Doubao package's
// tests bypass its dial logic.
type testRig struct {
	t            *testing.T
	clientSide   *websocket.Conn // test's handle on the client side
	upstreamSide *websocket.Conn // test's handle on the upstream side
	bridge       *Bridge
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	var bridgeClientConn, bridgeUpstreamConn *websocket.Conn
	ready := make(chan struct{}, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade %s: %v", r.URL.Path, err)
			return
		}
		switch r.URL.Path {
		case "/client":
			bridgeClientConn = conn
		case "/upstream":
			bridgeUpstreamConn = conn
		}
		ready <- struct{}{}
		<-make(chan struct{}) // keep the handler (and conn) alive for the test's duration
	}))
	t.Cleanup(srv.Close)

	base := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientSide, _, err := websocket.DefaultDialer.Dial(base+"/client", nil)
	if err != nil {
		t.Fatalf("dial /client: %v", err)
	}
	t.Cleanup(func() { clientSide.Close() })

	upstreamSide, _, err := websocket.DefaultDialer.Dial(base+"/upstream", nil)
	if err != nil {
		t.Fatalf("dial /upstream: %v", err)
	}
	t.Cleanup(func() { upstreamSide.Close() })

	<-ready
	<-ready

	bridge := NewBridge("test-session", bridgeClientConn, "test-api-key", 64<<10)

	clientFrames := make(chan pendingFrame, writeBufferSize)
	clientDone := make(chan error, 1)
	go bridge.readLoop(bridge.clientConn, clientFrames, clientDone)
	go bridge.writePump()

	bridge.upstreamConn = bridgeUpstreamConn
	go bridge.serve(clientFrames, clientDone)

	return &testRig{t: t, clientSide: clientSide, upstreamSide: upstreamSide, bridge: bridge}
}

func TestForwardsClientFrameVerbatim(t *testing.T) {
	r := newTestRig(t)

	msg := []byte(`{"type":"input_audio_buffer.append"}`)
	r.clientSide.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := r.clientSide.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write from client test side: %v", err)
	}

	r.upstreamSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := r.upstreamSide.ReadMessage()
	if err != nil {
		t.Fatalf("read forwarded frame on upstream side: %v", err)
	}
	if string(data) != string(msg) {
		t.Fatalf("forwarded = %q, want %q", data, msg)
	}
}

func TestForwardsUpstreamFrameVerbatim(t *testing.T) {
	r := newTestRig(t)

	msg := []byte(`{"type":"response.audio.delta"}`)
	r.upstreamSide.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := r.upstreamSide.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write from upstream test side: %v", err)
	}

	r.clientSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := r.clientSide.ReadMessage()
	if err != nil {
		t.Fatalf("read forwarded frame on client side: %v", err)
	}
	if string(data) != string(msg) {
		t.Fatalf("forwarded = %q, want %q", data, msg)
	}
}

func TestBinaryFrameForwardedVerbatim(t *testing.T) {
	r := newTestRig(t)

	pcm := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	r.clientSide.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := r.clientSide.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		t.Fatalf("write binary from client test side: %v", err)
	}

	r.upstreamSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := r.upstreamSide.ReadMessage()
	if err != nil {
		t.Fatalf("read forwarded binary frame: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("msgType = %d, want BinaryMessage", msgType)
	}
	if string(data) != string(pcm) {
		t.Fatalf("forwarded = %v, want %v", data, pcm)
	}
}
