package doubao

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// UpstreamURL is the fixed endpoint of the upstream dialogue protocol.
const UpstreamURL = "wss://openspeech.bytedance.com/api/v3/realtime/dialogue"

const appKey = "PlgvMymc7f3tQnJ6"

// Credentials holds the three values the upstream handshake requires.
type Credentials struct {
	AppID     string
	AccessKey string
	SecretKey string
}

// Dial opens the upstream WebSocket connection, attaching the
// authentication headers a browser could never attach itself. The
// SecretKey is accepted for parity with the credentials struct but the
// upstream handshake observed in this protocol generation only uses
// AppID and AccessKey on the wire; it is kept on Credentials so a
// future signing scheme has somewhere to live.
func Dial(creds Credentials) (*websocket.Conn, *http.Response, error) {
	header := http.Header{}
	header.Set("X-Api-App-ID", creds.AppID)
	header.Set("X-Api-Access-Key", creds.AccessKey)
	header.Set("X-Api-Resource-Id", "volc.speech.dialog")
	header.Set("X-Api-App-Key", appKey)
	header.Set("X-Api-Connect-Id", connectID())

	conn, resp, err := websocket.DefaultDialer.Dial(UpstreamURL, header)
	if err != nil {
		return nil, resp, fmt.Errorf("doubao: upstream dial failed: %w", err)
	}
	return conn, resp, nil
}

// connectID builds the "client_<epoch_ms>_<random9>" value the upstream
// expects on every handshake.
func connectID() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000_000))
	if err != nil {
		n = big.NewInt(0)
	}
	return fmt.Sprintf("client_%d_%09d", time.Now().UnixMilli(), n.Int64())
}
