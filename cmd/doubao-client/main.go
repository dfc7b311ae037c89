package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// clientMessage mirrors doubao.ClientMessage's wire shape without
// importing the internal package.
type clientMessage struct {
	Type          string `json:"type"`
	SessionID     string `json:"sessionId,omitempty"`
	SystemMessage string `json:"systemMessage,omitempty"`
	Model         string `json:"model,omitempty"`
	Text          string `json:"text,omitempty"`
}

// serverMessage mirrors doubao.ServerMessage's wire shape.
type serverMessage struct {
	Type       string          `json:"type"`
	SessionID  string          `json:"session_id,omitempty"`
	DialogID   string          `json:"dialog_id,omitempty"`
	Error      string          `json:"error,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	QuestionID string          `json:"question_id,omitempty"`
	ReplyID    string          `json:"reply_id,omitempty"`
	Content    string          `json:"content,omitempty"`
	Results    json.RawMessage `json:"results,omitempty"`
}

// audioPlayer streams 24kHz PCM to the speakers via sox.
type audioPlayer struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	mu     sync.Mutex
	closed bool
}

func newAudioPlayer() *audioPlayer {
	cmd := exec.Command("sox",
		"-t", "raw",
		"-r", "24000",
		"-b", "16",
		"-c", "1",
		"-e", "signed-integer",
		"-",
		"-d",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		log.Println("sox stdin error:", err)
		return nil
	}
	if err := cmd.Start(); err != nil {
		log.Println("sox start error:", err)
		return nil
	}
	return &audioPlayer{cmd: cmd, stdin: stdin}
}

func (p *audioPlayer) play(pcm []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.stdin == nil {
		return
	}
	p.stdin.Write(pcm)
}

func (p *audioPlayer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.stdin != nil {
		p.stdin.Close()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Wait()
	}
}

func main() {
	serverURL := flag.String("server", "ws://localhost:3001/doubao-proxy", "WebSocket server URL")
	audioFile := flag.String("file", "examples/user.pcm", "16kHz mono PCM file to stream as the turn's audio")
	systemMsg := flag.String("system", "You are a helpful voice assistant.", "system prompt for start_session")
	text := flag.String("text", "", "send a text turn instead of streaming audio")
	flag.Parse()

	log.Printf("connecting to %s", *serverURL)
	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()
	log.Println("connected")

	player := newAudioPlayer()
	if player == nil {
		log.Fatal("failed to create audio player (is sox installed?)")
	}
	defer player.close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msgType, message, err := conn.ReadMessage()
			if err != nil {
				log.Println("read error:", err)
				return
			}

			if msgType == websocket.BinaryMessage {
				player.play(message)
				continue
			}

			var msg serverMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				log.Println("parse error:", err)
				continue
			}

			switch msg.Type {
			case "session_started":
				log.Printf("session started: %s", msg.SessionID)
			case "speech_started":
				log.Printf("speech started, question %s", msg.QuestionID)
			case "asr_response":
				log.Printf("asr: %s", string(msg.Results))
			case "chat_response":
				log.Printf("assistant: %s", msg.Content)
			case "chat_ended":
				log.Println("--- turn complete ---")
			case "error":
				log.Printf("server error: %s %s", msg.Error, string(msg.Details))
			}
		}
	}()

	start := clientMessage{Type: "start_session", SystemMessage: *systemMsg, Model: "doubao"}
	if err := conn.WriteJSON(start); err != nil {
		log.Fatalf("failed to send start_session: %v", err)
	}

	if *text != "" {
		if err := conn.WriteJSON(clientMessage{Type: "text_input", Text: *text}); err != nil {
			log.Printf("send error: %v", err)
		}
	} else {
		log.Printf("streaming audio file: %s", *audioFile)
		pcm, err := os.ReadFile(*audioFile)
		if err != nil {
			log.Fatalf("failed to load audio: %v", err)
		}

		chunkSize := 3200 // 100ms at 16kHz mono s16le
		for i := 0; i < len(pcm); i += chunkSize {
			end := i + chunkSize
			if end > len(pcm) {
				end = len(pcm)
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, pcm[i:end]); err != nil {
				log.Printf("send error: %v", err)
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
		log.Println("audio sent, waiting for response")
	}

	select {
	case <-done:
		log.Println("connection closed")
	case <-interrupt:
		log.Println("interrupted, closing")
		conn.WriteJSON(clientMessage{Type: "finish_connection"})
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	case <-time.After(30 * time.Second):
		log.Println("timeout waiting for response")
	}
}
