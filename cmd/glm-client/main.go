package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
)

// glm-client is a minimal demo client for the pass-through bridge: it
// forwards whatever text you type verbatim as a WebSocket text frame
// and prints whatever comes back. Unlike the Doubao bridge, this mode
// applies no protocol of its own, so the demo applies none either.
func main() {
	serverURL := flag.String("server", "ws://localhost:3000/proxy", "WebSocket server URL")
	flag.Parse()

	log.Printf("connecting to %s", *serverURL)
	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()
	log.Println("connected, type a line and press enter to send it upstream")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				log.Println("read error:", err)
				return
			}
			if msgType == websocket.BinaryMessage {
				fmt.Printf("<- %d bytes of binary\n", len(data))
				continue
			}
			fmt.Printf("<- %s\n", data)
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case line, ok := <-lines:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				log.Println("write error:", err)
				return
			}
		}
	}
}
