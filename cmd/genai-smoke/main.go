package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/kaivoice/bridge/gemini"
)

func main() {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal("GEMINI_API_KEY not set")
	}

	ctx := context.Background()
	proxy, err := gemini.NewProxy(ctx, apiKey)
	if err != nil {
		log.Fatalf("Failed to create proxy: %v", err)
	}
	defer proxy.Close()

	// Set up callbacks
	proxy.OnAudioRaw = func(base64Data string) {
		log.Printf("🔊 Received audio: %d base64 chars", len(base64Data))
	}
	proxy.OnText = func(text string) {
		log.Printf("💬 Received text: %s", text)
	}
	proxy.OnComplete = func() {
		log.Println("✅ Turn complete")
	}
	proxy.OnError = func(err error) {
		log.Printf("❌ Error: %v", err)
	}

	// Setup session (no tools for this test)
	err = proxy.Setup(ctx, "You are a helpful assistant. Keep responses brief.", nil)
	if err != nil {
		log.Fatalf("Failed to setup: %v", err)
	}

	// Start receiving
	proxy.StartReceiving(ctx)

	// Send a text message
	err = proxy.SendText("Hello! Say hi back in one sentence.")
	if err != nil {
		log.Fatalf("Failed to send text: %v", err)
	}

	// Wait for response
	log.Println("Waiting for response...")
	time.Sleep(10 * time.Second)
	log.Println("Done")
}
