package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kaivoice/bridge/config"
	"github.com/kaivoice/bridge/server"
	"github.com/kaivoice/bridge/session"
)

type startStopper interface {
	Start() error
	Shutdown(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	manager := session.NewManager(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.StartCleanupRoutine(ctx)

	servers := []startStopper{
		server.NewDoubaoServer(cfg, manager),
		server.NewGLMServer(cfg, manager),
	}

	if cfg.GeminiAPIKey != "" {
		log.Println("🔮 GEMINI_API_KEY set, starting supplemental Gemini demo bridge")
		servers = append(servers, server.NewGeminiServer(cfg, manager))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("\nReceived shutdown signal...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		manager.Shutdown(shutdownCtx)
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				log.Printf("server shutdown error: %v", err)
			}
		}
	}()

	errChan := make(chan error, len(servers))
	for _, s := range servers {
		s := s
		go func() {
			if err := s.Start(); err != nil && err.Error() != "http: Server closed" {
				errChan <- err
				return
			}
			errChan <- nil
		}()
	}

	for range servers {
		if err := <-errChan; err != nil {
			log.Printf("server error: %v", err)
		}
	}

	log.Println("Server stopped")
}
