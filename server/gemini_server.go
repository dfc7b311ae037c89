package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kaivoice/bridge/config"
	"github.com/kaivoice/bridge/gemini"
	"github.com/kaivoice/bridge/session"
)

// GeminiServer is the Proxy Shell for the supplemental Gemini Live
// demo bridge: it accepts client upgrades on /ws and hands each one a
// fresh gemini.Bridge. Only started when cfg.GeminiAPIKey is set.
type GeminiServer struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	manager    *session.Manager
	cfg        *config.Config
}

func NewGeminiServer(cfg *config.Config, manager *session.Manager) *GeminiServer {
	s := &GeminiServer{
		manager: manager,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    64 * 1024,
			WriteBufferSize:   64 * 1024,
			EnableCompression: true,
			CheckOrigin:       allowedOriginChecker(cfg.AllowedOrigins),
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.GeminiPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *GeminiServer) Start() error {
	log.Printf("🚀 Gemini demo bridge starting on port %d", s.cfg.GeminiPort)
	log.Printf("📡 WebSocket endpoint: ws://localhost:%d/ws", s.cfg.GeminiPort)
	return s.httpServer.ListenAndServe()
}

func (s *GeminiServer) Shutdown(ctx context.Context) error {
	log.Println("🛑 Shutting down Gemini demo bridge...")
	return s.httpServer.Shutdown(ctx)
}

func (s *GeminiServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !s.manager.AdmitNew() {
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ Gemini WebSocket upgrade failed: %v", err)
		s.manager.Release()
		return
	}

	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridge, err := gemini.NewBridge(ctx, id, conn, s.cfg.GeminiAPIKey, s.cfg.MaxBufferSize)
	if err != nil {
		log.Printf("⚠️ [%s] failed to start Gemini session: %v", id, err)
		conn.Close()
		s.manager.Release()
		return
	}
	bridge.SetActivityHook(func() { s.manager.Touch(id) })

	s.manager.Register(id, "gemini", bridge.Close)
	defer func() {
		s.manager.Unregister(id)
		s.manager.Release()
	}()

	log.Printf("✅ [%s] Gemini session started", id)
	bridge.Run(ctx)
	log.Printf("🔌 [%s] Gemini session closed", id)
}

func (s *GeminiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","mode":"gemini","sessions":%d}`, s.manager.ActiveCount())
}
