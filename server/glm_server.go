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
	"github.com/kaivoice/bridge/glm"
	"github.com/kaivoice/bridge/session"
)

// GLMServer is the Proxy Shell for the degenerate pass-through mode:
// it accepts client upgrades on /proxy and hands each one a fresh
// glm.Bridge.
type GLMServer struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	manager    *session.Manager
	cfg        *config.Config
}

func NewGLMServer(cfg *config.Config, manager *session.Manager) *GLMServer {
	s := &GLMServer{
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
	mux.HandleFunc("/proxy", s.handleUpgrade)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.GLMPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *GLMServer) Start() error {
	log.Printf("🚀 GLM bridge starting on port %d", s.cfg.GLMPort)
	log.Printf("📡 WebSocket endpoint: ws://localhost:%d/proxy", s.cfg.GLMPort)
	return s.httpServer.ListenAndServe()
}

func (s *GLMServer) Shutdown(ctx context.Context) error {
	log.Println("🛑 Shutting down GLM bridge...")
	return s.httpServer.Shutdown(ctx)
}

func (s *GLMServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !s.manager.AdmitNew() {
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ GLM WebSocket upgrade failed: %v", err)
		s.manager.Release()
		return
	}

	id := uuid.New().String()
	bridge := glm.NewBridge(id, conn, s.cfg.GLMAPIKey, s.cfg.MaxBufferSize)
	bridge.SetActivityHook(func() { s.manager.Touch(id) })

	s.manager.Register(id, "glm", bridge.Close)
	defer func() {
		s.manager.Unregister(id)
		s.manager.Release()
	}()

	log.Printf("✅ [%s] GLM session started", id)
	bridge.Run()
	log.Printf("🔌 [%s] GLM session closed", id)
}

func (s *GLMServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","mode":"glm","sessions":%d}`, s.manager.ActiveCount())
}
