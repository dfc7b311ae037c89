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
	"github.com/kaivoice/bridge/doubao"
	"github.com/kaivoice/bridge/session"
)

// DoubaoServer is the Proxy Shell for the stateful Doubao bridge: it
// accepts client upgrades on /doubao-proxy and hands each one a fresh
// doubao.Bridge.
type DoubaoServer struct {
	httpServer *http.Server
	upgrader   websocket.Upgrader
	manager    *session.Manager
	cfg        *config.Config
}

func NewDoubaoServer(cfg *config.Config, manager *session.Manager) *DoubaoServer {
	s := &DoubaoServer{
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
	mux.HandleFunc("/doubao-proxy", s.handleUpgrade)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.DoubaoPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *DoubaoServer) Start() error {
	log.Printf("🚀 Doubao bridge starting on port %d", s.cfg.DoubaoPort)
	log.Printf("📡 WebSocket endpoint: ws://localhost:%d/doubao-proxy", s.cfg.DoubaoPort)
	return s.httpServer.ListenAndServe()
}

func (s *DoubaoServer) Shutdown(ctx context.Context) error {
	log.Println("🛑 Shutting down Doubao bridge...")
	return s.httpServer.Shutdown(ctx)
}

func (s *DoubaoServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !s.manager.AdmitNew() {
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ Doubao WebSocket upgrade failed: %v", err)
		s.manager.Release()
		return
	}

	id := uuid.New().String()
	creds := doubao.Credentials{
		AppID:     s.cfg.DoubaoAppID,
		AccessKey: s.cfg.DoubaoAccessKey,
		SecretKey: s.cfg.DoubaoSecretKey,
	}
	bridge := doubao.NewBridge(id, conn, creds, s.cfg.MaxBufferSize)
	bridge.SetActivityHook(func() { s.manager.Touch(id) })

	s.manager.Register(id, "doubao", bridge.Close)
	defer func() {
		s.manager.Unregister(id)
		s.manager.Release()
	}()

	log.Printf("✅ [%s] Doubao session started", id)
	bridge.Run()
	log.Printf("🔌 [%s] Doubao session closed", id)
}

func (s *DoubaoServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","mode":"doubao","sessions":%d}`, s.manager.ActiveCount())
}

func allowedOriginChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}
