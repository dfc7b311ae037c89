// Package session tracks live bridge sessions across every listener
// this process runs (Doubao, GLM, and the supplemental Gemini Live
// bridge), independent of any one bridge's wire protocol.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kaivoice/bridge/config"
)

const cleanupInterval = 1 * time.Minute

type entry struct {
	mode         string
	closer       func()
	startedAt    time.Time
	lastActivity time.Time
}

// Manager enforces the process-wide session cap and reaps idle
// sessions, tracked independently of any one bridge's wire protocol.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	reserved int

	redis *redis.Client
	cfg   *config.Config
}

// NewManager creates a Manager and best-effort connects to Redis; if
// Redis is unreachable within 5s, bookkeeping proceeds without it.
func NewManager(cfg *config.Config) *Manager {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️ Redis unavailable, session registry running without it: %v", err)
		client = nil
	}

	return &Manager{
		sessions: make(map[string]*entry),
		redis:    client,
		cfg:      cfg,
	}
}

// AdmitNew reserves a capacity slot, returning false if the process is
// already at cfg.MaxSessions. Call Register on success or Release if
// the connection is abandoned before Register.
func (m *Manager) AdmitNew() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions)+m.reserved >= m.cfg.MaxSessions {
		return false
	}
	m.reserved++
	return true
}

// Release gives back a capacity slot reserved by AdmitNew without a
// matching Register call (e.g. the WebSocket upgrade itself failed).
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reserved > 0 {
		m.reserved--
	}
}

// Register converts a reserved slot into a tracked session. closer is
// invoked by the idle reaper or Shutdown to force the session closed.
func (m *Manager) Register(id, mode string, closer func()) {
	m.mu.Lock()
	if m.reserved > 0 {
		m.reserved--
	}
	now := time.Now()
	m.sessions[id] = &entry{mode: mode, closer: closer, startedAt: now, lastActivity: now}
	m.mu.Unlock()

	if m.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		m.redis.HSet(ctx, "session:"+id, map[string]any{
			"mode":       mode,
			"started_at": now.Format(time.RFC3339),
			"status":     "active",
		})
		m.redis.SAdd(ctx, "active_sessions", id)
		m.redis.Expire(ctx, "session:"+id, m.cfg.SessionTimeout)
	}
}

// Touch records activity on a session, resetting its idle clock.
func (m *Manager) Touch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[id]; ok {
		e.lastActivity = time.Now()
	}
}

// Unregister removes a session from tracking once its bridge has
// finished running.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		m.redis.Del(ctx, "session:"+id)
		m.redis.SRem(ctx, "active_sessions", id)
	}
}

// ActiveCount reports the number of currently tracked sessions, for
// the /health endpoints.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CleanupIdle force-closes any session whose last activity is older
// than cfg.SessionTimeout.
func (m *Manager) CleanupIdle() {
	cutoff := time.Now().Add(-m.cfg.SessionTimeout)

	m.mu.Lock()
	var stale []*entry
	var staleIDs []string
	for id, e := range m.sessions {
		if e.lastActivity.Before(cutoff) {
			stale = append(stale, e)
			staleIDs = append(staleIDs, id)
		}
	}
	m.mu.Unlock()

	for i, e := range stale {
		log.Printf("🧹 closing idle session %s (mode=%s, idle since %s)", staleIDs[i], e.mode, e.lastActivity.Format(time.RFC3339))
		e.closer()
	}
}

// StartCleanupRoutine runs CleanupIdle on a 1-minute ticker until ctx
// is done.
func (m *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupIdle()
		}
	}
}

// Shutdown force-closes every live session and closes the Redis
// client, if any.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	closers := make([]func(), 0, len(m.sessions))
	for _, e := range m.sessions {
		closers = append(closers, e.closer)
	}
	m.mu.Unlock()

	for _, c := range closers {
		c()
	}

	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			return fmt.Errorf("session: redis close: %w", err)
		}
	}
	return nil
}
