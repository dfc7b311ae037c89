package config

import "testing"

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DOUBAO_APP_ID", "DOUBAO_ACCESS_KEY", "DOUBAO_SECRET_KEY", "API_KEY",
		"GEMINI_API_KEY", "DOUBAO_PORT", "GLM_PORT", "GEMINI_PORT",
		"REDIS_URL", "REDIS_PASSWORD", "MAX_SESSIONS", "SESSION_TIMEOUT",
		"ALLOWED_ORIGINS", "KEEPALIVE_PERIOD", "MAX_BUFFER_SIZE",
	} {
		t.Setenv(key, "")
	}
}

func requireDoubaoAndGLM(t *testing.T) {
	t.Helper()
	t.Setenv("DOUBAO_APP_ID", "app-1")
	t.Setenv("DOUBAO_ACCESS_KEY", "access-1")
	t.Setenv("DOUBAO_SECRET_KEY", "secret-1")
	t.Setenv("API_KEY", "glm-key-1")
}

func TestLoadMissingDoubaoCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "glm-key-1")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when Doubao credentials are missing")
	}
}

func TestLoadMissingGLMKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOUBAO_APP_ID", "app-1")
	t.Setenv("DOUBAO_ACCESS_KEY", "access-1")
	t.Setenv("DOUBAO_SECRET_KEY", "secret-1")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when API_KEY is missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	requireDoubaoAndGLM(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.DoubaoPort != 3001 {
		t.Errorf("DoubaoPort = %d, want 3001", cfg.DoubaoPort)
	}
	if cfg.GLMPort != 3000 {
		t.Errorf("GLMPort = %d, want 3000", cfg.GLMPort)
	}
	if cfg.GeminiAPIKey != "" {
		t.Errorf("GeminiAPIKey should default to empty, got %q", cfg.GeminiAPIKey)
	}
	if cfg.MaxSessions != 100 {
		t.Errorf("MaxSessions = %d, want 100", cfg.MaxSessions)
	}
}

func TestLoadOverridesPorts(t *testing.T) {
	clearEnv(t)
	requireDoubaoAndGLM(t)
	t.Setenv("DOUBAO_PORT", "9001")
	t.Setenv("GLM_PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DoubaoPort != 9001 {
		t.Errorf("DoubaoPort = %d, want 9001", cfg.DoubaoPort)
	}
	if cfg.GLMPort != 9000 {
		t.Errorf("GLMPort = %d, want 9000", cfg.GLMPort)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	clearEnv(t)
	requireDoubaoAndGLM(t)
	t.Setenv("DOUBAO_PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid DOUBAO_PORT")
	}
}
