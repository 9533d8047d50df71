package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("CHAT_BACKEND_URL", "")
	t.Setenv("WIDGET_IDLE_TIMEOUT", "")
	t.Setenv("WIDGET_STARTER_TOPICS", "")
	t.Setenv("SESSION_STORE", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.BackendURL != "http://localhost:5000" {
		t.Fatalf("expected default backend, got %s", cfg.BackendURL)
	}
	if cfg.BackendTimeout != 0 {
		t.Fatalf("expected no client deadline by default, got %s", cfg.BackendTimeout)
	}
	if cfg.IdleTimeout != 30*time.Second {
		t.Fatalf("expected 30s idle timeout, got %s", cfg.IdleTimeout)
	}
	if cfg.GreetingDelay != 500*time.Millisecond {
		t.Fatalf("expected 500ms greeting delay, got %s", cfg.GreetingDelay)
	}
	if len(cfg.StarterTopics) != len(DefaultStarterTopics) {
		t.Fatalf("expected default topics, got %v", cfg.StarterTopics)
	}
	if cfg.SessionStore != SessionStoreMemory {
		t.Fatalf("expected memory session store, got %s", cfg.SessionStore)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CHAT_BACKEND_URL", "https://dental-bot.ru/")
	t.Setenv("CHAT_BACKEND_TIMEOUT", "20s")
	t.Setenv("WIDGET_IDLE_TIMEOUT", "45s")
	t.Setenv("WIDGET_FALLBACK_PHONE", "+7 900 000-00-00")
	t.Setenv("WIDGET_STARTER_TOPICS", "Цены| Запись |")
	t.Setenv("SESSION_STORE", "Redis")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://dental41.ru, https://example.org")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.BackendURL != "https://dental-bot.ru" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.BackendURL)
	}
	if cfg.BackendTimeout != 20*time.Second {
		t.Fatalf("expected timeout override, got %s", cfg.BackendTimeout)
	}
	if cfg.IdleTimeout != 45*time.Second {
		t.Fatalf("expected idle override, got %s", cfg.IdleTimeout)
	}
	if cfg.FallbackPhone != "+7 900 000-00-00" {
		t.Fatalf("expected fallback phone override, got %s", cfg.FallbackPhone)
	}
	if len(cfg.StarterTopics) != 2 || cfg.StarterTopics[1] != "Запись" {
		t.Fatalf("expected trimmed topics, got %v", cfg.StarterTopics)
	}
	if cfg.SessionStore != SessionStoreRedis || !cfg.RedisTLS {
		t.Fatalf("expected redis store with TLS, got %s %v", cfg.SessionStore, cfg.RedisTLS)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected two origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.BackendURL = " "
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected empty backend to fail")
	}

	cfg = Load()
	cfg.SessionStore = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown session store to fail")
	}

	cfg = Load()
	cfg.IdleTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected zero idle timeout to fail")
	}
}
