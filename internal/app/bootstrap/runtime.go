package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/clinic-chat-widget/internal/config"
	"github.com/wolfman30/clinic-chat-widget/internal/observability/metrics"
	"github.com/wolfman30/clinic-chat-widget/internal/session"
	"github.com/wolfman30/clinic-chat-widget/internal/transport"
	"github.com/wolfman30/clinic-chat-widget/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when the redis
// session store is not selected. When verify is true, a ping is issued and
// failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || cfg.SessionStore != appconfig.SessionStoreRedis || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore selects the session store. A redis store whose client is
// unavailable falls back to memory so the widget keeps working.
func BuildSessionStore(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (session.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.SessionStore == appconfig.SessionStoreRedis && redisClient == nil {
		logger.Warn("redis session store unavailable; using memory store")
		return session.NewMemoryStore(cfg.SessionTTL), nil
	}
	store, err := session.FromConfig(cfg, redisClient)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: session store: %w", err)
	}
	logger.Info("session store ready", "backend", cfg.SessionStore)
	return store, nil
}

// BuildTransport returns the chat backend client.
func BuildTransport(cfg *appconfig.Config, logger *logging.Logger) (*transport.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	client, err := transport.NewClient(transport.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: transport: %w", err)
	}
	return client, nil
}

// BuildWidgetMetrics registers widget metrics on a fresh registry and returns
// the handler exposing them. Both are nil when metrics are disabled.
func BuildWidgetMetrics(cfg *appconfig.Config) (http.Handler, *metrics.WidgetMetrics) {
	if cfg != nil && !cfg.MetricsEnabled {
		return nil, nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewWidgetMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}
