package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/clinic-chat-widget/internal/api/router"
	"github.com/wolfman30/clinic-chat-widget/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-chat-widget/internal/config"
	"github.com/wolfman30/clinic-chat-widget/internal/webchat"
	"github.com/wolfman30/clinic-chat-widget/pkg/logging"
	"github.com/wolfman30/clinic-chat-widget/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting clinic chat widget server",
		"env", cfg.Env,
		"port", cfg.Port,
		"backend", cfg.BackendURL,
		"session_store", cfg.SessionStore,
	)

	handler, cleanup, err := buildHandler(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildHandler wires every dependency of the HTTP server. cleanup releases
// the Redis connection when one was opened.
func buildHandler(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (http.Handler, func(), error) {
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	cleanup := func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}

	sessions, err := bootstrap.BuildSessionStore(cfg, redisClient, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	chatClient, err := bootstrap.BuildTransport(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	metricsHandler, widgetMetrics := bootstrap.BuildWidgetMetrics(cfg)

	widgetHandler, err := webchat.NewHandler(webchat.Config{
		Transport:      chatClient,
		Sessions:       sessions,
		Metrics:        widgetMetrics,
		Logger:         logger,
		IdleTimeout:    cfg.IdleTimeout,
		GreetingDelay:  cfg.GreetingDelay,
		FallbackPhone:  cfg.FallbackPhone,
		BookingTrigger: cfg.BookingTrigger,
		StarterTopics:  cfg.StarterTopics,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	r := router.New(&router.Config{
		Logger:             logger,
		Widget:             widgetHandler,
		WidgetJS:           web.WidgetJSHandler(),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
	return r, cleanup, nil
}
