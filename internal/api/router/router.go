package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/clinic-chat-widget/internal/http/middleware"
	"github.com/wolfman30/clinic-chat-widget/internal/webchat"
	"github.com/wolfman30/clinic-chat-widget/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Widget             *webchat.Handler
	WidgetJS           http.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthHandler(cfg.Widget))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.WidgetJS != nil {
		r.Handle("/widget.js", cfg.WidgetJS)
	}

	if cfg.Widget != nil {
		r.Route("/widget", func(w chi.Router) {
			w.Get("/ws", cfg.Widget.HandleWebSocket)
			w.Get("/instances/{id}/state", cfg.Widget.HandleState)
		})
	}

	return r
}

func healthHandler(widget *webchat.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ok"}
		if widget != nil {
			resp["active_widgets"] = widget.Active()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
