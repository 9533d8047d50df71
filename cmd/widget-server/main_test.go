package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appconfig "github.com/wolfman30/clinic-chat-widget/internal/config"
	"github.com/wolfman30/clinic-chat-widget/pkg/logging"
)

func TestBuildHandlerServesWidgetRoutes(t *testing.T) {
	cfg := &appconfig.Config{
		BackendURL:     "http://localhost:5000",
		SessionStore:   appconfig.SessionStoreMemory,
		MetricsEnabled: true,
	}
	handler, cleanup, err := buildHandler(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	defer cleanup()

	for _, path := range []string{"/health", "/metrics", "/widget.js"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", path, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "clinicwidget_conversation_open_widgets") {
		t.Fatalf("expected widget gauge to be exported")
	}
}

func TestBuildHandlerRejectsMissingBackend(t *testing.T) {
	cfg := &appconfig.Config{SessionStore: appconfig.SessionStoreMemory}
	if _, _, err := buildHandler(context.Background(), cfg, logging.New("error")); err == nil {
		t.Fatalf("expected error without backend URL")
	}
}
