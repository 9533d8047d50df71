package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/clinic-chat-widget/internal/config"
	"github.com/wolfman30/clinic-chat-widget/internal/session"
	"github.com/wolfman30/clinic-chat-widget/pkg/logging"
)

func TestBuildRedisClientSkipsOtherStores(t *testing.T) {
	cfg := &appconfig.Config{SessionStore: appconfig.SessionStoreMemory, RedisAddr: "localhost:6379"}
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.Discard(), false))
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{SessionStore: appconfig.SessionStoreRedis, RedisAddr: mr.Addr()}

	client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.Discard(), true))
}

func TestBuildSessionStoreFallsBackToMemory(t *testing.T) {
	cfg := &appconfig.Config{SessionStore: appconfig.SessionStoreRedis}
	store, err := BuildSessionStore(cfg, nil, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &session.MemoryStore{}, store)
}

func TestBuildSessionStoreRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{SessionStore: appconfig.SessionStoreRedis, RedisAddr: mr.Addr()}
	client := BuildRedisClient(context.Background(), cfg, logging.Discard(), false)
	t.Cleanup(func() { _ = client.Close() })

	store, err := BuildSessionStore(cfg, client, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "visitor", "session_1"))
	assert.True(t, mr.Exists("widget_session:visitor"))
}

func TestBuildTransportRequiresURL(t *testing.T) {
	_, err := BuildTransport(&appconfig.Config{}, logging.Discard())
	assert.Error(t, err)

	client, err := BuildTransport(&appconfig.Config{BackendURL: "http://localhost:5000"}, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestBuildWidgetMetricsExposesMetrics(t *testing.T) {
	handler, m := BuildWidgetMetrics(&appconfig.Config{MetricsEnabled: true})
	require.NotNil(t, handler)
	require.NotNil(t, m)
	m.ObserveNudge()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "clinicwidget_conversation_nudges_total 1")

	handler, m = BuildWidgetMetrics(&appconfig.Config{MetricsEnabled: false})
	assert.Nil(t, handler)
	assert.Nil(t, m)
}
