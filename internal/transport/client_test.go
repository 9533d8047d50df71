package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/clinic-chat-widget/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Config{BaseURL: server.URL + "/", Logger: logging.Discard()})
	require.NoError(t, err)
	return client
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "  "})
	assert.Error(t, err)
}

func TestSendPostsMessageAndSession(t *testing.T) {
	var seen map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ChatPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		jsonHandler(`{"session_id":"s-42","response":"Здравствуйте"}`)(w, r)
	})

	reply, err := client.Send(context.Background(), "  Привет  ", "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Привет", seen["message"])
	assert.Equal(t, "s-1", seen["session_id"])
	assert.Equal(t, "s-42", reply.SessionID)
	assert.Equal(t, "Здравствуйте", reply.ResponseText)
}

func TestSendEmptySessionIsNull(t *testing.T) {
	var seen map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		jsonHandler(`{"session_id":"new","response":"ok"}`)(w, r)
	})

	_, err := client.Send(context.Background(), "hi", "")
	require.NoError(t, err)
	v, ok := seen["session_id"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestSendRejectsBlankMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("blank message must not reach the backend")
	})
	_, err := client.Send(context.Background(), " \n ", "s")
	assert.Error(t, err)
	assert.False(t, IsTransportError(err))
}

func TestReplyTextPrecedence(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"response wins", `{"response":"r","answer":{"short":"a"},"text":"t","message":"m"}`, "r"},
		{"answer short", `{"answer":{"short":"a"},"text":"t","message":"m"}`, "a"},
		{"null response falls through", `{"response":null,"text":"t"}`, "t"},
		{"answer without short", `{"answer":{"long":"x"},"message":"m"}`, "m"},
		{"message last", `{"message":"m"}`, "m"},
		{"empty response is kept", `{"response":"","text":"t"}`, ""},
		{"non string stringified", `{"response":42}`, "42"},
		{"false response is empty", `{"response":false,"text":"hi"}`, ""},
		{"zero response is empty", `{"response":0,"text":"hi"}`, ""},
		{"false short is empty", `{"answer":{"short":false},"text":"hi"}`, ""},
		{"true stringified", `{"response":true}`, "true"},
		{"nothing present", `{"session_id":"s"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, jsonHandler(tt.body))
			reply, err := client.Send(context.Background(), "q", "s")
			require.NoError(t, err)
			assert.Equal(t, tt.want, reply.ResponseText)
		})
	}
}

func TestPlainTextBodyIsWrapped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("Просто текст"))
	})

	reply, err := client.Send(context.Background(), "q", "s")
	require.NoError(t, err)
	assert.Equal(t, "Просто текст", reply.ResponseText)
	assert.Empty(t, reply.SessionID)
	assert.Nil(t, reply.CTA)
	assert.Nil(t, reply.ActionButtons)
}

func TestJSONStringBody(t *testing.T) {
	client := newTestClient(t, jsonHandler(`"just a string"`))
	reply, err := client.Send(context.Background(), "q", "s")
	require.NoError(t, err)
	assert.Equal(t, "just a string", reply.ResponseText)
}

func TestReplyDescriptors(t *testing.T) {
	body := `{
		"session_id": "s",
		"response": "Выберите",
		"cta": {"type": "call", "text": "Позвонить", "phone": "+74152442424"},
		"action_buttons": [
			{"text": "Цены", "action": "Покажи цены"},
			{"text": "", "action": "ignored"},
			{"text": "Запись"}
		],
		"request_phone": true
	}`
	client := newTestClient(t, jsonHandler(body))

	reply, err := client.Send(context.Background(), "q", "s")
	require.NoError(t, err)
	require.NotNil(t, reply.CTA)
	assert.Equal(t, CTA{Kind: CTACall, Label: "Позвонить", Target: "+74152442424"}, *reply.CTA)
	assert.Equal(t, "tel:+74152442424", reply.CTA.Href())
	assert.Equal(t, []ActionButton{
		{Label: "Цены", Payload: "Покажи цены"},
		{Label: "Запись", Payload: "Запись"},
	}, reply.ActionButtons)
	require.NotNil(t, reply.RequestPhone)
	assert.True(t, *reply.RequestPhone)
}

func TestNormalizeCTAFallsBackToBooking(t *testing.T) {
	assert.Equal(t, CTA{Kind: CTABook, Label: DefaultCTALabel}, normalizeCTA(wireCTA{Type: "link"}))
	assert.Equal(t, CTA{Kind: CTABook, Label: "Звонок"}, normalizeCTA(wireCTA{Type: "call", Text: "Звонок"}))
	assert.Equal(t, CTA{Kind: CTABook, Label: "x"}, normalizeCTA(wireCTA{Type: "unknown", Text: "x"}))
	link := normalizeCTA(wireCTA{Type: "LINK", Text: "Сайт", URL: "https://dental41.ru"})
	assert.Equal(t, CTALink, link.Kind)
	assert.Equal(t, "https://dental41.ru", link.Href())
}

func TestNonSuccessStatusIsTransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.Send(context.Background(), "q", "s")
	require.Error(t, err)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "status", te.Op)
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
}

func TestMalformedJSONIsTransportError(t *testing.T) {
	client := newTestClient(t, jsonHandler(`{"response":`))
	_, err := client.Send(context.Background(), "q", "s")
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
}

func TestNetworkFailureIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewClient(Config{BaseURL: url, Logger: logging.Discard()})
	require.NoError(t, err)
	_, err = client.Send(context.Background(), "q", "s")
	require.Error(t, err)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "request", te.Op)
}
