// Package transport talks to the chat backend's POST /chat endpoint.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-chat-widget/pkg/logging"
)

// ChatPath is the backend endpoint every message is posted to.
const ChatPath = "/chat"

// Config describes how to reach the chat backend.
type Config struct {
	BaseURL string
	// Timeout is zero by default: the widget relies on the transport's own
	// failure signalling and imposes no deadline.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Client sends one message per call and normalizes the reply.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
	logger  *logging.Logger
}

// NewClient validates the configuration and returns a ready-to-use client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("transport: base URL required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		http:    httpClient,
		tracer:  otel.Tracer("clinicwidget.internal.transport"),
		logger:  logger,
	}, nil
}

type chatRequest struct {
	Message   string  `json:"message"`
	SessionID *string `json:"session_id"`
}

// Send posts message with the current session id (null when empty) and
// returns the normalized reply. Any failure is a *TransportError.
func (c *Client) Send(ctx context.Context, message, sessionID string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, errors.New("transport: message required")
	}

	ctx, span := c.tracer.Start(ctx, "transport.send")
	defer span.End()
	span.SetAttributes(
		attribute.Bool("widget.session_present", sessionID != ""),
		attribute.Int("widget.message_length", len(message)),
	)

	reply, err := c.send(ctx, message, sessionID)
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("transport: send failed", "session_id", sessionID, "error", err)
		return Reply{}, err
	}
	c.logger.Debug("transport: reply received",
		"session_id", reply.SessionID,
		"length", len(reply.ResponseText),
		"cta", reply.CTA != nil,
		"action_buttons", len(reply.ActionButtons),
	)
	return reply, nil
}

func (c *Client) send(ctx context.Context, message, sessionID string) (Reply, error) {
	payload := chatRequest{Message: message}
	if sessionID != "" {
		payload.SessionID = &sessionID
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, &TransportError{Op: "request", Err: fmt.Errorf("encode payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ChatPath, bytes.NewReader(data))
	if err != nil {
		return Reply{}, &TransportError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return Reply{}, &TransportError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, &TransportError{Op: "read", StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Reply{}, &TransportError{
			Op:         "status",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body))),
		}
	}

	return parseBody(resp.Header.Get("Content-Type"), body)
}

// parseBody wraps plain-text bodies as the response text; JSON bodies go
// through the tolerant decoder.
func parseBody(contentType string, body []byte) (Reply, error) {
	if !strings.Contains(strings.ToLower(contentType), "application/json") {
		return Reply{ResponseText: string(body)}, nil
	}

	reply, err := decodeJSONReply(body)
	if err == nil {
		return reply, nil
	}
	var text string
	if jsonErr := json.Unmarshal(body, &text); jsonErr == nil {
		return Reply{ResponseText: text}, nil
	}
	return Reply{}, &TransportError{Op: "decode", Err: err}
}
