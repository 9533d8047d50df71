// Package web embeds the host-page shim that mounts the chat widget and
// talks to the websocket endpoint.
package web

import (
	_ "embed"
	"net/http"
)

//go:embed static/widget.js
var widgetJS []byte

// WidgetJS returns the embedded shim.
func WidgetJS() []byte {
	return widgetJS
}

// WidgetJSHandler serves the shim with long-lived caching; host pages load it
// cross-origin.
func WidgetJSHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		_, _ = w.Write(widgetJS)
	})
}
