package handlers

import (
	"net/http"
	"time"

	"github.com/hanko-field/miniapp/internal/platform/httpx"
)

var startTime = time.Now()

// health responds with a simple status payload for readiness checks.
func health(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(startTime).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
