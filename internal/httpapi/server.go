package httpapi

import (
	"log/slog"
	"net/http"
	"time"
)

// NewServer wraps handler with request logging. The timeouts cover plain
// HTTP only: the WebSocket upgrader clears deadlines on hijacked connections.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &http.Server{
		Addr:              addr,
		Handler:           requestLogger(logger, handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
