package httpserver

import (
	"net/http"
	"time"

	"eastask-go/internal/config"
)

// New builds the server. WriteTimeout stays unset because activity streams
// hold responses open.
func New(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
