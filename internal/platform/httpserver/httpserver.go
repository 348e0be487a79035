package httpserver

import (
	"net/http"
	"time"

	"canon/internal/platform/config"
)

// New builds the HTTP server from config. The read timeout has to be
// generous: backup uploads run to 500MB and arrive over slow links.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
	}
}
