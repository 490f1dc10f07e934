package httpserver

import (
	"net/http"
	"time"
)

// New builds the audit API server. Every endpoint is plain request/response;
// nothing streams or long-polls, so all four timeouts can be finite.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
