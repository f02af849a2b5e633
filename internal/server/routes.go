package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check, info and metrics.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// Payload exchange.
	mux.HandleFunc("POST /api/post/{id}", s.handlePush)
	mux.HandleFunc("GET /api/get/{id}/{token}", s.handleFetch)

	// Admin. The argument is optional for inspect.
	mux.HandleFunc("GET /api/adm/{command}", s.handleAdmin)
	mux.HandleFunc("POST /api/adm/{command}", s.handleAdmin)
	mux.HandleFunc("GET /api/adm/{command}/{arg}", s.handleAdmin)
	mux.HandleFunc("POST /api/adm/{command}/{arg}", s.handleAdmin)

	return mux
}
