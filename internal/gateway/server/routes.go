package server

import (
	"net/http"

	"projectarchitect/internal/gateway/handler"
	"projectarchitect/internal/gateway/middleware"
)

// NewMux mounts the REST, RPC and websocket surfaces of svc.
func NewMux(svc *handler.Service) http.Handler {
	mux := http.NewServeMux()
	svc.RegisterREST(mux)
	svc.RegisterRPC(mux)
	mux.HandleFunc("GET /v1/runs/{id}/watch", svc.WatchRun)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return middleware.CORS(middleware.AccessLog(mux))
}
