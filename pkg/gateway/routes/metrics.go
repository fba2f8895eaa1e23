package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ncats/biggim-gateway/pkg/observability/metrics"
)

func RegisterHealthRoutes(r *mux.Router, service string) {
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": service})
	}).Methods(http.MethodGet)

	r.HandleFunc("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)
}
