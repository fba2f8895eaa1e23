package jobs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ncats/biggim-gateway/pkg/common/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/jobs", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{request_id}", h.handleGet).Methods(http.MethodGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if val := r.URL.Query().Get("limit"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 && parsed <= maxListLimit {
			limit = parsed
		}
	}

	records, err := h.repo.List(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list query records")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list query records"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": records})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["request_id"]
	rec, err := h.repo.Latest(r.Context(), requestID)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		logger.Log.WithError(err).WithField("request_id", requestID).Error("failed to load query record")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load query record"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.WithError(err).Error("failed to write json response")
	}
}
