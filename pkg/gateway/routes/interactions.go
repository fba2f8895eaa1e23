package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/ncats/biggim-gateway/pkg/biggim"
	"github.com/ncats/biggim-gateway/pkg/interactions"
	"github.com/ncats/biggim-gateway/pkg/reshape"
)

type Querier interface {
	Query(ctx context.Context, method string, params biggim.QueryParams) (*interactions.Result, error)
}

type InteractionsHandler struct {
	service Querier
}

func NewInteractionsHandler(service Querier) *InteractionsHandler {
	return &InteractionsHandler{service: service}
}

func (h *InteractionsHandler) Register(r *mux.Router) {
	r.HandleFunc("/interactions/query", h.handleQuery).Methods(http.MethodGet, http.MethodPost)
}

func (h *InteractionsHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	if r.Method == http.MethodPost {
		body, err := readParamBody(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		// query string wins over the body
		for key, value := range body {
			if values.Get(key) == "" {
				values.Set(key, value)
			}
		}
	}

	params := biggim.ParamsFromValues(values)
	result, err := h.service.Query(r.Context(), r.Method, params)
	if err != nil {
		writeError(w, err, nil)
		return
	}

	records := result.Records
	if records == nil {
		records = []reshape.Record{}
	}
	if result.RequestID != "" {
		w.Header().Set("X-BigGIM-Request-ID", result.RequestID)
	}
	if result.Cached {
		w.Header().Set("X-Cache", "HIT")
	}
	writeJSON(w, http.StatusOK, records)
}

// readParamBody decodes an optional JSON object of query parameters.
func readParamBody(r *http.Request) (map[string]string, error) {
	if r.Body == nil || !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return nil, nil
	}
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case string:
			out[key] = v
		default:
			out[key] = fmt.Sprint(v)
		}
	}
	return out, nil
}
