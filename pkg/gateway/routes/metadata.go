package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/ncats/biggim-gateway/pkg/biggim"
	"github.com/ncats/biggim-gateway/pkg/common/logger"
	"github.com/ncats/biggim-gateway/pkg/normalizer"
	"github.com/ncats/biggim-gateway/pkg/observability/metrics"
)

// Upstream is the part of the BigGIM client the metadata routes need.
type Upstream interface {
	Get(ctx context.Context, endpoint string, query url.Values, out interface{}) error
}

type MetadataHandler struct {
	upstream Upstream
	tissues  *normalizer.TissueResolver
}

func NewMetadataHandler(upstream Upstream, tissues *normalizer.TissueResolver) *MetadataHandler {
	return &MetadataHandler{upstream: upstream, tissues: tissues}
}

func (h *MetadataHandler) Register(r *mux.Router) {
	for _, endpoint := range []string{"openapiv3", "swagger", "study", "table", "tissue"} {
		r.HandleFunc("/metadata/"+endpoint, h.passThrough("metadata/"+endpoint)).Methods(http.MethodGet)
	}
	r.HandleFunc("/metadata/study/{study_name}", h.named("study", "study_name")).Methods(http.MethodGet)
	r.HandleFunc("/metadata/table/{table_name}", h.named("table", "table_name")).Methods(http.MethodGet)
	r.HandleFunc("/metadata/tissue/{tissue_name}", h.handleTissue).Methods(http.MethodGet)
}

func (h *MetadataHandler) passThrough(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.ObserveMetadataRequest()
		var body json.RawMessage
		if err := h.upstream.Get(r.Context(), endpoint, r.URL.Query(), &body); err != nil {
			logger.Log.WithError(err).WithField("endpoint", endpoint).Warn("metadata request failed")
			writeError(w, err, nil)
			return
		}
		writeRaw(w, body)
	}
}

func (h *MetadataHandler) named(kind, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.ObserveMetadataRequest()
		name := mux.Vars(r)[param]
		endpoint := "metadata/" + kind + "/" + url.PathEscape(name)

		var body json.RawMessage
		if err := h.upstream.Get(r.Context(), endpoint, r.URL.Query(), &body); err != nil {
			err = biggim.AsNotFound(err, kind, name)
			logger.Log.WithError(err).WithField("endpoint", endpoint).Warn("metadata request failed")
			writeError(w, err, nil)
			return
		}
		writeRaw(w, body)
	}
}

// handleTissue resolves UBERON and BTO codes to the upstream label before
// the lookup. Failures are reported with the name the caller sent.
func (h *MetadataHandler) handleTissue(w http.ResponseWriter, r *http.Request) {
	metrics.ObserveMetadataRequest()
	name := mux.Vars(r)["tissue_name"]
	label := h.tissues.Resolve(name)
	endpoint := "metadata/tissue/" + url.PathEscape(label)

	var body json.RawMessage
	if err := h.upstream.Get(r.Context(), endpoint, r.URL.Query(), &body); err != nil {
		err = biggim.AsNotFound(err, "tissue", name)
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"tissue":   name,
			"resolved": label,
		}).Warn("tissue lookup failed")
		writeError(w, err, map[string]string{
			"message": fmt.Sprintf("'%s' is not a valid tissue name or identifier", name),
		})
		return
	}
	writeRaw(w, body)
}
