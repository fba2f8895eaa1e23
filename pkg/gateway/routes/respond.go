package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ncats/biggim-gateway/pkg/biggim"
	"github.com/ncats/biggim-gateway/pkg/common/logger"
)

// StatusFor maps a query or lookup failure to the HTTP status returned to
// the caller.
func StatusFor(err error) int {
	var upstream *biggim.UpstreamError
	switch biggim.ErrorKind(err) {
	case biggim.KindNotFound:
		return http.StatusNotFound
	case biggim.KindUpstream:
		if errors.As(err, &upstream) && upstream.StatusCode >= 400 && upstream.StatusCode <= 599 {
			return upstream.StatusCode
		}
		return http.StatusBadGateway
	case biggim.KindTransport, biggim.KindResultFetch:
		return http.StatusBadGateway
	case biggim.KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.WithError(err).Error("failed to write json response")
	}
}

func writeRaw(w http.ResponseWriter, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.Log.WithError(err).Error("failed to write json response")
	}
}

// writeError writes {"error": ...} plus any extra fields.
func writeError(w http.ResponseWriter, err error, extra map[string]string) {
	body := map[string]string{"error": err.Error()}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, StatusFor(err), body)
}
