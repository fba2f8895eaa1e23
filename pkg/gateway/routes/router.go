package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ncats/biggim-gateway/pkg/gateway/middleware"
	"github.com/ncats/biggim-gateway/pkg/normalizer"
)

// Gateway bundles what the public routes are served from.
type Gateway struct {
	Service  string
	Upstream Upstream
	Tissues  *normalizer.TissueResolver
	Queries  Querier
}

// NewRouter registers the metadata, interaction, health and metrics routes.
// Middleware is left to the caller.
func NewRouter(g Gateway) *mux.Router {
	router := mux.NewRouter()
	RegisterHealthRoutes(router, g.Service)
	NewMetadataHandler(g.Upstream, g.Tissues).Register(router)
	NewInteractionsHandler(g.Queries).Register(router)
	return router
}

// WithCORS wraps the whole router in the CORS middleware. Router-level
// middleware only runs on matched routes, and preflight OPTIONS requests
// match none of them.
func WithCORS(router *mux.Router) http.Handler {
	return middleware.CORS(router)
}
