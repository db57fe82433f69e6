package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/sphinxql/pkg/async"
	"github.com/platinummonkey/sphinxql/pkg/cache"
	"github.com/platinummonkey/sphinxql/pkg/httputil"
)

const purgeTimeout = 30 * time.Second

// CacheHandlers exposes result cache administration
type CacheHandlers struct {
	results *cache.Executor
	logger  *logrus.Logger
}

// NewCacheHandlers creates cache handlers for results
func NewCacheHandlers(results *cache.Executor, logger *logrus.Logger) *CacheHandlers {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CacheHandlers{results: results, logger: logger}
}

// RegisterRoutes registers cache routes
func (h *CacheHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/cache/stats", h.stats).Methods("GET")
	router.HandleFunc("/cache", h.purge).Methods("DELETE")
}

// stats handles GET /cache/stats
func (h *CacheHandlers) stats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, h.results.Stats())
}

// purge handles DELETE /cache. The purge runs in the background and the
// request returns 202 immediately.
func (h *CacheHandlers) purge(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	async.SafeGo(ctx, h.logger, purgeTimeout, "cache purge", h.results.Purge)

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "purging"})
}
