package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/sphinxql/pkg/httputil"
	"github.com/platinummonkey/sphinxql/pkg/observability"
	"github.com/platinummonkey/sphinxql/pkg/sphinxql"
)

// MaxLimit caps the limit parameter of every search request
const MaxLimit = 1000

// SearchResponse is the body returned by /search
type SearchResponse struct {
	Statement string            `json:"statement"`
	Columns   []string          `json:"columns"`
	Rows      []sphinxql.Row    `json:"rows"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// RenderResponse is the body returned by /render
type RenderResponse struct {
	Statement string `json:"statement"`
}

// SearchHandlers serves builder-backed search endpoints
type SearchHandlers struct {
	newQuery func() *sphinxql.Query
}

// NewSearchHandlers returns handlers whose queries execute through executor.
// A nil executor leaves /search answering 503 while /render keeps working.
func NewSearchHandlers(executor sphinxql.Executor) *SearchHandlers {
	return &SearchHandlers{
		newQuery: func() *sphinxql.Query { return sphinxql.New(executor) },
	}
}

// RegisterRoutes registers search routes
func (h *SearchHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/search", h.search).Methods("GET")
	router.HandleFunc("/render", h.render).Methods("GET")
	router.HandleFunc("/indexes/{index}/search", h.search).Methods("GET")
}

// search handles GET /search and GET /indexes/{index}/search
// Query parameters:
//   - index: index name, repeatable (required unless in the path)
//   - q: full-text match term
//   - field: "alias=expr" or "expr", repeatable
//   - filter: "field:op:value", repeatable
//   - in, all, none: "field:v1,v2", repeatable
//   - order: "field" or "field:asc|desc", repeatable
//   - offset, limit: pagination (limit max: 1000)
func (h *SearchHandlers) search(w http.ResponseWriter, r *http.Request) {
	q, ok := h.buildQuery(w, r)
	if !ok {
		return
	}

	statement := q.Render()
	log := observability.FromContext(r.Context()).WithField("statement", statement)

	rs, err := q.Execute(r.Context())
	if err != nil {
		log.WithError(err).Warn("Search failed")
		writeExecuteError(w, err)
		return
	}

	resp := SearchResponse{
		Statement: statement,
		Columns:   rs.Columns,
		Rows:      rs.Rows,
		Meta:      rs.Meta,
	}
	if resp.Columns == nil {
		resp.Columns = []string{}
	}
	if resp.Rows == nil {
		resp.Rows = []sphinxql.Row{}
	}

	log.WithField("rows", rs.Len()).Debug("Search completed")
	httputil.WriteSuccess(w, resp)
}

// render handles GET /render. It takes the same parameters as /search and
// returns the statement without executing it.
func (h *SearchHandlers) render(w http.ResponseWriter, r *http.Request) {
	q, ok := h.buildQuery(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, RenderResponse{Statement: q.Render()})
}

func (h *SearchHandlers) buildQuery(w http.ResponseWriter, r *http.Request) (*sphinxql.Query, bool) {
	params, err := parseParams(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return nil, false
	}
	if !httputil.RequireNonEmpty(w, params.Indexes, "index") {
		return nil, false
	}

	q := h.newQuery()
	if err := params.Apply(q); err != nil {
		if errors.Is(err, sphinxql.ErrInvalidParam) {
			httputil.WriteBadRequest(w, err.Error())
		} else {
			httputil.WriteInternalError(w, err)
		}
		return nil, false
	}
	return q, true
}

func parseParams(r *http.Request) (sphinxql.Params, error) {
	indexes := httputil.ParseQueryStrings(r, "index")
	if index := mux.Vars(r)["index"]; index != "" {
		indexes = append([]string{index}, indexes...)
	}

	offset, err := httputil.ParseOptionalQueryInt(r, "offset")
	if err != nil {
		return sphinxql.Params{}, err
	}
	limit, err := httputil.ParseOptionalQueryInt(r, "limit")
	if err != nil {
		return sphinxql.Params{}, err
	}
	if limit != nil && *limit > MaxLimit {
		capped := MaxLimit
		limit = &capped
	}

	return sphinxql.Params{
		Indexes: indexes,
		Search:  httputil.ParseOptionalQueryString(r, "q"),
		Fields:  httputil.ParseQueryStrings(r, "field"),
		Filters: httputil.ParseQueryStrings(r, "filter"),
		In:      httputil.ParseQueryStrings(r, "in"),
		All:     httputil.ParseQueryStrings(r, "all"),
		None:    httputil.ParseQueryStrings(r, "none"),
		Orders:  httputil.ParseQueryStrings(r, "order"),
		Offset:  offset,
		Limit:   limit,
	}, nil
}

func writeExecuteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sphinxql.ErrNoExecutor):
		httputil.WriteServiceUnavailable(w, "search backend not configured")
	case errors.Is(err, context.DeadlineExceeded):
		httputil.WriteGatewayTimeout(w, "search backend timed out")
	default:
		httputil.WriteBadGateway(w, err)
	}
}
