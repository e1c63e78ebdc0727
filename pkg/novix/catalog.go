package novix

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/novix-ai/novix/pkg/novix/converters"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/marketplace"
)

// handleListAgents browses the catalog. Query parameters mirror the
// search_agents tool: q, topic (repeatable), type, pricingModel, minPrice,
// maxPrice, minCredits, maxCredits, sort, order, max and skip.
func (a *App) handleListAgents(w http.ResponseWriter, r *http.Request) {
	q, err := parseCatalogQuery(r.URL.Query())
	if err != nil {
		respondError(w, err, nil)
		return
	}
	a.searchCatalog(w, r, q)
}

func (a *App) handleAgentsByOwner(w http.ResponseWriter, r *http.Request) {
	q, err := parseCatalogQuery(r.URL.Query())
	if err != nil {
		respondError(w, err, nil)
		return
	}
	q.Filters.Owner = mux.Vars(r)["ownerId"]
	a.searchCatalog(w, r, q)
}

func (a *App) handleAgentDetails(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		respondError(w, apperrors.New(apperrors.ErrCodeInvalidInput, "Invalid listing id: "+raw, err), nil)
		return
	}

	listing, err := a.Catalog.Get(r.Context(), uint(id))
	if err != nil {
		respondError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, converters.Success(listing))
}

func (a *App) searchCatalog(w http.ResponseWriter, r *http.Request, q marketplace.Query) {
	result, err := a.Catalog.Search(r.Context(), q)
	if err != nil {
		respondError(w, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, converters.Success(result))
}

func parseCatalogQuery(v url.Values) (marketplace.Query, error) {
	var (
		q      marketplace.Query
		result *multierror.Error
	)

	number := func(key string) *float64 {
		raw := v.Get(key)
		if raw == "" {
			return nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s must be a number", key))
			return nil
		}
		return &f
	}
	integer := func(key string) int {
		raw := v.Get(key)
		if raw == "" {
			return 0
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s must be an integer", key))
		}
		return n
	}
	bounds := func(minKey, maxKey string) *marketplace.Range {
		lo, hi := number(minKey), number(maxKey)
		if lo == nil && hi == nil {
			return nil
		}
		return &marketplace.Range{Min: lo, Max: hi}
	}

	q.Query = v.Get("q")
	q.MaxResults = integer("max")
	q.Skip = integer("skip")
	q.Filters = marketplace.Filters{
		Price:        bounds("minPrice", "maxPrice"),
		Credits:      bounds("minCredits", "maxCredits"),
		Topics:       v["topic"],
		AgentType:    v.Get("type"),
		PricingModel: v.Get("pricingModel"),
	}
	q.Sort = marketplace.Sort{Field: v.Get("sort"), Order: v.Get("order")}

	if err := result.ErrorOrNil(); err != nil {
		return q, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid catalog query", err)
	}
	return q, nil
}
