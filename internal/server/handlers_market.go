package server

import (
	"net/http"
	"strings"

	"github.com/bobmcallan/folium/internal/models"
	"github.com/bobmcallan/folium/internal/services/quote"
)

func (s *Server) handleMarketQuote(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ticker, errMsg := validateTicker(PathParam(r, "/api/market/quote/", ""))
	if errMsg != "" {
		WriteError(w, http.StatusBadRequest, errMsg)
		return
	}

	q := s.app.Gateway.GetQuote(r.Context(), ticker)
	if q == nil {
		WriteErrorWithCode(w, http.StatusNotFound, "No quote available for "+ticker, "no_data")
		return
	}
	WriteJSON(w, http.StatusOK, q)
}

func (s *Server) handleMarketSearch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len([]rune(query)) < quote.MinSearchQueryLength {
		WriteError(w, http.StatusBadRequest, "q must be at least 2 characters")
		return
	}

	results := s.app.Gateway.SearchSecurities(r.Context(), query)
	if results == nil {
		results = []models.SearchResult{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": results,
	})
}
