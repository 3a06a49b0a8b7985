package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/folium/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// Holdings
	mux.HandleFunc("/api/holdings/refresh", s.handleHoldingsRefresh)
	mux.HandleFunc("/api/holdings/", s.routeHolding)
	mux.HandleFunc("/api/holdings", s.routeHoldings)

	// Portfolio views
	mux.HandleFunc("/api/portfolio/snapshot", s.handlePortfolioSnapshot)
	mux.HandleFunc("/api/portfolio/history", s.handlePortfolioHistory)
	mux.HandleFunc("/api/portfolio/history.png", s.handlePortfolioHistoryChart)
	mux.HandleFunc("/api/portfolio/allocation", s.handlePortfolioAllocation)
	mux.HandleFunc("/api/portfolio/allocation.png", s.handlePortfolioAllocationChart)
	mux.HandleFunc("/api/portfolio/valuation", s.handlePortfolioValuation)

	// Market data
	mux.HandleFunc("/api/market/quote/", s.handleMarketQuote)
	mux.HandleFunc("/api/market/search", s.handleMarketSearch)
}

// routeHoldings dispatches /api/holdings by method.
func (s *Server) routeHoldings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleHoldingList(w, r)
	case http.MethodPost:
		s.handleHoldingCreate(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// routeHolding dispatches /api/holdings/{id} by method.
func (s *Server) routeHolding(w http.ResponseWriter, r *http.Request) {
	id := PathParam(r, "/api/holdings/", "")
	if id == "" {
		s.routeHoldings(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleHoldingGet(w, r, id)
	case http.MethodPatch:
		s.handleHoldingUpdate(w, r, id)
	case http.MethodDelete:
		s.handleHoldingDelete(w, r, id)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":            common.GetVersion(),
		"build":              common.GetBuild(),
		"commit":             common.GetGitCommit(),
		"uptime":             time.Since(s.app.StartupTime).Round(time.Second).String(),
		"provider":           s.app.Config.Market.Provider,
		"reference_currency": s.app.Config.ReferenceCurrency,
	})
}
