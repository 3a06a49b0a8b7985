package server

import (
	"net/http"

	"github.com/bobmcallan/folium/internal/models"
	"github.com/bobmcallan/folium/internal/services/valuation"
)

// loadHoldings returns the request user's holdings, writing the error response on failure.
func (s *Server) loadHoldings(w http.ResponseWriter, r *http.Request) ([]models.Holding, bool) {
	holdings, err := s.app.Holdings.ListHoldings(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, err, "Could not load holdings")
		return nil, false
	}
	return holdings, true
}

func (s *Server) handlePortfolioSnapshot(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	reference, err := s.referenceCurrency(r)
	if err != nil {
		s.writeServiceError(w, err, "Invalid request")
		return
	}
	holdings, ok := s.loadHoldings(w, r)
	if !ok {
		return
	}

	snap, err := s.app.Valuation.ComputeSnapshot(r.Context(), holdings, reference)
	if err != nil {
		s.writeServiceError(w, err, "Could not refresh market data")
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}

// series parses the window and currency parameters and computes the history.
func (s *Server) series(w http.ResponseWriter, r *http.Request) (*models.Series, bool) {
	window, err := s.windowParam(r)
	if err != nil {
		s.writeServiceError(w, err, "Invalid request")
		return nil, false
	}
	reference, err := s.referenceCurrency(r)
	if err != nil {
		s.writeServiceError(w, err, "Invalid request")
		return nil, false
	}
	holdings, ok := s.loadHoldings(w, r)
	if !ok {
		return nil, false
	}

	series, err := s.app.Valuation.ComputeHistoricalSeries(r.Context(), holdings, window, reference)
	if err != nil {
		s.writeServiceError(w, err, "Could not refresh market data")
		return nil, false
	}
	return series, true
}

func (s *Server) handlePortfolioHistory(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	series, ok := s.series(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, series)
}

func (s *Server) handlePortfolioHistoryChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	series, ok := s.series(w, r)
	if !ok {
		return
	}
	if len(series.Points) < 2 {
		WriteErrorWithCode(w, http.StatusNotFound, "Not enough history to chart", "no_data")
		return
	}

	png, err := valuation.RenderSeriesChart(series)
	if err != nil {
		s.writeServiceError(w, err, "Could not render chart")
		return
	}
	WritePNG(w, png)
}

// allocation parses the group_by and currency parameters and computes the breakdown.
func (s *Server) allocation(w http.ResponseWriter, r *http.Request) ([]models.AllocationSlice, string, bool) {
	groupBy, err := groupByParam(r)
	if err != nil {
		s.writeServiceError(w, err, "Invalid request")
		return nil, "", false
	}
	reference, err := s.referenceCurrency(r)
	if err != nil {
		s.writeServiceError(w, err, "Invalid request")
		return nil, "", false
	}
	holdings, ok := s.loadHoldings(w, r)
	if !ok {
		return nil, "", false
	}

	slices, err := s.app.Valuation.ComputeAllocation(r.Context(), holdings, reference, groupBy)
	if err != nil {
		s.writeServiceError(w, err, "Could not refresh market data")
		return nil, "", false
	}
	if slices == nil {
		slices = []models.AllocationSlice{}
	}
	return slices, reference, true
}

func (s *Server) handlePortfolioAllocation(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	slices, reference, ok := s.allocation(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reference_currency": reference,
		"slices":             slices,
	})
}

func (s *Server) handlePortfolioAllocationChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	slices, _, ok := s.allocation(w, r)
	if !ok {
		return
	}
	if len(slices) == 0 {
		WriteErrorWithCode(w, http.StatusNotFound, "Nothing to allocate", "no_data")
		return
	}

	png, err := valuation.RenderAllocationChart(slices)
	if err != nil {
		s.writeServiceError(w, err, "Could not render chart")
		return
	}
	WritePNG(w, png)
}

// handlePortfolioValuation returns snapshot, series and allocation from one pass.
func (s *Server) handlePortfolioValuation(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	window, err := s.windowParam(r)
	if err != nil {
		s.writeServiceError(w, err, "Invalid request")
		return
	}
	groupBy, err := groupByParam(r)
	if err != nil {
		s.writeServiceError(w, err, "Invalid request")
		return
	}
	reference, err := s.referenceCurrency(r)
	if err != nil {
		s.writeServiceError(w, err, "Invalid request")
		return
	}
	holdings, ok := s.loadHoldings(w, r)
	if !ok {
		return
	}

	v, err := s.app.Valuation.ComputeValuation(r.Context(), holdings, window, reference, groupBy)
	if err != nil {
		s.writeServiceError(w, err, "Could not refresh market data")
		return
	}
	WriteJSON(w, http.StatusOK, v)
}
