package server

import (
	"net/http"

	"github.com/bobmcallan/folium/internal/models"
)

// holdingRequest is the body of POST /api/holdings. Securities carry ticker,
// quantity and purchase price; cash accounts carry a balance.
type holdingRequest struct {
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Ticker        string  `json:"ticker"`
	Currency      string  `json:"currency"`
	Quantity      float64 `json:"quantity"`
	PurchasePrice float64 `json:"purchase_price"`
	PurchaseDate  string  `json:"purchase_date"`
	Balance       float64 `json:"balance"`
}

// holdingUpdateRequest is the body of PATCH /api/holdings/{id}.
type holdingUpdateRequest struct {
	Name          *string  `json:"name"`
	Quantity      *float64 `json:"quantity"`
	PurchasePrice *float64 `json:"purchase_price"`
	PurchaseDate  *string  `json:"purchase_date"`
	Balance       *float64 `json:"balance"`
}

func (s *Server) handleHoldingList(w http.ResponseWriter, r *http.Request) {
	holdings, err := s.app.Holdings.ListHoldings(r.Context(), userID(r))
	if err != nil {
		s.writeServiceError(w, err, "Could not load holdings")
		return
	}
	if holdings == nil {
		holdings = []models.Holding{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"holdings": holdings,
		"count":    len(holdings),
	})
}

func (s *Server) handleHoldingCreate(w http.ResponseWriter, r *http.Request) {
	var req holdingRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	category, err := models.ParseCategory(req.Category)
	if err != nil {
		s.writeServiceError(w, err, "Could not create holding")
		return
	}

	h := models.Holding{
		Name:     req.Name,
		Category: category,
		Currency: req.Currency,
	}
	if req.PurchaseDate != "" {
		d, ok := parseDate(req.PurchaseDate)
		if !ok {
			WriteError(w, http.StatusBadRequest, "purchase_date must be YYYY-MM-DD or RFC 3339")
			return
		}
		h.PurchaseDate = d
	}

	if category.IsSecurity() {
		ticker, errMsg := validateTicker(req.Ticker)
		if errMsg != "" {
			WriteError(w, http.StatusBadRequest, errMsg)
			return
		}
		h.Ticker = ticker
		h.Quantity = req.Quantity
		h.PurchasePrice = req.PurchasePrice
	} else {
		h.InitialValue = req.Balance
		h.CurrentValue = req.Balance
	}

	created, err := s.app.Holdings.CreateHolding(r.Context(), userID(r), h)
	if err != nil {
		s.writeServiceError(w, err, "Could not create holding")
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) handleHoldingGet(w http.ResponseWriter, r *http.Request, id string) {
	h, err := s.app.Holdings.GetHolding(r.Context(), userID(r), id)
	if err != nil {
		s.writeServiceError(w, err, "Could not load holding")
		return
	}
	WriteJSON(w, http.StatusOK, h)
}

func (s *Server) handleHoldingUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var req holdingUpdateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	update := models.HoldingUpdate{
		Name:          req.Name,
		Quantity:      req.Quantity,
		PurchasePrice: req.PurchasePrice,
		Balance:       req.Balance,
	}
	if req.PurchaseDate != nil {
		d, ok := parseDate(*req.PurchaseDate)
		if !ok {
			WriteError(w, http.StatusBadRequest, "purchase_date must be YYYY-MM-DD or RFC 3339")
			return
		}
		update.PurchaseDate = &d
	}

	h, err := s.app.Holdings.UpdateHolding(r.Context(), userID(r), id, update)
	if err != nil {
		s.writeServiceError(w, err, "Could not update holding")
		return
	}
	WriteJSON(w, http.StatusOK, h)
}

func (s *Server) handleHoldingDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.app.Holdings.DeleteHolding(r.Context(), userID(r), id); err != nil {
		s.writeServiceError(w, err, "Could not delete holding")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHoldingsRefresh handles POST /api/holdings/refresh: re-prices every
// security from live quotes.
func (s *Server) handleHoldingsRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	holdings, err := s.app.Holdings.RefreshHoldings(r.Context(), userID(r))
	if err != nil && holdings == nil {
		s.writeServiceError(w, err, "Could not refresh market data")
		return
	}
	if holdings == nil {
		holdings = []models.Holding{}
	}
	resp := map[string]interface{}{
		"holdings": holdings,
		"count":    len(holdings),
	}
	if err != nil {
		// partial refresh: some holdings kept their stored values
		resp["warning"] = err.Error()
	}
	WriteJSON(w, http.StatusOK, resp)
}
