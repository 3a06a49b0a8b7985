package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/bobmcallan/folium/internal/common"
	"github.com/bobmcallan/folium/internal/interfaces"
	"github.com/bobmcallan/folium/internal/models"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message})
}

// WriteErrorWithCode writes a JSON error response with an error code.
func WriteErrorWithCode(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// WritePNG writes a PNG image response.
func WritePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// RequireMethod validates the HTTP method and returns true if it matches.
// If it doesn't match, it writes a 405 response and returns false.
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// PathParam extracts a path parameter from the URL path.
// For a pattern like /api/holdings/{id}, calling PathParam(r, "/api/holdings/", "")
// extracts the {id} part.
func PathParam(r *http.Request, prefix, suffix string) string {
	path := r.URL.Path
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := path[len(prefix):]
	if suffix != "" {
		idx := strings.Index(rest, suffix)
		if idx < 0 {
			return rest
		}
		return rest[:idx]
	}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[:idx]
	}
	return rest
}

// writeServiceError maps service errors onto HTTP statuses. Validation
// failures are 400, missing records 404, anything else a generic 500.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, models.ErrInvalidHolding),
		errors.Is(err, models.ErrInvalidWindow),
		errors.Is(err, models.ErrInvalidGroupBy),
		errors.Is(err, models.ErrInvalidCurrency):
		WriteErrorWithCode(w, http.StatusBadRequest, err.Error(), "invalid_request")
	case errors.Is(err, interfaces.ErrNotFound):
		WriteErrorWithCode(w, http.StatusNotFound, "Holding not found", "not_found")
	default:
		s.logger.Error().Err(err).Msg(fallback)
		WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// tickerPattern admits exchange suffixes (ENI.MI), index carets (^GSPC),
// FX pairs (EURUSD=X) and share classes (BRK-B).
var tickerPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.=_-]{0,31}$`)

// validateTicker normalises a ticker from a URL path.
// Returns the ticker and an error message, empty when valid.
func validateTicker(ticker string) (string, string) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return "", "ticker is required"
	}
	if strings.Contains(ticker, "..") || !tickerPattern.MatchString(ticker) {
		return "", "invalid ticker: " + ticker
	}
	return ticker, ""
}

// referenceCurrency resolves the reference currency for a request: the
// currency query parameter, then the user context, then config.
func (s *Server) referenceCurrency(r *http.Request) (string, error) {
	if q := r.URL.Query().Get("currency"); q != "" {
		rc := models.NormalizeCurrency(q)
		if !models.IsCurrencyCode(rc) {
			return "", models.ErrInvalidCurrency
		}
		return rc, nil
	}
	return s.app.ResolveReference(r.Context()), nil
}

// windowParam parses the window query parameter, falling back to config.
func (s *Server) windowParam(r *http.Request) (models.Window, error) {
	w := r.URL.Query().Get("window")
	if w == "" {
		w = s.app.Config.Valuation.DefaultWindow
	}
	return models.ParseWindow(w)
}

// groupByParam parses the group_by query parameter, defaulting to category.
func groupByParam(r *http.Request) (models.GroupBy, error) {
	g := r.URL.Query().Get("group_by")
	if g == "" {
		return models.GroupByCategory, nil
	}
	return models.ParseGroupBy(g)
}

// parseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// userID returns the user scope of the request.
func userID(r *http.Request) string {
	return common.ResolveUserID(r.Context())
}
