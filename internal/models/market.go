package models

import "time"

// RawQuote is a quote as returned by one upstream retrieval path, before
// normalisation. Optional fields are nil when the provider omitted them.
type RawQuote struct {
	Ticker        string
	Price         float64
	PreviousClose float64
	Change        *float64 // absolute change per unit
	ChangePct     *float64 // whole percent (2.5) or fraction (0.025), provider dependent
	Currency      string
	LongName      string
	ShortName     string
	Source        string
}

// Quote is a normalised, validated live quote.
type Quote struct {
	Ticker         string   `json:"ticker"`
	Name           string   `json:"name"`
	Price          float64  `json:"price"`
	Currency       string   `json:"currency"`
	DailyChange    *float64 `json:"daily_change,omitempty"`
	DailyChangePct *float64 `json:"daily_change_percent,omitempty"` // fraction
	Source         string   `json:"source,omitempty"`
}

// PricePoint is a daily closing price.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// SearchResult is a security matched by a search query.
type SearchResult struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Type     string `json:"type"`
}

// Security types accepted from search results.
const (
	SecurityTypeEquity = "EQUITY"
	SecurityTypeETF    = "ETF"
)
