// Package models defines data structures for Folium
package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultCurrency is applied to holdings created without a currency.
const DefaultCurrency = "EUR"

// ErrInvalidHolding is returned when a holding violates the model invariants.
var ErrInvalidHolding = errors.New("invalid holding")

var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// IsCurrencyCode reports whether code is a 3-letter upper-case currency code.
func IsCurrencyCode(code string) bool {
	return currencyCodePattern.MatchString(code)
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Category is the kind of a holding. Stocks and ETFs are securities;
// cash accounts carry a balance only.
type Category string

const (
	CategoryStock       Category = "stock"
	CategoryETF         Category = "etf"
	CategoryCashAccount Category = "cash_account"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryStock, CategoryETF, CategoryCashAccount}

type categoryInfo struct {
	label string
	color string
}

var categoryTable = map[Category]categoryInfo{
	CategoryStock:       {label: "Stocks", color: "2563eb"},
	CategoryETF:         {label: "ETFs", color: "16a34a"},
	CategoryCashAccount: {label: "Cash Accounts", color: "f59e0b"},
}

// unknownCategoryColor is used for records carrying a category this build does not know.
const unknownCategoryColor = "9ca3af"

// ParseCategory resolves a category name. It accepts the canonical values
// plus the common aliases used by import files and forms.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stock", "equity", "share", "azione":
		return CategoryStock, nil
	case "etf":
		return CategoryETF, nil
	case "cash_account", "cash", "bank_account", "bank account", "conto bancario":
		return CategoryCashAccount, nil
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidHolding, s)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryTable[c]
	return ok
}

// IsSecurity reports whether the category is a traded security.
func (c Category) IsSecurity() bool {
	return c == CategoryStock || c == CategoryETF
}

// Label returns the display label for the category.
func (c Category) Label() string {
	if info, ok := categoryTable[c]; ok {
		return info.label
	}
	return string(c)
}

// Color returns the hex chart colour (without '#') for the category.
func (c Category) Color() string {
	if info, ok := categoryTable[c]; ok {
		return info.color
	}
	return unknownCategoryColor
}

// Holding is a tracked position: either a security purchase or a cash-account balance.
// Monetary fields are denominated in Currency.
type Holding struct {
	ID             string    `json:"id" badgerhold:"key"`
	UserID         string    `json:"user_id" badgerhold:"index"`
	Name           string    `json:"name"`
	Category       Category  `json:"category"`
	Ticker         string    `json:"ticker,omitempty"`
	Currency       string    `json:"currency"`
	Quantity       float64   `json:"quantity,omitempty"`
	PurchasePrice  float64   `json:"purchase_price,omitempty"`
	PurchaseDate   time.Time `json:"purchase_date"`
	InitialValue   float64   `json:"initial_value"`
	CurrentValue   float64   `json:"current_value"`
	DailyChange    *float64  `json:"daily_change,omitempty"`         // per unit, in Currency
	DailyChangePct *float64  `json:"daily_change_percent,omitempty"` // fraction: 0.025 = 2.5%
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsSecurity reports whether the holding is a stock or ETF.
func (h Holding) IsSecurity() bool {
	return h.Category.IsSecurity()
}

// RecomputeInitialValue sets InitialValue from quantity and purchase price.
// Cash accounts are left untouched.
func (h *Holding) RecomputeInitialValue() {
	if h.IsSecurity() {
		h.InitialValue = h.Quantity * h.PurchasePrice
	}
}

// Validate checks the model invariants.
func (h Holding) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidHolding)
	}
	if !h.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidHolding, h.Category)
	}
	if !IsCurrencyCode(h.Currency) {
		return fmt.Errorf("%w: currency %q is not a 3-letter code", ErrInvalidHolding, h.Currency)
	}
	if h.InitialValue < 0 || h.CurrentValue < 0 {
		return fmt.Errorf("%w: values must not be negative", ErrInvalidHolding)
	}

	if h.IsSecurity() {
		if strings.TrimSpace(h.Ticker) == "" {
			return fmt.Errorf("%w: ticker is required for %s", ErrInvalidHolding, h.Category)
		}
		if h.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive", ErrInvalidHolding)
		}
		if h.PurchasePrice <= 0 {
			return fmt.Errorf("%w: purchase price must be positive", ErrInvalidHolding)
		}
		return nil
	}

	if h.Ticker != "" || h.Quantity != 0 || h.PurchasePrice != 0 {
		return fmt.Errorf("%w: cash accounts carry no ticker, quantity or purchase price", ErrInvalidHolding)
	}
	return nil
}

// HoldingUpdate is a partial edit. Nil fields are left unchanged.
type HoldingUpdate struct {
	Name          *string    `json:"name,omitempty"`
	Quantity      *float64   `json:"quantity,omitempty"`
	PurchasePrice *float64   `json:"purchase_price,omitempty"`
	PurchaseDate  *time.Time `json:"purchase_date,omitempty"`
	Balance       *float64   `json:"balance,omitempty"` // cash accounts only
}

// TouchesPosition reports whether the update changes quantity, price or date.
func (u HoldingUpdate) TouchesPosition() bool {
	return u.Quantity != nil || u.PurchasePrice != nil || u.PurchaseDate != nil
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
