// Package yahoo provides a client for the Yahoo Finance query API
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/folium/internal/common"
	"github.com/bobmcallan/folium/internal/interfaces"
	"github.com/bobmcallan/folium/internal/models"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 5 // requests per second

	sourceQuote = "yahoo-quote"
	sourceChart = "yahoo-chart"
)

// Client serves live quotes, daily history, FX rates and search from Yahoo Finance.
// No API key is required.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Yahoo Finance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Yahoo API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request and decodes the JSON body
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Debug().Err(err).Str("path", path).Dur("elapsed", elapsed).Msg("Yahoo API request failed")
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("Yahoo API request")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// quoteResponse is the /v7/finance/quote envelope
type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	Symbol                     string   `json:"symbol"`
	RegularMarketPrice         float64  `json:"regularMarketPrice"`
	RegularMarketPreviousClose float64  `json:"regularMarketPreviousClose"`
	RegularMarketChange        *float64 `json:"regularMarketChange"`
	RegularMarketChangePercent *float64 `json:"regularMarketChangePercent"`
	Currency                   string   `json:"currency"`
	LongName                   string   `json:"longName"`
	ShortName                  string   `json:"shortName"`
}

func (c *Client) fetchQuoteResult(ctx context.Context, symbol string) (*quoteResult, error) {
	params := url.Values{}
	params.Set("symbols", symbol)

	var resp quoteResponse
	if err := c.get(ctx, "/v7/finance/quote", params, &resp); err != nil {
		return nil, err
	}
	for i := range resp.QuoteResponse.Result {
		r := &resp.QuoteResponse.Result[i]
		if strings.EqualFold(r.Symbol, symbol) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("no quote for %s", symbol)
}

// FetchQuote retrieves a raw quote from the quote endpoint.
func (c *Client) FetchQuote(ctx context.Context, ticker string) (*models.RawQuote, error) {
	r, err := c.fetchQuoteResult(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return &models.RawQuote{
		Ticker:        ticker,
		Price:         r.RegularMarketPrice,
		PreviousClose: r.RegularMarketPreviousClose,
		Change:        r.RegularMarketChange,
		ChangePct:     r.RegularMarketChangePercent,
		Currency:      r.Currency,
		LongName:      r.LongName,
		ShortName:     r.ShortName,
		Source:        sourceQuote,
	}, nil
}

// chartResponse is the /v8/finance/chart envelope
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol             string  `json:"symbol"`
		Currency           string  `json:"currency"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		PreviousClose      float64 `json:"previousClose"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
		LongName           string  `json:"longName"`
		ShortName          string  `json:"shortName"`
		GMTOffset          int     `json:"gmtoffset"` // seconds east of UTC
		ExchangeTimezone   string  `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (c *Client) fetchChart(ctx context.Context, ticker string, params url.Values) (*chartResult, error) {
	path := "/v8/finance/chart/" + url.PathEscape(ticker)

	var resp chartResponse
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart %s: %s", ticker, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart %s: empty result", ticker)
	}
	return &resp.Chart.Result[0], nil
}

// FetchChartQuote retrieves a raw quote from the chart endpoint metadata.
// It is the secondary retrieval path when the quote endpoint has no usable data.
func (c *Client) FetchChartQuote(ctx context.Context, ticker string) (*models.RawQuote, error) {
	params := url.Values{}
	params.Set("range", "1d")
	params.Set("interval", "1d")

	r, err := c.fetchChart(ctx, ticker, params)
	if err != nil {
		return nil, err
	}

	prev := r.Meta.PreviousClose
	if prev <= 0 {
		prev = r.Meta.ChartPreviousClose
	}
	return &models.RawQuote{
		Ticker:        ticker,
		Price:         r.Meta.RegularMarketPrice,
		PreviousClose: prev,
		Currency:      r.Meta.Currency,
		LongName:      r.Meta.LongName,
		ShortName:     r.Meta.ShortName,
		Source:        sourceChart,
	}, nil
}

// ChartQuotes exposes the chart retrieval path as a QuoteSource.
func (c *Client) ChartQuotes() interfaces.QuoteSource {
	return interfaces.QuoteSourceFunc(c.FetchChartQuote)
}

// FetchHistory retrieves daily closes from start to now. Null closes are skipped.
func (c *Client) FetchHistory(ctx context.Context, ticker string, start time.Time) ([]models.PricePoint, error) {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(start.Unix(), 10))
	params.Set("period2", strconv.FormatInt(c.now().Unix(), 10))
	params.Set("interval", "1d")

	r, err := c.fetchChart(ctx, ticker, params)
	if err != nil {
		return nil, err
	}
	if len(r.Indicators.Quote) == 0 {
		return nil, nil
	}

	loc := r.exchangeLocation()
	closes := r.Indicators.Quote[0].Close
	points := make([]models.PricePoint, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, models.PricePoint{
			Date:  tradingDay(ts, loc),
			Close: *closes[i],
		})
	}

	c.logger.Debug().Str("ticker", ticker).Int("bars", len(points)).Msg("Yahoo history fetched")
	return points, nil
}

// exchangeLocation returns the exchange's time zone, falling back to its
// fixed GMT offset when the zone name is unknown to this host.
func (r *chartResult) exchangeLocation() *time.Location {
	if r.Meta.ExchangeTimezone != "" {
		if loc, err := time.LoadLocation(r.Meta.ExchangeTimezone); err == nil {
			return loc
		}
	}
	return time.FixedZone("", r.Meta.GMTOffset)
}

// tradingDay maps a bar timestamp to its exchange-local calendar date,
// expressed as UTC midnight.
func tradingDay(ts int64, loc *time.Location) time.Time {
	y, m, d := time.Unix(ts, 0).In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FetchRate retrieves the spot rate for from→to via the "<FROM><TO>=X" symbol.
func (c *Client) FetchRate(ctx context.Context, from, to string) (float64, error) {
	symbol := strings.ToUpper(from) + strings.ToUpper(to) + "=X"

	r, err := c.fetchQuoteResult(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if r.RegularMarketPrice <= 0 {
		return 0, fmt.Errorf("no rate for %s", symbol)
	}
	return r.RegularMarketPrice, nil
}

// searchResponse is the /v1/finance/search envelope
type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		Exchange  string `json:"exchange"`
		QuoteType string `json:"quoteType"`
		// IsYahooFinance is false for entries Yahoo lists but does not price
		IsYahooFinance *bool `json:"isYahooFinance"`
	} `json:"quotes"`
}

// Search looks up securities by free text. Type filtering is left to the caller.
func (c *Client) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("newsCount", "0")

	var resp searchResponse
	if err := c.get(ctx, "/v1/finance/search", params, &resp); err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(resp.Quotes))
	for _, q := range resp.Quotes {
		if q.IsYahooFinance != nil && !*q.IsYahooFinance {
			continue
		}
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		results = append(results, models.SearchResult{
			Ticker:   q.Symbol,
			Name:     name,
			Exchange: q.Exchange,
			Type:     q.QuoteType,
		})
	}
	return results, nil
}

// Ensure Client implements the market data sources
var (
	_ interfaces.QuoteSource   = (*Client)(nil)
	_ interfaces.HistorySource = (*Client)(nil)
	_ interfaces.RateSource    = (*Client)(nil)
	_ interfaces.SearchSource  = (*Client)(nil)
)
