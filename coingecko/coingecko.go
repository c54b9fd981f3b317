// Package coingecko is a client of the public CoinGecko v3 API.
package coingecko

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/denowallet/portfolio"
	"github.com/denowallet/portfolio/httpx"
)

// BaseURL is the public API root.
const BaseURL = "https://api.coingecko.com/api/v3"

// ProxyUserAgent is sent by Proxy, CoinGecko rejects some bare agents.
const ProxyUserAgent = "Mozilla/5.0 (compatible; DenoWallet/1.0)"

// Client calls the CoinGecko API.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
}

type Option func(*Client)

// WithHTTPClient sends requests through h.
func WithHTTPClient(h httpx.HTTPClient) Option {
	return func(c *Client) { c.http = c.http.WithHTTP(h) }
}

// WithBaseURL points the client to another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithAPIKey sends a demo API key, raising the rate limit.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func New(opts ...Option) *Client {
	c := &Client{http: httpx.New(20 * time.Second), baseURL: BaseURL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) url(path string, q url.Values) string {
	if len(q) == 0 {
		return c.baseURL + path
	}
	return c.baseURL + path + "?" + q.Encode()
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, data any) error {
	if c.apiKey != "" {
		return c.http.GetJSON(ctx, c.url(path, q), data, "x-cg-demo-api-key", c.apiKey)
	}
	return c.http.GetJSON(ctx, c.url(path, q), data)
}

// Market is a row of /coins/markets.
type Market struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	Image                    string  `json:"image"`
	CurrentPrice             float64 `json:"current_price"`
	MarketCap                float64 `json:"market_cap"`
	TotalVolume              float64 `json:"total_volume"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
}

// MarketsQuery selects rows of /coins/markets. Zero fields are not sent.
type MarketsQuery struct {
	IDs     []string
	PerPage int
	Page    int
	Locale  string
}

// Markets returns market rows in USD ordered by market cap.
func (c *Client) Markets(ctx context.Context, q MarketsQuery) ([]Market, error) {
	v := url.Values{}
	v.Set("vs_currency", "usd")
	if len(q.IDs) > 0 {
		v.Set("ids", strings.Join(q.IDs, ","))
	}
	v.Set("order", "market_cap_desc")
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	v.Set("sparkline", "false")
	if q.Locale != "" {
		v.Set("locale", q.Locale)
	}
	var markets []Market
	if err := c.getJSON(ctx, "/coins/markets", v, &markets); err != nil {
		return nil, err
	}
	return markets, nil
}

// GlobalMarketCap returns the total crypto market cap in USD.
func (c *Client) GlobalMarketCap(ctx context.Context) (float64, error) {
	var jobj any
	if err := c.getJSON(ctx, "/global", nil, &jobj); err != nil {
		return 0, err
	}
	return httpx.Float(jobj, "$.data.total_market_cap.usd")
}

// SimplePrice returns the USD price and 24h change of ids.
//
// Unknown ids are absent from the result.
func (c *Client) SimplePrice(ctx context.Context, ids []string) (map[string]portfolio.Quote, error) {
	v := url.Values{}
	v.Set("ids", strings.Join(ids, ","))
	v.Set("vs_currencies", "usd")
	v.Set("include_24h_change", "true")
	quotes := make(map[string]portfolio.Quote)
	if err := c.getJSON(ctx, "/simple/price", v, &quotes); err != nil {
		return nil, err
	}
	return quotes, nil
}

// MarketChart returns the USD price history of id over the last days.
// interval is "daily" or empty for the API's automatic granularity.
func (c *Client) MarketChart(ctx context.Context, id string, days int, interval string) ([]portfolio.Point, error) {
	v := url.Values{}
	v.Set("vs_currency", "usd")
	v.Set("days", strconv.Itoa(days))
	if interval != "" {
		v.Set("interval", interval)
	}
	var chart struct {
		Prices [][2]float64 `json:"prices"`
	}
	if err := c.getJSON(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", v, &chart); err != nil {
		return nil, err
	}
	points := make([]portfolio.Point, 0, len(chart.Prices))
	for _, p := range chart.Prices {
		points = append(points, portfolio.Point{Time: time.UnixMilli(int64(p[0])).UTC(), Value: p[1]})
	}
	return points, nil
}

// Closes returns the daily closing prices of id over the last days, oldest first.
func (c *Client) Closes(ctx context.Context, id string, days int) ([]float64, error) {
	points, err := c.MarketChart(ctx, id, days, "daily")
	if err != nil {
		return nil, err
	}
	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Value
	}
	return closes, nil
}

// Proxy forwards a GET of path?rawQuery to the API and returns the upstream
// status and body verbatim.
func (c *Client) Proxy(ctx context.Context, path, rawQuery string) (int, []byte, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	addr := c.baseURL + path
	if rawQuery != "" {
		addr += "?" + rawQuery
	}
	header := http.Header{}
	header.Set("User-Agent", ProxyUserAgent)
	if c.apiKey != "" {
		header.Set("x-cg-demo-api-key", c.apiKey)
	}
	status, _, body, err := c.http.Get(ctx, addr, header)
	if err != nil {
		return 0, nil, fmt.Errorf("cannot proxy %s: %w", path, err)
	}
	return status, body, nil
}
