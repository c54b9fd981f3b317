// Package coinglass reads Bitcoin derivatives metrics from the Coinglass
// public API. The free tier answers only part of the endpoints, callers treat
// every metric as optional.
package coinglass

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/denowallet/portfolio/httpx"
)

const BaseURL = "https://open-api.coinglass.com/public/v2"

// ErrNoData is returned when the API answered without the metric.
var ErrNoData = errors.New("coinglass: no data")

// Client calls the Coinglass API.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
}

// New returns a client, apiKey may be empty.
func New(apiKey string, h httpx.HTTPClient) *Client {
	c := &Client{http: httpx.New(15 * time.Second), baseURL: BaseURL, apiKey: apiKey}
	if h != nil {
		c.http = c.http.WithHTTP(h)
	}
	return c
}

// WithBaseURL returns a copy of c calling another API root.
func (c *Client) WithBaseURL(u string) *Client {
	cp := *c
	cp.baseURL = strings.TrimRight(u, "/")
	return &cp
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (any, error) {
	var jobj any
	addr := c.baseURL + path + "?" + q.Encode()
	var err error
	if c.apiKey != "" {
		err = c.http.GetJSON(ctx, addr, &jobj, "CG-API-KEY", c.apiKey, "coinglassSecret", c.apiKey)
	} else {
		err = c.http.GetJSON(ctx, addr, &jobj)
	}
	return jobj, err
}

// OpenInterest returns the aggregated open interest of symbol, in USD.
func (c *Client) OpenInterest(ctx context.Context, symbol string) (float64, error) {
	jobj, err := c.get(ctx, "/open_interest", url.Values{"symbol": {symbol}, "time_type": {"all"}})
	if err != nil {
		return 0, err
	}
	v, err := httpx.Float(jobj, "$.data.openInterest")
	if err != nil || v == 0 {
		return 0, ErrNoData
	}
	return v, nil
}

// FundingRate returns the funding rate of symbol averaged over exchanges.
// An exchange without a rate counts as 0.
func (c *Client) FundingRate(ctx context.Context, symbol string) (float64, error) {
	jobj, err := c.get(ctx, "/funding", url.Values{"symbol": {symbol}})
	if err != nil {
		return 0, err
	}
	obj, _ := jobj.(map[string]any)
	data, ok := obj["data"].([]any)
	if !ok || len(data) == 0 {
		return 0, ErrNoData
	}
	var sum float64
	for _, d := range data {
		if rate, err := httpx.Float(d, "$.rate"); err == nil {
			sum += rate
		}
	}
	return sum / float64(len(data)), nil
}

// LongShortRatio returns longs over shorts for symbol over 24h.
func (c *Client) LongShortRatio(ctx context.Context, symbol string) (float64, error) {
	jobj, err := c.get(ctx, "/long_short", url.Values{"symbol": {symbol}, "time_type": {"h24"}})
	if err != nil {
		return 0, err
	}
	longRate, err := httpx.Float(jobj, "$.data.longRate")
	if err != nil || longRate == 0 || longRate >= 100 {
		return 0, ErrNoData
	}
	return longRate / (100 - longRate), nil
}
