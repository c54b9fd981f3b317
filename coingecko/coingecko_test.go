package coingecko_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/denowallet/portfolio/coingecko"
	"github.com/denowallet/portfolio/httpx/httpxmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func jsonResponse(req *http.Request, code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Request:    req,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestMarkets(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock http client
	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)

	// Assert: the query carries ids, currency and order.
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/api/v3/coins/markets", req.URL.Path)
			q := req.URL.Query()
			require.Equal(t, "usd", q.Get("vs_currency"))
			require.Equal(t, "bitcoin,ethereum", q.Get("ids"))
			require.Equal(t, "market_cap_desc", q.Get("order"))
			require.Equal(t, "false", q.Get("sparkline"))
			return jsonResponse(req, http.StatusOK, `[
				{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":100000,"market_cap":2e12,"total_volume":5e10,"price_change_percentage_24h":1.5},
				{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":4000,"market_cap":5e11,"total_volume":2e10,"price_change_percentage_24h":null}
			]`), nil
		}).
		Times(1)

	client := coingecko.New(coingecko.WithHTTPClient(httpClient))

	// Act
	markets, err := client.Markets(t.Context(), coingecko.MarketsQuery{IDs: []string{"bitcoin", "ethereum"}})

	// Assert
	require.NoError(t, err)
	require.Len(t, markets, 2)
	require.Equal(t, 100000.0, markets[0].CurrentPrice)
	require.Equal(t, 5e10, markets[0].TotalVolume)
	require.Zero(t, markets[1].PriceChangePercentage24h)
}

func TestGlobalMarketCap(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/api/v3/global", req.URL.Path)
			return jsonResponse(req, http.StatusOK, `{"data":{"total_market_cap":{"usd":3.5e12,"eur":3.2e12}}}`), nil
		})

	client := coingecko.New(coingecko.WithHTTPClient(httpClient))
	got, err := client.GlobalMarketCap(t.Context())

	require.NoError(t, err)
	require.Equal(t, 3.5e12, got)
}

func TestMarketChart(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := httpxmock.NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/api/v3/coins/bitcoin/market_chart", req.URL.Path)
			require.Equal(t, "200", req.URL.Query().Get("days"))
			require.Equal(t, "daily", req.URL.Query().Get("interval"))
			return jsonResponse(req, http.StatusOK, `{"prices":[[1735689600000,93000.5],[1735776000000,94000]],"market_caps":[]}`), nil
		})

	client := coingecko.New(coingecko.WithHTTPClient(httpClient))
	closes, err := client.Closes(t.Context(), "bitcoin", 200)

	require.NoError(t, err)
	require.Equal(t, []float64{93000.5, 94000}, closes)
}

func TestListCoins(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "250", r.URL.Query().Get("per_page"))
		require.Equal(t, "tr", r.URL.Query().Get("locale"))
		page := r.URL.Query().Get("page")
		w.Write([]byte(`[{"id":"coin-` + page + `","symbol":"c` + page + `","name":"Coin ` + page + `","image":"i","current_price":1,"market_cap":2,"price_change_percentage_24h":3}]`))
	}))
	defer srv.Close()

	client := coingecko.New(coingecko.WithBaseURL(srv.URL))
	listings, err := client.ListCoins(t.Context())

	require.NoError(t, err)
	require.EqualValues(t, 4, calls.Load())
	require.Len(t, listings, 4)
	require.Equal(t, coingecko.Listing{ID: "coin-1", Name: "Coin 1", Symbol: "C1", Icon: "i", Price: 1, Change24h: 3, MarketCap: 2}, listings[0])

	l, ok := coingecko.Lookup(listings, "c3")
	require.True(t, ok)
	require.Equal(t, "coin-3", l.ID)
}

func TestListCoins_PageFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "3" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := coingecko.New(coingecko.WithBaseURL(srv.URL)).ListCoins(t.Context())
	require.ErrorContains(t, err, "page 3")
}

func TestProxy(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/simple/price", r.URL.Path)
		require.Equal(t, "ids=bitcoin&vs_currencies=usd", r.URL.RawQuery)
		require.Equal(t, coingecko.ProxyUserAgent, r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":{"error_code":429}}`))
	}))
	defer srv.Close()

	client := coingecko.New(coingecko.WithBaseURL(srv.URL))
	status, body, err := client.Proxy(t.Context(), "/simple/price", "ids=bitcoin&vs_currencies=usd")

	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.JSONEq(t, `{"status":{"error_code":429}}`, string(body))
}

func TestPriceFetcher(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var batches []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query().Get("ids")
		mu.Lock()
		batches = append(batches, ids)
		mu.Unlock()
		switch ids {
		case "aave,fantom":
			w.WriteHeader(http.StatusTooManyRequests)
		case "bitcoin,ethereum":
			w.Write([]byte(`{"bitcoin":{"usd":100000,"usd_24h_change":1.5},"ethereum":{"usd":4000,"usd_24h_change":-2}}`))
		default:
			w.Write([]byte(`{"pepe":{"usd":0.00001,"usd_24h_change":0}}`))
		}
	}))
	defer srv.Close()

	f := coingecko.NewPriceFetcher(coingecko.New(coingecko.WithBaseURL(srv.URL)), time.Millisecond)
	quotes, err := f.Fetch(t.Context(), []string{"bitcoin", "ethereum", "aave", "fantom", "pepe"})

	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	// the rate limited batch is retried 3 times then skipped.
	require.Equal(t, []string{"bitcoin,ethereum", "aave,fantom", "aave,fantom", "aave,fantom", "pepe"}, batches)
	require.Len(t, quotes, 3)
	require.Equal(t, 100000.0, quotes["bitcoin"].USD)
	require.Equal(t, -2.0, quotes["ethereum"].Change24h)
}

func TestPriceFetcher_NoPrices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := coingecko.NewPriceFetcher(coingecko.New(coingecko.WithBaseURL(srv.URL)), time.Millisecond)
	_, err := f.Fetch(t.Context(), []string{"bitcoin"})
	require.ErrorIs(t, err, coingecko.ErrNoPrices)
	require.True(t, strings.Contains(err.Error(), "no price"))
}
