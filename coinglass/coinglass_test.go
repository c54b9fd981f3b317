package coinglass_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/denowallet/portfolio/coinglass"
	"github.com/stretchr/testify/require"
)

func server(t *testing.T, bodies map[string]string) *coinglass.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return coinglass.New("", nil).WithBaseURL(srv.URL)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	client := server(t, map[string]string{
		"/open_interest": `{"code":"0","data":{"openInterest":3.2e10}}`,
		"/funding":       `{"data":[{"exchangeName":"Binance","rate":0.01},{"exchangeName":"OKX","rate":0.03},{"exchangeName":"dYdX"}]}`,
		"/long_short":    `{"data":{"longRate":60}}`,
	})

	oi, err := client.OpenInterest(t.Context(), "BTC")
	require.NoError(t, err)
	require.Equal(t, 3.2e10, oi)

	funding, err := client.FundingRate(t.Context(), "BTC")
	require.NoError(t, err)
	require.InDelta(t, 0.04/3, funding, 1e-12)

	ratio, err := client.LongShortRatio(t.Context(), "BTC")
	require.NoError(t, err)
	require.InDelta(t, 1.5, ratio, 1e-12)
}

func TestMetrics_NoData(t *testing.T) {
	t.Parallel()

	client := server(t, map[string]string{
		"/open_interest": `{"code":"30001","msg":"api key missing","data":null}`,
		"/funding":       `{"data":[]}`,
	})

	_, err := client.OpenInterest(t.Context(), "BTC")
	require.ErrorIs(t, err, coinglass.ErrNoData)

	_, err = client.FundingRate(t.Context(), "BTC")
	require.ErrorIs(t, err, coinglass.ErrNoData)

	// unauthorized
	_, err = client.LongShortRatio(t.Context(), "BTC")
	require.Error(t, err)
}
