package cmd

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/denowallet/portfolio"
	"github.com/denowallet/portfolio/coingecko"
	"github.com/denowallet/portfolio/storage"
	"github.com/google/subcommands"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakePrices map[string]portfolio.Quote

func (f fakePrices) Fetch(_ context.Context, ids []string) (map[string]portfolio.Quote, error) {
	out := make(map[string]portfolio.Quote)
	for _, id := range ids {
		if q, ok := f[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

type fakeCharts map[string][]portfolio.Point

func (f fakeCharts) MarketChart(_ context.Context, id string, _ int, _ string) ([]portfolio.Point, error) {
	chart, ok := f[id]
	if !ok {
		return nil, errors.New("unknown coin")
	}
	return chart, nil
}

type fakeListings []coingecko.Listing

func (f fakeListings) ListCoins(context.Context) ([]coingecko.Listing, error) { return f, nil }

var listings = fakeListings{
	{ID: "bitcoin", Name: "Bitcoin", Symbol: "btc", Price: 100000, Change24h: 1.5},
	{ID: "ethereum", Name: "Ethereum", Symbol: "eth", Price: 4000, Change24h: -2},
}

// setup replaces the command seams with in-memory ones, the returned store
// outlives every command of the test.
func setup(t *testing.T) (*storage.Memory, *bytes.Buffer) {
	t.Helper()
	mem := storage.NewMemory()
	var out bytes.Buffer

	oldStdout, oldStore, oldRender := stdout, openStore, render
	oldPrices, oldCharts, oldListings := newPrices, newCharts, newListings
	t.Cleanup(func() {
		stdout, openStore, render = oldStdout, oldStore, oldRender
		newPrices, newCharts, newListings = oldPrices, oldCharts, oldListings
	})

	stdout = &out
	openStore = func() (Store, error) { return mem, nil }
	render = func(md string) string { return md }
	newPrices = func() Prices { return fakePrices{} }
	newCharts = func() Charts { return fakeCharts{} }
	newListings = func() Listings { return listings }
	return mem, &out
}

func run(t *testing.T, c subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	c.SetFlags(f)
	require.NoError(t, f.Parse(args))
	return c.Execute(context.Background(), f)
}

func load(t *testing.T, mem *storage.Memory) *portfolio.Book {
	t.Helper()
	b, err := portfolio.LoadBook(context.Background(), mem)
	require.NoError(t, err)
	return b
}

func TestList(t *testing.T) {
	_, out := setup(t)

	require.Equal(t, subcommands.ExitSuccess, run(t, &listCmd{}))
	require.Contains(t, out.String(), "Bing.x")
	require.Contains(t, out.String(), "Binance")
	require.Contains(t, out.String(), "Gate.io")
}

func TestShow(t *testing.T) {
	_, out := setup(t)

	require.Equal(t, subcommands.ExitSuccess, run(t, &showCmd{}, "-p", "binance"))
	require.Contains(t, out.String(), "AAVE")

	require.Equal(t, subcommands.ExitFailure, run(t, &showCmd{}, "-p", "9"))
}

func TestAddPortfolio(t *testing.T) {
	mem, out := setup(t)

	require.Equal(t, subcommands.ExitSuccess, run(t, &addPortfolioCmd{}, "Cold", "Storage"))
	require.Equal(t, "Created portfolio 4 \"Cold Storage\"\n", out.String())

	b := load(t, mem)
	require.Len(t, b.Portfolios, 4)
	p, err := b.Find("cold storage")
	require.NoError(t, err)
	require.Equal(t, "💼", p.Icon)
	require.Empty(t, p.Coins)

	require.Equal(t, subcommands.ExitUsageError, run(t, &addPortfolioCmd{}))
}

func TestAddCoin_Symbol(t *testing.T) {
	mem, out := setup(t)
	newListings = func() Listings {
		t.Fatal("listing must not be read with -symbol")
		return nil
	}

	status := run(t, &addCoinCmd{}, "-p", "Binance", "-balance", "10", "-price", "150", "-symbol", "sol", "-name", "Solana", "solana")
	require.Equal(t, subcommands.ExitSuccess, status)
	require.Equal(t, "Binance now holds 10 SOL\n", out.String())

	p, err := load(t, mem).Find("Binance")
	require.NoError(t, err)
	c, ok := p.Coin("SOL")
	require.True(t, ok)
	require.Equal(t, "solana", c.ID)
	require.Equal(t, "Solana", c.Name)
	require.Equal(t, 150.0, c.AvgBuyPrice)
	require.Equal(t, 1500.0, c.Value)
}

func TestAddCoin_Lookup(t *testing.T) {
	mem, out := setup(t)

	require.Equal(t, subcommands.ExitSuccess, run(t, &addCoinCmd{}, "-balance", "0.5", "BTC"))
	require.Equal(t, "Bing.x now holds 0.5 BTC\n", out.String())

	p, err := load(t, mem).Portfolio(1)
	require.NoError(t, err)
	c, ok := p.Coin("btc")
	require.True(t, ok)
	require.Equal(t, "bitcoin", c.ID)
	require.Equal(t, 100000.0, c.Price)
	require.Equal(t, 1.5, c.Change24h)

	// a second purchase averages the buy price
	require.Equal(t, subcommands.ExitSuccess, run(t, &addCoinCmd{}, "-balance", "0.5", "-price", "80000", "bitcoin"))
	p, err = load(t, mem).Portfolio(1)
	require.NoError(t, err)
	c, _ = p.Coin("BTC")
	require.Equal(t, 1.0, c.Balance)
	require.InDelta(t, 90000, c.AvgBuyPrice, 1e-6)
}

func TestAddCoin_Errors(t *testing.T) {
	setup(t)

	require.Equal(t, subcommands.ExitUsageError, run(t, &addCoinCmd{}, "btc"))
	require.Equal(t, subcommands.ExitUsageError, run(t, &addCoinCmd{}, "-balance", "1"))
	require.Equal(t, subcommands.ExitUsageError, run(t, &addCoinCmd{}, "-balance", "NaN", "btc"))
	require.Equal(t, subcommands.ExitUsageError, run(t, &addCoinCmd{}, "-balance", "+Inf", "btc"))
	require.Equal(t, subcommands.ExitUsageError, run(t, &addCoinCmd{}, "-balance", "1", "-price", "Inf", "btc"))
	require.Equal(t, subcommands.ExitUsageError, run(t, &addCoinCmd{}, "-balance", "1", "-price", "-5", "btc"))
	require.Equal(t, subcommands.ExitFailure, run(t, &addCoinCmd{}, "-balance", "1", "dogecoin"))
	require.Equal(t, subcommands.ExitFailure, run(t, &addCoinCmd{}, "-p", "Kraken", "-balance", "1", "btc"))
}

func TestRemoveCoin(t *testing.T) {
	mem, out := setup(t)

	require.Equal(t, subcommands.ExitSuccess, run(t, &removeCoinCmd{}, "-p", "2", "aave"))
	require.Equal(t, "Removed AAVE from Binance\n", out.String())

	p, err := load(t, mem).Portfolio(2)
	require.NoError(t, err)
	_, ok := p.Coin("AAVE")
	require.False(t, ok)

	require.Equal(t, subcommands.ExitFailure, run(t, &removeCoinCmd{}, "-p", "2", "aave"))
}

func TestReset(t *testing.T) {
	mem, out := setup(t)
	require.Equal(t, subcommands.ExitSuccess, run(t, &addPortfolioCmd{}, "Extra"))
	out.Reset()

	require.Equal(t, subcommands.ExitUsageError, run(t, &resetCmd{}))
	require.Len(t, load(t, mem).Portfolios, 4)

	require.Equal(t, subcommands.ExitSuccess, run(t, &resetCmd{}, "-y"))
	require.Equal(t, "Restored 3 default portfolios\n", out.String())
	require.Len(t, load(t, mem).Portfolios, 3)
}

func TestRefresh(t *testing.T) {
	mem, out := setup(t)
	newPrices = func() Prices {
		return fakePrices{"ninja-squad": {USD: 5, Change24h: 10}}
	}

	require.Equal(t, subcommands.ExitSuccess, run(t, &refreshCmd{}))
	require.Contains(t, out.String(), "Updated 1 holdings at ")

	p, err := load(t, mem).Portfolio(1)
	require.NoError(t, err)
	c, _ := p.Coin("NST")
	require.Equal(t, 5.0, c.Price)
	require.Equal(t, 10.0, c.Change24h)
	require.Equal(t, 835.0, c.Value)
}

func TestHistory(t *testing.T) {
	_, out := setup(t)
	now := time.Now()
	newCharts = func() Charts {
		return fakeCharts{"ninja-squad": {
			{Time: now.Add(-48 * time.Hour), Value: 4},
			{Time: now.Add(-24 * time.Hour), Value: 5},
		}}
	}

	require.Equal(t, subcommands.ExitSuccess, run(t, &historyCmd{}, "-p", "Bing.x", "-w", "7d"))
	require.Contains(t, out.String(), "History for Bing.x (7d)")
	require.Contains(t, out.String(), "+25.00%")

	require.Equal(t, subcommands.ExitUsageError, run(t, &historyCmd{}, "-w", "2w"))
	// Binance coins have no chart
	require.Equal(t, subcommands.ExitFailure, run(t, &historyCmd{}, "-p", "Binance"))
}

func TestCoins(t *testing.T) {
	_, out := setup(t)

	require.Equal(t, subcommands.ExitSuccess, run(t, &coinsCmd{}, "bit"))
	require.Contains(t, out.String(), "Bitcoin")
	require.NotContains(t, out.String(), "Ethereum")

	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, run(t, &coinsCmd{}, "-n", "1"))
	require.Contains(t, out.String(), "Bitcoin")
	require.NotContains(t, out.String(), "Ethereum")

	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, run(t, &coinsCmd{}, "doge"))
	require.Equal(t, "No coin matches \"doge\".\n", out.String())
}

func TestResolve(t *testing.T) {
	b := portfolio.DefaultBook()

	tcs := []struct {
		ref  string
		want string
	}{
		{"", "Bing.x"},
		{"2", "Binance"},
		{"gate.io", "Gate.io"},
	}
	for _, tc := range tcs {
		p, err := resolve(b, tc.ref)
		require.NoError(t, err, tc.ref)
		require.Equal(t, tc.want, p.Name)
	}

	_, err := resolve(b, "Kraken")
	require.ErrorIs(t, err, portfolio.ErrPortfolioNotFound)
	_, err = resolve(portfolio.NewBook(), "")
	require.ErrorIs(t, err, portfolio.ErrPortfolioNotFound)
}

func TestRegister(t *testing.T) {
	c := subcommands.NewCommander(flag.NewFlagSet("dw", flag.ContinueOnError), "dw")
	Register(c)

	var names []string
	c.VisitCommands(func(_ *subcommands.CommandGroup, cmd subcommands.Command) {
		names = append(names, cmd.Name())
	})
	require.ElementsMatch(t, []string{
		"list", "show", "add-portfolio", "add-coin", "remove-coin", "reset", "refresh", "watch", "history",
		"coins", "indicators", "analysis", "chat", "serve",
	}, names)
}

func TestWatch_Stream(t *testing.T) {
	mem, out := setup(t)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var msg struct {
			Action string   `json:"action"`
			IDs    []string `json:"ids"`
		}
		if err := conn.ReadJSON(&msg); err != nil || msg.Action != "subscribe" {
			return
		}
		_ = conn.WriteJSON(map[string]any{"type": "subscription_ack", "ids": msg.IDs})
		_ = conn.WriteJSON(map[string]any{"type": "prices", "data": map[string]any{
			"ninja-squad": map[string]float64{"usd": 5, "usd_24h_change": 1},
		}})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	c := &watchCmd{live: true, server: "ws" + strings.TrimPrefix(srv.URL, "http")}
	err := c.stream(context.Background())
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "err = %v", err)

	require.Contains(t, out.String(), "Watching ")
	require.Contains(t, out.String(), "Updated 1 holdings at ")
	p, err := load(t, mem).Portfolio(1)
	require.NoError(t, err)
	c1, _ := p.Coin("NST")
	require.Equal(t, 5.0, c1.Price)
}

type closeCounter struct {
	writes, closes atomic.Int32
}

func (c *closeCounter) WriteMessage(int, []byte) error { c.writes.Add(1); return nil }
func (c *closeCounter) Close() error                 { c.closes.Add(1); return nil }

func TestCloseOnCancel(t *testing.T) {
	t.Run("stopped", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		conn := &closeCounter{}
		stop := closeOnCancel(ctx, conn)
		stop() // returns only once the watch has exited
		cancel()
		require.Zero(t, conn.writes.Load())
		require.Zero(t, conn.closes.Load())
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		conn := &closeCounter{}
		stop := closeOnCancel(ctx, conn)
		cancel()
		require.Eventually(t, func() bool { return conn.closes.Load() == 1 }, time.Second, time.Millisecond)
		stop()
		require.Equal(t, int32(1), conn.writes.Load())
		require.Equal(t, int32(1), conn.closes.Load())
	})
}
