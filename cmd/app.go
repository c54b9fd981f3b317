// Package cmd implements the dw command line: portfolio bookkeeping on a
// local database, market data, AI analysis and the HTTP service.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/denowallet/portfolio"
	"github.com/denowallet/portfolio/blockchain"
	"github.com/denowallet/portfolio/coingecko"
	"github.com/denowallet/portfolio/coinglass"
	"github.com/denowallet/portfolio/collect"
	"github.com/denowallet/portfolio/conf"
	"github.com/denowallet/portfolio/cryptopanic"
	"github.com/denowallet/portfolio/storage"
	"github.com/google/subcommands"
)

// Commands lists the subcommands by group.
var Commands = map[string][]subcommands.Command{
	"portfolios": {
		&listCmd{},
		&showCmd{},
		&addPortfolioCmd{},
		&addCoinCmd{},
		&removeCoinCmd{},
		&resetCmd{},
		&refreshCmd{},
		&watchCmd{},
		&historyCmd{},
	},
	"market": {
		&coinsCmd{},
		&indicatorsCmd{},
		&analysisCmd{},
		&chatCmd{},
	},
	"service": {
		&serveCmd{},
	},
}

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	for group, cmds := range Commands {
		for _, cmd := range cmds {
			c.Register(cmd, group)
		}
	}
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var dbPath = flag.String("db", "", "Path to the local wallet database. Defaults to the configured path or ~/.denowallet/wallet.db")

// Store is the local key/value database holding the book.
type Store interface {
	portfolio.KV
	Close() error
}

// Prices quotes coins by CoinGecko id.
type Prices interface {
	Fetch(ctx context.Context, ids []string) (map[string]portfolio.Quote, error)
}

// Charts returns price histories.
type Charts interface {
	MarketChart(ctx context.Context, id string, days int, interval string) ([]portfolio.Point, error)
}

// Listings returns the coins that can be added to a portfolio.
type Listings interface {
	ListCoins(ctx context.Context) ([]coingecko.Listing, error)
}

// Seams replaced by tests.
var (
	stdout io.Writer = os.Stdout

	openStore = func() (Store, error) {
		path := *dbPath
		if path == "" {
			path = conf.GetConf().Storage.Path
		}
		if path == "" {
			path = storage.DefaultPath()
		}
		return storage.OpenSQLite(path)
	}

	newPrices = func() Prices {
		return coingecko.NewPriceFetcher(newCoinGecko(), coingecko.RateLimitDelay)
	}
	newCharts   = func() Charts { return newCoinGecko() }
	newListings = func() Listings { return newCoinGecko() }

	render = func(md string) string {
		out, err := glamour.Render(md, "auto")
		if err != nil {
			return md
		}
		return out
	}
)

func newCoinGecko() *coingecko.Client {
	return coingecko.New(coingecko.WithAPIKey(conf.GetConf().APIs.CoinGeckoKey))
}

// newCollector wires every upstream source from the configuration.
func newCollector() *collect.Collector {
	c := conf.GetConf()
	return &collect.Collector{
		Market:      newCoinGecko(),
		News:        cryptopanic.New(c.APIs.CryptoPanicToken, nil),
		Chain:       blockchain.New(nil),
		Derivatives: coinglass.New(c.APIs.CoinglassKey, nil),
	}
}

func printMarkdown(md string) {
	fmt.Fprint(stdout, render(md))
}

// withBook loads the book, calls fn and saves the book when save is set.
func withBook(ctx context.Context, save bool, fn func(*portfolio.Book) error) error {
	store, err := openStore()
	if err != nil {
		return fmt.Errorf("cannot open wallet database: %w", err)
	}
	defer store.Close()

	book, err := portfolio.LoadBook(ctx, store)
	if err != nil {
		return err
	}
	if err := fn(book); err != nil {
		return err
	}
	if !save {
		return nil
	}
	return book.Save(ctx, store)
}

// resolve finds a portfolio by id or name, the selected one when ref is empty.
func resolve(b *portfolio.Book, ref string) (*portfolio.Portfolio, error) {
	if ref == "" {
		if p := b.Selected(); p != nil {
			return p, nil
		}
		return nil, portfolio.ErrPortfolioNotFound
	}
	if id, err := strconv.Atoi(ref); err == nil {
		return b.Portfolio(id)
	}
	return b.Find(ref)
}

// refresh fetches the prices of every holding and applies them.
func refresh(ctx context.Context, b *portfolio.Book, prices Prices) (int, error) {
	ids := b.IDs()
	if len(ids) == 0 {
		return 0, nil
	}
	quotes, err := prices.Fetch(ctx, ids)
	if err != nil {
		return 0, err
	}
	return b.ApplyPrices(quotes), nil
}

// timestamp formats t for status lines.
func timestamp(t time.Time) string { return t.Local().Format("15:04:05") }
