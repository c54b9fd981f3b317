package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/denowallet/portfolio"
	"github.com/denowallet/portfolio/coingecko"
	"github.com/denowallet/portfolio/renderer"
	"github.com/google/subcommands"
)

type listCmd struct{}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list portfolios with their value" }
func (*listCmd) Usage() string {
	return `dw list

  Lists the portfolios of the wallet with their value and 24h change, and the
  total of the wallet. Values are those of the last refresh.
`
}
func (*listCmd) SetFlags(*flag.FlagSet) {}

func (*listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	err := withBook(ctx, false, func(b *portfolio.Book) error {
		printMarkdown(renderer.BookMarkdown(b))
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type showCmd struct {
	portfolio string
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "show the holdings of a portfolio" }
func (*showCmd) Usage() string {
	return `dw show [-p <id|name>]

  Shows the holdings of a portfolio: balance, price, value, P&L and allocation.
`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "Portfolio id or name. Defaults to the selected portfolio.")
}

func (c *showCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	err := withBook(ctx, false, func(b *portfolio.Book) error {
		p, err := resolve(b, c.portfolio)
		if err != nil {
			return err
		}
		printMarkdown(renderer.PortfolioMarkdown(p))
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type addPortfolioCmd struct {
	icon   string
	iconBg string
}

func (*addPortfolioCmd) Name() string     { return "add-portfolio" }
func (*addPortfolioCmd) Synopsis() string { return "create an empty portfolio" }
func (*addPortfolioCmd) Usage() string {
	return `dw add-portfolio [-icon <emoji>] [-bg <css>] <name>

  Creates an empty portfolio named <name>. Its id follows the highest id in use.

Usage Examples:
$ dw add-portfolio -icon 🧊 Cold Storage
`
}

func (c *addPortfolioCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.icon, "icon", "💼", "Icon of the portfolio.")
	f.StringVar(&c.iconBg, "bg", "bg-gray-600", "Background of the icon.")
}

func (c *addPortfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	name := strings.TrimSpace(strings.Join(f.Args(), " "))
	if name == "" {
		fmt.Fprintln(os.Stderr, "Error: a portfolio name is required")
		return subcommands.ExitUsageError
	}
	err := withBook(ctx, true, func(b *portfolio.Book) error {
		p := b.AddPortfolio(name, c.icon, c.iconBg)
		fmt.Fprintf(stdout, "Created portfolio %d %q\n", p.ID, p.Name)
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type addCoinCmd struct {
	portfolio string
	balance   float64
	price     float64
	symbol    string
	name      string
}

func (*addCoinCmd) Name() string     { return "add-coin" }
func (*addCoinCmd) Synopsis() string { return "add a coin holding to a portfolio" }
func (*addCoinCmd) Usage() string {
	return `dw add-coin [-p <id|name>] -balance <n> [-price <usd>] [-symbol <sym> -name <name>] <coin>

  Adds <balance> units of <coin> to a portfolio. <coin> is a CoinGecko id or a
  symbol, looked up among the top 1000 coins. Adding a coin already held adds
  to its balance and averages the buy price.

  With -symbol the lookup is skipped and <coin> is used as the CoinGecko id.
  -price is the buy price, the current price by default.

Usage Examples:
$ dw add-coin -p Binance -balance 0.25 btc
$ dw add-coin -balance 10 -price 150 -symbol SOL -name Solana solana
`
}

func (c *addCoinCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "Portfolio id or name. Defaults to the selected portfolio.")
	f.Float64Var(&c.balance, "balance", 0, "Number of coins held.")
	f.Float64Var(&c.price, "price", 0, "Buy price in USD.")
	f.StringVar(&c.symbol, "symbol", "", "Symbol of the coin, skips the lookup.")
	f.StringVar(&c.name, "name", "", "Name of the coin, with -symbol.")
}

func (c *addCoinCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one coin is required")
		return subcommands.ExitUsageError
	}
	if !finite(c.balance) || c.balance <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -balance must be a positive number")
		return subcommands.ExitUsageError
	}
	if !finite(c.price) || c.price < 0 {
		fmt.Fprintln(os.Stderr, "Error: -price must be a positive number")
		return subcommands.ExitUsageError
	}
	coin, err := c.coin(ctx, f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	err = withBook(ctx, true, func(b *portfolio.Book) error {
		p, err := resolve(b, c.portfolio)
		if err != nil {
			return err
		}
		if err := b.AddCoin(p.ID, coin); err != nil {
			return err
		}
		held, _ := p.Coin(coin.Symbol)
		fmt.Fprintf(stdout, "%s now holds %s %s\n", p.Name, portfolio.Q(held.Balance), held.Symbol)
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// finite rejects the NaN and infinities that flag parsing accepts.
func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func (c *addCoinCmd) coin(ctx context.Context, query string) (portfolio.Coin, error) {
	if c.symbol != "" {
		name := c.name
		if name == "" {
			name = strings.ToUpper(c.symbol)
		}
		return portfolio.NewCoin(query, name, c.symbol, c.balance, c.price), nil
	}
	listings, err := newListings().ListCoins(ctx)
	if err != nil {
		return portfolio.Coin{}, err
	}
	l, ok := coingecko.Lookup(listings, strings.ToLower(query))
	if !ok {
		return portfolio.Coin{}, fmt.Errorf("no coin %q among the top %d", query, len(listings))
	}
	coin := portfolio.NewCoin(l.ID, l.Name, l.Symbol, c.balance, l.Price)
	coin.Icon = l.Icon
	coin.Change24h = l.Change24h
	if c.price > 0 {
		coin.AvgBuyPrice = c.price
	}
	return coin, nil
}

type removeCoinCmd struct {
	portfolio string
}

func (*removeCoinCmd) Name() string     { return "remove-coin" }
func (*removeCoinCmd) Synopsis() string { return "remove a coin holding from a portfolio" }
func (*removeCoinCmd) Usage() string {
	return `dw remove-coin [-p <id|name>] <symbol>

  Removes the holding of <symbol> from a portfolio.
`
}

func (c *removeCoinCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "Portfolio id or name. Defaults to the selected portfolio.")
}

func (c *removeCoinCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one symbol is required")
		return subcommands.ExitUsageError
	}
	err := withBook(ctx, true, func(b *portfolio.Book) error {
		p, err := resolve(b, c.portfolio)
		if err != nil {
			return err
		}
		if err := b.RemoveCoin(p.ID, f.Arg(0)); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Removed %s from %s\n", strings.ToUpper(f.Arg(0)), p.Name)
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type resetCmd struct {
	yes bool
}

func (*resetCmd) Name() string     { return "reset" }
func (*resetCmd) Synopsis() string { return "restore the default portfolios" }
func (*resetCmd) Usage() string {
	return `dw reset -y

  Deletes every portfolio and restores the default ones.
`
}

func (c *resetCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "y", false, "Confirm the reset.")
}

var errNotConfirmed = errors.New("reset needs -y")

func (c *resetCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.yes {
		fmt.Fprintf(os.Stderr, "Error: %v\n", errNotConfirmed)
		return subcommands.ExitUsageError
	}
	store, err := openStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot open wallet database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer store.Close()

	b, err := portfolio.Reset(ctx, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "Restored %d default portfolios\n", len(b.Portfolios))
	return subcommands.ExitSuccess
}
