package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/denowallet/portfolio"
	"github.com/denowallet/portfolio/date"
	"github.com/denowallet/portfolio/renderer"
	"github.com/google/subcommands"
)

type historyCmd struct {
	portfolio string
	window    string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "display the value history of a portfolio" }
func (*historyCmd) Usage() string {
	return `dw history [-p <id|name>] [-w 24h|7d|30d|90d|1y]

  Reconstructs the value of a portfolio over a trailing window from the
  CoinGecko price history of its coins, assuming today's balances.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "", "Portfolio id or name. Defaults to the selected portfolio.")
	f.StringVar(&c.window, "w", "7d", "Window of the history.")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	w, err := date.ParseWindow(c.window)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	err = withBook(ctx, false, func(b *portfolio.Book) error {
		p, err := resolve(b, c.portfolio)
		if err != nil {
			return err
		}
		charts := make(map[string][]portfolio.Point)
		src := newCharts()
		for _, coin := range p.Coins {
			if coin.ID == "" {
				continue
			}
			if _, ok := charts[coin.ID]; ok {
				continue
			}
			chart, err := src.MarketChart(ctx, coin.ID, w.Days(), "")
			if err != nil {
				return fmt.Errorf("cannot read %s history: %w", coin.Symbol, err)
			}
			charts[coin.ID] = chart
		}
		printMarkdown(renderer.HistoryMarkdown(p.Name, p.History(charts, w, time.Now())))
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
