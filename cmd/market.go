package cmd

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/denowallet/portfolio"
	"github.com/denowallet/portfolio/collect"
	"github.com/denowallet/portfolio/renderer"
	"github.com/google/subcommands"
	md "github.com/nao1215/markdown"
)

type coinsCmd struct {
	limit int
}

func (*coinsCmd) Name() string     { return "coins" }
func (*coinsCmd) Synopsis() string { return "search the coins that can be added to a portfolio" }
func (*coinsCmd) Usage() string {
	return `dw coins [-n <limit>] [<query>]

  Lists the top 1000 coins by market cap, or those whose id, name or symbol
  contains <query>.
`
}

func (c *coinsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 20, "Maximum number of coins listed.")
}

func (c *coinsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	query := strings.ToLower(strings.Join(f.Args(), " "))
	listings, err := newListings().ListCoins(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	table := md.TableSet{
		Alignment: []md.TableAlignment{md.AlignRight, md.AlignLeft, md.AlignLeft, md.AlignLeft, md.AlignRight, md.AlignRight},
		Header:    []string{"#", "Symbol", "Name", "Id", "Price", "24h"},
		Rows:      [][]string{},
	}
	for i, l := range listings {
		if len(table.Rows) >= c.limit {
			break
		}
		if query != "" &&
			!strings.Contains(l.ID, query) &&
			!strings.Contains(strings.ToLower(l.Name), query) &&
			!strings.Contains(strings.ToLower(l.Symbol), query) {
			continue
		}
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(i + 1), l.Symbol, l.Name, l.ID,
			portfolio.USD(l.Price).String(), fmt.Sprintf("%+.2f%%", l.Change24h),
		})
	}
	if len(table.Rows) == 0 {
		fmt.Fprintf(stdout, "No coin matches %q.\n", query)
		return subcommands.ExitSuccess
	}

	var buf bytes.Buffer
	printMarkdown(md.NewMarkdown(&buf).Table(table).String())
	return subcommands.ExitSuccess
}

type indicatorsCmd struct {
	all bool
}

func (*indicatorsCmd) Name() string     { return "indicators" }
func (*indicatorsCmd) Synopsis() string { return "display BTC technical indicators" }
func (*indicatorsCmd) Usage() string {
	return `dw indicators [-all]

  Computes RSI, MACD, EMA, SMA and Bollinger Bands from 200 days of BTC closes.
  With -all, the market overview, on-chain activity, derivatives and news of
  the day are collected too.
`
}

func (c *indicatorsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.all, "all", false, "Collect the full daily snapshot.")
}

func (c *indicatorsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	col := newCollector()
	if c.all {
		snap := collectWith(ctx, col)
		printMarkdown(renderer.SnapshotMarkdown(snap))
		return subcommands.ExitSuccess
	}
	t, err := col.CollectTechnicals(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.TechnicalsMarkdown(*t))
	return subcommands.ExitSuccess
}

// collectWith runs every collector of col, failed parts are left empty.
func collectWith(ctx context.Context, col *collect.Collector) collect.Snapshot {
	return collect.NewAggregator(col, nil).Collect(ctx)
}
