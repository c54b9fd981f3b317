package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/denowallet/portfolio"
	"github.com/denowallet/portfolio/agent"
	"github.com/denowallet/portfolio/collect"
	"github.com/denowallet/portfolio/conf"
	"github.com/google/subcommands"
)

type chatCmd struct {
	gemini bool
	market bool
}

func (*chatCmd) Name() string     { return "chat" }
func (*chatCmd) Synopsis() string { return "ask the crypto assistant" }
func (*chatCmd) Usage() string {
	return `dw chat [-market] <question>
dw chat -gemini [<first question>]

  Asks a single question to the Groq assistant (GROQ_API_KEY). With -market,
  today's BTC and ETH prices are given to the assistant as context.

  With -gemini, starts an interactive session with the Gemini assistant
  (GEMINI_API_KEY). It can read your portfolios and today's market data, and
  search the web. Type 'bye' to leave.
`
}

func (c *chatCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.gemini, "gemini", false, "Interactive session with the Gemini assistant.")
	f.BoolVar(&c.market, "market", false, "Give today's market to the assistant.")
}

func (c *chatCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	question := strings.TrimSpace(strings.Join(f.Args(), " "))
	cfg := conf.GetConf()

	if c.gemini {
		if err := c.session(ctx, cfg, question); err != nil {
			fmt.Fprintln(os.Stderr, "Agent failed:", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	if question == "" {
		fmt.Fprintln(os.Stderr, "Error: a question is required")
		return subcommands.ExitUsageError
	}
	groq, err := agent.NewGroq(cfg.APIs.GroqKey, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	var marketContext string
	if c.market {
		m, err := newCollector().CollectMarket(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: market unavailable: %v\n", err)
		} else {
			marketContext = MarketContext(m)
		}
	}
	reply, err := groq.Reply(ctx, question, marketContext)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(reply)
	return subcommands.ExitSuccess
}

// MarketContext summarizes m for the assistant.
func MarketContext(m *collect.MarketData) string {
	return fmt.Sprintf("BTC: %s (%+.2f%%)\nETH: %s (%+.2f%%)\nToplam Market Değeri: %s",
		portfolio.USD(m.BTCPrice), m.BTC24hChange,
		portfolio.USD(m.ETHPrice), m.ETH24hChange,
		portfolio.USD(m.TotalMarketCap))
}

func (c *chatCmd) session(ctx context.Context, cfg *conf.Config, question string) error {
	client, err := agent.NewGeminiClient(ctx, cfg.APIs.GeminiKey)
	if err != nil {
		return err
	}
	src := agent.Sources{
		Book: func(ctx context.Context) (*portfolio.Book, error) {
			var book *portfolio.Book
			err := withBook(ctx, false, func(b *portfolio.Book) error {
				book = b
				return nil
			})
			return book, err
		},
		Snapshot: func(ctx context.Context) (collect.Snapshot, error) {
			return collectWith(ctx, newCollector()), nil
		},
	}
	a := agent.New(stdout, os.Stdin, agent.NewMarketWatcher(), agent.NewKeeper(src))
	a.Render = render

	var prompts []string
	if question != "" {
		prompts = append(prompts, question)
	}
	return a.Run(ctx, client, prompts...)
}
