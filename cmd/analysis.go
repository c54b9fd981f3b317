package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/denowallet/portfolio/agent"
	"github.com/denowallet/portfolio/conf"
	"github.com/denowallet/portfolio/dal/pg"
	"github.com/google/subcommands"
)

type analysisCmd struct {
	generate bool
	save     bool
}

func (*analysisCmd) Name() string     { return "analysis" }
func (*analysisCmd) Synopsis() string { return "display the daily AI market analysis" }
func (*analysisCmd) Usage() string {
	return `dw analysis [-generate [-save]]

  Displays the most recent analysis stored in the database (SUPABASE_DB_URL).

  With -generate, a new analysis of today's full snapshot is written by Gemini
  (GEMINI_API_KEY), and stored when -save is set.
`
}

func (c *analysisCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.generate, "generate", false, "Generate a new analysis.")
	f.BoolVar(&c.save, "save", false, "Store the generated analysis, with -generate.")
}

func (c *analysisCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg := conf.GetConf()
	var a *agent.Analysis
	var err error
	if c.generate {
		a, err = c.generateAnalysis(ctx, cfg)
	} else {
		a, err = latestAnalysis(ctx, cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if a == nil {
		fmt.Fprintln(stdout, "No analysis yet, run 'dw analysis -generate'.")
		return subcommands.ExitSuccess
	}
	fmt.Fprintf(stdout, "%s · %s · %s\n", a.Date, a.Sentiment, a.Timestamp.Local().Format(time.DateTime))
	printMarkdown(a.Analysis)
	return subcommands.ExitSuccess
}

func latestAnalysis(ctx context.Context, cfg *conf.Config) (*agent.Analysis, error) {
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("no database configured, set SUPABASE_DB_URL")
	}
	store, err := pg.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.LatestAnalysis(ctx)
}

func (c *analysisCmd) generateAnalysis(ctx context.Context, cfg *conf.Config) (*agent.Analysis, error) {
	client, err := agent.NewGeminiClient(ctx, cfg.APIs.GeminiKey)
	if err != nil {
		return nil, err
	}
	analyst := agent.NewAnalyst(client.Models)
	if cfg.APIs.GeminiModel != "" {
		analyst.Model = cfg.APIs.GeminiModel
	}

	col := newCollector()
	fmt.Fprintln(os.Stderr, "Collecting today's market data...")
	snap := collectWith(ctx, col)
	a, err := analyst.Generate(ctx, snap)
	if err != nil {
		return nil, err
	}
	if !c.save {
		return &a, nil
	}
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("no database configured to save to, set SUPABASE_DB_URL")
	}
	store, err := pg.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	if err := store.UpsertAnalysis(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
