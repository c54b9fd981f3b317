// Command dw manages crypto portfolios and serves the market data service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/denowallet/portfolio/cmd"
	"github.com/denowallet/portfolio/conf"
	"github.com/denowallet/portfolio/logging"
	"github.com/google/subcommands"
	"github.com/joho/godotenv"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	name := path.Base(os.Args[0])
	completion(name).Complete(name)

	commander := subcommands.NewCommander(flag.CommandLine, name)
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)
	flag.Parse()

	cfg := conf.GetConf()
	if flag.Arg(0) == "serve" {
		_, flush := logging.Setup(logging.Options{
			Level:      cfg.Hertz.LogLevel,
			FileName:   cfg.Hertz.LogFileName,
			MaxSize:    cfg.Hertz.LogMaxSize,
			MaxBackups: cfg.Hertz.LogMaxBackups,
			MaxAge:     cfg.Hertz.LogMaxAge,
		}, conf.LogLevel())
		defer flush()
	} else {
		// Terminal commands only warn on stderr.
		_, flush := logging.Setup(logging.Options{Level: "warn"}, conf.HertzLevel("warn"))
		defer flush()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return int(commander.Execute(ctx))
}

// completion describes the command line for shell completion, run with
// COMP_LINE set by the shell.
func completion(name string) *complete.Command {
	root := &complete.Command{
		Sub: map[string]*complete.Command{
			"help":     {},
			"flags":    {},
			"commands": {},
		},
		Flags: map[string]complete.Predictor{
			"db": predict.Files("*.db"),
		},
	}
	for _, cmds := range cmd.Commands {
		for _, c := range cmds {
			fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
			c.SetFlags(fs)
			sub := &complete.Command{Flags: map[string]complete.Predictor{}}
			fs.VisitAll(func(f *flag.Flag) {
				sub.Flags[f.Name] = predictor(f)
			})
			root.Sub[c.Name()] = sub
		}
	}
	root.Sub["help"].Args = predict.Set(names())
	return root
}

func predictor(f *flag.Flag) complete.Predictor {
	if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
		return predict.Nothing
	}
	switch f.Name {
	case "w":
		return predict.Set{"24h", "7d", "30d", "90d", "1y"}
	case "every":
		return predict.Set{"1m", "5m", "15m", "1h"}
	}
	return predict.Something
}

func names() []string {
	var all []string
	for _, cmds := range cmd.Commands {
		for _, c := range cmds {
			all = append(all, c.Name())
		}
	}
	return all
}
