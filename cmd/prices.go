package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/denowallet/portfolio"
	"github.com/denowallet/portfolio/renderer"
	"github.com/google/subcommands"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type refreshCmd struct{}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "refresh the prices of every holding" }
func (*refreshCmd) Usage() string {
	return `dw refresh

  Fetches the current price of every holding from CoinGecko, two coins per
  request spaced to stay within the free rate limit, and saves the new values.
  Coins whose price could not be fetched keep their previous price.
`
}
func (*refreshCmd) SetFlags(*flag.FlagSet) {}

func (*refreshCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	err := withBook(ctx, true, func(b *portfolio.Book) error {
		n, err := refresh(ctx, b, newPrices())
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Updated %d holdings at %s\n", n, timestamp(time.Now()))
		printMarkdown(renderer.BookMarkdown(b))
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type watchCmd struct {
	every  time.Duration
	live   bool
	server string
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "keep prices up to date" }
func (*watchCmd) Usage() string {
	return `dw watch [-every <duration>] | -live [-server <ws url>]

  Refreshes the prices of every holding periodically until interrupted.

  With -live, prices are streamed by a running 'dw serve' over its websocket
  instead of being polled from CoinGecko.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.every, "every", 5*time.Minute, "Time between two refreshes.")
	f.BoolVar(&c.live, "live", false, "Stream prices from a dw server.")
	f.StringVar(&c.server, "server", "ws://localhost:8888/ws/prices", "Websocket of the dw server, with -live.")
}

func (c *watchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var err error
	if c.live {
		err = c.stream(ctx)
	} else {
		err = c.poll(ctx)
	}
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *watchCmd) poll(ctx context.Context) error {
	prices := newPrices()
	t := time.NewTicker(c.every)
	defer t.Stop()
	for {
		err := withBook(ctx, true, func(b *portfolio.Book) error {
			n, err := refresh(ctx, b, prices)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Updated %d holdings at %s, total %s\n", n, timestamp(time.Now()), b.TotalValue())
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// next round may succeed
			zap.L().Warn("price refresh failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// priceEvent mirrors the events of the server websocket.
type priceEvent struct {
	Type  string                     `json:"type"`
	IDs   []string                   `json:"ids"`
	Data  map[string]portfolio.Quote `json:"data"`
	Error string                     `json:"error"`
}

type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// closeOnCancel closes conn when ctx is done. The returned stop ends the
// watch and returns once it has exited.
func closeOnCancel(ctx context.Context, conn wsConn) (stop func()) {
	done, exited := make(chan struct{}), make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-done:
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}

func (c *watchCmd) stream(ctx context.Context) error {
	var ids []string
	if err := withBook(ctx, false, func(b *portfolio.Book) error {
		ids = b.IDs()
		return nil
	}); err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(stdout, "No holdings to watch.")
		return nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.server, nil)
	if err != nil {
		return fmt.Errorf("cannot connect to %s: %w", c.server, err)
	}
	defer conn.Close()
	defer closeOnCancel(ctx, conn)()

	if err := conn.WriteJSON(map[string]any{"action": "subscribe", "ids": ids}); err != nil {
		return err
	}
	for {
		var e priceEvent
		if err := conn.ReadJSON(&e); err != nil {
			return err
		}
		switch e.Type {
		case "subscription_ack":
			fmt.Fprintf(stdout, "Watching %d coins on %s\n", len(e.IDs), c.server)
		case "error":
			return fmt.Errorf("server: %s", e.Error)
		case "prices":
			err := withBook(ctx, true, func(b *portfolio.Book) error {
				n := b.ApplyPrices(e.Data)
				fmt.Fprintf(stdout, "Updated %d holdings at %s, total %s\n", n, timestamp(time.Now()), b.TotalValue())
				return nil
			})
			if err != nil {
				return err
			}
		}
	}
}
