package coingecko

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/denowallet/portfolio"
	"github.com/denowallet/portfolio/httpx"
	"go.uber.org/zap"
)

// ErrNoPrices is returned when no batch of a price refresh succeeded.
var ErrNoPrices = errors.New("no price could be fetched")

// RateLimitDelay is the pause the free API tier needs between calls.
const RateLimitDelay = 55 * time.Second

// PriceFetcher fetches prices in small batches, spaced and retried to stay
// within the free tier's rate limit.
type PriceFetcher struct {
	Client    *Client
	BatchSize int
	Retry     httpx.Retry
	gate      *httpx.MinInterval
}

// NewPriceFetcher returns a fetcher of 2 ids per call, 3 attempts and delay
// between calls.
func NewPriceFetcher(c *Client, delay time.Duration) *PriceFetcher {
	return &PriceFetcher{
		Client:    c,
		BatchSize: 2,
		Retry:     httpx.Retry{Attempts: 3, Delay: delay},
		gate:      &httpx.MinInterval{Interval: delay},
	}
}

// Fetch returns the quotes of ids.
//
// A batch failing after all its attempts is skipped, Fetch only fails when no
// batch succeeded or ctx is done.
func (f *PriceFetcher) Fetch(ctx context.Context, ids []string) (map[string]portfolio.Quote, error) {
	if len(ids) == 0 {
		return map[string]portfolio.Quote{}, nil
	}
	if f.gate == nil {
		f.gate = &httpx.MinInterval{Interval: f.Retry.Delay}
	}
	size := max(f.BatchSize, 1)
	all := make(map[string]portfolio.Quote)
	for start := 0; start < len(ids); start += size {
		batch := ids[start:min(start+size, len(ids))]
		var quotes map[string]portfolio.Quote
		err := f.Retry.Do(ctx, func(ctx context.Context) error {
			return f.gate.Do(ctx, func(ctx context.Context) error {
				var err error
				quotes, err = f.Client.SimplePrice(ctx, batch)
				return err
			})
		})
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			zap.L().Warn("cannot fetch prices, skipping batch", zap.Strings("ids", batch), zap.Error(err))
			continue
		}
		maps.Copy(all, quotes)
	}
	if len(all) == 0 {
		return nil, ErrNoPrices
	}
	return all, nil
}
