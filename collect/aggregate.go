package collect

import (
	"context"
	"errors"
	"sync"

	"github.com/denowallet/portfolio/date"
	"github.com/denowallet/portfolio/indicator"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// SnapshotTopic is the default topic snapshots are published to.
const SnapshotTopic = "denowallet.snapshots"

// Sink stores snapshot parts, one row per day and table.
type Sink interface {
	UpsertMarket(ctx context.Context, m *MarketData) error
	UpsertTechnicals(ctx context.Context, t *indicator.Technicals) error
	UpsertOnChain(ctx context.Context, o *OnChainData) error
	UpsertDerivatives(ctx context.Context, d *DerivativesData) error
	InsertNews(ctx context.Context, day date.Date, news []NewsItem) error
}

// Publisher emits events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, v any) error
}

// Aggregator runs the collectors concurrently and stores the result.
type Aggregator struct {
	Collector *Collector
	Sink      Sink      // nil when no database is configured
	Publisher Publisher // nil when no bus is configured
	Topic     string

	pool *ants.Pool
}

// NewAggregator returns an aggregator running collectors on pool. A nil pool
// runs each collector on its own goroutine.
func NewAggregator(c *Collector, pool *ants.Pool) *Aggregator {
	return &Aggregator{Collector: c, Topic: SnapshotTopic, pool: pool}
}

func (a *Aggregator) submit(wg *sync.WaitGroup, task func()) {
	wg.Add(1)
	run := func() {
		defer wg.Done()
		task()
	}
	if a.pool != nil {
		err := a.pool.Submit(run)
		if err == nil {
			return
		}
		zap.L().Debug("pool rejected collector, spawning it", zap.Error(err))
	}
	go run()
}

// Collect runs the five collectors and joins them. A failed collector leaves
// its part nil and news empty. Collect never fails.
func (a *Aggregator) Collect(ctx context.Context) Snapshot {
	c := a.Collector
	now := c.now()
	snap := Snapshot{Timestamp: now, Date: date.Of(now), News: []NewsItem{}}

	warn := func(part string, err error) {
		if !errors.Is(err, ErrNoSource) {
			zap.L().Warn("collector failed", zap.String("part", part), zap.Error(err))
		}
	}

	var wg sync.WaitGroup
	a.submit(&wg, func() {
		m, err := c.CollectMarket(ctx)
		if err != nil {
			warn("market", err)
		}
		snap.Market = m
	})
	a.submit(&wg, func() {
		t, err := c.CollectTechnicals(ctx)
		if err != nil {
			warn("technicals", err)
		}
		snap.Technicals = t
	})
	a.submit(&wg, func() { snap.News = c.CollectNews(ctx) })
	a.submit(&wg, func() {
		o, err := c.CollectOnChain(ctx)
		if err != nil {
			warn("onchain", err)
		}
		snap.OnChain = o
	})
	a.submit(&wg, func() {
		d, err := c.CollectDerivatives(ctx)
		if err != nil {
			warn("derivatives", err)
		}
		snap.Derivatives = d
	})
	wg.Wait()
	return snap
}

// Persist writes the collected parts to the sink and publishes the snapshot.
// It reports whether the snapshot reached the database: false without a sink
// or when any write failed. Failed writes are logged, the remaining ones are
// still attempted.
func (a *Aggregator) Persist(ctx context.Context, snap Snapshot) bool {
	saved := a.Sink != nil
	if a.Sink != nil {
		check := func(table string, err error) {
			if err != nil {
				saved = false
				zap.L().Error("cannot save snapshot", zap.String("table", table), zap.Stringer("date", snap.Date), zap.Error(err))
			}
		}
		if snap.Market != nil {
			check("market_data", a.Sink.UpsertMarket(ctx, snap.Market))
		}
		if snap.Technicals != nil {
			check("technical_indicators", a.Sink.UpsertTechnicals(ctx, snap.Technicals))
		}
		if snap.OnChain != nil {
			check("onchain_data", a.Sink.UpsertOnChain(ctx, snap.OnChain))
		}
		if snap.Derivatives != nil {
			check("derivatives_data", a.Sink.UpsertDerivatives(ctx, snap.Derivatives))
		}
		if len(snap.News) > 0 {
			check("news_data", a.Sink.InsertNews(ctx, snap.Date, snap.News))
		}
	}
	if a.Publisher != nil {
		if err := a.Publisher.Publish(ctx, a.Topic, snap.Date.String(), snap); err != nil {
			zap.L().Warn("cannot publish snapshot", zap.Error(err))
		}
	}
	return saved
}
