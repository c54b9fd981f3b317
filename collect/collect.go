// Package collect gathers the daily market snapshot: CoinGecko prices,
// Bitcoin technicals, CryptoPanic headlines, blockchain.info on-chain stats
// and Coinglass derivatives.
//
// Every source is optional except the CoinGecko markets call. A missing
// metric is reported as zero or null, never as a failure of the snapshot.
package collect

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/denowallet/portfolio/blockchain"
	"github.com/denowallet/portfolio/coingecko"
	"github.com/denowallet/portfolio/cryptopanic"
	"github.com/denowallet/portfolio/date"
	"github.com/denowallet/portfolio/indicator"
	"go.uber.org/zap"
)

const (
	satoshi = 1e8
	// block subsidy used to approximate active addresses from coins mined.
	blockReward = 6.25

	// TechnicalsDays is the history used by the technicals collector.
	TechnicalsDays = 200
	// NewsLimit is the number of headlines kept per snapshot.
	NewsLimit = 10
)

// NewsCurrencies are the currencies the news collector follows.
var NewsCurrencies = []string{"BTC", "ETH"}

// MarketData is the BTC/ETH overview of a day.
type MarketData struct {
	Date           date.Date `json:"date" gorm:"column:date;primaryKey"`
	BTCPrice       float64   `json:"btc_price" gorm:"column:btc_price"`
	BTC24hChange   float64   `json:"btc_24h_change" gorm:"column:btc_24h_change"`
	BTCMarketCap   float64   `json:"btc_market_cap" gorm:"column:btc_market_cap"`
	BTCVolume      float64   `json:"btc_volume" gorm:"column:btc_volume"`
	ETHPrice       float64   `json:"eth_price" gorm:"column:eth_price"`
	ETH24hChange   float64   `json:"eth_24h_change" gorm:"column:eth_24h_change"`
	TotalMarketCap float64   `json:"total_market_cap" gorm:"column:total_market_cap"`
}

func (MarketData) TableName() string { return "market_data" }

// OnChainData is the Bitcoin network activity of a day.
type OnChainData struct {
	Date                date.Date `json:"date" gorm:"column:date;primaryKey"`
	HashRate            float64   `json:"hash_rate" gorm:"column:hash_rate"`
	Difficulty          float64   `json:"difficulty" gorm:"column:difficulty"`
	ActiveAddresses     int64     `json:"active_addresses" gorm:"column:active_addresses"`
	TransactionCount    float64   `json:"transaction_count" gorm:"column:transaction_count"`
	AvgTransactionValue float64   `json:"avg_transaction_value" gorm:"column:avg_transaction_value"`
	MempoolSize         float64   `json:"mempool_size" gorm:"column:mempool_size"`
	MempoolBytes        float64   `json:"mempool_bytes" gorm:"column:mempool_bytes"`
	BlocksMined24h      float64   `json:"blocks_mined_24h" gorm:"column:blocks_mined_24h"`
	BTCMined24h         float64   `json:"btc_mined_24h" gorm:"column:btc_mined_24h"`
}

func (OnChainData) TableName() string { return "onchain_data" }

// DerivativesData holds the BTC futures metrics. Nil means unavailable.
type DerivativesData struct {
	Date            date.Date `json:"date" gorm:"column:date;primaryKey"`
	OpenInterest    *float64  `json:"open_interest" gorm:"column:open_interest"`
	FundingRate     *float64  `json:"funding_rate" gorm:"column:funding_rate"`
	LongShortRatio  *float64  `json:"long_short_ratio" gorm:"column:long_short_ratio"`
	Liquidations24h *float64  `json:"liquidations_24h" gorm:"column:liquidations_24h"`
}

func (DerivativesData) TableName() string { return "derivatives_data" }

// NewsItem is a headline of the snapshot.
type NewsItem = cryptopanic.Article

// Snapshot is everything collected for a day. Nil parts failed to collect.
type Snapshot struct {
	Timestamp   time.Time             `json:"timestamp"`
	Date        date.Date             `json:"date"`
	Market      *MarketData           `json:"market"`
	Technicals  *indicator.Technicals `json:"technicals"`
	News        []NewsItem            `json:"news"`
	OnChain     *OnChainData          `json:"onchain"`
	Derivatives *DerivativesData      `json:"derivatives"`
}

// MarketSource is the subset of the CoinGecko client used here.
type MarketSource interface {
	Markets(ctx context.Context, q coingecko.MarketsQuery) ([]coingecko.Market, error)
	GlobalMarketCap(ctx context.Context) (float64, error)
	Closes(ctx context.Context, id string, days int) ([]float64, error)
}

type NewsSource interface {
	Hot(ctx context.Context, currencies []string, limit int) ([]cryptopanic.Article, error)
}

type ChainSource interface {
	Snapshot(ctx context.Context) (blockchain.Stats, blockchain.Mempool, error)
}

type DerivativesSource interface {
	OpenInterest(ctx context.Context, symbol string) (float64, error)
	FundingRate(ctx context.Context, symbol string) (float64, error)
	LongShortRatio(ctx context.Context, symbol string) (float64, error)
}

// ErrNoSource is returned by a collector whose source is not configured.
var ErrNoSource = errors.New("collect: source not configured")

// Collector reads each part of the snapshot from its source.
type Collector struct {
	Market      MarketSource
	News        NewsSource
	Chain       ChainSource
	Derivatives DerivativesSource

	// Now defaults to time.Now.
	Now func() time.Time
}

func (c *Collector) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// Today is the UTC day collected data is keyed by.
func (c *Collector) Today() date.Date { return date.Of(c.now()) }

// CollectMarket reads BTC and ETH quotes and the total market cap. A coin
// missing from the answer is reported as zeros. The total market cap is
// best-effort.
func (c *Collector) CollectMarket(ctx context.Context) (*MarketData, error) {
	if c.Market == nil {
		return nil, ErrNoSource
	}
	markets, err := c.Market.Markets(ctx, coingecko.MarketsQuery{IDs: []string{"bitcoin", "ethereum"}})
	if err != nil {
		return nil, fmt.Errorf("cannot read coin markets: %w", err)
	}
	m := &MarketData{Date: c.Today()}
	for _, row := range markets {
		switch row.ID {
		case "bitcoin":
			m.BTCPrice, m.BTC24hChange = row.CurrentPrice, row.PriceChangePercentage24h
			m.BTCMarketCap, m.BTCVolume = row.MarketCap, row.TotalVolume
		case "ethereum":
			m.ETHPrice, m.ETH24hChange = row.CurrentPrice, row.PriceChangePercentage24h
		}
	}
	if total, err := c.Market.GlobalMarketCap(ctx); err != nil {
		zap.L().Warn("global market cap unavailable", zap.Error(err))
	} else {
		m.TotalMarketCap = total
	}
	return m, nil
}

// CollectTechnicals computes the BTC indicators over TechnicalsDays daily closes.
func (c *Collector) CollectTechnicals(ctx context.Context) (*indicator.Technicals, error) {
	if c.Market == nil {
		return nil, ErrNoSource
	}
	closes, err := c.Market.Closes(ctx, "bitcoin", TechnicalsDays)
	if err != nil {
		return nil, fmt.Errorf("cannot read bitcoin history: %w", err)
	}
	t := indicator.Compute("BTC", c.Today(), closes)
	return &t, nil
}

// CollectNews returns the hot headlines. It never fails: an unavailable feed
// yields an empty list.
func (c *Collector) CollectNews(ctx context.Context) []NewsItem {
	if c.News == nil {
		return []NewsItem{}
	}
	articles, err := c.News.Hot(ctx, NewsCurrencies, NewsLimit)
	if err != nil {
		zap.L().Warn("news feed unavailable", zap.Error(err))
		return []NewsItem{}
	}
	if articles == nil {
		articles = []NewsItem{}
	}
	return articles
}

// CollectOnChain derives the daily network activity from blockchain.info.
func (c *Collector) CollectOnChain(ctx context.Context) (*OnChainData, error) {
	if c.Chain == nil {
		return nil, ErrNoSource
	}
	stats, mempool, err := c.Chain.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot read on-chain stats: %w", err)
	}
	return OnChain(c.Today(), stats, mempool), nil
}

// OnChain converts raw blockchain.info figures to OnChainData.
func OnChain(day date.Date, s blockchain.Stats, m blockchain.Mempool) *OnChainData {
	d := &OnChainData{
		Date:             day,
		HashRate:         s.HashRate,
		Difficulty:       s.Difficulty,
		TransactionCount: s.NTx,
		MempoolSize:      m.Count,
		MempoolBytes:     m.Size,
		BlocksMined24h:   s.NBlocksMined,
		BTCMined24h:      s.NBTCMined / satoshi,
	}
	if s.NBTCMined != 0 {
		d.ActiveAddresses = int64(math.Round(s.NBTCMined / blockReward))
	}
	if s.TotalBTCSent != 0 {
		n := s.NTx
		if n == 0 {
			n = 1
		}
		d.AvgTransactionValue = s.TotalBTCSent / satoshi / n
	}
	return d
}

// CollectDerivatives reads every BTC metric independently. Unavailable ones
// stay nil, liquidations are not collected.
func (c *Collector) CollectDerivatives(ctx context.Context) (*DerivativesData, error) {
	if c.Derivatives == nil {
		return nil, ErrNoSource
	}
	d := &DerivativesData{Date: c.Today()}
	metric := func(name string, read func(context.Context, string) (float64, error)) *float64 {
		v, err := read(ctx, "BTC")
		if err != nil {
			zap.L().Warn("derivatives metric unavailable", zap.String("metric", name), zap.Error(err))
			return nil
		}
		return &v
	}
	d.OpenInterest = metric("open_interest", c.Derivatives.OpenInterest)
	d.FundingRate = metric("funding_rate", c.Derivatives.FundingRate)
	d.LongShortRatio = metric("long_short_ratio", c.Derivatives.LongShortRatio)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d, nil
}
