// Package blockchain reads Bitcoin network statistics from blockchain.info.
package blockchain

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/denowallet/portfolio/httpx"
	"go.uber.org/zap"
)

const BaseURL = "https://api.blockchain.info"

// Stats is the subset of /stats the service reports on. Amounts are in satoshi.
type Stats struct {
	HashRate     float64 `json:"hash_rate"`
	Difficulty   float64 `json:"difficulty"`
	NTx          float64 `json:"n_tx"`
	TotalBTCSent float64 `json:"total_btc_sent"`
	NBlocksMined float64 `json:"n_blocks_mined"`
	NBTCMined    float64 `json:"n_btc_mined"`
	MarketPrice  float64 `json:"market_price_usd"`
}

// Mempool is the pending transactions pool.
type Mempool struct {
	Count float64 `json:"count"`
	Size  float64 `json:"size"`
}

// Client calls the blockchain.info API.
type Client struct {
	http    *httpx.Client
	baseURL string
}

func New(h httpx.HTTPClient) *Client {
	c := &Client{http: httpx.New(15 * time.Second), baseURL: BaseURL}
	if h != nil {
		c.http = c.http.WithHTTP(h)
	}
	return c
}

// WithBaseURL returns a copy of c calling another API root.
func (c *Client) WithBaseURL(u string) *Client {
	cp := *c
	cp.baseURL = strings.TrimRight(u, "/")
	return &cp
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.http.GetJSON(ctx, c.baseURL+"/stats", &s)
	return s, err
}

func (c *Client) Mempool(ctx context.Context) (Mempool, error) {
	var m Mempool
	err := c.http.GetJSON(ctx, c.baseURL+"/mempool?format=json", &m)
	return m, err
}

// Snapshot fetches the stats and the mempool concurrently.
//
// A non 2xx answer of either endpoint leaves its part zero. Transport
// failures are returned.
func (c *Client) Snapshot(ctx context.Context) (Stats, Mempool, error) {
	var (
		wg               sync.WaitGroup
		stats            Stats
		mempool          Mempool
		statsErr, memErr error
	)
	wg.Add(2)
	go func() { defer wg.Done(); stats, statsErr = c.Stats(ctx) }()
	go func() { defer wg.Done(); mempool, memErr = c.Mempool(ctx) }()
	wg.Wait()

	statsErr = tolerateStatus(statsErr, "stats")
	memErr = tolerateStatus(memErr, "mempool")
	if err := errors.Join(statsErr, memErr); err != nil {
		return Stats{}, Mempool{}, err
	}
	return stats, mempool, nil
}

func tolerateStatus(err error, what string) error {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		zap.L().Warn("blockchain.info unavailable, using empty "+what, zap.Error(err))
		return nil
	}
	return err
}
