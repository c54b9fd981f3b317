package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/denowallet/portfolio"
	"github.com/denowallet/portfolio/agent"
	"github.com/denowallet/portfolio/coingecko"
	"github.com/denowallet/portfolio/collect"
	"github.com/denowallet/portfolio/date"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type proxy struct {
	calls int
	code  int
	err   error
}

func (p *proxy) Proxy(_ context.Context, path, rawQuery string) (int, []byte, error) {
	p.calls++
	if p.err != nil {
		return 0, nil, p.err
	}
	return p.code, []byte(`{"path":"` + path + `","query":"` + rawQuery + `"}`), nil
}

type market struct{ err error }

func (m market) Markets(context.Context, coingecko.MarketsQuery) ([]coingecko.Market, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []coingecko.Market{
		{ID: "bitcoin", CurrentPrice: 65000},
		{ID: "ethereum", CurrentPrice: 3500},
	}, nil
}
func (m market) GlobalMarketCap(context.Context) (float64, error) { return 2.5e12, nil }
func (m market) Closes(context.Context, string, int) ([]float64, error) {
	return nil, errors.New("unused")
}

type cache struct {
	mu sync.Mutex
	m  map[string]string
}

func (c *cache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *cache) Put(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

type analyst struct{ err error }

func (a analyst) Generate(_ context.Context, snap collect.Snapshot) (agent.Analysis, error) {
	if a.err != nil {
		return agent.Analysis{}, a.err
	}
	if snap.Market == nil {
		return agent.Analysis{}, errors.New("market missing")
	}
	return agent.NewAnalysis("Genel görünüm: BOĞA", now), nil
}

type analyses struct {
	saved  *agent.Analysis
	latest *agent.Analysis
}

func (a *analyses) UpsertAnalysis(_ context.Context, v *agent.Analysis) error {
	a.saved = v
	return nil
}
func (a *analyses) LatestAnalysis(context.Context) (*agent.Analysis, error) { return a.latest, nil }

type chatter struct{ message, context string }

func (c *chatter) Reply(_ context.Context, message, marketContext string) (string, error) {
	c.message, c.context = message, marketContext
	return "Merhaba", nil
}

func newTestServer(d Deps) *server.Hertz {
	if d.Collector == nil {
		d.Collector = &collect.Collector{Market: market{}, Now: func() time.Time { return now }}
	}
	if d.Aggregator == nil {
		d.Aggregator = collect.NewAggregator(d.Collector, nil)
	}
	h := server.New()
	RegisterMiddleware(h, Options{})
	New(d, time.Second).Register(h)
	return h
}

func body(s string) *ut.Body {
	return &ut.Body{Body: strings.NewReader(s), Len: len(s)}
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m), string(body))
	return m
}

func TestCoinGecko(t *testing.T) {
	p := &proxy{code: 200}
	h := newTestServer(Deps{Proxy: p, Cache: &cache{m: map[string]string{}}})

	for range 2 {
		w := ut.PerformRequest(h.Engine, "GET", "/api/coingecko/simple/price?ids=bitcoin", nil)
		resp := w.Result()
		require.Equal(t, 200, resp.StatusCode())
		require.Equal(t, "s-maxage=30, stale-while-revalidate=60", resp.Header.Get("Cache-Control"))
		require.Contains(t, string(resp.Body()), `"query":"ids=bitcoin"`)
	}
	require.Equal(t, 1, p.calls, "second request is served from the cache")
}

func TestCoinGecko_Upstream(t *testing.T) {
	p := &proxy{code: 429}
	h := newTestServer(Deps{Proxy: p})
	w := ut.PerformRequest(h.Engine, "GET", "/api/coingecko/coins/list", nil)
	require.Equal(t, 429, w.Result().StatusCode())

	p.err = errors.New("dial tcp: timeout")
	w = ut.PerformRequest(h.Engine, "GET", "/api/coingecko/coins/list", nil)
	resp := w.Result()
	require.Equal(t, 500, resp.StatusCode())
	got := decode(t, resp.Body())
	require.Equal(t, "Failed to fetch from CoinGecko API", got["error"])
	require.Contains(t, got["details"], "timeout")
	require.Empty(t, resp.Header.Get("Cache-Control"))
}

func TestCollectMarket(t *testing.T) {
	h := newTestServer(Deps{})
	w := ut.PerformRequest(h.Engine, "GET", "/api/collect-market", nil)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())
	require.Equal(t, "s-maxage=300, stale-while-revalidate=600", resp.Header.Get("Cache-Control"))
	got := decode(t, resp.Body())
	require.Equal(t, true, got["success"])
	data := got["data"].(map[string]any)
	require.Equal(t, 65000.0, data["btc_price"])
	require.Equal(t, "2025-03-14", data["date"])
}

func TestCollectMarket_Failure(t *testing.T) {
	col := &collect.Collector{Market: market{err: errors.New("rate limited")}, Now: func() time.Time { return now }}
	h := newTestServer(Deps{Collector: col})
	w := ut.PerformRequest(h.Engine, "GET", "/api/collect-market", nil)
	resp := w.Result()
	require.Equal(t, 500, resp.StatusCode())
	require.Equal(t, false, decode(t, resp.Body())["success"])
	require.Empty(t, resp.Header.Get("Cache-Control"))
}

func TestCollectNews(t *testing.T) {
	h := newTestServer(Deps{})
	w := ut.PerformRequest(h.Engine, "GET", "/api/collect-news", nil)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())
	got := decode(t, resp.Body())
	require.Equal(t, "2025-03-14", got["date"])
	require.Equal(t, []any{}, got["data"])
}

func TestAggregate(t *testing.T) {
	h := newTestServer(Deps{})
	w := ut.PerformRequest(h.Engine, "POST", "/api/aggregate-data", nil)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())
	got := decode(t, resp.Body())
	require.Equal(t, "Data aggregated successfully", got["message"])
	require.Equal(t, false, got["saved_to_db"])
	data := got["data"].(map[string]any)
	require.NotNil(t, data["market"])
	require.Nil(t, data["technicals"])
	require.Nil(t, data["onchain"])
}

func TestGenerateAnalysis(t *testing.T) {
	w := ut.PerformRequest(newTestServer(Deps{}).Engine, "GET", "/api/generate-analysis", nil)
	require.Equal(t, 500, w.Result().StatusCode())
	require.Equal(t, "GEMINI_API_KEY not configured", decode(t, w.Result().Body())["error"])

	store := &analyses{}
	h := newTestServer(Deps{Analyst: analyst{}, Analyses: store})
	w = ut.PerformRequest(h.Engine, "POST", "/api/generate-analysis", nil)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())
	data := decode(t, resp.Body())["data"].(map[string]any)
	require.Equal(t, agent.Bullish, data["sentiment"])
	require.NotNil(t, store.saved)
	require.Equal(t, date.New(2025, 3, 14), store.saved.Date)

	h = newTestServer(Deps{Analyst: analyst{err: errors.New("quota")}})
	w = ut.PerformRequest(h.Engine, "POST", "/api/generate-analysis", nil)
	require.Equal(t, 500, w.Result().StatusCode())
	require.Equal(t, "quota", decode(t, w.Result().Body())["error"])
}

func TestGetAnalysis(t *testing.T) {
	w := ut.PerformRequest(newTestServer(Deps{}).Engine, "GET", "/api/get-analysis", nil)
	require.Equal(t, 500, w.Result().StatusCode())
	require.Equal(t, "Supabase not configured", decode(t, w.Result().Body())["error"])

	store := &analyses{}
	h := newTestServer(Deps{Analyses: store})
	w = ut.PerformRequest(h.Engine, "GET", "/api/get-analysis", nil)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())
	require.Equal(t, "s-maxage=60, stale-while-revalidate=300", resp.Header.Get("Cache-Control"))
	got := decode(t, resp.Body())
	require.Equal(t, true, got["success"])
	require.Nil(t, got["data"])

	a := agent.NewAnalysis("Yatay", now)
	store.latest = &a
	w = ut.PerformRequest(h.Engine, "GET", "/api/get-analysis", nil)
	data := decode(t, w.Result().Body())["data"].(map[string]any)
	require.Equal(t, agent.Neutral, data["sentiment"])
}

func TestChat(t *testing.T) {
	c := &chatter{}
	h := newTestServer(Deps{Chatbot: c})

	w := ut.PerformRequest(h.Engine, "GET", "/api/chat", nil)
	require.Equal(t, 405, w.Result().StatusCode())
	require.Equal(t, "Method not allowed", decode(t, w.Result().Body())["error"])

	w = ut.PerformRequest(h.Engine, "POST", "/api/chat",
		body(`{"message":""}`),
		ut.Header{Key: "Content-Type", Value: "application/json"})
	require.Equal(t, 400, w.Result().StatusCode())
	require.Equal(t, "Message is required", decode(t, w.Result().Body())["error"])

	w = ut.PerformRequest(h.Engine, "POST", "/api/chat",
		body(`{"message":"BTC?","context":"BTC: $65,000"}`),
		ut.Header{Key: "Content-Type", Value: "application/json"})
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())
	require.Equal(t, "Merhaba", decode(t, resp.Body())["reply"])
	require.Equal(t, "BTC?", c.message)
	require.Equal(t, "BTC: $65,000", c.context)

	h = newTestServer(Deps{})
	w = ut.PerformRequest(h.Engine, "POST", "/api/chat",
		body(`{"message":"BTC?"}`))
	require.Equal(t, 500, w.Result().StatusCode())
	require.Equal(t, "GROQ_API_KEY not configured", decode(t, w.Result().Body())["error"])
}

func TestMiddleware(t *testing.T) {
	h := newTestServer(Deps{})

	w := ut.PerformRequest(h.Engine, "GET", "/healthz", nil, ut.Header{Key: "Origin", Value: "https://denowallet.app"})
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Len(t, resp.Header.Get(RequestIDHeader), 36)

	w = ut.PerformRequest(h.Engine, "GET", "/healthz", nil, ut.Header{Key: RequestIDHeader, Value: "abc"})
	require.Equal(t, "abc", w.Result().Header.Get(RequestIDHeader))

	w = ut.PerformRequest(h.Engine, "OPTIONS", "/api/chat", nil)
	require.Equal(t, 200, w.Result().StatusCode())
	require.Empty(t, w.Result().Body())
}

type prices struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (p *prices) SimplePrice(_ context.Context, ids []string) (map[string]portfolio.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = ids
	if p.err != nil {
		return nil, p.err
	}
	return map[string]portfolio.Quote{
		"bitcoin":  {USD: 65000, Change24h: 1.5},
		"ethereum": {USD: 3500, Change24h: -0.5},
	}, nil
}

type conn struct {
	mu     sync.Mutex
	events []Event
	fail   bool
	closed bool
}

func (c *conn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return err
	}
	c.events = append(c.events, e)
	return nil
}

func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *conn) last() Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

func TestHub(t *testing.T) {
	src := &prices{}
	hub := NewHub(src, nil, time.Second)

	require.NoError(t, hub.Push(t.Context()))
	require.Nil(t, src.ids, "nothing is quoted without subscribers")

	a, b, broken := &conn{}, &conn{}, &conn{}
	ca, cb := hub.Add(a), hub.Add(b)
	cbroken := hub.Add(broken)

	hub.Handle(ca, []byte(`{"action":"subscribe","ids":["Bitcoin"," ethereum "]}`))
	require.Equal(t, Event{Type: "subscription_ack", IDs: []string{"bitcoin", "ethereum"}}, a.last())
	hub.Handle(cb, []byte(`{"action":"subscribe","ids":["ethereum","solana"]}`))
	hub.Handle(cbroken, []byte(`{"action":"subscribe","ids":["bitcoin"]}`))

	hub.Handle(cb, []byte(`{"action":"dance"}`))
	require.Equal(t, "error", b.last().Type)
	hub.Handle(cb, []byte(`not json`))
	require.Equal(t, "invalid message", b.last().Error)

	broken.fail = true
	require.NoError(t, hub.Push(t.Context()))
	require.Equal(t, []string{"bitcoin", "ethereum", "solana"}, src.ids)

	require.Equal(t, Event{Type: "prices", Data: map[string]portfolio.Quote{
		"bitcoin":  {USD: 65000, Change24h: 1.5},
		"ethereum": {USD: 3500, Change24h: -0.5},
	}}, a.last())
	require.Equal(t, Event{Type: "prices", Data: map[string]portfolio.Quote{
		"ethereum": {USD: 3500, Change24h: -0.5},
	}}, b.last())

	require.True(t, broken.closed)
	require.Equal(t, 2, hub.Len())

	hub.Handle(cb, []byte(`{"action":"unsubscribe","ids":["ethereum","solana"]}`))
	require.Equal(t, Event{Type: "unsubscription_ack"}, b.last())

	src.err = errors.New("rate limited")
	require.Error(t, hub.Push(t.Context()))

	hub.Remove(ca)
	require.True(t, a.closed)
	require.Equal(t, 1, hub.Len())
}
