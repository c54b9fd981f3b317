// Package server exposes the market data endpoints, the analysis and chat
// endpoints and the live price websocket over hertz.
package server

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app/middlewares/server/recovery"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/denowallet/portfolio"
	"github.com/denowallet/portfolio/agent"
	"github.com/denowallet/portfolio/collect"
	"github.com/hertz-contrib/cors"
	"github.com/hertz-contrib/gzip"
	"github.com/hertz-contrib/logger/accesslog"
	"github.com/hertz-contrib/pprof"
	"github.com/panjf2000/ants/v2"
)

// Proxy forwards raw CoinGecko requests.
type Proxy interface {
	Proxy(ctx context.Context, path, rawQuery string) (int, []byte, error)
}

// PriceSource quotes coins by CoinGecko id.
type PriceSource interface {
	SimplePrice(ctx context.Context, ids []string) (map[string]portfolio.Quote, error)
}

// Analyzer writes the daily analysis of a snapshot.
type Analyzer interface {
	Generate(ctx context.Context, snap collect.Snapshot) (agent.Analysis, error)
}

// Chatter answers a single question.
type Chatter interface {
	Reply(ctx context.Context, message, marketContext string) (string, error)
}

// AnalysisStore keeps one analysis per day.
type AnalysisStore interface {
	UpsertAnalysis(ctx context.Context, a *agent.Analysis) error
	LatestAnalysis(ctx context.Context) (*agent.Analysis, error)
}

// ResponseCache shares response bodies between instances.
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
}

// Deps are the collaborators of the handlers. Optional ones are nil when
// not configured, the matching endpoints then answer 500.
type Deps struct {
	Proxy      Proxy
	Prices     PriceSource
	Collector  *collect.Collector
	Aggregator *collect.Aggregator
	Analyst    Analyzer      // needs GEMINI_API_KEY
	Chatbot    Chatter       // needs GROQ_API_KEY
	Analyses   AnalysisStore // needs the database
	Cache      ResponseCache
	Pool       *ants.Pool
}

// Options tune the middleware stack.
type Options struct {
	EnablePprof     bool
	EnableGzip      bool
	EnableAccessLog bool
}

// Server holds the handlers.
type Server struct {
	Deps
	hub *Hub
}

func New(d Deps, wsInterval time.Duration) *Server {
	return &Server{Deps: d, hub: NewHub(d.Prices, d.Pool, wsInterval)}
}

// Hub returns the websocket hub, its Run loop pushes prices.
func (s *Server) Hub() *Hub { return s.hub }

// RegisterMiddleware installs the middleware stack in the order requests go through it.
func RegisterMiddleware(h *server.Hertz, o Options) {
	// pprof
	if o.EnablePprof {
		pprof.Register(h)
	}
	// recovery
	h.Use(recovery.Recovery())
	h.Use(RequestID())
	// access log
	if o.EnableAccessLog {
		h.Use(accesslog.New())
	}
	// cors
	h.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type"},
		MaxAge:          12 * time.Hour,
	}))
	// gzip
	if o.EnableGzip {
		h.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws/"})))
	}
}

// Register adds the routes of s to h.
func (s *Server) Register(h *server.Hertz) {
	h.GET("/healthz", s.Health)
	h.OPTIONS("/*path", Preflight)

	api := h.Group("/api")
	api.GET("/coingecko/*path", s.CoinGecko)

	api.GET("/collect-market", s.CollectMarket)
	api.GET("/collect-technicals", s.CollectTechnicals)
	api.GET("/collect-news", s.CollectNews)
	api.GET("/collect-onchain", s.CollectOnChain)
	api.GET("/collect-derivatives", s.CollectDerivatives)

	api.GET("/aggregate-data", s.Aggregate)
	api.POST("/aggregate-data", s.Aggregate)
	api.GET("/generate-analysis", s.GenerateAnalysis)
	api.POST("/generate-analysis", s.GenerateAnalysis)
	api.GET("/get-analysis", s.GetAnalysis)
	api.Any("/chat", s.Chat)

	h.GET("/ws/prices", s.hub.Serve)
}
