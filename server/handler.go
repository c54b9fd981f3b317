package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/denowallet/portfolio/agent"
	"github.com/denowallet/portfolio/collect"
	"go.uber.org/zap"
)

const jsonContentType = "application/json; charset=utf-8"

// window is a shared cache directive, in seconds.
type window struct {
	maxAge, stale int
}

func (w window) header() string {
	return fmt.Sprintf("s-maxage=%d, stale-while-revalidate=%d", w.maxAge, w.stale)
}

var (
	proxyWindow       = window{30, 60}
	marketWindow      = window{300, 600}
	technicalsWindow  = window{3600, 7200}
	newsWindow        = window{1800, 3600}
	onchainWindow     = window{600, 1200}
	derivativesWindow = window{300, 600}
	analysisWindow    = window{60, 300}
)

func fail(c *app.RequestContext, code int, err string) {
	c.JSON(code, utils.H{"success": false, "error": err})
}

func (s *Server) Health(_ context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

// Preflight answers CORS preflight requests on any path.
func Preflight(_ context.Context, c *app.RequestContext) {
	c.Status(consts.StatusOK)
}

func (s *Server) cached(ctx context.Context, key string) ([]byte, bool) {
	if s.Cache == nil {
		return nil, false
	}
	v, ok, err := s.Cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("response cache unavailable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return []byte(v), ok
}

func (s *Server) store(ctx context.Context, key string, body []byte, w window) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Put(ctx, key, string(body), time.Duration(w.maxAge)*time.Second); err != nil {
		zap.L().Warn("cannot cache response", zap.String("key", key), zap.Error(err))
	}
}

// CoinGecko forwards /api/coingecko/<path> to the CoinGecko API.
func (s *Server) CoinGecko(ctx context.Context, c *app.RequestContext) {
	path := c.Param("path")
	query := string(c.URI().QueryString())
	key := "proxy:" + path + "?" + query

	if body, ok := s.cached(ctx, key); ok {
		c.Header("Cache-Control", proxyWindow.header())
		c.Data(consts.StatusOK, jsonContentType, body)
		return
	}

	code, body, err := s.Proxy.Proxy(ctx, path, query)
	if err != nil {
		zap.L().Error("coingecko proxy failed", zap.String("path", path), zap.Error(err))
		c.JSON(consts.StatusInternalServerError, utils.H{
			"error":   "Failed to fetch from CoinGecko API",
			"details": err.Error(),
		})
		return
	}
	if code >= 200 && code < 300 {
		s.store(ctx, key, body, proxyWindow)
	}
	c.Header("Cache-Control", proxyWindow.header())
	c.Data(code, jsonContentType, body)
}

// serveCached answers {success, data, extra...} computed by get, sharing
// successful bodies through the response cache during w.
func (s *Server) serveCached(ctx context.Context, c *app.RequestContext, key string, w window, get func(context.Context) (utils.H, error)) {
	if body, ok := s.cached(ctx, key); ok {
		c.Header("Cache-Control", w.header())
		c.Data(consts.StatusOK, jsonContentType, body)
		return
	}
	resp, err := get(ctx)
	if err != nil {
		zap.L().Error("collection failed", zap.String("key", key), zap.Error(err))
		fail(c, consts.StatusInternalServerError, err.Error())
		return
	}
	resp["success"] = true
	body, err := json.Marshal(resp)
	if err != nil {
		fail(c, consts.StatusInternalServerError, err.Error())
		return
	}
	s.store(ctx, key, body, w)
	c.Header("Cache-Control", w.header())
	c.Data(consts.StatusOK, jsonContentType, body)
}

func (s *Server) CollectMarket(ctx context.Context, c *app.RequestContext) {
	s.serveCached(ctx, c, "collect:market", marketWindow, func(ctx context.Context) (utils.H, error) {
		m, err := s.Collector.CollectMarket(ctx)
		return utils.H{"data": m}, err
	})
}

func (s *Server) CollectTechnicals(ctx context.Context, c *app.RequestContext) {
	s.serveCached(ctx, c, "collect:technicals", technicalsWindow, func(ctx context.Context) (utils.H, error) {
		t, err := s.Collector.CollectTechnicals(ctx)
		return utils.H{"data": t}, err
	})
}

func (s *Server) CollectNews(ctx context.Context, c *app.RequestContext) {
	s.serveCached(ctx, c, "collect:news", newsWindow, func(ctx context.Context) (utils.H, error) {
		news := s.Collector.CollectNews(ctx)
		return utils.H{"data": news, "date": s.Collector.Today().String()}, nil
	})
}

func (s *Server) CollectOnChain(ctx context.Context, c *app.RequestContext) {
	s.serveCached(ctx, c, "collect:onchain", onchainWindow, func(ctx context.Context) (utils.H, error) {
		o, err := s.Collector.CollectOnChain(ctx)
		return utils.H{"data": o}, err
	})
}

func (s *Server) CollectDerivatives(ctx context.Context, c *app.RequestContext) {
	s.serveCached(ctx, c, "collect:derivatives", derivativesWindow, func(ctx context.Context) (utils.H, error) {
		d, err := s.Collector.CollectDerivatives(ctx)
		return utils.H{
			"data": d,
			"note": "Derivatives data is best effort, missing metrics are null.",
		}, err
	})
}

// Aggregate collects a full snapshot and persists it.
func (s *Server) Aggregate(ctx context.Context, c *app.RequestContext) {
	snap := s.Aggregator.Collect(ctx)
	saved := s.Aggregator.Persist(ctx, snap)
	c.JSON(consts.StatusOK, utils.H{
		"success":     true,
		"message":     "Data aggregated successfully",
		"data":        snap,
		"saved_to_db": saved,
	})
}

// GenerateAnalysis writes today's analysis from the market and on-chain data.
func (s *Server) GenerateAnalysis(ctx context.Context, c *app.RequestContext) {
	if s.Analyst == nil {
		fail(c, consts.StatusInternalServerError, "GEMINI_API_KEY not configured")
		return
	}
	col := s.Collector
	now := col.Now
	if now == nil {
		now = time.Now
	}
	snap := collect.Snapshot{Timestamp: now().UTC(), Date: col.Today(), News: []collect.NewsItem{}}
	var err error
	if snap.Market, err = col.CollectMarket(ctx); err != nil {
		zap.L().Warn("market data unavailable for analysis", zap.Error(err))
	}
	if snap.OnChain, err = col.CollectOnChain(ctx); err != nil && !errors.Is(err, collect.ErrNoSource) {
		zap.L().Warn("on-chain data unavailable for analysis", zap.Error(err))
	}

	a, err := s.Analyst.Generate(ctx, snap)
	if err != nil {
		zap.L().Error("analysis generation failed", zap.Error(err))
		fail(c, consts.StatusInternalServerError, err.Error())
		return
	}
	if s.Analyses != nil {
		if err := s.Analyses.UpsertAnalysis(ctx, &a); err != nil {
			zap.L().Error("cannot save analysis", zap.Error(err))
		}
	}
	c.JSON(consts.StatusOK, utils.H{"success": true, "data": a})
}

// GetAnalysis returns the most recent analysis, null when there is none.
func (s *Server) GetAnalysis(ctx context.Context, c *app.RequestContext) {
	if s.Analyses == nil {
		fail(c, consts.StatusInternalServerError, "Supabase not configured")
		return
	}
	a, err := s.Analyses.LatestAnalysis(ctx)
	if err != nil {
		zap.L().Error("cannot read latest analysis", zap.Error(err))
		fail(c, consts.StatusInternalServerError, err.Error())
		return
	}
	c.Header("Cache-Control", analysisWindow.header())
	c.JSON(consts.StatusOK, utils.H{"success": true, "data": a})
}

type chatRequest struct {
	Message string `json:"message"`
	Context string `json:"context"`
}

// Chat answers a user question with the Groq model.
func (s *Server) Chat(ctx context.Context, c *app.RequestContext) {
	switch string(c.Method()) {
	case consts.MethodOptions:
		c.Status(consts.StatusOK)
		return
	case consts.MethodPost:
	default:
		fail(c, consts.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req chatRequest
	if len(c.Request.Body()) > 0 {
		if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
			fail(c, consts.StatusBadRequest, "Message is required")
			return
		}
	}
	if req.Message == "" {
		fail(c, consts.StatusBadRequest, "Message is required")
		return
	}
	if s.Chatbot == nil {
		fail(c, consts.StatusInternalServerError, "GROQ_API_KEY not configured")
		return
	}
	reply, err := s.Chatbot.Reply(ctx, req.Message, req.Context)
	if err != nil {
		zap.L().Error("chat failed", zap.Error(err))
		fail(c, consts.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(consts.StatusOK, utils.H{"success": true, "reply": reply})
}

var _ Analyzer = (*agent.Analyst)(nil)
