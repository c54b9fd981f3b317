package cmd

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	hserver "github.com/cloudwego/hertz/pkg/app/server"
	"github.com/denowallet/portfolio/agent"
	"github.com/denowallet/portfolio/collect"
	"github.com/denowallet/portfolio/conf"
	"github.com/denowallet/portfolio/dal/kafka"
	"github.com/denowallet/portfolio/dal/pg"
	"github.com/denowallet/portfolio/dal/redis"
	"github.com/denowallet/portfolio/scheduler"
	"github.com/denowallet/portfolio/server"
	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

type serveCmd struct {
	address string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the market data and assistant HTTP service" }
func (*serveCmd) Usage() string {
	return `dw serve [-addr <host:port>]

  Serves the CoinGecko proxy, the market collectors, the aggregation, the AI
  analysis and chat endpoints, and the live price websocket.

  Optional backends are enabled by the configuration (conf/<GO_ENV>/conf.yaml)
  or the environment: SUPABASE_DB_URL, REDIS_ADDR, KAFKA_BROKERS, CONSUL_ADDR,
  GEMINI_API_KEY, GROQ_API_KEY. A backend that cannot be reached is logged and
  left out.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.address, "addr", "", "Listen address. Defaults to the configured one.")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg := conf.GetConf()
	cfg.Dump()
	address := cfg.Hertz.Address
	if c.address != "" {
		address = c.address
	}

	pool, err := ants.NewPool(cfg.Hertz.PoolSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	col := newCollector()
	agg := collect.NewAggregator(col, pool)
	deps := server.Deps{
		Proxy:      newCoinGecko(),
		Prices:     newCoinGecko(),
		Collector:  col,
		Aggregator: agg,
		Pool:       pool,
	}
	var closers []func()
	defer func() {
		for _, fn := range closers {
			fn()
		}
	}()

	if cfg.Postgres.DSN != "" {
		store, err := pg.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			zap.L().Warn("database unavailable, snapshots are not stored", zap.Error(err))
		} else {
			agg.Sink, deps.Analyses = store, store
			closers = append(closers, store.Close)
		}
	}
	if cfg.Redis.Address != "" {
		cache, err := redis.New(ctx, redis.Options{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			zap.L().Warn("redis unavailable, responses are not cached", zap.Error(err))
		} else {
			deps.Cache = cache
			closers = append(closers, func() { _ = cache.Close() })
		}
	}
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := kafka.New(cfg.Kafka.Brokers)
		if err == nil {
			err = pub.Ping(ctx)
		}
		if err != nil {
			zap.L().Warn("kafka unavailable, snapshots are not published", zap.Error(err))
		} else {
			agg.Publisher = pub
			if cfg.Kafka.Topic != "" {
				agg.Topic = cfg.Kafka.Topic
			}
			closers = append(closers, func() { _ = pub.Close() })
		}
	}
	var analyst *agent.Analyst
	if cfg.APIs.GeminiKey != "" {
		client, err := agent.NewGeminiClient(ctx, cfg.APIs.GeminiKey)
		if err != nil {
			zap.L().Warn("gemini unavailable", zap.Error(err))
		} else {
			analyst = agent.NewAnalyst(client.Models)
			if cfg.APIs.GeminiModel != "" {
				analyst.Model = cfg.APIs.GeminiModel
			}
			deps.Analyst = analyst
		}
	}
	if groq, err := agent.NewGroq(cfg.APIs.GroqKey, nil); err == nil {
		deps.Chatbot = groq
	}

	h := hserver.New(hserver.WithHostPorts(address))
	server.RegisterMiddleware(h, server.Options{
		EnablePprof:     cfg.Hertz.EnablePprof,
		EnableGzip:      cfg.Hertz.EnableGzip,
		EnableAccessLog: cfg.Hertz.EnableAccessLog,
	})
	srv := server.New(deps, time.Duration(cfg.Hertz.WsInterval)*time.Second)
	srv.Register(h)
	go srv.Hub().Run(ctx)

	var consul *scheduler.Consul
	if cfg.Registry.Address != "" {
		consul, err = scheduler.NewConsul(cfg.Registry.Address)
		if err != nil {
			zap.L().Warn("consul unavailable, running standalone", zap.Error(err))
			consul = nil
		}
	}
	if consul != nil {
		reg := registration(cfg, address)
		if err := consul.Register(reg); err != nil {
			zap.L().Warn("cannot register service", zap.Error(err))
		} else {
			closers = append(closers, func() { _ = consul.Deregister(reg.ID) })
		}
	}

	if cfg.Scheduler.Enabled {
		s := &scheduler.Scheduler{
			Hour:       cfg.Scheduler.Hour,
			LockKey:    cfg.Scheduler.LockKey,
			Aggregator: agg,
		}
		if consul != nil {
			s.Locker = consul
		}
		if cfg.Scheduler.Analysis && analyst != nil {
			s.Analyst = analyst
			if deps.Analyses != nil {
				s.Analyses = deps.Analyses
			}
		}
		go s.Run(ctx)
	}

	h.OnShutdown = append(h.OnShutdown, func(context.Context) { cancel() })
	zap.L().Info("serving", zap.String("service", cfg.Hertz.Service), zap.String("address", address))
	h.Spin()
	return subcommands.ExitSuccess
}

func registration(cfg *conf.Config, address string) scheduler.Registration {
	host, portStr, _ := net.SplitHostPort(address)
	port, _ := strconv.Atoi(portStr)
	return scheduler.Registration{
		ID:       cfg.Hertz.Service + "-" + uuid.NewString()[:8],
		Name:     cfg.Hertz.Service,
		Address:  host,
		Port:     port,
		Tags:     []string{cfg.Env},
		Interval: time.Duration(cfg.Registry.CheckInterval) * time.Second,
	}
}
