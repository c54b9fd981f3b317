package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/kr/pretty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

// builtin holds the configuration shipped with the binary, used when the
// working directory has no conf folder.
//
//go:embed */conf.yaml
var builtin embed.FS

var (
	conf *Config
	once sync.Once
)

type Config struct {
	Env       string    `yaml:"-"`
	Hertz     Hertz     `yaml:"hertz"`
	Storage   Storage   `yaml:"storage"`
	Postgres  Postgres  `yaml:"postgres"`
	Redis     Redis     `yaml:"redis"`
	Kafka     Kafka     `yaml:"kafka"`
	Registry  Registry  `yaml:"registry"`
	APIs      APIs      `yaml:"apis"`
	Scheduler Scheduler `yaml:"scheduler"`
}

type Hertz struct {
	Service         string `yaml:"service" validate:"nonzero"`
	Address         string `yaml:"address" validate:"nonzero"`
	EnablePprof     bool   `yaml:"enable_pprof"`
	EnableGzip      bool   `yaml:"enable_gzip"`
	EnableAccessLog bool   `yaml:"enable_access_log"`
	LogLevel        string `yaml:"log_level"`
	LogFileName     string `yaml:"log_file_name"`
	LogMaxSize      int    `yaml:"log_max_size"`
	LogMaxBackups   int    `yaml:"log_max_backups"`
	LogMaxAge       int    `yaml:"log_max_age"`
	PoolSize        int    `yaml:"pool_size" validate:"min=1"`
	WsInterval      int    `yaml:"ws_interval" validate:"min=1"` // seconds between websocket price pushes
}

// Storage is the local database of the command line.
type Storage struct {
	Path string `yaml:"path"` // empty means ~/.denowallet/wallet.db
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type Redis struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	Username string `yaml:"username"`
	DB       int    `yaml:"db"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Registry is the Consul agent used for service registration and leader lock.
type Registry struct {
	Address       string `yaml:"address"`
	CheckInterval int    `yaml:"check_interval"` // seconds
}

// APIs holds the upstream credentials, usually set from the environment.
type APIs struct {
	CoinGeckoKey     string `yaml:"coingecko_key"`
	CryptoPanicToken string `yaml:"cryptopanic_token"`
	CoinglassKey     string `yaml:"coinglass_key"`
	GeminiKey        string `yaml:"gemini_key"`
	GeminiModel      string `yaml:"gemini_model"`
	GroqKey          string `yaml:"groq_key"`
}

// Scheduler runs the daily aggregation.
type Scheduler struct {
	Enabled  bool   `yaml:"enabled"`
	Hour     int    `yaml:"hour" validate:"min=0,max=23"` // UTC
	Analysis bool   `yaml:"analysis"`
	LockKey  string `yaml:"lock_key"`
}

// GetConf gets configuration instance
func GetConf() *Config {
	once.Do(initConf)
	return conf
}

func initConf() {
	c, err := Load("conf", GetEnv())
	if err != nil {
		hlog.Errorf("load config error - %v", err)
		panic(err)
	}
	conf = c
}

// Dump logs the configuration with secrets masked, at debug level.
func (c *Config) Dump() {
	if zap.L().Core().Enabled(zapcore.DebugLevel) {
		zap.L().Debug("configuration", zap.String("env", c.Env), zap.String("conf", pretty.Sprintf("%# v", c.redacted())))
	}
}

// Load reads dir/env/conf.yaml, or the built-in file of env when missing,
// then applies the environment overrides and validates the result.
func Load(dir, env string) (*Config, error) {
	name := filepath.Join(env, "conf.yaml")
	content, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		content, err = fs.ReadFile(builtin, filepath.ToSlash(name))
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", name, err)
	}

	c := new(Config)
	if err := yaml.Unmarshal(content, c); err != nil {
		return nil, fmt.Errorf("parse yaml error - %w", err)
	}
	c.Env = env
	c.applyEnv(os.LookupEnv)
	if err := validator.Validate(c); err != nil {
		return nil, fmt.Errorf("validate config error - %w", err)
	}
	return c, nil
}

// applyEnv overrides secrets and addresses from the environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("GEMINI_API_KEY", &c.APIs.GeminiKey)
	set("GROQ_API_KEY", &c.APIs.GroqKey)
	set("COINGECKO_API_KEY", &c.APIs.CoinGeckoKey)
	set("CRYPTOPANIC_TOKEN", &c.APIs.CryptoPanicToken)
	set("COINGLASS_API_KEY", &c.APIs.CoinglassKey)
	set("SUPABASE_DB_URL", &c.Postgres.DSN)
	set("REDIS_ADDR", &c.Redis.Address)
	set("REDIS_PASSWORD", &c.Redis.Password)
	set("CONSUL_ADDR", &c.Registry.Address)
	set("DENOWALLET_DB", &c.Storage.Path)

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.Kafka.Brokers = append(c.Kafka.Brokers, b)
			}
		}
	}
	if v, ok := lookup("PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Hertz.Address = fmt.Sprintf(":%d", port)
		}
	}
}

// redacted returns a copy safe to print.
func (c *Config) redacted() Config {
	cp := *c
	mask := func(s *string) {
		if *s != "" {
			*s = "***"
		}
	}
	mask(&cp.APIs.GeminiKey)
	mask(&cp.APIs.GroqKey)
	mask(&cp.APIs.CoinGeckoKey)
	mask(&cp.APIs.CryptoPanicToken)
	mask(&cp.APIs.CoinglassKey)
	mask(&cp.Postgres.DSN)
	mask(&cp.Redis.Password)
	return cp
}

func GetEnv() string {
	e := os.Getenv("GO_ENV")
	if len(e) == 0 {
		return "test"
	}
	return e
}

func LogLevel() hlog.Level {
	return HertzLevel(GetConf().Hertz.LogLevel)
}

// HertzLevel maps a level name to the hertz logger level.
func HertzLevel(level string) hlog.Level {
	switch level {
	case "trace":
		return hlog.LevelTrace
	case "debug":
		return hlog.LevelDebug
	case "info":
		return hlog.LevelInfo
	case "notice":
		return hlog.LevelNotice
	case "warn":
		return hlog.LevelWarn
	case "error":
		return hlog.LevelError
	case "fatal":
		return hlog.LevelFatal
	default:
		return hlog.LevelInfo
	}
}
