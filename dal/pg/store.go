// Package pg stores daily snapshots and analyses in Postgres.
package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/denowallet/portfolio/agent"
	"github.com/denowallet/portfolio/collect"
	"github.com/denowallet/portfolio/date"
	"github.com/denowallet/portfolio/indicator"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store writes one row per day in each snapshot table.
type Store struct {
	Pool *pgxpool.Pool
	DB   *gorm.DB
}

// newsRow is a headline of news_data, several rows share a date.
type newsRow struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Date        date.Date `gorm:"column:date;index"`
	Title       string    `gorm:"column:title"`
	Source      string    `gorm:"column:source"`
	URL         string    `gorm:"column:url"`
	Sentiment   string    `gorm:"column:sentiment"`
	Currencies  []string  `gorm:"column:currencies;serializer:json"`
	PublishedAt string    `gorm:"column:published_at"`
}

func (newsRow) TableName() string { return "news_data" }

// Open connects to dsn and migrates the tables.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot ping postgres: %w", err)
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot open gorm: %w", err)
	}
	s := &Store{Pool: pool, DB: db}
	if err := s.AutoMigrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("cannot migrate: %w", err)
	}
	zap.L().Info("postgres ready")
	return s, nil
}

func (s *Store) AutoMigrate() error {
	if s.DB == nil {
		return gorm.ErrInvalidDB
	}
	return s.DB.AutoMigrate(
		&collect.MarketData{},
		&indicator.Technicals{},
		&newsRow{},
		&collect.OnChainData{},
		&collect.DerivativesData{},
		&agent.Analysis{},
	)
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error { return s.Pool.Ping(ctx) }

func (s *Store) Close() {
	if sqlDB, err := s.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	s.Pool.Close()
}

// upsert inserts v or overwrites the row of the same date.
func (s *Store) upsert(ctx context.Context, v any) error {
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		UpdateAll: true,
	}).Create(v).Error
}

func (s *Store) UpsertMarket(ctx context.Context, m *collect.MarketData) error {
	return s.upsert(ctx, m)
}

func (s *Store) UpsertTechnicals(ctx context.Context, t *indicator.Technicals) error {
	return s.upsert(ctx, t)
}

func (s *Store) UpsertOnChain(ctx context.Context, o *collect.OnChainData) error {
	return s.upsert(ctx, o)
}

func (s *Store) UpsertDerivatives(ctx context.Context, d *collect.DerivativesData) error {
	return s.upsert(ctx, d)
}

func (s *Store) UpsertAnalysis(ctx context.Context, a *agent.Analysis) error {
	return s.upsert(ctx, a)
}

// InsertNews appends the headlines of day.
func (s *Store) InsertNews(ctx context.Context, day date.Date, news []collect.NewsItem) error {
	if len(news) == 0 {
		return nil
	}
	rows := make([]newsRow, 0, len(news))
	for _, n := range news {
		rows = append(rows, newsRow{
			Date:        day,
			Title:       n.Title,
			Source:      n.Source,
			URL:         n.URL,
			Sentiment:   n.Sentiment,
			Currencies:  n.Currencies,
			PublishedAt: n.PublishedAt,
		})
	}
	return s.DB.WithContext(ctx).Create(&rows).Error
}

// LatestAnalysis returns the most recent analysis, nil when there is none.
func (s *Store) LatestAnalysis(ctx context.Context) (*agent.Analysis, error) {
	var a agent.Analysis
	err := s.DB.WithContext(ctx).Order("date desc").First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

var _ collect.Sink = (*Store)(nil)
