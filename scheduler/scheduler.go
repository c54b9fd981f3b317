// Package scheduler runs the daily snapshot aggregation.
package scheduler

import (
	"context"
	"time"

	"github.com/denowallet/portfolio/agent"
	"github.com/denowallet/portfolio/collect"
	"github.com/denowallet/portfolio/date"
	"go.uber.org/zap"
)

// DefaultLockKey is where instances compete for the daily job.
const DefaultLockKey = "denowallet/scheduler/leader"

// Locker elects a single runner across instances and remembers the days
// already done, so a late instance does not run the same day again.
type Locker interface {
	TryLock(key string) (release func(), ok bool, err error)
	Done(key string) (bool, error)
	MarkDone(key string) error
}

type Aggregator interface {
	Collect(ctx context.Context) collect.Snapshot
	Persist(ctx context.Context, snap collect.Snapshot) bool
}

type Analyzer interface {
	Generate(ctx context.Context, snap collect.Snapshot) (agent.Analysis, error)
}

type AnalysisStore interface {
	UpsertAnalysis(ctx context.Context, a *agent.Analysis) error
}

// Scheduler runs the job every day at Hour UTC.
type Scheduler struct {
	Hour       int
	LockKey    string
	Locker     Locker // nil runs without election
	Aggregator Aggregator
	Analyst    Analyzer      // nil skips the analysis
	Analyses   AnalysisStore // nil keeps the analysis in the logs only

	// Now defaults to time.Now.
	Now func() time.Time
}

// Result is the outcome of one run.
type Result struct {
	Skipped  bool // another instance holds the lock or already ran today
	Snapshot collect.Snapshot
	Saved    bool
	Analysis *agent.Analysis
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Next returns the first run strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	t = t.UTC()
	next := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, 0, 0, 0, time.UTC)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunOnce aggregates, persists and analyses today's data, when this instance
// wins the lock.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	if s.Locker != nil {
		key := s.LockKey
		if key == "" {
			key = DefaultLockKey
		}
		release, ok, err := s.Locker.TryLock(key)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			zap.L().Info("daily job held by another instance", zap.String("key", key))
			return Result{Skipped: true}, nil
		}
		defer release()

		marker := doneKey(key, date.Of(s.now()))
		done, err := s.Locker.Done(marker)
		if err != nil {
			return Result{}, err
		}
		if done {
			zap.L().Info("daily job already done", zap.String("key", marker))
			return Result{Skipped: true}, nil
		}
		// news rows are inserted, a second run of the day would duplicate them
		defer func() {
			if err := s.Locker.MarkDone(marker); err != nil {
				zap.L().Warn("cannot mark daily job done", zap.String("key", marker), zap.Error(err))
			}
		}()
	}

	snap := s.Aggregator.Collect(ctx)
	res := Result{Snapshot: snap, Saved: s.Aggregator.Persist(ctx, snap)}
	zap.L().Info("daily snapshot aggregated",
		zap.Stringer("date", snap.Date),
		zap.Bool("saved_to_db", res.Saved))

	if s.Analyst == nil {
		return res, nil
	}
	a, err := s.Analyst.Generate(ctx, snap)
	if err != nil {
		// the snapshot is already stored, the analysis can be generated later
		zap.L().Error("daily analysis failed", zap.Error(err))
		return res, nil
	}
	res.Analysis = &a
	if s.Analyses != nil {
		if err := s.Analyses.UpsertAnalysis(ctx, &a); err != nil {
			zap.L().Error("cannot save daily analysis", zap.Error(err))
		}
	}
	zap.L().Info("daily analysis generated", zap.String("sentiment", a.Sentiment))
	return res, nil
}

// doneKey is the marker of the run of day d under the lock key.
func doneKey(key string, d date.Date) string { return key + "/done/" + d.String() }

// Run waits for each daily run until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := s.Next(s.now())
		zap.L().Info("next daily job", zap.Time("at", next))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if _, err := s.RunOnce(ctx); err != nil {
			zap.L().Warn("daily job not run", zap.Error(err))
		}
	}
}
