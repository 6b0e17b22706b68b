package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/rgehrsitz/nestegg/internal/forecast"
	"github.com/rgehrsitz/nestegg/internal/logging"
	"github.com/rgehrsitz/nestegg/internal/store"
	"golang.org/x/sync/errgroup"
)

// Driver runs independent forecast trials in parallel. Trial i uses seed
// BaseSeed+i, so a run is reproducible regardless of worker count.
type Driver struct {
	Trials   int
	Workers  int
	BaseSeed int64
	// ContinueOnError records a failed trial and keeps going instead of
	// aborting the batch
	ContinueOnError bool
	Recorder        store.Recorder
	Logger          logging.Logger
}

// TrialFailure is a trial excluded from the summary
type TrialFailure struct {
	Trial int
	Seed  int64
	Err   error
}

// Outcome holds the successful results in trial order plus any failures
type Outcome struct {
	Results  []*forecast.Result
	Failures []TrialFailure
	Summary  Summary
}

// Run executes every trial against cfg and history. Cancelling ctx abandons
// trials not yet finished; their partial output is discarded.
func (d *Driver) Run(ctx context.Context, cfg *domain.Configuration, history *domain.BalanceHistory) (*Outcome, error) {
	if d.Trials <= 0 {
		return nil, fmt.Errorf("trials must be positive, got %d", d.Trials)
	}
	workers := d.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := logging.OrNop(d.Logger)
	recorder := d.Recorder
	if recorder == nil {
		recorder = store.NewNoopRecorder()
	}

	results := make([]*forecast.Result, d.Trials)
	var (
		mu       sync.Mutex
		failures []TrialFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < d.Trials; i++ {
		if gctx.Err() != nil {
			break
		}
		seed := d.BaseSeed + int64(i)
		g.Go(func() error {
			res, err := d.runTrial(gctx, cfg, history, i, seed, logger)
			if err == nil {
				err = recorder.RecordTrial(gctx, i, res)
			}
			if err != nil {
				if d.ContinueOnError && gctx.Err() == nil {
					logger.Warnf("trial %d (seed %d) failed: %v", i, seed, err)
					mu.Lock()
					failures = append(failures, TrialFailure{Trial: i, Seed: seed, Err: err})
					mu.Unlock()
					return nil
				}
				return fmt.Errorf("trial %d (seed %d): %w", i, seed, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Outcome{Failures: failures}
	for _, res := range results {
		if res != nil {
			out.Results = append(out.Results, res)
		}
	}
	sortFailures(out.Failures)
	out.Summary = Summarize(out.Results, len(out.Failures))
	logger.Infof("monte carlo finished: %d trials, %d failed", len(out.Results), len(out.Failures))
	return out, nil
}

func (d *Driver) runTrial(ctx context.Context, cfg *domain.Configuration, history *domain.BalanceHistory, trial int, seed int64, logger logging.Logger) (*forecast.Result, error) {
	if sl, ok := logger.(*logging.SlogLogger); ok {
		logger = sl.With(logging.KeyTrial, trial, logging.KeySeed, seed)
	}
	engine, err := forecast.NewTrial(cfg, history, seed, logger)
	if err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	return engine.Run(ctx)
}

// FirstFailure returns the earliest failed trial's error, if any
func (o *Outcome) FirstFailure() error {
	if len(o.Failures) == 0 {
		return nil
	}
	return o.Failures[0].Err
}

// Failed reports whether any failure wraps target
func (o *Outcome) Failed(target error) bool {
	for _, f := range o.Failures {
		if errors.Is(f.Err, target) {
			return true
		}
	}
	return false
}
