package store

import (
	"context"

	"github.com/rgehrsitz/nestegg/internal/forecast"
)

// Recorder persists finished trials. Implementations must be safe for
// concurrent use; the Monte Carlo driver calls them from worker goroutines.
type Recorder interface {
	RecordTrial(ctx context.Context, trial int, res *forecast.Result) error
	Close() error
}

// TrialRow is one stored trial
type TrialRow struct {
	Trial         int
	Seed          int64
	Months        int
	FinalNetWorth int64
	LifetimeTax   int64
}

// TaxYearRow is one stored tax year of a trial
type TaxYearRow struct {
	Trial           int
	Year            int
	AGI             int64
	TotalTax        int64
	Premiums        int64
	RothConversions int64
	NetWorth        int64
}

// NoopRecorder is used when no database is configured
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordTrial(context.Context, int, *forecast.Result) error { return nil }
func (n *NoopRecorder) Close() error                                             { return nil }
