package forecast

import (
	"errors"
	"fmt"

	"github.com/rgehrsitz/nestegg/internal/account"
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/rgehrsitz/nestegg/internal/economy"
	"github.com/rgehrsitz/nestegg/internal/logging"
	"github.com/rgehrsitz/nestegg/internal/policy"
	"github.com/rgehrsitz/nestegg/internal/tax"
	"github.com/rgehrsitz/nestegg/internal/transaction"
)

var (
	// ErrUnconfiguredBucket means a historical balance column has no bucket configuration
	ErrUnconfiguredBucket = errors.New("historical column has no bucket configuration")
	// ErrEmptyHistory means there is no starting balance row
	ErrEmptyHistory = errors.New("balance history has no rows")
	// ErrEmptyHorizon means the end month is not after the last historical month
	ErrEmptyHorizon = errors.New("forecast horizon is empty")
)

// NewTrial builds a fresh engine for one trial. cfg must already have its
// defaults applied and is only read, so trials may share it.
func NewTrial(cfg *domain.Configuration, history *domain.BalanceHistory, seed int64, logger logging.Logger) (*Engine, error) {
	logger = logging.OrNop(logger)

	last, ok := history.Last()
	if !ok {
		return nil, ErrEmptyHistory
	}
	start, end := last.Month.Add(1), cfg.Forecast.EndMonth
	if end < start {
		return nil, fmt.Errorf("%w: last history month %s, end month %s", ErrEmptyHorizon, last.Month, end)
	}
	months := make([]domain.Month, 0, int(end-start)+1)
	for m := start; m <= end; m = m.Add(1) {
		months = append(months, m)
	}

	set, err := newBucketSet(cfg, history.Columns, last, logger)
	if err != nil {
		return nil, err
	}

	rng := economy.NewRand(seed)
	inflation := economy.NewInflationGenerator(cfg.Inflation, start.Year(), end.Year()).Generate(rng)
	env := transaction.Env{
		Inflation:         inflation,
		Eligibility:       cfg.Profile.EligibilityMonth(),
		GainEstimateRatio: cfg.Forecast.GainRatio(),
	}

	e := &Engine{
		cfg:             cfg,
		seed:            seed,
		months:          months,
		set:             set,
		rng:             rng,
		inflation:       inflation,
		market:          economy.NewMarketGains(cfg.AssetClasses, inflation),
		calc:            tax.NewCalculator(cfg.Tax, inflation),
		policy:          policy.NewRefillPolicy(cfg.Refill, cfg.Liquidation, env),
		env:             env,
		logger:          logger,
		drip:            cfg.Forecast.InitialAnnualTaxEstimate / 12,
		magi:            make(map[int]int64),
		startInvestable: set.Investable(),
	}
	e.buildTransactions()
	return e, nil
}

// newBucketSet seeds buckets in configuration order from the last historical
// row. Buckets missing from history start empty; a column with no
// configuration is an error.
func newBucketSet(cfg *domain.Configuration, columns []string, last domain.BalanceRow, logger logging.Logger) (*account.Set, error) {
	for _, col := range columns {
		if _, ok := cfg.Bucket(col); !ok {
			return nil, fmt.Errorf("%q: %w", col, ErrUnconfiguredBucket)
		}
	}

	set := account.NewSet(cfg.Forecast.CashBucket, cfg.Forecast.TaxCollectionBucket, account.NewFlowTracker(), logger)
	for _, bc := range cfg.Buckets {
		if err := set.Add(account.NewBucket(bc, last.Balances[bc.Name], nil)); err != nil {
			return nil, fmt.Errorf("bucket %q: %w", bc.Name, err)
		}
	}
	if _, err := set.Require(cfg.Forecast.CashBucket); err != nil {
		return nil, fmt.Errorf("cash bucket: %w", err)
	}
	if set.TaxCollection() == nil {
		tc := domain.BucketConfig{Name: cfg.Forecast.TaxCollectionBucket, Type: domain.BucketCash}
		if err := set.Add(account.NewBucket(tc, 0, nil)); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (e *Engine) buildTransactions() {
	cfg := e.cfg

	if cfg.SEPP != nil {
		e.sepp = transaction.NewSEPP(*cfg.SEPP)
	}
	for _, p := range []struct {
		label    string
		schedule *domain.PremiumSchedule
	}{
		{"IRMAA", cfg.Premiums.IRMAA},
		{"Marketplace Premium", cfg.Premiums.Marketplace},
	} {
		if p.schedule != nil {
			e.premiums = append(e.premiums, transaction.NewPremium(p.label, *p.schedule, cfg.Profile.Joint, e.env))
		}
	}

	if len(cfg.Fixed) > 0 {
		e.rules = append(e.rules, transaction.NewFixed(cfg.Fixed, e.env))
	}
	if len(cfg.Recurring) > 0 {
		e.rules = append(e.rules, transaction.NewRecurring(cfg.Recurring, e.env))
	}

	if cfg.Salary != nil {
		e.scheduled = append(e.scheduled, transaction.NewSalary(*cfg.Salary))
	}
	if cfg.Unemployment != nil {
		e.scheduled = append(e.scheduled, transaction.NewUnemployment(*cfg.Unemployment))
	}
	if cfg.SocialSecurity != nil {
		e.scheduled = append(e.scheduled, transaction.NewSocialSecurity(*cfg.SocialSecurity, e.env))
	}
	if cfg.RMD != nil {
		e.rmd = transaction.NewRMD(*cfg.RMD, cfg.Profile)
		e.scheduled = append(e.scheduled, e.rmd)
	}
	if cfg.Property != nil {
		e.scheduled = append(e.scheduled, transaction.NewProperty(*cfg.Property, e.env))
	}
	if cfg.Rent != nil {
		e.scheduled = append(e.scheduled, transaction.NewRent(*cfg.Rent, e.env))
	}
	if cfg.GainRealization != nil {
		e.scheduled = append(e.scheduled, transaction.NewGainRealization(*cfg.GainRealization))
	}
	if cfg.RothConversion != nil {
		e.conversion = transaction.NewRothConversion(*cfg.RothConversion, cfg.Profile)
	}
}
