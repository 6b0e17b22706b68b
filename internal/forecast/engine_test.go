package forecast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rgehrsitz/nestegg/internal/account"
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/rgehrsitz/nestegg/internal/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// baseConfig is a household with a salary paid into Cash, zero inflation and
// no market movement unless a test adds asset classes
func baseConfig(end domain.Month) *domain.Configuration {
	cfg := &domain.Configuration{
		Profile:  domain.Profile{BirthMonth: domain.NewMonth(1970, time.January)},
		Forecast: domain.ForecastSettings{EndMonth: end},
		Buckets: []domain.BucketConfig{
			{Name: "Cash", Type: domain.BucketCash, CanGoNegative: true},
			{Name: "Brokerage", Type: domain.BucketTaxable, Holdings: []domain.HoldingConfig{{AssetClass: "Stocks", Weight: d(1)}}},
			{Name: "401k", Type: domain.BucketTaxDeferred},
			{Name: "Roth", Type: domain.BucketTaxFree},
		},
		Salary: &domain.SalaryConfig{
			AnnualGross: 120000,
			Allocations: []domain.Allocation{{Bucket: "Cash", Percent: d(1)}},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func baseHistory() *domain.BalanceHistory {
	return &domain.BalanceHistory{
		Columns: []string{"Cash", "Brokerage", "401k", "Roth"},
		Rows: []domain.BalanceRow{
			{Month: domain.NewMonth(2029, time.November), Balances: map[string]int64{"Cash": 1, "Brokerage": 1, "401k": 1, "Roth": 1}},
			{Month: domain.NewMonth(2029, time.December), Balances: map[string]int64{"Cash": 50000, "Brokerage": 200000, "401k": 500000, "Roth": 0}},
		},
	}
}

func run(t *testing.T, cfg *domain.Configuration, seed int64) (*Engine, *Result) {
	t.Helper()
	e, err := NewTrial(cfg, baseHistory(), seed, nil)
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	return e, res
}

func balanceOf(t *testing.T, e *Engine, name string) int64 {
	t.Helper()
	b, ok := e.Set().Get(name)
	require.True(t, ok, name)
	return b.Balance()
}

func TestPipeline_Order(t *testing.T) {
	var names []string
	for _, s := range Pipeline {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"periodic payment", "premiums", "rules", "policy transactions", "market gains", "refills",
		"tax drip", "liquidation", "tax log", "quarterly estimate", "year end", "snapshot",
	}, names)
}

func TestEngine_SalaryYearIsWithheldAndSettled(t *testing.T) {
	e, res := run(t, baseConfig(domain.NewMonth(2030, time.December)), 1)

	require.Len(t, res.Rows, 12)
	require.Len(t, res.Taxes, 1)
	rec := res.Taxes[0]
	assert.Equal(t, 2030, rec.Year)
	assert.Equal(t, int64(120000), rec.AGI)
	// 92300 taxable: 2200 + 67450*.12 + 2850*.22
	assert.Equal(t, int64(10921), rec.TotalTax)

	assert.Equal(t, int64(0), balanceOf(t, e, "Tax Collection"))
	assert.Equal(t, int64(50000+120000-10921), balanceOf(t, e, "Cash"))
	assert.Equal(t, int64(10921/12), e.Drip())

	mid := res.Rows[9]
	assert.Equal(t, domain.NewMonth(2030, time.October), mid.Month)
	tcIndex := len(res.BucketNames) - 1
	assert.Equal(t, "Tax Collection", res.BucketNames[tcIndex])
	assert.Positive(t, mid.Balances[tcIndex], "quarterly estimate should start the drip")
}

func TestEngine_TerminalMonthClosesPartialYear(t *testing.T) {
	_, res := run(t, baseConfig(domain.NewMonth(2030, time.June)), 1)

	require.Len(t, res.Rows, 6)
	require.Len(t, res.Taxes, 1)
	// 60000 salary, 32300 taxable: 2200 + 10300*.12
	assert.Equal(t, int64(3436), res.Taxes[0].TotalTax)
}

func TestEngine_NetWorthMatchesBalances(t *testing.T) {
	_, res := run(t, baseConfig(domain.NewMonth(2031, time.December)), 3)
	for _, row := range res.Rows {
		var sum int64
		for _, b := range row.Balances {
			sum += b
		}
		assert.Equal(t, sum, row.NetWorth, row.Month.String())
	}
	years := res.YearEndNetWorth()
	assert.Len(t, years, 2)
	assert.Equal(t, res.Taxes[0].TotalTax+res.Taxes[1].TotalTax, res.LifetimeTax())
}

func TestEngine_PremiumsUseLaggedMAGI(t *testing.T) {
	cfg := baseConfig(domain.NewMonth(2032, time.December))
	cfg.Premiums.IRMAA = &domain.PremiumSchedule{
		Start:       domain.NewMonth(2030, time.January),
		BaseMonthly: 100,
		Brackets:    []domain.PremiumBracket{{MinMAGI: 0, Monthly: 0}, {MinMAGI: 200000, Monthly: 70}},
	}
	cfg.MAGIHistory = map[int]int64{2028: 250000, 2029: 150000}
	cfg.ApplyDefaults()

	_, res := run(t, cfg, 1)
	require.Len(t, res.Taxes, 3)
	assert.Equal(t, int64(12*170), res.Taxes[0].Premiums)
	assert.Equal(t, int64(12*100), res.Taxes[1].Premiums)
	// 2032 looks back to the computed 2030 AGI
	assert.Equal(t, int64(12*100), res.Taxes[2].Premiums)
	assert.Equal(t, int64(10921), res.Taxes[2].TotalTax, "premiums are not part of income tax")
}

func TestEngine_MissingMAGIAbortsTrial(t *testing.T) {
	cfg := baseConfig(domain.NewMonth(2030, time.December))
	cfg.Premiums.Marketplace = &domain.PremiumSchedule{Start: domain.NewMonth(2030, time.March), BaseMonthly: 500}
	cfg.ApplyDefaults()

	e, err := NewTrial(cfg, baseHistory(), 1, nil)
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, tax.ErrMissingMAGI))
	assert.Contains(t, err.Error(), "2030-03")
	assert.Nil(t, res)
}

func TestEngine_RothConversionFillsHeadroom(t *testing.T) {
	cfg := baseConfig(domain.NewMonth(2030, time.December))
	cfg.Salary = nil
	maxRate := d(0.12)
	cfg.RothConversion = &domain.RothConversionConfig{
		Source: "401k",
		Target: "Roth",
		Phases: []domain.RothPhase{{CutoffAge: 100, MaxRate: maxRate}},
	}

	e, res := run(t, cfg, 1)
	require.Len(t, res.Taxes, 1)
	rec := res.Taxes[0]

	// Everything up to the 22% bracket threshold converts
	assert.Equal(t, int64(89450), rec.RothConversions)
	assert.Equal(t, int64(89450), balanceOf(t, e, "Roth"))
	assert.Equal(t, int64(500000-89450), balanceOf(t, e, "401k"))
	assert.True(t, decimal.NewFromInt(rec.TotalTax).LessThanOrEqual(maxRate.Mul(decimal.NewFromInt(rec.RothConversions))))
	assert.Equal(t, rec.AGI, rec.RothConversions)
}

func TestEngine_RothConversionPhaseCap(t *testing.T) {
	cfg := baseConfig(domain.NewMonth(2030, time.December))
	cfg.RothConversion = &domain.RothConversionConfig{
		Source: "401k",
		Target: "Roth",
		Phases: []domain.RothPhase{
			{CutoffAge: 55, MaxRate: d(0.37), MaxAmount: 1},
			{CutoffAge: 75, MaxRate: d(0.22), MaxAmount: 25000},
		},
	}
	_, res := run(t, cfg, 1)
	assert.Equal(t, int64(25000), res.Taxes[0].RothConversions)
}

func TestEngine_RMDObservesYearEnd(t *testing.T) {
	cfg := baseConfig(domain.NewMonth(2045, time.December))
	cfg.Salary = nil
	cfg.RMD = &domain.RMDConfig{
		StartAge: 75,
		Month:    12,
		Targets:  []domain.Allocation{{Bucket: "Cash", Percent: d(1)}},
	}
	cfg.ApplyDefaults()

	e, res := run(t, cfg, 1)
	var withdrawals bool
	for _, rec := range res.Taxes {
		if rec.Year < 2045 {
			assert.Zero(t, rec.OrdinaryIncome, rec.Year)
			continue
		}
		withdrawals = rec.OrdinaryIncome > 0
	}
	assert.True(t, withdrawals)
	assert.Less(t, balanceOf(t, e, "401k"), int64(500000))
}

func TestEngine_LiquidationCoversShortfall(t *testing.T) {
	cfg := baseConfig(domain.NewMonth(2030, time.March))
	cfg.Salary = nil
	cfg.Recurring = []domain.RecurringEntry{{Start: domain.NewMonth(2030, time.January), Bucket: "Cash", Amount: -30000, Description: "Living"}}
	cfg.Liquidation = domain.LiquidationConfig{Threshold: 5000, Buckets: []string{"Brokerage"}}
	cfg.ApplyDefaults()

	e, res := run(t, cfg, 1)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, int64(5000), balanceOf(t, e, "Cash"))
	assert.Equal(t, int64(200000-(90000-50000+5000)), balanceOf(t, e, "Brokerage"))
	// default gain ratio is one half of what was sold
	assert.Equal(t, int64(45000/2), res.Taxes[0].CapitalGains)
}

func TestEngine_RefillsAreTaxed(t *testing.T) {
	cfg := baseConfig(domain.NewMonth(2030, time.December))
	cfg.Salary = nil
	cfg.Refill = domain.RefillConfig{Targets: []domain.RefillTarget{
		{Bucket: "Cash", Threshold: 10000, Amount: 20000, Sources: []string{"401k"}},
	}}
	cfg.Recurring = []domain.RecurringEntry{{Start: domain.NewMonth(2030, time.January), Bucket: "Cash", Amount: -5000}}

	_, res := run(t, cfg, 1)
	rec := res.Taxes[0]
	assert.Positive(t, rec.OrdinaryIncome)
	assert.Zero(t, rec.PenaltyTax, "refills never flag penalties")
	assert.Equal(t, rec.OrdinaryIncome%20000, int64(0))
}

type warnLogger struct{ warnings []string }

func (l *warnLogger) Debugf(string, ...any) {}
func (l *warnLogger) Infof(string, ...any)  {}
func (l *warnLogger) Warnf(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}
func (l *warnLogger) Errorf(string, ...any) {}

func TestEngine_UnpaidTaxIsLogged(t *testing.T) {
	cfg := baseConfig(domain.NewMonth(2030, time.December))
	cfg.Buckets[0].CanGoNegative = false
	cfg.Salary.Allocations = []domain.Allocation{{Bucket: "Brokerage", Percent: d(1)}}
	history := baseHistory()
	history.Rows[1].Balances["Cash"] = 0

	logger := &warnLogger{}
	e, err := NewTrial(cfg, history, 1, logger)
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(0), balanceOf(t, e, "Cash"))
	assert.Equal(t, int64(10921), res.Taxes[0].TotalTax)
	assert.Contains(t, logger.warnings, "2030: 10921 of 10921 tax left unpaid")
	// the first drip is set by the March estimate and withheld from April
	var dripWarning string
	for _, w := range logger.warnings {
		if strings.HasPrefix(w, "2030-04:") {
			dripWarning = w
		}
	}
	assert.Contains(t, dripWarning, `"Cash" covered 0 of the`)
}

func TestEngine_CancelledContextReturnsNoResult(t *testing.T) {
	e, err := NewTrial(baseConfig(domain.NewMonth(2030, time.December)), baseHistory(), 1, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestEngine_SeedIndependence(t *testing.T) {
	withMarket := func() *domain.Configuration {
		cfg := baseConfig(domain.NewMonth(2032, time.December))
		cfg.AssetClasses = []domain.AssetClass{{
			Name:          "Stocks",
			Average:       domain.ReturnDistribution{Mean: d(0.006), Std: d(0.04)},
			Low:           domain.ReturnDistribution{Mean: d(0.006), Std: d(0.04)},
			High:          domain.ReturnDistribution{Mean: d(0.006), Std: d(0.04)},
			InflationHigh: d(1),
		}}
		cfg.Inflation = domain.InflationConfig{Mean: d(0.03), Std: d(0.01)}
		return cfg
	}

	a, err := NewTrial(withMarket(), baseHistory(), 11, nil)
	require.NoError(t, err)
	b, err := NewTrial(withMarket(), baseHistory(), 12, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Set().Balances(), b.Set().Balances(), "initial balances do not depend on the seed")

	ra, err := a.Run(context.Background())
	require.NoError(t, err)
	rb, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, ra.Rows, rb.Rows)

	ruleFlows := func(flows []account.Flow) []account.Flow {
		var out []account.Flow
		for _, f := range flows {
			if f.Source == "Salary" {
				out = append(out, f)
			}
		}
		return out
	}
	assert.Equal(t, ruleFlows(ra.Flows), ruleFlows(rb.Flows))

	again, err := NewTrial(withMarket(), baseHistory(), 11, nil)
	require.NoError(t, err)
	rc, err := again.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ra.Rows, rc.Rows, "same seed reproduces the trial")
}
