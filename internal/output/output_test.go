package output

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rgehrsitz/nestegg/internal/account"
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/rgehrsitz/nestegg/internal/forecast"
	"github.com/rgehrsitz/nestegg/internal/montecarlo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestResult() *forecast.Result {
	nov := domain.NewMonth(2030, time.November)
	dec := domain.NewMonth(2030, time.December)
	return &forecast.Result{
		Seed:        42,
		BucketNames: []string{"Cash", "Brokerage"},
		Rows: []forecast.BalanceRow{
			{Month: nov, Balances: []int64{1000, 5000}, NetWorth: 6000},
			{Month: dec, Balances: []int64{-250, 5100}, NetWorth: 4850},
		},
		Taxes: []forecast.TaxRecord{{
			Year:           2030,
			AGI:            90000,
			OrdinaryIncome: 62300,
			TotalTax:       7200,
			Premiums:       1200,
			EffectiveRate:  decimal.NewFromFloat(0.08),
			WithdrawalRate: decimal.NewFromFloat(0.0412),
		}},
		Flows: []account.Flow{
			{Month: nov, Source: "Salary", Target: "Cash", Amount: 8000, Type: account.FlowDeposit},
			{Month: dec, Source: "Brokerage", Target: "Cash", Amount: 2500, Type: account.FlowRefill},
		},
	}
}

func TestBalancesCSV(t *testing.T) {
	data, err := BalancesCSV{}.Format(buildTestResult())
	require.NoError(t, err)

	want := "Date,Cash,Brokerage,Net Worth\n" +
		"2030-11,1000,5000,6000\n" +
		"2030-12,-250,5100,4850\n"
	assert.Equal(t, want, string(data))
}

func TestTaxesCSV(t *testing.T) {
	data, err := TaxesCSV{}.Format(buildTestResult())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Year,AGI,Ordinary Income,"))
	assert.Equal(t, "2030,90000,62300,0,0,0,0,0,0,7200,1200,0.0800,0.0412", lines[1])
}

func TestFlowsCSV(t *testing.T) {
	data, err := FlowsCSV{}.Format(buildTestResult())
	require.NoError(t, err)

	want := "Date,Source,Target,Amount,Type\n" +
		"2030-11,Salary,Cash,8000,deposit\n" +
		"2030-12,Brokerage,Cash,2500,refill\n"
	assert.Equal(t, want, string(data))
}

func TestCSVFormatters_Names(t *testing.T) {
	var names []string
	for _, f := range CSVFormatters() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"balances", "taxes", "flows"}, names)
}

func TestWriteFormatted(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	path, err := WriteFormatted(BalancesCSV{}, buildTestResult(), dir, "seed42_", "csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "seed42_balances.csv"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "Date,Cash,Brokerage,Net Worth\n"))
}

type formatterFunc struct {
	id string
	f  func(res *forecast.Result) ([]byte, error)
}

func (f formatterFunc) Name() string { return f.id }

func (f formatterFunc) Format(res *forecast.Result) ([]byte, error) { return f.f(res) }

func TestWriteFormatted_FormatterError(t *testing.T) {
	formatter := formatterFunc{
		id: "broken",
		f: func(*forecast.Result) ([]byte, error) {
			return nil, errors.New("formatter error")
		},
	}

	path, err := WriteFormatted(formatter, buildTestResult(), t.TempDir(), "", "csv")
	assert.ErrorContains(t, err, "failed to format broken")
	assert.Empty(t, path)
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "$0.00"},
		{1234567, "$1,234,567.00"},
		{-2500, "-$2,500.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCurrency(tt.amount))
	}
}

func TestFormatPercentage(t *testing.T) {
	assert.Equal(t, "12.50%", FormatPercentage(decimal.NewFromFloat(0.125)))
	assert.Equal(t, "0.00%", FormatPercentage(decimal.Zero))
}

func TestForecastReport(t *testing.T) {
	report := ForecastReport(buildTestResult())

	assert.Contains(t, report, "FORECAST (seed 42)")
	assert.Contains(t, report, "2030-12")
	assert.NotContains(t, report, "2030-11")
	assert.Contains(t, report, "$4,850.00")
	assert.Contains(t, report, "-$250.00")
	assert.Contains(t, report, "Lifetime tax: $7,200.00")
	assert.Contains(t, report, "4.12%")
}

func TestSummaryReport(t *testing.T) {
	s := montecarlo.Summary{
		Trials: 10,
		Failed: 1,
		Years: []montecarlo.YearSummary{{
			Year:                2030,
			NetWorth:            map[string]int64{"10th": 100, "50th": 550000, "90th": 910000},
			PositiveProbability: decimal.NewFromFloat(0.9),
		}},
		FinalNetWorth:     map[string]int64{"10th": 100, "50th": 550000, "90th": 910000},
		MedianLifetimeTax: 55000,
	}

	report := SummaryReport(s)
	assert.Contains(t, report, "MONTE CARLO SUMMARY (10 trials, 1 failed)")
	assert.Contains(t, report, "85th")
	assert.Contains(t, report, "90.00%")
	assert.Contains(t, report, "Median final net worth: $550,000.00")
	assert.Contains(t, report, "Median lifetime tax:    $55,000.00")
}

func TestSummaryReport_NoTrials(t *testing.T) {
	report := SummaryReport(montecarlo.Summary{})
	assert.Contains(t, report, "0 trials")
	assert.NotContains(t, report, "Median")
}
