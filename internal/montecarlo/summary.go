package montecarlo

import (
	"slices"
	"sort"

	"github.com/rgehrsitz/nestegg/internal/forecast"
	"github.com/shopspring/decimal"
)

// Percentiles are the reported cut points, keyed the way reports label them
var Percentiles = []struct {
	Label string
	Value float64
}{
	{"10th", 0.10},
	{"15th", 0.15},
	{"25th", 0.25},
	{"50th", 0.50},
	{"75th", 0.75},
	{"85th", 0.85},
	{"90th", 0.90},
}

// YearSummary is the distribution of year-end net worth across trials
type YearSummary struct {
	Year     int
	NetWorth map[string]int64
	// PositiveProbability is the share of trials ending the year with positive net worth
	PositiveProbability decimal.Decimal
}

// Summary aggregates a batch of trials
type Summary struct {
	Trials            int
	Failed            int
	Years             []YearSummary
	FinalNetWorth     map[string]int64
	MedianLifetimeTax int64
}

// Summarize reduces trial results to percentile bands per year
func Summarize(results []*forecast.Result, failed int) Summary {
	s := Summary{Trials: len(results), Failed: failed}
	if len(results) == 0 {
		return s
	}

	byYear := make(map[int][]int64)
	var finals, taxes []int64
	for _, res := range results {
		for year, nw := range res.YearEndNetWorth() {
			byYear[year] = append(byYear[year], nw)
		}
		if row, ok := res.Final(); ok {
			finals = append(finals, row.NetWorth)
		}
		taxes = append(taxes, res.LifetimeTax())
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	for _, y := range years {
		values := byYear[y]
		var positive int64
		for _, v := range values {
			if v > 0 {
				positive++
			}
		}
		s.Years = append(s.Years, YearSummary{
			Year:                y,
			NetWorth:            calculatePercentiles(values),
			PositiveProbability: decimal.NewFromInt(positive).Div(decimal.NewFromInt(int64(len(values)))).Round(4),
		})
	}
	s.FinalNetWorth = calculatePercentiles(finals)
	s.MedianLifetimeTax = calculatePercentiles(taxes)["50th"]
	return s
}

func calculatePercentiles(values []int64) map[string]int64 {
	out := make(map[string]int64, len(Percentiles))
	if len(values) == 0 {
		for _, p := range Percentiles {
			out[p.Label] = 0
		}
		return out
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	for _, p := range Percentiles {
		out[p.Label] = getPercentile(sorted, p.Value)
	}
	return out
}

// getPercentile interpolates linearly between the two nearest ranks of sorted values
func getPercentile(values []int64, percentile float64) int64 {
	index := percentile * float64(len(values)-1)
	if index == float64(int(index)) {
		return values[int(index)]
	}

	lower := values[int(index)]
	upper := values[int(index)+1]
	fraction := decimal.NewFromFloat(index - float64(int(index)))

	return decimal.NewFromInt(upper - lower).Mul(fraction).Round(0).IntPart() + lower
}

func sortFailures(f []TrialFailure) {
	sort.Slice(f, func(i, j int) bool { return f[i].Trial < f[j].Trial })
}
