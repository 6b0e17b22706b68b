package economy

import (
	"math/rand"

	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/shopspring/decimal"
)

// General names the unscaled inflation series for category lookups
const General = "general"

// NewRand returns the random source owned by a single trial
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// normal draws from N(mean, std)
func normal(rng *rand.Rand, mean, std decimal.Decimal) decimal.Decimal {
	return mean.Add(std.Mul(decimal.NewFromFloat(rng.NormFloat64())))
}

// YearInflation is one year of a series. Modifier is the cumulative product of
// (1+rate) through and including this year.
type YearInflation struct {
	Rate     decimal.Decimal
	Modifier decimal.Decimal
}

type series map[int]YearInflation

func buildSeries(first int, rates []decimal.Decimal) series {
	s := make(series, len(rates))
	modifier := decimal.NewFromInt(1)
	for i, r := range rates {
		modifier = modifier.Mul(decimal.NewFromInt(1).Add(r))
		s[first+i] = YearInflation{Rate: r, Modifier: modifier}
	}
	return s
}

// Inflation is the per-year inflation path of one trial
type Inflation struct {
	first, last int
	general     series
	categories  map[string]series
}

// NewInflation builds a path from explicit annual rates starting at first.
// profiles scale the general rate per category.
func NewInflation(first int, rates []decimal.Decimal, profiles []domain.InflationProfile) *Inflation {
	inf := &Inflation{
		first:      first,
		last:       first + len(rates) - 1,
		general:    buildSeries(first, rates),
		categories: make(map[string]series, len(profiles)),
	}
	for _, p := range profiles {
		scaled := make([]decimal.Decimal, len(rates))
		for i, r := range rates {
			scaled[i] = decimal.Max(decimal.Zero, r.Mul(p.Sensitivity))
		}
		inf.categories[p.Name] = buildSeries(first, scaled)
	}
	return inf
}

// Flat is a zero-inflation path
func Flat(first, last int) *Inflation {
	return NewInflation(first, make([]decimal.Decimal, last-first+1), nil)
}

func (inf *Inflation) lookup(s series, year int) YearInflation {
	switch {
	case year < inf.first || len(s) == 0:
		return YearInflation{Rate: decimal.Zero, Modifier: decimal.NewFromInt(1)}
	case year > inf.last:
		y := s[inf.last]
		y.Rate = decimal.Zero
		return y
	default:
		return s[year]
	}
}

func (inf *Inflation) seriesFor(category string) (series, bool) {
	if category == "" {
		return nil, false
	}
	if s, ok := inf.categories[category]; ok {
		return s, true
	}
	return inf.general, true
}

// Rate returns the general inflation rate for year; years outside the path are zero
func (inf *Inflation) Rate(year int) decimal.Decimal {
	return inf.lookup(inf.general, year).Rate
}

// Modifier returns the general cumulative modifier for year
func (inf *Inflation) Modifier(year int) decimal.Decimal {
	return inf.lookup(inf.general, year).Modifier
}

// CategoryModifier returns the modifier of a named profile. The empty category
// never inflates; unknown names fall back to general inflation.
func (inf *Inflation) CategoryModifier(category string, year int) decimal.Decimal {
	s, ok := inf.seriesFor(category)
	if !ok {
		return decimal.NewFromInt(1)
	}
	return inf.lookup(s, year).Modifier
}

// Factor is the growth of a category between two years
func (inf *Inflation) Factor(category string, fromYear, toYear int) decimal.Decimal {
	from := inf.CategoryModifier(category, fromYear)
	if from.IsZero() {
		return decimal.NewFromInt(1)
	}
	return inf.CategoryModifier(category, toYear).Div(from)
}

// Adjust scales amount from fromYear to toYear dollars
func (inf *Inflation) Adjust(amount int64, category string, fromYear, toYear int) int64 {
	if category == "" || fromYear == toYear {
		return amount
	}
	return decimal.NewFromInt(amount).Mul(inf.Factor(category, fromYear, toYear)).Round(0).IntPart()
}

// FirstYear and LastYear bound the generated path
func (inf *Inflation) FirstYear() int { return inf.first }
func (inf *Inflation) LastYear() int  { return inf.last }

// InflationGenerator samples annual inflation for the years First..Last
type InflationGenerator struct {
	First    int
	Last     int
	Mean     decimal.Decimal
	Std      decimal.Decimal
	Profiles []domain.InflationProfile
}

// NewInflationGenerator builds a generator from configuration
func NewInflationGenerator(cfg domain.InflationConfig, first, last int) InflationGenerator {
	return InflationGenerator{First: first, Last: last, Mean: cfg.Mean, Std: cfg.Std, Profiles: cfg.Profiles}
}

// Generate draws max(0, N(mean, std)) for each year in order
func (g InflationGenerator) Generate(rng *rand.Rand) *Inflation {
	n := g.Last - g.First + 1
	if n < 0 {
		n = 0
	}
	rates := make([]decimal.Decimal, n)
	for i := range rates {
		rates[i] = decimal.Max(decimal.Zero, normal(rng, g.Mean, g.Std))
	}
	return NewInflation(g.First, rates, g.Profiles)
}
