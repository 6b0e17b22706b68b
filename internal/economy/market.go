package economy

import (
	"math/rand"
	"sort"

	"github.com/rgehrsitz/nestegg/internal/account"
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/shopspring/decimal"
)

// MarketGains samples one monthly return per asset class and applies it to
// every holding of that class
type MarketGains struct {
	classes   []domain.AssetClass
	inflation *Inflation
}

// NewMarketGains sorts classes by name so a seed always maps to the same draws
func NewMarketGains(classes []domain.AssetClass, inflation *Inflation) *MarketGains {
	sorted := make([]domain.AssetClass, len(classes))
	copy(sorted, classes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &MarketGains{classes: sorted, inflation: inflation}
}

// Sample draws this month's return for every asset class
func (mg *MarketGains) Sample(m domain.Month, rng *rand.Rand) map[string]decimal.Decimal {
	rate := mg.inflation.Rate(m.Year())
	out := make(map[string]decimal.Decimal, len(mg.classes))
	for _, ac := range mg.classes {
		dist := ac.Distribution(ac.ScenarioFor(rate))
		out[ac.Name] = normal(rng, dist.Mean, dist.Std)
	}
	return out
}

// Apply samples and applies returns to every bucket in the set. The sampled
// rates are returned for reporting.
func (mg *MarketGains) Apply(set *account.Set, m domain.Month, rng *rand.Rand) map[string]decimal.Decimal {
	rates := mg.Sample(m, rng)
	for _, b := range set.Buckets() {
		b.ApplyReturns(rates, m)
	}
	return rates
}
