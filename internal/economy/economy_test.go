package economy

import (
	"testing"
	"time"

	"github.com/rgehrsitz/nestegg/internal/account"
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestNewInflation_Modifiers(t *testing.T) {
	inf := NewInflation(2030, []decimal.Decimal{d(0.02), d(0.03)}, []domain.InflationProfile{
		{Name: "healthcare", Sensitivity: d(2)},
	})

	assert.True(t, inf.Modifier(2029).Equal(d(1)), "years before the path are unit")
	assert.True(t, inf.Modifier(2030).Equal(d(1.02)))
	assert.True(t, inf.Modifier(2031).Equal(d(1.0506)))
	assert.True(t, inf.Modifier(2040).Equal(d(1.0506)), "years after the path hold the last modifier")
	assert.True(t, inf.Rate(2040).IsZero())

	assert.True(t, inf.CategoryModifier("healthcare", 2030).Equal(d(1.04)))
	assert.True(t, inf.CategoryModifier("", 2031).Equal(d(1)))
	assert.True(t, inf.CategoryModifier("unknown", 2031).Equal(d(1.0506)))
}

func TestInflation_Adjust(t *testing.T) {
	inf := NewInflation(2030, []decimal.Decimal{d(0.10), d(0.10)}, nil)

	assert.Equal(t, int64(1100), inf.Adjust(1000, General, 2030, 2031))
	assert.Equal(t, int64(1000), inf.Adjust(1000, "", 2030, 2031))
	assert.Equal(t, int64(1000), inf.Adjust(1000, General, 2031, 2031))
}

func TestInflationGenerator_NonNegativeAndDeterministic(t *testing.T) {
	g := InflationGenerator{First: 2030, Last: 2079, Mean: d(0.01), Std: d(0.05)}

	a := g.Generate(NewRand(99))
	b := g.Generate(NewRand(99))

	for y := 2030; y <= 2079; y++ {
		assert.False(t, a.Rate(y).IsNegative(), "year %d", y)
		assert.True(t, a.Rate(y).Equal(b.Rate(y)), "same seed must reproduce year %d", y)
	}
	assert.Equal(t, 2030, a.FirstYear())
	assert.Equal(t, 2079, a.LastYear())
}

func TestMarketGains_ScenarioSelection(t *testing.T) {
	stocks := domain.AssetClass{
		Name:          "Stocks",
		InflationLow:  d(0.02),
		InflationHigh: d(0.05),
		Low:           domain.ReturnDistribution{Mean: d(0.01)},
		Average:       domain.ReturnDistribution{Mean: d(0.02)},
		High:          domain.ReturnDistribution{Mean: d(0.03)},
	}
	inf := NewInflation(2030, []decimal.Decimal{d(0.01), d(0.03), d(0.08)}, nil)
	mg := NewMarketGains([]domain.AssetClass{stocks}, inf)
	rng := NewRand(1)

	assert.True(t, mg.Sample(domain.NewMonth(2030, time.March), rng)["Stocks"].Equal(d(0.01)))
	assert.True(t, mg.Sample(domain.NewMonth(2031, time.March), rng)["Stocks"].Equal(d(0.02)))
	assert.True(t, mg.Sample(domain.NewMonth(2032, time.March), rng)["Stocks"].Equal(d(0.03)))
}

func TestMarketGains_ApplyToSet(t *testing.T) {
	month := domain.NewMonth(2030, time.January)
	classes := []domain.AssetClass{
		{Name: "Stocks", Average: domain.ReturnDistribution{Mean: d(0.01)}, InflationHigh: d(1)},
		{Name: "Bonds", Average: domain.ReturnDistribution{Mean: d(0.005)}, InflationHigh: d(1)},
	}
	mg := NewMarketGains(classes, Flat(2030, 2030))

	set := account.NewSet("Cash", "Tax Collection", account.NewFlowTracker(), nil)
	require.NoError(t, set.Add(account.NewBucket(domain.BucketConfig{
		Name: "Brokerage",
		Holdings: []domain.HoldingConfig{
			{AssetClass: "Stocks", Weight: d(0.5)},
			{AssetClass: "Bonds", Weight: d(0.5)},
		},
	}, 20000, nil)))
	require.NoError(t, set.Add(account.NewBucket(domain.BucketConfig{Name: "Cash"}, 5000, nil)))

	rates := mg.Apply(set, month, NewRand(3))

	assert.Len(t, rates, 2)
	assert.Equal(t, int64(20150), set.Balances()[0])
	assert.Equal(t, int64(5000), set.Balances()[1], "unclassified holdings earn nothing")
	assert.Equal(t, 2, set.Tracker().Len())
}
