package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	cfg, err := NewInputParser().LoadFromFile("testdata/household.yaml")
	require.NoError(t, err)

	assert.Equal(t, domain.NewMonth(1972, time.April), cfg.Profile.BirthMonth)
	assert.True(t, cfg.Profile.Joint)
	assert.Equal(t, domain.NewMonth(2035, time.December), cfg.Forecast.EndMonth)
	assert.Equal(t, int64(18000), cfg.Forecast.InitialAnnualTaxEstimate)

	require.Len(t, cfg.Buckets, 5)
	assert.Equal(t, domain.BucketTaxDeferred, cfg.Buckets[2].Type)
	assert.Equal(t, domain.BucketTaxFree, cfg.Buckets[3].Type)
	require.NotNil(t, cfg.Buckets[1].CostBasisRatio)
	assert.True(t, cfg.Buckets[1].CostBasisRatio.Equal(decimal.NewFromFloat(0.6)))
	assert.True(t, cfg.Buckets[1].Holdings[0].Weight.Equal(decimal.NewFromFloat(0.7)))

	require.NotNil(t, cfg.Salary)
	assert.Equal(t, domain.NewMonth(2031, time.June), cfg.Salary.RetirementMonth)
	require.Len(t, cfg.RothConversion.Phases, 2)
	assert.Equal(t, int64(60000), cfg.RothConversion.Phases[0].MaxAmount)
	assert.Equal(t, int64(176500), cfg.MAGIHistory[2029])
	assert.Equal(t, "healthcare", cfg.Recurring[1].Inflation)
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := NewInputParser().LoadFromFile("testdata/household.yaml")
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultCashBucket, cfg.Forecast.CashBucket)
	assert.Equal(t, domain.DefaultTaxCollectionBucket, cfg.Forecast.TaxCollectionBucket)
	assert.Equal(t, domain.DefaultTaxTables(), cfg.Tax)
	assert.Equal(t, domain.DefaultPremiumLagYears, cfg.Premiums.IRMAA.LagYears)
	assert.Equal(t, "Cash", cfg.Premiums.IRMAA.Bucket)
	assert.Equal(t, domain.DefaultRMDStartAge, cfg.RMD.StartAge)
	assert.Equal(t, "Cash", cfg.SocialSecurity.Bucket)
	assert.Equal(t, "Cash", cfg.Property.PayFrom)
	require.Len(t, cfg.Liquidation.PropertyTargets, 1)
	assert.Equal(t, "Cash", cfg.Liquidation.PropertyTargets[0].Bucket)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := NewInputParser().LoadFromFile("testdata/nope.yaml")
	assert.ErrorContains(t, err, "failed to read file")
}

func TestParse_ExplicitZeroGainRatio(t *testing.T) {
	data, err := os.ReadFile("testdata/household.yaml")
	require.NoError(t, err)
	yamlText := strings.Replace(string(data), "initial_annual_tax_estimate: 18000",
		"initial_annual_tax_estimate: 18000\n  gain_estimate_ratio: 0", 1)

	cfg, err := NewInputParser().Parse([]byte(yamlText))
	require.NoError(t, err)
	require.NotNil(t, cfg.Forecast.GainEstimateRatio)
	assert.True(t, cfg.Forecast.GainRatio().IsZero())
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := NewInputParser().Parse([]byte("profile: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestParse_InvalidBucketType(t *testing.T) {
	_, err := NewInputParser().Parse([]byte(`
profile: {birth_month: 1970-01}
forecast: {end_month: 2040-12}
buckets:
  - {name: Cash, type: mattress}
`))
	assert.ErrorContains(t, err, "unknown bucket type")
}

func validConfig() *domain.Configuration {
	cfg := &domain.Configuration{
		Profile:      domain.Profile{BirthMonth: domain.NewMonth(1970, time.January)},
		Forecast:     domain.ForecastSettings{EndMonth: domain.NewMonth(2040, time.December)},
		AssetClasses: []domain.AssetClass{{Name: "Stocks"}},
		Buckets: []domain.BucketConfig{
			{Name: "Cash", Type: domain.BucketCash, CanGoNegative: true},
			{Name: "Brokerage", Type: domain.BucketTaxable, Holdings: []domain.HoldingConfig{{AssetClass: "Stocks", Weight: decimal.NewFromInt(1)}}},
			{Name: "401k", Type: domain.BucketTaxDeferred},
			{Name: "Roth", Type: domain.BucketTaxFree},
			{Name: "House", Type: domain.BucketProperty},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidateConfiguration(t *testing.T) {
	half := decimal.NewFromFloat(0.5)
	tests := []struct {
		name    string
		mutate  func(c *domain.Configuration)
		wantErr string
	}{
		{name: "valid", mutate: func(c *domain.Configuration) {}},
		{
			name:    "missing birth month",
			mutate:  func(c *domain.Configuration) { c.Profile.BirthMonth = 0 },
			wantErr: "birth month is required",
		},
		{
			name:    "missing end month",
			mutate:  func(c *domain.Configuration) { c.Forecast.EndMonth = 0 },
			wantErr: "end month is required",
		},
		{
			name:    "duplicate bucket",
			mutate:  func(c *domain.Configuration) { c.Buckets = append(c.Buckets, domain.BucketConfig{Name: "Cash"}) },
			wantErr: `bucket "Cash" is defined twice`,
		},
		{
			name: "gain ratio above one",
			mutate: func(c *domain.Configuration) {
				over := decimal.NewFromFloat(1.5)
				c.Forecast.GainEstimateRatio = &over
			},
			wantErr: "gain estimate ratio must be between 0 and 1",
		},
		{
			name: "explicit zero gain ratio",
			mutate: func(c *domain.Configuration) {
				zero := decimal.Zero
				c.Forecast.GainEstimateRatio = &zero
			},
		},
		{
			name:    "bucket without a type",
			mutate:  func(c *domain.Configuration) { c.Buckets = append(c.Buckets, domain.BucketConfig{Name: "Checking"}) },
			wantErr: `bucket "Checking" has no type`,
		},
		{
			name:    "cash bucket cannot go negative",
			mutate:  func(c *domain.Configuration) { c.Buckets[0].CanGoNegative = false },
			wantErr: `cash bucket "Cash" must set can_go_negative`,
		},
		{
			name:    "no cash bucket",
			mutate:  func(c *domain.Configuration) { c.Forecast.CashBucket = "Checking" },
			wantErr: `cash bucket "Checking" is not configured`,
		},
		{
			name: "weights do not sum to one",
			mutate: func(c *domain.Configuration) {
				c.Buckets[1].Holdings[0].Weight = half
			},
			wantErr: "holding weights sum to 0.5",
		},
		{
			name: "unknown asset class",
			mutate: func(c *domain.Configuration) {
				c.Buckets[1].Holdings[0].AssetClass = "Crypto"
			},
			wantErr: `unknown asset class "Crypto"`,
		},
		{
			name: "descending brackets",
			mutate: func(c *domain.Configuration) {
				c.Tax.Ordinary = []domain.Bracket{{Min: 0, Rate: half}, {Min: 0, Rate: half}}
			},
			wantErr: "ordinary brackets must be in ascending order",
		},
		{
			name: "refill source missing",
			mutate: func(c *domain.Configuration) {
				c.Refill.Targets = []domain.RefillTarget{{Bucket: "Cash", Threshold: 1, Amount: 1, Sources: []string{"Savings"}}}
			},
			wantErr: `bucket "Savings" is not configured`,
		},
		{
			name: "refill into tax collection is allowed",
			mutate: func(c *domain.Configuration) {
				c.Refill.Targets = []domain.RefillTarget{{Bucket: "Tax Collection", Threshold: 1, Amount: 1, Sources: []string{"Cash"}}}
			},
		},
		{
			name: "salary allocations must sum to one",
			mutate: func(c *domain.Configuration) {
				c.Salary = &domain.SalaryConfig{AnnualGross: 1, Allocations: []domain.Allocation{{Bucket: "Cash", Percent: half}}}
			},
			wantErr: "allocations sum to 0.5, expected 1",
		},
		{
			name: "bonus month out of range",
			mutate: func(c *domain.Configuration) {
				c.Salary = &domain.SalaryConfig{AnnualBonus: 5, BonusMonth: 13, Allocations: []domain.Allocation{{Bucket: "Cash", Percent: decimal.NewFromInt(1)}}}
			},
			wantErr: "bonus month",
		},
		{
			name: "property bucket must be property",
			mutate: func(c *domain.Configuration) {
				c.Property = &domain.PropertyConfig{Bucket: "Brokerage", PayFrom: "Cash"}
			},
			wantErr: "must have type property",
		},
		{
			name: "sepp life expectancy",
			mutate: func(c *domain.Configuration) {
				c.SEPP = &domain.SEPPConfig{Source: "401k", Target: "Cash"}
			},
			wantErr: "life expectancy must be positive",
		},
		{
			name: "roth phases out of order",
			mutate: func(c *domain.Configuration) {
				c.RothConversion = &domain.RothConversionConfig{Source: "401k", Target: "Roth", Phases: []domain.RothPhase{{CutoffAge: 70}, {CutoffAge: 65}}}
			},
			wantErr: "ascending cutoff age",
		},
		{
			name: "premium brackets out of order",
			mutate: func(c *domain.Configuration) {
				c.Premiums.Marketplace = &domain.PremiumSchedule{Bucket: "Cash", Brackets: []domain.PremiumBracket{{MinMAGI: 10}, {MinMAGI: 5}}}
			},
			wantErr: "marketplace premium validation failed",
		},
		{
			name: "recurring ends before start",
			mutate: func(c *domain.Configuration) {
				c.Recurring = []domain.RecurringEntry{{Start: domain.NewMonth(2031, time.May), End: domain.NewMonth(2031, time.January), Bucket: "Cash"}}
			},
			wantErr: "ends before it starts",
		},
		{
			name: "fixed entry unknown bucket",
			mutate: func(c *domain.Configuration) {
				c.Fixed = []domain.FixedEntry{{Month: domain.NewMonth(2031, time.May), Bucket: "Boat"}}
			},
			wantErr: `bucket "Boat" is not configured`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := NewInputParser().ValidateConfiguration(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadBalanceHistory(t *testing.T) {
	history, err := NewInputParser().LoadBalanceHistory("testdata/balances.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"Cash", "Brokerage", "401k", "Roth IRA", "House"}, history.Columns)
	require.Len(t, history.Rows, 3)
	assert.Equal(t, int64(41200), history.Rows[0].Balances["Cash"])
	assert.Equal(t, int64(318400), history.Rows[0].Balances["Brokerage"])

	last, ok := history.Last()
	require.True(t, ok)
	assert.Equal(t, domain.NewMonth(2029, time.December), last.Month)
	assert.Equal(t, int64(325410), last.Balances["Brokerage"])
	assert.Equal(t, int64(0), last.Balances["House"])
}

func TestParseBalanceHistory(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr string
	}{
		{name: "only header", csv: "Date,Cash\n", wantErr: "no rows"},
		{name: "no bucket columns", csv: "Date\n2030-01\n", wantErr: "at least one bucket column"},
		{name: "duplicate column", csv: "Date,Cash,Cash\n2030-01,1,2\n", wantErr: "appears twice"},
		{name: "bad month", csv: "Date,Cash\nJanuary,1\n", wantErr: "line 2"},
		{name: "bad amount", csv: "Date,Cash\n2030-01,lots\n", wantErr: `invalid amount "lots"`},
		{name: "out of order", csv: "Date,Cash\n2030-02,1\n2030-01,1\n", wantErr: "is not after"},
		{name: "ragged row", csv: "Date,Cash,Roth\n2030-01,1\n", wantErr: "line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInputParser().ParseBalanceHistory(strings.NewReader(tt.csv))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"-", 0},
		{"1234", 1234},
		{"$1,234.50", 1235},
		{"(2,000)", -2000},
		{"-75.2", -75},
	}
	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
