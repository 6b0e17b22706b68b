package domain

import (
	"github.com/shopspring/decimal"
)

const (
	// DefaultPenaltyFreeAgeMonths is age 59 years and 6 months
	DefaultPenaltyFreeAgeMonths = 59*12 + 6
	DefaultCashBucket           = "Cash"
	DefaultTaxCollectionBucket  = "Tax Collection"
	DefaultPremiumLagYears      = 2
	DefaultRMDStartAge          = 73
)

// DefaultGainEstimateRatio is the gain share assumed for taxable withdrawals
// without tracked basis
var DefaultGainEstimateRatio = decimal.NewFromFloat(0.5)

// Configuration is the full household description for one forecast
type Configuration struct {
	Profile         Profile                `yaml:"profile"`
	Forecast        ForecastSettings       `yaml:"forecast"`
	AssetClasses    []AssetClass           `yaml:"asset_classes"`
	Buckets         []BucketConfig         `yaml:"buckets"`
	Inflation       InflationConfig        `yaml:"inflation"`
	Tax             TaxTables              `yaml:"tax"`
	Premiums        PremiumsConfig         `yaml:"premiums"`
	Refill          RefillConfig           `yaml:"refill"`
	Liquidation     LiquidationConfig      `yaml:"liquidation"`
	Salary          *SalaryConfig          `yaml:"salary,omitempty"`
	SocialSecurity  *SocialSecurityConfig  `yaml:"social_security,omitempty"`
	RMD             *RMDConfig             `yaml:"rmd,omitempty"`
	SEPP            *SEPPConfig            `yaml:"sepp,omitempty"`
	RothConversion  *RothConversionConfig  `yaml:"roth_conversion,omitempty"`
	Property        *PropertyConfig        `yaml:"property,omitempty"`
	Rent            *RentConfig            `yaml:"rent,omitempty"`
	Unemployment    *UnemploymentConfig    `yaml:"unemployment,omitempty"`
	GainRealization *GainRealizationConfig `yaml:"gain_realization,omitempty"`
	Fixed           []FixedEntry           `yaml:"fixed"`
	Recurring       []RecurringEntry       `yaml:"recurring"`
	// MAGIHistory supplies modified adjusted gross income for years before the forecast
	MAGIHistory map[int]int64 `yaml:"magi_history"`
}

// Profile describes the household members relevant to age-gated rules
type Profile struct {
	BirthMonth           Month `yaml:"birth_month"`
	Joint                bool  `yaml:"joint"`
	PenaltyFreeAgeMonths int   `yaml:"penalty_free_age_months"`
}

// EligibilityMonth is the first month penalty-free withdrawals from tax-advantaged buckets are allowed
func (p Profile) EligibilityMonth() Month {
	months := p.PenaltyFreeAgeMonths
	if months <= 0 {
		months = DefaultPenaltyFreeAgeMonths
	}
	return p.BirthMonth.Add(months)
}

// AgeAt returns the age in whole years at month m
func (p Profile) AgeAt(m Month) int {
	return AgeAt(p.BirthMonth, m)
}

// AgeAtYearEnd returns the age reached during the given calendar year
func (p Profile) AgeAtYearEnd(year int) int {
	return year - p.BirthMonth.Year()
}

// ForecastSettings holds engine-wide knobs
type ForecastSettings struct {
	EndMonth                 Month  `yaml:"end_month"`
	CashBucket               string `yaml:"cash_bucket"`
	TaxCollectionBucket      string `yaml:"tax_collection_bucket"`
	InitialAnnualTaxEstimate int64  `yaml:"initial_annual_tax_estimate"`
	// GainEstimateRatio is the share of a taxable withdrawal treated as gain
	// when no basis is tracked. Nil means unset; an explicit 0 is honored.
	GainEstimateRatio *decimal.Decimal `yaml:"gain_estimate_ratio"`
}

// GainRatio returns the configured gain estimate ratio or the default
func (f ForecastSettings) GainRatio() decimal.Decimal {
	if f.GainEstimateRatio == nil {
		return DefaultGainEstimateRatio
	}
	return *f.GainEstimateRatio
}

// ReturnDistribution is a normal distribution of monthly returns
type ReturnDistribution struct {
	Mean decimal.Decimal `yaml:"mean"`
	Std  decimal.Decimal `yaml:"std"`
}

// AssetClass carries one return distribution per market scenario
type AssetClass struct {
	Name          string             `yaml:"name"`
	Low           ReturnDistribution `yaml:"low"`
	Average       ReturnDistribution `yaml:"average"`
	High          ReturnDistribution `yaml:"high"`
	InflationLow  decimal.Decimal    `yaml:"inflation_low"`
	InflationHigh decimal.Decimal    `yaml:"inflation_high"`
}

// ScenarioFor picks the market regime for a given annual inflation rate
func (a AssetClass) ScenarioFor(inflation decimal.Decimal) Scenario {
	switch {
	case inflation.LessThan(a.InflationLow):
		return ScenarioLow
	case inflation.GreaterThan(a.InflationHigh):
		return ScenarioHigh
	default:
		return ScenarioAverage
	}
}

// Distribution returns the return distribution for a scenario
func (a AssetClass) Distribution(s Scenario) ReturnDistribution {
	switch s {
	case ScenarioLow:
		return a.Low
	case ScenarioHigh:
		return a.High
	default:
		return a.Average
	}
}

// HoldingConfig is one weighted position inside a bucket
type HoldingConfig struct {
	AssetClass string          `yaml:"asset_class"`
	Weight     decimal.Decimal `yaml:"weight"`
}

// BucketConfig describes an account
type BucketConfig struct {
	Name              string          `yaml:"name"`
	Type              BucketType      `yaml:"type"`
	CanGoNegative     bool            `yaml:"can_go_negative"`
	AllowCashFallback bool            `yaml:"allow_cash_fallback"`
	Holdings          []HoldingConfig `yaml:"holdings"`
	// CostBasisRatio is the share of the starting balance that is basis; nil means unknown
	CostBasisRatio *decimal.Decimal `yaml:"cost_basis_ratio,omitempty"`
}

// InflationProfile scales the general inflation rate for one expense category
type InflationProfile struct {
	Name        string          `yaml:"name"`
	Sensitivity decimal.Decimal `yaml:"sensitivity"`
}

// InflationConfig is the annual inflation distribution
type InflationConfig struct {
	Mean     decimal.Decimal    `yaml:"mean"`
	Std      decimal.Decimal    `yaml:"std"`
	Profiles []InflationProfile `yaml:"profiles"`
}

// Bracket is a progressive bracket; it spans from Min to the next bracket's Min
type Bracket struct {
	Min  int64           `yaml:"min"`
	Rate decimal.Decimal `yaml:"rate"`
}

// SSTier is one provisional income tier for Social Security taxability
type SSTier struct {
	Threshold int64           `yaml:"threshold"`
	Rate      decimal.Decimal `yaml:"rate"`
}

// TaxTables holds every table the tax calculator needs
type TaxTables struct {
	BaseYear          int             `yaml:"base_year"`
	IndexToInflation  bool            `yaml:"index_to_inflation"`
	StandardDeduction int64           `yaml:"standard_deduction"`
	Ordinary          []Bracket       `yaml:"ordinary"`
	CapitalGains      []Bracket       `yaml:"capital_gains"`
	SocialSecurity    []SSTier        `yaml:"social_security_tiers"`
	PenaltyRate       decimal.Decimal `yaml:"penalty_rate"`
}

// DefaultTaxTables returns 2023 married-filing-jointly federal tables
func DefaultTaxTables() TaxTables {
	return TaxTables{
		BaseYear:          2023,
		StandardDeduction: 27700,
		Ordinary: []Bracket{
			{Min: 0, Rate: decimal.NewFromFloat(0.10)},
			{Min: 22000, Rate: decimal.NewFromFloat(0.12)},
			{Min: 89450, Rate: decimal.NewFromFloat(0.22)},
			{Min: 190750, Rate: decimal.NewFromFloat(0.24)},
			{Min: 364200, Rate: decimal.NewFromFloat(0.32)},
			{Min: 462500, Rate: decimal.NewFromFloat(0.35)},
			{Min: 693750, Rate: decimal.NewFromFloat(0.37)},
		},
		CapitalGains: []Bracket{
			{Min: 0, Rate: decimal.Zero},
			{Min: 89250, Rate: decimal.NewFromFloat(0.15)},
			{Min: 553850, Rate: decimal.NewFromFloat(0.20)},
		},
		SocialSecurity: []SSTier{
			{Threshold: 32000, Rate: decimal.NewFromFloat(0.50)},
			{Threshold: 44000, Rate: decimal.NewFromFloat(0.85)},
		},
		PenaltyRate: decimal.NewFromFloat(0.10),
	}
}

// PremiumBracket is a MAGI tier with its monthly amount
type PremiumBracket struct {
	MinMAGI int64 `yaml:"min_magi"`
	Monthly int64 `yaml:"monthly"`
}

// PremiumSchedule is a means-tested premium keyed on lagged MAGI
type PremiumSchedule struct {
	Start       Month            `yaml:"start"`
	End         Month            `yaml:"end"`
	BaseMonthly int64            `yaml:"base_monthly"`
	Brackets    []PremiumBracket `yaml:"brackets"`
	LagYears    int              `yaml:"lag_years"`
	Bucket      string           `yaml:"bucket"`
}

// Active reports whether the premium is charged in month m; a zero End means open-ended
func (p PremiumSchedule) Active(m Month) bool {
	if m < p.Start {
		return false
	}
	return p.End == 0 || m <= p.End
}

// PremiumsConfig groups the means-tested premium programs
type PremiumsConfig struct {
	IRMAA       *PremiumSchedule `yaml:"irmaa,omitempty"`
	Marketplace *PremiumSchedule `yaml:"marketplace,omitempty"`
}

// RefillTarget keeps one bucket above a threshold by pulling from sources in order
type RefillTarget struct {
	Bucket    string   `yaml:"bucket"`
	Threshold int64    `yaml:"threshold"`
	Amount    int64    `yaml:"amount"`
	Sources   []string `yaml:"sources"`
}

// RefillConfig is the ordered refill policy
type RefillConfig struct {
	Targets []RefillTarget `yaml:"targets"`
}

// Allocation routes a percentage of a payment to a bucket
type Allocation struct {
	Bucket  string          `yaml:"bucket"`
	Percent decimal.Decimal `yaml:"percent"`
}

// LiquidationConfig is the emergency policy when cash falls below Threshold
type LiquidationConfig struct {
	Threshold       int64        `yaml:"threshold"`
	Buckets         []string     `yaml:"buckets"`
	PropertyTargets []Allocation `yaml:"property_targets"`
}

// SalaryConfig describes employment income until retirement
type SalaryConfig struct {
	AnnualGross     int64           `yaml:"annual_gross"`
	AnnualBonus     int64           `yaml:"annual_bonus"`
	BonusMonth      int             `yaml:"bonus_month"`
	RaiseRate       decimal.Decimal `yaml:"raise_rate"`
	Start           Month           `yaml:"start"`
	RetirementMonth Month           `yaml:"retirement_month"`
	Allocations     []Allocation    `yaml:"allocations"`
}

// SocialSecurityConfig describes the benefit stream
type SocialSecurityConfig struct {
	Start         Month  `yaml:"start"`
	MonthlyAmount int64  `yaml:"monthly_amount"`
	Bucket        string `yaml:"bucket"`
	// DepositPercent is the share of the benefit deposited. Nil deposits all
	// of it; an explicit 0 deposits nothing while the benefit is still taxed.
	DepositPercent *decimal.Decimal `yaml:"deposit_percent"`
	COLA           bool             `yaml:"cola"`
}

// Deposited returns the configured deposit share or the whole benefit
func (s SocialSecurityConfig) Deposited() decimal.Decimal {
	if s.DepositPercent == nil {
		return decimal.NewFromInt(1)
	}
	return *s.DepositPercent
}

// RMDConfig describes required minimum distributions
type RMDConfig struct {
	StartAge      int                     `yaml:"start_age"`
	Month         int                     `yaml:"month"`
	SourceBuckets []string                `yaml:"source_buckets"`
	Targets       []Allocation            `yaml:"targets"`
	Divisors      map[int]decimal.Decimal `yaml:"divisors"`
}

// SEPPConfig describes a 72(t) substantially equal periodic payment plan
type SEPPConfig struct {
	Start          Month           `yaml:"start"`
	End            Month           `yaml:"end"`
	Source         string          `yaml:"source"`
	Target         string          `yaml:"target"`
	InterestRate   decimal.Decimal `yaml:"interest_rate"`
	LifeExpectancy decimal.Decimal `yaml:"life_expectancy"`
}

// RothPhase bounds conversions while the household is younger than CutoffAge
type RothPhase struct {
	CutoffAge int             `yaml:"cutoff_age"`
	MaxRate   decimal.Decimal `yaml:"max_rate"`
	MaxAmount int64           `yaml:"max_amount"`
}

// RothConversionConfig describes year-end conversions
type RothConversionConfig struct {
	Source string      `yaml:"source"`
	Target string      `yaml:"target"`
	Phases []RothPhase `yaml:"phases"`
}

// PhaseFor returns the first phase whose cutoff is above age
func (r RothConversionConfig) PhaseFor(age int) (RothPhase, bool) {
	for _, p := range r.Phases {
		if age < p.CutoffAge {
			return p, true
		}
	}
	return RothPhase{}, false
}

// MortgageConfig is a fixed-rate amortizing loan
type MortgageConfig struct {
	Principal      int64           `yaml:"principal"`
	AnnualRate     decimal.Decimal `yaml:"annual_rate"`
	MonthlyPayment int64           `yaml:"monthly_payment"`
}

// PropertyConfig describes a home and its carrying costs
type PropertyConfig struct {
	Bucket             string          `yaml:"bucket"`
	PayFrom            string          `yaml:"pay_from"`
	Start              Month           `yaml:"start"`
	Mortgage           *MortgageConfig `yaml:"mortgage,omitempty"`
	MonthlyTax         int64           `yaml:"monthly_tax"`
	MonthlyInsurance   int64           `yaml:"monthly_insurance"`
	MonthlyMaintenance int64           `yaml:"monthly_maintenance"`
	Inflation          string          `yaml:"inflation"`
}

// RentConfig is rent paid only while the condition bucket is empty
type RentConfig struct {
	Start           Month  `yaml:"start"`
	MonthlyAmount   int64  `yaml:"monthly_amount"`
	PayFrom         string `yaml:"pay_from"`
	ConditionBucket string `yaml:"condition_bucket"`
	Inflation       string `yaml:"inflation"`
}

// UnemploymentConfig is a fixed-length benefit stream
type UnemploymentConfig struct {
	Start         Month  `yaml:"start"`
	Months        int    `yaml:"months"`
	MonthlyAmount int64  `yaml:"monthly_amount"`
	Bucket        string `yaml:"bucket"`
}

// GainRealizationConfig realizes a share of unrealized gains in taxable buckets
type GainRealizationConfig struct {
	Buckets    []string        `yaml:"buckets"`
	AnnualRate decimal.Decimal `yaml:"annual_rate"`
}

// FixedEntry is a one-off deposit (positive) or withdrawal (negative)
type FixedEntry struct {
	Month       Month  `yaml:"month"`
	Bucket      string `yaml:"bucket"`
	Amount      int64  `yaml:"amount"`
	Description string `yaml:"description"`
}

// RecurringEntry repeats monthly between Start and End; a zero End is open-ended
type RecurringEntry struct {
	Start       Month  `yaml:"start"`
	End         Month  `yaml:"end"`
	Bucket      string `yaml:"bucket"`
	Amount      int64  `yaml:"amount"`
	Description string `yaml:"description"`
	Inflation   string `yaml:"inflation"`
}

// Active reports whether the entry fires in month m
func (r RecurringEntry) Active(m Month) bool {
	if m < r.Start {
		return false
	}
	return r.End == 0 || m <= r.End
}

// ApplyDefaults fills unset knobs; it is safe to call more than once
func (c *Configuration) ApplyDefaults() {
	if c.Forecast.CashBucket == "" {
		c.Forecast.CashBucket = DefaultCashBucket
	}
	if c.Forecast.TaxCollectionBucket == "" {
		c.Forecast.TaxCollectionBucket = DefaultTaxCollectionBucket
	}
	if c.Forecast.GainEstimateRatio == nil {
		ratio := DefaultGainEstimateRatio
		c.Forecast.GainEstimateRatio = &ratio
	}
	if len(c.Tax.Ordinary) == 0 {
		c.Tax = DefaultTaxTables()
	}
	for _, p := range []*PremiumSchedule{c.Premiums.IRMAA, c.Premiums.Marketplace} {
		if p == nil {
			continue
		}
		if p.LagYears == 0 {
			p.LagYears = DefaultPremiumLagYears
		}
		if p.Bucket == "" {
			p.Bucket = c.Forecast.CashBucket
		}
	}
	if c.RMD != nil && c.RMD.StartAge == 0 {
		c.RMD.StartAge = DefaultRMDStartAge
	}
	if c.SocialSecurity != nil {
		if c.SocialSecurity.Bucket == "" {
			c.SocialSecurity.Bucket = c.Forecast.CashBucket
		}
		if c.SocialSecurity.DepositPercent == nil {
			all := decimal.NewFromInt(1)
			c.SocialSecurity.DepositPercent = &all
		}
	}
	if c.Property != nil && c.Property.PayFrom == "" {
		c.Property.PayFrom = c.Forecast.CashBucket
	}
	if c.Rent != nil && c.Rent.PayFrom == "" {
		c.Rent.PayFrom = c.Forecast.CashBucket
	}
	if c.Unemployment != nil && c.Unemployment.Bucket == "" {
		c.Unemployment.Bucket = c.Forecast.CashBucket
	}
	if len(c.Liquidation.PropertyTargets) == 0 {
		c.Liquidation.PropertyTargets = []Allocation{{Bucket: c.Forecast.CashBucket, Percent: decimal.NewFromInt(1)}}
	}
}

// BucketConfig looks up a bucket by name
func (c *Configuration) Bucket(name string) (BucketConfig, bool) {
	for _, b := range c.Buckets {
		if b.Name == name {
			return b, true
		}
	}
	return BucketConfig{}, false
}

// BalanceRow is one dated snapshot of historical balances
type BalanceRow struct {
	Month    Month
	Balances map[string]int64
}

// BalanceHistory is the parsed historical balance table
type BalanceHistory struct {
	Columns []string
	Rows    []BalanceRow
}

// Last returns the most recent row
func (h *BalanceHistory) Last() (BalanceRow, bool) {
	if h == nil || len(h.Rows) == 0 {
		return BalanceRow{}, false
	}
	return h.Rows[len(h.Rows)-1], true
}
