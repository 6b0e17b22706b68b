package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// InputParser handles parsing of household configuration and balance history files
type InputParser struct{}

// NewInputParser creates a new input parser
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadFromFile loads configuration from a YAML file, applies defaults and validates it
func (ip *InputParser) LoadFromFile(filename string) (*domain.Configuration, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return ip.Parse(data)
}

// Parse decodes YAML configuration bytes
func (ip *InputParser) Parse(data []byte) (*domain.Configuration, error) {
	var config domain.Configuration
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	config.ApplyDefaults()

	if err := ip.ValidateConfiguration(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// LoadBalanceHistory reads a CSV whose first column is the month and whose
// remaining columns are bucket balances
func (ip *InputParser) LoadBalanceHistory(filename string) (*domain.BalanceHistory, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open balance history %s: %w", filename, err)
	}
	defer f.Close()
	return ip.ParseBalanceHistory(f)
}

// ParseBalanceHistory parses balance history CSV from r. Rows must be in
// ascending month order; empty cells are zero.
func (ip *InputParser) ParseBalanceHistory(r io.Reader) (*domain.BalanceHistory, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read balance history header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("balance history needs a date column and at least one bucket column")
	}

	history := &domain.BalanceHistory{}
	seen := make(map[string]bool)
	for _, col := range header[1:] {
		name := strings.TrimSpace(col)
		if name == "" {
			return nil, fmt.Errorf("balance history has an unnamed column")
		}
		if seen[name] {
			return nil, fmt.Errorf("balance history column %q appears twice", name)
		}
		seen[name] = true
		history.Columns = append(history.Columns, name)
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		month, err := domain.ParseMonth(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if last, ok := history.Last(); ok && month <= last.Month {
			return nil, fmt.Errorf("line %d: month %s is not after %s", line, month, last.Month)
		}

		row := domain.BalanceRow{Month: month, Balances: make(map[string]int64, len(history.Columns))}
		for i, name := range history.Columns {
			amount, err := parseAmount(record[i+1])
			if err != nil {
				return nil, fmt.Errorf("line %d, column %q: %w", line, name, err)
			}
			row.Balances[name] = amount
		}
		history.Rows = append(history.Rows, row)
	}

	if len(history.Rows) == 0 {
		return nil, fmt.Errorf("balance history has no rows")
	}
	return history, nil
}

// parseAmount accepts plain or currency-formatted numbers and rounds to whole dollars
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = strings.Trim(s, "()")
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" || s == "-" {
		return 0, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if negative {
		v = v.Neg()
	}
	return v.Round(0).IntPart(), nil
}

// ValidateConfiguration validates the loaded configuration
func (ip *InputParser) ValidateConfiguration(config *domain.Configuration) error {
	if config.Profile.BirthMonth == 0 {
		return fmt.Errorf("profile birth month is required")
	}
	if config.Forecast.EndMonth == 0 {
		return fmt.Errorf("forecast end month is required")
	}
	if ratio := config.Forecast.GainRatio(); ratio.IsNegative() || ratio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("gain estimate ratio must be between 0 and 1")
	}
	if err := ip.validateAssetClasses(config.AssetClasses); err != nil {
		return fmt.Errorf("asset classes validation failed: %w", err)
	}
	if err := ip.validateBuckets(config); err != nil {
		return fmt.Errorf("buckets validation failed: %w", err)
	}
	if config.Inflation.Std.IsNegative() {
		return fmt.Errorf("inflation standard deviation cannot be negative")
	}
	if err := ip.validateTaxTables(config.Tax); err != nil {
		return fmt.Errorf("tax tables validation failed: %w", err)
	}
	for _, p := range []struct {
		name     string
		schedule *domain.PremiumSchedule
	}{{"irmaa", config.Premiums.IRMAA}, {"marketplace", config.Premiums.Marketplace}} {
		if p.schedule == nil {
			continue
		}
		if err := ip.validatePremium(config, p.schedule); err != nil {
			return fmt.Errorf("%s premium validation failed: %w", p.name, err)
		}
	}
	if err := ip.validatePolicies(config); err != nil {
		return fmt.Errorf("policy validation failed: %w", err)
	}
	if err := ip.validateIncome(config); err != nil {
		return fmt.Errorf("income validation failed: %w", err)
	}
	if err := ip.validateDistributions(config); err != nil {
		return fmt.Errorf("distribution validation failed: %w", err)
	}
	if err := ip.validateHousing(config); err != nil {
		return fmt.Errorf("housing validation failed: %w", err)
	}
	if err := ip.validateRules(config); err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}
	return nil
}

func (ip *InputParser) validateAssetClasses(classes []domain.AssetClass) error {
	seen := make(map[string]bool)
	for _, ac := range classes {
		if ac.Name == "" {
			return fmt.Errorf("asset class name is required")
		}
		if seen[ac.Name] {
			return fmt.Errorf("asset class %q is defined twice", ac.Name)
		}
		seen[ac.Name] = true
		for _, dist := range []domain.ReturnDistribution{ac.Low, ac.Average, ac.High} {
			if dist.Std.IsNegative() {
				return fmt.Errorf("asset class %q has a negative standard deviation", ac.Name)
			}
		}
		if ac.InflationHigh.LessThan(ac.InflationLow) {
			return fmt.Errorf("asset class %q inflation_high is below inflation_low", ac.Name)
		}
	}
	return nil
}

func (ip *InputParser) validateBuckets(config *domain.Configuration) error {
	if len(config.Buckets) == 0 {
		return fmt.Errorf("at least one bucket is required")
	}
	classes := make(map[string]bool)
	for _, ac := range config.AssetClasses {
		classes[ac.Name] = true
	}

	seen := make(map[string]bool)
	one := decimal.NewFromInt(1)
	for _, b := range config.Buckets {
		if b.Name == "" {
			return fmt.Errorf("bucket name is required")
		}
		if seen[b.Name] {
			return fmt.Errorf("bucket %q is defined twice", b.Name)
		}
		seen[b.Name] = true
		if b.Type == domain.BucketUnknown {
			return fmt.Errorf("bucket %q has no type", b.Name)
		}

		if len(b.Holdings) > 0 {
			total := decimal.Zero
			for _, h := range b.Holdings {
				if h.Weight.IsNegative() {
					return fmt.Errorf("bucket %q has a negative holding weight", b.Name)
				}
				if !classes[h.AssetClass] {
					return fmt.Errorf("bucket %q references unknown asset class %q", b.Name, h.AssetClass)
				}
				total = total.Add(h.Weight)
			}
			if !total.Equal(one) {
				return fmt.Errorf("bucket %q holding weights sum to %s, expected 1", b.Name, total)
			}
		}
		if r := b.CostBasisRatio; r != nil && (r.IsNegative() || r.GreaterThan(one)) {
			return fmt.Errorf("bucket %q cost basis ratio must be between 0 and 1", b.Name)
		}
	}

	cash, ok := config.Bucket(config.Forecast.CashBucket)
	if !ok {
		return fmt.Errorf("cash bucket %q is not configured", config.Forecast.CashBucket)
	}
	// Tax settlement and drip withholding draw Cash below zero rather than
	// leave a liability unpaid
	if !cash.CanGoNegative {
		return fmt.Errorf("cash bucket %q must set can_go_negative", cash.Name)
	}
	return nil
}

func (ip *InputParser) validateTaxTables(t domain.TaxTables) error {
	if len(t.Ordinary) == 0 {
		return fmt.Errorf("ordinary brackets are required")
	}
	if t.StandardDeduction < 0 {
		return fmt.Errorf("standard deduction cannot be negative")
	}
	for _, table := range []struct {
		name     string
		brackets []domain.Bracket
	}{{"ordinary", t.Ordinary}, {"capital gains", t.CapitalGains}} {
		name, brackets := table.name, table.brackets
		for i, b := range brackets {
			if b.Rate.IsNegative() || b.Rate.GreaterThan(decimal.NewFromInt(1)) {
				return fmt.Errorf("%s bracket %d rate must be between 0 and 1", name, i)
			}
			if i > 0 && b.Min <= brackets[i-1].Min {
				return fmt.Errorf("%s brackets must be in ascending order", name)
			}
		}
	}
	for i, tier := range t.SocialSecurity {
		if i > 0 && tier.Threshold <= t.SocialSecurity[i-1].Threshold {
			return fmt.Errorf("social security tiers must be in ascending order")
		}
	}
	return nil
}

func (ip *InputParser) validatePremium(config *domain.Configuration, p *domain.PremiumSchedule) error {
	if p.LagYears < 0 {
		return fmt.Errorf("lag years cannot be negative")
	}
	if p.End != 0 && p.End < p.Start {
		return fmt.Errorf("end month is before start month")
	}
	for i, b := range p.Brackets {
		if i > 0 && b.MinMAGI <= p.Brackets[i-1].MinMAGI {
			return fmt.Errorf("brackets must be in ascending MAGI order")
		}
	}
	return requireBucket(config, p.Bucket)
}

func (ip *InputParser) validatePolicies(config *domain.Configuration) error {
	for i, target := range config.Refill.Targets {
		if err := requireBucket(config, target.Bucket); err != nil {
			return fmt.Errorf("refill target %d: %w", i, err)
		}
		if target.Amount <= 0 {
			return fmt.Errorf("refill target %q amount must be positive", target.Bucket)
		}
		if len(target.Sources) == 0 {
			return fmt.Errorf("refill target %q needs at least one source", target.Bucket)
		}
		for _, src := range target.Sources {
			if err := requireBucket(config, src); err != nil {
				return fmt.Errorf("refill target %q source: %w", target.Bucket, err)
			}
		}
	}

	for _, name := range config.Liquidation.Buckets {
		if err := requireBucket(config, name); err != nil {
			return fmt.Errorf("liquidation: %w", err)
		}
	}
	if err := validateAllocations(config, config.Liquidation.PropertyTargets, false); err != nil {
		return fmt.Errorf("liquidation property targets: %w", err)
	}
	return nil
}

func (ip *InputParser) validateIncome(config *domain.Configuration) error {
	if s := config.Salary; s != nil {
		if s.AnnualGross < 0 || s.AnnualBonus < 0 {
			return fmt.Errorf("salary amounts cannot be negative")
		}
		if s.AnnualBonus > 0 && (s.BonusMonth < 1 || s.BonusMonth > 12) {
			return fmt.Errorf("bonus month must be between 1 and 12")
		}
		if len(s.Allocations) == 0 {
			return fmt.Errorf("salary needs at least one allocation")
		}
		if err := validateAllocations(config, s.Allocations, true); err != nil {
			return fmt.Errorf("salary allocations: %w", err)
		}
	}
	if ss := config.SocialSecurity; ss != nil {
		if ss.Start == 0 {
			return fmt.Errorf("social security start month is required")
		}
		if ss.MonthlyAmount < 0 {
			return fmt.Errorf("social security amount cannot be negative")
		}
		if err := requireBucket(config, ss.Bucket); err != nil {
			return fmt.Errorf("social security: %w", err)
		}
	}
	if u := config.Unemployment; u != nil {
		if u.Months <= 0 {
			return fmt.Errorf("unemployment months must be positive")
		}
		if err := requireBucket(config, u.Bucket); err != nil {
			return fmt.Errorf("unemployment: %w", err)
		}
	}
	if g := config.GainRealization; g != nil {
		for _, name := range g.Buckets {
			if err := requireBucket(config, name); err != nil {
				return fmt.Errorf("gain realization: %w", err)
			}
		}
	}
	return nil
}

func (ip *InputParser) validateDistributions(config *domain.Configuration) error {
	if r := config.RMD; r != nil {
		if r.Month < 0 || r.Month > 12 {
			return fmt.Errorf("RMD month must be between 0 and 12")
		}
		for _, name := range r.SourceBuckets {
			if err := requireBucket(config, name); err != nil {
				return fmt.Errorf("RMD source: %w", err)
			}
		}
		if err := validateAllocations(config, r.Targets, false); err != nil {
			return fmt.Errorf("RMD targets: %w", err)
		}
	}
	if s := config.SEPP; s != nil {
		if s.LifeExpectancy.Sign() <= 0 {
			return fmt.Errorf("SEPP life expectancy must be positive")
		}
		if s.End != 0 && s.End < s.Start {
			return fmt.Errorf("SEPP end month is before start month")
		}
		for _, name := range []string{s.Source, s.Target} {
			if err := requireBucket(config, name); err != nil {
				return fmt.Errorf("SEPP: %w", err)
			}
		}
	}
	if rc := config.RothConversion; rc != nil {
		for _, name := range []string{rc.Source, rc.Target} {
			if err := requireBucket(config, name); err != nil {
				return fmt.Errorf("roth conversion: %w", err)
			}
		}
		for i, p := range rc.Phases {
			if i > 0 && p.CutoffAge <= rc.Phases[i-1].CutoffAge {
				return fmt.Errorf("roth conversion phases must be in ascending cutoff age order")
			}
			if p.MaxRate.IsNegative() || p.MaxRate.GreaterThan(decimal.NewFromInt(1)) {
				return fmt.Errorf("roth conversion phase %d max rate must be between 0 and 1", i)
			}
		}
	}
	return nil
}

func (ip *InputParser) validateHousing(config *domain.Configuration) error {
	if p := config.Property; p != nil {
		b, ok := config.Bucket(p.Bucket)
		if !ok {
			return fmt.Errorf("property: bucket %q is not configured", p.Bucket)
		}
		if b.Type != domain.BucketProperty {
			return fmt.Errorf("property bucket %q must have type property", p.Bucket)
		}
		if err := requireBucket(config, p.PayFrom); err != nil {
			return fmt.Errorf("property pay_from: %w", err)
		}
		if m := p.Mortgage; m != nil && (m.Principal < 0 || m.MonthlyPayment <= 0) {
			return fmt.Errorf("mortgage needs a non-negative principal and a positive payment")
		}
	}
	if r := config.Rent; r != nil {
		if err := requireBucket(config, r.PayFrom); err != nil {
			return fmt.Errorf("rent pay_from: %w", err)
		}
		if err := requireBucket(config, r.ConditionBucket); err != nil {
			return fmt.Errorf("rent condition: %w", err)
		}
	}
	return nil
}

func (ip *InputParser) validateRules(config *domain.Configuration) error {
	for i, f := range config.Fixed {
		if f.Month == 0 {
			return fmt.Errorf("fixed entry %d month is required", i)
		}
		if err := requireBucket(config, f.Bucket); err != nil {
			return fmt.Errorf("fixed entry %d: %w", i, err)
		}
	}
	for i, r := range config.Recurring {
		if r.Start == 0 {
			return fmt.Errorf("recurring entry %d start month is required", i)
		}
		if r.End != 0 && r.End < r.Start {
			return fmt.Errorf("recurring entry %d ends before it starts", i)
		}
		if err := requireBucket(config, r.Bucket); err != nil {
			return fmt.Errorf("recurring entry %d: %w", i, err)
		}
	}
	return nil
}

// requireBucket accepts configured buckets and the Tax Collection bucket,
// which every trial creates when it is not configured
func requireBucket(config *domain.Configuration, name string) error {
	if name == config.Forecast.TaxCollectionBucket {
		return nil
	}
	if _, ok := config.Bucket(name); !ok {
		return fmt.Errorf("bucket %q is not configured", name)
	}
	return nil
}

// validateAllocations checks bucket references and that percentages are
// non-negative and sum to at most one (exactly one when exact is set)
func validateAllocations(config *domain.Configuration, allocations []domain.Allocation, exact bool) error {
	total := decimal.Zero
	for _, a := range allocations {
		if err := requireBucket(config, a.Bucket); err != nil {
			return err
		}
		if a.Percent.IsNegative() {
			return fmt.Errorf("allocation to %q is negative", a.Bucket)
		}
		total = total.Add(a.Percent)
	}
	one := decimal.NewFromInt(1)
	if total.GreaterThan(one) {
		return fmt.Errorf("allocations sum to %s, more than 1", total)
	}
	if exact && !total.Equal(one) {
		return fmt.Errorf("allocations sum to %s, expected 1", total)
	}
	return nil
}
