package tax

import (
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/shopspring/decimal"
)

// TAX CALCULATION ASSUMPTIONS:
//
// 1. Federal only. One filing status per household; the tables carry it.
// 2. Thresholds are indexed by the trial's general inflation modifier relative
//    to the table base year when IndexToInflation is set.
// 3. Social Security taxability uses a progressive tier schedule on
//    provisional income, capped at the top tier rate times benefits.
// 4. Capital gains stack on top of taxable ordinary income. Any standard
//    deduction left over after ordinary income shelters gains first.
// 5. The early-withdrawal penalty is a flat rate on penalty-eligible withdrawals.

// Input is one year's (or a scaled partial year's) taxable activity
type Input struct {
	Year                   int
	Salary                 int64
	SocialSecurity         int64
	TaxDeferredWithdrawals int64
	CapitalGains           int64
	RothConversions        int64
	PenaltyEligible        int64
	TaxFreeWithdrawals     int64
}

// Scale multiplies every amount by factor; used to annualize year-to-date figures
func (in Input) Scale(factor decimal.Decimal) Input {
	s := func(v int64) int64 { return decimal.NewFromInt(v).Mul(factor).Round(0).IntPart() }
	return Input{
		Year:                   in.Year,
		Salary:                 s(in.Salary),
		SocialSecurity:         s(in.SocialSecurity),
		TaxDeferredWithdrawals: s(in.TaxDeferredWithdrawals),
		CapitalGains:           s(in.CapitalGains),
		RothConversions:        s(in.RothConversions),
		PenaltyEligible:        s(in.PenaltyEligible),
		TaxFreeWithdrawals:     s(in.TaxFreeWithdrawals),
	}
}

// Breakdown is the full result of a tax computation
type Breakdown struct {
	Year                  int
	AGI                   int64
	OrdinaryIncome        int64
	TaxableOrdinaryIncome int64
	StandardDeduction     int64
	TaxableSocialSecurity int64
	CapitalGains          int64
	TaxableCapitalGains   int64
	OrdinaryTax           int64
	CapitalGainsTax       int64
	PenaltyTax            int64
	TotalTax              int64
	MarginalRate          decimal.Decimal
}

// IncomeTax is total tax without the penalty
func (b Breakdown) IncomeTax() int64 {
	return b.OrdinaryTax + b.CapitalGainsTax
}

// EffectiveRate is total tax over AGI, zero when AGI is not positive
func (b Breakdown) EffectiveRate() decimal.Decimal {
	if b.AGI <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(b.TotalTax).Div(decimal.NewFromInt(b.AGI)).Round(4)
}

// Indexer supplies the cumulative inflation modifier for a year
type Indexer interface {
	Modifier(year int) decimal.Decimal
}

// Calculator is a pure function of its tables, the indexer and the input
type Calculator struct {
	tables domain.TaxTables
	index  Indexer
}

// NewCalculator creates a calculator; index may be nil when tables are not indexed
func NewCalculator(tables domain.TaxTables, index Indexer) *Calculator {
	return &Calculator{tables: tables, index: index}
}

func (c *Calculator) factor(year int) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if !c.tables.IndexToInflation || c.index == nil {
		return one
	}
	base := c.index.Modifier(c.tables.BaseYear)
	if base.Sign() <= 0 {
		return one
	}
	return c.index.Modifier(year).Div(base)
}

func scale(amount int64, f decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(f).Round(0).IntPart()
}

func indexBrackets(brackets []domain.Bracket, f decimal.Decimal) []domain.Bracket {
	out := make([]domain.Bracket, len(brackets))
	for i, b := range brackets {
		out[i] = domain.Bracket{Min: scale(b.Min, f), Rate: b.Rate}
	}
	return out
}

// OrdinaryBrackets returns the ordinary brackets indexed for year
func (c *Calculator) OrdinaryBrackets(year int) []domain.Bracket {
	return indexBrackets(c.tables.Ordinary, c.factor(year))
}

// StandardDeduction returns the deduction indexed for year
func (c *Calculator) StandardDeduction(year int) int64 {
	return scale(c.tables.StandardDeduction, c.factor(year))
}

// Calculate computes the tax due for one year
func (c *Calculator) Calculate(in Input) Breakdown {
	f := c.factor(in.Year)
	otherIncome := in.Salary + in.TaxDeferredWithdrawals + in.RothConversions + in.CapitalGains
	taxableSS := c.taxableSocialSecurity(in.SocialSecurity, otherIncome, f)

	ordinary := in.Salary + in.TaxDeferredWithdrawals + in.RothConversions + taxableSS
	deduction := scale(c.tables.StandardDeduction, f)
	taxableOrdinary := max(0, ordinary-deduction)
	unusedDeduction := max(0, deduction-ordinary)
	gains := max(0, in.CapitalGains)
	taxableGains := max(0, gains-unusedDeduction)

	ordinaryBrackets := indexBrackets(c.tables.Ordinary, f)
	cgBrackets := indexBrackets(c.tables.CapitalGains, f)

	ordinaryTax := progressiveTax(taxableOrdinary, ordinaryBrackets)
	cgTax := stackedTax(taxableOrdinary, taxableGains, cgBrackets)
	penalty := decimal.NewFromInt(max(0, in.PenaltyEligible)).Mul(c.tables.PenaltyRate).Round(0).IntPart()

	return Breakdown{
		Year:                  in.Year,
		AGI:                   ordinary + gains,
		OrdinaryIncome:        ordinary,
		TaxableOrdinaryIncome: taxableOrdinary,
		StandardDeduction:     deduction,
		TaxableSocialSecurity: taxableSS,
		CapitalGains:          gains,
		TaxableCapitalGains:   taxableGains,
		OrdinaryTax:           ordinaryTax,
		CapitalGainsTax:       cgTax,
		PenaltyTax:            penalty,
		TotalTax:              ordinaryTax + cgTax + penalty,
		MarginalRate:          rateAt(taxableOrdinary, ordinaryBrackets),
	}
}

// taxableSocialSecurity applies the tier schedule to provisional income
func (c *Calculator) taxableSocialSecurity(benefits, otherIncome int64, f decimal.Decimal) int64 {
	if benefits <= 0 || len(c.tables.SocialSecurity) == 0 {
		return 0
	}
	provisional := decimal.NewFromInt(otherIncome).Add(decimal.NewFromInt(benefits).Div(decimal.NewFromInt(2)))
	tiers := c.tables.SocialSecurity

	taxable := decimal.Zero
	maxRate := decimal.Zero
	for i, tier := range tiers {
		maxRate = decimal.Max(maxRate, tier.Rate)
		lo := decimal.NewFromInt(scale(tier.Threshold, f))
		if provisional.LessThanOrEqual(lo) {
			continue
		}
		hi := provisional
		if i+1 < len(tiers) {
			hi = decimal.Min(provisional, decimal.NewFromInt(scale(tiers[i+1].Threshold, f)))
		}
		taxable = taxable.Add(hi.Sub(lo).Mul(tier.Rate))
	}
	limit := decimal.NewFromInt(benefits).Mul(maxRate)
	return decimal.Min(taxable, limit).Round(0).IntPart()
}

// progressiveTax taxes income through brackets. A bracket covers
// (Min, next.Min]; income exactly on a threshold stays in the lower bracket.
func progressiveTax(income int64, brackets []domain.Bracket) int64 {
	tax := decimal.Zero
	for i, b := range brackets {
		if income <= b.Min {
			break
		}
		upper := income
		if i+1 < len(brackets) {
			upper = min(income, brackets[i+1].Min)
		}
		tax = tax.Add(decimal.NewFromInt(upper - b.Min).Mul(b.Rate))
	}
	return tax.Round(0).IntPart()
}

// stackedTax taxes the slice [base, base+amount) against brackets
func stackedTax(base, amount int64, brackets []domain.Bracket) int64 {
	if amount <= 0 {
		return 0
	}
	top := base + amount
	tax := decimal.Zero
	for i, b := range brackets {
		hi := top
		if i+1 < len(brackets) {
			hi = min(top, brackets[i+1].Min)
		}
		overlap := hi - max(base, b.Min)
		if overlap > 0 {
			tax = tax.Add(decimal.NewFromInt(overlap).Mul(b.Rate))
		}
	}
	return tax.Round(0).IntPart()
}

// rateAt returns the rate of the bracket holding the last dollar of income
func rateAt(income int64, brackets []domain.Bracket) decimal.Decimal {
	rate := decimal.Zero
	for _, b := range brackets {
		if income > b.Min || (b.Min == 0 && income >= 0) {
			rate = b.Rate
		}
	}
	return rate
}
