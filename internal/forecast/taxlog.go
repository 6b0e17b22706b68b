package forecast

import (
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/rgehrsitz/nestegg/internal/tax"
	"github.com/rgehrsitz/nestegg/internal/transaction"
	"github.com/shopspring/decimal"
)

// Amounts is taxable activity summed over some span of months
type Amounts struct {
	Salary          int64
	SocialSecurity  int64
	Withdrawals     int64
	CapitalGains    int64
	PenaltyEligible int64
	TaxFree         int64
	RothConversions int64
}

func (a *Amounts) add(b Amounts) {
	a.Salary += b.Salary
	a.SocialSecurity += b.SocialSecurity
	a.Withdrawals += b.Withdrawals
	a.CapitalGains += b.CapitalGains
	a.PenaltyEligible += b.PenaltyEligible
	a.TaxFree += b.TaxFree
	a.RothConversions += b.RothConversions
}

// Of reads what t reported for month m
func Of(t transaction.Transaction, m domain.Month) Amounts {
	return Amounts{
		Salary:          t.Salary(m),
		SocialSecurity:  t.SocialSecurity(m),
		Withdrawals:     t.Withdrawal(m),
		CapitalGains:    t.TaxableGain(m) + t.RealizedGain(m),
		PenaltyEligible: t.PenaltyEligibleWithdrawal(m),
		TaxFree:         t.TaxFreeWithdrawal(m),
		RothConversions: t.RothConversion(m),
	}
}

// Input converts the amounts into calculator input for year
func (a Amounts) Input(year int) tax.Input {
	return tax.Input{
		Year:                   year,
		Salary:                 a.Salary,
		SocialSecurity:         a.SocialSecurity,
		TaxDeferredWithdrawals: a.Withdrawals,
		CapitalGains:           a.CapitalGains,
		RothConversions:        a.RothConversions,
		PenaltyEligible:        a.PenaltyEligible,
		TaxFreeWithdrawals:     a.TaxFree,
	}
}

// TaxLog accumulates one calendar year of taxable activity, with a per-quarter split
type TaxLog struct {
	Year     int
	Months   int
	Total    Amounts
	Quarters [4]Amounts
	Premiums int64
}

// NewTaxLog starts an empty log for year
func NewTaxLog(year int) *TaxLog {
	return &TaxLog{Year: year}
}

// Add folds one month's total into the log; call it once per month
func (l *TaxLog) Add(m domain.Month, a Amounts) {
	l.Total.add(a)
	l.Quarters[m.Quarter()-1].add(a)
	l.Months++
}

// AddConversion records a year-end Roth conversion made in m
func (l *TaxLog) AddConversion(m domain.Month, amount int64) {
	l.Total.RothConversions += amount
	l.Quarters[m.Quarter()-1].RothConversions += amount
}

// Input is the year-to-date calculator input
func (l *TaxLog) Input() tax.Input {
	return l.Total.Input(l.Year)
}

// Annualized projects the year-to-date figures over the months the forecast
// covers this year: Months logged so far plus remaining months.
func (l *TaxLog) Annualized(remaining int) tax.Input {
	in := l.Input()
	if l.Months <= 0 {
		return in
	}
	factor := decimal.NewFromInt(int64(l.Months + remaining)).Div(decimal.NewFromInt(int64(l.Months)))
	return in.Scale(factor)
}

// TaxRecord is the annual tax row emitted at year-end
type TaxRecord struct {
	Year                  int
	AGI                   int64
	OrdinaryIncome        int64
	TaxableSocialSecurity int64
	CapitalGains          int64
	RothConversions       int64
	OrdinaryTax           int64
	CapitalGainsTax       int64
	PenaltyTax            int64
	TotalTax              int64
	Premiums              int64
	EffectiveRate         decimal.Decimal
	WithdrawalRate        decimal.Decimal
}

func newTaxRecord(b tax.Breakdown, log *TaxLog, startInvestable int64) TaxRecord {
	rec := TaxRecord{
		Year:                  b.Year,
		AGI:                   b.AGI,
		OrdinaryIncome:        b.OrdinaryIncome,
		TaxableSocialSecurity: b.TaxableSocialSecurity,
		CapitalGains:          b.CapitalGains,
		RothConversions:       log.Total.RothConversions,
		OrdinaryTax:           b.OrdinaryTax,
		CapitalGainsTax:       b.CapitalGainsTax,
		PenaltyTax:            b.PenaltyTax,
		TotalTax:              b.TotalTax,
		Premiums:              log.Premiums,
		EffectiveRate:         b.EffectiveRate(),
	}
	if startInvestable > 0 {
		withdrawn := log.Total.Withdrawals + log.Total.TaxFree
		rec.WithdrawalRate = decimal.NewFromInt(withdrawn).Div(decimal.NewFromInt(startInvestable)).Round(4)
	}
	return rec
}
