package transaction

import (
	"github.com/rgehrsitz/nestegg/internal/account"
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/shopspring/decimal"
)

// Property pays a mortgage and the carrying costs of a home while the
// property bucket holds value. Once the property is liquidated any remaining
// principal is paid off and costs stop.
type Property struct {
	tally
	cfg       domain.PropertyConfig
	env       Env
	principal int64
	baseYear  int
}

// NewProperty builds the property transaction
func NewProperty(cfg domain.PropertyConfig, env Env) *Property {
	p := &Property{cfg: cfg, env: env}
	if cfg.Mortgage != nil {
		p.principal = cfg.Mortgage.Principal
	}
	if cfg.Start != 0 {
		p.baseYear = cfg.Start.Year()
	}
	return p
}

func (p *Property) Name() string { return "property" }

// Principal is the outstanding mortgage balance
func (p *Property) Principal() int64 {
	return p.principal
}

func (p *Property) Apply(set *account.Set, m domain.Month) {
	p.reset(m)
	if m < p.cfg.Start {
		return
	}
	if p.baseYear == 0 {
		p.baseYear = m.Year()
	}
	home := set.Find(p.cfg.Bucket, m, p.Name())
	payFrom := set.Find(p.cfg.PayFrom, m, p.Name())
	if home == nil || payFrom == nil {
		return
	}

	if home.Balance() <= 0 {
		if p.principal > 0 {
			p.pay(set, payFrom, p.principal, "Mortgage Payoff", m)
			p.principal = 0
		}
		return
	}

	if p.cfg.Mortgage != nil && p.principal > 0 {
		monthlyRate := p.cfg.Mortgage.AnnualRate.Div(decimal.NewFromInt(12))
		interest := decimal.NewFromInt(p.principal).Mul(monthlyRate).Round(0).IntPart()
		payment := min(p.cfg.Mortgage.MonthlyPayment, p.principal+interest)
		p.principal -= payment - interest
		p.pay(set, payFrom, payment, "Mortgage", m)
	}

	for _, cost := range []struct {
		label  string
		amount int64
	}{
		{"Property Tax", p.cfg.MonthlyTax},
		{"Home Insurance", p.cfg.MonthlyInsurance},
		{"Home Maintenance", p.cfg.MonthlyMaintenance},
	} {
		if cost.amount <= 0 {
			continue
		}
		p.pay(set, payFrom, p.env.adjust(cost.amount, p.cfg.Inflation, p.baseYear, m.Year()), cost.label, m)
	}
}

// pay draws a housing cost from the paying bucket. Only the part the bucket
// supplied counts toward its tax attribution; a cash fallback covers the rest.
func (p *Property) pay(set *account.Set, from *account.Bucket, amount int64, label string, m domain.Month) {
	got, _, basis := from.WithdrawWithCashFallback(amount, set.Cash(), label, m)
	p.recordWithdrawal(from, got, basis, false, p.env.GainEstimateRatio)
}

// Rent is paid only while the condition bucket is empty, typically after the
// home has been sold. An empty condition bucket name makes it unconditional.
type Rent struct {
	tally
	cfg domain.RentConfig
	env Env
}

// NewRent builds the rent transaction
func NewRent(cfg domain.RentConfig, env Env) *Rent {
	return &Rent{cfg: cfg, env: env}
}

func (r *Rent) Name() string { return "rent" }

func (r *Rent) Apply(set *account.Set, m domain.Month) {
	r.reset(m)
	if m < r.cfg.Start {
		return
	}
	if r.cfg.ConditionBucket != "" {
		cond := set.Find(r.cfg.ConditionBucket, m, r.Name())
		if cond == nil || cond.Balance() > 0 {
			return
		}
	}
	payFrom := set.Find(r.cfg.PayFrom, m, r.Name())
	if payFrom == nil {
		return
	}
	amount := r.env.adjust(r.cfg.MonthlyAmount, r.cfg.Inflation, r.cfg.Start.Year(), m.Year())
	got, _, basis := payFrom.WithdrawWithCashFallback(amount, set.Cash(), "Rent", m)
	r.recordWithdrawal(payFrom, got, basis, false, r.env.GainEstimateRatio)
}
