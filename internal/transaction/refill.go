package transaction

import (
	"github.com/rgehrsitz/nestegg/internal/account"
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/rgehrsitz/nestegg/internal/tax"
	"github.com/shopspring/decimal"
)

// Refill moves money between buckets on behalf of the refill and liquidation
// policies. Taxable sources report an estimated gain, tax-deferred sources a
// withdrawal (penalty-eligible when flagged), tax-free sources a tax-free
// withdrawal.
type Refill struct {
	tally
	Source          string
	Target          string
	Amount          int64
	PenaltyEligible bool
	env             Env
	applied         int64
}

// NewRefill plans a single transfer
func NewRefill(source, target string, amount int64, penaltyEligible bool, env Env) *Refill {
	return &Refill{Source: source, Target: target, Amount: amount, PenaltyEligible: penaltyEligible, env: env}
}

func (r *Refill) Name() string { return "refill" }

// Applied is the amount that actually reached the target
func (r *Refill) Applied() int64 {
	return r.applied
}

func (r *Refill) Apply(set *account.Set, m domain.Month) {
	r.reset(m)
	r.applied = 0
	src := set.Find(r.Source, m, r.Name())
	dst := set.Find(r.Target, m, r.Name())
	if src == nil || dst == nil {
		return
	}
	fromSource, fromCash, basis := src.TransferWithCashFallback(r.Amount, dst, set.Cash(), m, account.FlowRefill)
	r.applied = fromSource + fromCash
	r.recordWithdrawal(src, fromSource, basis, r.PenaltyEligible, r.env.GainEstimateRatio)
}

// GainRealization steps up the basis of taxable holdings by a share of their
// unrealized gain each month, modelling reinvested distributions. Only
// buckets with seeded basis take part.
type GainRealization struct {
	tally
	cfg domain.GainRealizationConfig
}

// NewGainRealization builds the realization transaction
func NewGainRealization(cfg domain.GainRealizationConfig) *GainRealization {
	return &GainRealization{cfg: cfg}
}

func (g *GainRealization) Name() string { return "gain realization" }

func (g *GainRealization) Apply(set *account.Set, m domain.Month) {
	g.reset(m)
	fraction := g.cfg.AnnualRate.Div(decimal.NewFromInt(12))
	for _, name := range g.cfg.Buckets {
		b := set.Find(name, m, g.Name())
		if b == nil || b.Type != domain.BucketTaxable || !b.TracksBasis {
			continue
		}
		g.realizedGain += b.RealizeGains(fraction)
	}
}

// Premium charges a means-tested premium from a bucket. The engine resolves
// the lagged MAGI and calls Charge; Apply alone does nothing.
type Premium struct {
	tally
	label    string
	schedule domain.PremiumSchedule
	joint    bool
	env      Env
	charged  int64
}

// NewPremium builds a premium charge
func NewPremium(label string, schedule domain.PremiumSchedule, joint bool, env Env) *Premium {
	return &Premium{label: label, schedule: schedule, joint: joint, env: env}
}

func (p *Premium) Name() string { return p.label }

// Active reports whether the premium is due in m
func (p *Premium) Active(m domain.Month) bool {
	return p.schedule.Active(m)
}

// LagYears is how many years back the MAGI lookup reaches
func (p *Premium) LagYears() int {
	return p.schedule.LagYears
}

// Risk places a year's MAGI on the schedule. The engine uses it to flag
// years that will raise premiums LagYears later.
func (p *Premium) Risk(magi int64) tax.RiskStatus {
	return tax.AnalyzeRisk(p.schedule, magi, p.joint)
}

func (p *Premium) Apply(set *account.Set, m domain.Month) {
	p.reset(m)
	p.charged = 0
}

// Charge withdraws the monthly premium for magi and returns the amount taken,
// including any part a cash fallback covered
func (p *Premium) Charge(set *account.Set, m domain.Month, magi int64) int64 {
	p.Apply(set, m)
	if !p.Active(m) {
		return 0
	}
	b := set.Find(p.schedule.Bucket, m, p.Name())
	if b == nil {
		return 0
	}
	got, fromCash, basis := b.WithdrawWithCashFallback(tax.MonthlyPremium(p.schedule, magi, p.joint), set.Cash(), p.label, m)
	p.recordWithdrawal(b, got, basis, false, p.env.GainEstimateRatio)
	p.charged = got + fromCash
	return p.charged
}
