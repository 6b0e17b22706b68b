package transaction

import (
	"github.com/rgehrsitz/nestegg/internal/account"
	"github.com/rgehrsitz/nestegg/internal/domain"
)

// Fixed applies one-off rows on their month
type Fixed struct {
	tally
	entries []domain.FixedEntry
	env     Env
}

// NewFixed builds the fixed-row transaction
func NewFixed(entries []domain.FixedEntry, env Env) *Fixed {
	return &Fixed{entries: entries, env: env}
}

func (f *Fixed) Name() string { return "fixed" }

func (f *Fixed) Apply(set *account.Set, m domain.Month) {
	f.reset(m)
	for _, e := range f.entries {
		if e.Month != m {
			continue
		}
		applyRule(&f.tally, set, m, e.Bucket, e.Amount, e.Description, f.env, f.Name())
	}
}

// Recurring applies rows every month between their start and end
type Recurring struct {
	tally
	entries []domain.RecurringEntry
	env     Env
}

// NewRecurring builds the recurring-row transaction
func NewRecurring(entries []domain.RecurringEntry, env Env) *Recurring {
	return &Recurring{entries: entries, env: env}
}

func (r *Recurring) Name() string { return "recurring" }

func (r *Recurring) Apply(set *account.Set, m domain.Month) {
	r.reset(m)
	for _, e := range r.entries {
		if !e.Active(m) {
			continue
		}
		amount := r.env.adjust(e.Amount, e.Inflation, e.Start.Year(), m.Year())
		applyRule(&r.tally, set, m, e.Bucket, amount, e.Description, r.env, r.Name())
	}
}

// applyRule deposits positive amounts and withdraws negative ones. Before the
// penalty-free age a withdrawal aimed at a tax-advantaged bucket is paid from
// cash instead, and any shortfall in the named bucket is pulled from cash.
func applyRule(t *tally, set *account.Set, m domain.Month, bucket string, amount int64, label string, env Env, caller string) {
	b := set.Find(bucket, m, caller)
	if b == nil || amount == 0 {
		return
	}
	if amount > 0 {
		b.Deposit(amount, label, m)
		return
	}

	want := -amount
	cash := set.Cash()
	if env.Gated(b, m) {
		if cash == nil {
			set.Logger().Warnf("%s: %q is gated until %s and no cash bucket exists", caller, b.Name, env.Eligibility)
			return
		}
		cash.Withdraw(want, label, m)
		return
	}

	got, basis := b.WithdrawDetailed(want, label, m)
	t.recordWithdrawal(b, got, basis, false, env.GainEstimateRatio)
	if short := want - got; short > 0 && cash != nil && cash != b {
		cash.Withdraw(short, label, m)
	}
}
