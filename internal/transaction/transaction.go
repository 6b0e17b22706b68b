package transaction

import (
	"github.com/rgehrsitz/nestegg/internal/account"
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/rgehrsitz/nestegg/internal/economy"
	"github.com/shopspring/decimal"
)

// Transaction is anything that moves money in a month and reports what the
// tax calculator needs to know about it. Query methods answer for the month
// most recently applied and return zero for any other month.
type Transaction interface {
	Name() string
	Apply(set *account.Set, m domain.Month)

	Salary(m domain.Month) int64
	SocialSecurity(m domain.Month) int64
	Withdrawal(m domain.Month) int64
	TaxableGain(m domain.Month) int64
	RealizedGain(m domain.Month) int64
	PenaltyEligibleWithdrawal(m domain.Month) int64
	TaxFreeWithdrawal(m domain.Month) int64
	RothConversion(m domain.Month) int64
}

// Env carries the trial-wide collaborators transactions consult
type Env struct {
	Inflation         *economy.Inflation
	Eligibility       domain.Month
	GainEstimateRatio decimal.Decimal
}

// EligibilityReached reports whether penalty-free withdrawals are allowed in m
func (e Env) EligibilityReached(m domain.Month) bool {
	return m >= e.Eligibility
}

// Gated reports whether b may not be drawn from without penalty in m
func (e Env) Gated(b *account.Bucket, m domain.Month) bool {
	return b.Type.IsTaxAdvantaged() && !e.EligibilityReached(m)
}

// adjust inflates amount from fromYear to toYear by category; a nil path is flat
func (e Env) adjust(amount int64, category string, fromYear, toYear int) int64 {
	if e.Inflation == nil {
		return amount
	}
	return e.Inflation.Adjust(amount, category, fromYear, toYear)
}

// EstimateGain is the taxable gain in a withdrawal from a taxable bucket.
// Buckets with seeded basis use it; others fall back to a fixed ratio.
func EstimateGain(b *account.Bucket, amount, basisRemoved int64, ratio decimal.Decimal) int64 {
	if amount <= 0 || b.Type != domain.BucketTaxable {
		return 0
	}
	if b.TracksBasis {
		return max(0, amount-basisRemoved)
	}
	return decimal.NewFromInt(amount).Mul(ratio).Round(0).IntPart()
}

// tally holds one month's reported amounts. Embedding it gives a transaction
// every query method, all zero unless the transaction records something.
type tally struct {
	month           domain.Month
	salary          int64
	socialSecurity  int64
	withdrawal      int64
	taxableGain     int64
	realizedGain    int64
	penaltyEligible int64
	taxFree         int64
	roth            int64
}

func (t *tally) reset(m domain.Month) {
	*t = tally{month: m}
}

func (t *tally) at(m domain.Month, v int64) int64 {
	if m != t.month {
		return 0
	}
	return v
}

func (t *tally) Salary(m domain.Month) int64         { return t.at(m, t.salary) }
func (t *tally) SocialSecurity(m domain.Month) int64 { return t.at(m, t.socialSecurity) }
func (t *tally) Withdrawal(m domain.Month) int64     { return t.at(m, t.withdrawal) }
func (t *tally) TaxableGain(m domain.Month) int64    { return t.at(m, t.taxableGain) }
func (t *tally) RealizedGain(m domain.Month) int64   { return t.at(m, t.realizedGain) }
func (t *tally) PenaltyEligibleWithdrawal(m domain.Month) int64 {
	return t.at(m, t.penaltyEligible)
}
func (t *tally) TaxFreeWithdrawal(m domain.Month) int64 { return t.at(m, t.taxFree) }
func (t *tally) RothConversion(m domain.Month) int64    { return t.at(m, t.roth) }

// recordWithdrawal attributes money leaving b to the matching tax query
func (t *tally) recordWithdrawal(b *account.Bucket, amount, basisRemoved int64, penalty bool, ratio decimal.Decimal) {
	if amount <= 0 {
		return
	}
	switch b.Type {
	case domain.BucketTaxDeferred:
		t.withdrawal += amount
		if penalty {
			t.penaltyEligible += amount
		}
	case domain.BucketTaxable:
		t.taxableGain += EstimateGain(b, amount, basisRemoved, ratio)
	case domain.BucketTaxFree:
		t.taxFree += amount
	}
}

// SplitByPercent divides amount across allocations. When the percentages sum
// to one the last allocation absorbs rounding so nothing is lost.
func SplitByPercent(amount int64, allocations []domain.Allocation) []int64 {
	shares := make([]int64, len(allocations))
	if len(allocations) == 0 {
		return shares
	}
	total := decimal.Zero
	var allocated int64
	for i, a := range allocations {
		shares[i] = decimal.NewFromInt(amount).Mul(a.Percent).Round(0).IntPart()
		allocated += shares[i]
		total = total.Add(a.Percent)
	}
	if total.Equal(decimal.NewFromInt(1)) {
		shares[len(shares)-1] += amount - allocated
	}
	return shares
}
