package tax

import (
	"github.com/shopspring/decimal"
)

// Headroom is the additional taxable ordinary income that fits before the
// first bracket taxed above maxRate. When no bracket is above maxRate the
// search is unbounded and the answer is zero, meaning "take no action".
func (c *Calculator) Headroom(in Input, maxRate decimal.Decimal) int64 {
	current := c.Calculate(in)
	for _, b := range c.OrdinaryBrackets(in.Year) {
		if b.Rate.GreaterThan(maxRate) {
			return max(0, b.Min-current.TaxableOrdinaryIncome)
		}
	}
	return 0
}

// MaxConversion picks the largest conversion up to min(Headroom, limit) whose
// incremental tax divided by the conversion stays at or below maxRate.
// Social Security taxability and capital-gains stacking can push the
// effective rate above the bracket rate; the search backs off until the
// bound holds.
func (c *Calculator) MaxConversion(in Input, maxRate decimal.Decimal, limit int64) int64 {
	candidate := min(c.Headroom(in, maxRate), limit)
	if candidate <= 0 {
		return 0
	}
	baseTax := c.Calculate(in).IncomeTax()
	fits := func(amount int64) bool {
		with := in
		with.RothConversions += amount
		incremental := c.Calculate(with).IncomeTax() - baseTax
		return decimal.NewFromInt(incremental).LessThanOrEqual(maxRate.Mul(decimal.NewFromInt(amount)))
	}
	if fits(candidate) {
		return candidate
	}

	lo, hi := int64(0), candidate
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if fits(mid) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

// MarginalRate is the incremental tax per unit of extra conversion
func (c *Calculator) MarginalRate(in Input, amount int64) decimal.Decimal {
	if amount <= 0 {
		return decimal.Zero
	}
	with := in
	with.RothConversions += amount
	incremental := c.Calculate(with).IncomeTax() - c.Calculate(in).IncomeTax()
	return decimal.NewFromInt(incremental).Div(decimal.NewFromInt(amount))
}
