package transaction

import (
	"github.com/rgehrsitz/nestegg/internal/account"
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/shopspring/decimal"
)

// UniformLifetimeDivisors is the IRS Uniform Lifetime Table (2022 and later)
func UniformLifetimeDivisors() map[int]decimal.Decimal {
	return map[int]decimal.Decimal{
		72:  decimal.NewFromFloat(27.4),
		73:  decimal.NewFromFloat(26.5),
		74:  decimal.NewFromFloat(25.5),
		75:  decimal.NewFromFloat(24.6),
		76:  decimal.NewFromFloat(23.7),
		77:  decimal.NewFromFloat(22.9),
		78:  decimal.NewFromFloat(22.0),
		79:  decimal.NewFromFloat(21.1),
		80:  decimal.NewFromFloat(20.2),
		81:  decimal.NewFromFloat(19.4),
		82:  decimal.NewFromFloat(18.5),
		83:  decimal.NewFromFloat(17.7),
		84:  decimal.NewFromFloat(16.8),
		85:  decimal.NewFromFloat(16.0),
		86:  decimal.NewFromFloat(15.2),
		87:  decimal.NewFromFloat(14.4),
		88:  decimal.NewFromFloat(13.7),
		89:  decimal.NewFromFloat(12.9),
		90:  decimal.NewFromFloat(12.2),
		91:  decimal.NewFromFloat(11.5),
		92:  decimal.NewFromFloat(10.8),
		93:  decimal.NewFromFloat(10.1),
		94:  decimal.NewFromFloat(9.5),
		95:  decimal.NewFromFloat(8.9),
		96:  decimal.NewFromFloat(8.4),
		97:  decimal.NewFromFloat(7.8),
		98:  decimal.NewFromFloat(7.3),
		99:  decimal.NewFromFloat(6.8),
		100: decimal.NewFromFloat(6.4),
		101: decimal.NewFromFloat(6.0),
		102: decimal.NewFromFloat(5.6),
		103: decimal.NewFromFloat(5.2),
		104: decimal.NewFromFloat(4.9),
		105: decimal.NewFromFloat(4.6),
		106: decimal.NewFromFloat(4.3),
		107: decimal.NewFromFloat(4.1),
		108: decimal.NewFromFloat(3.9),
		109: decimal.NewFromFloat(3.7),
		110: decimal.NewFromFloat(3.5),
		111: decimal.NewFromFloat(3.4),
		112: decimal.NewFromFloat(3.3),
		113: decimal.NewFromFloat(3.1),
		114: decimal.NewFromFloat(3.0),
		115: decimal.NewFromFloat(2.9),
		116: decimal.NewFromFloat(2.8),
		117: decimal.NewFromFloat(2.7),
		118: decimal.NewFromFloat(2.5),
		119: decimal.NewFromFloat(2.3),
		120: decimal.NewFromFloat(2.0),
	}
}

// RMD takes the required minimum distribution from tax-deferred buckets.
// The annual amount is fixed in the first month of each year from the source
// balance at the end of the prior year, then paid either in one configured
// month or spread evenly over the rest of the year.
type RMD struct {
	tally
	cfg      domain.RMDConfig
	profile  domain.Profile
	divisors map[int]decimal.Decimal

	yearEnd   map[int]int64
	year      int
	annual    int64
	remaining int64
}

// NewRMD builds the RMD transaction; configured divisors override the table
func NewRMD(cfg domain.RMDConfig, profile domain.Profile) *RMD {
	divisors := UniformLifetimeDivisors()
	for age, d := range cfg.Divisors {
		divisors[age] = d
	}
	return &RMD{cfg: cfg, profile: profile, divisors: divisors, yearEnd: make(map[int]int64)}
}

func (r *RMD) Name() string { return "rmd" }

// Divisor returns the distribution period for age; ages past the table use its last entry
func (r *RMD) Divisor(age int) (decimal.Decimal, bool) {
	if d, ok := r.divisors[age]; ok {
		return d, true
	}
	oldest := -1
	for a := range r.divisors {
		if a > oldest {
			oldest = a
		}
	}
	if oldest >= 0 && age > oldest {
		return r.divisors[oldest], true
	}
	return decimal.Zero, false
}

func (r *RMD) sources(set *account.Set, m domain.Month) []*account.Bucket {
	if len(r.cfg.SourceBuckets) == 0 {
		return set.OfType(domain.BucketTaxDeferred)
	}
	var out []*account.Bucket
	for _, name := range r.cfg.SourceBuckets {
		if b := set.Find(name, m, r.Name()); b != nil {
			out = append(out, b)
		}
	}
	return out
}

// ObserveYearEnd records the source balance at the close of m's year; the
// next year's distribution is sized from it
func (r *RMD) ObserveYearEnd(set *account.Set, m domain.Month) {
	var total int64
	for _, b := range r.sources(set, m) {
		total += b.Balance()
	}
	r.yearEnd[m.Year()] = total
}

// Annual is the distribution fixed for the current year
func (r *RMD) Annual() int64 {
	return r.annual
}

func (r *RMD) Apply(set *account.Set, m domain.Month) {
	r.reset(m)
	age := r.profile.AgeAtYearEnd(m.Year())
	if age < r.cfg.StartAge {
		return
	}
	sources := r.sources(set, m)

	if r.year != m.Year() {
		r.year = m.Year()
		balance, ok := r.yearEnd[m.Year()-1]
		if !ok {
			for _, b := range sources {
				balance += b.Balance()
			}
		}
		r.annual = 0
		if divisor, ok := r.Divisor(age); ok && balance > 0 {
			r.annual = decimal.NewFromInt(balance).Div(divisor).Round(0).IntPart()
		}
		r.remaining = r.annual
	}
	if r.remaining <= 0 {
		return
	}

	var due int64
	switch {
	case r.cfg.Month == 0:
		due = r.remaining / int64(m.MonthsLeftInYear()+1)
		if m.IsYearEnd() {
			due = r.remaining
		}
	case int(m.Month()) >= r.cfg.Month:
		due = r.remaining
	default:
		return
	}

	moved := distribute(set, m, sources, r.cfg.Targets, due, "RMD", r.Name())
	r.remaining -= moved
	r.withdrawal += moved
}

// distribute moves amount from sources (in order) to targets split by percent
func distribute(set *account.Set, m domain.Month, sources []*account.Bucket, targets []domain.Allocation, amount int64, label, caller string) int64 {
	if amount <= 0 {
		return 0
	}
	if len(targets) == 0 {
		var moved int64
		for _, src := range sources {
			moved += src.Withdraw(amount-moved, label, m)
			if moved >= amount {
				break
			}
		}
		return moved
	}

	var moved int64
	for i, share := range SplitByPercent(amount, targets) {
		target := set.Find(targets[i].Bucket, m, caller)
		if target == nil {
			continue
		}
		left := share
		for _, src := range sources {
			if left <= 0 {
				break
			}
			got, _ := src.TransferDetailed(left, target, m, account.FlowTransfer)
			left -= got
			moved += got
		}
	}
	return moved
}

// SEPP pays a substantially equal periodic payment computed once by the
// amortization method. SEPP withdrawals are exempt from the early-withdrawal
// penalty.
type SEPP struct {
	tally
	cfg     domain.SEPPConfig
	monthly int64
	started bool
}

// NewSEPP builds the SEPP transaction
func NewSEPP(cfg domain.SEPPConfig) *SEPP {
	return &SEPP{cfg: cfg}
}

func (s *SEPP) Name() string { return "sepp" }

// AmortizedAnnual is B·r / (1 − (1+r)^−n)
func AmortizedAnnual(balance int64, rate, lifeExpectancy decimal.Decimal) int64 {
	if balance <= 0 || lifeExpectancy.Sign() <= 0 {
		return 0
	}
	b := decimal.NewFromInt(balance)
	if rate.IsZero() {
		return b.Div(lifeExpectancy).Round(0).IntPart()
	}
	n := lifeExpectancy.Round(0).IntPart()
	growth := decimal.NewFromInt(1).Add(rate).Pow(decimal.NewFromInt(n))
	discount := decimal.NewFromInt(1).Sub(decimal.NewFromInt(1).Div(growth))
	if discount.Sign() <= 0 {
		return 0
	}
	return b.Mul(rate).Div(discount).Round(0).IntPart()
}

// Monthly returns the fixed monthly payment once the plan has started
func (s *SEPP) Monthly() int64 {
	return s.monthly
}

func (s *SEPP) Apply(set *account.Set, m domain.Month) {
	s.reset(m)
	if m < s.cfg.Start || (s.cfg.End != 0 && m > s.cfg.End) {
		return
	}
	src := set.Find(s.cfg.Source, m, s.Name())
	dst := set.Find(s.cfg.Target, m, s.Name())
	if src == nil || dst == nil {
		return
	}
	if !s.started {
		s.started = true
		annual := AmortizedAnnual(src.Balance(), s.cfg.InterestRate, s.cfg.LifeExpectancy)
		s.monthly = decimal.NewFromInt(annual).Div(decimal.NewFromInt(12)).Round(0).IntPart()
	}
	moved, _ := src.TransferDetailed(s.monthly, dst, m, account.FlowTransfer)
	s.withdrawal = moved
}

// RothConversion moves money from a tax-deferred bucket to a tax-free one at
// year-end. The engine sizes the amount; the conversion is taxed as ordinary
// income but is never penalty-eligible.
type RothConversion struct {
	tally
	cfg     domain.RothConversionConfig
	profile domain.Profile
}

// NewRothConversion builds the conversion transaction
func NewRothConversion(cfg domain.RothConversionConfig, profile domain.Profile) *RothConversion {
	return &RothConversion{cfg: cfg, profile: profile}
}

func (r *RothConversion) Name() string { return "roth conversion" }

// Phase returns the bounds that apply in year
func (r *RothConversion) Phase(year int) (domain.RothPhase, bool) {
	return r.cfg.PhaseFor(r.profile.AgeAtYearEnd(year))
}

// Source returns the bucket being converted from
func (r *RothConversion) Source(set *account.Set, m domain.Month) *account.Bucket {
	return set.Find(r.cfg.Source, m, r.Name())
}

// Apply only clears the month's report; conversions happen through Convert
func (r *RothConversion) Apply(set *account.Set, m domain.Month) {
	r.reset(m)
}

// Convert moves up to amount and returns what moved
func (r *RothConversion) Convert(set *account.Set, m domain.Month, amount int64) int64 {
	if r.month != m {
		r.reset(m)
	}
	src := set.Find(r.cfg.Source, m, r.Name())
	dst := set.Find(r.cfg.Target, m, r.Name())
	if src == nil || dst == nil || amount <= 0 {
		return 0
	}
	moved, _ := src.TransferDetailed(amount, dst, m, account.FlowTransfer)
	r.roth += moved
	return moved
}
