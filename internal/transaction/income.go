package transaction

import (
	"github.com/rgehrsitz/nestegg/internal/account"
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/rgehrsitz/nestegg/internal/economy"
	"github.com/shopspring/decimal"
)

// Salary pays employment income until the retirement month. The annual gross
// is paid in equal monthly parts with the division remainder in December.
// Shares allocated to tax-deferred buckets are pre-tax and are not reported
// as taxable salary.
type Salary struct {
	tally
	cfg       domain.SalaryConfig
	firstYear int
}

// NewSalary builds the salary transaction
func NewSalary(cfg domain.SalaryConfig) *Salary {
	s := &Salary{cfg: cfg}
	if cfg.Start != 0 {
		s.firstYear = cfg.Start.Year()
	}
	return s
}

func (s *Salary) Name() string { return "salary" }

// Active reports whether salary is paid in m
func (s *Salary) Active(m domain.Month) bool {
	if s.cfg.Start != 0 && m < s.cfg.Start {
		return false
	}
	return s.cfg.RetirementMonth == 0 || m < s.cfg.RetirementMonth
}

// annualGross applies the raise rate once per year since the first paid year
func (s *Salary) annualGross(year int) int64 {
	years := year - s.firstYear
	if years <= 0 || s.cfg.RaiseRate.IsZero() {
		return s.cfg.AnnualGross
	}
	growth := decimal.NewFromInt(1).Add(s.cfg.RaiseRate).Pow(decimal.NewFromInt(int64(years)))
	return decimal.NewFromInt(s.cfg.AnnualGross).Mul(growth).Round(0).IntPart()
}

// MonthlyPay is the base pay for m, excluding any bonus
func (s *Salary) MonthlyPay(m domain.Month) int64 {
	annual := s.annualGross(m.Year())
	pay := annual / 12
	if m.IsYearEnd() {
		pay += annual % 12
	}
	return pay
}

func (s *Salary) Apply(set *account.Set, m domain.Month) {
	s.reset(m)
	if !s.Active(m) {
		return
	}
	if s.firstYear == 0 {
		s.firstYear = m.Year()
	}

	pay := s.MonthlyPay(m)
	taxable := pay
	for i, share := range SplitByPercent(pay, s.cfg.Allocations) {
		b := set.Find(s.cfg.Allocations[i].Bucket, m, s.Name())
		if b == nil {
			continue
		}
		b.Deposit(share, "Salary", m)
		if b.Type == domain.BucketTaxDeferred {
			taxable -= share
		}
	}

	if s.cfg.AnnualBonus > 0 && int(m.Month()) == s.cfg.BonusMonth && len(s.cfg.Allocations) > 0 {
		if b := set.Find(s.cfg.Allocations[0].Bucket, m, s.Name()); b != nil {
			b.Deposit(s.cfg.AnnualBonus, "Bonus", m)
			if b.Type != domain.BucketTaxDeferred {
				taxable += s.cfg.AnnualBonus
			}
		}
	}
	s.salary = taxable
}

// Unemployment pays a monthly benefit for a fixed number of months. The
// benefit is ordinary income and is reported through Salary.
type Unemployment struct {
	tally
	cfg domain.UnemploymentConfig
}

// NewUnemployment builds the unemployment transaction
func NewUnemployment(cfg domain.UnemploymentConfig) *Unemployment {
	return &Unemployment{cfg: cfg}
}

func (u *Unemployment) Name() string { return "unemployment" }

func (u *Unemployment) Apply(set *account.Set, m domain.Month) {
	u.reset(m)
	if m < u.cfg.Start || m >= u.cfg.Start.Add(u.cfg.Months) {
		return
	}
	b := set.Find(u.cfg.Bucket, m, u.Name())
	if b == nil {
		return
	}
	b.Deposit(u.cfg.MonthlyAmount, "Unemployment", m)
	u.salary = u.cfg.MonthlyAmount
}

// SocialSecurity deposits a share of the monthly benefit and reports the full
// benefit for taxation
type SocialSecurity struct {
	tally
	cfg domain.SocialSecurityConfig
	env Env
}

// NewSocialSecurity builds the Social Security transaction
func NewSocialSecurity(cfg domain.SocialSecurityConfig, env Env) *SocialSecurity {
	return &SocialSecurity{cfg: cfg, env: env}
}

func (s *SocialSecurity) Name() string { return "social security" }

// Benefit is the gross monthly benefit in m, including cost-of-living growth
func (s *SocialSecurity) Benefit(m domain.Month) int64 {
	if m < s.cfg.Start {
		return 0
	}
	if !s.cfg.COLA {
		return s.cfg.MonthlyAmount
	}
	return s.env.adjust(s.cfg.MonthlyAmount, economy.General, s.cfg.Start.Year(), m.Year())
}

func (s *SocialSecurity) Apply(set *account.Set, m domain.Month) {
	s.reset(m)
	benefit := s.Benefit(m)
	if benefit <= 0 {
		return
	}
	b := set.Find(s.cfg.Bucket, m, s.Name())
	if b == nil {
		return
	}
	deposit := decimal.NewFromInt(benefit).Mul(s.cfg.Deposited()).Round(0).IntPart()
	b.Deposit(deposit, "Social Security", m)
	s.socialSecurity = benefit
}
