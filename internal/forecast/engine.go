package forecast

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rgehrsitz/nestegg/internal/account"
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/rgehrsitz/nestegg/internal/economy"
	"github.com/rgehrsitz/nestegg/internal/logging"
	"github.com/rgehrsitz/nestegg/internal/policy"
	"github.com/rgehrsitz/nestegg/internal/tax"
	"github.com/rgehrsitz/nestegg/internal/transaction"
)

// Step is one stage of the monthly pipeline
type Step struct {
	Name string
	Run  func(e *Engine, m domain.Month) error
}

// Pipeline is the fixed order every forecast month goes through. Later steps
// read balances mutated by earlier ones, so reordering changes results.
var Pipeline = []Step{
	{Name: "periodic payment", Run: (*Engine).applyPeriodicPayment},
	{Name: "premiums", Run: (*Engine).applyPremiums},
	{Name: "rules", Run: (*Engine).applyRules},
	{Name: "policy transactions", Run: (*Engine).applyPolicyTransactions},
	{Name: "market gains", Run: (*Engine).applyMarketGains},
	{Name: "refills", Run: (*Engine).applyRefills},
	{Name: "tax drip", Run: (*Engine).withholdTax},
	{Name: "liquidation", Run: (*Engine).applyLiquidation},
	{Name: "tax log", Run: (*Engine).accumulateTaxLog},
	{Name: "quarterly estimate", Run: (*Engine).reestimateTax},
	{Name: "year end", Run: (*Engine).finalizeYear},
	{Name: "snapshot", Run: (*Engine).snapshot},
}

// BalanceRow is one forecast month's closing balances, ordered like
// Result.BucketNames
type BalanceRow struct {
	Month    domain.Month
	Balances []int64
	NetWorth int64
}

// Result is everything one trial produces
type Result struct {
	Seed        int64
	BucketNames []string
	Rows        []BalanceRow
	Taxes       []TaxRecord
	Flows       []account.Flow
}

// YearEndNetWorth returns the net worth of the last row of every year
func (r *Result) YearEndNetWorth() map[int]int64 {
	out := make(map[int]int64)
	for _, row := range r.Rows {
		out[row.Month.Year()] = row.NetWorth
	}
	return out
}

// LifetimeTax sums total tax over every tax record
func (r *Result) LifetimeTax() int64 {
	var total int64
	for _, t := range r.Taxes {
		total += t.TotalTax
	}
	return total
}

// Final returns the last balance row
func (r *Result) Final() (BalanceRow, bool) {
	if len(r.Rows) == 0 {
		return BalanceRow{}, false
	}
	return r.Rows[len(r.Rows)-1], true
}

// Engine runs one trial. It is single-threaded and owns every piece of
// mutable state it touches; build a new one per trial with NewTrial.
type Engine struct {
	cfg       *domain.Configuration
	seed      int64
	months    []domain.Month
	set       *account.Set
	rng       *rand.Rand
	inflation *economy.Inflation
	market    *economy.MarketGains
	calc      *tax.Calculator
	policy    *policy.RefillPolicy
	env       transaction.Env
	logger    logging.Logger

	sepp       *transaction.SEPP
	premiums   []*transaction.Premium
	rules      []transaction.Transaction
	scheduled  []transaction.Transaction
	rmd        *transaction.RMD
	conversion *transaction.RothConversion

	applied         []transaction.Transaction
	log             *TaxLog
	drip            int64
	magi            map[int]int64
	startInvestable int64
	result          *Result
}

// Months returns the forecast months in order
func (e *Engine) Months() []domain.Month {
	return e.months
}

// Set exposes the trial's buckets
func (e *Engine) Set() *account.Set {
	return e.set
}

// Inflation returns the trial's sampled inflation path
func (e *Engine) Inflation() *economy.Inflation {
	return e.inflation
}

// Drip is the current monthly tax withholding
func (e *Engine) Drip() int64 {
	return e.drip
}

// MAGI returns the modified adjusted gross income for year. Supplied history
// wins over computed years.
func (e *Engine) MAGI(year int) (int64, error) {
	if v, ok := e.cfg.MAGIHistory[year]; ok {
		return v, nil
	}
	if v, ok := e.magi[year]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("year %d: %w", year, tax.ErrMissingMAGI)
}

// Run advances the trial through every forecast month. Cancellation is
// checked between months; a cancelled or failed trial returns no result.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.result = &Result{Seed: e.seed, BucketNames: e.set.Names()}
	for _, m := range e.months {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.step(m); err != nil {
			return nil, fmt.Errorf("trial %d: %s: %w", e.seed, m, err)
		}
	}
	e.result.Flows = e.set.Tracker().Flows()
	e.logger.Debugf("trial %d finished: %d months, %d tax years, %d flows",
		e.seed, len(e.result.Rows), len(e.result.Taxes), len(e.result.Flows))
	return e.result, nil
}

func (e *Engine) step(m domain.Month) error {
	e.applied = e.applied[:0]
	if e.log == nil || e.log.Year != m.Year() {
		e.log = NewTaxLog(m.Year())
	}
	for _, s := range Pipeline {
		if err := s.Run(e, m); err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
	}
	return nil
}

func (e *Engine) apply(t transaction.Transaction, m domain.Month) {
	t.Apply(e.set, m)
	e.applied = append(e.applied, t)
}

func (e *Engine) isYearEnd(m domain.Month) bool {
	return m.IsYearEnd() || m == e.months[len(e.months)-1]
}

// 1
func (e *Engine) applyPeriodicPayment(m domain.Month) error {
	if e.sepp != nil {
		e.apply(e.sepp, m)
	}
	return nil
}

// 2. Premiums key on MAGI from LagYears back; a missing year aborts the trial.
func (e *Engine) applyPremiums(m domain.Month) error {
	for _, p := range e.premiums {
		if !p.Active(m) {
			continue
		}
		magi, err := e.MAGI(m.Year() - p.LagYears())
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
		e.log.Premiums += p.Charge(e.set, m, magi)
		e.applied = append(e.applied, p)
	}
	return nil
}

// 3
func (e *Engine) applyRules(m domain.Month) error {
	for _, t := range e.rules {
		e.apply(t, m)
	}
	return nil
}

// 4
func (e *Engine) applyPolicyTransactions(m domain.Month) error {
	for _, t := range e.scheduled {
		e.apply(t, m)
	}
	return nil
}

// 5
func (e *Engine) applyMarketGains(m domain.Month) error {
	e.market.Apply(e.set, m, e.rng)
	return nil
}

// 6
func (e *Engine) applyRefills(m domain.Month) error {
	for _, r := range e.policy.GenerateRefills(e.set, m) {
		e.apply(r, m)
	}
	return nil
}

// 7. Cash may go negative to fund the drip.
func (e *Engine) withholdTax(m domain.Month) error {
	cash, tc := e.set.Cash(), e.set.TaxCollection()
	if e.drip <= 0 || cash == nil || tc == nil {
		return nil
	}
	if moved := cash.Transfer(e.drip, tc, m); moved < e.drip {
		e.logger.Warnf("%s: %q covered %d of the %d tax drip", m, cash.Name, moved, e.drip)
	}
	return nil
}

// 8
func (e *Engine) applyLiquidation(m domain.Month) error {
	for _, r := range e.policy.GenerateLiquidation(e.set, m) {
		e.apply(r, m)
	}
	return nil
}

// 9
func (e *Engine) accumulateTaxLog(m domain.Month) error {
	var month Amounts
	for _, t := range e.applied {
		month.add(Of(t, m))
	}
	e.log.Add(m, month)
	return nil
}

// 10. At the end of each of the first three quarters the year-to-date log is
// annualized and the drip reset to cover the remaining estimate.
func (e *Engine) reestimateTax(m domain.Month) error {
	if m.IsYearEnd() || int(m.Month())%3 != 0 {
		return nil
	}
	remaining := m.MonthsLeftInYear()
	estimate := e.calc.Calculate(e.log.Annualized(remaining)).TotalTax
	var collected int64
	if tc := e.set.TaxCollection(); tc != nil {
		collected = tc.Balance()
	}
	e.drip = max(0, estimate-collected) / int64(remaining)
	e.logger.Debugf("%s: estimated tax %d, collected %d, drip %d", m, estimate, collected, e.drip)
	return nil
}

// 11
func (e *Engine) finalizeYear(m domain.Month) error {
	if !e.isYearEnd(m) {
		return nil
	}
	year := m.Year()
	e.convertToRoth(m)

	final := e.calc.Calculate(e.log.Input())
	e.payTax(final.TotalTax, m)

	e.magi[year] = final.AGI
	e.flagPremiumRisk(year, final.AGI)
	e.result.Taxes = append(e.result.Taxes, newTaxRecord(final, e.log, e.startInvestable))
	if e.rmd != nil {
		e.rmd.ObserveYearEnd(e.set, m)
	}

	e.drip = final.TotalTax / 12
	e.startInvestable = e.set.Investable()
	e.logger.Debugf("%d closed: AGI %d, total tax %d, premiums %d", year, final.AGI, final.TotalTax, e.log.Premiums)
	return nil
}

// convertToRoth fills the bracket headroom allowed by the phase for this
// year's age, bounded by the phase cap and the source balance
func (e *Engine) convertToRoth(m domain.Month) {
	if e.conversion == nil {
		return
	}
	phase, ok := e.conversion.Phase(m.Year())
	if !ok {
		return
	}
	src := e.conversion.Source(e.set, m)
	if src == nil {
		return
	}
	limit := src.Balance()
	if phase.MaxAmount > 0 {
		limit = min(limit, phase.MaxAmount)
	}
	amount := e.calc.MaxConversion(e.log.Input(), phase.MaxRate, limit)
	if amount <= 0 {
		return
	}
	moved := e.conversion.Convert(e.set, m, amount)
	e.log.AddConversion(m, moved)
	e.logger.Debugf("%s: converted %d to Roth at max rate %s", m, moved, phase.MaxRate)
}

// flagPremiumRisk logs when a year's MAGI lands in or near a surcharge tier
func (e *Engine) flagPremiumRisk(year int, magi int64) {
	for _, p := range e.premiums {
		status := p.Risk(magi)
		switch status.Risk {
		case tax.PremiumRiskBreach:
			e.logger.Infof("%d MAGI %d reaches %s tier %d (%d/month from %d)",
				year, magi, p.Name(), status.Tier, status.Monthly, year+p.LagYears())
		case tax.PremiumRiskWarning:
			e.logger.Infof("%d MAGI %d is %d below the next %s threshold",
				year, magi, status.DistanceToNext, p.Name())
		}
	}
}

// payTax settles the year's liability from Tax Collection first and Cash for
// the rest, then sweeps any surplus in Tax Collection back to Cash. Whatever
// neither can cover is logged as unpaid.
func (e *Engine) payTax(total int64, m domain.Month) {
	cash, tc := e.set.Cash(), e.set.TaxCollection()
	var paid int64
	if tc != nil {
		paid = tc.Withdraw(total, "Taxes", m)
	}
	if rest := total - paid; rest > 0 && cash != nil {
		paid += cash.Withdraw(rest, "Taxes", m)
	}
	if unpaid := total - paid; unpaid > 0 {
		e.logger.Warnf("%d: %d of %d tax left unpaid", m.Year(), unpaid, total)
	}
	if tc != nil && cash != nil && tc.Balance() > 0 {
		tc.Transfer(tc.Balance(), cash, m)
	}
}

// 12
func (e *Engine) snapshot(m domain.Month) error {
	e.result.Rows = append(e.result.Rows, BalanceRow{
		Month:    m,
		Balances: e.set.Balances(),
		NetWorth: e.set.NetWorth(),
	})
	return nil
}
