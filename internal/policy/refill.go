package policy

import (
	"github.com/rgehrsitz/nestegg/internal/account"
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/rgehrsitz/nestegg/internal/transaction"
)

// RefillPolicy turns bucket balances into planned transfers. It never moves
// money itself; the engine applies what it returns.
type RefillPolicy struct {
	refill      domain.RefillConfig
	liquidation domain.LiquidationConfig
	env         transaction.Env
}

// NewRefillPolicy builds a policy from configuration
func NewRefillPolicy(refill domain.RefillConfig, liquidation domain.LiquidationConfig, env transaction.Env) *RefillPolicy {
	return &RefillPolicy{refill: refill, liquidation: liquidation, env: env}
}

// GenerateRefills plans transfers for every target below its threshold.
// Sources are tried in order. A source that is still age-gated is skipped.
// A source allowing cash fallback is asked for the full remaining need;
// otherwise it is asked for no more than its balance.
func (p *RefillPolicy) GenerateRefills(set *account.Set, m domain.Month) []*transaction.Refill {
	var planned []*transaction.Refill
	for _, target := range p.refill.Targets {
		tb := set.Find(target.Bucket, m, "refill policy")
		if tb == nil || tb.Balance() >= target.Threshold {
			continue
		}
		needed := target.Amount
		for _, name := range target.Sources {
			if needed <= 0 {
				break
			}
			src := set.Find(name, m, "refill policy")
			if src == nil || src == tb || p.env.Gated(src, m) {
				continue
			}
			amount := needed
			if !src.AllowCashFallback {
				amount = min(needed, max(0, src.Balance()))
			}
			if amount <= 0 {
				continue
			}
			planned = append(planned, transaction.NewRefill(src.Name, tb.Name, amount, false, p.env))
			needed -= amount
		}
	}
	return planned
}

// GenerateLiquidation plans emergency transfers when cash is below the
// liquidation threshold. Property is sold in full and split across the
// configured targets; other buckets give up to the remaining shortfall.
// Tax-deferred draws before the penalty-free age are flagged penalty-eligible.
func (p *RefillPolicy) GenerateLiquidation(set *account.Set, m domain.Month) []*transaction.Refill {
	cash := set.Cash()
	if cash == nil || cash.Balance() >= p.liquidation.Threshold {
		return nil
	}
	shortfall := p.liquidation.Threshold - cash.Balance()

	var planned []*transaction.Refill
	for _, name := range p.liquidation.Buckets {
		if shortfall <= 0 {
			break
		}
		b := set.Find(name, m, "liquidation policy")
		if b == nil || b == cash {
			continue
		}
		balance := b.Balance()
		if balance <= 0 {
			continue
		}

		if b.Type == domain.BucketProperty {
			shares := transaction.SplitByPercent(balance, p.liquidation.PropertyTargets)
			for i, share := range shares {
				if share <= 0 {
					continue
				}
				targetName := p.liquidation.PropertyTargets[i].Bucket
				planned = append(planned, transaction.NewRefill(b.Name, targetName, share, false, p.env))
				if targetName == cash.Name {
					shortfall -= share
				}
			}
			continue
		}

		amount := min(balance, shortfall)
		penalty := b.Type == domain.BucketTaxDeferred && !p.env.EligibilityReached(m)
		planned = append(planned, transaction.NewRefill(b.Name, cash.Name, amount, penalty, p.env))
		shortfall -= amount
	}
	return planned
}
