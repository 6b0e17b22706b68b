package account

import (
	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/shopspring/decimal"
)

// Holding is one asset-class position inside a bucket
type Holding struct {
	AssetClass string
	Weight     decimal.Decimal
	Amount     int64
	CostBasis  int64
}

// Bucket is an account made of weighted holdings. Its balance is always the
// sum of its holdings.
type Bucket struct {
	Name              string
	Type              domain.BucketType
	CanGoNegative     bool
	AllowCashFallback bool
	// TracksBasis is set when cost basis was seeded, so gains can be measured
	// instead of estimated
	TracksBasis bool
	Holdings    []*Holding

	tracker *FlowTracker
}

// NewBucket builds a bucket from configuration and seeds it with balance.
// A bucket without configured holdings gets a single unclassified holding.
func NewBucket(cfg domain.BucketConfig, balance int64, tracker *FlowTracker) *Bucket {
	b := &Bucket{
		Name:              cfg.Name,
		Type:              cfg.Type,
		CanGoNegative:     cfg.CanGoNegative,
		AllowCashFallback: cfg.AllowCashFallback,
		TracksBasis:       cfg.CostBasisRatio != nil,
		tracker:           tracker,
	}
	for _, hc := range cfg.Holdings {
		b.Holdings = append(b.Holdings, &Holding{AssetClass: hc.AssetClass, Weight: hc.Weight})
	}
	if len(b.Holdings) == 0 {
		b.Holdings = []*Holding{{Weight: decimal.NewFromInt(1)}}
	}

	for i, share := range b.split(balance) {
		h := b.Holdings[i]
		h.Amount = share
		if cfg.CostBasisRatio != nil && share > 0 {
			h.CostBasis = decimal.NewFromInt(share).Mul(*cfg.CostBasisRatio).Round(0).IntPart()
		}
	}
	return b
}

// Balance is the sum of holding amounts
func (b *Bucket) Balance() int64 {
	var total int64
	for _, h := range b.Holdings {
		total += h.Amount
	}
	return total
}

// CostBasis is the sum of holding cost bases
func (b *Bucket) CostBasis() int64 {
	var total int64
	for _, h := range b.Holdings {
		total += h.CostBasis
	}
	return total
}

// split divides amount by holding weight; the last holding absorbs rounding
// drift so the shares always sum to amount
func (b *Bucket) split(amount int64) []int64 {
	shares := make([]int64, len(b.Holdings))
	if len(shares) == 0 {
		return shares
	}
	total := decimal.Zero
	for _, h := range b.Holdings {
		total = total.Add(h.Weight)
	}
	last := len(shares) - 1
	if total.Sign() <= 0 {
		shares[last] = amount
		return shares
	}
	amt := decimal.NewFromInt(amount)
	var allocated int64
	for i := 0; i < last; i++ {
		shares[i] = amt.Mul(b.Holdings[i].Weight).Div(total).Round(0).IntPart()
		allocated += shares[i]
	}
	shares[last] = amount - allocated
	return shares
}

// add credits amount across holdings without recording a flow
func (b *Bucket) add(amount int64) {
	for i, share := range b.split(amount) {
		b.Holdings[i].Amount += share
		b.Holdings[i].CostBasis += share
	}
}

// take debits up to amount without recording a flow. It returns the amount
// removed and the cost basis that left with it.
func (b *Bucket) take(amount int64) (int64, int64) {
	if amount <= 0 || len(b.Holdings) == 0 {
		return 0, 0
	}
	if b.CanGoNegative {
		h := b.Holdings[0]
		basis := basisShare(h, amount)
		h.Amount -= amount
		h.CostBasis -= basis
		return amount, basis
	}

	balance := b.Balance()
	if balance <= 0 {
		return 0, 0
	}
	remaining := min(amount, balance)
	var taken, basisRemoved int64
	for _, h := range b.Holdings {
		if remaining == 0 {
			break
		}
		if h.Amount <= 0 {
			continue
		}
		t := min(h.Amount, remaining)
		basis := basisShare(h, t)
		h.Amount -= t
		h.CostBasis -= basis
		remaining -= t
		taken += t
		basisRemoved += basis
	}
	return taken, basisRemoved
}

func basisShare(h *Holding, amount int64) int64 {
	if h.Amount <= 0 || h.CostBasis <= 0 {
		return 0
	}
	if amount >= h.Amount {
		return h.CostBasis
	}
	return decimal.NewFromInt(h.CostBasis).Mul(decimal.NewFromInt(amount)).
		Div(decimal.NewFromInt(h.Amount)).Round(0).IntPart()
}

// Deposit credits amount split by holding weight. Non-positive amounts are ignored.
func (b *Bucket) Deposit(amount int64, label string, month domain.Month) {
	if amount <= 0 {
		return
	}
	b.add(amount)
	b.tracker.Record(month, label, b.Name, amount, FlowDeposit)
}

// Withdraw debits up to amount and returns what was actually removed. Buckets
// that cannot go negative stop at zero.
func (b *Bucket) Withdraw(amount int64, label string, month domain.Month) int64 {
	actual, _ := b.WithdrawDetailed(amount, label, month)
	return actual
}

// WithdrawDetailed is Withdraw that also reports the cost basis removed
func (b *Bucket) WithdrawDetailed(amount int64, label string, month domain.Month) (int64, int64) {
	actual, basis := b.take(amount)
	if actual > 0 {
		b.tracker.Record(month, b.Name, label, actual, FlowWithdraw)
	}
	return actual, basis
}

// Transfer moves up to amount into target and records a single transfer flow
func (b *Bucket) Transfer(amount int64, target *Bucket, month domain.Month) int64 {
	moved, _ := b.TransferDetailed(amount, target, month, FlowTransfer)
	return moved
}

// TransferDetailed moves up to amount into target, recording one flow of the
// given type, and reports the amount moved and the basis that left the source
func (b *Bucket) TransferDetailed(amount int64, target *Bucket, month domain.Month, typ FlowType) (int64, int64) {
	if target == nil || target == b {
		return 0, 0
	}
	moved, basis := b.take(amount)
	if moved == 0 {
		return 0, 0
	}
	target.add(moved)
	b.tracker.Record(month, b.Name, target.Name, moved, typ)
	return moved, basis
}

// WithdrawWithCashFallback withdraws amount from b. When b allows cash
// fallback, whatever b cannot supply is withdrawn from cash instead. The basis
// returned covers only what left b.
func (b *Bucket) WithdrawWithCashFallback(amount int64, cash *Bucket, label string, month domain.Month) (fromSource, fromCash, basis int64) {
	fromSource, basis = b.WithdrawDetailed(amount, label, month)
	if !b.AllowCashFallback || cash == nil || cash == b {
		return fromSource, 0, basis
	}
	if shortfall := amount - fromSource; shortfall > 0 {
		fromCash = cash.Withdraw(shortfall, label, month)
	}
	return fromSource, fromCash, basis
}

// TransferWithCashFallback is the transfer form of WithdrawWithCashFallback.
// The basis returned covers only what left b.
func (b *Bucket) TransferWithCashFallback(amount int64, target, cash *Bucket, month domain.Month, typ FlowType) (fromSource, fromCash, basis int64) {
	fromSource, basis = b.TransferDetailed(amount, target, month, typ)
	if !b.AllowCashFallback || cash == nil || cash == b || cash == target {
		return fromSource, 0, basis
	}
	if shortfall := amount - fromSource; shortfall > 0 {
		fromCash, _ = cash.TransferDetailed(shortfall, target, month, typ)
	}
	return fromSource, fromCash, basis
}

// ApplyReturns applies a monthly rate to every holding whose asset class has
// one. Basis is unchanged so the delta shows up as unrealized gain.
func (b *Bucket) ApplyReturns(rates map[string]decimal.Decimal, month domain.Month) {
	for _, h := range b.Holdings {
		rate, ok := rates[h.AssetClass]
		if !ok || h.Amount == 0 {
			continue
		}
		delta := decimal.NewFromInt(h.Amount).Mul(rate).Round(0).IntPart()
		if !b.CanGoNegative && h.Amount+delta < 0 {
			delta = -h.Amount
		}
		if delta == 0 {
			continue
		}
		h.Amount += delta
		if delta > 0 {
			b.tracker.Record(month, "Market Gains "+h.AssetClass, b.Name, delta, FlowGain)
		} else {
			b.tracker.Record(month, b.Name, "Market Losses "+h.AssetClass, -delta, FlowLoss)
		}
	}
}

// RealizeGains steps up basis by fraction of each holding's unrealized gain
// and returns the total gain realized. No money moves.
func (b *Bucket) RealizeGains(fraction decimal.Decimal) int64 {
	var realized int64
	for _, h := range b.Holdings {
		unrealized := h.Amount - h.CostBasis
		if unrealized <= 0 {
			continue
		}
		r := decimal.NewFromInt(unrealized).Mul(fraction).Round(0).IntPart()
		h.CostBasis += r
		realized += r
	}
	return realized
}
