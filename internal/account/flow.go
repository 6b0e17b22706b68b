package account

import (
	"github.com/rgehrsitz/nestegg/internal/domain"
)

// FlowType tags a money movement
type FlowType string

const (
	FlowDeposit  FlowType = "deposit"
	FlowWithdraw FlowType = "withdraw"
	FlowTransfer FlowType = "transfer"
	FlowGain     FlowType = "gain"
	FlowLoss     FlowType = "loss"
	FlowRefill   FlowType = "refill"
)

// Flow is one recorded money movement. Source and Target are bucket names or
// free-form labels such as "Salary" or "Market Gains Stocks".
type Flow struct {
	Month  domain.Month
	Source string
	Target string
	Amount int64
	Type   FlowType
}

// FlowTracker is the append-only log of one trial's flows. It is not safe for
// concurrent use; each trial owns its own tracker.
type FlowTracker struct {
	flows []Flow
}

// NewFlowTracker creates an empty tracker
func NewFlowTracker() *FlowTracker {
	return &FlowTracker{}
}

// Record appends a flow. A nil tracker discards it.
func (t *FlowTracker) Record(month domain.Month, source, target string, amount int64, typ FlowType) {
	if t == nil {
		return
	}
	t.flows = append(t.flows, Flow{Month: month, Source: source, Target: target, Amount: amount, Type: typ})
}

// Flows returns a copy of every recorded flow in insertion order
func (t *FlowTracker) Flows() []Flow {
	if t == nil {
		return nil
	}
	out := make([]Flow, len(t.flows))
	copy(out, t.flows)
	return out
}

// Len returns the number of recorded flows
func (t *FlowTracker) Len() int {
	if t == nil {
		return 0
	}
	return len(t.flows)
}
