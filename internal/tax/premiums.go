package tax

import (
	"errors"

	"github.com/rgehrsitz/nestegg/internal/domain"
)

// ErrMissingMAGI means a means-tested premium needed a lagged MAGI that was
// neither supplied nor computed. It aborts the trial.
var ErrMissingMAGI = errors.New("missing lagged MAGI")

// WarningDistance flags a MAGI within this amount of the next premium threshold
const WarningDistance = 10000

// PremiumRisk classifies where a MAGI sits against a premium schedule
type PremiumRisk string

const (
	PremiumRiskSafe    PremiumRisk = "Safe"
	PremiumRiskWarning PremiumRisk = "Warning"
	PremiumRiskBreach  PremiumRisk = "Breach"
)

// Tier returns the index of the highest bracket whose MinMAGI is at or below
// magi, or -1 when magi is below every bracket
func Tier(s domain.PremiumSchedule, magi int64) int {
	tier := -1
	for i, b := range s.Brackets {
		if magi >= b.MinMAGI {
			tier = i
		}
	}
	return tier
}

// MonthlyPremium is the base plus the bracket amount, doubled for joint filers
func MonthlyPremium(s domain.PremiumSchedule, magi int64, joint bool) int64 {
	monthly := s.BaseMonthly
	if tier := Tier(s, magi); tier >= 0 {
		monthly += s.Brackets[tier].Monthly
	}
	if joint {
		monthly *= 2
	}
	return monthly
}

// RiskStatus reports the tier a MAGI lands in and its distance to the next
// threshold. Tier 0 with a zero surcharge counts as no breach.
type RiskStatus struct {
	Risk           PremiumRisk
	Tier           int
	Monthly        int64
	NextThreshold  int64
	DistanceToNext int64
}

// AnalyzeRisk places magi on the schedule
func AnalyzeRisk(s domain.PremiumSchedule, magi int64, joint bool) RiskStatus {
	status := RiskStatus{Risk: PremiumRiskSafe, Tier: Tier(s, magi), Monthly: MonthlyPremium(s, magi, joint)}
	next := status.Tier + 1
	if next < len(s.Brackets) {
		status.NextThreshold = s.Brackets[next].MinMAGI
		status.DistanceToNext = status.NextThreshold - magi
	}

	breached := status.Tier >= 0 && s.Brackets[status.Tier].Monthly > 0
	switch {
	case breached:
		status.Risk = PremiumRiskBreach
	case status.NextThreshold > 0 && status.DistanceToNext <= WarningDistance:
		status.Risk = PremiumRiskWarning
	}
	return status
}
