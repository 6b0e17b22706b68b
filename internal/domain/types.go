package domain

import (
	"fmt"
	"strings"
)

// BucketType classifies an account for tax treatment and policy decisions
type BucketType int

// The zero value is BucketUnknown so a bucket missing its type is caught by
// validation instead of silently becoming cash.
const (
	BucketUnknown BucketType = iota
	BucketCash
	BucketTaxable
	BucketTaxDeferred
	BucketTaxFree
	BucketProperty
	BucketOther
)

var bucketTypeNames = map[BucketType]string{
	BucketCash:        "cash",
	BucketTaxable:     "taxable",
	BucketTaxDeferred: "tax_deferred",
	BucketTaxFree:     "tax_free",
	BucketProperty:    "property",
	BucketOther:       "other",
}

func (t BucketType) String() string {
	if name, ok := bucketTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("BucketType(%d)", int(t))
}

// IsTaxAdvantaged reports whether withdrawals are gated by the penalty-free age
func (t BucketType) IsTaxAdvantaged() bool {
	return t == BucketTaxDeferred || t == BucketTaxFree
}

// ParseBucketType accepts the snake_case names plus a few common aliases
func ParseBucketType(s string) (BucketType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	switch key {
	case "pre_tax", "traditional":
		return BucketTaxDeferred, nil
	case "roth":
		return BucketTaxFree, nil
	case "brokerage":
		return BucketTaxable, nil
	}
	for t, name := range bucketTypeNames {
		if name == key {
			return t, nil
		}
	}
	return BucketUnknown, fmt.Errorf("unknown bucket type %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (t BucketType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *BucketType) UnmarshalText(text []byte) error {
	parsed, err := ParseBucketType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scenario is the market regime selected by the year's inflation rate
type Scenario int

const (
	ScenarioAverage Scenario = iota
	ScenarioLow
	ScenarioHigh
)

func (s Scenario) String() string {
	switch s {
	case ScenarioLow:
		return "Low"
	case ScenarioHigh:
		return "High"
	default:
		return "Average"
	}
}
