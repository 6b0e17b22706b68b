package domain

import (
	"fmt"
	"strings"
	"time"
)

// Month is a calendar month counted from year zero: year*12 + (month-1).
// The zero value is January of year 0 and is treated as "unset" by config validation.
type Month int

// NewMonth builds a Month from a year and a calendar month
func NewMonth(year int, month time.Month) Month {
	return Month(year*12 + int(month) - 1)
}

// MonthOf returns the Month containing t
func MonthOf(t time.Time) Month {
	return NewMonth(t.Year(), t.Month())
}

// ParseMonth accepts YYYY-MM or YYYY-MM-DD
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01", "2006-01-02", "2006/01/02", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid month %q: expected YYYY-MM or YYYY-MM-DD", s)
}

// Year returns the calendar year
func (m Month) Year() int {
	return int(m) / 12
}

// Month returns the calendar month
func (m Month) Month() time.Month {
	return time.Month(int(m)%12 + 1)
}

// Quarter returns 1..4
func (m Month) Quarter() int {
	return (int(m.Month())-1)/3 + 1
}

// Add returns the month n months later (n may be negative)
func (m Month) Add(n int) Month {
	return m + Month(n)
}

// IsYearEnd reports whether m is December
func (m Month) IsYearEnd() bool {
	return m.Month() == time.December
}

// MonthsLeftInYear counts the months after m up to and including December
func (m Month) MonthsLeftInYear() int {
	return 12 - int(m.Month())
}

// Time returns the first day of the month in UTC
func (m Month) Time() time.Time {
	return time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year(), int(m.Month()))
}

// MarshalText implements encoding.TextMarshaler
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so months can be written as
// "2031-06" in YAML and CSV
func (m *Month) UnmarshalText(text []byte) error {
	parsed, err := ParseMonth(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// AgeAt returns the whole years between birth and m, counting the birth month as a birthday
func AgeAt(birth, m Month) int {
	if m < birth {
		return 0
	}
	return int(m-birth) / 12
}
