package account

import (
	"errors"
	"fmt"

	"github.com/rgehrsitz/nestegg/internal/domain"
	"github.com/rgehrsitz/nestegg/internal/logging"
)

// ErrUnknownBucket is returned when a configuration names a bucket that does not exist
var ErrUnknownBucket = errors.New("unknown bucket")

// Set is the ordered collection of one trial's buckets
type Set struct {
	buckets  []*Bucket
	index    map[string]*Bucket
	cashName string
	taxName  string
	tracker  *FlowTracker
	logger   logging.Logger
}

// NewSet creates an empty set. cashName and taxName designate the Cash and
// Tax Collection buckets once they are added.
func NewSet(cashName, taxName string, tracker *FlowTracker, logger logging.Logger) *Set {
	return &Set{
		index:    make(map[string]*Bucket),
		cashName: cashName,
		taxName:  taxName,
		tracker:  tracker,
		logger:   logging.OrNop(logger),
	}
}

// Add appends a bucket, keeping configuration order
func (s *Set) Add(b *Bucket) error {
	if _, exists := s.index[b.Name]; exists {
		return fmt.Errorf("duplicate bucket %q", b.Name)
	}
	if b.tracker == nil {
		b.tracker = s.tracker
	}
	s.buckets = append(s.buckets, b)
	s.index[b.Name] = b
	return nil
}

// Get looks up a bucket by name
func (s *Set) Get(name string) (*Bucket, bool) {
	b, ok := s.index[name]
	return b, ok
}

// Find looks up a bucket and logs a warning naming the caller when it is missing
func (s *Set) Find(name string, month domain.Month, caller string) *Bucket {
	b, ok := s.index[name]
	if !ok {
		s.logger.Warnf("%s: bucket %q not found in %s, skipping", caller, name, month)
		return nil
	}
	return b
}

// Require returns the named bucket or an error wrapping ErrUnknownBucket
func (s *Set) Require(name string) (*Bucket, error) {
	b, ok := s.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBucket, name)
	}
	return b, nil
}

// Cash returns the designated cash bucket, or nil
func (s *Set) Cash() *Bucket {
	return s.index[s.cashName]
}

// TaxCollection returns the designated tax collection bucket, or nil
func (s *Set) TaxCollection() *Bucket {
	return s.index[s.taxName]
}

// Buckets returns the buckets in configuration order
func (s *Set) Buckets() []*Bucket {
	return s.buckets
}

// Names returns bucket names in configuration order
func (s *Set) Names() []string {
	names := make([]string, len(s.buckets))
	for i, b := range s.buckets {
		names[i] = b.Name
	}
	return names
}

// Balances returns bucket balances aligned with Names
func (s *Set) Balances() []int64 {
	out := make([]int64, len(s.buckets))
	for i, b := range s.buckets {
		out[i] = b.Balance()
	}
	return out
}

// NetWorth sums every bucket balance
func (s *Set) NetWorth() int64 {
	var total int64
	for _, b := range s.buckets {
		total += b.Balance()
	}
	return total
}

// Investable sums the balances of every bucket other than cash, tax collection and property
func (s *Set) Investable() int64 {
	var total int64
	for _, b := range s.buckets {
		if b.Name == s.cashName || b.Name == s.taxName || b.Type == domain.BucketProperty {
			continue
		}
		total += b.Balance()
	}
	return total
}

// OfType returns the buckets of the given type in configuration order
func (s *Set) OfType(t domain.BucketType) []*Bucket {
	var out []*Bucket
	for _, b := range s.buckets {
		if b.Type == t {
			out = append(out, b)
		}
	}
	return out
}

// Tracker returns the flow tracker shared by every bucket in the set
func (s *Set) Tracker() *FlowTracker {
	return s.tracker
}

// Logger returns the set's logger
func (s *Set) Logger() logging.Logger {
	return s.logger
}
