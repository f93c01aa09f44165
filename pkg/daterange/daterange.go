// Package daterange provides half-open datetime ranges and utilities to divide
// them into bounded, contiguous batches.
package daterange

import (
	"fmt"
	"strings"
	"time"
)

// InvalidRangeError is returned when a range's start is not strictly before its end.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid datetime range: start %s must be before end %s",
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// InvalidIntervalError is returned when a batch interval is not strictly positive.
type InvalidIntervalError struct {
	Interval time.Duration
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid batch interval: %s must be positive", e.Interval)
}

// Range is a half-open datetime interval [Start, End).
// The zero value is not a valid range; construct one with New.
type Range struct {
	Start time.Time
	End   time.Time
}

// New creates a Range after validating that start precedes end.
func New(start, end time.Time) (Range, error) {
	if !start.Before(end) {
		return Range{}, &InvalidRangeError{Start: start, End: end}
	}
	return Range{Start: start, End: end}, nil
}

// Contains reports whether t falls within the range, treating Start as
// inclusive and End as exclusive.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Duration returns the length of the range.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// String renders the range as an RFC3339 interval, e.g.
// "2015-06-01T00:00:00Z/2015-08-01T00:00:00Z".
func (r Range) String() string {
	return r.Start.UTC().Format(time.RFC3339) + "/" + r.End.UTC().Format(time.RFC3339)
}

// Parse parses an RFC3339 "start/end" interval string into a Range.
func Parse(s string) (Range, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("invalid datetime interval %q: must be 'start/end'", s)
	}

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[0]))
	if err != nil {
		return Range{}, fmt.Errorf("invalid start datetime: %w", err)
	}

	end, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[1]))
	if err != nil {
		return Range{}, fmt.Errorf("invalid end datetime: %w", err)
	}

	return New(start, end)
}

// Split divides r into consecutive sub-ranges of the given interval. The
// sub-ranges are contiguous, non-overlapping and cover r exactly: every batch
// has length interval except possibly the last, which is clipped to r.End.
//
// Split is pure and deterministic; identical inputs always produce identical
// output.
func Split(r Range, interval time.Duration) ([]Range, error) {
	if !r.Start.Before(r.End) {
		return nil, &InvalidRangeError{Start: r.Start, End: r.End}
	}
	if interval <= 0 {
		return nil, &InvalidIntervalError{Interval: interval}
	}

	batches := make([]Range, 0, r.Duration()/interval+1)
	for start := r.Start; start.Before(r.End); {
		end := start.Add(interval)
		if end.After(r.End) {
			end = r.End
		}
		batches = append(batches, Range{Start: start, End: end})
		start = end
	}
	return batches, nil
}

// Interval is a duration broken down into calendar-free components, matching
// the way task documents express batch intervals.
type Interval struct {
	Weeks   int `yaml:"weeks"`
	Days    int `yaml:"days"`
	Hours   int `yaml:"hours"`
	Minutes int `yaml:"minutes"`
	Seconds int `yaml:"seconds"`
}

// Duration collapses the breakdown into a single time.Duration.
func (i Interval) Duration() time.Duration {
	return time.Duration(i.Weeks)*7*24*time.Hour +
		time.Duration(i.Days)*24*time.Hour +
		time.Duration(i.Hours)*time.Hour +
		time.Duration(i.Minutes)*time.Minute +
		time.Duration(i.Seconds)*time.Second
}

// IsZero reports whether every component of the breakdown is zero.
func (i Interval) IsZero() bool {
	return i.Duration() == 0
}
