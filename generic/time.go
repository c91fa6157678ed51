package generic

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// =============================================================================
// TIME POINT - Calendar day used for every business date in the ledger
// =============================================================================

// TimePoint is a calendar day. Membership start/expiry, walk-in dates, sale
// dates and ledger entry dates are all TimePoints; wall-clock timestamps
// (createdAt, updatedAt) stay plain time.Time.
//
// TimePoints are stored as "YYYY-MM-DD" strings so that equality and range
// queries in the document store compare them lexicographically.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates t to its calendar day in t's own location.
func DayOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return TimePoint{Time: t}, nil
}

// MustParseDate is ParseDate for literals in tests and demo data.
func MustParseDate(s string) TimePoint {
	tp, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool       { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool        { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool        { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool { return tp.After(other) || tp.Equal(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic. Month arithmetic follows time.AddDate normalization
// (Jan 31 + 1 month = Mar 3 in a non-leap year).
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.normalize().AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.normalize().AddDate(0, n, 0)} }

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

// Midnight returns the start of the day in UTC.
func (tp TimePoint) Midnight() time.Time { return tp.normalize() }

func (tp TimePoint) String() string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format(DateLayout)
}

// MaxTimePoint returns the later of two days.
func MaxTimePoint(a, b TimePoint) TimePoint {
	if a.After(b) {
		return a
	}
	return b
}

func (tp TimePoint) MarshalJSON() ([]byte, error) {
	if tp.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(tp.String())
}

func (tp *TimePoint) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*tp = TimePoint{}
		return nil
	}
	// Accept full timestamps from older documents and keep only the day.
	if len(s) > len(DateLayout) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", s, err)
		}
		*tp = DayOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// =============================================================================
// CLOCK - Source of "now" for status derivation and default dates
// =============================================================================

// Clock returns the current instant. Status (Active/Expired) is a function of
// the clock, so every caller that needs "now" takes a Clock instead of calling
// time.Now directly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in the gym's time zone.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns T. Used in tests and scenario loading.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// Today returns the calendar day of clock.Now() in the clock's location.
func Today(clock Clock) TimePoint {
	return DayOf(clock.Now())
}
