package generic

// =============================================================================
// PERIOD - Inclusive date window used by list and export filters
// =============================================================================

// Period is an inclusive [Start, End] window of calendar days. A zero Start
// or End leaves that side open.
//
// Examples:
//   - Cashflow for March 2025: 2025-03-01 .. 2025-03-31
//   - Everything since opening day: Start set, End zero
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the day is within the period.
func (p Period) Contains(t TimePoint) bool {
	if !p.Start.IsZero() && t.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && t.After(p.End) {
		return false
	}
	return true
}

// IsOpen reports whether neither bound is set.
func (p Period) IsOpen() bool {
	return p.Start.IsZero() && p.End.IsZero()
}

// Validate rejects windows whose end is before the start.
func (p Period) Validate() error {
	if !p.Start.IsZero() && !p.End.IsZero() && p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Filters turns the period into range filters on a date field.
func (p Period) Filters(field string) []Filter {
	var filters []Filter
	if !p.Start.IsZero() {
		filters = append(filters, Filter{Field: field, Op: OpGte, Value: p.Start.String()})
	}
	if !p.End.IsZero() {
		filters = append(filters, Filter{Field: field, Op: OpLte, Value: p.End.String()})
	}
	return filters
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
