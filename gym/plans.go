package gym

import (
	"github.com/shopspring/decimal"
	"github.com/warp/gym-ledger/generic"
)

// =============================================================================
// PLANS - Membership tiers and the expiry calculator
// =============================================================================

// Plan is a membership tier.
type Plan string

const (
	PlanDayPass        Plan = "DayPass"
	PlanWarriorPass    Plan = "WarriorPass"
	PlanGladiatorPass  Plan = "GladiatorPass"
	PlanAlphaElitePass Plan = "AlphaElitePass"
)

// Plans lists every tier in display order.
var Plans = []Plan{PlanDayPass, PlanWarriorPass, PlanGladiatorPass, PlanAlphaElitePass}

// planTerms is the fixed rule table. Unknown tiers fall back to one month.
type planTerms struct {
	label  string
	price  int64
	period string
	months int
	days   int
}

var terms = map[Plan]planTerms{
	PlanDayPass:        {label: "Day Pass", price: 100, period: "1 day", days: 1},
	PlanWarriorPass:    {label: "Warrior Pass", price: 799, period: "1 month", months: 1},
	PlanGladiatorPass:  {label: "Gladiator Pass", price: 999, period: "30 days", days: 30},
	PlanAlphaElitePass: {label: "Alpha Elite Pass", price: 2099, period: "3 months", months: 3},
}

var fallbackTerms = planTerms{period: "1 month", months: 1}

func (p Plan) terms() planTerms {
	if t, ok := terms[p]; ok {
		return t
	}
	t := fallbackTerms
	t.label = string(p)
	return t
}

// Valid reports whether p is a known tier.
func (p Plan) Valid() bool {
	_, ok := terms[p]
	return ok
}

// Label is the display name, also used as the ledger entry source.
func (p Plan) Label() string { return p.terms().label }

// DefaultPrice is the list price of one period.
func (p Plan) DefaultPrice() decimal.Decimal { return generic.NewMoney(p.terms().price) }

// RenewalPeriod describes one period, e.g. "3 months".
func (p Plan) RenewalPeriod() string { return p.terms().period }

// AllowsCustomExpiry is true for the one tier whose expiry staff may
// override by hand.
func (p Plan) AllowsCustomExpiry() bool { return p == PlanGladiatorPass }

// ExpiryFrom returns the expiry date of a period starting at start.
// The result is always strictly after start.
func (p Plan) ExpiryFrom(start generic.TimePoint) generic.TimePoint {
	t := p.terms()
	return start.AddMonths(t.months).AddDays(t.days)
}

// PlanForLabel maps a ledger source label back to its tier.
func PlanForLabel(label string) (Plan, bool) {
	for _, p := range Plans {
		if p.Label() == label {
			return p, true
		}
	}
	return "", false
}

// PlanLabels returns every tier label.
func PlanLabels() []string {
	labels := make([]string, len(Plans))
	for i, p := range Plans {
		labels[i] = p.Label()
	}
	return labels
}
