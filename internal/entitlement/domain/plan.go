package domain

// BillingInterval is the cadence at which a plan renews.
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "monthly"
	IntervalAnnual  BillingInterval = "annual"
)

// Plan is an immutable catalog entry. The catalog is defined at build time
// and never mutated at runtime.
type Plan struct {
	ID         string
	Name       string
	PriceCents int
	Currency   string
	Interval   BillingInterval
	Features   []string
}

// Plan IDs for entitlement checks.
const (
	PlanPremiumMonthly = "premium-monthly"
	PlanPremiumAnnual  = "premium-annual"
	PlanFamily         = "family"
)

var catalog = []Plan{
	{
		ID:         PlanPremiumMonthly,
		Name:       "Medfolio Premium",
		PriceCents: 999,
		Currency:   "USD",
		Interval:   IntervalMonthly,
		Features:   []string{"unlimited-medications", "claim-tracking", "refill-reminders", "cognitive-exercises"},
	},
	{
		ID:         PlanPremiumAnnual,
		Name:       "Medfolio Premium (Annual)",
		PriceCents: 9999,
		Currency:   "USD",
		Interval:   IntervalAnnual,
		Features:   []string{"unlimited-medications", "claim-tracking", "refill-reminders", "cognitive-exercises"},
	},
	{
		ID:         PlanFamily,
		Name:       "Medfolio Family",
		PriceCents: 1799,
		Currency:   "USD",
		Interval:   IntervalMonthly,
		Features:   []string{"unlimited-medications", "claim-tracking", "refill-reminders", "cognitive-exercises", "caregiver-sharing"},
	},
}

// Plans returns the plan catalog. The returned slice is a copy; callers may
// not mutate catalog entries.
func Plans() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// PlanByID looks up a catalog plan. Returns nil if the ID is unknown.
func PlanByID(id string) *Plan {
	for i := range catalog {
		if catalog[i].ID == id {
			p := catalog[i]
			return &p
		}
	}
	return nil
}
