package application

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/medfolio/medfolio/internal/entitlement/domain"
)

// UpdatePayload is the partial-state mutation accepted by UpdateSubscription.
// Nil fields are left untouched by the merge. The payload is validated
// against the schema below and the post-merge state against the domain
// invariants before anything is persisted.
type UpdatePayload struct {
	PlanID          *string        `json:"plan_id,omitempty" validate:"omitempty,min=1"`
	Status          *domain.Status `json:"status,omitempty" validate:"omitempty,oneof=inactive active cancelled"`
	NextBillingDate *time.Time     `json:"next_billing_date,omitempty"`
	Trial           *bool          `json:"trial,omitempty"`
}

// IsEmpty reports whether the payload carries no fields at all.
func (p UpdatePayload) IsEmpty() bool {
	return p.PlanID == nil && p.Status == nil && p.NextBillingDate == nil && p.Trial == nil
}

// validatePayload checks the payload schema. Cross-field invariants (active
// requires a plan) are enforced after the merge via State.Validate.
func validatePayload(v *validator.Validate, p UpdatePayload) error {
	const op = "entitlement.update"
	if p.IsEmpty() {
		return domain.NewError(domain.KindInvalidSubscriptionData, op, "empty update payload", nil)
	}
	if err := v.Struct(p); err != nil {
		return domain.NewError(domain.KindInvalidSubscriptionData, op, "malformed update payload", err)
	}
	if p.PlanID != nil && domain.PlanByID(*p.PlanID) == nil {
		return domain.NewError(domain.KindInvalidSubscriptionData, op, "unknown plan "+*p.PlanID, nil)
	}
	return nil
}

// applyTo merges the payload into a cloned state. The caller validates the
// result before committing.
func (p UpdatePayload) applyTo(state *domain.State) {
	if p.PlanID != nil {
		state.CurrentPlan = domain.PlanByID(*p.PlanID)
	}
	if p.Status != nil {
		state.Status = *p.Status
		if *p.Status == domain.StatusInactive {
			state.CurrentPlan = nil
		}
	}
	if p.NextBillingDate != nil {
		t := *p.NextBillingDate
		state.NextBillingDate = &t
	}
	if p.Trial != nil {
		state.Trial = *p.Trial
	}
	state.UpdatedAt = time.Now()
}
